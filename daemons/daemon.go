// Copyright (C) 2025 pwnarch
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

package daemons

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/pwnarch/cvewatch/shared"
	"github.com/pwnarch/cvewatch/vulndb"
)

const (
	kevRefreshSchedule = "0 3 * * *"
	// staggered behind the KEV pass so newly ingested rows get flagged on
	// the next day's refresh, not the same night's
	vendorUpdateSchedule = "0 4 * * *"
)

// Daemon owns the recurring jobs: the nightly KEV catalog pass and the
// incremental per-vendor update. Cancellation is process level; a running
// job finishes its current CVE before the scheduler stops handing out work.
type Daemon struct {
	cron             *cron.Cron
	kevService       *vulndb.CISAKEVService
	ingestService    *vulndb.IngestService
	vendorRepository shared.VendorRepository
}

func NewDaemon(kevService *vulndb.CISAKEVService, ingestService *vulndb.IngestService, vendorRepository shared.VendorRepository) *Daemon {
	return &Daemon{
		cron:             cron.New(),
		kevService:       kevService,
		ingestService:    ingestService,
		vendorRepository: vendorRepository,
	}
}

// Run schedules the jobs and blocks until the context is canceled.
func (d *Daemon) Run(ctx context.Context) error {
	if _, err := d.cron.AddFunc(kevRefreshSchedule, func() { d.refreshKEV(ctx) }); err != nil {
		return err
	}
	if _, err := d.cron.AddFunc(vendorUpdateSchedule, func() { d.updateVendors(ctx) }); err != nil {
		return err
	}

	d.cron.Start()
	slog.Info("daemon started", "kevSchedule", kevRefreshSchedule, "vendorSchedule", vendorUpdateSchedule)

	<-ctx.Done()
	stopCtx := d.cron.Stop()
	<-stopCtx.Done()
	return ctx.Err()
}

func (d *Daemon) refreshKEV(ctx context.Context) {
	jobCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	updated, err := d.kevService.MarkExploited(jobCtx)
	if err != nil {
		slog.Error("scheduled KEV refresh failed", "err", err)
		return
	}
	slog.Info("scheduled KEV refresh finished", "newlyFlagged", updated)
}

// updateVendors runs the incremental build for every stored vendor, one at
// a time. Per-vendor failures are logged and the remaining vendors still
// get their turn.
func (d *Daemon) updateVendors(ctx context.Context) {
	vendors, err := d.vendorRepository.All()
	if err != nil {
		slog.Error("could not list vendors for scheduled update", "err", err)
		return
	}

	for _, vendor := range vendors {
		if ctx.Err() != nil {
			return
		}
		saved, err := d.ingestService.BuildVendor(ctx, vendor.VendorID, vendor.VendorName, true)
		if err != nil {
			slog.Error("scheduled vendor update failed", "vendor", vendor.VendorName, "err", err)
			continue
		}
		if saved > 0 {
			slog.Info("scheduled vendor update saved records", "vendor", vendor.VendorName, "saved", saved)
		}
	}
}
