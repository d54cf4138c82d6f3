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

package main

import (
	"log/slog"
	"os"

	"github.com/pwnarch/cvewatch/cmd/cvewatch/commands"
	"github.com/pwnarch/cvewatch/shared"
)

func init() {
	commands.GetRootCmd().AddCommand(commands.NewVendorsCommand())
	commands.GetRootCmd().AddCommand(commands.NewBuildCommand())
	commands.GetRootCmd().AddCommand(commands.NewImportCommand())
	commands.GetRootCmd().AddCommand(commands.NewKEVCommand())
	commands.GetRootCmd().AddCommand(commands.NewServeCommand())
	commands.GetRootCmd().AddCommand(commands.NewDaemonCommand())
	commands.GetRootCmd().AddCommand(commands.NewExportCommand())
}

func main() {
	shared.LoadConfig() // nolint: errcheck
	shared.InitLogger()

	if err := commands.GetRootCmd().Execute(); err != nil {
		slog.Error("Error executing command", "err", err)
		os.Exit(1)
	}
}
