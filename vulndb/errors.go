package vulndb

import "errors"

// ErrNotFound signals that an upstream source has no record for a CVE. It is
// non-fatal: the record may still be populated from another source.
var ErrNotFound = errors.New("no record for this CVE")
