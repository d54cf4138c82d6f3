package utils

// ISO8601Format is the timestamp layout used by the NVD API
// (e.g. 2024-02-14T19:15:08.657).
const ISO8601Format = "2006-01-02T15:04:05.000"

// DateOnlyFormat is used by CVEDetails and the CISA KEV catalog.
const DateOnlyFormat = "2006-01-02"
