// Package storage persists challenges, solves, operator settings and the
// notification delivery log.
//
// Two drivers: sqlite (single file, no server) and postgres. Both implement
// the same Store interface; callers never see driver details.
package storage
