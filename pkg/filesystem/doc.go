// Package filesystem provides filesystem implementations for homesync.
//
// This package contains implementations of the FS interface,
// including the standard OS filesystem and an afero-backed filesystem
// used by tests.
package filesystem
