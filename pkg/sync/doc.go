// Package sync walks the source tree, decides the per-entry action
// (write data, replace with symlink, delete, ignore, or recurse) and
// executes it against the destination tree through an Applier: the
// mutating implementation performs atomic filesystem changes, the
// diffing implementation renders them for dry runs.
package sync
