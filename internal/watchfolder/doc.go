// Package watchfolder sweeps a drop directory for scanned card images and
// feeds them into the intake queue.
//
// A flatbed scanner or network share writes finished images into the watch
// directory. The watcher reacts to filesystem events and also sweeps on a
// timer so files that arrive while the daemon is down are still picked up.
// Adopted images are moved into the incoming directory before they are
// enqueued, which keeps the drop directory empty and makes each sweep
// idempotent.
package watchfolder
