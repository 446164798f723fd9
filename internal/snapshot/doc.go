// Package snapshot periodically fetches full order books over REST and
// feeds depth snapshots plus top-of-book quote updates into the pipeline.
// REST quotes carry fields the stream side omits, so both sources converge
// in storage without either overwriting the other.
package snapshot
