// Package progress carries run and step milestones from the workflow to
// pluggable sinks. Emission never blocks the workflow: events are buffered
// and delivered in batches on a background goroutine.
package progress
