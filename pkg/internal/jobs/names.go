// Package jobs registers the periodic jobs of the service.
package jobs

const (
	// JobSweep expires signatures and frees the quota they held.
	JobSweep = "transfer.sweep"
)
