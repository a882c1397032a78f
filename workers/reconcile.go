package workers

import (
	"time"

	"github.com/MdShahriya/LNODE-sub000/models"
)

// Snapshot is a client surface's view of node state. Only the server
// produces Valid snapshots; LocalEstimate is a display counter that never
// feeds back into anything persisted.
type Snapshot struct {
	Valid         bool // set when populated from an authoritative server response
	WalletAddress string
	SessionID     string
	Running       bool
	StartTime     time.Time
	Quality       models.NodeQuality
	Points        float64 // authoritative cumulative total
	Uptime        int64   // seconds, authoritative
	LocalEstimate float64 // display-only, discarded on every resync
	SyncedAt      time.Time
}

// Reconcile merges a local snapshot with a server snapshot. The server wins
// whenever it exists; local counters are never merged forward. Last-write-wins,
// always in the server's favor.
func Reconcile(local, server Snapshot) Snapshot {
	if !server.Valid {
		return local
	}
	merged := server
	merged.LocalEstimate = 0
	return merged
}

// EstimatePoints is the per-second UI estimate: 12 points per minute times
// the display multiplier. Advisory only; the server recomputes from its own
// clock at stop-time.
func EstimatePoints(elapsed time.Duration, multiplier float64) float64 {
	if elapsed < 0 {
		return 0
	}
	return elapsed.Minutes() * 12 * multiplier
}
