// Package checkpoint defines the latest-snapshot-per-instance contract
// (part of C1). At most one checkpoint exists per instance; it is updated
// in place after every completed task (I3). Modeled on the same Store
// shape as package runlog (the teacher's runtime/agent/runlog.Store), since
// the spec's persistence layout (§6.4) treats events and checkpoints as two
// tables behind one provider.
package checkpoint

import (
	"context"
	"time"
)

// Checkpoint is "(instance_id, current_task_name, data, timestamp)" per
// spec §3.
type Checkpoint struct {
	InstanceID  string
	CurrentTask string
	Data        map[string]any
	Timestamp   time.Time
}

// Store is the checkpoint persistence contract.
type Store interface {
	// Save upserts the checkpoint for c.InstanceID.
	Save(ctx context.Context, c *Checkpoint) error

	// Load returns the checkpoint for instanceID, and false if none exists.
	Load(ctx context.Context, instanceID string) (*Checkpoint, bool, error)
}
