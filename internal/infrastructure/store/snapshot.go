package store

import (
	"encoding/json"
	"fmt"
	"time"
)

// SnapshotEvery is the number of events between two snapshots of one stream.
const SnapshotEvery = 10

// Snapshot is the JSON-encoded state of an aggregate as of Version. Replay
// resumes with the event after Version.
type Snapshot struct {
	AggregateID   string          `json:"aggregate_id"`
	AggregateType string          `json:"aggregate_type"`
	Version       int             `json:"version"`
	State         json.RawMessage `json:"state"`
	CreatedAt     time.Time       `json:"created_at"`
}

// SnapshotDue reports whether a stream that just reached version should be
// snapshotted.
func SnapshotDue(version int) bool {
	return version > 0 && version%SnapshotEvery == 0
}

// NewSnapshot encodes state taken at version.
func NewSnapshot(aggregateID, aggregateType string, version int, state any) (*Snapshot, error) {
	raw, err := json.Marshal(state)
	if err != nil {
		return nil, fmt.Errorf("encode %s snapshot: %w", aggregateType, err)
	}
	return &Snapshot{
		AggregateID:   aggregateID,
		AggregateType: aggregateType,
		Version:       version,
		State:         raw,
		CreatedAt:     time.Now().UTC(),
	}, nil
}

// Decode restores the snapshot state into dst.
func (s *Snapshot) Decode(dst any) error {
	if err := json.Unmarshal(s.State, dst); err != nil {
		return fmt.Errorf("decode %s snapshot at v%d: %w", s.AggregateType, s.Version, err)
	}
	return nil
}
