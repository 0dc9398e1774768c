package model

import "time"

// CheckpointSchemaVersion is bumped whenever the checkpoint shape changes in a
// way an older resume cannot consume. Resume refuses checkpoints written with
// a different version.
const CheckpointSchemaVersion = 1

// Checkpoint is a durable snapshot of batch progress. A checkpoint is either
// fully replaced by a newer write or fully consumed by resume; a partial or
// corrupt checkpoint must fail resume rather than silently skip work.
type Checkpoint struct {
	RunID         string         `json:"run_id"`
	Sequence      uint64         `json:"sequence"`
	SchemaVersion int            `json:"schema_version"`
	Jobs          []ScanJob      `json:"jobs"`
	Frontier      []FrontierItem `json:"frontier,omitempty"`
	Edges         []NetworkEdge  `json:"edges,omitempty"`
	Visited       []FrontierItem `json:"visited,omitempty"`
	Officers      []string       `json:"officers,omitempty"`
	Truncated     bool           `json:"truncated,omitempty"`
	Counters      Counters       `json:"counters"`
	WrittenAt     time.Time      `json:"written_at"`
}

// Counters are global progress counters carried across resume.
type Counters struct {
	EntitiesVisited  int `json:"entities_visited"`
	RequestsConsumed int `json:"requests_consumed"`
}
