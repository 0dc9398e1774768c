package model

import "time"

// EntityReport is the per-entity slice of a BatchResult that downstream
// exporters and the result cache consume.
type EntityReport struct {
	EntityNumber string        `json:"company_number"`
	EntityName   string        `json:"company_name,omitempty"`
	Status       JobStatus     `json:"status"`
	ErrorKind    string        `json:"error_kind,omitempty"`
	Error        string        `json:"error,omitempty"`
	FromCache    bool          `json:"from_cache,omitempty"`
	Mismatches   []Mismatch    `json:"mismatches"`
	Edges        []NetworkEdge `json:"edges,omitempty"`
}

// BatchResult is the structured outcome of Processor.Run. The core defines
// this shape but not its serialization; exporters render it elsewhere.
type BatchResult struct {
	RunID      string         `json:"run_id"`
	Reports    []EntityReport `json:"results"`
	Edges      []NetworkEdge  `json:"network,omitempty"`
	Truncated  bool           `json:"network_truncated,omitempty"`
	Counters   Counters       `json:"counters"`
	Partial    bool           `json:"partial,omitempty"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at"`
}

// Summary aggregates headline numbers for logging and status output.
type Summary struct {
	Total      int `json:"total_companies"`
	Done       int `json:"done"`
	Failed     int `json:"failed"`
	FromCache  int `json:"from_cache"`
	Mismatches int `json:"total_mismatches"`
	Edges      int `json:"network_edges"`
}

// Summarize computes headline counts over a result.
func (r *BatchResult) Summarize() Summary {
	s := Summary{Total: len(r.Reports), Edges: len(r.Edges)}
	for _, rep := range r.Reports {
		switch rep.Status {
		case JobDone:
			s.Done++
		case JobFailed:
			s.Failed++
		}
		if rep.FromCache {
			s.FromCache++
		}
		s.Mismatches += len(rep.Mismatches)
	}
	return s
}
