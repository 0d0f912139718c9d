package model

import "time"

// SolveResult is the transfer-level view of an engine outcome (spec §6's
// Outputs) paired with the task that produced it.
type SolveResult struct {
	TaskID             int64     `json:"task_id"`
	IsSat              bool      `json:"is_sat"`
	Count              float64   `json:"count"`
	Exponent           int       `json:"exponent"`
	NumJoin            int       `json:"num_join"`
	NumIntroduceForget int       `json:"num_introduce_forget"`
	MaxTableSize       uint64    `json:"max_table_size"`
	AnalyzedAt         time.Time `json:"analyzed_at"`
}

// TraceEntry is one row of the optional per-level trace document
// emitted when SolveConfig.DoTrace is set (spec §C.2): one bag's
// identity, shape, and the kernel work it took to fill its table.
type TraceEntry struct {
	BagID        int    `json:"bag_id"`
	Kind         string `json:"kind"`
	Width        int    `json:"width"`
	TableSize    uint64 `json:"table_size"`
	Exponent     int    `json:"exponent"`
	NumChunks    int    `json:"num_chunks"`
	DurationMS   int64  `json:"duration_ms"`
}

// Trace is the full per-level trace document for one solve, uploaded
// through internal/storage when tracing is enabled.
type Trace struct {
	TaskID  int64        `json:"task_id"`
	Entries []TraceEntry `json:"entries"`
}
