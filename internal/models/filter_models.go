package models

// FilterOp is a comparison operator used in a universe filter condition
type FilterOp string

const (
	FilterOpEQ      FilterOp = "eq"
	FilterOpNE      FilterOp = "ne"
	FilterOpGT      FilterOp = "gt"
	FilterOpGTE     FilterOp = "gte"
	FilterOpLT      FilterOp = "lt"
	FilterOpLTE     FilterOp = "lte"
	FilterOpIn      FilterOp = "in"
	FilterOpNotIn   FilterOp = "not_in"
	FilterOpBetween FilterOp = "between"
)

// SortDir is the direction of a sort specification
type SortDir string

const (
	SortAsc  SortDir = "asc"
	SortDesc SortDir = "desc"
)

// CandidateSpec selects the first-stage symbol source of a universe filter.
// Type is one of "watchlist", "index", "instrument_master".
type CandidateSpec struct {
	Type     string   `json:"type"`
	Symbols  []string `json:"symbols,omitempty"`
	Name     string   `json:"name,omitempty"`
	Exchange string   `json:"exchange,omitempty"`
	Segment  string   `json:"segment,omitempty"`
}

// FilterCondition is one condition applied to a snapshot field. All
// conditions of a spec are combined with logical AND.
type FilterCondition struct {
	Field string      `json:"field"`
	Op    FilterOp    `json:"op"`
	Value interface{} `json:"value"`
}

// SortSpec orders the filtered symbols by a snapshot field
type SortSpec struct {
	Field     string  `json:"field"`
	Direction SortDir `json:"direction"`
}

// FilterSpec is a declarative description of how to compute the universe of
// a session. It is immutable once received; a new configure message replaces
// it wholesale.
type FilterSpec struct {
	Candidates     CandidateSpec     `json:"candidates"`
	Conditions     []FilterCondition `json:"conditions,omitempty"`
	Sort           []SortSpec        `json:"sort,omitempty"`
	MaxSymbols     int               `json:"max_symbols"`
	RefreshSeconds int               `json:"refresh_seconds"`
	GraceSeconds   int               `json:"grace_seconds"`
}

// UniverseUpdate is an incremental universe message sent to a session.
// Universe is the full current set; Added and Removed are the delta against
// the previously emitted set.
type UniverseUpdate struct {
	Added     []string `json:"added"`
	Removed   []string `json:"removed"`
	Universe  []string `json:"universe"`
	Reason    string   `json:"reason"`
	Timestamp float64  `json:"timestamp"`
}
