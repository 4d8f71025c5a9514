// Package relationships detects and stores pass-through relationships between
// a fund and a single instrument that drives it: feeder funds investing through
// a master ETF, and index funds proxied by their public benchmark.
package relationships

import "time"

// RelationType classifies a pass-through relationship.
type RelationType string

const (
	RelationFeeder     RelationType = "FEEDER"
	RelationIndexProxy RelationType = "INDEX_PROXY"
)

// Relationship links a fund to the instrument whose move it follows.
// At most one is active per fund.
type Relationship struct {
	SubCode    string       `json:"sub_code"`
	ParentCode string       `json:"parent_code"`
	ParentName string       `json:"parent_name"`
	Type       RelationType `json:"relation_type"`
	Ratio      float64      `json:"ratio"`
	UpdatedAt  time.Time    `json:"updated_at"`
}
