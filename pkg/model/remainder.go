package model

import (
	"encoding/json"
	"time"
)

// RemainderType represents the life-cycle state of a remainder.
type RemainderType int

const (
	RemainderPending RemainderType = 0 // retained, may still be consumed
	RemainderReal    RemainderType = 1 // survived the job unconsumed, charged to loss
	RemainderPseudo  RemainderType = 2 // consumed, kept for audit only
	RemainderWaste   RemainderType = 3 // too short to keep, charged to loss
)

// String returns the string representation of RemainderType.
func (t RemainderType) String() string {
	switch t {
	case RemainderPending:
		return "pending"
	case RemainderReal:
		return "real"
	case RemainderPseudo:
		return "pseudo"
	case RemainderWaste:
		return "waste"
	default:
		return "unknown"
	}
}

// MarshalJSON encodes the type as its string name.
func (t RemainderType) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON decodes the type from its string name.
func (t *RemainderType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	switch s {
	case "pending":
		*t = RemainderPending
	case "real":
		*t = RemainderReal
	case "pseudo":
		*t = RemainderPseudo
	case "waste":
		*t = RemainderWaste
	default:
		*t = RemainderPending
	}
	return nil
}

// Remainder is an offcut retained in a per-group pool. Its length never
// changes after creation; consuming a remainder produces a fresh child
// remainder for the offcut, not a mutation.
type Remainder struct {
	ID          string        `json:"id"`
	Length      float64       `json:"length"`
	Type        RemainderType `json:"type"`
	GroupKey    string        `json:"groupKey"`
	ParentID    string        `json:"parentId,omitempty"`
	SourceChain []string      `json:"sourceChain,omitempty"`
	CreatedAt   time.Time     `json:"createdAt"`
	Consumed    bool          `json:"consumed"`
}

// IsRetained reports whether the remainder is still material that counts
// toward the pool (pending before finalization, real after).
func (r *Remainder) IsRetained() bool {
	return r.Type == RemainderPending || r.Type == RemainderReal
}

// Clone returns a deep copy of the remainder.
func (r *Remainder) Clone() Remainder {
	c := *r
	if r.SourceChain != nil {
		c.SourceChain = append([]string(nil), r.SourceChain...)
	}
	return c
}
