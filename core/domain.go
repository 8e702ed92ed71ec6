package core

import "strings"

const (
	// CanonicalWidth is the fixed width of a canonical short id.
	CanonicalWidth = 9
	// ShortFragmentWidth is the longest fragment that still gets the reserved
	// high-order segment prepended.
	ShortFragmentWidth = 6
	// ReservedSegment is the default high-order segment for short fragments.
	ReservedSegment = "000"
)

const (
	CollectionShortIDs  = "short_ids"
	CollectionResources = "resources"
)

const (
	FieldID       = "id"
	FieldShortID  = "shortId"
	FieldLongID   = "longId"
	FieldGroups   = "groups"
	FieldInternal = "_id"
)

// SearchRange is a lexicographic range over canonical ids.
//
// Lower == Upper denotes an exact match. An empty Upper denotes a range that is
// unbounded above; such ranges are exempt from the Lower <= Upper ordering that
// holds for every bounded range.
type SearchRange struct {
	Lower string
	Upper string
}

func (r SearchRange) IsExact() bool {
	return r.Lower != "" && r.Lower == r.Upper
}

func (r SearchRange) IsUnbounded() bool {
	return r.Upper == ""
}

// Cursor is an opaque position marker minted by an OrderedIndex.
type Cursor string

func (c Cursor) IsZero() bool {
	return strings.TrimSpace(string(c)) == ""
}

type PageParams struct {
	Cursor Cursor `json:"cursor,omitempty"`
	Limit  int    `json:"limit"`
}

// ResultProjection is the caller-visible view of an indexed record.
type ResultProjection struct {
	ID      string            `json:"id"`
	ShortID *string           `json:"short_id,omitempty"`
	Groups  map[string]string `json:"groups,omitempty"`
}

type SearchResult[T any] struct {
	Results T          `json:"results"`
	Params  PageParams `json:"params"`
}

// RawRecord is a record as stored in the ordered index.
type RawRecord map[string]any

type Operator string

const (
	OpGTE Operator = ">="
	OpLTE Operator = "<="
	OpLT  Operator = "<"
	OpEQ  Operator = "=="
)

type Predicate struct {
	Field string
	Op    Operator
	Value string
}

// Matches reports whether value satisfies the predicate under string order.
func (p Predicate) Matches(value string) bool {
	switch p.Op {
	case OpGTE:
		return value >= p.Value
	case OpLTE:
		return value <= p.Value
	case OpLT:
		return value < p.Value
	case OpEQ:
		return value == p.Value
	default:
		return false
	}
}

type IndexQuery struct {
	Scope      string
	Collection string
	Where      []Predicate
	OrderBy    string
	StartAfter Cursor
	Limit      int
}

// IndexPage is one scanned page. Last identifies the position of the final
// scanned record, internal records included.
type IndexPage struct {
	Records []RawRecord
	Last    Cursor
}

type ShortIDEntry struct {
	ShortID  string
	LongID   string
	Internal bool
}

type ResourceEntry struct {
	ID       string
	Groups   map[string]string
	Internal bool
}

func GroupField(group string) string {
	return FieldGroups + "." + strings.TrimSpace(group)
}

// SplitGroupField returns the group name of a nested groups.<name> field.
func SplitGroupField(field string) (string, bool) {
	name, ok := strings.CutPrefix(strings.TrimSpace(field), FieldGroups+".")
	if !ok || strings.TrimSpace(name) == "" {
		return "", false
	}
	return name, true
}
