package core

import (
	"strconv"
	"strings"
)

// DefaultGroupSentinel is U+10FFFF, the highest code point. Its UTF-8
// encoding sorts after every other valid sequence under byte ordering, so
// query+sentinel bounds every value that starts with query, supplementary
// planes included. Stores must compare keys bytewise (binary or C collation).
const DefaultGroupSentinel = "\U0010FFFF"

// DeriveRange turns a raw short id fragment into the lexicographic range of
// canonical ids it denotes.
//
//	100-000  -> 000100000, 000100000 (exact)
//	100      -> 000100000, 000101000
//	1001     -> 000100100, 000100200
//	00010001 -> 000100010, 000100020
//
// A prefix whose successor no longer fits its own width (e.g. 9999999) yields
// an unbounded range: every id at or after the lower bound shares the prefix.
func DeriveRange(fragment string) (SearchRange, error) {
	base := digitsOnly(fragment)
	if base == "" || len(base) > CanonicalWidth {
		return SearchRange{}, invalidFragmentError(fragment, len(base))
	}
	if len(base) <= ShortFragmentWidth {
		base = ReservedSegment + base
	}
	if len(base) == CanonicalWidth {
		return SearchRange{Lower: base, Upper: base}, nil
	}

	value, err := strconv.ParseUint(base, 10, 64)
	if err != nil {
		return SearchRange{}, arithmeticError(base, err)
	}
	next := strconv.FormatUint(value+1, 10)
	lower := rightPad(base, CanonicalWidth)
	if len(next) > len(base) {
		return SearchRange{Lower: lower}, nil
	}
	upper := rightPad(leftPad(next, len(base)), CanonicalWidth)
	return SearchRange{Lower: lower, Upper: upper}, nil
}

// GroupPrefixRange emulates a prefix scan over a string field: every value
// starting with query lies in [query, query+sentinel).
func GroupPrefixRange(query string, sentinel string) (SearchRange, error) {
	if query == "" {
		return SearchRange{}, badInputError("search: group query is required")
	}
	if sentinel == "" {
		sentinel = DefaultGroupSentinel
	}
	return SearchRange{Lower: query, Upper: query + sentinel}, nil
}

// NormalizeShortID canonicalises a stored short id. It accepts the same
// inputs as DeriveRange but only when they denote a single id.
func NormalizeShortID(raw string) (string, error) {
	rng, err := DeriveRange(raw)
	if err != nil {
		return "", err
	}
	if !rng.IsExact() {
		return "", badInputError("search: short id " + strconv.Quote(raw) + " is incomplete")
	}
	return rng.Lower, nil
}

// FormatShortID renders a canonical id as 000-100-000.
func FormatShortID(id string) string {
	if len(id) != CanonicalWidth {
		return id
	}
	return id[0:3] + "-" + id[3:6] + "-" + id[6:9]
}

func digitsOnly(value string) string {
	var b strings.Builder
	b.Grow(len(value))
	for i := 0; i < len(value); i++ {
		if c := value[i]; c >= '0' && c <= '9' {
			b.WriteByte(c)
		}
	}
	return b.String()
}

func leftPad(value string, width int) string {
	if len(value) >= width {
		return value
	}
	return strings.Repeat("0", width-len(value)) + value
}

func rightPad(value string, width int) string {
	if len(value) >= width {
		return value
	}
	return value + strings.Repeat("0", width-len(value))
}
