package core

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
)

// sortKeyPosition is the payload of cursors minted by key-ordered indexes.
type sortKeyPosition struct {
	Collection string `json:"c"`
	Key        string `json:"k"`
}

// EncodeSortKeyCursor mints an opaque cursor for the record with the given
// sort key. Callers must treat the result as opaque.
func EncodeSortKeyCursor(collection string, key string) Cursor {
	payload, err := json.Marshal(sortKeyPosition{Collection: collection, Key: key})
	if err != nil {
		return ""
	}
	return Cursor(base64.RawURLEncoding.EncodeToString(payload))
}

// DecodeSortKeyCursor reverses EncodeSortKeyCursor. The cursor must belong to
// the same collection it is replayed against.
func DecodeSortKeyCursor(collection string, cursor Cursor) (string, error) {
	raw := strings.TrimSpace(string(cursor))
	if raw == "" {
		return "", nil
	}
	payload, err := base64.RawURLEncoding.DecodeString(raw)
	if err != nil {
		return "", badInputError("search: invalid cursor encoding")
	}
	var position sortKeyPosition
	if err := json.Unmarshal(payload, &position); err != nil {
		return "", badInputError("search: invalid cursor payload")
	}
	if position.Collection != collection {
		return "", badInputError(fmt.Sprintf("search: cursor belongs to collection %q", position.Collection))
	}
	return position.Key, nil
}
