package core

import (
	"fmt"
	"strings"
)

// IsInternal reports whether a record carries a truthy internal marker.
func IsInternal(record RawRecord) bool {
	value, ok := record[FieldInternal]
	if !ok || value == nil {
		return false
	}
	switch typed := value.(type) {
	case bool:
		return typed
	case string:
		return typed != ""
	case int:
		return typed != 0
	case int32:
		return typed != 0
	case int64:
		return typed != 0
	case float64:
		return typed != 0
	default:
		return true
	}
}

type projector func(RawRecord) ResultProjection

func projectShortID(record RawRecord) ResultProjection {
	out := ResultProjection{ID: stringField(record, FieldLongID)}
	if shortID, ok := record[FieldShortID]; ok && shortID != nil {
		value := fmt.Sprint(shortID)
		out.ShortID = &value
	}
	return out
}

func projectGroupMember(record RawRecord) ResultProjection {
	return ResultProjection{
		ID:     stringField(record, FieldID),
		Groups: stringMapField(record, FieldGroups),
	}
}

func stringField(record RawRecord, field string) string {
	value, ok := record[field]
	if !ok || value == nil {
		return ""
	}
	if typed, ok := value.(string); ok {
		return typed
	}
	return fmt.Sprint(value)
}

func stringMapField(record RawRecord, field string) map[string]string {
	switch typed := record[field].(type) {
	case map[string]string:
		out := make(map[string]string, len(typed))
		for key, value := range typed {
			out[key] = value
		}
		return out
	case map[string]any:
		out := make(map[string]string, len(typed))
		for key, value := range typed {
			if value == nil {
				continue
			}
			out[key] = fmt.Sprint(value)
		}
		return out
	default:
		return nil
	}
}

// fieldValue resolves dotted paths such as groups.<name>.
func fieldValue(record RawRecord, field string) (string, bool) {
	if group, ok := SplitGroupField(field); ok {
		groups := stringMapField(record, FieldGroups)
		value, found := groups[group]
		return value, found
	}
	value, ok := record[strings.TrimSpace(field)]
	if !ok || value == nil {
		return "", false
	}
	return stringField(record, field), true
}
