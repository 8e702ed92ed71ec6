package sqlstore

import (
	"strings"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
)

// keyedRecord is a row with a string uuid primary key and a natural key that
// is unique within an org.
type keyedRecord interface {
	*shortIDRecord | *resourceRecord
	rowID() *string
	naturalKey() string
}

func (r *shortIDRecord) rowID() *string {
	if r == nil {
		return nil
	}
	return &r.ID
}

func (r *shortIDRecord) naturalKey() string {
	if r == nil {
		return ""
	}
	return r.ShortKey
}

func (r *resourceRecord) rowID() *string {
	if r == nil {
		return nil
	}
	return &r.ID
}

func (r *resourceRecord) naturalKey() string {
	if r == nil {
		return ""
	}
	return r.ResourceID
}

func shortIDHandlers() repository.ModelHandlers[*shortIDRecord] {
	return keyedHandlers(func() *shortIDRecord { return &shortIDRecord{} }, "short_key")
}

func resourceHandlers() repository.ModelHandlers[*resourceRecord] {
	return keyedHandlers(func() *resourceRecord { return &resourceRecord{} }, "resource_id")
}

func keyedHandlers[T keyedRecord](newRecord func() T, identifier string) repository.ModelHandlers[T] {
	return repository.ModelHandlers[T]{
		NewRecord: newRecord,
		GetID: func(record T) uuid.UUID {
			id := record.rowID()
			if id == nil {
				return uuid.Nil
			}
			return parseUUID(*id)
		},
		SetID: func(record T, value uuid.UUID) {
			if id := record.rowID(); id != nil {
				*id = value.String()
			}
		},
		GetIdentifier: func() string {
			return identifier
		},
		GetIdentifierValue: func(record T) string {
			return strings.TrimSpace(record.naturalKey())
		},
	}
}

func parseUUID(value string) uuid.UUID {
	parsed, err := uuid.Parse(strings.TrimSpace(value))
	if err != nil {
		return uuid.Nil
	}
	return parsed
}
