package core

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// MemoryIndex is an in-process OrderedIndex and IndexWriter. Records are
// keyed by their id within a scope and collection.
type MemoryIndex struct {
	mu      sync.RWMutex
	records map[string]map[string]RawRecord
}

func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{records: map[string]map[string]RawRecord{}}
}

func (m *MemoryIndex) PutShortID(_ context.Context, orgID string, entry ShortIDEntry) error {
	if m == nil {
		return fmt.Errorf("core: memory index is nil")
	}
	orgID = strings.TrimSpace(orgID)
	if orgID == "" {
		return badInputError("search: org id is required")
	}
	id, err := NormalizeShortID(entry.ShortID)
	if err != nil {
		return err
	}
	record := RawRecord{
		FieldID:      id,
		FieldShortID: id,
		FieldLongID:  strings.TrimSpace(entry.LongID),
	}
	if entry.Internal {
		record[FieldInternal] = true
	}
	m.put(orgID, CollectionShortIDs, id, record)
	return nil
}

func (m *MemoryIndex) PutResource(_ context.Context, orgID string, entry ResourceEntry) error {
	if m == nil {
		return fmt.Errorf("core: memory index is nil")
	}
	orgID = strings.TrimSpace(orgID)
	id := strings.TrimSpace(entry.ID)
	if orgID == "" || id == "" {
		return badInputError("search: org id and resource id are required")
	}
	groups := make(map[string]any, len(entry.Groups))
	for name, value := range entry.Groups {
		groups[name] = value
	}
	record := RawRecord{
		FieldID:     id,
		FieldGroups: groups,
	}
	if entry.Internal {
		record[FieldInternal] = true
	}
	m.put(orgID, CollectionResources, id, record)
	return nil
}

func (m *MemoryIndex) put(orgID string, collection string, id string, record RawRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := memoryBucketKey(orgID, collection)
	bucket, ok := m.records[key]
	if !ok {
		bucket = map[string]RawRecord{}
		m.records[key] = bucket
	}
	bucket[id] = record
}

func (m *MemoryIndex) Query(ctx context.Context, query IndexQuery) (IndexPage, error) {
	if m == nil {
		return IndexPage{}, fmt.Errorf("core: memory index is nil")
	}
	if err := ctx.Err(); err != nil {
		return IndexPage{}, err
	}
	orderBy := strings.TrimSpace(query.OrderBy)
	if orderBy == "" {
		orderBy = FieldID
	}
	after, err := DecodeSortKeyCursor(query.Collection, query.StartAfter)
	if err != nil {
		return IndexPage{}, err
	}
	hasCursor := !query.StartAfter.IsZero()

	type candidate struct {
		key    string
		record RawRecord
	}

	m.mu.RLock()
	bucket := m.records[memoryBucketKey(strings.TrimSpace(query.Scope), query.Collection)]
	candidates := make([]candidate, 0, len(bucket))
	for _, record := range bucket {
		key, ok := fieldValue(record, orderBy)
		if !ok || (hasCursor && key <= after) || !matchesAll(record, query.Where) {
			continue
		}
		candidates = append(candidates, candidate{key: key, record: cloneRecord(record)})
	}
	m.mu.RUnlock()

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].key < candidates[j].key
	})
	if query.Limit > 0 && len(candidates) > query.Limit {
		candidates = candidates[:query.Limit]
	}

	page := IndexPage{Records: make([]RawRecord, 0, len(candidates))}
	for _, item := range candidates {
		page.Records = append(page.Records, item.record)
	}
	if len(candidates) > 0 {
		page.Last = EncodeSortKeyCursor(query.Collection, candidates[len(candidates)-1].key)
	}
	return page, nil
}

func matchesAll(record RawRecord, predicates []Predicate) bool {
	for _, predicate := range predicates {
		value, ok := fieldValue(record, predicate.Field)
		if !ok || !predicate.Matches(value) {
			return false
		}
	}
	return true
}

func cloneRecord(record RawRecord) RawRecord {
	out := make(RawRecord, len(record))
	for key, value := range record {
		if nested, ok := value.(map[string]any); ok {
			copied := make(map[string]any, len(nested))
			for nestedKey, nestedValue := range nested {
				copied[nestedKey] = nestedValue
			}
			value = copied
		}
		out[key] = value
	}
	return out
}

func memoryBucketKey(orgID string, collection string) string {
	return orgID + "/" + collection
}

var (
	_ OrderedIndex = (*MemoryIndex)(nil)
	_ IndexWriter  = (*MemoryIndex)(nil)
)
