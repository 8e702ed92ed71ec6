package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/goliatone/go-search/core"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Index is a relational OrderedIndex. Short ids live in search_short_ids
// ordered by short_key; resources live in search_resources with one row per
// group membership in search_resource_groups.
type Index struct {
	db        *bun.DB
	shortIDs  repository.Repository[*shortIDRecord]
	resources repository.Repository[*resourceRecord]
}

func NewIndex(db *bun.DB) (*Index, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	shortIDs := repository.NewRepository[*shortIDRecord](db, shortIDHandlers())
	if validator, ok := shortIDs.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid short id repository wiring: %w", err)
		}
	}
	resources := repository.NewRepository[*resourceRecord](db, resourceHandlers())
	if validator, ok := resources.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid resource repository wiring: %w", err)
		}
	}
	return &Index{
		db:        db,
		shortIDs:  shortIDs,
		resources: resources,
	}, nil
}

// NewIndexFromPersistence accepts a *bun.DB or any client exposing DB() *bun.DB,
// such as a go-persistence-bun client.
func NewIndexFromPersistence(client any) (*Index, error) {
	db, err := resolveBunDB(client)
	if err != nil {
		return nil, err
	}
	return NewIndex(db)
}

func (s *Index) Query(ctx context.Context, query core.IndexQuery) (core.IndexPage, error) {
	if s == nil || s.db == nil {
		return core.IndexPage{}, fmt.Errorf("sqlstore: index is not configured")
	}
	scope := strings.TrimSpace(query.Scope)
	if scope == "" {
		return core.IndexPage{}, fmt.Errorf("sqlstore: scope is required")
	}
	if orderBy := strings.TrimSpace(query.OrderBy); orderBy != "" && orderBy != core.FieldID {
		return core.IndexPage{}, fmt.Errorf("sqlstore: unsupported order field %q", orderBy)
	}
	after, err := core.DecodeSortKeyCursor(query.Collection, query.StartAfter)
	if err != nil {
		return core.IndexPage{}, err
	}

	switch query.Collection {
	case core.CollectionShortIDs:
		return s.queryShortIDs(ctx, scope, query, after)
	case core.CollectionResources:
		return s.queryResources(ctx, scope, query, after)
	default:
		return core.IndexPage{}, fmt.Errorf("sqlstore: unsupported collection %q", query.Collection)
	}
}

func (s *Index) queryShortIDs(
	ctx context.Context,
	scope string,
	query core.IndexQuery,
	after string,
) (core.IndexPage, error) {
	selectors := []repository.SelectCriteria{
		repository.SelectBy("org_id", "=", scope),
	}
	for _, predicate := range query.Where {
		if predicate.Field != core.FieldID && predicate.Field != core.FieldShortID {
			return core.IndexPage{}, fmt.Errorf("sqlstore: unsupported short id field %q", predicate.Field)
		}
		op, err := sqlOperator(predicate.Op)
		if err != nil {
			return core.IndexPage{}, err
		}
		selectors = append(selectors, repository.SelectBy("short_key", op, predicate.Value))
	}
	if after != "" {
		selectors = append(selectors, repository.SelectBy("short_key", ">", after))
	}
	selectors = append(selectors, repository.OrderBy("short_key ASC"))
	if query.Limit > 0 {
		selectors = append(selectors, repository.SelectPaginate(query.Limit, 0))
	}

	records, _, err := s.shortIDs.List(ctx, selectors...)
	if err != nil {
		return core.IndexPage{}, err
	}
	page := core.IndexPage{Records: make([]core.RawRecord, 0, len(records))}
	for _, record := range records {
		page.Records = append(page.Records, record.toRaw())
	}
	if len(records) > 0 {
		page.Last = core.EncodeSortKeyCursor(core.CollectionShortIDs, records[len(records)-1].ShortKey)
	}
	return page, nil
}

func (s *Index) queryResources(
	ctx context.Context,
	scope string,
	query core.IndexQuery,
	after string,
) (core.IndexPage, error) {
	records := []*resourceRecord{}
	q := s.db.NewSelect().
		Model(&records).
		Where("?TableAlias.org_id = ?", scope)

	groupPredicates := map[string][]core.Predicate{}
	groupOrder := []string{}
	for _, predicate := range query.Where {
		if name, ok := core.SplitGroupField(predicate.Field); ok {
			if _, seen := groupPredicates[name]; !seen {
				groupOrder = append(groupOrder, name)
			}
			groupPredicates[name] = append(groupPredicates[name], predicate)
			continue
		}
		if predicate.Field != core.FieldID {
			return core.IndexPage{}, fmt.Errorf("sqlstore: unsupported resource field %q", predicate.Field)
		}
		op, err := sqlOperator(predicate.Op)
		if err != nil {
			return core.IndexPage{}, err
		}
		q = q.Where("?TableAlias.resource_id "+op+" ?", predicate.Value)
	}
	for _, name := range groupOrder {
		sub := s.db.NewSelect().
			Model((*resourceGroupRecord)(nil)).
			ColumnExpr("1").
			Where("srg.org_id = sr.org_id").
			Where("srg.resource_id = sr.resource_id").
			Where("srg.group_name = ?", name)
		for _, predicate := range groupPredicates[name] {
			op, err := sqlOperator(predicate.Op)
			if err != nil {
				return core.IndexPage{}, err
			}
			sub = sub.Where("srg.group_value "+op+" ?", predicate.Value)
		}
		q = q.Where("EXISTS (?)", sub)
	}
	if after != "" {
		q = q.Where("?TableAlias.resource_id > ?", after)
	}
	q = q.OrderExpr("?TableAlias.resource_id ASC")
	if query.Limit > 0 {
		q = q.Limit(query.Limit)
	}
	if err := q.Scan(ctx); err != nil && err != sql.ErrNoRows {
		return core.IndexPage{}, err
	}

	groups, err := s.loadGroups(ctx, scope, records)
	if err != nil {
		return core.IndexPage{}, err
	}
	page := core.IndexPage{Records: make([]core.RawRecord, 0, len(records))}
	for _, record := range records {
		page.Records = append(page.Records, record.toRaw(groups[record.ResourceID]))
	}
	if len(records) > 0 {
		page.Last = core.EncodeSortKeyCursor(core.CollectionResources, records[len(records)-1].ResourceID)
	}
	return page, nil
}

func (s *Index) loadGroups(ctx context.Context, scope string, records []*resourceRecord) (map[string]map[string]string, error) {
	out := map[string]map[string]string{}
	if len(records) == 0 {
		return out, nil
	}
	ids := make([]string, 0, len(records))
	for _, record := range records {
		ids = append(ids, record.ResourceID)
	}
	rows := []resourceGroupRecord{}
	err := s.db.NewSelect().
		Model(&rows).
		Where("?TableAlias.org_id = ?", scope).
		Where("?TableAlias.resource_id IN (?)", bun.In(ids)).
		Scan(ctx)
	if err != nil && err != sql.ErrNoRows {
		return nil, err
	}
	for _, row := range rows {
		if out[row.ResourceID] == nil {
			out[row.ResourceID] = map[string]string{}
		}
		out[row.ResourceID][row.GroupName] = row.GroupValue
	}
	return out, nil
}

func (s *Index) PutShortID(ctx context.Context, orgID string, entry core.ShortIDEntry) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: index is not configured")
	}
	orgID = strings.TrimSpace(orgID)
	if orgID == "" {
		return fmt.Errorf("sqlstore: org id is required")
	}
	shortKey, err := core.NormalizeShortID(entry.ShortID)
	if err != nil {
		return err
	}
	longID := strings.TrimSpace(entry.LongID)
	if longID == "" {
		return fmt.Errorf("sqlstore: long id is required")
	}
	now := time.Now().UTC()

	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		record, err := findShortIDTx(ctx, tx, orgID, shortKey)
		if err != nil {
			return err
		}
		if record == nil {
			record = &shortIDRecord{
				ID:        uuid.NewString(),
				OrgID:     orgID,
				ShortKey:  shortKey,
				LongID:    longID,
				Internal:  entry.Internal,
				CreatedAt: now,
				UpdatedAt: now,
			}
			if _, createErr := s.shortIDs.CreateTx(ctx, tx, record); createErr != nil {
				if !isUniqueViolation(createErr) {
					return createErr
				}
				record, err = findShortIDTx(ctx, tx, orgID, shortKey)
				if err != nil {
					return err
				}
				if record == nil {
					return createErr
				}
			} else {
				return nil
			}
		}

		record.LongID = longID
		record.Internal = entry.Internal
		record.UpdatedAt = now
		_, updateErr := tx.NewUpdate().Model(record).Where("id = ?", record.ID).Exec(ctx)
		return updateErr
	})
}

func (s *Index) PutResource(ctx context.Context, orgID string, entry core.ResourceEntry) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: index is not configured")
	}
	orgID = strings.TrimSpace(orgID)
	resourceID := strings.TrimSpace(entry.ID)
	if orgID == "" || resourceID == "" {
		return fmt.Errorf("sqlstore: org id and resource id are required")
	}
	now := time.Now().UTC()

	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		record, err := findResourceTx(ctx, tx, orgID, resourceID)
		if err != nil {
			return err
		}
		if record == nil {
			record = &resourceRecord{
				ID:         uuid.NewString(),
				OrgID:      orgID,
				ResourceID: resourceID,
				Internal:   entry.Internal,
				CreatedAt:  now,
				UpdatedAt:  now,
			}
			if _, createErr := s.resources.CreateTx(ctx, tx, record); createErr != nil {
				return createErr
			}
		} else {
			record.Internal = entry.Internal
			record.UpdatedAt = now
			if _, updateErr := tx.NewUpdate().Model(record).Where("id = ?", record.ID).Exec(ctx); updateErr != nil {
				return updateErr
			}
		}

		if _, err := tx.NewDelete().
			Model((*resourceGroupRecord)(nil)).
			Where("org_id = ?", orgID).
			Where("resource_id = ?", resourceID).
			Exec(ctx); err != nil {
			return err
		}
		rows := make([]resourceGroupRecord, 0, len(entry.Groups))
		for name, value := range entry.Groups {
			name = strings.TrimSpace(name)
			if name == "" {
				continue
			}
			rows = append(rows, resourceGroupRecord{
				ID:         uuid.NewString(),
				OrgID:      orgID,
				ResourceID: resourceID,
				GroupName:  name,
				GroupValue: value,
				CreatedAt:  now,
			})
		}
		if len(rows) == 0 {
			return nil
		}
		_, err = tx.NewInsert().Model(&rows).Exec(ctx)
		return err
	})
}

func findShortIDTx(ctx context.Context, tx bun.Tx, orgID string, shortKey string) (*shortIDRecord, error) {
	record := &shortIDRecord{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.org_id = ?", orgID).
		Where("?TableAlias.short_key = ?", shortKey).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return record, nil
}

func findResourceTx(ctx context.Context, tx bun.Tx, orgID string, resourceID string) (*resourceRecord, error) {
	record := &resourceRecord{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.org_id = ?", orgID).
		Where("?TableAlias.resource_id = ?", resourceID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return record, nil
}

func sqlOperator(op core.Operator) (string, error) {
	switch op {
	case core.OpGTE:
		return ">=", nil
	case core.OpLTE:
		return "<=", nil
	case core.OpLT:
		return "<", nil
	case core.OpEQ:
		return "=", nil
	default:
		return "", fmt.Errorf("sqlstore: unsupported operator %q", op)
	}
}

func isUniqueViolation(err error) bool {
	message := strings.ToLower(strings.TrimSpace(err.Error()))
	return strings.Contains(message, "unique constraint failed") ||
		strings.Contains(message, "duplicate key value violates unique constraint")
}

var (
	_ core.OrderedIndex = (*Index)(nil)
	_ core.IndexWriter  = (*Index)(nil)
)
