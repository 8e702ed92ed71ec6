package sqlstore_test

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"testing"
	"time"

	persistence "github.com/goliatone/go-persistence-bun"
	"github.com/goliatone/go-search/core"
	searchmigrations "github.com/goliatone/go-search/migrations"
	sqlstore "github.com/goliatone/go-search/store/sql"
	_ "github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun/dialect/sqlitedialect"
)

type testPersistenceConfig struct {
	driver string
	server string
}

func (c testPersistenceConfig) GetDebug() bool {
	return false
}

func (c testPersistenceConfig) GetDriver() string {
	return c.driver
}

func (c testPersistenceConfig) GetServer() string {
	return c.server
}

func (c testPersistenceConfig) GetPingTimeout() time.Duration {
	return time.Second
}

func (c testPersistenceConfig) GetOtelIdentifier() string {
	return "go-search-tests"
}

func TestMigrationSmokeApplySQLite(t *testing.T) {
	client, cleanup := newSQLiteClient(t)
	defer cleanup()

	for _, table := range []string{"search_short_ids", "search_resources", "search_resource_groups"} {
		var tableName string
		if err := client.DB().NewRaw(
			"SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?",
			table,
		).Scan(context.Background(), &tableName); err != nil {
			t.Fatalf("query sqlite master for %s: %v", table, err)
		}
		if tableName != table {
			t.Fatalf("expected %s table, got %q", table, tableName)
		}
	}
}

func TestIndex_ShortIDRangePaging(t *testing.T) {
	ctx := context.Background()
	client, cleanup := newSQLiteClient(t)
	defer cleanup()

	index, err := sqlstore.NewIndexFromPersistence(client)
	if err != nil {
		t.Fatalf("new index: %v", err)
	}
	for i := 0; i < 12; i++ {
		if err := index.PutShortID(ctx, "org_1", core.ShortIDEntry{
			ShortID:  fmt.Sprintf("000-100-%03d", i),
			LongID:   fmt.Sprintf("res_%03d", i),
			Internal: i == 4,
		}); err != nil {
			t.Fatalf("put short id %d: %v", i, err)
		}
	}
	if err := index.PutShortID(ctx, "org_1", core.ShortIDEntry{ShortID: "000-101-000", LongID: "res_out"}); err != nil {
		t.Fatalf("put out of range id: %v", err)
	}
	if err := index.PutShortID(ctx, "org_2", core.ShortIDEntry{ShortID: "000-100-001", LongID: "res_other"}); err != nil {
		t.Fatalf("put other org id: %v", err)
	}

	svc, err := core.NewService(core.DefaultConfig(), core.WithIndex(index))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	var ids []string
	params := core.PageParams{Limit: 5}
	pages := 0
	for {
		result, err := svc.SearchByShortID(ctx, "org_1", "100", params)
		if err != nil {
			t.Fatalf("search page %d: %v", pages, err)
		}
		if result.Params.Cursor.IsZero() {
			break
		}
		pages++
		for _, item := range result.Results {
			ids = append(ids, item.ID)
		}
		params = result.Params
		if pages > 10 {
			t.Fatalf("pagination did not terminate")
		}
	}
	if pages != 3 {
		t.Fatalf("expected ceil(12/5)=3 pages, got %d", pages)
	}
	if len(ids) != 11 {
		t.Fatalf("expected 11 visible ids, got %d: %v", len(ids), ids)
	}
	for i := 1; i < len(ids); i++ {
		if ids[i-1] >= ids[i] {
			t.Fatalf("expected ascending order, got %v", ids)
		}
	}
	for _, id := range ids {
		if id == "res_004" || id == "res_out" || id == "res_other" {
			t.Fatalf("unexpected id %s in results", id)
		}
	}

	exact, err := svc.SearchByShortID(ctx, "org_1", "100-007", core.PageParams{})
	if err != nil {
		t.Fatalf("exact search: %v", err)
	}
	if len(exact.Results) != 1 || exact.Results[0].ID != "res_007" {
		t.Fatalf("unexpected exact result %+v", exact.Results)
	}
	if exact.Results[0].ShortID == nil || *exact.Results[0].ShortID != "000100007" {
		t.Fatalf("expected canonical short id on projection")
	}
}

func TestIndex_PutShortIDUpserts(t *testing.T) {
	ctx := context.Background()
	client, cleanup := newSQLiteClient(t)
	defer cleanup()

	index, err := sqlstore.NewIndexFromPersistence(client)
	if err != nil {
		t.Fatalf("new index: %v", err)
	}
	if err := index.PutShortID(ctx, "org_1", core.ShortIDEntry{ShortID: "000100000", LongID: "res_1"}); err != nil {
		t.Fatalf("first put: %v", err)
	}
	if err := index.PutShortID(ctx, "org_1", core.ShortIDEntry{ShortID: "000-100-000", LongID: "res_2"}); err != nil {
		t.Fatalf("second put: %v", err)
	}

	page, err := index.Query(ctx, core.IndexQuery{
		Scope:      "org_1",
		Collection: core.CollectionShortIDs,
		Where:      []core.Predicate{{Field: core.FieldID, Op: core.OpEQ, Value: "000100000"}},
		Limit:      10,
	})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(page.Records) != 1 || page.Records[0][core.FieldLongID] != "res_2" {
		t.Fatalf("expected single upserted record, got %+v", page.Records)
	}
}

func TestIndex_GroupPrefixSearch(t *testing.T) {
	ctx := context.Background()
	client, cleanup := newSQLiteClient(t)
	defer cleanup()

	index, err := sqlstore.NewIndexFromPersistence(client)
	if err != nil {
		t.Fatalf("new index: %v", err)
	}
	entries := []core.ResourceEntry{
		{ID: "res_a", Groups: map[string]string{"team": "alpha", "region": "eu"}},
		{ID: "res_b", Groups: map[string]string{"team": "alphabet"}},
		{ID: "res_c", Groups: map[string]string{"team": "beta"}},
		{ID: "res_d", Groups: map[string]string{"region": "alpine"}},
		{ID: "res_e", Groups: map[string]string{"team": "alps"}, Internal: true},
		{ID: "res_f", Groups: map[string]string{"team": "alpaca"}},
	}
	for _, entry := range entries {
		if err := index.PutResource(ctx, "org_1", entry); err != nil {
			t.Fatalf("put resource %s: %v", entry.ID, err)
		}
	}
	// Regrouping replaces the previous memberships.
	if err := index.PutResource(ctx, "org_1", core.ResourceEntry{ID: "res_f", Groups: map[string]string{"team": "gamma"}}); err != nil {
		t.Fatalf("regroup res_f: %v", err)
	}

	svc, err := core.NewService(core.DefaultConfig(), core.WithIndex(index))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	first, err := svc.SearchInGroup(ctx, "org_1", "team", "alp", core.PageParams{Limit: 2})
	if err != nil {
		t.Fatalf("first group page: %v", err)
	}
	if len(first.Results) != 2 || first.Results[0].ID != "res_a" || first.Results[1].ID != "res_b" {
		t.Fatalf("unexpected first group page %+v", first.Results)
	}
	if first.Results[0].Groups["region"] != "eu" {
		t.Fatalf("expected full group map, got %+v", first.Results[0].Groups)
	}

	second, err := svc.SearchInGroup(ctx, "org_1", "team", "alp", first.Params)
	if err != nil {
		t.Fatalf("second group page: %v", err)
	}
	if len(second.Results) != 0 {
		t.Fatalf("expected internal-only second page to be empty, got %+v", second.Results)
	}
	if second.Params.Cursor.IsZero() {
		t.Fatalf("expected cursor to advance past internal record")
	}

	third, err := svc.SearchInGroup(ctx, "org_1", "team", "alp", second.Params)
	if err != nil {
		t.Fatalf("third group page: %v", err)
	}
	if len(third.Results) != 0 || !third.Params.Cursor.IsZero() {
		t.Fatalf("expected exhausted group search, got %+v", third)
	}
}

func TestIndex_GroupSearchMatchesSupplementaryPlaneValues(t *testing.T) {
	ctx := context.Background()
	client, cleanup := newSQLiteClient(t)
	defer cleanup()

	index, err := sqlstore.NewIndexFromPersistence(client)
	if err != nil {
		t.Fatalf("new index: %v", err)
	}
	entries := []core.ResourceEntry{
		{ID: "res_a", Groups: map[string]string{"site": "ab"}},
		{ID: "res_b", Groups: map[string]string{"site": "abc"}},
		{ID: "res_c", Groups: map[string]string{"site": "ab\uf8ff"}},
		{ID: "res_d", Groups: map[string]string{"site": "ab😀"}},
		{ID: "res_e", Groups: map[string]string{"site": "ac"}},
	}
	for _, entry := range entries {
		if err := index.PutResource(ctx, "org_1", entry); err != nil {
			t.Fatalf("put resource %s: %v", entry.ID, err)
		}
	}

	svc, err := core.NewService(core.DefaultConfig(), core.WithIndex(index))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	result, err := svc.SearchInGroup(ctx, "org_1", "site", "ab", core.PageParams{})
	if err != nil {
		t.Fatalf("group search: %v", err)
	}
	found := map[string]bool{}
	for _, item := range result.Results {
		found[item.ID] = true
	}
	if len(result.Results) != 4 || !found["res_d"] || found["res_e"] {
		t.Fatalf("expected the four ab* members including res_d, got %+v", result.Results)
	}
}

func TestIndex_RejectsUnsupportedQueries(t *testing.T) {
	ctx := context.Background()
	client, cleanup := newSQLiteClient(t)
	defer cleanup()

	index, err := sqlstore.NewIndexFromPersistence(client)
	if err != nil {
		t.Fatalf("new index: %v", err)
	}
	if _, err := index.Query(ctx, core.IndexQuery{Scope: "org_1", Collection: "unknown"}); err == nil {
		t.Fatalf("expected unknown collection to fail")
	}
	if _, err := index.Query(ctx, core.IndexQuery{
		Scope:      "org_1",
		Collection: core.CollectionShortIDs,
		Where:      []core.Predicate{{Field: core.FieldLongID, Op: core.OpEQ, Value: "x"}},
	}); err == nil {
		t.Fatalf("expected unsupported field to fail")
	}

	svc, err := core.NewService(core.DefaultConfig(), core.WithIndex(index))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	_, err = svc.SearchByShortID(ctx, "org_1", "100", core.PageParams{
		Cursor: core.EncodeSortKeyCursor(core.CollectionResources, "res_a"),
	})
	if !core.IsQueryExecutionError(err) {
		t.Fatalf("expected foreign cursor to surface as query execution error, got %v", err)
	}
}

func TestOpenDB_Drivers(t *testing.T) {
	db, err := sqlstore.OpenDB("sqlite", fmt.Sprintf("file:search-open-%d?mode=memory&cache=shared", time.Now().UnixNano()))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	defer func() { _ = db.Close() }()
	if err := db.PingContext(context.Background()); err != nil {
		t.Fatalf("ping sqlite: %v", err)
	}
	if _, err := sqlstore.OpenDB("oracle", "dsn"); err == nil {
		t.Fatalf("expected unsupported driver to fail")
	}
	if _, err := sqlstore.Dialect("pg"); err != nil {
		t.Fatalf("expected postgres dialect, got %v", err)
	}
	if got := sqlstore.NormalizeDriver(" PostgreSQL "); got != sqlstore.DriverPostgres {
		t.Fatalf("unexpected normalized driver %q", got)
	}
}

func newSQLiteClient(t *testing.T) (*persistence.Client, func()) {
	t.Helper()

	dsn := fmt.Sprintf(
		"file:search-test-%d?mode=memory&cache=shared&_foreign_keys=on",
		time.Now().UnixNano(),
	)
	sqlDB, err := sql.Open("sqlite3", dsn)
	if err != nil {
		t.Fatalf("open sqlite db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	cfg := testPersistenceConfig{
		driver: "sqlite3",
		server: dsn,
	}
	client, err := persistence.New(cfg, sqlDB, sqlitedialect.New())
	if err != nil {
		_ = sqlDB.Close()
		t.Fatalf("new persistence client: %v", err)
	}

	ctx := context.Background()
	_, err = searchmigrations.Register(ctx, func(_ context.Context, dialect string, _ string, fsys fs.FS) error {
		if dialect != searchmigrations.DialectSQLite {
			return nil
		}
		client.RegisterSQLMigrations(fsys)
		return nil
	}, searchmigrations.WithDialects(cfg.driver))
	if err != nil {
		_ = client.Close()
		t.Fatalf("register migrations: %v", err)
	}
	if err := client.Migrate(ctx); err != nil {
		_ = client.Close()
		t.Fatalf("migrate: %v", err)
	}

	return client, func() {
		_ = client.Close()
	}
}
