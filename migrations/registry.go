package migrations

import (
	"context"
	"fmt"
	"io/fs"
	"regexp"
	"slices"
	"sort"
	"strings"

	search "github.com/goliatone/go-search"
	sqlstore "github.com/goliatone/go-search/store/sql"
)

const (
	DialectPostgres = "postgres"
	DialectSQLite   = "sqlite"

	DefaultLabel = "go-search"
	rootPath     = "data/sql/migrations"
)

// IndexTables lists the tables the sql ordered index reads and writes. Every
// dialect's up migrations must create all of them.
var IndexTables = []string{
	"search_short_ids",
	"search_resources",
	"search_resource_groups",
}

var createTablePattern = regexp.MustCompile(`(?i)create\s+table\s+(?:if\s+not\s+exists\s+)?"?([a-z_][a-z0-9_]*)"?`)

// Source is one dialect's migration directory.
type Source struct {
	Dialect string
	Path    string
	FS      fs.FS
	Tables  []string
}

// Plan describes what Register handed to the persistence layer.
type Plan struct {
	Label    string
	Dialects []string
	Sources  []Source
}

type RegisterFunc func(ctx context.Context, dialect string, label string, fsys fs.FS) error

type Option func(*Plan)

func WithLabel(label string) Option {
	return func(p *Plan) {
		if trimmed := strings.TrimSpace(label); trimmed != "" {
			p.Label = trimmed
		}
	}
}

// WithDialects restricts registration to the given dialects. Driver names
// such as "sqlite3", "pg" or "postgresql" are accepted; unknown names are
// kept so Register can report them.
func WithDialects(names ...string) Option {
	return func(p *Plan) {
		next := make([]string, 0, len(names))
		for _, name := range names {
			if strings.TrimSpace(name) == "" {
				continue
			}
			dialect, err := DialectForDriver(name)
			if err != nil {
				dialect = strings.ToLower(strings.TrimSpace(name))
			}
			if !slices.Contains(next, dialect) {
				next = append(next, dialect)
			}
		}
		if len(next) > 0 {
			p.Dialects = next
		}
	}
}

// WithSources replaces the embedded migration tree.
func WithSources(sources ...Source) Option {
	return func(p *Plan) {
		next := make([]Source, 0, len(sources))
		for _, source := range sources {
			dialect := strings.ToLower(strings.TrimSpace(source.Dialect))
			if dialect == "" || source.FS == nil {
				continue
			}
			source.Dialect = dialect
			next = append(next, source)
		}
		if len(next) > 0 {
			p.Sources = next
		}
	}
}

// DialectForDriver maps a sql driver name to its migration dialect.
func DialectForDriver(driver string) (string, error) {
	switch sqlstore.NormalizeDriver(driver) {
	case sqlstore.DriverPostgres:
		return DialectPostgres, nil
	case sqlstore.DriverSQLite:
		return DialectSQLite, nil
	default:
		return "", fmt.Errorf("migrations: no dialect for driver %q", driver)
	}
}

// Sources resolves the postgres and sqlite migration directories from root,
// defaulting to the embedded tree.
func Sources(root ...fs.FS) ([]Source, error) {
	tree := search.GetMigrationsFS()
	if len(root) > 0 && root[0] != nil {
		tree = root[0]
	}

	base, err := fs.Sub(tree, rootPath)
	if err != nil {
		return nil, fmt.Errorf("migrations: resolve %s: %w", rootPath, err)
	}
	sqliteFS, err := fs.Sub(base, "sqlite")
	if err != nil {
		return nil, fmt.Errorf("migrations: resolve sqlite migrations: %w", err)
	}

	sources := []Source{
		{Dialect: DialectPostgres, Path: rootPath, FS: base},
		{Dialect: DialectSQLite, Path: rootPath + "/sqlite", FS: sqliteFS},
	}
	for i := range sources {
		tables, err := createdTables(sources[i].FS)
		if err != nil {
			return nil, fmt.Errorf("migrations: %s (%s): %w", sources[i].Dialect, sources[i].Path, err)
		}
		sources[i].Tables = tables
	}
	return sources, nil
}

// Register validates the migration sources for the selected dialects and
// hands each one to registerFn.
func Register(ctx context.Context, registerFn RegisterFunc, opts ...Option) (Plan, error) {
	plan := Plan{
		Label:    DefaultLabel,
		Dialects: []string{DialectPostgres, DialectSQLite},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&plan)
		}
	}
	if registerFn == nil {
		return plan, fmt.Errorf("migrations: register function is required")
	}

	if len(plan.Sources) == 0 {
		sources, err := Sources()
		if err != nil {
			return plan, err
		}
		plan.Sources = sources
	}

	for _, dialect := range plan.Dialects {
		source, ok := findSource(plan.Sources, dialect)
		if !ok {
			return plan, fmt.Errorf("migrations: no migrations for dialect %q", dialect)
		}
		if source.Tables == nil {
			tables, err := createdTables(source.FS)
			if err != nil {
				return plan, fmt.Errorf("migrations: %s (%s): %w", dialect, source.Path, err)
			}
			source.Tables = tables
		}
		if missing := missingTables(source.Tables); len(missing) > 0 {
			return plan, fmt.Errorf("migrations: %s migrations do not create %s", dialect, strings.Join(missing, ", "))
		}
		if err := registerFn(ctx, dialect, plan.Label, source.FS); err != nil {
			return plan, fmt.Errorf("migrations: register %s (%s): %w", dialect, source.Path, err)
		}
	}

	return plan, nil
}

func findSource(sources []Source, dialect string) (Source, bool) {
	for _, source := range sources {
		if source.Dialect == dialect {
			return source, true
		}
	}
	return Source{}, false
}

// createdTables scans the *.up.sql files in name order for CREATE TABLE
// statements.
func createdTables(fsys fs.FS) ([]string, error) {
	matches, err := fs.Glob(fsys, "*.up.sql")
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("no *.up.sql files")
	}
	sort.Strings(matches)

	tables := []string{}
	for _, name := range matches {
		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		for _, match := range createTablePattern.FindAllStringSubmatch(string(content), -1) {
			table := strings.ToLower(match[1])
			if !slices.Contains(tables, table) {
				tables = append(tables, table)
			}
		}
	}
	return tables, nil
}

func missingTables(created []string) []string {
	var missing []string
	for _, table := range IndexTables {
		if !slices.Contains(created, table) {
			missing = append(missing, table)
		}
	}
	return missing
}
