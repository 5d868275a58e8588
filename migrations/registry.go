package migrations

import (
	"context"
	"fmt"
	"io/fs"
	"slices"
	"strings"

	persistence "github.com/goliatone/go-persistence-bun"

	integrations "github.com/goliatone/go-integrations"
)

const (
	DialectPostgres = "postgres"
	DialectSQLite   = "sqlite"

	// DefaultSourceLabel tags the integration tables in the host's migration
	// history.
	DefaultSourceLabel = "go-integrations"

	migrationsDir = "data/sql/migrations"
)

// dialectDirs maps each dialect onto its directory under the migrations
// root. Postgres files live at the root itself.
var dialectDirs = []struct {
	dialect string
	dir     string
}{
	{DialectPostgres, "."},
	{DialectSQLite, "sqlite"},
}

// Source is one dialect's migration tree.
type Source struct {
	Dialect string
	Path    string
	FS      fs.FS
}

type Registration struct {
	SourceLabel string
	Dialects    []string
	Sources     []Source
}

// RegisterFunc receives one dialect's migrations. It is called once per
// selected dialect, postgres first.
type RegisterFunc func(ctx context.Context, dialect string, sourceLabel string, fsys fs.FS) error

type Option func(*Registration)

func WithSourceLabel(label string) Option {
	return func(r *Registration) {
		if label = strings.TrimSpace(label); label != "" {
			r.SourceLabel = label
		}
	}
}

// WithDialects limits registration to the named dialects.
func WithDialects(dialects ...string) Option {
	return func(r *Registration) {
		if selected := normalizeDialects(dialects); len(selected) > 0 {
			r.Dialects = selected
		}
	}
}

// WithSources replaces the embedded migration trees.
func WithSources(sources ...Source) Option {
	return func(r *Registration) {
		kept := make([]Source, 0, len(sources))
		for _, source := range sources {
			dialect := strings.ToLower(strings.TrimSpace(source.Dialect))
			if dialect == "" || source.FS == nil {
				continue
			}
			source.Dialect = dialect
			kept = append(kept, source)
		}
		if len(kept) > 0 {
			r.Sources = kept
		}
	}
}

// Sources resolves the per-dialect trees under data/sql/migrations of root,
// the embedded tree by default. Every dialect needs at least one up file and
// every up file needs a matching down file.
func Sources(root ...fs.FS) ([]Source, error) {
	var tree fs.FS = integrations.GetMigrationsFS()
	if len(root) > 0 && root[0] != nil {
		tree = root[0]
	}
	base, err := fs.Sub(tree, migrationsDir)
	if err != nil {
		return nil, fmt.Errorf("migrations: %s not found: %w", migrationsDir, err)
	}

	out := make([]Source, 0, len(dialectDirs))
	for _, entry := range dialectDirs {
		sub := base
		path := migrationsDir
		if entry.dir != "." {
			if sub, err = fs.Sub(base, entry.dir); err != nil {
				return nil, fmt.Errorf("migrations: resolve %s tree: %w", entry.dialect, err)
			}
			path = migrationsDir + "/" + entry.dir
		}
		if err := checkPairs(sub, path); err != nil {
			return nil, err
		}
		out = append(out, Source{Dialect: entry.dialect, Path: path, FS: sub})
	}
	return out, nil
}

func checkPairs(fsys fs.FS, path string) error {
	ups, err := fs.Glob(fsys, "*.up.sql")
	if err != nil {
		return fmt.Errorf("migrations: glob %s: %w", path, err)
	}
	if len(ups) == 0 {
		return fmt.Errorf("migrations: %s has no *.up.sql files", path)
	}
	for _, up := range ups {
		down := strings.TrimSuffix(up, ".up.sql") + ".down.sql"
		if _, err := fs.Stat(fsys, down); err != nil {
			return fmt.Errorf("migrations: %s/%s has no matching %s", path, up, down)
		}
	}
	return nil
}

// Register hands each selected dialect's migrations to registerFn.
func Register(ctx context.Context, registerFn RegisterFunc, opts ...Option) (Registration, error) {
	reg := Registration{
		SourceLabel: DefaultSourceLabel,
		Dialects:    []string{DialectPostgres, DialectSQLite},
	}
	if registerFn == nil {
		return reg, fmt.Errorf("migrations: register function is required")
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&reg)
		}
	}
	if len(reg.Sources) == 0 {
		sources, err := Sources()
		if err != nil {
			return reg, err
		}
		reg.Sources = sources
	}

	registered := 0
	for _, source := range reg.Sources {
		if !slices.Contains(reg.Dialects, source.Dialect) {
			continue
		}
		if err := registerFn(ctx, source.Dialect, reg.SourceLabel, source.FS); err != nil {
			return reg, fmt.Errorf("migrations: register %s (%s): %w", source.Dialect, source.Path, err)
		}
		registered++
	}
	if registered == 0 {
		return reg, fmt.Errorf("migrations: no source matches dialects %v", reg.Dialects)
	}
	return reg, nil
}

// DialectForDriver maps a database/sql driver name onto a migration dialect.
func DialectForDriver(driver string) string {
	switch strings.TrimSpace(strings.ToLower(driver)) {
	case "sqlite", "sqlite3":
		return DialectSQLite
	case "postgres", "postgresql", "pg", "pq":
		return DialectPostgres
	default:
		return ""
	}
}

// ClientRegistrar returns a callback that registers the migrations of one
// dialect on a go-persistence-bun client. Its signature matches
// sqlstore.MigrationRegistrar.
func ClientRegistrar(dialect string, opts ...Option) func(context.Context, *persistence.Client) error {
	dialect = strings.TrimSpace(strings.ToLower(dialect))
	return func(ctx context.Context, client *persistence.Client) error {
		if client == nil {
			return fmt.Errorf("migrations: persistence client is required")
		}
		if dialect != DialectPostgres && dialect != DialectSQLite {
			return fmt.Errorf("migrations: unsupported dialect %q", dialect)
		}
		_, err := Register(ctx, func(_ context.Context, _ string, _ string, fsys fs.FS) error {
			client.RegisterSQLMigrations(fsys)
			return nil
		}, append(append([]Option(nil), opts...), WithDialects(dialect))...)
		return err
	}
}

func normalizeDialects(values []string) []string {
	out := make([]string, 0, len(values))
	for _, value := range values {
		value = strings.ToLower(strings.TrimSpace(value))
		if value != "" && !slices.Contains(out, value) {
			out = append(out, value)
		}
	}
	return out
}
