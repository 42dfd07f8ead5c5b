// Package migrations applies the embedded schema files to the ledger databases.
package migrations

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"

	chstore "ft-ledger/internal/storage/clickhouse"
	"ft-ledger/internal/storage/postgres"
)

//go:embed postgres/*.sql clickhouse/*.sql
var schemaFS embed.FS

// migration is one schema file split into executable statements.
type migration struct {
	name  string
	stmts []string
}

// RunPostgres applies all embedded PostgreSQL files in lexical order.
// Files are executed whole since pgx accepts multi-statement scripts.
func RunPostgres(ctx context.Context, pool *postgres.Pool) error {
	files, err := load(schemaFS, "postgres", false)
	if err != nil {
		return err
	}

	for _, m := range files {
		for _, stmt := range m.stmts {
			if _, err := pool.Exec(ctx, stmt); err != nil {
				return fmt.Errorf("apply migration %s: %w", m.name, err)
			}
		}
	}
	return nil
}

// RunClickhouse applies all embedded ClickHouse files in lexical order.
// The driver rejects multi-statement queries, so files are split on ';'.
func RunClickhouse(ctx context.Context, conn *chstore.Conn) error {
	files, err := load(schemaFS, "clickhouse", true)
	if err != nil {
		return err
	}

	for _, m := range files {
		for _, stmt := range m.stmts {
			if err := conn.Exec(ctx, stmt); err != nil {
				return fmt.Errorf("apply migration %s: %w", m.name, err)
			}
		}
	}
	return nil
}

func load(fsys fs.FS, dir string, split bool) ([]migration, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("read embedded %s migrations: %w", dir, err)
	}

	var names []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sql") {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)

	var out []migration
	for _, name := range names {
		data, err := fs.ReadFile(fsys, path.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("read migration %s: %w", name, err)
		}

		body := stripComments(string(data))
		if body == "" {
			continue
		}

		m := migration{name: name}
		if split {
			m.stmts = splitStatements(body)
		} else {
			m.stmts = []string{body}
		}
		out = append(out, m)
	}
	return out, nil
}

// stripComments drops blank lines and full-line "--" comments.
func stripComments(sql string) string {
	var kept []string
	for _, line := range strings.Split(sql, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "--") {
			continue
		}
		kept = append(kept, line)
	}
	return strings.TrimSpace(strings.Join(kept, "\n"))
}

// splitStatements splits on ';'. Migration files must not put ';' inside string literals.
func splitStatements(sql string) []string {
	var stmts []string
	for _, part := range strings.Split(sql, ";") {
		if stmt := strings.TrimSpace(part); stmt != "" {
			stmts = append(stmts, stmt)
		}
	}
	return stmts
}
