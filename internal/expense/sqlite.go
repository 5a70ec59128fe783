package expense

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"
)

// SQLiteLedger keeps each partition in its own table, cloned from a
// template table on first use.
type SQLiteLedger struct {
	db       *sql.DB
	template string
}

// OpenSQLite opens (or creates) the ledger database and its template table.
func OpenSQLite(path, template string) (*SQLiteLedger, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	cols := make([]string, len(Columns))
	for i, c := range Columns {
		cols[i] = quote(c) + " TEXT NOT NULL DEFAULT ''"
	}
	createSQL := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", quote(template), strings.Join(cols, ", "))
	if _, err := db.Exec(createSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("create template table: %w", err)
	}
	return &SQLiteLedger{db: db, template: template}, nil
}

// Close closes the database.
func (l *SQLiteLedger) Close() error {
	return l.db.Close()
}

func (l *SQLiteLedger) Append(ctx context.Context, partition string, rec Record) error {
	if err := checkPartition(partition); err != nil {
		return err
	}
	ok, err := l.exists(ctx, partition)
	if err != nil {
		return err
	}
	if !ok {
		if err := l.duplicateTemplate(ctx, partition); err != nil {
			return err
		}
	}

	cols := make([]string, len(Columns))
	marks := make([]string, len(Columns))
	for i, c := range Columns {
		cols[i] = quote(c)
		marks[i] = "?"
	}
	cells := rec.Cells()
	args := make([]any, len(cells))
	for i, c := range cells {
		args[i] = c
	}

	insertSQL := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", quote(partition), strings.Join(cols, ", "), strings.Join(marks, ", "))
	if _, err := l.db.ExecContext(ctx, insertSQL, args...); err != nil {
		return fmt.Errorf("append to %s: %w", partition, err)
	}
	return nil
}

func (l *SQLiteLedger) Rows(ctx context.Context, partition string) ([]Row, error) {
	if err := checkPartition(partition); err != nil {
		return nil, err
	}
	ok, err := l.exists(ctx, partition)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%s: %w", partition, ErrNoPartition)
	}

	cols := make([]string, len(Columns))
	for i, c := range Columns {
		cols[i] = quote(c)
	}
	rows, err := l.db.QueryContext(ctx, fmt.Sprintf("SELECT %s FROM %s ORDER BY rowid", strings.Join(cols, ", "), quote(partition)))
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", partition, err)
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		vals := make([]string, len(Columns))
		ptrs := make([]any, len(Columns))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan %s: %w", partition, err)
		}
		row := make(Row, len(Columns))
		for i, c := range Columns {
			row[c] = vals[i]
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// Partitions lists the monthly tables, oldest first.
func (l *SQLiteLedger) Partitions(ctx context.Context) ([]string, error) {
	rows, err := l.db.QueryContext(ctx, "SELECT name FROM sqlite_master WHERE type = 'table' AND name != ? ORDER BY name", l.template)
	if err != nil {
		return nil, fmt.Errorf("list partitions: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		if partitionPattern.MatchString(name) {
			out = append(out, name)
		}
	}
	return out, rows.Err()
}

func (l *SQLiteLedger) exists(ctx context.Context, table string) (bool, error) {
	var n int
	err := l.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?", table).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check table %s: %w", table, err)
	}
	return n > 0, nil
}

func (l *SQLiteLedger) duplicateTemplate(ctx context.Context, partition string) error {
	ok, err := l.exists(ctx, l.template)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNoTemplate
	}
	// Columns and defaults come from the template definition.
	var ddl string
	if err := l.db.QueryRowContext(ctx, "SELECT sql FROM sqlite_master WHERE type = 'table' AND name = ?", l.template).Scan(&ddl); err != nil {
		return fmt.Errorf("read template: %w", err)
	}
	i := strings.Index(ddl, "(")
	if i < 0 {
		return fmt.Errorf("unexpected template definition %q", ddl)
	}
	createSQL := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s %s", quote(partition), ddl[i:])
	if _, err := l.db.ExecContext(ctx, createSQL); err != nil {
		return fmt.Errorf("create partition %s: %w", partition, err)
	}
	if _, err := l.db.ExecContext(ctx, fmt.Sprintf("INSERT INTO %s SELECT * FROM %s", quote(partition), quote(l.template))); err != nil {
		return fmt.Errorf("copy template rows into %s: %w", partition, err)
	}
	return nil
}

func quote(ident string) string {
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}
