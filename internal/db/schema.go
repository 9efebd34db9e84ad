// Package db stores match samples in SQL databases: SQLite, Turso (libsql)
// and Postgres.
package db

import (
	"fmt"
	"strings"

	"lol-match-crawler/internal/sample"
)

// TableName holds one row per sample, columns as in sample.Columns.
const TableName = "match_samples"

type dialect int

const (
	dialectSQLite dialect = iota
	dialectPostgres
)

func (d dialect) placeholder(i int) string {
	if d == dialectPostgres {
		return fmt.Sprintf("$%d", i)
	}
	return "?"
}

func columnType(col string) string {
	switch {
	case sample.TextColumn(col):
		return "TEXT"
	case col == "game_creation":
		return "BIGINT"
	default:
		return "INTEGER"
	}
}

func createTableSQL() string {
	var b strings.Builder
	fmt.Fprintf(&b, "CREATE TABLE IF NOT EXISTS %s (\n", TableName)
	for _, col := range sample.Columns() {
		fmt.Fprintf(&b, "\t%s %s NOT NULL,\n", col, columnType(col))
	}
	b.WriteString("\tschema_version TEXT NOT NULL,\n")
	b.WriteString("\tPRIMARY KEY (match_id)\n)")
	return b.String()
}

// insertSQL skips matches already stored by an earlier run.
func insertSQL(d dialect) string {
	cols := append(sample.Columns(), "schema_version")
	marks := make([]string, len(cols))
	for i := range cols {
		marks[i] = d.placeholder(i + 1)
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (match_id) DO NOTHING",
		TableName, strings.Join(cols, ", "), strings.Join(marks, ", "))
}

func insertArgs(s *sample.MatchSample) []any {
	return append(s.Values(), sample.SchemaVersion)
}
