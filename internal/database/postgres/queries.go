package postgres

import (
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// SQL queries for PostgreSQL metadata introspection.
const (
	queryListSchemas = `
		SELECT schema_name::text
		FROM information_schema.schemata
		WHERE schema_name NOT IN ('pg_catalog', 'information_schema', 'pg_toast')
		ORDER BY schema_name`

	queryListTables = `
		SELECT table_name::text
		FROM information_schema.tables
		WHERE table_schema = $1
		  AND table_type IN ('BASE TABLE', 'VIEW')
		ORDER BY table_name`

	// keyCountTemplate counts the constraints of one kind that cover the
	// outer column c.
	keyCountTemplate = `(
		SELECT COUNT(*)::int
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage k
			ON k.constraint_name = tc.constraint_name
			AND k.constraint_schema = tc.constraint_schema
		WHERE tc.constraint_type = '%s'
			AND k.table_schema = c.table_schema
			AND k.table_name = c.table_name
			AND k.column_name = c.column_name)`
)

// columnFactsStatement is the name the catalog query is prepared under.
const columnFactsStatement = "minadb_column_facts"

// columnFactsQuery builds the per-column catalog query. Its parameters are
// the relation name and the column name.
func columnFactsQuery() (string, error) {
	query, _, err := psql.
		Select(
			"CASE WHEN c.is_generated = 'ALWAYS' THEN c.generation_expression::text END AS computed_blr",
			"CASE WHEN c.is_updatable = 'NO' THEN c.column_name::text END AS computed_source",
			keyCount("PRIMARY KEY")+" AS primary_key_count",
			keyCount("UNIQUE")+" AS unique_key_count",
			"c.numeric_precision::int AS field_precision",
		).
		From("information_schema.columns c").
		Where("c.table_name = ? AND c.column_name = ?", "", "").
		OrderBy("c.table_schema = current_schema() DESC").
		Limit(1).
		ToSql()
	return query, err
}

func keyCount(kind string) string {
	return fmt.Sprintf(keyCountTemplate, kind)
}

// attributesQuery resolves the base relation and column names behind the
// result fields of a query.
func attributesQuery(relations []uint32) (string, []any, error) {
	return psql.
		Select("a.attrelid", "c.relname", "a.attnum", "a.attname", "a.attnotnull").
		From("pg_attribute a").
		Join("pg_class c ON c.oid = a.attrelid").
		Where(sq.Eq{"a.attrelid": relations}).
		Where("a.attnum > 0").
		ToSql()
}

// selectAllQuery projects every column of schema.table.
func selectAllQuery(schema, table string) string {
	query, _, _ := psql.Select("*").From(pgx.Identifier{schema, table}.Sanitize()).ToSql()
	return query
}
