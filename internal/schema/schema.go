// Package schema provides warehouse schema introspection for LLM context.
package schema

import (
	"context"
	"errors"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"

	"github.com/JonMunkholm/SurveyBot/internal/warehouse"
)

var (
	// ErrInvalidIdentifier reports a table identifier that is not
	// catalog.schema.table.
	ErrInvalidIdentifier = errors.New("invalid table identifier")

	// ErrSchemaNotFound reports that the catalog returned no columns for a table.
	ErrSchemaNotFound = errors.New("table schema not found")
)

// TableIdentifier is a fully-qualified warehouse table name.
type TableIdentifier struct {
	Catalog string
	Schema  string
	Table   string
}

// ParseTableIdentifier splits a dotted name into its three segments.
func ParseTableIdentifier(raw string) (TableIdentifier, error) {
	parts := strings.Split(raw, ".")
	if len(parts) != 3 {
		return TableIdentifier{}, fmt.Errorf("%w: %q has %d segments, want catalog.schema.table", ErrInvalidIdentifier, raw, len(parts))
	}
	for _, p := range parts {
		if p == "" {
			return TableIdentifier{}, fmt.Errorf("%w: %q has an empty segment", ErrInvalidIdentifier, raw)
		}
		// The catalog is spliced into the FROM clause.
		if strings.ContainsAny(p, " \t\r\n'\";`") {
			return TableIdentifier{}, fmt.Errorf("%w: %q contains a disallowed character", ErrInvalidIdentifier, raw)
		}
	}
	return TableIdentifier{Catalog: parts[0], Schema: parts[1], Table: parts[2]}, nil
}

// String returns the dotted name with its original casing.
func (t TableIdentifier) String() string {
	return t.Catalog + "." + t.Schema + "." + t.Table
}

// Upper returns the identifier as the warehouse catalog stores it.
func (t TableIdentifier) Upper() TableIdentifier {
	return TableIdentifier{
		Catalog: strings.ToUpper(t.Catalog),
		Schema:  strings.ToUpper(t.Schema),
		Table:   strings.ToUpper(t.Table),
	}
}

// Column represents a table column.
type Column struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// Introspector reads column metadata from the warehouse information schema.
type Introspector struct {
	wh  warehouse.Querier
	psq sq.StatementBuilderType
}

// NewIntrospector creates an introspector. The placeholder format must match
// the warehouse driver: sq.Question for Snowflake and DuckDB, sq.Dollar for
// Postgres.
func NewIntrospector(wh warehouse.Querier, placeholder sq.PlaceholderFormat) *Introspector {
	return &Introspector{
		wh:  wh,
		psq: sq.StatementBuilder.PlaceholderFormat(placeholder),
	}
}

// FetchColumns returns the columns of a table in the order the catalog
// reports them. Identifier segments are used as given; callers pass
// Upper() for case-insensitive catalogs.
func (i *Introspector) FetchColumns(ctx context.Context, table TableIdentifier) ([]Column, error) {
	query, args, err := i.psq.
		Select("COLUMN_NAME", "DATA_TYPE").
		From(table.Catalog + ".INFORMATION_SCHEMA.COLUMNS").
		Where(sq.Eq{"TABLE_SCHEMA": table.Schema}).
		Where(sq.Eq{"TABLE_NAME": table.Table}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building column query: %w", err)
	}

	result, err := i.wh.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying columns of %s: %w", table, err)
	}
	if result.Len() == 0 {
		return nil, fmt.Errorf("%w: %s", ErrSchemaNotFound, table)
	}

	names, err := result.Strings("COLUMN_NAME")
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrSchemaNotFound, table, err)
	}
	types, err := result.Strings("DATA_TYPE")
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrSchemaNotFound, table, err)
	}

	columns := make([]Column, len(names))
	for idx := range names {
		columns[idx] = Column{Name: names[idx], Type: types[idx]}
	}
	return columns, nil
}
