// Package tablecontext assembles the table context block embedded in the
// SurveyBot system prompt: table name, description, column listing and an
// optional sample of values from one column.
package tablecontext

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/JonMunkholm/SurveyBot/internal/metrics"
	"github.com/JonMunkholm/SurveyBot/internal/schema"
	"github.com/JonMunkholm/SurveyBot/internal/warehouse"
)

// ErrEnrichmentQuery reports a failed enrichment query or a result without
// the expected column.
var ErrEnrichmentQuery = errors.New("enrichment query failed")

// Enrichment names a read-only query whose single result column is listed
// after the columns. The query is run verbatim.
type Enrichment struct {
	Query  string `json:"query"`
	Column string `json:"column"`
}

// Block is a rendered table context. The cached original is never modified;
// BuildContext hands out copies, so callers may change what they receive.
type Block struct {
	Table       string          `json:"table"`
	Description string          `json:"description"`
	Columns     []schema.Column `json:"columns"`
	Enrichment  []string        `json:"enrichment,omitempty"`
	Text        string          `json:"text"`
}

// String returns the rendered text.
func (b *Block) String() string {
	return b.Text
}

func (b *Block) clone() *Block {
	out := *b
	out.Columns = slices.Clone(b.Columns)
	out.Enrichment = slices.Clone(b.Enrichment)
	return &out
}

// ColumnFetcher returns the columns of a table.
type ColumnFetcher interface {
	FetchColumns(ctx context.Context, table schema.TableIdentifier) ([]schema.Column, error)
}

// Assembler builds and caches table context blocks.
type Assembler struct {
	columns ColumnFetcher
	wh      warehouse.Querier
	cache   *Cache
	log     *slog.Logger
}

// NewAssembler creates an assembler. The cache is owned by the caller so it
// can be shared across call sites and invalidated explicitly.
func NewAssembler(columns ColumnFetcher, wh warehouse.Querier, cache *Cache, log *slog.Logger) *Assembler {
	if log == nil {
		log = slog.Default()
	}
	return &Assembler{
		columns: columns,
		wh:      wh,
		cache:   cache,
		log:     log,
	}
}

// BuildContext returns the context block for a table, building it on the
// first request for a given identifier, description and enrichment.
//
// Enrichment failures fail the whole build; nothing is cached on error.
func (a *Assembler) BuildContext(ctx context.Context, identifier, description string, enrichment *Enrichment) (*Block, error) {
	table, err := schema.ParseTableIdentifier(identifier)
	if err != nil {
		return nil, err
	}

	key := cacheKey(identifier, description, enrichment)
	if block, ok := a.cache.get(key); ok {
		metrics.ContextCacheRequests.WithLabelValues("hit").Inc()
		a.log.Debug("table context cache hit", "table", identifier)
		return block.clone(), nil
	}
	metrics.ContextCacheRequests.WithLabelValues("miss").Inc()
	a.log.Debug("table context cache miss", "table", identifier)

	block, err := a.cache.load(ctx, key, func(ctx context.Context) (*Block, error) {
		block, err := a.build(ctx, table, description, enrichment)
		if err != nil {
			metrics.ContextBuilds.WithLabelValues("error").Inc()
			return nil, err
		}
		metrics.ContextBuilds.WithLabelValues("ok").Inc()
		return block, nil
	})
	if err != nil {
		return nil, err
	}
	return block.clone(), nil
}

func (a *Assembler) build(ctx context.Context, table schema.TableIdentifier, description string, enrichment *Enrichment) (*Block, error) {
	columns, err := a.columns.FetchColumns(ctx, table.Upper())
	if err != nil {
		return nil, err
	}

	var values []string
	if enrichment != nil {
		values, err = a.FetchEnrichment(ctx, *enrichment)
		if err != nil {
			return nil, err
		}
	}

	text, err := render(table, description, columns, enrichment, values)
	if err != nil {
		return nil, fmt.Errorf("rendering context for %s: %w", table, err)
	}

	return &Block{
		Table:       table.String(),
		Description: description,
		Columns:     columns,
		Enrichment:  values,
		Text:        text,
	}, nil
}

// FetchEnrichment runs the enrichment query and returns the values of its
// result column in row order, duplicates included.
func (a *Assembler) FetchEnrichment(ctx context.Context, enrichment Enrichment) ([]string, error) {
	result, err := a.wh.Query(ctx, enrichment.Query)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEnrichmentQuery, err)
	}
	values, err := result.Strings(enrichment.Column)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEnrichmentQuery, err)
	}
	return values, nil
}

// Invalidate drops every cached block.
func (a *Assembler) Invalidate() {
	a.cache.Invalidate()
	a.log.Info("table context cache invalidated")
}
