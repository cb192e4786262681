// Package cache memoizes planning templates per configuration.
//
// Building a template validates the configuration, categorizes columns
// and compiles the source read. Repeated runs of the same job against
// unchanged tables reuse the template.
package cache

import (
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/roach88/tmerge/internal/ir"
	"github.com/roach88/tmerge/internal/planner"
	"github.com/roach88/tmerge/internal/querysql"
	"github.com/roach88/tmerge/internal/rowset"
)

// DefaultSize bounds the number of cached templates.
const DefaultSize = 64

// Key identifies everything a template depends on.
type Key struct {
	Config        planner.Config
	SourceTable   string
	TargetTable   string
	SourceColumns []string
	TargetColumns []string
	PKColumns     []string
}

// Template is the reusable, immutable part of a planning run.
type Template struct {
	Hash      string
	Key       Key
	Context   *planner.Context
	Layout    *rowset.Layout
	SourceSQL string
}

// Templates is a bounded, concurrency-safe template cache.
type Templates struct {
	mu    sync.Mutex
	cache *lru.Cache[string, *Template]

	hits   int
	misses int
}

// New creates a cache holding at most size templates.
func New(size int) (*Templates, error) {
	if size <= 0 {
		size = DefaultSize
	}
	c, err := lru.New[string, *Template](size)
	if err != nil {
		return nil, err
	}
	return &Templates{cache: c}, nil
}

// GetOrBuild returns the template for key, building it on a miss.
// Build failures are not cached.
func (t *Templates) GetOrBuild(key Key) (*Template, error) {
	hash, err := Hash(key)
	if err != nil {
		return nil, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if tpl, ok := t.cache.Get(hash); ok {
		t.hits++
		return tpl, nil
	}
	t.misses++

	tpl, err := build(hash, key)
	if err != nil {
		return nil, err
	}
	t.cache.Add(hash, tpl)
	return tpl, nil
}

// Stats reports cache hits and misses.
func (t *Templates) Stats() (hits, misses int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.hits, t.misses
}

// Len reports the number of cached templates.
func (t *Templates) Len() int {
	return t.cache.Len()
}

func build(hash string, key Key) (*Template, error) {
	ctx, err := planner.NewContext(key.Config)
	if err != nil {
		return nil, err
	}
	layout, err := rowset.NewLayout(ctx, key.SourceColumns, key.TargetColumns, key.PKColumns)
	if err != nil {
		return nil, fmt.Errorf("layout %s -> %s: %w", key.SourceTable, key.TargetTable, err)
	}
	sourceSQL, _, err := querysql.NewSQLCompiler().Compile(layout.SourceSelect(key.SourceTable))
	if err != nil {
		return nil, fmt.Errorf("compile source read: %w", err)
	}
	return &Template{
		Hash:      hash,
		Key:       key,
		Context:   ctx,
		Layout:    layout,
		SourceSQL: sourceSQL,
	}, nil
}

// Hash is the configuration hash of key. Any change to any input,
// including column order, yields a different hash.
func Hash(key Key) (string, error) {
	return ir.ConfigHash(ConfigIR(key))
}

// ConfigIR renders key as an IR object for hashing and plan metadata.
func ConfigIR(key Key) ir.IRObject {
	cfg := key.Config
	era := cfg.Era
	return ir.IRObject{
		"mode":                    ir.IRString(cfg.Mode),
		"delete_mode":             ir.IRString(cfg.DeleteMode),
		"identity_columns":        irStrings(cfg.IdentityColumns),
		"lookup_keys":             keySets(cfg.LookupKeys),
		"ephemeral_columns":       irStrings(cfg.EphemeralColumns),
		"exclude_if_null_columns": irStrings(cfg.ExcludeIfNullColumns),
		"founding_id_column":      ir.IRString(cfg.FoundingIDColumn),
		"row_id_column":           ir.IRString(cfg.RowIDColumn),
		"log_trace":               ir.IRBool(cfg.LogTrace),
		"era": ir.IRObject{
			"name":              ir.IRString(era.Name),
			"range_column":      ir.IRString(era.RangeColumn),
			"valid_from":        ir.IRString(era.ValidFromColumn),
			"valid_until":       ir.IRString(era.ValidUntilColumn),
			"valid_to":          ir.IRString(era.ValidToColumn),
			"subtype":           ir.IRString(era.Subtype),
			"subtype_category":  ir.IRString(era.SubtypeCategory),
			"ephemeral_columns": irStrings(era.EphemeralColumns),
		},
		"source_table":   ir.IRString(key.SourceTable),
		"target_table":   ir.IRString(key.TargetTable),
		"source_columns": irStrings(key.SourceColumns),
		"target_columns": irStrings(key.TargetColumns),
		"pk_columns":     irStrings(key.PKColumns),
	}
}

func irStrings(cols []string) ir.IRArray {
	out := make(ir.IRArray, len(cols))
	for i, c := range cols {
		out[i] = ir.IRString(c)
	}
	return out
}

func keySets(sets [][]string) ir.IRArray {
	out := make(ir.IRArray, len(sets))
	for i, ks := range sets {
		out[i] = irStrings(ks)
	}
	return out
}
