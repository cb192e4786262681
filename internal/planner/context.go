package planner

import (
	"slices"
	"strings"

	"github.com/roach88/tmerge/internal/temporal"
)

// MergeMode selects how source rows combine with the existing timeline.
type MergeMode string

const (
	MergeEntityUpsert   MergeMode = "MERGE_ENTITY_UPSERT"
	UpdateForPortionOf  MergeMode = "UPDATE_FOR_PORTION_OF"
	MergeEntityPatch    MergeMode = "MERGE_ENTITY_PATCH"
	PatchForPortionOf   MergeMode = "PATCH_FOR_PORTION_OF"
	MergeEntityReplace  MergeMode = "MERGE_ENTITY_REPLACE"
	ReplaceForPortionOf MergeMode = "REPLACE_FOR_PORTION_OF"
	InsertNewEntities   MergeMode = "INSERT_NEW_ENTITIES"
	DeleteForPortionOf  MergeMode = "DELETE_FOR_PORTION_OF"
)

// MergeModes lists every merge mode.
var MergeModes = []MergeMode{
	MergeEntityUpsert, UpdateForPortionOf, MergeEntityPatch, PatchForPortionOf,
	MergeEntityReplace, ReplaceForPortionOf, InsertNewEntities, DeleteForPortionOf,
}

// ParseMergeMode accepts a mode name in any case.
func ParseMergeMode(s string) (MergeMode, bool) {
	m := MergeMode(strings.ToUpper(strings.TrimSpace(s)))
	return m, slices.Contains(MergeModes, m)
}

// IsPatch reports whether NULL source values are ignored entirely.
func (m MergeMode) IsPatch() bool {
	return m == MergeEntityPatch || m == PatchForPortionOf
}

// IsReplace reports whether the mode belongs to the REPLACE family.
func (m MergeMode) IsReplace() bool {
	return m == MergeEntityReplace || m == ReplaceForPortionOf
}

// IsLastWriterWins reports whether only the newest covering source row is
// credited for a segment.
func (m MergeMode) IsLastWriterWins() bool {
	switch m {
	case MergeEntityReplace, ReplaceForPortionOf, InsertNewEntities, DeleteForPortionOf:
		return true
	}
	return false
}

// IsForPortionOf reports whether the mode only touches existing entities
// and never creates timeline outside the target.
func (m MergeMode) IsForPortionOf() bool {
	switch m {
	case UpdateForPortionOf, PatchForPortionOf, ReplaceForPortionOf, DeleteForPortionOf:
		return true
	}
	return false
}

// DeleteMode selects what happens to target timeline the source omits.
type DeleteMode string

const (
	DeleteNone                       DeleteMode = "NONE"
	DeleteMissingTimeline            DeleteMode = "DELETE_MISSING_TIMELINE"
	DeleteMissingEntities            DeleteMode = "DELETE_MISSING_ENTITIES"
	DeleteMissingTimelineAndEntities DeleteMode = "DELETE_MISSING_TIMELINE_AND_ENTITIES"
)

// DeleteModes lists every delete mode.
var DeleteModes = []DeleteMode{
	DeleteNone, DeleteMissingTimeline, DeleteMissingEntities, DeleteMissingTimelineAndEntities,
}

// ParseDeleteMode accepts a delete mode name in any case. Empty means NONE.
func ParseDeleteMode(s string) (DeleteMode, bool) {
	if strings.TrimSpace(s) == "" {
		return DeleteNone, true
	}
	d := DeleteMode(strings.ToUpper(strings.TrimSpace(s)))
	return d, slices.Contains(DeleteModes, d)
}

// DeletesEntities reports whether target entities absent from the source are removed.
func (d DeleteMode) DeletesEntities() bool {
	return d == DeleteMissingEntities || d == DeleteMissingTimelineAndEntities
}

// DeletesTimeline reports whether uncovered timeline of present entities is removed.
func (d DeleteMode) DeletesTimeline() bool {
	return d == DeleteMissingTimeline || d == DeleteMissingTimelineAndEntities
}

// Strategy describes which keys are available to identify entities.
type Strategy int

const (
	StrategyUndefined Strategy = iota
	StrategyHybrid
	StrategyIdentityKeyOnly
	StrategyLookupKeyOnly
)

func (s Strategy) String() string {
	switch s {
	case StrategyHybrid:
		return "hybrid"
	case StrategyIdentityKeyOnly:
		return "identity_key_only"
	case StrategyLookupKeyOnly:
		return "lookup_key_only"
	}
	return "undefined"
}

// Era describes the temporal columns of the target table.
type Era struct {
	Name             string
	RangeColumn      string
	ValidFromColumn  string
	ValidUntilColumn string
	// ValidToColumn is an optional inclusive end column kept in sync with
	// ValidUntilColumn (until minus one unit).
	ValidToColumn    string
	Subtype          string
	SubtypeCategory  string
	EphemeralColumns []string
}

// Config is the caller-supplied planning configuration.
type Config struct {
	Mode                 string
	DeleteMode           string
	Era                  Era
	IdentityColumns      []string
	LookupKeys           [][]string
	EphemeralColumns     []string
	ExcludeIfNullColumns []string
	FoundingIDColumn     string
	RowIDColumn          string
	LogTrace             bool
}

// DefaultRowIDColumn is used when Config.RowIDColumn is empty.
const DefaultRowIDColumn = "row_id"

// Context is the validated, immutable form of a Config. It is built once
// per configuration and shared by every planning call.
type Context struct {
	Mode       MergeMode
	DeleteMode DeleteMode
	Era        Era
	Subtype    temporal.Subtype

	IdentityColumns  []string
	LookupKeySets    [][]string
	AllLookupColumns []string
	EphemeralColumns []string
	FoundingIDColumn string
	RowIDColumn      string
	Strategy         Strategy
	Trace            bool

	nullStrip map[string]struct{}
}

// NewContext validates cfg and derives the planning context.
func NewContext(cfg Config) (*Context, error) {
	mode, ok := ParseMergeMode(cfg.Mode)
	if !ok {
		return nil, newConfigError(ErrCodeInvalidMode, "mode", "unknown merge mode %q", cfg.Mode)
	}
	deleteMode, ok := ParseDeleteMode(cfg.DeleteMode)
	if !ok {
		return nil, newConfigError(ErrCodeInvalidDeleteMode, "delete_mode", "unknown delete mode %q", cfg.DeleteMode)
	}

	era := cfg.Era
	if era.Name == "" {
		return nil, newConfigError(ErrCodeMissingEra, "era.name", "era metadata is required")
	}
	if era.RangeColumn == "" && era.ValidFromColumn == "" {
		return nil, newConfigError(ErrCodeMissingEra, "era.valid_from", "era %q has neither a range column nor a valid_from column", era.Name)
	}
	if era.RangeColumn == "" && era.ValidUntilColumn == "" && era.ValidToColumn == "" {
		return nil, newConfigError(ErrCodeMissingEra, "era.valid_until", "era %q has neither a range column nor a valid_until/valid_to column", era.Name)
	}
	subtype, err := temporal.NewSubtype(era.Subtype, era.SubtypeCategory)
	if err != nil {
		return nil, newConfigError(ErrCodeUnsupportedSubtype, "era.subtype", "%v", err)
	}

	ephemeral := distinctSorted(cfg.EphemeralColumns, era.EphemeralColumns)
	for _, col := range ephemeral {
		if col == era.RangeColumn || col == era.ValidFromColumn || col == era.ValidUntilColumn || col == era.ValidToColumn {
			return nil, newConfigError(ErrCodeEphemeralOverlap, "ephemeral_columns",
				"column %q is synchronized by era %q and cannot be ephemeral", col, era.Name)
		}
	}

	var keySets [][]string
	for _, ks := range cfg.LookupKeys {
		ks = distinctInOrder(ks)
		if len(ks) > 0 {
			keySets = append(keySets, ks)
		}
	}
	identity := distinctInOrder(cfg.IdentityColumns)

	var strategy Strategy
	switch {
	case len(identity) > 0 && len(keySets) > 0:
		strategy = StrategyHybrid
	case len(identity) > 0:
		strategy = StrategyIdentityKeyOnly
	case len(keySets) > 0:
		strategy = StrategyLookupKeyOnly
	default:
		return nil, newConfigError(ErrCodeUndefinedStrategy, "identity_columns",
			"no identity columns and no lookup keys: entities cannot be identified")
	}

	rowID := cfg.RowIDColumn
	if rowID == "" {
		rowID = DefaultRowIDColumn
	}

	nullStrip := make(map[string]struct{}, len(cfg.ExcludeIfNullColumns))
	for _, c := range cfg.ExcludeIfNullColumns {
		nullStrip[c] = struct{}{}
	}

	return &Context{
		Mode:             mode,
		DeleteMode:       deleteMode,
		Era:              era,
		Subtype:          subtype,
		IdentityColumns:  identity,
		LookupKeySets:    keySets,
		AllLookupColumns: distinctSorted(keySets...),
		EphemeralColumns: ephemeral,
		FoundingIDColumn: cfg.FoundingIDColumn,
		RowIDColumn:      rowID,
		Strategy:         strategy,
		Trace:            cfg.LogTrace,
		nullStrip:        nullStrip,
	}, nil
}

// IsFoundingMode reports whether new entities are grouped by founding id.
func (c *Context) IsFoundingMode() bool {
	return c.FoundingIDColumn != ""
}

// StripsNull reports whether a NULL source value for col must not
// overwrite the base payload in UPSERT and REPLACE modes.
func (c *Context) StripsNull(col string) bool {
	_, ok := c.nullStrip[col]
	return ok
}

// NullStripColumns returns the null-strip set in sorted order.
func (c *Context) NullStripColumns() []string {
	out := make([]string, 0, len(c.nullStrip))
	for col := range c.nullStrip {
		out = append(out, col)
	}
	slices.Sort(out)
	return out
}

// EntityColumns are the columns whose values name an existing entity:
// the identity columns, or all lookup columns when there are none.
func (c *Context) EntityColumns() []string {
	if len(c.IdentityColumns) > 0 {
		return c.IdentityColumns
	}
	return c.AllLookupColumns
}

func distinctInOrder(cols []string) []string {
	out := make([]string, 0, len(cols))
	for _, c := range cols {
		if c != "" && !slices.Contains(out, c) {
			out = append(out, c)
		}
	}
	return out
}

func distinctSorted(lists ...[]string) []string {
	var out []string
	for _, l := range lists {
		for _, c := range l {
			if c != "" {
				out = append(out, c)
			}
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}
