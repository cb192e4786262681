package planner

import (
	"github.com/roach88/tmerge/internal/ir"
	"github.com/roach88/tmerge/internal/temporal"
)

// SourceRow is one row of the incoming batch, already split into column
// categories by the reader. Data and Ephemeral never hold key columns; a
// column may be both an identity and a lookup column.
type SourceRow struct {
	RowID      int64
	CausalID   string
	ValidFrom  string
	ValidUntil string

	IdentityKeys ir.IRObject
	LookupKeys   ir.IRObject
	Data         ir.IRObject
	Ephemeral    ir.IRObject
	// StablePK is the identity snapshot including NULLs.
	StablePK ir.IRObject

	IsIdentifiable    bool
	LookupColsAreNull bool
}

// Interval returns the row's validity period.
func (r SourceRow) Interval() temporal.Interval {
	return temporal.Interval{From: r.ValidFrom, Until: r.ValidUntil}
}

// TargetRow is one existing row of the temporal table.
type TargetRow struct {
	ValidFrom  string
	ValidUntil string

	IdentityKeys ir.IRObject
	LookupKeys   ir.IRObject
	Data         ir.IRObject
	Ephemeral    ir.IRObject
	// PKOnly holds primary-key columns that are neither identity nor temporal.
	PKOnly ir.IRObject
}

// Interval returns the row's validity period.
func (r TargetRow) Interval() temporal.Interval {
	return temporal.Interval{From: r.ValidFrom, Until: r.ValidUntil}
}

// Operation is the action a plan row asks for.
type Operation string

const (
	OpInsert        Operation = "INSERT"
	OpUpdate        Operation = "UPDATE"
	OpDelete        Operation = "DELETE"
	OpSkipIdentical Operation = "SKIP_IDENTICAL"
	OpSkipNoTarget  Operation = "SKIP_NO_TARGET"
	OpSkipFiltered  Operation = "SKIP_FILTERED"
	OpSkipEclipsed  Operation = "SKIP_ECLIPSED"
	OpError         Operation = "ERROR"
)

// IsDML reports whether the operation changes the target table.
func (o Operation) IsDML() bool {
	return o == OpInsert || o == OpUpdate || o == OpDelete
}

// UpdateEffect describes how an UPDATE changes the row's interval.
type UpdateEffect string

const (
	EffectNone   UpdateEffect = "NONE"
	EffectShrink UpdateEffect = "SHRINK"
	EffectMove   UpdateEffect = "MOVE"
	EffectGrow   UpdateEffect = "GROW"
)

// PlanRow is one instruction of a merge plan. Optional fields are empty
// when they do not apply to the operation.
type PlanRow struct {
	PlanOpSeq    int64        `json:"plan_op_seq"`
	StatementSeq int          `json:"statement_seq"`
	RowIDs       []int64      `json:"row_ids"`
	Operation    Operation    `json:"operation"`
	UpdateEffect UpdateEffect `json:"update_effect,omitempty"`
	CausalID     string       `json:"causal_id,omitempty"`
	IsNewEntity  bool         `json:"is_new_entity"`

	EntityKeys   ir.IRObject `json:"entity_keys,omitempty"`
	IdentityKeys ir.IRObject `json:"identity_keys,omitempty"`
	LookupKeys   ir.IRObject `json:"lookup_keys"`

	STRelation temporal.Relation `json:"s_t_relation,omitempty"`
	BARelation temporal.Relation `json:"b_a_relation,omitempty"`

	OldValidFrom  string `json:"old_valid_from,omitempty"`
	OldValidUntil string `json:"old_valid_until,omitempty"`
	NewValidFrom  string `json:"new_valid_from,omitempty"`
	NewValidUntil string `json:"new_valid_until,omitempty"`
	OldValidRange string `json:"old_valid_range,omitempty"`
	NewValidRange string `json:"new_valid_range,omitempty"`

	Data     ir.IRObject `json:"data,omitempty"`
	Feedback ir.IRObject `json:"feedback,omitempty"`
	Trace    ir.IRObject `json:"trace,omitempty"`

	GroupingKey string `json:"grouping_key"`
}

// rowFeedback is a per-row outcome decided before segmentation.
type rowFeedback struct {
	op      Operation
	message string
}

// matchedRow is a source row after correlation.
type matchedRow struct {
	SourceRow

	isNew       bool
	groupingKey string
	// target is the matched existing entity's first row, nil for new entities.
	target *TargetRow
	// entityKey is the existing entity's grouping key.
	entityKey   string
	canonicalNK ir.IRObject
	feedback    *rowFeedback
	eclipsed    bool
}

// entityGroup collects every source and target row of one entity.
type entityGroup struct {
	key   string
	isNew bool
	// identity is the entity's identity snapshot.
	identity ir.IRObject
	sources  []*matchedRow
	targets  []*TargetRow
	// deletedBy holds, per target row, the source rows whose deletion
	// markers cover part of it.
	deletedBy map[*TargetRow][]int64
}

// atomicSegment is a maximal sub-interval with a constant set of covering rows.
type atomicSegment struct {
	from     string
	until    string
	causalID string
}

// resolvedSegment is an atomic segment with its computed payload.
type resolvedSegment struct {
	from  string
	until string
	// data is nil for deletion markers and uncovered segments.
	data      ir.IRObject
	ephemeral ir.IRObject
	hash      string
	rowIDs    []int64
	// target is the covering target row, nil when none covers the segment.
	target        *TargetRow
	sourceCovered bool
	targetCovered bool
	relation      temporal.Relation
	causalID      string
}

// coalescedSegment is a run of adjacent resolved segments with equal content.
type coalescedSegment struct {
	from          string
	until         string
	data          ir.IRObject
	ephemeral     ir.IRObject
	hash          string
	rowIDs        []int64
	ancestor      *TargetRow
	sourceCovered bool
	targetCovered bool
	relation      temporal.Relation
	causalID      string
}

// diffRow pairs a final segment with the original target row it replaces.
// Either side may be nil, never both.
type diffRow struct {
	final  *coalescedSegment
	target *TargetRow
}
