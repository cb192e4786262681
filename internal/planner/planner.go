package planner

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/roach88/tmerge/internal/ir"
)

// Planner computes merge plans for one validated Context.
// A Planner is immutable and safe for concurrent use.
type Planner struct {
	ctx *Context
	log zerolog.Logger
}

// Option configures a Planner.
type Option func(*Planner)

// WithLogger sets the logger used for per-phase debug events.
func WithLogger(l zerolog.Logger) Option {
	return func(p *Planner) {
		p.log = l.With().Str("component", "planner").Logger()
	}
}

// New creates a Planner. The default logger discards everything.
func New(ctx *Context, opts ...Option) *Planner {
	p := &Planner{ctx: ctx, log: zerolog.Nop()}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Context returns the planner's validated configuration.
func (p *Planner) Context() *Context {
	return p.ctx
}

// Plan is a convenience wrapper validating cfg and planning once.
func Plan(cfg Config, sources []SourceRow, targets []TargetRow) ([]PlanRow, error) {
	ctx, err := NewContext(cfg)
	if err != nil {
		return nil, err
	}
	return New(ctx).Plan(sources, targets)
}

// Plan computes the ordered merge plan that turns targets into the state
// implied by sources. Per-row problems become ERROR or SKIP rows; an error
// is returned for target rows the subtype cannot order and for internal
// invariant violations.
func (p *Planner) Plan(sources []SourceRow, targets []TargetRow) ([]PlanRow, error) {
	for i := range targets {
		if err := p.ctx.Subtype.CheckInterval(targets[i].Interval()); err != nil {
			return nil, fmt.Errorf("target row %d %s: %w", i, ir.PgText(targets[i].IdentityKeys), err)
		}
	}

	idx := p.indexTargets(targets)
	matched := p.correlate(sources, idx)
	p.canonicalize(matched)
	p.detectEclipsed(matched)
	groups := p.group(matched, targets, idx)

	p.log.Debug().
		Int("sources", len(sources)).
		Int("targets", len(targets)).
		Int("groups", len(groups)).
		Msg("correlated")

	var rows []PlanRow
	for _, g := range groups {
		planned, err := p.planEntity(g)
		if err != nil {
			return nil, err
		}
		rows = append(rows, planned...)
	}
	if rows == nil {
		rows = []PlanRow{}
	}

	p.sequence(rows)
	p.log.Debug().Int("plan_rows", len(rows)).Msg("sequenced")
	return rows, nil
}

// planEntity runs segmentation through classification for one entity.
func (p *Planner) planEntity(g *entityGroup) ([]PlanRow, error) {
	var rows []PlanRow
	var active []*matchedRow
	for _, m := range g.sources {
		switch {
		case m.feedback != nil:
			rows = append(rows, p.feedbackRow(m, m.feedback.op, m.feedback.message))
		case m.eclipsed:
			rows = append(rows, p.feedbackRow(m, OpSkipEclipsed, ""))
		default:
			active = append(active, m)
		}
	}

	filtered := p.filterByMode(active)
	if len(filtered) < len(active) {
		kept := make(map[*matchedRow]bool, len(filtered))
		for _, m := range filtered {
			kept[m] = true
		}
		for _, m := range active {
			if kept[m] {
				continue
			}
			op := OpSkipFiltered
			if m.isNew {
				op = OpSkipNoTarget
			}
			rows = append(rows, p.feedbackRow(m, op, ""))
		}
	}

	if len(filtered) == 0 && len(g.targets) == 0 {
		return rows, nil
	}

	hasActive := len(active) > 0
	segments := p.segment(g, filtered)
	resolved, err := p.resolve(g, segments, filtered, p.dropsUncovered(hasActive))
	if err != nil {
		return nil, err
	}
	final := p.coalesce(resolved)
	planned, err := p.classify(g, p.diff(g, final), hasActive)
	if err != nil {
		return nil, err
	}

	p.log.Trace().
		Str("grouping_key", g.key).
		Int("segments", len(segments)).
		Int("coalesced", len(final)).
		Int("plan_rows", len(planned)).
		Msg("entity planned")
	return append(rows, planned...), nil
}

// dropsUncovered reports whether target timeline no source covers is
// removed outright: under the timeline-deletion flag for entities that
// still have active sources, under the entity-deletion flag for entities
// that have none. DELETE_FOR_PORTION_OF keeps its remnants.
func (p *Planner) dropsUncovered(hasActive bool) bool {
	if p.ctx.Mode == DeleteForPortionOf {
		return false
	}
	if hasActive {
		return p.ctx.DeleteMode.DeletesTimeline()
	}
	return p.ctx.DeleteMode.DeletesEntities()
}
