package temporal

// Relation is one of Allen's thirteen interval relations, named the way
// plan rows report them.
type Relation string

const (
	Precedes     Relation = "precedes"
	Meets        Relation = "meets"
	Overlaps     Relation = "overlaps"
	Starts       Relation = "starts"
	During       Relation = "during"
	Finishes     Relation = "finishes"
	Equals       Relation = "equals"
	PrecededBy   Relation = "preceded_by"
	MetBy        Relation = "met_by"
	OverlappedBy Relation = "overlapped_by"
	StartedBy    Relation = "started_by"
	Contains     Relation = "contains"
	FinishedBy   Relation = "finished_by"
)

// AllRelations lists the relations in declaration order.
var AllRelations = []Relation{
	Precedes, Meets, Overlaps, Starts, During, Finishes, Equals,
	PrecededBy, MetBy, OverlappedBy, StartedBy, Contains, FinishedBy,
}

var inverses = map[Relation]Relation{
	Precedes:     PrecededBy,
	Meets:        MetBy,
	Overlaps:     OverlappedBy,
	Starts:       StartedBy,
	During:       Contains,
	Finishes:     FinishedBy,
	Equals:       Equals,
	PrecededBy:   Precedes,
	MetBy:        Meets,
	OverlappedBy: Overlaps,
	StartedBy:    Starts,
	Contains:     During,
	FinishedBy:   Finishes,
}

// Inverse returns the relation of y to x given the relation of x to y.
func (r Relation) Inverse() Relation {
	return inverses[r]
}

// Relate computes the Allen relation of x to y. It returns "" when either
// interval is empty or inverted.
func (s Subtype) Relate(x, y Interval) Relation {
	lt := func(a, b string) bool { return s.Compare(a, b) < 0 }
	gt := func(a, b string) bool { return s.Compare(a, b) > 0 }
	eq := func(a, b string) bool { return s.Compare(a, b) == 0 }

	if !lt(x.From, x.Until) || !lt(y.From, y.Until) {
		return ""
	}

	switch {
	case lt(x.Until, y.From):
		return Precedes
	case eq(x.Until, y.From):
		return Meets
	case lt(x.From, y.From) && lt(y.From, x.Until) && lt(x.Until, y.Until):
		return Overlaps
	case eq(x.From, y.From) && lt(x.Until, y.Until):
		return Starts
	case gt(x.From, y.From) && lt(x.Until, y.Until):
		return During
	case gt(x.From, y.From) && eq(x.Until, y.Until):
		return Finishes
	case eq(x.From, y.From) && eq(x.Until, y.Until):
		return Equals
	case lt(y.Until, x.From):
		return PrecededBy
	case eq(y.Until, x.From):
		return MetBy
	case lt(y.From, x.From) && lt(x.From, y.Until) && lt(y.Until, x.Until):
		return OverlappedBy
	case eq(x.From, y.From) && gt(x.Until, y.Until):
		return StartedBy
	case lt(x.From, y.From) && gt(x.Until, y.Until):
		return Contains
	case lt(x.From, y.From) && eq(x.Until, y.Until):
		return FinishedBy
	}
	return ""
}
