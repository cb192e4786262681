package temporal

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Category is the PostgreSQL type category of an era's range subtype.
type Category byte

const (
	// CategoryNumeric covers integer and numeric subtypes.
	CategoryNumeric Category = 'N'
	// CategoryDateTime covers date and timestamp subtypes.
	CategoryDateTime Category = 'D'
)

// Bound sentinels shared by every subtype.
const (
	Infinity    = "infinity"
	NegInfinity = "-infinity"
)

// ParseCategory accepts the single-letter category code or a long name.
func ParseCategory(s string) (Category, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "n", "numeric":
		return CategoryNumeric, nil
	case "d", "datetime", "date":
		return CategoryDateTime, nil
	}
	return 0, fmt.Errorf("unsupported subtype category %q", s)
}

// CategoryOf derives the category from a subtype name such as "date",
// "timestamptz", "integer" or "numeric".
func CategoryOf(subtype string) (Category, bool) {
	switch strings.ToLower(strings.TrimSpace(subtype)) {
	case "date", "timestamp", "timestamptz", "timestamp with time zone", "timestamp without time zone":
		return CategoryDateTime, true
	case "integer", "int", "int2", "int4", "int8", "smallint", "bigint", "numeric", "decimal",
		"real", "float4", "float8", "double precision":
		return CategoryNumeric, true
	}
	return 0, false
}

// Subtype knows how to order and step the bound values of one era.
// Bounds are opaque strings; numeric subtypes compare by decimal value and
// every other subtype compares lexicographically, which is correct for ISO
// dates and for the infinity sentinels.
type Subtype struct {
	Name     string
	Category Category
}

// NewSubtype builds a Subtype from a subtype name and an optional category
// code. An empty category is derived from the name.
func NewSubtype(name, category string) (Subtype, error) {
	if category != "" {
		c, err := ParseCategory(category)
		if err != nil {
			return Subtype{}, err
		}
		return Subtype{Name: name, Category: c}, nil
	}
	c, ok := CategoryOf(name)
	if !ok {
		return Subtype{}, fmt.Errorf("unsupported interval subtype %q", name)
	}
	return Subtype{Name: name, Category: c}, nil
}

// IsNumeric reports whether bounds compare as numbers.
func (s Subtype) IsNumeric() bool {
	return s.Category == CategoryNumeric
}

// Compare orders two bound values: -1, 0 or +1.
func (s Subtype) Compare(a, b string) int {
	if !s.IsNumeric() {
		return strings.Compare(a, b)
	}
	ra, rb := numericRank(a), numericRank(b)
	if ra != rb || ra != 0 {
		switch {
		case ra < rb:
			return -1
		case ra > rb:
			return 1
		}
		return 0
	}
	da, errA := parseNumeric(a)
	db, errB := parseNumeric(b)
	if errA != nil || errB != nil {
		// Unparsable bounds order as text; CheckBound rejects them upstream.
		return strings.Compare(a, b)
	}
	return da.Cmp(db)
}

// Less reports a < b.
func (s Subtype) Less(a, b string) bool {
	return s.Compare(a, b) < 0
}

// Equal reports a == b under the subtype ordering ("1.0" equals "1").
func (s Subtype) Equal(a, b string) bool {
	return s.Compare(a, b) == 0
}

// numericRank places -infinity below and infinity above every finite value.
func numericRank(v string) int {
	switch v {
	case Infinity:
		return 1
	case NegInfinity:
		return -1
	}
	return 0
}

func parseNumeric(v string) (decimal.Decimal, error) {
	return decimal.NewFromString(strings.TrimSpace(v))
}

// ErrInvalidBound is returned for a bound value the subtype cannot order.
var ErrInvalidBound = errors.New("invalid bound")

// CheckBound reports whether v is a usable bound: a decimal or an infinity
// sentinel for numeric subtypes, any non-empty value otherwise.
func (s Subtype) CheckBound(v string) error {
	if v == "" {
		return fmt.Errorf("%w: empty value", ErrInvalidBound)
	}
	if !s.IsNumeric() || numericRank(v) != 0 {
		return nil
	}
	if _, err := parseNumeric(v); err != nil {
		return fmt.Errorf("%w %q for %s", ErrInvalidBound, v, s.Name)
	}
	return nil
}

// CheckInterval applies CheckBound to both ends of i.
func (s Subtype) CheckInterval(i Interval) error {
	if err := s.CheckBound(i.From); err != nil {
		return err
	}
	return s.CheckBound(i.Until)
}

// MinusOneUnit returns v minus one unit of the subtype: one day for dates,
// one for numbers. Infinite bounds are returned unchanged. The second
// result is false when the subtype has no discrete unit (timestamps) or v
// cannot be parsed.
func (s Subtype) MinusOneUnit(v string) (string, bool) {
	return s.step(v, -1)
}

// PlusOneUnit is the inverse of MinusOneUnit.
func (s Subtype) PlusOneUnit(v string) (string, bool) {
	return s.step(v, 1)
}

func (s Subtype) step(v string, n int) (string, bool) {
	if v == Infinity || v == NegInfinity {
		return v, true
	}
	if s.IsNumeric() {
		d, err := decimal.NewFromString(strings.TrimSpace(v))
		if err != nil {
			return "", false
		}
		return d.Add(decimal.NewFromInt(int64(n))).String(), true
	}
	t, err := time.Parse(time.DateOnly, v)
	if err != nil {
		return "", false
	}
	return t.AddDate(0, 0, n).Format(time.DateOnly), true
}
