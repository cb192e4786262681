package temporal

import (
	"fmt"
	"strings"
)

// Interval is a half-open [From, Until) span of bound values.
type Interval struct {
	From  string
	Until string
}

// Empty reports whether the interval contains no points.
func (s Subtype) Empty(i Interval) bool {
	return s.Compare(i.From, i.Until) >= 0
}

// Overlap reports whether two intervals share at least one point.
// Adjacent intervals ([a,b) and [b,c)) do not overlap.
func (s Subtype) Overlap(a, b Interval) bool {
	return s.Less(a.From, b.Until) && s.Less(b.From, a.Until)
}

// Covers reports whether outer contains every point of inner.
func (s Subtype) Covers(outer, inner Interval) bool {
	return s.Compare(outer.From, inner.From) <= 0 && s.Compare(outer.Until, inner.Until) >= 0
}

// FormatRange renders [from,until). Components containing whitespace,
// commas, brackets or quotes are double-quoted the way PostgreSQL range
// output does.
func FormatRange(from, until string) string {
	return "[" + quoteBound(from) + "," + quoteBound(until) + ")"
}

// String renders the interval as a range literal.
func (i Interval) String() string {
	return FormatRange(i.From, i.Until)
}

func quoteBound(v string) string {
	if v == "" || strings.ContainsAny(v, " \t\n,()[]\"\\") {
		return `"` + strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(v) + `"`
	}
	return v
}

// ParseRange parses a half-open range literal produced by FormatRange or
// by PostgreSQL: "[a,b)", with optional double-quoted components. An
// omitted bound (unbounded side) is returned as "".
func ParseRange(s string) (Interval, error) {
	s = strings.TrimSpace(s)
	if len(s) < 3 || s[0] != '[' || s[len(s)-1] != ')' {
		return Interval{}, fmt.Errorf("range %q: want half-open [from,until)", s)
	}
	body := s[1 : len(s)-1]

	from, rest, err := scanBound(body)
	if err != nil {
		return Interval{}, fmt.Errorf("range %q: %w", s, err)
	}
	if !strings.HasPrefix(rest, ",") {
		return Interval{}, fmt.Errorf("range %q: missing comma", s)
	}
	until, rest, err := scanBound(rest[1:])
	if err != nil {
		return Interval{}, fmt.Errorf("range %q: %w", s, err)
	}
	if rest != "" {
		return Interval{}, fmt.Errorf("range %q: trailing text %q", s, rest)
	}
	return Interval{From: from, Until: until}, nil
}

func scanBound(s string) (string, string, error) {
	if !strings.HasPrefix(s, `"`) {
		end := strings.IndexByte(s, ',')
		if end < 0 {
			end = len(s)
		}
		return s[:end], s[end:], nil
	}

	var sb strings.Builder
	for i := 1; i < len(s); i++ {
		switch s[i] {
		case '\\':
			if i+1 < len(s) {
				i++
				sb.WriteByte(s[i])
			}
		case '"':
			return sb.String(), s[i+1:], nil
		default:
			sb.WriteByte(s[i])
		}
	}
	return "", "", fmt.Errorf("unterminated quoted bound")
}
