package ir

import (
	"slices"
	"strconv"
	"strings"
)

// NullKeyPart is the text used for a NULL value inside a composite key.
const NullKeyPart = "_NULL_"

// StripNulls returns a copy of obj without NULL-valued entries.
// A nil object stays nil.
func StripNulls(obj IRObject) IRObject {
	if obj == nil {
		return nil
	}
	out := make(IRObject, len(obj))
	for k, v := range obj {
		if !IsNull(v) {
			out[k] = v
		}
	}
	return out
}

// HasNonNull reports whether any entry of obj is non-NULL.
func HasNonNull(obj IRObject) bool {
	for _, v := range obj {
		if !IsNull(v) {
			return true
		}
	}
	return false
}

// Overlay copies every entry of src into dst. When skip is non-nil,
// entries for which skip returns true are left out.
func Overlay(dst, src IRObject, skip func(col string, v IRValue) bool) {
	for k, v := range src {
		if skip != nil && skip(k, v) {
			continue
		}
		dst[k] = v
	}
}

// Merge returns a new object holding a's entries overridden by b's.
func Merge(a, b IRObject) IRObject {
	out := make(IRObject, len(a)+len(b))
	Overlay(out, a, nil)
	Overlay(out, b, nil)
	return out
}

// Equal reports deep equality of two values. IRNumber values are compared
// by decimal value and IRInt/IRNumber compare across types.
func Equal(a, b IRValue) bool {
	if IsNull(a) || IsNull(b) {
		return IsNull(a) && IsNull(b)
	}
	switch av := a.(type) {
	case IRString:
		bv, ok := b.(IRString)
		return ok && av == bv
	case IRBool:
		bv, ok := b.(IRBool)
		return ok && av == bv
	case IRInt, IRNumber:
		return numbersEqual(av, b)
	case IRArray:
		bv, ok := b.(IRArray)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !Equal(av[i], bv[i]) {
				return false
			}
		}
		return true
	case IRObject:
		bv, ok := b.(IRObject)
		if !ok || len(av) != len(bv) {
			return false
		}
		for k, v := range av {
			w, present := bv[k]
			if !present || !Equal(v, w) {
				return false
			}
		}
		return true
	}
	return false
}

func numbersEqual(a, b IRValue) bool {
	ai, aInt := a.(IRInt)
	bi, bInt := b.(IRInt)
	if aInt && bInt {
		return ai == bi
	}
	ad, ok := toNumber(a)
	if !ok {
		return false
	}
	bd, ok := toNumber(b)
	if !ok {
		return false
	}
	return ad == bd
}

func toNumber(v IRValue) (string, bool) {
	switch n := v.(type) {
	case IRInt:
		return strconv.FormatInt(int64(n), 10), true
	case IRNumber:
		d, err := n.Decimal()
		if err != nil {
			return "", false
		}
		return d.String(), true
	}
	return "", false
}

// EqualIgnoringNulls compares two payloads after removing NULL entries,
// so an absent column and an explicit NULL are the same thing.
func EqualIgnoringNulls(a, b IRObject) bool {
	return Equal(StripNulls(a), StripNulls(b))
}

// KeyText renders a single value for use inside a composite key:
// strings raw, numbers and booleans as literals, NULL as NullKeyPart,
// arrays and objects as JSON.
func KeyText(v IRValue) string {
	switch val := v.(type) {
	case nil, IRNull:
		return NullKeyPart
	case IRString:
		return string(val)
	case IRInt:
		return strconv.FormatInt(int64(val), 10)
	case IRNumber:
		return string(val)
	case IRBool:
		return strconv.FormatBool(bool(val))
	default:
		b, err := MarshalIRValue(val)
		if err != nil {
			return ""
		}
		return string(b)
	}
}

// MapKey renders the non-NULL entries of obj as sorted "col=value" pairs
// joined by "__". Objects with no non-NULL entries yield "".
func MapKey(obj IRObject) string {
	parts := make([]string, 0, len(obj))
	for k, v := range obj {
		if IsNull(v) {
			continue
		}
		parts = append(parts, k+"="+KeyText(v))
	}
	slices.Sort(parts)
	return strings.Join(parts, "__")
}

// ColumnsKey renders the non-NULL values of the named columns as
// "col=value" pairs in column order, joined by "__".
func ColumnsKey(obj IRObject, cols []string) string {
	parts := make([]string, 0, len(cols))
	for _, c := range cols {
		v, ok := obj[c]
		if !ok || IsNull(v) {
			continue
		}
		parts = append(parts, c+"="+KeyText(v))
	}
	return strings.Join(parts, "__")
}

// ValuesKey renders the values of the named columns in column order joined
// by "__". Missing and NULL columns render as NullKeyPart.
func ValuesKey(obj IRObject, cols []string) string {
	parts := make([]string, len(cols))
	for i, c := range cols {
		parts[i] = KeyText(obj[c])
	}
	return strings.Join(parts, "__")
}

// PgText renders obj the way a PostgreSQL jsonb value prints:
// {"k": v, "k2": v2} with keys in canonical order.
func PgText(obj IRObject) string {
	var sb strings.Builder
	sb.WriteByte('{')
	for i, k := range obj.SortedKeys() {
		if i > 0 {
			sb.WriteString(", ")
		}
		kb, _ := MarshalIRValue(IRString(k))
		sb.Write(kb)
		sb.WriteString(": ")
		vb, err := MarshalIRValue(obj[k])
		if err != nil {
			vb = []byte("null")
		}
		sb.Write(vb)
	}
	sb.WriteByte('}')
	return sb.String()
}
