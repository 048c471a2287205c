package metadata

import (
	"database/sql/driver"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Accepted input layouts for date and datetime values.
const (
	DateLayout     = "2006-01-02"
	DateTimeLayout = "2006-01-02T15:04"
)

var dateTimeLayouts = []string{time.RFC3339, "2006-01-02T15:04:05", DateTimeLayout, "2006-01-02 15:04:05", "2006-01-02 15:04", DateLayout}

// Coerce converts v into the canonical Go type for f:
// string, int64, decimal.Decimal, bool, time.Time or uuid.UUID.
// Empty strings become nil for every non-text field.
func Coerce(f *Field, v any) (any, error) {
	if valuer, ok := v.(driver.Valuer); ok {
		raw, err := valuer.Value()
		if err != nil {
			return nil, err
		}
		v = raw
	}
	if v == nil {
		return nil, nil
	}

	if f.Name == PrimaryKey || f.Kind == KindRelationToOne {
		return coerceID(v)
	}

	switch f.Type {
	case TypeString, TypeText, TypeEmail, TypeURL:
		return fmt.Sprint(v), nil
	case TypeEnum:
		s := fmt.Sprint(v)
		if s == "" {
			return nil, nil
		}
		for _, c := range f.Choices {
			if c == s {
				return s, nil
			}
		}
		return nil, fmt.Errorf("select a valid choice, %q is not one of the available choices", s)
	case TypeInteger:
		return coerceInt(v)
	case TypeDecimal:
		return coerceDecimal(v)
	case TypeBoolean:
		return coerceBool(v)
	case TypeDate:
		t, err := coerceTime(v)
		if err != nil || t == nil {
			return t, err
		}
		tt := t.(time.Time)
		return time.Date(tt.Year(), tt.Month(), tt.Day(), 0, 0, 0, 0, time.UTC), nil
	case TypeDateTime:
		return coerceTime(v)
	}
	return v, nil
}

func coerceID(v any) (any, error) {
	switch x := v.(type) {
	case uuid.UUID:
		return x, nil
	case [16]byte:
		return uuid.UUID(x), nil
	case string:
		x = strings.TrimSpace(x)
		if x == "" {
			return nil, nil
		}
		parsed, err := uuid.Parse(x)
		if err != nil {
			return nil, fmt.Errorf("enter a valid identifier")
		}
		return parsed, nil
	}
	return nil, fmt.Errorf("enter a valid identifier")
}

func coerceInt(v any) (any, error) {
	switch x := v.(type) {
	case int64:
		return x, nil
	case int:
		return int64(x), nil
	case int32:
		return int64(x), nil
	case int16:
		return int64(x), nil
	case float64:
		if x != float64(int64(x)) {
			return nil, fmt.Errorf("enter a whole number")
		}
		return int64(x), nil
	case decimal.Decimal:
		if !x.IsInteger() {
			return nil, fmt.Errorf("enter a whole number")
		}
		return x.IntPart(), nil
	case string:
		x = strings.TrimSpace(x)
		if x == "" {
			return nil, nil
		}
		n, err := strconv.ParseInt(x, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("enter a whole number")
		}
		return n, nil
	}
	return nil, fmt.Errorf("enter a whole number")
}

func coerceDecimal(v any) (any, error) {
	switch x := v.(type) {
	case decimal.Decimal:
		return x, nil
	case int64:
		return decimal.NewFromInt(x), nil
	case int:
		return decimal.NewFromInt(int64(x)), nil
	case int32:
		return decimal.NewFromInt32(x), nil
	case float64:
		return decimal.NewFromFloat(x), nil
	case string:
		x = strings.TrimSpace(x)
		if x == "" {
			return nil, nil
		}
		d, err := decimal.NewFromString(x)
		if err != nil {
			return nil, fmt.Errorf("enter a number")
		}
		return d, nil
	}
	return nil, fmt.Errorf("enter a number")
}

func coerceBool(v any) (any, error) {
	switch x := v.(type) {
	case bool:
		return x, nil
	case string:
		switch strings.ToLower(strings.TrimSpace(x)) {
		case "", "0", "false", "off", "no":
			return false, nil
		case "1", "true", "on", "yes":
			return true, nil
		}
	}
	return nil, fmt.Errorf("enter true or false")
}

func coerceTime(v any) (any, error) {
	switch x := v.(type) {
	case time.Time:
		return x, nil
	case string:
		x = strings.TrimSpace(x)
		if x == "" {
			return nil, nil
		}
		for _, layout := range dateTimeLayouts {
			if t, err := time.Parse(layout, x); err == nil {
				return t, nil
			}
		}
	}
	return nil, fmt.Errorf("enter a valid date")
}

// Compare orders two canonical values. ok is false when they are not comparable.
// nil sorts before every other value.
func Compare(a, b any) (cmp int, ok bool) {
	if a == nil || b == nil {
		switch {
		case a == nil && b == nil:
			return 0, true
		case a == nil:
			return -1, true
		default:
			return 1, true
		}
	}

	switch x := a.(type) {
	case string:
		if y, ok := b.(string); ok {
			return strings.Compare(x, y), true
		}
	case int64:
		switch y := b.(type) {
		case int64:
			return cmpOrdered(x, y), true
		case decimal.Decimal:
			return decimal.NewFromInt(x).Cmp(y), true
		}
	case decimal.Decimal:
		switch y := b.(type) {
		case decimal.Decimal:
			return x.Cmp(y), true
		case int64:
			return x.Cmp(decimal.NewFromInt(y)), true
		}
	case bool:
		if y, ok := b.(bool); ok {
			switch {
			case x == y:
				return 0, true
			case !x:
				return -1, true
			default:
				return 1, true
			}
		}
	case time.Time:
		if y, ok := b.(time.Time); ok {
			return x.Compare(y), true
		}
	case uuid.UUID:
		if y, ok := b.(uuid.UUID); ok {
			return strings.Compare(x.String(), y.String()), true
		}
	}
	return 0, false
}

func cmpOrdered(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// Format renders a canonical value for display.
func Format(f *Field, v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case bool:
		if x {
			return "Yes"
		}
		return "No"
	case decimal.Decimal:
		if f != nil && f.Scale > 0 {
			return x.StringFixed(int32(f.Scale))
		}
		return x.String()
	case time.Time:
		if f != nil && f.Type == TypeDate {
			return x.Format(DateLayout)
		}
		return x.Format("2006-01-02 15:04")
	}
	return fmt.Sprint(v)
}

// FormatInput renders a canonical value for an HTML input element.
func FormatInput(f *Field, v any) string {
	if t, ok := v.(time.Time); ok && f.Type == TypeDateTime {
		return t.Format(DateTimeLayout)
	}
	if _, ok := v.(bool); ok {
		return ""
	}
	return Format(f, v)
}
