package scope

import (
	"fmt"
	"strconv"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Kind discriminates the two shapes a variable can take.
type Kind int

const (
	// KindScalar is a single substitutable value.
	KindScalar Kind = iota
	// KindList is an ordered set of named scalars the user picks from.
	KindList
)

// Scalar holds a single TOML-typed value in substitutable form.
// Supported underlying types: string, int64, float64, bool, time.Time.
type Scalar struct {
	raw any
}

// NewScalar wraps a raw value. Callers are expected to pass one of the
// supported underlying types; anything else still renders via fmt.
func NewScalar(v any) Scalar {
	return Scalar{raw: v}
}

// Raw returns the underlying value as decoded from TOML or JSON.
func (s Scalar) Raw() any {
	return s.raw
}

// String renders the scalar the way it is substituted into request text.
func (s Scalar) String() string {
	switch v := s.raw.(type) {
	case string:
		return v
	case int64:
		return strconv.FormatInt(v, 10)
	case int:
		return strconv.Itoa(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	case time.Time:
		return v.Format("2006-01-02")
	case toml.LocalDate:
		return v.String()
	case toml.LocalDateTime:
		return v.String()
	default:
		return fmt.Sprintf("%v", v)
	}
}

// ListItem is one selectable entry of a list value. Name is what the user
// sees during selection, Value is what gets substituted.
type ListItem struct {
	Name  string
	Value Scalar
}

// Value is the closed tagged representation of a resolved variable:
// either a scalar or a named list of scalars.
type Value struct {
	kind Kind
	s    Scalar
	list []ListItem
}

// ScalarValue builds a scalar Value.
func ScalarValue(v any) Value {
	return Value{kind: KindScalar, s: NewScalar(v)}
}

// ListValue builds a list Value, preserving item order.
func ListValue(items []ListItem) Value {
	return Value{kind: KindList, list: items}
}

// Kind reports whether the value is a scalar or a list.
func (v Value) Kind() Kind {
	return v.kind
}

// Scalar returns the scalar payload. Only meaningful when Kind is KindScalar.
func (v Value) Scalar() Scalar {
	return v.s
}

// List returns the list payload. Only meaningful when Kind is KindList.
func (v Value) List() []ListItem {
	return v.list
}

// FromTOML converts a decoded TOML (or JSON) node into a Value. Conversion
// happens eagerly at the boundary so nothing downstream inspects raw node
// types. Arrays of {name, value} tables become lists; arrays of plain
// scalars become lists whose name is the rendered scalar.
func FromTOML(raw any) (Value, error) {
	switch v := raw.(type) {
	case string, int64, int, float64, bool, time.Time, toml.LocalDate, toml.LocalDateTime:
		return ScalarValue(v), nil
	case []any:
		items := make([]ListItem, 0, len(v))
		for _, el := range v {
			item, err := listItemFromTOML(el)
			if err != nil {
				return Value{}, err
			}
			items = append(items, item)
		}
		return ListValue(items), nil
	default:
		return Value{}, fmt.Errorf("unsupported value type %T", raw)
	}
}

func listItemFromTOML(el any) (ListItem, error) {
	switch e := el.(type) {
	case map[string]any:
		rawValue, ok := e["value"]
		if !ok {
			return ListItem{}, fmt.Errorf("list entry missing value key")
		}
		value := NewScalar(rawValue)
		name := value.String()
		if rawName, ok := e["name"]; ok {
			name = NewScalar(rawName).String()
		}
		return ListItem{Name: name, Value: value}, nil
	case string, int64, int, float64, bool:
		s := NewScalar(e)
		return ListItem{Name: s.String(), Value: s}, nil
	default:
		return ListItem{}, fmt.Errorf("unsupported list entry type %T", el)
	}
}

// ToTOML converts a Value back into the shape persisted in the capture
// file. Lists come back as []any so the result round-trips through
// FromTOML without touching disk first.
func (v Value) ToTOML() any {
	if v.kind == KindScalar {
		return v.s.Raw()
	}
	out := make([]any, 0, len(v.list))
	for _, item := range v.list {
		out = append(out, map[string]any{
			"name":  item.Name,
			"value": item.Value.Raw(),
		})
	}
	return out
}
