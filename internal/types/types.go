// Package types implements the backend-agnostic type engine: a closed
// set of variants that each know how to bind a native Go value into a
// Notion JSON property fragment and invert that conversion, plus emit
// the property's DDL column-spec descriptor.
package types

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"normlite/internal/ast"
	"normlite/internal/normerr"
)

// Fragment is a Notion JSON property value, e.g. {"number": 2} or
// {"title": [...]}. It never carries the containing property's type
// tag — that lives one level up, in the schema's properties map.
type Fragment = map[string]any

// Tag names a type engine variant, used as the reflected
// information_schema-style column descriptor.
type Tag string

const (
	TagInteger      Tag = "integer"
	TagNumeric      Tag = "numeric"
	TagMoney        Tag = "money"
	TagString       Tag = "string"
	TagBoolean      Tag = "boolean"
	TagDate         Tag = "date"
	TagUUID         Tag = "uuid"
	TagObjectID     Tag = "object_id"
	TagArchivalFlag Tag = "archival_flag"
)

// Engine is the capability set every type variant implements.
type Engine interface {
	// Tag identifies the variant for reflection and column descriptors.
	Tag() Tag
	// Bind converts a native value into its Notion wire fragment.
	Bind(value any) (Fragment, error)
	// Result inverts Bind: Notion wire fragment -> native value.
	Result(fragment Fragment) (any, error)
	// ColSpec is the Notion property type descriptor used in DDL. It
	// never includes a "type" key; the wire form places the type tag
	// at the containing property level.
	ColSpec() Fragment
}

// Integer stores whole numbers as Notion "number" properties.
type Integer struct{}

func (Integer) Tag() Tag { return TagInteger }

func (Integer) Bind(value any) (Fragment, error) {
	n, err := asInt64(value)
	if err != nil {
		return nil, err
	}
	return Fragment{"number": n}, nil
}

func (Integer) Result(fragment Fragment) (any, error) {
	n, err := numberField(fragment)
	if err != nil {
		return nil, err
	}
	return int64(n), nil
}

func (Integer) ColSpec() Fragment { return Fragment{"number": Fragment{"format": "number"}} }

// Numeric stores arbitrary-precision decimal values as Notion "number"
// properties, represented natively as float64.
type Numeric struct{}

func (Numeric) Tag() Tag { return TagNumeric }

func (Numeric) Bind(value any) (Fragment, error) {
	n, err := asFloat64(value)
	if err != nil {
		return nil, err
	}
	return Fragment{"number": n}, nil
}

func (Numeric) Result(fragment Fragment) (any, error) {
	return numberField(fragment)
}

func (Numeric) ColSpec() Fragment { return Fragment{"number": Fragment{"format": "number"}} }

// Money stores a currency-tagged decimal amount as a Notion "number"
// property; the currency lives in the column spec, not the bound
// value, matching spec.md §4.3's bind rule for Money.
type Money struct {
	Currency string
}

func (Money) Tag() Tag { return TagMoney }

func (Money) Bind(value any) (Fragment, error) {
	n, err := asFloat64(value)
	if err != nil {
		return nil, err
	}
	return Fragment{"number": n}, nil
}

func (Money) Result(fragment Fragment) (any, error) {
	return numberField(fragment)
}

func (m Money) ColSpec() Fragment {
	return Fragment{"number": Fragment{"format": moneyFormat(m.Currency)}}
}

func moneyFormat(currency string) string {
	switch currency {
	case "USD", "usd", "":
		return "dollar"
	case "EUR", "eur":
		return "euro"
	case "GBP", "gbp":
		return "pound"
	default:
		return "number"
	}
}

// String stores text as either a Notion "title" property (is_title)
// or a "rich_text" property.
type String struct {
	IsTitle bool
}

func (String) Tag() Tag { return TagString }

func (s String) Bind(value any) (Fragment, error) {
	str, ok := value.(string)
	if !ok {
		return nil, &normerr.InterfaceError{Reason: fmt.Sprintf("String.Bind: unsupported value %#v", value)}
	}
	content := Fragment{"text": Fragment{"content": str}}
	if s.IsTitle {
		return Fragment{"title": []any{content}}, nil
	}
	return Fragment{"rich_text": []any{content}}, nil
}

func (s String) Result(fragment Fragment) (any, error) {
	key := "rich_text"
	if s.IsTitle {
		key = "title"
	}
	raw, ok := fragment[key]
	if !ok {
		return nil, &normerr.InterfaceError{Reason: fmt.Sprintf("String.Result: missing %q field", key)}
	}
	items, ok := raw.([]any)
	if !ok || len(items) == 0 {
		return "", nil
	}
	first, ok := items[0].(map[string]any)
	if !ok {
		return nil, &normerr.InterfaceError{Reason: "String.Result: malformed text item"}
	}
	text, ok := first["text"].(map[string]any)
	if !ok {
		return nil, &normerr.InterfaceError{Reason: "String.Result: malformed text fragment"}
	}
	content, _ := text["content"].(string)
	return content, nil
}

func (s String) ColSpec() Fragment {
	if s.IsTitle {
		return Fragment{"title": Fragment{}}
	}
	return Fragment{"rich_text": Fragment{}}
}

// Boolean stores truth values as Notion "checkbox" properties.
type Boolean struct{}

func (Boolean) Tag() Tag { return TagBoolean }

func (Boolean) Bind(value any) (Fragment, error) {
	b, ok := value.(bool)
	if !ok {
		return nil, &normerr.InterfaceError{Reason: fmt.Sprintf("Boolean.Bind: unsupported value %#v", value)}
	}
	return Fragment{"checkbox": b}, nil
}

func (Boolean) Result(fragment Fragment) (any, error) {
	b, ok := fragment["checkbox"].(bool)
	if !ok {
		return nil, &normerr.InterfaceError{Reason: "Boolean.Result: missing checkbox field"}
	}
	return b, nil
}

func (Boolean) ColSpec() Fragment { return Fragment{"checkbox": Fragment{}} }

// Date stores time.Time values as Notion "date" properties.
type Date struct{}

func (Date) Tag() Tag { return TagDate }

func (Date) Bind(value any) (Fragment, error) {
	t, ok := value.(time.Time)
	if !ok {
		return nil, &normerr.InterfaceError{Reason: fmt.Sprintf("Date.Bind: unsupported value %#v", value)}
	}
	return Fragment{"date": Fragment{"start": t.UTC().Format(time.RFC3339), "end": nil}}, nil
}

func (Date) Result(fragment Fragment) (any, error) {
	date, ok := fragment["date"].(map[string]any)
	if !ok {
		return nil, &normerr.InterfaceError{Reason: "Date.Result: missing date field"}
	}
	start, ok := date["start"].(string)
	if !ok {
		return nil, &normerr.InterfaceError{Reason: "Date.Result: missing date.start"}
	}
	t, err := time.Parse(time.RFC3339, start)
	if err != nil {
		return nil, &normerr.InterfaceError{Reason: "Date.Result: " + err.Error()}
	}
	return t, nil
}

func (Date) ColSpec() Fragment { return Fragment{"date": Fragment{}} }

// UUID stores a uuid.UUID value as the `id` fragment (spec.md §4.3).
type UUID struct{}

func (UUID) Tag() Tag { return TagUUID }

func (UUID) Bind(value any) (Fragment, error) {
	u, err := asUUID(value)
	if err != nil {
		return nil, err
	}
	return Fragment{"id": u.String()}, nil
}

func (UUID) Result(fragment Fragment) (any, error) {
	s, ok := fragment["id"].(string)
	if !ok {
		return nil, &normerr.InterfaceError{Reason: "UUID.Result: missing id field"}
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return nil, &normerr.InterfaceError{Reason: "UUID.Result: " + err.Error()}
	}
	return u, nil
}

func (UUID) ColSpec() Fragment { return Fragment{"rich_text": Fragment{}} }

// ObjectID is the implicit `_no_id` column's type: the Notion object's
// own id.
type ObjectID struct{}

func (ObjectID) Tag() Tag { return TagObjectID }

func (ObjectID) Bind(value any) (Fragment, error) { return UUID{}.Bind(value) }

func (ObjectID) Result(fragment Fragment) (any, error) { return UUID{}.Result(fragment) }

func (ObjectID) ColSpec() Fragment { return Fragment{"rich_text": Fragment{}} }

// ArchivalFlag is the implicit `_no_archived` column's type: the
// Notion object's `archived` attribute.
type ArchivalFlag struct{}

func (ArchivalFlag) Tag() Tag { return TagArchivalFlag }

func (ArchivalFlag) Bind(value any) (Fragment, error) {
	b, ok := value.(bool)
	if !ok {
		return nil, &normerr.InterfaceError{Reason: fmt.Sprintf("ArchivalFlag.Bind: unsupported value %#v", value)}
	}
	return Fragment{"archived": b}, nil
}

func (ArchivalFlag) Result(fragment Fragment) (any, error) {
	b, ok := fragment["archived"].(bool)
	if !ok {
		return nil, &normerr.InterfaceError{Reason: "ArchivalFlag.Result: missing archived field"}
	}
	return b, nil
}

func (ArchivalFlag) ColSpec() Fragment { return Fragment{"checkbox": Fragment{}} }

// FromColumnType resolves an internal/ast.ColumnType (from a parsed
// CREATE TABLE) into its type Engine.
func FromColumnType(t ast.ColumnType) (Engine, error) {
	switch t.Name {
	case "INT":
		return Integer{}, nil
	case "NUMBER":
		return Numeric{}, nil
	case "MONEY":
		return Money{Currency: t.Currency}, nil
	case "VARCHAR":
		return String{IsTitle: false}, nil
	case "TITLE_VARCHAR":
		return String{IsTitle: true}, nil
	case "BOOL":
		return Boolean{}, nil
	case "DATE":
		return Date{}, nil
	default:
		return nil, &normerr.InterfaceError{Reason: fmt.Sprintf("unsupported column type %q", t.Name)}
	}
}

// TagFromWireSpec best-effort resolves a reflected property's Notion
// wire type key and its fragment back into a semantic Tag. Integer,
// Numeric, and an unrecognized-currency Money all emit the identical
// {"number": {"format": "number"}} shape, so a plain "number" format
// resolves to TagNumeric (the more general of the two); any other
// format is a currency name and resolves to TagMoney. A caller holding
// a locally declared schema.Column should prefer that column's own
// Engine.Tag() over this wire-only guess.
func TagFromWireSpec(wireKey string, fragment Fragment) Tag {
	switch wireKey {
	case "number":
		format, _ := fragment["format"].(string)
		if format == "" || format == "number" {
			return TagNumeric
		}
		return TagMoney
	case "title", "rich_text":
		return TagString
	case "checkbox":
		return TagBoolean
	case "date":
		return TagDate
	default:
		return Tag(wireKey)
	}
}

// FromTag resolves a reflected Tag string back into an Engine.
func FromTag(tag Tag, currency string) (Engine, error) {
	switch tag {
	case TagInteger:
		return Integer{}, nil
	case TagNumeric:
		return Numeric{}, nil
	case TagMoney:
		return Money{Currency: currency}, nil
	case TagString:
		return String{IsTitle: false}, nil
	case TagBoolean:
		return Boolean{}, nil
	case TagDate:
		return Date{}, nil
	case TagUUID:
		return UUID{}, nil
	case TagObjectID:
		return ObjectID{}, nil
	case TagArchivalFlag:
		return ArchivalFlag{}, nil
	default:
		return nil, &normerr.InvalidRequestError{Reason: fmt.Sprintf("unknown type engine tag %q", tag)}
	}
}

func asInt64(value any) (int64, error) {
	switch v := value.(type) {
	case int64:
		return v, nil
	case int:
		return int64(v), nil
	default:
		return 0, &normerr.InterfaceError{Reason: fmt.Sprintf("Integer.Bind: unsupported value %#v", value)}
	}
}

func asFloat64(value any) (float64, error) {
	switch v := value.(type) {
	case float64:
		return v, nil
	case int64:
		return float64(v), nil
	case int:
		return float64(v), nil
	default:
		return 0, &normerr.InterfaceError{Reason: fmt.Sprintf("Numeric.Bind: unsupported value %#v", value)}
	}
}

func asUUID(value any) (uuid.UUID, error) {
	switch v := value.(type) {
	case uuid.UUID:
		return v, nil
	case string:
		u, err := uuid.Parse(v)
		if err != nil {
			return uuid.UUID{}, &normerr.InterfaceError{Reason: "UUID.Bind: " + err.Error()}
		}
		return u, nil
	default:
		return uuid.UUID{}, &normerr.InterfaceError{Reason: fmt.Sprintf("UUID.Bind: unsupported value %#v", value)}
	}
}

func numberField(fragment Fragment) (float64, error) {
	raw, ok := fragment["number"]
	if !ok {
		return 0, &normerr.InterfaceError{Reason: "Result: missing number field"}
	}
	switch n := raw.(type) {
	case float64:
		return n, nil
	case int64:
		return float64(n), nil
	case int:
		return float64(n), nil
	default:
		return 0, &normerr.InterfaceError{Reason: fmt.Sprintf("Result: unsupported number field %#v", raw)}
	}
}
