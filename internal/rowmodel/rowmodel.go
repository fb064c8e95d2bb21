// Package rowmodel flattens a Notion JSON object (a page or a
// database) into an ordered positional tuple, the shape internal/dbapi
// wraps into Row values. Dispatch is a single switch over the already
// tagged object kind (spec.md §9 DESIGN NOTES: tagged dispatch, not
// virtual method dispatch).
package rowmodel

import (
	"fmt"
	"sort"

	"normlite/internal/normerr"
	"normlite/internal/notionclient"
	"normlite/internal/schema"
	"normlite/internal/types"
)

// PropertyValue is one (name, column id, type tag, value) tuple
// entry, mirroring an information_schema.columns row.
type PropertyValue struct {
	Name  string
	PID   string
	Type  types.Tag
	Value any
}

// PageRow is the flattened tuple for a Notion page object.
type PageRow struct {
	Object     string // always "page"
	ID         string
	Archived   bool
	InTrash    bool
	Properties []PropertyValue
}

// FlattenPage visits a Notion page JSON payload and produces an
// ordered tuple, one PropertyValue per column of table, in table's
// declared column order (spec.md §4.7: "this becomes the canonical
// column order unless overridden by a schema lookup" — here a schema
// lookup is always available, since every mutating/selecting
// statement is compiled against a registered table).
func FlattenPage(table *schema.Table, payload notionclient.Payload) (*PageRow, error) {
	id, _ := payload["id"].(string)
	archived, _ := payload["archived"].(bool)
	inTrash, _ := payload["in_trash"].(bool)

	propsMap, _ := payload["properties"].(notionclient.Payload)

	row := &PageRow{Object: "page", ID: id, Archived: archived, InTrash: inTrash}
	for _, col := range table.Columns().All() {
		fragment, err := fragmentFor(col, id, archived, propsMap)
		if err != nil {
			return nil, err
		}
		value, err := col.Engine.Result(fragment)
		if err != nil {
			return nil, &normerr.InternalError{Reason: fmt.Sprintf("flatten page: column %q: %v", col.Name, err)}
		}
		row.Properties = append(row.Properties, PropertyValue{Name: col.Name, Type: col.Engine.Tag(), Value: value})
	}
	return row, nil
}

func fragmentFor(col *schema.Column, id string, archived bool, propsMap notionclient.Payload) (notionclient.Payload, error) {
	switch col.Name {
	case schema.ImplicitObjectIDColumn:
		return notionclient.Payload{"id": id}, nil
	case schema.ImplicitArchivedColumn:
		return notionclient.Payload{"archived": archived}, nil
	default:
		fragment, ok := propsMap[col.Name].(notionclient.Payload)
		if !ok {
			return nil, &normerr.InterfaceError{Reason: fmt.Sprintf("flatten page: missing properties.%s", col.Name)}
		}
		return fragment, nil
	}
}

// DatabaseSchemaRow is the flattened tuple for a Notion database
// object's *schema* (its properties map describes column definitions,
// not data), used by internal/reflect.
type DatabaseSchemaRow struct {
	Object   string // always "database"
	ID       string
	Title    string
	Archived bool
	InTrash  bool
	Columns  []PropertyValue // Value is always nil; Type is the reflected wire type tag
}

// FlattenDatabaseSchema visits a Notion database JSON payload and
// produces one PropertyValue per declared property, in the order the
// JSON object declared them (databases.retrieve responses are decoded
// with an order-preserving walk over the raw property list supplied by
// the caller, since Go's map type does not preserve JSON key order).
func FlattenDatabaseSchema(payload notionclient.Payload, propertyOrder []string) (*DatabaseSchemaRow, error) {
	id, _ := payload["id"].(string)
	archived, _ := payload["archived"].(bool)
	inTrash, _ := payload["in_trash"].(bool)
	title := titleOf(payload)

	propsMap, _ := payload["properties"].(notionclient.Payload)

	row := &DatabaseSchemaRow{Object: "database", ID: id, Title: title, Archived: archived, InTrash: inTrash}
	for _, name := range propertyOrder {
		spec, ok := propsMap[name].(notionclient.Payload)
		if !ok {
			continue
		}
		wireTag, propID := wireTypeOf(spec)
		row.Columns = append(row.Columns, PropertyValue{Name: name, PID: propID, Type: wireTag})
	}
	return row, nil
}

// PropertyNames returns a database's property names, sorted, for a
// caller (cmd/normlite's inspect) that does not already have a
// schema.Table to supply column order to FlattenDatabaseSchema.
func PropertyNames(payload notionclient.Payload) []string {
	props, _ := payload["properties"].(notionclient.Payload)
	if len(props) == 0 {
		return nil
	}
	names := make([]string, 0, len(props))
	for name := range props {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func titleOf(payload notionclient.Payload) string {
	title, ok := payload["title"].([]any)
	if !ok || len(title) == 0 {
		return ""
	}
	first, ok := title[0].(notionclient.Payload)
	if !ok {
		return ""
	}
	text, ok := first["text"].(notionclient.Payload)
	if !ok {
		return ""
	}
	content, _ := text["content"].(string)
	return content
}

// wireTypeOf resolves the first non-"id" key of a property spec map to
// a semantic type engine tag, e.g. {"id": "abc", "date": {}} -> ("date",
// "abc"). It goes through types.TagFromWireSpec rather than returning
// the wire key verbatim, since the wire key alone collapses several
// type engine variants (Integer/Numeric/Money all show up as "number").
func wireTypeOf(spec notionclient.Payload) (types.Tag, string) {
	id, _ := spec["id"].(string)
	for k, v := range spec {
		if k == "id" {
			continue
		}
		fragment, _ := v.(notionclient.Payload)
		return types.TagFromWireSpec(k, fragment), id
	}
	return "", id
}
