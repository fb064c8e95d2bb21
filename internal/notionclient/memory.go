package notionclient

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"normlite/internal/normerr"
)

// RootPageID is the stable id of the page every MemoryClient seeds on
// construction and on Reset, so tests that depend on a known parent
// page remain deterministic across resets (spec.md §4.6).
const RootPageID = "00000000-0000-4000-8000-000000000000"

type pageRecord struct {
	ID         string
	Archived   bool
	InTrash    bool
	Properties Payload
	Parent     Payload
	CreatedAt  time.Time
}

type databaseRecord struct {
	ID         string
	Title      string
	Archived   bool
	InTrash    bool
	Properties Payload
	Parent     Payload
}

// MemoryClient is an in-memory store guarded by a single mutex,
// matching spec.md §5's "atomic with respect to that mutex" rule. All
// client invocations lock for their full duration. Each MemoryClient
// owns its own store: separate instances share no pages or databases.
type MemoryClient struct {
	mu        sync.Mutex
	pages     map[string]*pageRecord
	databases map[string]*databaseRecord
}

// NewMemoryClient creates a store pre-seeded with the stable root
// page.
func NewMemoryClient() *MemoryClient {
	c := &MemoryClient{}
	c.Reset()
	return c
}

// Reset clears the store and reseeds the stable root page. The root
// page's id never changes across resets.
func (c *MemoryClient) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pages = map[string]*pageRecord{
		RootPageID: {ID: RootPageID, Properties: Payload{}, CreatedAt: time.Unix(0, 0).UTC()},
	}
	c.databases = map[string]*databaseRecord{}
}

// Invoke implements Client.
func (c *MemoryClient) Invoke(_ context.Context, endpoint Endpoint, request Request, payload Payload) (Payload, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch endpoint {
	case EndpointPages:
		return c.invokePages(request, payload)
	case EndpointDatabases:
		return c.invokeDatabases(request, payload)
	case EndpointBlocks:
		return c.invokeBlocks(request, payload)
	default:
		return nil, unsupported(endpoint, request)
	}
}

func (c *MemoryClient) invokePages(request Request, payload Payload) (Payload, error) {
	switch request {
	case RequestCreate:
		return c.createPage(payload)
	case RequestRetrieve:
		return c.retrievePage(payload)
	case RequestUpdate:
		return c.updatePage(payload)
	default:
		return nil, unsupported(EndpointPages, request)
	}
}

func (c *MemoryClient) createPage(payload Payload) (Payload, error) {
	parent, ok := payload["parent"].(Payload)
	if !ok {
		return nil, &normerr.InterfaceError{Reason: "pages.create: missing parent"}
	}
	properties, ok := payload["properties"].(Payload)
	if !ok {
		return nil, &normerr.InterfaceError{Reason: "pages.create: missing properties"}
	}
	rec := &pageRecord{
		ID:         uuid.New().String(),
		Properties: properties,
		Parent:     parent,
		CreatedAt:  time.Now().UTC(),
	}
	c.pages[rec.ID] = rec
	return pageToPayload(rec), nil
}

func (c *MemoryClient) retrievePage(payload Payload) (Payload, error) {
	id, _ := payload["page_id"].(string)
	rec, ok := c.pages[id]
	if !ok {
		return nil, &normerr.DatabaseError{Reason: "page not found: " + id}
	}
	return pageToPayload(rec), nil
}

func (c *MemoryClient) updatePage(payload Payload) (Payload, error) {
	id, _ := payload["page_id"].(string)
	rec, ok := c.pages[id]
	if !ok {
		return nil, &normerr.DatabaseError{Reason: "page not found: " + id}
	}
	if props, ok := payload["properties"].(Payload); ok {
		for k, v := range props {
			if rec.Properties == nil {
				rec.Properties = Payload{}
			}
			rec.Properties[k] = v
		}
	}
	if archived, ok := payload["archived"].(bool); ok {
		rec.Archived = archived
	}
	return pageToPayload(rec), nil
}

func (c *MemoryClient) invokeDatabases(request Request, payload Payload) (Payload, error) {
	switch request {
	case RequestCreate:
		return c.createDatabase(payload)
	case RequestRetrieve:
		return c.retrieveDatabase(payload)
	case RequestQuery:
		return c.queryDatabase(payload)
	default:
		return nil, unsupported(EndpointDatabases, request)
	}
}

func (c *MemoryClient) createDatabase(payload Payload) (Payload, error) {
	title, _ := payload["title"].([]any)
	properties, ok := payload["properties"].(Payload)
	if !ok {
		return nil, &normerr.InterfaceError{Reason: "databases.create: missing properties"}
	}
	parent, _ := payload["parent"].(Payload)

	rec := &databaseRecord{
		ID:         uuid.New().String(),
		Title:      titleText(title),
		Properties: properties,
		Parent:     parent,
	}
	c.databases[rec.ID] = rec
	return databaseToPayload(rec), nil
}

func (c *MemoryClient) retrieveDatabase(payload Payload) (Payload, error) {
	id, _ := payload["database_id"].(string)
	rec, ok := c.databases[id]
	if !ok {
		return nil, &normerr.DatabaseError{Reason: "database not found: " + id}
	}
	return databaseToPayload(rec), nil
}

func (c *MemoryClient) queryDatabase(payload Payload) (Payload, error) {
	id, _ := payload["database_id"].(string)
	if _, ok := c.databases[id]; !ok {
		return nil, &normerr.DatabaseError{Reason: "database not found: " + id}
	}
	filter, hasFilter := payload["filter"].(Payload)

	var matches []*pageRecord
	for _, rec := range c.pagesInDatabaseOrder(id) {
		if hasFilter && !matchesFilter(rec.Properties, filter) {
			continue
		}
		matches = append(matches, rec)
	}

	results := make([]any, len(matches))
	for i, rec := range matches {
		results[i] = pageToPayload(rec)
	}
	return Payload{"object": "list", "results": results}, nil
}

func (c *MemoryClient) invokeBlocks(request Request, payload Payload) (Payload, error) {
	switch request {
	case RequestCreate:
		return Payload{"object": "list", "results": []any{}}, nil
	default:
		return nil, unsupported(EndpointBlocks, request)
	}
}

func pageToPayload(rec *pageRecord) Payload {
	return Payload{
		"object":     "page",
		"id":         rec.ID,
		"archived":   rec.Archived,
		"in_trash":   rec.InTrash,
		"properties": rec.Properties,
		"parent":     rec.Parent,
	}
}

func databaseToPayload(rec *databaseRecord) Payload {
	return Payload{
		"object":     "database",
		"id":         rec.ID,
		"title":      []any{Payload{"text": Payload{"content": rec.Title}}},
		"archived":   rec.Archived,
		"in_trash":   rec.InTrash,
		"properties": rec.Properties,
		"parent":     rec.Parent,
	}
}

func titleText(title []any) string {
	if len(title) == 0 {
		return ""
	}
	first, ok := title[0].(Payload)
	if !ok {
		return ""
	}
	text, ok := first["text"].(Payload)
	if !ok {
		return ""
	}
	content, _ := text["content"].(string)
	return content
}

// pagesInDatabaseOrder returns pages whose parent.database_id equals
// dbID, in insertion (creation) order.
func (c *MemoryClient) pagesInDatabaseOrder(dbID string) []*pageRecord {
	var out []*pageRecord
	for _, rec := range c.pages {
		if rec.Parent == nil {
			continue
		}
		if parentDB, ok := rec.Parent["database_id"].(string); ok && parentDB == dbID {
			out = append(out, rec)
		}
	}
	// c.pages is a map; restore creation order.
	sortByCreatedAt(out)
	return out
}

func sortByCreatedAt(recs []*pageRecord) {
	for i := 1; i < len(recs); i++ {
		for j := i; j > 0 && recs[j].CreatedAt.Before(recs[j-1].CreatedAt); j-- {
			recs[j], recs[j-1] = recs[j-1], recs[j]
		}
	}
}
