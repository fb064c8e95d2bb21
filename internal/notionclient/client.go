// Package notionclient defines the pluggable Notion client contract
// (C6) and its implementations: an in-memory store for deterministic
// tests, a file-backed store for persistence, and an HTTP-backed store
// that talks to the real Notion API.
package notionclient

import (
	"context"
	"fmt"

	"normlite/internal/normerr"
)

// Endpoint names a Notion API resource family.
type Endpoint string

const (
	EndpointPages     Endpoint = "pages"
	EndpointDatabases Endpoint = "databases"
	EndpointBlocks    Endpoint = "blocks"
)

// Request names the operation performed against an Endpoint.
type Request string

const (
	RequestCreate   Request = "create"
	RequestRetrieve Request = "retrieve"
	RequestUpdate   Request = "update"
	RequestQuery    Request = "query"
)

// Payload is a JSON-shaped request/response body.
type Payload = map[string]any

// Client is the only collaborator permitted to mutate remote state;
// every other component is a pure function of schema + AST +
// parameters.
type Client interface {
	// Invoke enacts endpoint/request/payload and returns the resulting
	// JSON object. Unknown (endpoint, request) pairs fail with
	// *normerr.DatabaseError.
	Invoke(ctx context.Context, endpoint Endpoint, request Request, payload Payload) (Payload, error)
}

// unsupported builds the NotionError (spec.md §4.6), modeled as a
// normerr.DatabaseError: a general failure surfaced by the client.
func unsupported(endpoint Endpoint, request Request) error {
	return &normerr.DatabaseError{Reason: fmt.Sprintf("unsupported operation %s.%s", endpoint, request)}
}
