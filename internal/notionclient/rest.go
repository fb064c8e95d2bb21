package notionclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"

	"normlite/internal/normerr"
)

const defaultBaseURL = "https://api.notion.com/v1"

// RESTClient talks to the live Notion API over HTTP. Idempotent,
// GET-shaped requests (retrieve, query) are retried with exponential
// backoff; create/update are not retried, since retrying a
// non-idempotent write risks duplicating it.
type RESTClient struct {
	BaseURL    string
	Token      string
	Version    string
	HTTPClient *http.Client
}

// NewRESTClient creates a client authenticated with token.
func NewRESTClient(token string) *RESTClient {
	return &RESTClient{
		BaseURL:    defaultBaseURL,
		Token:      token,
		Version:    "2022-06-28",
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *RESTClient) Invoke(ctx context.Context, endpoint Endpoint, request Request, payload Payload) (Payload, error) {
	method, path, retryable, err := route(endpoint, request, payload)
	if err != nil {
		return nil, err
	}

	var result Payload
	op := func() error {
		resp, err := c.do(ctx, method, path, payload)
		if err != nil {
			return err
		}
		result = resp
		return nil
	}

	if !retryable {
		if err := op(); err != nil {
			return nil, err
		}
		return result, nil
	}

	bo := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 4), ctx)
	if err := backoff.Retry(op, bo); err != nil {
		return nil, err
	}
	return result, nil
}

func route(endpoint Endpoint, request Request, payload Payload) (method, path string, retryable bool, err error) {
	switch endpoint {
	case EndpointPages:
		switch request {
		case RequestCreate:
			return http.MethodPost, "/pages", false, nil
		case RequestRetrieve:
			id, _ := payload["page_id"].(string)
			return http.MethodGet, "/pages/" + id, true, nil
		case RequestUpdate:
			id, _ := payload["page_id"].(string)
			return http.MethodPatch, "/pages/" + id, false, nil
		}
	case EndpointDatabases:
		switch request {
		case RequestCreate:
			return http.MethodPost, "/databases", false, nil
		case RequestRetrieve:
			id, _ := payload["database_id"].(string)
			return http.MethodGet, "/databases/" + id, true, nil
		case RequestQuery:
			id, _ := payload["database_id"].(string)
			return http.MethodPost, "/databases/" + id + "/query", true, nil
		}
	case EndpointBlocks:
		if request == RequestCreate {
			id, _ := payload["block_id"].(string)
			return http.MethodPatch, "/blocks/" + id + "/children", false, nil
		}
	}
	return "", "", false, unsupported(endpoint, request)
}

func (c *RESTClient) do(ctx context.Context, method, path string, payload Payload) (Payload, error) {
	var body io.Reader
	if method != http.MethodGet {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return nil, &normerr.InterfaceError{Reason: "rest client: encode payload: " + err.Error()}
		}
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return nil, &normerr.OperationalError{Reason: "rest client: build request", Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+c.Token)
	req.Header.Set("Notion-Version", c.Version)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, backoff.Permanent(&normerr.OperationalError{Reason: "rest client: do request", Err: err})
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &normerr.OperationalError{Reason: "rest client: read response", Err: err}
	}

	if resp.StatusCode >= 500 {
		return nil, &normerr.OperationalError{Reason: fmt.Sprintf("rest client: server error %d", resp.StatusCode)}
	}
	if resp.StatusCode >= 400 {
		return nil, backoff.Permanent(&normerr.DatabaseError{Reason: fmt.Sprintf("rest client: status %d: %s", resp.StatusCode, string(data))})
	}

	var result Payload
	if len(data) > 0 {
		if err := json.Unmarshal(data, &result); err != nil {
			return nil, backoff.Permanent(&normerr.InternalError{Reason: "rest client: decode response: " + err.Error()})
		}
	}
	return result, nil
}
