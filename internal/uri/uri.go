// Package uri parses the normlite:// connection URI surface
// (spec.md §6) into an internal/config.Profile, so a caller can
// build a Connection from either a TOML file or a single URI string.
package uri

import (
	"fmt"
	"net/url"
	"strings"

	"normlite/internal/config"
	"normlite/internal/normerr"
)

const memoryPath = ":memory:"

// Parse parses raw against the four documented forms:
//
//	normlite:///:memory:
//	normlite:///path/to/file.db
//	normlite+auth://internal?token=<t>&version=<v>
//	normlite+auth://external?client_id=<c>&client_secret=<s>&auth_url=<u>
//
// Any other shape is an InvalidRequestError.
func Parse(raw string) (config.Profile, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return config.Profile{}, &normerr.InvalidRequestError{Reason: fmt.Sprintf("uri: %s", err)}
	}

	switch u.Scheme {
	case "normlite":
		return parsePlain(u)
	case "normlite+auth":
		return parseAuth(u)
	default:
		return config.Profile{}, &normerr.InvalidRequestError{Reason: fmt.Sprintf("uri: unsupported scheme %q", u.Scheme)}
	}
}

func parsePlain(u *url.URL) (config.Profile, error) {
	path := strings.TrimPrefix(u.Path, "/")
	if path == "" {
		return config.Profile{}, &normerr.InvalidRequestError{Reason: "uri: missing path"}
	}
	if path == memoryPath {
		return config.Profile{Store: config.StoreMemory}, nil
	}
	return config.Profile{Store: config.StoreFile, Path: path}, nil
}

func parseAuth(u *url.URL) (config.Profile, error) {
	q := u.Query()
	switch u.Host {
	case "internal":
		token := q.Get("token")
		if token == "" {
			return config.Profile{}, &normerr.InvalidRequestError{Reason: "uri: normlite+auth://internal requires token"}
		}
		return config.Profile{
			Store:    config.StoreHTTP,
			AuthMode: config.AuthInternal,
			Token:    token,
			Version:  q.Get("version"),
		}, nil
	case "external":
		clientID, clientSecret, authURL := q.Get("client_id"), q.Get("client_secret"), q.Get("auth_url")
		if clientID == "" || clientSecret == "" || authURL == "" {
			return config.Profile{}, &normerr.InvalidRequestError{Reason: "uri: normlite+auth://external requires client_id, client_secret and auth_url"}
		}
		return config.Profile{
			Store:        config.StoreHTTP,
			AuthMode:     config.AuthExternal,
			ClientID:     clientID,
			ClientSecret: clientSecret,
			AuthURL:      authURL,
		}, nil
	default:
		return config.Profile{}, &normerr.InvalidRequestError{Reason: fmt.Sprintf("uri: unknown normlite+auth host %q", u.Host)}
	}
}
