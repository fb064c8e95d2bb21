// Package config loads a connection profile describing which backing
// store a Connection should run against, grounded on the teacher's
// internal/parser/toml package: decode into a small TOML-tagged
// struct with BurntSushi/toml, then validate.
package config

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/BurntSushi/toml"

	"normlite/internal/normerr"
	"normlite/internal/notionclient"
)

// StoreKind selects which notionclient.Client implementation a
// Profile resolves to.
type StoreKind string

const (
	StoreMemory StoreKind = "memory"
	StoreFile   StoreKind = "file"
	StoreHTTP   StoreKind = "http"
)

// AuthMode distinguishes the two normlite+auth:// URI forms
// (spec.md §6): a pre-issued internal token versus an OAuth-style
// client credential exchange handled by an external collaborator.
type AuthMode string

const (
	AuthNone     AuthMode = ""
	AuthInternal AuthMode = "internal"
	AuthExternal AuthMode = "external"
)

// Profile is the connection profile shared by internal/config (file)
// and internal/uri (URI string) — both surfaces converge on this one
// struct so cmd/normlite and internal/proxyhttp have a single type to
// build a Connection from.
type Profile struct {
	Store StoreKind `toml:"store"`
	Path  string    `toml:"path"`

	AuthMode     AuthMode `toml:"-"`
	Token        string   `toml:"token"`
	Version      string   `toml:"version"`
	ClientID     string   `toml:"client_id"`
	ClientSecret string   `toml:"client_secret"`
	AuthURL      string   `toml:"auth_url"`

	Isolation        string `toml:"isolation"`
	LockRetries      int    `toml:"lock_retries"`
	LockRetryDelayMS int    `toml:"lock_retry_delay_ms"`
}

// Default returns the profile normlite uses when neither --config nor
// --uri is given: an in-memory store, no lock retries.
func Default() Profile {
	return Profile{Store: StoreMemory}
}

// LockRetryDelay is LockRetryDelayMS as a time.Duration.
func (p Profile) LockRetryDelay() time.Duration {
	return time.Duration(p.LockRetryDelayMS) * time.Millisecond
}

// Load reads path and decodes it as a TOML connection profile.
func Load(path string) (Profile, error) {
	f, err := os.Open(path)
	if err != nil {
		return Profile{}, &normerr.OperationalError{Reason: fmt.Sprintf("config: open %q", path), Err: err}
	}
	defer f.Close()
	return Decode(f)
}

// Decode reads a TOML connection profile from r.
func Decode(r io.Reader) (Profile, error) {
	var p Profile
	if _, err := toml.NewDecoder(r).Decode(&p); err != nil {
		return Profile{}, &normerr.OperationalError{Reason: "config: decode", Err: err}
	}
	if err := p.validate(); err != nil {
		return Profile{}, err
	}
	return p, nil
}

func (p Profile) validate() error {
	switch p.Store {
	case StoreMemory, "":
		return nil
	case StoreFile:
		if p.Path == "" {
			return &normerr.InvalidRequestError{Reason: "config: store \"file\" requires path"}
		}
		return nil
	case StoreHTTP:
		if p.Token == "" {
			return &normerr.InvalidRequestError{Reason: "config: store \"http\" requires token"}
		}
		return nil
	default:
		return &normerr.InvalidRequestError{Reason: fmt.Sprintf("config: unknown store %q", p.Store)}
	}
}

// Client builds the notionclient.Client this profile describes.
// AuthExternal profiles name an OAuth exchange this package does not
// perform — ClientID/ClientSecret/AuthURL are carried for an external
// engine-factory collaborator (spec.md §6) to consume, not resolved
// here.
func (p Profile) Client() (notionclient.Client, error) {
	switch p.Store {
	case StoreMemory, "":
		return notionclient.NewMemoryClient(), nil
	case StoreFile:
		return notionclient.Open(p.Path)
	case StoreHTTP:
		if p.AuthMode == AuthExternal {
			return nil, &normerr.InvalidRequestError{Reason: "config: external auth exchange is not performed by this package"}
		}
		client := notionclient.NewRESTClient(p.Token)
		if p.Version != "" {
			client.Version = p.Version
		}
		return client, nil
	default:
		return nil, &normerr.InvalidRequestError{Reason: fmt.Sprintf("config: unknown store %q", p.Store)}
	}
}
