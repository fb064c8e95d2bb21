package notionclient

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"normlite/internal/normerr"
)

// FileClient wraps a MemoryClient, loading its store from a JSON file
// on Open and dumping it atomically (write to a temp file, then
// rename) on Close. The store is written only when the caller calls
// Close; nothing else triggers a dump.
type FileClient struct {
	path string
	mem  *MemoryClient
}

// record is the on-disk shape of one stored object: either a page or a
// database, disambiguated by Object.
type record struct {
	Object     string `json:"object"`
	ID         string `json:"id"`
	Title      string `json:"title,omitempty"`
	Archived   bool   `json:"archived"`
	InTrash    bool   `json:"in_trash"`
	Properties Payload `json:"properties"`
	Parent     Payload `json:"parent,omitempty"`
}

// Open loads path (if it exists) into a fresh MemoryClient. A missing
// file is treated as an empty store seeded with the stable root page.
func Open(path string) (*FileClient, error) {
	fc := &FileClient{path: path, mem: NewMemoryClient()}
	if err := fc.load(); err != nil {
		return nil, err
	}
	return fc, nil
}

func (fc *FileClient) load() error {
	data, err := os.ReadFile(fc.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return &normerr.OperationalError{Reason: "file client: read store", Err: err}
	}
	var records []record
	if len(data) > 0 {
		if err := json.Unmarshal(data, &records); err != nil {
			return &normerr.OperationalError{Reason: "file client: decode store", Err: err}
		}
	}

	fc.mem.mu.Lock()
	defer fc.mem.mu.Unlock()
	for _, r := range records {
		switch r.Object {
		case "page":
			fc.mem.pages[r.ID] = &pageRecord{ID: r.ID, Archived: r.Archived, InTrash: r.InTrash, Properties: r.Properties, Parent: r.Parent}
		case "database":
			fc.mem.databases[r.ID] = &databaseRecord{ID: r.ID, Title: r.Title, Archived: r.Archived, InTrash: r.InTrash, Properties: r.Properties, Parent: r.Parent}
		}
	}
	return nil
}

// Close dumps the current store to path atomically: write to a
// sibling temp file, then rename over the destination.
func (fc *FileClient) Close() error {
	fc.mem.mu.Lock()
	records := make([]record, 0, len(fc.mem.pages)+len(fc.mem.databases))
	for _, p := range fc.mem.pages {
		records = append(records, record{Object: "page", ID: p.ID, Archived: p.Archived, InTrash: p.InTrash, Properties: p.Properties, Parent: p.Parent})
	}
	for _, d := range fc.mem.databases {
		records = append(records, record{Object: "database", ID: d.ID, Title: d.Title, Archived: d.Archived, InTrash: d.InTrash, Properties: d.Properties, Parent: d.Parent})
	}
	fc.mem.mu.Unlock()

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return &normerr.OperationalError{Reason: "file client: encode store", Err: err}
	}

	dir := filepath.Dir(fc.path)
	tmp, err := os.CreateTemp(dir, ".normlite-store-*.tmp")
	if err != nil {
		return &normerr.OperationalError{Reason: "file client: create temp file", Err: err}
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return &normerr.OperationalError{Reason: "file client: write temp file", Err: err}
	}
	if err := tmp.Close(); err != nil {
		return &normerr.OperationalError{Reason: "file client: close temp file", Err: err}
	}
	if err := os.Rename(tmpPath, fc.path); err != nil {
		return &normerr.OperationalError{Reason: fmt.Sprintf("file client: rename %s to %s", tmpPath, fc.path), Err: err}
	}
	return nil
}

// Invoke implements Client by delegating to the wrapped MemoryClient.
func (fc *FileClient) Invoke(ctx context.Context, endpoint Endpoint, request Request, payload Payload) (Payload, error) {
	return fc.mem.Invoke(ctx, endpoint, request, payload)
}
