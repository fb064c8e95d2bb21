// Package proxyhttp implements the thin HTTP adapter over the
// Connection/composite-cursor pair (C10/C11): one route per
// begin/stage/commit/rollback verb, every response shaped as the
// documented {transaction_id?, state, data?, error?} envelope. The
// routing shell itself is ambient service scaffolding, grounded the
// way the rest of the pack exposes a control surface over an
// otherwise headless engine.
package proxyhttp

import (
	"encoding/json"
	"net/http"
	"sync"

	"normlite/internal/conn"
	"normlite/internal/dbapi"
	"normlite/internal/notionclient"
	"normlite/internal/parser"
	"normlite/internal/reflect"
	"normlite/internal/schema"
	"normlite/internal/txn"
)

// Server routes the four documented endpoints against one store,
// sharing a single transaction manager across every transaction it
// opens so locks contend the way two real clients of one store would.
type Server struct {
	client    notionclient.Client
	md        *schema.MetaData
	reflector *reflect.Reflector
	txns      *txn.Manager

	mu    sync.Mutex
	conns map[string]*conn.Connection

	mux *http.ServeMux
}

// NewServer builds a Server over client, md and reflector.
func NewServer(client notionclient.Client, md *schema.MetaData, reflector *reflect.Reflector) *Server {
	s := &Server{
		client:    client,
		md:        md,
		reflector: reflector,
		txns:      txn.NewManager(),
		conns:     make(map[string]*conn.Connection),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /transactions", s.handleBegin)
	mux.HandleFunc("POST /transactions/{tid}/insert", s.handleInsert)
	mux.HandleFunc("POST /transactions/{tid}/commit", s.handleCommit)
	mux.HandleFunc("POST /transactions/{tid}/rollback", s.handleRollback)
	s.mux = mux
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.mux.ServeHTTP(w, r) }

// envelope is the response shape every route returns, per spec.md §6:
// {transaction_id?, state, data?, error?}.
type envelope struct {
	TransactionID string      `json:"transaction_id,omitempty"`
	State         string      `json:"state"`
	Data          []resultSet `json:"data,omitempty"`
	Error         string      `json:"error,omitempty"`
}

// resultSet is one SELECT's worth of rows, column-named.
type resultSet struct {
	Columns []string `json:"columns"`
	Rows    [][]any  `json:"rows"`
}

type stageRequest struct {
	SQL    string         `json:"sql"`
	Params map[string]any `json:"params,omitempty"`
}

func (s *Server) lookup(tid string) (*conn.Connection, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.conns[tid]
	return c, ok
}

func (s *Server) forget(tid string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.conns, tid)
}

func (s *Server) handleBegin(w http.ResponseWriter, r *http.Request) {
	c := conn.NewManagerBacked(s.client, s.md, s.reflector, s.txns)
	tid := c.Begin()

	s.mu.Lock()
	s.conns[tid] = c
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, envelope{TransactionID: tid, State: "ACTIVE"})
}

func (s *Server) handleInsert(w http.ResponseWriter, r *http.Request) {
	tid := r.PathValue("tid")
	c, ok := s.lookup(tid)
	if !ok {
		writeJSON(w, http.StatusNotFound, envelope{TransactionID: tid, State: "NONE", Error: "unknown transaction"})
		return
	}

	var req stageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, envelope{TransactionID: tid, State: "ACTIVE", Error: err.Error()})
		return
	}

	stmt, err := parser.Parse(req.SQL)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, envelope{TransactionID: tid, State: "ACTIVE", Error: err.Error()})
		return
	}

	if _, err := c.Execute(r.Context(), stmt, req.Params); err != nil {
		writeJSON(w, http.StatusBadRequest, envelope{TransactionID: tid, State: "ACTIVE", Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, envelope{TransactionID: tid, State: "ACTIVE"})
}

func (s *Server) handleCommit(w http.ResponseWriter, r *http.Request) {
	tid := r.PathValue("tid")
	c, ok := s.lookup(tid)
	if !ok {
		writeJSON(w, http.StatusNotFound, envelope{TransactionID: tid, State: "NONE", Error: "unknown transaction"})
		return
	}
	defer s.forget(tid)

	if err := c.Commit(r.Context()); err != nil {
		writeJSON(w, http.StatusConflict, envelope{TransactionID: tid, State: "FAILED", Error: err.Error()})
		return
	}

	composite, _ := c.LastResult()
	writeJSON(w, http.StatusOK, envelope{TransactionID: tid, State: "COMMITTED", Data: collectResultSets(composite)})
}

func (s *Server) handleRollback(w http.ResponseWriter, r *http.Request) {
	tid := r.PathValue("tid")
	c, ok := s.lookup(tid)
	if !ok {
		writeJSON(w, http.StatusNotFound, envelope{TransactionID: tid, State: "NONE", Error: "unknown transaction"})
		return
	}
	defer s.forget(tid)

	if err := c.Rollback(r.Context()); err != nil {
		writeJSON(w, http.StatusConflict, envelope{TransactionID: tid, State: "FAILED", Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, envelope{TransactionID: tid, State: "ABORTED"})
}

// collectResultSets drains every child of a committed composite
// cursor into a JSON-friendly resultSet. A composite cursor with no
// result-bearing children (every staged statement was a CREATE TABLE
// or INSERT) returns nil here, read the same way Description erroring
// on an empty composite is read elsewhere: no result sets at all.
func collectResultSets(composite *dbapi.CompositeCursor) []resultSet {
	if composite == nil {
		return nil
	}

	var sets []resultSet
	for {
		desc, err := composite.Description()
		if err != nil {
			return sets
		}
		rows, err := composite.FetchAll()
		if err != nil {
			return sets
		}

		cols := make([]string, len(desc))
		for i, d := range desc {
			cols[i] = d.Name
		}
		values := make([][]any, len(rows))
		for i, row := range rows {
			values[i] = row.Values()
		}
		sets = append(sets, resultSet{Columns: cols, Rows: values})

		if !composite.NextSet() {
			return sets
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
