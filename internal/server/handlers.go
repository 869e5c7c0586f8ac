package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/leapstack-labs/leapquery/pkg/adapter"
	"github.com/leapstack-labs/leapquery/pkg/criteria"
	"github.com/leapstack-labs/leapquery/pkg/query"
)

// queryInfo describes one named query.
type queryInfo struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Action      string `json:"action"`
	Start       string `json:"start"`
}

// queryResult is the body of a query execution.
type queryResult struct {
	Name    string            `json:"name"`
	Action  string            `json:"action"`
	Records []criteria.Record `json:"records"`
}

type errorBody struct {
	Error string `json:"error"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleList(w http.ResponseWriter, _ *http.Request) {
	names := make([]string, 0, len(s.defs))
	for name := range s.defs {
		names = append(names, name)
	}
	sort.Strings(names)

	infos := make([]queryInfo, 0, len(names))
	for _, name := range names {
		def := s.defs[name]
		infos = append(infos, queryInfo{
			Name:        name,
			Description: def.Description,
			Action:      def.Action,
			Start:       def.Start,
		})
	}
	writeJSON(w, http.StatusOK, infos)
}

// handleRun executes a named query. The limit and page parameters
// override the declared paging.
func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	q, action, ok := s.lookup(w, name)
	if !ok {
		return
	}

	for param, apply := range map[string]func(int) *query.Query{"limit": q.Limit, "page": q.Page} {
		raw := r.URL.Query().Get(param)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, fmt.Errorf("%s must be a positive integer", param))
			return
		}
		apply(n)
	}

	records, err := s.execute(r.Context(), q, action)
	if err != nil {
		s.logger.Debug("query failed", "query", name, "error", err.Error())
		writeError(w, statusFor(err), err)
		return
	}
	if records == nil {
		records = []criteria.Record{}
	}
	writeJSON(w, http.StatusOK, queryResult{Name: name, Action: action, Records: records})
}

// handleEvents streams matching record changes as server-sent events.
// The event name is the change kind and the data is the record.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	q, _, ok := s.lookup(w, name)
	if !ok {
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, errors.New("streaming unsupported"))
		return
	}

	changes := make(chan query.Change, 64)
	ctx := r.Context()
	cancel, err := q.Subscribe(ctx, func(c query.Change) {
		select {
		case changes <- c:
		case <-ctx.Done():
		}
	})
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()
	s.logger.Debug("subscription opened", "query", name)

	for {
		select {
		case <-ctx.Done():
			s.logger.Debug("subscription closed", "query", name)
			return
		case c := <-changes:
			data, err := json.Marshal(c.Record)
			if err != nil {
				s.logger.Warn("failed to encode change", "query", name, "error", err.Error())
				continue
			}
			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", c.Kind, data); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

// lookup resolves a named query, writing a 404 when it is unknown.
func (s *Server) lookup(w http.ResponseWriter, name string) (*query.Query, string, bool) {
	def, ok := s.defs[name]
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Errorf("unknown query %q", name))
		return nil, "", false
	}
	q, err := s.queries.Lookup(name)
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return nil, "", false
	}
	return q, def.Action, true
}

func statusFor(err error) int {
	var uae *adapter.UnknownAdapterError
	var mse *criteria.MissingSelectionError
	var ve *query.ValidationError
	switch {
	case errors.Is(err, query.ErrSubscribeUnsupported),
		errors.Is(err, adapter.ErrUnsupportedAction),
		errors.Is(err, adapter.ErrUnsupportedCriteria):
		return http.StatusNotImplemented
	case errors.As(err, &uae), errors.As(err, &mse), errors.As(err, &ve):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorBody{Error: err.Error()})
}
