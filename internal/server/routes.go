package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/lazypower/mnemo/internal/tools"
)

func (s *Server) handleListTools(w http.ResponseWriter, r *http.Request) {
	list := s.tools.Tools()
	writeJSON(w, http.StatusOK, map[string]any{
		"tools": list,
		"count": len(list),
	})
}

func (s *Server) handleCallTool(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if _, ok := s.tools.Lookup(name); !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{
			"success": false,
			"code":    tools.CodeNotFound,
			"error":   fmt.Sprintf("unknown tool %q", name),
		})
		return
	}

	args, err := decodeBody(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"success": false,
			"code":    tools.CodeInvalidArgument,
			"error":   err.Error(),
		})
		return
	}

	s.call(w, r, name, args)
}

// decodeBody reads the argument object. An empty body means no arguments.
func decodeBody(r *http.Request) (map[string]any, error) {
	var args map[string]any
	if r.Body == nil {
		return args, nil
	}
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	if err := dec.Decode(&args); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("invalid json: %w", err)
	}
	return args, nil
}

func (s *Server) call(w http.ResponseWriter, r *http.Request, name string, args map[string]any) {
	res := s.tools.Call(r.Context(), r.Header.Get(SessionHeader), name, args)
	status := statusFor(res)
	if status == http.StatusInternalServerError {
		s.log.Error("tool call failed", "tool", name, "err", res.Error())
	}
	writeJSON(w, status, res)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	args := map[string]any{"query": q.Get("q")}

	if l := q.Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 {
			args["limit"] = n
		}
	}
	if t := q.Get("threshold"); t != "" {
		f, err := strconv.ParseFloat(t, 64)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]any{
				"success": false,
				"code":    tools.CodeInvalidArgument,
				"error":   "threshold must be a number",
			})
			return
		}
		args["threshold"] = f
	}

	s.call(w, r, "search_memory", args)
}

func (s *Server) handleProjects(w http.ResponseWriter, r *http.Request) {
	s.call(w, r, "list_projects", nil)
}

func (s *Server) handleGetMemory(w http.ResponseWriter, r *http.Request) {
	s.call(w, r, "get_memory", map[string]any{"id": chi.URLParam(r, "id")})
}

func (s *Server) handleGraph(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	args := map[string]any{
		"rootMemoryId":   chi.URLParam(r, "id"),
		"includeContent": q.Get("content") == "true",
	}
	if d := q.Get("depth"); d != "" {
		n, err := strconv.Atoi(d)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]any{
				"success": false,
				"code":    tools.CodeInvalidArgument,
				"error":   "depth must be an integer",
			})
			return
		}
		args["depth"] = n
	}

	s.call(w, r, "get_memory_graph", args)
}
