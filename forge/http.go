package forge

import (
	"encoding/json"
	"errors"
	"io/fs"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/AshleyColeman/templateForgeAi/forge/internal/blueprint"
)

// RegisterHTTP mounts the read-only status surface on a chi router.
// Extractions are driven through the CLI or MCP tools; HTTP only
// observes.
func (s *Service) RegisterHTTP(r chi.Router) {
	r.Get("/healthz", s.handleHealthz)
	r.Get("/runs", s.handleListRuns)
	r.Get("/runs/{id}", s.handleGetRun)
	r.Get("/blueprints", s.handleListBlueprints)
	r.Get("/blueprints/{name}", s.handleGetBlueprint)
}

// handleHealthz never probes the browser; a status poll must not boot
// Chrome.
func (s *Service) handleHealthz(w http.ResponseWriter, r *http.Request) {
	rep := s.Health(r.Context(), false)
	code := http.StatusOK
	if !rep.OK {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, rep)
}

func (s *Service) handleListRuns(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 50)
	runs, err := s.store.ListRuns(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs, "count": len(runs)})
}

func (s *Service) handleGetRun(w http.ResponseWriter, r *http.Request) {
	run, stages, err := s.store.GetRun(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			writeError(w, http.StatusNotFound, err)
			return
		}
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"run": run, "stages": stages})
}

func (s *Service) handleListBlueprints(w http.ResponseWriter, r *http.Request) {
	entries, err := s.registry.List()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if id := queryInt(r, "retailer_id", 0); id != 0 {
		kept := entries[:0]
		for _, e := range entries {
			if e.RetailerID == int64(id) {
				kept = append(kept, e)
			}
		}
		entries = kept
	}
	writeJSON(w, http.StatusOK, map[string]any{"blueprints": entries, "count": len(entries)})
}

func (s *Service) handleGetBlueprint(w http.ResponseWriter, r *http.Request) {
	path, err := s.ResolveBlueprint(chi.URLParam(r, "name"))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			writeError(w, http.StatusNotFound, err)
			return
		}
		writeError(w, http.StatusBadRequest, err)
		return
	}
	bp, err := blueprint.Load(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			writeError(w, http.StatusNotFound, err)
			return
		}
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, bp)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

func queryInt(r *http.Request, key string, def int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}
