// Package httpapi exposes the Slot Manager's operations as a small JSON
// HTTP API, the same ServeHTTP-plus-handler shape the daemon's single
// prior HTTP surface used, generalized from a handful of deploy
// endpoints to the full slot/blueprint/batch surface.
package httpapi

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/slotforge/slotforge/internal/model"
	"github.com/slotforge/slotforge/internal/slotlog"
	"github.com/slotforge/slotforge/internal/slotmgr"
	"github.com/slotforge/slotforge/internal/slotz"
)

type Server struct {
	mgr *slotmgr.Manager
}

func New(mgr *slotmgr.Manager) *Server {
	return &Server{mgr: mgr}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	log := slotlog.For("httpapi")
	log.Debug().Str("method", r.Method).Str("path", r.URL.Path).Msg("request")

	switch {
	case r.Method == http.MethodGet && r.URL.Path == "/":
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})

	case r.Method == http.MethodGet && r.URL.Path == "/slots":
		writeJSON(w, http.StatusOK, s.mgr.Slots())

	case r.Method == http.MethodPost && r.URL.Path == "/slots":
		s.handleCreateSlot(w, r)

	case r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, "/slots/"):
		s.routeSlot(w, r, strings.TrimPrefix(r.URL.Path, "/slots/"))

	case r.Method == http.MethodPost && strings.HasPrefix(r.URL.Path, "/slots/"):
		s.routeSlot(w, r, strings.TrimPrefix(r.URL.Path, "/slots/"))

	case r.Method == http.MethodGet && r.URL.Path == "/log":
		writeJSON(w, http.StatusOK, s.mgr.RecentLog())

	case r.Method == http.MethodGet && r.URL.Path == "/blueprints":
		s.handleListBlueprints(w, r)

	case r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, "/blueprints/"):
		s.handleLoadBlueprint(w, r, strings.TrimPrefix(r.URL.Path, "/blueprints/"))

	case r.Method == http.MethodPost && r.URL.Path == "/blueprints":
		s.handleSaveBlueprint(w, r)

	case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/apply") && strings.HasPrefix(r.URL.Path, "/blueprints/"):
		s.handleApplyBlueprint(w, r, strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/blueprints/"), "/apply"))

	case r.Method == http.MethodPost && r.URL.Path == "/batch":
		s.handleBatch(w, r)

	case r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, "/batch/"):
		s.handleBatchStatus(w, r, strings.TrimPrefix(r.URL.Path, "/batch/"))

	default:
		http.NotFound(w, r)
	}
}

func (s *Server) routeSlot(w http.ResponseWriter, r *http.Request, rest string) {
	parts := strings.SplitN(rest, "/", 2)
	name := parts[0]
	action := ""
	if len(parts) == 2 {
		action = parts[1]
	}

	switch {
	case r.Method == http.MethodGet && action == "":
		slot, ok := s.mgr.Slot(name)
		if !ok {
			writeError(w, http.StatusNotFound, slotz.SlotNotFound(name))
			return
		}
		writeJSON(w, http.StatusOK, slot)

	case r.Method == http.MethodPost && action == "stack/start":
		writeResult(w, s.mgr.StartStack(name))

	case r.Method == http.MethodPost && action == "stack/stop":
		writeResult(w, s.mgr.StopStack(name))

	case r.Method == http.MethodPost && action == "agent/spawn":
		s.handleSpawnAgent(w, r, name)

	case r.Method == http.MethodPost && action == "agent/stop":
		writeResult(w, s.mgr.StopAgent(name))

	case r.Method == http.MethodPost && action == "rebase":
		s.handleRebase(w, r, name)

	case r.Method == http.MethodPost && action == "push":
		writeResult(w, s.mgr.Push(r.Context(), name))

	case r.Method == http.MethodPost && action == "destroy":
		writeResult(w, s.mgr.DestroySlot(name))

	default:
		http.NotFound(w, r)
	}
}

type createSlotRequest struct {
	Name   string `json:"name"`
	Source string `json:"source"`
	Branch string `json:"branch"`
	Prompt string `json:"prompt"`
}

func (s *Server) handleCreateSlot(w http.ResponseWriter, r *http.Request) {
	var req createSlotRequest
	if err := decode(r, &req); err != nil || req.Name == "" || req.Source == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name and source are required"})
		return
	}

	slot, err := s.mgr.CreateSlot(r.Context(), req.Name, req.Source, req.Branch, req.Prompt)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusCreated, slot)
}

type spawnAgentRequest struct {
	Prompt       string `json:"prompt"`
	AllowedTools string `json:"allowedTools"`
	MaxTurns     int    `json:"maxTurns"`
}

func (s *Server) handleSpawnAgent(w http.ResponseWriter, r *http.Request, name string) {
	var req spawnAgentRequest
	decode(r, &req)
	err := s.mgr.SpawnAgent(r.Context(), name, req.Prompt, req.AllowedTools, req.MaxTurns)
	writeResult(w, err)
}

type rebaseRequest struct {
	TargetBranch string `json:"targetBranch"`
}

func (s *Server) handleRebase(w http.ResponseWriter, r *http.Request, name string) {
	var req rebaseRequest
	decode(r, &req)
	err := s.mgr.Rebase(r.Context(), name, req.TargetBranch)
	writeResult(w, err)
}

func (s *Server) handleListBlueprints(w http.ResponseWriter, r *http.Request) {
	names, err := s.mgr.Blueprints().List()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, names)
}

func (s *Server) handleLoadBlueprint(w http.ResponseWriter, r *http.Request, name string) {
	bp, err := s.mgr.Blueprints().Load(name)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, bp)
}

func (s *Server) handleSaveBlueprint(w http.ResponseWriter, r *http.Request) {
	var bp model.Blueprint
	if err := decode(r, &bp); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid blueprint"})
		return
	}
	if err := s.mgr.Blueprints().Save(&bp); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusCreated, bp)
}

func (s *Server) handleApplyBlueprint(w http.ResponseWriter, r *http.Request, name string) {
	bp, err := s.mgr.Blueprints().Load(name)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}

	var failures []map[string]string
	progress := func(slot string, err error) {
		if err != nil {
			failures = append(failures, map[string]string{"slot": slot, "error": err.Error()})
		}
	}
	if err := s.mgr.ApplyBlueprint(r.Context(), bp, progress); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"failures": failures})
}

type batchRequest struct {
	Operation string `json:"operation"`
}

func (s *Server) handleBatch(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if err := decode(r, &req); err != nil || req.Operation == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "operation is required"})
		return
	}

	var op func(name string) error
	switch req.Operation {
	case "start-all":
		op = func(name string) error { return s.mgr.StartStack(name) }
	case "stop-all":
		op = func(name string) error { return s.mgr.StopStack(name) }
	case "push-all":
		op = func(name string) error { return s.mgr.Push(r.Context(), name) }
	case "rebase-all":
		op = func(name string) error { return s.mgr.Rebase(r.Context(), name, "") }
	case "destroy-all":
		op = func(name string) error { return s.mgr.DestroySlot(name) }
	case "spawn-agents-all":
		op = func(name string) error { return s.mgr.SpawnAgent(r.Context(), name, "", "", 0) }
	default:
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unknown operation"})
		return
	}

	run := s.mgr.RunBatch(req.Operation, op)
	writeJSON(w, http.StatusAccepted, map[string]string{"runId": run.ID})
}

func (s *Server) handleBatchStatus(w http.ResponseWriter, r *http.Request, id string) {
	run, ok := s.mgr.GetBatchRun(id)
	if !ok {
		http.NotFound(w, r)
		return
	}
	results, done := run.Snapshot()
	writeJSON(w, http.StatusOK, map[string]any{
		"id":        run.ID,
		"operation": run.Operation,
		"done":      done,
		"results":   results,
	})
}

func decode(r *http.Request, v any) error {
	defer io.Copy(io.Discard, r.Body)
	return json.NewDecoder(r.Body).Decode(v)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeResult(w http.ResponseWriter, err error) {
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func statusFor(err error) int {
	switch slotz.KindOf(err) {
	case slotz.KindSlotNotFound, slotz.KindBlueprintNotFound, slotz.KindConfigNotFound:
		return http.StatusNotFound
	case slotz.KindSlotAlreadyExists, slotz.KindBlueprintAlreadyExists:
		return http.StatusConflict
	case slotz.KindInvalidConfig, slotz.KindBlueprintValidation:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
