package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/lazypower/rapport/internal/engine"
	"github.com/lazypower/rapport/internal/memory"
	"github.com/lazypower/rapport/internal/relationship"
	"github.com/lazypower/rapport/internal/store"
)

const maxBody = 64 << 10

type messageRequest struct {
	UserID string `json:"user_id"`
	Text   string `json:"text"`
}

func decode(w http.ResponseWriter, r *http.Request, v any) error {
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody)).Decode(v)
}

// fail maps engine errors onto status codes. Rejected input is the caller's
// fault; anything else is ours.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	if engine.IsInvalidInput(err) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.log.Error("request failed",
		zap.String("request_id", RequestIDFrom(r.Context())),
		zap.String("path", r.URL.Path),
		zap.Error(err))
	writeError(w, http.StatusInternalServerError, "internal error")
}

// userID resolves the {userID} path parameter, writing a 400 when invalid.
func userID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id, err := engine.NormalizeUserID(chi.URLParam(r, "userID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return "", false
	}
	return id, true
}

func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request) {
	var req messageRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	out, err := s.engine.Process(r.Context(), req.UserID, req.Text)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	var req messageRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	emo, rel, err := s.engine.Evaluate(r.Context(), req.UserID, req.Text)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"emotion":      emo,
		"relationship": rel,
	})
}

func (s *Server) handleEmotion(w http.ResponseWriter, r *http.Request) {
	id, ok := userID(w, r)
	if !ok {
		return
	}
	state, err := s.engine.EmotionalState(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (s *Server) handleRelationship(w http.ResponseWriter, r *http.Request) {
	id, ok := userID(w, r)
	if !ok {
		return
	}
	sum, err := s.engine.Relationship(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

func (s *Server) handleGift(w http.ResponseWriter, r *http.Request) {
	id, ok := userID(w, r)
	if !ok {
		return
	}
	var req struct {
		Direction string `json:"direction"`
	}
	if err := decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	var kind relationship.Kind
	switch req.Direction {
	case "received":
		kind = relationship.KindGiftReceived
	case "given":
		kind = relationship.KindGiftGiven
	default:
		writeError(w, http.StatusBadRequest, "direction must be received or given")
		return
	}

	sum, err := s.engine.ApplyGift(r.Context(), id, kind)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

// handleListMemories lists recent memories, or runs a similarity query when
// q is set.
func (s *Server) handleListMemories(w http.ResponseWriter, r *http.Request) {
	id, ok := userID(w, r)
	if !ok {
		return
	}

	limit := 20
	if v := r.URL.Query().Get("k"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 100 {
			writeError(w, http.StatusBadRequest, "k must be between 1 and 100")
			return
		}
		limit = n
	}

	if q := strings.TrimSpace(r.URL.Query().Get("q")); q != "" {
		results := s.engine.Memory().Query(r.Context(), id, q, limit)
		if results == nil {
			results = []memory.Result{}
		}
		writeJSON(w, http.StatusOK, results)
		return
	}

	list, err := s.db.ListMemories(r.Context(), id, limit)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if list == nil {
		list = []store.Memory{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleGetMemory(w http.ResponseWriter, r *http.Request) {
	id, ok := userID(w, r)
	if !ok {
		return
	}
	m, err := s.db.GetMemory(r.Context(), chi.URLParam(r, "recordID"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	// Another user's record is reported exactly like a missing one.
	if m == nil || m.UserID != id {
		writeError(w, http.StatusNotFound, "memory not found")
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (s *Server) handleAddMemory(w http.ResponseWriter, r *http.Request) {
	id, ok := userID(w, r)
	if !ok {
		return
	}
	var req struct {
		UserMessage   string   `json:"user_message"`
		AgentResponse string   `json:"agent_response"`
		Importance    *float64 `json:"importance"`
	}
	if err := decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if strings.TrimSpace(req.UserMessage) == "" {
		writeError(w, http.StatusBadRequest, "user_message is required")
		return
	}

	idx := s.engine.Memory()
	if !idx.Enabled() {
		writeError(w, http.StatusServiceUnavailable, "semantic memory is disabled")
		return
	}

	importance := memory.Importance(req.UserMessage)
	if req.Importance != nil {
		importance = *req.Importance
	}
	m, err := idx.Store(r.Context(), id, req.UserMessage, req.AgentResponse, importance)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, m)
}

func (s *Server) handleListFacts(w http.ResponseWriter, r *http.Request) {
	id, ok := userID(w, r)
	if !ok {
		return
	}
	facts, err := s.db.ListFacts(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if facts == nil {
		facts = []store.Fact{}
	}
	writeJSON(w, http.StatusOK, facts)
}

func (s *Server) handlePutFact(w http.ResponseWriter, r *http.Request) {
	id, ok := userID(w, r)
	if !ok {
		return
	}
	var f store.Fact
	if err := decode(w, r, &f); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	f.Key = strings.TrimSpace(f.Key)
	f.Value = strings.TrimSpace(f.Value)
	if f.Key == "" || f.Value == "" {
		writeError(w, http.StatusBadRequest, "key and value are required")
		return
	}
	f.UserID = id

	if err := s.db.UpsertFact(r.Context(), f); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "stored"})
}

func (s *Server) handleDeleteFact(w http.ResponseWriter, r *http.Request) {
	id, ok := userID(w, r)
	if !ok {
		return
	}
	if err := s.db.DeleteFact(r.Context(), id, chi.URLParam(r, "key")); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.engine.Users(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

func (s *Server) handleResetUser(w http.ResponseWriter, r *http.Request) {
	id, ok := userID(w, r)
	if !ok {
		return
	}
	if err := s.engine.Reset(r.Context(), id); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleTiers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, relationship.Tiers)
}
