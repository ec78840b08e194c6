package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/cardroomhq/blackjack/internal/engine"
	"github.com/cardroomhq/blackjack/internal/engine/domain/table"
	"github.com/cardroomhq/blackjack/internal/validation"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// TableHandler exposes the table engine's entry points over HTTP. The
// acting identity rides in the request body and is trusted as given; the
// identity provider sits in front of this service.
type TableHandler struct {
	engine engine.Engine
}

func NewTableHandler(eng engine.Engine) *TableHandler {
	return &TableHandler{engine: eng}
}

func (h *TableHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.ListTables)
	r.Post("/", h.CreateTable)
	r.Post("/cleanup", h.Cleanup)
	r.Get("/{tableID}", h.GetTable)
	r.Delete("/{tableID}", h.DeleteTable)
	r.Post("/{tableID}/join", h.JoinTable)
	r.Post("/{tableID}/leave", h.LeaveTable)
	r.Post("/{tableID}/start", h.StartRound)
	r.Post("/{tableID}/bet", h.PlaceBet)
	r.Post("/{tableID}/deal", h.ForceDeal)
	r.Post("/{tableID}/action", h.MakeAction)

	return r
}

type IdentityPayload struct {
	UserID      string `json:"user_id" validate:"required,uuid"`
	DisplayName string `json:"display_name" validate:"required,min=1,max=50"`
	AvatarURL   string `json:"avatar_url" validate:"omitempty,url"`
}

func (p IdentityPayload) identity() engine.Identity {
	return engine.Identity{
		UserID:      uuid.MustParse(p.UserID),
		DisplayName: p.DisplayName,
		AvatarURL:   p.AvatarURL,
	}
}

type CreateTableRequest struct {
	IdentityPayload
	Name string `json:"name" validate:"max=50"`
}

type JoinTableRequest struct {
	IdentityPayload
}

type ActingPlayerRequest struct {
	UserID string `json:"user_id" validate:"required,uuid"`
}

type PlaceBetRequest struct {
	UserID string `json:"user_id" validate:"required,uuid"`
	Amount int64  `json:"amount" validate:"required,gt=0"`
}

type MakeActionRequest struct {
	UserID string `json:"user_id" validate:"required,uuid"`
	Action string `json:"action" validate:"required,oneof=hit stand double split surrender"`
}

// ListTables returns the lobby view of all tables
func (h *TableHandler) ListTables(w http.ResponseWriter, r *http.Request) {
	summaries, err := h.engine.ListTables(r.Context())
	if err != nil {
		writeEngineError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"tables": summaries,
		"total":  len(summaries),
	})
}

// CreateTable creates a waiting table with the caller seated
func (h *TableHandler) CreateTable(w http.ResponseWriter, r *http.Request) {
	var req CreateTableRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if err := validation.Validate(req); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	t, err := h.engine.CreateTable(r.Context(), req.identity(), req.Name)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusCreated, t.View())
}

// GetTable returns one table's broadcast view
func (h *TableHandler) GetTable(w http.ResponseWriter, r *http.Request) {
	tableID, ok := parseTableID(w, r)
	if !ok {
		return
	}

	t, err := h.engine.GetTable(r.Context(), tableID)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, t.View())
}

// DeleteTable removes a table outright
func (h *TableHandler) DeleteTable(w http.ResponseWriter, r *http.Request) {
	tableID, ok := parseTableID(w, r)
	if !ok {
		return
	}

	if err := h.engine.DeleteTable(r.Context(), tableID); err != nil {
		writeEngineError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, map[string]string{"message": "Table deleted"})
}

// JoinTable seats the caller at the table
func (h *TableHandler) JoinTable(w http.ResponseWriter, r *http.Request) {
	tableID, ok := parseTableID(w, r)
	if !ok {
		return
	}

	var req JoinTableRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if err := validation.Validate(req); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	t, err := h.engine.JoinTable(r.Context(), tableID, req.identity())
	if err != nil {
		writeEngineError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, t.View())
}

// LeaveTable unseats the caller, forfeiting any live wager
func (h *TableHandler) LeaveTable(w http.ResponseWriter, r *http.Request) {
	tableID, ok := parseTableID(w, r)
	if !ok {
		return
	}

	userID, ok := parseActingPlayer(w, r)
	if !ok {
		return
	}

	if err := h.engine.LeaveTable(r.Context(), tableID, userID); err != nil {
		writeEngineError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, map[string]string{"message": "Left table"})
}

// StartRound moves a waiting table into betting
func (h *TableHandler) StartRound(w http.ResponseWriter, r *http.Request) {
	tableID, ok := parseTableID(w, r)
	if !ok {
		return
	}

	userID, ok := parseActingPlayer(w, r)
	if !ok {
		return
	}

	t, err := h.engine.StartRound(r.Context(), tableID, userID)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, t.View())
}

// PlaceBet records the caller's wager for the round
func (h *TableHandler) PlaceBet(w http.ResponseWriter, r *http.Request) {
	tableID, ok := parseTableID(w, r)
	if !ok {
		return
	}

	var req PlaceBetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if err := validation.Validate(req); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	t, err := h.engine.PlaceBet(r.Context(), tableID, uuid.MustParse(req.UserID), req.Amount)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, t.View())
}

// ForceDeal is the administrative advance out of a stalled betting phase
func (h *TableHandler) ForceDeal(w http.ResponseWriter, r *http.Request) {
	tableID, ok := parseTableID(w, r)
	if !ok {
		return
	}

	t, err := h.engine.ForceDeal(r.Context(), tableID)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, t.View())
}

// MakeAction plays one decision on the caller's current hand
func (h *TableHandler) MakeAction(w http.ResponseWriter, r *http.Request) {
	tableID, ok := parseTableID(w, r)
	if !ok {
		return
	}

	var req MakeActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if err := validation.Validate(req); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	t, err := h.engine.MakeAction(r.Context(), tableID, uuid.MustParse(req.UserID), table.Action(req.Action))
	if err != nil {
		writeEngineError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, t.View())
}

// Cleanup deletes stale tables; ?force=true removes idle tables even
// when occupied
func (h *TableHandler) Cleanup(w http.ResponseWriter, r *http.Request) {
	force := r.URL.Query().Get("force") == "true"

	removed, err := h.engine.CleanupStaleTables(r.Context(), force)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, map[string]int64{"removed": removed})
}

func parseTableID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	tableID, err := uuid.Parse(chi.URLParam(r, "tableID"))
	if err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "Invalid table ID")
		return uuid.Nil, false
	}
	return tableID, true
}

func parseActingPlayer(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	var req ActingPlayerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return uuid.Nil, false
	}
	if err := validation.Validate(req); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, err.Error())
		return uuid.Nil, false
	}
	return uuid.MustParse(req.UserID), true
}
