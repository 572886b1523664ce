package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"presenter/internal/models"
	"presenter/internal/session"
	"presenter/internal/store"
	"presenter/internal/utils"
)

type Handlers struct {
	log     *utils.Logger
	store   store.Store
	hub     *session.Hub
	tracker *session.Tracker
	dir     *session.Directory
}

func NewHandlers(log *utils.Logger, st store.Store) *Handlers {
	tracker := session.NewTracker(session.DefaultGrace)
	return NewHandlersWithDeps(log, st, session.NewHub(), tracker, session.NewDirectory(st, tracker))
}

func NewHandlersWithDeps(log *utils.Logger, st store.Store, hub *session.Hub, tracker *session.Tracker, dir *session.Directory) *Handlers {
	return &Handlers{log: log, store: st, hub: hub, tracker: tracker, dir: dir}
}

func (h *Handlers) Health(w http.ResponseWriter, _ *http.Request) {
	_, _ = w.Write([]byte("ok"))
}

func (h *Handlers) ListPresentations(w http.ResponseWriter, r *http.Request) {
	list, err := h.store.ListPresentations(r.Context())
	if err != nil {
		h.log.Error("list presentations failed", "error", err.Error())
		writeError(w, http.StatusInternalServerError, "Failed to get presentations")
		return
	}
	writeJSON(w, list)
}

type createPresentationRequest struct {
	Title       string `json:"title"`
	DisplayName string `json:"displayName"`
}

type createPresentationResponse struct {
	Presentation *models.Presentation `json:"presentation"`
	Session      *models.Session      `json:"session"`
}

// CreatePresentation creates the deck and its CREATOR membership in one shot.
// The creator's first websocket join binds a connection to that membership.
func (h *Handlers) CreatePresentation(w http.ResponseWriter, r *http.Request) {
	var req createPresentationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Title == "" || req.DisplayName == "" {
		writeError(w, http.StatusBadRequest, "title and displayName are required")
		return
	}
	p, err := h.store.CreatePresentation(r.Context(), req.Title)
	if err != nil {
		h.log.Error("create presentation failed", "error", err.Error())
		writeError(w, http.StatusInternalServerError, "Failed to create presentation")
		return
	}
	sess, err := h.store.CreateSession(r.Context(), p.ID, req.DisplayName, models.RoleCreator)
	if err != nil {
		h.log.Error("create creator session failed", "presentationId", p.ID, "error", err.Error())
		writeError(w, http.StatusInternalServerError, "Failed to create presentation")
		return
	}
	writeJSONStatus(w, http.StatusCreated, createPresentationResponse{Presentation: p, Session: sess})
}

func (h *Handlers) GetPresentation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing presentation id")
		return
	}
	detail, err := h.store.GetPresentation(r.Context(), id)
	if err != nil {
		h.log.Error("get presentation failed", "presentationId", id, "error", err.Error())
		writeError(w, http.StatusInternalServerError, "Failed to get presentation")
		return
	}
	if detail == nil {
		writeError(w, http.StatusNotFound, "Presentation not found")
		return
	}
	writeJSON(w, detail)
}

type joinRequest struct {
	DisplayName string `json:"displayName"`
}

// JoinPresentation creates (or returns) the VIEWER membership for the name.
// The websocket join_presentation event later binds a connection to it.
func (h *Handlers) JoinPresentation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req joinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.DisplayName == "" {
		writeError(w, http.StatusBadRequest, "displayName is required")
		return
	}
	sess, err := h.store.FindSessionByName(r.Context(), id, req.DisplayName)
	if err != nil {
		h.log.Error("join lookup failed", "presentationId", id, "error", err.Error())
		writeError(w, http.StatusInternalServerError, "Failed to join presentation")
		return
	}
	if sess == nil {
		sess, err = h.store.CreateSession(r.Context(), id, req.DisplayName, models.RoleViewer)
		if err != nil {
			h.log.Error("join create failed", "presentationId", id, "error", err.Error())
			writeError(w, http.StatusInternalServerError, "Failed to join presentation")
			return
		}
	}
	writeJSON(w, sess)
}

func (h *Handlers) ListSlides(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	slides, err := h.store.ListSlides(r.Context(), id)
	if err != nil {
		h.log.Error("list slides failed", "presentationId", id, "error", err.Error())
		writeError(w, http.StatusInternalServerError, "Failed to get slides")
		return
	}
	writeJSON(w, slides)
}

func (h *Handlers) GetSlide(w http.ResponseWriter, r *http.Request) {
	slideID := chi.URLParam(r, "slideId")
	slide, err := h.store.GetSlide(r.Context(), slideID)
	if err != nil {
		h.log.Error("get slide failed", "slideId", slideID, "error", err.Error())
		writeError(w, http.StatusInternalServerError, "Failed to get slide")
		return
	}
	if slide == nil || slide.PresentationID != chi.URLParam(r, "id") {
		writeError(w, http.StatusNotFound, "Slide not found")
		return
	}
	writeJSON(w, slide)
}

type slideActionRequest struct {
	DisplayName string `json:"displayName"`
}

// AddSlide appends a slide with index max+1. CREATOR only.
func (h *Handlers) AddSlide(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req slideActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.DisplayName == "" {
		writeError(w, http.StatusBadRequest, "displayName is required")
		return
	}
	if !h.hasStructureRole(w, r, id, req.DisplayName) {
		return
	}
	slides, err := h.store.ListSlides(r.Context(), id)
	if err != nil {
		h.log.Error("add slide failed", "presentationId", id, "error", err.Error())
		writeError(w, http.StatusInternalServerError, "Failed to add slide")
		return
	}
	// Indices are never renumbered on deletion, so max+1 comes from the tail
	// of the ascending list.
	next := 0
	if len(slides) > 0 {
		next = slides[len(slides)-1].SlideIndex + 1
	}
	slide, err := h.store.CreateSlide(r.Context(), id, next)
	if err != nil {
		h.log.Error("add slide failed", "presentationId", id, "error", err.Error())
		writeError(w, http.StatusInternalServerError, "Failed to add slide")
		return
	}
	h.broadcastPresentation(r.Context(), id)
	writeJSONStatus(w, http.StatusCreated, slide)
}

type removeSlideResponse struct {
	DeletedID string `json:"deletedId"`
	DeletedBy string `json:"deletedBy"`
}

// RemoveSlide deletes the slide and all its elements. CREATOR only. Indices
// of the remaining slides keep their gaps.
func (h *Handlers) RemoveSlide(w http.ResponseWriter, r *http.Request) {
	slideID := chi.URLParam(r, "slideId")
	var req slideActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.DisplayName == "" {
		writeError(w, http.StatusBadRequest, "displayName is required")
		return
	}
	slide, err := h.store.GetSlide(r.Context(), slideID)
	if err != nil {
		h.log.Error("remove slide failed", "slideId", slideID, "error", err.Error())
		writeError(w, http.StatusInternalServerError, "Failed to remove slide")
		return
	}
	if slide == nil {
		writeError(w, http.StatusNotFound, "Slide not found")
		return
	}
	if !h.hasStructureRole(w, r, slide.PresentationID, req.DisplayName) {
		return
	}
	if err := h.store.DeleteSlideCascade(r.Context(), slideID); err != nil && !errors.Is(err, store.ErrNotFound) {
		h.log.Error("remove slide failed", "slideId", slideID, "error", err.Error())
		writeError(w, http.StatusInternalServerError, "Failed to remove slide")
		return
	}
	h.broadcastPresentation(r.Context(), slide.PresentationID)
	writeJSON(w, removeSlideResponse{DeletedID: slideID, DeletedBy: req.DisplayName})
}

func (h *Handlers) GetMyRole(w http.ResponseWriter, r *http.Request) {
	presentationID := r.URL.Query().Get("presentationId")
	displayName := r.URL.Query().Get("displayName")
	if presentationID == "" || displayName == "" {
		writeError(w, http.StatusBadRequest, "Invalid params")
		return
	}
	sess, err := h.store.FindSessionByName(r.Context(), presentationID, displayName)
	if err != nil {
		h.log.Error("get role failed", "presentationId", presentationID, "error", err.Error())
		writeError(w, http.StatusInternalServerError, "Failed to get role")
		return
	}
	if sess == nil {
		writeError(w, http.StatusNotFound, "Session not found")
		return
	}
	writeJSON(w, models.RoleResponse{Role: sess.Role})
}

// hasStructureRole writes a 403 and returns false unless displayName holds a
// structure-managing role in the presentation.
func (h *Handlers) hasStructureRole(w http.ResponseWriter, r *http.Request, presentationID, displayName string) bool {
	sess, err := h.store.FindSessionByName(r.Context(), presentationID, displayName)
	if err != nil {
		h.log.Error("role lookup failed", "presentationId", presentationID, "error", err.Error())
		writeError(w, http.StatusInternalServerError, "Failed to check role")
		return false
	}
	if sess == nil || !sess.Role.CanManageStructure() {
		writeError(w, http.StatusForbidden, "Forbidden")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func writeJSONStatus(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
