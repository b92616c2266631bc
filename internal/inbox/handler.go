package inbox

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) ListConversations(w http.ResponseWriter, r *http.Request) {
	list := h.svc.Conversations(r.Context())
	if list == nil {
		list = []Conversation{}
	}
	writeJSON(w, list)
}

func (h *Handler) GetConversation(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	conv, st, err := h.svc.Conversation(r.Context(), sessionID)
	if errors.Is(err, ErrNotFound) {
		http.Error(w, "conversation not found", http.StatusNotFound)
		return
	}
	writeJSON(w, conversationResponse(conv, st))
}

// SelectConversation — the UI opened this conversation: join its push room
// and fetch authoritative takeover state.
func (h *Handler) SelectConversation(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	conv, st, err := h.svc.Select(r.Context(), sessionID)
	if errors.Is(err, ErrNotFound) {
		http.Error(w, "conversation not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, "select failed", http.StatusBadGateway)
		return
	}
	writeJSON(w, conversationResponse(conv, st))
}

func (h *Handler) OpenChat(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Platform Platform `json:"platform"`
		Contact  string   `json:"contact"`
		Name     string   `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if payload.Platform == "" || payload.Contact == "" {
		http.Error(w, "missing platform or contact", http.StatusBadRequest)
		return
	}

	conv, err := h.svc.OpenChat(r.Context(), payload.Platform, payload.Contact, payload.Name)
	if err != nil {
		http.Error(w, "open chat failed", http.StatusBadRequest)
		return
	}
	writeJSON(w, conv)
}

func (h *Handler) Send(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	var payload struct {
		Content   string `json:"content"`
		MediaURL  string `json:"mediaUrl"`
		MediaType string `json:"mediaType"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}

	msg, err := h.svc.Send(r.Context(), SendRequest{
		SessionID: sessionID,
		Content:   payload.Content,
		MediaURL:  payload.MediaURL,
		MediaType: payload.MediaType,
	})
	switch {
	case errors.Is(err, ErrEmptyMessage):
		http.Error(w, "missing content", http.StatusBadRequest)
		return
	case errors.Is(err, ErrNotFound):
		http.Error(w, "conversation not found", http.StatusNotFound)
		return
	case err != nil:
		http.Error(w, "send failed", http.StatusBadGateway)
		return
	}
	writeJSON(w, msg)
}

func (h *Handler) RequestTakeover(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	var payload struct {
		UserID          string `json:"userId"`
		DurationMinutes int    `json:"durationMinutes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if payload.UserID == "" || payload.DurationMinutes <= 0 {
		http.Error(w, "missing userId or durationMinutes", http.StatusBadRequest)
		return
	}

	st, err := h.svc.RequestTakeover(r.Context(), sessionID, payload.UserID, payload.DurationMinutes)
	if err != nil {
		// fail-closed: nothing changed locally, the caller shows the error
		http.Error(w, "takeover failed", http.StatusBadGateway)
		return
	}
	writeJSON(w, takeoverResponse(st))
}

func (h *Handler) Release(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	if err := h.svc.Release(r.Context(), sessionID); err != nil {
		http.Error(w, "release failed", http.StatusBadGateway)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) TakeoverStatus(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	writeJSON(w, takeoverResponse(h.svc.TakeoverState(sessionID)))
}

func (h *Handler) GetFilter(w http.ResponseWriter, r *http.Request) {
	codes := h.svc.Filter(r.Context())
	if codes == nil {
		codes = []string{}
	}
	writeJSON(w, map[string]any{"agentCodes": codes})
}

func (h *Handler) PutFilter(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		AgentCodes []string `json:"agentCodes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if err := h.svc.SetFilter(r.Context(), payload.AgentCodes); err != nil {
		http.Error(w, "save failed", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	h.svc.RequestRefresh("manual")
	w.WriteHeader(http.StatusAccepted)
}

func conversationResponse(conv Conversation, st TakeoverStatus) map[string]any {
	resp := map[string]any{
		"conversation": conv,
		"takeover":     takeoverResponse(st),
	}
	return resp
}

func takeoverResponse(st TakeoverStatus) map[string]any {
	resp := map[string]any{
		"active": st.Active,
	}
	if st.Active {
		resp["takenBy"] = st.TakenBy
		resp["expiresAt"] = st.ExpiresAt
		resp["remainingMinutes"] = st.RemainingMinutes(time.Now())
	}
	return resp
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
