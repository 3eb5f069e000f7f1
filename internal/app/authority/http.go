package authority

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/eventdesk/roster/internal/delivery"
	platformauth "github.com/eventdesk/roster/internal/platform/auth"
	"github.com/eventdesk/roster/internal/roster"
)

const maxRequestBody = 1 << 20

type Handler struct {
	Service *Service
	Tokens  platformauth.Manager
}

func NewHandler(service *Service, tokens platformauth.Manager) *Handler {
	return &Handler{Service: service, Tokens: tokens}
}

func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Group(func(authR chi.Router) {
		authR.Use(h.authMiddleware)
		authR.Post("/participants/create", h.handleCreate)
		authR.Get("/participants/list-all", h.handleList)
		authR.Get("/participants/pdf/{id}", h.handleBadge)
		authR.Put("/participants/{id}", h.handleUpdate)
		authR.Delete("/participants/{id}", h.handleDelete)
	})
	return r
}

type participantResponse struct {
	Participant roster.Participant `json:"participant"`
}

type updateRequest struct {
	Name      *string `json:"name"`
	CheckedIn *bool   `json:"checkedIn"`
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req roster.Draft
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid JSON payload")
		return
	}
	p, err := h.Service.Create(r.Context(), actorFromContext(r.Context()), req)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, participantResponse{Participant: p})
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	listing, err := h.Service.List(r.Context())
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, listing)
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	var req updateRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid JSON payload")
		return
	}
	id := chi.URLParam(r, "id")
	p, err := h.Service.Update(r.Context(), actorFromContext(r.Context()), id, roster.Patch{Name: req.Name, CheckedIn: req.CheckedIn})
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, participantResponse{Participant: p})
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.Service.Delete(r.Context(), actorFromContext(r.Context()), id); err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"message": "Participant deleted"})
}

func (h *Handler) handleBadge(w http.ResponseWriter, r *http.Request) {
	data, filename, err := h.Service.Badge(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", delivery.ContentDisposition(filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

type actorContextKey struct{}

func (h *Handler) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := platformauth.BearerToken(r.Header.Get("Authorization"))
		if token == "" {
			h.writeError(w, http.StatusUnauthorized, "Missing bearer token")
			return
		}
		claims, err := h.Tokens.Parse(token)
		if err != nil {
			h.writeError(w, http.StatusUnauthorized, "Invalid token")
			return
		}
		ctx := context.WithValue(r.Context(), actorContextKey{}, Actor{Subject: claims.Subject})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func actorFromContext(ctx context.Context) Actor {
	actor, _ := ctx.Value(actorContextKey{}).(Actor)
	return actor
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxRequestBody))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func (h *Handler) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNameRequired):
		h.writeError(w, http.StatusBadRequest, "Name is required!")
	case errors.Is(err, ErrNameTooLong):
		h.writeError(w, http.StatusBadRequest, "Name is too long")
	case errors.Is(err, ErrNothingToUpdate):
		h.writeError(w, http.StatusBadRequest, "Nothing to update")
	case errors.Is(err, ErrNotFound):
		h.writeError(w, http.StatusNotFound, "Participant not found")
	case errors.Is(err, ErrBadgeUnavailable):
		h.writeError(w, http.StatusInternalServerError, "Failed to generate PDF")
	default:
		h.Service.logger().Error("authority request failed", "err", err)
		h.writeError(w, http.StatusInternalServerError, "Internal server error")
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func (h *Handler) writeError(w http.ResponseWriter, status int, msg string) {
	h.writeJSON(w, status, map[string]string{"message": msg})
}
