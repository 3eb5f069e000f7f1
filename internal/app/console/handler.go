package console

import (
	"context"
	"crypto/subtle"
	"net/http"

	"github.com/a-h/templ"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/crypto/bcrypt"

	"github.com/eventdesk/roster/internal/delivery"
	"github.com/eventdesk/roster/internal/platform/metrics"
	"github.com/eventdesk/roster/internal/roster/view"
)

// BasicAuth gates the dashboard when PasswordHash is set.
type BasicAuth struct {
	Username     string
	PasswordHash []byte
}

func (a BasicAuth) enabled() bool { return len(a.PasswordHash) > 0 }

func (a BasicAuth) check(username, password string) bool {
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(a.Username)) == 1
	passOK := bcrypt.CompareHashAndPassword(a.PasswordHash, []byte(password)) == nil
	return userOK && passOK
}

type Handler struct {
	Controller *Controller
	Auth       BasicAuth
	// Ready reports whether dependencies are reachable; nil means always ready.
	Ready func(ctx context.Context) error
}

func NewHandler(controller *Controller, auth BasicAuth) *Handler {
	return &Handler{Controller: controller, Auth: auth}
}

func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/readyz", h.handleReady)
	r.Handle("/metrics", metrics.DefaultHandler())
	r.Handle(staticPrefix+"*", StaticHandler())

	r.Group(func(authR chi.Router) {
		authR.Use(h.authMiddleware)
		authR.Get("/", h.handleDashboard)
		authR.Post("/refresh", h.handleRefresh)
		authR.Post("/participants", h.handleCreate)
		authR.Post("/participants/{id}/edit", h.handleUpdate)
		authR.Post("/participants/{id}/delete", h.handleDelete)
		authR.Get("/participants/{id}/badge", h.handleBadge)
	})
	return r
}

func stateFromValues(get func(string) string) view.State {
	return view.State{
		Filter: view.ParseFilter(get("filter")),
		Order:  view.ParseOrder(get("order")),
	}
}

func (h *Handler) handleDashboard(w http.ResponseWriter, r *http.Request) {
	state := stateFromValues(r.URL.Query().Get)
	if !h.Controller.Store.Loaded() {
		_ = h.Controller.Refresh(r.Context())
	}
	w.Header().Set("Cache-Control", "no-store")
	templ.Handler(DashboardPage(h.Controller.Page(state))).ServeHTTP(w, r)
}

func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	_ = h.Controller.Refresh(r.Context())
	h.redirectBack(w, r)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	_ = h.Controller.Create(r.Context(), r.PostFormValue("name"))
	h.redirectBack(w, r)
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	_ = h.Controller.Update(r.Context(), chi.URLParam(r, "id"), r.PostFormValue("name"), r.PostFormValue("status"))
	h.redirectBack(w, r)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	_ = h.Controller.Delete(r.Context(), chi.URLParam(r, "id"))
	h.redirectBack(w, r)
}

func (h *Handler) handleBadge(w http.ResponseWriter, r *http.Request) {
	tw := &trackingWriter{ResponseWriter: w}
	err := h.Controller.Download(r.Context(), chi.URLParam(r, "id"), delivery.ResponseSink{W: tw})
	if err != nil && !tw.wrote {
		h.redirectBack(w, r)
	}
}

func (h *Handler) handleReady(w http.ResponseWriter, r *http.Request) {
	if h.Ready != nil {
		if err := h.Ready(r.Context()); err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// redirectBack finishes a mutation with POST/redirect/GET, keeping the
// view state from the submitted form or query.
func (h *Handler) redirectBack(w http.ResponseWriter, r *http.Request) {
	state := stateFromValues(r.FormValue)
	http.Redirect(w, r, "/?"+StateQuery(state), http.StatusSeeOther)
}

func (h *Handler) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !h.Auth.enabled() {
			next.ServeHTTP(w, r)
			return
		}
		user, pass, ok := r.BasicAuth()
		if !ok || !h.Auth.check(user, pass) {
			w.Header().Set("WWW-Authenticate", `Basic realm="roster console", charset="UTF-8"`)
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type trackingWriter struct {
	http.ResponseWriter
	wrote bool
}

func (t *trackingWriter) WriteHeader(status int) {
	t.wrote = true
	t.ResponseWriter.WriteHeader(status)
}

func (t *trackingWriter) Write(p []byte) (int, error) {
	t.wrote = true
	return t.ResponseWriter.Write(p)
}
