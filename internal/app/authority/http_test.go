package authority

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/eventdesk/roster/internal/delivery"
	platformauth "github.com/eventdesk/roster/internal/platform/auth"
	"github.com/eventdesk/roster/internal/roster"
	"github.com/eventdesk/roster/internal/rosterclient"
)

func newTestServer(t *testing.T) (*httptest.Server, platformauth.Manager) {
	t.Helper()
	svc, _ := newTestService(t)
	tokens := platformauth.NewManager("test-secret", time.Hour)
	srv := httptest.NewServer(NewHandler(svc, tokens).Router())
	t.Cleanup(srv.Close)
	return srv, tokens
}

func newTestClient(t *testing.T) *rosterclient.Client {
	t.Helper()
	srv, tokens := newTestServer(t)
	c, err := rosterclient.New(srv.URL, srv.Client(), tokens.TokenSource("console", "admin"))
	if err != nil {
		t.Fatalf("rosterclient.New: %v", err)
	}
	return c
}

func TestRouterRequiresBearerToken(t *testing.T) {
	srv, _ := newTestServer(t)
	resp, err := srv.Client().Get(srv.URL + "/participants/list-all")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
}

func TestRouterRejectsForeignToken(t *testing.T) {
	srv, _ := newTestServer(t)
	foreign := platformauth.NewManager("other-secret", time.Hour)
	c, err := rosterclient.New(srv.URL, srv.Client(), foreign.TokenSource("console", "admin"))
	if err != nil {
		t.Fatalf("rosterclient.New: %v", err)
	}
	_, err = c.List(context.Background())
	var remote *roster.RemoteError
	if !errors.As(err, &remote) || remote.Status != http.StatusUnauthorized || remote.Message != "Invalid token" {
		t.Fatalf("expected 401 Invalid token, got %v", err)
	}
}

func TestWireContractThroughStore(t *testing.T) {
	ctx := context.Background()
	store := roster.NewStore(newTestClient(t))

	if err := store.Load(ctx); err != nil {
		t.Fatalf("Load: %v", err)
	}
	created, err := store.Create(ctx, roster.Draft{Name: "  Ada   Lovelace "})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if created.Name != "Ada Lovelace" || created.ID == "" {
		t.Fatalf("unexpected created participant %+v", created)
	}

	checked := true
	updated, err := store.Update(ctx, created.ID, roster.Patch{CheckedIn: &checked})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if n, ok := updated.QueueNumber(); !ok || n != 1 || updated.CheckedInAt == nil {
		t.Fatalf("unexpected check-in echo %+v", updated)
	}

	if err := store.Load(ctx); err != nil {
		t.Fatalf("reload: %v", err)
	}
	snap := store.Snapshot()
	if snap.Stats.Total != 1 || snap.Stats.CheckedIn != 1 || snap.Stats.NotCheckedIn != 0 {
		t.Fatalf("unexpected stats %+v", snap.Stats)
	}

	if err := store.Remove(ctx, created.ID); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if got := store.Snapshot().Stats.Total; got != 0 {
		t.Fatalf("expected empty roster, got %d", got)
	}
}

func TestRemoteValidationMessageReachesCaller(t *testing.T) {
	c := newTestClient(t)
	name := strings.Repeat("x", maxNameLength+1)
	_, err := c.Create(context.Background(), roster.Draft{Name: name})
	var remote *roster.RemoteError
	if !errors.As(err, &remote) || remote.Status != http.StatusBadRequest {
		t.Fatalf("expected 400, got %v", err)
	}
	if got := roster.Message(roster.OpCreate, err); got != "Name is too long" {
		t.Fatalf("unexpected message %q", got)
	}
}

func TestDeleteUnknownReportsNotFound(t *testing.T) {
	c := newTestClient(t)
	err := c.Remove(context.Background(), "missing")
	if got := roster.Message(roster.OpRemove, err); got != "Participant not found" {
		t.Fatalf("unexpected message %q (%v)", got, err)
	}
}

func TestBadgeDownloadCarriesFilename(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(t)
	p, err := c.Create(ctx, roster.Draft{Name: "تجريب"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	art, err := c.FetchArtifact(ctx, p.ID)
	if err != nil {
		t.Fatalf("FetchArtifact: %v", err)
	}
	if !strings.HasPrefix(string(art.Data), "%PDF-") || art.ContentType != "application/pdf" {
		t.Fatalf("unexpected artifact type %q", art.ContentType)
	}
	if got := delivery.Filename(art.Disposition); got != "تجريب.pdf" {
		t.Fatalf("unexpected filename %q from %q", got, art.Disposition)
	}
}

func TestUnknownFieldsAreRejected(t *testing.T) {
	srv, tokens := newTestServer(t)
	tok, _ := tokens.Sign("console", "admin")
	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/participants/create", strings.NewReader(`{"name":"A","role":"vip"}`))
	req.Header.Set("Authorization", "Bearer "+tok)
	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}
