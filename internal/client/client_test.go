package client_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"clipshelf/internal/api"
	"clipshelf/internal/client"
	"clipshelf/internal/server"
	"clipshelf/internal/services"
	"clipshelf/internal/testsupport"
)

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	srv, err := server.New(cfg, server.Deps{
		Metadata: testsupport.MustOpenStore(t, cfg),
		Objects:  testsupport.MustOpenObjects(t, cfg),
	})
	if err != nil {
		t.Fatalf("server.New: %v", err)
	}
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func TestClientRoundTrip(t *testing.T) {
	ts := newServer(t)
	ctx := context.Background()
	c := client.New(ts.URL, ts.Client())

	if _, err := c.Login(ctx, "admin", "nope"); !errors.Is(err, services.ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials, got %v", err)
	}
	if _, err := c.Login(ctx, "admin", testsupport.TestPassword); err != nil {
		t.Fatalf("Login: %v", err)
	}
	if c.Token() == "" {
		t.Fatal("expected token attached after login")
	}

	payload := testsupport.Payload(64 << 10)
	clip, err := c.Upload(ctx, client.Upload{
		Name:     "Harbor",
		Filename: "harbor.mp4",
		Body:     bytes.NewReader(payload),
		Size:     int64(len(payload)),
	})
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}

	clips, err := c.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(clips) != 1 || clips[0] != *clip {
		t.Fatalf("unexpected list: %#v", clips)
	}

	content, err := c.Fetch(ctx, clip.ID)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	got, err := io.ReadAll(content.Body)
	content.Body.Close()
	if err != nil {
		t.Fatalf("read content: %v", err)
	}
	if !bytes.Equal(got, payload) || content.UUID != clip.UUID {
		t.Fatal("fetched content does not match upload")
	}

	edited, err := c.Edit(ctx, clip.ID, "Harbour", "fog")
	if err != nil {
		t.Fatalf("Edit: %v", err)
	}
	if edited.Name != "Harbour" || edited.UUID != clip.UUID {
		t.Fatalf("unexpected edit: %#v", edited)
	}

	deleted, err := c.Delete(ctx, clip.ID)
	if err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if deleted.ID != clip.ID {
		t.Fatalf("unexpected deleted clip: %#v", deleted)
	}
	if _, err := c.Get(ctx, clip.ID); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	if err := c.Logout(ctx); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if _, err := c.Delete(ctx, clip.ID); !errors.Is(err, services.ErrUnauthorized) {
		t.Fatalf("expected unauthorized after logout, got %v", err)
	}
}

func TestUploadWithUnknownSizeStreams(t *testing.T) {
	ts := newServer(t)
	ctx := context.Background()
	c := client.New(ts.URL, ts.Client())
	if _, err := c.Login(ctx, "admin", testsupport.TestPassword); err != nil {
		t.Fatalf("Login: %v", err)
	}
	payload := testsupport.Payload(2048)
	clip, err := c.Upload(ctx, client.Upload{
		Name:     "Piped",
		Filename: "piped.webm",
		Body:     io.MultiReader(bytes.NewReader(payload[:1000]), bytes.NewReader(payload[1000:])),
		Size:     -1,
	})
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if clip.Name != "Piped" {
		t.Fatalf("unexpected clip: %#v", clip)
	}
}

func TestNonJSONErrorsAreInternal(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gateway exploded", http.StatusBadGateway)
	}))
	defer ts.Close()

	_, err := client.New(ts.URL, ts.Client()).List(context.Background())
	var remote *api.RemoteError
	if !errors.As(err, &remote) || remote.Code != api.CodeInternal {
		t.Fatalf("expected internal remote error, got %v", err)
	}
}

func TestUnreachableServer(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	url := ts.URL
	ts.Close()

	_, err := client.New(url, nil).Status(context.Background())
	if !errors.Is(err, client.ErrServerUnreachable) {
		t.Fatalf("expected unreachable error, got %v", err)
	}
}
