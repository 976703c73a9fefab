package telegram

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestPublishPostsForm(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/botTOKEN/sendMessage" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		if r.PostForm.Get("chat_id") != "42" || r.PostForm.Get("text") != "Found 2 new reviews!" {
			t.Errorf("unexpected form %v", r.PostForm)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	n := NewNotifier("TOKEN", "42").WithBaseURL(server.URL, server.Client())
	if err := n.Publish(context.Background(), "Found 2 new reviews!"); err != nil {
		t.Fatalf("Publish error: %v", err)
	}
}

func TestPublishRejectsMisconfiguration(t *testing.T) {
	t.Parallel()

	if err := NewNotifier("", "42").Publish(context.Background(), "x"); err == nil {
		t.Fatalf("expected error without bot token")
	}
}

func TestPublishReportsStatus(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	n := NewNotifier("TOKEN", "42").WithBaseURL(server.URL, server.Client())
	if err := n.Publish(context.Background(), "x"); err == nil {
		t.Fatalf("expected error for forbidden status")
	}
}
