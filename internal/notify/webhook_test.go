package notify

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestWebhookPosterDelivers(t *testing.T) {
	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	poster := NewWebhookPoster(srv.URL)
	if err := poster.Post("#ops-incidents", "emergency stop engaged"); err != nil {
		t.Fatalf("post: %v", err)
	}
	if got["channel"] != "#ops-incidents" || got["text"] != "emergency stop engaged" {
		t.Fatalf("unexpected payload: %+v", got)
	}
}

func TestWebhookPosterRejectsServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	poster := NewWebhookPoster(srv.URL)
	if err := poster.Post("#ops-incidents", "x"); err == nil {
		t.Fatal("expected error for 429 response")
	}
}
