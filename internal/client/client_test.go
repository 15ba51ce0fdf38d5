package client

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestNewRespectsEnv(t *testing.T) {
	t.Setenv("BLEU_URL", "http://example.test:1234")
	if c := New(""); c.serverURL != "http://example.test:1234" {
		t.Errorf("serverURL = %q", c.serverURL)
	}
	if c := New("http://explicit"); c.serverURL != "http://explicit" {
		t.Errorf("explicit serverURL = %q", c.serverURL)
	}
}

func TestNewDefault(t *testing.T) {
	t.Setenv("BLEU_URL", "")
	if c := New(""); c.serverURL != defaultServerURL {
		t.Errorf("serverURL = %q, want %q", c.serverURL, defaultServerURL)
	}
}

func TestHealthy(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/health" {
			json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
			return
		}
		http.NotFound(w, r)
	}))
	defer ts.Close()

	if !New(ts.URL).Healthy() {
		t.Error("expected healthy")
	}
}

func TestHealthyServerDown(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	url := ts.URL
	ts.Close()

	if New(url).Healthy() {
		t.Error("expected unhealthy")
	}
}

func TestIngestAssetPostsJSON(t *testing.T) {
	var gotPath, gotBody string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.EscapedPath()
		data, _ := io.ReadAll(r.Body)
		gotBody = string(data)
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"kept":[1],"demoted":[]}`))
	}))
	defer ts.Close()

	data, err := New(ts.URL).IngestAsset("nutrition", "bp 1", "https://cdn/x.png")
	if err != nil {
		t.Fatalf("IngestAsset: %v", err)
	}
	if gotPath != "/api/owners/nutrition/bp%201/assets" {
		t.Errorf("path = %q", gotPath)
	}
	if !strings.Contains(gotBody, `"url":"https://cdn/x.png"`) {
		t.Errorf("body = %q", gotBody)
	}
	if !strings.Contains(string(data), "kept") {
		t.Errorf("response = %q", data)
	}
}

func TestPostErrorStatus(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		w.Write([]byte(`{"error":"job not running"}`))
	}))
	defer ts.Close()

	data, err := New(ts.URL).FailJob("j-1", "boom")
	if err == nil {
		t.Fatal("expected error for 409")
	}
	if !strings.Contains(err.Error(), "409") {
		t.Errorf("err = %v, want status in message", err)
	}
	if !strings.Contains(string(data), "job not running") {
		t.Errorf("data = %q", data)
	}
}

func TestGetErrorStatus(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	defer ts.Close()

	if _, err := New(ts.URL).Get("/api/jobs/x"); err == nil {
		t.Error("expected error for 404")
	}
}
