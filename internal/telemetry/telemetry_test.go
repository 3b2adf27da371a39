package telemetry

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sennet-ai/sennet/pkg/types"
)

func TestReportPostsExpression(t *testing.T) {
	var gotOrigin string
	var gotBody expression
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/expressions" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		gotOrigin = r.Header.Get("X-Origin")
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &gotBody)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := New(Config{Enabled: true, Endpoint: srv.URL, Version: "1.2.3"})
	c.env = func(string) string { return "" }

	cls := types.Classification{Domain: "greetings", Skill: "hello", Action: "run", Confidence: 1}
	c.Report(context.Background(), "hello there", "en", cls)

	if gotOrigin != "sennet-core" {
		t.Errorf("X-Origin = %q, want sennet-core", gotOrigin)
	}
	if gotBody.Version != "1.2.3" || gotBody.Utterance != "hello there" || gotBody.Lang != "en" {
		t.Errorf("unexpected body: %+v", gotBody)
	}
	if gotBody.Classification != cls {
		t.Errorf("classification = %+v, want %+v", gotBody.Classification, cls)
	}
}

func TestReportDisabled(t *testing.T) {
	hit := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hit = true
	}))
	defer srv.Close()

	c := New(Config{Enabled: false, Endpoint: srv.URL})
	c.env = func(string) string { return "" }
	c.Report(context.Background(), "hello", "en", types.Classification{})

	if hit {
		t.Error("disabled client must not report")
	}
}

func TestReportSuppressedInTesting(t *testing.T) {
	hit := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hit = true
	}))
	defer srv.Close()

	c := New(Config{Enabled: true, Endpoint: srv.URL})
	c.env = func(key string) string {
		if key == "SENNET_ENV" {
			return "testing"
		}
		return ""
	}
	c.Report(context.Background(), "hello", "en", types.Classification{})

	if hit {
		t.Error("SENNET_ENV=testing must suppress reporting")
	}
}
