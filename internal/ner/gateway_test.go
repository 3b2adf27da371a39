package ner

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/sennet-ai/sennet/internal/resilience"
	clfmock "github.com/sennet-ai/sennet/pkg/provider/classifier/mock"
	"github.com/sennet-ai/sennet/pkg/tokenizer"
	tokmock "github.com/sennet-ai/sennet/pkg/tokenizer/mock"
	"github.com/sennet-ai/sennet/pkg/types"
)

func writeSkillConfig(t *testing.T, entities []map[string]any) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "en.json")
	raw, err := json.Marshal(map[string]any{"entities": entities})
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestExtractEntitiesPassesSkillEntities(t *testing.T) {
	path := writeSkillConfig(t, []map[string]any{
		{"name": "color", "type": "enum", "options": map[string]any{
			"red": map[string]any{"synonyms": []string{"crimson"}},
		}},
	})

	clf := &clfmock.Provider{
		EntitiesResult: []types.Entity{{Name: "color", Value: "red"}},
	}
	g := New(clf, &tokmock.Service{}, nil)

	got, err := g.ExtractEntities(context.Background(), "en", path, "paint it crimson")
	if err != nil {
		t.Fatalf("ExtractEntities: %v", err)
	}
	if len(got) != 1 || got[0].Value != "red" {
		t.Fatalf("unexpected entities: %+v", got)
	}
	if len(clf.ExtractCalls) != 1 {
		t.Fatalf("expected one extract call, got %d", len(clf.ExtractCalls))
	}
	specs := clf.ExtractCalls[0].SkillEntities
	if len(specs) != 1 || specs[0].Name != "color" {
		t.Fatalf("skill entities not forwarded: %+v", specs)
	}
}

func TestExtractEntitiesConfigUnreadable(t *testing.T) {
	g := New(&clfmock.Provider{}, &tokmock.Service{}, nil)

	_, err := g.ExtractEntities(context.Background(), "en", "/nonexistent/en.json", "hello")
	var nerErr *Error
	if !errors.As(err, &nerErr) {
		t.Fatalf("expected *Error, got %v", err)
	}
	if nerErr.Kind != KindWarning || nerErr.Code != CodeConfigUnreadable {
		t.Fatalf("unexpected error: %+v", nerErr)
	}
}

func TestExtractEntitiesClassifierFailure(t *testing.T) {
	clf := &clfmock.Provider{EntitiesErr: errors.New("boom")}
	g := New(clf, &tokmock.Service{}, nil)

	_, err := g.ExtractEntities(context.Background(), "en", "", "hello")
	var nerErr *Error
	if !errors.As(err, &nerErr) {
		t.Fatalf("expected *Error, got %v", err)
	}
	if nerErr.Kind != KindError || nerErr.Code != CodeExtractFailed {
		t.Fatalf("unexpected error: %+v", nerErr)
	}
}

func TestMergeSpacyEntitiesIdempotent(t *testing.T) {
	clf := &clfmock.Provider{}
	tok := &tokmock.Service{
		Entities: []tokenizer.SpacyEntity{
			{Entity: "person", Resolution: tokenizer.Resolution{Value: "louis armstrong"}},
			{Entity: "person", Resolution: tokenizer.Resolution{Value: "louis armstrong"}},
		},
	}
	g := New(clf, tok, nil)

	g.MergeSpacyEntities(context.Background(), "en", "who is louis armstrong")
	g.MergeSpacyEntities(context.Background(), "en", "who is louis armstrong")

	if len(clf.SynonymCalls) != 1 {
		t.Fatalf("expected one synonym registration, got %d", len(clf.SynonymCalls))
	}
	call := clf.SynonymCalls[0]
	if call.Entity != "person" || call.Value != "louis armstrong" {
		t.Fatalf("unexpected registration: %+v", call)
	}
	if len(call.SurfaceForms) != 1 || call.SurfaceForms[0] != "Louis Armstrong" {
		t.Fatalf("expected titlecased surface form, got %v", call.SurfaceForms)
	}
}

func TestMergeSpacyEntitiesRetriesAfterRegistrationFailure(t *testing.T) {
	clf := &clfmock.Provider{SynonymErr: errors.New("not loaded")}
	tok := &tokmock.Service{
		Entities: []tokenizer.SpacyEntity{
			{Entity: "location", Resolution: tokenizer.Resolution{Value: "paris"}},
		},
	}
	g := New(clf, tok, nil)

	g.MergeSpacyEntities(context.Background(), "en", "weather in paris")
	clf.SynonymErr = nil
	g.MergeSpacyEntities(context.Background(), "en", "weather in paris")

	if len(clf.SynonymCalls) != 2 {
		t.Fatalf("expected a retry after failure, got %d calls", len(clf.SynonymCalls))
	}
}

func TestMergeSpacyEntitiesBreakerOpen(t *testing.T) {
	clf := &clfmock.Provider{}
	tok := &tokmock.Service{EntitiesErr: errors.New("conn refused")}
	br := resilience.New(resilience.Config{Name: "tokenizer", Threshold: 1})
	g := New(clf, tok, br)

	// First call trips the breaker; second short-circuits without touching
	// the service.
	g.MergeSpacyEntities(context.Background(), "en", "hello")
	calls := len(tok.SpacyCalls)
	g.MergeSpacyEntities(context.Background(), "en", "hello")

	if len(tok.SpacyCalls) != calls {
		t.Fatalf("expected breaker to short-circuit, got %d calls", len(tok.SpacyCalls))
	}
	if len(clf.SynonymCalls) != 0 {
		t.Fatalf("no synonyms expected, got %d", len(clf.SynonymCalls))
	}
}

func TestBuiltinEntitiesCopy(t *testing.T) {
	a := BuiltinEntities()
	a[0] = "mutated"
	if b := BuiltinEntities(); b[0] == "mutated" {
		t.Fatal("BuiltinEntities must return a copy")
	}
}
