package bootstrap

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestEnsureIndexResources_CreatesTemplatePipelineAndIndex(t *testing.T) {
	var gotPaths []string
	indexExists := false

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPaths = append(gotPaths, r.Method+" "+r.URL.Path)

		if r.Method == http.MethodHead && r.URL.Path == "/logs-app-000001" {
			if indexExists {
				w.WriteHeader(http.StatusOK)
			} else {
				w.WriteHeader(http.StatusNotFound)
			}
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	b := NewBootstrapper(srv.URL, "test-key", nil, nil)

	spec := IndexSpec{
		TemplateName:  "logs-app",
		IndexPatterns: []string{"logs-app-*"},
		TemplateBody:  json.RawMessage(`{"mappings":{}}`),
		PipelineName:  "logs-app-pipeline",
		PipelineBody:  json.RawMessage(`{"processors":[]}`),
		InitialIndex:  "logs-app-000001",
	}

	if err := b.EnsureIndexResources(context.Background(), spec); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	wantPrefixes := []string{
		"PUT /_ingest/pipeline/logs-app-pipeline",
		"PUT /_index_template/logs-app",
		"HEAD /logs-app-000001",
		"PUT /logs-app-000001",
	}
	for _, want := range wantPrefixes {
		found := false
		for _, got := range gotPaths {
			if got == want {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("expected a call %q, got calls %v", want, gotPaths)
		}
	}
}

func TestEnsureIndexResources_SkipsIndexCreationWhenAlreadyPresent(t *testing.T) {
	var sawIndexPut bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodHead:
			w.WriteHeader(http.StatusOK)
		case r.Method == http.MethodPut && r.URL.Path == "/logs-app-000001":
			sawIndexPut = true
			w.WriteHeader(http.StatusOK)
		default:
			w.WriteHeader(http.StatusOK)
		}
	}))
	defer srv.Close()

	b := NewBootstrapper(srv.URL, "", nil, nil)
	spec := IndexSpec{
		TemplateName:  "logs-app",
		IndexPatterns: []string{"logs-app-*"},
		TemplateBody:  json.RawMessage(`{}`),
		InitialIndex:  "logs-app-000001",
	}

	if err := b.EnsureIndexResources(context.Background(), spec); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sawIndexPut {
		t.Error("expected no PUT for an index that already exists")
	}
}

func TestEnsureIndexResources_PropagatesErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	b := NewBootstrapper(srv.URL, "", nil, nil)
	err := b.EnsureIndexResources(context.Background(), IndexSpec{
		TemplateName:  "logs-app",
		IndexPatterns: []string{"logs-app-*"},
		TemplateBody:  json.RawMessage(`{}`),
	})
	if err == nil {
		t.Fatal("expected an error when the cluster returns 500")
	}
}
