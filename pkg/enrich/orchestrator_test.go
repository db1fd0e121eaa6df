package enrich

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestOrchestrator_RunOnce_FetchesEnrichesAndWritesBack(t *testing.T) {
	var bulkBody string

	mux := http.NewServeMux()
	mux.HandleFunc("/logs-app/_search", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"hits":{"hits":[{"_id":"doc-1","_source":{"msg":"hi"}}]}}`))
	})
	mux.HandleFunc("/enrich", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if !strings.Contains(string(body), "hi") {
			t.Errorf("expected the document source to be forwarded, got %s", body)
		}
		w.Write([]byte(`{"sentiment":"positive"}`))
	})
	mux.HandleFunc("/_bulk", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		bulkBody = string(body)
		w.Write([]byte(`{"took":1,"errors":false,"items":[]}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	o := NewOrchestrator(Config{
		ESAddr:            srv.URL,
		Index:             "logs-app",
		EnrichEndpoint:    srv.URL + "/enrich",
		RequestsPerSecond: 1000,
		Burst:             10,
	})

	if err := o.runOnce(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !strings.Contains(bulkBody, `"_id":"doc-1"`) {
		t.Errorf("expected bulk write-back to reference doc-1, got %s", bulkBody)
	}
	if !strings.Contains(bulkBody, "sentiment") {
		t.Errorf("expected bulk write-back to include the enriched field, got %s", bulkBody)
	}
	if !strings.Contains(bulkBody, "enriched_at") {
		t.Errorf("expected bulk write-back to stamp enriched_at, got %s", bulkBody)
	}
}

func TestOrchestrator_RunOnce_NoDocumentsIsNoop(t *testing.T) {
	var bulkCalled bool
	mux := http.NewServeMux()
	mux.HandleFunc("/logs-app/_search", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"hits":{"hits":[]}}`))
	})
	mux.HandleFunc("/_bulk", func(w http.ResponseWriter, r *http.Request) {
		bulkCalled = true
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	o := NewOrchestrator(Config{ESAddr: srv.URL, Index: "logs-app", EnrichEndpoint: srv.URL + "/enrich"})

	if err := o.runOnce(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if bulkCalled {
		t.Error("expected no bulk write-back when there are no unenriched documents")
	}
}

func TestOrchestrator_RunOnce_SkipsDocumentOnEnrichmentFailure(t *testing.T) {
	var bulkBody string
	mux := http.NewServeMux()
	mux.HandleFunc("/logs-app/_search", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"hits":{"hits":[{"_id":"doc-1","_source":{}},{"_id":"doc-2","_source":{}}]}}`))
	})
	mux.HandleFunc("/enrich", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		w.WriteHeader(http.StatusInternalServerError)
	})
	mux.HandleFunc("/_bulk", func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		bulkBody = string(b)
		w.Write([]byte(`{"took":1,"errors":false,"items":[]}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	o := NewOrchestrator(Config{
		ESAddr:            srv.URL,
		Index:             "logs-app",
		EnrichEndpoint:    srv.URL + "/enrich",
		RequestsPerSecond: 1000,
		Burst:             10,
	})

	if err := o.runOnce(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if bulkBody != "" {
		t.Error("expected no write-back when every enrichment call failed")
	}
}
