package esexport

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/elastic/go-ingest/pkg/ingest"
)

func TestBulkExporter_Export_RoundTrip(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		body, _ := io.ReadAll(r.Body)
		if len(body) == 0 {
			t.Error("expected a non-empty bulk body")
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"took":1,"errors":false,"items":[{"index":{"_index":"logs","_id":"doc-1","status":201}}]}`))
	}))
	defer srv.Close()

	exporter := NewBulkExporter(Config{
		Addresses: []string{srv.URL},
		APIKey:    "test-key",
	})

	batch := ingest.Batch[Document]{
		Seq:   1,
		Items: []Document{{Index: "logs", ID: "doc-1", Source: json.RawMessage(`{"msg":"hi"}`)}},
	}

	resp, err := exporter.Export(context.Background(), batch)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Took != 1 {
		t.Errorf("expected parsed response, got %+v", resp)
	}
	if gotAuth != "ApiKey test-key" {
		t.Errorf("expected ApiKey auth header, got %q", gotAuth)
	}

	c := Classifier{}
	if c.PerItemRetry(batch.Items[0], resp) || c.PerItemReject(batch.Items[0], resp) {
		t.Error("a successfully indexed document must not be retried or rejected")
	}
}

func TestBulkExporter_Export_NonOKStatusIsFatal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("upstream unavailable"))
	}))
	defer srv.Close()

	exporter := NewBulkExporter(Config{Addresses: []string{srv.URL}})
	batch := ingest.Batch[Document]{
		Items: []Document{{Index: "logs", ID: "doc-1", Source: json.RawMessage(`{}`)}},
	}

	_, err := exporter.Export(context.Background(), batch)
	if err == nil {
		t.Fatal("expected a non-2xx bulk response to surface as an error")
	}
}

func TestBulkExporter_Export_AssignsIDWhenMissing(t *testing.T) {
	var sawID bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var meta bulkActionMeta
		firstLine := body[:indexOf(body, '\n')]
		if err := json.Unmarshal(firstLine, &meta); err == nil && meta.Index.ID != "" {
			sawID = true
		}
		w.Write([]byte(`{"took":1,"errors":false,"items":[]}`))
	}))
	defer srv.Close()

	exporter := NewBulkExporter(Config{Addresses: []string{srv.URL}})
	batch := ingest.Batch[Document]{
		Items: []Document{{Index: "logs", Source: json.RawMessage(`{}`)}},
	}

	if _, err := exporter.Export(context.Background(), batch); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !sawID {
		t.Error("expected Export to assign a document ID before sending")
	}
}

func indexOf(b []byte, c byte) int {
	for i, x := range b {
		if x == c {
			return i
		}
	}
	return len(b)
}
