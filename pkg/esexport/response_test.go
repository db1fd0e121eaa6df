package esexport

import "testing"

const sampleBulkResponse = `{
	"took": 12,
	"errors": true,
	"items": [
		{"index": {"_index": "logs-app", "_id": "ok-1", "status": 201}},
		{"index": {"_index": "logs-app", "_id": "throttled-1", "status": 429, "error": {"type": "es_rejected_execution_exception", "reason": "queue full"}}},
		{"index": {"_index": "logs-app", "_id": "bad-1", "status": 400, "error": {"type": "mapper_parsing_exception", "reason": "bad field"}}}
	]
}`

func TestParseBulkResponse_IndexesByID(t *testing.T) {
	resp, err := parseBulkResponse([]byte(sampleBulkResponse))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Took != 12 || !resp.Errors {
		t.Errorf("unexpected top-level fields: %+v", resp)
	}
	if len(resp.byID) != 3 {
		t.Fatalf("expected 3 indexed items, got %d", len(resp.byID))
	}
	if resp.byID["bad-1"].Error.Type != "mapper_parsing_exception" {
		t.Errorf("unexpected error for bad-1: %+v", resp.byID["bad-1"])
	}
}

func TestClassifier_RetriesThrottledRejectsInvalidAcceptsSuccess(t *testing.T) {
	resp, err := parseBulkResponse([]byte(sampleBulkResponse))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	c := Classifier{}

	if c.RetryAll(resp) {
		t.Error("bulk outcomes are always per-item; RetryAll must be false")
	}

	ok := Document{ID: "ok-1"}
	if c.PerItemRetry(ok, resp) || c.PerItemReject(ok, resp) {
		t.Error("a successful item must be neither retried nor rejected")
	}

	throttled := Document{ID: "throttled-1"}
	if !c.PerItemRetry(throttled, resp) {
		t.Error("expected a 429/es_rejected_execution_exception item to be retryable")
	}
	if c.PerItemReject(throttled, resp) {
		t.Error("a retryable item must not also be rejected")
	}

	bad := Document{ID: "bad-1"}
	if c.PerItemRetry(bad, resp) {
		t.Error("a mapping error must not be retried")
	}
	if !c.PerItemReject(bad, resp) {
		t.Error("expected a mapping error item to be permanently rejected")
	}

	missing := Document{ID: "not-in-response"}
	if c.PerItemRetry(missing, resp) || c.PerItemReject(missing, resp) {
		t.Error("a document absent from the response must be treated as a success")
	}
}
