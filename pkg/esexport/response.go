package esexport

import (
	"encoding/json"
	"fmt"
)

// BulkErrorCause is the "error" object Elasticsearch attaches to a failed
// bulk item.
type BulkErrorCause struct {
	Type   string `json:"type"`
	Reason string `json:"reason"`
}

// BulkItemResult is the per-document outcome of one bulk action.
type BulkItemResult struct {
	Index  string          `json:"_index"`
	ID     string          `json:"_id"`
	Status int             `json:"status"`
	Error  *BulkErrorCause `json:"error,omitempty"`
}

type bulkResponseItem struct {
	Index  *BulkItemResult `json:"index,omitempty"`
	Create *BulkItemResult `json:"create,omitempty"`
	Update *BulkItemResult `json:"update,omitempty"`
}

func (i bulkResponseItem) result() *BulkItemResult {
	switch {
	case i.Index != nil:
		return i.Index
	case i.Create != nil:
		return i.Create
	case i.Update != nil:
		return i.Update
	default:
		return nil
	}
}

// BulkResponse is the parsed result of one _bulk call, indexed by
// document ID so a Classifier can look up a given Document's outcome in
// constant time regardless of its position in the batch.
type BulkResponse struct {
	Took   int
	Errors bool

	byID map[string]*BulkItemResult
}

func parseBulkResponse(body []byte) (BulkResponse, error) {
	var wire struct {
		Took   int                `json:"took"`
		Errors bool               `json:"errors"`
		Items  []bulkResponseItem `json:"items"`
	}
	if err := json.Unmarshal(body, &wire); err != nil {
		return BulkResponse{}, fmt.Errorf("unmarshal bulk response: %w", err)
	}

	byID := make(map[string]*BulkItemResult, len(wire.Items))
	for _, item := range wire.Items {
		if r := item.result(); r != nil {
			byID[r.ID] = r
		}
	}

	return BulkResponse{Took: wire.Took, Errors: wire.Errors, byID: byID}, nil
}

// retryableBulkError reports whether a bulk item error represents
// transient cluster pressure rather than a permanent document problem.
func retryableBulkError(status int, cause *BulkErrorCause) bool {
	if status == 429 {
		return true
	}
	if cause == nil {
		return false
	}
	switch cause.Type {
	case "es_rejected_execution_exception", "circuit_breaking_exception":
		return true
	default:
		return false
	}
}

// Classifier implements ingest.Classifier[Document, BulkResponse] by
// looking up each document's outcome in the response's per-ID index.
// Documents absent from the response are treated as successes.
// BulkExporter.Export records dedup-skipped documents in the response as
// status 200 items.
type Classifier struct{}

// RetryAll always returns false: bulk outcomes are always per-item.
func (Classifier) RetryAll(BulkResponse) bool { return false }

// PerItemRetry reports whether e's bulk item failed with a transient
// error.
func (Classifier) PerItemRetry(e Document, resp BulkResponse) bool {
	r, ok := resp.byID[e.ID]
	if !ok || r.Error == nil {
		return false
	}
	return retryableBulkError(r.Status, r.Error)
}

// PerItemReject reports whether e's bulk item failed with a permanent
// error.
func (Classifier) PerItemReject(e Document, resp BulkResponse) bool {
	r, ok := resp.byID[e.ID]
	if !ok || r.Error == nil {
		return false
	}
	return !retryableBulkError(r.Status, r.Error)
}
