package pgexport

// Classifier implements ingest.Classifier[E, Response]. COPY gives no
// per-row failure detail, so classification happens at the whole-batch
// level: a connection error retries the batch unchanged, a constraint
// violation permanently rejects every item in it.
type Classifier[E any] struct{}

// RetryAll retries the batch on a transient connection failure.
func (Classifier[E]) RetryAll(resp Response) bool {
	return resp.Outcome == OutcomeConnectionError
}

// PerItemRetry is never used: RetryAll already covers the only retryable
// outcome this exporter produces.
func (Classifier[E]) PerItemRetry(E, Response) bool { return false }

// PerItemReject rejects every item when the batch violated a constraint.
func (Classifier[E]) PerItemReject(e E, resp Response) bool {
	return resp.Outcome == OutcomeConstraintViolation
}
