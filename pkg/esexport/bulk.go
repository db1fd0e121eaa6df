package esexport

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Document is one unit of work for BulkExporter. ID is assigned by
// BulkExporter.Export when left empty, and from then on is the key used
// to correlate this document against its bulk response item and against
// the dedup cache.
type Document struct {
	Index  string
	ID     string
	Source json.RawMessage
}

type bulkActionMeta struct {
	Index *bulkActionTarget `json:"index"`
}

type bulkActionTarget struct {
	Index string `json:"_index"`
	ID    string `json:"_id,omitempty"`
}

// buildBulkBody serializes items into the Elasticsearch _bulk NDJSON wire
// format: one action-metadata line followed by one source line per
// document.
func buildBulkBody(items []Document) ([]byte, error) {
	var buf bytes.Buffer
	for _, d := range items {
		meta := bulkActionMeta{Index: &bulkActionTarget{Index: d.Index, ID: d.ID}}
		metaLine, err := json.Marshal(meta)
		if err != nil {
			return nil, fmt.Errorf("marshal bulk action line for %s/%s: %w", d.Index, d.ID, err)
		}
		buf.Write(metaLine)
		buf.WriteByte('\n')
		buf.Write(d.Source)
		buf.WriteByte('\n')
	}
	return buf.Bytes(), nil
}
