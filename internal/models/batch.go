package models

// BatchStatus reports how far a batch has moved through the pipeline.
// Aggregation callers must see "processing" rather than a silently partial
// view while enrichment is still running.
type BatchStatus string

const (
	BatchStatusProcessing BatchStatus = "processing"
	BatchStatusReady      BatchStatus = "ready"
)

// BatchProgress is the per-stage row count of one ingestion batch.
type BatchProgress struct {
	BatchID       string `json:"batch_id"`
	FactCount     int    `json:"fact_count"`
	ParsedCount   int    `json:"parsed_count"`
	EnrichedCount int    `json:"enriched_count"`
}

// Status derives the batch status from the stage counts. A batch with zero
// facts is ready: re-uploading byte-identical content deduplicates every row
// away, and such a batch has no pending work for clients to wait on.
func (p BatchProgress) Status() BatchStatus {
	if p.ParsedCount == p.FactCount && p.EnrichedCount == p.FactCount {
		return BatchStatusReady
	}
	return BatchStatusProcessing
}
