package logging

// Standardized field names for structured logging, so pipeline stages emit
// filterable, consistent output.
const (
	FieldUser      = "user_id"
	FieldBatch     = "batch_id"
	FieldStatement = "statement_id"
	FieldFact      = "fact_id"
	FieldFile      = "file_name"
	FieldFormat    = "file_type"
	FieldMerchant  = "merchant"
	FieldCategory  = "category"
	FieldRule      = "rule_id"
	FieldCount     = "count"
	FieldStage     = "stage"
	FieldDuration  = "duration_ms"
)
