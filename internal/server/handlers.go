package server

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/shopspring/decimal"

	"spendsense/pipeline/internal/dateutils"
	"spendsense/pipeline/internal/ingest"
	"spendsense/pipeline/internal/logging"
	"spendsense/pipeline/internal/models"
)

// transactionJSON is the wire shape of one effective transaction.
type transactionJSON struct {
	FactID         int64           `json:"fact_id"`
	Date           string          `json:"date"`
	Description    string          `json:"description"`
	Merchant       string          `json:"merchant"`
	Channel        string          `json:"channel"`
	Amount         decimal.Decimal `json:"amount"`
	Direction      string          `json:"direction"`
	Category       string          `json:"category"`
	Subcategory    string          `json:"subcategory,omitempty"`
	Bucket         string          `json:"bucket"`
	Confidence     float64         `json:"confidence"`
	CategorySource string          `json:"category_source"`
	NeedsReview    bool            `json:"needs_review"`
}

func toTransactionJSON(t models.EffectiveTransaction) transactionJSON {
	return transactionJSON{
		FactID:         t.FactID,
		Date:           t.TxnDate.Format(dateutils.DateLayoutISO),
		Description:    t.RawDescription,
		Merchant:       t.Merchant,
		Channel:        string(t.Channel),
		Amount:         models.MinorToDecimal(t.AmountMinor),
		Direction:      string(t.Direction),
		Category:       t.CategoryCode,
		Subcategory:    t.SubcategoryCode,
		Bucket:         string(t.Bucket),
		Confidence:     t.Confidence,
		CategorySource: t.CategorySource,
		NeedsReview:    t.NeedsReview,
	}
}

// uploadResponse is the final payload of a statement upload.
type uploadResponse struct {
	BatchID        string `json:"batch_id"`
	StatementID    string `json:"statement_id"`
	ExtractedCount int    `json:"extracted_count"`
	InsertedCount  int    `json:"inserted_count"`
	Status         string `json:"status"`
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request, userID string) {
	r.Body = http.MaxBytesReader(w, r.Body, s.uploadMaxBytes)
	if err := r.ParseMultipartForm(s.uploadMaxBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart request")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing file field")
		return
	}
	defer func() { _ = file.Close() }()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "unreadable upload")
		return
	}

	password := r.FormValue("password")
	if r.FormValue("stream") == "1" {
		s.uploadStreaming(w, r, userID, header.Filename, data, password)
		return
	}

	result, err := s.runUpload(r, userID, header.Filename, data, password, nil)
	if err != nil {
		s.logger.WithError(err).Warn("Upload failed",
			logging.Field{Key: logging.FieldUser, Value: userID},
			logging.Field{Key: logging.FieldFile, Value: header.Filename})
		writePipelineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// uploadStreaming emits newline-delimited JSON progress events followed by a
// terminal complete or error event. Errors after the first event can no
// longer change the HTTP status.
func (s *Server) uploadStreaming(w http.ResponseWriter, r *http.Request, userID, fileName string, data []byte, password string) {
	w.Header().Set("Content-Type", "application/x-ndjson")
	w.WriteHeader(http.StatusOK)
	flusher, _ := w.(http.Flusher)
	enc := json.NewEncoder(w)

	emit := func(event any) {
		_ = enc.Encode(event)
		if flusher != nil {
			flusher.Flush()
		}
	}

	progress := func(extracted int) {
		emit(map[string]any{"event": "progress", "extracted": extracted})
	}

	result, err := s.runUpload(r, userID, fileName, data, password, progress)
	if err != nil {
		s.logger.WithError(err).Warn("Streaming upload failed",
			logging.Field{Key: logging.FieldUser, Value: userID},
			logging.Field{Key: logging.FieldFile, Value: fileName})
		emit(map[string]any{"event": "error", "error": err.Error()})
		return
	}
	emit(map[string]any{
		"event":           "complete",
		"batch_id":        result.BatchID,
		"statement_id":    result.StatementID,
		"extracted_count": result.ExtractedCount,
		"inserted_count":  result.InsertedCount,
		"status":          result.Status,
	})
}

// runUpload ingests the statement, then parses and enriches the batch so the
// response reflects a queryable state.
func (s *Server) runUpload(r *http.Request, userID, fileName string, data []byte, password string, progress ingest.ProgressFunc) (*uploadResponse, error) {
	ctx := r.Context()

	result, err := s.deps.Ingestor.Ingest(ctx, userID, fileName, data, password, progress)
	if err != nil {
		return nil, err
	}
	if _, err := s.deps.Parser.ParseBatch(ctx, result.BatchID); err != nil {
		return nil, err
	}
	if _, err := s.deps.Enricher.EnrichBatch(ctx, result.BatchID); err != nil {
		return nil, err
	}

	progressRow, err := s.deps.Resolver.BatchStatus(ctx, result.BatchID)
	if err != nil {
		return nil, err
	}

	return &uploadResponse{
		BatchID:        result.BatchID,
		StatementID:    result.StatementID,
		ExtractedCount: result.ExtractedCount,
		InsertedCount:  result.InsertedCount,
		Status:         string(progressRow.Status()),
	}, nil
}

func (s *Server) handleTransactions(w http.ResponseWriter, r *http.Request, userID string) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	txns, err := s.deps.Resolver.List(r.Context(), userID, limit, offset)
	if err != nil {
		s.logger.WithError(err).Error("Listing transactions failed")
		writePipelineError(w, err)
		return
	}

	out := make([]transactionJSON, 0, len(txns))
	for _, t := range txns {
		out = append(out, toTransactionJSON(t))
	}
	writeJSON(w, http.StatusOK, map[string]any{"transactions": out})
}

func (s *Server) handleKPIs(w http.ResponseWriter, r *http.Request, userID string) {
	month := r.URL.Query().Get("month")
	if _, _, err := dateutils.MonthRange(month); err != nil {
		writeError(w, http.StatusBadRequest, "invalid month parameter (YYYY-MM)")
		return
	}

	report, err := s.deps.Insights.KPIs(r.Context(), userID, month)
	if err != nil {
		s.logger.WithError(err).Error("KPI computation failed")
		writePipelineError(w, err)
		return
	}
	roundKPIs(report)
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleInsights(w http.ResponseWriter, r *http.Request, userID string) {
	start, err := dateutils.ParseStatementDate(r.URL.Query().Get("start_date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid start_date")
		return
	}
	end, err := dateutils.ParseStatementDate(r.URL.Query().Get("end_date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid end_date")
		return
	}
	if end.Before(start) {
		writeError(w, http.StatusBadRequest, "end_date before start_date")
		return
	}

	report, err := s.deps.Insights.Insights(r.Context(), userID, start, end)
	if err != nil {
		s.logger.WithError(err).Error("Insights computation failed")
		writePipelineError(w, err)
		return
	}
	roundInsights(report)
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleAvailableMonths(w http.ResponseWriter, r *http.Request, userID string) {
	months, err := s.deps.Resolver.AvailableMonths(r.Context(), userID)
	if err != nil {
		s.logger.WithError(err).Error("Listing months failed")
		writePipelineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"months": months})
}

type correctionRequest struct {
	CategoryCode    string `json:"category_code"`
	SubcategoryCode string `json:"subcategory_code"`
}

func (s *Server) handleCorrection(w http.ResponseWriter, r *http.Request, userID string) {
	factID, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid transaction id")
		return
	}

	var req correctionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.CategoryCode == "" {
		writeError(w, http.StatusBadRequest, "category_code is required")
		return
	}

	if _, err := s.deps.Corrections.Apply(r.Context(), userID, factID, req.CategoryCode, req.SubcategoryCode); err != nil {
		writePipelineError(w, err)
		return
	}

	// Return the post-correction effective view so the client sees the
	// override already applied.
	txn, err := s.deps.Resolver.ByFactID(r.Context(), factID)
	if err != nil {
		writePipelineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toTransactionJSON(*txn))
}

func (s *Server) handleBatchStatus(w http.ResponseWriter, r *http.Request, userID string) {
	progress, err := s.deps.Resolver.BatchStatus(r.Context(), r.PathValue("id"))
	if err != nil {
		writePipelineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"batch_id":       progress.BatchID,
		"status":         string(progress.Status()),
		"fact_count":     progress.FactCount,
		"parsed_count":   progress.ParsedCount,
		"enriched_count": progress.EnrichedCount,
	})
}

// Percentages render with one decimal place; full precision stays internal.
func roundKPIs(report *models.KPIReport) {
	report.SavingsRate = report.SavingsRate.Round(4)
	report.WantsGauge.Ratio = report.WantsGauge.Ratio.Round(4)
	report.UncategorizedPct = report.UncategorizedPct.Round(1)
	for i := range report.TopCategories {
		if report.TopCategories[i].ChangePct != nil {
			rounded := report.TopCategories[i].ChangePct.Round(1)
			report.TopCategories[i].ChangePct = &rounded
		}
	}
}

func roundInsights(report *models.InsightsReport) {
	report.UncategorizedPct = report.UncategorizedPct.Round(1)
	for i := range report.CategoryBreakdown {
		report.CategoryBreakdown[i].Percentage = report.CategoryBreakdown[i].Percentage.Round(1)
	}
	for i := range report.RecurringTransactions {
		report.RecurringTransactions[i].AverageAmount = report.RecurringTransactions[i].AverageAmount.Round(2)
	}
}
