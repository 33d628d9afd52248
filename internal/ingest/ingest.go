// Package ingest accepts uploaded statement files and writes their line
// items as immutable raw transaction facts. Ingestion is idempotent per file
// content: re-uploading byte-identical bytes never duplicates facts.
package ingest

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"spendsense/pipeline/internal/logging"
	"spendsense/pipeline/internal/models"
	"spendsense/pipeline/internal/pipelineerror"
	"spendsense/pipeline/internal/store"
)

// rawLine is one extracted statement line before it becomes a fact.
type rawLine struct {
	Date        time.Time
	Description string
	AmountMinor int64
	Direction   string // "debit", "credit" or "" when the source is silent
}

// ProgressFunc receives the running count of extracted rows during ingestion.
type ProgressFunc func(extracted int)

// Result is the outcome of one ingestion.
type Result struct {
	BatchID        string `json:"batch_id"`
	StatementID    string `json:"statement_id"`
	ExtractedCount int    `json:"extracted_count"`
	InsertedCount  int    `json:"inserted_count"`
}

// Ingestor extracts statement files into raw transaction facts.
type Ingestor struct {
	store         *store.Store
	pdf           PDFExtractor
	logger        logging.Logger
	progressEvery int
}

// New creates an Ingestor with the default pdftotext-based PDF extractor.
func New(st *store.Store, logger logging.Logger, progressEvery int) *Ingestor {
	return NewWithExtractor(st, NewRealPDFExtractor(), logger, progressEvery)
}

// NewWithExtractor creates an Ingestor with a caller-supplied PDF extractor.
// Tests use this to avoid shelling out.
func NewWithExtractor(st *store.Store, pdf PDFExtractor, logger logging.Logger, progressEvery int) *Ingestor {
	if logger == nil {
		logger = logging.GetLogger()
	}
	if progressEvery <= 0 {
		progressEvery = 25
	}
	return &Ingestor{store: st, pdf: pdf, logger: logger, progressEvery: progressEvery}
}

// DetectFileType resolves the statement format from the file name and magic
// bytes. The content wins when the extension lies.
func DetectFileType(fileName string, data []byte) (models.FileType, error) {
	if bytes.HasPrefix(data, []byte("%PDF-")) {
		return models.FileTypePDF, nil
	}
	// XLSX is a ZIP container; legacy CFB spreadsheets share the magic
	// that excelize also accepts.
	if bytes.HasPrefix(data, []byte("PK\x03\x04")) || bytes.HasPrefix(data, []byte{0xD0, 0xCF, 0x11, 0xE0}) {
		return models.FileTypeXLSX, nil
	}

	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(fileName), "."))
	switch ext {
	case "pdf":
		return models.FileTypePDF, nil
	case "xlsx", "xls":
		return models.FileTypeXLSX, nil
	case "csv", "txt", "":
		return models.FileTypeCSV, nil
	default:
		return "", &pipelineerror.UnsupportedFormatError{FileName: fileName, FileType: ext}
	}
}

// Ingest extracts one uploaded statement and writes its facts. The progress
// callback, when non-nil, is invoked with the running extracted count. A
// cancelled context aborts before commit, leaving no partial batch.
func (ing *Ingestor) Ingest(ctx context.Context, userID, fileName string, data []byte, password string, progress ProgressFunc) (*Result, error) {
	fileType, err := DetectFileType(fileName, data)
	if err != nil {
		return nil, err
	}

	log := ing.logger.WithFields(
		logging.Field{Key: logging.FieldUser, Value: userID},
		logging.Field{Key: logging.FieldFile, Value: fileName},
		logging.Field{Key: logging.FieldFormat, Value: string(fileType)})
	log.Info("Ingesting statement")

	var lines []rawLine
	switch fileType {
	case models.FileTypeCSV:
		lines, err = extractCSV(fileName, data, progress, ing.progressEvery)
	case models.FileTypeXLSX:
		lines, err = extractXLSX(fileName, data, password, progress, ing.progressEvery)
	case models.FileTypePDF:
		lines, err = ing.extractPDF(fileName, data, password, progress)
	}
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("ingestion cancelled: %w", err)
	}
	if len(lines) == 0 {
		return nil, &pipelineerror.EmptyStatementError{FileName: fileName}
	}

	hash := sha256.Sum256(data)
	contentHash := hex.EncodeToString(hash[:])

	statementID := uuid.NewString()
	batchID := uuid.NewString()
	now := time.Now()

	facts := make([]models.RawTransactionFact, 0, len(lines))
	for i, line := range lines {
		facts = append(facts, models.RawTransactionFact{
			UserID:         userID,
			StatementID:    statementID,
			BatchID:        batchID,
			TxnDate:        line.Date,
			RawDescription: line.Description,
			AmountMinor:    line.AmountMinor,
			RawDirection:   line.Direction,
			ContentHash:    contentHash,
			RowOrdinal:     i,
			IngestedAt:     now,
		})
	}

	// Statement row and facts commit together so the registry never records
	// an upload whose facts were not written.
	inserted, err := ing.store.InsertStatementFacts(ctx, models.Statement{
		ID:         statementID,
		UserID:     userID,
		FileName:   fileName,
		FileType:   fileType,
		UploadedAt: now,
	}, facts)
	if err != nil {
		return nil, err
	}

	log.Info("Statement ingested",
		logging.Field{Key: logging.FieldBatch, Value: batchID},
		logging.Field{Key: logging.FieldCount, Value: len(lines)},
		logging.Field{Key: "inserted", Value: inserted})

	return &Result{
		BatchID:        batchID,
		StatementID:    statementID,
		ExtractedCount: len(lines),
		InsertedCount:  inserted,
	}, nil
}

func reportProgress(progress ProgressFunc, every, count int) {
	if progress != nil && count%every == 0 {
		progress(count)
	}
}
