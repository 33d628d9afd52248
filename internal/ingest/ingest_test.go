package ingest

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spendsense/pipeline/internal/logging"
	"spendsense/pipeline/internal/models"
	"spendsense/pipeline/internal/pipelineerror"
	"spendsense/pipeline/internal/store"
)

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "test.db"), logging.NewMockLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestDetectFileType(t *testing.T) {
	tests := []struct {
		name     string
		fileName string
		data     []byte
		want     models.FileType
	}{
		{"pdf magic", "statement.bin", []byte("%PDF-1.7 rest"), models.FileTypePDF},
		{"xlsx magic", "statement.bin", []byte("PK\x03\x04rest"), models.FileTypeXLSX},
		{"csv extension", "statement.csv", []byte("Date,Amount"), models.FileTypeCSV},
		{"txt extension", "statement.txt", []byte("Date,Amount"), models.FileTypeCSV},
		{"pdf extension", "statement.pdf", []byte("no magic"), models.FileTypePDF},
		{"magic beats extension", "statement.csv", []byte("%PDF-1.4"), models.FileTypePDF},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DetectFileType(tt.fileName, tt.data)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDetectFileTypeUnsupported(t *testing.T) {
	_, err := DetectFileType("statement.docx", []byte("random"))
	var unsupported *pipelineerror.UnsupportedFormatError
	require.ErrorAs(t, err, &unsupported)
	assert.Equal(t, "docx", unsupported.FileType)
}

var sampleCSV = []byte(`Date,Description,Amount,Direction
2025-03-01,UPI/zomato/4521/pay,-450.00,debit
2025-03-02,NEFT SALARY ACME CORP,50000.00,credit
`)

func TestIngestCSV(t *testing.T) {
	st := openTestStore(t)
	ing := New(st, logging.NewMockLogger(), 25)
	ctx := context.Background()

	result, err := ing.Ingest(ctx, "u1", "march.csv", sampleCSV, "", nil)
	require.NoError(t, err)
	assert.Equal(t, 2, result.ExtractedCount)
	assert.Equal(t, 2, result.InsertedCount)
	assert.NotEmpty(t, result.BatchID)
	assert.NotEmpty(t, result.StatementID)

	facts, err := st.UnparsedFacts(ctx, result.BatchID)
	require.NoError(t, err)
	require.Len(t, facts, 2)
	assert.Equal(t, int64(-45000), facts[0].AmountMinor)
	assert.Equal(t, 0, facts[0].RowOrdinal)
	assert.Equal(t, 1, facts[1].RowOrdinal)

	raw, err := st.SumFactsByStatement(ctx, result.StatementID)
	require.NoError(t, err)
	assert.Equal(t, int64(5000000-45000), raw)
}

func TestIngestIdempotent(t *testing.T) {
	st := openTestStore(t)
	ing := New(st, logging.NewMockLogger(), 25)
	ctx := context.Background()

	first, err := ing.Ingest(ctx, "u1", "march.csv", sampleCSV, "", nil)
	require.NoError(t, err)
	assert.Equal(t, 2, first.InsertedCount)

	// Re-uploading byte-identical content extracts again but inserts nothing.
	second, err := ing.Ingest(ctx, "u1", "march-again.csv", sampleCSV, "", nil)
	require.NoError(t, err)
	assert.Equal(t, 2, second.ExtractedCount)
	assert.Equal(t, 0, second.InsertedCount)
	assert.NotEqual(t, first.BatchID, second.BatchID)

	// The duplicate batch holds no facts, so nothing is pending for it.
	progress, err := st.BatchProgress(ctx, second.BatchID)
	require.NoError(t, err)
	assert.Equal(t, models.BatchStatusReady, progress.Status())
}

func TestIngestEmptyStatement(t *testing.T) {
	st := openTestStore(t)
	ing := New(st, logging.NewMockLogger(), 25)

	data := []byte("Date,Description,Amount\n")
	_, err := ing.Ingest(context.Background(), "u1", "empty.csv", data, "", nil)
	var empty *pipelineerror.EmptyStatementError
	assert.ErrorAs(t, err, &empty)
}

func TestIngestPDFWithMockExtractor(t *testing.T) {
	st := openTestStore(t)
	ing := NewWithExtractor(st, NewMockPDFExtractor(samplePDFText, nil), logging.NewMockLogger(), 25)

	result, err := ing.Ingest(context.Background(), "u1", "march.pdf", []byte("%PDF-1.7 fake"), "", nil)
	require.NoError(t, err)
	assert.Equal(t, 3, result.ExtractedCount)
	assert.Equal(t, 3, result.InsertedCount)
}

func TestIngestLockedPDF(t *testing.T) {
	st := openTestStore(t)
	ing := NewWithExtractor(st, NewMockPDFExtractor("", errPDFLocked), logging.NewMockLogger(), 25)

	_, err := ing.Ingest(context.Background(), "u1", "locked.pdf", []byte("%PDF-1.7 fake"), "", nil)
	var locked *pipelineerror.UnlockError
	assert.ErrorAs(t, err, &locked)
}
