package ingest

import (
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strings"

	"spendsense/pipeline/internal/dateutils"
	"spendsense/pipeline/internal/logging"
	"spendsense/pipeline/internal/models"
	"spendsense/pipeline/internal/pipelineerror"
)

// PDFExtractor extracts the text layer from a PDF statement. The interface
// exists so tests can inject canned text instead of shelling out.
type PDFExtractor interface {
	// ExtractText returns the text content of the PDF at path. An empty
	// password means the file is expected to be unprotected.
	ExtractText(path, password string) (string, error)
}

// RealPDFExtractor shells out to the pdftotext command. It is the production
// implementation and requires pdftotext on PATH.
type RealPDFExtractor struct{}

// NewRealPDFExtractor creates a RealPDFExtractor.
func NewRealPDFExtractor() *RealPDFExtractor {
	return &RealPDFExtractor{}
}

// ExtractText runs pdftotext -layout over the file, passing the user
// password when one is supplied.
func (e *RealPDFExtractor) ExtractText(path, password string) (string, error) {
	textFile := path + ".txt"
	args := []string{"-layout"}
	if password != "" {
		args = append(args, "-upw", password)
	}
	args = append(args, path, textFile)

	cmd := exec.Command("pdftotext", args...)
	var stderr strings.Builder
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if isPasswordFailure(stderr.String()) {
			return "", errPDFLocked
		}
		return "", fmt.Errorf("running pdftotext: %w: %s", err, strings.TrimSpace(stderr.String()))
	}

	output, err := os.ReadFile(textFile)
	if err != nil {
		return "", fmt.Errorf("reading extracted text: %w", err)
	}
	os.Remove(textFile)
	return string(output), nil
}

// errPDFLocked marks extraction failures caused by a wrong or missing
// password, as opposed to a corrupt file.
var errPDFLocked = fmt.Errorf("incorrect or missing password")

func isPasswordFailure(stderr string) bool {
	msg := strings.ToLower(stderr)
	return strings.Contains(msg, "incorrect password") ||
		strings.Contains(msg, "encrypted") ||
		strings.Contains(msg, "command line password")
}

// MockPDFExtractor returns canned text for tests.
type MockPDFExtractor struct {
	MockText string
	MockErr  error
}

// NewMockPDFExtractor creates a MockPDFExtractor with the given canned data.
func NewMockPDFExtractor(mockText string, mockErr error) *MockPDFExtractor {
	return &MockPDFExtractor{MockText: mockText, MockErr: mockErr}
}

// ExtractText returns the canned text or error.
func (e *MockPDFExtractor) ExtractText(path, password string) (string, error) {
	if e.MockErr != nil {
		return "", e.MockErr
	}
	return e.MockText, nil
}

func (ing *Ingestor) extractPDF(fileName string, data []byte, password string, progress ProgressFunc) ([]rawLine, error) {
	tempFile, err := os.CreateTemp("", "*.pdf")
	if err != nil {
		return nil, fmt.Errorf("creating temporary file: %w", err)
	}
	defer func() {
		if err := os.Remove(tempFile.Name()); err != nil {
			ing.logger.WithError(err).Warn("Failed to remove temporary file",
				logging.Field{Key: logging.FieldFile, Value: tempFile.Name()})
		}
	}()

	if _, err := tempFile.Write(data); err != nil {
		tempFile.Close()
		return nil, fmt.Errorf("writing temporary file: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		return nil, fmt.Errorf("closing temporary file: %w", err)
	}

	text, err := ing.pdf.ExtractText(tempFile.Name(), password)
	if err != nil {
		if err == errPDFLocked {
			return nil, &pipelineerror.UnlockError{FileName: fileName, Err: err}
		}
		return nil, &pipelineerror.CorruptFileError{FileName: fileName, Err: err}
	}

	return extractPDFText(text, progress, ing.progressEvery), nil
}

// pdfTxnLine matches one statement line in pdftotext -layout output: a date,
// free-form description, an amount and an optional Dr/Cr marker. The running
// balance column, when present, trails the marker and is ignored.
var pdfTxnLine = regexp.MustCompile(
	`^\s*(\d{1,4}[./-]\w{1,3}[./-]\d{2,4})\s+(.+?)\s+(-?[\d,]+\.?\d*)\s*(Cr|CR|Dr|DR)?(?:\s+-?[\d,]+\.?\d*\s*(?:Cr|CR|Dr|DR)?)?\s*$`)

func extractPDFText(text string, progress ProgressFunc, every int) []rawLine {
	var lines []rawLine
	for _, line := range strings.Split(text, "\n") {
		m := pdfTxnLine.FindStringSubmatch(line)
		if m == nil {
			continue
		}

		date, err := dateutils.ParseStatementDate(m[1])
		if err != nil {
			continue
		}
		amountMinor, err := models.ParseAmountMinor(m[3])
		if err != nil {
			continue
		}

		direction := normalizeDirection(m[4])
		// PDF tables print magnitudes; the marker column carries the sign.
		if direction == string(models.DirectionDebit) && amountMinor > 0 {
			amountMinor = -amountMinor
		}

		lines = append(lines, rawLine{
			Date:        date,
			Description: strings.TrimSpace(m[2]),
			AmountMinor: amountMinor,
			Direction:   direction,
		})
		reportProgress(progress, every, len(lines))
	}
	return lines
}
