package ingest

import (
	"bytes"
	"encoding/csv"
	"errors"
	"strings"

	"github.com/gocarina/gocsv"

	"spendsense/pipeline/internal/dateutils"
	"spendsense/pipeline/internal/models"
	"spendsense/pipeline/internal/pipelineerror"
)

// statementCSVRow is the canonical export layout. Statements that do not
// match it fall back to header sniffing over the raw records.
type statementCSVRow struct {
	Date        string `csv:"Date"`
	Description string `csv:"Description"`
	Amount      string `csv:"Amount"`
	Direction   string `csv:"Direction"`
}

func extractCSV(fileName string, data []byte, progress ProgressFunc, every int) ([]rawLine, error) {
	records, err := readRecords(data)
	if err != nil {
		return nil, &pipelineerror.CorruptFileError{FileName: fileName, Err: err}
	}

	if isCanonicalHeader(records) {
		return extractCanonicalCSV(fileName, data, progress, every)
	}
	return extractTable(fileName, records, progress, every)
}

func readRecords(data []byte) ([][]string, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1 // statement exports pad rows inconsistently
	r.LazyQuotes = true
	return r.ReadAll()
}

func isCanonicalHeader(records [][]string) bool {
	if len(records) == 0 {
		return false
	}
	have := map[string]bool{}
	for _, cell := range records[0] {
		have[strings.TrimSpace(cell)] = true
	}
	return have["Date"] && have["Description"] && have["Amount"]
}

func extractCanonicalCSV(fileName string, data []byte, progress ProgressFunc, every int) ([]rawLine, error) {
	var rows []*statementCSVRow
	if err := gocsv.UnmarshalBytes(data, &rows); err != nil {
		return nil, &pipelineerror.CorruptFileError{FileName: fileName, Err: err}
	}

	var lines []rawLine
	for _, row := range rows {
		if strings.TrimSpace(row.Date) == "" {
			continue
		}
		line, ok := buildLine(row.Date, row.Description, row.Amount, "", row.Direction)
		if !ok {
			continue
		}
		lines = append(lines, line)
		reportProgress(progress, every, len(lines))
	}
	return lines, nil
}

// header names banks use for each logical column, lowercased.
var (
	dateHeaders   = []string{"date", "txn date", "transaction date", "value date", "posting date"}
	descHeaders   = []string{"description", "narration", "particulars", "details", "remarks"}
	amountHeaders = []string{"amount", "transaction amount", "amount (inr)"}
	debitHeaders  = []string{"debit", "withdrawal", "withdrawal amt", "withdrawal amt.", "dr"}
	creditHeaders = []string{"credit", "deposit", "deposit amt", "deposit amt.", "cr"}
	typeHeaders   = []string{"direction", "type", "dr/cr", "cr/dr"}
)

var errNoHeader = errors.New("no recognizable transaction header row")

type columnMap struct {
	date, desc, amount, debit, credit, direction int
}

func findHeader(records [][]string) (columnMap, int, bool) {
	for i, row := range records {
		cm := columnMap{date: -1, desc: -1, amount: -1, debit: -1, credit: -1, direction: -1}
		for col, cell := range row {
			name := strings.ToLower(strings.TrimSpace(cell))
			switch {
			case cm.date < 0 && matchHeader(name, dateHeaders):
				cm.date = col
			case cm.desc < 0 && matchHeader(name, descHeaders):
				cm.desc = col
			case cm.amount < 0 && matchHeader(name, amountHeaders):
				cm.amount = col
			case cm.debit < 0 && matchHeader(name, debitHeaders):
				cm.debit = col
			case cm.credit < 0 && matchHeader(name, creditHeaders):
				cm.credit = col
			case cm.direction < 0 && matchHeader(name, typeHeaders):
				cm.direction = col
			}
		}
		if cm.date >= 0 && cm.desc >= 0 && (cm.amount >= 0 || cm.debit >= 0 || cm.credit >= 0) {
			return cm, i, true
		}
	}
	return columnMap{}, 0, false
}

func matchHeader(name string, candidates []string) bool {
	for _, c := range candidates {
		if name == c {
			return true
		}
	}
	return false
}

// extractTable maps arbitrary bank layouts onto raw lines by sniffing the
// header row. Shared by the CSV fallback and the XLSX extractor.
func extractTable(fileName string, records [][]string, progress ProgressFunc, every int) ([]rawLine, error) {
	cm, headerIdx, ok := findHeader(records)
	if !ok {
		return nil, &pipelineerror.CorruptFileError{
			FileName: fileName,
			Err:      errNoHeader,
		}
	}

	var lines []rawLine
	for _, row := range records[headerIdx+1:] {
		if cm.date >= len(row) || strings.TrimSpace(cell(row, cm.date)) == "" {
			continue
		}

		var amountStr, stated string
		switch {
		case cm.amount >= 0:
			amountStr = cell(row, cm.amount)
			stated = normalizeDirection(cell(row, cm.direction))
		case strings.TrimSpace(cell(row, cm.debit)) != "":
			amountStr = cell(row, cm.debit)
			stated = string(models.DirectionDebit)
		case strings.TrimSpace(cell(row, cm.credit)) != "":
			amountStr = cell(row, cm.credit)
			stated = string(models.DirectionCredit)
		default:
			continue
		}

		line, ok := buildLine(cell(row, cm.date), cell(row, cm.desc), amountStr, stated, "")
		if !ok {
			continue
		}
		lines = append(lines, line)
		reportProgress(progress, every, len(lines))
	}
	return lines, nil
}

func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return row[idx]
}

// buildLine assembles one raw line from string cells. stated comes from a
// dedicated debit/credit column; marker comes from a Direction column in the
// canonical layout. A stated direction signs magnitude-style amounts.
func buildLine(dateStr, desc, amountStr, stated, marker string) (rawLine, bool) {
	date, err := dateutils.ParseStatementDate(dateStr)
	if err != nil {
		return rawLine{}, false
	}
	amountMinor, err := models.ParseAmountMinor(amountStr)
	if err != nil {
		return rawLine{}, false
	}

	direction := stated
	if direction == "" {
		direction = normalizeDirection(marker)
	}
	if direction == string(models.DirectionDebit) && amountMinor > 0 {
		amountMinor = -amountMinor
	}

	return rawLine{
		Date:        date,
		Description: strings.TrimSpace(desc),
		AmountMinor: amountMinor,
		Direction:   direction,
	}, true
}

func normalizeDirection(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "dr", "debit", "withdrawal", "d":
		return string(models.DirectionDebit)
	case "cr", "credit", "deposit", "c":
		return string(models.DirectionCredit)
	default:
		return ""
	}
}
