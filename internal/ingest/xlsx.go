package ingest

import (
	"bytes"
	"strings"

	"github.com/xuri/excelize/v2"

	"spendsense/pipeline/internal/pipelineerror"
)

func extractXLSX(fileName string, data []byte, password string, progress ProgressFunc, every int) ([]rawLine, error) {
	opts := excelize.Options{}
	if password != "" {
		opts.Password = password
	}

	f, err := excelize.OpenReader(bytes.NewReader(data), opts)
	if err != nil {
		if isEncryptionError(err) {
			return nil, &pipelineerror.UnlockError{FileName: fileName, Err: err}
		}
		return nil, &pipelineerror.CorruptFileError{FileName: fileName, Err: err}
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, &pipelineerror.EmptyStatementError{FileName: fileName}
	}

	// Statement workbooks carry the transaction table on the first sheet.
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, &pipelineerror.CorruptFileError{FileName: fileName, Err: err}
	}

	return extractTable(fileName, rows, progress, every)
}

func isEncryptionError(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "password") || strings.Contains(msg, "encrypt") || strings.Contains(msg, "decrypt")
}
