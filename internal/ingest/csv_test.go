package ingest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spendsense/pipeline/internal/pipelineerror"
)

func TestExtractCSVCanonical(t *testing.T) {
	data := []byte(`Date,Description,Amount,Direction
2025-03-01,UPI/zomato/4521/pay,-450.00,debit
2025-03-02,NEFT SALARY ACME CORP,50000.00,credit
2025-03-03,POS BIG BAZAAR,-1200.50,debit
`)

	lines, err := extractCSV("statement.csv", data, nil, 25)
	require.NoError(t, err)
	require.Len(t, lines, 3)

	assert.Equal(t, time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), lines[0].Date)
	assert.Equal(t, "UPI/zomato/4521/pay", lines[0].Description)
	assert.Equal(t, int64(-45000), lines[0].AmountMinor)
	assert.Equal(t, "debit", lines[0].Direction)

	assert.Equal(t, int64(5000000), lines[1].AmountMinor)
	assert.Equal(t, "credit", lines[1].Direction)
	assert.Equal(t, int64(-120050), lines[2].AmountMinor)
}

func TestExtractCSVBankLayout(t *testing.T) {
	// Header sniffing over a typical bank export with separate debit/credit
	// columns and magnitude-style amounts.
	data := []byte(`Txn Date,Narration,Withdrawal Amt.,Deposit Amt.,Balance
12/03/2025,UPI/zomato/4521/pay,450.00,,10000.00
13/03/2025,NEFT SALARY ACME,,50000.00,60000.00
`)

	lines, err := extractCSV("bank.csv", data, nil, 25)
	require.NoError(t, err)
	require.Len(t, lines, 2)

	assert.Equal(t, int64(-45000), lines[0].AmountMinor)
	assert.Equal(t, "debit", lines[0].Direction)
	assert.Equal(t, int64(5000000), lines[1].AmountMinor)
	assert.Equal(t, "credit", lines[1].Direction)
}

func TestExtractCSVPreambleBeforeHeader(t *testing.T) {
	data := []byte(`Account Statement
Period: March 2025

Date,Particulars,Amount,Type
2025-03-01,POS STORE,450.00,Dr
2025-03-02,INTEREST CREDIT,12.50,Cr
`)

	lines, err := extractCSV("with-preamble.csv", data, nil, 25)
	require.NoError(t, err)
	require.Len(t, lines, 2)
	assert.Equal(t, int64(-45000), lines[0].AmountMinor)
	assert.Equal(t, int64(1250), lines[1].AmountMinor)
}

func TestExtractCSVSkipsUnparsableRows(t *testing.T) {
	data := []byte(`Date,Description,Amount
2025-03-01,GOOD ROW,-450.00
not-a-date,BAD ROW,-1.00
2025-03-02,ANOTHER GOOD ROW,-2.00
,,
`)

	lines, err := extractCSV("partial.csv", data, nil, 25)
	require.NoError(t, err)
	assert.Len(t, lines, 2)
}

func TestExtractCSVNoHeader(t *testing.T) {
	data := []byte("this is not,a statement\njust,text\n")

	_, err := extractCSV("junk.csv", data, nil, 25)
	var corrupt *pipelineerror.CorruptFileError
	assert.ErrorAs(t, err, &corrupt)
}

func TestExtractCSVReportsProgress(t *testing.T) {
	rows := "Date,Description,Amount\n"
	for i := 0; i < 10; i++ {
		rows += "2025-03-01,ROW,-1.00\n"
	}

	var calls []int
	_, err := extractCSV("many.csv", []byte(rows), func(extracted int) {
		calls = append(calls, extracted)
	}, 4)
	require.NoError(t, err)
	assert.Equal(t, []int{4, 8}, calls)
}
