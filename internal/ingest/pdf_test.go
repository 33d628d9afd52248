package ingest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const samplePDFText = `ACME BANK            Statement of Account
Period: 01-03-2025 to 31-03-2025

Date        Description                          Amount      Balance
01-03-2025  UPI/zomato/4521871234/pay            450.00 Dr   12,550.00
02-03-2025  NEFT SALARY ACME CORP             50,000.00 Cr   62,550.00
05-03-2025  POS BIG BAZAAR MUMBAI              1,200.50 Dr   61,349.50

End of statement
`

func TestExtractPDFText(t *testing.T) {
	lines := extractPDFText(samplePDFText, nil, 25)
	require.Len(t, lines, 3)

	assert.Equal(t, "UPI/zomato/4521871234/pay", lines[0].Description)
	assert.Equal(t, int64(-45000), lines[0].AmountMinor)
	assert.Equal(t, "debit", lines[0].Direction)

	assert.Equal(t, int64(5000000), lines[1].AmountMinor)
	assert.Equal(t, "credit", lines[1].Direction)

	assert.Equal(t, int64(-120050), lines[2].AmountMinor)
}

func TestExtractPDFTextIgnoresNonTransactionLines(t *testing.T) {
	lines := extractPDFText("No transactions here.\nJust prose.\n", nil, 25)
	assert.Empty(t, lines)
}

func TestMockPDFExtractor(t *testing.T) {
	mock := NewMockPDFExtractor("some text", nil)
	text, err := mock.ExtractText("whatever.pdf", "")
	require.NoError(t, err)
	assert.Equal(t, "some text", text)

	mock = NewMockPDFExtractor("", errPDFLocked)
	_, err = mock.ExtractText("whatever.pdf", "")
	assert.ErrorIs(t, err, errPDFLocked)
}

func TestIsPasswordFailure(t *testing.T) {
	assert.True(t, isPasswordFailure("Error: Incorrect password"))
	assert.True(t, isPasswordFailure("Command Line Error: file is encrypted"))
	assert.False(t, isPasswordFailure("Syntax Error: couldn't read xref table"))
}
