package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"spendsense/pipeline/internal/models"
)

func TestNormalizeMerchant(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"upi description", "UPI/zomato/4521871234/pay", "zomato"},
		{"neft with reference", "NEFT-HDFC0001234-ACME CORP-SALARY", "hdfc0001234 acme corp salary"},
		{"pos purchase", "POS 512345 BIG BAZAAR MUMBAI", "big bazaar mumbai"},
		{"embedded date", "AMAZON 12.03.2024 ORDER", "amazon order"},
		{"same merchant different formats", "upi-zomato-998877665/payment", "zomato"},
		{"only noise", "UPI/1234567890/REF", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeMerchant(tt.raw))
		})
	}
}

func TestNormalizeMerchantConverges(t *testing.T) {
	// The same merchant through two statement formats must land on one key.
	a := NormalizeMerchant("UPI/zomato/4521871234/pay")
	b := NormalizeMerchant("POS zomato 99887766")
	assert.Equal(t, a, b)
}

func TestInferChannel(t *testing.T) {
	tests := []struct {
		raw  string
		want models.Channel
	}{
		{"UPI/zomato/4521/pay", models.ChannelUPI},
		{"NEFT-HDFC-ACME", models.ChannelNEFT},
		{"IMPS/P2A/12345", models.ChannelIMPS},
		{"RTGS/BIGCO", models.ChannelRTGS},
		{"ATM WDL 512345", models.ChannelATM},
		{"POS 512345 STORE", models.ChannelCard},
		{"CHQ DEP 000123", models.ChannelCheque},
		{"SOME RANDOM TEXT", models.ChannelUnknown},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, InferChannel(tt.raw), "raw %q", tt.raw)
	}
}

func TestInferDirection(t *testing.T) {
	tests := []struct {
		name        string
		amount      int64
		stated      string
		want        models.Direction
		needsReview bool
	}{
		{"negative is debit", -45000, "", models.DirectionDebit, false},
		{"positive is credit", 45000, "", models.DirectionCredit, false},
		{"agreeing marker", -45000, "debit", models.DirectionDebit, false},
		{"conflicting marker flags review", -45000, "credit", models.DirectionDebit, true},
		{"zero uses stated", 0, "credit", models.DirectionCredit, true},
		{"zero defaults to debit", 0, "", models.DirectionDebit, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, review := inferDirection(tt.amount, tt.stated)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.needsReview, review)
		})
	}
}

func TestParseFactDeterministic(t *testing.T) {
	fact := models.RawTransactionFact{
		ID:             7,
		RawDescription: "UPI/zomato/4521871234/pay",
		AmountMinor:    -45000,
		RawDirection:   "debit",
	}
	first := ParseFact(fact)
	second := ParseFact(fact)
	assert.Equal(t, first, second)
	assert.Equal(t, "zomato", first.Merchant)
	assert.Equal(t, models.ChannelUPI, first.Channel)
	assert.Equal(t, models.DirectionDebit, first.Direction)
	assert.False(t, first.NeedsReview)
}
