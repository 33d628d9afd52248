// Package parser normalizes raw statement facts into the canonical
// transaction schema: normalized merchant text, channel, signed amount and
// direction. Parsing is pure: the same fact always yields the same output,
// which is what lets enrichment cache and replay safely.
package parser

import (
	"regexp"
	"strings"

	"spendsense/pipeline/internal/models"
)

// boilerplateTokens are payment-processor prefixes and noise words that carry
// no merchant identity. Matched as whole tokens after case-folding.
var boilerplateTokens = map[string]struct{}{
	"upi":      {},
	"neft":     {},
	"imps":     {},
	"rtgs":     {},
	"ach":      {},
	"nach":     {},
	"pos":      {},
	"atm":      {},
	"ecs":      {},
	"vps":      {},
	"txn":      {},
	"trf":      {},
	"tfr":      {},
	"ref":      {},
	"payment":  {},
	"pymt":     {},
	"pmt":      {},
	"pay":      {},
	"collect":  {},
	"purchase": {},
	"debit":    {},
	"credit":   {},
	"card":     {},
	"chq":      {},
	"cheque":   {},
	"wdl":      {},
	"dep":      {},
	"intl":     {},
	"dom":      {},
}

var (
	// separators that banks use to glue channel, merchant and reference
	// into one field: UPI/zomato/4521.../pay
	fieldSeparators = regexp.MustCompile(`[/\\|_:;,*#@-]+`)
	// long digit runs are reference numbers, never merchant identity
	refNumbers = regexp.MustCompile(`\b\d{5,}\b`)
	// embedded dates in descriptions (12.03.2024, 2024-03-12, 12/03/24)
	embeddedDates = regexp.MustCompile(`\b\d{1,4}[./-]\d{1,2}[./-]\d{1,4}\b`)
	multiSpace    = regexp.MustCompile(`\s+`)
)

// NormalizeMerchant reduces raw description text to a stable merchant key so
// that the same merchant converges to one string across statement formats.
func NormalizeMerchant(raw string) string {
	text := strings.ToLower(raw)
	text = fieldSeparators.ReplaceAllString(text, " ")
	text = embeddedDates.ReplaceAllString(text, " ")
	text = refNumbers.ReplaceAllString(text, " ")

	var kept []string
	for _, token := range strings.Fields(text) {
		if _, noise := boilerplateTokens[token]; noise {
			continue
		}
		kept = append(kept, token)
	}

	normalized := strings.Join(kept, " ")
	normalized = multiSpace.ReplaceAllString(normalized, " ")
	return strings.TrimSpace(normalized)
}

// channelMarkers map description tokens to payment channels. First match in
// this fixed order wins, so inference stays deterministic.
var channelMarkers = []struct {
	token   string
	channel models.Channel
}{
	{"upi", models.ChannelUPI},
	{"imps", models.ChannelIMPS},
	{"neft", models.ChannelNEFT},
	{"rtgs", models.ChannelRTGS},
	{"atm", models.ChannelATM},
	{"pos", models.ChannelCard},
	{"card", models.ChannelCard},
	{"chq", models.ChannelCheque},
	{"cheque", models.ChannelCheque},
	{"cash", models.ChannelCash},
	{"transfer", models.ChannelTransfer},
	{"trf", models.ChannelTransfer},
}

// InferChannel detects the payment channel from the raw description.
func InferChannel(raw string) models.Channel {
	text := strings.ToLower(raw)
	tokens := make(map[string]struct{})
	for _, t := range strings.Fields(fieldSeparators.ReplaceAllString(text, " ")) {
		tokens[t] = struct{}{}
	}
	for _, m := range channelMarkers {
		if _, ok := tokens[m.token]; ok {
			return m.channel
		}
	}
	return models.ChannelUnknown
}

// inferDirection decides debit/credit from the signed amount and the
// direction stated by the source, if any. A stated direction that
// contradicts the sign is a best-effort guess from the sign, flagged for
// review rather than failing the batch.
func inferDirection(amountMinor int64, stated string) (models.Direction, bool) {
	var fromSign models.Direction
	switch {
	case amountMinor > 0:
		fromSign = models.DirectionCredit
	case amountMinor < 0:
		fromSign = models.DirectionDebit
	default:
		// zero amount carries no signal; lean on the stated direction
		if stated == string(models.DirectionCredit) {
			return models.DirectionCredit, true
		}
		return models.DirectionDebit, true
	}

	if stated == "" || stated == string(fromSign) {
		return fromSign, false
	}
	return fromSign, true
}
