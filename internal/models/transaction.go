// Package models provides the data structures used throughout the pipeline.
package models

import "time"

// Direction indicates whether money left or entered the account.
type Direction string

const (
	// DirectionDebit is an outgoing amount.
	DirectionDebit Direction = "debit"
	// DirectionCredit is an incoming amount.
	DirectionCredit Direction = "credit"
)

// Channel is the payment channel inferred from the raw description.
type Channel string

const (
	ChannelCard     Channel = "card"
	ChannelUPI      Channel = "upi"
	ChannelNEFT     Channel = "neft"
	ChannelIMPS     Channel = "imps"
	ChannelRTGS     Channel = "rtgs"
	ChannelCheque   Channel = "cheque"
	ChannelATM      Channel = "atm"
	ChannelCash     Channel = "cash"
	ChannelTransfer Channel = "transfer"
	ChannelUnknown  Channel = "unknown"
)

// FileType is a supported statement upload format.
type FileType string

const (
	FileTypePDF  FileType = "pdf"
	FileTypeCSV  FileType = "csv"
	FileTypeXLSX FileType = "xlsx"
)

// RawTransactionFact is one extracted statement line. Facts are immutable:
// a corrected statement produces new facts, never edits.
type RawTransactionFact struct {
	ID             int64
	UserID         string
	StatementID    string
	BatchID        string
	TxnDate        time.Time
	RawDescription string
	AmountMinor    int64  // signed, minor currency units; debits negative
	RawDirection   string // direction as stated by the source, if any
	ContentHash    string
	RowOrdinal     int
	IngestedAt     time.Time
}

// ParsedTransaction is the canonical form of exactly one fact.
// At most one parsed row exists per fact.
type ParsedTransaction struct {
	ID          int64
	FactID      int64
	Merchant    string // normalized merchant text
	Channel     Channel
	AmountMinor int64
	Direction   Direction
	TxnDate     time.Time
	NeedsReview bool // conflicting direction signals, best-effort guess taken
	ParsedAt    time.Time
}

// EnrichedTransaction is the categorization of exactly one parsed row.
// Re-enrichment appends a superseding row; history stays readable.
type EnrichedTransaction struct {
	ID              int64
	ParsedID        int64
	CategoryCode    string
	SubcategoryCode string
	Confidence      float64
	MatchSource     string // directory rule id, or one of the MatchSource* constants
	Bucket          Bucket
	EnrichedAt      time.Time
}

// Match sources for enrichment rows that did not come from a directory rule.
const (
	MatchSourceUnmatched       = "unmatched"
	MatchSourceChannelFallback = "channel-fallback"
)

// CorrectionOverride is a user-entered category for a transaction. It is
// keyed by the stable fact id so it survives enrichment reruns, and it
// always wins over enrichment in resolution.
type CorrectionOverride struct {
	ID              int64
	FactID          int64
	UserID          string
	CategoryCode    string
	SubcategoryCode string
	CorrectedAt     time.Time
}

// EffectiveTransaction is the resolved, currently-correct view of one
// transaction: fact identity, parsed normalization, and category fields from
// the latest override when present, otherwise the latest enrichment.
// It is a read-time merge, never stored.
type EffectiveTransaction struct {
	FactID          int64
	UserID          string
	StatementID     string
	TxnDate         time.Time
	RawDescription  string
	Merchant        string
	Channel         Channel
	AmountMinor     int64
	Direction       Direction
	CategoryCode    string
	SubcategoryCode string
	Bucket          Bucket
	Confidence      float64
	CategorySource  string // "override", "enrichment" or "none"
	NeedsReview     bool
}

// Category sources reported by the effective view.
const (
	CategorySourceOverride   = "override"
	CategorySourceEnrichment = "enrichment"
	CategorySourceNone       = "none"
)

// PatternKind is how a directory pattern is matched against merchant text.
type PatternKind string

const (
	PatternExact  PatternKind = "exact"
	PatternPrefix PatternKind = "prefix"
	PatternRegex  PatternKind = "regex"
)

// MerchantDirectoryEntry maps a merchant pattern to a category. Entries are
// append-only; superseding is done via priority so history stays auditable.
type MerchantDirectoryEntry struct {
	ID              int64
	Pattern         string
	Kind            PatternKind
	CategoryCode    string
	SubcategoryCode string
	Priority        int
	Source          string // "seed" or "promoted"
	CreatedAt       time.Time
}

// Directory entry sources.
const (
	RuleSourceSeed     = "seed"
	RuleSourcePromoted = "promoted"
)

// Statement is the registry row for one uploaded file.
type Statement struct {
	ID         string
	UserID     string
	FileName   string
	FileType   FileType
	UploadedAt time.Time
}
