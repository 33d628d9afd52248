// Package directory holds the versioned merchant-pattern lookup used by
// enrichment. Entries are append-only; matching works over an immutable
// in-memory snapshot so reads never lock.
package directory

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync/atomic"

	"spendsense/pipeline/internal/logging"
	"spendsense/pipeline/internal/models"
	"spendsense/pipeline/internal/store"
)

// Match confidences by pattern specificity. An exact hit is stronger than a
// prefix hit, which is stronger than a regex hit.
const (
	ConfidenceExact  = 1.0
	ConfidencePrefix = 0.8
	ConfidenceRegex  = 0.6
)

// PromotedPriority is the tier promoted correction rules enter at. Seed rules
// default far above it, so a promotion can never shadow an existing rule.
const PromotedPriority = 1

// MatchResult is the winning rule for a merchant text.
type MatchResult struct {
	Rule       models.MerchantDirectoryEntry
	Confidence float64
}

type compiledRule struct {
	entry models.MerchantDirectoryEntry
	re    *regexp.Regexp // nil unless kind is regex
}

type snapshot struct {
	rules   []compiledRule
	buckets map[string]models.Bucket
}

// Directory is the live handle over the rule table. Reload swaps the
// snapshot atomically; Append serializes through the store.
type Directory struct {
	st     *store.Store
	logger logging.Logger
	snap   atomic.Pointer[snapshot]
}

// Open loads the directory from the store.
func Open(ctx context.Context, st *store.Store, logger logging.Logger) (*Directory, error) {
	if logger == nil {
		logger = logging.GetLogger()
	}
	d := &Directory{st: st, logger: logger}
	if err := d.Reload(ctx); err != nil {
		return nil, err
	}
	return d, nil
}

// Reload rebuilds the in-memory snapshot from the store.
func (d *Directory) Reload(ctx context.Context) error {
	entries, err := d.st.ListRules(ctx)
	if err != nil {
		return fmt.Errorf("load directory rules: %w", err)
	}
	buckets, err := d.st.Buckets(ctx)
	if err != nil {
		return fmt.Errorf("load bucket table: %w", err)
	}

	snap := &snapshot{buckets: buckets}
	for _, e := range entries {
		cr := compiledRule{entry: e}
		if e.Kind == models.PatternRegex {
			re, err := regexp.Compile(e.Pattern)
			if err != nil {
				d.logger.WithError(err).Warn("Skipping unparsable directory rule",
					logging.Field{Key: logging.FieldRule, Value: e.ID})
				continue
			}
			cr.re = re
		}
		snap.rules = append(snap.rules, cr)
	}

	d.snap.Store(snap)
	d.logger.Debug("Directory snapshot loaded",
		logging.Field{Key: logging.FieldCount, Value: len(snap.rules)})
	return nil
}

// Match finds every rule matching the normalized merchant text and selects
// the winner: highest priority first, then the more specific pattern kind,
// then the oldest rule. The result is fully deterministic for a fixed rule
// set.
func (d *Directory) Match(merchant string) (MatchResult, bool) {
	snap := d.snap.Load()
	if snap == nil {
		return MatchResult{}, false
	}

	type candidate struct {
		rule       models.MerchantDirectoryEntry
		confidence float64
	}
	var candidates []candidate

	for _, cr := range snap.rules {
		switch cr.entry.Kind {
		case models.PatternExact:
			if merchant == cr.entry.Pattern {
				candidates = append(candidates, candidate{cr.entry, ConfidenceExact})
			}
		case models.PatternPrefix:
			if strings.HasPrefix(merchant, cr.entry.Pattern) {
				candidates = append(candidates, candidate{cr.entry, ConfidencePrefix})
			}
		case models.PatternRegex:
			if cr.re != nil && cr.re.MatchString(merchant) {
				candidates = append(candidates, candidate{cr.entry, ConfidenceRegex})
			}
		}
	}

	if len(candidates) == 0 {
		return MatchResult{}, false
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.rule.Priority != b.rule.Priority {
			return a.rule.Priority > b.rule.Priority
		}
		if a.confidence != b.confidence {
			return a.confidence > b.confidence
		}
		return a.rule.ID < b.rule.ID
	})

	best := candidates[0]
	return MatchResult{Rule: best.rule, Confidence: best.confidence}, true
}

// BucketFor maps a category code to its needs/wants/assets bucket.
func (d *Directory) BucketFor(categoryCode string) models.Bucket {
	snap := d.snap.Load()
	if snap == nil {
		return models.BucketNone
	}
	return snap.buckets[categoryCode]
}

// Append adds a rule and refreshes the snapshot.
func (d *Directory) Append(ctx context.Context, rule models.MerchantDirectoryEntry) (int64, error) {
	id, err := d.st.AppendRule(ctx, rule)
	if err != nil {
		return 0, err
	}
	if err := d.Reload(ctx); err != nil {
		return 0, err
	}
	d.logger.Info("Directory rule appended",
		logging.Field{Key: logging.FieldRule, Value: id},
		logging.Field{Key: logging.FieldMerchant, Value: rule.Pattern},
		logging.Field{Key: logging.FieldCategory, Value: rule.CategoryCode})
	return id, nil
}
