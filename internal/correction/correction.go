// Package correction applies user category corrections. A correction never
// rewrites derived rows; it lands as an override keyed by the immutable fact
// id, and the effective view gives it precedence on the next read. Repeated
// corrections of the same merchant feed back into the directory as a
// promoted rule.
package correction

import (
	"context"
	"fmt"
	"time"

	"spendsense/pipeline/internal/directory"
	"spendsense/pipeline/internal/logging"
	"spendsense/pipeline/internal/models"
	"spendsense/pipeline/internal/pipelineerror"
	"spendsense/pipeline/internal/store"
)

// PromotionMinCorrections is how many distinct transactions of one merchant
// a user must correct to the same category before a rule is promoted.
const PromotionMinCorrections = 2

// Service records corrections and promotes recurring ones into rules.
type Service struct {
	store  *store.Store
	dir    *directory.Directory
	logger logging.Logger
}

// New creates a correction Service.
func New(st *store.Store, dir *directory.Directory, logger logging.Logger) *Service {
	if logger == nil {
		logger = logging.GetLogger()
	}
	return &Service{store: st, dir: dir, logger: logger}
}

// Apply records a category correction for one transaction. The caller must
// own the fact. The returned override is already effective for reads.
func (s *Service) Apply(ctx context.Context, userID string, factID int64, categoryCode, subcategoryCode string) (*models.CorrectionOverride, error) {
	if categoryCode == "" {
		return nil, fmt.Errorf("category code is required")
	}

	owner, err := s.store.FactOwner(ctx, factID)
	if err != nil {
		return nil, err
	}
	if owner != userID {
		return nil, &pipelineerror.ForbiddenError{UserID: userID, FactID: factID}
	}

	override := models.CorrectionOverride{
		FactID:          factID,
		UserID:          userID,
		CategoryCode:    categoryCode,
		SubcategoryCode: subcategoryCode,
		CorrectedAt:     time.Now(),
	}
	id, err := s.store.InsertOverride(ctx, override)
	if err != nil {
		return nil, fmt.Errorf("insert override: %w", err)
	}
	override.ID = id

	s.logger.Info("Correction applied",
		logging.Field{Key: logging.FieldUser, Value: userID},
		logging.Field{Key: logging.FieldFact, Value: factID},
		logging.Field{Key: logging.FieldCategory, Value: categoryCode})

	if err := s.maybePromote(ctx, userID, factID, categoryCode, subcategoryCode); err != nil {
		// Promotion is best-effort; the correction itself already stands.
		s.logger.WithError(err).Warn("Rule promotion failed",
			logging.Field{Key: logging.FieldFact, Value: factID})
	}

	return &override, nil
}

// maybePromote appends an exact directory rule once the same user has
// corrected enough distinct transactions of one merchant to the same
// category. The rule enters at the lowest priority tier so it can never
// shadow an existing rule, and it is skipped entirely when any rule for the
// pattern already exists.
func (s *Service) maybePromote(ctx context.Context, userID string, factID int64, categoryCode, subcategoryCode string) error {
	merchant, err := s.store.MerchantForFact(ctx, factID)
	if err != nil {
		return err
	}
	if merchant == "" {
		return nil
	}

	count, err := s.store.CountMatchingCorrections(ctx, userID, merchant, categoryCode)
	if err != nil {
		return err
	}
	if count < PromotionMinCorrections {
		return nil
	}

	exists, err := s.store.HasRuleForPattern(ctx, merchant)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	ruleID, err := s.dir.Append(ctx, models.MerchantDirectoryEntry{
		Pattern:         merchant,
		Kind:            models.PatternExact,
		CategoryCode:    categoryCode,
		SubcategoryCode: subcategoryCode,
		Priority:        directory.PromotedPriority,
		Source:          models.RuleSourcePromoted,
		CreatedAt:       time.Now(),
	})
	if err != nil {
		return err
	}

	s.logger.Info("Correction promoted to directory rule",
		logging.Field{Key: logging.FieldUser, Value: userID},
		logging.Field{Key: logging.FieldMerchant, Value: merchant},
		logging.Field{Key: logging.FieldCategory, Value: categoryCode},
		logging.Field{Key: logging.FieldRule, Value: ruleID})
	return nil
}
