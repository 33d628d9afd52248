package directory

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"spendsense/pipeline/internal/logging"
	"spendsense/pipeline/internal/models"
	"spendsense/pipeline/internal/store"
)

// seedRule is one entry of the merchants YAML file.
type seedRule struct {
	Pattern     string `yaml:"pattern"`
	Kind        string `yaml:"kind"`
	Category    string `yaml:"category"`
	Subcategory string `yaml:"subcategory"`
	Priority    int    `yaml:"priority"`
}

type rulesFile struct {
	Rules []seedRule `yaml:"rules"`
}

// DefaultSeedPriority is used when a seed rule omits its priority.
const DefaultSeedPriority = 100

// Seed loads directory rules and the category bucket table from YAML files
// into the store. Re-seeding the same rules file appends nothing new; rules
// are matched by pattern text.
func Seed(ctx context.Context, st *store.Store, rulesPath, bucketsPath string, logger logging.Logger) (int, error) {
	if logger == nil {
		logger = logging.GetLogger()
	}

	data, err := os.ReadFile(rulesPath)
	if err != nil {
		return 0, fmt.Errorf("read rules file: %w", err)
	}

	var rf rulesFile
	if err := yaml.Unmarshal(data, &rf); err != nil {
		return 0, fmt.Errorf("parse rules file: %w", err)
	}

	added := 0
	for _, r := range rf.Rules {
		kind := models.PatternKind(r.Kind)
		switch kind {
		case models.PatternExact, models.PatternPrefix, models.PatternRegex:
		case "":
			kind = models.PatternExact
		default:
			return added, fmt.Errorf("rule %q: unknown pattern kind %q", r.Pattern, r.Kind)
		}

		exists, err := st.HasRuleForPattern(ctx, r.Pattern)
		if err != nil {
			return added, err
		}
		if exists {
			continue
		}

		priority := r.Priority
		if priority == 0 {
			priority = DefaultSeedPriority
		}

		if _, err := st.AppendRule(ctx, models.MerchantDirectoryEntry{
			Pattern:         r.Pattern,
			Kind:            kind,
			CategoryCode:    r.Category,
			SubcategoryCode: r.Subcategory,
			Priority:        priority,
			Source:          models.RuleSourceSeed,
		}); err != nil {
			return added, err
		}
		added++
	}

	if bucketsPath != "" {
		if err := seedBuckets(ctx, st, bucketsPath); err != nil {
			return added, err
		}
	}

	logger.Info("Directory seeded",
		logging.Field{Key: logging.FieldCount, Value: added},
		logging.Field{Key: logging.FieldFile, Value: rulesPath})
	return added, nil
}

func seedBuckets(ctx context.Context, st *store.Store, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read buckets file: %w", err)
	}

	var raw map[string]string
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("parse buckets file: %w", err)
	}

	buckets := make(map[string]models.Bucket, len(raw))
	for category, bucket := range raw {
		switch models.Bucket(bucket) {
		case models.BucketNeeds, models.BucketWants, models.BucketAssets, models.BucketIncome:
			buckets[category] = models.Bucket(bucket)
		default:
			return fmt.Errorf("category %q: unknown bucket %q", category, bucket)
		}
	}

	return st.ReplaceBuckets(ctx, buckets)
}
