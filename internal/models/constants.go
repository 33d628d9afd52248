package models

// Bucket is the needs/wants/assets classification of a category.
type Bucket string

const (
	BucketNeeds  Bucket = "needs"
	BucketWants  Bucket = "wants"
	BucketAssets Bucket = "assets"
	BucketIncome Bucket = "income"
	BucketNone   Bucket = ""
)

// Category codes the pipeline itself assigns. Everything else comes from the
// merchant directory.
const (
	CategoryUncategorized = "uncategorized"
	CategoryTransfer      = "transfer"
	CategoryIncome        = "income"
)
