// Package common contains the pipeline wiring shared by command handlers.
package common

import (
	"context"

	"spendsense/pipeline/internal/config"
	"spendsense/pipeline/internal/correction"
	"spendsense/pipeline/internal/directory"
	"spendsense/pipeline/internal/enrich"
	"spendsense/pipeline/internal/ingest"
	"spendsense/pipeline/internal/insights"
	"spendsense/pipeline/internal/logging"
	"spendsense/pipeline/internal/parser"
	"spendsense/pipeline/internal/resolve"
	"spendsense/pipeline/internal/store"
)

// Pipeline bundles the wired stages behind one handle.
type Pipeline struct {
	Store       *store.Store
	Directory   *directory.Directory
	Ingestor    *ingest.Ingestor
	Parser      *parser.Parser
	Enricher    *enrich.Enricher
	Resolver    *resolve.Resolver
	Insights    *insights.Engine
	Corrections *correction.Service
}

// OpenPipeline opens the store and wires every stage from configuration.
func OpenPipeline(ctx context.Context, cfg *config.Config, log logging.Logger) (*Pipeline, error) {
	st, err := store.Open(cfg.Data.DatabasePath, log)
	if err != nil {
		return nil, err
	}

	dir, err := directory.Open(ctx, st, log)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	return &Pipeline{
		Store:     st,
		Directory: dir,
		Ingestor:  ingest.New(st, log, cfg.Ingest.ProgressEvery),
		Parser:    parser.New(st, log, cfg.Ingest.Workers),
		Enricher: enrich.New(st, dir, log,
			cfg.Parser.SelfTransferTokens, cfg.Ingest.Workers),
		Resolver:    resolve.New(st, log),
		Insights:    insights.New(st, log, insightsParams(cfg)),
		Corrections: correction.New(st, dir, log),
	}, nil
}

// Close releases the underlying store.
func (p *Pipeline) Close() error {
	return p.Store.Close()
}

func insightsParams(cfg *config.Config) insights.Params {
	labels := make([]insights.WantsLabel, 0, len(cfg.Insights.WantsLabels))
	for _, wl := range cfg.Insights.WantsLabels {
		labels = append(labels, insights.WantsLabel{UpperBound: wl.UpperBound, Label: wl.Label})
	}
	return insights.Params{
		WantsThreshold:          cfg.Insights.WantsThreshold,
		WantsLabels:             labels,
		RecurringMinOccurrences: cfg.Insights.RecurringMinOccurrences,
		RecurringCVCutoff:       cfg.Insights.RecurringCVCutoff,
		UncategorizedAlertPct:   cfg.Insights.UncategorizedAlertPct,
		TopCategories:           cfg.Insights.TopCategories,
	}
}
