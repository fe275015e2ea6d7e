package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/traviscua/pricewatch/internal/models"
	"github.com/traviscua/pricewatch/internal/sources"
	"github.com/traviscua/pricewatch/internal/utils"
)

// IngestionStore is the slice of the persistence layer the ingestion run
// needs. *database.Repository satisfies it.
type IngestionStore interface {
	SaveBatch(ctx context.Context, date time.Time, listings []models.ClassifiedListing) (int, error)
	RecomputeDailyIndex(ctx context.Context, date time.Time) ([]models.DailyAggregate, error)
}

// IngestionService runs the daily pipeline: per source fetch → classify →
// dedupe → save, then one daily index recomputation over everything saved.
// Sources are processed sequentially; results only meet in the store.
type IngestionService struct {
	store      IngestionStore
	classifier *Classifier
	sources    []sources.Source
	log        *logrus.Logger
}

// SourceResult reports what one source contributed to a run.
type SourceResult struct {
	Source     string `json:"source"`
	Fetched    int    `json:"fetched"`
	Classified int    `json:"classified"`
	Saved      int    `json:"saved"`
	Error      string `json:"error,omitempty"`
}

// RunSummary is the outcome of one ingestion run, consumed by the external
// scheduler/notifier.
type RunSummary struct {
	RunID         string         `json:"run_id"`
	Date          time.Time      `json:"date"`
	Sources       []SourceResult `json:"sources"`
	ProductsSaved int            `json:"products_saved"`
	IndexRows     int            `json:"index_rows"`
	Elapsed       time.Duration  `json:"elapsed"`
	Partial       bool           `json:"partial"`
}

// NewIngestionService creates the daily ingestion pipeline.
func NewIngestionService(store IngestionStore, classifier *Classifier, srcs []sources.Source, log *logrus.Logger) *IngestionService {
	return &IngestionService{
		store:      store,
		classifier: classifier,
		sources:    srcs,
		log:        log,
	}
}

// Run executes one ingestion pass for the given date. A fetch or save
// failure on one source is logged and isolated: that source contributes
// nothing and the run continues, reported as partial. The index
// recomputation always happens after all upserts and its failure fails the
// run, since it would leave prices and index inconsistent.
//
// The whole pass is idempotent: rerunning with identical input for the same
// date produces the same final state.
func (s *IngestionService) Run(ctx context.Context, date time.Time) (*RunSummary, error) {
	started := time.Now()
	summary := &RunSummary{
		RunID: uuid.NewString(),
		Date:  date,
	}
	runLog := s.log.WithFields(logrus.Fields{"run_id": summary.RunID, "date": date.Format("2006-01-02")})
	runLog.Infof("Starting ingestion run with %d sources", len(s.sources))

	for _, src := range s.sources {
		result := s.runSource(ctx, src, date)
		if result.Error != "" {
			summary.Partial = true
		}
		summary.ProductsSaved += result.Saved
		summary.Sources = append(summary.Sources, result)
	}

	aggregates, err := s.store.RecomputeDailyIndex(ctx, date)
	summary.Elapsed = time.Since(started)
	if err != nil {
		runLog.WithError(err).Error("Daily index recomputation failed")
		return summary, err
	}
	summary.IndexRows = len(aggregates)

	runLog.WithFields(logrus.Fields{
		"products_saved": summary.ProductsSaved,
		"index_rows":     summary.IndexRows,
		"elapsed":        summary.Elapsed.Round(time.Millisecond).String(),
		"partial":        summary.Partial,
	}).Info("Ingestion run completed")
	return summary, nil
}

func (s *IngestionService) runSource(ctx context.Context, src sources.Source, date time.Time) SourceResult {
	result := SourceResult{Source: src.Name()}
	srcLog := s.log.WithField("source", src.Name())

	raw, err := src.Fetch(ctx)
	if err != nil {
		fetchErr := utils.NewFetchError(src.Name(), err)
		srcLog.WithError(fetchErr).Warn("Source fetch failed, contributing zero listings")
		result.Error = fetchErr.Error()
		return result
	}
	result.Fetched = len(raw)

	classified := s.classifier.ClassifyBatch(raw, src.Name())
	result.Classified = len(classified)
	deduped := DedupeListings(classified)
	srcLog.WithFields(logrus.Fields{
		"fetched":    result.Fetched,
		"classified": result.Classified,
		"deduped":    len(deduped),
	}).Info("Classified source batch")

	saved, err := s.store.SaveBatch(ctx, date, deduped)
	if err != nil {
		srcLog.WithError(err).Error("Source batch save failed")
		result.Error = err.Error()
		return result
	}
	result.Saved = saved
	return result
}
