package main

import (
	"errors"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/traviscua/pricewatch/internal/api/handlers"
	"github.com/traviscua/pricewatch/internal/database"
	"github.com/traviscua/pricewatch/internal/services"
	"github.com/traviscua/pricewatch/internal/sources"
	"github.com/traviscua/pricewatch/internal/taxonomy"
)

var crawlCmd = &cobra.Command{
	Use:   "crawl",
	Short: "Run the daily price ingestion once and exit",
	Long: `Fetches listings from all enabled storefronts, classifies them against
the taxonomy and upserts today's prices and daily index. Invoked once per day
by an external scheduler; the exit status reflects partial failures.`,
	RunE: runCrawl,
}

func runCrawl(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	// A malformed taxonomy aborts the run before any fetch.
	tax, err := taxonomy.Load(cfg.Taxonomy.Path)
	if err != nil {
		return err
	}

	db, err := database.NewPostgresConnection(cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	log := logrus.StandardLogger()

	var srcs []sources.Source
	if cfg.Sources.Coolpc.Enabled {
		srcs = append(srcs, sources.NewCoolpcSource(cfg.Sources.Coolpc, log))
	}
	if cfg.Sources.PChome.Enabled {
		srcs = append(srcs, sources.NewPChomeSource(cfg.Sources.PChome, tax, log))
	}
	if len(srcs) == 0 {
		return errors.New("no sources enabled")
	}

	ingestion := services.NewIngestionService(
		database.NewRepository(db.Pool),
		services.NewClassifier(tax),
		srcs,
		log,
	)

	now := time.Now()
	date := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	summary, err := ingestion.Run(cmd.Context(), date)
	if err != nil {
		return err
	}

	// The index changed; drop the cached API response so readers see the new
	// day immediately. The crawl itself does not depend on redis.
	if redis, err := database.NewRedisConnection(cfg.Redis); err != nil {
		log.WithError(err).Warn("Redis unavailable, skipping cache invalidation")
	} else {
		if err := handlers.InvalidateLatestIndex(cmd.Context(), redis); err != nil {
			log.WithError(err).Warn("Failed to invalidate cached index")
		}
		redis.Close()
	}

	for _, src := range summary.Sources {
		entry := log.WithFields(logrus.Fields{
			"source":     src.Source,
			"fetched":    src.Fetched,
			"classified": src.Classified,
			"saved":      src.Saved,
		})
		if src.Error != "" {
			entry.WithField("error", src.Error).Warn("Source finished with errors")
			continue
		}
		entry.Info("Source finished")
	}

	if summary.Partial {
		return errors.New("ingestion completed with partial failures")
	}
	return nil
}
