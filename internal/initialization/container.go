// Package initialization builds the dependency graph: storage backends,
// providers, managers and controllers, in that order. Backends are chosen
// here from configuration; nothing below this package knows which vendor it
// is running on.
package initialization

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/helpdeck/helpdeck/internal/analytics"
	"github.com/helpdeck/helpdeck/internal/auth"
	"github.com/helpdeck/helpdeck/internal/blob"
	"github.com/helpdeck/helpdeck/internal/config"
	"github.com/helpdeck/helpdeck/internal/controllers"
	"github.com/helpdeck/helpdeck/internal/domain"
	"github.com/helpdeck/helpdeck/internal/ingestion"
	"github.com/helpdeck/helpdeck/internal/ingestion/extract"
	"github.com/helpdeck/helpdeck/internal/llm"
	"github.com/helpdeck/helpdeck/internal/managers"
	"github.com/helpdeck/helpdeck/internal/storage/mongodb"
	redisstore "github.com/helpdeck/helpdeck/internal/storage/redis"
	"github.com/helpdeck/helpdeck/internal/vector"
)

const activityKeyPrefix = "helpdeck"

// AppDependencies is everything the serve command needs: the managers behind
// the API, the wired controllers, and the background workers.
type AppDependencies struct {
	Config      *config.Config
	TokenIssuer *auth.TokenIssuer

	SiteManager      domain.SiteManager
	IngestionManager domain.IngestionManager
	ChatManager      domain.ChatManager
	AnalyticsManager domain.AnalyticsManager
	GapAnalyzer      domain.GapAnalyzer

	WidgetController    *controllers.WidgetController
	IngestionController *controllers.IngestionController
	ChatController      *controllers.ChatController
	AnalyticsController *controllers.AnalyticsController

	GapScheduler *managers.GapScheduler

	// BlobWatcher is nil unless BLOB_WATCH is enabled.
	BlobWatcher *blob.Watcher

	closers []func(context.Context) error
}

// Close releases backend connections in reverse build order.
func (d *AppDependencies) Close(ctx context.Context) error {
	var firstErr error
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i](ctx); err != nil {
			log.Warn().Err(err).Msg("Failed to close dependency")
			if firstErr == nil {
				firstErr = err
			}
		}
	}

	return firstErr
}

func BuildAppDependencies(ctx context.Context, cfg *config.Config) (*AppDependencies, error) {
	log.Info().Msg("Building application dependencies")

	deps := &AppDependencies{Config: cfg}

	database, closeMongo, err := mongodb.Connect(ctx, cfg.MongoURI, cfg.MongoDatabase)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}
	deps.closers = append(deps.closers, closeMongo)

	siteStore := mongodb.NewSiteStore(database)
	documentStore := mongodb.NewDocumentStore(database)
	conversationStore := mongodb.NewConversationStore(database)
	gapStore := mongodb.NewGapStore(database)

	activityStore, err := deps.buildActivityStore(ctx, cfg, database)
	if err != nil {
		return nil, err
	}

	embedder, err := llm.NewEmbedder(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to build embedder: %w", err)
	}

	answerer, err := llm.NewAnswerer(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to build answerer: %w", err)
	}

	vectorStore, err := deps.buildVectorStore(ctx, cfg, embedder)
	if err != nil {
		return nil, err
	}

	blobStore, err := blob.NewLocalStore(cfg.BlobDir)
	if err != nil {
		return nil, fmt.Errorf("failed to open blob store: %w", err)
	}

	deps.TokenIssuer = auth.NewTokenIssuer(cfg.TokenSigningSecret, time.Duration(cfg.TokenTTLMinutes)*time.Minute)

	classifier := analytics.NewClassifier()

	deps.SiteManager = managers.NewSiteManager(managers.SiteManagerDependencies{
		SiteStore:     siteStore,
		DocumentStore: documentStore,
		VectorStore:   vectorStore,
	})

	deps.IngestionManager = managers.NewIngestionManager(managers.IngestionManagerDependencies{
		DocumentStore:  documentStore,
		ActivityStore:  activityStore,
		VectorStore:    vectorStore,
		BlobStore:      blobStore,
		Embedder:       embedder,
		Fetcher:        ingestion.NewFetcher(time.Duration(cfg.FetchTimeoutSeconds)*time.Second, cfg.MaxFetchBytes),
		Extractors:     extract.NewRegistry(),
		Chunker:        ingestion.NewChunker(ingestion.WithChunkSize(cfg.ChunkSize), ingestion.WithChunkOverlap(cfg.ChunkOverlap)),
		SlotsPerSite:   cfg.IngestConcurrencyPerSite,
		EmbedBatchSize: cfg.EmbedBatchSize,
	})

	deps.ChatManager = managers.NewChatManager(managers.ChatManagerDependencies{
		SiteStore:         siteStore,
		ConversationStore: conversationStore,
		VectorStore:       vectorStore,
		Embedder:          embedder,
		Answerer:          answerer,
		MinSimilarity:     cfg.MinSimilarity,
	})

	deps.AnalyticsManager = managers.NewAnalyticsManager(managers.AnalyticsManagerDependencies{
		ConversationStore: conversationStore,
		ActivityStore:     activityStore,
		GapStore:          gapStore,
		Classifier:        classifier,
	})

	deps.GapAnalyzer = managers.NewGapAnalyzer(managers.GapAnalyzerDependencies{
		ConversationStore: conversationStore,
		GapStore:          gapStore,
		Classifier:        classifier,
		Policy: managers.GapPolicy{
			WindowDays:  cfg.GapWindowDays,
			MinAttempts: cfg.GapMinAttempts,
			OpenRate:    cfg.GapOpenRate,
			ResolveRate: cfg.GapResolveRate,
			ReopenRate:  cfg.GapReopenRate,
		},
	})

	deps.GapScheduler, err = managers.NewGapScheduler(managers.GapSchedulerDependencies{
		SiteStore: siteStore,
		Analyzer:  deps.GapAnalyzer,
		CronSpec:  cfg.GapRecomputeCron,
	})
	if err != nil {
		return nil, err
	}

	if cfg.BlobWatch {
		watcher, err := blob.NewWatcher(cfg.BlobDir, deps.IngestionManager)
		if err != nil {
			return nil, fmt.Errorf("failed to start blob watcher: %w", err)
		}
		deps.BlobWatcher = watcher
		deps.closers = append(deps.closers, func(context.Context) error { return watcher.Close() })
	}

	deps.WidgetController = controllers.NewWidgetController(controllers.WidgetControllerDependencies{
		SiteManager: deps.SiteManager,
		TokenIssuer: deps.TokenIssuer,
		PublicURL:   cfg.PublicURL,
	})
	deps.IngestionController = controllers.NewIngestionController(controllers.IngestionControllerDependencies{
		IngestionManager: deps.IngestionManager,
		AnalyticsManager: deps.AnalyticsManager,
		SiteManager:      deps.SiteManager,
	})
	deps.ChatController = controllers.NewChatController(controllers.ChatControllerDependencies{
		ChatManager: deps.ChatManager,
		SiteManager: deps.SiteManager,
	})
	deps.AnalyticsController = controllers.NewAnalyticsController(controllers.AnalyticsControllerDependencies{
		AnalyticsManager: deps.AnalyticsManager,
		GapAnalyzer:      deps.GapAnalyzer,
		SiteManager:      deps.SiteManager,
	})

	log.Info().
		Str("vector_backend", cfg.VectorBackend).
		Str("activity_backend", cfg.ActivityBackend).
		Str("embedding_provider", cfg.EmbeddingProvider).
		Str("answer_provider", cfg.AnswerProvider).
		Msg("Application dependencies built successfully")

	return deps, nil
}

func (d *AppDependencies) buildActivityStore(ctx context.Context, cfg *config.Config, database *mongo.Database) (domain.ActivityStore, error) {
	switch cfg.ActivityBackend {
	case "redis":
		client := goredis.NewClient(&goredis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		d.closers = append(d.closers, func(context.Context) error { return client.Close() })

		ttl := time.Duration(cfg.ActivityTTLDays) * 24 * time.Hour

		return redisstore.NewActivityStore(client, activityKeyPrefix, ttl), nil
	default:
		return mongodb.NewActivityStore(database), nil
	}
}

func (d *AppDependencies) buildVectorStore(ctx context.Context, cfg *config.Config, embedder domain.Embedder) (domain.VectorStore, error) {
	switch cfg.VectorBackend {
	case "postgres":
		pool, err := pgxpool.New(ctx, cfg.PostgresURL)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to postgres: %w", err)
		}
		d.closers = append(d.closers, func(context.Context) error {
			pool.Close()
			return nil
		})

		return vector.NewPostgresStore(ctx, pool, embedder.Dimensions())
	default:
		return vector.NewMemoryStore(), nil
	}
}
