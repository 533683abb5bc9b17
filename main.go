package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"insight-hub/domain/repository"
	"insight-hub/infrastructure/archive"
	"insight-hub/infrastructure/cache"
	gaclient "insight-hub/infrastructure/clients/googleanalytics"
	liclient "insight-hub/infrastructure/clients/linkedin"
	gscclient "insight-hub/infrastructure/clients/searchconsole"
	ytclient "insight-hub/infrastructure/clients/youtube"
	"insight-hub/infrastructure/configuration"
	"insight-hub/infrastructure/crypto"
	"insight-hub/infrastructure/logger"
	"insight-hub/infrastructure/persistence"
	"insight-hub/infrastructure/pubsub"
	"insight-hub/infrastructure/servicebus"
	httpHandler "insight-hub/interfaces/http"
	"insight-hub/server"
	"insight-hub/usecase"
)

var httpServer *http.Server

func recoverPanic() {
	if err := recover(); err != nil {
		logger.GetLogger().WithField("error", err).Error("Application panic recovered")
	}
}

func main() {
	defer recoverPanic()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(interrupt)

	g, ctx := errgroup.WithContext(ctx)

	// Load env from files (non-destructive; OS env still has precedence)
	configuration.LoadEnvFromFile("config.env", ".env")

	cfg, err := configuration.LoadConfig()
	if err != nil {
		logger.GetLogger().WithField("error", err).Error("Configuration load failed")
		os.Exit(1)
	}

	db, vendor, err := initiateDatabase(cfg)
	if err != nil {
		logger.GetLogger().WithField("error", err).Error("Database initialization failed")
		os.Exit(1)
	}
	var caps persistence.SchemaCapabilities
	if vendor == vendorMSSQL {
		if err := persistence.EnsureAnalyticsSchemaMSSQL(db); err != nil {
			logger.GetLogger().WithField("error", err).Error("Schema setup failed")
		}
		// The MSSQL DDL always carries the identity column.
		caps = persistence.SchemaCapabilities{HasIdentityColumn: true}
	} else {
		if err := persistence.EnsureAnalyticsSchema(db); err != nil {
			logger.GetLogger().WithField("error", err).Error("Schema setup failed")
		}
		// Probed once; the credential repository branches on it instead of
		// retrying per write.
		caps = persistence.DetectSchemaCapabilities(db)
	}
	logger.GetLogger().
		WithField("vendor", vendor).
		WithField("identityColumn", caps.HasIdentityColumn).
		Info("Database connected.")

	mongoDb, err := persistence.NewMongoDB(
		cfg.Database.Mongo.Host,
		cfg.Database.Mongo.Port,
		cfg.Database.Mongo.User,
		cfg.Database.Mongo.Password,
		cfg.Database.Mongo.Name,
	)
	if err != nil {
		logger.GetLogger().WithField("error", err).Warn("MongoDB not available - continuing without raw-report archive")
		mongoDb = nil
	} else if err := mongoDb.Ping(ctx, nil); err != nil {
		logger.GetLogger().WithField("error", err).Warn("MongoDB ping failed - continuing without raw-report archive")
		mongoDb = nil
	}

	pubSubClient, err := pubsub.NewPubSub(ctx, cfg.Pubsub.ProjectID)
	if err != nil {
		logger.GetLogger().WithField("error", err).Warn("Pub/Sub not available - continuing without fetch events")
		pubSubClient = nil
	}

	serviceBusClient, err := servicebus.NewServiceBus(cfg.ServiceBus.Namespace)
	if err != nil {
		logger.GetLogger().WithField("error", err).Warn("Azure Service Bus not available - continuing without degradation alerts")
		serviceBusClient = nil
	}

	redisClient, err := cache.NewCache(
		ctx,
		fmt.Sprintf("%s:%s", cfg.RedisClient.Host, cfg.RedisClient.Port),
		cfg.RedisClient.Username,
		cfg.RedisClient.Password,
	)
	if err != nil {
		logger.GetLogger().WithField("error", err).Warn("Redis not available - continuing without hot cache")
		redisClient = nil
	}

	cipher, err := crypto.NewTokenCipher(cfg.App.TokenSecret)
	if err != nil {
		logger.GetLogger().WithField("error", err).Error("Token cipher setup failed")
		os.Exit(1)
	}

	var (
		credentialRepo repository.ICredential
		cacheRepo      repository.IAnalyticsCache
		companyRepo    repository.ICompany
		mappingRepo    repository.IAccountMapping
		normalizedRepo repository.INormalizedMetrics
		syncStatusRepo repository.ISyncStatus
		userRepository repository.IUser
	)
	if vendor == vendorMSSQL {
		credentialRepo = persistence.NewCredentialRepositoryMSSQL(db, cipher)
		cacheRepo = persistence.NewAnalyticsCacheRepositoryMSSQL(db)
		companyRepo = persistence.NewCompanyRepositoryMSSQL(db)
		mappingRepo = persistence.NewAccountMappingRepositoryMSSQL(db)
		normalizedRepo = persistence.NewNormalizedMetricsRepositoryMSSQL(db)
		syncStatusRepo = persistence.NewSyncStatusRepositoryMSSQL(db)
		userRepository = persistence.NewUserRepositoryMSSQL(db)
	} else {
		credentialRepo = persistence.NewCredentialRepository(db, cipher, caps)
		cacheRepo = persistence.NewAnalyticsCacheRepository(db)
		companyRepo = persistence.NewCompanyRepository(db)
		mappingRepo = persistence.NewAccountMappingRepository(db)
		normalizedRepo = persistence.NewNormalizedMetricsRepository(db)
		syncStatusRepo = persistence.NewSyncStatusRepository(db)
		userRepository = persistence.NewUserRepository(db)
	}
	if redisClient != nil {
		cacheRepo = cache.NewAnalyticsHotCache(cacheRepo, redisClient, 30*time.Second)
	}

	refresher := usecase.NewOAuthRefresher(cfg.OAuth.PlatformConfigs())
	tokenUsecase := usecase.NewTokenUsecase(credentialRepo, refresher)

	clients := []repository.IPlatformClient{
		gaclient.NewClient(tokenUsecase),
		gscclient.NewClient(tokenUsecase),
		ytclient.NewClient(tokenUsecase),
		liclient.NewClient(tokenUsecase, nil, ""),
	}

	analyticsUsecase := usecase.NewAnalyticsUsecase(usecase.AnalyticsDeps{
		Companies:  companyRepo,
		Mappings:   mappingRepo,
		Normalized: normalizedRepo,
		SyncStates: syncStatusRepo,
		Cache:      cacheRepo,
		Tokens:     tokenUsecase,
		Clients:    clients,
		Publisher:  pubsub.NewEventPublisher(pubSubClient, cfg.Pubsub.Topic),
		Alerts:     servicebus.NewAlertSender(serviceBusClient, cfg.ServiceBus.AlertQueue),
		Archive:    archive.NewReportArchive(mongoDb),
	}, usecase.AnalyticsTuning{
		OnDemandTTL:     time.Duration(cfg.Analytics.OnDemandTTLMinutes) * time.Minute,
		OnDemandStale:   time.Duration(cfg.Analytics.OnDemandStaleSecs) * time.Second,
		SnapshotTTL:     time.Duration(cfg.Analytics.SnapshotTTLHours) * time.Hour,
		CacheLookback:   time.Duration(cfg.Analytics.CacheLookbackDays) * 24 * time.Hour,
		FetchTimeout:    time.Duration(cfg.Analytics.FetchTimeoutSeconds) * time.Second,
		FailureAlertMin: cfg.Analytics.FailureAlertMin,
	})

	analyticsHandler := httpHandler.NewAnalyticsHandler(analyticsUsecase)
	oauthHandler := httpHandler.NewOAuthHandler(tokenUsecase, cfg.OAuth)
	healthHandler := httpHandler.NewHealthHandler(db, redisClient)

	router := server.InitiateRouter(
		analyticsHandler,
		oauthHandler,
		healthHandler,
		userRepository,
		cfg.App.SecretKey,
		nil,
	)

	// Out-of-band snapshot job: renders each active company's trailing
	// 30-day report once a day, shortly after midnight UTC.
	g.Go(func() error {
		for {
			next := nextSnapshotRun(time.Now().UTC())
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Until(next)):
				jobCtx, cancelJob := context.WithTimeout(ctx, 30*time.Minute)
				if err := analyticsUsecase.BuildDailySnapshots(jobCtx); err != nil {
					logger.GetLogger().WithField("error", err).Error("Daily snapshot job failed")
				}
				cancelJob()
			}
		}
	})

	port := cfg.App.Port
	logger.GetLogger().WithField("port", port).Info("Starting application")
	g.Go(func() error {
		httpServer = &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: router,
		}
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	select {
	case <-interrupt:
		logger.GetLogger().Info("Application shutdown requested")
	case <-ctx.Done():
	}

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if httpServer != nil {
		_ = httpServer.Shutdown(shutdownCtx)
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.GetLogger().WithField("error", err).Error("Server returned an error")
		os.Exit(2)
	}
}

const (
	vendorPostgres = "postgres"
	vendorMSSQL    = "mssql"
)

// initiateDatabase picks the vendor: MSSQL when DB_VENDOR=mssql or in
// production, PostgreSQL otherwise. Repository construction branches on the
// returned vendor.
func initiateDatabase(cfg *configuration.Config) (*sql.DB, string, error) {
	env := os.Getenv("ENV")
	if os.Getenv("DB_VENDOR") == "mssql" || env == "production" || env == "prod" {
		db, err := persistence.NewMSSQLDB(cfg.Database.Mssql)
		return db, vendorMSSQL, err
	}
	db, err := persistence.NewPostgreSQLDB(cfg.Database.Psql)
	return db, vendorPostgres, err
}

// nextSnapshotRun returns the next 00:30 UTC after now.
func nextSnapshotRun(now time.Time) time.Time {
	run := time.Date(now.Year(), now.Month(), now.Day(), 0, 30, 0, 0, time.UTC)
	if !run.After(now) {
		run = run.AddDate(0, 0, 1)
	}
	return run
}
