package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/synaptica-ai/ehrextract/pkg/analytics/cohort"
	"github.com/synaptica-ai/ehrextract/pkg/common/config"
	"github.com/synaptica-ai/ehrextract/pkg/common/database"
	"github.com/synaptica-ai/ehrextract/pkg/common/kafka"
	"github.com/synaptica-ai/ehrextract/pkg/common/logger"
	"github.com/synaptica-ai/ehrextract/pkg/common/middleware"
	"github.com/synaptica-ai/ehrextract/pkg/ingestion"
	"github.com/synaptica-ai/ehrextract/pkg/observability/metrics"
	"github.com/synaptica-ai/ehrextract/pkg/storage"
	"github.com/synaptica-ai/ehrextract/pkg/study"
)

const serviceName = "extraction-service"

func main() {
	logger.Init()
	metrics.Init()
	cfg := config.Load()

	engine, err := study.Load(cfg.CodelistsPath, cfg.StudyDatesPath)
	if err != nil {
		logger.Log.WithError(err).Fatal("failed to build extraction engine")
	}

	db, err := database.GetPostgres(cfg)
	if err != nil {
		logger.Log.WithError(err).Fatal("failed to connect to postgres")
	}
	defer database.ClosePostgres()

	rowRepo := storage.NewRowRepository(db)
	if err := rowRepo.AutoMigrate(); err != nil {
		logger.Log.WithError(err).Fatal("failed to migrate row tables")
	}
	runRepo := cohort.NewRunRepository(db)
	if err := runRepo.AutoMigrate(); err != nil {
		logger.Log.WithError(err).Fatal("failed to migrate run tables")
	}

	opts := []cohort.Option{
		cohort.WithRowStore(rowRepo),
		cohort.WithWorkers(cfg.ExtractWorkers),
		cohort.WithScanLimit(cfg.QueryScanLimit),
		cohort.WithDefaultDatasets(cfg.Cohorts),
		cohort.WithSource(serviceName),
	}
	if redisClient, err := database.GetRedis(cfg); err != nil {
		logger.Log.WithError(err).Warn("row cache disabled, serving rows from postgres")
	} else {
		defer database.CloseRedis()
		opts = append(opts, cohort.WithRowCache(storage.NewRowCache(redisClient, cfg.RowCacheTTL)))
	}

	rowProducer := kafka.NewProducer(cfg, cfg.KafkaRowsTopic)
	defer rowProducer.Close()
	recordProducer := kafka.NewProducer(cfg, cfg.KafkaRecordsTopic)
	defer recordProducer.Close()

	validator := ingestion.NewValidator(cfg.AllowedSexes)
	svc := cohort.NewService(engine, validator, append(opts, cohort.WithPublisher(rowProducer))...)
	materializer := cohort.NewMaterializer(runRepo, svc, cfg.RunWorkers)

	var stream *ingestion.Service
	if cfg.KafkaDLQTopic != "" {
		dlqProducer := kafka.NewProducer(cfg, cfg.KafkaDLQTopic)
		defer dlqProducer.Close()
		stream = ingestion.NewService(validator, svc, dlqProducer, serviceName)
	} else {
		stream = ingestion.NewService(validator, svc, nil, serviceName)
	}

	router := mux.NewRouter()
	router.Use(middleware.Recovery, middleware.Logging)
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy"}`))
	}).Methods(http.MethodGet)

	router.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		sqlDB, err := db.DB()
		if err == nil {
			err = sqlDB.PingContext(r.Context())
		}
		if err != nil {
			http.Error(w, `{"status":"unavailable"}`, http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ready"}`))
	}).Methods(http.MethodGet)

	router.HandleFunc("/metrics", metrics.Handler).Methods(http.MethodGet)

	api := router.PathPrefix("/api/v1").Subrouter()
	api.Use(middleware.RateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst))
	cohort.NewHTTPHandler(svc, materializer, cfg.MaxRequestBody).Register(api)
	ingestion.NewHTTPHandler(validator, recordProducer, serviceName, cfg.MaxRequestBody).Register(api)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.ServerHost, cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	consumer := kafka.NewConsumer(cfg, cfg.KafkaRecordsTopic, cfg.KafkaGroupID)
	defer consumer.Close()

	go func() {
		logger.Log.WithField("topic", cfg.KafkaRecordsTopic).Info("Consuming patient records")
		if err := consumer.Consume(ctx, stream.Handle); err != nil && !errors.Is(err, context.Canceled) {
			logger.Log.WithError(err).Error("record consumer stopped")
		}
	}()

	go func() {
		logger.Log.WithFields(map[string]interface{}{
			"host":     cfg.ServerHost,
			"port":     cfg.ServerPort,
			"datasets": svc.Datasets(),
		}).Info("Extraction Service started")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.WithError(err).Fatal("failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Log.Info("Shutting down Extraction Service...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Log.WithError(err).Error("server forced to shutdown")
	}
	materializer.Wait()

	logger.Log.Info("Extraction Service stopped")
}
