package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/AbhiraajV/brainlm-backend/internal/clients/openai"
	"github.com/AbhiraajV/brainlm-backend/internal/clients/pinecone"
	"github.com/AbhiraajV/brainlm-backend/internal/clients/redis"
	"github.com/AbhiraajV/brainlm-backend/internal/db"
	"github.com/AbhiraajV/brainlm-backend/internal/handlers"
	"github.com/AbhiraajV/brainlm-backend/internal/jobs"
	"github.com/AbhiraajV/brainlm-backend/internal/logger"
	"github.com/AbhiraajV/brainlm-backend/internal/middleware"
	"github.com/AbhiraajV/brainlm-backend/internal/observability"
	"github.com/AbhiraajV/brainlm-backend/internal/repos"
	"github.com/AbhiraajV/brainlm-backend/internal/server"
	"github.com/AbhiraajV/brainlm-backend/internal/services"
	"github.com/AbhiraajV/brainlm-backend/internal/utils"
)

func main() {
	// Logger
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Observability
	shutdownOTel := observability.InitOTel(ctx, log, observability.OtelConfig{
		ServiceName: "brainlm-backend",
		Environment: utils.GetEnv("ENVIRONMENT", "development", log),
	})
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownOTel(shutdownCtx)
	}()

	// Env
	log.Info("Loading environment variables from main...")
	jwtSecretKey := utils.GetEnv("JWT_SECRET_KEY", "defaultsecret", log)
	accessTokenTTL := utils.GetEnvAsInt("ACCESS_TOKEN_TTL", 3600, log)
	refreshTokenTTL := utils.GetEnvAsInt("REFRESH_TOKEN_TTL", 86400, log)

	// Postgres
	postgresService, err := db.NewPostgresService(log)
	if err != nil {
		log.Error("Postgres init failed", "error", err)
		os.Exit(1)
	}
	if err = postgresService.AutoMigrateAll(); err != nil {
		log.Warn("Postgres auto migration failed", "error", err)
	}
	thePG := postgresService.DB()

	// Repos
	log.Info("Setting up Repos from main...")
	userRepo := repos.NewUserRepo(thePG, log)
	userTokenRepo := repos.NewUserTokenRepo(thePG, log)
	userEventRepo := repos.NewUserEventRepo(thePG, log)
	interpretationRepo := repos.NewInterpretationRepo(thePG, log)
	patternRepo := repos.NewPatternRepo(thePG, log)
	patternEventRepo := repos.NewPatternEventRepo(thePG, log)
	insightRepo := repos.NewInsightRepo(thePG, log)
	reviewRepo := repos.NewReviewRepo(thePG, log)
	jobRunRepo := repos.NewJobRunRepo(thePG, log)

	// Clients
	log.Info("Setting up Clients from main...")
	openaiClient, err := openai.NewClient(log)
	if err != nil {
		log.Error("Could not init OpenAI client", "error", err)
		os.Exit(1)
	}
	var vectorStore pinecone.VectorStore
	if apiKey := strings.TrimSpace(os.Getenv("PINECONE_API_KEY")); apiKey != "" {
		pineconeClient, pErr := pinecone.New(log, pinecone.Config{APIKey: apiKey})
		if pErr != nil {
			log.Warn("Could not init Pinecone client, vector search disabled", "error", pErr)
		} else if vs, vErr := pinecone.NewVectorStore(log, pineconeClient); vErr != nil {
			log.Warn("Could not init vector store, vector search disabled", "error", vErr)
		} else {
			vectorStore = vs
		}
	}
	userLocker, err := redis.NewUserLocker(log)
	if err != nil {
		log.Warn("Redis locker unavailable, using in-process fallback", "error", err)
		userLocker = redis.NoopLocker{}
	}

	// Services
	log.Info("Setting up Services from main...")
	authService := services.NewAuthService(thePG, log, userRepo, userTokenRepo, jwtSecretKey,
		time.Duration(accessTokenTTL)*time.Second, time.Duration(refreshTokenTTL)*time.Second)
	userService := services.NewUserService(log, userRepo)
	jobQueueService := services.NewJobQueueService(log, jobRunRepo)
	userEventService := services.NewUserEventService(log, thePG, userEventRepo, jobQueueService)
	interpretationService := services.NewInterpretationService(log, userEventRepo, interpretationRepo, openaiClient, vectorStore, jobQueueService)
	evidenceSelector := services.NewEvidenceSelector(log, interpretationRepo, patternRepo, patternEventRepo, vectorStore)
	patternOracle := services.NewPatternOracle(log, openaiClient)
	patternVersionService := services.NewPatternVersionService(thePG, log, patternRepo, patternEventRepo, openaiClient)
	patternEngine := services.NewPatternEngineService(log, userLocker, userEventRepo, interpretationRepo, patternRepo,
		evidenceSelector, patternOracle, patternVersionService)
	backfillLookbackDays := utils.GetEnvAsInt("BACKFILL_LOOKBACK_DAYS", 180, log)
	patternBackfill := services.NewPatternBackfillService(log, userLocker, interpretationRepo, patternRepo, openaiClient, patternVersionService, backfillLookbackDays)
	patternQueryService := services.NewPatternQueryService(log, patternRepo, patternEventRepo, userEventRepo)
	hybridRetrieval := services.NewHybridRetrievalService(log, interpretationRepo, patternRepo, insightRepo, reviewRepo)
	insightService := services.NewInsightService(log, interpretationRepo, insightRepo, openaiClient)
	reviewService := services.NewReviewService(log, userEventRepo, reviewRepo, hybridRetrieval, openaiClient)

	// Jobs
	log.Info("Setting up job worker from main...")
	registry := jobs.NewRegistry()
	for _, h := range []jobs.Handler{
		jobs.NewInterpretationBuildHandler(log, interpretationService),
		jobs.NewPatternDetectHandler(log, patternEngine),
		jobs.NewPatternBackfillHandler(log, patternBackfill),
		jobs.NewInsightBuildHandler(log, insightService),
		jobs.NewReviewBuildHandler(log, reviewService),
	} {
		if err := registry.Register(h); err != nil {
			log.Error("Failed to register job handler", "error", err)
			os.Exit(1)
		}
	}
	worker := jobs.NewWorker(thePG, log, jobRunRepo, registry)
	worker.Start(ctx)

	// Handlers
	log.Info("Setting up Handlers from main...")
	authHandler := handlers.NewAuthHandler(authService)
	userHandler := handlers.NewUserHandler(userService)
	eventHandler := handlers.NewEventHandler(userEventService)
	patternHandler := handlers.NewPatternHandler(patternQueryService, jobQueueService)
	insightHandler := handlers.NewInsightHandler(insightService, jobQueueService)
	reviewHandler := handlers.NewReviewHandler(reviewService, jobQueueService)
	jobHandler := handlers.NewJobHandler(jobRunRepo)

	// Middleware
	authMiddleware := middleware.NewAuthMiddleware(log, authService)

	// Router
	log.Info("Setting up router from main...")
	router := server.NewRouter(server.RouterConfig{
		AuthHandler:    authHandler,
		AuthMiddleware: authMiddleware,
		UserHandler:    userHandler,
		EventHandler:   eventHandler,
		PatternHandler: patternHandler,
		InsightHandler: insightHandler,
		ReviewHandler:  reviewHandler,
		JobHandler:     jobHandler,
	})

	port := utils.GetEnv("PORT", "8080", log)
	log.Info("Server listening", "port", port)
	if err := router.Run(":" + port); err != nil {
		log.Error("Server failed", "error", err)
	}
}
