package main

import (
	"context"
	"fmt"
	"os"

	"github.com/lanternroom/lantern-backend/internal/data/db"
	"github.com/lanternroom/lantern-backend/internal/data/repos"
	"github.com/lanternroom/lantern-backend/internal/handlers"
	"github.com/lanternroom/lantern-backend/internal/pkg/envutil"
	"github.com/lanternroom/lantern-backend/internal/pkg/logger"
	"github.com/lanternroom/lantern-backend/internal/platform/openai"
	"github.com/lanternroom/lantern-backend/internal/server"
	"github.com/lanternroom/lantern-backend/internal/services"
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

	// Env
	log.Info("Loading environment variables from main...")
	maxSourceBytes := envutil.GetEnvAsInt("MAX_SOURCE_MATERIAL_BYTES", services.DefaultMaxSourceBytes, log)

	// Postgres
	postgresService, err := db.NewPostgresService(log)
	if err != nil {
		log.Error("Postgres init failed", "error", err)
		os.Exit(1)
	}
	if err := postgresService.AutoMigrateAll(); err != nil {
		log.Warn("Postgres auto migration failed", "error", err)
	}
	thePG := postgresService.DB()

	// Repos
	log.Info("Setting up repos from main...")
	conversationRepo := repos.NewConversationRepo(thePG, log)
	resourceRepo := repos.NewResourceRepo(thePG, log)
	unitRepo := repos.NewUnitRepo(thePG, log)
	runRepo := repos.NewUnitGenerationRunRepo(thePG, log)
	aiLogRepo := repos.NewAICallLogRepo(thePG, log)

	// Services
	log.Info("Setting up services from main...")
	openaiClient, err := openai.NewClient(log)
	if err != nil {
		log.Error("Could not init OpenAI client", "error", err)
		os.Exit(1)
	}
	resourceService := services.NewResourceService(thePG, log, resourceRepo)
	coachService := services.NewCoachService(thePG, log, conversationRepo, resourceRepo, aiLogRepo, openaiClient)
	supplementalGenerator := services.NewSupplementalGenerator(log, openaiClient, aiLogRepo)
	assemblyService := services.NewUnitAssemblyService(thePG, log, conversationRepo, resourceRepo, resourceService, supplementalGenerator, maxSourceBytes)
	unitCreationService := services.NewUnitCreationService(thePG, log, conversationRepo, unitRepo, runRepo, assemblyService)
	unitCreationService.StartWorker(context.Background())

	// Handlers
	log.Info("Setting up handlers from main...")
	conversationHandler := handlers.NewConversationHandler(log, coachService, unitCreationService)
	resourceHandler := handlers.NewResourceHandler(log, resourceService)
	unitHandler := handlers.NewUnitHandler(log, unitCreationService)

	// Router
	log.Info("Setting up router from main...")
	router := server.NewRouter(server.RouterConfig{
		ConversationHandler: conversationHandler,
		ResourceHandler:     resourceHandler,
		UnitHandler:         unitHandler,
	})

	port := envutil.GetEnv("PORT", "8080", log)
	fmt.Printf("Server listening on :%s\n", port)
	if err := router.Run(":" + port); err != nil {
		log.Warn("Server failed", "error", err)
	}
}
