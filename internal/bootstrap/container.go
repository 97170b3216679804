package bootstrap

import (
	"context"
	"log"

	"ai-tutor-be/internal/config"
	"ai-tutor-be/internal/controller"
	"ai-tutor-be/internal/pkg/logger"
	"ai-tutor-be/internal/repository/implementation"
	"ai-tutor-be/internal/repository/memory"
	"ai-tutor-be/internal/service"
	"ai-tutor-be/internal/websocket"
	"ai-tutor-be/pkg/llm/factory"
	"ai-tutor-be/pkg/tutor/classify"
	"ai-tutor-be/pkg/tutor/orchestrator"
	"ai-tutor-be/pkg/tutor/section"

	pktNats "ai-tutor-be/pkg/nats"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type Container struct {
	// Controllers
	TutoringController controller.ITutoringController

	// Background Services (Exposed for main.go to run)
	ConsumerService service.IConsumerService

	// WebSockets
	WebSocketHub *websocket.Hub
}

func NewContainer(db *gorm.DB, cfg *config.Config) *Container {
	// 1. Core Facades
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.Environment == "production")
	pipelineLogger := log.Default()

	// 2. Event Bus
	watermillLogger := watermill.NewStdLogger(false, false)
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{},
		watermillLogger,
	)

	// 3. AI Pipeline
	llmProvider, err := factory.NewLLMProvider(
		cfg.Ai.LLMProvider,
		cfg.Ai.LLMModel,
		cfg.Ai.OllamaBaseURL,
		cfg.Ai.GeminiAPIKey,
	)
	if err != nil {
		log.Fatalf("[FATAL] Failed to initialize LLM Provider: %v", err)
	}
	log.Printf("[INFO] Using LLM Provider: %s (%s)", cfg.Ai.LLMProvider, cfg.Ai.LLMModel)

	doubtClassifier := classify.NewClassifier(llmProvider, classify.Config{
		RuleConfidenceGate: cfg.Tutoring.RuleConfidence,
		TwoScriptHinglish:  cfg.Tutoring.TwoScriptHinglish,
	}, pipelineLogger)
	sectionGenerator := section.NewGenerator(llmProvider, pipelineLogger)

	// 4. Infrastructure
	// NATS
	natsPub, err := pktNats.NewPublisher(cfg.App.NatsURL)
	if err != nil {
		log.Printf("[WARN] Failed to connect to NATS Publisher: %v", err)
	}

	// Redis
	opt, err := redis.ParseURL(cfg.App.RedisURL)
	if err != nil {
		log.Printf("[WARN] Failed to parse Redis URL: %v. Using direct Addr", err)
		opt = &redis.Options{
			Addr: cfg.App.RedisURL,
		}
	}
	rdb := redis.NewClient(opt)
	if _, err := rdb.Ping(context.Background()).Result(); err != nil {
		log.Printf("[WARN] Failed to connect to Redis: %v", err)
	}

	// WebSocket Hub
	wsLogger := logger.NewIsolatedLogger("logs/stream.log")
	wsHub := websocket.NewHub(rdb, wsLogger)
	go wsHub.Run()

	// 5. Repositories
	sessionRepo := implementation.NewTutoringSessionRepository(db)
	messageRepo := implementation.NewTutoringMessageRepository(db)
	profileRepo := implementation.NewStudentProfileRepository(db)
	contextRepo := memory.NewContextRepository()

	// 6. Orchestration
	orchManager := orchestrator.NewManager(
		doubtClassifier,
		sectionGenerator,
		service.NewSessionStoreAdapter(sessionRepo, natsPub),
		service.NewProfileStoreAdapter(profileRepo, natsPub),
		orchestrator.Config{
			ConnectTimeout: cfg.Tutoring.ConnectTimeout,
			TurnTimeout:    cfg.Tutoring.TurnTimeout,
			DedupeWindow:   cfg.Tutoring.DedupeWindow,
		},
		pipelineLogger,
	)

	// 7. Services
	publisherService := service.NewPublisherService(cfg.Tutoring.StreamTopic, pubSub)
	consumerService := service.NewConsumerService(
		pubSub,
		cfg.Tutoring.StreamTopic,
		wsHub,
		messageRepo,
		natsPub,
	)
	tutoringService := service.NewTutoringService(
		sessionRepo,
		messageRepo,
		contextRepo,
		orchManager,
		publisherService,
		natsPub,
	)

	return &Container{
		TutoringController: controller.NewTutoringController(tutoringService, wsHub, sysLogger),
		ConsumerService:    consumerService,
		WebSocketHub:       wsHub,
	}
}
