package bootstrap

import (
	"log"
	"os"

	"sanbot-be/internal/config"
	"sanbot-be/internal/controller"
	"sanbot-be/internal/pkg/logger"
	"sanbot-be/internal/repository/implementation"
	"sanbot-be/internal/repository/memory"
	redisrepo "sanbot-be/internal/repository/redis"
	"sanbot-be/internal/service"
	"sanbot-be/pkg/database"
	pktNats "sanbot-be/pkg/nats"
	"sanbot-be/pkg/session"
	"sanbot-be/pkg/tabular"
	"sanbot-be/pkg/wechat"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/redis/go-redis/v9"
)

type Container struct {
	// Controllers
	WebhookController controller.IWebhookController
	AnalyzeController controller.IAnalyzeController
	UploadController  controller.IUploadController // nil without a database

	// Background services (exposed for main.go to run)
	AnalysisService service.IAnalysisService

	// Infrastructure handles for shutdown
	NatsPublisher *pktNats.Publisher
	Logger        logger.ILogger
}

func NewContainer(cfg *config.Config) *Container {
	// 1. Core facades
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.Environment == "production")

	if err := os.MkdirAll(cfg.App.UploadFolder, 0o755); err != nil {
		log.Fatalf("[FATAL] Failed to create upload folder %s: %v", cfg.App.UploadFolder, err)
	}

	// 2. Event bus
	watermillLogger := watermill.NewStdLogger(false, false)
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{},
		watermillLogger,
	)

	// 3. Session storage, selected by config
	var sessions session.Store
	var memSessions *memory.SessionRepository
	if cfg.App.SessionStore == "redis" {
		opts, err := redis.ParseURL(cfg.App.RedisURL)
		if err != nil {
			log.Fatalf("[FATAL] Invalid REDIS_URL: %v", err)
		}
		sessions = redisrepo.NewSessionRepository(redis.NewClient(opts), cfg.Analysis.SessionIdleTimeout)
		log.Printf("[INFO] Using Session Store: REDIS")
	} else {
		memSessions = memory.NewSessionRepository(cfg.Analysis.SessionIdleTimeout)
		sessions = memSessions
		log.Printf("[INFO] Using Session Store: MEMORY")
	}

	// 4. Optional NATS lifecycle-event publisher
	var natsPub *pktNats.Publisher
	var eventsPub service.EventPublisher
	if cfg.App.NatsURL != "" {
		pub, err := pktNats.NewPublisher(cfg.App.NatsURL)
		if err != nil {
			log.Printf("[WARN] Failed to connect to NATS Publisher: %v", err)
		} else {
			natsPub = pub
			eventsPub = pub
		}
	}

	// 5. Messaging channel client
	messenger := wechat.NewClient(
		cfg.WeChat.CorpID,
		cfg.WeChat.CorpSecret,
		cfg.WeChat.AgentID,
		cfg.WeChat.Token,
	)

	// 6. Services
	parser := tabular.DefaultRegistry()
	analysisService := service.NewAnalysisService(
		pubSub, parser, messenger, sessions, eventsPub, sysLogger, cfg.Analysis,
	)
	conversationService := service.NewConversationService(
		sessions, analysisService, messenger, sysLogger,
	)

	// An evicted idle session may still own downloaded files.
	if memSessions != nil {
		memSessions.OnEvicted(func(userID string, files []session.FileRef) {
			for _, f := range files {
				if err := os.Remove(f.Path); err != nil && !os.IsNotExist(err) {
					sysLogger.Warn("bootstrap", "failed to remove evicted session file", map[string]interface{}{
						"user_id": userID, "path": f.Path, "error": err.Error(),
					})
				}
			}
		})
	}

	// 7. Optional upload history, enabled when a database is configured
	var uploadController controller.IUploadController
	if cfg.Database.Connection != "" {
		db, err := database.NewGormDBFromDSN(cfg.Database.Connection)
		if err != nil {
			log.Fatalf("[FATAL] Failed to connect to database: %v", err)
		}
		uploadRepo := implementation.NewUploadRepository(db)
		uploadService := service.NewUploadService(uploadRepo, parser, analysisService, sysLogger)
		uploadController = controller.NewUploadController(uploadService, cfg.App.UploadFolder)
		log.Printf("[INFO] Upload history enabled")
	}

	return &Container{
		WebhookController: controller.NewWebhookController(
			conversationService, messenger, cfg.App.UploadFolder, sysLogger,
		),
		AnalyzeController: controller.NewAnalyzeController(analysisService, cfg.App.UploadFolder),
		UploadController:  uploadController,
		AnalysisService:   analysisService,
		NatsPublisher:     natsPub,
		Logger:            sysLogger,
	}
}
