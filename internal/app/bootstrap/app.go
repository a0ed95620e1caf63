package bootstrap

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	openai "github.com/sashabaranov/go-openai"

	"github.com/glowhaven/whatsapp-booking/internal/api/router"
	"github.com/glowhaven/whatsapp-booking/internal/bookings"
	"github.com/glowhaven/whatsapp-booking/internal/catalog"
	appconfig "github.com/glowhaven/whatsapp-booking/internal/config"
	"github.com/glowhaven/whatsapp-booking/internal/conversation"
	"github.com/glowhaven/whatsapp-booking/internal/feedback"
	"github.com/glowhaven/whatsapp-booking/internal/http/handlers"
	"github.com/glowhaven/whatsapp-booking/internal/intent"
	"github.com/glowhaven/whatsapp-booking/internal/messages"
	"github.com/glowhaven/whatsapp-booking/internal/observability/metrics"
	"github.com/glowhaven/whatsapp-booking/internal/payments/daraja"
	"github.com/glowhaven/whatsapp-booking/internal/phone"
	"github.com/glowhaven/whatsapp-booking/internal/whatsapp"
	"github.com/glowhaven/whatsapp-booking/pkg/logging"
)

// App holds the wired application: HTTP surface plus the queue worker.
type App struct {
	Config    *appconfig.Config
	Logger    *logging.Logger
	Handler   http.Handler
	Worker    *conversation.Worker
	Publisher *conversation.Publisher

	pool        *pgxpool.Pool
	redisClient *redis.Client
}

// New wires the full application from config. Postgres, Redis, WhatsApp
// and Daraja credentials are all required; the queue backend is SQS
// unless USE_MEMORY_QUEUE is set.
func New(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}

	if cfg.WhatsAppAccessToken == "" || cfg.WhatsAppPhoneNumberID == "" {
		return nil, fmt.Errorf("bootstrap: WHATSAPP_ACCESS_TOKEN and WHATSAPP_PHONE_NUMBER_ID are required")
	}
	if cfg.DarajaConsumerKey == "" || cfg.DarajaConsumerSecret == "" {
		return nil, fmt.Errorf("bootstrap: DARAJA_CONSUMER_KEY and DARAJA_CONSUMER_SECRET are required")
	}

	pool, err := BuildDatabasePool(ctx, cfg)
	if err != nil {
		return nil, err
	}
	redisClient, err := BuildRedisClient(ctx, cfg, logger)
	if err != nil {
		pool.Close()
		return nil, err
	}

	directory, err := buildDirectory(ctx, pool, cfg, logger)
	if err != nil {
		pool.Close()
		_ = redisClient.Close()
		return nil, err
	}

	convMetrics := metrics.NewConversationMetrics(nil)
	payMetrics := metrics.NewPaymentMetrics(nil)

	bookingSvc := bookings.NewService(bookings.NewRepository(pool), logger)
	messageStore := messages.NewStore(pool, logger)
	feedbackStore := feedback.NewStore(pool, logger)

	messenger := buildMessenger(cfg)
	gateway := daraja.NewClient(daraja.Config{
		ConsumerKey:      cfg.DarajaConsumerKey,
		ConsumerSecret:   cfg.DarajaConsumerSecret,
		ShortCode:        cfg.DarajaShortcode,
		Passkey:          cfg.DarajaPasskey,
		CallbackURL:      cfg.DarajaCallbackURL,
		Sandbox:          cfg.DarajaSandbox,
		SandboxTestPhone: cfg.DarajaSandboxPhone,
	}, logger)

	registry := buildRegistry(cfg, directory, bookingSvc, gateway, buildClassifier(cfg, logger), feedbackStore, logger)
	responder := conversation.NewResponder(messenger, messageStore, logger)
	engine := conversation.NewEngine(
		conversation.NewRedisSessionStore(redisClient),
		registry,
		responder,
		logger,
		conversation.WithCascadeDepth(cfg.CascadeDepthLimit),
		conversation.WithMetrics(convMetrics),
	)

	processor := daraja.NewCallbackProcessor(bookingSvc, messenger, payMetrics, logger)
	publisher, worker, err := buildQueue(ctx, cfg, engine, messageStore, processor, logger)
	if err != nil {
		pool.Close()
		_ = redisClient.Close()
		return nil, err
	}

	handler := router.New(&router.Config{
		Logger:          logger,
		WhatsAppWebhook: handlers.NewWhatsAppWebhookHandler(publisher, cfg.WhatsAppVerifyToken, logger),
		DarajaCallback:  handlers.NewDarajaCallbackHandler(publisher, logger),
		Health: handlers.NewHealthHandler(
			pool,
			handlers.PingFunc(func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }),
		),
		MetricsHandler: promhttp.Handler(),
	})

	return &App{
		Config:      cfg,
		Logger:      logger,
		Handler:     handler,
		Worker:      worker,
		Publisher:   publisher,
		pool:        pool,
		redisClient: redisClient,
	}, nil
}

// Close releases database and Redis connections.
func (a *App) Close() {
	if a.pool != nil {
		a.pool.Close()
	}
	if a.redisClient != nil {
		_ = a.redisClient.Close()
	}
}

func buildDirectory(ctx context.Context, pool *pgxpool.Pool, cfg *appconfig.Config, logger *logging.Logger) (*catalog.Directory, error) {
	repo := catalog.NewRepository(pool)
	business, err := repo.GetBusinessByTag(ctx, cfg.DefaultBusinessTag)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: resolve business %q: %w", cfg.DefaultBusinessTag, err)
	}
	logger.Info("serving business", "tag", cfg.DefaultBusinessTag, "business_id", business.ID)
	return catalog.NewDirectory(repo, business.ID), nil
}

func buildMessenger(cfg *appconfig.Config) *whatsapp.Client {
	client := whatsapp.NewClient(cfg.WhatsAppAccessToken, cfg.WhatsAppPhoneNumberID)
	if cfg.MetaAPIVersion != "" {
		client.SetGraphAPIBase("https://graph.facebook.com/" + cfg.MetaAPIVersion)
	}
	return client
}

func buildClassifier(cfg *appconfig.Config, logger *logging.Logger) conversation.IntentClassifier {
	if cfg.OpenAIAPIKey == "" {
		logger.Warn("no OpenAI key configured; falling back to keyword intent classification")
		return intent.KeywordClassifier{}
	}
	return intent.NewOpenAIClassifier(openai.NewClient(cfg.OpenAIAPIKey), cfg.OpenAIModel, logger)
}

func buildRegistry(
	cfg *appconfig.Config,
	directory *catalog.Directory,
	bookingSvc *bookings.Service,
	gateway conversation.PaymentGateway,
	classifier conversation.IntentClassifier,
	feedbackStore conversation.FeedbackStore,
	logger *logging.Logger,
) *conversation.Registry {
	location, err := time.LoadLocation(cfg.DefaultTimezone)
	if err != nil {
		logger.Warn("unknown timezone, using UTC", "timezone", cfg.DefaultTimezone)
		location = time.UTC
	}

	idle := conversation.NewIdleHandler(directory, classifier, logger)
	return conversation.NewRegistry(map[conversation.State]conversation.Handler{
		conversation.StateIdle:             idle,
		conversation.StateProcessingIntent: idle,
		conversation.StateSelectService:    conversation.NewSelectServiceHandler(directory, logger),
		conversation.StateSelectDateTime: conversation.NewSelectDateTimeHandler(
			cfg.BookingWindowDays, cfg.SlotStartHour, cfg.SlotEndHour, location, logger,
		),
		conversation.StateConfirm:          conversation.NewConfirmHandler(directory, bookingSvc, logger),
		conversation.StatePaymentInitiated: conversation.NewPaymentInitiatedHandler(directory, bookingSvc, gateway, phone.KenyaVerifier{}, logger),
		conversation.StatePaymentPending:   conversation.NewPaymentPendingHandler(bookingSvc, logger),
		conversation.StateFeedbackRating:   conversation.NewFeedbackRatingHandler(logger),
		conversation.StateFeedbackComment:  conversation.NewFeedbackCommentHandler(feedbackStore, logger),
	})
}

func buildQueue(
	ctx context.Context,
	cfg *appconfig.Config,
	engine *conversation.Engine,
	recorder conversation.InboundRecorder,
	processor conversation.PaymentProcessor,
	logger *logging.Logger,
) (*conversation.Publisher, *conversation.Worker, error) {
	workerOpts := []conversation.WorkerOption{
		conversation.WithWorkerCount(cfg.WorkerCount),
		conversation.WithInboundRecorder(recorder),
		conversation.WithPaymentProcessor(processor),
	}

	if cfg.UseMemoryQueue {
		logger.Info("using in-memory conversation queue")
		queue := conversation.NewMemoryQueue(128)
		return conversation.NewPublisher(queue), conversation.NewWorker(engine, queue, logger, workerOpts...), nil
	}

	if cfg.ConversationQueueURL == "" {
		return nil, nil, fmt.Errorf("bootstrap: CONVERSATION_QUEUE_URL is required unless USE_MEMORY_QUEUE is set")
	}
	sqsClient, err := BuildSQSClient(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	logger.Info("using SQS conversation queue", "queue_url", cfg.ConversationQueueURL)
	queue := conversation.NewSQSQueue(sqsClient, cfg.ConversationQueueURL)
	return conversation.NewPublisher(queue), conversation.NewWorker(engine, queue, logger, workerOpts...), nil
}
