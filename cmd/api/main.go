package main

import (
	"fmt"
	"log"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/mottorpay/push-gateway/internal/auth"
	"github.com/mottorpay/push-gateway/internal/config"
	"github.com/mottorpay/push-gateway/internal/handler"
	infraredis "github.com/mottorpay/push-gateway/internal/infra/redis"
	"github.com/mottorpay/push-gateway/internal/message"
	"github.com/mottorpay/push-gateway/internal/observability"
	"github.com/mottorpay/push-gateway/internal/provider"
	"github.com/mottorpay/push-gateway/internal/ratelimit"
	"github.com/mottorpay/push-gateway/internal/service"
	"github.com/mottorpay/push-gateway/internal/transport"
)

const version = "2.0.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("failed to load config", zap.Error(err))
	}

	logger, err := observability.NewLogger(cfg.LogLevel)
	if err != nil {
		log.Fatal("failed to initialize logger", zap.Error(err))
	}
	defer logger.Sync() //nolint:errcheck

	metrics := observability.NewMetrics()
	status := handler.StatusInfo{Version: version}

	var fcm service.FCMSender
	if cfg.FCMEnabled() {
		credential, err := auth.ParseServiceCredential([]byte(cfg.FirebaseServiceAccount))
		if err != nil {
			logger.Fatal("service account parsing failed", zap.Error(err))
		}

		signer, err := auth.NewAssertionSigner(credential)
		if err != nil {
			logger.Fatal("assertion signer initialization failed", zap.Error(err))
		}

		tokenURL := cfg.OAuthTokenURL
		if tokenURL == "" {
			tokenURL = credential.TokenURI
		}
		broker, err := auth.NewTokenBroker(signer, tokenURL)
		if err != nil {
			logger.Fatal("token broker initialization failed", zap.Error(err))
		}
		broker.SetMetrics(metrics)

		fcmClient, err := newFCMClient(cfg, credential.ProjectID, broker)
		if err != nil {
			logger.Fatal("fcm client initialization failed", zap.Error(err))
		}

		fcm = fcmClient
		status.ProjectID = credential.ProjectID
		status.CredentialsLoaded = true
		logger.Info("fcm path enabled", zap.String("project", credential.ProjectID))
	} else {
		logger.Warn("FIREBASE_SERVICE_ACCOUNT is not set, fcm path disabled")
	}

	var webPush service.WebPushSender
	if cfg.WebPushEnabled() {
		keys, err := auth.NewVAPIDKeys(cfg.VAPIDPublicKey, cfg.VAPIDPrivateKey, cfg.VAPIDSubscriber)
		if err != nil {
			logger.Fatal("vapid keys initialization failed", zap.Error(err))
		}

		webPushClient, err := provider.NewWebPushClient(keys)
		if err != nil {
			logger.Fatal("web push client initialization failed", zap.Error(err))
		}

		webPush = webPushClient
		status.VAPIDPublicKey = cfg.VAPIDPublicKey
		logger.Info("web push path enabled", zap.String("subscriber", cfg.VAPIDSubscriber))
	} else {
		logger.Warn("VAPID key pair is not set, web push path disabled")
	}

	var rdb *goredis.Client
	var limiter ratelimit.RateLimiter = ratelimit.Noop{}
	if cfg.RedisURL != "" {
		rdb, err = infraredis.NewRedis(cfg.RedisURL)
		if err != nil {
			logger.Fatal("redis initialization failed", zap.Error(err))
		}
		defer rdb.Close()

		limiter, err = infraredis.NewRateLimiter(rdb, cfg.RateLimitPerSec)
		if err != nil {
			logger.Fatal("rate limiter initialization failed", zap.Error(err))
		}
	}

	dispatcher, err := service.NewDispatchService(
		message.NewBuilder(""),
		fcm,
		webPush,
		limiter,
		cfg.DispatchConcurrency,
		logger,
	)
	if err != nil {
		logger.Fatal("dispatch service initialization failed", zap.Error(err))
	}
	dispatcher.SetMetrics(metrics)

	app := fiber.New(fiber.Config{
		ErrorHandler: transport.ErrorHandler(logger),
	})
	app.Use(recover.New())
	app.Use(requestid.New(requestid.Config{
		Generator: uuid.NewString,
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Content-Type, Authorization",
	}))
	app.Use(metrics.HTTPMiddleware())

	if err := handler.RegisterPushRoutes(app, dispatcher); err != nil {
		logger.Fatal("route registration failed", zap.Error(err))
	}
	handler.RegisterHealthRoutes(app, status, rdb)
	app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))

	logger.Info("push gateway started", zap.Int("port", cfg.APIPort), zap.String("version", version))

	if err := app.Listen(fmt.Sprintf(":%d", cfg.APIPort)); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}

func newFCMClient(cfg *config.Config, projectID string, tokens provider.TokenSource) (*provider.FCMClient, error) {
	if cfg.FCMEndpoint != "" {
		client := resty.New()
		client.SetTimeout(cfg.SendTimeout())
		client.SetRetryCount(0)
		return provider.NewFCMClientWithClient(cfg.FCMEndpoint, tokens, client)
	}
	return provider.NewFCMClient(projectID, tokens)
}
