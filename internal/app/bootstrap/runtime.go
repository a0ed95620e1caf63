package bootstrap

import (
	"context"
	"crypto/tls"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	appconfig "github.com/glowhaven/whatsapp-booking/internal/config"
	"github.com/glowhaven/whatsapp-booking/pkg/logging"
)

// BuildDatabasePool opens a pgx pool against the configured Postgres and
// verifies connectivity.
func BuildDatabasePool(ctx context.Context, cfg *appconfig.Config) (*pgxpool.Pool, error) {
	if cfg == nil || cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("bootstrap: DATABASE_URL is required")
	}
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: open postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("bootstrap: ping postgres: %w", err)
	}
	return pool, nil
}

// BuildRedisClient returns a verified Redis client. Sessions live in
// Redis, so an unreachable Redis is fatal rather than degraded.
func BuildRedisClient(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (*redis.Client, error) {
	if cfg == nil || cfg.RedisAddr == "" {
		return nil, fmt.Errorf("bootstrap: REDIS_ADDR is required")
	}
	if logger == nil {
		logger = logging.Default()
	}

	redisOptions := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		redisOptions.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(redisOptions)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("bootstrap: ping redis: %w", err)
	}
	logger.Info("redis connected", "addr", cfg.RedisAddr)
	return client, nil
}

// BuildSQSClient configures an SQS client, honoring a local endpoint
// override for LocalStack development.
func BuildSQSClient(ctx context.Context, cfg *appconfig.Config) (*sqs.Client, error) {
	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.AWSRegion),
	}
	if cfg.AWSAccessKeyID != "" && cfg.AWSSecretAccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AWSAccessKeyID, cfg.AWSSecretAccessKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: load aws config: %w", err)
	}

	var clientOpts []func(*sqs.Options)
	if cfg.AWSEndpointOverride != "" {
		clientOpts = append(clientOpts, func(o *sqs.Options) {
			o.BaseEndpoint = aws.String(cfg.AWSEndpointOverride)
		})
	}
	return sqs.NewFromConfig(awsCfg, clientOpts...), nil
}
