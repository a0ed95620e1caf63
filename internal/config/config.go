package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Port          string
	Env           string
	PublicBaseURL string
	LogLevel      string

	DatabaseURL string

	RedisAddr     string
	RedisPassword string
	RedisTLS      bool

	UseMemoryQueue       bool
	WorkerCount          int
	ConversationQueueURL string
	AWSRegion            string
	AWSAccessKeyID       string
	AWSSecretAccessKey   string
	AWSEndpointOverride  string

	// WhatsApp Cloud API
	WhatsAppAccessToken   string
	WhatsAppPhoneNumberID string
	WhatsAppVerifyToken   string
	MetaAPIVersion        string

	// Safaricom Daraja (M-Pesa STK push)
	DarajaConsumerKey    string
	DarajaConsumerSecret string
	DarajaShortcode      string
	DarajaPasskey        string
	DarajaCallbackURL    string
	DarajaSandbox        bool
	DarajaSandboxPhone   string

	// Intent classification
	OpenAIAPIKey string
	OpenAIModel  string

	// Booking flow tuning
	BookingWindowDays  int
	SlotStartHour      int
	SlotEndHour        int
	CascadeDepthLimit  int
	DefaultTimezone    string
	HTTPClientTimeout  time.Duration
	DefaultBusinessTag string
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:          getEnv("PORT", "8080"),
		Env:           getEnv("ENV", "development"),
		PublicBaseURL: getEnv("PUBLIC_BASE_URL", ""),
		LogLevel:      getEnv("LOG_LEVEL", "info"),

		DatabaseURL: getEnv("DATABASE_URL", ""),

		RedisAddr:     getEnv("REDIS_ADDR", "redis:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),

		UseMemoryQueue:       getEnvAsBool("USE_MEMORY_QUEUE", false),
		WorkerCount:          getEnvAsInt("WORKER_COUNT", 2),
		ConversationQueueURL: getEnv("CONVERSATION_QUEUE_URL", ""),
		AWSRegion:            getEnv("AWS_REGION", "us-east-1"),
		AWSAccessKeyID:       getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:   getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride:  getEnv("AWS_ENDPOINT_OVERRIDE", ""),

		WhatsAppAccessToken:   getEnv("WHATSAPP_ACCESS_TOKEN", ""),
		WhatsAppPhoneNumberID: getEnv("WHATSAPP_PHONE_NUMBER_ID", ""),
		WhatsAppVerifyToken:   getEnv("WHATSAPP_VERIFY_TOKEN", ""),
		MetaAPIVersion:        getEnv("META_API_VERSION", "v21.0"),

		DarajaConsumerKey:    getEnv("DARAJA_CONSUMER_KEY", ""),
		DarajaConsumerSecret: getEnv("DARAJA_CONSUMER_SECRET", ""),
		DarajaShortcode:      getEnv("DARAJA_BUSINESS_SHORTCODE", ""),
		DarajaPasskey:        getEnv("DARAJA_PASSKEY", ""),
		DarajaCallbackURL:    getEnv("DARAJA_CALLBACK_URL", ""),
		DarajaSandbox:        getEnvAsBool("DARAJA_SANDBOX", true),
		DarajaSandboxPhone:   getEnv("DARAJA_SANDBOX_PHONE_NUMBER", ""),

		OpenAIAPIKey: getEnv("OPENAI_API_KEY", ""),
		OpenAIModel:  getEnv("OPENAI_MODEL", "gpt-4o-mini"),

		BookingWindowDays:  getEnvAsInt("BOOKING_WINDOW_DAYS", 7),
		SlotStartHour:      getEnvAsInt("SLOT_START_HOUR", 9),
		SlotEndHour:        getEnvAsInt("SLOT_END_HOUR", 18),
		CascadeDepthLimit:  getEnvAsInt("CASCADE_DEPTH_LIMIT", 5),
		DefaultTimezone:    getEnv("TIMEZONE", "Africa/Nairobi"),
		HTTPClientTimeout:  getEnvAsDuration("HTTP_CLIENT_TIMEOUT", 30*time.Second),
		DefaultBusinessTag: strings.TrimSpace(getEnv("DEFAULT_BUSINESS_TAG", "glow-haven")),
	}
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}
