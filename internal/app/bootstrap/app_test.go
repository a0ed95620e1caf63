package bootstrap

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appconfig "github.com/glowhaven/whatsapp-booking/internal/config"
	"github.com/glowhaven/whatsapp-booking/internal/intent"
)

func TestBuildClassifierFallsBackToKeywords(t *testing.T) {
	cfg := &appconfig.Config{}
	classifier := buildClassifier(cfg, nil)
	assert.IsType(t, intent.KeywordClassifier{}, classifier)
}

func TestBuildClassifierUsesOpenAIWhenConfigured(t *testing.T) {
	cfg := &appconfig.Config{OpenAIAPIKey: "sk-test", OpenAIModel: "gpt-4o-mini"}
	classifier := buildClassifier(cfg, nil)
	assert.IsType(t, &intent.OpenAIClassifier{}, classifier)
}

func TestBuildQueueRequiresURLWithoutMemoryQueue(t *testing.T) {
	cfg := &appconfig.Config{UseMemoryQueue: false}
	_, _, err := buildQueue(context.Background(), cfg, nil, nil, nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CONVERSATION_QUEUE_URL")
}

func TestNewRequiresCredentials(t *testing.T) {
	cfg := &appconfig.Config{}
	_, err := New(context.Background(), cfg, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "WHATSAPP_ACCESS_TOKEN")
}
