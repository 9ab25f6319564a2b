package runtime

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kiosk404/hivelink/internal/hivemind/service/agents/domain/entity"
)

func TestNewModelBuilder_UnknownProvider(t *testing.T) {
	_, err := NewModelBuilder(ModelConfig{Provider: "palm", Model: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown model provider "palm"`)
}

func TestNewModelBuilder_DefaultsToOpenAI(t *testing.T) {
	build, err := NewModelBuilder(ModelConfig{Model: "gpt-4o-mini", APIKey: "sk-test"})
	require.NoError(t, err)

	cm, err := build(context.Background(), entity.AgentConfig{Name: "main"})
	require.NoError(t, err)
	assert.NotNil(t, cm)
}

func TestNewModelBuilder_RequiresModel(t *testing.T) {
	build, err := NewModelBuilder(ModelConfig{Provider: ProviderDeepseek})
	require.NoError(t, err)

	_, err = build(context.Background(), entity.AgentConfig{Name: "writer"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `agent "writer" has no model configured`)
}

func TestProviders(t *testing.T) {
	assert.Equal(t, []string{"anthropic", "deepseek", "gemini", "ollama", "openai", "qwen"}, Providers())
}
