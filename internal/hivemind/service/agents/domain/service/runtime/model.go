package runtime

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/bytedance/gg/gptr"
	einoOpenAI "github.com/cloudwego/eino-ext/components/model/openai"
	einoModel "github.com/cloudwego/eino/components/model"

	"github.com/kiosk404/hivelink/internal/hivemind/service/agents/domain/entity"
)

// ModelBuilder returns the chat model an agent runs on.
type ModelBuilder func(ctx context.Context, cfg entity.AgentConfig) (einoModel.BaseChatModel, error)

// ModelConfig is the connection agents run on. Provider picks the SDK; the default
// "openai" also serves any OpenAI-compatible endpoint (Kimi, GLM, vLLM, ...).
type ModelConfig struct {
	Provider  string
	Model     string
	APIKey    string
	BaseURL   string
	MaxTokens int
}

// NewModelBuilder returns a builder for mc.Provider. An agent's Model overrides the
// configured default model id. APIKey may reference an environment variable as ${NAME}.
func NewModelBuilder(mc ModelConfig) (ModelBuilder, error) {
	name := mc.Provider
	if name == "" {
		name = ProviderOpenAI
	}
	build, ok := providers[name]
	if !ok {
		return nil, fmt.Errorf("unknown model provider %q, expected one of %s", name, strings.Join(Providers(), ", "))
	}

	return func(ctx context.Context, cfg entity.AgentConfig) (einoModel.BaseChatModel, error) {
		conn := connection{
			model:     mc.Model,
			apiKey:    ResolveEnvValue(mc.APIKey),
			baseURL:   mc.BaseURL,
			maxTokens: mc.MaxTokens,
		}
		if cfg.Model != "" {
			conn.model = cfg.Model
		}
		if conn.model == "" {
			return nil, fmt.Errorf("agent %q has no model configured", cfg.Name)
		}
		if conn.maxTokens <= 0 {
			conn.maxTokens = defaultMaxTokens
		}

		cm, err := build(ctx, conn)
		if err != nil {
			return nil, fmt.Errorf("build %s chat model %s: %w", name, conn.model, err)
		}
		return cm, nil
	}, nil
}

func buildOpenAI(ctx context.Context, conn connection) (einoModel.BaseChatModel, error) {
	chatCfg := &einoOpenAI.ChatModelConfig{
		Model:     conn.model,
		APIKey:    conn.apiKey,
		MaxTokens: gptr.Of(conn.maxTokens),
		ResponseFormat: &einoOpenAI.ChatCompletionResponseFormat{
			Type: einoOpenAI.ChatCompletionResponseFormatTypeText,
		},
	}
	// Set BaseURL only for non-default OpenAI endpoints.
	if conn.baseURL != "" {
		chatCfg.BaseURL = conn.baseURL
	}
	return einoOpenAI.NewChatModel(ctx, chatCfg)
}

// ResolveEnvValue expands a value of the form ${NAME} from the environment.
func ResolveEnvValue(s string) string {
	if strings.HasPrefix(s, "${") && strings.HasSuffix(s, "}") {
		return os.Getenv(s[2 : len(s)-1])
	}
	return s
}
