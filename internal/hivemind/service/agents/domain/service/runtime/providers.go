package runtime

import (
	"context"
	"fmt"
	"sort"

	"github.com/bytedance/gg/gptr"
	einoClaude "github.com/cloudwego/eino-ext/components/model/claude"
	einoDeepseek "github.com/cloudwego/eino-ext/components/model/deepseek"
	einoGemini "github.com/cloudwego/eino-ext/components/model/gemini"
	einoOllama "github.com/cloudwego/eino-ext/components/model/ollama"
	einoOpenAI "github.com/cloudwego/eino-ext/components/model/openai"
	einoQwen "github.com/cloudwego/eino-ext/components/model/qwen"
	einoModel "github.com/cloudwego/eino/components/model"
	"google.golang.org/genai"
)

// Supported model providers.
const (
	ProviderOpenAI    = "openai"
	ProviderDeepseek  = "deepseek"
	ProviderQwen      = "qwen"
	ProviderOllama    = "ollama"
	ProviderAnthropic = "anthropic"
	ProviderGemini    = "gemini"
)

const (
	defaultMaxTokens     = 4096
	defaultOllamaBaseURL = "http://127.0.0.1:11434/v1"
	defaultGeminiBaseURL = "https://generativelanguage.googleapis.com/"
)

// connection is a resolved ModelConfig for one agent.
type connection struct {
	model     string
	apiKey    string
	baseURL   string
	maxTokens int
}

type providerFunc func(ctx context.Context, conn connection) (einoModel.BaseChatModel, error)

var providers = map[string]providerFunc{
	ProviderOpenAI:    buildOpenAI,
	ProviderDeepseek:  buildDeepseek,
	ProviderQwen:      buildQwen,
	ProviderOllama:    buildOllama,
	ProviderAnthropic: buildClaude,
	ProviderGemini:    buildGemini,
}

// Providers lists the provider names NewModelBuilder accepts, sorted.
func Providers() []string {
	names := make([]string, 0, len(providers))
	for name := range providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func buildDeepseek(ctx context.Context, conn connection) (einoModel.BaseChatModel, error) {
	conf := &einoDeepseek.ChatModelConfig{
		APIKey:    conn.apiKey,
		Model:     conn.model,
		MaxTokens: conn.maxTokens,
	}
	if conn.baseURL != "" {
		conf.BaseURL = conn.baseURL
	}
	return einoDeepseek.NewChatModel(ctx, conf)
}

func buildQwen(ctx context.Context, conn connection) (einoModel.BaseChatModel, error) {
	conf := &einoQwen.ChatModelConfig{
		APIKey:    conn.apiKey,
		Model:     conn.model,
		MaxTokens: gptr.Of(conn.maxTokens),
		ResponseFormat: &einoOpenAI.ChatCompletionResponseFormat{
			Type: einoOpenAI.ChatCompletionResponseFormatTypeText,
		},
	}
	if conn.baseURL != "" {
		conf.BaseURL = conn.baseURL
	}
	return einoQwen.NewChatModel(ctx, conf)
}

func buildOllama(ctx context.Context, conn connection) (einoModel.BaseChatModel, error) {
	conf := &einoOllama.ChatModelConfig{
		BaseURL: defaultOllamaBaseURL,
		Model:   conn.model,
		Options: &einoOllama.Options{NumPredict: conn.maxTokens},
	}
	if conn.baseURL != "" {
		conf.BaseURL = conn.baseURL
	}
	return einoOllama.NewChatModel(ctx, conf)
}

func buildClaude(ctx context.Context, conn connection) (einoModel.BaseChatModel, error) {
	cfg := &einoClaude.Config{
		APIKey:    conn.apiKey,
		Model:     conn.model,
		MaxTokens: conn.maxTokens,
	}
	if conn.baseURL != "" {
		cfg.BaseURL = gptr.Of(conn.baseURL)
	}
	return einoClaude.NewChatModel(ctx, cfg)
}

func buildGemini(ctx context.Context, conn connection) (einoModel.BaseChatModel, error) {
	clientCfg := &genai.ClientConfig{
		APIKey:  conn.apiKey,
		Backend: genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{
			BaseURL: defaultGeminiBaseURL,
		},
	}
	if conn.baseURL != "" {
		clientCfg.HTTPOptions.BaseURL = conn.baseURL
	}
	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return einoGemini.NewChatModel(ctx, &einoGemini.Config{
		Client:    client,
		Model:     conn.model,
		MaxTokens: gptr.Of(conn.maxTokens),
	})
}
