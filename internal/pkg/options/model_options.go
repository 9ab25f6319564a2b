package options

import (
	"fmt"
	"strings"

	"github.com/bytedance/gg/gslice"

	"github.com/spf13/pflag"
)

// ModelProviders are the values accepted by model.provider.
var ModelProviders = []string{"anthropic", "deepseek", "gemini", "ollama", "openai", "qwen"}

// ModelOptions configures the chat model agents run on. The openai provider also
// serves any OpenAI-compatible endpoint (Kimi, GLM, vLLM, ...).
type ModelOptions struct {
	Provider string `json:"provider" mapstructure:"provider"`
	BaseURL  string `json:"base-url" mapstructure:"base-url"`
	// APIKey may reference an environment variable as ${NAME}.
	APIKey       string `json:"-"          mapstructure:"api-key"`
	DefaultModel string `json:"default-model" mapstructure:"default-model"`
	MaxTokens    int    `json:"max-tokens" mapstructure:"max-tokens"`
}

func NewModelOptions() *ModelOptions {
	return &ModelOptions{
		Provider:     "openai",
		APIKey:       "${OPENAI_API_KEY}",
		DefaultModel: "gpt-4o-mini",
		MaxTokens:    4096,
	}
}

func (o *ModelOptions) Validate() []error {
	var errs []error
	if !gslice.Contains(ModelProviders, o.Provider) {
		errs = append(errs, fmt.Errorf("model.provider must be one of %s, got %q", strings.Join(ModelProviders, ", "), o.Provider))
	}
	if o.DefaultModel == "" {
		errs = append(errs, fmt.Errorf("model.default-model is required"))
	}
	if o.MaxTokens < 0 {
		errs = append(errs, fmt.Errorf("model.max-tokens must not be negative, got %d", o.MaxTokens))
	}
	return errs
}

func (o *ModelOptions) AddFlags(fs *pflag.FlagSet) {
	fs.StringVar(&o.Provider, "model.provider", o.Provider, "Model provider: "+strings.Join(ModelProviders, ", ")+".")
	fs.StringVar(&o.BaseURL, "model.base-url", o.BaseURL, "Base URL of the model endpoint. Empty uses the provider default.")
	fs.StringVar(&o.APIKey, "model.api-key", o.APIKey, "API key, or ${ENV_VAR} to read it from the environment.")
	fs.StringVar(&o.DefaultModel, "model.default-model", o.DefaultModel, "Model id used by agents that do not name one.")
	fs.IntVar(&o.MaxTokens, "model.max-tokens", o.MaxTokens, "Maximum completion tokens per turn.")
}
