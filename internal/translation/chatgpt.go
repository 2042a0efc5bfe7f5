package translation

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/MakeNowJust/heredoc/v2"
	"github.com/rs/zerolog"
	"github.com/sashabaranov/go-openai"
)

const (
	// DefaultOpenAIEndpoint is used when OPENAI_BASE_URL is blank or invalid.
	DefaultOpenAIEndpoint = "https://api.openai.com/v1"
	DefaultOpenAIModel    = openai.GPT4oMini

	maxChatReplyChars = 400
)

// ChatGPTProvider translates through any OpenAI-compatible chat completions API.
// It is fail-soft.
type ChatGPTProvider struct {
	client  *openai.Client
	model   string
	timeout time.Duration
	logger  zerolog.Logger
}

func NewChatGPTProvider(apiKey, endpoint, model string, timeout time.Duration, logger zerolog.Logger) (*ChatGPTProvider, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY is required for the chatgpt engine")
	}
	model = strings.TrimSpace(model)
	if model == "" {
		model = DefaultOpenAIModel
	}

	cfg := openai.DefaultConfig(apiKey)
	cfg.BaseURL = normalizeEndpoint(endpoint)
	cfg.HTTPClient = &http.Client{Timeout: timeout}

	return &ChatGPTProvider{
		client:  openai.NewClientWithConfig(cfg),
		model:   model,
		timeout: timeout,
		logger:  logger.With().Str("engine", EngineChatGPT.String()).Logger(),
	}, nil
}

func (p *ChatGPTProvider) Name() string {
	return "chatgpt"
}

func (p *ChatGPTProvider) Engine() Engine {
	return EngineChatGPT
}

// ModelName returns the configured model identifier.
func (p *ChatGPTProvider) ModelName() string {
	if p == nil {
		return ""
	}
	return p.model
}

func (p *ChatGPTProvider) SupportedLanguages() []string {
	return supportedTargets(backendChatGPT)
}

func (p *ChatGPTProvider) Translate(ctx context.Context, req TranslateRequest) (*TranslateResponse, error) {
	if p == nil {
		return nil, fmt.Errorf("chatgpt provider is nil")
	}
	if strings.TrimSpace(req.Text) == "" {
		return nil, fmt.Errorf("text is required")
	}

	target := chatLanguageName(directionTarget, req.TargetLang)
	if target == "" {
		return nil, fmt.Errorf("target language is required")
	}
	source := chatLanguageName(directionSource, req.SourceLang)

	callCtx, cancel := withTimeout(ctx, p.timeout)
	defer cancel()

	started := time.Now()
	resp, err := p.client.CreateChatCompletion(callCtx, openai.ChatCompletionRequest{
		Model: p.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: buildSystemPrompt(source, target),
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: req.Text,
			},
		},
		Temperature: 0.3,
	})
	if err != nil {
		p.logger.Warn().Err(err).Msg("chat completion failed, keeping original text")
		return fallbackResponse(p, req, started), nil
	}
	if len(resp.Choices) == 0 {
		p.logger.Warn().Msg("chat completion returned no choices, keeping original text")
		return fallbackResponse(p, req, started), nil
	}

	translated := ExtractDelimited(resp.Choices[0].Message.Content)
	if translated == "" {
		p.logger.Warn().Msg("chat completion was empty, keeping original text")
		return fallbackResponse(p, req, started), nil
	}

	return &TranslateResponse{
		Text:         translated,
		SourceLang:   source,
		TargetLang:   target,
		ProviderName: p.Name(),
		Engine:       EngineChatGPT,
		LatencyMs:    time.Since(started).Milliseconds(),
	}, nil
}

func buildSystemPrompt(source, target string) string {
	from := ""
	if source != "" {
		from = "from " + source + " "
	}
	return heredoc.Docf(`
		You translate short lines of text from a video game user interface %sinto %s.
		Keep the tone, register and terminology of the original line.
		Keep character names, place names and other proper nouns consistent.
		Answer with at most %d characters.
		Output only the translation, wrapped in angle brackets like <translation>, with no explanation.
	`, from, target, maxChatReplyChars)
}

// ExtractDelimited returns the text between the first '<' and the last '>' of a
// reply. Replies without both markers are returned trimmed.
func ExtractDelimited(reply string) string {
	trimmed := strings.TrimSpace(reply)
	start := strings.Index(trimmed, "<")
	end := strings.LastIndex(trimmed, ">")
	if start < 0 || end <= start {
		return trimmed
	}
	return strings.TrimSpace(trimmed[start+1 : end])
}

func chatLanguageName(dir direction, raw string) string {
	if name, ok := backendCode(backendChatGPT, dir, raw); ok {
		return name
	}
	return strings.TrimSpace(raw)
}

// normalizeEndpoint turns a host, host:port or URL into the API root that
// go-openai appends /chat/completions to.
func normalizeEndpoint(raw string) string {
	endpoint := strings.TrimSpace(raw)
	if endpoint == "" {
		return DefaultOpenAIEndpoint
	}
	if !strings.Contains(endpoint, "://") {
		endpoint = "http://" + endpoint
	}

	parsed, err := url.Parse(endpoint)
	if err != nil || strings.TrimSpace(parsed.Host) == "" {
		return DefaultOpenAIEndpoint
	}
	path := strings.TrimRight(parsed.Path, "/")
	path = strings.TrimSuffix(path, "/chat/completions")
	if path == "" {
		path = "/v1"
	}
	parsed.Path = path
	return parsed.String()
}
