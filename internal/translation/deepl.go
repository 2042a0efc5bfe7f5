package translation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bounoable/deepl"
	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"
)

const (
	DeepLProEndpoint     = "https://api.deepl.com/v2"
	DeepLFreeEndpoint    = "https://api-free.deepl.com/v2"
	DeepLKeylessEndpoint = "https://www2.deepl.com/jsonrpc"
)

// deeplClient is the subset of *deepl.Client the provider calls.
type deeplClient interface {
	Translate(ctx context.Context, text string, targetLang deepl.Language, opts ...deepl.TranslateOption) (string, deepl.Language, error)
}

// DeepLProvider talks to the official API when an auth key is configured and to
// the keyless JSON-RPC endpoint otherwise. It is fail-hard: backend failures are
// returned as *BackendError.
type DeepLProvider struct {
	timeout time.Duration
	logger  zerolog.Logger

	api        deeplClient
	clientOpts []deepl.ClientOption

	rpc         *resty.Client
	rpcEndpoint string
	fingerprint Fingerprinter
	now         func() time.Time
}

type DeepLOption func(*DeepLProvider)

// WithDeepLClientOptions configures the *deepl.Client built for API-key mode.
func WithDeepLClientOptions(opts ...deepl.ClientOption) DeepLOption {
	return func(p *DeepLProvider) {
		p.clientOpts = append(p.clientOpts, opts...)
	}
}

func WithKeylessEndpoint(endpoint string) DeepLOption {
	return func(p *DeepLProvider) {
		if trimmed := strings.TrimSpace(endpoint); trimmed != "" {
			p.rpcEndpoint = trimmed
		}
	}
}

func WithFingerprinter(f Fingerprinter) DeepLOption {
	return func(p *DeepLProvider) {
		if f != nil {
			p.fingerprint = f
		}
	}
}

func withDeepLClock(now func() time.Time) DeepLOption {
	return func(p *DeepLProvider) {
		p.now = now
	}
}

func NewDeepLProvider(apiKey string, timeout time.Duration, logger zerolog.Logger, opts ...DeepLOption) *DeepLProvider {
	p := &DeepLProvider{
		timeout:     timeout,
		logger:      logger.With().Str("engine", EngineDeepL.String()).Logger(),
		rpc:         resty.New(),
		rpcEndpoint: DeepLKeylessEndpoint,
		fingerprint: IOSFingerprint{},
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}

	apiKey = strings.TrimSpace(apiKey)
	if apiKey != "" {
		baseURL := DeepLProEndpoint
		if strings.HasSuffix(apiKey, ":fx") {
			baseURL = DeepLFreeEndpoint
		}
		clientOpts := append([]deepl.ClientOption{deepl.BaseURL(baseURL)}, p.clientOpts...)
		p.api = deepl.New(apiKey, clientOpts...)
	}
	return p
}

func (p *DeepLProvider) Name() string {
	return "deepl"
}

func (p *DeepLProvider) Engine() Engine {
	return EngineDeepL
}

// Keyless reports whether requests go to the JSON-RPC endpoint.
func (p *DeepLProvider) Keyless() bool {
	return p != nil && p.api == nil
}

func (p *DeepLProvider) SupportedLanguages() []string {
	if p.Keyless() {
		return supportedTargets(backendDeepLKeyless)
	}
	return supportedTargets(backendDeepL)
}

func (p *DeepLProvider) Translate(ctx context.Context, req TranslateRequest) (*TranslateResponse, error) {
	if p == nil {
		return nil, fmt.Errorf("deepl provider is nil")
	}
	if strings.TrimSpace(req.Text) == "" {
		return nil, fmt.Errorf("text is required")
	}

	table := backendDeepL
	if p.Keyless() {
		table = backendDeepLKeyless
	}
	target, ok := backendCode(table, directionTarget, req.TargetLang)
	if !ok {
		return nil, fmt.Errorf("deepl does not support target language %q", req.TargetLang)
	}
	source := ""
	if strings.TrimSpace(req.SourceLang) != "" {
		source, ok = backendCode(table, directionSource, req.SourceLang)
		if !ok {
			return nil, fmt.Errorf("deepl does not support source language %q", req.SourceLang)
		}
	}

	callCtx, cancel := withTimeout(ctx, p.timeout)
	defer cancel()

	started := time.Now()
	var (
		translated string
		err        error
	)
	if p.Keyless() {
		translated, err = p.translateKeyless(callCtx, req.Text, source, target)
	} else {
		translated, err = p.translateAPI(callCtx, req.Text, source, target)
	}
	if err != nil {
		p.logger.Error().Err(err).Bool("keyless", p.Keyless()).Msg("deepl translation failed")
		return nil, err
	}

	return &TranslateResponse{
		Text:         translated,
		SourceLang:   source,
		TargetLang:   target,
		ProviderName: p.Name(),
		Engine:       EngineDeepL,
		LatencyMs:    time.Since(started).Milliseconds(),
	}, nil
}

func (p *DeepLProvider) translateAPI(ctx context.Context, text, source, target string) (string, error) {
	opts := []deepl.TranslateOption{
		deepl.PreserveFormatting(true),
		deepl.SplitSentences(deepl.SplitNoNewlines),
	}
	if source != "" {
		opts = append(opts, deepl.SourceLang(deepl.Language(source)))
	}

	translated, _, err := p.api.Translate(ctx, text, deepl.Language(target), opts...)
	if err != nil {
		return "", &BackendError{Engine: EngineDeepL, Err: err}
	}
	translated = strings.TrimSpace(translated)
	if translated == "" {
		return "", &BackendError{Engine: EngineDeepL, Err: errors.New("empty translation")}
	}
	return translated, nil
}

type keylessRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	Method  string        `json:"method"`
	Params  keylessParams `json:"params"`
	ID      int64         `json:"id"`
}

type keylessParams struct {
	Texts     []keylessText `json:"texts"`
	Splitting string        `json:"splitting"`
	Lang      keylessLang   `json:"lang"`
	Timestamp int64         `json:"timestamp"`
}

type keylessText struct {
	Text                string `json:"text"`
	RequestAlternatives int    `json:"requestAlternatives"`
}

type keylessLang struct {
	SourceLangUserSelected string `json:"source_lang_user_selected"`
	TargetLang             string `json:"target_lang"`
}

func buildKeylessBody(fp Fingerprinter, text, source, target string, now time.Time) (string, error) {
	if source == "" {
		source = "auto"
	}
	id := fp.RequestID()
	payload := keylessRequest{
		JSONRPC: "2.0",
		Method:  "LMT_handle_texts",
		Params: keylessParams{
			Texts:     []keylessText{{Text: text}},
			Splitting: "newlines",
			Lang: keylessLang{
				SourceLangUserSelected: source,
				TargetLang:             target,
			},
			Timestamp: fp.Timestamp(text, now),
		},
		ID: id,
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(payload); err != nil {
		return "", fmt.Errorf("encode jsonrpc body: %w", err)
	}
	body := strings.TrimSpace(buf.String())
	return strings.Replace(body, methodSeparatorCompact, fp.MethodSeparator(id), 1), nil
}

func (p *DeepLProvider) translateKeyless(ctx context.Context, text, source, target string) (string, error) {
	body, err := buildKeylessBody(p.fingerprint, text, source, target, p.now())
	if err != nil {
		return "", err
	}

	resp, err := p.rpc.R().SetContext(ctx).
		SetHeaders(p.fingerprint.Headers()).
		SetBody(body).
		Post(p.rpcEndpoint)
	if err != nil {
		return "", &BackendError{Engine: EngineDeepL, Err: err}
	}

	payload := resp.Body()
	if resp.IsError() {
		msg := gjson.GetBytes(payload, "error.message").String()
		if msg == "" {
			msg = strings.TrimSpace(resp.String())
		}
		return "", &BackendError{Engine: EngineDeepL, Status: resp.StatusCode(), Err: errors.New(msg)}
	}

	if rpcErr := gjson.GetBytes(payload, "error.message"); rpcErr.Exists() {
		return "", &BackendError{Engine: EngineDeepL, Status: resp.StatusCode(), Err: errors.New(rpcErr.String())}
	}
	result := gjson.GetBytes(payload, "result.texts.0.text")
	if !result.Exists() || strings.TrimSpace(result.String()) == "" {
		return "", &BackendError{Engine: EngineDeepL, Status: resp.StatusCode(), Err: errors.New("response has no translated text")}
	}
	return strings.TrimSpace(result.String()), nil
}
