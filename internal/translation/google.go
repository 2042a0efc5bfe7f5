package translation

import (
	"bytes"
	"context"
	"fmt"
	"html"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"
)

// DefaultGoogleEndpoint is the mobile web frontend; it needs no API key.
const DefaultGoogleEndpoint = "https://translate.google.com/m"

const googleUserAgent = "Mozilla/5.0 (Linux; Android 13; Pixel 7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Mobile Safari/537.36"

// GoogleProvider scrapes the free web translator. It is fail-soft: any transport or
// parse error yields the original text with Fallback set.
type GoogleProvider struct {
	endpoint string
	timeout  time.Duration
	http     *resty.Client
	logger   zerolog.Logger
}

func NewGoogleProvider(endpoint string, timeout time.Duration, logger zerolog.Logger) *GoogleProvider {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		endpoint = DefaultGoogleEndpoint
	}
	return &GoogleProvider{
		endpoint: endpoint,
		timeout:  timeout,
		http:     resty.New().SetHeader("User-Agent", googleUserAgent),
		logger:   logger.With().Str("engine", EngineGoogle.String()).Logger(),
	}
}

func (p *GoogleProvider) Name() string {
	return "google"
}

func (p *GoogleProvider) Engine() Engine {
	return EngineGoogle
}

func (p *GoogleProvider) SupportedLanguages() []string {
	return supportedTargets(backendGoogle)
}

func (p *GoogleProvider) Translate(ctx context.Context, req TranslateRequest) (*TranslateResponse, error) {
	if p == nil {
		return nil, fmt.Errorf("google provider is nil")
	}
	if strings.TrimSpace(req.Text) == "" {
		return nil, fmt.Errorf("text is required")
	}

	started := time.Now()
	source := googleCode(directionSource, req.SourceLang)
	if source == "" {
		source = "auto"
	}
	target := googleCode(directionTarget, req.TargetLang)
	if target == "" {
		return nil, fmt.Errorf("target language is required")
	}

	callCtx, cancel := withTimeout(ctx, p.timeout)
	defer cancel()

	resp, err := p.http.R().SetContext(callCtx).
		SetQueryParams(map[string]string{
			"sl": source,
			"tl": target,
			"q":  req.Text,
		}).
		Get(p.endpoint)
	if err != nil {
		p.logger.Warn().Err(err).Msg("google request failed, keeping original text")
		return fallbackResponse(p, req, started), nil
	}
	if resp.IsError() {
		p.logger.Warn().Int("status", resp.StatusCode()).Msg("google returned an error status, keeping original text")
		return fallbackResponse(p, req, started), nil
	}

	translated, err := parseGoogleBody(resp.Body())
	if err != nil || translated == "" {
		p.logger.Warn().Err(err).Msg("google response could not be parsed, keeping original text")
		return fallbackResponse(p, req, started), nil
	}

	return &TranslateResponse{
		Text:         translated,
		SourceLang:   source,
		TargetLang:   target,
		ProviderName: p.Name(),
		Engine:       EngineGoogle,
		LatencyMs:    time.Since(started).Milliseconds(),
	}, nil
}

// googleCode passes unknown tags through untouched; Google accepts most BCP 47 tags.
func googleCode(dir direction, raw string) string {
	if code, ok := backendCode(backendGoogle, dir, raw); ok {
		return code
	}
	return strings.TrimSpace(raw)
}

// parseGoogleBody accepts the three shapes the endpoint is known to return: a bare
// JSON string, a translate_a style nested array, or the mobile HTML page.
func parseGoogleBody(body []byte) (string, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return "", fmt.Errorf("empty response body")
	}

	var text string
	switch trimmed[0] {
	case '"':
		if !gjson.ValidBytes(trimmed) {
			return "", fmt.Errorf("malformed json string")
		}
		text = gjson.ParseBytes(trimmed).String()
	case '[':
		if !gjson.ValidBytes(trimmed) {
			return "", fmt.Errorf("malformed json array")
		}
		first := gjson.ParseBytes(trimmed).Get("0")
		if first.IsArray() {
			var b strings.Builder
			for _, segment := range first.Array() {
				b.WriteString(segment.Get("0").String())
			}
			text = b.String()
		} else {
			text = first.String()
		}
		text = html.UnescapeString(text)
	default:
		doc, err := goquery.NewDocumentFromReader(bytes.NewReader(trimmed))
		if err != nil {
			return "", fmt.Errorf("parse html: %w", err)
		}
		container := doc.Find(".result-container").First()
		if container.Length() == 0 {
			return "", fmt.Errorf("result container not found")
		}
		text = container.Text()
	}

	return cleanGoogleText(text), nil
}

var escapedUnicodeRE = regexp.MustCompile(`\\u([0-9a-fA-F]{4})`)

var zeroWidthReplacer = strings.NewReplacer(
	"\u200b", "",
	"\u200c", "",
	"\u200d", "",
	"\u2060", "",
	"\ufeff", "",
)

func cleanGoogleText(text string) string {
	text = escapedUnicodeRE.ReplaceAllStringFunc(text, func(m string) string {
		code, err := strconv.ParseUint(m[2:], 16, 32)
		if err != nil {
			return m
		}
		return string(rune(code))
	})
	text = strings.ReplaceAll(text, `\n`, "\n")
	text = zeroWidthReplacer.Replace(text)
	return strings.TrimSpace(text)
}
