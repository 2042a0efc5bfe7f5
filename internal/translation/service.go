package translation

import (
	"context"
	"fmt"
	"time"
)

// Provider translates free-form text between languages.
type Provider interface {
	Translate(ctx context.Context, req TranslateRequest) (*TranslateResponse, error)
	Name() string
	Engine() Engine
	SupportedLanguages() []string
}

// TranslateRequest describes one translation request.
type TranslateRequest struct {
	Text       string
	SourceLang string // generic tag or name ("ja", "Japanese", "zh-Hans")
	TargetLang string
}

// TranslateResponse contains translated text and provider metadata.
type TranslateResponse struct {
	Text         string
	SourceLang   string
	TargetLang   string
	ProviderName string
	Engine       Engine
	LatencyMs    int64
	// Fallback is set when a fail-soft provider handed back the original text.
	Fallback bool
}

// BackendError is returned by fail-hard providers. Status is the HTTP status when
// the backend answered, zero for transport errors.
type BackendError struct {
	Engine Engine
	Status int
	Err    error
}

func (e *BackendError) Error() string {
	if e == nil {
		return ""
	}
	if e.Status > 0 {
		return fmt.Sprintf("%s backend status %d: %v", e.Engine, e.Status, e.Err)
	}
	return fmt.Sprintf("%s backend: %v", e.Engine, e.Err)
}

func (e *BackendError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func fallbackResponse(p Provider, req TranslateRequest, started time.Time) *TranslateResponse {
	return &TranslateResponse{
		Text:         req.Text,
		SourceLang:   req.SourceLang,
		TargetLang:   req.TargetLang,
		ProviderName: p.Name(),
		Engine:       p.Engine(),
		LatencyMs:    time.Since(started).Milliseconds(),
		Fallback:     true,
	}
}

func withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}

// AsyncResult is delivered once on the channel returned by TranslateAsync.
type AsyncResult struct {
	Response *TranslateResponse
	Err      error
}

// TranslateAsync runs p.Translate on its own goroutine. The channel is buffered so
// the goroutine never leaks when the caller stops listening.
func TranslateAsync(ctx context.Context, p Provider, req TranslateRequest) <-chan AsyncResult {
	out := make(chan AsyncResult, 1)
	go func() {
		defer close(out)
		resp, err := p.Translate(ctx, req)
		out <- AsyncResult{Response: resp, Err: err}
	}()
	return out
}
