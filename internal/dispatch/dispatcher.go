package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"horse.fit/glossian/internal/db"
	"horse.fit/glossian/internal/language"
	"horse.fit/glossian/internal/store"
	"horse.fit/glossian/internal/surface"
	"horse.fit/glossian/internal/translation"
)

// Store is the cache the dispatcher reads through. *store.Cache implements it.
type Store interface {
	FindMessage(ctx context.Context, kind db.Kind, key db.LookupKey, matchEngine bool) (*db.Message, error)
	InsertMessage(ctx context.Context, kind db.Kind, row *db.Message) (*db.Message, error)

	FindQuestPlate(ctx context.Context, key db.QuestKey, matchEngine bool) (*db.QuestPlate, error)
	GetQuestPlate(ctx context.Context, id int64) (*db.QuestPlate, error)
	InsertQuestPlate(ctx context.Context, plate *db.QuestPlate) (*db.QuestPlate, error)
	UpdateQuestPlate(ctx context.Context, plate *db.QuestPlate) (*db.QuestPlate, error)
}

var _ Store = (*store.Cache)(nil)

type Outcome string

const (
	OutcomeSkipped    Outcome = "skipped"
	OutcomeCacheHit   Outcome = "cache_hit"
	OutcomeTranslated Outcome = "translated"
	OutcomeFallback   Outcome = "fallback"
	OutcomeFailed     Outcome = "failed"
)

var errQuestKind = errors.New("quest plates go through ProcessQuest")

// DefaultMaxInFlight bounds background translations per kind.
const DefaultMaxInFlight = 4

type Options struct {
	Kind     db.Kind
	Provider translation.Provider
	Store    Store
	// Surface receives published text and clipboard copies. It may be nil when
	// only Process is used.
	Surface surface.Surface

	SourceLang string
	TargetLang string
	// MatchEngine requires cached rows to come from the configured engine.
	MatchEngine     bool
	CopyToClipboard bool
	// SkipTargetLanguage leaves text alone when it already reads as TargetLang.
	SkipTargetLanguage bool
	// Detect overrides language detection; it defaults to language.IsAlreadyIn.
	Detect func(text, target string) bool

	MaxInFlight int
	Logger      zerolog.Logger
}

type Request struct {
	Text   string `json:"text"`
	Sender string `json:"sender,omitempty"`
}

type Result struct {
	Outcome  Outcome `json:"outcome"`
	Original string  `json:"original"`
	Text     string  `json:"text"`
	Sender   string  `json:"sender,omitempty"`
	Engine   string  `json:"engine"`
	TraceID  string  `json:"trace_id"`
}

// Display renders the result the way it is written back ("Sender: text").
func (r Result) Display() string {
	if r.Sender != "" {
		return r.Sender + ": " + r.Text
	}
	return r.Text
}

// Dispatcher owns the decision path for one message kind: skip, cache lookup,
// translate, persist, publish. Background work runs on a bounded task group that
// Close cancels and joins.
type Dispatcher struct {
	kind        db.Kind
	provider    translation.Provider
	store       Store
	surface     surface.Surface
	sourceLang  string
	targetLang  string
	matchEngine bool
	clipboard   bool
	skipTarget  bool
	detect      func(text, target string) bool
	logger      zerolog.Logger

	flight singleflight.Group
	tasks  errgroup.Group
	ctx    context.Context
	cancel context.CancelFunc

	mu         sync.Mutex
	generation uint64
	published  string
	closed     bool
}

func New(opts Options) (*Dispatcher, error) {
	if !opts.Kind.Valid() {
		return nil, fmt.Errorf("unknown message kind %q", opts.Kind)
	}
	if opts.Provider == nil {
		return nil, fmt.Errorf("translation provider is required")
	}
	if opts.Store == nil {
		return nil, fmt.Errorf("store is required")
	}
	target := strings.TrimSpace(opts.TargetLang)
	if target == "" {
		return nil, fmt.Errorf("target language is required")
	}
	maxInFlight := opts.MaxInFlight
	if maxInFlight < 1 {
		maxInFlight = DefaultMaxInFlight
	}
	detect := opts.Detect
	if detect == nil {
		detect = language.IsAlreadyIn
	}

	ctx, cancel := context.WithCancel(context.Background())
	d := &Dispatcher{
		kind:        opts.Kind,
		provider:    opts.Provider,
		store:       opts.Store,
		surface:     opts.Surface,
		sourceLang:  strings.TrimSpace(opts.SourceLang),
		targetLang:  target,
		matchEngine: opts.MatchEngine,
		clipboard:   opts.CopyToClipboard,
		skipTarget:  opts.SkipTargetLanguage,
		detect:      detect,
		logger: opts.Logger.With().
			Str("kind", opts.Kind.String()).
			Str("engine", opts.Provider.Engine().String()).
			Logger(),
		ctx:    ctx,
		cancel: cancel,
	}
	d.tasks.SetLimit(maxInFlight)
	return d, nil
}

func (d *Dispatcher) Kind() db.Kind {
	return d.kind
}

// Process runs the decision path synchronously. The returned error is non-nil only
// when the provider failed hard or the request could not be sent; Result.Text is
// the original text in that case.
func (d *Dispatcher) Process(ctx context.Context, req Request) (Result, error) {
	traceID := uuid.NewString()
	logger := d.logger.With().Str("trace_id", traceID).Logger()

	result := Result{
		Outcome:  OutcomeSkipped,
		Original: req.Text,
		Text:     req.Text,
		Engine:   d.provider.Engine().String(),
		TraceID:  traceID,
	}

	if d.kind == db.KindQuestPlate {
		return result, errQuestKind
	}

	text := Sanitize(req.Text)
	if IsSentinel(text) {
		logger.Debug().Msg("nothing to translate")
		return result, nil
	}
	sender := ""
	if d.kind.HasSender() {
		sender = Sanitize(req.Sender)
	}

	prefix, body := splitContinuation(text)
	if IsSentinel(body) {
		return result, nil
	}
	if d.skipTarget && d.detect(body, d.targetLang) {
		logger.Debug().Msg("text already in target language")
		result.Sender = sender
		return result, nil
	}

	res, err := d.resolve(ctx, logger, sender, body)
	result.Outcome = res.outcome
	result.Text = prefix + res.text
	result.Sender = res.sender
	if res.outcome == OutcomeFailed {
		result.Text = req.Text
	}
	return result, err
}

type resolution struct {
	outcome Outcome
	text    string
	sender  string
}

// resolve collapses concurrent identical lookups into one store/provider round trip.
func (d *Dispatcher) resolve(ctx context.Context, logger zerolog.Logger, sender, body string) (resolution, error) {
	v, err, shared := d.flight.Do(sender+"\x00"+body, func() (any, error) {
		return d.lookupOrTranslate(ctx, logger, sender, body)
	})
	if shared {
		logger.Debug().Msg("joined in-flight lookup")
	}
	res, _ := v.(resolution)
	return res, err
}

func (d *Dispatcher) lookupOrTranslate(ctx context.Context, logger zerolog.Logger, sender, body string) (resolution, error) {
	key := db.LookupKey{
		SenderName:   sender,
		OriginalText: body,
		TargetLang:   d.targetLang,
		EngineID:     int(d.provider.Engine()),
	}

	row, err := d.store.FindMessage(ctx, d.kind, key, d.matchEngine)
	switch {
	case err == nil:
		logger.Debug().Int64("record_id", row.ID).Msg("cache hit")
		translatedSender := row.TranslatedSenderName
		if translatedSender == "" {
			translatedSender = sender
		}
		return resolution{outcome: OutcomeCacheHit, text: row.TranslatedText, sender: translatedSender}, nil
	case isMiss(err):
	default:
		logger.Error().Err(err).Msg("cache lookup failed, keeping original text")
		return resolution{outcome: OutcomeFailed, text: body, sender: sender}, nil
	}

	translated, outcome, err := d.translate(ctx, body)
	if err != nil {
		logger.Error().Err(err).Msg("translation failed")
		return resolution{outcome: OutcomeFailed, text: body, sender: sender}, err
	}
	if outcome == OutcomeFallback {
		logger.Warn().Msg("provider fell back to original text, not caching")
		return resolution{outcome: OutcomeFallback, text: body, sender: sender}, nil
	}

	persist := true
	translatedSender := ""
	if sender != "" {
		name, senderOutcome, err := d.translate(ctx, sender)
		if err != nil || senderOutcome != OutcomeTranslated {
			logger.Warn().Err(err).Str("sender", sender).Msg("sender translation failed, not caching")
			name = sender
			persist = false
		}
		translatedSender = name
	}

	res := resolution{outcome: OutcomeTranslated, text: translated, sender: translatedSender}
	if !persist {
		res.sender = sender
		return res, nil
	}

	stored, err := d.store.InsertMessage(ctx, d.kind, &db.Message{
		SenderName:           sender,
		OriginalText:         body,
		OriginalLang:         d.sourceLang,
		TranslatedText:       translated,
		TranslatedSenderName: translatedSender,
		TargetLang:           d.targetLang,
		EngineID:             int(d.provider.Engine()),
	})
	if err != nil {
		logger.Error().Err(err).Msg("persist translation failed")
	} else {
		logger.Info().Int64("record_id", stored.ID).Msg("translation cached")
	}

	if d.clipboard && d.surface != nil {
		d.surface.CopyToClipboard(Result{Text: translated, Sender: translatedSender}.Display())
	}
	return res, nil
}

// translate reports OutcomeTranslated, OutcomeFallback or an error.
func (d *Dispatcher) translate(ctx context.Context, text string) (string, Outcome, error) {
	resp, err := d.provider.Translate(ctx, translation.TranslateRequest{
		Text:       text,
		SourceLang: d.sourceLang,
		TargetLang: d.targetLang,
	})
	if err != nil {
		return text, OutcomeFailed, err
	}
	if resp == nil || resp.Fallback || strings.TrimSpace(resp.Text) == "" {
		return text, OutcomeFallback, nil
	}
	return resp.Text, OutcomeTranslated, nil
}

func isMiss(err error) bool {
	return errors.Is(err, store.ErrNotFound) || db.IsNoRows(err)
}

// Submit schedules req in the background and returns immediately. Every call on an
// open dispatcher claims a new generation, even when the task is dropped, so a
// result is written to target only if no newer Submit for this kind happened
// meanwhile. It returns false when the dispatcher is closed or already at capacity.
func (d *Dispatcher) Submit(req Request, target surface.Target) bool {
	if d.kind == db.KindQuestPlate {
		return false
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return false
	}

	d.generation++
	generation := d.generation
	accepted := d.tasks.TryGo(func() error {
		d.run(generation, req, target)
		return nil
	})
	if !accepted {
		d.logger.Debug().Str("target", target.String()).Msg("dispatcher busy, event dropped")
		return false
	}
	return true
}

func (d *Dispatcher) run(generation uint64, req Request, target surface.Target) {
	result, err := d.Process(d.ctx, req)
	if err != nil || result.Outcome == OutcomeFailed {
		return
	}
	d.publish(generation, target, result)
}

func (d *Dispatcher) publish(generation uint64, target surface.Target, result Result) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if generation != d.generation {
		d.logger.Debug().
			Uint64("generation", generation).
			Uint64("latest", d.generation).
			Str("trace_id", result.TraceID).
			Msg("stale result dropped")
		return false
	}

	d.published = result.Display()
	if d.surface != nil {
		d.surface.WriteText(target.SurfaceID, target.NodeID, d.published)
	}
	return true
}

// Latest returns the newest claimed generation and the last text published.
func (d *Dispatcher) Latest() (uint64, string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.generation, d.published
}

// Close cancels in-flight work and waits for background tasks to finish.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	d.mu.Unlock()

	d.cancel()
	_ = d.tasks.Wait()
}
