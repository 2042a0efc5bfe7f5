package dispatch

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"horse.fit/glossian/internal/db"
	"horse.fit/glossian/internal/surface"
	"horse.fit/glossian/internal/translation"
)

func newTestDispatcher(t *testing.T, kind db.Kind, provider *stubProvider, st *stubStore, mutate func(*Options)) *Dispatcher {
	t.Helper()

	opts := Options{
		Kind:        kind,
		Provider:    provider,
		Store:       st,
		SourceLang:  "ja",
		TargetLang:  "fr",
		MatchEngine: true,
		MaxInFlight: 4,
		Logger:      zerolog.Nop(),
	}
	if mutate != nil {
		mutate(&opts)
	}
	d, err := New(opts)
	require.NoError(t, err)
	t.Cleanup(d.Close)
	return d
}

func TestNewRejectsIncompleteOptions(t *testing.T) {
	t.Parallel()

	provider := newStubProvider(nil)
	st := newStubStore()

	_, err := New(Options{Kind: "chat", Provider: provider, Store: st, TargetLang: "fr"})
	require.Error(t, err)
	_, err = New(Options{Kind: db.KindTalk, Store: st, TargetLang: "fr"})
	require.Error(t, err)
	_, err = New(Options{Kind: db.KindTalk, Provider: provider, TargetLang: "fr"})
	require.Error(t, err)
	_, err = New(Options{Kind: db.KindTalk, Provider: provider, Store: st})
	require.Error(t, err)
}

func TestProcessIsIdempotent(t *testing.T) {
	t.Parallel()

	provider := newStubProvider(map[string]string{"こんにちは": "Bonjour"})
	st := newStubStore()
	d := newTestDispatcher(t, db.KindSubtitle, provider, st, nil)
	ctx := context.Background()

	first, err := d.Process(ctx, Request{Text: "こんにちは"})
	require.NoError(t, err)
	require.Equal(t, OutcomeTranslated, first.Outcome)
	require.Equal(t, "Bonjour", first.Text)

	second, err := d.Process(ctx, Request{Text: "こんにちは"})
	require.NoError(t, err)
	require.Equal(t, OutcomeCacheHit, second.Outcome)
	require.Equal(t, "Bonjour", second.Text)

	require.Equal(t, 1, provider.callCount("こんにちは"))
	require.Len(t, st.rows(db.KindSubtitle), 1)
}

func TestProcessSkipsSentinels(t *testing.T) {
	t.Parallel()

	provider := newStubProvider(nil)
	st := newStubStore()
	d := newTestDispatcher(t, db.KindToast, provider, st, nil)

	for _, text := range []string{"", "   ", "...", "…", "。。。", "???", "？？", "<br>", "\u200b"} {
		result, err := d.Process(context.Background(), Request{Text: text})
		require.NoError(t, err, "%q", text)
		require.Equal(t, OutcomeSkipped, result.Outcome, "%q", text)
		require.Equal(t, text, result.Text, "%q", text)
	}

	require.Zero(t, provider.totalCalls())
	require.Zero(t, st.findCalls)
}

func TestProcessKeepsLeadingEllipsis(t *testing.T) {
	t.Parallel()

	provider := newStubProvider(map[string]string{"Hello": "Bonjour"})
	st := newStubStore()
	d := newTestDispatcher(t, db.KindSubtitle, provider, st, nil)

	result, err := d.Process(context.Background(), Request{Text: "...Hello"})
	require.NoError(t, err)
	require.Equal(t, "...Bonjour", result.Text)

	rows := st.rows(db.KindSubtitle)
	require.Len(t, rows, 1)
	require.Equal(t, "Hello", rows[0].OriginalText)
	require.Equal(t, 1, provider.callCount("Hello"))
}

func TestProcessTranslatesSender(t *testing.T) {
	t.Parallel()

	provider := newStubProvider(map[string]string{"やあ": "Salut", "タタル": "Tataru"})
	st := newStubStore()
	d := newTestDispatcher(t, db.KindTalk, provider, st, nil)

	result, err := d.Process(context.Background(), Request{Text: "やあ", Sender: "タタル"})
	require.NoError(t, err)
	require.Equal(t, "Tataru: Salut", result.Display())

	rows := st.rows(db.KindTalk)
	require.Len(t, rows, 1)
	require.Equal(t, "タタル", rows[0].SenderName)
	require.Equal(t, "Tataru", rows[0].TranslatedSenderName)

	// toasts carry no sender, so it is ignored entirely
	toast := newTestDispatcher(t, db.KindToast, provider, st, nil)
	result, err = toast.Process(context.Background(), Request{Text: "やあ", Sender: "タタル"})
	require.NoError(t, err)
	require.Equal(t, "Salut", result.Display())
}

func TestProcessEngineMatchToggle(t *testing.T) {
	t.Parallel()

	for _, tc := range []struct {
		name        string
		matchEngine bool
		wantOutcome Outcome
		wantCalls   int
	}{
		{name: "engine must match", matchEngine: true, wantOutcome: OutcomeTranslated, wantCalls: 1},
		{name: "any engine", matchEngine: false, wantOutcome: OutcomeCacheHit, wantCalls: 0},
	} {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			provider := newStubProvider(nil)
			provider.engine = translation.EngineGoogle
			st := newStubStore()
			st.messages[db.KindQuestToast] = []db.Message{{
				ID: 1, OriginalText: "クエスト受注", TargetLang: "fr", TranslatedText: "Quête acceptée",
				EngineID: int(translation.EngineDeepL),
			}}
			d := newTestDispatcher(t, db.KindQuestToast, provider, st, func(o *Options) { o.MatchEngine = tc.matchEngine })

			result, err := d.Process(context.Background(), Request{Text: "クエスト受注"})
			require.NoError(t, err)
			require.Equal(t, tc.wantOutcome, result.Outcome)
			require.Equal(t, tc.wantCalls, provider.totalCalls())
		})
	}
}

func TestProcessFailSoftIsNotCached(t *testing.T) {
	t.Parallel()

	provider := newStubProvider(nil)
	provider.fallback = true
	st := newStubStore()
	d := newTestDispatcher(t, db.KindErrorToast, provider, st, nil)

	for i := 0; i < 2; i++ {
		result, err := d.Process(context.Background(), Request{Text: "射程外です"})
		require.NoError(t, err)
		require.Equal(t, OutcomeFallback, result.Outcome)
		require.Equal(t, "射程外です", result.Text)
	}

	require.Equal(t, 2, provider.callCount("射程外です"))
	require.Zero(t, st.insertCalls)
}

func TestProcessFailHardReturnsBackendError(t *testing.T) {
	t.Parallel()

	provider := newStubProvider(nil)
	provider.engine = translation.EngineDeepL
	provider.err = &translation.BackendError{Engine: translation.EngineDeepL, Status: 456, Err: errors.New("quota exceeded")}
	st := newStubStore()
	d := newTestDispatcher(t, db.KindBattleTalk, provider, st, nil)

	result, err := d.Process(context.Background(), Request{Text: "...来るぞ！", Sender: "サンクレッド"})
	var backendErr *translation.BackendError
	require.ErrorAs(t, err, &backendErr)
	require.Equal(t, 456, backendErr.Status)
	require.Equal(t, OutcomeFailed, result.Outcome)
	require.Equal(t, "...来るぞ！", result.Text)
	require.Zero(t, st.insertCalls)
}

func TestProcessStoreLookupErrorSkipsProvider(t *testing.T) {
	t.Parallel()

	provider := newStubProvider(nil)
	st := newStubStore()
	st.findErr = errors.New("database is locked")
	d := newTestDispatcher(t, db.KindAreaToast, provider, st, nil)

	result, err := d.Process(context.Background(), Request{Text: "グリダニア"})
	require.NoError(t, err)
	require.Equal(t, OutcomeFailed, result.Outcome)
	require.Equal(t, "グリダニア", result.Text)
	require.Zero(t, provider.totalCalls())
}

func TestProcessInsertErrorKeepsTranslation(t *testing.T) {
	t.Parallel()

	provider := newStubProvider(map[string]string{"グリダニア": "Gridania"})
	st := newStubStore()
	st.insertErr = errors.New("disk full")
	d := newTestDispatcher(t, db.KindAreaToast, provider, st, nil)

	result, err := d.Process(context.Background(), Request{Text: "グリダニア"})
	require.NoError(t, err)
	require.Equal(t, OutcomeTranslated, result.Outcome)
	require.Equal(t, "Gridania", result.Text)
}

func TestProcessSkipsTextAlreadyInTargetLanguage(t *testing.T) {
	t.Parallel()

	provider := newStubProvider(nil)
	st := newStubStore()
	d := newTestDispatcher(t, db.KindToast, provider, st, func(o *Options) {
		o.SkipTargetLanguage = true
		o.Detect = func(text, target string) bool { return text == "Déjà traduit" && target == "fr" }
	})

	result, err := d.Process(context.Background(), Request{Text: "Déjà traduit"})
	require.NoError(t, err)
	require.Equal(t, OutcomeSkipped, result.Outcome)
	require.Zero(t, provider.totalCalls())
	require.Zero(t, st.findCalls)
}

func TestProcessCopiesToClipboard(t *testing.T) {
	t.Parallel()

	provider := newStubProvider(map[string]string{"行こう": "Allons-y", "アリゼー": "Alisaie"})
	mem := surface.NewMemorySurface()
	d := newTestDispatcher(t, db.KindTalk, provider, newStubStore(), func(o *Options) {
		o.Surface = mem
		o.CopyToClipboard = true
	})

	_, err := d.Process(context.Background(), Request{Text: "行こう", Sender: "アリゼー"})
	require.NoError(t, err)
	require.Equal(t, "Alisaie: Allons-y", mem.Clipboard())
}

func TestSubmitPublishesOnlyLatestGeneration(t *testing.T) {
	t.Parallel()

	provider := newStubProvider(map[string]string{"古い": "ancien", "新しい": "nouveau"})
	slow := provider.gate("古い")
	mem := surface.NewMemorySurface()
	target := surface.Target{SurfaceID: "_TalkSubtitle", NodeID: "text"}
	mem.SetNode(target, "新しい", true)
	d := newTestDispatcher(t, db.KindSubtitle, provider, newStubStore(), func(o *Options) { o.Surface = mem })

	require.True(t, d.Submit(Request{Text: "古い"}, target))
	require.True(t, d.Submit(Request{Text: "新しい"}, target))

	require.Eventually(t, func() bool {
		text, _, _ := mem.Node(target)
		return text == "nouveau"
	}, time.Second, 5*time.Millisecond)

	close(slow)
	d.Close()

	text, _, _ := mem.Node(target)
	require.Equal(t, "nouveau", text)

	generation, published := d.Latest()
	require.Equal(t, uint64(2), generation)
	require.Equal(t, "nouveau", published)
}

func TestSubmitDropsWhenBusy(t *testing.T) {
	t.Parallel()

	provider := newStubProvider(map[string]string{"一つ目": "premier", "二つ目": "second"})
	release := provider.gate("一つ目")
	mem := surface.NewMemorySurface()
	st := newStubStore()
	target := surface.Target{SurfaceID: "_Toast", NodeID: "1"}
	d := newTestDispatcher(t, db.KindToast, provider, st, func(o *Options) {
		o.MaxInFlight = 1
		o.Surface = mem
	})

	mem.SetNode(target, "一つ目", true)
	require.True(t, d.Submit(Request{Text: "一つ目"}, target))

	// The UI moved on while the first event is still translating.
	mem.SetNode(target, "二つ目", true)
	require.False(t, d.Submit(Request{Text: "二つ目"}, target))

	generation, _ := d.Latest()
	require.Equal(t, uint64(2), generation)

	close(release)
	require.Eventually(t, func() bool {
		return len(st.rows(db.KindToast)) == 1
	}, time.Second, 5*time.Millisecond)
	d.Close()

	text, _, _ := mem.Node(target)
	require.Equal(t, "二つ目", text)
	_, published := d.Latest()
	require.Empty(t, published)

	require.False(t, d.Submit(Request{Text: "三つ目"}, target))
}

func TestSubmitKeepsLastTextOnFailure(t *testing.T) {
	t.Parallel()

	provider := newStubProvider(nil)
	provider.err = &translation.BackendError{Engine: translation.EngineDeepL, Err: errors.New("down")}
	mem := surface.NewMemorySurface()
	target := surface.Target{SurfaceID: "_Toast", NodeID: "1"}
	mem.SetNode(target, "原文", true)
	d := newTestDispatcher(t, db.KindToast, provider, newStubStore(), func(o *Options) { o.Surface = mem })

	require.True(t, d.Submit(Request{Text: "原文"}, target))
	d.Close()

	text, _, _ := mem.Node(target)
	require.Equal(t, "原文", text)
	_, published := d.Latest()
	require.Empty(t, published)
}

func TestSetRoutesWorkByKind(t *testing.T) {
	t.Parallel()

	provider := newStubProvider(map[string]string{"ようこそ": "Bienvenue"})
	mem := surface.NewMemorySurface()
	set, err := NewSet(Options{
		Provider:   provider,
		Store:      newStubStore(),
		Surface:    mem,
		TargetLang: "fr",
		Logger:     zerolog.Nop(),
	}, db.AllKinds())
	require.NoError(t, err)

	target := surface.Target{SurfaceID: "_AreaToast", NodeID: "name"}
	mem.SetNode(target, "ようこそ", true)
	require.True(t, set.SubmitWork(surface.WorkItem{Kind: db.KindAreaToast, Target: target, Text: "ようこそ"}))
	require.False(t, set.SubmitWork(surface.WorkItem{Kind: db.KindQuestPlate, Target: target, Text: "x"}))
	require.False(t, set.SubmitWork(surface.WorkItem{Kind: "chat", Target: target, Text: "x"}))
	set.Close()

	text, _, _ := mem.Node(target)
	require.Equal(t, "Bienvenue", text)

	_, err = set.Get(db.KindTalk)
	require.NoError(t, err)
}
