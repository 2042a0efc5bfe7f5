package dispatch

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"horse.fit/glossian/internal/config"
	"horse.fit/glossian/internal/db"
	"horse.fit/glossian/internal/store"
	"horse.fit/glossian/internal/translation"
)

func TestProcessQuestMergesObjectivesAdditively(t *testing.T) {
	t.Parallel()

	provider := newStubProvider(map[string]string{"Q": "q", "A": "a", "B": "b"})
	st := newStubStore()
	d := newTestDispatcher(t, db.KindQuestPlate, provider, st, nil)
	ctx := context.Background()

	first, err := d.ProcessQuest(ctx, QuestRequest{QuestID: "65", QuestName: "Q", Objectives: []string{"A"}})
	require.NoError(t, err)
	require.Equal(t, OutcomeTranslated, first.Outcome)
	require.Equal(t, "q", first.QuestName)
	require.Equal(t, map[string]string{"A": "a"}, first.Objectives)

	second, err := d.ProcessQuest(ctx, QuestRequest{QuestID: "65", QuestName: "Q", Objectives: []string{"A", "B"}})
	require.NoError(t, err)
	require.Equal(t, OutcomeTranslated, second.Outcome)
	require.Equal(t, map[string]string{"A": "a", "B": "b"}, second.Objectives)

	require.Equal(t, 1, provider.callCount("A"))
	require.Equal(t, 1, provider.callCount("B"))
	require.Equal(t, 1, provider.callCount("Q"))

	stored := st.quest(first.RecordID)
	require.NotNil(t, stored)
	require.Equal(t, map[string]string{"A": "a", "B": "b"}, stored.Objectives)

	third, err := d.ProcessQuest(ctx, QuestRequest{QuestID: "65", QuestName: "Q", Objectives: []string{"B"}})
	require.NoError(t, err)
	require.Equal(t, OutcomeCacheHit, third.Outcome)
	require.Equal(t, map[string]string{"A": "a", "B": "b"}, st.quest(first.RecordID).Objectives)
}

func TestProcessQuestTranslatesMessageOnce(t *testing.T) {
	t.Parallel()

	provider := newStubProvider(map[string]string{"Q": "q", "本文": "texte"})
	st := newStubStore()
	d := newTestDispatcher(t, db.KindQuestPlate, provider, st, nil)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		result, err := d.ProcessQuest(ctx, QuestRequest{QuestID: "1", QuestName: "Q", Message: "本文"})
		require.NoError(t, err)
		require.Equal(t, "texte", result.Message)
	}
	require.Equal(t, 1, provider.callCount("本文"))
}

func TestProcessQuestMessageAddedLaterStaysTranslated(t *testing.T) {
	t.Parallel()

	pool, err := db.NewPool(context.Background(), &config.Config{
		Environment: "test",
		LogLevel:    "silent",
		DatabaseURL: filepath.Join(t.TempDir(), "glossian.db"),
		DBMinConns:  1,
		DBMaxConns:  2,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = pool.Close() })

	cache, err := store.New(pool, zerolog.Nop())
	require.NoError(t, err)

	provider := newStubProvider(map[string]string{"Q": "q", "本文": "texte"})
	d, err := New(Options{
		Kind:        db.KindQuestPlate,
		Provider:    provider,
		Store:       cache,
		SourceLang:  "ja",
		TargetLang:  "fr",
		MatchEngine: true,
		Logger:      zerolog.Nop(),
	})
	require.NoError(t, err)
	t.Cleanup(d.Close)
	ctx := context.Background()

	created, err := d.ProcessQuest(ctx, QuestRequest{QuestID: "1", QuestName: "Q"})
	require.NoError(t, err)

	grown, err := d.ProcessQuest(ctx, QuestRequest{QuestID: "1", QuestName: "Q", Message: "本文"})
	require.NoError(t, err)
	require.Equal(t, "texte", grown.Message)

	again, err := d.ProcessQuest(ctx, QuestRequest{QuestID: "1", QuestName: "Q", Message: "本文"})
	require.NoError(t, err)
	require.Equal(t, OutcomeCacheHit, again.Outcome)
	require.Equal(t, "texte", again.Message)
	require.Equal(t, 1, provider.callCount("本文"))

	stored, err := pool.GetQuestPlate(ctx, created.RecordID)
	require.NoError(t, err)
	require.Equal(t, "本文", stored.OriginalQuestMessage)
	require.Equal(t, "texte", stored.TranslatedQuestMessage)
}

func TestProcessQuestRetriesOnceAfterConflict(t *testing.T) {
	t.Parallel()

	provider := newStubProvider(map[string]string{"Q": "q", "A": "a", "B": "b"})
	st := newStubStore()
	d := newTestDispatcher(t, db.KindQuestPlate, provider, st, nil)
	ctx := context.Background()

	first, err := d.ProcessQuest(ctx, QuestRequest{QuestID: "7", QuestName: "Q", Objectives: []string{"A"}})
	require.NoError(t, err)

	st.conflicts = 1
	st.onConflict = func(plate *db.QuestPlate) {
		plate.Summaries["S"] = "s"
	}

	second, err := d.ProcessQuest(ctx, QuestRequest{QuestID: "7", QuestName: "Q", Objectives: []string{"B"}})
	require.NoError(t, err)
	require.Equal(t, OutcomeTranslated, second.Outcome)
	require.Equal(t, 2, st.updateCalls)

	stored := st.quest(first.RecordID)
	require.Equal(t, map[string]string{"A": "a", "B": "b"}, stored.Objectives)
	require.Equal(t, map[string]string{"S": "s"}, stored.Summaries)
}

func TestProcessQuestFallbackFragmentsAreRetried(t *testing.T) {
	t.Parallel()

	provider := newStubProvider(map[string]string{"Q": "q"})
	st := newStubStore()
	d := newTestDispatcher(t, db.KindQuestPlate, provider, st, nil)
	ctx := context.Background()

	first, err := d.ProcessQuest(ctx, QuestRequest{QuestID: "9", QuestName: "Q"})
	require.NoError(t, err)

	provider.mu.Lock()
	provider.fallback = true
	provider.mu.Unlock()

	result, err := d.ProcessQuest(ctx, QuestRequest{QuestID: "9", QuestName: "Q", Objectives: []string{"C"}})
	require.NoError(t, err)
	require.Equal(t, "C", result.Objectives["C"])
	require.Empty(t, st.quest(first.RecordID).Objectives)
}

func TestProcessQuestFailHard(t *testing.T) {
	t.Parallel()

	provider := newStubProvider(nil)
	provider.err = &translation.BackendError{Engine: translation.EngineDeepL, Err: errors.New("down")}
	st := newStubStore()
	d := newTestDispatcher(t, db.KindQuestPlate, provider, st, nil)

	result, err := d.ProcessQuest(context.Background(), QuestRequest{QuestID: "1", QuestName: "名前", Objectives: []string{"目的"}})
	var backendErr *translation.BackendError
	require.ErrorAs(t, err, &backendErr)
	require.Equal(t, OutcomeFailed, result.Outcome)
	require.Equal(t, "名前", result.QuestName)
	require.Equal(t, map[string]string{"目的": "目的"}, result.Objectives)
	require.Zero(t, st.insertCalls)
}

func TestProcessQuestRequiresQuestDispatcher(t *testing.T) {
	t.Parallel()

	d := newTestDispatcher(t, db.KindTalk, newStubProvider(nil), newStubStore(), nil)
	_, err := d.ProcessQuest(context.Background(), QuestRequest{QuestName: "Q"})
	require.Error(t, err)

	quest := newTestDispatcher(t, db.KindQuestPlate, newStubProvider(nil), newStubStore(), nil)
	_, err = quest.Process(context.Background(), Request{Text: "x"})
	require.Error(t, err)
}
