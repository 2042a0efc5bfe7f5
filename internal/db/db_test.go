package db

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"horse.fit/glossian/internal/config"
	"horse.fit/glossian/internal/globaltime"
)

func newTestPool(t *testing.T) *Pool {
	t.Helper()

	cfg := &config.Config{
		Environment: "test",
		LogLevel:    "silent",
		DatabaseURL: filepath.Join(t.TempDir(), "glossian.db"),
		DBMinConns:  1,
		DBMaxConns:  2,
	}
	pool, err := NewPool(context.Background(), cfg)
	if err != nil {
		t.Fatalf("open pool: %v", err)
	}
	t.Cleanup(func() { _ = pool.Close() })
	return pool
}

func TestFindMessageEngineToggle(t *testing.T) {
	t.Parallel()

	pool := newTestPool(t)
	ctx := context.Background()

	if _, err := pool.InsertMessage(ctx, KindTalk, &Message{
		SenderName:     "Alphinaud",
		OriginalText:   "こんにちは",
		OriginalLang:   "ja",
		TranslatedText: "Hello",
		TargetLang:     "en",
		EngineID:       1,
	}); err != nil {
		t.Fatalf("insert: %v", err)
	}

	key := LookupKey{SenderName: "Alphinaud", OriginalText: "こんにちは", TargetLang: "en", EngineID: 0}

	if _, err := pool.FindMessage(ctx, KindTalk, key, true); !IsNoRows(err) {
		t.Fatalf("expected miss with engine matching on, got %v", err)
	}

	row, err := pool.FindMessage(ctx, KindTalk, key, false)
	if err != nil {
		t.Fatalf("expected hit with engine matching off, got %v", err)
	}
	if row.TranslatedText != "Hello" || row.EngineID != 1 {
		t.Fatalf("unexpected row: %+v", row)
	}

	key.SenderName = "Alisaie"
	if _, err := pool.FindMessage(ctx, KindTalk, key, false); !IsNoRows(err) {
		t.Fatalf("expected a different sender to miss, got %v", err)
	}
}

func TestInsertMessageDuplicateReturnsStoredRow(t *testing.T) {
	t.Parallel()

	pool := newTestPool(t)
	ctx := context.Background()

	first, err := pool.InsertMessage(ctx, KindErrorToast, &Message{
		OriginalText:   "ターゲットが遠すぎます。",
		OriginalLang:   "ja",
		TranslatedText: "Target out of range.",
		TargetLang:     "en",
	})
	if err != nil {
		t.Fatalf("insert first: %v", err)
	}
	if first.ID == 0 || first.RowVersion != 1 || first.UpdatedAt != nil {
		t.Fatalf("unexpected first row: %+v", first)
	}

	second, err := pool.InsertMessage(ctx, KindErrorToast, &Message{
		OriginalText:   "ターゲットが遠すぎます。",
		OriginalLang:   "ja",
		TranslatedText: "Something else",
		TargetLang:     "en",
	})
	if err != nil {
		t.Fatalf("insert duplicate: %v", err)
	}
	if second.ID != first.ID || second.TranslatedText != "Target out of range." {
		t.Fatalf("expected stored row to win, got %+v", second)
	}

	count, err := pool.CountRows(ctx, KindErrorToast)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Fatalf("unexpected row count: got %d want 1", count)
	}
}

func TestListMessagesIsolatesKinds(t *testing.T) {
	t.Parallel()

	pool := newTestPool(t)
	ctx := context.Background()

	for _, kind := range []Kind{KindToast, KindAreaToast, KindAreaToast} {
		if _, err := pool.InsertMessage(ctx, kind, &Message{
			OriginalText:   "text-" + string(kind) + "-" + filepath.Base(t.Name()),
			OriginalLang:   "ja",
			TranslatedText: "x",
			TargetLang:     "en",
			EngineID:       len(kind),
		}); err != nil {
			t.Fatalf("insert %s: %v", kind, err)
		}
	}

	toasts, err := pool.ListMessages(ctx, KindToast)
	if err != nil {
		t.Fatalf("list toasts: %v", err)
	}
	if len(toasts) != 1 {
		t.Fatalf("unexpected toast rows: %d", len(toasts))
	}

	areas, err := pool.ListMessages(ctx, KindAreaToast)
	if err != nil {
		t.Fatalf("list area toasts: %v", err)
	}
	if len(areas) != 1 {
		t.Fatalf("expected duplicate area toast to collapse, got %d rows", len(areas))
	}

	if _, err := pool.ListMessages(ctx, KindQuestPlate); err == nil {
		t.Fatalf("expected quest plate kind to be rejected by message queries")
	}
}

func TestInsertMessageRejectsOversizedText(t *testing.T) {
	t.Parallel()

	pool := newTestPool(t)
	long := make([]rune, MaxOriginalTextLength+1)
	for i := range long {
		long[i] = 'a'
	}

	_, err := pool.InsertMessage(context.Background(), KindSubtitle, &Message{
		OriginalText:   string(long),
		OriginalLang:   "ja",
		TranslatedText: "x",
		TargetLang:     "en",
	})
	if err == nil {
		t.Fatalf("expected oversized text to be rejected")
	}
}

func TestQuestPlateUpdateMergesAndDetectsConflict(t *testing.T) {
	t.Parallel()

	pool := newTestPool(t)
	ctx := context.Background()

	inserted, err := pool.InsertQuestPlate(ctx, &QuestPlate{
		QuestID:        "65564",
		OriginalText:   "冒険者への手引き",
		OriginalLang:   "ja",
		TranslatedText: "A Guide for Adventurers",
		TargetLang:     "en",
		EngineID:       0,
		Objectives:     map[string]string{"A": "a"},
	})
	if err != nil {
		t.Fatalf("insert quest plate: %v", err)
	}

	key := QuestKey{QuestID: "65564", QuestName: "冒険者への手引き", TargetLang: "en", EngineID: 0}
	loaded, err := pool.FindQuestPlate(ctx, key, true)
	if err != nil {
		t.Fatalf("find quest plate: %v", err)
	}
	if loaded.Objectives["A"] != "a" || len(loaded.Summaries) != 0 {
		t.Fatalf("unexpected decoded fragments: %+v / %+v", loaded.Objectives, loaded.Summaries)
	}

	merged := loaded.Clone()
	MergeFragments(merged.Objectives, map[string]string{"B": "b", "A": "overwritten"})
	updated, err := pool.UpdateQuestPlate(ctx, merged)
	if err != nil {
		t.Fatalf("update quest plate: %v", err)
	}
	if updated.RowVersion != inserted.RowVersion+1 || updated.UpdatedAt == nil {
		t.Fatalf("unexpected version bookkeeping: %+v", updated)
	}

	reloaded, err := pool.GetQuestPlate(ctx, inserted.ID)
	if err != nil {
		t.Fatalf("reload quest plate: %v", err)
	}
	if len(reloaded.Objectives) != 2 || reloaded.Objectives["A"] != "a" || reloaded.Objectives["B"] != "b" {
		t.Fatalf("unexpected merged objectives: %+v", reloaded.Objectives)
	}

	// loaded still carries the pre-update version.
	stale := loaded.Clone()
	stale.Summaries["S"] = "s"
	if _, err := pool.UpdateQuestPlate(ctx, stale); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict for stale row version, got %v", err)
	}
}

// Not parallel: the clock is process-wide.
func TestQuestPlateUpdatePersistsMessageAndStamps(t *testing.T) {
	created := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	updatedAt := created.Add(90 * time.Minute)
	globaltime.SetMockTime(created)
	t.Cleanup(globaltime.ResetTime)

	pool := newTestPool(t)
	ctx := context.Background()

	inserted, err := pool.InsertQuestPlate(ctx, &QuestPlate{
		QuestID:        "66045",
		OriginalText:   "新たな冒険",
		OriginalLang:   "ja",
		TranslatedText: "A New Adventure",
		TargetLang:     "en",
	})
	if err != nil {
		t.Fatalf("insert quest plate: %v", err)
	}

	grown := inserted.Clone()
	grown.OriginalQuestMessage = "本文"
	grown.TranslatedQuestMessage = "Body"
	globaltime.SetMockTime(updatedAt)
	if _, err := pool.UpdateQuestPlate(ctx, grown); err != nil {
		t.Fatalf("update quest plate: %v", err)
	}

	reloaded, err := pool.GetQuestPlate(ctx, inserted.ID)
	if err != nil {
		t.Fatalf("reload quest plate: %v", err)
	}
	if reloaded.OriginalQuestMessage != "本文" || reloaded.TranslatedQuestMessage != "Body" {
		t.Fatalf("quest message not persisted: %q -> %q", reloaded.OriginalQuestMessage, reloaded.TranslatedQuestMessage)
	}
	if !reloaded.CreatedAt.Equal(created) {
		t.Fatalf("unexpected created_at: %v", reloaded.CreatedAt)
	}
	if reloaded.UpdatedAt == nil || !reloaded.UpdatedAt.Equal(updatedAt) {
		t.Fatalf("unexpected updated_at: %v", reloaded.UpdatedAt)
	}
}

func TestMergeFragmentsNeverOverwrites(t *testing.T) {
	t.Parallel()

	dst := map[string]string{"A": "a"}
	added := MergeFragments(dst, map[string]string{"A": "z", "B": "b"})
	if added != 1 {
		t.Fatalf("unexpected added count: %d", added)
	}
	if dst["A"] != "a" || dst["B"] != "b" {
		t.Fatalf("unexpected merge result: %+v", dst)
	}
}

func TestDecodeFragmentsBlankIsEmpty(t *testing.T) {
	t.Parallel()

	got, err := DecodeFragments("  ")
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Fatalf("expected empty map, got %+v", got)
	}
	if _, err := DecodeFragments("not json"); err == nil {
		t.Fatalf("expected malformed text to fail")
	}
}

func TestParseKind(t *testing.T) {
	t.Parallel()

	kind, err := ParseKind(" Battle-Talk ")
	if err != nil || kind != KindBattleTalk {
		t.Fatalf("unexpected parse result: %q %v", kind, err)
	}
	if !kind.HasSender() {
		t.Fatalf("expected battle talk to carry a sender")
	}
	if _, err := ParseKind("chat"); err == nil {
		t.Fatalf("expected unknown kind to fail")
	}
}
