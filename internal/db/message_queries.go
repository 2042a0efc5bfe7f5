package db

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/gorm/clause"

	"horse.fit/glossian/internal/globaltime"
)

// LookupKey is the identity of a cached translation. SenderName is empty for kinds
// without a speaker.
type LookupKey struct {
	SenderName   string
	OriginalText string
	TargetLang   string
	EngineID     int
}

// Matches applies the same predicate as FindMessage to an already-loaded row.
// The engine id only participates when matchEngine is set.
func (k LookupKey) Matches(m *Message, matchEngine bool) bool {
	if m == nil {
		return false
	}
	if m.SenderName != k.SenderName || m.OriginalText != k.OriginalText || m.TargetLang != k.TargetLang {
		return false
	}
	return !matchEngine || m.EngineID == k.EngineID
}

// FindMessage returns the cached translation identified by key, or ErrNoRows.
func (p *Pool) FindMessage(ctx context.Context, kind Kind, key LookupKey, matchEngine bool) (*Message, error) {
	if err := p.ready(); err != nil {
		return nil, err
	}
	if !kind.Valid() || kind == KindQuestPlate {
		return nil, fmt.Errorf("kind %q is not a message kind", kind)
	}

	q := p.gdb.WithContext(ctx).
		Table(kind.Table()).
		Where("sender_name = ? AND original_text = ? AND target_lang = ?", key.SenderName, key.OriginalText, key.TargetLang)
	if matchEngine {
		q = q.Where("engine_id = ?", key.EngineID)
	}

	var rows []Message
	if err := q.Order("id ASC").Limit(1).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("query %s: %w", kind.Table(), err)
	}
	if len(rows) == 0 {
		return nil, ErrNoRows
	}
	return &rows[0], nil
}

// InsertMessage persists row into the kind's table. A row that collides with an
// existing identity is left untouched and the stored row is returned instead.
func (p *Pool) InsertMessage(ctx context.Context, kind Kind, row *Message) (*Message, error) {
	if err := p.ready(); err != nil {
		return nil, err
	}
	if row == nil {
		return nil, fmt.Errorf("message is nil")
	}
	if !kind.Valid() || kind == KindQuestPlate {
		return nil, fmt.Errorf("kind %q is not a message kind", kind)
	}
	if err := validateMessage(row); err != nil {
		return nil, err
	}

	row.ID = 0
	row.RowVersion = 1
	row.UpdatedAt = nil
	if row.CreatedAt.IsZero() {
		row.CreatedAt = globaltime.UTC()
	}

	res := p.gdb.WithContext(ctx).
		Table(kind.Table()).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(row)
	if res.Error != nil {
		return nil, fmt.Errorf("insert %s: %w", kind.Table(), res.Error)
	}
	if res.RowsAffected > 0 && row.ID != 0 {
		return row, nil
	}

	existing, err := p.FindMessage(ctx, kind, LookupKey{
		SenderName:   row.SenderName,
		OriginalText: row.OriginalText,
		TargetLang:   row.TargetLang,
		EngineID:     row.EngineID,
	}, true)
	if err != nil {
		return nil, fmt.Errorf("reload conflicting %s row: %w", kind.Table(), err)
	}
	return existing, nil
}

// ListMessages bulk-loads every row of one kind, oldest first.
func (p *Pool) ListMessages(ctx context.Context, kind Kind) ([]Message, error) {
	if err := p.ready(); err != nil {
		return nil, err
	}
	if !kind.Valid() || kind == KindQuestPlate {
		return nil, fmt.Errorf("kind %q is not a message kind", kind)
	}

	rows := make([]Message, 0, 64)
	if err := p.gdb.WithContext(ctx).Table(kind.Table()).Order("id ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list %s: %w", kind.Table(), err)
	}
	return rows, nil
}

// CountRows returns the number of stored records for kind.
func (p *Pool) CountRows(ctx context.Context, kind Kind) (int64, error) {
	if err := p.ready(); err != nil {
		return 0, err
	}
	if !kind.Valid() {
		return 0, fmt.Errorf("unknown kind %q", kind)
	}

	var count int64
	if err := p.gdb.WithContext(ctx).Table(kind.Table()).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("count %s: %w", kind.Table(), err)
	}
	return count, nil
}

func validateMessage(row *Message) error {
	if strings.TrimSpace(row.OriginalText) == "" {
		return fmt.Errorf("original_text is required")
	}
	if len([]rune(row.OriginalText)) > MaxOriginalTextLength {
		return fmt.Errorf("original_text exceeds %d characters", MaxOriginalTextLength)
	}
	if strings.TrimSpace(row.TargetLang) == "" {
		return fmt.Errorf("target_lang is required")
	}
	return nil
}

// MaxOriginalTextLength bounds original_text (and quest messages) in characters.
const MaxOriginalTextLength = 2500
