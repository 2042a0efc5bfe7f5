package db

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/gorm/clause"

	"horse.fit/glossian/internal/globaltime"
)

// QuestKey identifies a quest plate. QuestName is stored as original_text.
type QuestKey struct {
	QuestID    string
	QuestName  string
	TargetLang string
	EngineID   int
}

func (k QuestKey) Matches(q *QuestPlate, matchEngine bool) bool {
	if q == nil {
		return false
	}
	if q.QuestID != k.QuestID || q.OriginalText != k.QuestName || q.TargetLang != k.TargetLang {
		return false
	}
	return !matchEngine || q.EngineID == k.EngineID
}

func (p *Pool) FindQuestPlate(ctx context.Context, key QuestKey, matchEngine bool) (*QuestPlate, error) {
	if err := p.ready(); err != nil {
		return nil, err
	}

	q := p.gdb.WithContext(ctx).
		Where("quest_id = ? AND original_text = ? AND target_lang = ?", key.QuestID, key.QuestName, key.TargetLang)
	if matchEngine {
		q = q.Where("engine_id = ?", key.EngineID)
	}

	var rows []QuestPlate
	if err := q.Order("id ASC").Limit(1).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("query quest_plates: %w", err)
	}
	if len(rows) == 0 {
		return nil, ErrNoRows
	}
	plate := &rows[0]
	if err := plate.decodeFragments(); err != nil {
		return nil, err
	}
	return plate, nil
}

func (p *Pool) GetQuestPlate(ctx context.Context, id int64) (*QuestPlate, error) {
	if err := p.ready(); err != nil {
		return nil, err
	}

	var rows []QuestPlate
	if err := p.gdb.WithContext(ctx).Where("id = ?", id).Limit(1).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("query quest plate %d: %w", id, err)
	}
	if len(rows) == 0 {
		return nil, ErrNoRows
	}
	plate := &rows[0]
	if err := plate.decodeFragments(); err != nil {
		return nil, err
	}
	return plate, nil
}

func (p *Pool) InsertQuestPlate(ctx context.Context, plate *QuestPlate) (*QuestPlate, error) {
	if err := p.ready(); err != nil {
		return nil, err
	}
	if plate == nil {
		return nil, fmt.Errorf("quest plate is nil")
	}
	if strings.TrimSpace(plate.OriginalText) == "" {
		return nil, fmt.Errorf("quest name is required")
	}
	if strings.TrimSpace(plate.TargetLang) == "" {
		return nil, fmt.Errorf("target_lang is required")
	}
	if len([]rune(plate.OriginalQuestMessage)) > MaxOriginalTextLength {
		return nil, fmt.Errorf("original_quest_message exceeds %d characters", MaxOriginalTextLength)
	}
	if err := plate.encodeFragments(); err != nil {
		return nil, err
	}

	plate.ID = 0
	plate.RowVersion = 1
	plate.UpdatedAt = nil
	if plate.CreatedAt.IsZero() {
		plate.CreatedAt = globaltime.UTC()
	}

	res := p.gdb.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(plate)
	if res.Error != nil {
		return nil, fmt.Errorf("insert quest_plates: %w", res.Error)
	}
	if res.RowsAffected > 0 && plate.ID != 0 {
		return plate, nil
	}

	return p.FindQuestPlate(ctx, QuestKey{
		QuestID:    plate.QuestID,
		QuestName:  plate.OriginalText,
		TargetLang: plate.TargetLang,
		EngineID:   plate.EngineID,
	}, true)
}

// UpdateQuestPlate persists grown objective/summary maps. The row is only written if
// its row_version still equals plate.RowVersion; otherwise ErrConflict is returned and
// the caller must reload, re-merge and retry. The merge itself happens before this call.
func (p *Pool) UpdateQuestPlate(ctx context.Context, plate *QuestPlate) (*QuestPlate, error) {
	if err := p.ready(); err != nil {
		return nil, err
	}
	if plate == nil || plate.ID == 0 {
		return nil, fmt.Errorf("quest plate must be persisted before update")
	}
	if len([]rune(plate.OriginalQuestMessage)) > MaxOriginalTextLength {
		return nil, fmt.Errorf("original_quest_message exceeds %d characters", MaxOriginalTextLength)
	}
	if err := plate.encodeFragments(); err != nil {
		return nil, err
	}

	now := globaltime.UTC()
	res := p.gdb.WithContext(ctx).
		Model(&QuestPlate{}).
		Where("id = ? AND row_version = ?", plate.ID, plate.RowVersion).
		Updates(map[string]any{
			"translated_text":          plate.TranslatedText,
			"original_quest_message":   plate.OriginalQuestMessage,
			"translated_quest_message": plate.TranslatedQuestMessage,
			"objectives_text":          plate.ObjectivesText,
			"summaries_text":           plate.SummariesText,
			"row_version":              plate.RowVersion + 1,
			"updated_at":               now,
		})
	if res.Error != nil {
		return nil, fmt.Errorf("update quest plate %d: %w", plate.ID, res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, fmt.Errorf("update quest plate %d: %w", plate.ID, ErrConflict)
	}

	updated := plate.Clone()
	updated.RowVersion = plate.RowVersion + 1
	updated.UpdatedAt = &now
	return updated, nil
}

func (p *Pool) ListQuestPlates(ctx context.Context) ([]QuestPlate, error) {
	if err := p.ready(); err != nil {
		return nil, err
	}

	rows := make([]QuestPlate, 0, 32)
	if err := p.gdb.WithContext(ctx).Order("id ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list quest_plates: %w", err)
	}
	for i := range rows {
		if err := rows[i].decodeFragments(); err != nil {
			return nil, err
		}
	}
	return rows, nil
}
