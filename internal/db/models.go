package db

import (
	"time"
)

// Message maps one row of a per-kind message table (talk_messages,
// battle_talk_messages, toast_messages, ...). The table is chosen per query with
// Kind.Table, so the struct has no TableName method.
type Message struct {
	ID                   int64      `gorm:"column:id;primaryKey;autoIncrement"`
	SenderName           string     `gorm:"column:sender_name;type:text;not null;default:''"`
	OriginalText         string     `gorm:"column:original_text;type:varchar(2500);not null"`
	OriginalLang         string     `gorm:"column:original_lang;type:text;not null"`
	TranslatedText       string     `gorm:"column:translated_text;type:text;not null"`
	TranslatedSenderName string     `gorm:"column:translated_sender_name;type:text;not null;default:''"`
	TargetLang           string     `gorm:"column:target_lang;type:text;not null"`
	EngineID             int        `gorm:"column:engine_id;type:integer;not null"`
	RowVersion           int64      `gorm:"column:row_version;type:bigint;not null;default:1"`
	CreatedAt            time.Time  `gorm:"column:created_at;not null;autoCreateTime"`
	UpdatedAt            *time.Time `gorm:"column:updated_at;autoUpdateTime:false"`
}

// DisplayText renders the record the way it is shown in game ("Sender: text").
func (m *Message) DisplayText() string {
	if m == nil {
		return ""
	}
	if m.TranslatedSenderName != "" {
		return m.TranslatedSenderName + ": " + m.TranslatedText
	}
	return m.TranslatedText
}

// QuestPlate maps quest_plates. Objectives and Summaries are the decoded forms of
// ObjectivesText and SummariesText; only the text columns are persisted.
type QuestPlate struct {
	ID                     int64      `gorm:"column:id;primaryKey;autoIncrement"`
	QuestID                string     `gorm:"column:quest_id;type:text;not null;default:''"`
	OriginalText           string     `gorm:"column:original_text;type:varchar(2500);not null"`
	OriginalLang           string     `gorm:"column:original_lang;type:text;not null"`
	TranslatedText         string     `gorm:"column:translated_text;type:text;not null"`
	OriginalQuestMessage   string     `gorm:"column:original_quest_message;type:varchar(2500);not null;default:''"`
	TranslatedQuestMessage string     `gorm:"column:translated_quest_message;type:text;not null;default:''"`
	ObjectivesText         string     `gorm:"column:objectives_text;type:text;not null;default:'{}'"`
	SummariesText          string     `gorm:"column:summaries_text;type:text;not null;default:'{}'"`
	TargetLang             string     `gorm:"column:target_lang;type:text;not null"`
	EngineID               int        `gorm:"column:engine_id;type:integer;not null"`
	RowVersion             int64      `gorm:"column:row_version;type:bigint;not null;default:1"`
	CreatedAt              time.Time  `gorm:"column:created_at;not null;autoCreateTime"`
	UpdatedAt              *time.Time `gorm:"column:updated_at;autoUpdateTime:false"`

	Objectives map[string]string `gorm:"-"`
	Summaries  map[string]string `gorm:"-"`
}

func (QuestPlate) TableName() string { return "quest_plates" }

// Clone returns a deep copy so callers can merge into it without touching cached rows.
func (q *QuestPlate) Clone() *QuestPlate {
	if q == nil {
		return nil
	}
	out := *q
	out.Objectives = copyFragments(q.Objectives)
	out.Summaries = copyFragments(q.Summaries)
	if q.UpdatedAt != nil {
		updated := *q.UpdatedAt
		out.UpdatedAt = &updated
	}
	return &out
}
