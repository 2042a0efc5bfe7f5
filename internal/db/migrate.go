package db

import (
	"context"
	"fmt"
)

func (p *Pool) autoMigrate(ctx context.Context) error {
	if err := p.ready(); err != nil {
		return err
	}

	for _, kind := range MessageKinds() {
		if err := p.gdb.WithContext(ctx).Table(kind.Table()).AutoMigrate(&Message{}); err != nil {
			return fmt.Errorf("gorm auto-migrate %s: %w", kind.Table(), err)
		}
	}
	if err := p.gdb.WithContext(ctx).AutoMigrate(&QuestPlate{}); err != nil {
		return fmt.Errorf("gorm auto-migrate quest_plates: %w", err)
	}

	for _, stmt := range lookupIndexStatements() {
		if err := p.gdb.WithContext(ctx).Exec(stmt.sql).Error; err != nil {
			return fmt.Errorf("execute %s: %w", stmt.name, err)
		}
	}
	return nil
}

type indexStatement struct {
	name string
	sql  string
}

// Index names are global in both sqlite and postgres, so every table gets its own
// explicitly named lookup index instead of a struct tag on the shared Message model.
func lookupIndexStatements() []indexStatement {
	out := make([]indexStatement, 0, len(AllKinds()))
	for _, kind := range MessageKinds() {
		name := "ux_" + kind.Table() + "_lookup"
		out = append(out, indexStatement{
			name: name,
			sql: fmt.Sprintf(
				"CREATE UNIQUE INDEX IF NOT EXISTS %s ON %s (sender_name, original_text, target_lang, engine_id)",
				name, kind.Table(),
			),
		})
	}
	out = append(out, indexStatement{
		name: "ux_quest_plates_lookup",
		sql:  "CREATE UNIQUE INDEX IF NOT EXISTS ux_quest_plates_lookup ON quest_plates (quest_id, original_text, target_lang, engine_id)",
	})
	return out
}
