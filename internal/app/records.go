package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"horse.fit/glossian/internal/cli"
	"horse.fit/glossian/internal/db"
)

const maxCellRunes = 48

func runRecords(args []string) int {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "Usage: glossian records <kind> [flags]")
		return 2
	}

	kind, err := db.ParseKind(args[0])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}

	fs := flag.NewFlagSet("records "+string(kind), flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 30*time.Second, "Command timeout")
	limit := fs.Int("limit", 50, "Maximum rows to print (0 for all)")
	format := fs.String("format", outputFormatTable, "Output format: table or json")

	if err := fs.Parse(args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	outputFormat, err := parseOutputFormat(*format, outputFormatTable)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}

	cfg, logger, err := loadRuntime(envLoader, "")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		logger.Error().Err(err).Msg("records failed to open store")
		fmt.Fprintf(os.Stderr, "Failed to connect to database: %v\n", err)
		return 1
	}
	defer pool.Close()

	if kind == db.KindQuestPlate {
		return printQuestPlates(ctx, pool, *limit, outputFormat)
	}
	return printMessages(ctx, pool, kind, *limit, outputFormat)
}

func printMessages(ctx context.Context, pool *db.Pool, kind db.Kind, limit int, format string) int {
	rows, err := pool.ListMessages(ctx, kind)
	if err != nil {
		fmt.Fprintf(os.Stderr, "List %s failed: %v\n", kind, err)
		return 1
	}
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}

	if format == outputFormatJSON {
		if err := printJSON(rows); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to write output: %v\n", err)
			return 1
		}
		return 0
	}

	table := make([][]string, 0, len(rows))
	for i := range rows {
		row := &rows[i]
		table = append(table, []string{
			strconv.FormatInt(row.ID, 10),
			strconv.Itoa(row.EngineID),
			row.TargetLang,
			truncateCell(row.SenderName),
			truncateCell(row.OriginalText),
			truncateCell(row.DisplayText()),
		})
	}
	if err := writeTable([]string{"ID", "ENGINE", "LANG", "SENDER", "ORIGINAL", "TRANSLATED"}, table); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to write output: %v\n", err)
		return 1
	}
	return 0
}

func printQuestPlates(ctx context.Context, pool *db.Pool, limit int, format string) int {
	plates, err := pool.ListQuestPlates(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "List quest plates failed: %v\n", err)
		return 1
	}
	if limit > 0 && len(plates) > limit {
		plates = plates[:limit]
	}

	if format == outputFormatJSON {
		if err := printJSON(plates); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to write output: %v\n", err)
			return 1
		}
		return 0
	}

	table := make([][]string, 0, len(plates))
	for i := range plates {
		plate := &plates[i]
		table = append(table, []string{
			strconv.FormatInt(plate.ID, 10),
			plate.QuestID,
			strconv.Itoa(plate.EngineID),
			truncateCell(plate.OriginalText),
			truncateCell(plate.TranslatedText),
			strconv.Itoa(len(plate.Objectives)),
			strconv.Itoa(len(plate.Summaries)),
			strconv.FormatInt(plate.RowVersion, 10),
		})
	}
	if err := writeTable([]string{"ID", "QUEST", "ENGINE", "ORIGINAL", "TRANSLATED", "OBJECTIVES", "SUMMARIES", "VERSION"}, table); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to write output: %v\n", err)
		return 1
	}
	return 0
}

func truncateCell(value string) string {
	value = strings.ReplaceAll(value, "\n", " ")
	if utf8.RuneCountInString(value) <= maxCellRunes {
		return value
	}
	runes := []rune(value)
	return string(runes[:maxCellRunes-1]) + "…"
}
