package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"horse.fit/glossian/internal/cli"
	"horse.fit/glossian/internal/db"
	"horse.fit/glossian/internal/dispatch"
)

// stringList collects a repeatable string flag.
type stringList []string

func (l *stringList) String() string { return strings.Join(*l, ", ") }

func (l *stringList) Set(value string) error {
	*l = append(*l, value)
	return nil
}

func runQuest(args []string) int {
	fs := flag.NewFlagSet("quest", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 2*time.Minute, "Command timeout")
	questID := fs.String("id", "", "Quest id")
	name := fs.String("name", "", "Quest name")
	message := fs.String("message", "", "Quest message")
	engine := fs.String("engine", "", "Translation engine override (google, deepl, chatgpt)")
	format := fs.String("format", outputFormatTable, "Output format: table or json")
	var objectives, summaries stringList
	fs.Var(&objectives, "objective", "Quest objective (repeatable)")
	fs.Var(&summaries, "summary", "Quest summary (repeatable)")

	if err := fs.Parse(args); err != nil {
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
	if strings.TrimSpace(*questID) == "" || strings.TrimSpace(*name) == "" {
		fmt.Fprintln(os.Stderr, "--id and --name are required")
		return 2
	}

	cfg, logger, err := loadRuntime(envLoader, *engine)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	p, err := openPipeline(ctx, cfg, logger)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer p.Close()

	d, err := p.dispatchers.Get(db.KindQuestPlate)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	result, err := d.ProcessQuest(ctx, dispatch.QuestRequest{
		QuestID:    *questID,
		QuestName:  *name,
		Message:    *message,
		Objectives: objectives,
		Summaries:  summaries,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Quest translate failed: %v\n", err)
		return 1
	}

	if outputFormat == outputFormatJSON {
		if err := printJSON(result); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to write output: %v\n", err)
			return 1
		}
		return 0
	}

	rows := [][]string{{"name", *name, result.QuestName}}
	if result.Message != "" {
		rows = append(rows, []string{"message", *message, result.Message})
	}
	rows = append(rows, fragmentRows("objective", result.Objectives)...)
	rows = append(rows, fragmentRows("summary", result.Summaries)...)

	fmt.Printf("Outcome: %s (record %d)\n", result.Outcome, result.RecordID)
	if err := writeTable([]string{"PART", "ORIGINAL", "TRANSLATED"}, rows); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to write output: %v\n", err)
		return 1
	}
	return 0
}

func fragmentRows(part string, fragments map[string]string) [][]string {
	keys := make([]string, 0, len(fragments))
	for original := range fragments {
		keys = append(keys, original)
	}
	sort.Strings(keys)

	rows := make([][]string, 0, len(keys))
	for _, original := range keys {
		rows = append(rows, []string{part, original, fragments[original]})
	}
	return rows
}
