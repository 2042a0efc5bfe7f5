package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"horse.fit/glossian/internal/cli"
	"horse.fit/glossian/internal/db"
	"horse.fit/glossian/internal/dispatch"
	"horse.fit/glossian/internal/translation"
)

func runTranslate(args []string) int {
	if len(args) == 0 {
		printTranslateUsage()
		return 2
	}

	kind, err := db.ParseKind(args[0])
	if err != nil || kind == db.KindQuestPlate {
		fmt.Fprintf(os.Stderr, "Unknown translate kind: %s\n\n", args[0])
		printTranslateUsage()
		return 2
	}

	fs := flag.NewFlagSet("translate "+string(kind), flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", time.Minute, "Command timeout")
	sender := fs.String("sender", "", "Speaker name (talk, battle_talk, subtitle)")
	engine := fs.String("engine", "", "Translation engine override (google, deepl, chatgpt)")
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

	text := strings.Join(fs.Args(), " ")
	if strings.TrimSpace(text) == "" {
		fmt.Fprintln(os.Stderr, "translate requires the text to translate")
		printTranslateUsage()
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

	d, err := p.dispatchers.Get(kind)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	result, err := d.Process(ctx, dispatch.Request{Text: text, Sender: *sender})
	if err != nil {
		var backendErr *translation.BackendError
		if errors.As(err, &backendErr) {
			fmt.Fprintf(os.Stderr, "Translation backend failed: %v\n", err)
		} else {
			fmt.Fprintf(os.Stderr, "Translate failed: %v\n", err)
		}
		return 1
	}

	if outputFormat == outputFormatJSON {
		if err := printJSON(result); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to write output: %v\n", err)
			return 1
		}
		return 0
	}

	if err := writeTable(
		[]string{"OUTCOME", "ENGINE", "TEXT"},
		[][]string{{string(result.Outcome), result.Engine, result.Display()}},
	); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to write output: %v\n", err)
		return 1
	}
	return 0
}

func printTranslateUsage() {
	fmt.Fprintln(os.Stderr, "Usage:")
	fmt.Fprintln(os.Stderr, "  glossian translate <kind> [flags] <text>")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Kinds:")
	for _, kind := range db.MessageKinds() {
		fmt.Fprintf(os.Stderr, "  %s\n", kind)
	}
}
