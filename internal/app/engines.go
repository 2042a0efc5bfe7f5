package app

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"horse.fit/glossian/internal/cli"
	"horse.fit/glossian/internal/translation"
)

func runEngines(args []string) int {
	fs := flag.NewFlagSet("engines", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	format := fs.String("format", outputFormatTable, "Output format: table or json")

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

	cfg, logger, err := loadRuntime(envLoader, "")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	registry, err := translation.NewRegistryFromConfig(cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to configure translation engines: %v\n", err)
		return 1
	}

	infos := registry.Describe()
	if outputFormat == outputFormatJSON {
		if err := printJSON(infos); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to write output: %v\n", err)
			return 1
		}
		return 0
	}

	rows := make([][]string, 0, len(infos))
	for _, info := range infos {
		marker := ""
		if info.Default {
			marker = "*"
		}
		rows = append(rows, []string{
			strconv.Itoa(info.ID),
			info.Name + marker,
			info.Policy,
			strings.Join(info.Languages, ","),
		})
	}
	if err := writeTable([]string{"ID", "ENGINE", "POLICY", "TARGET LANGUAGES"}, rows); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to write output: %v\n", err)
		return 1
	}
	return 0
}
