package app

import (
	"fmt"
	"os"
	"strings"
)

// Run executes the CLI command and returns a process exit code.
func Run(args []string) int {
	if len(args) == 0 {
		printUsage()
		return 2
	}

	switch strings.ToLower(strings.TrimSpace(args[0])) {
	case "help", "--help", "-h":
		printUsage()
		return 0
	case "health":
		return runHealth(args[1:])
	case "serve":
		return runServe(args[1:])
	case "translate":
		return runTranslate(args[1:])
	case "quest":
		return runQuest(args[1:])
	case "records":
		return runRecords(args[1:])
	case "engines":
		return runEngines(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", args[0])
		printUsage()
		return 2
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "glossian CLI")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Usage:")
	fmt.Fprintln(os.Stderr, "  glossian <command> [flags]")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Commands:")
	fmt.Fprintln(os.Stderr, "  health     Verify translation store connectivity")
	fmt.Fprintln(os.Stderr, "  serve      Start the local bridge and surface poller")
	fmt.Fprintln(os.Stderr, "  translate  Translate one UI text of a given kind")
	fmt.Fprintln(os.Stderr, "  quest      Translate a quest plate")
	fmt.Fprintln(os.Stderr, "  records    List cached translations of a kind")
	fmt.Fprintln(os.Stderr, "  engines    List configured translation engines")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Use \"glossian <command> -h\" for command-specific flags.")
}
