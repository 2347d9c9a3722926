package main

import (
	"fmt"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"
	"github.com/mark3labs/mcp-go/server"

	"github.com/hurttlocker/redline/internal/embed"
	"github.com/hurttlocker/redline/internal/index"
	"github.com/hurttlocker/redline/internal/mcp"
	"github.com/hurttlocker/redline/internal/pipeline"
	"github.com/hurttlocker/redline/internal/store"
	"github.com/hurttlocker/redline/internal/tui"
)

const version = "0.1.0-dev"

// Global flags, stripped out of the argument list before command dispatch.
var (
	globalDBPath     string
	globalConfigPath string
	globalEmbed      string
	globalVerbose    bool
)

func main() {
	_ = godotenv.Load()

	args := parseGlobalFlags(os.Args[1:])
	if len(args) == 0 {
		printUsage()
		os.Exit(0)
	}

	var err error
	switch args[0] {
	case "ingest":
		err = runIngest(args[1:])
	case "correct":
		err = runCorrect(args[1:])
	case "rules":
		err = runRules(args[1:])
	case "search":
		err = runSearch(args[1:])
	case "stats":
		err = runStats(args[1:])
	case "review":
		err = runReview(args[1:])
	case "demo":
		err = runDemo(args[1:])
	case "mcp":
		err = runMCP(args[1:])
	case "version", "--version", "-v":
		fmt.Printf("redline %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", args[0])
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// parseGlobalFlags strips flags that apply to every command out of args and
// returns the rest. Both "--db path" and "--db=path" forms are accepted.
func parseGlobalFlags(args []string) []string {
	filtered := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		switch {
		case args[i] == "--db" && i+1 < len(args):
			i++
			globalDBPath = args[i]
		case strings.HasPrefix(args[i], "--db="):
			globalDBPath = strings.TrimPrefix(args[i], "--db=")
		case args[i] == "--config" && i+1 < len(args):
			i++
			globalConfigPath = args[i]
		case strings.HasPrefix(args[i], "--config="):
			globalConfigPath = strings.TrimPrefix(args[i], "--config=")
		case args[i] == "--embed" && i+1 < len(args):
			i++
			globalEmbed = args[i]
		case strings.HasPrefix(args[i], "--embed="):
			globalEmbed = strings.TrimPrefix(args[i], "--embed=")
		case args[i] == "--verbose":
			globalVerbose = true
		default:
			filtered = append(filtered, args[i])
		}
	}
	return filtered
}

func runReview(args []string) error {
	path := ""
	for _, arg := range args {
		switch {
		case strings.HasPrefix(arg, "-"):
			return fmt.Errorf("unknown flag: %s", arg)
		case path != "":
			return fmt.Errorf("unexpected argument: %s", arg)
		default:
			path = arg
		}
	}
	if path == "" {
		return fmt.Errorf("usage: redline review <report.json>")
	}

	result, err := tui.LoadReport(path)
	if err != nil {
		return err
	}
	if _, err := tea.NewProgram(tui.New(result)).Run(); err != nil {
		return fmt.Errorf("running review ui: %w", err)
	}
	return nil
}

// runMCP serves the correction session over MCP stdio. The latest persisted
// guide, when one exists, is restored so correct_text works immediately;
// ingest_guide replaces it for the life of the process.
func runMCP(args []string) error {
	noDB := false
	for _, arg := range args {
		switch {
		case arg == "--no-db":
			noDB = true
		case strings.HasPrefix(arg, "-"):
			return fmt.Errorf("unknown flag: %s", arg)
		default:
			return fmt.Errorf("unexpected argument: %s", arg)
		}
	}

	resolved, err := resolveConfig("")
	if err != nil {
		return err
	}
	embedder, embedSpec, err := buildEmbedder(resolved)
	if err != nil {
		return err
	}
	p := pipeline.New(embedder, pipeline.Options{ChunkSize: resolved.ChunkSizeValue()})

	var st *store.Store
	if !noDB {
		st, err = store.Open(resolved.DBPath.Value)
		if err != nil {
			return fmt.Errorf("opening store: %w", err)
		}
		defer st.Close()

		guide, snap, err := loadLatestSession(st)
		if err != nil && err != errNoGuides {
			return err
		}
		if err == nil {
			ix, err := index.Restore(embedder, snap)
			if err != nil {
				return fmt.Errorf("restoring guide %q: %w", guide.Name, err)
			}
			p.Restore(guide.Name, ix)
			fmt.Fprintf(os.Stderr, "Restored guide %q (%d rules, %d chunks)\n", guide.Name, guide.Rules, guide.Chunks)
		}
	}

	srv := mcp.NewServer(mcp.ServerConfig{
		Pipeline:  p,
		Store:     st,
		EmbedSpec: embedSpec,
		Version:   version,
	})
	fmt.Fprintln(os.Stderr, "Redline MCP server listening on stdio")
	return server.ServeStdio(srv)
}

func printUsage() {
	fmt.Printf(`redline %s — Style-guide-driven correction for clinical study reports

Usage:
  redline <command> [arguments]

Commands:
  ingest <guide>      Process a style guide into rules and an embedding index
  correct <document>  Correct a document against the ingested guide
  rules               List extracted rules from the saved guide
  search <query>      Search guide rules and passages
  stats               Show session and database statistics
  review <report>     Browse a correction report in the terminal
  demo                Run an end-to-end demo on bundled samples
  mcp                 Serve the session as MCP tools over stdio
  version             Print version

Ingest Flags:
  --name <name>       Guide name (default: file name)
  --chunk-size <n>    Max guide chunk size in characters
  -n, --dry-run       Show extraction results without saving

Correct Flags:
  --out <path>        Write corrected text to a file instead of stdout
  --report <path>     Write the full correction report as JSON
  --guide <id|name>   Correct against a specific saved guide

Global Flags:
  --db <path>         Database path (default: %s)
  --config <path>     Config file (default: ~/.redline/config.yaml)
  --embed <spec>      Embedding provider/model (default: %s)
  --verbose           More detail in command output
  -h, --help          Show this help message
  -v, --version       Print version

Documentation:
  https://github.com/hurttlocker/redline
`, version, store.DefaultDBPath, embed.DefaultSpec)
}
