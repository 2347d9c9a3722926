package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/hurttlocker/redline/internal/docio"
	"github.com/hurttlocker/redline/internal/pipeline"
	"github.com/hurttlocker/redline/internal/rules"
	"github.com/hurttlocker/redline/internal/store"
)

// runIngest processes a style guide into rules and an embedding index, then
// saves the session so later corrections can reload it.
func runIngest(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: redline ingest <guide-file> [--name <name>] [--chunk-size <n>] [--dry-run]")
	}

	path := ""
	name := ""
	chunkSize := ""
	dryRun := false

	for i := 0; i < len(args); i++ {
		switch {
		case args[i] == "--name" && i+1 < len(args):
			i++
			name = args[i]
		case strings.HasPrefix(args[i], "--name="):
			name = strings.TrimPrefix(args[i], "--name=")
		case args[i] == "--chunk-size" && i+1 < len(args):
			i++
			chunkSize = args[i]
		case strings.HasPrefix(args[i], "--chunk-size="):
			chunkSize = strings.TrimPrefix(args[i], "--chunk-size=")
		case args[i] == "--dry-run" || args[i] == "-n":
			dryRun = true
		case strings.HasPrefix(args[i], "-"):
			return fmt.Errorf("unknown flag: %s", args[i])
		case path != "":
			return fmt.Errorf("unexpected argument: %s", args[i])
		default:
			path = args[i]
		}
	}
	if path == "" {
		return fmt.Errorf("no guide file specified")
	}
	if chunkSize != "" {
		if n, err := strconv.Atoi(chunkSize); err != nil || n <= 0 {
			return fmt.Errorf("--chunk-size must be a positive integer, got %q", chunkSize)
		}
	}

	resolved, err := resolveConfig(chunkSize)
	if err != nil {
		return err
	}
	embedder, embedSpec, err := buildEmbedder(resolved)
	if err != nil {
		return err
	}

	text, err := docio.ExtractFile(path)
	if err != nil {
		return err
	}
	if name == "" {
		name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}

	if dryRun {
		fmt.Println("Dry run mode — no changes will be written")
		fmt.Println()
	}
	fmt.Printf("Ingesting %s...\n", path)

	events, stop := progressPrinter(os.Stderr)
	p := pipeline.New(embedder, pipeline.Options{ChunkSize: resolved.ChunkSizeValue(), Events: events})

	ctx := context.Background()
	result, err := p.IngestGuide(ctx, name, text)
	stop()
	if err != nil {
		return err
	}

	fmt.Println()
	fmt.Printf("Guide %q: %d sections, %d chunks, %d rules\n",
		result.Name, result.Sections, result.Chunks, len(result.Rules))
	byCategory := rules.Categorize(result.Rules)
	for _, c := range rules.Categories() {
		if n := len(byCategory[c]); n > 0 {
			fmt.Printf("  %-14s %d\n", c, n)
		}
	}

	if dryRun {
		return nil
	}

	st, err := store.Open(resolved.DBPath.Value)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer st.Close()

	id, err := st.SaveGuide(ctx, result.Name, embedSpec, embedder.Dimensions(), result.Sections, p.Index().Snapshot())
	if err != nil {
		return fmt.Errorf("saving guide: %w", err)
	}

	fmt.Println()
	fmt.Printf("Saved as guide %d in %s\n", id, st.Path())
	fmt.Println("Next: redline correct <document>")
	return nil
}
