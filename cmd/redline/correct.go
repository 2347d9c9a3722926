package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/hurttlocker/redline/internal/docio"
	"github.com/hurttlocker/redline/internal/pipeline"
	"github.com/hurttlocker/redline/internal/store"
)

// runCorrect corrects a document against a saved guide. Corrected text goes
// to stdout (or --out) with <change> markers intact; --report keeps the full
// audit trail as JSON for 'redline review'.
func runCorrect(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: redline correct <document> [--out <path>] [--report <path>] [--guide <id|name>] [--json]")
	}

	path := ""
	outPath := ""
	reportPath := ""
	guideSel := ""
	asJSON := false

	for i := 0; i < len(args); i++ {
		switch {
		case args[i] == "--out" && i+1 < len(args):
			i++
			outPath = args[i]
		case strings.HasPrefix(args[i], "--out="):
			outPath = strings.TrimPrefix(args[i], "--out=")
		case args[i] == "--report" && i+1 < len(args):
			i++
			reportPath = args[i]
		case strings.HasPrefix(args[i], "--report="):
			reportPath = strings.TrimPrefix(args[i], "--report=")
		case args[i] == "--guide" && i+1 < len(args):
			i++
			guideSel = args[i]
		case strings.HasPrefix(args[i], "--guide="):
			guideSel = strings.TrimPrefix(args[i], "--guide=")
		case args[i] == "--json":
			asJSON = true
		case strings.HasPrefix(args[i], "-"):
			return fmt.Errorf("unknown flag: %s", args[i])
		case path != "":
			return fmt.Errorf("unexpected argument: %s", args[i])
		default:
			path = args[i]
		}
	}
	if path == "" {
		return fmt.Errorf("no document specified")
	}

	resolved, err := resolveConfig("")
	if err != nil {
		return err
	}
	st, err := store.Open(resolved.DBPath.Value)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer st.Close()

	events, stop := progressPrinter(os.Stderr)
	p, guide, err := restoreSession(resolved, st, guideSel, events)
	if err != nil {
		stop()
		return err
	}

	text, err := docio.ExtractFile(path)
	if err != nil {
		stop()
		return err
	}

	fmt.Fprintf(os.Stderr, "Correcting %s against guide %q...\n", path, guide.Name)
	result, err := p.CorrectDocument(context.Background(), text)
	stop()
	if err != nil {
		return err
	}

	if reportPath != "" {
		if err := writeReport(reportPath, result); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "Report written to %s\n", reportPath)
	}

	switch {
	case asJSON:
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	case outPath != "":
		if err := writeCorrected(outPath, result.CorrectedText); err != nil {
			return err
		}
		fmt.Printf("Corrected document written to %s (%d of %d paragraphs changed)\n",
			outPath, len(result.Corrections), result.Paragraphs)
	default:
		fmt.Println(result.CorrectedText)
		fmt.Fprintf(os.Stderr, "\n%d of %d paragraphs changed\n", len(result.Corrections), result.Paragraphs)
	}
	return nil
}

// writeCorrected writes the corrected document through the plain-text writer.
func writeCorrected(path, corrected string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}

	var paragraphs []string
	if corrected != "" {
		paragraphs = strings.Split(corrected, "\n\n")
	}
	w := &docio.PlainWriter{}
	if err := w.Write(f, paragraphs); err != nil {
		f.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return f.Close()
}

// writeReport serializes the full correction result for later review.
func writeReport(path string, result *pipeline.DocumentResult) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding report: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("writing report: %w", err)
	}
	return nil
}
