package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/hurttlocker/redline/internal/config"
	"github.com/hurttlocker/redline/internal/index"
	"github.com/hurttlocker/redline/internal/rules"
	"github.com/hurttlocker/redline/internal/store"
)

// runRules lists the rules extracted from a saved guide, grouped by category.
func runRules(args []string) error {
	category := ""
	ruleType := ""
	guideSel := ""
	asJSON := false

	for i := 0; i < len(args); i++ {
		switch {
		case args[i] == "--category" && i+1 < len(args):
			i++
			category = args[i]
		case strings.HasPrefix(args[i], "--category="):
			category = strings.TrimPrefix(args[i], "--category=")
		case args[i] == "--type" && i+1 < len(args):
			i++
			ruleType = args[i]
		case strings.HasPrefix(args[i], "--type="):
			ruleType = strings.TrimPrefix(args[i], "--type=")
		case args[i] == "--guide" && i+1 < len(args):
			i++
			guideSel = args[i]
		case strings.HasPrefix(args[i], "--guide="):
			guideSel = strings.TrimPrefix(args[i], "--guide=")
		case args[i] == "--json":
			asJSON = true
		case strings.HasPrefix(args[i], "-"):
			return fmt.Errorf("unknown flag: %s", args[i])
		default:
			return fmt.Errorf("unexpected argument: %s", args[i])
		}
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

	guide, snap, err := loadGuideSnapshot(st, guideSel)
	if err != nil {
		return err
	}

	filtered := rules.Filter(snap.Rules, category, ruleType)

	if asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(filtered)
	}

	fmt.Printf("Guide %q (id %d)\n\n", guide.Name, guide.ID)
	if len(filtered) == 0 {
		fmt.Println("No rules match.")
		return nil
	}

	grouped := rules.Categorize(filtered)
	for _, c := range rules.Categories() {
		group := grouped[c]
		if len(group) == 0 {
			continue
		}
		fmt.Printf("%s (%d)\n", c, len(group))
		for _, r := range group {
			fmt.Printf("  [%-7s] %q -> %q\n", r.Type, r.Pattern, r.Replacement)
			if when := r.Context["when"]; when != "" {
				fmt.Printf("            when: %s\n", when)
			}
		}
		fmt.Println()
	}
	fmt.Printf("%d rules\n", len(filtered))
	return nil
}

// runSearch embeds a query and retrieves the nearest rules and guide passages.
func runSearch(args []string) error {
	var words []string
	limit := 5
	guideSel := ""
	asJSON := false

	for i := 0; i < len(args); i++ {
		switch {
		case args[i] == "--limit" && i+1 < len(args):
			i++
			fmt.Sscanf(args[i], "%d", &limit)
		case strings.HasPrefix(args[i], "--limit="):
			fmt.Sscanf(strings.TrimPrefix(args[i], "--limit="), "%d", &limit)
		case args[i] == "--guide" && i+1 < len(args):
			i++
			guideSel = args[i]
		case strings.HasPrefix(args[i], "--guide="):
			guideSel = strings.TrimPrefix(args[i], "--guide=")
		case args[i] == "--json":
			asJSON = true
		case strings.HasPrefix(args[i], "-"):
			return fmt.Errorf("unknown flag: %s", args[i])
		default:
			words = append(words, args[i])
		}
	}
	query := strings.TrimSpace(strings.Join(words, " "))
	if query == "" {
		return fmt.Errorf("usage: redline search <query> [--limit N] [--guide <id|name>] [--json]")
	}
	if limit <= 0 {
		limit = 5
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

	p, guide, err := restoreSession(resolved, st, guideSel, nil)
	if err != nil {
		return err
	}

	hits, err := p.Search(context.Background(), query, limit)
	if err != nil {
		return err
	}

	if asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(hits)
	}

	fmt.Printf("Guide %q, query %q\n\n", guide.Name, query)
	if len(hits) == 0 {
		fmt.Println("No matches.")
		return nil
	}

	printedRules := false
	printedChunks := false
	for _, h := range hits {
		switch h.Kind {
		case "rule":
			if !printedRules {
				fmt.Println("Rules:")
				printedRules = true
			}
			fmt.Printf("  %.2f  %q -> %q  [%s]\n", h.Confidence, h.Text, h.Replacement, h.RuleType)
		case "chunk":
			if !printedChunks {
				if printedRules {
					fmt.Println()
				}
				fmt.Println("Guide passages:")
				printedChunks = true
			}
			fmt.Printf("  %.2f  [%s] %s\n", h.Confidence, h.Section, truncate(h.Text, 100))
		}
	}
	return nil
}

// runStats prints database and latest-guide statistics.
func runStats(args []string) error {
	asJSON := false
	for _, arg := range args {
		switch {
		case arg == "--json":
			asJSON = true
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
	st, err := store.Open(resolved.DBPath.Value)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer st.Close()

	ctx := context.Background()
	stats, err := st.Stats(ctx)
	if err != nil {
		return err
	}
	guides, err := st.ListGuides(ctx)
	if err != nil {
		return err
	}

	if asJSON {
		return printStatsJSON(st, stats, guides)
	}

	fmt.Printf("Database: %s (%s)\n", st.Path(), formatBytes(stats.DBSizeBytes))
	fmt.Printf("Guides: %d   Rules: %d   Chunks: %d\n", stats.Guides, stats.Rules, stats.Chunks)

	if len(guides) == 0 {
		fmt.Println("\nNo guides saved yet. Run 'redline ingest <guide>' to get started.")
		return nil
	}

	latest := guides[0]
	fmt.Printf("\nLatest guide: %q (id %d, %s, %d sections, created %s)\n",
		latest.Name, latest.ID, latest.EmbedSpec, latest.Sections,
		latest.CreatedAt.Format("2006-01-02 15:04:05"))

	snap, err := st.LoadSnapshot(ctx, latest.ID)
	if err != nil {
		return err
	}
	grouped := rules.Categorize(snap.Rules)
	fmt.Println("  Rules by category:")
	for _, c := range rules.Categories() {
		if n := len(grouped[c]); n > 0 {
			fmt.Printf("    %-14s %d\n", c, n)
		}
	}

	if len(guides) > 1 {
		fmt.Println("\nAll guides:")
		for _, g := range guides {
			fmt.Printf("  #%-3d %-20s %3d rules %3d chunks  %s\n",
				g.ID, g.Name, g.Rules, g.Chunks, g.CreatedAt.Format("2006-01-02"))
		}
	}

	if globalVerbose {
		fmt.Println("\nConfiguration:")
		printResolved("db_path", resolved.DBPath)
		printResolved("embed", resolved.EmbedSpec)
		printResolved("chunk_size", resolved.ChunkSize)
	}
	return nil
}

// loadGuideSnapshot loads a guide (latest when selector is empty) with its
// snapshot.
func loadGuideSnapshot(st *store.Store, selector string) (*store.Guide, *index.Snapshot, error) {
	if selector == "" {
		return loadLatestSession(st)
	}
	ctx := context.Background()
	guide, err := findGuide(ctx, st, selector)
	if err != nil {
		return nil, nil, err
	}
	snap, err := st.LoadSnapshot(ctx, guide.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("loading guide %q: %w", guide.Name, err)
	}
	return guide, snap, nil
}

// statsGuide shapes guide metadata for JSON output.
type statsGuide struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	EmbedSpec string `json:"embed_spec"`
	Sections  int    `json:"sections"`
	Rules     int    `json:"rules"`
	Chunks    int    `json:"chunks"`
	CreatedAt string `json:"created_at"`
}

func printStatsJSON(st *store.Store, stats *store.Stats, guides []*store.Guide) error {
	out := map[string]interface{}{
		"db_path":       st.Path(),
		"db_size_bytes": stats.DBSizeBytes,
		"guides":        stats.Guides,
		"rules":         stats.Rules,
		"chunks":        stats.Chunks,
	}
	list := make([]statsGuide, 0, len(guides))
	for _, g := range guides {
		list = append(list, statsGuide{
			ID:        g.ID,
			Name:      g.Name,
			EmbedSpec: g.EmbedSpec,
			Sections:  g.Sections,
			Rules:     g.Rules,
			Chunks:    g.Chunks,
			CreatedAt: g.CreatedAt.Format("2006-01-02 15:04:05"),
		})
	}
	out["guide_list"] = list

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

// printResolved prints one configuration value with its provenance.
func printResolved(name string, v config.ResolvedValue) {
	from := v.From
	if from == "" {
		from = string(v.Source)
	}
	value := v.Value
	if value == "" {
		value = "(default)"
	}
	fmt.Printf("  %-12s %-32s %s\n", name, value, from)
}

// truncate shortens s to at most n bytes, marking the cut.
func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	if len(s) <= n {
		return s
	}
	return s[:n-1] + "…"
}
