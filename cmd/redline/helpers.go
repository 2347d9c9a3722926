package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/hurttlocker/redline/internal/config"
	"github.com/hurttlocker/redline/internal/embed"
	"github.com/hurttlocker/redline/internal/index"
	"github.com/hurttlocker/redline/internal/pipeline"
	"github.com/hurttlocker/redline/internal/store"
)

// errNoGuides distinguishes an empty database from a failed lookup.
var errNoGuides = errors.New("no saved guides (run 'redline ingest <guide>' first)")

// resolveConfig layers the config file, environment variables, and the global
// CLI flags into one resolved configuration.
func resolveConfig(cliChunkSize string) (config.ResolvedConfig, error) {
	return config.ResolveConfig(config.ResolveOptions{
		ConfigPath:   globalConfigPath,
		CLIDBPath:    globalDBPath,
		CLIEmbed:     globalEmbed,
		CLIChunkSize: cliChunkSize,
	})
}

// buildEmbedder constructs the embedder described by the resolved config and
// returns it together with its canonical "provider/model" spec.
func buildEmbedder(resolved config.ResolvedConfig) (embed.Embedder, string, error) {
	cfg, err := embed.Resolve(resolved.EmbedSpec.Value, "")
	if err != nil {
		return nil, "", err
	}
	if resolved.EmbedAPIKey.Value != "" {
		cfg.APIKey = resolved.EmbedAPIKey.Value
	}
	embedder, err := embed.New(cfg)
	if err != nil {
		return nil, "", err
	}
	return embedder, cfg.Provider + "/" + cfg.Model, nil
}

// loadLatestSession loads the newest saved guide and its index snapshot.
func loadLatestSession(st *store.Store) (*store.Guide, *index.Snapshot, error) {
	ctx := context.Background()
	guide, err := st.LatestGuide(ctx)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil, errNoGuides
	}
	if err != nil {
		return nil, nil, fmt.Errorf("loading latest guide: %w", err)
	}
	snap, err := st.LoadSnapshot(ctx, guide.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("loading guide %q: %w", guide.Name, err)
	}
	return guide, snap, nil
}

// findGuide resolves a --guide selector: a numeric id first, otherwise a
// case-insensitive name match against saved guides, newest first.
func findGuide(ctx context.Context, st *store.Store, selector string) (*store.Guide, error) {
	if id, err := strconv.ParseInt(selector, 10, 64); err == nil {
		g, err := st.GetGuide(ctx, id)
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("no guide with id %d", id)
		}
		return g, err
	}
	guides, err := st.ListGuides(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing guides: %w", err)
	}
	for _, g := range guides {
		if strings.EqualFold(g.Name, selector) {
			return g, nil
		}
	}
	return nil, fmt.Errorf("no guide named %q", selector)
}

// restoreSession rebuilds a correction session around a saved guide. The
// guide's recorded embed spec wins over the configured one: query vectors must
// come from the same embedder that produced the stored ones. The configured
// API key still applies for remote providers.
func restoreSession(resolved config.ResolvedConfig, st *store.Store, selector string, events chan<- pipeline.Event) (*pipeline.Pipeline, *store.Guide, error) {
	ctx := context.Background()

	var guide *store.Guide
	var snap *index.Snapshot
	var err error
	if selector == "" {
		guide, snap, err = loadLatestSession(st)
		if err != nil {
			return nil, nil, err
		}
	} else {
		guide, err = findGuide(ctx, st, selector)
		if err != nil {
			return nil, nil, err
		}
		snap, err = st.LoadSnapshot(ctx, guide.ID)
		if err != nil {
			return nil, nil, fmt.Errorf("loading guide %q: %w", guide.Name, err)
		}
	}

	spec := guide.EmbedSpec
	if spec == "" {
		spec = resolved.EmbedSpec.Value
	}
	cfg, err := embed.Resolve(spec, "")
	if err != nil {
		return nil, nil, fmt.Errorf("guide %q: %w", guide.Name, err)
	}
	if resolved.EmbedAPIKey.Value != "" {
		cfg.APIKey = resolved.EmbedAPIKey.Value
	}
	embedder, err := embed.New(cfg)
	if err != nil {
		return nil, nil, err
	}

	ix, err := index.Restore(embedder, snap)
	if err != nil {
		return nil, nil, fmt.Errorf("restoring guide %q: %w", guide.Name, err)
	}
	p := pipeline.New(embedder, pipeline.Options{Events: events})
	p.Restore(guide.Name, ix)
	return p, guide, nil
}

// progressPrinter consumes pipeline events and prints progress lines to w.
// The returned stop function closes the channel and waits for the printer to
// drain; call it once the pipeline run is over.
func progressPrinter(w io.Writer) (chan pipeline.Event, func()) {
	events := make(chan pipeline.Event, 256)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for ev := range events {
			switch ev.Phase {
			case pipeline.PhaseSections:
				fmt.Fprintf(w, "  [%d/%d] %s\n", ev.Current, ev.Total, ev.Message)
			case pipeline.PhaseRules:
				fmt.Fprintf(w, "  %d rules extracted\n", ev.Total)
			case pipeline.PhaseEmbedding:
				if ev.Current == ev.Total {
					fmt.Fprintf(w, "  [%d/%d] vectors embedded\n", ev.Current, ev.Total)
				}
			case pipeline.PhaseCorrecting:
				fmt.Fprintf(w, "  [%d/%d] paragraphs\n", ev.Current, ev.Total)
			}
		}
	}()
	stop := func() {
		close(events)
		wg.Wait()
	}
	return events, stop
}

// formatBytes renders a byte count in 1024-based units.
func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(n)/float64(div), "KMGTPE"[exp])
}
