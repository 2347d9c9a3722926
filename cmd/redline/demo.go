package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

func runDemo(args []string) error {
	fs := flag.NewFlagSet("demo", flag.ContinueOnError)
	dbPathFlag := fs.String("db", "", "Path to demo SQLite DB (default: temp file)")
	demoDirFlag := fs.String("dir", "", "Directory for demo files (default: temp dir)")
	cleanup := fs.Bool("cleanup", false, "Delete demo files/DB after completion")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if len(fs.Args()) > 0 {
		return fmt.Errorf("usage: redline demo [--db <path>] [--dir <path>] [--cleanup]")
	}

	var err error
	demoDir := strings.TrimSpace(*demoDirFlag)
	if demoDir == "" {
		demoDir, err = os.MkdirTemp("", "redline-demo-")
		if err != nil {
			return fmt.Errorf("creating temp demo directory: %w", err)
		}
	} else {
		demoDir = expandUserPath(demoDir)
		if err := os.MkdirAll(demoDir, 0o755); err != nil {
			return fmt.Errorf("creating demo directory: %w", err)
		}
	}

	dbPath := strings.TrimSpace(*dbPathFlag)
	if dbPath == "" {
		dbPath = filepath.Join(os.TempDir(), fmt.Sprintf("redline-demo-%d.db", time.Now().UnixNano()))
	} else {
		dbPath = expandUserPath(dbPath)
	}

	guidePath, reportPath, err := createDemoFiles(demoDir)
	if err != nil {
		return err
	}
	reportJSON := filepath.Join(demoDir, "report.json")

	fmt.Println("🧪 Redline demo")
	fmt.Printf("Demo files: %s\n", demoDir)
	fmt.Printf("Demo DB:    %s\n\n", dbPath)

	oldDBPath := globalDBPath
	globalDBPath = dbPath
	defer func() { globalDBPath = oldDBPath }()

	fmt.Println("Step 1/3: Ingest the sample style guide")
	if err := runIngest([]string{guidePath, "--name", "demo-style"}); err != nil {
		if *cleanup {
			_ = cleanupDemoArtifacts(demoDir, dbPath)
		}
		return fmt.Errorf("demo ingest failed: %w", err)
	}

	fmt.Println("\nStep 2/3: Correct the sample report")
	fmt.Println()
	if err := runCorrect([]string{reportPath, "--report", reportJSON}); err != nil {
		return fmt.Errorf("demo correct failed: %w", err)
	}

	fmt.Println("\nStep 3/3: Session stats")
	if err := runStats([]string{}); err != nil {
		return fmt.Errorf("demo stats failed: %w", err)
	}

	fmt.Println("\n✅ Demo complete.")
	fmt.Println("Your turn:")
	fmt.Printf("  redline --db %s review %s\n", dbPath, reportJSON)
	fmt.Printf("  redline --db %s search \"adverse event\"\n", dbPath)
	fmt.Printf("  redline --db %s correct <your-document>\n", dbPath)
	if !*cleanup {
		fmt.Println("\nInspection paths (kept):")
		fmt.Printf("  files: %s\n", demoDir)
		fmt.Printf("  db:    %s\n", dbPath)
		fmt.Println("Use --cleanup to auto-delete these next run.")
	} else {
		if err := cleanupDemoArtifacts(demoDir, dbPath); err != nil {
			return fmt.Errorf("demo cleanup failed: %w", err)
		}
		fmt.Println("\nTemporary demo files cleaned up.")
	}

	return nil
}

// createDemoFiles writes the bundled miniature style guide and report excerpt
// into dir and returns their paths.
func createDemoFiles(dir string) (guidePath, reportPath string, err error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", "", fmt.Errorf("creating demo dir: %w", err)
	}

	type fileDef struct {
		name    string
		content string
	}

	guide := fileDef{
		name: "style-guide.md",
		content: `# Terminology

Use "Subject" instead of "patient" when referring to trial participants.
Use "adverse event" instead of "side effect" in safety sections. Example: two Subjects reported an adverse event.

# Numbers and Units

Numbers below ten should be spelled out in running text.
Always include a space between a value and its unit. Example: 100 mg twice daily.

# Formatting

Write phase designations as "Phase 1", never roman numerals.
Section headings should be in title case.
`,
	}
	report := fileDef{
		name: "report.txt",
		content: `The patient was enrolled in phase i of the study and received 100mg of the study drug once daily.

3 side effects were reported during the first treatment cycle.

All participants completed the scheduled visits without protocol deviations.
`,
	}

	for _, d := range []fileDef{guide, report} {
		path := filepath.Join(dir, d.name)
		if err := os.WriteFile(path, []byte(d.content), 0o644); err != nil {
			return "", "", fmt.Errorf("writing %s: %w", d.name, err)
		}
	}

	return filepath.Join(dir, guide.name), filepath.Join(dir, report.name), nil
}

func cleanupDemoArtifacts(demoDir, dbPath string) error {
	_ = os.RemoveAll(demoDir)

	paths := []string{dbPath, dbPath + "-wal", dbPath + "-shm"}
	for _, p := range paths {
		if p == "" {
			continue
		}
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return nil
}

// expandUserPath expands a leading ~ to the home directory.
func expandUserPath(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, strings.TrimPrefix(path, "~"))
	}
	return path
}
