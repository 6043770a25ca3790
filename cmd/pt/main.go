package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/vanderheijden86/peektree/pkg/config"
	"github.com/vanderheijden86/peektree/pkg/export"
	"github.com/vanderheijden86/peektree/pkg/loader"
	"github.com/vanderheijden86/peektree/pkg/model"
	"github.com/vanderheijden86/peektree/pkg/server"
	"github.com/vanderheijden86/peektree/pkg/tree"
	"github.com/vanderheijden86/peektree/pkg/ui"
	"github.com/vanderheijden86/peektree/pkg/version"
	"github.com/vanderheijden86/peektree/pkg/workspace"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"golang.org/x/term"
)

func main() {
	help := flag.Bool("help", false, "Show help")
	versionFlag := flag.Bool("version", false, "Show version")
	fileFlag := flag.String("file", "", "Hierarchy file or .peektree directory to open")
	fileShort := flag.String("f", "", "Shorthand for --file")
	hierarchyName := flag.String("hierarchy", "", "Open a hierarchy registered in config.yaml by name")
	watch := flag.Bool("watch", false, "Reload when the hierarchy file changes")
	exportMD := flag.String("export-md", "", "Export the hierarchy as a Markdown outline (e.g., tree.md)")
	exportGraph := flag.String("export-graph", "", "Export a slot diagram (.svg or .png)")
	exportDB := flag.String("export-db", "", "Export the hierarchy to a SQLite database (e.g., tree.db)")
	robotHelp := flag.Bool("robot-help", false, "Show AI agent help")
	robotSnapshot := flag.Bool("robot-snapshot", false, "Output the navigation snapshot after --path as JSON")
	robotLevels := flag.Bool("robot-levels", false, "Output every level of the hierarchy as JSON")
	pathFlag := flag.String("path", "", "Node labels or ids to walk from the root, e.g. \"Benefits/Automation\"")
	format := flag.String("format", "", "Robot output format: json or toon (default json)")
	serve := flag.String("serve", "", "Serve the HTTP adapter on ADDR (e.g., 127.0.0.1:7070); \"config\" uses server.addr")
	check := flag.Bool("check", false, "Validate every discovered hierarchy (exit 1 if any fails)")
	flag.Parse()

	if *fileShort != "" && *fileFlag == "" {
		*fileFlag = *fileShort
	}

	if *help {
		fmt.Println("Usage: pt [options]")
		fmt.Println("\nBrowse a hierarchy one level at a time, peeking at the levels on either side.")
		flag.PrintDefaults()
		os.Exit(0)
	}

	if *robotHelp {
		printRobotHelp()
		os.Exit(0)
	}

	if *versionFlag {
		fmt.Printf("pt %s\n", version.String())
		os.Exit(0)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: Error loading config: %v\n", err)
		cfg = config.DefaultConfig()
	} else if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: Invalid config, using defaults: %v\n", err)
		cfg = config.DefaultConfig()
	}

	stateDir := config.StateDir()
	var state *ui.UIState
	if stateDir != "" {
		state = ui.LoadUIState(ui.UIStatePath(stateDir))
	} else {
		state = &ui.UIState{Version: ui.UIStateVersion}
	}

	// Handle --check (before resolving a single hierarchy)
	if *check {
		os.Exit(runCheck(cfg, *fileFlag, *format))
	}

	path, err := resolveHierarchy(cfg, state, *fileFlag, *hierarchyName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	doc, t, err := loadHierarchy(path, cfg.UI.RootLabel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading hierarchy: %v\n", err)
		os.Exit(1)
	}
	name := hierarchyDisplayName(path)

	if *robotLevels {
		if err := writeRobot(os.Stdout, buildLevelsOutput(t), *format); err != nil {
			fmt.Fprintf(os.Stderr, "Error encoding levels: %v\n", err)
			os.Exit(1)
		}
		os.Exit(0)
	}

	if *robotSnapshot {
		e, leaf, err := replayPath(t, *pathFlag)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if err := writeRobot(os.Stdout, buildSnapshotOutput(name, e, leaf), *format); err != nil {
			fmt.Fprintf(os.Stderr, "Error encoding snapshot: %v\n", err)
			os.Exit(1)
		}
		os.Exit(0)
	}

	if *exportMD != "" || *exportGraph != "" || *exportDB != "" {
		if err := runExports(doc, t, *pathFlag, *exportMD, *exportGraph, *exportDB); err != nil {
			fmt.Printf("Error exporting: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Done!")
		os.Exit(0)
	}

	watchFile := *watch || cfg.UI.Watch

	if *serve != "" {
		addr := *serve
		if addr == "config" {
			addr = cfg.Server.Addr
		}
		if err := runServer(addr, path, t, watchFile, cfg.UI.RootLabel); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		os.Exit(0)
	}

	if !term.IsTerminal(int(os.Stdout.Fd())) {
		fmt.Fprintln(os.Stderr, "Error: stdout is not a terminal.")
		fmt.Fprintln(os.Stderr, "Use --robot-levels or --robot-snapshot for machine-readable output.")
		os.Exit(1)
	}

	showDescriptions := cfg.UI.DescriptionsEnabled()
	if cfg.UI.ShowDescriptions == nil && state.ShowDescriptions != nil {
		showDescriptions = *state.ShowDescriptions
	}

	m := ui.NewModel(t, ui.Options{
		SlotWidthPercent: cfg.UI.SlotWidthPercent,
		ShowDescriptions: showDescriptions,
		CopyLeafPath:     cfg.UI.ClipboardEnabled(),
		Policy:           cfg.InputPolicy(),
	})
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithMouseCellMotion())

	if watchFile {
		worker, err := ui.NewBackgroundWorker(ui.WorkerConfig{
			Path: path,
			Load: func(file string) (*tree.Model, error) {
				_, t, err := loadHierarchy(file, cfg.UI.RootLabel)
				return t, err
			},
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: live reload disabled: %v\n", err)
		} else {
			worker.SetProgram(p)
			if err := worker.SeedHash(); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
			}
			if err := worker.Start(); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: live reload disabled: %v\n", err)
			}
			defer worker.Stop() // Clean up file watcher
		}
	}

	final, err := p.Run()
	if err != nil {
		fmt.Printf("Error running peektree: %v\n", err)
		os.Exit(1)
	}

	var leaf *model.LeafSelection
	if fm, ok := final.(ui.Model); ok {
		state.SetShowDescriptions(fm.DescriptionsShown())
		leaf = fm.LastLeaf()
	}
	state.Remember(path)
	if stateDir != "" {
		if err := state.Save(ui.UIStatePath(stateDir)); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: could not save UI state: %v\n", err)
		}
	}

	// The last selected leaf goes to stdout so pt can be used as a picker.
	if leaf != nil {
		fmt.Println(leaf.String())
	}
}

// resolveHierarchy picks the file to open: --file, then --hierarchy, then
// the current directory, then the configured default, then discovery (with
// a picker when several are found), then the most recently opened file.
func resolveHierarchy(cfg config.Config, state *ui.UIState, file, name string) (string, error) {
	if file != "" {
		return file, nil
	}
	if name != "" {
		h := cfg.FindHierarchy(name)
		if h == nil {
			return "", fmt.Errorf("no hierarchy named %q in %s", name, config.ConfigPath())
		}
		return h.ResolvedPath(), nil
	}
	if p, ok := config.DetectCurrentHierarchy(); ok {
		return p, nil
	}
	if cfg.Default != "" {
		if h := cfg.FindHierarchy(cfg.Default); h != nil {
			return h.ResolvedPath(), nil
		}
		fmt.Fprintf(os.Stderr, "Warning: default hierarchy %q is not registered\n", cfg.Default)
	}

	found := config.DiscoverHierarchies(cfg)
	switch {
	case len(found) == 1:
		return found[0].ResolvedPath(), nil
	case len(found) > 1 && isTerminal():
		return pickHierarchy(found)
	}

	if p, ok := state.MostRecent(); ok {
		return p, nil
	}
	return "", errors.New("no hierarchy found; pass --file or create a *.tree.yaml file or a .peektree/ directory")
}

func isTerminal() bool {
	return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
}

// pickHierarchy asks which of several discovered hierarchies to open.
func pickHierarchy(found []config.Hierarchy) (string, error) {
	options := make([]huh.Option[string], len(found))
	for i, h := range found {
		options[i] = huh.NewOption(fmt.Sprintf("%s  (%s)", h.Name, h.Path), h.ResolvedPath())
	}

	var choice string
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Which hierarchy do you want to open?").
				Options(options...).
				Value(&choice),
		),
	).WithTheme(huh.ThemeDracula())

	if err := form.Run(); err != nil {
		return "", err
	}
	return choice, nil
}

// loadHierarchy reads the document at path and builds its tree. A
// non-empty rootLabel overrides the label of the root crumb.
func loadHierarchy(path, rootLabel string) (model.Document, *tree.Model, error) {
	doc, err := loader.LoadDocument(path)
	if err != nil {
		return model.Document{}, nil, err
	}
	if rootLabel != "" {
		doc.RootLabel = rootLabel
	}
	t, err := tree.Build(doc)
	if err != nil {
		return model.Document{}, nil, fmt.Errorf("%s: %w", path, err)
	}
	return doc, t, nil
}

// hierarchyDisplayName names a hierarchy after its file, or after the
// project that holds its .peektree directory.
func hierarchyDisplayName(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	if filepath.Base(abs) == loader.DirName {
		return filepath.Base(filepath.Dir(abs))
	}
	if filepath.Base(filepath.Dir(abs)) == loader.DirName {
		return filepath.Base(filepath.Dir(filepath.Dir(abs)))
	}
	return filepath.Base(abs)
}

// runExports writes every requested export. When path is set, the outline
// and diagram reflect the state reached by walking it.
func runExports(doc model.Document, t *tree.Model, path, mdFile, graphFile, dbFile string) error {
	var snap *model.Snapshot
	if path != "" {
		e, _, err := replayPath(t, path)
		if err != nil {
			return err
		}
		s := e.Snapshot()
		snap = &s
	}

	if mdFile != "" {
		fmt.Printf("Exporting outline to %s...\n", mdFile)
		if err := export.SaveOutlineToFile(t, export.OutlineOptions{Descriptions: true, Snapshot: snap}, mdFile); err != nil {
			return err
		}
	}
	if graphFile != "" {
		fmt.Printf("Exporting diagram to %s...\n", graphFile)
		if err := export.SaveDiagram(t, export.DiagramOptions{Path: graphFile, Snapshot: snap}); err != nil {
			return err
		}
	}
	if dbFile != "" {
		fmt.Printf("Exporting database to %s...\n", dbFile)
		if err := loader.SaveSQLite(dbFile, doc); err != nil {
			return err
		}
	}
	return nil
}

// runServer serves the HTTP adapter until SIGINT or SIGTERM.
func runServer(addr, path string, t *tree.Model, watchFile bool, rootLabel string) error {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))
	srv := server.New(t, logger)
	defer srv.Close()

	if watchFile {
		worker, err := ui.NewBackgroundWorker(ui.WorkerConfig{
			Path: path,
			Load: func(file string) (*tree.Model, error) {
				_, t, err := loadHierarchy(file, rootLabel)
				return t, err
			},
			OnTree: func(t *tree.Model) {
				logger.Info("hierarchy reloaded", "path", path, "levels", t.LevelCount())
				srv.SetTree(t)
			},
			OnError: func(err error) {
				logger.Error("hierarchy reload failed", "path", path, "error", err)
			},
		})
		if err != nil {
			return err
		}
		if err := worker.SeedHash(); err != nil {
			logger.Warn("could not hash hierarchy", "error", err)
		}
		if err := worker.Start(); err != nil {
			return err
		}
		defer worker.Stop()
	}

	httpServer := &http.Server{
		Addr:        addr,
		Handler:     srv,
		ReadTimeout: 30 * time.Second,
		IdleTimeout: 60 * time.Second,
		// No WriteTimeout: event streams stay open.
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting peektree server", "addr", addr, "hierarchy", path, "watch", watchFile)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	// Close streams first so Shutdown does not wait on them.
	srv.Close()
	return httpServer.Shutdown(shutdownCtx)
}

// checkOutput is the robot form of --check.
type checkOutput struct {
	GeneratedAt string                 `json:"generated_at"`
	Summary     workspace.LoadSummary  `json:"summary"`
	Results     []workspace.LoadResult `json:"results"`
}

// runCheck validates every discovered hierarchy plus file, if given, and
// returns the process exit code.
func runCheck(cfg config.Config, file, format string) int {
	hierarchies := config.DiscoverHierarchies(cfg)
	if file != "" {
		hierarchies = append(hierarchies, config.Hierarchy{Name: hierarchyDisplayName(file), Path: file})
	} else if p, ok := config.DetectCurrentHierarchy(); ok {
		hierarchies = append(hierarchies, config.Hierarchy{Name: hierarchyDisplayName(p), Path: p})
	}
	hierarchies = dedupeHierarchies(hierarchies)

	l := workspace.NewLoader()
	if format == "" {
		l.SetLogger(log.New(os.Stderr, "", 0))
	}
	results, err := l.LoadAll(context.Background(), hierarchies)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	summary := workspace.Summarize(results)

	if format != "" {
		out := checkOutput{
			GeneratedAt: time.Now().UTC().Format(time.RFC3339),
			Summary:     summary,
			Results:     results,
		}
		if err := writeRobot(os.Stdout, out, format); err != nil {
			fmt.Fprintf(os.Stderr, "Error encoding check results: %v\n", err)
			return 1
		}
	} else {
		printCheckSummary(results, summary)
	}

	if summary.Failed > 0 {
		return 1
	}
	return 0
}

func dedupeHierarchies(in []config.Hierarchy) []config.Hierarchy {
	seen := make(map[string]bool, len(in))
	var out []config.Hierarchy
	for _, h := range in {
		key := h.ResolvedPath()
		if abs, err := filepath.Abs(key); err == nil {
			key = abs
		}
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, h)
	}
	return out
}

func printCheckSummary(results []workspace.LoadResult, summary workspace.LoadSummary) {
	for _, r := range results {
		if r.OK() {
			fmt.Printf("  ✓ %-24s %d levels, %d nodes (%d leaves, max depth %d)\n",
				r.Name, r.Stats.Levels, r.Stats.Nodes, r.Stats.Leaves, r.Stats.MaxDepth)
			if r.Stats.DeadEnds > 0 {
				fmt.Printf("    %d branch(es) without a child level\n", r.Stats.DeadEnds)
			}
			continue
		}
		fmt.Printf("  ✗ %-24s %v\n", r.Name, r.Error)
	}
	fmt.Printf("\n%d hierarchies checked: %d ok, %d failed\n", summary.Total, summary.Loaded, summary.Failed)
}

func printRobotHelp() {
	fmt.Println("pt (peektree) AI Agent Interface")
	fmt.Println("================================")
	fmt.Println("Query a hierarchy without driving the terminal UI.")
	fmt.Println("")
	fmt.Println("Commands:")
	fmt.Println("  --robot-levels")
	fmt.Println("      Outputs every level with its nodes, plus shape statistics.")
	fmt.Println("      Key fields:")
	fmt.Println("      - levels[].parent_node_id: Node whose child level this is (empty for the root)")
	fmt.Println("      - levels[].nodes[].leaf: Leaves are selected, never descended")
	fmt.Println("      - stats.dead_ends: Branches without a child level")
	fmt.Println("")
	fmt.Println("  --robot-snapshot [--path \"A/B/C\"]")
	fmt.Println("      Walks the path from the root and outputs the navigation state.")
	fmt.Println("      Segments match node ids or labels (case-insensitive).")
	fmt.Println("      A leaf may only be the last segment; it is reported under 'leaf'.")
	fmt.Println("      Unknown segments fail with 'did you mean' suggestions.")
	fmt.Println("      Key fields:")
	fmt.Println("      - snapshot.history: Levels left and nodes drilled into, oldest first")
	fmt.Println("      - snapshot.visible: Levels in the active, peek-left and peek-right slots")
	fmt.Println("      - breadcrumbs: Root crumb (depth -1) followed by one crumb per descend")
	fmt.Println("")
	fmt.Println("  --format json|toon")
	fmt.Println("      Output format. TOON needs the tru binary and falls back to JSON.")
	fmt.Println("")
	fmt.Println("  --check")
	fmt.Println("      Validates every registered and discovered hierarchy in parallel.")
	fmt.Println("      Exit code 1 if any fails. Add --format for machine-readable output.")
	fmt.Println("")
	fmt.Println("  --serve ADDR")
	fmt.Println("      Serves sessions over HTTP; each session drives its own engine.")
	fmt.Println("      POST /api/sessions, POST /api/sessions/{id}/{op},")
	fmt.Println("      GET /api/sessions/{id}/events (server-sent snapshots).")
}
