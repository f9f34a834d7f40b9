package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/webdevtodayjason/context-forge-sub002/internal/config"
	"github.com/webdevtodayjason/context-forge-sub002/internal/orchestrator"
	"github.com/webdevtodayjason/context-forge-sub002/internal/store"
	"github.com/webdevtodayjason/context-forge-sub002/internal/ui"
)

func main() {
	configPath := flag.String("config", "orchestration.yaml", "path to the orchestration config")
	project := flag.String("project", "", "path to the project directory (defaults to current directory)")
	sessionName := flag.String("session", "", "tmux session name (defaults to settings)")
	headless := flag.Bool("headless", false, "run without the dashboard, stop on SIGINT/SIGTERM")
	flag.Parse()

	if *project == "" {
		cwd, err := os.Getwd()
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		*project = cwd
	}

	absProject, err := filepath.Abs(*project)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error resolving project path: %v\n", err)
		os.Exit(1)
	}

	if err := validateDependencies(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	settings, err := config.LoadSettings(config.SettingsPath())
	if err != nil {
		fmt.Fprintf(os.Stderr, "error loading settings: %v\n", err)
		os.Exit(1)
	}
	if *sessionName == "" {
		*sessionName = settings.SessionName
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	stateDir := filepath.Join(absProject, settings.StateDir)
	if err := os.MkdirAll(stateDir, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "error creating state directory: %v\n", err)
		os.Exit(1)
	}

	logFile, err := os.OpenFile(filepath.Join(stateDir, "orchestrator.log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error opening log file: %v\n", err)
		os.Exit(1)
	}
	defer logFile.Close()
	slog.SetDefault(slog.New(slog.NewTextHandler(logFile, nil)))

	db, err := store.New(filepath.Join(stateDir, "orchestration.db"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "error opening archive store: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	coord := orchestrator.New(cfg, absProject, *sessionName, stateDir,
		orchestrator.WithMessageArchive(db),
		orchestrator.WithErrorArchive(db))

	if err := coord.Deploy(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go coord.Run(ctx)

	if *headless {
		runHeadless(coord)
		return
	}

	model := ui.NewModel(ui.NewStyles(settings.Colors), settings.Layout, coord)
	p := tea.NewProgram(model, tea.WithAltScreen())
	coord.SetProgram(p)

	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	if err := coord.Stop(); err != nil {
		fmt.Fprintf(os.Stderr, "error stopping orchestration: %v\n", err)
		os.Exit(1)
	}
	if path := coord.ReportPath(); path != "" {
		fmt.Printf("report written to %s\n", path)
	}
}

func runHeadless(coord *orchestrator.Coordinator) {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig

	if err := coord.Stop(); err != nil {
		fmt.Fprintf(os.Stderr, "error stopping orchestration: %v\n", err)
		os.Exit(1)
	}
	if path := coord.ReportPath(); path != "" {
		fmt.Printf("report written to %s\n", path)
	}
}

func validateDependencies() error {
	for _, dep := range []string{"tmux", "git"} {
		if _, err := exec.LookPath(dep); err != nil {
			return fmt.Errorf("%s not found on PATH", dep)
		}
	}
	return nil
}
