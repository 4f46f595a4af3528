package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/jwebster45206/escape-engine/pkg/room"
	"github.com/leonelquinteros/gotext"
)

type ConsoleConfig struct {
	RoomsDir     string
	TickInterval time.Duration
	Locales      string
	Language     string
}

func main() {
	cfg := &ConsoleConfig{
		RoomsDir:     filepath.Join(getEnv("DATA_DIR", "./data"), "rooms"),
		TickInterval: 100 * time.Millisecond,
		Locales:      getEnv("CONSOLE_LOCALES", ""),
		Language:     getEnv("CONSOLE_LANG", "en"),
	}
	if cfg.Locales != "" {
		gotext.Configure(cfg.Locales, cfg.Language, "default")
	}

	// The UI owns the terminal; room logs would tear it.
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	var files []string
	if len(os.Args) > 1 {
		files = os.Args[1:]
	} else {
		var err error
		files, err = listRooms(cfg.RoomsDir)
		if err != nil || len(files) == 0 {
			fmt.Fprintf(os.Stderr, "Failed to list rooms in %s: %v\n", cfg.RoomsDir, err)
			os.Exit(1)
		}
	}

	p := tea.NewProgram(NewConsoleUI(cfg, files, logger),
		tea.WithAltScreen(),
		tea.WithMouseCellMotion())
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error running program: %v\n", err)
		os.Exit(1)
	}
}

// listRooms returns the room files in dir, sorted by name
func listRooms(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if _, err := room.FormatFor(e.Name()); err == nil {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
