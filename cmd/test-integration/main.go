package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"github.com/yiblet/cliphist/internal/cachefs"
	"github.com/yiblet/cliphist/internal/history"
	"github.com/yiblet/cliphist/internal/store/logstore"
)

func main() {
	fmt.Println("Testing on-disk history log")
	fmt.Println("===========================")
	ctx := context.Background()

	root, err := os.MkdirTemp("", "cliphist-integration-")
	if err != nil {
		log.Fatalf("Error creating temp dir: %v", err)
	}
	defer os.RemoveAll(root)

	logger := logrus.New()
	logger.SetLevel(logrus.InfoLevel)
	dir := cachefs.NewWithRoot(root)

	// Seed a legacy snapshot that the first load migrates
	legacy := `["from the old format", {"contents": "old favorite", "favorite": true}]`
	if err := os.WriteFile(filepath.Join(root, "registry.txt"), []byte(legacy), 0o644); err != nil {
		log.Fatalf("Error writing legacy snapshot: %v", err)
	}

	settings := history.DefaultSettings()
	settings.HistorySize = 10

	m := open(ctx, dir, logger, settings)
	check("migrated entries", m.Entries().Len(), 1)
	check("migrated favorites", m.Favorites().Len(), 1)

	for i := 0; i < 25; i++ {
		if _, _, err := m.Observe(fmt.Sprintf("copy %02d", i)); err != nil {
			log.Fatalf("Error recording copy %d: %v", i, err)
		}
	}
	if err := m.Close(ctx); err != nil {
		log.Fatalf("Error closing history: %v", err)
	}

	m = open(ctx, dir, logger, settings)
	check("entries after reopen", m.Entries().Len(), 10)
	check("favorites after reopen", m.Favorites().Len(), 1)
	check("newest entry", m.Entries().Tail().Text, "copy 24")

	m.Compact()
	if err := m.Close(ctx); err != nil {
		log.Fatalf("Error compacting: %v", err)
	}
	size, err := dir.Size(logstore.DefaultLogName)
	if err != nil {
		log.Fatalf("Error reading log size: %v", err)
	}
	fmt.Printf("Compacted log: %d bytes\n", size)

	// Damage the tail; the intact prefix must survive
	f, err := os.OpenFile(dir.Path(logstore.DefaultLogName), os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		log.Fatalf("Error opening log: %v", err)
	}
	if _, err := f.Write([]byte{0x02, 0x01}); err != nil {
		log.Fatalf("Error damaging log: %v", err)
	}
	f.Close()

	m = open(ctx, dir, logger, settings)
	check("entries after damage", m.Entries().Len(), 10)
	check("favorites after damage", m.Favorites().Len(), 1)
	if err := m.Close(ctx); err != nil {
		log.Fatalf("Error closing history: %v", err)
	}

	matches, err := filepath.Glob(filepath.Join(root, logstore.DefaultLogName+".corrupt-*"))
	if err != nil {
		log.Fatalf("Error listing quarantined logs: %v", err)
	}
	check("quarantined logs", len(matches), 1)

	fmt.Println("\nAll checks passed")
}

func open(ctx context.Context, dir *cachefs.Dir, logger *logrus.Logger, settings history.Settings) *history.Manager {
	s, err := logstore.New(dir, logger, logstore.WithLegacyPath("registry.txt"))
	if err != nil {
		log.Fatalf("Error creating log store: %v", err)
	}
	m, err := history.NewManager(ctx, s, settings, logger)
	if err != nil {
		log.Fatalf("Error loading history: %v", err)
	}
	return m
}

func check[T comparable](name string, got, want T) {
	if got != want {
		log.Fatalf("%s: got %v, want %v", name, got, want)
	}
	fmt.Printf("ok  %-24s %v\n", name, got)
}
