package main

import (
	"context"
	"fmt"
	"log"

	"github.com/sirupsen/logrus"
	"github.com/yiblet/cliphist/internal/history"
	"github.com/yiblet/cliphist/internal/store/memstore"
)

func main() {
	fmt.Println("cliphist History Manager Demo")
	ctx := context.Background()

	logger := logrus.New()
	logger.SetLevel(logrus.DebugLevel)

	// Create in-memory store and history manager
	store := memstore.NewMemoryStore()
	defer store.Close()

	settings := history.DefaultSettings()
	settings.HistorySize = 4
	settings.MoveItemFirst = true

	m, err := history.NewManager(ctx, store.Log(), settings, logger)
	if err != nil {
		log.Fatalf("Failed to create history manager: %v", err)
	}

	// Add some test content
	testContent := []string{
		"Hello, World! This is the first item in our history.",
		"package main\n\nimport \"fmt\"\n\nfunc main() {\n    fmt.Println(\"Hello, Go!\")\n}",
		"#!/bin/bash\necho \"Starting script...\"\nfor i in {1..5}; do\n    echo \"Processing $i\"\ndone",
		"SELECT * FROM users WHERE created_at > '2023-01-01' ORDER BY created_at DESC LIMIT 10;",
		"Hello, World! This is the first item in our history.",
		"Lorem ipsum dolor sit amet, consectetur adipiscing elit.",
	}

	fmt.Println("Copying items:")
	for i, content := range testContent {
		e, created, err := m.Observe(content)
		if err != nil {
			log.Printf("Failed to record item %d: %v", i, err)
			continue
		}
		state := "new"
		if !created {
			state = "moved"
		}
		fmt.Printf("%d. #%d (%s) %s\n", i+1, e.ID, state, history.Preview(e.Text, history.DefaultPreviewLength))
	}

	// Pin the oldest remaining entry
	if head := m.Entries().Head(); head != nil {
		if _, err := m.ToggleFavorite(head.ID); err != nil {
			log.Printf("Failed to pin #%d: %v", head.ID, err)
		}
	}

	if err := m.Sync(ctx); err != nil {
		log.Fatalf("Failed to write history: %v", err)
	}

	fmt.Println("\nHistory (newest first):")
	for _, e := range m.Recent(false, 0) {
		fmt.Printf("  #%d %s\n", e.ID, history.Preview(e.Text, 40))
	}
	fmt.Println("Favorites:")
	for _, e := range m.Recent(true, 0) {
		fmt.Printf("  #%d %s\n", e.ID, history.Preview(e.Text, 40))
	}

	stats := m.Stats()
	fmt.Printf("\nLog: %d bytes, %d records since compaction, %d wasted\n",
		len(store.Log().Bytes()), store.Log().Ops(), stats.Wasted)

	// Replay the log into a fresh manager
	replayed, err := history.NewManager(ctx, memstore.NewLogStoreFrom(store.Log().Bytes()), settings, logger)
	if err != nil {
		log.Fatalf("Failed to replay history: %v", err)
	}
	fmt.Printf("Replayed: %d entries, %d favorites\n", replayed.Entries().Len(), replayed.Favorites().Len())
}
