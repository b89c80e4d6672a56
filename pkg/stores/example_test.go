package stores_test

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/paramforge/paramforge/pkg/stores"
)

// ExampleNewSQLiteStore demonstrates creating and initializing a new SQLite store.
func ExampleNewSQLiteStore() {
	store, err := stores.NewSQLiteStore(stores.Config{
		Path: stores.MemoryPath,
	})
	if err != nil {
		log.Fatal(err)
	}

	ctx := context.Background()
	if err := store.Init(ctx); err != nil {
		log.Fatal(err)
	}
	if err := store.Migrate(ctx); err != nil {
		log.Fatal(err)
	}
	defer store.Close()

	fmt.Println("Store initialized successfully")
	// Output: Store initialized successfully
}

// ExampleSQLiteStore_SaveExploration demonstrates storing and reading back
// an exploration table.
func ExampleSQLiteStore_SaveExploration() {
	store, _ := stores.NewSQLiteStore(stores.Config{Path: stores.MemoryPath})
	ctx := context.Background()
	if err := store.Init(ctx); err != nil {
		log.Fatal(err)
	}
	if err := store.Migrate(ctx); err != nil {
		log.Fatal(err)
	}
	defer store.Close()

	exp := &stores.Exploration{
		ID:        "run-001",
		Component: "ssr_casc",
		Strategy:  "exhaustive",
		Status:    "completed",
		Params:    []string{"TP_SSR", "TP_CASC_LEN"},
		StartedAt: time.Now(),
	}
	rows := []stores.ConfigurationRow{
		{Ordinal: 0, Key: "1|1", Values: []string{"1", "1"}},
		{Ordinal: 1, Key: "1|2", Values: []string{"1", "2"}},
	}
	if err := store.SaveExploration(ctx, exp, rows); err != nil {
		log.Fatal(err)
	}

	configs, err := store.ListConfigurations(ctx, "run-001", 0, 0)
	if err != nil {
		log.Fatal(err)
	}
	for _, c := range configs {
		fmt.Println(c.Ordinal, c.Values)
	}
	// Output:
	// 0 [1 1]
	// 1 [1 2]
}
