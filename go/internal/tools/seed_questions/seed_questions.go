package main

import (
	"context"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/mcdev12/adaptivq/go/internal/dbconfig"
	"github.com/mcdev12/adaptivq/go/internal/questionbank"
)

func main() {
	_ = godotenv.Load()

	path := "go/internal/assets/questions.yaml"
	if len(os.Args) > 1 {
		path = os.Args[1]
	}

	// 1) Load and validate the YAML bank
	bank, err := questionbank.LoadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load bank: %v\n", err)
		os.Exit(1)
	}
	entries := bank.Entries()

	// 2) Connect using shared dbconfig
	ctx := context.Background()
	cfg := dbconfig.NewConfigFromEnv()
	pool, err := pgxpool.New(ctx, cfg.DSN())
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to connect: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()

	// 3) Ensure the table exists
	if _, err := pool.Exec(ctx, questionbank.Schema); err != nil {
		fmt.Fprintf(os.Stderr, "create schema: %v\n", err)
		os.Exit(1)
	}

	// 4) Upsert
	written, err := questionbank.Upsert(ctx, pool, entries)
	if err != nil {
		fmt.Fprintf(os.Stderr, "upsert: %v\n", err)
		os.Exit(1)
	}

	// 5) Print summary
	categories := make(map[string]int)
	for _, e := range entries {
		categories[e.Category]++
	}
	fmt.Printf(
		"Questions seed complete: %d total, %d written, %d categories\n",
		len(entries), written, len(categories),
	)
}
