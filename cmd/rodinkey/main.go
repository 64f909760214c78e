package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"rodinstudio/internal/infra"
	"rodinstudio/internal/infra/credentials"
)

func main() {
	_ = godotenv.Load()

	var (
		keyFlag    string
		labelFlag  string
		deleteFlag bool
	)
	flag.StringVar(&keyFlag, "key", "", "Rodin API key (fallbacks to RODIN_API_KEY)")
	flag.StringVar(&labelFlag, "label", "", "optional label stored with the key")
	flag.BoolVar(&deleteFlag, "delete", false, "remove the stored key instead of setting it")
	flag.Parse()

	dbURL := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if dbURL == "" {
		fmt.Fprintln(os.Stderr, "DATABASE_URL is required")
		os.Exit(1)
	}

	key := strings.TrimSpace(keyFlag)
	if key == "" {
		key = strings.TrimSpace(os.Getenv("RODIN_API_KEY"))
	}
	if key == "" && !deleteFlag {
		fmt.Fprintln(os.Stderr, "Rodin API key is required via -key or RODIN_API_KEY")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create pool: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()

	logger := infra.NewLogger("cli").With().Str("cmd", "rodinkey").Logger()
	store := credentials.NewStore(infra.NewSQLRunner(pool, logger))
	if err := store.EnsureSchema(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "failed to prepare credentials table: %v\n", err)
		os.Exit(1)
	}

	if deleteFlag {
		if err := store.DeleteRodinAPIKey(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "failed to delete rodin api key: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Rodin API key removed")
		return
	}

	var props map[string]any
	if label := strings.TrimSpace(labelFlag); label != "" {
		props = map[string]any{"label": label}
	}
	if err := store.SetRodinAPIKey(ctx, key, props); err != nil {
		fmt.Fprintf(os.Stderr, "failed to persist rodin api key: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("Rodin API key stored successfully")
}
