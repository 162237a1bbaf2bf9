// Package main applies the database schema to a PostgreSQL instance.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"time"

	"lightcurvedb/internal/storage/migrations"
	pgstore "lightcurvedb/internal/storage/postgres"
)

func main() {
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string")
	timeout := flag.Duration("timeout", 30*time.Second, "Overall timeout for connect and schema setup")
	flag.Parse()

	logger := log.New(os.Stdout, "[setup] ", log.LstdFlags)

	if *postgresDSN == "" {
		logger.Println("--postgres-dsn is required")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	pool, err := pgstore.NewPool(ctx, *postgresDSN)
	if err != nil {
		logger.Printf("Failed to connect: %v", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		logger.Printf("Schema setup failed: %v", err)
		os.Exit(1)
	}

	logger.Println("Schema applied")
}
