package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/kholbrook1303/dejavu/internal/config"
	"github.com/kholbrook1303/dejavu/internal/storage"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: dejavu <command>

Commands:
  stats      print song and fingerprint counts
  reset      destroy and recreate the fingerprint database
  --version  print version and build information

Configuration comes from the environment (or a .env file):
  DEJAVU_DB_PATH            database file (default %s)
  DEJAVU_MAX_QUERY_PARAMS   per-statement parameter budget (default %d)
`, config.DefaultDBPath, storage.DefaultMaxQueryParams)
	os.Exit(2)
}

func main() {
	if len(os.Args) < 2 {
		usage()
	}

	// Handle version flag
	if os.Args[1] == "--version" {
		fmt.Printf("dejavu fingerprint store\n")
		fmt.Printf("Version: %s\n", version)
		fmt.Printf("Build Time: %s\n", buildTime)
		fmt.Printf("Build Mode: %s\n", storage.BuildMode)
		fmt.Printf("SQLite Driver: %s\n", storage.DriverName)
		os.Exit(0)
	}

	log.SetOutput(os.Stderr)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	store, err := storage.NewSQLiteStore(cfg.DBPath,
		storage.WithMaxQueryParams(cfg.MaxQueryParams))
	if err != nil {
		log.Fatalf("Failed to open fingerprint store: %v", err)
	}
	defer store.Close()

	ctx := context.Background()

	switch os.Args[1] {
	case "stats":
		if err := printStats(ctx, store, cfg.DBPath); err != nil {
			log.Fatalf("Failed to read stats: %v", err)
		}
	case "reset":
		if !confirm(fmt.Sprintf("Destroy all data in %s?", cfg.DBPath)) {
			log.Println("Aborted")
			return
		}
		if err := store.Empty(ctx); err != nil {
			log.Fatalf("Failed to reset store: %v", err)
		}
		log.Printf("Store %s reset", cfg.DBPath)
	default:
		usage()
	}
}

func printStats(ctx context.Context, store *storage.SQLiteStore, dbPath string) error {
	songs, err := store.CountFingerprintedSongs(ctx)
	if err != nil {
		return err
	}
	fingerprints, err := store.CountFingerprints(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Database: %s\n", dbPath)
	fmt.Printf("Fingerprinted songs: %d\n", songs)
	fmt.Printf("Fingerprints: %d\n", fingerprints)
	return nil
}

func confirm(prompt string) bool {
	fmt.Fprintf(os.Stderr, "%s [y/N] ", prompt)
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return false
	}
	return strings.ToLower(strings.TrimSpace(line)) == "y"
}
