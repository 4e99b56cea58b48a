// Command migrate manages the schemas behind the vault router: the postgres
// deployment record tables and the clickhouse operation history tables.
package main

import (
	"flag"
	"fmt"
	"log"
	"net/url"
	"os"

	"github.com/vault-router/internal/config"
	"github.com/vault-router/internal/storage"
)

func main() {
	var (
		action = flag.String("action", "up", "Migration action: up, down, version")
		dbType = flag.String("db", "postgres", "Target database: postgres, clickhouse")
		dir    = flag.String("path", "", "Migrations directory (defaults to migrations/<db>)")
	)
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	path := *dir
	if path == "" {
		path = "migrations/" + *dbType
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		log.Fatalf("Migrations directory not found: %s", path)
	}

	if err := run(cfg, *dbType, *action, path); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}
}

func run(cfg *config.Config, dbType, action, path string) error {
	switch dbType {
	case "postgres":
		return runPostgres(&cfg.Database.Postgres, action, path)
	case "clickhouse":
		return runClickHouse(&cfg.Database.ClickHouse, action, path)
	default:
		return fmt.Errorf("unknown database type: %s", dbType)
	}
}

func runPostgres(cfg *config.PostgresConfig, action, path string) error {
	databaseURL := postgresURL(cfg)

	switch action {
	case "up":
		if err := storage.RunMigrations(databaseURL, path); err != nil {
			return err
		}
		log.Println("Postgres migrations applied")
		return nil

	case "down":
		if err := storage.RollbackMigrations(databaseURL, path); err != nil {
			return err
		}
		log.Println("Postgres migration rolled back")
		return nil

	case "version":
		version, dirty, err := storage.MigrationVersion(databaseURL, path)
		if err != nil {
			return err
		}
		log.Printf("Postgres schema version: %d (dirty: %v)", version, dirty)
		return nil

	default:
		return fmt.Errorf("unknown action: %s", action)
	}
}

// runClickHouse only supports forward migration. History tables use
// idempotent CREATE statements so re-running up is always safe.
func runClickHouse(cfg *config.ClickHouseConfig, action, path string) error {
	if action != "up" {
		return fmt.Errorf("clickhouse migrations only support the up action")
	}

	db, err := storage.NewClickHouseDB(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Printf("Error closing ClickHouse connection: %v", err)
		}
	}()

	if err := storage.RunClickHouseMigrations(db, path); err != nil {
		return err
	}
	log.Println("ClickHouse migrations applied")
	return nil
}

func postgresURL(cfg *config.PostgresConfig) string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(cfg.User, cfg.Password),
		Host:     cfg.Host + ":" + cfg.Port,
		Path:     cfg.Database,
		RawQuery: "sslmode=disable",
	}
	return u.String()
}
