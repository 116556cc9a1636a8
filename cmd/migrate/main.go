package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/JaimeStill/page-ingest/internal/config"
	"github.com/JaimeStill/page-ingest/migrations"
	"github.com/JaimeStill/page-ingest/pkg/database"
)

const EnvDatabaseDSN = "DATABASE_DSN"

func main() {
	var (
		dsn  = flag.String("dsn", "", "Database connection string (overrides config)")
		file = flag.String("config", config.BaseConfigFile, "Configuration file")
		down = flag.Bool("down", false, "Roll back every migration")
	)
	flag.Parse()

	if *dsn == "" {
		*dsn = os.Getenv(EnvDatabaseDSN)
	}
	if *dsn == "" {
		resolved, err := dsnFromConfig(*file)
		if err != nil {
			log.Fatalf("database connection string required: use -dsn, %s, or %s: %v",
				EnvDatabaseDSN, *file, err)
		}
		*dsn = resolved
	}

	db, err := sql.Open("pgx", *dsn)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	dir := database.Up
	if *down {
		dir = database.Down
	}

	if err := database.Migrate(db, migrations.FS, dir); err != nil {
		log.Fatalf("migration failed: %v", err)
	}

	fmt.Printf("migrations applied (%s)\n", dir)
}

func dsnFromConfig(path string) (string, error) {
	cfg, err := config.LoadFile(path)
	if err != nil {
		return "", err
	}
	if err := cfg.FinalizeDatabase(); err != nil {
		return "", err
	}
	return cfg.Database.Dsn(), nil
}
