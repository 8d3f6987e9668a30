// Command migrate applies the embedded schema migrations to the e-invoice database.
//
// The connection is taken from -dsn, then EINVOICE_DB_DSN, then the
// EINVOICE_DB_* variables the server reads (including a local .env file).
package main

import (
	"embed"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log"
	"os"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/joho/godotenv"

	_ "github.com/golang-migrate/migrate/v4/database/postgres"

	"github.com/JaimeStill/einvoice/internal/config"
	"github.com/JaimeStill/einvoice/pkg/database"
)

//go:embed migrations/*.sql
var migrations embed.FS

const envDSN = "EINVOICE_DB_DSN"

func main() {
	var (
		dsn     = flag.String("dsn", "", "Database connection URL")
		up      = flag.Bool("up", false, "Run all up migrations")
		down    = flag.Bool("down", false, "Run all down migrations")
		steps   = flag.Int("steps", 0, "Number of migrations (positive=up, negative=down)")
		version = flag.Bool("version", false, "Print current migration version")
		force   = flag.Int("force", -1, "Force set version (use with caution)")
	)
	flag.Parse()

	forceSet := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == "force" {
			forceSet = true
		}
	})

	url, err := resolveDSN(*dsn)
	if err != nil {
		log.Fatalf("resolve database: %v", err)
	}

	source, err := iofs.New(migrations, "migrations")
	if err != nil {
		log.Fatalf("failed to create migration source: %v", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", source, url)
	if err != nil {
		log.Fatalf("failed to create migrator: %v", err)
	}
	defer m.Close()

	switch {
	case *version:
		v, dirty, err := m.Version()
		if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
			log.Fatalf("failed to get version: %v", err)
		}
		fmt.Printf("version: %d, dirty: %v\n", v, dirty)
	case forceSet:
		if err := m.Force(*force); err != nil {
			log.Fatalf("failed to force version: %v", err)
		}
		fmt.Printf("forced to version %d\n", *force)
	case *up:
		report(m.Up(), "migrations applied")
	case *down:
		report(m.Down(), "migrations reverted")
	case *steps != 0:
		report(m.Steps(*steps), fmt.Sprintf("applied %d migration steps", *steps))
	default:
		fmt.Println("usage: migrate [-dsn url] [-up|-down|-steps N|-version|-force N]")
		flag.PrintDefaults()
	}
}

func resolveDSN(flagValue string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	if err := godotenv.Load(config.DotEnvFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return "", err
	}
	if v := os.Getenv(envDSN); v != "" {
		return v, nil
	}

	var cfg database.Config
	if err := cfg.Finalize(config.DatabaseEnv); err != nil {
		return "", err
	}
	return cfg.URL(), nil
}

func report(err error, done string) {
	switch {
	case errors.Is(err, migrate.ErrNoChange):
		fmt.Println("no change")
	case err != nil:
		log.Fatalf("migration failed: %v", err)
	default:
		fmt.Println(done)
	}
}
