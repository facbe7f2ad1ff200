// Command migrate applies the conversation store schema. Subcommands:
//
//	migrate            apply all pending migrations
//	migrate version    print the current schema version
//	migrate force <v>  mark the schema at version v without running anything
package main

import (
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/jackc/pgx/v5/stdlib"

	appmigrations "github.com/argus-ai/argus/migrations"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		log.Fatal(err)
	}
}

func run(args []string) error {
	m, cleanup, err := newMigrator()
	if err != nil {
		return err
	}
	defer cleanup()

	switch {
	case len(args) == 0:
		if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return fmt.Errorf("migrate up: %w", err)
		}
		return reportVersion(m)

	case args[0] == "version":
		return reportVersion(m)

	case args[0] == "force" && len(args) == 2:
		version, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid version %q: %w", args[1], err)
		}
		if err := m.Force(version); err != nil {
			return fmt.Errorf("force version: %w", err)
		}
		fmt.Printf("schema forced to version %d\n", version)
		return nil

	default:
		return fmt.Errorf("usage: migrate [version | force <v>]")
	}
}

func newMigrator() (*migrate.Migrate, func(), error) {
	databaseURL := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if databaseURL == "" {
		return nil, nil, errors.New("DATABASE_URL is required")
	}

	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("open db: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("ping db: %w", err)
	}

	dbDriver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("db driver: %w", err)
	}
	srcDriver, err := iofs.New(appmigrations.FS, ".")
	if err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("source driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", srcDriver, "postgres", dbDriver)
	if err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("create migrator: %w", err)
	}
	cleanup := func() {
		_, _ = m.Close()
	}
	return m, cleanup, nil
}

func reportVersion(m *migrate.Migrate) error {
	version, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		fmt.Println("schema is empty")
		return nil
	}
	if err != nil {
		return fmt.Errorf("read version: %w", err)
	}
	if dirty {
		fmt.Printf("schema at version %d (dirty, needs force)\n", version)
		return nil
	}
	fmt.Printf("schema at version %d\n", version)
	return nil
}
