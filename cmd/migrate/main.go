// Command migrate manages the schema. The migration files ship embedded in
// the binary, same as cmd/api, so the default invocation needs nothing but
// DATABASE_URL; -dir switches to loose files for local work on new
// migrations.
//
// Usage: migrate [flags] <up|down|force|version|drop> [n]
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/qashgo/backend/migrations"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	var (
		migrationsDir string
		databaseURL   string
	)
	flag.StringVar(&migrationsDir, "dir", "", "Read migrations from this directory instead of the embedded set")
	flag.StringVar(&databaseURL, "database", "", "Database URL (overrides DATABASE_URL env)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		log.Fatal().Msg("DATABASE_URL environment variable or -database flag is required")
	}

	command := flag.Arg(0)
	if command == "" {
		command = "up"
	}
	n := 0
	if arg := flag.Arg(1); arg != "" {
		var err error
		if n, err = strconv.Atoi(arg); err != nil {
			log.Fatal().Str("arg", arg).Msg("Migration count must be a number")
		}
	}

	m, err := newMigrate(migrationsDir, databaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create migrate instance")
	}
	defer m.Close()

	log.Info().Str("command", command).Int("n", n).Msg("Running migration command")

	switch command {
	case "up":
		if n > 0 {
			err = m.Steps(n)
		} else {
			err = m.Up()
		}
	case "down":
		if n > 0 {
			err = m.Steps(-n)
		} else {
			err = m.Down()
		}
	case "force":
		if n == 0 {
			log.Fatal().Msg("force requires a version number")
		}
		err = m.Force(n)
	case "version":
		version, dirty, verr := m.Version()
		if verr == migrate.ErrNilVersion {
			log.Info().Msg("Schema is empty, no migrations applied")
			return
		}
		if verr != nil {
			log.Fatal().Err(verr).Msg("Failed to read schema version")
		}
		log.Info().Uint("version", version).Bool("dirty", dirty).Msg("Current schema version")
		return
	case "drop":
		err = m.Drop()
	default:
		log.Fatal().Str("command", command).Msg("Unknown command")
	}

	if err == migrate.ErrNoChange {
		log.Info().Msg("Schema already up to date")
		return
	}
	if err != nil {
		log.Fatal().Err(err).Msg("Migration failed")
	}

	log.Info().Msg("Migration completed successfully")
}

func newMigrate(dir, databaseURL string) (*migrate.Migrate, error) {
	if dir == "" {
		src, err := iofs.New(migrations.FS, ".")
		if err != nil {
			return nil, err
		}
		return migrate.NewWithSourceInstance("iofs", src, databaseURL)
	}

	absPath, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	return migrate.New(fmt.Sprintf("file://%s", absPath), databaseURL)
}
