package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/fdcollector/fdc/internal/migrate"
)

func main() {
	var (
		databaseURL = flag.String("database-url", os.Getenv("DATABASE_URL"), "PostgreSQL connection string")
		dir         = flag.String("dir", "migrations", "Directory containing migration files")
		down        = flag.Bool("down", false, "Revert migrations instead of applying them")
		steps       = flag.Int("steps", 1, "Migrations to revert with -down (0 = all)")
	)
	flag.Parse()

	if *databaseURL == "" {
		fmt.Fprintln(os.Stderr, "DATABASE_URL is required")
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	migrations, err := migrate.Load(os.DirFS(*dir))
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	db, err := migrate.Open(ctx, *databaseURL)
	if err != nil {
		fmt.Fprintln(os.Stderr, "connect database:", err)
		os.Exit(1)
	}
	defer db.Close()

	m := migrate.New(db, logger)

	var n int
	if *down {
		n, err = m.Down(ctx, migrations, *steps)
	} else {
		n, err = m.Up(ctx, migrations)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}

	if *down {
		logger.Info("migrations reverted", slog.Int("count", n))
	} else {
		logger.Info("migrations applied", slog.Int("count", n))
	}
}
