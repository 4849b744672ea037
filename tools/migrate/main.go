package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/salonpanel/salonpanel/libs/config"
	"github.com/salonpanel/salonpanel/libs/db"
)

func main() {
	var (
		dbURL  = flag.String("database-url", config.String("DATABASE_URL", ""), "postgres connection string")
		status = flag.Bool("status", false, "print migration status instead of applying")
	)
	flag.Parse()

	if *dbURL == "" {
		fatal("DATABASE_URL is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if *status {
		if err := db.MigrationStatus(ctx, *dbURL); err != nil {
			fatal(err.Error())
		}
		return
	}
	if err := db.Migrate(ctx, *dbURL); err != nil {
		fatal(err.Error())
	}
	fmt.Println("migrations applied")
}

func fatal(msg string) {
	_, _ = fmt.Fprintln(os.Stderr, msg)
	os.Exit(1)
}
