package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/agriconnect/agriconnect-backend/pkg/config"
	"github.com/agriconnect/agriconnect-backend/pkg/db"
	"github.com/agriconnect/agriconnect-backend/pkg/logger"
	"github.com/agriconnect/agriconnect-backend/pkg/migrate"
)

const usage = `usage: migrate [-dir path] <command> [arg]

commands:
  up                 apply every pending migration
  down               roll back the latest migration
  status             list migrations and whether they are applied
  to <version>       migrate up or down to YYYYMMDDHHMMSS
  create <name>      scaffold a new SQL migration in -dir
  validate           check migration files in -dir (or the embedded set)
`

func main() {
	dir := flag.String("dir", "", "read migrations from this directory instead of the embedded set")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(2)
	}
	command, arg := args[0], ""
	if len(args) > 1 {
		arg = args[1]
	}

	_ = godotenv.Load()
	logg := logger.New(logger.Options{ServiceName: "migrate"})
	ctx := logg.WithField(context.Background(), "command", command)

	source := migrate.Migrations()
	if *dir != "" {
		source = os.DirFS(*dir)
	}

	switch command {
	case "create":
		target := *dir
		if target == "" {
			target = migrate.SourceDir
		}
		path, err := migrate.Scaffold(target, arg, time.Now())
		exitOn(ctx, logg, "create migration", err)
		fmt.Println("created", path)
		return
	case "validate":
		exitOn(ctx, logg, "validate migrations", migrate.Validate(source))
		fmt.Println("migrations valid")
		return
	}

	cfg, err := config.Load()
	exitOn(ctx, logg, "load config", err)
	logg = logger.New(logger.Options{
		ServiceName: "migrate",
		Level:       cfg.App.LogLevel,
		WarnStack:   cfg.App.LogWarnStack,
	})
	ctx = logg.WithFields(ctx, map[string]any{"env": cfg.App.Env})

	dbClient, err := db.New(ctx, cfg.DB, logg)
	exitOn(ctx, logg, "connect database", err)
	defer dbClient.Close()
	sqlDB, err := dbClient.DB().DB()
	exitOn(ctx, logg, "extract sql.DB", err)

	runner, err := migrate.NewRunner(sqlDB, source)
	exitOn(ctx, logg, "build migration runner", err)

	switch command {
	case "up":
		applied, err := runner.Up(ctx)
		exitOn(ctx, logg, "migrate up", err)
		report(applied)
	case "down":
		applied, err := runner.Down(ctx)
		exitOn(ctx, logg, "migrate down", err)
		report(applied)
	case "to":
		version, err := migrate.ParseVersion(arg)
		exitOn(ctx, logg, "parse version", err)
		applied, err := runner.To(ctx, version)
		exitOn(ctx, logg, "migrate to version", err)
		report(applied)
	case "status":
		statuses, err := runner.Status(ctx)
		exitOn(ctx, logg, "migration status", err)
		for _, st := range statuses {
			state := "pending"
			if st.Applied {
				state = "applied " + st.AppliedAt.UTC().Format(time.RFC3339)
			}
			fmt.Printf("%d  %-48s %s\n", st.Version, st.File, state)
		}
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", command)
		flag.Usage()
		os.Exit(2)
	}
}

func report(applied []migrate.Applied) {
	if len(applied) == 0 {
		fmt.Println("nothing to do")
		return
	}
	for _, a := range applied {
		fmt.Printf("%-4s %d %s (%s)\n", a.Direction, a.Version, a.File, a.Duration.Round(time.Millisecond))
	}
}

func exitOn(ctx context.Context, logg *logger.Logger, step string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, step+" failed", err)
	os.Exit(1)
}
