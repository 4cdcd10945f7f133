package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"

	"github.com/eak1mov/go-tmx/internal/config"
	"github.com/google/subcommands"
	_ "github.com/mattn/go-sqlite3"
)

// env is passed to every command.
type env struct {
	cfg    *config.Config
	logger *slog.Logger
}

func main() {
	configPath := flag.String("config", "", "YAML config file path")

	subcommands.Register(subcommands.HelpCommand(), "")
	subcommands.Register(subcommands.FlagsCommand(), "")
	subcommands.Register(&infoCmd{}, "")
	subcommands.Register(&tileCmd{}, "")
	subcommands.Register(&exportCmd{}, "")
	subcommands.Register(&convertCmd{}, "")

	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal(err)
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.Level()}))

	os.Exit(int(subcommands.Execute(context.Background(), &env{cfg: cfg, logger: logger})))
}

func envOf(args []any) *env {
	return args[0].(*env)
}
