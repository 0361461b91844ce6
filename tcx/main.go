package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path"

	"github.com/etnz/tradecost/cmd"
	"github.com/etnz/tradecost/config"
	"github.com/etnz/tradecost/logger"
	"github.com/google/subcommands"
	"github.com/posener/complete/v2"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(int(subcommands.ExitFailure))
	}
	log := logger.New(logger.Config{Level: cfg.LogLevel, Pretty: cfg.LogPretty})
	logger.SetGlobalLogger(log)

	app := &cmd.App{Config: cfg, Log: log}
	name := path.Base(os.Args[0])

	// Exits when invoked by the shell for completion.
	complete.Complete(name, app.Completion())

	commander := subcommands.NewCommander(flag.CommandLine, name)
	commander.Register(commander.HelpCommand(), "")
	commander.Register(commander.FlagsCommand(), "")
	commander.Register(commander.CommandsCommand(), "")
	app.Register(commander)

	flag.Parse()
	os.Exit(int(commander.Execute(log.WithContext(context.Background()))))
}
