package main

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/rlch/relic/repl"
)

func replCommand() *cli.Command {
	return &cli.Command{
		Name:   "repl",
		Usage:  "Start the interactive shell",
		Action: runRepl,
	}
}

func runRepl(_ context.Context, cmd *cli.Command) error {
	log, err := newLogger(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	env, err := buildEnv(cmd, log)
	if err != nil {
		return err
	}

	return repl.Run(env, log, colorOutput(cmd))
}
