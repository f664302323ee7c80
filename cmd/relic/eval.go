package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"github.com/rlch/relic"
	"github.com/rlch/relic/render"
	"github.com/rlch/relic/workspace"
)

// ErrNoQuery is returned when eval gets no statement.
var ErrNoQuery = errors.New("no statement given")

func evalCommand() *cli.Command {
	return &cli.Command{
		Name:      "eval",
		Usage:     "Evaluate one statement and print the result",
		ArgsUsage: "<statement>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "save",
				Usage: "save the workspace after evaluation",
			},
		},
		Action: runEval,
	}
}

func runEval(_ context.Context, cmd *cli.Command) error {
	source := strings.Join(cmd.Args().Slice(), " ")
	if strings.TrimSpace(source) == "" {
		return ErrNoQuery
	}

	log, err := newLogger(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	env, err := buildEnv(cmd, log)
	if err != nil {
		return err
	}

	start := time.Now()

	res, err := relic.RunStatement(source, env)

	log.Debug("evaluated statement",
		zap.String("source", source),
		zap.Duration("took", time.Since(start)),
		zap.Bool("ok", err == nil))

	rd := render.New(colorOutput(cmd))

	if err != nil {
		fmt.Fprintln(os.Stderr, rd.Error(err))

		return cli.Exit("", 1)
	}

	fmt.Fprintln(os.Stdout, rd.Result(res))

	if path := cmd.String("save"); path != "" {
		if err := workspace.Save(env, path); err != nil {
			return err
		}
	}

	return nil
}
