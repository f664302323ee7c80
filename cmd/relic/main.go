// Command relic is the CLI for the relic interpreter: an interactive
// shell, one-shot evaluation, and a parse checker.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"github.com/rlch/relic"
	"github.com/rlch/relic/loader"
	"github.com/rlch/relic/rel"
	"github.com/rlch/relic/workspace"
)

// ErrBadLoadSpec is returned for a malformed --load flag.
var ErrBadLoadSpec = errors.New("--load expects name=path")

func main() {
	cmd := &cli.Command{
		Name:  "relic",
		Usage: "a terse relational algebra interpreter",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "verbose logging",
			},
			&cli.BoolFlag{
				Name:  "plain",
				Usage: "uncolored output",
			},
			&cli.StringFlag{
				Name:    "workspace",
				Aliases: []string{"w"},
				Usage:   "workspace snapshot to open",
				Sources: cli.EnvVars("RELIC_WORKSPACE"),
			},
			&cli.StringSliceFlag{
				Name:    "load",
				Aliases: []string{"l"},
				Usage:   "load a relation as name=path (repeatable)",
			},
		},
		Commands: []*cli.Command{
			replCommand(),
			evalCommand(),
			checkCommand(),
		},
		DefaultCommand: "repl",
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "relic: %v\n", err)
		os.Exit(1)
	}
}

// newLogger builds the CLI logger: development output under --verbose, a
// nop logger otherwise.
func newLogger(cmd *cli.Command) (*zap.Logger, error) {
	if cmd.Bool("verbose") {
		return zap.NewDevelopment()
	}

	return zap.NewNop(), nil
}

// colorOutput reports whether to style output: never under --plain, and
// only when stdout is a terminal.
func colorOutput(cmd *cli.Command) bool {
	if cmd.Bool("plain") {
		return false
	}

	return isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
}

// buildEnv assembles the environment: the nearest .relic.yaml manifest if
// any, then the --workspace snapshot, then --load flags. Later sources win
// on name collisions.
func buildEnv(cmd *cli.Command, log *zap.Logger) (*rel.Env, error) {
	env := rel.NewEnv()
	ld := loader.New(log)

	cfg, err := relic.LoadConfig(".")
	if err != nil && !errors.Is(err, relic.ErrConfigNotFound) {
		return nil, err
	}

	snapshot := cmd.String("workspace")

	if cfg != nil {
		if snapshot == "" {
			snapshot = cfg.Workspace
		}

		for name, src := range cfg.Relations {
			r, err := ld.LoadFile(src.Path, src.Format)
			if err != nil {
				return nil, err
			}

			env.Set(name, r)
		}
	}

	if snapshot != "" {
		opened, err := workspace.Load(snapshot)
		if err != nil {
			return nil, err
		}

		for _, n := range opened.Names() {
			r, _ := opened.Get(n)
			env.Set(n, r)
		}
	}

	for _, spec := range cmd.StringSlice("load") {
		name, path, ok := strings.Cut(spec, "=")
		if !ok || name == "" || path == "" {
			return nil, fmt.Errorf("%w: %s", ErrBadLoadSpec, spec)
		}

		r, err := ld.LoadFile(path, "")
		if err != nil {
			return nil, err
		}

		env.Set(name, r)
	}

	log.Debug("environment ready", zap.Strings("relations", env.Names()))

	return env, nil
}
