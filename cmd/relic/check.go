package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/rlch/relic"
)

func checkCommand() *cli.Command {
	return &cli.Command{
		Name:      "check",
		Usage:     "Parse statements without evaluating them",
		ArgsUsage: "[files...]",
		Action:    runCheck,
	}
}

// runCheck parses every non-empty, non-comment line of the given files (or
// stdin when none), reports each line that fails to parse, and fails if any
// line does.
func runCheck(_ context.Context, cmd *cli.Command) error {
	paths := cmd.Args().Slice()

	if len(paths) == 0 {
		data, err := readAllStdin()
		if err != nil {
			return err
		}

		return checkSource("<stdin>", data)
	}

	var failed bool

	for _, path := range paths {
		data, err := os.ReadFile(path) //nolint:gosec // G304: file path from user input is expected
		if err != nil {
			return err
		}

		if err := checkSource(path, string(data)); err != nil {
			failed = true
		}
	}

	if failed {
		return cli.Exit("", 1)
	}

	return nil
}

func checkSource(name, data string) error {
	var firstErr error

	for i, line := range strings.Split(data, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "--") {
			continue
		}

		if _, err := relic.ParseStatement(line); err != nil {
			fmt.Fprintf(os.Stderr, "%s:%d: %v\n", name, i+1, err)

			if firstErr == nil {
				firstErr = err
			}
		}
	}

	return firstErr
}

func readAllStdin() (string, error) {
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return "", err
	}

	return string(data), nil
}
