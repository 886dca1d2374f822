package testutil

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"

	"github.com/urfave/cli/v3"
)

// RunCommand executes a command with test context
func RunCommand(t *testing.T, command *cli.Command, args []string) error {
	t.Helper()

	return RunCommandWithContext(context.Background(), t, command, args)
}

// RunCommandWithContext executes a command with a custom context
func RunCommandWithContext(ctx context.Context, t *testing.T, command *cli.Command, args []string) error {
	t.Helper()

	return run(ctx, command, args, strings.NewReader(""), io.Discard)
}

// RunCommandWithInput executes a command feeding input to its reader and
// returns everything written to its writer.
func RunCommandWithInput(t *testing.T, command *cli.Command, args []string, input string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	err := run(context.Background(), command, args, strings.NewReader(input), &out)
	return out.String(), err
}

// CaptureCommand executes a command and returns everything written to its
// writer.
func CaptureCommand(t *testing.T, command *cli.Command, args ...string) (string, error) {
	t.Helper()

	return RunCommandWithInput(t, command, args, "")
}

func run(ctx context.Context, command *cli.Command, args []string, in io.Reader, out io.Writer) error {
	// Create a test CLI app
	app := &cli.Command{
		Name:      "test",
		Commands:  []*cli.Command{command},
		Reader:    in,
		Writer:    out,
		ErrWriter: io.Discard,
	}

	// Prepend command name to args
	fullArgs := append([]string{"test", command.Name}, args...)

	return app.Run(ctx, fullArgs)
}
