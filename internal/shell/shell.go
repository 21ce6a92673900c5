// Package shell is the interactive command surface of the calibration
// crib. Each input line is parsed and dispatched through a cobra command
// tree; errors are reported and the shell keeps its state.
package shell

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/phorp/calcrib/internal/crib"
	"github.com/phorp/calcrib/internal/logging"
)

// Shell reads commands from in and writes to out. The sampler of the crib
// must read its keys from the same reader.
type Shell struct {
	crib   *crib.Crib
	in     *bufio.Reader
	out    io.Writer
	colors palette
	logger *logging.Logger
	done   bool
}

// New creates a shell over c. color enables ANSI colors in prompts and
// listings.
func New(c *crib.Crib, in *bufio.Reader, out io.Writer, color bool, logger *logging.Logger) *Shell {
	if logger == nil {
		logger = logging.Global()
	}
	return &Shell{
		crib:   c,
		in:     in,
		out:    out,
		colors: palette{enabled: color},
		logger: logger.With("component", "shell"),
	}
}

// Done reports whether exit was requested
func (sh *Shell) Done() bool {
	return sh.done
}

// Prompt returns the prompt naming the selected sensor, green when it is
// calibrated
func (sh *Shell) Prompt() string {
	id := "empty"
	if s, err := sh.crib.Selected(); err == nil {
		id = sh.colors.status(s.ID, s.IsCalibrated(sh.crib.Today()))
	}
	return fmt.Sprintf("%s[%s]: ", sh.colors.cyan("crib"), id)
}

// Run executes lines until exit, end of input or ctx is done
func (sh *Shell) Run(ctx context.Context) error {
	fmt.Fprintln(sh.out, " Welcome to the calibration toolcrib. help for commands.")
	for !sh.done {
		fmt.Fprint(sh.out, sh.Prompt())
		line, err := sh.in.ReadString('\n')
		if err != nil && (!errors.Is(err, io.EOF) || line == "") {
			if errors.Is(err, io.EOF) {
				fmt.Fprintln(sh.out)
				return nil
			}
			return err
		}

		if err := sh.Execute(ctx, line); err != nil {
			fmt.Fprintf(sh.out, " %s\n", sh.colors.red(err.Error()))
			sh.logger.Debug("command failed", "line", strings.TrimSpace(line), "error", err)
		}
		if err := ctx.Err(); err != nil {
			return err
		}
	}
	return nil
}

// Execute runs one command line. Blank lines do nothing.
func (sh *Shell) Execute(ctx context.Context, line string) error {
	args := strings.Fields(line)
	if len(args) == 0 {
		return nil
	}
	root := sh.commands()
	root.SetArgs(args)
	root.SetIn(sh.in)
	root.SetOut(sh.out)
	root.SetErr(sh.out)
	return root.ExecuteContext(ctx)
}

// ask prints question and returns the trimmed answer line
func (sh *Shell) ask(question string) (string, error) {
	fmt.Fprint(sh.out, question)
	line, err := sh.in.ReadString('\n')
	if err != nil && (!errors.Is(err, io.EOF) || line == "") {
		return "", err
	}
	return strings.TrimSpace(line), nil
}
