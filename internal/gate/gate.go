// Package gate implements the manual confirmation step that lets a human
// operator clear an anti-bot challenge before the crawl continues.
package gate

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"
)

const banner = `
==================================================
ACTION REQUIRED: Please solve the CAPTCHA/Puzzle in the browser window.
Once the profile page is fully visible and you are ready, press ENTER here.
==================================================
`

// Console blocks until a line is read from its input.
type Console struct {
	in     *bufio.Reader
	out    io.Writer
	logger *zap.Logger
}

// NewConsole builds a Console reading confirmations from in and writing the
// instructions to out.
func NewConsole(in io.Reader, out io.Writer, logger *zap.Logger) *Console {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Console{in: bufio.NewReader(in), out: out, logger: logger}
}

// Wait prints the instructions and blocks until ENTER is pressed or ctx is
// done. A closed input counts as confirmation only if it ended a line.
func (c *Console) Wait(ctx context.Context) error {
	if _, err := io.WriteString(c.out, banner); err != nil {
		return fmt.Errorf("write gate banner: %w", err)
	}
	c.logger.Info("waiting for operator confirmation")

	done := make(chan error, 1)
	go func() {
		line, err := c.in.ReadString('\n')
		if errors.Is(err, io.EOF) && strings.TrimSpace(line) != "" {
			err = nil
		}
		done <- err
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("read operator confirmation: %w", err)
		}
		c.logger.Info("operator confirmed")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("gate canceled: %w", ctx.Err())
	}
}

// Disabled never blocks. It is used when the run is unattended.
type Disabled struct {
	Logger *zap.Logger
}

// Wait returns immediately.
func (d Disabled) Wait(ctx context.Context) error {
	if d.Logger != nil {
		d.Logger.Info("manual gate disabled; continuing without confirmation")
	}
	return ctx.Err()
}
