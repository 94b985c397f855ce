package capability

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
)

// InstructionPrompt is printed before each instruction read.
const InstructionPrompt = "What instructions do you have for me?"

// StdinInstructions implements InstructionSource by prompting a human on a
// reader, normally os.Stdin.
type StdinInstructions struct {
	reader *bufio.Reader
	out    io.Writer
}

// NewStdinInstructions creates a StdinInstructions reading from in and
// prompting on out.
func NewStdinInstructions(in io.Reader, out io.Writer) *StdinInstructions {
	return &StdinInstructions{
		reader: bufio.NewReader(in),
		out:    out,
	}
}

// Next implements InstructionSource. The read itself cannot be interrupted
// mid-line, so cancellation is checked before prompting and after reading.
func (s *StdinInstructions) Next(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	fmt.Fprintln(s.out, InstructionPrompt)

	line, err := s.reader.ReadString('\n')
	if err != nil && line == "" {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		return "", fmt.Errorf("failed to read instruction: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}
