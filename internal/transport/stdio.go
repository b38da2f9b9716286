package transport

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/triage-ai/toolhost/internal/rpc"
)

// ServeStdio reads newline-delimited messages from r and writes one response
// line per message to w. Messages are handled strictly one at a time. A line
// over MaxMessageSize is discarded and answered with an invalid request
// error. It returns nil at end of input or when ctx is done between messages.
func ServeStdio(ctx context.Context, d Dispatcher, r io.Reader, w io.Writer, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	reader := bufio.NewReaderSize(r, 64*1024)
	out := bufio.NewWriter(w)

	for {
		if ctx.Err() != nil {
			return nil
		}
		raw, tooLarge, readErr := readLine(reader)
		if readErr != nil && !errors.Is(readErr, io.EOF) {
			logger.Error("stdio input failed", zap.Error(readErr))
			return fmt.Errorf("stdio: read request: %w", readErr)
		}

		var resp []byte
		if tooLarge {
			logger.Warn("stdio message too large", zap.Int("limit", MaxMessageSize))
			resp = rpc.Marshal(rpc.Failure(nil, rpc.ErrInvalidRequest("message too large")))
		} else if line := bytes.TrimSpace(raw); len(line) > 0 {
			resp = d.HandleRaw(ctx, line)
		}

		if resp != nil {
			if _, err := out.Write(append(resp, '\n')); err != nil {
				return fmt.Errorf("stdio: write response: %w", err)
			}
			if err := out.Flush(); err != nil {
				return fmt.Errorf("stdio: flush response: %w", err)
			}
		}
		if readErr != nil {
			return nil
		}
	}
}

// readLine returns the next line including its newline. A line longer than
// MaxMessageSize is consumed to its end and reported as tooLarge.
func readLine(r *bufio.Reader) (line []byte, tooLarge bool, err error) {
	for {
		chunk, err := r.ReadSlice('\n')
		if !tooLarge {
			if len(line)+len(chunk) > MaxMessageSize+1 {
				tooLarge = true
				line = nil
			} else {
				line = append(line, chunk...)
			}
		}
		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}
		return line, tooLarge, err
	}
}
