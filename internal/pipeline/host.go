package pipeline

import (
	"fmt"
	"io"
	"os"

	"optionpricer/internal/codec"
	"optionpricer/internal/core"
	"optionpricer/internal/queue"
)

// RunProducer drains out (Stage A's output queue), encodes each sample as
// one line, and writes it to w. It returns once out is closed and
// drained, or on the first write error (the pipe's reader went away).
func RunProducer(out *queue.Channel[core.PriceSample], w io.Writer, logger core.ILogger) error {
	for {
		sample, ok := out.Read()
		if !ok {
			return nil
		}

		line := codec.Encode(sample) + "\n"
		if _, err := io.WriteString(w, line); err != nil {
			logger.Error("pipeline: write to pipe failed", "error", err)
			return fmt.Errorf("pipeline: write: %w", err)
		}
	}
}

// RunConsumer reads lines from r and publishes each one onto in (Stage
// B's inbound queue). It closes in once r reaches EOF, which is the
// single terminating signal the dispatcher relies on.
func RunConsumer(r *os.File, in *queue.Channel[string], logger core.ILogger) {
	reader := NewLineReader(r)
	for {
		line, ok := reader.ReadLine()
		if !ok {
			break
		}
		in.Write(line)
	}
	in.Close()
}
