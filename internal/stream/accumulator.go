// Package stream bridges a model's fragment sequence to a delivery sink and
// records one request log entry per run.
package stream

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"

	"minivault/internal/llm"
	"minivault/internal/reqlog"
)

// Result is what one Run produced.
type Result struct {
	// Text is the concatenation of every fragment pulled from the model,
	// including one that was generated but could not be delivered.
	Text string
	// Fragments counts the fragments pulled.
	Fragments int
	// Disconnected is set when the sink's consumer went away or ctx ended
	// before the model finished.
	Disconnected bool
}

// Accumulator runs prompts against a model client.
type Accumulator struct {
	client llm.Client
	log    reqlog.Sink
}

// New returns an Accumulator using client for generation and log for the
// request log.
func New(client llm.Client, log reqlog.Sink) *Accumulator {
	return &Accumulator{client: client, log: log}
}

// Run streams prompt through sink. A log entry covering exactly the pulled
// fragments is appended once the stream completes or is cut short by the
// consumer. Generation failures are returned and leave the log untouched.
func (a *Accumulator) Run(ctx context.Context, prompt string, sink Sink) (Result, error) {
	zl := zerolog.Ctx(ctx)
	var (
		b       strings.Builder
		res     Result
		sinkErr error
	)
	err := a.client.Stream(ctx, prompt, func(frag string) error {
		b.WriteString(frag)
		res.Fragments++
		zl.Debug().Int("n", res.Fragments).Str("fragment", frag).Msg("fragment")
		if e := sink.Emit(frag); e != nil {
			sinkErr = e
			return e
		}
		return nil
	})
	res.Text = b.String()

	switch {
	case err == nil:
	case sinkErr != nil && errors.Is(err, ErrPeerDisconnected):
		res.Disconnected = true
	case sinkErr == nil && ctx.Err() != nil && !llm.IsGenerationFailed(err):
		res.Disconnected = true
	default:
		return Result{}, err
	}

	if lerr := a.log.Append(reqlog.NewEntry(prompt, res.Text)); lerr != nil {
		zl.Error().Err(lerr).Msg("request log append failed")
	}
	return res, nil
}
