package stream

import "errors"

// ErrPeerDisconnected is returned by a Sink whose consumer has gone away.
// Run treats it as a normal, if early, end of the stream.
var ErrPeerDisconnected = errors.New("peer disconnected")

// Sink receives fragments as they are produced.
type Sink interface {
	Emit(fragment string) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(fragment string) error

func (f SinkFunc) Emit(fragment string) error { return f(fragment) }

// Discard is the buffering sink: it observes nothing and the caller uses the
// Result returned by Run.
var Discard Sink = SinkFunc(func(string) error { return nil })
