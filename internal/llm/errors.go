package llm

import (
	"errors"
	"fmt"
)

// ErrGenerationFailed marks failures of the model endpoint: unreachable,
// non-2xx, or an error reported in the middle of a stream.
var ErrGenerationFailed = errors.New("generation failed")

// IsGenerationFailed reports whether err originates from the model endpoint.
func IsGenerationFailed(err error) bool { return errors.Is(err, ErrGenerationFailed) }

func generationFailed(err error) error {
	return fmt.Errorf("%w: %w", ErrGenerationFailed, err)
}
