package llm

import "errors"

// ErrNoResponse is returned when a provider produces no usable completion.
var ErrNoResponse = errors.New("llm: provider returned no response")
