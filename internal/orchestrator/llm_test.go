package orchestrator_test

import (
	"context"

	"github.com/tmc/langchaingo/llms"
)

// fakeLLM serves canned replies in call order; when replies run out it
// repeats the last one, so tests can under-specify trailing calls that
// don't matter to the assertion.
type fakeLLM struct {
	replies []string
	errs    []error
	calls   int
}

func (f *fakeLLM) Generate(_ context.Context, _ []llms.MessageContent) (string, error) {
	i := f.calls
	if i >= len(f.replies) {
		i = len(f.replies) - 1
	}

	f.calls++

	var err error
	if i < len(f.errs) {
		err = f.errs[i]
	}

	return f.replies[i], err
}
