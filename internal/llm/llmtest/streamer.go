// Package llmtest provides a scripted llm.Streamer for tests.
package llmtest

import (
	"context"
	"errors"
	"iter"
	"strings"
	"sync"
	"time"

	"slidesmith-backend/internal/apperr"
	"slidesmith-backend/internal/llm"
)

// Script is one canned completion.
type Script struct {
	Fragments []string
	// Err is yielded after Fragments, wrapped as a ProviderError.
	Err error
	// Delay is applied before the first fragment.
	Delay time.Duration
}

// Call records one StreamCompletion invocation.
type Call struct {
	Provider     llm.ProviderID
	SystemPrompt string
	UserPrompt   string
}

// Streamer answers each call with the first script whose matcher accepts
// the user prompt, falling back to Default.
type Streamer struct {
	mu        sync.Mutex
	rules     []rule
	Default   *Script
	ConfigErr error
	calls     []Call
}

type rule struct {
	match  func(Call) bool
	script Script
}

func New() *Streamer {
	return &Streamer{}
}

// Reply answers every call with the given fragments.
func Reply(fragments ...string) *Streamer {
	return &Streamer{Default: &Script{Fragments: fragments}}
}

// On registers a script for calls whose user prompt contains substr.
func (s *Streamer) On(substr string, script Script) *Streamer {
	return s.OnFunc(func(c Call) bool { return strings.Contains(c.UserPrompt, substr) }, script)
}

func (s *Streamer) OnFunc(match func(Call) bool, script Script) *Streamer {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rules = append(s.rules, rule{match: match, script: script})
	return s
}

func (s *Streamer) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Call(nil), s.calls...)
}

func (s *Streamer) StreamCompletion(ctx context.Context, provider llm.ProviderID, systemPrompt, userPrompt string) (iter.Seq2[string, error], error) {
	if _, err := llm.ParseProviderID(string(provider)); err != nil {
		return nil, err
	}
	if s.ConfigErr != nil {
		return nil, s.ConfigErr
	}
	call := Call{Provider: provider, SystemPrompt: systemPrompt, UserPrompt: userPrompt}

	s.mu.Lock()
	s.calls = append(s.calls, call)
	var script *Script
	for i := range s.rules {
		if s.rules[i].match(call) {
			script = &s.rules[i].script
			break
		}
	}
	if script == nil {
		script = s.Default
	}
	s.mu.Unlock()

	if script == nil {
		return nil, errors.New("llmtest: no script for prompt")
	}
	sc := *script
	return func(yield func(string, error) bool) {
		if sc.Delay > 0 {
			select {
			case <-time.After(sc.Delay):
			case <-ctx.Done():
				yield("", apperr.NewProviderError(string(provider), ctx.Err()))
				return
			}
		}
		for _, f := range sc.Fragments {
			if !yield(f, nil) {
				return
			}
		}
		if sc.Err != nil {
			yield("", apperr.NewProviderError(string(provider), sc.Err))
		}
	}, nil
}
