package testutil

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// FakeResult is one scripted command outcome.
type FakeResult struct {
	Output string
	Err    error
}

// FakeRunner is a scripted command runner for testing platform probes and
// installers. Commands are matched by their joined command line; stubbed
// results are consumed in order, with the last one repeating. Unmatched
// commands return an error so tests notice unexpected executions.
type FakeRunner struct {
	mu      sync.Mutex
	results map[string][]FakeResult
	taken   map[string]int
	calls   []string
}

// NewFakeRunner creates an empty fake runner.
func NewFakeRunner() *FakeRunner {
	return &FakeRunner{
		results: make(map[string][]FakeResult),
		taken:   make(map[string]int),
	}
}

// Stub appends a successful outcome for a command line, e.g. "ollama --version".
func (f *FakeRunner) Stub(commandLine, output string) *FakeRunner {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results[commandLine] = append(f.results[commandLine], FakeResult{Output: output})
	return f
}

// StubError appends a failing outcome for a command line.
func (f *FakeRunner) StubError(commandLine string, err error) *FakeRunner {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results[commandLine] = append(f.results[commandLine], FakeResult{Err: err})
	return f
}

// Run implements the command runner contract.
func (f *FakeRunner) Run(ctx context.Context, name string, args ...string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	line := strings.Join(append([]string{name}, args...), " ")

	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, line)

	queue, ok := f.results[line]
	if !ok {
		return "", fmt.Errorf("no stub for command %q", line)
	}
	index := f.taken[line]
	if index >= len(queue) {
		index = len(queue) - 1
	} else {
		f.taken[line]++
	}
	result := queue[index]
	return result.Output, result.Err
}

// Calls returns the command lines executed so far.
func (f *FakeRunner) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

// CallCount returns how many executed command lines contain substr.
func (f *FakeRunner) CallCount(substr string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, call := range f.calls {
		if strings.Contains(call, substr) {
			count++
		}
	}
	return count
}
