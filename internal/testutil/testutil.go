// Package testutil provides shared helpers for package tests: thread-safe
// log capture, config fixtures, and spy script handlers.
package testutil

import (
	"bytes"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vk/climadiag/internal/config"
)

// SafeBuffer is a thread-safe buffer for capturing log output in tests.
type SafeBuffer struct {
	b  bytes.Buffer
	mu sync.Mutex
}

// Write implements the io.Writer interface for SafeBuffer.
func (b *SafeBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.Write(p)
}

// String implements the fmt.Stringer interface for SafeBuffer.
func (b *SafeBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.String()
}

// ResolveYAML parses, resolves and validates a configuration document,
// failing the test on any error.
func ResolveYAML(t *testing.T, doc string) *config.Resolved {
	t.Helper()
	parsed, err := config.Parse([]byte(doc))
	require.NoError(t, err)
	resolved, err := config.Resolve(parsed)
	require.NoError(t, err)
	require.NoError(t, resolved.Validate())
	return resolved
}
