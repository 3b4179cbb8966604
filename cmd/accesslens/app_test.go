package main

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeAppConfig(t *testing.T, dir, ciemLine string) string {
	t.Helper()
	content := fmt.Sprintf(`
tenant:
  base_url: https://tenant.example.com
%s  client_id: cid
  client_secret: secret
database: %s
`, ciemLine, filepath.Join(dir, "runs.db"))
	path := filepath.Join(dir, "accesslens.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestNewAppRoutesCiemToItsOwnEndpoint(t *testing.T) {
	dir := t.TempDir()
	path := writeAppConfig(t, dir, "  ciem_base_url: https://ciem.example.com\n")

	a, err := newApp(path)
	require.NoError(t, err)
	defer a.Close()

	assert.Equal(t, "https://tenant.example.com", a.API.BaseURL())
	assert.Equal(t, "https://ciem.example.com", a.CiemAPI.BaseURL())
	assert.NotSame(t, a.API, a.CiemAPI)
}

func TestNewAppSharesClientWhenCiemURLMatches(t *testing.T) {
	dir := t.TempDir()
	path := writeAppConfig(t, dir, "")

	a, err := newApp(path)
	require.NoError(t, err)
	defer a.Close()

	assert.Same(t, a.API, a.CiemAPI)
}

type stubCounter int64

func (s stubCounter) Calls() int64 { return int64(s) }

func TestAggregateCallsSumsCounters(t *testing.T) {
	calls := aggregateCalls{stubCounter(3), stubCounter(4)}
	assert.Equal(t, int64(7), calls.Calls())
}
