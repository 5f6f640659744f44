package domaincontext

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"logbook/internal/domain"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestLoadRegistry(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "fitness.yaml"), `
name: fitness
description: Workouts
vocabulary:
  5k: five kilometer run
evaluation_rules:
  - cite dates
clarification_patterns:
  timeframe:
    - Which week?
`)
	writeFile(t, filepath.Join(dir, "health", "sleep.yaml"), `
name: sleep
description: Sleep tracking
expertise: Knows sleep hygiene.
`)
	writeFile(t, filepath.Join(dir, "notes.txt"), "ignored")

	r, err := LoadRegistry(dir, "")
	require.NoError(t, err)
	require.Equal(t, 2, r.Len())

	names := []string{}
	for _, m := range r.List() {
		names = append(names, m.Name)
	}
	assert.Equal(t, []string{"fitness", "sleep"}, names)

	m, ok := r.Get("fitness")
	require.True(t, ok)
	assert.Equal(t, "five kilometer run", m.Vocabulary["5k"])
	assert.Equal(t, []string{"Which week?"}, m.ClarificationPatterns["timeframe"])
}

func TestLoadRegistry_MissingDir(t *testing.T) {
	r, err := LoadRegistry(filepath.Join(t.TempDir(), "nope"), "")
	require.NoError(t, err)
	assert.Equal(t, 0, r.Len())
}

func TestNewRegistry_RejectsDuplicates(t *testing.T) {
	_, err := NewRegistry(domain.DomainModule{Name: "a"}, domain.DomainModule{Name: "a"})
	assert.Error(t, err)

	_, err = NewRegistry(domain.DomainModule{})
	assert.Error(t, err)
}
