package queries

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FranksOps/jobsweep/internal/apperr"
)

func TestParse(t *testing.T) {
	qs, err := Parse(strings.NewReader("cloud engineer remote\n\n  devsecops  \r\nsite reliability"))
	require.NoError(t, err)
	assert.Equal(t, []string{"cloud engineer remote", "", "devsecops", "site reliability"}, qs)
}

func TestParse_Empty(t *testing.T) {
	qs, err := Parse(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, qs)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "queries.txt")
	require.NoError(t, os.WriteFile(path, []byte("a\nb\n"), 0o600))

	qs, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, qs)
}

func TestLoad_Missing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "urls_to_scan.txt")

	_, err := Load(path)
	require.Error(t, err)
	assert.Equal(t, apperr.KindSourceNotFound, apperr.KindOf(err))

	got, ok := Path(err)
	require.True(t, ok)
	assert.Equal(t, path, got)
}
