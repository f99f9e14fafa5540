package secrets

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStoreRoundTrip(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "secure.json")

	s, err := OpenFile(path, "sandbox")
	require.NoError(t, err)
	require.NoError(t, s.Set("client_id", "cid-123"))
	require.NoError(t, s.Set("items", map[string]string{"item-1": "tok"}))
	require.NoError(t, s.Flush())

	reopened, err := OpenFile(path, "sandbox")
	require.NoError(t, err)
	v, err := reopened.GetString("client_id")
	require.NoError(t, err)
	require.Equal(t, "cid-123", v)

	items := map[string]string{}
	ok, err := reopened.Get("items", &items)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "tok", items["item-1"])
}

func TestStoreScopesByEnvironment(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "secure.json")

	sandbox, err := OpenFile(path, "sandbox")
	require.NoError(t, err)
	require.NoError(t, sandbox.Set("secret", "sandbox-secret"))
	require.NoError(t, sandbox.Flush())

	production, err := OpenFile(path, "production")
	require.NoError(t, err)
	v, err := production.GetString("secret")
	require.NoError(t, err)
	require.Empty(t, v)
}

func TestStoreFileIsNotPlaintext(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "secure.json")

	s, err := OpenFile(path, "sandbox")
	require.NoError(t, err)
	require.NoError(t, s.Set("secret", "hunter2"))
	require.NoError(t, s.Flush())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NotContains(t, string(raw), "hunter2")

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestStoreDeleteAndMissingKey(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "secure.json")

	s, err := OpenFile(path, "sandbox")
	require.NoError(t, err)

	var v string
	ok, err := s.Get("missing", &v)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, s.Set("user_id", "u1"))
	s.Delete("user_id")
	require.NoError(t, s.Flush())

	ok, err = s.Get("user_id", &v)
	require.NoError(t, err)
	require.False(t, ok)
}
