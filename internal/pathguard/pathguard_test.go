package pathguard

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newGuard(t *testing.T) (*Guard, string) {
	t.Helper()
	root := t.TempDir()
	g, err := New(root)
	require.NoError(t, err)
	return g, g.Root()
}

func TestCleanRelPath(t *testing.T) {
	cases := map[string]string{
		"":               "",
		".":              "",
		"/":              "",
		"a/b":            "a/b",
		"/a/b":           "a/b",
		"a//b":           "a/b",
		"a/./b":          "a/b",
		"a/../b":         "b",
		"../../etc":      "etc",
		"..\\..\\secret": "secret",
		" spaced ":       "spaced",
	}
	for in, want := range cases {
		assert.Equal(t, want, CleanRelPath(in), "input %q", in)
	}
}

func TestResolveWithinRoot(t *testing.T) {
	g, root := newGuard(t)

	require.NoError(t, os.MkdirAll(filepath.Join(root, "docs"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "docs", "a.txt"), []byte("hello"), 0644))

	ref, err := g.Resolve("docs/a.txt")
	require.NoError(t, err)
	assert.Equal(t, "docs/a.txt", ref.Rel)
	assert.Equal(t, int64(5), ref.Size)
	assert.False(t, ref.IsDir)

	// Root itself resolves.
	ref, err = g.Resolve("")
	require.NoError(t, err)
	assert.True(t, ref.IsDir)
	assert.Equal(t, "", ref.Rel)
}

func TestResolveEscapeAttempts(t *testing.T) {
	g, root := newGuard(t)
	require.NoError(t, os.WriteFile(filepath.Join(root, "inside.txt"), nil, 0644))

	// Dot-dot traversal is normalized back inside the root, so it can
	// never escape; it just names a (missing) file under the root.
	_, err := g.Resolve("../../etc/passwd")
	assert.True(t, errors.Is(err, os.ErrNotExist))

	_, err = g.Resolve("inside.txt")
	assert.NoError(t, err)
}

func TestResolveSymlinkEscape(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlinks need privileges on windows")
	}
	g, root := newGuard(t)

	outside := t.TempDir()
	secret := filepath.Join(outside, "secret.txt")
	require.NoError(t, os.WriteFile(secret, []byte("top"), 0644))
	require.NoError(t, os.Symlink(secret, filepath.Join(root, "link.txt")))

	_, err := g.Resolve("link.txt")
	assert.True(t, errors.Is(err, ErrForbidden), "symlink out of root must be forbidden, got %v", err)

	// A symlink that stays inside the root is fine.
	require.NoError(t, os.WriteFile(filepath.Join(root, "real.txt"), []byte("ok"), 0644))
	require.NoError(t, os.Symlink(filepath.Join(root, "real.txt"), filepath.Join(root, "alias.txt")))
	ref, err := g.Resolve("alias.txt")
	require.NoError(t, err)
	assert.Equal(t, int64(2), ref.Size)
}

func TestSegmentBoundaryPrefix(t *testing.T) {
	root := t.TempDir()
	sub := filepath.Join(root, "data")
	require.NoError(t, os.MkdirAll(sub, 0755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "data2"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "data2", "x.txt"), nil, 0644))

	g, err := New(sub)
	require.NoError(t, err)

	// "/data2" shares a string prefix with "/data" but is not inside it.
	assert.False(t, g.contains(filepath.Join(root, "data2")))
	assert.False(t, g.contains(filepath.Join(root, "data2", "x.txt")))
	assert.True(t, g.contains(filepath.Join(sub, "y.txt")))
}

func TestResolveForWrite(t *testing.T) {
	g, root := newGuard(t)
	require.NoError(t, os.MkdirAll(filepath.Join(root, "up"), 0755))

	abs, err := g.ResolveForWrite("up/new.txt")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "up", "new.txt"), abs)

	// Missing parent directory fails.
	_, err = g.ResolveForWrite("nope/new.txt")
	assert.Error(t, err)

	// Root itself is not a writable target.
	_, err = g.ResolveForWrite("")
	assert.True(t, errors.Is(err, ErrInvalidName))
}

func TestValidateName(t *testing.T) {
	assert.NoError(t, ValidateName("file.txt"))
	assert.NoError(t, ValidateName("unterlagen 2026.pdf"))

	for _, bad := range []string{"", ".", "..", "a/b", "a\\b", "nul\x00", string(make([]byte, 300))} {
		assert.Error(t, ValidateName(bad), "name %q should be invalid", bad)
	}
}

func TestRelFromRoot(t *testing.T) {
	g, root := newGuard(t)
	assert.Equal(t, "a/b.txt", g.RelFromRoot(filepath.Join(root, "a", "b.txt")))
	assert.Equal(t, "", g.RelFromRoot(root))
}
