package sandbox

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewGuardRequiresRoot(t *testing.T) {
	_, err := NewGuard("")
	assert.Error(t, err)
}

func TestNewGuardResolvesNonExistentRoot(t *testing.T) {
	base := t.TempDir()
	root := filepath.Join(base, "downloads", "nested")

	g, err := NewGuard(root)
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(g.Root()))
	assert.Contains(t, g.Root(), "nested")
}

func TestValidatePath(t *testing.T) {
	root := t.TempDir()
	g, err := NewGuard(root)
	require.NoError(t, err)

	tests := []struct {
		name    string
		path    string
		wantErr bool
	}{
		{"file in root", filepath.Join(root, "invoice.pdf"), false},
		{"nested file", filepath.Join(root, "2026", "invoice.pdf"), false},
		{"relative file", "invoice.pdf", false},
		{"root itself", root, false},
		{"empty path", "", true},
		{"parent escape", filepath.Join(root, "..", "evil.pdf"), true},
		{"relative traversal", "../evil.pdf", true},
		{"absolute outside", filepath.Join(filepath.Dir(root), "other", "f.pdf"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := g.ValidatePath(tt.path)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidatePathRejectsSymlinkEscape(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlink semantics differ on windows")
	}

	base := t.TempDir()
	root := filepath.Join(base, "downloads")
	outside := filepath.Join(base, "outside")
	require.NoError(t, os.MkdirAll(root, 0750))
	require.NoError(t, os.MkdirAll(outside, 0750))

	link := filepath.Join(root, "link")
	require.NoError(t, os.Symlink(outside, link))

	g, err := NewGuard(root)
	require.NoError(t, err)

	assert.Error(t, g.ValidatePath(filepath.Join(link, "f.pdf")))
}

func TestResolvePathJoinsRelativeToRoot(t *testing.T) {
	root := t.TempDir()
	g, err := NewGuard(root)
	require.NoError(t, err)

	resolved, err := g.ResolvePath("sub/invoice.pdf")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(g.Root(), "sub", "invoice.pdf"), resolved)
}
