package sandbox

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSandbox(t *testing.T) (*Sandbox, string) {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, ".sitesmith", "backups"), 0755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "public"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "editor.php"), []byte("<?php"), 0644))

	s, err := New(root, "editor.php", ".sitesmith")
	require.NoError(t, err)
	return s, s.Root()
}

func TestResolve(t *testing.T) {
	s, root := newTestSandbox(t)

	tests := []struct {
		name      string
		candidate string
		want      string
		wantErr   error
	}{
		{name: "root itself", candidate: "", want: root},
		{name: "dot", candidate: ".", want: root},
		{name: "plain file", candidate: "index.php", want: filepath.Join(root, "index.php")},
		{name: "leading slash is root-relative", candidate: "/public/a.css", want: filepath.Join(root, "public", "a.css")},
		{name: "inner traversal stays inside", candidate: "public/../about.php", want: filepath.Join(root, "about.php")},
		{name: "non-existent nested target", candidate: "new/dir/page.php", want: filepath.Join(root, "new", "dir", "page.php")},
		{name: "parent escape", candidate: "../outside.txt", wantErr: ErrPathEscape},
		{name: "deep escape", candidate: "public/../../../etc/passwd", wantErr: ErrPathEscape},
		{name: "escape through missing dirs", candidate: "a/b/../../../x", wantErr: ErrPathEscape},
		{name: "entry script", candidate: "editor.php", wantErr: ErrProtectedPath},
		{name: "data dir", candidate: ".sitesmith", wantErr: ErrProtectedPath},
		{name: "inside data dir", candidate: ".sitesmith/config.yaml", wantErr: ErrProtectedPath},
		{name: "disguised traversal into data dir", candidate: "public/../.sitesmith/backups/x", wantErr: ErrProtectedPath},
		{name: "disguised traversal to entry script", candidate: "public/./../editor.php", wantErr: ErrProtectedPath},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.Resolve(tt.candidate)
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.True(t, errors.Is(err, tt.wantErr), "got %v, want %v", err, tt.wantErr)
				var pe *PathError
				assert.True(t, errors.As(err, &pe))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolve_SimilarPrefixIsNotProtected(t *testing.T) {
	s, root := newTestSandbox(t)

	got, err := s.Resolve(".sitesmith-notes/todo.txt")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, ".sitesmith-notes", "todo.txt"), got)

	got, err = s.Resolve("editor.php.bak")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "editor.php.bak"), got)
}

func TestResolve_SymlinkEscape(t *testing.T) {
	s, root := newTestSandbox(t)
	outside := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(outside, "secret.txt"), []byte("x"), 0644))

	if err := os.Symlink(outside, filepath.Join(root, "link")); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}

	_, err := s.Resolve("link/secret.txt")
	assert.ErrorIs(t, err, ErrPathEscape)

	_, err = s.Resolve("link/new-file.txt")
	assert.ErrorIs(t, err, ErrPathEscape)
}

func TestResolve_SymlinkIntoProtectedZone(t *testing.T) {
	s, root := newTestSandbox(t)
	if err := os.Symlink(filepath.Join(root, ".sitesmith"), filepath.Join(root, "alias")); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}

	_, err := s.Resolve("alias/backups")
	assert.ErrorIs(t, err, ErrProtectedPath)
}

func TestResolveHelper(t *testing.T) {
	root := t.TempDir()

	_, err := Resolve(root, "../../x")
	assert.ErrorIs(t, err, ErrPathEscape)

	_, err = Resolve(root, "data/x", "data")
	assert.ErrorIs(t, err, ErrProtectedPath)

	_, err = Resolve("", "x")
	assert.Error(t, err)
}

func TestIsProtectedAndRel(t *testing.T) {
	s, root := newTestSandbox(t)

	assert.True(t, s.IsProtected("editor.php"))
	assert.True(t, s.IsProtected("/.sitesmith/backups"))
	assert.False(t, s.IsProtected("public"))
	assert.ElementsMatch(t, []string{"editor.php", ".sitesmith"}, s.Protected())

	rel, err := s.Rel(filepath.Join(root, "public", "a.css"))
	require.NoError(t, err)
	assert.Equal(t, "public/a.css", rel)

	_, err = s.Rel(filepath.Dir(root))
	assert.ErrorIs(t, err, ErrPathEscape)
}
