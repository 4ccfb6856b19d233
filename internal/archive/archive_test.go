package archive

import (
	"archive/tar"
	"compress/gzip"
	"io"
	"net"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// extract reads a tar.gz stream and returns regular file contents keyed by
// member name, plus the set of directory names.
func extract(t *testing.T, r io.Reader) (map[string]string, map[string]bool) {
	t.Helper()

	gz, err := gzip.NewReader(r)
	require.NoError(t, err)
	defer gz.Close()

	files := map[string]string{}
	dirs := map[string]bool{}
	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)

		switch hdr.Typeflag {
		case tar.TypeDir:
			dirs[hdr.Name] = true
		case tar.TypeReg:
			data, err := io.ReadAll(tr)
			require.NoError(t, err)
			files[hdr.Name] = string(data)
		}
	}
	return files, dirs
}

func writeTree(t *testing.T, root string, tree map[string]string) {
	t.Helper()
	for rel, content := range tree {
		full := filepath.Join(root, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
	}
}

func TestBuild_RoundTrip(t *testing.T) {
	src := filepath.Join(t.TempDir(), "app")
	tree := map[string]string{
		"main.txt":         "hello world",
		"subdir/file2.txt": "nested content",
		".hidden":          "secret",
		"deep/a/b/c.txt":   "deep",
		"dist/old.tar.gz":  "not really gzip",
		"empty.txt":        "",
	}
	writeTree(t, src, tree)
	require.NoError(t, os.MkdirAll(filepath.Join(src, "emptydir"), 0o755))

	r, stats, err := Build(src)
	require.NoError(t, err)

	files, dirs := extract(t, r)

	want := map[string]string{}
	for rel, content := range tree {
		want["app/"+filepath.ToSlash(rel)] = content
	}
	assert.Equal(t, want, files)

	assert.True(t, dirs["app/"], "root entry must be named after the source directory")
	assert.True(t, dirs["app/emptydir/"])
	assert.True(t, dirs["app/deep/a/b/"])

	assert.Equal(t, len(tree), stats.Files)
	assert.Equal(t, int64(r.Size()), stats.Compressed)
	assert.Equal(t, int64(len("hello world")+len("nested content")+len("secret")+len("deep")+len("not really gzip")), stats.Bytes)
}

func TestBuild_ReaderAtStart(t *testing.T) {
	src := t.TempDir()
	writeTree(t, src, map[string]string{"a.txt": "a"})

	r, _, err := Build(src)
	require.NoError(t, err)

	assert.Equal(t, r.Size(), int64(r.Len()), "reader should be positioned at offset zero")

	magic := make([]byte, 2)
	_, err = io.ReadFull(r, magic)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x1f, 0x8b}, magic)
}

func TestBuild_SingleRootEntry(t *testing.T) {
	src := filepath.Join(t.TempDir(), "service")
	writeTree(t, src, map[string]string{"x/y.txt": "y", "z.txt": "z"})

	r, _, err := Build(src)
	require.NoError(t, err)

	files, dirs := extract(t, r)
	for name := range files {
		assert.Regexp(t, `^service/`, name)
	}
	for name := range dirs {
		assert.Regexp(t, `^service/`, name)
	}
}

func TestBuild_Symlink(t *testing.T) {
	src := filepath.Join(t.TempDir(), "app")
	writeTree(t, src, map[string]string{"target.txt": "t"})
	if err := os.Symlink("target.txt", filepath.Join(src, "link.txt")); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}

	r, stats, err := Build(src)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Files)

	gz, err := gzip.NewReader(r)
	require.NoError(t, err)
	tr := tar.NewReader(gz)

	var found bool
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		if hdr.Name == "app/link.txt" {
			found = true
			assert.Equal(t, byte(tar.TypeSymlink), hdr.Typeflag)
			assert.Equal(t, "target.txt", hdr.Linkname)
		}
	}
	assert.True(t, found)
}

func TestBuild_MissingDirectory(t *testing.T) {
	_, _, err := Build(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}

func TestBuild_SkipsSockets(t *testing.T) {
	src := filepath.Join(t.TempDir(), "app")
	writeTree(t, src, map[string]string{"main.txt": "x"})

	sock := filepath.Join(src, "app.sock")
	l, err := net.Listen("unix", sock)
	if err != nil {
		t.Skipf("unix sockets unsupported: %v", err)
	}
	defer l.Close()

	r, stats, err := Build(src)
	require.NoError(t, err)
	assert.Equal(t, []string{sock}, stats.Skipped)

	files, _ := extract(t, r)
	assert.Equal(t, map[string]string{"app/main.txt": "x"}, files)
}
