package file

import (
	"archive/zip"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sigbench/sigctl/pkg/log"
)

func TestMain(m *testing.M) {
	log.Init(true)
	m.Run()
}

func TestWriteToCreatesParents(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a", "b", "out.txt")

	require.NoError(t, WriteTo(path, "contents"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "contents", string(data))
}

func TestExistsAndIsDir(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "f.txt")
	require.NoError(t, WriteTo(path, ""))

	assert.NoError(t, Exists(path))
	assert.ErrorIs(t, Exists(dir), ErrPathIsDir)
	assert.Error(t, Exists(filepath.Join(dir, "missing")))

	assert.NoError(t, IsDir(dir))
	assert.ErrorIs(t, IsDir(path), ErrPathIsFile)
}

func TestCreateArchive(t *testing.T) {
	dir := t.TempDir()

	files := []string{
		filepath.Join(dir, "one.txt"),
		filepath.Join(dir, "sub", "two.txt"),
	}
	for _, f := range files {
		require.NoError(t, WriteTo(f, "payload"))
	}

	zipPath := filepath.Join(dir, "result.zip")
	require.NoError(t, CreateArchive(zipPath, files))
	assert.FileExists(t, zipPath)

	zf, err := zip.OpenReader(zipPath)
	require.NoError(t, err)
	defer zf.Close()

	names := make([]string, 0, len(zf.File))
	for _, f := range zf.File {
		names = append(names, f.Name)
	}
	assert.ElementsMatch(t, []string{"one.txt", "two.txt"}, names)
}

func TestCreateArchiveAppendsExtension(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "data.bin")
	require.NoError(t, WriteTo(src, "x"))

	require.NoError(t, CreateArchive(filepath.Join(dir, "noext"), []string{src}))
	assert.FileExists(t, filepath.Join(dir, "noext.zip"))
}

func TestCreateArchiveReportsMissingFiles(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "real.txt")
	require.NoError(t, WriteTo(src, "x"))

	err := CreateArchive(filepath.Join(dir, "partial.zip"), []string{
		src,
		filepath.Join(dir, "missing.txt"),
	})
	assert.Error(t, err)

	// The archive still contains the readable file
	zf, zerr := zip.OpenReader(filepath.Join(dir, "partial.zip"))
	require.NoError(t, zerr)
	defer zf.Close()
	require.Len(t, zf.File, 1)
	assert.Equal(t, "real.txt", zf.File[0].Name)
}
