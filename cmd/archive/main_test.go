package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T) (string, string) {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "settings.json")
	body := `{
		"archiveRoot": "` + filepath.Join(dir, "archive") + `",
		"temporaryUploadPath": "` + filepath.Join(dir, "tmp") + `",
		"hashAlgorithm": "sha256"
	}`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path, dir
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() { showEntry = false })
	err := rootCmd.Execute()
	return out.String(), err
}

func TestConfigShow(t *testing.T) {
	path, dir := writeConfig(t)

	out, err := execute(t, "--config", path, "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "archiveRoot: "+filepath.Join(dir, "archive"))
	assert.Contains(t, out, "hashAlgorithm: sha256")
	assert.Contains(t, out, "docx:")
}

func TestResolveRejectsMalformedHash(t *testing.T) {
	path, _ := writeConfig(t)

	_, err := execute(t, "--config", path, "resolve", "not-a-hash")
	require.Error(t, err)
	assert.Equal(t, "Hash not recognized", err.Error())
}

func TestResolveMissingEntry(t *testing.T) {
	path, _ := writeConfig(t)
	hash := "E3B0C44298FC1C149AFBF4C8996FB92427AE41E4649B934CA495991B7852B855"

	_, err := execute(t, "--config", path, "resolve", hash, "1")
	require.Error(t, err)
}

func TestStageLocalFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "Report.DOCX")
	require.NoError(t, os.WriteFile(src, []byte("quarterly"), 0o644))
	tempDir := filepath.Join(dir, "uploads")

	d, err := stageLocalFile(tempDir, src)
	require.NoError(t, err)
	assert.Equal(t, "Report.DOCX", d.OriginalName)
	assert.Equal(t, int64(9), d.Size)
	assert.Equal(t, ".docx", filepath.Ext(d.FileName))
	assert.Equal(t, tempDir, filepath.Dir(d.TempPath))

	data, err := os.ReadFile(d.TempPath)
	require.NoError(t, err)
	assert.Equal(t, "quarterly", string(data))

	_, err = os.Stat(src)
	assert.NoError(t, err, "source must be left in place")
}

func TestStageLocalFileMissingSource(t *testing.T) {
	_, err := stageLocalFile(t.TempDir(), filepath.Join(t.TempDir(), "missing.pdf"))
	require.Error(t, err)
	assert.Equal(t, "Uploaded file can not be accessed", err.Error())
}
