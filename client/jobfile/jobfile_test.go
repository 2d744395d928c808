package jobfile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestWorkdirsEntry_PlainString(t *testing.T) {
	var e WorkdirsEntry
	require.NoError(t, yaml.Unmarshal([]byte(`/data/runs/a`), &e))
	assert.Equal(t, "/data/runs/a", e.Workdir)
	assert.Equal(t, 0, e.NGPU)
}

func TestWorkdirsEntry_ObjectWithOverrides(t *testing.T) {
	var e WorkdirsEntry
	require.NoError(t, yaml.Unmarshal([]byte(`{ workdir: /data/runs/c, ngpu: 2, log_file: c.log }`), &e))
	assert.Equal(t, "/data/runs/c", e.Workdir)
	assert.Equal(t, 2, e.NGPU)
	assert.Equal(t, "c.log", e.LogFile)
}

func TestWorkdirsEntry_ListMixed(t *testing.T) {
	var entries []WorkdirsEntry
	err := yaml.Unmarshal([]byte("- /data/runs/a\n- { workdir: /data/runs/b, ncpu: 4 }"), &entries)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "/data/runs/a", entries[0].Workdir)
	assert.Equal(t, "/data/runs/b", entries[1].Workdir)
	assert.Equal(t, 4, entries[1].NCPU)
}

func TestManifestValidate_RejectsWrongVersion(t *testing.T) {
	m := Manifest{Version: "2", Workdirs: []WorkdirsEntry{{Workdir: "x"}}}
	err := m.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported manifest version")
}

func TestManifestValidate_RejectsEmptyWorkdirs(t *testing.T) {
	m := Manifest{Version: ManifestVersion}
	err := m.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no workdirs")
}

func TestRead_SkipsMissingWorkdirsButKeepsRest(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a")
	require.NoError(t, os.Mkdir(a, 0o755))

	manifest := filepath.Join(dir, "batch.yaml")
	content := "version: \"1\"\nscript: /data/train.sh\nncpu: 4\nworkdirs:\n  - " + a + "\n  - /does/not/exist\n"
	require.NoError(t, os.WriteFile(manifest, []byte(content), 0o644))

	m, err := Read(manifest)
	require.NoError(t, err)
	require.Len(t, m.Workdirs, 1)
	assert.Equal(t, a, m.Workdirs[0].Workdir)
	assert.Equal(t, 4, m.NCPU)
}

func TestReadWorkdirsFile_SkipsCommentsBlankAndMissing(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a")
	b := filepath.Join(dir, "b")
	require.NoError(t, os.Mkdir(a, 0o755))
	require.NoError(t, os.Mkdir(b, 0o755))

	file := filepath.Join(dir, "workdirs.txt")
	content := "# a comment\n\n" + a + "\n" + b + "\n/does/not/exist\n"
	require.NoError(t, os.WriteFile(file, []byte(content), 0o644))

	workdirs, err := ReadWorkdirsFile(file)
	require.NoError(t, err)
	assert.Equal(t, []string{a, b}, workdirs)
}
