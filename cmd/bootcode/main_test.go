package main

import (
	"archive/zip"
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bootcode/pkg/cpu"
)

const sampleListing = `nop +0
acc +1
jmp +4
acc +3
jmp -3
acc -99
acc +1
jmp -4
acc +6
`

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

// execute runs the CLI in-process and returns stdout, stderr and the error.
func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	t.Setenv("BOOTCODE_CONFIG", "")
	var out, errOut bytes.Buffer
	cmd := newRootCmd(&out, &errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

func TestRunCommand(t *testing.T) {
	path := writeFile(t, t.TempDir(), "boot.txt", sampleListing)

	out, _, err := execute(t, "run", path)
	require.NoError(t, err)
	assert.Equal(t, "looped acc=5 pc=1\n", out)

	out, _, err = execute(t, "run", "--trace", path)
	require.NoError(t, err)
	assert.Equal(t, "looped acc=5 pc=1\ntrace: 0 1 2 6 7 3 4\n", out)

	out, _, err = execute(t, "run", "--start-pc", "8", "--start-acc", "2", path)
	require.NoError(t, err)
	assert.Equal(t, "halted acc=8\n", out)
}

func TestRunCommand_Crash(t *testing.T) {
	path := writeFile(t, t.TempDir(), "crash.txt", "jmp +999\nnop +0\nnop +0\n")

	out, _, err := execute(t, "run", path)
	require.NoError(t, err, "a crash is an outcome, not a command failure")
	assert.Equal(t, "crashed pc=999\n", out)
}

func TestRunCommand_DecodeError(t *testing.T) {
	path := writeFile(t, t.TempDir(), "bad.txt", "nop +0\nfoo +3\n")

	out, _, err := execute(t, "run", path)
	require.Error(t, err)
	assert.Empty(t, out, "nothing runs when decoding fails")
	assert.Contains(t, err.Error(), `line 2: unknown opcode: "foo +3"`)
}

func TestRepairCommand(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "boot.txt", sampleListing)
	fixed := filepath.Join(dir, "fixed.txt")

	out, _, err := execute(t, "repair", "--write", fixed, path)
	require.NoError(t, err)
	assert.Equal(t, "fixed index=7 acc=8\n", out)

	raw, err := os.ReadFile(fixed)
	require.NoError(t, err)
	assert.Equal(t, strings.Replace(sampleListing, "jmp -4", "nop -4", 1), string(raw))

	out, _, err = execute(t, "run", fixed)
	require.NoError(t, err)
	assert.Equal(t, "halted acc=8\n", out)

	out, _, err = execute(t, "repair", "--workers", "4", path)
	require.NoError(t, err)
	assert.Equal(t, "fixed index=7 acc=8\n", out)
}

func TestRepairCommand_Failures(t *testing.T) {
	dir := t.TempDir()

	out, _, err := execute(t, "repair", writeFile(t, dir, "stuck.txt", "jmp +0\njmp -1\n"))
	assert.ErrorIs(t, err, errUnfixable)
	assert.Equal(t, "unfixable\n", out)

	_, _, err = execute(t, "repair", writeFile(t, dir, "fine.txt", "acc +1\n"))
	assert.ErrorIs(t, err, errNotLooping)
}

func TestCheckAndDisasm(t *testing.T) {
	path := writeFile(t, t.TempDir(), "boot.txt", "nop 0\n\n# bump\nacc 12\njmp -1\n")

	out, _, err := execute(t, "check", path)
	require.NoError(t, err)
	assert.Equal(t, "ok: 3 instructions\n", out)

	out, _, err = execute(t, "disasm", path)
	require.NoError(t, err)
	assert.Equal(t, "nop +0\nacc +12\njmp -1\n", out)
}

func TestBatchCommand(t *testing.T) {
	in := t.TempDir()
	outDir := t.TempDir()
	writeFile(t, in, "one.txt", sampleListing)
	writeFile(t, in, "two.txt", "acc +2\nnop +0\njmp -2\n")
	writeFile(t, in, "three.txt", "jmp +0\njmp -1\n")

	out, _, err := execute(t, "batch", "--out", outDir, in)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 3 listings not repaired")
	assert.Contains(t, out, "one.txt: fixed index=7 acc=8\n")
	assert.Contains(t, out, "two.txt: fixed index=2 acc=2\n")
	assert.Contains(t, out, "three.txt: unfixable\n")

	raw, err := os.ReadFile(filepath.Join(outDir, "two-txt.fix"))
	require.NoError(t, err)
	assert.Equal(t, "acc +2\nnop +0\nnop -2\n", string(raw))
	assert.FileExists(t, filepath.Join(outDir, "one-txt.fix"))
	assert.NoFileExists(t, filepath.Join(outDir, "three-txt.fix"))
}

func TestBatchCommand_NamesAndRejects(t *testing.T) {
	in := t.TempDir()
	outDir := t.TempDir()
	writeFile(t, in, "a.txt", sampleListing)
	writeFile(t, in, "a.in", "acc +2\nnop +0\njmp -2\n")
	writeFile(t, in, "a-txt", "acc +3\nnop +0\njmp -2\n")
	writeFile(t, in, "broken.txt", "nop +0\njmp +1 # note\n")

	out, _, err := execute(t, "batch", "--out", outDir, in)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "2 of 4 listings not repaired")
	assert.Contains(t, out, "broken.txt: line 2: malformed instruction")
	assert.Contains(t, out, "a.txt: a-txt.fix already holds another repair\n")

	raw, err := os.ReadFile(filepath.Join(outDir, "a-in.fix"))
	require.NoError(t, err)
	assert.Equal(t, "acc +2\nnop +0\nnop -2\n", string(raw))

	// a-txt sorts before a.txt and claims the shared name first.
	raw, err = os.ReadFile(filepath.Join(outDir, "a-txt.fix"))
	require.NoError(t, err)
	assert.Equal(t, "acc +3\nnop +0\nnop -2\n", string(raw))
}

func TestFixName(t *testing.T) {
	assert.Equal(t, "boot-txt.fix", fixName("boot.txt"))
	assert.Equal(t, "boot-in.fix", fixName("boot.in"))
	assert.Equal(t, "boot.fix", fixName("boot"))
}

func TestSnapshotAndResume(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "boot.txt", sampleListing)
	snap := filepath.Join(dir, "boot.snap")

	out, _, err := execute(t, "snapshot", "--steps", "3", "--out", snap, path)
	require.NoError(t, err)
	assert.Equal(t, "paused running acc=1 pc=6 -> "+snap+"\n", out)

	out, _, err = execute(t, "resume", snap)
	require.NoError(t, err)
	assert.Equal(t, "looped acc=5 pc=1\n", out)
}

func TestResume_InconsistentSnapshot(t *testing.T) {
	snap := filepath.Join(t.TempDir(), "bad.snap")
	buf := new(bytes.Buffer)
	zw := zip.NewWriter(buf)
	w, err := zw.Create("cpu_state.json")
	require.NoError(t, err)
	_, err = w.Write([]byte(`{"program":[{"op":"nop","arg":0},{"op":"acc","arg":1}],"pc":0,"steps":5,"visited":[]}`))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, os.WriteFile(snap, buf.Bytes(), 0o644))

	var out string
	require.NotPanics(t, func() {
		out, _, err = execute(t, "resume", snap)
	})
	assert.ErrorIs(t, err, cpu.ErrBadSnapshot)
	assert.Empty(t, out)
}

func TestConfigAndMetrics(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "boot.txt", sampleListing)
	prom := filepath.Join(dir, "bootcode.prom")
	cfg := writeFile(t, dir, "bootcode.yaml", "run:\n  trace: true\nrepair:\n  workers: 2\nlog:\n  level: debug\n  format: json\nmetrics:\n  textfile: "+prom+"\n")

	out, errOut, err := execute(t, "--config", cfg, "repair", path)
	require.NoError(t, err)
	assert.Equal(t, "fixed index=7 acc=8\n", out)
	assert.Contains(t, errOut, `"msg":"repair found"`)

	raw, err := os.ReadFile(prom)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `bootcode_repair_searches_total{outcome="fixed"} 1`)
	assert.Contains(t, string(raw), "bootcode_repair_candidates_total 3")

	out, _, err = execute(t, "--config", cfg, "run", path)
	require.NoError(t, err)
	assert.Contains(t, out, "trace: 0 1 2 6 7 3 4")

	_, _, err = execute(t, "--config", cfg, "--log-level", "chatty", "run", path)
	assert.Error(t, err)
}
