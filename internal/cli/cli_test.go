package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
	root := NewRootCommandWithIO(strings.NewReader(stdin), out, errOut)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), errOut.String(), err
}

func writeRecords(t *testing.T, lines ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "records.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644))
	return path
}

var sampleRecords = []string{
	`{"target":"local","timestamp":0,"metrics":{"memory":{"used_memory":100,"peak_memory":500}}}`,
	`{"target":"remote","timestamp":0.5,"metrics":{"memory":{"used_memory":200,"peak_memory":900}}}`,
	`{"target":"local","timestamp":2,"metrics":{"memory":{"used_memory":110,"peak_memory":500}}}`,
	`{"target":"remote","timestamp":2.5,"metrics":{"memory":{"used_memory":220,"peak_memory":900}}}`,
	`{"target":"local","timestamp":4,"metrics":{"memory":{"used_memory":120,"peak_memory":500}}}`,
	`{"target":"remote","timestamp":4.5,"metrics":{"memory":{"used_memory":240,"peak_memory":900}}}`,
}

func TestConfigCommandRoundTrip(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	if _, _, err := run(t, "", "config", "set", "view.interval", "5s"); err != nil {
		t.Fatalf("config set failed: %v", err)
	}
	out, _, err := run(t, "", "config", "get", "view.interval")
	if err != nil {
		t.Fatalf("config get failed: %v", err)
	}
	if strings.TrimSpace(out) != "5s" {
		t.Fatalf("unexpected config get output: %q", out)
	}

	if _, _, err := run(t, "", "config", "set", "view.interval", "soon"); err == nil {
		t.Fatal("expected invalid interval to fail")
	}
}

func TestConfigPathAndInit(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "custom.yaml")

	out, _, err := run(t, "", "--config", path, "config", "path")
	require.NoError(t, err)
	assert.Equal(t, path, strings.TrimSpace(out))

	_, _, err = run(t, "", "--config", path, "config", "init")
	require.NoError(t, err)
	assert.FileExists(t, path)

	_, _, err = run(t, "", "--config", path, "config", "init")
	assert.Error(t, err)

	out, _, err = run(t, "", "--config", path, "config", "view", "-o", "json")
	require.NoError(t, err)
	var cfg map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &cfg))
	assert.Contains(t, cfg, "view")
}

func TestTargetCommand(t *testing.T) {
	out, _, err := run(t, "", "target", "--target", "redis", "redis-cli", "-p", "6379", "info")
	require.NoError(t, err)
	assert.JSONEq(t, `{"target":"redis","command_path":"redis-cli","command_args":["-p","6379","info"]}`, out)

	out, _, err = run(t, "", "target", "date")
	require.NoError(t, err)
	var desc struct {
		Target      string `json:"target"`
		CommandPath string `json:"command_path"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &desc))
	assert.Regexp(t, regexp.MustCompile(`^target-[0-9a-f]{8}$`), desc.Target)
	assert.Equal(t, "date", desc.CommandPath)

	_, _, err = run(t, "", "target")
	assert.Error(t, err)
}

func TestFlattenCommand(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	in := `{"target":"a","timestamp":1.5,"metrics":{"m":{"x":1},"role":"primary"}}` + "\n" + "garbage\n"

	out, errOut, err := run(t, in, "flatten")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 2 lines")
	assert.Equal(t, "a\t1.5\tm.x\tnumeric\t1\na\t1.5\trole\tother\t\"primary\"\n", out)
	assert.Contains(t, errOut, "line 2")
}

func TestViewPrintJSON(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := writeRecords(t, sampleRecords...)

	out, _, err := run(t, "", "view", "--print", "--format", "json", "--interval", "2s", "--visible", "5", "--filter", "used", path)
	require.NoError(t, err)

	var got struct {
		Status struct {
			Targets   int  `json:"targets"`
			Paths     int  `json:"paths"`
			Samples   int  `json:"samples"`
			Following bool `json:"following"`
		} `json:"status"`
		Cursor  string `json:"cursor"`
		Metrics []struct {
			Path  string `json:"path"`
			Value string `json:"value"`
			Delta string `json:"delta"`
		} `json:"metrics"`
		Targets []struct {
			Target string `json:"target"`
			Value  string `json:"value"`
		} `json:"targets"`
		Chart []struct {
			Start float64  `json:"start"`
			Delta *float64 `json:"delta"`
		} `json:"chart"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, 2, got.Status.Targets)
	assert.Equal(t, 2, got.Status.Paths)
	assert.Equal(t, 6, got.Status.Samples)
	assert.True(t, got.Status.Following)
	assert.Equal(t, "memory.used_memory", got.Cursor)
	require.Len(t, got.Metrics, 1)
	assert.Equal(t, "360", got.Metrics[0].Value)
	assert.Equal(t, "15", got.Metrics[0].Delta)
	require.Len(t, got.Targets, 2)
	assert.Equal(t, "240", got.Targets[1].Value)
	require.Len(t, got.Chart, 5)
	assert.Nil(t, got.Chart[0].Delta)
	require.NotNil(t, got.Chart[4].Delta)
	assert.Equal(t, 15.0, *got.Chart[4].Delta)
}

func TestViewPrintText(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := writeRecords(t, append([]string{"not json"}, sampleRecords...)...)

	out, errOut, err := run(t, "", "view", "--print", "--interval", "2s", "--visible", "3", path)
	require.NoError(t, err)
	assert.Contains(t, errOut, "line 1")
	assert.Contains(t, out, "rejected 1")
	assert.Contains(t, out, "memory.peak_memory")
	assert.Contains(t, out, "1,400")
	assert.Contains(t, out, "memory.used_memory")
}

func TestViewRejectsBadFlags(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := writeRecords(t, sampleRecords...)

	cases := []struct {
		name string
		args []string
	}{
		{name: "print with follow", args: []string{"view", "--print", "--follow", path}},
		{name: "unknown format", args: []string{"view", "--print", "--format", "xml", path}},
		{name: "zero interval", args: []string{"view", "--print", "--interval", "0s", path}},
		{name: "bad regex", args: []string{"view", "--print", "--regex", "--filter", "(", path}},
		{name: "missing file", args: []string{"view", "--print", filepath.Join(t.TempDir(), "nope")}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, _, err := run(t, "", tc.args...); err == nil {
				t.Fatalf("expected %v to fail", tc.args)
			}
		})
	}
}

func TestPollCommandEmitsRecords(t *testing.T) {
	if _, err := exec.LookPath("echo"); err != nil {
		t.Skip("echo not available")
	}
	t.Setenv("HOME", t.TempDir())
	targets := `{"target":"e","command_path":"echo","command_args":["{\"a\":{\"b\":1}}"]}` + "\n"

	out, _, err := run(t, targets, "poll", "--count", "2", "-i", "10ms")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	for _, line := range lines {
		var rec struct {
			Target    string          `json:"target"`
			Timestamp float64         `json:"timestamp"`
			Metrics   json.RawMessage `json:"metrics"`
		}
		require.NoError(t, json.Unmarshal([]byte(line), &rec))
		assert.Equal(t, "e", rec.Target)
		assert.Greater(t, rec.Timestamp, 0.0)
		assert.JSONEq(t, `{"a":{"b":1}}`, string(rec.Metrics))
	}
}

func TestPollCommandRequiresTargets(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	_, _, err := run(t, "", "poll", "--count", "1")
	assert.Error(t, err)
}

func TestVersionCommand(t *testing.T) {
	out, _, err := run(t, "", "version")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "magpies dev"), out)
}
