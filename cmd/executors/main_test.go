package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const profiles = `
logging:
  level: error
pools:
  - name: quick
    sizing: fixed
    core-workers: 2
    workload:
      tasks: 3
      duration: 1ms
  - name: overflow
    sizing: custom
    core-workers: 1
    max-workers: 1
    queue-capacity: 1
    rejection: caller-runs
    workload:
      tasks: 4
      duration: 5ms
`

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func writeProfiles(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pools.yaml")
	require.NoError(t, os.WriteFile(path, []byte(profiles), 0o600))
	return path
}

func TestConfigCommand(t *testing.T) {
	out, err := execute(t, "config")
	require.NoError(t, err)
	for _, name := range []string{"fixed", "cached", "single", "scheduled", "single-scheduled", "work-stealing", "manual"} {
		assert.Contains(t, out, "name: "+name)
	}
	assert.Contains(t, out, "queue: stealing")

	out, err = execute(t, "config", "--config", writeProfiles(t))
	require.NoError(t, err)
	assert.Contains(t, out, "name: quick")
	assert.NotContains(t, out, "name: manual")
}

func TestDemoCommand(t *testing.T) {
	out, err := execute(t, "demo", "--config", writeProfiles(t), "quick", "overflow")
	require.NoError(t, err)

	assert.Contains(t, out, "== quick (fixed) ==")
	assert.Contains(t, out, "quick: submitted=3 completed=3")
	assert.Contains(t, out, "== overflow (custom) ==")
	assert.Contains(t, out, "finished on caller")
	assert.Contains(t, out, "overflow: submitted=4 completed=4")
}

func TestDemoCommand_UnknownProfile(t *testing.T) {
	_, err := execute(t, "demo", "nope")
	assert.Error(t, err)
}

func TestRunCommand(t *testing.T) {
	out, err := execute(t, "run", "--config", writeProfiles(t), "--metrics", "--metrics-address", "127.0.0.1:0")
	require.NoError(t, err)
	assert.Contains(t, out, "quick: submitted=3 completed=3")
	assert.Contains(t, out, "overflow: submitted=4 completed=4")
}

func TestCronCommand(t *testing.T) {
	out, err := execute(t, "cron", "0 */30 * * * *", "-n", "2", "--location", "UTC")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "0 */30 * * * *", lines[0])
	assert.Contains(t, lines[1], "(UTC)")

	_, err = execute(t, "cron", "whenever")
	assert.Error(t, err)
	_, err = execute(t, "cron", "@daily", "--location", "Mars/Olympus")
	assert.Error(t, err)
}
