package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeTestConfig places a config inside the home directory so the
// path-safety validation accepts it.
func writeTestConfig(t *testing.T, body string) string {
	t.Helper()
	home, err := os.UserHomeDir()
	require.NoError(t, err)
	dir, err := os.MkdirTemp(home, "pingwatch-cli-test-*")
	require.NoError(t, err)
	t.Cleanup(func() { _ = os.RemoveAll(dir) })

	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestScheduleCommand(t *testing.T) {
	path := writeTestConfig(t, "work_start: \"09:00\"\nactive_days: [0, 1, 2, 3, 4]\n")

	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"schedule", "--config", path})

	require.NoError(t, root.Execute())
	assert.Contains(t, out.String(), "09:00")
	assert.Contains(t, out.String(), "14:00")
	assert.Contains(t, out.String(), "19:00")
	assert.Contains(t, out.String(), "Upcoming days:")
}

func TestScheduleCommandBadConfig(t *testing.T) {
	path := writeTestConfig(t, "work_start: \"25:00\"\n")

	root := newRootCmd()
	root.SetOut(new(bytes.Buffer))
	root.SetErr(new(bytes.Buffer))
	root.SetArgs([]string{"schedule", "--config", path})

	assert.Error(t, root.Execute())
}

func TestUnknownCommandFails(t *testing.T) {
	root := newRootCmd()
	root.SetOut(new(bytes.Buffer))
	root.SetErr(new(bytes.Buffer))
	root.SetArgs([]string{"bogus"})

	assert.Error(t, root.Execute())
}

func TestInstallCommand(t *testing.T) {
	path := writeTestConfig(t, "work_start: \"09:00\"\n")

	cwd := t.TempDir()
	oldwd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(cwd))
	t.Cleanup(func() { _ = os.Chdir(oldwd) })

	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"install", "--config", path})

	require.NoError(t, root.Execute())

	service, err := os.ReadFile(filepath.Join(cwd, "pingwatch.service"))
	require.NoError(t, err)
	assert.Contains(t, string(service), "Type=oneshot")
	assert.Contains(t, string(service), "run --config "+path)

	timer, err := os.ReadFile(filepath.Join(cwd, "pingwatch.timer"))
	require.NoError(t, err)
	assert.Contains(t, string(timer), "OnCalendar=*:0/15")
}
