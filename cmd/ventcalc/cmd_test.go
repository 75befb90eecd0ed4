package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/couchcryptid/vent-capacity-service/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	root := newRootCmd(&stdout, &stderr)
	root.SetArgs(args)
	err := root.Execute()
	return stdout.String(), stderr.String(), err
}

func TestAssess_Pass(t *testing.T) {
	out, _, err := run(t, "assess", filepath.Join("testdata", "pass.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 0, exitCode(err))

	var a struct {
		Site   string `json:"site"`
		Margin struct {
			Status string `json:"status"`
		} `json:"margin"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &a))
	assert.Equal(t, "Pad 12", a.Site)
	assert.Equal(t, string(domain.MarginPass), a.Margin.Status)
}

func TestAssess_CapacityUndefined(t *testing.T) {
	out, stderr, err := run(t, "assess", filepath.Join("testdata", "undefined.toml"))
	require.ErrorIs(t, err, errMarginFailed)
	assert.Equal(t, 2, exitCode(err))
	assert.Contains(t, err.Error(), "capacity_undefined")
	assert.Contains(t, out, `"state": "unconfigured"`)
	assert.Empty(t, stderr)
}

func TestAssess_InvalidCase(t *testing.T) {
	_, _, err := run(t, "assess", filepath.Join("testdata", "invalid.yaml"))
	require.ErrorIs(t, err, domain.ErrUnknownNominalSize)
	assert.Equal(t, 1, exitCode(err))
}

func TestAssess_RequiresOneArg(t *testing.T) {
	_, _, err := run(t, "assess")
	require.Error(t, err)
	assert.Equal(t, 1, exitCode(err))
}

func TestAssess_FlashOverride(t *testing.T) {
	base, _, err := run(t, "assess", filepath.Join("testdata", "pass.yaml"))
	require.NoError(t, err)
	overridden, _, err := run(t, "--oil-base-flash", "20", "assess", filepath.Join("testdata", "pass.yaml"))
	require.NoError(t, err)

	// No flash streams in the case, so the override changes nothing.
	assert.JSONEq(t, stripTimestamp(t, base), stripTimestamp(t, overridden))
}

func TestAssess_VerboseLogs(t *testing.T) {
	_, stderr, err := run(t, "-v", "assess", filepath.Join("testdata", "pass.yaml"))
	require.NoError(t, err)
	assert.Contains(t, stderr, "header evaluated")
	assert.Contains(t, stderr, "site assessed")
}

func TestExport_ToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snapshot.csv")
	out, _, err := run(t, "export", filepath.Join("testdata", "pass.yaml"), "-o", path)
	require.NoError(t, err)
	assert.Empty(t, out)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	// column names, oil tanks, inventory total, run, header, thermal breathing, summary
	require.Len(t, lines, 7)
	assert.True(t, strings.HasPrefix(lines[0], "section,"))
	assert.True(t, strings.HasPrefix(lines[1], "inventory,,oil_tanks,"))
	assert.Contains(t, lines[2], ",500,125,")
	assert.True(t, strings.HasPrefix(lines[6], "summary,"))
}

func TestExport_Stdout(t *testing.T) {
	out, _, err := run(t, "export", filepath.Join("testdata", "undefined.toml"))
	require.ErrorIs(t, err, errMarginFailed)
	assert.Contains(t, out, "summary,,Pad 3,")
	assert.Contains(t, out, "capacity_undefined")
}

func stripTimestamp(t *testing.T, s string) string {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal([]byte(s), &m))
	delete(m, "assessed_at")
	b, err := json.Marshal(m)
	require.NoError(t, err)
	return string(b)
}
