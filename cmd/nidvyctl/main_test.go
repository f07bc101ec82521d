package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nidvy/host/internal/journal"
	"github.com/nidvy/host/internal/log"
	"github.com/nidvy/host/internal/protocol"
)

func TestSendValidatesArgumentsBeforeSpawning(t *testing.T) {
	tests := []struct {
		name       string
		args       []string
		wantStderr string
	}{
		{name: "no method", args: nil, wantStderr: "method is required"},
		{name: "bad params", args: []string{"window.create", "{nope"}, wantStderr: "not valid JSON"},
		{name: "bad flag", args: []string{"--frob"}, wantStderr: "flag provided but not defined"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			code := sendCommand(tt.args, &stdout, &stderr)
			assert.Equal(t, 1, code)
			assert.Contains(t, stderr.String(), tt.wantStderr)
			assert.Empty(t, stdout.String())
		})
	}
}

func TestSendReportsMissingHost(t *testing.T) {
	var stdout, stderr bytes.Buffer
	host := filepath.Join(t.TempDir(), "no-such-host")
	code := sendCommand([]string{"--host", host, "window.create"}, &stdout, &stderr)
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr.String(), "start host")
}

func TestHostFlagsArgs(t *testing.T) {
	assert.Nil(t, (&hostFlags{}).args())
	assert.Equal(t, []string{"--config", "/etc/nidvy.yaml"}, (&hostFlags{config: "/etc/nidvy.yaml"}).args())
}

func TestPrintUsage(t *testing.T) {
	var buf bytes.Buffer
	printUsage(&buf)
	assert.Contains(t, buf.String(), "nidvyctl send")
	assert.Contains(t, buf.String(), "nidvyctl console")
}

func TestDoctorDefaults(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := doctorCommand(nil, &stdout, &stderr)
	assert.Equal(t, 0, code)
	assert.Equal(t, "Configuration valid.\n", stdout.String())
}

func TestDoctorReportsWarningsAsJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "host.yaml")
	require.NoError(t, os.WriteFile(path, []byte("window:\n  url: ftp://example.com\n"), 0o600))

	var stdout, stderr bytes.Buffer
	code := doctorCommand([]string{"--config", path, "--json"}, &stdout, &stderr)
	assert.Equal(t, 0, code, stderr.String())

	var report struct {
		Valid    bool `json:"valid"`
		Warnings []struct {
			Field string `json:"field"`
		} `json:"warnings"`
	}
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &report))
	assert.True(t, report.Valid)
	require.Len(t, report.Warnings, 1)
	assert.Equal(t, "window.url", report.Warnings[0].Field)
}

func TestDoctorMissingConfig(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := doctorCommand([]string{"--config", filepath.Join(t.TempDir(), "nope.yaml")}, &stdout, &stderr)
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr.String(), "doctor:")
}

func TestInspectJournal(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")
	j, err := journal.Open(context.Background(), path, "sess-1", "", log.Discard())
	require.NoError(t, err)
	cmd := protocol.Command{Method: "window.create"}
	j.Record(journal.Entry{Seq: 1, Command: cmd, Response: protocol.NewResult(cmd, nil), DispatchedAt: time.Now()})
	require.NoError(t, j.Close())

	var stdout, stderr bytes.Buffer
	code := inspectCommand([]string{"--journal", path, "--list"}, &stdout, &stderr)
	require.Equal(t, 0, code, stderr.String())
	assert.Contains(t, stdout.String(), "sess-1")
	assert.Contains(t, stdout.String(), "commands=1")

	stdout.Reset()
	code = inspectCommand([]string{"--journal", path}, &stdout, &stderr)
	require.Equal(t, 0, code, stderr.String())
	assert.Contains(t, stdout.String(), "[1] window.create")
}

func TestInspectRequiresExistingJournal(t *testing.T) {
	var stdout, stderr bytes.Buffer
	assert.Equal(t, 1, inspectCommand(nil, &stdout, &stderr))
	assert.Contains(t, stderr.String(), "--journal is required")

	stderr.Reset()
	missing := filepath.Join(t.TempDir(), "none.db")
	assert.Equal(t, 1, inspectCommand([]string{"--journal", missing}, &stdout, &stderr))
	_, err := os.Stat(missing)
	assert.True(t, os.IsNotExist(err), "inspect must not create the journal")
}
