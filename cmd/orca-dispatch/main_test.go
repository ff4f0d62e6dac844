package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/EternisAI/orca/internal/api/http/middleware"
	"github.com/EternisAI/orca/internal/audit"
	"github.com/EternisAI/orca/internal/cert"
	"github.com/EternisAI/orca/internal/dispatch"
	"github.com/EternisAI/orca/internal/identity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func sampleResult() *dispatch.Result {
	return &dispatch.Result{
		Identity: identity.Identity{ID: "5f0c", IP: "10.0.0.12", Hostname: "build-01"},
		Command:  "uname -a",
		Response: []byte("Linux build-01\n"),
		Files:    []string{"deploy.sh"},
		Event:    &audit.Event{ID: 42, CreatedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)},
	}
}

func TestRender_TextIsRawOutput(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, render(&buf, formatText, sampleResult()))
	assert.Equal(t, "Linux build-01\n", buf.String())
}

func TestRender_JSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, render(&buf, formatJSON, sampleResult()))

	var got map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, "5f0c", got["client_id"])
	assert.Equal(t, "10.0.0.12", got["client_ip"])
	assert.Equal(t, "Linux build-01\n", got["response"])
	assert.Equal(t, float64(42), got["event_id"])
	assert.NotContains(t, got, "truncated")
}

func TestRender_YAMLWithoutEvent(t *testing.T) {
	result := sampleResult()
	result.Event = nil
	result.Truncated = true

	var buf bytes.Buffer
	require.NoError(t, render(&buf, formatYAML, result))

	var got map[string]any
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, "uname -a", got["command"])
	assert.Equal(t, true, got["truncated"])
	assert.NotContains(t, got, "event_id")
}

func TestRender_UnknownFormat(t *testing.T) {
	assert.Error(t, render(&bytes.Buffer{}, "xml", sampleResult()))
	assert.False(t, validFormat("xml"))
	assert.True(t, validFormat(formatYAML))
}

func TestRootCmd_RequiresClientAndCommand(t *testing.T) {
	cmd := rootCmd()
	cmd.SetArgs([]string{"-c", "true"})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	assert.Error(t, cmd.Execute())
}

func TestRootCmd_RejectsUnknownFormat(t *testing.T) {
	cmd := rootCmd()
	cmd.SetArgs([]string{"-c", "true", "-i", "host", "-o", "xml"})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown output format")
}

func TestCertsCmd_WritesBundleAndSnippets(t *testing.T) {
	if testing.Short() {
		t.Skip("RSA key generation is slow")
	}

	dir := t.TempDir()
	var out bytes.Buffer
	cmd := certsCmd()
	cmd.SetArgs([]string{"--dir", dir, "--key-bits", "2048", "--domains", "orca.internal", "--ips", "10.0.0.1"})
	cmd.SetOut(&out)
	require.NoError(t, cmd.Execute())

	for _, role := range []string{cert.RoleRegistry, cert.RoleAgent, cert.RoleDispatcher} {
		assert.FileExists(t, filepath.Join(dir, role, role+"-cert.pem"))
		assert.FileExists(t, filepath.Join(dir, role, role+"-key.pem"))
	}
	_, err := os.Stat(filepath.Join(dir, "ca", "ca-cert.pem"))
	require.NoError(t, err)

	dec := yaml.NewDecoder(&out)
	var docs []map[string]any
	for {
		var doc map[string]any
		if err := dec.Decode(&doc); err != nil {
			break
		}
		docs = append(docs, doc)
	}
	require.Len(t, docs, 3)
	assert.Contains(t, docs[0], "registry")
	assert.Contains(t, docs[1], "agent")
	assert.Contains(t, docs[2], "dispatch")
}

func TestCertsCmd_RejectsBadIP(t *testing.T) {
	cmd := certsCmd()
	cmd.SetArgs([]string{"--dir", t.TempDir(), "--ips", "not-an-ip"})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	assert.Error(t, cmd.Execute())
}

func TestHashKeyCmd(t *testing.T) {
	var out bytes.Buffer
	cmd := hashKeyCmd()
	cmd.SetArgs([]string{"secret"})
	cmd.SetOut(&out)
	require.NoError(t, cmd.Execute())

	hash := strings.TrimSpace(out.String())
	assert.True(t, middleware.CheckAPIKey("secret", hash))
}
