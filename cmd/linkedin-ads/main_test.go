package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/linkedin-ads-tap/pkg/config"
	jsonpool "github.com/ajitpratap0/linkedin-ads-tap/pkg/json"
	"github.com/ajitpratap0/linkedin-ads-tap/pkg/state"
	"github.com/ajitpratap0/linkedin-ads-tap/pkg/testutil"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "linkedin-ads v"+version)
	assert.Contains(t, out, "OS/Arch:")
}

func TestStreamsCommand(t *testing.T) {
	out, err := execute(t, "streams")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 18)
	assert.True(t, strings.HasPrefix(lines[0], "STREAM"))
	assert.Regexp(t, `^accounts\s+FULL_TABLE\s+last_modified_time\s+-$`, lines[1])
	assert.Contains(t, out, "ad_analytics_by_campaign")
}

func TestDiscoverCommand(t *testing.T) {
	out, err := execute(t, "discover")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 17)

	var first map[string]interface{}
	require.NoError(t, jsonpool.Unmarshal([]byte(lines[0]), &first))
	assert.Equal(t, "accounts", first["stream"])
	assert.Contains(t, first, "schema")
}

func TestConfigInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tap.yaml")

	out, err := execute(t, "config", "init", path)
	require.NoError(t, err)
	assert.Contains(t, out, "wrote "+path)

	t.Setenv("LINKEDIN_ACCESS_TOKEN", "from-env")
	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Credentials.AccessToken)
	assert.True(t, cfg.Streams["campaigns"].Selected)

	_, err = execute(t, "config", "init", path)
	require.Error(t, err, "existing files are kept without --force")

	_, err = execute(t, "config", "init", "--force", path)
	require.NoError(t, err)
}

func TestSyncCommandRequiresValidConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("start_date: 2024-01-01\n"), 0o600))

	_, err := execute(t, "sync", "--config", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "credentials")
}

func TestScheduleRejectsBadCron(t *testing.T) {
	dir := t.TempDir()
	cfg := config.NewConfig()
	cfg.StartDate = "2024-01-01"
	cfg.Credentials.AccessToken = "token"
	path := filepath.Join(dir, "tap.yaml")
	require.NoError(t, config.Save(path, cfg))

	_, err := execute(t, "schedule", "--config", path, "--cron", "every tuesday")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid cron expression")
}

func TestSyncCommand(t *testing.T) {
	dir := t.TempDir()
	api := testutil.NewAPIServer(t, "cli-token")
	api.Handle("/rest/adAccounts?pageSize=1000&q=search&search=(id:(values:List(urn%3Ali%3AsponsoredAccount%3A99)))",
		`{"elements":[{"id":99,"name":"Acme","changeAuditStamps":{"lastModified":{"time":1704067200000}}}],"metadata":{}}`)

	cfg := config.NewConfig()
	cfg.StartDate = "2023-12-01"
	cfg.BaseURL = api.URL
	cfg.AccountIDs = []string{"99"}
	cfg.Credentials.AccessToken = "cli-token"
	cfg.Streams["accounts"] = config.StreamSelection{Selected: true}
	configPath := filepath.Join(dir, "tap.yaml")
	require.NoError(t, config.Save(configPath, cfg))

	outPath := filepath.Join(dir, "out.jsonl")
	statePath := filepath.Join(dir, "state.json")
	_, err := execute(t, "sync", "--config", configPath, "--output", outPath, "--state", statePath)
	require.NoError(t, err)

	data, err := os.ReadFile(outPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"type":"SCHEMA"`)
	assert.Contains(t, string(data), `"type":"RECORD"`)

	saved, err := state.NewFileStore(statePath).Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "2024-01-01T00:00:00.000000Z", saved.Bookmarks["accounts"])
}
