package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("OPSBOT_CONFIG_FILE", "")
	t.Setenv("STORE_DRIVER", "")
	t.Setenv("WORKFLOW_EVIDENCE_TIMEOUT", "")
	t.Setenv("WORKFLOW_RANKING_INTERVAL", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, DriverSQLite, cfg.Store.Driver)
	assert.Equal(t, 2*time.Minute, cfg.Workflow.EvidenceTimeout)
	assert.Equal(t, 10*time.Minute, cfg.Workflow.RankingInterval)
	assert.Equal(t, 10, cfg.Workflow.RankingSize)
	assert.Equal(t, 5*time.Second, cfg.Workflow.TicketCloseDelay)
}

func TestLoadFileOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "opsbot.yaml")
	content := []byte(`
discord:
  guild_id: "100"
  staff_role_id: "200"
  approval_channel_id: "300"
workflow:
  evidence_timeout: 3m
  ranking_size: 5
`)
	require.NoError(t, os.WriteFile(path, content, 0o600))

	t.Setenv("OPSBOT_CONFIG_FILE", path)
	t.Setenv("DISCORD_GUILD_ID", "")
	t.Setenv("DISCORD_STAFF_ROLE_ID", "")
	t.Setenv("DISCORD_APPROVAL_CHANNEL_ID", "999")
	t.Setenv("WORKFLOW_EVIDENCE_TIMEOUT", "")
	t.Setenv("WORKFLOW_RANKING_SIZE", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "100", cfg.Discord.GuildID)
	assert.Equal(t, "200", cfg.Discord.StaffRoleID)
	assert.Equal(t, "999", cfg.Discord.ApprovalChannelID, "environment wins over the file")
	assert.Equal(t, 3*time.Minute, cfg.Workflow.EvidenceTimeout)
	assert.Equal(t, 5, cfg.Workflow.RankingSize)
}

func TestLoadRejectsBadFile(t *testing.T) {
	t.Setenv("OPSBOT_CONFIG_FILE", filepath.Join(t.TempDir(), "missing.yaml"))
	_, err := Load()
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := &Config{
		Store:    StoreConfig{Driver: DriverPostgres},
		Workflow: WorkflowConfig{EvidenceTimeout: time.Minute, RankingInterval: time.Minute},
	}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "POSTGRES_DSN")
	assert.Contains(t, err.Error(), "DISCORD_TOKEN")

	cfg.Postgres.DSN = "postgres://localhost/opsbot"
	cfg.Discord = DiscordConfig{Token: "Bot x", GuildID: "1"}
	assert.NoError(t, cfg.Validate())
}
