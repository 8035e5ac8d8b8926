package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveDefaults_AutoDriver(t *testing.T) {
	cfg := NewForTesting()
	cfg.DBDriver = "auto"
	cfg.PostgresDSN = ""
	require.NoError(t, cfg.ResolveDefaults())
	assert.Equal(t, "sqlite", cfg.DBDriver)

	cfg = NewForTesting()
	cfg.DBDriver = "auto"
	cfg.PostgresDSN = "postgres://localhost/taskhive"
	require.NoError(t, cfg.ResolveDefaults())
	assert.Equal(t, "postgres", cfg.DBDriver)
}

func TestResolveDefaults_PostgresRequiresDSN(t *testing.T) {
	cfg := NewForTesting()
	cfg.DBDriver = "postgres"
	cfg.PostgresDSN = ""
	assert.Error(t, cfg.ResolveDefaults())
}

func TestResolveDefaults_UnknownDriver(t *testing.T) {
	cfg := NewForTesting()
	cfg.DBDriver = "mongodb"
	assert.Error(t, cfg.ResolveDefaults())
}

func TestResolveDefaults_SQLitePathFallback(t *testing.T) {
	cfg := NewForTesting()
	cfg.DBDriver = "sqlite"
	cfg.SQLitePath = ""
	require.NoError(t, cfg.ResolveDefaults())
	assert.Equal(t, "taskhive.db", cfg.SQLitePath)
}

func TestResolveDefaults_RejectsNonPositiveBudgets(t *testing.T) {
	cfg := NewForTesting()
	cfg.HistoryWindow = 0
	assert.Error(t, cfg.ResolveDefaults())

	cfg = NewForTesting()
	cfg.MaxToolRounds = 0
	assert.Error(t, cfg.ResolveDefaults())
}
