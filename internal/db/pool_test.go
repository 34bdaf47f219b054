package db

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseConfigDefaults(t *testing.T) {
	cfg, err := ParseConfig("postgres://u:p@localhost:5432/tycoon")
	require.NoError(t, err)
	assert.Equal(t, int32(10), cfg.MaxConns)
	assert.Equal(t, int32(1), cfg.MinConns)
	assert.Equal(t, 30*time.Minute, cfg.MaxConnLifetime)
	assert.Equal(t, "tycoon", cfg.ConnConfig.RuntimeParams["application_name"])
}

func TestParseConfigKeepsURLSettings(t *testing.T) {
	cfg, err := ParseConfig("postgres://u:p@localhost:5432/tycoon?pool_max_conns=3&application_name=bench")
	require.NoError(t, err)
	assert.Equal(t, int32(3), cfg.MaxConns)
	assert.Equal(t, int32(1), cfg.MinConns)
	assert.Equal(t, "bench", cfg.ConnConfig.RuntimeParams["application_name"])
}

func TestParseConfigRejectsGarbage(t *testing.T) {
	_, err := ParseConfig("postgres://u:p@localhost:notaport/db")
	assert.Error(t, err)
}
