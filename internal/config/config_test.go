package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	config, err := Load("does-not-exist")
	require.NoError(t, err)

	require.Equal(t, "peercode-collab-server", config.AppName)
	require.Equal(t, 8080, config.AppPort)
	require.Equal(t, "1h", config.Cache.TTL)
	require.Equal(t, "60m", config.Session.InactivityTimeout)
	require.Equal(t, 10, config.Session.DefaultMaxParticipants)
	require.Equal(t, uint64(27017), config.Database.Port)
}

func TestGetConfigAfterLoad(t *testing.T) {
	_, err := Load("does-not-exist")
	require.NoError(t, err)

	config, err := GetConfig()
	require.NoError(t, err)
	require.Equal(t, "peercode-collab-server", config.AppName)
}
