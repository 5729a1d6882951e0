package registry

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestBindIsIdempotentForSamePair(t *testing.T) {
	reg := NewRegistry()
	connID := uuid.New()

	reg.Register(connID)
	require.NoError(t, reg.Bind(connID, "s1", "alice"))
	require.NoError(t, reg.Bind(connID, "s1", "alice"))

	require.Equal(t, 1, reg.RoomSize("s1"))
}

func TestBindRefusesRebinding(t *testing.T) {
	reg := NewRegistry()
	connID := uuid.New()

	reg.Register(connID)
	require.NoError(t, reg.Bind(connID, "s1", "alice"))

	require.ErrorIs(t, reg.Bind(connID, "s2", "alice"), AlreadyBoundError)
	require.ErrorIs(t, reg.Bind(connID, "s1", "bob"), AlreadyBoundError)

	binding, ok := reg.Binding(connID)
	require.True(t, ok)
	require.Equal(t, "s1", binding.SessionID)
	require.Equal(t, "alice", binding.UserID)
}

func TestUnbindDropsEmptyRoom(t *testing.T) {
	reg := NewRegistry()
	conn1 := uuid.New()
	conn2 := uuid.New()

	reg.Register(conn1)
	reg.Register(conn2)
	require.NoError(t, reg.Bind(conn1, "s1", "alice"))
	require.NoError(t, reg.Bind(conn2, "s1", "bob"))
	require.Equal(t, 2, reg.RoomSize("s1"))

	binding, ok := reg.Unbind(conn1)
	require.True(t, ok)
	require.Equal(t, "alice", binding.UserID)
	require.Equal(t, 1, reg.RoomSize("s1"))

	_, ok = reg.Unbind(conn2)
	require.True(t, ok)
	require.Equal(t, 0, reg.RoomSize("s1"))
	require.Empty(t, reg.Room("s1"))
}

func TestUnbindUnregisteredConnection(t *testing.T) {
	reg := NewRegistry()

	_, ok := reg.Unbind(uuid.New())
	require.False(t, ok)
}

func TestSetTypingReturnsDeltaOnly(t *testing.T) {
	reg := NewRegistry()

	require.True(t, reg.SetTyping("s1", "alice", true), "first start is a delta")
	require.False(t, reg.SetTyping("s1", "alice", true), "repeated start is absorbed")
	require.True(t, reg.SetTyping("s1", "alice", false), "stop is a delta")
	require.False(t, reg.SetTyping("s1", "alice", false), "repeated stop is absorbed")
	require.False(t, reg.SetTyping("s1", "bob", false), "stop without start is absorbed")
}

func TestTypingClearedOnUnbind(t *testing.T) {
	reg := NewRegistry()
	conn1 := uuid.New()
	conn2 := uuid.New()

	reg.Register(conn1)
	reg.Register(conn2)
	require.NoError(t, reg.Bind(conn1, "s1", "alice"))
	require.NoError(t, reg.Bind(conn2, "s1", "bob"))
	require.True(t, reg.SetTyping("s1", "alice", true))

	reg.Unbind(conn1)

	// alice's typing membership went away with her connection
	require.True(t, reg.SetTyping("s1", "alice", true))
}

func TestHeartbeatTracksLiveness(t *testing.T) {
	reg := NewRegistry()
	connID := uuid.New()

	reg.Register(connID)
	first, ok := reg.LastHeartbeat(connID)
	require.True(t, ok)

	time.Sleep(5 * time.Millisecond)
	reg.Heartbeat(connID)

	second, ok := reg.LastHeartbeat(connID)
	require.True(t, ok)
	require.True(t, second.After(first))

	_, ok = reg.LastHeartbeat(uuid.New())
	require.False(t, ok)
}

func TestBindWithoutRegisterStillWorks(t *testing.T) {
	reg := NewRegistry()
	connID := uuid.New()

	require.NoError(t, reg.Bind(connID, "s1", "alice"))
	require.Equal(t, 1, reg.RoomSize("s1"))
}
