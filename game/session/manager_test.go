package session

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wricardo/mcp-training/tilegame/game/engine"
	"github.com/wricardo/mcp-training/tilegame/game/service"
)

// 4x4 room with an open 2x2 interior
const smallRoom = "4X4\n5O 2E 2O 2E 5O\n"

func createTestScenario(t *testing.T) *service.Scenario {
	t.Helper()
	grid, err := engine.Decode(smallRoom)
	require.NoError(t, err)
	return &service.Scenario{Name: "small", Grid: grid}
}

func TestManager_Create(t *testing.T) {
	manager := NewManager()
	sc := createTestScenario(t)

	t.Run("create with custom ID", func(t *testing.T) {
		session, err := manager.Create("test-session", sc)
		require.NoError(t, err)
		assert.Equal(t, "test-session", session.ID)
		require.NotNil(t, session.Engine)
		assert.Same(t, sc, session.Scenario)
		assert.Equal(t, DefaultStart, session.Engine.GetPlayerPosition())
	})

	t.Run("create with generated ID", func(t *testing.T) {
		session, err := manager.Create("", sc)
		require.NoError(t, err)
		_, err = uuid.Parse(session.ID)
		assert.NoError(t, err, "generated IDs are UUIDs")
	})

	t.Run("duplicate session ID", func(t *testing.T) {
		_, err := manager.Create("test-session", sc)
		assert.ErrorIs(t, err, ErrSessionAlreadyExists)
	})

	t.Run("case-insensitive duplicate check", func(t *testing.T) {
		_, err := manager.Create("TEST-SESSION", sc)
		assert.ErrorIs(t, err, ErrSessionAlreadyExists)
	})

	t.Run("invalid ID", func(t *testing.T) {
		_, err := manager.Create("../escape", sc)
		assert.ErrorIs(t, err, ErrInvalidSessionID)
	})

	t.Run("scenario without open cells", func(t *testing.T) {
		grid, err := engine.Decode("2X2\n4O")
		require.NoError(t, err)
		_, err = manager.Create("walled", &service.Scenario{Name: "walled", Grid: grid})
		assert.Error(t, err)
	})

	t.Run("nil scenario", func(t *testing.T) {
		_, err := manager.Create("nil", nil)
		assert.Error(t, err)
	})
}

func TestManager_EngineFactory(t *testing.T) {
	manager := NewManager(WithEngineFactory(NewEngineFactory(engine.OppositeCancel)))
	session, err := manager.Create("cancel", createTestScenario(t))
	require.NoError(t, err)

	session.Engine.Keys().Press(engine.KeyLeft)
	session.Engine.Keys().Press(engine.KeyRight)
	assert.Equal(t, engine.NoInput, session.Engine.Tick())
}

func TestManager_Get(t *testing.T) {
	manager := NewManager()
	created, err := manager.Create("get-test", createTestScenario(t))
	require.NoError(t, err)

	t.Run("get existing session", func(t *testing.T) {
		session, err := manager.Get("get-test")
		require.NoError(t, err)
		assert.Same(t, created, session)
	})

	t.Run("case-insensitive get", func(t *testing.T) {
		session, err := manager.Get("GET-TEST")
		require.NoError(t, err)
		assert.Same(t, created, session)
	})

	t.Run("get non-existent session", func(t *testing.T) {
		_, err := manager.Get("non-existent")
		assert.ErrorIs(t, err, ErrSessionNotFound)
		assert.ErrorIs(t, err, service.ErrSessionNotFound)
	})

	t.Run("get with invalid ID", func(t *testing.T) {
		_, err := manager.Get("a/b")
		assert.ErrorIs(t, err, ErrSessionNotFound)
	})
}

func TestManager_Delete(t *testing.T) {
	manager := NewManager()
	_, err := manager.Create("delete-me", createTestScenario(t))
	require.NoError(t, err)

	require.NoError(t, manager.Delete("DELETE-ME"))
	_, err = manager.Get("delete-me")
	assert.ErrorIs(t, err, ErrSessionNotFound)

	assert.ErrorIs(t, manager.Delete("delete-me"), ErrSessionNotFound)
	assert.ErrorIs(t, manager.DeleteFromMemory("delete-me"), ErrSessionNotFound)
}

func TestManager_List(t *testing.T) {
	manager := NewManager()
	sc := createTestScenario(t)
	for i := 0; i < 3; i++ {
		_, err := manager.Create(fmt.Sprintf("list-%d", i), sc)
		require.NoError(t, err)
	}

	sessions := manager.List()
	assert.Len(t, sessions, 3)
	assert.Equal(t, 3, manager.Count())
}

func TestManager_CleanupExpired(t *testing.T) {
	manager := NewManager()
	sc := createTestScenario(t)

	old, err := manager.Create("old", sc)
	require.NoError(t, err)
	_, err = manager.Create("fresh", sc)
	require.NoError(t, err)

	old.LastAccessedAt = time.Now().Add(-2 * time.Hour)

	assert.Equal(t, 1, manager.CleanupExpiredSessions(time.Hour))
	_, err = manager.Get("old")
	assert.ErrorIs(t, err, ErrSessionNotFound)
	_, err = manager.Get("fresh")
	assert.NoError(t, err)
}

func TestManager_UpdateLastAccessed(t *testing.T) {
	manager := NewManager()
	session, err := manager.Create("touch", createTestScenario(t))
	require.NoError(t, err)

	before := session.LastAccessedAt
	time.Sleep(5 * time.Millisecond)
	require.NoError(t, manager.UpdateLastAccessed("touch"))
	assert.True(t, session.LastAccessedAt.After(before))

	assert.ErrorIs(t, manager.UpdateLastAccessed("missing"), ErrSessionNotFound)
}

func TestManager_SaveWithoutPersistence(t *testing.T) {
	manager := NewManager()
	assert.NoError(t, manager.Save("anything"))
	assert.NoError(t, manager.SaveAllSessions())
	assert.NoError(t, manager.LoadPersistedSessions())
}

func TestManager_ConcurrentAccess(t *testing.T) {
	manager := NewManager()
	sc := createTestScenario(t)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("concurrent-%d", i)
			_, err := manager.Create(id, sc)
			assert.NoError(t, err)
			_, err = manager.Get(id)
			assert.NoError(t, err)
			manager.List()
			assert.NoError(t, manager.UpdateLastAccessed(id))
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 10, manager.Count())
}

func TestManager_SessionIsolation(t *testing.T) {
	manager := NewManager()
	sc := createTestScenario(t)

	a, err := manager.Create("a", sc)
	require.NoError(t, err)
	b, err := manager.Create("b", sc)
	require.NoError(t, err)

	_, err = a.Engine.Move("right")
	require.NoError(t, err)
	a.Engine.Keys().Press(engine.KeyDown)

	assert.Equal(t, engine.Position{Row: 1, Col: 2}, a.Engine.GetPlayerPosition())
	assert.Equal(t, DefaultStart, b.Engine.GetPlayerPosition())
	assert.True(t, b.Engine.Keys().Snapshot().Empty())
}

func TestValidID(t *testing.T) {
	assert.True(t, ValidID("abc-123_X"))
	assert.True(t, ValidID(uuid.NewString()))
	assert.False(t, ValidID(""))
	assert.False(t, ValidID("a.b"))
	assert.False(t, ValidID("../x"))
}
