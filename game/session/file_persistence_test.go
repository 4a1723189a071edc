package session

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wricardo/mcp-training/tilegame/game/engine"
	"github.com/wricardo/mcp-training/tilegame/game/scenario"
)

type persistenceFixture struct {
	scenarioDir string
	sessionDir  string
	scenarios   *scenario.Manager
	persistence *FilePersistence
}

func newPersistenceFixture(t *testing.T) *persistenceFixture {
	t.Helper()
	root := t.TempDir()
	f := &persistenceFixture{
		scenarioDir: filepath.Join(root, "scenarios"),
		sessionDir:  filepath.Join(root, "sessions"),
	}
	require.NoError(t, os.MkdirAll(f.scenarioDir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(f.scenarioDir, "small.txt"), []byte(smallRoom), 0644))

	logger, _ := test.NewNullLogger()
	var err error
	f.scenarios, err = scenario.NewManager(f.scenarioDir, scenario.WithLogger(logger))
	require.NoError(t, err)

	f.persistence, err = NewFilePersistence(f.sessionDir, f.scenarios, nil)
	require.NoError(t, err)
	return f
}

func TestFilePersistence(t *testing.T) {
	f := newPersistenceFixture(t)
	sc, err := f.scenarios.LoadScenario("small")
	require.NoError(t, err)

	manager := NewManager()
	session, err := manager.Create("persist-1", sc)
	require.NoError(t, err)
	_, err = session.Engine.Move("down-right")
	require.NoError(t, err)

	t.Run("save and load", func(t *testing.T) {
		require.NoError(t, f.persistence.Save(session))
		assert.True(t, f.persistence.Exists("persist-1"))

		loaded, err := f.persistence.Load("persist-1")
		require.NoError(t, err)
		assert.Equal(t, "persist-1", loaded.ID)
		assert.Equal(t, "small", loaded.Scenario.Name)
		assert.Equal(t, engine.Position{Row: 2, Col: 2}, loaded.Engine.GetPlayerPosition())
		assert.Len(t, loaded.Engine.GetMoveHistory(), 1)
		assert.True(t, session.Engine.Grid().SameTopology(loaded.Engine.Grid()))
		assert.WithinDuration(t, session.CreatedAt, loaded.CreatedAt, 0)
	})

	t.Run("list all", func(t *testing.T) {
		require.NoError(t, os.WriteFile(filepath.Join(f.sessionDir, "notes.txt"), []byte("x"), 0644))
		ids, err := f.persistence.ListAll()
		require.NoError(t, err)
		assert.Equal(t, []string{"persist-1"}, ids)
	})

	t.Run("load missing", func(t *testing.T) {
		_, err := f.persistence.Load("nope")
		assert.ErrorIs(t, err, ErrSessionNotFound)
	})

	t.Run("load invalid ID", func(t *testing.T) {
		_, err := f.persistence.Load("../../etc/passwd")
		assert.ErrorIs(t, err, ErrInvalidSessionID)
		assert.False(t, f.persistence.Exists("../x"))
	})

	t.Run("load corrupt file", func(t *testing.T) {
		require.NoError(t, os.WriteFile(filepath.Join(f.sessionDir, "corrupt.json"), []byte("{nope"), 0644))
		_, err := f.persistence.Load("corrupt")
		assert.Error(t, err)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, f.persistence.Delete("persist-1"))
		assert.False(t, f.persistence.Exists("persist-1"))
		assert.ErrorIs(t, f.persistence.Delete("persist-1"), ErrSessionNotFound)
	})

	t.Run("save nil", func(t *testing.T) {
		assert.Error(t, f.persistence.Save(nil))
	})
}

func TestFilePersistenceFileStructure(t *testing.T) {
	f := newPersistenceFixture(t)
	sc, err := f.scenarios.LoadScenario("small")
	require.NoError(t, err)

	session, err := NewManager().Create("structure", sc)
	require.NoError(t, err)
	require.NoError(t, f.persistence.Save(session))

	raw, err := os.ReadFile(filepath.Join(f.sessionDir, "structure.json"))
	require.NoError(t, err)

	var data PersistedSessionData
	require.NoError(t, json.Unmarshal(raw, &data))
	assert.Equal(t, "structure", data.ID)
	assert.Equal(t, "small", data.ScenarioName)
	require.NotNil(t, data.GameState)
	assert.Equal(t, "4X4\n5O 2E 2O 2E 5O\n", data.GameState.Map)
	assert.Equal(t, 1, data.GameState.Actor.Row)

	_, err = os.Stat(filepath.Join(f.sessionDir, "structure.json.tmp"))
	assert.True(t, os.IsNotExist(err), "temp file is renamed away")
}

func TestFilePersistenceKeepsMapWhenScenarioChanges(t *testing.T) {
	f := newPersistenceFixture(t)
	sc, err := f.scenarios.LoadScenario("small")
	require.NoError(t, err)

	session, err := NewManager().Create("drift", sc)
	require.NoError(t, err)
	require.NoError(t, f.persistence.Save(session))

	// the scenario file is replaced by a bigger map
	require.NoError(t, os.WriteFile(filepath.Join(f.scenarioDir, "small.txt"), []byte("6X1\n6E"), 0644))
	f.scenarios.RefreshCache()

	loaded, err := f.persistence.Load("drift")
	require.NoError(t, err)
	assert.Equal(t, 4, loaded.Engine.Grid().Rows(), "saved map wins over the file")
	assert.Equal(t, engine.Position{Row: 1, Col: 1}, loaded.Engine.GetPlayerPosition())

	// reset goes back to the scenario as it is now
	state := loaded.Engine.Reset()
	assert.Equal(t, 1, state.Rows)
	assert.Equal(t, 6, state.Cols)
	assert.Equal(t, engine.Position{Row: 0, Col: 1}, state.Actor.Position())
}

func TestFilePersistenceMissingScenarioIsGenerated(t *testing.T) {
	f := newPersistenceFixture(t)
	sc, err := f.scenarios.LoadScenario("small")
	require.NoError(t, err)

	session, err := NewManager().Create("orphan", sc)
	require.NoError(t, err)
	require.NoError(t, f.persistence.Save(session))

	require.NoError(t, os.Remove(filepath.Join(f.scenarioDir, "small.txt")))
	f.scenarios.RefreshCache()

	loaded, err := f.persistence.Load("orphan")
	require.NoError(t, err)
	assert.True(t, loaded.Scenario.Generated)
	assert.Equal(t, 4, loaded.Engine.Grid().Rows())
}
