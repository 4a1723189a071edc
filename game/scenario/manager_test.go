package scenario

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	log "github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wricardo/mcp-training/tilegame/game/engine"
	"github.com/wricardo/mcp-training/tilegame/game/service"
)

const roomDoc = "3X3\n3O 1O 1E 1O 3O\n"

func writeScenarioFile(t *testing.T, dir, name, doc string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name+Extension), []byte(doc), 0644))
}

func newTestManager(t *testing.T, dir string) (*Manager, *test.Hook) {
	t.Helper()
	logger, hook := test.NewNullLogger()
	m, err := NewManager(dir, WithLogger(logger), WithDefaultSize(6, 4))
	require.NoError(t, err)
	return m, hook
}

func TestNewManager(t *testing.T) {
	t.Run("existing default", func(t *testing.T) {
		dir := t.TempDir()
		writeScenarioFile(t, dir, DefaultName, roomDoc)

		m, hook := newTestManager(t, dir)
		def := m.GetDefault()
		require.NotNil(t, def)
		assert.Equal(t, DefaultName, def.Name)
		assert.False(t, def.Generated)
		assert.Equal(t, 3, def.Grid.Rows())
		assert.Empty(t, hook.Entries)
	})

	t.Run("missing default is generated and saved", func(t *testing.T) {
		dir := t.TempDir()
		m, hook := newTestManager(t, dir)

		def := m.GetDefault()
		require.NotNil(t, def)
		assert.True(t, def.Generated)
		assert.Equal(t, 4, def.Grid.Rows())
		assert.Equal(t, 6, def.Grid.Cols())

		require.NotNil(t, hook.LastEntry())
		assert.Equal(t, log.WarnLevel, hook.LastEntry().Level)

		data, err := os.ReadFile(filepath.Join(dir, DefaultName+Extension))
		require.NoError(t, err)
		assert.Equal(t, engine.Encode(def.Grid), string(data))
	})

	t.Run("creates the directory", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "nested", "scenarios")
		_, _ = newTestManager(t, dir)
		_, err := os.Stat(dir)
		assert.NoError(t, err)
	})
}

func TestManager_LoadScenario(t *testing.T) {
	dir := t.TempDir()
	writeScenarioFile(t, dir, "room", roomDoc)
	writeScenarioFile(t, dir, "broken", "3X3\n4E")
	m, _ := newTestManager(t, dir)

	t.Run("load existing scenario", func(t *testing.T) {
		sc, err := m.LoadScenario("room")
		require.NoError(t, err)
		assert.Equal(t, "room", sc.Name)
		assert.Equal(t, []string{"OOO", "OEO", "OOO"}, engine.Layout(sc.Grid))
	})

	t.Run("load with extension", func(t *testing.T) {
		sc, err := m.LoadScenario("room.txt")
		require.NoError(t, err)
		assert.Equal(t, "room", sc.Name)
	})

	t.Run("load from cache", func(t *testing.T) {
		first, err := m.LoadScenario("room")
		require.NoError(t, err)
		second, err := m.LoadScenario("room")
		require.NoError(t, err)
		assert.Same(t, first, second)
	})

	t.Run("missing scenario", func(t *testing.T) {
		_, err := m.LoadScenario("nope")
		assert.ErrorIs(t, err, service.ErrScenarioNotFound)
	})

	t.Run("undecodable scenario", func(t *testing.T) {
		_, err := m.LoadScenario("broken")
		assert.ErrorIs(t, err, service.ErrInvalidScenario)
		assert.ErrorIs(t, err, engine.ErrMapSizeMismatch)
		assert.Equal(t, "map_size_mismatch", engine.DecodeErrorCode(err))
	})

	t.Run("path traversal", func(t *testing.T) {
		for _, name := range []string{"../etc/passwd", "a/b", "", "  "} {
			_, err := m.LoadScenario(name)
			assert.ErrorIs(t, err, service.ErrInvalidName, name)
		}
	})
}

func TestManager_LenientCodec(t *testing.T) {
	dir := t.TempDir()
	writeScenarioFile(t, dir, "short", "3X3\n4E")

	logger, _ := test.NewNullLogger()
	codec := engine.NewCodec(engine.WithLenientSize(), engine.WithLogger(logger))
	m, err := NewManager(dir, WithLogger(logger), WithCodec(codec))
	require.NoError(t, err)
	assert.Same(t, codec, m.Codec())

	sc, err := m.LoadScenario("short")
	require.NoError(t, err)
	assert.Equal(t, []string{"EEE", "EEE", "EEE"}, engine.Layout(sc.Grid))
}

func TestManager_LoadOrGenerate(t *testing.T) {
	dir := t.TempDir()
	writeScenarioFile(t, dir, "broken", "garbage")
	m, hook := newTestManager(t, dir)

	t.Run("missing scenario is generated and saved", func(t *testing.T) {
		hook.Reset()
		sc, err := m.LoadOrGenerate("fresh")
		require.NoError(t, err)
		assert.True(t, sc.Generated)
		assert.Equal(t, "fresh", sc.Name)
		require.Len(t, hook.Entries, 1)
		assert.Equal(t, "fresh", hook.LastEntry().Data["scenario"])

		loaded, err := m.LoadScenario("fresh")
		require.NoError(t, err)
		assert.True(t, sc.Grid.SameTopology(loaded.Grid))
	})

	t.Run("broken scenario is replaced in memory only", func(t *testing.T) {
		hook.Reset()
		sc, err := m.LoadOrGenerate("broken")
		require.NoError(t, err)
		assert.True(t, sc.Generated)
		assert.Equal(t, "malformed_header", hook.LastEntry().Data["code"])

		data, err := os.ReadFile(filepath.Join(dir, "broken"+Extension))
		require.NoError(t, err)
		assert.Equal(t, "garbage", string(data))
	})

	t.Run("invalid name is not papered over", func(t *testing.T) {
		_, err := m.LoadOrGenerate("../x")
		assert.ErrorIs(t, err, service.ErrInvalidName)
	})
}

func TestManager_ListScenarios(t *testing.T) {
	dir := t.TempDir()
	writeScenarioFile(t, dir, "room", roomDoc)
	writeScenarioFile(t, dir, "split", "5X1\n2E 1O 2E")
	writeScenarioFile(t, dir, "broken", "1X1\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "readme.md"), []byte("ignored"), 0644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"+Extension), 0755))

	m, _ := newTestManager(t, dir)

	infos, err := m.ListScenarios()
	require.NoError(t, err)

	var ids []string
	for _, info := range infos {
		ids = append(ids, info.ScenarioID)
	}
	assert.Equal(t, []string{DefaultName, "room", "split"}, ids)

	split := infos[2]
	assert.Equal(t, "split.txt", split.Filename)
	assert.Equal(t, 1, split.Rows)
	assert.Equal(t, 5, split.Cols)
	assert.Equal(t, 4, split.OpenCells)
	assert.Equal(t, 1, split.BlockingCells)
	assert.Equal(t, 2, split.Regions)
}

func TestManager_SaveScenario(t *testing.T) {
	dir := t.TempDir()
	m, _ := newTestManager(t, dir)

	grid, err := engine.Decode("3X2\n3O 3E")
	require.NoError(t, err)
	require.NoError(t, m.SaveScenario("strip", grid))

	data, err := os.ReadFile(filepath.Join(dir, "strip"+Extension))
	require.NoError(t, err)
	assert.Equal(t, "3X2\n3O 3E\n", string(data))

	// the cache holds its own copy
	open := engine.CellFor(engine.KindOpen)
	grid.Place(0, 0, &open)
	sc, err := m.LoadScenario("strip")
	require.NoError(t, err)
	assert.True(t, sc.Grid.IsBlocked(0, 0))

	assert.ErrorIs(t, m.SaveScenario("bad/name", grid), service.ErrInvalidName)
	assert.ErrorIs(t, m.SaveScenario("nil", nil), service.ErrInvalidScenario)
}

func TestManager_SetDefaultAndRefresh(t *testing.T) {
	dir := t.TempDir()
	writeScenarioFile(t, dir, "room", roomDoc)
	m, _ := newTestManager(t, dir)

	require.NoError(t, m.SetDefault("room"))
	assert.Equal(t, "room", m.GetDefault().Name)
	assert.Error(t, m.SetDefault("missing"))

	writeScenarioFile(t, dir, "room", "1X1\n1E")
	sc, _ := m.LoadScenario("room")
	assert.Equal(t, 3, sc.Grid.Rows(), "still cached")

	m.RefreshCache()
	sc, err := m.LoadScenario("room")
	require.NoError(t, err)
	assert.Equal(t, 1, sc.Grid.Rows())
}

func TestManager_ConcurrentAccess(t *testing.T) {
	dir := t.TempDir()
	writeScenarioFile(t, dir, "room", roomDoc)
	m, _ := newTestManager(t, dir)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				sc, err := m.LoadScenario("room")
				assert.NoError(t, err)
				assert.NotNil(t, sc)
				_, err = m.ListScenarios()
				assert.NoError(t, err)
			}
		}()
	}
	wg.Wait()
}
