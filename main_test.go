package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v3"

	"github.com/wricardo/mcp-training/tilegame/api"
	"github.com/wricardo/mcp-training/tilegame/game/scenario"
	"github.com/wricardo/mcp-training/tilegame/transport/mcp"
)

// runApp runs the command tree without exiting the test process
func runApp(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	app := newApp()
	app.Writer = &out
	app.ErrWriter = &out
	app.ExitErrHandler = func(context.Context, *cli.Command, error) {}
	err := app.Run(context.Background(), append([]string{"tilegame"}, args...))
	return out.String(), err
}

func testOptions(t *testing.T) options {
	return options{
		host:        "127.0.0.1",
		port:        8080,
		scenarioDir: filepath.Join(t.TempDir(), "scenarios"),
		sessionsDir: filepath.Join(t.TempDir(), "sessions"),
	}
}

func TestConstants(t *testing.T) {
	assert.Equal(t, "1.0.0", Version)
	assert.Equal(t, "Tile Game Server", AppName)
}

func TestInitializeServices(t *testing.T) {
	logger, _ := logtest.NewNullLogger()
	opts := testOptions(t)
	opts.cancelOpposite = true

	svcs, err := initializeServices(opts, logger)
	require.NoError(t, err)
	require.NotNil(t, svcs.game)

	info, err := svcs.game.CreateSession(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, "default", info.ScenarioName)

	// sessions written by one process are picked up by the next
	restarted, err := initializeServices(opts, logger)
	require.NoError(t, err)
	_, err = restarted.game.GetSession(context.Background(), info.ID)
	assert.NoError(t, err)
}

func TestInitializeServices_LenientCodec(t *testing.T) {
	logger, _ := logtest.NewNullLogger()
	opts := testOptions(t)
	opts.lenient = true
	require.NoError(t, os.MkdirAll(opts.scenarioDir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(opts.scenarioDir, "short.txt"), []byte("3X2\n4E\n"), 0644))

	svcs, err := initializeServices(opts, logger)
	require.NoError(t, err)
	assert.True(t, svcs.scenarios.Codec().Lenient())

	info, err := svcs.game.CreateSession(context.Background(), "short")
	require.NoError(t, err)
	assert.Equal(t, "short", info.ScenarioName)
	assert.Equal(t, 3, info.GameState.Cols)
}

func TestInitializeServices_DefaultScenario(t *testing.T) {
	logger, _ := logtest.NewNullLogger()
	opts := testOptions(t)
	require.NoError(t, os.MkdirAll(opts.scenarioDir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(opts.scenarioDir, "hall.txt"), []byte("3X1\n3E\n"), 0644))

	opts.defaultScenario = "hall"
	svcs, err := initializeServices(opts, logger)
	require.NoError(t, err)

	info, err := svcs.game.CreateSession(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, "hall", info.ScenarioName)
	assert.Equal(t, 3, info.GameState.Cols)

	opts.defaultScenario = "missing"
	_, err = initializeServices(opts, logger)
	assert.Error(t, err)
}

func TestReloadScenariosRoutine(t *testing.T) {
	logger, _ := logtest.NewNullLogger()
	dir := t.TempDir()
	path := filepath.Join(dir, "room.txt")
	require.NoError(t, os.WriteFile(path, []byte("3X1\n3E\n"), 0644))

	scenarios, err := scenario.NewManager(dir, scenario.WithLogger(logger))
	require.NoError(t, err)
	sc, err := scenarios.LoadScenario("room")
	require.NoError(t, err)
	require.Equal(t, 1, sc.Grid.Rows())

	ctx, cancel := context.WithCancel(context.Background())
	reload := make(chan os.Signal, 1)
	done := make(chan struct{})
	go func() {
		reloadScenariosRoutine(ctx, scenarios, reload)
		close(done)
	}()

	require.NoError(t, os.WriteFile(path, []byte("2X2\n4E\n"), 0644))
	sc, err = scenarios.LoadScenario("room")
	require.NoError(t, err)
	assert.Equal(t, 1, sc.Grid.Rows(), "cached until reload")

	reload <- syscall.SIGHUP
	assert.Eventually(t, func() bool {
		sc, err := scenarios.LoadScenario("room")
		return err == nil && sc.Grid.Rows() == 2
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("routine did not stop")
	}
}

func TestPruneOrphanedSessions(t *testing.T) {
	logger, _ := logtest.NewNullLogger()
	svcs, err := initializeServices(testOptions(t), logger)
	require.NoError(t, err)

	ctx := context.Background()
	keep, err := svcs.game.CreateSession(ctx, "")
	require.NoError(t, err)
	gone, err := svcs.game.CreateSession(ctx, "")
	require.NoError(t, err)
	require.NoError(t, svcs.sessions.SaveAllSessions())

	assert.Equal(t, 0, pruneOrphanedSessions(svcs.sessions, svcs.persistence))

	require.NoError(t, svcs.persistence.Delete(gone.ID))
	assert.Equal(t, 1, pruneOrphanedSessions(svcs.sessions, svcs.persistence))
	assert.Equal(t, 1, svcs.sessions.Count())

	_, err = svcs.game.GetSession(ctx, keep.ID)
	assert.NoError(t, err)
	assert.Equal(t, 0, pruneOrphanedSessions(svcs.sessions, nil))
}

func TestEncodeCommand(t *testing.T) {
	out, err := runApp(t, "encode", "--cols", "4", "--rows", "3")
	require.NoError(t, err)
	assert.Equal(t, "4X3\n5O 1E 6O\n", out)

	_, err = runApp(t, "encode", "--cols", "0")
	assert.Error(t, err)
}

func TestValidateCommand(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.txt")
	bad := filepath.Join(dir, "bad.txt")
	require.NoError(t, os.WriteFile(good, []byte("3X2\n3O 3E\n"), 0644))
	require.NoError(t, os.WriteFile(bad, []byte("3X2\n4E\n"), 0644))

	out, err := runApp(t, "validate", good)
	require.NoError(t, err)
	assert.Contains(t, out, good+": ok (3X2)")

	out, err = runApp(t, "validate", good, bad, filepath.Join(dir, "missing.txt"))
	require.Error(t, err)
	assert.Contains(t, out, bad+": map_size_mismatch")
	assert.Contains(t, out, "missing.txt: unreadable_source")
	assert.Contains(t, err.Error(), "2 of 3 files failed")

	_, err = runApp(t, "validate")
	assert.Error(t, err)
}

func TestNewRouter(t *testing.T) {
	logger, _ := logtest.NewNullLogger()
	svcs, err := initializeServices(testOptions(t), logger)
	require.NoError(t, err)

	router := newRouter(api.NewServer(svcs.game, nil, api.WithLogger(logger)), mcp.NewClient("http://127.0.0.1:0"))

	t.Run("api mounted at root", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest("GET", "/api/health", nil))
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("mcp initialize", func(t *testing.T) {
		body := `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2024-11-05","capabilities":{},"clientInfo":{"name":"test","version":"1"}}}`
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest("POST", "/mcp", strings.NewReader(body)))
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
		assert.Contains(t, w.Body.String(), `"name":"Tile Game"`)
	})

	t.Run("mcp rejects GET", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest("GET", "/mcp", nil))
		assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
	})
}

func TestSetupLogging(t *testing.T) {
	defer setupLogging(false, false)

	out, err := runApp(t, "--debug", "--log-json", "encode", "--cols", "3", "--rows", "1")
	require.NoError(t, err)
	assert.Equal(t, "3X1\n3O\n", out)
	assert.Equal(t, log.DebugLevel, log.GetLevel())
	assert.IsType(t, &log.JSONFormatter{}, log.StandardLogger().Formatter)
}
