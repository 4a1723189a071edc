// Command tilegame runs the tile game server.
//
// Commands:
//  1. "serve" (default) runs the HTTP server with the REST API, WebSocket, an /mcp endpoint and the tick loop
//  2. "mcp" runs an MCP stdio server and spins up an internal HTTP API if none is available
//  3. "validate" strictly decodes scenario files and reports each failure's code
//  4. "encode" prints a generated default scenario document
//
// Every flag can also be set through its environment variable, and a .env file
// in the working directory is loaded first.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/mark3labs/mcp-go/server"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v3"
	"golang.ngrok.com/ngrok"
	ngrokConfig "golang.ngrok.com/ngrok/config"

	"github.com/wricardo/mcp-training/tilegame/api"
	"github.com/wricardo/mcp-training/tilegame/game/engine"
	"github.com/wricardo/mcp-training/tilegame/game/scenario"
	"github.com/wricardo/mcp-training/tilegame/game/service"
	"github.com/wricardo/mcp-training/tilegame/game/session"
	"github.com/wricardo/mcp-training/tilegame/telemetry"
	"github.com/wricardo/mcp-training/tilegame/transport/mcp"
	"github.com/wricardo/mcp-training/tilegame/transport/websocket"
)

// Version information
const (
	Version = "1.0.0"
	AppName = "Tile Game Server"
)

const (
	sessionMaxAge       = 24 * time.Hour
	cleanupInterval     = time.Hour
	filesystemSyncEvery = 5 * time.Second
)

// options is the resolved process configuration
type options struct {
	host            string
	port            int
	scenarioDir     string
	defaultScenario string
	sessionsDir     string
	tick            time.Duration
	lenient         bool
	cancelOpposite  bool
	ngrok           bool
	ngrokAuth       string
	ngrokDomain     string
	otel            bool
}

func (o options) addr() string {
	return fmt.Sprintf("%s:%d", o.host, o.port)
}

func optionsFrom(cmd *cli.Command) options {
	return options{
		host:            cmd.String("host"),
		port:            int(cmd.Int("port")),
		scenarioDir:     cmd.String("scenario-dir"),
		defaultScenario: cmd.String("default-scenario"),
		sessionsDir:     cmd.String("sessions-dir"),
		tick:            cmd.Duration("tick"),
		lenient:         cmd.Bool("lenient"),
		cancelOpposite:  cmd.Bool("cancel-opposite"),
		ngrok:           cmd.Bool("ngrok"),
		ngrokAuth:       cmd.String("ngrok-auth"),
		ngrokDomain:     cmd.String("ngrok-domain"),
		otel:            cmd.Bool("otel"),
	}
}

func main() {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			log.WithError(err).Warn("Error loading .env file")
		}
	} else {
		log.Info("Loaded environment variables from .env file")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp().Run(ctx, os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.Command {
	return &cli.Command{
		Name:    "tilegame",
		Usage:   AppName,
		Version: Version,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "host", Value: "localhost", Usage: "HTTP server host", Sources: cli.EnvVars("HOST")},
			&cli.IntFlag{Name: "port", Value: 8080, Usage: "HTTP server port", Sources: cli.EnvVars("PORT")},
			&cli.StringFlag{Name: "scenario-dir", Value: "scenarios", Usage: "directory of .txt scenario files", Sources: cli.EnvVars("SCENARIO_DIR")},
			&cli.StringFlag{Name: "default-scenario", Usage: "scenario used when a session names none (generated room when empty)", Sources: cli.EnvVars("DEFAULT_SCENARIO")},
			&cli.StringFlag{Name: "sessions-dir", Value: "sessions", Usage: "directory for persisted sessions", Sources: cli.EnvVars("SESSIONS_DIR")},
			&cli.DurationFlag{Name: "tick", Value: 150 * time.Millisecond, Usage: "interval between held-key movement ticks", Sources: cli.EnvVars("TICK_INTERVAL")},
			&cli.BoolFlag{Name: "lenient", Usage: "accept scenario files whose runs are short or long", Sources: cli.EnvVars("RLE_LENIENT")},
			&cli.BoolFlag{Name: "cancel-opposite", Usage: "opposite held keys cancel instead of up/left winning", Sources: cli.EnvVars("CANCEL_OPPOSITE_KEYS")},
			&cli.BoolFlag{Name: "debug", Usage: "enable debug logging", Sources: cli.EnvVars("DEBUG")},
			&cli.BoolFlag{Name: "log-json", Usage: "log as JSON", Sources: cli.EnvVars("LOG_JSON")},
			&cli.BoolFlag{Name: "ngrok", Usage: "enable ngrok tunnel", Sources: cli.EnvVars("NGROK_ENABLED")},
			&cli.StringFlag{Name: "ngrok-auth", Usage: "ngrok auth token", Sources: cli.EnvVars("NGROK_AUTHTOKEN", "NGROK_AUTH_TOKEN")},
			&cli.StringFlag{Name: "ngrok-domain", Usage: "custom ngrok domain", Sources: cli.EnvVars("NGROK_DOMAIN")},
			&cli.BoolFlag{Name: "otel", Usage: "export traces over OTLP/HTTP", Sources: cli.EnvVars("OTEL_ENABLED")},
		},
		Before: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			setupLogging(cmd.Bool("debug"), cmd.Bool("log-json"))
			return ctx, nil
		},
		Action: runServe,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "run the HTTP server with API, WebSocket, and MCP endpoint",
				Action: runServe,
			},
			{
				Name:    "mcp",
				Aliases: []string{"stdio-mcp", "mcp-stdio"},
				Usage:   "run an MCP stdio server with an internal HTTP server",
				Action:  runStdioMCP,
			},
			{
				Name:      "validate",
				Usage:     "strictly decode scenario files",
				ArgsUsage: "FILE...",
				Action:    runValidate,
			},
			{
				Name:  "encode",
				Usage: "print a generated default scenario",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "cols", Value: engine.DefaultCols, Usage: "grid width"},
					&cli.IntFlag{Name: "rows", Value: engine.DefaultRows, Usage: "grid height"},
				},
				Action: runEncode,
			},
		},
	}
}

func setupLogging(debug, jsonOutput bool) {
	if debug {
		log.SetLevel(log.DebugLevel)
	} else {
		log.SetLevel(log.InfoLevel)
	}
	if jsonOutput {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
}

// services holds everything the server commands share
type services struct {
	game        service.GameService
	sessions    *session.Manager
	persistence *session.FilePersistence
	scenarios   *scenario.Manager
}

func newCodec(opts options, logger log.FieldLogger) *engine.Codec {
	if opts.lenient {
		return engine.NewCodec(engine.WithLenientSize(), engine.WithLogger(logger))
	}
	return engine.NewCodec(engine.WithLogger(logger))
}

// initializeServices wires the scenario manager, persisted sessions and the game service.
func initializeServices(opts options, logger log.FieldLogger) (*services, error) {
	scenarios, err := scenario.NewManager(opts.scenarioDir,
		scenario.WithCodec(newCodec(opts, logger)),
		scenario.WithLogger(logger),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create scenario manager: %w", err)
	}
	if opts.defaultScenario != "" {
		if err := scenarios.SetDefault(opts.defaultScenario); err != nil {
			return nil, fmt.Errorf("failed to set default scenario: %w", err)
		}
	}
	logger.WithFields(log.Fields{
		"dir":     opts.scenarioDir,
		"default": scenarios.GetDefault().Name,
		"lenient": scenarios.Codec().Lenient(),
	}).Info("Scenarios ready")

	policy := engine.OppositePrecedence
	if opts.cancelOpposite {
		policy = engine.OppositeCancel
	}
	factory := session.NewEngineFactory(policy)

	persistence, err := session.NewFilePersistence(opts.sessionsDir, scenarios, factory)
	if err != nil {
		return nil, fmt.Errorf("failed to create session persistence: %w", err)
	}

	sessions := session.NewManagerWithPersistence(persistence,
		session.WithEngineFactory(factory),
		session.WithLogger(logger),
	)
	if err := sessions.LoadPersistedSessions(); err != nil {
		logger.WithError(err).Warn("Failed to load persisted sessions")
	}

	return &services{
		game:        service.NewGameService(sessions, scenarios, service.WithLogger(logger)),
		sessions:    sessions,
		persistence: persistence,
		scenarios:   scenarios,
	}, nil
}

func setupTelemetry(ctx context.Context, opts options) func() {
	if !opts.otel {
		return func() {}
	}
	shutdown, err := telemetry.Setup(ctx)
	if err != nil {
		log.WithError(err).Warn("Tracing disabled")
		return func() {}
	}
	log.Info("Exporting traces over OTLP/HTTP")
	return func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(flushCtx); err != nil {
			log.WithError(err).Warn("Failed to flush traces")
		}
	}
}

// newRouter mounts the API at the root and the MCP JSON-RPC endpoint at /mcp
func newRouter(apiServer http.Handler, mcpClient *mcp.Client) *http.ServeMux {
	mainRouter := http.NewServeMux()
	mainRouter.Handle("/", apiServer)

	mainRouter.HandleFunc("/mcp", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, "Failed to read request", http.StatusBadRequest)
			return
		}
		defer r.Body.Close()

		response := mcpClient.GetMCPServer().HandleMessage(r.Context(), body)

		w.Header().Set("Content-Type", "application/json")
		responseData, err := json.Marshal(response)
		if err != nil {
			http.Error(w, "Failed to marshal response", http.StatusInternalServerError)
			return
		}
		w.Write(responseData)
	})
	return mainRouter
}

// runServe starts the HTTP server with REST API, WebSocket hub, tick loop and
// an /mcp proxy endpoint. If ngrok is enabled it also provisions a public tunnel.
func runServe(ctx context.Context, cmd *cli.Command) error {
	opts := optionsFrom(cmd)
	logger := log.StandardLogger()
	log.Infof("Starting %s v%s", AppName, Version)

	defer setupTelemetry(ctx, opts)()

	svcs, err := initializeServices(opts, logger)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	hub := websocket.NewHub(websocket.WithInput(svcs.game), websocket.WithLogger(logger))
	go hub.Run(ctx)

	apiServer := api.NewServer(svcs.game, hub, api.WithLogger(logger))
	addr := opts.addr()
	mainRouter := newRouter(apiServer, mcp.NewClient("http://"+addr))

	httpServer := &http.Server{
		Addr:         addr,
		Handler:      mainRouter,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	var wg sync.WaitGroup
	serverErr := make(chan error, 1)

	wg.Add(1)
	go func() {
		defer wg.Done()

		log.Infof("HTTP server listening on %s", addr)
		log.Infof("REST API: http://%s/api", addr)
		log.Infof("WebSocket: ws://%s/ws?session=<session_id>", addr)
		log.Infof("MCP endpoint: http://%s/mcp", addr)

		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- fmt.Errorf("HTTP server failed: %w", err)
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		err := service.RunTicker(ctx, svcs.game, opts.tick, func(updates []service.TickUpdate) {
			for _, u := range updates {
				hub.BroadcastToSession(u.SessionID, u.GameState)
			}
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			log.WithError(err).Error("Tick loop stopped")
		}
	}()

	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	wg.Add(3)
	go func() {
		defer wg.Done()
		reloadScenariosRoutine(ctx, svcs.scenarios, hup)
	}()
	go func() {
		defer wg.Done()
		sessionCleanupRoutine(ctx, svcs.sessions)
	}()
	go func() {
		defer wg.Done()
		filesystemSyncRoutine(ctx, svcs.game, svcs.sessions, svcs.persistence)
	}()

	if opts.ngrok {
		wg.Add(1)
		go func() {
			defer wg.Done()
			runNgrok(ctx, opts, mainRouter)
		}()
	}

	select {
	case <-ctx.Done():
		log.Info("Shutting down...")
	case err = <-serverErr:
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("HTTP server shutdown error")
	}

	wg.Wait()

	if err := svcs.sessions.SaveAllSessions(); err != nil {
		log.WithError(err).Warn("Failed to save sessions on exit")
	}
	log.Info("Server stopped")
	return err
}

func runNgrok(ctx context.Context, opts options, handler http.Handler) {
	if opts.ngrokAuth == "" {
		log.Warn("Ngrok enabled but no auth token provided (use --ngrok-auth, NGROK_AUTHTOKEN, or NGROK_AUTH_TOKEN env var)")
		return
	}

	log.Info("Starting ngrok tunnel...")

	var tunnel ngrokConfig.Tunnel
	if opts.ngrokDomain != "" {
		tunnel = ngrokConfig.HTTPEndpoint(ngrokConfig.WithDomain(opts.ngrokDomain))
		log.Infof("Using custom ngrok domain: %s", opts.ngrokDomain)
	} else {
		tunnel = ngrokConfig.HTTPEndpoint()
	}

	tun, err := ngrok.Listen(ctx, tunnel, ngrok.WithAuthtoken(opts.ngrokAuth))
	if err != nil {
		log.WithError(err).Error("Failed to start ngrok tunnel")
		return
	}
	defer func() {
		if err := tun.Close(); err != nil {
			log.WithError(err).Warn("Failed to close ngrok tunnel")
		}
	}()

	ngrokURL := tun.URL()
	log.WithField("url", ngrokURL).Info("Ngrok tunnel established")
	log.Infof("  REST API (ngrok): %s/api", ngrokURL)
	log.Infof("  WebSocket (ngrok): %s/ws?session=<session_id>", ngrokURL)
	log.Infof("  MCP endpoint (ngrok): %s/mcp", ngrokURL)

	// closing the tunnel unblocks Serve
	go func() {
		<-ctx.Done()
		tun.Close()
	}()

	if err := http.Serve(tun, handler); err != nil && !errors.Is(err, http.ErrServerClosed) && ctx.Err() == nil {
		log.WithError(err).Error("Ngrok server error")
	}
	log.Info("Ngrok tunnel closed")
}

// reloadScenariosRoutine drops the scenario cache whenever reload fires, so
// edited files are picked up without a restart. Running sessions keep their maps.
func reloadScenariosRoutine(ctx context.Context, scenarios *scenario.Manager, reload <-chan os.Signal) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-reload:
			scenarios.RefreshCache()
			log.Info("Scenario cache cleared, files will be reread")
		}
	}
}

// sessionCleanupRoutine periodically removes sessions that have not been
// accessed within sessionMaxAge.
func sessionCleanupRoutine(ctx context.Context, manager *session.Manager) {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := manager.CleanupExpiredSessions(sessionMaxAge); removed > 0 {
				log.Infof("Cleaned up %d expired sessions", removed)
			}
		}
	}
}

// filesystemSyncRoutine writes sessions moved by held keys to disk and removes
// sessions from memory when their files are deleted.
func filesystemSyncRoutine(ctx context.Context, game service.GameService, manager *session.Manager, persistence session.SessionPersistence) {
	ticker := time.NewTicker(filesystemSyncEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := game.SaveTicked(ctx); n > 0 {
				log.Debugf("Filesystem sync: saved %d ticked sessions", n)
			}
			if n := pruneOrphanedSessions(manager, persistence); n > 0 {
				log.Infof("Filesystem sync: pruned %d orphaned sessions from memory", n)
			}
		}
	}
}

func pruneOrphanedSessions(manager *session.Manager, persistence session.SessionPersistence) int {
	if persistence == nil {
		return 0
	}

	pruned := 0
	for _, s := range manager.List() {
		if persistence.Exists(s.ID) {
			continue
		}
		if err := manager.DeleteFromMemory(s.ID); err == nil {
			pruned++
			log.WithField("session", s.ID).Info("Pruned session from memory (file deleted)")
		}
	}
	return pruned
}

// runStdioMCP runs an MCP stdio server. It reuses an API already listening on
// --host/--port; otherwise it starts an internal HTTP API on a random loopback
// port and targets that.
func runStdioMCP(ctx context.Context, cmd *cli.Command) error {
	opts := optionsFrom(cmd)
	externalURL := "http://" + opts.addr()
	baseURL := externalURL

	log.Infof("Checking for external API server at %s...", externalURL)

	testClient := &http.Client{Timeout: 2 * time.Second}
	resp, err := testClient.Get(externalURL + "/api/health")
	if err == nil {
		resp.Body.Close()
	}
	if err == nil && resp.StatusCode < 500 {
		log.Infof("External API server found at %s, using it for MCP", externalURL)
	} else {
		log.Info("No external API server found, starting internal HTTP server")

		svcs, err := initializeServices(opts, log.StandardLogger())
		if err != nil {
			return err
		}
		defer func() {
			if err := svcs.sessions.SaveAllSessions(); err != nil {
				log.WithError(err).Warn("Failed to save sessions on exit")
			}
		}()

		listener, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			return fmt.Errorf("failed to get available port: %w", err)
		}

		hub := websocket.NewHub(websocket.WithInput(svcs.game))
		go hub.Run(ctx)

		httpServer := &http.Server{Handler: api.NewServer(svcs.game, hub)}
		go func() {
			if err := httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.WithError(err).Error("Internal HTTP server error")
			}
		}()
		defer httpServer.Close()

		baseURL = "http://" + listener.Addr().String()
		log.Infof("Internal HTTP server on %s for MCP stdio", baseURL)
	}

	mcpClient := mcp.NewClient(baseURL)
	log.Info("MCP stdio server ready")

	if err := server.ServeStdio(mcpClient.GetMCPServer()); err != nil {
		return fmt.Errorf("MCP stdio server error: %w", err)
	}
	return nil
}

// runValidate strictly decodes each file, printing "ok" or the failure code.
func runValidate(ctx context.Context, cmd *cli.Command) error {
	files := cmd.Args().Slice()
	if len(files) == 0 {
		return cli.Exit("validate needs at least one file", 2)
	}

	codec := engine.NewCodec()
	out := cmd.Root().Writer
	failed := 0
	for _, path := range files {
		grid, err := codec.DecodeFile(path)
		if err != nil {
			failed++
			fmt.Fprintf(out, "%s: %s: %v\n", path, engine.DecodeErrorCode(err), err)
			continue
		}
		fmt.Fprintf(out, "%s: ok (%dX%d)\n", path, grid.Cols(), grid.Rows())
	}

	if failed > 0 {
		return cli.Exit(fmt.Sprintf("%d of %d files failed", failed, len(files)), 1)
	}
	return nil
}

// runEncode prints the canonical document of the generated default map,
// center obstacle included.
func runEncode(ctx context.Context, cmd *cli.Command) error {
	grid, err := engine.GenerateDefault(int(cmd.Int("cols")), int(cmd.Int("rows")))
	if err != nil {
		return cli.Exit(err.Error(), 2)
	}
	return engine.NewCodec().EncodeTo(cmd.Root().Writer, grid)
}
