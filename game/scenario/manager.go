package scenario

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/wricardo/mcp-training/tilegame/game/engine"
	"github.com/wricardo/mcp-training/tilegame/game/service"
)

// Extension is the file suffix of scenario documents
const Extension = ".txt"

// DefaultName is the scenario used when none is requested
const DefaultName = "default"

var namePattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// Manager handles scenario loading and caching
type Manager struct {
	dir         string
	codec       *engine.Codec
	defaultCols int
	defaultRows int
	logger      log.FieldLogger

	defaultScenario *service.Scenario
	scenarios       map[string]*service.Scenario
	mu              sync.RWMutex
}

// Option configures a Manager
type Option func(*Manager)

// WithCodec sets the codec used to read scenario files
func WithCodec(codec *engine.Codec) Option {
	return func(m *Manager) { m.codec = codec }
}

// WithDefaultSize sets the size of generated fallback maps
func WithDefaultSize(cols, rows int) Option {
	return func(m *Manager) { m.defaultCols, m.defaultRows = cols, rows }
}

// WithLogger sets the logger for fallback warnings
func WithLogger(logger log.FieldLogger) Option {
	return func(m *Manager) { m.logger = logger }
}

// NewManager creates a scenario manager over dir, creating the directory if needed
func NewManager(dir string, opts ...Option) (*Manager, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create scenario directory: %w", err)
	}

	m := &Manager{
		dir:         dir,
		codec:       engine.NewCodec(),
		defaultCols: engine.DefaultCols,
		defaultRows: engine.DefaultRows,
		logger:      log.StandardLogger(),
		scenarios:   make(map[string]*service.Scenario),
	}
	for _, opt := range opts {
		opt(m)
	}

	def, err := m.LoadOrGenerate(DefaultName)
	if err != nil {
		return nil, fmt.Errorf("failed to load default scenario: %w", err)
	}
	m.defaultScenario = def

	return m, nil
}

// Codec returns the codec scenario files are decoded with
func (m *Manager) Codec() *engine.Codec {
	return m.codec
}

// Dir returns the scenario directory
func (m *Manager) Dir() string {
	return m.dir
}

// LoadScenario loads a scenario by name. Missing files return
// service.ErrScenarioNotFound; files that fail to decode return an error
// wrapping both service.ErrInvalidScenario and the codec error.
func (m *Manager) LoadScenario(name string) (*service.Scenario, error) {
	name, err := normalizeName(name)
	if err != nil {
		return nil, err
	}

	m.mu.RLock()
	if sc, exists := m.scenarios[name]; exists {
		m.mu.RUnlock()
		return sc, nil
	}
	m.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()

	// Double-check after acquiring write lock
	if sc, exists := m.scenarios[name]; exists {
		return sc, nil
	}

	grid, err := m.codec.DecodeFile(m.path(name))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", service.ErrScenarioNotFound, name)
		}
		return nil, fmt.Errorf("%w: %s: %w", service.ErrInvalidScenario, name, err)
	}

	sc := &service.Scenario{Name: name, Grid: grid}
	m.scenarios[name] = sc
	return sc, nil
}

// LoadOrGenerate loads a scenario and falls back to a generated walled room.
// A missing scenario is generated and saved under name; an unreadable one is
// generated in memory only so the broken file stays for inspection.
func (m *Manager) LoadOrGenerate(name string) (*service.Scenario, error) {
	sc, err := m.LoadScenario(name)
	if err == nil {
		return sc, nil
	}
	missing := errors.Is(err, service.ErrScenarioNotFound)
	if !missing && !errors.Is(err, service.ErrInvalidScenario) {
		return nil, err
	}

	name, _ = normalizeName(name)
	m.logger.WithFields(log.Fields{
		"scenario": name,
		"code":     engine.DecodeErrorCode(err),
		"cols":     m.defaultCols,
		"rows":     m.defaultRows,
	}).WithError(err).Warn("scenario unavailable, generating default map")

	grid, genErr := engine.GenerateDefault(m.defaultCols, m.defaultRows)
	if genErr != nil {
		return nil, fmt.Errorf("failed to generate default map: %w", genErr)
	}

	if missing {
		if saveErr := m.SaveScenario(name, grid); saveErr != nil {
			m.logger.WithField("scenario", name).WithError(saveErr).Warn("failed to save generated scenario")
		}
	}

	return &service.Scenario{Name: name, Grid: grid, Generated: true}, nil
}

// ListScenarios returns information about every decodable scenario file
func (m *Manager) ListScenarios() ([]*service.ScenarioInfo, error) {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario directory: %w", err)
	}

	var infos []*service.ScenarioInfo
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), Extension) {
			continue
		}

		name := strings.TrimSuffix(entry.Name(), Extension)
		sc, err := m.LoadScenario(name)
		if err != nil {
			m.logger.WithField("file", entry.Name()).WithError(err).Debug("skipping scenario")
			continue
		}
		infos = append(infos, service.NewScenarioInfo(name, entry.Name(), sc.Grid))
	}

	sort.Slice(infos, func(i, j int) bool { return infos[i].ScenarioID < infos[j].ScenarioID })
	return infos, nil
}

// GetDefault returns the default scenario
func (m *Manager) GetDefault() *service.Scenario {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.defaultScenario
}

// SetDefault sets the default scenario by name
func (m *Manager) SetDefault(name string) error {
	sc, err := m.LoadScenario(name)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.defaultScenario = sc
	return nil
}

// SaveScenario writes grid to disk in canonical form and refreshes the cache
func (m *Manager) SaveScenario(name string, grid *engine.Grid) error {
	name, err := normalizeName(name)
	if err != nil {
		return err
	}
	if grid == nil {
		return fmt.Errorf("%w: %s: grid is nil", service.ErrInvalidScenario, name)
	}

	f, err := os.Create(m.path(name))
	if err != nil {
		return fmt.Errorf("failed to create scenario file: %w", err)
	}
	if err := m.codec.EncodeTo(f, grid); err != nil {
		f.Close()
		return fmt.Errorf("failed to write scenario file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to write scenario file: %w", err)
	}

	m.mu.Lock()
	m.scenarios[name] = &service.Scenario{Name: name, Grid: grid.Clone()}
	m.mu.Unlock()

	return nil
}

// RefreshCache drops every cached scenario so the next load rereads the files
func (m *Manager) RefreshCache() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scenarios = make(map[string]*service.Scenario)
}

func (m *Manager) path(name string) string {
	return filepath.Join(m.dir, name+Extension)
}

// normalizeName strips the extension and rejects names that could escape the directory
func normalizeName(name string) (string, error) {
	name = strings.TrimSuffix(strings.TrimSpace(name), Extension)
	if !namePattern.MatchString(name) {
		return "", fmt.Errorf("%w: %q", service.ErrInvalidName, name)
	}
	return name, nil
}
