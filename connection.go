package gsheets

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/custodia-labs/gsheets/internal/logger"
)

// Connection is the facade over one spreadsheet data source. It is safe for
// concurrent use by multiple goroutines sharing the instance; the host owns
// its lifetime and there is no process-wide singleton.
type Connection struct {
	mu     sync.RWMutex
	cfg    Config
	cred   *serviceAccountKey
	client apiClient

	cache   *gridCache
	limiter *rateLimiter
}

// New builds a connection from a validated configuration. The mode (public
// read-only vs service-account CRUD) is fixed here from the credential
// fields; see Config. Construction does not contact the remote service.
func New(ctx context.Context, cfg Config) (*Connection, error) {
	cred, err := resolveCredential(cfg)
	if err != nil {
		return nil, err
	}

	limiter := newRateLimiter()
	client, err := newClient(ctx, cred, limiter)
	if err != nil {
		return nil, err
	}

	return &Connection{
		cfg:     cfg,
		cred:    cred,
		client:  client,
		cache:   newGridCache(),
		limiter: limiter,
	}, nil
}

// NewFromSecrets builds a connection from a string map as handed over by a
// host's secret store.
func NewFromSecrets(ctx context.Context, options map[string]string) (*Connection, error) {
	cfg, err := ParseConfig(options)
	if err != nil {
		return nil, err
	}
	return New(ctx, cfg)
}

// NewFromFile builds a connection from a TOML secrets file.
func NewFromFile(ctx context.Context, path string) (*Connection, error) {
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}
	return New(ctx, cfg)
}

// ReadOnly reports whether the connection is in public (read-only) mode.
func (c *Connection) ReadOnly() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.client.readOnly()
}

// SetDefault overrides the configured default spreadsheet and worksheet for
// subsequent operations. An empty worksheet selects the first tab.
func (c *Connection) SetDefault(spreadsheet, worksheet string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cfg.Spreadsheet = spreadsheet
	c.cfg.Worksheet = worksheet
}

// Reload replaces the credential and client wholesale from a new
// configuration and drops all cached data. Operations already in flight
// complete against the old client.
func (c *Connection) Reload(ctx context.Context, cfg Config) error {
	cred, err := resolveCredential(cfg)
	if err != nil {
		return err
	}
	client, err := newClient(ctx, cred, c.limiter)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.cfg = cfg
	c.cred = cred
	c.client = client
	c.mu.Unlock()

	c.cache.reset()
	logger.Debug("connection reloaded")
	return nil
}

// WatchSecrets reloads the connection whenever the TOML secrets file at
// path changes, enabling credential rotation without restarting the host.
// The watcher runs until ctx is cancelled. Reload failures are logged and
// the previous credential stays in effect.
func (c *Connection) WatchSecrets(ctx context.Context, path string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watching secrets file: %w", err)
	}
	// Watch the directory: editors and secret managers typically replace
	// the file rather than write it in place.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return fmt.Errorf("watching secrets file: %w", err)
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != filepath.Clean(path) {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				cfg, err := LoadConfig(path)
				if err != nil {
					logger.Warn("secrets file changed but could not be loaded: %v", err)
					continue
				}
				if err := c.Reload(ctx, cfg); err != nil {
					logger.Warn("secrets reload failed, keeping previous credential: %v", err)
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Warn("secrets watcher: %v", err)
			}
		}
	}()
	return nil
}

// callSettings collects per-operation overrides. Options not meaningful for
// an operation (WithTTL on a write, WithDimensions on a read) are ignored.
type callSettings struct {
	spreadsheet string
	worksheet   string
	columns     []int
	ttl         time.Duration
	ttlSet      bool
	header      bool
	formulas    bool
	rows        int64
	cols        int64
	data        *Table
}

// Option adjusts a single operation.
type Option func(*callSettings)

// WithSpreadsheet overrides the configured spreadsheet reference for one
// call.
func WithSpreadsheet(ref string) Option {
	return func(s *callSettings) { s.spreadsheet = ref }
}

// WithWorksheet overrides the configured worksheet reference for one call.
// A numeric string means gid in public mode and tab index in
// service-account mode.
func WithWorksheet(ref string) Option {
	return func(s *callSettings) { s.worksheet = ref }
}

// WithColumns keeps only the given zero-based column indices when decoding.
// Columns come back in grid order regardless of the order requested here.
func WithColumns(indices ...int) Option {
	return func(s *callSettings) { s.columns = indices }
}

// WithTTL sets the cache lifetime for one read, overriding Config.TTL.
// Zero disables caching for the call.
func WithTTL(d time.Duration) Option {
	return func(s *callSettings) { s.ttl = d; s.ttlSet = true }
}

// WithoutHeader treats the first grid row as data; columns are named by
// position.
func WithoutHeader() Option {
	return func(s *callSettings) { s.header = false }
}

// WithFormulas returns cell formulas instead of evaluated values. Only
// meaningful in service-account mode; the public CSV export always
// evaluates.
func WithFormulas() Option {
	return func(s *callSettings) { s.formulas = true }
}

// WithDimensions sets the grid size for Create.
func WithDimensions(rows, cols int64) Option {
	return func(s *callSettings) { s.rows = rows; s.cols = cols }
}

// WithData populates a worksheet created by Create with the table's header
// and rows, sizing the grid to fit.
func WithData(t *Table) Option {
	return func(s *callSettings) { s.data = t }
}

// snapshot returns the current defaults and client under the read lock so
// an operation works against one consistent view even across a Reload.
func (c *Connection) snapshot() (Config, apiClient) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cfg, c.client
}

func (c *Connection) settings(opts []Option) (callSettings, Config, apiClient) {
	cfg, client := c.snapshot()
	s := callSettings{header: true, ttl: cfg.TTL}
	for _, opt := range opts {
		opt(&s)
	}
	return s, cfg, client
}

// resolveTarget turns the effective spreadsheet/worksheet strings into
// resolved references.
func resolveTarget(s callSettings, cfg Config, serviceAccount bool) (SpreadsheetRef, WorksheetRef, error) {
	rawSheet := s.spreadsheet
	if rawSheet == "" {
		rawSheet = cfg.Spreadsheet
	}
	rawWS := s.worksheet
	if rawWS == "" {
		rawWS = cfg.Worksheet
	}

	ref, err := resolveSpreadsheet(rawSheet, serviceAccount)
	if err != nil {
		return SpreadsheetRef{}, WorksheetRef{}, err
	}
	return ref, resolveWorksheet(rawWS, ref, serviceAccount), nil
}

// entryPrefix is the cache key shared by all option variants of one
// worksheet; the trailing separator keeps prefix invalidation from touching
// worksheets whose key merely extends this one.
func entryPrefix(ref SpreadsheetRef, ws WorksheetRef) string {
	return ref.CacheKey() + "|" + ws.CacheKey() + "|"
}

func entryKey(ref SpreadsheetRef, ws WorksheetRef, formulas bool) string {
	variant := "values"
	if formulas {
		variant = "formulas"
	}
	return entryPrefix(ref, ws) + variant
}

// Read returns the worksheet contents as a Table. Reads are served from the
// cache within the effective TTL; a TTL of zero always fetches.
func (c *Connection) Read(ctx context.Context, opts ...Option) (*Table, error) {
	s, cfg, client := c.settings(opts)

	ref, ws, err := resolveTarget(s, cfg, !client.readOnly())
	if err != nil {
		return nil, err
	}

	grid, err := c.cache.getOrFetch(entryKey(ref, ws, s.formulas), s.ttl, func() ([][]string, error) {
		return client.fetchValues(ctx, ref, ws, s.formulas)
	})
	if err != nil {
		return nil, err
	}

	return decodeGrid(grid, decodeOptions{header: s.header, usecols: s.columns})
}

// Update overwrites the worksheet with the table's header and rows starting
// at A1. The write spans exactly the table's rectangle; when replacing
// longer contents, Clear first. Requires service-account mode.
func (c *Connection) Update(ctx context.Context, t *Table, opts ...Option) error {
	s, cfg, client := c.settings(opts)
	if client.readOnly() {
		return fmt.Errorf("update: %w", ErrReadOnly)
	}

	ref, ws, err := resolveTarget(s, cfg, true)
	if err != nil {
		return err
	}
	values, err := encodeUpdate(t)
	if err != nil {
		return err
	}

	if err := client.updateValues(ctx, ref, ws, values); err != nil {
		return err
	}
	c.cache.invalidate(entryPrefix(ref, ws))
	return nil
}

// Append adds the table's data rows (no header) after the worksheet's
// existing contents. Requires service-account mode.
func (c *Connection) Append(ctx context.Context, t *Table, opts ...Option) error {
	s, cfg, client := c.settings(opts)
	if client.readOnly() {
		return fmt.Errorf("append: %w", ErrReadOnly)
	}

	ref, ws, err := resolveTarget(s, cfg, true)
	if err != nil {
		return err
	}
	rows, err := encodeAppend(t)
	if err != nil {
		return err
	}

	if err := client.appendValues(ctx, ref, ws, rows); err != nil {
		return err
	}
	c.cache.invalidate(entryPrefix(ref, ws))
	return nil
}

// Clear removes all cell contents from the worksheet. Requires
// service-account mode.
func (c *Connection) Clear(ctx context.Context, opts ...Option) error {
	s, cfg, client := c.settings(opts)
	if client.readOnly() {
		return fmt.Errorf("clear: %w", ErrReadOnly)
	}

	ref, ws, err := resolveTarget(s, cfg, true)
	if err != nil {
		return err
	}

	if err := client.clearValues(ctx, ref, ws); err != nil {
		return err
	}
	c.cache.invalidate(entryPrefix(ref, ws))
	return nil
}

// Default grid size for worksheets created without explicit dimensions,
// matching the Sheets UI default.
const (
	defaultCreateRows = 1000
	defaultCreateCols = 26
)

// Create adds a new worksheet with the given title to the resolved
// spreadsheet and returns its reference. With WithData the worksheet is
// sized to the table and populated with its header and rows. Fails with
// ErrWorksheetExists when the title is taken. Requires service-account
// mode.
func (c *Connection) Create(ctx context.Context, worksheet string, opts ...Option) (WorksheetRef, error) {
	s, cfg, client := c.settings(opts)
	if client.readOnly() {
		return WorksheetRef{}, fmt.Errorf("create: %w", ErrReadOnly)
	}
	if worksheet == "" {
		return WorksheetRef{}, fmt.Errorf("%w: worksheet title is required", ErrInvalidConfig)
	}

	ref, _, err := resolveTarget(s, cfg, true)
	if err != nil {
		return WorksheetRef{}, err
	}

	rows, cols := s.rows, s.cols
	if s.data != nil {
		if err := s.data.validate(); err != nil {
			return WorksheetRef{}, err
		}
		rows = int64(s.data.NumRows()) + 1
		cols = int64(s.data.NumCols())
	}
	if rows <= 0 {
		rows = defaultCreateRows
	}
	if cols <= 0 {
		cols = defaultCreateCols
	}

	created, err := client.addWorksheet(ctx, ref, worksheet, rows, cols)
	if err != nil {
		return WorksheetRef{}, err
	}

	if s.data != nil {
		values, err := encodeUpdate(s.data)
		if err != nil {
			return WorksheetRef{}, err
		}
		if err := client.updateValues(ctx, ref, WorksheetTitle(worksheet), values); err != nil {
			return created, err
		}
	}
	return created, nil
}
