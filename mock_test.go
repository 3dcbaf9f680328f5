package gsheets

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/spf13/cast"
)

// fakeClient is an in-memory apiClient. Grids are keyed by the worksheet
// reference's cache key so tests can seed specific tabs.
type fakeClient struct {
	mu       sync.Mutex
	readonly bool
	grids    map[string][][]string
	titles   []string

	fetchErr   error
	fetchDelay time.Duration

	fetchCalls  int
	updateCalls int
	appendCalls int
	clearCalls  int
	addCalls    int

	addRows int64
	addCols int64
}

func newFakeClient(readonly bool) *fakeClient {
	return &fakeClient{
		readonly: readonly,
		grids:    make(map[string][][]string),
	}
}

func (f *fakeClient) seed(ws WorksheetRef, grid [][]string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.grids[ws.CacheKey()] = grid
}

func (f *fakeClient) calls() (fetch, update, appendN, clear, add int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetchCalls, f.updateCalls, f.appendCalls, f.clearCalls, f.addCalls
}

func (f *fakeClient) readOnly() bool { return f.readonly }

func (f *fakeClient) fetchValues(_ context.Context, _ SpreadsheetRef, ws WorksheetRef, _ bool) ([][]string, error) {
	f.mu.Lock()
	f.fetchCalls++
	delay := f.fetchDelay
	f.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	grid, ok := f.grids[ws.CacheKey()]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, ws)
	}
	return grid, nil
}

func stringifyRows(values [][]any) [][]string {
	out := make([][]string, len(values))
	for i, row := range values {
		cells := make([]string, len(row))
		for j, cell := range row {
			cells[j] = cast.ToString(cell)
		}
		out[i] = cells
	}
	return out
}

func (f *fakeClient) updateValues(_ context.Context, _ SpreadsheetRef, ws WorksheetRef, values [][]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updateCalls++
	f.grids[ws.CacheKey()] = stringifyRows(values)
	return nil
}

func (f *fakeClient) appendValues(_ context.Context, _ SpreadsheetRef, ws WorksheetRef, rows [][]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.appendCalls++
	f.grids[ws.CacheKey()] = append(f.grids[ws.CacheKey()], stringifyRows(rows)...)
	return nil
}

func (f *fakeClient) clearValues(_ context.Context, _ SpreadsheetRef, ws WorksheetRef) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clearCalls++
	f.grids[ws.CacheKey()] = nil
	return nil
}

func (f *fakeClient) addWorksheet(_ context.Context, _ SpreadsheetRef, title string, rows, cols int64) (WorksheetRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.addCalls++
	f.addRows, f.addCols = rows, cols
	for _, t := range f.titles {
		if t == title {
			return WorksheetRef{}, fmt.Errorf("%w: %q", ErrWorksheetExists, title)
		}
	}
	f.titles = append(f.titles, title)
	return WorksheetGID(int64(len(f.titles))), nil
}

// newTestConnection wires a Connection directly to a fake client.
func newTestConnection(cfg Config, client apiClient) *Connection {
	return &Connection{
		cfg:     cfg,
		client:  client,
		cache:   newGridCache(),
		limiter: newRateLimiter(),
	}
}
