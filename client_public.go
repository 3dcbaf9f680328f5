package gsheets

import (
	"context"
	"encoding/csv"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/custodia-labs/gsheets/internal/logger"
)

const csvExportBase = "https://docs.google.com/spreadsheets/d/%s/export?format=csv"

// publicClient reads publicly shared spreadsheets anonymously through the
// CSV export endpoint. It can only address worksheets by gid (the export
// endpoint has no notion of titles) and supports no writes.
type publicClient struct {
	http    *http.Client
	limiter *rateLimiter
}

func newPublicClient(limiter *rateLimiter) *publicClient {
	return &publicClient{
		http:    &http.Client{},
		limiter: limiter,
	}
}

func (c *publicClient) readOnly() bool { return true }

// exportURL builds the CSV download URL for the referenced worksheet.
func (c *publicClient) exportURL(ref SpreadsheetRef, ws WorksheetRef) (string, error) {
	if ref.ByName() {
		// Resolver rejects this combination already; kept as a guard for
		// refs constructed elsewhere.
		return "", fmt.Errorf("%w: public mode cannot open spreadsheets by name", ErrInvalidConfig)
	}

	u := fmt.Sprintf(csvExportBase, ref.Key())
	switch ws.kind {
	case worksheetDefault:
		// Export without gid returns the first worksheet.
	case worksheetByGID:
		u += "&gid=" + strconv.FormatInt(ws.n, 10)
	default:
		return "", fmt.Errorf(
			"%w: public mode selects worksheets by gid, not by %s", ErrInvalidConfig, ws)
	}
	return u, nil
}

func (c *publicClient) fetchValues(ctx context.Context, ref SpreadsheetRef, ws WorksheetRef, _ bool) ([][]string, error) {
	u, err := c.exportURL(ref, ws)
	if err != nil {
		return nil, err
	}

	if err := c.limiter.wait(ctx); err != nil {
		return nil, err
	}
	logger.Debug("fetching %s", u)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: spreadsheet %s", ErrNotFound, ref.Key())
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf(
			"%w: spreadsheet %s is not shared publicly (anyone with the link)", ErrNotFound, ref.Key())
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("%w: export returned status %d", ErrTransport, resp.StatusCode)
	}

	// Private sheets answer 200 with a login page instead of CSV.
	if ct := resp.Header.Get("Content-Type"); strings.Contains(ct, "text/html") {
		return nil, fmt.Errorf(
			"%w: spreadsheet %s is not shared publicly (anyone with the link)", ErrNotFound, ref.Key())
	}

	reader := csv.NewReader(resp.Body)
	reader.FieldsPerRecord = -1
	grid, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: parsing CSV export: %v", ErrBadData, err)
	}
	return grid, nil
}

func (c *publicClient) updateValues(context.Context, SpreadsheetRef, WorksheetRef, [][]any) error {
	return ErrReadOnly
}

func (c *publicClient) appendValues(context.Context, SpreadsheetRef, WorksheetRef, [][]any) error {
	return ErrReadOnly
}

func (c *publicClient) clearValues(context.Context, SpreadsheetRef, WorksheetRef) error {
	return ErrReadOnly
}

func (c *publicClient) addWorksheet(context.Context, SpreadsheetRef, string, int64, int64) (WorksheetRef, error) {
	return WorksheetRef{}, ErrReadOnly
}
