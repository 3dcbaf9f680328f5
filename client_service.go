package gsheets

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/spf13/cast"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/custodia-labs/gsheets/internal/logger"
)

const spreadsheetMimeType = "application/vnd.google-apps.spreadsheet"

// serviceClient talks to the Sheets API with a service-account credential.
// The Drive API is used only to resolve name references to spreadsheet ids.
type serviceClient struct {
	sheets  *sheets.Service
	drive   *drive.Service
	limiter *rateLimiter

	// nameIDs memoises document-name lookups; spreadsheet ids are stable.
	mu      sync.Mutex
	nameIDs map[string]string
}

func newServiceClient(ctx context.Context, key *serviceAccountKey, limiter *rateLimiter) (*serviceClient, error) {
	ts, err := key.tokenSource(ctx)
	if err != nil {
		return nil, err
	}

	sheetsSrv, err := sheets.NewService(ctx, option.WithTokenSource(ts))
	if err != nil {
		return nil, fmt.Errorf("%w: creating sheets service: %v", ErrTransport, err)
	}
	driveSrv, err := drive.NewService(ctx, option.WithTokenSource(ts))
	if err != nil {
		return nil, fmt.Errorf("%w: creating drive service: %v", ErrTransport, err)
	}

	return &serviceClient{
		sheets:  sheetsSrv,
		drive:   driveSrv,
		limiter: limiter,
		nameIDs: make(map[string]string),
	}, nil
}

func (c *serviceClient) readOnly() bool { return false }

// translate records 429 backoff windows before mapping the error into the
// connection taxonomy.
func (c *serviceClient) translate(err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) && gerr.Code == http.StatusTooManyRequests {
		retryAfter, _ := strconv.Atoi(gerr.Header.Get("Retry-After"))
		c.limiter.backoff(retryAfter)
	}
	return wrapAPIError(err)
}

// spreadsheetID resolves a reference to a concrete spreadsheet id, running
// a Drive name query for name references.
func (c *serviceClient) spreadsheetID(ctx context.Context, ref SpreadsheetRef) (string, error) {
	if !ref.ByName() {
		return ref.Key(), nil
	}

	c.mu.Lock()
	id, ok := c.nameIDs[ref.Key()]
	c.mu.Unlock()
	if ok {
		return id, nil
	}

	if err := c.limiter.wait(ctx); err != nil {
		return "", err
	}

	query := fmt.Sprintf("name = '%s' and mimeType = '%s' and trashed = false",
		strings.ReplaceAll(ref.Key(), "'", `\'`), spreadsheetMimeType)
	list, err := c.drive.Files.List().Q(query).Fields("files(id, name)").PageSize(1).Context(ctx).Do()
	if err != nil {
		return "", c.translate(err)
	}
	if len(list.Files) == 0 {
		return "", fmt.Errorf("%w: no spreadsheet named %q visible to the service account", ErrNotFound, ref.Key())
	}

	id = list.Files[0].Id
	logger.Debug("resolved spreadsheet name %q to id %s", ref.Key(), id)

	c.mu.Lock()
	c.nameIDs[ref.Key()] = id
	c.mu.Unlock()
	return id, nil
}

type sheetProps struct {
	title string
	gid   int64
	index int64
}

// worksheets fetches the spreadsheet's tab list. Not memoised: titles and
// positions change underneath a long-lived connection, and the call is
// cheap next to a values fetch.
func (c *serviceClient) worksheets(ctx context.Context, id string) ([]sheetProps, error) {
	if err := c.limiter.wait(ctx); err != nil {
		return nil, err
	}

	meta, err := c.sheets.Spreadsheets.Get(id).
		Fields("sheets(properties(sheetId,title,index))").
		Context(ctx).Do()
	if err != nil {
		return nil, c.translate(err)
	}

	props := make([]sheetProps, 0, len(meta.Sheets))
	for _, s := range meta.Sheets {
		if s.Properties == nil {
			continue
		}
		props = append(props, sheetProps{
			title: s.Properties.Title,
			gid:   s.Properties.SheetId,
			index: s.Properties.Index,
		})
	}
	if len(props) == 0 {
		return nil, fmt.Errorf("%w: spreadsheet %s has no worksheets", ErrNotFound, id)
	}
	return props, nil
}

// worksheetTitle resolves a worksheet reference to its tab title, which is
// what A1-notation ranges are addressed by.
func (c *serviceClient) worksheetTitle(ctx context.Context, id string, ws WorksheetRef) (string, error) {
	props, err := c.worksheets(ctx, id)
	if err != nil {
		return "", err
	}

	switch {
	case ws.IsDefault():
		return props[0].title, nil
	case ws.kind == worksheetByTitle:
		for _, p := range props {
			if p.title == ws.title {
				return p.title, nil
			}
		}
	case ws.kind == worksheetByGID:
		for _, p := range props {
			if p.gid == ws.n {
				return p.title, nil
			}
		}
	case ws.kind == worksheetByIndex:
		for _, p := range props {
			if p.index == ws.n {
				return p.title, nil
			}
		}
	}
	return "", fmt.Errorf("%w: %s", ErrNotFound, ws)
}

// titleRange quotes a tab title for A1 notation. Without a cell suffix the
// range covers the whole worksheet.
func titleRange(title string) string {
	return "'" + strings.ReplaceAll(title, "'", "''") + "'"
}

func (c *serviceClient) fetchValues(ctx context.Context, ref SpreadsheetRef, ws WorksheetRef, formulas bool) ([][]string, error) {
	id, err := c.spreadsheetID(ctx, ref)
	if err != nil {
		return nil, err
	}
	title, err := c.worksheetTitle(ctx, id, ws)
	if err != nil {
		return nil, err
	}

	if err := c.limiter.wait(ctx); err != nil {
		return nil, err
	}

	render := "FORMATTED_VALUE"
	if formulas {
		render = "FORMULA"
	}
	resp, err := c.sheets.Spreadsheets.Values.Get(id, titleRange(title)).
		ValueRenderOption(render).
		Context(ctx).Do()
	if err != nil {
		return nil, c.translate(err)
	}

	grid := make([][]string, len(resp.Values))
	for i, row := range resp.Values {
		out := make([]string, len(row))
		for j, cell := range row {
			out[j] = cast.ToString(cell)
		}
		grid[i] = out
	}
	return grid, nil
}

func (c *serviceClient) updateValues(ctx context.Context, ref SpreadsheetRef, ws WorksheetRef, values [][]any) error {
	id, err := c.spreadsheetID(ctx, ref)
	if err != nil {
		return err
	}
	title, err := c.worksheetTitle(ctx, id, ws)
	if err != nil {
		return err
	}

	if err := c.limiter.wait(ctx); err != nil {
		return err
	}

	_, err = c.sheets.Spreadsheets.Values.Update(id, titleRange(title)+"!A1", &sheets.ValueRange{Values: values}).
		ValueInputOption("RAW").
		Context(ctx).Do()
	if err != nil {
		return c.translate(err)
	}
	return nil
}

func (c *serviceClient) appendValues(ctx context.Context, ref SpreadsheetRef, ws WorksheetRef, rows [][]any) error {
	id, err := c.spreadsheetID(ctx, ref)
	if err != nil {
		return err
	}
	title, err := c.worksheetTitle(ctx, id, ws)
	if err != nil {
		return err
	}

	if err := c.limiter.wait(ctx); err != nil {
		return err
	}

	_, err = c.sheets.Spreadsheets.Values.Append(id, titleRange(title), &sheets.ValueRange{Values: rows}).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return c.translate(err)
	}
	return nil
}

func (c *serviceClient) clearValues(ctx context.Context, ref SpreadsheetRef, ws WorksheetRef) error {
	id, err := c.spreadsheetID(ctx, ref)
	if err != nil {
		return err
	}
	title, err := c.worksheetTitle(ctx, id, ws)
	if err != nil {
		return err
	}

	if err := c.limiter.wait(ctx); err != nil {
		return err
	}

	_, err = c.sheets.Spreadsheets.Values.Clear(id, titleRange(title), &sheets.ClearValuesRequest{}).
		Context(ctx).Do()
	if err != nil {
		return c.translate(err)
	}
	return nil
}

func (c *serviceClient) addWorksheet(ctx context.Context, ref SpreadsheetRef, title string, rows, cols int64) (WorksheetRef, error) {
	id, err := c.spreadsheetID(ctx, ref)
	if err != nil {
		return WorksheetRef{}, err
	}

	props, err := c.worksheets(ctx, id)
	if err != nil {
		return WorksheetRef{}, err
	}
	for _, p := range props {
		if p.title == title {
			return WorksheetRef{}, fmt.Errorf("%w: %q", ErrWorksheetExists, title)
		}
	}

	if err := c.limiter.wait(ctx); err != nil {
		return WorksheetRef{}, err
	}

	req := &sheets.BatchUpdateSpreadsheetRequest{
		Requests: []*sheets.Request{{
			AddSheet: &sheets.AddSheetRequest{
				Properties: &sheets.SheetProperties{
					Title: title,
					GridProperties: &sheets.GridProperties{
						RowCount:    rows,
						ColumnCount: cols,
					},
				},
			},
		}},
	}
	resp, err := c.sheets.Spreadsheets.BatchUpdate(id, req).Context(ctx).Do()
	if err != nil {
		return WorksheetRef{}, c.translate(err)
	}

	for _, reply := range resp.Replies {
		if reply.AddSheet != nil && reply.AddSheet.Properties != nil {
			return WorksheetGID(reply.AddSheet.Properties.SheetId), nil
		}
	}
	return WorksheetTitle(title), nil
}
