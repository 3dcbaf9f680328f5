package gsheets

import (
	"context"
)

// apiClient is the narrow transport surface the connection needs from the
// spreadsheet API. Two implementations exist: serviceClient (Sheets API,
// service-account auth, full surface) and publicClient (anonymous CSV
// export, reads only). Keeping the interface this small isolates the
// untyped [][]interface{} values of the Sheets API at one boundary.
type apiClient interface {
	// readOnly reports whether the client supports only reads.
	readOnly() bool

	// fetchValues returns the worksheet's cell grid as strings. When
	// formulas is set, service-account clients return the underlying
	// formulas instead of evaluated values; public clients ignore it.
	fetchValues(ctx context.Context, ref SpreadsheetRef, ws WorksheetRef, formulas bool) ([][]string, error)

	// updateValues overwrites the range spanned by values starting at A1.
	updateValues(ctx context.Context, ref SpreadsheetRef, ws WorksheetRef, values [][]any) error

	// appendValues appends rows after the worksheet's existing data.
	appendValues(ctx context.Context, ref SpreadsheetRef, ws WorksheetRef, rows [][]any) error

	// clearValues removes all cell contents from the worksheet.
	clearValues(ctx context.Context, ref SpreadsheetRef, ws WorksheetRef) error

	// addWorksheet creates a new worksheet and returns its reference.
	addWorksheet(ctx context.Context, ref SpreadsheetRef, title string, rows, cols int64) (WorksheetRef, error)
}

// newClient builds the client matching the credential: nil selects the
// anonymous public client, a service-account key selects the authenticated
// one. The factory makes a single construction attempt; retries, if any,
// belong to the caller.
func newClient(ctx context.Context, key *serviceAccountKey, limiter *rateLimiter) (apiClient, error) {
	if key == nil {
		return newPublicClient(limiter), nil
	}
	return newServiceClient(ctx, key, limiter)
}
