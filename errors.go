package gsheets

import (
	"errors"
	"fmt"
	"net/http"

	"google.golang.org/api/googleapi"
)

// Connection errors. Every remote failure is translated to one of these
// sentinels so hosts can branch with errors.Is.
var (
	// ErrInvalidConfig indicates malformed or contradictory configuration,
	// such as a partial service-account credential or an unusable reference.
	ErrInvalidConfig = errors.New("gsheets: invalid configuration")

	// ErrAuth indicates the remote service rejected the credential.
	ErrAuth = errors.New("gsheets: authentication rejected")

	// ErrReadOnly indicates a write operation on a public connection.
	ErrReadOnly = errors.New("gsheets: operation requires a service account")

	// ErrNotFound indicates the spreadsheet or worksheet is absent or not
	// accessible to the caller.
	ErrNotFound = errors.New("gsheets: spreadsheet or worksheet not found")

	// ErrBadData indicates the worksheet contents could not be decoded, or
	// a table could not be encoded (duplicate columns, ragged rows).
	ErrBadData = errors.New("gsheets: malformed worksheet data")

	// ErrWorksheetExists indicates Create was called with a title that is
	// already present in the spreadsheet.
	ErrWorksheetExists = errors.New("gsheets: worksheet already exists")

	// ErrTransport indicates an uncategorised failure from the underlying
	// transport.
	ErrTransport = errors.New("gsheets: transport failure")
)

// IsAuthError returns true if the error indicates a rejected credential.
func IsAuthError(err error) bool { return errors.Is(err, ErrAuth) }

// IsNotFound returns true if the error indicates a missing or inaccessible
// spreadsheet or worksheet.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsReadOnly returns true if the error indicates a write on a public
// connection.
func IsReadOnly(err error) bool { return errors.Is(err, ErrReadOnly) }

// IsInvalidConfig returns true if the error indicates bad configuration.
func IsInvalidConfig(err error) bool { return errors.Is(err, ErrInvalidConfig) }

// wrapAPIError translates a Google API error into the connection's error
// taxonomy. 403 is grouped with 404: for service accounts the overwhelmingly
// common cause is a spreadsheet that has not been shared with the service
// account email, and surfacing that guidance matters more than the exact
// status code.
func wrapAPIError(err error) error {
	if err == nil {
		return nil
	}

	var gerr *googleapi.Error
	if !errors.As(err, &gerr) {
		return fmt.Errorf("%w: %v", ErrTransport, err)
	}

	switch gerr.Code {
	case http.StatusUnauthorized:
		return fmt.Errorf("%w: %s", ErrAuth, gerr.Message)
	case http.StatusForbidden, http.StatusNotFound:
		return fmt.Errorf("%w: %s (check that the spreadsheet is shared with the service account email)",
			ErrNotFound, gerr.Message)
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w: rate limited: %s", ErrTransport, gerr.Message)
	default:
		return fmt.Errorf("%w: %s", ErrTransport, gerr.Message)
	}
}
