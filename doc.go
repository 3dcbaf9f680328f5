// Package gsheets exposes a Google Sheets spreadsheet as a tabular data
// source for long-lived host applications.
//
// A Connection operates in one of two modes, fixed at construction:
//   - Public: anonymous, read-only access to a publicly shared spreadsheet
//     via the CSV export endpoint. No credential required.
//   - Service account: authenticated access through the Sheets API with the
//     full Read/Query/Update/Append/Create/Clear surface.
//
// The mode is selected by the configuration: an empty "type" field yields a
// public connection, while type "service_account" plus the credential fields
// yields an authenticated one. Partial credentials are rejected early with
// ErrInvalidConfig rather than failing deep inside a write call.
//
// # References
//
// Spreadsheets may be referenced by id, by full URL, or (service-account
// mode only) by document name. Worksheets may be referenced by title or by a
// number, and the meaning of a number differs between the two modes: in
// public mode it is the worksheet gid, in service-account mode it is the
// zero-based tab index. This asymmetry is inherited from the two underlying
// access paths and intentionally preserved; prefer titles where possible.
//
// # Caching
//
// Reads are memoized per (spreadsheet, worksheet) key with a caller-supplied
// TTL. A TTL of zero disables caching. Writes through the same Connection
// invalidate the affected entry so an immediate re-read observes the write.
// Concurrent reads for the same key within a TTL window issue a single
// remote fetch.
//
// # Usage
//
//	cfg, err := gsheets.LoadConfig(".secrets/gsheets.toml")
//	conn, err := gsheets.New(ctx, cfg)
//	t, err := conn.Read(ctx, gsheets.WithTTL(10*time.Minute))
package gsheets
