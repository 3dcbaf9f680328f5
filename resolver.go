package gsheets

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
)

type spreadsheetKind int

const (
	spreadsheetByKey spreadsheetKind = iota
	spreadsheetByName
)

// SpreadsheetRef is the resolved form of a raw spreadsheet reference. A URL
// is canonicalised to the key it contains, so a URL and its bare id produce
// the same cache entries.
type SpreadsheetRef struct {
	kind  spreadsheetKind
	value string
	// gid carried by the original URL fragment or query string, used as the
	// default worksheet; -1 when absent.
	gid int64
}

// Key returns the spreadsheet key for key-resolved references and the
// document name otherwise.
func (r SpreadsheetRef) Key() string { return r.value }

// ByName reports whether the reference must be resolved by document name.
func (r SpreadsheetRef) ByName() bool { return r.kind == spreadsheetByName }

// CacheKey returns the canonical cache key component for the reference.
func (r SpreadsheetRef) CacheKey() string {
	if r.kind == spreadsheetByName {
		return "name:" + r.value
	}
	return "key:" + r.value
}

type worksheetKind int

const (
	worksheetDefault worksheetKind = iota
	worksheetByTitle
	worksheetByGID
	worksheetByIndex
)

// WorksheetRef identifies one tab within a spreadsheet: by title, by gid
// (public mode), by zero-based index (service-account mode), or the default
// first tab.
type WorksheetRef struct {
	kind  worksheetKind
	title string
	n     int64
}

// WorksheetTitle references a worksheet by its tab title.
func WorksheetTitle(title string) WorksheetRef {
	return WorksheetRef{kind: worksheetByTitle, title: title}
}

// WorksheetGID references a worksheet by its stable numeric gid.
func WorksheetGID(gid int64) WorksheetRef {
	return WorksheetRef{kind: worksheetByGID, n: gid}
}

// WorksheetIndex references a worksheet by zero-based tab position.
func WorksheetIndex(index int64) WorksheetRef {
	return WorksheetRef{kind: worksheetByIndex, n: index}
}

// Title returns the tab title for title references and "" otherwise.
func (w WorksheetRef) Title() string { return w.title }

// IsDefault reports whether the reference selects the first worksheet.
func (w WorksheetRef) IsDefault() bool { return w.kind == worksheetDefault }

// CacheKey returns the canonical cache key component for the reference.
func (w WorksheetRef) CacheKey() string {
	switch w.kind {
	case worksheetByTitle:
		return "title:" + w.title
	case worksheetByGID:
		return "gid:" + strconv.FormatInt(w.n, 10)
	case worksheetByIndex:
		return "index:" + strconv.FormatInt(w.n, 10)
	default:
		return "default"
	}
}

// String renders the reference for error messages.
func (w WorksheetRef) String() string {
	switch w.kind {
	case worksheetByTitle:
		return fmt.Sprintf("worksheet %q", w.title)
	case worksheetByGID:
		return fmt.Sprintf("worksheet gid %d", w.n)
	case worksheetByIndex:
		return fmt.Sprintf("worksheet index %d", w.n)
	default:
		return "first worksheet"
	}
}

var (
	// Key segment of a sheets URL: /d/{key}.
	urlKeyPattern = regexp.MustCompile(`/d/([A-Za-z0-9_-]+)`)
	// Bare spreadsheet keys are long base64url-ish strings. The length floor
	// keeps short human names from being mistaken for keys.
	bareKeyPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{25,}$`)
	gidPattern     = regexp.MustCompile(`gid=(\d+)`)
)

// resolveSpreadsheet normalises a raw spreadsheet reference. Resolution
// order: URL containing a key segment, bare key, document name. Name
// references need the Drive search API and therefore a service account;
// in public mode they fail with ErrInvalidConfig.
func resolveSpreadsheet(raw string, serviceAccount bool) (SpreadsheetRef, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return SpreadsheetRef{}, fmt.Errorf("%w: spreadsheet reference is required", ErrInvalidConfig)
	}

	if strings.HasPrefix(raw, "http://") || strings.HasPrefix(raw, "https://") {
		if m := urlKeyPattern.FindStringSubmatch(raw); m != nil {
			return SpreadsheetRef{kind: spreadsheetByKey, value: m[1], gid: gidFromURL(raw)}, nil
		}
		return SpreadsheetRef{}, fmt.Errorf("%w: URL %q has no spreadsheet key segment", ErrInvalidConfig, raw)
	}

	if bareKeyPattern.MatchString(raw) {
		return SpreadsheetRef{kind: spreadsheetByKey, value: raw, gid: -1}, nil
	}

	if !serviceAccount {
		return SpreadsheetRef{}, fmt.Errorf(
			"%w: opening a spreadsheet by name (%q) requires a service account; public mode needs an id or URL",
			ErrInvalidConfig, raw)
	}
	return SpreadsheetRef{kind: spreadsheetByName, value: raw, gid: -1}, nil
}

// gidFromURL extracts a worksheet gid from a sheets URL. The gid appears in
// the fragment ("#gid=123") on edit URLs and in the query string on some
// share links; the fragment wins when both are present.
func gidFromURL(raw string) int64 {
	u, err := url.Parse(raw)
	if err != nil {
		return -1
	}

	if m := gidPattern.FindStringSubmatch(u.Fragment); m != nil {
		if gid, err := strconv.ParseInt(m[1], 10, 64); err == nil {
			return gid
		}
	}
	if v := u.Query().Get("gid"); v != "" {
		if gid, err := strconv.ParseInt(v, 10, 64); err == nil {
			return gid
		}
	}
	return -1
}

// resolveWorksheet normalises a raw worksheet reference. A numeric value
// means gid in public mode and zero-based tab index in service-account
// mode; this mode-dependent meaning is inherited from the two access paths
// and preserved as documented behaviour. Anything non-numeric is a title.
// An empty reference selects the spreadsheet reference's embedded gid when
// one was present in the URL, otherwise the first worksheet.
func resolveWorksheet(raw string, ref SpreadsheetRef, serviceAccount bool) WorksheetRef {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		if ref.gid >= 0 {
			return WorksheetGID(ref.gid)
		}
		return WorksheetRef{kind: worksheetDefault}
	}

	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		if serviceAccount {
			return WorksheetIndex(n)
		}
		return WorksheetGID(n)
	}

	return WorksheetTitle(raw)
}
