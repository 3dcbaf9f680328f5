package gsheets

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Config holds the connection parameters supplied by the host's secret
// store. It mirrors the flat key set of a Google service-account JSON key
// plus the spreadsheet/worksheet defaults and the cache TTL.
//
// Either all credential fields are empty (public, read-only mode) or the
// required ones are present (service-account mode); anything in between is
// rejected by New.
type Config struct {
	// Spreadsheet is the default spreadsheet reference: an id, a full URL,
	// or (service-account mode only) a document name.
	Spreadsheet string
	// Worksheet is the default worksheet reference: a title, or a number
	// meaning gid (public mode) or tab index (service-account mode).
	// Empty selects the first worksheet.
	Worksheet string
	// TTL is the default cache lifetime for reads. Zero disables caching.
	TTL time.Duration

	// Service-account credential fields. Type must be "service_account"
	// for authenticated mode and empty for public mode.
	Type                string
	ProjectID           string
	PrivateKeyID        string
	PrivateKey          string
	ClientEmail         string
	ClientID            string
	AuthURI             string
	TokenURI            string
	AuthProviderCertURL string
	ClientCertURL       string
}

// ParseConfig builds a Config from a string map, the shape most secret
// stores hand over. Unknown keys are ignored. The "ttl" value accepts a Go
// duration string or a plain number of seconds.
func ParseConfig(options map[string]string) (Config, error) {
	cfg := Config{
		Spreadsheet:         options["spreadsheet"],
		Worksheet:           options["worksheet"],
		Type:                options["type"],
		ProjectID:           options["project_id"],
		PrivateKeyID:        options["private_key_id"],
		PrivateKey:          options["private_key"],
		ClientEmail:         options["client_email"],
		ClientID:            options["client_id"],
		AuthURI:             options["auth_uri"],
		TokenURI:            options["token_uri"],
		AuthProviderCertURL: options["auth_provider_x509_cert_url"],
		ClientCertURL:       options["client_x509_cert_url"],
	}

	if raw := options["ttl"]; raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			secs, serr := strconv.ParseInt(raw, 10, 64)
			if serr != nil {
				return Config{}, fmt.Errorf("%w: ttl %q is neither a duration nor seconds", ErrInvalidConfig, raw)
			}
			d = time.Duration(secs) * time.Second
		}
		if d < 0 {
			return Config{}, fmt.Errorf("%w: ttl must not be negative", ErrInvalidConfig)
		}
		cfg.TTL = d
	}

	return cfg, nil
}

// tomlConfig is the on-disk shape of a secrets file. TTL is stored as whole
// seconds to keep the file format independent of Go duration syntax.
type tomlConfig struct {
	Spreadsheet         string `toml:"spreadsheet"`
	Worksheet           string `toml:"worksheet"`
	TTL                 int64  `toml:"ttl"`
	Type                string `toml:"type"`
	ProjectID           string `toml:"project_id"`
	PrivateKeyID        string `toml:"private_key_id"`
	PrivateKey          string `toml:"private_key"`
	ClientEmail         string `toml:"client_email"`
	ClientID            string `toml:"client_id"`
	AuthURI             string `toml:"auth_uri"`
	TokenURI            string `toml:"token_uri"`
	AuthProviderCertURL string `toml:"auth_provider_x509_cert_url"`
	ClientCertURL       string `toml:"client_x509_cert_url"`
}

// secretsFile supports the nested [connections.gsheets] layout used by
// Streamlit-style secrets files alongside a flat top-level table.
type secretsFile struct {
	Connections struct {
		GSheets tomlConfig `toml:"gsheets"`
	} `toml:"connections"`
}

// LoadConfig reads connection parameters from a TOML secrets file. Both a
// flat table and a [connections.gsheets] section are accepted.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("%w: reading secrets file: %v", ErrInvalidConfig, err)
	}

	var nested secretsFile
	if err := toml.Unmarshal(data, &nested); err == nil && nested.Connections.GSheets != (tomlConfig{}) {
		return fromTOML(nested.Connections.GSheets), nil
	}

	var flat tomlConfig
	if err := toml.Unmarshal(data, &flat); err != nil {
		return Config{}, fmt.Errorf("%w: parsing secrets file: %v", ErrInvalidConfig, err)
	}
	return fromTOML(flat), nil
}

func fromTOML(t tomlConfig) Config {
	return Config{
		Spreadsheet:         t.Spreadsheet,
		Worksheet:           t.Worksheet,
		TTL:                 time.Duration(t.TTL) * time.Second,
		Type:                t.Type,
		ProjectID:           t.ProjectID,
		PrivateKeyID:        t.PrivateKeyID,
		PrivateKey:          t.PrivateKey,
		ClientEmail:         t.ClientEmail,
		ClientID:            t.ClientID,
		AuthURI:             t.AuthURI,
		TokenURI:            t.TokenURI,
		AuthProviderCertURL: t.AuthProviderCertURL,
		ClientCertURL:       t.ClientCertURL,
	}
}
