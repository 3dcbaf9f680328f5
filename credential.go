package gsheets

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/sheets/v4"
)

// serviceAccountKey is the credential derived from a Config. A nil
// *serviceAccountKey means public (read-only) mode. The JSON tags match the
// key file Google issues, so the struct marshals straight into the shape
// google.JWTConfigFromJSON expects.
type serviceAccountKey struct {
	Type                string `json:"type"`
	ProjectID           string `json:"project_id"`
	PrivateKeyID        string `json:"private_key_id"`
	PrivateKey          string `json:"private_key"`
	ClientEmail         string `json:"client_email"`
	ClientID            string `json:"client_id"`
	AuthURI             string `json:"auth_uri,omitempty"`
	TokenURI            string `json:"token_uri,omitempty"`
	AuthProviderCertURL string `json:"auth_provider_x509_cert_url,omitempty"`
	ClientCertURL       string `json:"client_x509_cert_url,omitempty"`
}

// Fields that must be non-empty for a usable service-account credential.
var requiredCredentialFields = []string{"project_id", "private_key", "client_email"}

// resolveCredential validates the credential portion of a Config. It returns
// nil for public mode, a key for service-account mode, and ErrInvalidConfig
// for anything in between: once any credential field is set, the required
// set must be complete.
func resolveCredential(cfg Config) (*serviceAccountKey, error) {
	fields := map[string]string{
		"project_id":                  cfg.ProjectID,
		"private_key_id":              cfg.PrivateKeyID,
		"private_key":                 cfg.PrivateKey,
		"client_email":                cfg.ClientEmail,
		"client_id":                   cfg.ClientID,
		"auth_uri":                    cfg.AuthURI,
		"token_uri":                   cfg.TokenURI,
		"auth_provider_x509_cert_url": cfg.AuthProviderCertURL,
		"client_x509_cert_url":        cfg.ClientCertURL,
	}

	anySet := cfg.Type != ""
	for _, v := range fields {
		if v != "" {
			anySet = true
		}
	}
	if !anySet {
		return nil, nil
	}

	if cfg.Type != "service_account" {
		return nil, fmt.Errorf("%w: type must be %q or empty, got %q", ErrInvalidConfig, "service_account", cfg.Type)
	}

	var missing []string
	for _, name := range requiredCredentialFields {
		if fields[name] == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: incomplete service account credential, missing %s",
			ErrInvalidConfig, strings.Join(missing, ", "))
	}

	if !strings.Contains(cfg.PrivateKey, "PRIVATE KEY") {
		return nil, fmt.Errorf("%w: private_key does not look like a PEM-encoded key", ErrInvalidConfig)
	}

	return &serviceAccountKey{
		Type:                cfg.Type,
		ProjectID:           cfg.ProjectID,
		PrivateKeyID:        cfg.PrivateKeyID,
		PrivateKey:          cfg.PrivateKey,
		ClientEmail:         cfg.ClientEmail,
		ClientID:            cfg.ClientID,
		AuthURI:             cfg.AuthURI,
		TokenURI:            cfg.TokenURI,
		AuthProviderCertURL: cfg.AuthProviderCertURL,
		ClientCertURL:       cfg.ClientCertURL,
	}, nil
}

// tokenSource builds an oauth2.TokenSource for the Sheets and Drive scopes.
// Drive metadata access is needed to open spreadsheets by name.
func (k *serviceAccountKey) tokenSource(ctx context.Context) (oauth2.TokenSource, error) {
	data, err := json.Marshal(k)
	if err != nil {
		return nil, fmt.Errorf("%w: encoding credential: %v", ErrAuth, err)
	}

	jwtCfg, err := google.JWTConfigFromJSON(data,
		sheets.SpreadsheetsScope,
		drive.DriveMetadataReadonlyScope,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAuth, err)
	}

	return jwtCfg.TokenSource(ctx), nil
}
