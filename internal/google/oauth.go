package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/calendar/v3"
)

const (
	credentialsFile = "credentials.json"
	clientIDSuffix  = ".apps.googleusercontent.com"
	redirectURL     = "urn:ietf:wg:oauth:2.0:oob"
)

// Scopes requested for the free/busy lookup.
var Scopes = []string{calendar.CalendarReadonlyScope, "https://www.googleapis.com/auth/userinfo.email"}

// GetOAuthConfig reads credentials and returns an OAuth2 config.
// It prioritizes explicit client credentials over a local credentials.json file.
func GetOAuthConfig(clientID, clientSecret string) (*oauth2.Config, error) {
	if clientID != "" && clientSecret != "" {
		if !strings.HasSuffix(clientID, clientIDSuffix) {
			return nil, fmt.Errorf("GOOGLE_CLIENT_ID should be a Google OAuth2 client ID ending with %s", clientIDSuffix)
		}
		return &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Scopes:       Scopes,
			Endpoint:     google.Endpoint,
		}, nil
	}

	b, err := os.ReadFile(credentialsFile)
	if err != nil {
		var pathErr *fs.PathError
		if errors.As(err, &pathErr) {
			return nil, fmt.Errorf("credentials.json not found. Please provide GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET env vars or place credentials.json in the working directory")
		}
		return nil, fmt.Errorf("unable to read client secret file: %w", err)
	}

	config, err := google.ConfigFromJSON(b, Scopes...)
	if err != nil {
		return nil, fmt.Errorf("unable to parse client secret file to config: %w", err)
	}
	config.RedirectURL = redirectURL // For desktop app flow
	return config, nil
}

// TokenFromWeb exchanges an authorization code pasted by the user for a token.
func TokenFromWeb(ctx context.Context, config *oauth2.Config, authCode string) (*oauth2.Token, error) {
	return config.Exchange(ctx, authCode)
}

const (
	tokenPrefix = "token-"
	tokenSuffix = ".json"
)

// TokenStore keeps one OAuth token per account as token-<account>.json in a directory.
type TokenStore struct {
	dir string
}

// NewTokenStore returns a store rooted at dir. An empty dir means the working directory.
func NewTokenStore(dir string) *TokenStore {
	if dir == "" {
		dir = "."
	}
	return &TokenStore{dir: dir}
}

// Path returns the token file of an account.
func (s *TokenStore) Path(account string) string {
	return filepath.Join(s.dir, tokenPrefix+account+tokenSuffix)
}

// Save writes the account's token, readable only by the current user. The file is
// replaced atomically.
func (s *TokenStore) Save(account string, token *oauth2.Token) error {
	if account == "" || strings.ContainsAny(account, `/\`) {
		return fmt.Errorf("invalid account name %q", account)
	}
	data, err := json.Marshal(token)
	if err != nil {
		return fmt.Errorf("unable to encode token: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, tokenPrefix+"*.tmp")
	if err != nil {
		return fmt.Errorf("unable to create token file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("unable to protect token file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("unable to write token file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("unable to write token file: %w", err)
	}
	return os.Rename(tmp.Name(), s.Path(account))
}

// Load reads the account's token.
func (s *TokenStore) Load(account string) (*oauth2.Token, error) {
	data, err := os.ReadFile(s.Path(account))
	if err != nil {
		return nil, err
	}
	tok := &oauth2.Token{}
	if err := json.Unmarshal(data, tok); err != nil {
		return nil, fmt.Errorf("invalid token file for account %s: %w", account, err)
	}
	return tok, nil
}

// Accounts lists the accounts that have a token, sorted by name.
func (s *TokenStore) Accounts() ([]string, error) {
	files, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, err
	}

	var accounts []string
	for _, file := range files {
		if file.IsDir() {
			continue
		}
		name := file.Name()
		if account, ok := strings.CutPrefix(name, tokenPrefix); ok {
			if account, ok = strings.CutSuffix(account, tokenSuffix); ok && account != "" {
				accounts = append(accounts, account)
			}
		}
	}
	slices.Sort(accounts)
	return accounts, nil
}
