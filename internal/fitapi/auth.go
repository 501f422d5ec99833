// ABOUTME: OAuth2 authorization for the fitness API.
// ABOUTME: Loads client secrets, runs the paste-the-code login, and persists refreshed tokens.
package fitapi

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// Scopes are the read-only scopes needed for every fetchable metric.
var Scopes = []string{
	"https://www.googleapis.com/auth/fitness.activity.read",
	"https://www.googleapis.com/auth/fitness.heart_rate.read",
	"https://www.googleapis.com/auth/fitness.sleep.read",
}

// Authorizer owns the OAuth2 config and the on-disk token.
type Authorizer struct {
	config    *oauth2.Config
	tokenPath string
}

// NewAuthorizer reads a client secrets JSON file downloaded from the cloud console.
func NewAuthorizer(secretPath, tokenPath string) (*Authorizer, error) {
	raw, err := os.ReadFile(secretPath)
	if err != nil {
		return nil, fmt.Errorf("read client secret: %w", err)
	}
	return NewAuthorizerFromJSON(raw, tokenPath)
}

// NewAuthorizerFromJSON builds an Authorizer from client secrets JSON.
func NewAuthorizerFromJSON(secret []byte, tokenPath string) (*Authorizer, error) {
	cfg, err := google.ConfigFromJSON(secret, Scopes...)
	if err != nil {
		return nil, fmt.Errorf("parse client secret: %w", err)
	}
	return &Authorizer{config: cfg, tokenPath: tokenPath}, nil
}

// AuthCodeURL returns the consent page URL for state.
func (a *Authorizer) AuthCodeURL(state string) string {
	return a.config.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
}

// Login prints the consent URL to out, reads the authorization code from in,
// exchanges it and saves the token.
func (a *Authorizer) Login(ctx context.Context, in io.Reader, out io.Writer) (*oauth2.Token, error) {
	fmt.Fprintf(out, "Open this URL in a browser and authorize access:\n\n%s\n\nPaste the authorization code: ", a.AuthCodeURL("healthdash"))

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("read authorization code: %w", err)
	}
	code := strings.TrimSpace(line)
	if code == "" {
		return nil, fmt.Errorf("authorization code is required")
	}

	tok, err := a.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("exchange authorization code: %w", err)
	}
	if err := SaveToken(a.tokenPath, tok); err != nil {
		return nil, err
	}
	return tok, nil
}

// HTTPClient returns a client that authorizes requests with the saved token,
// refreshing it as needed and writing refreshed tokens back to disk.
func (a *Authorizer) HTTPClient(ctx context.Context) (*http.Client, error) {
	tok, err := LoadToken(a.tokenPath)
	if err != nil {
		return nil, err
	}
	src := &persistingSource{
		base: a.config.TokenSource(ctx, tok),
		path: a.tokenPath,
		last: tok.AccessToken,
	}
	return oauth2.NewClient(ctx, oauth2.ReuseTokenSource(tok, src)), nil
}

// persistingSource saves every token whose access token changed.
type persistingSource struct {
	base oauth2.TokenSource
	path string

	mu   sync.Mutex
	last string
}

func (s *persistingSource) Token() (*oauth2.Token, error) {
	tok, err := s.base.Token()
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if tok.AccessToken != s.last {
		if err := SaveToken(s.path, tok); err != nil {
			return nil, err
		}
		s.last = tok.AccessToken
	}
	return tok, nil
}

// LoadToken reads a token saved by SaveToken.
func LoadToken(path string) (*oauth2.Token, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("no fitness token at %s - run 'healthdash fetch login'", path)
		}
		return nil, fmt.Errorf("read token: %w", err)
	}
	var tok oauth2.Token
	if err := json.Unmarshal(raw, &tok); err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}
	return &tok, nil
}

// SaveToken writes tok as JSON readable only by the owner.
func SaveToken(path string, tok *oauth2.Token) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("create token dir: %w", err)
	}
	raw, err := json.MarshalIndent(tok, "", "  ")
	if err != nil {
		return fmt.Errorf("encode token: %w", err)
	}
	if err := os.WriteFile(path, raw, 0600); err != nil {
		return fmt.Errorf("write token: %w", err)
	}
	return nil
}
