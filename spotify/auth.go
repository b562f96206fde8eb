package spotify

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/levruta/auxparty/session"
	"github.com/levruta/auxparty/sys"
)

const (
	accountsAuthorizeURL = "https://accounts.spotify.com/authorize"
	accountsTokenURL     = "https://accounts.spotify.com/api/token"

	// Everything the player, search and queue endpoints need.
	oauthScopes = "user-read-playback-state user-modify-playback-state user-read-currently-playing"
)

// storedToken is the on-disk token file format.
type storedToken struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

func (t *storedToken) expired() bool {
	// A minute of slack keeps a token from dying mid-request.
	return time.Now().After(t.ExpiresAt.Add(-time.Minute))
}

func loadToken(path string) (*storedToken, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var t storedToken
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("corrupt token file %s: %w", path, err)
	}
	return &t, nil
}

func saveToken(path string, t *storedToken) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}

// AuthorizeURL builds the user-consent URL for the authorization-code flow.
func (c *Client) AuthorizeURL(state string) string {
	q := url.Values{
		"client_id":     {c.clientID},
		"response_type": {"code"},
		"redirect_uri":  {c.redirectURI},
		"scope":         {oauthScopes},
		"state":         {state},
	}
	return accountsAuthorizeURL + "?" + q.Encode()
}

// Authorize ensures the client holds a usable access token. An existing
// token file is loaded and refreshed as needed; without one the
// interactive consent flow runs, listening on the redirect URI for the
// callback.
func (c *Client) Authorize(ctx context.Context) error {
	if t, err := loadToken(c.tokenFile); err == nil {
		c.mu.Lock()
		c.token = t
		c.mu.Unlock()
		if t.expired() {
			if err := c.refreshToken(ctx); err != nil {
				return err
			}
		}
		return nil
	}

	if c.redirectURI == "" {
		return fmt.Errorf("no token file at %s and SPOTIFY_REDIRECT_URI is not set", c.tokenFile)
	}
	return c.interactiveAuthorize(ctx)
}

// interactiveAuthorize prints the consent URL and waits for the browser
// redirect on the local callback address.
func (c *Client) interactiveAuthorize(ctx context.Context) error {
	u, err := url.Parse(c.redirectURI)
	if err != nil {
		return fmt.Errorf("invalid redirect URI: %w", err)
	}

	state := fmt.Sprintf("%d", time.Now().UnixNano())
	codeCh := make(chan string, 1)
	errCh := make(chan error, 1)

	mux := http.NewServeMux()
	mux.HandleFunc(u.Path, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("state") != state {
			http.Error(w, "state mismatch", http.StatusBadRequest)
			errCh <- fmt.Errorf("authorization state mismatch")
			return
		}
		if e := r.URL.Query().Get("error"); e != "" {
			http.Error(w, e, http.StatusBadRequest)
			errCh <- fmt.Errorf("authorization refused: %s", e)
			return
		}
		fmt.Fprintln(w, "Authorized. You can close this tab.")
		codeCh <- r.URL.Query().Get("code")
	})

	srv := &http.Server{Addr: u.Host, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()
	defer srv.Close()

	sys.LogSpotify("Open this URL to authorize: %s", c.AuthorizeURL(state))

	var code string
	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-errCh:
		return err
	case code = <-codeCh:
	}

	return c.exchangeCode(ctx, code)
}

// exchangeCode trades an authorization code for the initial token pair.
func (c *Client) exchangeCode(ctx context.Context, code string) error {
	form := url.Values{
		"grant_type":   {"authorization_code"},
		"code":         {code},
		"redirect_uri": {c.redirectURI},
	}
	return c.tokenRequest(ctx, form, "")
}

// refreshToken exchanges the refresh token for a new access token.
func (c *Client) refreshToken(ctx context.Context) error {
	c.mu.Lock()
	refresh := ""
	if c.token != nil {
		refresh = c.token.RefreshToken
	}
	c.mu.Unlock()
	if refresh == "" {
		return fmt.Errorf("no refresh token available, re-authorization required")
	}

	form := url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {refresh},
	}
	if err := c.tokenRequest(ctx, form, refresh); err != nil {
		return err
	}
	sys.LogSpotify(sys.MsgSpotifyTokenRefreshed)
	return nil
}

// tokenRequest posts to the accounts token endpoint and persists the
// result. keepRefresh carries the old refresh token forward when the
// response omits one, which refresh responses usually do.
func (c *Client) tokenRequest(ctx context.Context, form url.Values, keepRefresh string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, accountsTokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	basic := base64.StdEncoding.EncodeToString([]byte(c.clientID + ":" + c.clientSecret))
	req.Header.Set("Authorization", "Basic "+basic)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", session.ErrConnectivity, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("token endpoint returned %s", resp.Status)
	}

	var body struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
		ExpiresIn    int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return fmt.Errorf("malformed token response: %w", err)
	}

	t := &storedToken{
		AccessToken:  body.AccessToken,
		RefreshToken: body.RefreshToken,
		ExpiresAt:    time.Now().Add(time.Duration(body.ExpiresIn) * time.Second),
	}
	if t.RefreshToken == "" {
		t.RefreshToken = keepRefresh
	}

	c.mu.Lock()
	c.token = t
	c.mu.Unlock()

	if err := saveToken(c.tokenFile, t); err != nil {
		sys.LogWarn("Failed to persist Spotify token: %v", err)
	}
	return nil
}

// accessToken returns a live access token, refreshing first when needed.
func (c *Client) accessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	t := c.token
	c.mu.Unlock()

	if t == nil {
		return "", fmt.Errorf("not authorized, call Authorize first")
	}
	if t.expired() {
		if err := c.refreshToken(ctx); err != nil {
			return "", err
		}
		c.mu.Lock()
		t = c.token
		c.mu.Unlock()
	}
	return t.AccessToken, nil
}
