package spotify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/levruta/auxparty/session"
	"github.com/levruta/auxparty/sys"
)

const (
	apiBase = "https://api.spotify.com/v1"

	searchLimit   = 10
	nowPlayingTTL = 5 * time.Second
	volumeSettle  = time.Second
)

// Client talks to the Spotify Web API player endpoints. It implements
// session.PlaybackService. All requests share one rate limiter; the Web
// API tolerates short bursts but throttles sustained traffic hard.
type Client struct {
	http    *http.Client
	limiter *rate.Limiter

	clientID     string
	clientSecret string
	redirectURI  string
	tokenFile    string

	mu          sync.Mutex
	token       *storedToken
	volume      int
	savedVolume int
	muted       bool

	nowPlaying   *session.NowPlaying
	nowPlayingAt time.Time
}

// NewClient builds an unauthorized client; call Authorize before use.
func NewClient(cfg *sys.Config) *Client {
	return &Client{
		http:         &http.Client{Timeout: 15 * time.Second},
		limiter:      rate.NewLimiter(rate.Every(200*time.Millisecond), 5),
		clientID:     cfg.SpotifyClientID,
		clientSecret: cfg.SpotifyClientSecret,
		redirectURI:  cfg.SpotifyRedirectURI,
		tokenFile:    cfg.SpotifyTokenFile,
		volume:       50,
	}
}

// do performs one authorized API call. 204 and 200 both count as success;
// when out is non-nil the body is decoded into it. A 401 triggers one
// token refresh and retry.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	retried := false
	for {
		token, err := c.accessToken(ctx)
		if err != nil {
			return err
		}

		reqURL := apiBase + path
		if len(query) > 0 {
			reqURL += "?" + query.Encode()
		}
		var reqBody io.Reader
		if body != nil {
			data, err := json.Marshal(body)
			if err != nil {
				return err
			}
			reqBody = bytes.NewReader(data)
		}
		req, err := http.NewRequestWithContext(ctx, method, reqURL, reqBody)
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "Bearer "+token)
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return fmt.Errorf("%w: %v", session.ErrConnectivity, err)
		}

		switch {
		case resp.StatusCode == http.StatusUnauthorized && !retried:
			resp.Body.Close()
			if err := c.refreshToken(ctx); err != nil {
				return err
			}
			retried = true
			continue
		case resp.StatusCode == http.StatusForbidden:
			resp.Body.Close()
			return fmt.Errorf("%w: %s %s", session.ErrPremiumRequired, method, path)
		case resp.StatusCode == http.StatusNotFound:
			resp.Body.Close()
			// The player endpoints 404 when no device is active.
			return fmt.Errorf("%w: %s %s", session.ErrNoActiveDevice, method, path)
		case resp.StatusCode >= 500:
			resp.Body.Close()
			return fmt.Errorf("%w: %s %s returned %s", session.ErrConnectivity, method, path, resp.Status)
		case resp.StatusCode >= 400:
			msg := apiErrorMessage(resp.Body)
			resp.Body.Close()
			return fmt.Errorf("spotify: %s %s: %s (%s)", method, path, resp.Status, msg)
		}

		if out != nil && resp.StatusCode != http.StatusNoContent {
			err = json.NewDecoder(resp.Body).Decode(out)
		}
		resp.Body.Close()
		if err != nil {
			return fmt.Errorf("malformed response from %s: %w", path, err)
		}
		if out != nil && resp.StatusCode == http.StatusNoContent {
			return errNoContent
		}
		return nil
	}
}

// errNoContent marks a 204 on an endpoint the caller expected data from.
var errNoContent = fmt.Errorf("no content")

func apiErrorMessage(r io.Reader) string {
	var body struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.NewDecoder(r).Decode(&body); err != nil {
		return "unknown error"
	}
	return body.Error.Message
}

// --- Wire types ---

type apiTrack struct {
	URI     string `json:"uri"`
	Name    string `json:"name"`
	Artists []struct {
		Name string `json:"name"`
	} `json:"artists"`
}

func (t apiTrack) toTrack() session.Track {
	artists := make([]string, 0, len(t.Artists))
	for _, a := range t.Artists {
		artists = append(artists, a.Name)
	}
	return session.Track{URI: t.URI, Name: t.Name, Artists: artists}
}

// --- session.PlaybackService ---

func (c *Client) Search(ctx context.Context, query string) ([]session.Track, error) {
	var body struct {
		Tracks struct {
			Items []apiTrack `json:"items"`
		} `json:"tracks"`
	}
	q := url.Values{
		"q":     {query},
		"type":  {"track"},
		"limit": {fmt.Sprint(searchLimit)},
	}
	if err := c.do(ctx, http.MethodGet, "/search", q, nil, &body); err != nil {
		return nil, err
	}
	tracks := make([]session.Track, 0, len(body.Tracks.Items))
	for _, t := range body.Tracks.Items {
		tracks = append(tracks, t.toTrack())
	}
	return tracks, nil
}

func (c *Client) AddToQueue(ctx context.Context, uri string) error {
	q := url.Values{"uri": {uri}}
	return c.do(ctx, http.MethodPost, "/me/player/queue", q, nil, nil)
}

func (c *Client) Queue(ctx context.Context) ([]session.Track, error) {
	var body struct {
		Queue []apiTrack `json:"queue"`
	}
	if err := c.do(ctx, http.MethodGet, "/me/player/queue", nil, nil, &body); err != nil {
		return nil, err
	}
	tracks := make([]session.Track, 0, len(body.Queue))
	for _, t := range body.Queue {
		tracks = append(tracks, t.toTrack())
	}
	return tracks, nil
}

// CurrentTrack caches the player state briefly. Menus for every member
// refresh on the same tick, so without the cache each refresh would fan
// out into one API call per member.
func (c *Client) CurrentTrack(ctx context.Context) (*session.NowPlaying, error) {
	c.mu.Lock()
	if time.Since(c.nowPlayingAt) < nowPlayingTTL {
		cached := c.nowPlaying
		c.mu.Unlock()
		if cached == nil {
			return nil, nil
		}
		cp := *cached
		return &cp, nil
	}
	c.mu.Unlock()

	var body struct {
		IsPlaying bool     `json:"is_playing"`
		Item      apiTrack `json:"item"`
	}
	err := c.do(ctx, http.MethodGet, "/me/player/currently-playing", nil, nil, &body)
	if err == errNoContent {
		c.storeNowPlaying(nil)
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if body.Item.URI == "" {
		c.storeNowPlaying(nil)
		return nil, nil
	}

	track := body.Item.toTrack()
	np := &session.NowPlaying{
		URI:     track.URI,
		Name:    track.Name,
		Artists: track.Artists,
		Playing: body.IsPlaying,
	}
	c.storeNowPlaying(np)
	return np, nil
}

func (c *Client) storeNowPlaying(np *session.NowPlaying) {
	c.mu.Lock()
	c.nowPlaying = np
	c.nowPlayingAt = time.Now()
	c.mu.Unlock()
}

// invalidateNowPlaying forces the next CurrentTrack through to the API.
func (c *Client) invalidateNowPlaying() {
	c.mu.Lock()
	c.nowPlayingAt = time.Time{}
	c.mu.Unlock()
}

func (c *Client) Next(ctx context.Context) error {
	if err := c.do(ctx, http.MethodPost, "/me/player/next", nil, nil, nil); err != nil {
		return err
	}
	c.invalidateNowPlaying()
	return nil
}

func (c *Client) Previous(ctx context.Context) error {
	if err := c.do(ctx, http.MethodPost, "/me/player/previous", nil, nil, nil); err != nil {
		return err
	}
	c.invalidateNowPlaying()
	return nil
}

func (c *Client) TogglePlayPause(ctx context.Context) error {
	np, err := c.CurrentTrack(ctx)
	if err != nil {
		return err
	}
	path := "/me/player/play"
	if np != nil && np.Playing {
		path = "/me/player/pause"
	}
	if err := c.do(ctx, http.MethodPut, path, nil, nil, nil); err != nil {
		return err
	}
	c.invalidateNowPlaying()
	return nil
}

func (c *Client) SetVolume(ctx context.Context, pct int) error {
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	q := url.Values{"volume_percent": {fmt.Sprint(pct)}}
	if err := c.do(ctx, http.MethodPut, "/me/player/volume", q, nil, nil); err != nil {
		return err
	}
	c.mu.Lock()
	c.volume = pct
	if pct > 0 {
		c.muted = false
	}
	c.mu.Unlock()
	return nil
}

func (c *Client) Volume() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.volume
}

// MuteToggle drops the volume to zero and back, restoring the pre-mute
// level.
func (c *Client) MuteToggle(ctx context.Context) error {
	c.mu.Lock()
	muted := c.muted
	saved := c.savedVolume
	current := c.volume
	c.mu.Unlock()

	if muted {
		if err := c.SetVolume(ctx, saved); err != nil {
			return err
		}
		c.mu.Lock()
		c.muted = false
		c.mu.Unlock()
		return nil
	}

	if err := c.SetVolume(ctx, 0); err != nil {
		return err
	}
	c.mu.Lock()
	c.savedVolume = current
	c.muted = true
	c.mu.Unlock()
	return nil
}

func (c *Client) Devices(ctx context.Context) ([]session.Device, error) {
	var body struct {
		Devices []struct {
			ID      string `json:"id"`
			Name    string `json:"name"`
			Type    string `json:"type"`
			Active  bool   `json:"is_active"`
			Volume  int    `json:"volume_percent"`
		} `json:"devices"`
	}
	if err := c.do(ctx, http.MethodGet, "/me/player/devices", nil, nil, &body); err != nil {
		return nil, err
	}
	devices := make([]session.Device, 0, len(body.Devices))
	for _, d := range body.Devices {
		devices = append(devices, session.Device{
			ID:     d.ID,
			Name:   d.Name,
			Type:   d.Type,
			Active: d.Active,
			Volume: d.Volume,
		})
		if d.Active {
			c.mu.Lock()
			c.volume = d.Volume
			c.mu.Unlock()
		}
	}
	return devices, nil
}

// TransferTo moves playback to another device without interrupting it,
// then re-applies the volume. Transfers reset the target device to its
// own level, which is rarely what the session wants.
func (c *Client) TransferTo(ctx context.Context, deviceID string) error {
	body := map[string]any{
		"device_ids": []string{deviceID},
		"play":       true,
	}
	if err := c.do(ctx, http.MethodPut, "/me/player", nil, body, nil); err != nil {
		return err
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(volumeSettle):
	}
	return c.SetVolume(ctx, c.Volume())
}

func (c *Client) StartContext(ctx context.Context, uri string) error {
	body := map[string]any{"context_uri": uri}
	if err := c.do(ctx, http.MethodPut, "/me/player/play", nil, body, nil); err != nil {
		return err
	}
	c.invalidateNowPlaying()
	return nil
}

// Release persists the token and drops cached player state.
func (c *Client) Release(ctx context.Context) error {
	c.mu.Lock()
	t := c.token
	c.mu.Unlock()
	if t != nil {
		if err := saveToken(c.tokenFile, t); err != nil {
			sys.LogWarn("Failed to persist Spotify token on release: %v", err)
		}
	}
	c.storeNowPlaying(nil)
	c.invalidateNowPlaying()
	sys.LogSpotify(sys.MsgSpotifyReleased)
	return nil
}

// CurrentUser returns the authorized account's display name.
func (c *Client) CurrentUser(ctx context.Context) (string, error) {
	var body struct {
		DisplayName string `json:"display_name"`
		ID          string `json:"id"`
	}
	if err := c.do(ctx, http.MethodGet, "/me", nil, nil, &body); err != nil {
		return "", err
	}
	if body.DisplayName != "" {
		return body.DisplayName, nil
	}
	return body.ID, nil
}
