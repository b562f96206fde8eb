package lyrics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/levruta/auxparty/sys"
)

const geniusAPIBase = "https://api.genius.com"

// ErrNotFound means Genius has no lyrics for the track.
var ErrNotFound = errors.New("lyrics not found")

// Client fetches lyrics through the Genius search API and page scrape.
// The API only returns metadata; the lyric text itself lives in the song
// page HTML.
type Client struct {
	http  *http.Client
	token string
}

func NewClient(token string) *Client {
	return &Client{
		http:  &http.Client{Timeout: 15 * time.Second},
		token: token,
	}
}

// Enabled reports whether a Genius token was configured.
func (c *Client) Enabled() bool {
	return c.token != ""
}

// Find returns the lyrics for a track, located by "artist title" search.
func (c *Client) Find(ctx context.Context, artist, title string) (string, error) {
	if !c.Enabled() {
		return "", fmt.Errorf("no Genius token configured")
	}

	pageURL, err := c.searchSongURL(ctx, artist+" "+title)
	if err != nil {
		return "", err
	}

	raw, err := c.scrapeLyrics(ctx, pageURL)
	if err != nil {
		return "", err
	}

	text := Cleanup(raw)
	if text == "" {
		return "", ErrNotFound
	}
	sys.LogLyrics("Found lyrics for %s - %s", artist, title)
	return text, nil
}

func (c *Client) searchSongURL(ctx context.Context, query string) (string, error) {
	q := url.Values{"q": {query}}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, geniusAPIBase+"/search?"+q.Encode(), nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("genius search returned %s", resp.Status)
	}

	var body struct {
		Response struct {
			Hits []struct {
				Result struct {
					URL string `json:"url"`
				} `json:"result"`
			} `json:"hits"`
		} `json:"response"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", err
	}
	if len(body.Response.Hits) == 0 {
		return "", ErrNotFound
	}
	return body.Response.Hits[0].Result.URL, nil
}

// scrapeLyrics pulls the lyric text out of the song page's lyric
// containers, turning <br> into newlines.
func (c *Client) scrapeLyrics(ctx context.Context, pageURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("genius page returned %s", resp.Status)
	}

	doc, err := html.Parse(resp.Body)
	if err != nil {
		return "", fmt.Errorf("malformed song page: %w", err)
	}

	var sb strings.Builder
	var walk func(n *html.Node, inLyrics bool)
	walk = func(n *html.Node, inLyrics bool) {
		if n.Type == html.ElementNode && n.Data == "div" && hasAttr(n, "data-lyrics-container", "true") {
			inLyrics = true
		}
		if inLyrics {
			switch {
			case n.Type == html.TextNode:
				sb.WriteString(n.Data)
			case n.Type == html.ElementNode && n.Data == "br":
				sb.WriteString("\n")
			}
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child, inLyrics)
		}
	}
	walk(doc, false)

	if sb.Len() == 0 {
		return "", ErrNotFound
	}
	return sb.String(), nil
}

func hasAttr(n *html.Node, key, value string) bool {
	for _, attr := range n.Attr {
		if attr.Key == key && attr.Val == value {
			return true
		}
	}
	return false
}
