// Package videoenrich is the external video-metadata collaborator: platform
// detection for links discovered during extraction, and a bounded-timeout
// enrichment call (modeled on Brightcove's video-cloud API, the platform
// spec.md §6's ENABLE_BRIGHTCOVE_ENRICHMENT config flag names) that fills
// in title/description/thumbnail/duration after the link stage has already
// queued a bare video URL, per spec.md §4.10/§6. No pack dependency targets
// this bespoke protocol, so stdlib net/http is used deliberately (DESIGN.md).
package videoenrich

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"
)

const (
	PlatformYouTube    = "youtube"
	PlatformVimeo      = "vimeo"
	PlatformBrightcove = "brightcove"
)

var (
	youtubeWatch = regexp.MustCompile(`[?&]v=([A-Za-z0-9_-]{6,})`)
	youtubeShort = regexp.MustCompile(`youtu\.be/([A-Za-z0-9_-]{6,})`)
	vimeoPath    = regexp.MustCompile(`vimeo\.com/(?:video/)?(\d+)`)
	brightcoveID = regexp.MustCompile(`[?&]videoId=([A-Za-z0-9]+)`)
)

// DetectPlatform classifies a URL discovered by the link stage as a known
// video platform, returning the platform name and the platform-native
// video ID used as Video.platform/youtube_id-equivalent uniqueness keys,
// spec.md §4.10. ok is false for an ordinary (non-video) link.
func DetectPlatform(rawURL string) (platform, videoID string, ok bool) {
	lower := strings.ToLower(rawURL)
	switch {
	case strings.Contains(lower, "youtube.com"):
		if m := youtubeWatch.FindStringSubmatch(rawURL); m != nil {
			return PlatformYouTube, m[1], true
		}
	case strings.Contains(lower, "youtu.be"):
		if m := youtubeShort.FindStringSubmatch(rawURL); m != nil {
			return PlatformYouTube, m[1], true
		}
	case strings.Contains(lower, "vimeo.com"):
		if m := vimeoPath.FindStringSubmatch(rawURL); m != nil {
			return PlatformVimeo, m[1], true
		}
	case strings.Contains(lower, "brightcove"):
		if m := brightcoveID.FindStringSubmatch(rawURL); m != nil {
			return PlatformBrightcove, m[1], true
		}
		return PlatformBrightcove, "", true
	}
	return "", "", false
}

// Result is the enrichment data merged into engine.Video, spec.md §3.
type Result struct {
	Title        string
	Description  string
	ThumbnailURL string
	Duration     time.Duration
}

// Client calls the Brightcove-style video-metadata lookup. Only Brightcove
// is wired to an actual account/policy-key pair; YouTube/Vimeo enrichment
// is out of scope (no credentials in spec.md §6's environment surface), so
// Enrich returns ErrUnsupportedPlatform for them — the caller records
// Video.Metadata.CredentialsMissing and proceeds without enrichment.
type Client struct {
	accountID string
	policyKey string
	http      *http.Client
}

func New(accountID, policyKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{accountID: accountID, policyKey: policyKey, http: &http.Client{Timeout: timeout}}
}

var ErrUnsupportedPlatform = fmt.Errorf("videoenrich: unsupported platform")

type brightcoveVideo struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Duration    float64 `json:"duration"` // milliseconds
	Thumbnail   string  `json:"thumbnail"`
}

// Enrich fetches metadata for one video from the Brightcove CMS/Playback
// API. videoID is the platform-native ID DetectPlatform returned.
func (c *Client) Enrich(ctx context.Context, platform, videoID string) (*Result, error) {
	if platform != PlatformBrightcove {
		return nil, ErrUnsupportedPlatform
	}

	endpoint := fmt.Sprintf("https://edge.api.brightcove.com/playback/v1/accounts/%s/videos/%s",
		url.PathEscape(c.accountID), url.PathEscape(videoID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("videoenrich: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json;pk="+c.policyKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("videoenrich: request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("videoenrich: returned status %d", resp.StatusCode)
	}

	var v brightcoveVideo
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		return nil, fmt.Errorf("videoenrich: decode response: %w", err)
	}
	return &Result{
		Title:        v.Name,
		Description:  v.Description,
		ThumbnailURL: v.Thumbnail,
		Duration:     time.Duration(v.Duration) * time.Millisecond,
	}, nil
}
