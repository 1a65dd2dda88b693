package debrid

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"streamvault/services/callgate"
)

// RealDebridClient handles API interactions with the Real-Debrid service.
// It implements the Provider interface.
type RealDebridClient struct {
	apiKey     string
	httpClient *http.Client
	baseURL    string
}

// Ensure RealDebridClient implements Provider interface.
var _ Provider = (*RealDebridClient)(nil)

// NewRealDebridClient creates a new Real-Debrid API client.
func NewRealDebridClient(apiKey string) *RealDebridClient {
	return &RealDebridClient{
		apiKey:     strings.TrimSpace(apiKey),
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    "https://api.real-debrid.com/rest/1.0",
	}
}

// Name returns the provider identifier.
func (c *RealDebridClient) Name() string {
	return "realdebrid"
}

func init() {
	RegisterProvider("realdebrid", func(apiKey string) Provider {
		return NewRealDebridClient(apiKey)
	})
}

type realDebridAddMagnet struct {
	ID  string `json:"id"`
	URI string `json:"uri"`
}

type realDebridFile struct {
	ID       int    `json:"id"`
	Path     string `json:"path"`
	Bytes    int64  `json:"bytes"`
	Selected int    `json:"selected"`
}

type realDebridTorrentInfo struct {
	ID       string           `json:"id"`
	Filename string           `json:"filename"`
	Hash     string           `json:"hash"`
	Bytes    int64            `json:"bytes"`
	Status   string           `json:"status"`
	Progress float64          `json:"progress"`
	Files    []realDebridFile `json:"files"`
	Links    []string         `json:"links"`
}

type realDebridTorrent struct {
	ID       string `json:"id"`
	Filename string `json:"filename"`
	Hash     string `json:"hash"`
	Bytes    int64  `json:"bytes"`
	Status   string `json:"status"`
}

type realDebridDownload struct {
	ID       string `json:"id"`
	Filename string `json:"filename"`
	Link     string `json:"link"`
	Download string `json:"download"`
	Filesize int64  `json:"filesize"`
}

type realDebridUnrestrict struct {
	ID       string `json:"id"`
	Filename string `json:"filename"`
	Filesize int64  `json:"filesize"`
	Download string `json:"download"`
}

type realDebridError struct {
	Error     string `json:"error"`
	ErrorCode int    `json:"error_code"`
}

func (c *RealDebridClient) buildURL(path string) string {
	return c.baseURL + path
}

func (c *RealDebridClient) doRequest(req *http.Request) (*http.Response, error) {
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.apiKey))
	return c.httpClient.Do(req)
}

// checkStatus maps non-2xx responses to errors, consuming the body for the
// error message. 429 surfaces as the rate limit sentinel so callers can back
// off instead of treating it as a hard failure.
func checkStatus(resp *http.Response, op string) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		return fmt.Errorf("%s: %w", op, callgate.ErrRateLimited)
	}
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return fmt.Errorf("%s: realdebrid authentication failed: invalid API key", op)
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var apiErr realDebridError
	if json.Unmarshal(body, &apiErr) == nil && apiErr.Error != "" {
		return fmt.Errorf("%s: realdebrid error %d: %s", op, apiErr.ErrorCode, apiErr.Error)
	}
	return fmt.Errorf("%s: unexpected status %d", op, resp.StatusCode)
}

// AddMagnet submits a magnet URI and returns the provider-assigned torrent ID.
func (c *RealDebridClient) AddMagnet(ctx context.Context, magnetURI string) (*AddMagnetResult, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("realdebrid API key not configured")
	}

	trimmedMagnet := strings.TrimSpace(magnetURI)
	if trimmedMagnet == "" {
		return nil, fmt.Errorf("magnet URI is required")
	}

	formData := url.Values{}
	formData.Set("magnet", trimmedMagnet)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.buildURL("/torrents/addMagnet"), strings.NewReader(formData.Encode()))
	if err != nil {
		return nil, fmt.Errorf("build add magnet request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.doRequest(req)
	if err != nil {
		return nil, fmt.Errorf("add magnet request failed: %w", err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp, "add magnet"); err != nil {
		return nil, err
	}

	var result realDebridAddMagnet
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode add magnet response: %w", err)
	}
	if result.ID == "" {
		return nil, fmt.Errorf("add magnet: no torrent id returned")
	}

	log.Printf("[realdebrid] magnet added: id=%s", result.ID)

	return &AddMagnetResult{ID: result.ID, URI: trimmedMagnet}, nil
}

// SelectFiles marks files for download. fileIDs is a comma-separated list of
// file IDs, or "all".
func (c *RealDebridClient) SelectFiles(ctx context.Context, torrentID, fileIDs string) error {
	if fileIDs == "" {
		fileIDs = "all"
	}

	formData := url.Values{}
	formData.Set("files", fileIDs)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.buildURL("/torrents/selectFiles/"+torrentID), strings.NewReader(formData.Encode()))
	if err != nil {
		return fmt.Errorf("build select files request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.doRequest(req)
	if err != nil {
		return fmt.Errorf("select files request failed: %w", err)
	}
	defer resp.Body.Close()

	return checkStatus(resp, "select files")
}

// GetTorrentInfo fetches full status including file listing and links.
func (c *RealDebridClient) GetTorrentInfo(ctx context.Context, torrentID string) (*TorrentInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.buildURL("/torrents/info/"+torrentID), nil)
	if err != nil {
		return nil, fmt.Errorf("build torrent info request: %w", err)
	}

	resp, err := c.doRequest(req)
	if err != nil {
		return nil, fmt.Errorf("torrent info request failed: %w", err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp, "torrent info"); err != nil {
		return nil, err
	}

	var result realDebridTorrentInfo
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode torrent info response: %w", err)
	}

	info := &TorrentInfo{
		ID:       result.ID,
		Filename: result.Filename,
		Hash:     strings.ToLower(result.Hash),
		Bytes:    result.Bytes,
		Status:   result.Status,
		Links:    result.Links,
	}
	for _, f := range result.Files {
		info.Files = append(info.Files, File{
			ID:       f.ID,
			Path:     f.Path,
			Bytes:    f.Bytes,
			Selected: f.Selected,
		})
	}

	return info, nil
}

// ListTorrents returns one page of the account's torrent list. Pages are
// 1-based; an empty page means the listing is exhausted.
func (c *RealDebridClient) ListTorrents(ctx context.Context, page, limit int) ([]Torrent, error) {
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = 100
	}

	endpoint := fmt.Sprintf("%s?page=%d&limit=%d", c.buildURL("/torrents"), page, limit)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build list torrents request: %w", err)
	}

	resp, err := c.doRequest(req)
	if err != nil {
		return nil, fmt.Errorf("list torrents request failed: %w", err)
	}
	defer resp.Body.Close()

	// Real-Debrid answers 204 with no body once past the last page.
	if resp.StatusCode == http.StatusNoContent {
		return nil, nil
	}
	if err := checkStatus(resp, "list torrents"); err != nil {
		return nil, err
	}

	var rows []realDebridTorrent
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		return nil, fmt.Errorf("decode torrent list response: %w", err)
	}

	torrents := make([]Torrent, 0, len(rows))
	for _, r := range rows {
		torrents = append(torrents, Torrent{
			ID:       r.ID,
			Filename: r.Filename,
			Hash:     strings.ToLower(r.Hash),
			Bytes:    r.Bytes,
			Status:   r.Status,
		})
	}
	return torrents, nil
}

// ListDownloads returns one page of the account's downloads history.
func (c *RealDebridClient) ListDownloads(ctx context.Context, page, limit int) ([]Download, error) {
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = 100
	}

	endpoint := fmt.Sprintf("%s?page=%d&limit=%d", c.buildURL("/downloads"), page, limit)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build list downloads request: %w", err)
	}

	resp, err := c.doRequest(req)
	if err != nil {
		return nil, fmt.Errorf("list downloads request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		return nil, nil
	}
	if err := checkStatus(resp, "list downloads"); err != nil {
		return nil, err
	}

	var rows []realDebridDownload
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		return nil, fmt.Errorf("decode downloads list response: %w", err)
	}

	downloads := make([]Download, 0, len(rows))
	for _, r := range rows {
		downloads = append(downloads, Download{
			ID:       r.ID,
			Filename: r.Filename,
			Link:     r.Link,
			Download: r.Download,
			Filesize: r.Filesize,
		})
	}
	return downloads, nil
}

// DeleteTorrent removes a torrent from the account.
func (c *RealDebridClient) DeleteTorrent(ctx context.Context, torrentID string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.buildURL("/torrents/delete/"+torrentID), nil)
	if err != nil {
		return fmt.Errorf("build delete torrent request: %w", err)
	}

	resp, err := c.doRequest(req)
	if err != nil {
		return fmt.Errorf("delete torrent request failed: %w", err)
	}
	defer resp.Body.Close()

	// Already gone counts as deleted.
	if resp.StatusCode == http.StatusNotFound {
		return nil
	}
	return checkStatus(resp, "delete torrent")
}

// UnrestrictLink converts a provider link into a direct download URL.
func (c *RealDebridClient) UnrestrictLink(ctx context.Context, link string) (*UnrestrictResult, error) {
	if strings.TrimSpace(link) == "" {
		return nil, fmt.Errorf("link is required")
	}

	formData := url.Values{}
	formData.Set("link", link)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.buildURL("/unrestrict/link"), strings.NewReader(formData.Encode()))
	if err != nil {
		return nil, fmt.Errorf("build unrestrict request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.doRequest(req)
	if err != nil {
		return nil, fmt.Errorf("unrestrict request failed: %w", err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp, "unrestrict link"); err != nil {
		return nil, err
	}

	var result realDebridUnrestrict
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode unrestrict response: %w", err)
	}
	if result.Download == "" {
		return nil, fmt.Errorf("unrestrict link: no download URL returned")
	}

	log.Printf("[realdebrid] unrestricted %s (%s)", result.Filename, formatBytes(result.Filesize))

	return &UnrestrictResult{
		ID:          result.ID,
		Filename:    result.Filename,
		Filesize:    result.Filesize,
		DownloadURL: result.Download,
	}, nil
}

// HostsLink reports whether a URL points at Real-Debrid's own hosts.
func (c *RealDebridClient) HostsLink(link string) bool {
	u, err := url.Parse(link)
	if err != nil {
		return false
	}
	host := strings.ToLower(u.Hostname())
	return host == "real-debrid.com" || strings.HasSuffix(host, ".real-debrid.com")
}

func formatBytes(b int64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(b)/float64(div), "KMGT"[exp])
}
