package debrid

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"streamvault/models"
)

const (
	torrentioDefaultBaseURL = "https://torrentio.strem.fun"
	maxTorrentioStreams     = 50
)

// TorrentioScraper queries the torrentio Stremio addon by external content ID.
type TorrentioScraper struct {
	name       string
	baseURL    string
	options    string // URL path options (e.g. "sort=qualitysize|qualityfilter=480p,scr,cam")
	httpClient *http.Client
}

// NewTorrentioScraper constructs a scraper with sane defaults. An empty
// baseURL selects the public torrentio instance; the options parameter is
// inserted between the base URL and the /stream path.
func NewTorrentioScraper(client *http.Client, baseURL, options, name string) *TorrentioScraper {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = torrentioDefaultBaseURL
	}
	return &TorrentioScraper{
		name:       strings.TrimSpace(name),
		baseURL:    baseURL,
		options:    strings.TrimSpace(options),
		httpClient: client,
	}
}

func (t *TorrentioScraper) Name() string {
	if t.name != "" {
		return t.name
	}
	return "torrentio"
}

type torrentioResponse struct {
	Streams []struct {
		Name     string      `json:"name"`
		Title    string      `json:"title"`
		InfoHash string      `json:"infoHash"`
		FileIdx  *int        `json:"fileIdx"`
		Seeders  interface{} `json:"seeders"`
		Tracker  interface{} `json:"tracker"`
	} `json:"streams"`
}

var (
	reTorrentioSize    = regexp.MustCompile(`💾\s*([\d.,]+)\s*([KMGTP]?B)`)
	reTorrentioSeeders = regexp.MustCompile(`👤\s*(\d+)`)
	reTorrentioTracker = regexp.MustCompile(`⚙️\s*([^\n]+)`)
)

func (t *TorrentioScraper) Search(ctx context.Context, query ScrapeQuery) ([]models.ExternalCandidate, error) {
	contentID := strings.TrimSpace(query.ContentID)
	if contentID == "" {
		return nil, nil
	}

	streamID := contentID
	streamType := "movie"
	if query.MediaType == models.MediaTypeSeries {
		streamType = "series"
		if query.Season > 0 && query.Episode > 0 {
			streamID = fmt.Sprintf("%s:%d:%d", contentID, query.Season, query.Episode)
		}
	}

	var endpoint string
	if t.options != "" {
		endpoint = fmt.Sprintf("%s/%s/stream/%s/%s.json", t.baseURL, t.options, streamType, url.PathEscape(streamID))
	} else {
		endpoint = fmt.Sprintf("%s/stream/%s/%s.json", t.baseURL, streamType, url.PathEscape(streamID))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("torrentio %s returned %d: %s", streamID, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var payload torrentioResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode torrentio response: %w", err)
	}

	candidates := make([]models.ExternalCandidate, 0, len(payload.Streams))
	for _, stream := range payload.Streams {
		infoHash := strings.ToLower(strings.TrimSpace(stream.InfoHash))
		if infoHash == "" {
			continue
		}

		rawTitle := strings.TrimSpace(stream.Title)
		candidates = append(candidates, models.ExternalCandidate{
			Title:     torrentioTitle(rawTitle),
			InfoHash:  infoHash,
			Magnet:    BuildMagnet(infoHash),
			SizeBytes: parseTorrentioSize(rawTitle),
			Seeders:   parseTorrentioSeeders(rawTitle, stream.Seeders),
			Tracker:   parseTorrentioTracker(rawTitle, stream.Tracker),
		})
		if len(candidates) >= maxTorrentioStreams {
			break
		}
	}

	log.Printf("[torrentio] %s: %d candidates for %s", t.Name(), len(candidates), streamID)
	return candidates, nil
}

// torrentioTitle takes the first line of the stream title blob, which carries
// the release name; subsequent lines hold size/seeder annotations.
func torrentioTitle(rawTitle string) string {
	if idx := strings.IndexByte(rawTitle, '\n'); idx >= 0 {
		return strings.TrimSpace(rawTitle[:idx])
	}
	return rawTitle
}

func parseTorrentioSize(rawTitle string) int64 {
	matches := reTorrentioSize.FindStringSubmatch(rawTitle)
	if len(matches) != 3 {
		return 0
	}
	value, err := strconv.ParseFloat(strings.ReplaceAll(matches[1], ",", ""), 64)
	if err != nil {
		return 0
	}
	multipliers := map[string]float64{
		"B":  1,
		"KB": 1 << 10,
		"MB": 1 << 20,
		"GB": 1 << 30,
		"TB": 1 << 40,
		"PB": 1 << 50,
	}
	mult, ok := multipliers[strings.ToUpper(matches[2])]
	if !ok {
		return 0
	}
	return int64(value * mult)
}

func parseTorrentioSeeders(rawTitle string, fallback interface{}) int {
	if matches := reTorrentioSeeders.FindStringSubmatch(rawTitle); len(matches) == 2 {
		if n, err := strconv.Atoi(matches[1]); err == nil {
			return n
		}
	}
	switch v := fallback.(type) {
	case float64:
		return int(v)
	case string:
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return 0
}

func parseTorrentioTracker(rawTitle string, fallback interface{}) string {
	if matches := reTorrentioTracker.FindStringSubmatch(rawTitle); len(matches) == 2 {
		return strings.TrimSpace(matches[1])
	}
	if fallback != nil {
		return strings.TrimSpace(fmt.Sprint(fallback))
	}
	return ""
}
