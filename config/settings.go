package config

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Settings represents the application configuration persisted to disk.
type Settings struct {
	Server          ServerSettings         `json:"server"`
	CacheStore      CacheStoreSettings     `json:"cacheStore"`
	DebridProviders []DebridProviderConfig `json:"debridProviders"`
	TorrentScrapers []TorrentScraperConfig `json:"torrentScrapers"`
	Quota           QuotaSettings          `json:"quota"`
	Verification    VerificationSettings   `json:"verification"`
	CallGate        CallGateSettings       `json:"callGate"`
	Log             LogConfig              `json:"log"`
}

type ServerSettings struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

// CacheStoreSettings configures the verified-hash record store.
// When Enabled is false or Path is empty, every store operation degrades to
// its empty result instead of failing.
type CacheStoreSettings struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`    // sqlite database file
	Table   string `json:"table"`   // record table name
	TTLDays int    `json:"ttlDays"` // record lifetime, default 30
}

type DebridProviderConfig struct {
	Provider string `json:"provider"` // "realdebrid"
	APIKey   string `json:"apiKey"`
	Enabled  bool   `json:"enabled"`
}

type TorrentScraperConfig struct {
	Name    string `json:"name"`
	Type    string `json:"type"`    // "torrentio"
	URL     string `json:"url"`     // base URL override
	Options string `json:"options"` // scraper-specific URL path options
	Enabled bool   `json:"enabled"`
}

// QuotaSettings carries the per-category result limits. Zero values fall back
// to the built-in defaults at quota-model construction.
type QuotaSettings struct {
	Remux  int `json:"remux"`
	BluRay int `json:"bluray"`
	Web    int `json:"web"`
	Rip    int `json:"rip"`
	Audio  int `json:"audio"`
	Other  int `json:"other"`
}

type VerificationSettings struct {
	MinVideoSizeMiB   int `json:"minVideoSizeMiB"`   // plausible-video floor, default 50
	MaxPackInspects   int `json:"maxPackInspects"`   // season packs inspected per search, default 3
	LiveCheckCount    int `json:"liveCheckCount"`    // unresolved candidates live-checked per search, default 5
	BackgroundWorkers int `json:"backgroundWorkers"` // fire-and-forget persistence workers, default 2
}

type CallGateSettings struct {
	CallsPerMinute int `json:"callsPerMinute"` // provider rate ceiling, default 60
	Burst          int `json:"burst"`          // default 5
}

type LogConfig struct {
	File       string `json:"file"`
	MaxSize    int    `json:"maxSize"`
	MaxAge     int    `json:"maxAge"`
	MaxBackups int    `json:"maxBackups"`
	Compress   bool   `json:"compress"`
}

// DefaultSettings returns the configuration written on first run.
func DefaultSettings() Settings {
	return Settings{
		Server: ServerSettings{Host: "0.0.0.0", Port: 8480},
		CacheStore: CacheStoreSettings{
			Enabled: true,
			Path:    filepath.Join("cache", "streamvault.db"),
			Table:   "cache_records",
			TTLDays: 30,
		},
		DebridProviders: []DebridProviderConfig{
			{Provider: "realdebrid", APIKey: "", Enabled: false},
		},
		TorrentScrapers: []TorrentScraperConfig{
			{Name: "Torrentio", Type: "torrentio", Enabled: true},
		},
		Quota: QuotaSettings{Remux: 2, BluRay: 2, Web: 2, Rip: 1, Audio: 1, Other: 10},
		Verification: VerificationSettings{
			MinVideoSizeMiB:   50,
			MaxPackInspects:   3,
			LiveCheckCount:    5,
			BackgroundWorkers: 2,
		},
		CallGate: CallGateSettings{CallsPerMinute: 60, Burst: 5},
		Log: LogConfig{
			File:       filepath.Join("cache", "streamvault.log"),
			MaxSize:    20,
			MaxAge:     14,
			MaxBackups: 3,
			Compress:   true,
		},
	}
}

// Manager loads and persists Settings from a JSON file.
type Manager struct {
	mu   sync.Mutex
	path string
}

func NewManager(configPath string) *Manager {
	return &Manager{path: configPath}
}

// EnsureDir ensures the parent directory exists.
func (m *Manager) EnsureDir() error {
	dir := filepath.Dir(m.path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

// Load reads settings from disk or creates defaults if missing.
func (m *Manager) Load() (Settings, error) {
	if m.path == "" {
		return Settings{}, errors.New("config path not set")
	}
	if _, err := os.Stat(m.path); errors.Is(err, fs.ErrNotExist) {
		defaults := DefaultSettings()
		if err := m.Save(defaults); err != nil {
			return Settings{}, err
		}
		return defaults, nil
	}

	data, err := os.ReadFile(m.path)
	if err != nil {
		return Settings{}, err
	}

	var s Settings
	if err := json.Unmarshal(data, &s); err != nil {
		return Settings{}, err
	}

	backfillDefaults(&s)
	return s, nil
}

// backfillDefaults fills values for fields introduced after a config was written.
func backfillDefaults(s *Settings) {
	defaults := DefaultSettings()

	if s.Server.Port == 0 {
		s.Server = defaults.Server
	}
	if strings.TrimSpace(s.CacheStore.Table) == "" {
		s.CacheStore.Table = defaults.CacheStore.Table
	}
	if s.CacheStore.TTLDays <= 0 {
		s.CacheStore.TTLDays = defaults.CacheStore.TTLDays
	}
	if s.Quota == (QuotaSettings{}) {
		s.Quota = defaults.Quota
	}
	if s.Verification.MinVideoSizeMiB <= 0 {
		s.Verification.MinVideoSizeMiB = defaults.Verification.MinVideoSizeMiB
	}
	if s.Verification.MaxPackInspects <= 0 {
		s.Verification.MaxPackInspects = defaults.Verification.MaxPackInspects
	}
	if s.Verification.LiveCheckCount <= 0 {
		s.Verification.LiveCheckCount = defaults.Verification.LiveCheckCount
	}
	if s.Verification.BackgroundWorkers <= 0 {
		s.Verification.BackgroundWorkers = defaults.Verification.BackgroundWorkers
	}
	if s.CallGate.CallsPerMinute <= 0 {
		s.CallGate.CallsPerMinute = defaults.CallGate.CallsPerMinute
	}
	if s.CallGate.Burst <= 0 {
		s.CallGate.Burst = defaults.CallGate.Burst
	}
}

// Save writes the settings file atomically.
func (m *Manager) Save(s Settings) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.EnsureDir(); err != nil {
		return err
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}

	tmp := m.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, m.path)
}

// HasActiveProvider reports whether any debrid provider is enabled with an API key.
func (s Settings) HasActiveProvider() bool {
	for _, p := range s.DebridProviders {
		if p.Enabled && strings.TrimSpace(p.APIKey) != "" {
			return true
		}
	}
	return false
}
