package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"gopkg.in/natefinch/lumberjack.v2"

	"streamvault/api"
	"streamvault/config"
	"streamvault/handlers"
	"streamvault/internal/background"
	"streamvault/services/cachestore"
	"streamvault/services/callgate"
	"streamvault/services/debrid"
	"streamvault/services/quota"
)

const purgeInterval = 6 * time.Hour

func main() {
	portOverride := flag.Int("port", 0, "override server port from config")
	flag.Parse()

	fmt.Println("🚀 streamvault starting...")

	configPath := os.Getenv("STREAMVAULT_CONFIG")
	if configPath == "" {
		configPath = filepath.Join("cache", "settings.json")
	}

	cfgManager := config.NewManager(configPath)
	settings, err := cfgManager.Load()
	if err != nil {
		log.Fatalf("failed to load settings: %v", err)
	}

	// File logging with rotation
	if settings.Log.File != "" {
		logDir := filepath.Dir(settings.Log.File)
		if err := os.MkdirAll(logDir, 0755); err != nil {
			log.Printf("Warning: could not create log directory %s: %v", logDir, err)
		} else {
			fileWriter := &lumberjack.Logger{
				Filename:   settings.Log.File,
				MaxSize:    settings.Log.MaxSize,
				MaxBackups: settings.Log.MaxBackups,
				MaxAge:     settings.Log.MaxAge,
				Compress:   settings.Log.Compress,
			}
			log.SetOutput(io.MultiWriter(os.Stdout, fileWriter))
			log.SetFlags(log.LstdFlags | log.Lshortfile)
			log.Printf("Logging to file: %s", settings.Log.File)
		}
	}

	if *portOverride > 0 {
		settings.Server.Port = *portOverride
	}

	if !settings.HasActiveProvider() {
		log.Printf("⚠️  No enabled debrid provider configured; edit %s and restart", configPath)
	}

	store, err := cachestore.Open(settings.CacheStore)
	if err != nil {
		log.Fatalf("failed to open cache store: %v", err)
	}
	defer store.Close()

	rootCtx, rootCancel := context.WithCancel(context.Background())
	defer rootCancel()
	store.StartPurgeLoop(rootCtx, purgeInterval)

	gate := callgate.New(settings.CallGate.CallsPerMinute, settings.CallGate.Burst)
	queue := background.NewQueue(settings.Verification.BackgroundWorkers, 64)
	defer queue.Stop()

	provider := activeProvider(settings)
	scrapers := buildScrapers(settings)

	engine := debrid.NewEngine(
		provider,
		gate,
		store,
		queue,
		scrapers,
		quota.LimitsFromSettings(settings.Quota),
		settings.Verification,
	)

	r := mux.NewRouter()
	api.RegisterRoutes(r, handlers.NewStreamsHandler(engine))

	addr := fmt.Sprintf("%s:%d", settings.Server.Host, settings.Server.Port)
	fmt.Printf("Server starting on %s\n", addr)

	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	shutdownChan := make(chan os.Signal, 1)
	signal.Notify(shutdownChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	<-shutdownChan
	log.Println("🛑 Shutdown signal received, cleaning up...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	rootCancel()
	queue.Stop()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}

	log.Println("✅ Shutdown complete")
}

// activeProvider instantiates the first enabled provider with an API key. A
// nil provider never happens; an unconfigured setup gets a registered client
// with an empty key whose calls fail cleanly.
func activeProvider(settings config.Settings) debrid.Provider {
	for _, pc := range settings.DebridProviders {
		if !pc.Enabled || pc.APIKey == "" {
			continue
		}
		if provider, ok := debrid.GetProvider(pc.Provider, pc.APIKey); ok {
			log.Printf("Using debrid provider: %s", provider.Name())
			return provider
		}
		log.Printf("⚠️  Unknown debrid provider %q in config", pc.Provider)
	}
	provider, _ := debrid.GetProvider("realdebrid", "")
	return provider
}

func buildScrapers(settings config.Settings) []debrid.Scraper {
	var scrapers []debrid.Scraper
	for _, sc := range settings.TorrentScrapers {
		if !sc.Enabled {
			continue
		}
		switch sc.Type {
		case "torrentio":
			scrapers = append(scrapers, debrid.NewTorrentioScraper(nil, sc.URL, sc.Options, sc.Name))
		default:
			log.Printf("⚠️  Unknown scraper type %q in config", sc.Type)
		}
	}
	return scrapers
}
