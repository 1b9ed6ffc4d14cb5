package runtimeinit

import (
	"context"
	"fmt"
	"log"
	"time"

	"gemini-assistant/src/assistant"
	"gemini-assistant/src/clipboard"
	"gemini-assistant/src/config"
	"gemini-assistant/src/gemini"
	"gemini-assistant/src/logutil"
	"gemini-assistant/src/ocr"
	"gemini-assistant/src/screenshot"
)

type Options struct {
	// Config skips loading when set.
	Config       *config.Config
	LoadOptions  config.LoadOptions
	SetupLogging func(cfg *config.Config)
	// PingAPI checks the key against the API at startup. A failed check is
	// logged; the application still starts and reports errors per request.
	PingAPI bool
	// Clipboard initialises the system clipboard for Copy Answer.
	Clipboard bool
}

// Runtime holds the wired pipeline shared by the desktop app and the CLI.
type Runtime struct {
	Config    *config.Config
	Gemini    *gemini.Client
	OCR       ocr.Engine
	Assistant *assistant.Assistant
	History   *assistant.History
}

func Bootstrap(opts Options) (*Runtime, error) {
	cfg := opts.Config
	if cfg == nil {
		var err error
		if cfg, err = config.LoadWithOptions(opts.LoadOptions); err != nil {
			return nil, fmt.Errorf("failed to load configuration: %w", err)
		}
	}

	if opts.SetupLogging != nil {
		opts.SetupLogging(cfg)
	}

	client := gemini.New(cfg.APIKey, cfg.Model, cfg.APIBaseURL, cfg.APITimeout)
	if !cfg.HasAPIKey() {
		// Requests answer with an inline configuration error instead.
		client.APIKey = ""
		log.Printf("GEMINI_API_KEY is not configured (checked %q and the environment)", cfg.EnvPath)
	} else {
		log.Printf("Using model %s with key %s", cfg.Model, logutil.RedactKey(cfg.APIKey))
		if opts.PingAPI {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			if err := client.Ping(ctx); err != nil {
				log.Printf("WARNING: API startup check failed: %v", err)
			} else {
				log.Printf("API ping succeeded")
			}
			cancel()
		}
	}

	if opts.Clipboard {
		if err := clipboard.Init(); err != nil {
			log.Printf("WARNING: clipboard unavailable, Copy Answer disabled: %v", err)
		}
	}

	engine := ocr.Tesseract{Path: cfg.TesseractPath}
	return &Runtime{
		Config: cfg,
		Gemini: client,
		OCR:    engine,
		Assistant: &assistant.Assistant{
			Capture: screenshot.CaptureRegion,
			OCR:     engine,
			Ask:     client,
		},
		History: assistant.NewHistory(),
	}, nil
}
