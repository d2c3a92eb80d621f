package app

import (
	"fmt"

	"pdfchat/pkg/ai"
	"pdfchat/pkg/pdftext"
	"pdfchat/pkg/store"
)

// Config holds runtime configuration for the core application.
type Config struct {
	Store     store.Store
	Extractor pdftext.Extractor
	Generator ai.TextGenerator
}

// App is the core application service wiring together storage,
// pdf text extraction and answer generation.
type App struct {
	store     store.Store
	extractor pdftext.Extractor
	generator ai.TextGenerator
}

// New constructs the application.
func New(cfg Config) (*App, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("store required")
	}
	if cfg.Extractor == nil {
		return nil, fmt.Errorf("pdf text extractor required")
	}
	if cfg.Generator == nil {
		return nil, fmt.Errorf("text generator required")
	}
	return &App{
		store:     cfg.Store,
		extractor: cfg.Extractor,
		generator: cfg.Generator,
	}, nil
}
