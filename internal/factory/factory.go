package factory

import (
	"context"
	"fmt"
	"time"

	"github.com/Arifeenz/paimai-ubi/internal/enhancer"
	"github.com/Arifeenz/paimai-ubi/internal/generative"
	"github.com/Arifeenz/paimai-ubi/internal/storage"
	"github.com/Arifeenz/paimai-ubi/internal/strategy"
	"github.com/Arifeenz/paimai-ubi/pkg/models"
)

// StorageType represents different types of storage backends
type StorageType string

const (
	// HTTPStorage for HTTP-based image fetching
	HTTPStorage StorageType = "http"
	// AzureStorage for Azure blob storage
	AzureStorage StorageType = "azure"
	// LocalStorage for local file system
	LocalStorage StorageType = "local"
)

// Config carries the settings factories need to build components
type Config struct {
	FetchTimeout  time.Duration
	MaxImageBytes int64
	LocalRoot     string

	AzureAccount   string
	AzureKey       string
	AzureContainer string

	GeminiAPIKey string
	ImageModels  []string
	OnFallback   generative.FallbackFunc
}

// StorageFactory creates storage implementations
type StorageFactory interface {
	CreateStorage(storageType StorageType) (storage.ImageFetcher, error)
	CreateBlobStorage() (storage.BlobStorage, error)
}

// StrategyFactory creates enhancement strategies
type StrategyFactory interface {
	CreateStrategy(ctx context.Context, mode string) (strategy.EnhancementStrategy, error)
}

// storageFactory implements StorageFactory
type storageFactory struct {
	cfg Config
}

// NewStorageFactory creates a new storage factory
func NewStorageFactory(cfg Config) StorageFactory {
	return &storageFactory{cfg: cfg}
}

// CreateStorage creates a storage implementation based on the specified type
func (f *storageFactory) CreateStorage(storageType StorageType) (storage.ImageFetcher, error) {
	switch storageType {
	case HTTPStorage:
		return storage.NewHTTPImageFetcher(f.cfg.FetchTimeout, f.cfg.MaxImageBytes), nil
	case AzureStorage:
		return f.CreateBlobStorage()
	case LocalStorage:
		if f.cfg.LocalRoot == "" {
			return nil, fmt.Errorf("local storage is not configured")
		}
		return storage.NewLocalImageFetcher(f.cfg.LocalRoot, f.cfg.MaxImageBytes), nil
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", storageType)
	}
}

// CreateBlobStorage creates the Azure blob store
func (f *storageFactory) CreateBlobStorage() (storage.BlobStorage, error) {
	if f.cfg.AzureAccount == "" || f.cfg.AzureKey == "" {
		return nil, fmt.Errorf("azure storage is not configured")
	}
	return storage.NewAzureStorage(f.cfg.AzureAccount, f.cfg.AzureKey, f.cfg.AzureContainer, f.cfg.MaxImageBytes)
}

// strategyFactory implements StrategyFactory
type strategyFactory struct {
	cfg Config
}

// NewStrategyFactory creates a new strategy factory
func NewStrategyFactory(cfg Config) StrategyFactory {
	return &strategyFactory{cfg: cfg}
}

// CreateStrategy creates a strategy for the named mode
func (f *strategyFactory) CreateStrategy(ctx context.Context, mode string) (strategy.EnhancementStrategy, error) {
	switch mode {
	case models.ModeFilter:
		return strategy.NewFilterStrategy(enhancer.NewImageEnhancer()), nil
	case models.ModeGenerative:
		if f.cfg.GeminiAPIKey == "" {
			return nil, fmt.Errorf("generative mode requires an API key")
		}
		model, err := generative.NewGeminiModel(ctx, f.cfg.GeminiAPIKey)
		if err != nil {
			return nil, err
		}
		gen := generative.NewEnhancer(model, f.cfg.ImageModels...)
		if f.cfg.OnFallback != nil {
			gen.OnFallback(f.cfg.OnFallback)
		}
		return strategy.NewGenerativeStrategy(gen), nil
	default:
		return nil, fmt.Errorf("unsupported enhancement mode: %s", mode)
	}
}

// ComponentFactory combines all factories
type ComponentFactory struct {
	StorageFactory  StorageFactory
	StrategyFactory StrategyFactory
}

// NewComponentFactory creates a new component factory
func NewComponentFactory(cfg Config) *ComponentFactory {
	return &ComponentFactory{
		StorageFactory:  NewStorageFactory(cfg),
		StrategyFactory: NewStrategyFactory(cfg),
	}
}
