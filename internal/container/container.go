package container

import (
	"context"
	"fmt"
	"net/http"

	"github.com/Arifeenz/paimai-ubi/internal/analyzer"
	"github.com/Arifeenz/paimai-ubi/internal/config"
	"github.com/Arifeenz/paimai-ubi/internal/factory"
	"github.com/Arifeenz/paimai-ubi/internal/logger"
	"github.com/Arifeenz/paimai-ubi/internal/observer"
	"github.com/Arifeenz/paimai-ubi/internal/repository"
	"github.com/Arifeenz/paimai-ubi/internal/service"
	"github.com/Arifeenz/paimai-ubi/internal/storage"
	"github.com/Arifeenz/paimai-ubi/internal/strategy"
	"github.com/Arifeenz/paimai-ubi/internal/transport"
	"github.com/Arifeenz/paimai-ubi/pkg/models"

	"github.com/sirupsen/logrus"
)

// Container holds all application dependencies
type Container struct {
	config             *config.Config
	publisher          *observer.EventPublisher
	metricsObserver    *observer.MetricsObserver
	imageRepository    repository.ImageRepository
	resultRepository   repository.ResultRepository
	enhancementService service.EnhancementService
	handler            http.Handler
}

// NewContainer creates a new dependency injection container
func NewContainer(ctx context.Context, cfg *config.Config) (*Container, error) {
	logger.SetLevel(cfg.LogLevel)

	publisher := observer.NewEventPublisher()
	metricsObserver := observer.NewMetricsObserver()
	publisher.Subscribe(observer.NewLoggingObserver(logger.Logger))
	publisher.Subscribe(metricsObserver)

	components := factory.NewComponentFactory(factory.Config{
		FetchTimeout:   cfg.ImageFetchTimeout,
		MaxImageBytes:  cfg.MaxRequestBodySize,
		LocalRoot:      cfg.LocalImageRoot,
		AzureAccount:   cfg.AzureAccount,
		AzureKey:       cfg.AzureKey,
		AzureContainer: cfg.AzureContainer,
		GeminiAPIKey:   cfg.GeminiAPIKey,
		ImageModels:    cfg.ImageModels,
		OnFallback: func(failedModel, nextModel string, err error) {
			publisher.NotifyObservers(ctx, observer.EnhancementEvent{
				EventType:    observer.ModelFallback,
				Strategy:     models.ModeGenerative,
				ErrorMessage: err.Error(),
				Metadata: map[string]interface{}{
					"failed_model": failedModel,
					"next_model":   nextModel,
				},
			})
		},
	})

	// Build dependency graph
	fetchers := map[string]storage.ImageFetcher{}
	httpFetcher, err := components.StorageFactory.CreateStorage(factory.HTTPStorage)
	if err != nil {
		return nil, fmt.Errorf("failed to create http fetcher: %w", err)
	}
	fetchers["http"] = httpFetcher
	fetchers["https"] = httpFetcher

	if cfg.LocalImageRoot != "" {
		local, err := components.StorageFactory.CreateStorage(factory.LocalStorage)
		if err != nil {
			return nil, fmt.Errorf("failed to create local fetcher: %w", err)
		}
		fetchers["file"] = local
	}

	var blobs storage.BlobStorage
	if cfg.BlobStorageEnabled() {
		blobs, err = components.StorageFactory.CreateBlobStorage()
		if err != nil {
			return nil, fmt.Errorf("failed to create blob storage: %w", err)
		}
		fetchers[storage.BlobScheme] = blobs
	}

	strategies := []strategy.EnhancementStrategy{}
	filter, err := components.StrategyFactory.CreateStrategy(ctx, models.ModeFilter)
	if err != nil {
		return nil, err
	}
	strategies = append(strategies, filter)

	if cfg.GenerativeEnabled() {
		gen, err := components.StrategyFactory.CreateStrategy(ctx, models.ModeGenerative)
		if err != nil {
			return nil, fmt.Errorf("failed to create generative strategy: %w", err)
		}
		strategies = append(strategies, gen)
	}

	imageRepository := repository.NewSourceRepository(fetchers, cfg.AllowedImageHosts)

	var resultRepository repository.ResultRepository
	if blobs != nil {
		resultRepository = repository.NewBlobResultRepository(blobs, "")
	}

	enhancementService := service.NewEnhancementService(
		imageRepository,
		resultRepository,
		strategy.NewSelector(strategies...),
		analyzer.NewMetricsCalculator(),
		publisher,
		service.Options{
			EnhanceTimeout:    cfg.EnhanceTimeout,
			GenerativeTimeout: cfg.GenerativeTimeout,
			Workers:           cfg.EnhanceWorkers,
		},
	)
	handler := transport.NewHandler(enhancementService, metricsObserver, cfg)

	logger.WithFields(logrus.Fields{
		"modes":        enhancementService.Modes(),
		"blob_storage": blobs != nil,
		"local_root":   cfg.LocalImageRoot,
	}).Info("Container initialized")

	return &Container{
		config:             cfg,
		publisher:          publisher,
		metricsObserver:    metricsObserver,
		imageRepository:    imageRepository,
		resultRepository:   resultRepository,
		enhancementService: enhancementService,
		handler:            handler,
	}, nil
}

// Handler returns the HTTP handler
func (c *Container) Handler() http.Handler {
	return c.handler
}

// Config returns the configuration
func (c *Container) Config() *config.Config {
	return c.config
}

// Service returns the enhancement service
func (c *Container) Service() service.EnhancementService {
	return c.enhancementService
}

// Metrics returns the metrics observer
func (c *Container) Metrics() *observer.MetricsObserver {
	return c.metricsObserver
}

// Close waits for in-flight event notifications
func (c *Container) Close() {
	c.publisher.Wait()
}
