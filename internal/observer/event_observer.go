package observer

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// EnhancementEvent represents an enhancement lifecycle event
type EnhancementEvent struct {
	EventType      EventType              `json:"event_type"`
	Timestamp      time.Time              `json:"timestamp"`
	RequestID      string                 `json:"request_id,omitempty"`
	Source         string                 `json:"source,omitempty"`
	Strategy       string                 `json:"strategy,omitempty"`
	ProcessingTime time.Duration          `json:"processing_time"`
	Success        bool                   `json:"success"`
	ErrorMessage   string                 `json:"error_message,omitempty"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
}

// EventType represents the type of enhancement event
type EventType string

const (
	// EnhancementStarted when enhancement begins
	EnhancementStarted EventType = "enhancement_started"
	// EnhancementCompleted when enhancement finishes successfully
	EnhancementCompleted EventType = "enhancement_completed"
	// EnhancementFailed when enhancement fails
	EnhancementFailed EventType = "enhancement_failed"
	// ImageFetched when a source image is successfully fetched
	ImageFetched EventType = "image_fetched"
	// ImageFetchFailed when a source image fetch fails
	ImageFetchFailed EventType = "image_fetch_failed"
	// ModelFallback when a generative model fails and the next one is tried
	ModelFallback EventType = "model_fallback"
	// ResultStored when an enhanced image is written to blob storage
	ResultStored EventType = "result_stored"
)

// Observer defines the interface for event observers
type Observer interface {
	OnEvent(ctx context.Context, event EnhancementEvent)
	GetObserverName() string
}

// Subject defines the interface for event publishers
type Subject interface {
	Subscribe(observer Observer)
	Unsubscribe(observer Observer)
	NotifyObservers(ctx context.Context, event EnhancementEvent)
}

// LoggingObserver logs enhancement events
type LoggingObserver struct {
	logger *logrus.Logger
}

// NewLoggingObserver creates a new logging observer
func NewLoggingObserver(logger *logrus.Logger) Observer {
	return &LoggingObserver{
		logger: logger,
	}
}

// OnEvent handles enhancement events by logging them
func (o *LoggingObserver) OnEvent(ctx context.Context, event EnhancementEvent) {
	fields := logrus.Fields{
		"event_type":         event.EventType,
		"processing_time_ms": event.ProcessingTime.Milliseconds(),
		"success":            event.Success,
	}

	if event.RequestID != "" {
		fields["request_id"] = event.RequestID
	}
	if event.Source != "" {
		fields["source"] = event.Source
	}
	if event.Strategy != "" {
		fields["strategy"] = event.Strategy
	}
	if event.ErrorMessage != "" {
		fields["error"] = event.ErrorMessage
	}

	for k, v := range event.Metadata {
		fields[k] = v
	}

	entry := o.logger.WithFields(fields)
	switch event.EventType {
	case EnhancementStarted:
		entry.Info("Image enhancement started")
	case EnhancementCompleted:
		entry.Info("Image enhancement completed")
	case EnhancementFailed:
		entry.Error("Image enhancement failed")
	case ImageFetched:
		entry.Debug("Image fetched successfully")
	case ImageFetchFailed:
		entry.Error("Image fetch failed")
	case ModelFallback:
		entry.Warn("Falling back to next image model")
	case ResultStored:
		entry.Debug("Enhanced image stored")
	default:
		entry.Info("Enhancement event occurred")
	}
}

// GetObserverName returns the observer name
func (o *LoggingObserver) GetObserverName() string {
	return "logging_observer"
}

// MetricsSnapshot is a point-in-time copy of the collected counters
type MetricsSnapshot struct {
	TotalEnhancements      int64            `json:"total_enhancements"`
	SuccessfulEnhancements int64            `json:"successful_enhancements"`
	FailedEnhancements     int64            `json:"failed_enhancements"`
	FetchFailures          int64            `json:"fetch_failures"`
	ModelFallbacks         int64            `json:"model_fallbacks"`
	StoredResults          int64            `json:"stored_results"`
	AvgProcessingTimeMs    float64          `json:"avg_processing_time_ms"`
	ByStrategy             map[string]int64 `json:"by_strategy"`
}

// MetricsObserver collects metrics from enhancement events
type MetricsObserver struct {
	mu                     sync.RWMutex
	totalEnhancements      int64
	successfulEnhancements int64
	failedEnhancements     int64
	fetchFailures          int64
	modelFallbacks         int64
	storedResults          int64
	totalProcessingTime    time.Duration
	byStrategy             map[string]int64
}

// NewMetricsObserver creates a new metrics observer
func NewMetricsObserver() *MetricsObserver {
	return &MetricsObserver{byStrategy: make(map[string]int64)}
}

// OnEvent handles enhancement events by collecting metrics
func (o *MetricsObserver) OnEvent(ctx context.Context, event EnhancementEvent) {
	o.mu.Lock()
	defer o.mu.Unlock()

	switch event.EventType {
	case EnhancementStarted:
		o.totalEnhancements++
	case EnhancementCompleted:
		o.successfulEnhancements++
		o.totalProcessingTime += event.ProcessingTime
		if event.Strategy != "" {
			o.byStrategy[event.Strategy]++
		}
	case EnhancementFailed:
		o.failedEnhancements++
	case ImageFetchFailed:
		o.fetchFailures++
	case ModelFallback:
		o.modelFallbacks++
	case ResultStored:
		o.storedResults++
	}
}

// GetObserverName returns the observer name
func (o *MetricsObserver) GetObserverName() string {
	return "metrics_observer"
}

// GetMetrics returns current metrics
func (o *MetricsObserver) GetMetrics() MetricsSnapshot {
	o.mu.RLock()
	defer o.mu.RUnlock()

	var avg float64
	if o.successfulEnhancements > 0 {
		avg = float64(o.totalProcessingTime.Milliseconds()) / float64(o.successfulEnhancements)
	}

	byStrategy := make(map[string]int64, len(o.byStrategy))
	for k, v := range o.byStrategy {
		byStrategy[k] = v
	}

	return MetricsSnapshot{
		TotalEnhancements:      o.totalEnhancements,
		SuccessfulEnhancements: o.successfulEnhancements,
		FailedEnhancements:     o.failedEnhancements,
		FetchFailures:          o.fetchFailures,
		ModelFallbacks:         o.modelFallbacks,
		StoredResults:          o.storedResults,
		AvgProcessingTimeMs:    avg,
		ByStrategy:             byStrategy,
	}
}

// EventPublisher implements the Subject interface
type EventPublisher struct {
	mu        sync.RWMutex
	observers []Observer
	wg        sync.WaitGroup
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher() *EventPublisher {
	return &EventPublisher{
		observers: make([]Observer, 0),
	}
}

// Subscribe adds an observer
func (p *EventPublisher) Subscribe(observer Observer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.observers = append(p.observers, observer)
}

// Unsubscribe removes an observer
func (p *EventPublisher) Unsubscribe(observer Observer) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i, obs := range p.observers {
		if obs.GetObserverName() == observer.GetObserverName() {
			p.observers = append(p.observers[:i], p.observers[i+1:]...)
			break
		}
	}
}

// NotifyObservers notifies all observers of an event. Observers run
// concurrently; a panicking observer is logged and does not affect others.
func (p *EventPublisher) NotifyObservers(ctx context.Context, event EnhancementEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	p.mu.RLock()
	observers := make([]Observer, len(p.observers))
	copy(observers, p.observers)
	p.mu.RUnlock()

	// Observers outlive the request; detach from its cancellation
	ctx = context.WithoutCancel(ctx)

	for _, observer := range observers {
		p.wg.Add(1)
		go func(obs Observer) {
			defer p.wg.Done()
			defer func() {
				if r := recover(); r != nil {
					logrus.WithField("observer", obs.GetObserverName()).
						WithField("panic", r).
						Error("Observer panicked while handling event")
				}
			}()
			obs.OnEvent(ctx, event)
		}(observer)
	}
}

// Wait blocks until every notification delivered so far has been handled
func (p *EventPublisher) Wait() {
	p.wg.Wait()
}
