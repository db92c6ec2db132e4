package usecase

import (
	"context"

	"RegimeChain/internal/domain/models"
	domrepo "RegimeChain/internal/domain/repository"
)

// PredictionSink receives engine output after each bar. Failures are logged by
// the engine and never alter the prediction.
type PredictionSink interface {
	Name() string
	OnPrediction(ctx context.Context, p *models.Prediction) error
	OnTransition(ctx context.Context, r *models.TransitionRecord) error
}

// PublisherSink forwards everything to a message bus.
type PublisherSink struct {
	pub domrepo.PredictionPublisher
}

func NewPublisherSink(pub domrepo.PredictionPublisher) *PublisherSink {
	return &PublisherSink{pub: pub}
}

func (s *PublisherSink) Name() string { return "publisher" }

func (s *PublisherSink) OnPrediction(ctx context.Context, p *models.Prediction) error {
	return s.pub.PublishPrediction(ctx, p)
}

func (s *PublisherSink) OnTransition(ctx context.Context, r *models.TransitionRecord) error {
	return s.pub.PublishTransition(ctx, r)
}

// CacheSink keeps the latest prediction per symbol in a shared cache.
type CacheSink struct {
	cache domrepo.PredictionCache
}

func NewCacheSink(cache domrepo.PredictionCache) *CacheSink {
	return &CacheSink{cache: cache}
}

func (s *CacheSink) Name() string { return "cache" }

func (s *CacheSink) OnPrediction(ctx context.Context, p *models.Prediction) error {
	return s.cache.SetPrediction(ctx, p)
}

func (s *CacheSink) OnTransition(context.Context, *models.TransitionRecord) error { return nil }

// StoreSink persists transitions, and predictions when withPredictions is set.
type StoreSink struct {
	store           domrepo.TransitionStore
	withPredictions bool
}

func NewStoreSink(store domrepo.TransitionStore, withPredictions bool) *StoreSink {
	return &StoreSink{store: store, withPredictions: withPredictions}
}

func (s *StoreSink) Name() string { return "store" }

func (s *StoreSink) OnPrediction(ctx context.Context, p *models.Prediction) error {
	if !s.withPredictions {
		return nil
	}
	return s.store.StorePrediction(ctx, p)
}

func (s *StoreSink) OnTransition(ctx context.Context, r *models.TransitionRecord) error {
	return s.store.StoreTransition(ctx, r)
}
