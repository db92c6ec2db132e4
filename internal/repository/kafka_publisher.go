package repository

import (
	"context"

	"RegimeChain/internal/domain/models"
	"RegimeChain/internal/domain/repository"
)

// Publisher is the subset of pkg/kafka.Producer used here.
type Publisher interface {
	Publish(ctx context.Context, topic string, key []byte, value interface{}) error
	Close() error
}

// KafkaPublisher implements PredictionPublisher. Messages are keyed by symbol
// so a consumer sees each symbol's stream in order.
type KafkaPublisher struct {
	producer         Publisher
	predictionsTopic string
	transitionsTopic string
}

func NewKafkaPublisher(producer Publisher, predictionsTopic, transitionsTopic string) repository.PredictionPublisher {
	return &KafkaPublisher{
		producer:         producer,
		predictionsTopic: predictionsTopic,
		transitionsTopic: transitionsTopic,
	}
}

func (p *KafkaPublisher) PublishPrediction(ctx context.Context, pred *models.Prediction) error {
	return p.producer.Publish(ctx, p.predictionsTopic, []byte(pred.Symbol), pred)
}

func (p *KafkaPublisher) PublishTransition(ctx context.Context, r *models.TransitionRecord) error {
	if p.transitionsTopic == "" {
		return nil
	}
	return p.producer.Publish(ctx, p.transitionsTopic, []byte(r.Symbol), r)
}

func (p *KafkaPublisher) Close() error {
	return p.producer.Close()
}
