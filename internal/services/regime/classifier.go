package regime

import "RegimeChain/internal/domain/models"

// Classifier walks an ordered rule cascade; the first matching rule decides.
// It holds no mutable state and is safe for concurrent use.
type Classifier struct {
	rules []Rule
}

// Option configures a Classifier.
type Option func(*Classifier)

// WithRules replaces the default cascade.
func WithRules(rules ...Rule) Option {
	return func(c *Classifier) { c.rules = rules }
}

// WithThresholds builds the default cascade from custom thresholds.
func WithThresholds(t Thresholds) Option {
	return func(c *Classifier) { c.rules = DefaultRules(t) }
}

func NewClassifier(opts ...Option) *Classifier {
	c := &Classifier{rules: DefaultRules(DefaultThresholds())}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Classify returns the regime of the first matching rule.
func (c *Classifier) Classify(m models.MetricsBundle) models.Regime {
	r, _ := c.Explain(m)
	return r
}

// Explain is Classify plus the name of the rule that fired.
func (c *Classifier) Explain(m models.MetricsBundle) (models.Regime, string) {
	for _, rule := range c.rules {
		if rule.Match(m) {
			return rule.Resolve(m), rule.Name
		}
	}
	// custom cascades without a catch-all fall back to a quiet range
	return models.WideRangeLowVolume, "fallback"
}
