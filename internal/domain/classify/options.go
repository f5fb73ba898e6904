package classify

// Option applies a configuration option to the Classifier.
type Option func(*Classifier)

// WithWeights sets the three factor weights. Weights must be non-negative;
// invalid sets are ignored and the defaults kept.
func WithWeights(threat, location, driver float64) Option {
	return func(c *Classifier) {
		if threat < 0 || location < 0 || driver < 0 {
			return
		}
		c.threatWeight = threat
		c.locationWeight = location
		c.driverWeight = driver
	}
}

// WithThresholds sets the medium and high band boundaries.
// Requires 0 < medium < high <= 100; invalid sets are ignored.
func WithThresholds(medium, high float64) Option {
	return func(c *Classifier) {
		if medium <= 0 || medium >= high || high > maxScore {
			return
		}
		c.mediumThreshold = medium
		c.highThreshold = high
	}
}

// WithRounding sets the rounding rule for the weighted total.
func WithRounding(r Rounding) Option {
	return func(c *Classifier) {
		if r == RoundNearest || r == RoundFloor {
			c.rounding = r
		}
	}
}
