package dispatch

import "time"

// Config controls asynchronous notification delivery.
type Config struct {
	Workers      int           `yaml:"workers"`
	QueueSize    int           `yaml:"queue_size"`
	SendTimeout  time.Duration `yaml:"send_timeout"`
	MaxAttempts  int           `yaml:"max_attempts"`
	InitialDelay time.Duration `yaml:"initial_delay"`
	MaxDelay     time.Duration `yaml:"max_delay"`
}

// WithDefaults fills zero fields.
func (c Config) WithDefaults() Config {
	if c.Workers <= 0 {
		c.Workers = 2
	}
	if c.QueueSize <= 0 {
		c.QueueSize = 256
	}
	if c.SendTimeout <= 0 {
		c.SendTimeout = 10 * time.Second
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 5
	}
	if c.InitialDelay <= 0 {
		c.InitialDelay = 2 * time.Second
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = 60 * time.Second
	}
	return c
}

// Backoff builds the retry strategy described by c.
func (c Config) Backoff() *ExponentialBackoff {
	return &ExponentialBackoff{
		InitialDelay: c.InitialDelay,
		MaxDelay:     c.MaxDelay,
		MaxAttempts:  c.MaxAttempts,
		Classifier:   ClassifyNotifyError,
	}
}
