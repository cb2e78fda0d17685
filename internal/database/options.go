package database

import (
	"time"

	"github.com/fedkv/sqlevel/pkg/kv"
	"github.com/fedkv/sqlevel/pkg/logger"
)

// DefaultReleaseGrace is how long a released connection stays alive waiting
// for a quick reopen before it is physically torn down. It is a tuning knob,
// not a semantic contract.
const DefaultReleaseGrace = 500 * time.Millisecond

type options struct {
	releaseGrace time.Duration
	encoding     kv.Encoding
	logger       *logger.Logger
	metrics      *Metrics
}

func newOptions(opts []Option) options {
	o := options{
		releaseGrace: DefaultReleaseGrace,
		encoding:     kv.EncodingUTF8,
	}
	for _, fn := range opts {
		fn(&o)
	}
	if o.logger == nil {
		o.logger = logger.New("sqlevel")
	}
	if o.metrics == nil {
		o.metrics = NewMetrics()
	}
	return o
}

// Option configures a Factory or Registry.
type Option func(*options)

// WithReleaseGrace sets the teardown grace delay for released connections.
func WithReleaseGrace(d time.Duration) Option {
	return func(o *options) { o.releaseGrace = d }
}

// WithEncoding sets the key/value encoding for every store the factory
// produces.
func WithEncoding(e kv.Encoding) Option {
	return func(o *options) { o.encoding = e }
}

// WithLogger injects the logger.
func WithLogger(l *logger.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithMetrics injects a shared metrics collector.
func WithMetrics(m *Metrics) Option {
	return func(o *options) { o.metrics = m }
}
