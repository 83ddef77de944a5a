package vecflat

import (
	"log/slog"
	"runtime"

	"github.com/hupe1980/vecflat/internal/fs"
	"github.com/hupe1980/vecflat/persistence"
	"github.com/hupe1980/vecflat/resource"
)

// Compression selects the snapshot body codec.
type Compression = persistence.Compression

// Snapshot body codecs.
const (
	CompressionNone = persistence.CompressionNone
	CompressionLZ4  = persistence.CompressionLZ4
	CompressionZstd = persistence.CompressionZstd
)

type options struct {
	logger           *Logger
	metricsCollector MetricsCollector
	resources        *resource.Controller
	compression      Compression
	parallelism      int
	maxVectors       uint64
	initialCapacity  int
	mmap             bool
	fs               fs.FileSystem
}

// Option configures New and Load.
type Option func(*options)

// WithMetricsCollector configures a metrics collector for monitoring operations.
// Pass nil to disable metrics collection.
//
// Example with BasicMetricsCollector:
//
//	metrics := &vecflat.BasicMetricsCollector{}
//	idx, _ := vecflat.New(128, vecflat.WithMetricsCollector(metrics))
//	// ... use idx ...
//	stats := metrics.GetStats()
//	fmt.Printf("Searches: %d, Avg latency: %dns\n", stats.SearchCount, stats.SearchAvgNanos)
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		if mc == nil {
			mc = NoopMetricsCollector{}
		}
		o.metricsCollector = mc
	}
}

// WithLogger configures structured logging for operations.
// Pass nil to disable logging.
//
// Example with JSON logging:
//
//	logger := vecflat.NewJSONLogger(slog.LevelInfo)
//	idx, _ := vecflat.New(128, vecflat.WithLogger(logger))
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		if logger == nil {
			logger = NoopLogger()
		}
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
// Convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

// WithResourceController shares memory, worker and IO limits between indexes.
// Vector data is reserved against the memory limit before it is stored.
func WithResourceController(rc *resource.Controller) Option {
	return func(o *options) {
		o.resources = rc
	}
}

// WithCompression sets the codec used for snapshot bodies written by Save
// and SaveTo. Loading detects the codec from the snapshot header.
func WithCompression(c Compression) Option {
	return func(o *options) {
		o.compression = c
	}
}

// WithSearchParallelism bounds the goroutines used by one SearchBatch call.
// Values <= 0 select GOMAXPROCS.
func WithSearchParallelism(n int) Option {
	return func(o *options) {
		o.parallelism = n
	}
}

// WithMaxVectors rejects snapshots that hold more than n vectors as corrupt.
// Zero disables the check.
func WithMaxVectors(n uint64) Option {
	return func(o *options) {
		o.maxVectors = n
	}
}

// WithInitialCapacity preallocates room for n vectors.
func WithInitialCapacity(n int) Option {
	return func(o *options) {
		o.initialCapacity = n
	}
}

// WithMmap makes file loads read the snapshot through a read-only memory
// mapping instead of buffered reads. The mapping is released before Load returns.
func WithMmap(enabled bool) Option {
	return func(o *options) {
		o.mmap = enabled
	}
}

// withFileSystem replaces the filesystem used by Save, Load and LoadFile.
func withFileSystem(fsys fs.FileSystem) Option {
	return func(o *options) {
		o.fs = fsys
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		metricsCollector: NoopMetricsCollector{},
		logger:           NoopLogger(),
		fs:               fs.Default,
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	if o.parallelism <= 0 {
		o.parallelism = runtime.GOMAXPROCS(0)
	}
	return o
}
