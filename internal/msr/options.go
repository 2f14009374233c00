package msr

import (
	"os"
	"time"

	"codeberg.org/mutker/amdpower/internal/logger"
)

// Opener opens the register device at path for reading.
type Opener func(path string) (RegisterFile, error)

// Option configures OpenCore and New
type Option func(*options)

type options struct {
	devicePath   string
	topologyPath string
	maxCPUs      int
	opener       Opener
	logger       logger.Logger
	sleep        func(time.Duration)
	now          func() time.Time
}

func newOptions(opts ...Option) *options {
	o := &options{
		devicePath:   DefaultDevicePath,
		topologyPath: DefaultTopologyPath,
		maxCPUs:      DefaultMaxCPUs,
		opener:       openReadOnly,
		logger:       logger.Get(),
		sleep:        time.Sleep,
		now:          time.Now,
	}

	for _, opt := range opts {
		opt(o)
	}

	return o
}

// WithDevicePath sets the register device path template, e.g. "/dev/cpu/%d/msr"
func WithDevicePath(path string) Option {
	return func(o *options) {
		if path != "" {
			o.devicePath = path
		}
	}
}

// WithTopologyPath sets the physical_package_id path template
func WithTopologyPath(path string) Option {
	return func(o *options) {
		if path != "" {
			o.topologyPath = path
		}
	}
}

// WithMaxCPUs caps CPU enumeration
func WithMaxCPUs(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxCPUs = n
		}
	}
}

// WithOpener replaces the function used to open register devices
func WithOpener(opener Opener) Option {
	return func(o *options) {
		if opener != nil {
			o.opener = opener
		}
	}
}

// WithLogger sets the logger used for diagnostics
func WithLogger(log logger.Logger) Option {
	return func(o *options) {
		if log != nil {
			o.logger = log
		}
	}
}

func openReadOnly(path string) (RegisterFile, error) {
	return os.OpenFile(path, os.O_RDONLY, 0)
}
