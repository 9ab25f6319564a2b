package options

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"

	"github.com/kiosk404/hivelink/internal/hivemind/service/stream"
)

type StreamOptions struct {
	IdleTimeout       time.Duration `json:"idle-timeout"        mapstructure:"idle-timeout"`
	MaxBufferedFrames int           `json:"max-buffered-frames" mapstructure:"max-buffered-frames"`
}

func NewStreamOptions() *StreamOptions {
	return &StreamOptions{
		IdleTimeout:       stream.DefaultIdleTimeout,
		MaxBufferedFrames: stream.DefaultMaxBufferedFrames,
	}
}

func (o *StreamOptions) Validate() []error {
	var errs []error
	if o.IdleTimeout <= 0 {
		errs = append(errs, fmt.Errorf("--stream.idle-timeout must be positive"))
	}
	if o.MaxBufferedFrames <= 0 {
		errs = append(errs, fmt.Errorf("--stream.max-buffered-frames must be positive"))
	}
	return errs
}

func (o *StreamOptions) AddFlags(fs *pflag.FlagSet) {
	fs.DurationVar(&o.IdleTimeout, "stream.idle-timeout", o.IdleTimeout, "How long a closed session stream is kept before eviction.")
	fs.IntVar(&o.MaxBufferedFrames, "stream.max-buffered-frames", o.MaxBufferedFrames, "Frames buffered for a session nobody is reading yet.")
}

func (o *StreamOptions) Config() stream.Config {
	return stream.Config{IdleTimeout: o.IdleTimeout, MaxBufferedFrames: o.MaxBufferedFrames}
}
