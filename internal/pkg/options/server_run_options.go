package options

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/pflag"
)

// ServerRunOptions contains the options for running the generic api server.
type ServerRunOptions struct {
	BindAddress     string        `json:"bind-address"     mapstructure:"bind-address"`
	BindPort        int           `json:"bind-port"        mapstructure:"bind-port"`
	Mode            string        `json:"mode"             mapstructure:"mode"`
	Healthz         bool          `json:"healthz"          mapstructure:"healthz"`
	EnableProfiling bool          `json:"enable-profiling" mapstructure:"enable-profiling"`
	ShutdownTimeout time.Duration `json:"shutdown-timeout" mapstructure:"shutdown-timeout"`
}

// NewServerRunOptions creates a new ServerRunOptions object with default parameters.
func NewServerRunOptions() *ServerRunOptions {
	return &ServerRunOptions{
		BindAddress:     "127.0.0.1",
		BindPort:        11788,
		Mode:            gin.ReleaseMode,
		Healthz:         true,
		ShutdownTimeout: 10 * time.Second,
	}
}

// Address returns host:port.
func (s *ServerRunOptions) Address() string {
	return fmt.Sprintf("%s:%d", s.BindAddress, s.BindPort)
}

// Validate checks validation of ServerRunOptions.
func (s *ServerRunOptions) Validate() []error {
	var errs []error
	if s.BindPort < 0 || s.BindPort > 65535 {
		errs = append(errs, fmt.Errorf("--serving.bind-port %d must be between 0 and 65535", s.BindPort))
	}
	switch s.Mode {
	case gin.DebugMode, gin.ReleaseMode, gin.TestMode:
	default:
		errs = append(errs, fmt.Errorf("--serving.mode %q must be one of debug, release, test", s.Mode))
	}
	return errs
}

// AddFlags adds flags for a specific APIServer to the specified FlagSet.
func (s *ServerRunOptions) AddFlags(fs *pflag.FlagSet) {
	fs.StringVar(&s.BindAddress, "serving.bind-address", s.BindAddress, "The IP address on which to serve the HTTP API.")
	fs.IntVar(&s.BindPort, "serving.bind-port", s.BindPort, "The port on which to serve the HTTP API.")
	fs.StringVar(&s.Mode, "serving.mode", s.Mode, "Gin mode: debug, release or test.")
	fs.BoolVar(&s.Healthz, "serving.healthz", s.Healthz, "Add self readiness check and install /healthz router.")
	fs.BoolVar(&s.EnableProfiling, "serving.enable-profiling", s.EnableProfiling, "Enable profiling via web interface host:port/debug/pprof/.")
	fs.DurationVar(&s.ShutdownTimeout, "serving.shutdown-timeout", s.ShutdownTimeout, "How long to wait for in-flight requests on shutdown.")
}
