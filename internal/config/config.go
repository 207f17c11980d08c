// Package config loads the bridge daemon's configuration file.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/banshee-data/motion.bridge/internal/egm"
)

// Config is the daemon's root configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Robot     RobotConfig     `mapstructure:"robot"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// ServerConfig defines the UDP listen socket.
type ServerConfig struct {
	// Address is the UDP listen address; the controller's EGM client is
	// pointed at it (default port 6510).
	Address string `mapstructure:"address"`
	// RcvBuf is the socket receive buffer in bytes (0 = system default).
	RcvBuf int `mapstructure:"rcv_buf"`
}

// RobotConfig defines the interface configuration for the robot.
type RobotConfig struct {
	Axes                int           `mapstructure:"axes"`
	UseDemoOutputs      bool          `mapstructure:"demo_outputs"`
	UseVelocityOutputs  bool          `mapstructure:"velocity_outputs"`
	UseCartesianOutputs bool          `mapstructure:"cartesian_outputs"`
	NominalSampleTime   time.Duration `mapstructure:"nominal_sample_time"`
	ConnectionTimeout   time.Duration `mapstructure:"connection_timeout"`
}

// TelemetryConfig defines the per-cycle logging sinks.
type TelemetryConfig struct {
	Enabled bool `mapstructure:"enabled"`
	// CSVPath, when set, logs cycles to a CSV file.
	CSVPath string `mapstructure:"csv_path"`
	// SQLitePath, when set, logs cycles to a sqlite database instead.
	SQLitePath string `mapstructure:"sqlite_path"`
	// Buffer is the async hand-off depth in records (0 = default).
	Buffer int `mapstructure:"buffer"`
	// MaxDuration caps how long each session is logged (0 = unlimited).
	MaxDuration time.Duration `mapstructure:"max_duration"`
}

// Load reads the configuration from file. An empty path searches the usual
// locations; a missing file yields the defaults.
func Load(configFile string) (*Config, error) {
	v := viper.New()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("egm-bridge")
		v.SetConfigType("yaml")
		v.AddConfigPath("/etc/egm-bridge/")
		v.AddConfigPath(".")
	}

	v.SetDefault("server.address", ":6510")
	v.SetDefault("robot.axes", 6)
	v.SetDefault("robot.nominal_sample_time", 4*time.Millisecond)
	v.SetDefault("robot.connection_timeout", 500*time.Millisecond)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// No file found: run on defaults.
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

// Interface maps the robot and telemetry sections onto the core's
// configuration value.
func (c *Config) Interface() egm.Configuration {
	return egm.Configuration{
		Axes:                egm.RobotAxes(c.Robot.Axes),
		UseDemoOutputs:      c.Robot.UseDemoOutputs,
		UseVelocityOutputs:  c.Robot.UseVelocityOutputs,
		UseCartesianOutputs: c.Robot.UseCartesianOutputs,
		UseLogging:          c.Telemetry.Enabled,
		MaxLoggingDuration:  c.Telemetry.MaxDuration,
		NominalSampleTime:   c.Robot.NominalSampleTime,
		ConnectionTimeout:   c.Robot.ConnectionTimeout,
	}
}
