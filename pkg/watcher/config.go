package watcher

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"

	"github.com/valkeykit/valkey-router/pkg/config"
)

const (
	// DefaultPollPeriod default topology polling period (ms)
	DefaultPollPeriod = 1000
)

// Config of the topology watcher
type Config struct {
	Cluster    config.Cluster
	ConfigFile string
	PollPeriod int
}

// NewConfig builds and returns a watcher Config
func NewConfig() *Config {
	return &Config{}
}

// AddFlags add the watcher flags to the command line
func (c *Config) AddFlags(fs *pflag.FlagSet) {
	c.Cluster.AddFlags(fs)
	fs.StringVar(&c.ConfigFile, "config", "", "yaml configuration file path, flags take precedence")
	fs.IntVar(&c.PollPeriod, "poll-period", DefaultPollPeriod, "topology polling period (ms)")
}

// GetPollPeriod return the polling period as a duration
func (c *Config) GetPollPeriod() time.Duration {
	return time.Duration(c.PollPeriod) * time.Millisecond
}

// String stringer interface
func (c Config) String() string {
	var output string
	output += c.Cluster.String()
	output += fmt.Sprintln("- PollPeriod:", c.PollPeriod)
	return output
}
