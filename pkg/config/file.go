package config

import (
	"fmt"
	"os"

	yaml "gopkg.in/yaml.v2"
)

// File on-disk representation of the cluster connection configuration.
// Values present in the file override the built-in defaults, command line
// flags override both.
type File struct {
	Addrs            []string `yaml:"addrs"`
	DialTimeout      int      `yaml:"dialTimeout"`
	TopologyCacheTTL int      `yaml:"topologyCacheTTL"`
	ClientName       string   `yaml:"clientName"`
	ListenAddr       string   `yaml:"listenAddr"`
}

// LoadFile reads the yaml configuration at filePath and applies it to the
// given Cluster configuration
func LoadFile(filePath string, c *Cluster) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("unable to read configuration file %s: %v", filePath, err)
	}
	file := File{}
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("unable to parse configuration file %s: %v", filePath, err)
	}
	if len(file.Addrs) > 0 {
		c.Addrs = file.Addrs
	}
	if file.DialTimeout != 0 {
		c.DialTimeout = file.DialTimeout
	}
	if file.TopologyCacheTTL != 0 {
		c.TopologyCacheTTL = file.TopologyCacheTTL
	}
	if file.ClientName != "" {
		c.ClientName = file.ClientName
	}
	if file.ListenAddr != "" {
		c.ListenAddr = file.ListenAddr
	}
	return nil
}
