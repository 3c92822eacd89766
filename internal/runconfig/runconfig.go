// Package runconfig loads the YAML driver/alias configuration file and the
// .env credential overlay that together resolve a short connection name
// into a full jdbc: URL.
package runconfig

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Driver describes how to reach one dialect: the JDBC class/jar the
// original engine needed, kept here for documentation and DESIGN.md
// traceability, plus the URL template used to build a full jdbc: URL from
// an alias's host/database shorthand.
type Driver struct {
	Jar         string `yaml:"jar"`
	Class       string `yaml:"class"`
	URLTemplate string `yaml:"url"`
}

// Config is the parsed contents of a connections.yaml file.
type Config struct {
	Drivers map[string]Driver `yaml:"drivers"`
	Aliases map[string]string `yaml:"aliases"`
}

// ConfigurationError reports a malformed or incomplete configuration file.
type ConfigurationError struct {
	Path string
	Msg  string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("runconfig: %s: %s", e.Path, e.Msg)
}

// Load reads and validates the YAML config at path. Every alias must name a
// dialect with a registered driver, and every driver must carry a jar,
// class, and URL template.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("runconfig: read %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, &ConfigurationError{Path: path, Msg: "invalid YAML: " + err.Error()}
	}

	for name, d := range cfg.Drivers {
		if d.Jar == "" || d.Class == "" || d.URLTemplate == "" {
			return nil, &ConfigurationError{Path: path, Msg: fmt.Sprintf("driver %q is missing jar, class, or url", name)}
		}
	}

	return &cfg, nil
}

// LoadEnv loads credential overlays from a .env file at path, exporting
// them into the process environment so alias expansion can reference them.
// A missing file is not an error — credentials may come from the real
// environment instead.
func LoadEnv(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("runconfig: load env %s: %w", path, err)
	}
	return nil
}

// Resolve expands a connection name into its full jdbc: URL. name is
// first looked up as an alias; if it is not an alias, it is returned
// unchanged so a caller can pass a literal jdbc: URL straight through.
func (c *Config) Resolve(name string) (string, error) {
	if url, ok := c.Aliases[name]; ok {
		return os.ExpandEnv(url), nil
	}
	return os.ExpandEnv(name), nil
}

// Driver looks up the driver configuration for dialect, reporting whether
// one was registered.
func (c *Config) Driver(dialect string) (Driver, bool) {
	d, ok := c.Drivers[dialect]
	return d, ok
}
