package config

import (
	"bufio"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultLaunchTimeout = 30 * time.Second
	DefaultConsolePort   = 7000
)

// PoolEntry is one pre-provisioned storage node slot.
type PoolEntry struct {
	Name string `json:"name" toml:"name" yaml:"name"`
	Host string `json:"host" toml:"host" yaml:"host"`
	Port int    `json:"port" toml:"port" yaml:"port"`
}

func (p PoolEntry) Addr() string {
	return net.JoinHostPort(p.Host, strconv.Itoa(p.Port))
}

type Coordinator struct {
	Logging `yaml:",inline"`

	Host         string `json:"host" toml:"host" yaml:"host"`
	ConsolePort  int    `json:"console_port" toml:"console_port" yaml:"console_port"`
	ReusePort    bool   `json:"reuse_port" toml:"reuse_port" yaml:"reuse_port"`
	HashFunction string `json:"hash_function" toml:"hash_function" yaml:"hash_function"`

	QDB QDB `json:"qdb" toml:"qdb" yaml:"qdb"`

	Pool []PoolEntry `json:"pool" toml:"pool" yaml:"pool"`
	// PoolFile lists extra slots as "name host port" lines.
	PoolFile string `json:"pool_file" toml:"pool_file" yaml:"pool_file"`

	// NodeBinary is executed to start a storage node process. Empty means
	// nodes are started out of band and only probed for readiness.
	NodeBinary  string   `json:"node_binary" toml:"node_binary" yaml:"node_binary"`
	NodeArgs    []string `json:"node_args" toml:"node_args" yaml:"node_args"`
	NodeDataDir string   `json:"node_data_dir" toml:"node_data_dir" yaml:"node_data_dir"`
	NodeLogDir  string   `json:"node_log_dir" toml:"node_log_dir" yaml:"node_log_dir"`

	DefaultCacheSize   int    `json:"default_cache_size" toml:"default_cache_size" yaml:"default_cache_size"`
	DefaultCachePolicy string `json:"default_cache_policy" toml:"default_cache_policy" yaml:"default_cache_policy"`

	ControlTimeout   string `json:"control_timeout" toml:"control_timeout" yaml:"control_timeout"`
	MigrationTimeout string `json:"migration_timeout" toml:"migration_timeout" yaml:"migration_timeout"`
	LaunchTimeout    string `json:"launch_timeout" toml:"launch_timeout" yaml:"launch_timeout"`

	controlTimeout   time.Duration
	migrationTimeout time.Duration
	launchTimeout    time.Duration
}

func (c *Coordinator) ConsoleAddr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.ConsolePort))
}

func (c *Coordinator) ControlTimeoutDuration() time.Duration {
	return c.controlTimeout
}

func (c *Coordinator) MigrationTimeoutDuration() time.Duration {
	return c.migrationTimeout
}

func (c *Coordinator) LaunchTimeoutDuration() time.Duration {
	return c.launchTimeout
}

// Validate fills defaults, merges the pool file and checks the pool.
func (c *Coordinator) Validate() error {
	if c.Host == "" {
		c.Host = "127.0.0.1"
	}
	if c.ConsolePort == 0 {
		c.ConsolePort = DefaultConsolePort
	}
	if c.DefaultCacheSize == 0 {
		c.DefaultCacheSize = DefaultCacheSize
	}
	if c.DefaultCachePolicy == "" {
		c.DefaultCachePolicy = DefaultCachePolicy
	}

	var err error
	if c.controlTimeout, err = parseDuration("control_timeout", c.ControlTimeout, DefaultControlTimeout); err != nil {
		return err
	}
	if c.migrationTimeout, err = parseDuration("migration_timeout", c.MigrationTimeout, DefaultMigrationTimeout); err != nil {
		return err
	}
	if c.launchTimeout, err = parseDuration("launch_timeout", c.LaunchTimeout, DefaultLaunchTimeout); err != nil {
		return err
	}

	if c.PoolFile != "" {
		entries, err := LoadNodePool(c.PoolFile)
		if err != nil {
			return err
		}
		c.Pool = append(c.Pool, entries...)
		c.PoolFile = ""
	}

	seen := map[string]bool{}
	for _, e := range c.Pool {
		if e.Host == "" || e.Port <= 0 || e.Port > 65535 {
			return fmt.Errorf("pool entry %q has invalid address %s", e.Name, e.Addr())
		}
		if seen[e.Addr()] {
			return fmt.Errorf("pool address %s listed twice", e.Addr())
		}
		seen[e.Addr()] = true
	}
	return c.QDB.applyDefaults()
}

// LoadCoordinatorCfg reads a coordinator config file. It returns the config
// and its JSON rendering for the startup log.
func LoadCoordinatorCfg(cfgPath string) (*Coordinator, string, error) {
	var cfg Coordinator
	dump, err := loadFile(cfgPath, &cfg)
	if err != nil {
		return nil, "", err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", err
	}
	return &cfg, dump, nil
}

// LoadNodePool reads "name host port" lines. Blank lines and lines starting
// with '#' are skipped.
func LoadNodePool(path string) ([]PoolEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var ret []PoolEntry
	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 3 {
			return nil, fmt.Errorf("%s:%d: expected \"name host port\"", path, lineNo)
		}
		port, err := strconv.Atoi(fields[2])
		if err != nil {
			return nil, fmt.Errorf("%s:%d: bad port: %w", path, lineNo, err)
		}
		ret = append(ret, PoolEntry{Name: fields[0], Host: fields[1], Port: port})
	}
	return ret, scanner.Err()
}
