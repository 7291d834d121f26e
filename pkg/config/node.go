package config

import (
	"fmt"
	"net"
	"strconv"
	"time"
)

const (
	DefaultCacheSize        = 100
	DefaultCachePolicy      = "FIFO"
	DefaultMigrationTimeout = 5 * time.Minute
	DefaultControlTimeout   = 10 * time.Second
)

type Node struct {
	Logging `yaml:",inline"`

	Host         string `json:"host" toml:"host" yaml:"host"`
	Port         int    `json:"port" toml:"port" yaml:"port"`
	ReusePort    bool   `json:"reuse_port" toml:"reuse_port" yaml:"reuse_port"`
	CacheSize    int    `json:"cache_size" toml:"cache_size" yaml:"cache_size"`
	CachePolicy  string `json:"cache_policy" toml:"cache_policy" yaml:"cache_policy"`
	DataDir      string `json:"data_dir" toml:"data_dir" yaml:"data_dir"`
	// Clean truncates the data file on start.
	Clean        bool   `json:"clean" toml:"clean" yaml:"clean"`
	HashFunction string `json:"hash_function" toml:"hash_function" yaml:"hash_function"`

	// MigrationTimeout bounds one outbound lockWrite transfer loop.
	MigrationTimeout string `json:"migration_timeout" toml:"migration_timeout" yaml:"migration_timeout"`
	// PeerTimeout bounds one transfer roundtrip to the successor.
	PeerTimeout string `json:"peer_timeout" toml:"peer_timeout" yaml:"peer_timeout"`

	QDB QDB `json:"qdb" toml:"qdb" yaml:"qdb"`

	migrationTimeout time.Duration
	peerTimeout      time.Duration
}

func (n *Node) Addr() string {
	return net.JoinHostPort(n.Host, strconv.Itoa(n.Port))
}

func (n *Node) MigrationTimeoutDuration() time.Duration {
	return n.migrationTimeout
}

func (n *Node) PeerTimeoutDuration() time.Duration {
	return n.peerTimeout
}

// Validate fills defaults and checks the fields a node cannot run without.
func (n *Node) Validate() error {
	if n.Host == "" {
		n.Host = "127.0.0.1"
	}
	if n.Port < 0 || n.Port > 65535 {
		return fmt.Errorf("port %d out of range", n.Port)
	}
	if n.CacheSize == 0 {
		n.CacheSize = DefaultCacheSize
	}
	if n.CacheSize < 0 {
		return fmt.Errorf("cache size must be positive, got %d", n.CacheSize)
	}
	if n.CachePolicy == "" {
		n.CachePolicy = DefaultCachePolicy
	}

	var err error
	if n.migrationTimeout, err = parseDuration("migration_timeout", n.MigrationTimeout, DefaultMigrationTimeout); err != nil {
		return err
	}
	if n.peerTimeout, err = parseDuration("peer_timeout", n.PeerTimeout, DefaultControlTimeout); err != nil {
		return err
	}
	return n.QDB.applyDefaults()
}

// LoadNodeCfg reads a node config file. It returns the config and its JSON
// rendering for the startup log.
func LoadNodeCfg(cfgPath string) (*Node, string, error) {
	var cfg Node
	dump, err := loadFile(cfgPath, &cfg)
	if err != nil {
		return nil, "", err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", err
	}
	return &cfg, dump, nil
}
