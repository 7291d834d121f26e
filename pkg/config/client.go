package config

import (
	"fmt"
	"net"
	"strconv"
	"time"
)

const (
	DefaultRequestTimeout = 5 * time.Second
	DefaultMaxRedirects   = 16
)

type Client struct {
	Logging `yaml:",inline"`

	// Host and Port name the home node.
	Host         string `json:"host" toml:"host" yaml:"host"`
	Port         int    `json:"port" toml:"port" yaml:"port"`
	HashFunction string `json:"hash_function" toml:"hash_function" yaml:"hash_function"`
	// ReturnHome reconnects to the home node after a redirected request.
	ReturnHome     bool   `json:"return_home" toml:"return_home" yaml:"return_home"`
	RequestTimeout string `json:"request_timeout" toml:"request_timeout" yaml:"request_timeout"`
	MaxRedirects   int    `json:"max_redirects" toml:"max_redirects" yaml:"max_redirects"`

	requestTimeout time.Duration
}

func (c *Client) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

func (c *Client) RequestTimeoutDuration() time.Duration {
	return c.requestTimeout
}

func (c *Client) Validate() error {
	if c.Host == "" {
		c.Host = "127.0.0.1"
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Port)
	}
	if c.MaxRedirects == 0 {
		c.MaxRedirects = DefaultMaxRedirects
	}
	var err error
	c.requestTimeout, err = parseDuration("request_timeout", c.RequestTimeout, DefaultRequestTimeout)
	return err
}

func LoadClientCfg(cfgPath string) (*Client, string, error) {
	var cfg Client
	dump, err := loadFile(cfgPath, &cfg)
	if err != nil {
		return nil, "", err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", err
	}
	return &cfg, dump, nil
}
