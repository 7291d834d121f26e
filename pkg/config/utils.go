package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v2"
)

// initConfig decodes file into target according to the file suffix.
func initConfig(file *os.File, target any) error {
	name := file.Name()
	switch {
	case strings.HasSuffix(name, ".toml"):
		_, err := toml.NewDecoder(file).Decode(target)
		return err
	case strings.HasSuffix(name, ".yaml"), strings.HasSuffix(name, ".yml"):
		return yaml.NewDecoder(file).Decode(target)
	case strings.HasSuffix(name, ".json"):
		return json.NewDecoder(file).Decode(target)
	}
	return fmt.Errorf("unknown config format type: %s. Use .toml, .yaml or .json suffix in filename", name)
}

func loadFile(cfgPath string, target any) (string, error) {
	file, err := os.Open(cfgPath)
	if err != nil {
		return "", err
	}
	defer file.Close()

	if err := initConfig(file, target); err != nil {
		return "", err
	}

	configBytes, err := json.MarshalIndent(target, "", "  ")
	if err != nil {
		return "", err
	}
	return string(configBytes), nil
}

// Dump renders a config for the startup log.
func Dump(cfg any) string {
	configBytes, err := json.Marshal(cfg)
	if err != nil {
		return "{}"
	}
	return string(configBytes)
}

// parseDuration reads a Go duration string, falling back to def when empty.
func parseDuration(field, value string, def time.Duration) (time.Duration, error) {
	if value == "" {
		return def, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", field, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %s", field, value)
	}
	return d, nil
}

type QDB struct {
	// Type is "mem" for a file backed directory or "etcd".
	Type string `json:"type" toml:"type" yaml:"type"`
	Addr string `json:"addr" toml:"addr" yaml:"addr"`
	// BackupPath is the file shared by every process of a "mem" cluster.
	BackupPath   string `json:"backup_path" toml:"backup_path" yaml:"backup_path"`
	MetadataPath string `json:"metadata_path" toml:"metadata_path" yaml:"metadata_path"`
}

const (
	QDBTypeMem  = "mem"
	QDBTypeEtcd = "etcd"

	DefaultMetadataPath = "/ringkv/metadata"
)

func (q *QDB) applyDefaults() error {
	if q.Type == "" {
		q.Type = QDBTypeMem
	}
	if q.MetadataPath == "" {
		q.MetadataPath = DefaultMetadataPath
	}
	switch q.Type {
	case QDBTypeMem:
	case QDBTypeEtcd:
		if q.Addr == "" {
			return fmt.Errorf("qdb addr is required for etcd")
		}
	default:
		return fmt.Errorf("unknown qdb type %q", q.Type)
	}
	return nil
}

type Logging struct {
	LogLevel      string `json:"log_level" toml:"log_level" yaml:"log_level"`
	LogFile       string `json:"log_file" toml:"log_file" yaml:"log_file"`
	PrettyLogging bool   `json:"pretty_logging" toml:"pretty_logging" yaml:"pretty_logging"`
}
