package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Драйверы колонки.
const (
	DriverKEF    = "kef"
	DriverMemory = "memory"
)

// Config описывает параметры kefctl.
type Config struct {
	Speaker struct {
		Address    string  `yaml:"address"`
		Port       int     `yaml:"port"`
		Driver     string  `yaml:"driver"`
		TimeoutMS  int     `yaml:"timeout_ms"`
		VolumeStep float64 `yaml:"volume_step"`
		MaxVolume  float64 `yaml:"max_volume"`
	} `yaml:"speaker"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
	Security struct {
		// AllowedCommands ограничивает команды по фасаду (cli, web, mqtt).
		AllowedCommands map[string][]string `yaml:"allowed_commands"`
	} `yaml:"security"`
	SQLite struct {
		Path string `yaml:"path"`
	} `yaml:"sqlite"`
	Scheduler struct {
		IntervalSeconds int `yaml:"interval_seconds"`
	} `yaml:"scheduler"`
	Web struct {
		Enabled          bool   `yaml:"enabled"`
		ListenAddr       string `yaml:"listen_addr"`
		ReadTimeoutMS    int    `yaml:"read_timeout_ms"`
		WriteTimeoutMS   int    `yaml:"write_timeout_ms"`
		ShutdownTimeoutS int    `yaml:"shutdown_timeout_s"`
		MaxBodyBytes     int64  `yaml:"max_body_bytes"`
	} `yaml:"web"`
	MQTT struct {
		Enabled     bool   `yaml:"enabled"`
		Broker      string `yaml:"broker"`
		ClientID    string `yaml:"client_id"`
		Username    string `yaml:"username"`
		Password    string `yaml:"password"`
		TopicPrefix string `yaml:"topic_prefix"`
		QoS         byte   `yaml:"qos"`
	} `yaml:"mqtt"`
}

// Default возвращает конфигурацию по умолчанию.
func Default() Config {
	var cfg Config
	cfg.Speaker.Address = "192.168.4.47"
	cfg.Speaker.Port = 50001
	cfg.Speaker.Driver = DriverKEF
	cfg.Speaker.TimeoutMS = 2000
	cfg.Speaker.VolumeStep = 0.05
	cfg.Speaker.MaxVolume = 1
	cfg.Log.Level = "info"
	cfg.Log.Format = "json"
	cfg.Scheduler.IntervalSeconds = 0
	cfg.Web.Enabled = true
	cfg.Web.ListenAddr = "0.0.0.0:50000"
	cfg.Web.ReadTimeoutMS = 5000
	cfg.Web.WriteTimeoutMS = 30000
	cfg.Web.ShutdownTimeoutS = 5
	cfg.Web.MaxBodyBytes = 64 << 10
	cfg.MQTT.Broker = "tcp://127.0.0.1:1883"
	cfg.MQTT.ClientID = "kefctl"
	cfg.MQTT.TopicPrefix = "kefctl"
	cfg.MQTT.QoS = 1
	return cfg
}

// Load читает конфиг из файла YAML поверх значений по умолчанию.
// Ссылки вида ${VAR} раскрываются из окружения до разбора.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path) // #nosec G304 -- путь к конфигу задается оператором.
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if len(data) == 0 {
		return cfg, errors.New("config file is empty")
	}
	expanded := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate проверяет согласованность значений.
func (c Config) Validate() error {
	var errs []error
	switch c.Speaker.Driver {
	case DriverKEF:
		if strings.TrimSpace(c.Speaker.Address) == "" {
			errs = append(errs, errors.New("speaker.address is required for the kef driver"))
		}
	case DriverMemory:
	default:
		errs = append(errs, fmt.Errorf("speaker.driver %q is not supported", c.Speaker.Driver))
	}
	if c.Speaker.Port <= 0 || c.Speaker.Port > 65535 {
		errs = append(errs, fmt.Errorf("speaker.port %d is out of range", c.Speaker.Port))
	}
	if c.Speaker.VolumeStep <= 0 || c.Speaker.VolumeStep > 1 {
		errs = append(errs, fmt.Errorf("speaker.volume_step %v must be in (0, 1]", c.Speaker.VolumeStep))
	}
	if c.Speaker.MaxVolume <= 0 || c.Speaker.MaxVolume > 1 {
		errs = append(errs, fmt.Errorf("speaker.max_volume %v must be in (0, 1]", c.Speaker.MaxVolume))
	}
	if c.Scheduler.IntervalSeconds < 0 {
		errs = append(errs, errors.New("scheduler.interval_seconds must not be negative"))
	}
	if c.MQTT.QoS > 2 {
		errs = append(errs, fmt.Errorf("mqtt.qos %d must be 0, 1 or 2", c.MQTT.QoS))
	}
	if c.MQTT.Enabled && strings.TrimSpace(c.MQTT.Broker) == "" {
		errs = append(errs, errors.New("mqtt.broker is required when mqtt is enabled"))
	}
	return errors.Join(errs...)
}
