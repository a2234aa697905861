// Package config loads the daemon's YAML configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sweeney/power-monitor/internal/gpio"
	"github.com/sweeney/power-monitor/internal/history"
	"github.com/sweeney/power-monitor/internal/logging"
	"github.com/sweeney/power-monitor/internal/logic"
	"github.com/sweeney/power-monitor/internal/notify"
)

// Transport names accepted in notify.transport.
const (
	TransportMQTT     = "mqtt"
	TransportTelegram = "telegram"
	TransportLog      = "log"
)

// DefaultPath is where the daemon looks for its configuration.
const DefaultPath = "/etc/power-monitor/config.yaml"

// Config represents the configuration file structure.
type Config struct {
	GPIO struct {
		Chip      string `yaml:"chip"`
		Line      int    `yaml:"line"`
		ActiveLow bool   `yaml:"active_low"`
	} `yaml:"gpio"`

	Poll struct {
		Interval time.Duration `yaml:"interval"`
	} `yaml:"poll"`

	Storage struct {
		Dir         string `yaml:"dir"`
		CellFile    string `yaml:"cell_file"`
		CellSize    int    `yaml:"cell_size"`
		CellAddr    int    `yaml:"cell_addr"`
		LogFile     string `yaml:"log_file"`
		LogCapacity int    `yaml:"log_capacity"`
	} `yaml:"storage"`

	Clock struct {
		// MinValid is an RFC3339 time. Earlier system times are treated as
		// an unset clock.
		MinValid string `yaml:"min_valid"`
	} `yaml:"clock"`

	Notify struct {
		Transport string        `yaml:"transport"`
		Timeout   time.Duration `yaml:"timeout"`
		Breaker   struct {
			MaxFailures uint32        `yaml:"max_failures"`
			OpenTimeout time.Duration `yaml:"open_timeout"`
		} `yaml:"breaker"`
	} `yaml:"notify"`

	MQTT struct {
		Broker         string `yaml:"broker"`
		ClientID       string `yaml:"client_id"`
		Topic          string `yaml:"topic"`
		Username       string `yaml:"username"`
		Password       string `yaml:"password"`
		ConnectRetries int    `yaml:"connect_retries"`
	} `yaml:"mqtt"`

	Telegram struct {
		APIURL string `yaml:"api_url"`
		Token  string `yaml:"token"`
		ChatID string `yaml:"chat_id"`
	} `yaml:"telegram"`

	Messages struct {
		PowerOn      string `yaml:"power_on"`
		PowerOff     string `yaml:"power_off"`
		WithPower    string `yaml:"with_power"`
		WithoutPower string `yaml:"without_power"`
	} `yaml:"messages"`

	HTTP struct {
		Addr string `yaml:"addr"`
	} `yaml:"http"`

	Log logging.Config `yaml:"log"`
}

// Default returns a Config with every field set.
func Default() *Config {
	var c Config

	c.GPIO.Chip = gpio.DefaultChip
	c.GPIO.Line = gpio.DefaultLine

	c.Poll.Interval = 5 * time.Second

	c.Storage.Dir = "/var/lib/power-monitor"
	c.Storage.CellFile = "cell.bin"
	c.Storage.CellSize = 16
	c.Storage.CellAddr = 8
	c.Storage.LogFile = "timestamps.txt"
	c.Storage.LogCapacity = history.DefaultCapacity

	c.Clock.MinValid = "2020-01-01T00:00:00Z"

	c.Notify.Transport = TransportMQTT
	c.Notify.Timeout = 25 * time.Second
	c.Notify.Breaker.MaxFailures = 3
	c.Notify.Breaker.OpenTimeout = time.Minute

	c.MQTT.Broker = "tcp://192.168.1.200:1883"
	c.MQTT.ClientID = "power-monitor"
	c.MQTT.Topic = notify.DefaultTopic
	c.MQTT.ConnectRetries = 5

	c.Telegram.APIURL = notify.DefaultTelegramAPI

	t := logic.DefaultTexts()
	c.Messages.PowerOn = t.PowerOn
	c.Messages.PowerOff = t.PowerOff
	c.Messages.WithPower = t.WithPower
	c.Messages.WithoutPower = t.WithoutPower

	c.HTTP.Addr = ":80"

	c.Log.Level = "info"
	c.Log.Output = "stdout"

	return &c
}

// Load reads path over the defaults. A missing file yields the defaults.
// The result is validated.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("read config file: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports the first invalid field.
func (c *Config) Validate() error {
	if c.GPIO.Line < 0 {
		return fmt.Errorf("gpio.line must not be negative")
	}
	if c.Poll.Interval <= 0 {
		return fmt.Errorf("poll.interval must be positive")
	}
	if c.Storage.Dir == "" {
		return fmt.Errorf("storage.dir is required")
	}
	if c.Storage.CellFile == "" || c.Storage.LogFile == "" {
		return fmt.Errorf("storage.cell_file and storage.log_file are required")
	}
	if c.Storage.CellAddr < 0 || c.Storage.CellAddr >= c.Storage.CellSize {
		return fmt.Errorf("storage.cell_addr %d outside cell_size %d", c.Storage.CellAddr, c.Storage.CellSize)
	}
	if c.Storage.LogCapacity < 1 {
		return fmt.Errorf("storage.log_capacity must be at least 1")
	}
	if _, err := c.MinValid(); err != nil {
		return err
	}
	if c.Notify.Timeout < 0 {
		return fmt.Errorf("notify.timeout must not be negative")
	}

	switch c.Notify.Transport {
	case TransportMQTT:
		if c.MQTT.Broker == "" {
			return fmt.Errorf("mqtt.broker is required")
		}
		if c.MQTT.Topic == "" {
			return fmt.Errorf("mqtt.topic is required")
		}
	case TransportTelegram:
		if c.Telegram.Token == "" || c.Telegram.ChatID == "" {
			return fmt.Errorf("telegram.token and telegram.chat_id are required")
		}
	case TransportLog:
	default:
		return fmt.Errorf("notify.transport %q: want %s, %s or %s",
			c.Notify.Transport, TransportMQTT, TransportTelegram, TransportLog)
	}
	return nil
}

// MinValid parses clock.min_valid.
func (c *Config) MinValid() (time.Time, error) {
	t, err := time.Parse(time.RFC3339, c.Clock.MinValid)
	if err != nil {
		return time.Time{}, fmt.Errorf("clock.min_valid: %w", err)
	}
	return t, nil
}

// Texts returns the notification wording.
func (c *Config) Texts() logic.Texts {
	return logic.Texts{
		PowerOn:      c.Messages.PowerOn,
		PowerOff:     c.Messages.PowerOff,
		WithPower:    c.Messages.WithPower,
		WithoutPower: c.Messages.WithoutPower,
	}
}

// CellPath returns the full path of the cell file.
func (c *Config) CellPath() string {
	return filepath.Join(c.Storage.Dir, c.Storage.CellFile)
}

// Target describes where notifications go, for status output.
func (c *Config) Target() string {
	switch c.Notify.Transport {
	case TransportMQTT:
		return c.MQTT.Broker
	case TransportTelegram:
		return "telegram:" + c.Telegram.ChatID
	default:
		return ""
	}
}
