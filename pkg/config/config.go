// Package config holds the configuration of a stopwait endpoint.
package config

import (
	"net"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
	"github.com/skycoin/skycoin/src/util/logging"
	"github.com/spf13/viper"

	"github.com/skycoin/stopwait/pkg/arq"
	"github.com/skycoin/stopwait/pkg/impair"
	"github.com/skycoin/stopwait/pkg/session"
	"github.com/skycoin/stopwait/pkg/transferlog"
)

// Version is the current config format version.
const Version = "1.0"

// EnvPrefix prefixes environment overrides, e.g. STOPWAIT_DATA_LOSS_RATE.
const EnvPrefix = "STOPWAIT"

// EnvConfigPath names the environment variable holding the config path.
const EnvConfigPath = EnvPrefix + "_CONFIG"

// DefaultAddr is the receiver address both ends use by default.
const DefaultAddr = "localhost:12000"

// MaxFragmentSize is the largest payload that fits one UDP datagram.
const MaxFragmentSize = arq.MaxDatagramSize - arq.DataHeaderLen

// DefaultTransferLogDir is where transfers are recorded unless configured
// otherwise, relative to the working directory.
const DefaultTransferLogDir = "transfers"

var log = logging.MustGetLogger("config")

// Config defines configuration parameters of a sender or receiver.
type Config struct {
	Version string `json:"version" mapstructure:"version"`

	LocalAddr  string `json:"local_addr" mapstructure:"local_addr"`   // address the receiver binds to
	RemoteAddr string `json:"remote_addr" mapstructure:"remote_addr"` // address the sender sends to

	FragmentSize int `json:"fragment_size" mapstructure:"fragment_size"`

	DataCorruptionRate float64 `json:"data_corruption_rate" mapstructure:"data_corruption_rate"`
	DataLossRate       float64 `json:"data_loss_rate" mapstructure:"data_loss_rate"`
	AckCorruptionRate  float64 `json:"ack_corruption_rate" mapstructure:"ack_corruption_rate"`
	AckLossRate        float64 `json:"ack_loss_rate" mapstructure:"ack_loss_rate"`

	RetransmitTimeout Duration `json:"retransmit_timeout" mapstructure:"retransmit_timeout"` // 0 disables the timer
	MaxRetransmits    int      `json:"max_retransmits" mapstructure:"max_retransmits"`       // 0 is unbounded
	Linger            Duration `json:"linger" mapstructure:"linger"`

	OutputDir   string             `json:"output_dir" mapstructure:"output_dir"`
	OutputName  string             `json:"output_name" mapstructure:"output_name"`
	TransferLog transferlog.Config `json:"transfer_log" mapstructure:"transfer_log"`
	HTTPAddr    string             `json:"http_addr" mapstructure:"http_addr"` // empty disables the HTTP API

	LogLevel string `json:"log_level" mapstructure:"log_level"`
}

// Default returns the configuration of the reference setup: a clean
// channel, 1000 byte fragments and no timers. Transfers are recorded as
// JSON files under DefaultTransferLogDir so separate runs can list them.
func Default() *Config {
	return &Config{
		Version:      Version,
		LocalAddr:    DefaultAddr,
		RemoteAddr:   DefaultAddr,
		FragmentSize: session.DefaultFragmentSize,
		OutputDir:    ".",
		TransferLog:  transferlog.Config{Type: transferlog.TypeFile, Location: DefaultTransferLogDir},
		LogLevel:     "info",
	}
}

func setDefaults(v *viper.Viper, conf *Config) {
	v.SetDefault("version", conf.Version)
	v.SetDefault("local_addr", conf.LocalAddr)
	v.SetDefault("remote_addr", conf.RemoteAddr)
	v.SetDefault("fragment_size", conf.FragmentSize)
	v.SetDefault("data_corruption_rate", conf.DataCorruptionRate)
	v.SetDefault("data_loss_rate", conf.DataLossRate)
	v.SetDefault("ack_corruption_rate", conf.AckCorruptionRate)
	v.SetDefault("ack_loss_rate", conf.AckLossRate)
	v.SetDefault("retransmit_timeout", conf.RetransmitTimeout.String())
	v.SetDefault("max_retransmits", conf.MaxRetransmits)
	v.SetDefault("linger", conf.Linger.String())
	v.SetDefault("output_dir", conf.OutputDir)
	v.SetDefault("output_name", conf.OutputName)
	v.SetDefault("transfer_log.type", conf.TransferLog.Type)
	v.SetDefault("transfer_log.location", conf.TransferLog.Location)
	v.SetDefault("http_addr", conf.HTTPAddr)
	v.SetDefault("log_level", conf.LogLevel)
}

// Load reads the config file at path on top of Default and applies
// STOPWAIT_* environment overrides. An empty path loads defaults and the
// environment only.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v, Default())
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("json")
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "failed to read config %s", path)
		}
		log.Infof("loaded config from %s", path)
	}

	conf := &Config{}
	err := v.Unmarshal(conf, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		durationHook(),
		mapstructure.StringToTimeDurationHookFunc(),
	)))
	if err != nil {
		return nil, errors.Wrap(err, "failed to decode config")
	}
	return conf, nil
}

// Validate checks every field for a usable value.
func (c *Config) Validate() error {
	rates := []struct {
		name string
		val  float64
	}{
		{"data_corruption_rate", c.DataCorruptionRate},
		{"data_loss_rate", c.DataLossRate},
		{"ack_corruption_rate", c.AckCorruptionRate},
		{"ack_loss_rate", c.AckLossRate},
	}
	for _, r := range rates {
		if err := impair.ValidateRate(r.val); err != nil {
			return errors.Wrap(err, r.name)
		}
	}
	if c.DataCorruptionRate+c.DataLossRate > 1 {
		return errors.New("data_corruption_rate + data_loss_rate exceeds 1")
	}
	if c.AckCorruptionRate+c.AckLossRate > 1 {
		return errors.New("ack_corruption_rate + ack_loss_rate exceeds 1")
	}

	if c.FragmentSize <= 0 || c.FragmentSize > MaxFragmentSize {
		return errors.Errorf("fragment_size %d is outside [1, %d]", c.FragmentSize, MaxFragmentSize)
	}
	if c.RetransmitTimeout < 0 {
		return errors.New("retransmit_timeout is negative")
	}
	if c.MaxRetransmits < 0 {
		return errors.New("max_retransmits is negative")
	}
	if c.Linger < 0 {
		return errors.New("linger is negative")
	}

	for name, addr := range map[string]string{
		"local_addr":  c.LocalAddr,
		"remote_addr": c.RemoteAddr,
		"http_addr":   c.HTTPAddr,
	} {
		if addr == "" {
			continue
		}
		if _, _, err := net.SplitHostPort(addr); err != nil {
			return errors.Wrap(err, name)
		}
	}
	return nil
}

// Stalls reports whether a loss rate is configured without a retransmit
// timeout, in which case the first lost datagram stalls the transfer.
func (c *Config) Stalls() bool {
	return (c.DataLossRate > 0 || c.AckLossRate > 0) && c.RetransmitTimeout == 0
}

// SendOptions returns the session options of the sending end.
func (c *Config) SendOptions() session.SendOptions {
	return session.SendOptions{
		FragmentSize:      c.FragmentSize,
		DataCorruptRate:   c.DataCorruptionRate,
		DataLossRate:      c.DataLossRate,
		RetransmitTimeout: time.Duration(c.RetransmitTimeout),
		MaxRetransmits:    c.MaxRetransmits,
	}
}

// ReceiveOptions returns the session options of the receiving end.
func (c *Config) ReceiveOptions() session.ReceiveOptions {
	return session.ReceiveOptions{
		AckCorruptRate: c.AckCorruptionRate,
		AckLossRate:    c.AckLossRate,
		Linger:         time.Duration(c.Linger),
	}
}
