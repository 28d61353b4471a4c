package commands

import (
	"context"
	"fmt"
	"io/ioutil"
	"log"
	"log/syslog"
	"net/http"
	_ "net/http/pprof" // no_lint
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/profile"
	"github.com/prometheus/client_golang/prometheus"
	logrus_syslog "github.com/sirupsen/logrus/hooks/syslog"
	"github.com/skycoin/skycoin/src/util/logging"
	"github.com/spf13/cobra"

	"github.com/skycoin/stopwait/internal/httpapi"
	"github.com/skycoin/stopwait/internal/metrics"
	"github.com/skycoin/stopwait/pkg/config"
	"github.com/skycoin/stopwait/pkg/transferlog"
	"github.com/skycoin/stopwait/pkg/util/pathutil"
)

type runCfg struct {
	configPath  string
	syslogAddr  string
	tag         string
	logLevel    string
	profileMode string
	port        string

	profileStop func()
	logger      *logging.Logger
	conf        *config.Config
	store       transferlog.Store
	metrics     metrics.Recorder
	ctx         context.Context
	cancel      context.CancelFunc
}

var cfg *runCfg

var rootCmd = &cobra.Command{
	Use:     "stopwait",
	Short:   "Stop-and-wait file transfer over UDP",
	Version: config.Version,
}

func init() {
	cfg = &runCfg{}
	rootCmd.PersistentFlags().StringVarP(&cfg.configPath, "config", "c", "", fmt.Sprintf("path of the config file. Defaults to $%s or %s in the default locations", config.EnvConfigPath, pathutil.ConfigName))
	rootCmd.PersistentFlags().StringVarP(&cfg.syslogAddr, "syslog", "", "none", "syslog server address. E.g. localhost:514")
	rootCmd.PersistentFlags().StringVarP(&cfg.tag, "tag", "", "stopwait", "logging tag")
	rootCmd.PersistentFlags().StringVarP(&cfg.logLevel, "log-level", "", "", "log level, overrides the config. One of: [debug, info, warn, error]")
	rootCmd.PersistentFlags().StringVarP(&cfg.profileMode, "profile", "p", "none", "enable profiling with pprof. Mode:  none or one of: [cpu, mem, mutex, block, trace, http]")
	rootCmd.PersistentFlags().StringVarP(&cfg.port, "port", "", "6060", "port for http-mode of pprof")

	rootCmd.AddCommand(sendCmd, receiveCmd, genConfigCmd, transfersCmd)
}

// Execute executes root CLI command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}

func (cfg *runCfg) startProfiler() *runCfg {
	var option func(*profile.Profile)
	switch cfg.profileMode {
	case "none":
		cfg.profileStop = func() {}
		return cfg
	case "http":
		go func() {
			log.Println(http.ListenAndServe(fmt.Sprintf("localhost:%v", cfg.port), nil))
		}()
		cfg.profileStop = func() {}
		return cfg
	case "cpu":
		option = profile.CPUProfile
	case "mem":
		option = profile.MemProfile
	case "mutex":
		option = profile.MutexProfile
	case "block":
		option = profile.BlockProfile
	case "trace":
		option = profile.TraceProfile
	default:
		log.Fatalf("invalid profile mode %q", cfg.profileMode)
	}
	cfg.profileStop = profile.Start(profile.ProfilePath("./logs/"+cfg.tag), option).Stop
	return cfg
}

func (cfg *runCfg) startLogger() *runCfg {
	cfg.logger = logging.MustGetLogger(cfg.tag)

	if cfg.syslogAddr != "none" {
		hook, err := logrus_syslog.NewSyslogHook("udp", cfg.syslogAddr, syslog.LOG_INFO, cfg.tag)
		if err != nil {
			cfg.logger.Error("Unable to connect to syslog daemon:", err)
		} else {
			logging.AddHook(hook)
			logging.SetOutputTo(ioutil.Discard)
		}
	}
	return cfg
}

func (cfg *runCfg) readConfig() *runCfg {
	path := pathutil.FindConfigPath(cfg.configPath, config.EnvConfigPath, pathutil.Defaults())
	if path == "" {
		cfg.logger.Info("No config file found, using defaults")
	}

	conf, err := config.Load(path)
	if err != nil {
		cfg.logger.Fatalf("Failed to load config: %s", err)
	}
	cfg.conf = conf
	return cfg
}

// applyConfig validates the config once command line overrides are in
// place and applies the log level.
func (cfg *runCfg) applyConfig() *runCfg {
	if cfg.logLevel != "" {
		cfg.conf.LogLevel = cfg.logLevel
	}
	lvl, err := logging.LevelFromString(cfg.conf.LogLevel)
	if err != nil {
		cfg.logger.Fatalf("Invalid log level %q: %s", cfg.conf.LogLevel, err)
	}
	logging.SetLevel(lvl)

	if err := cfg.conf.Validate(); err != nil {
		cfg.logger.Fatalf("Invalid config: %s", err)
	}
	if cfg.conf.Stalls() {
		cfg.logger.Warn("A loss rate is set without retransmit_timeout: the first lost datagram stalls the transfer")
	}
	return cfg
}

func (cfg *runCfg) openStore() *runCfg {
	store, err := transferlog.New(cfg.conf.TransferLog)
	if err != nil {
		cfg.logger.Fatalf("Failed to open transfer log: %s", err)
	}
	cfg.store = store
	cfg.metrics = metrics.NewPrometheus("stopwait", prometheus.DefaultRegisterer)
	return cfg
}

// waitOsSignals cancels cfg.ctx on the first signal and terminates on the
// second.
func (cfg *runCfg) waitOsSignals() *runCfg {
	cfg.ctx, cfg.cancel = context.WithCancel(context.Background())

	ch := make(chan os.Signal, 2)
	signal.Notify(ch, []os.Signal{syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT}...)
	go func() {
		s := <-ch
		cfg.logger.Infof("Received signal %s: stopping", s)
		cfg.cancel()
		s = <-ch
		cfg.logger.Fatalf("Received signal %s: terminating", s)
	}()
	return cfg
}

func (cfg *runCfg) serveHTTP() *runCfg {
	if cfg.conf.HTTPAddr == "" {
		return cfg
	}
	api := httpapi.New(cfg.store, cfg.metrics, prometheus.DefaultGatherer)
	api.SetLogger(cfg.logger)
	go func() {
		if err := api.ListenAndServe(cfg.ctx, cfg.conf.HTTPAddr); err != nil {
			cfg.logger.WithError(err).Error("HTTP API stopped")
		}
	}()
	return cfg
}

func (cfg *runCfg) record(entry *transferlog.Entry) {
	if err := cfg.store.Record(entry.ID, entry); err != nil {
		cfg.logger.WithError(err).Warn("Failed to record transfer")
	}
}

func (cfg *runCfg) close() {
	defer cfg.profileStop()
	if cfg.cancel != nil {
		cfg.cancel()
	}
	if cfg.store != nil {
		if err := cfg.store.Close(); err != nil {
			cfg.logger.WithError(err).Warn("Failed to close transfer log")
		}
	}
}
