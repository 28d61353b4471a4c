package pathutil

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/skycoin/skycoin/src/util/logging"
)

var log = logging.MustGetLogger("pathutil")

// ConfigLocationType describes a config path's location type.
type ConfigLocationType string

const (
	// WorkingDirLoc is the config file in the working directory.
	WorkingDirLoc = ConfigLocationType("WD")

	// HomeLoc is the config file under the user's home folder.
	HomeLoc = ConfigLocationType("HOME")

	// LocalLoc is the config file under /usr/local.
	LocalLoc = ConfigLocationType("LOCAL")
)

// ConfigName is the file name searched for in every default location.
const ConfigName = "stopwait-config.json"

// String implements fmt.Stringer for ConfigLocationType.
func (t ConfigLocationType) String() string {
	return string(t)
}

// Set implements pflag.Value for ConfigLocationType.
func (t *ConfigLocationType) Set(s string) error {
	for _, loc := range AllConfigLocationTypes() {
		if loc == ConfigLocationType(s) {
			*t = loc
			return nil
		}
	}
	return errors.Errorf("invalid config location %q, valid: %v", s, AllConfigLocationTypes())
}

// Type implements pflag.Value for ConfigLocationType.
func (t ConfigLocationType) Type() string {
	return "pathutil.ConfigLocationType"
}

// AllConfigLocationTypes returns all valid config location types in search order.
func AllConfigLocationTypes() []ConfigLocationType {
	return []ConfigLocationType{WorkingDirLoc, HomeLoc, LocalLoc}
}

// ConfigPaths maps location types to config file paths.
type ConfigPaths map[ConfigLocationType]string

// String implements fmt.Stringer for ConfigPaths.
func (dp ConfigPaths) String() string {
	raw, err := json.MarshalIndent(dp, "", "\t")
	if err != nil {
		return fmt.Sprintf("%v", map[ConfigLocationType]string(dp))
	}
	return string(raw)
}

// Defaults returns the default config paths of the stopwait tool.
func Defaults() ConfigPaths {
	paths := make(ConfigPaths)
	if wd, err := os.Getwd(); err == nil {
		paths[WorkingDirLoc] = filepath.Join(wd, ConfigName)
	}
	if home := HomeDir(); home != "" {
		paths[HomeLoc] = filepath.Join(home, ".skycoin", "stopwait", ConfigName)
	}
	paths[LocalLoc] = filepath.Join("/usr/local/skycoin/stopwait", ConfigName)
	return paths
}

// FindConfigPath looks for a config file in the following order:
// - the explicit path, when not empty;
// - the path held by the env variable, when set;
// - the first existing path among defaults.
// It returns an empty path without error when nothing was found.
func FindConfigPath(explicit, env string, defaults ConfigPaths) string {
	if explicit != "" {
		log.Infof("using %s as config path", explicit)
		return explicit
	}
	if env != "" {
		if path, ok := os.LookupEnv(env); ok && path != "" {
			log.Infof("using $%s as config path: %s", env, path)
			return path
		}
	}
	log.Debug("config path is not explicitly specified, trying default paths...")
	for i, cpType := range AllConfigLocationTypes() {
		path, ok := defaults[cpType]
		if !ok {
			continue
		}
		if _, err := os.Stat(path); err != nil {
			log.Debugf("- [%d/%d] '%s' cannot be accessed: %s", i+1, len(defaults), path, err)
			continue
		}
		log.Infof("using fallback config path: %s", path)
		return path
	}
	log.Debugf("no config file in any of: %s", defaults)
	return ""
}

// WriteJSONConfig writes conf as indented JSON to output. An existing file is
// only overwritten when replace is set.
func WriteJSONConfig(conf interface{}, output string, replace bool) error {
	raw, err := json.MarshalIndent(conf, "", "\t")
	if err != nil {
		return errors.Wrap(err, "failed to marshal config")
	}
	if _, err := os.Stat(output); !replace && err == nil {
		return errors.Errorf("file %s already exists, stopping as 'replace,r' flag is not set", output)
	}
	if _, err := EnsureDir(filepath.Dir(output)); err != nil {
		return err
	}
	if err := AtomicWriteFile(output, raw); err != nil {
		return err
	}
	log.Infof("Wrote %d bytes to %s", len(raw), output)
	return nil
}
