package commands

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/skycoin/stopwait/pkg/config"
	"github.com/skycoin/stopwait/pkg/transferlog"
	"github.com/skycoin/stopwait/pkg/util/pathutil"
)

var (
	output        string
	replace       bool
	configLocType = pathutil.WorkingDirLoc
)

func init() {
	genConfigCmd.Flags().StringVarP(&output, "output", "o", "", "path of output config file. Uses default of 'type' flag if unspecified.")
	genConfigCmd.Flags().BoolVarP(&replace, "replace", "r", false, "whether to allow rewrite of a file that already exists.")
	genConfigCmd.Flags().VarP(&configLocType, "type", "m", fmt.Sprintf("config generation mode. Valid values: %v", pathutil.AllConfigLocationTypes()))
}

var genConfigCmd = &cobra.Command{
	Use:   "gen-config",
	Short: "Generates a config file",
	Run: func(_ *cobra.Command, _ []string) {
		cfg.startLogger()

		if output == "" {
			output = pathutil.Defaults()[configLocType]
			cfg.logger.Infof("No 'output' set; using default path: %s", output)
		}
		var err error
		if output, err = filepath.Abs(output); err != nil {
			cfg.logger.WithError(err).Fatalln("invalid output provided")
		}

		if err := pathutil.WriteJSONConfig(genConfig(configLocType), output, replace); err != nil {
			cfg.logger.Fatal(err)
		}
	},
}

// genConfig returns the defaults with the transfer log persisted next to
// the config location.
func genConfig(loc pathutil.ConfigLocationType) *config.Config {
	conf := config.Default()
	var dir string
	switch loc {
	case pathutil.HomeLoc:
		dir = filepath.Join(pathutil.HomeDir(), ".skycoin", "stopwait")
	case pathutil.LocalLoc:
		dir = "/usr/local/skycoin/stopwait"
	default:
		return conf
	}
	conf.OutputDir = filepath.Join(dir, "received")
	conf.TransferLog = transferlog.Config{
		Type:     transferlog.TypeBoltDB,
		Location: filepath.Join(dir, "transfers.db"),
	}
	return conf
}
