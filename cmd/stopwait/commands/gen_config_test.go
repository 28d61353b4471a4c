package commands

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skycoin/stopwait/pkg/config"
	"github.com/skycoin/stopwait/pkg/transferlog"
	"github.com/skycoin/stopwait/pkg/util/pathutil"
)

func TestGenConfig(t *testing.T) {
	assert.Equal(t, config.Default(), genConfig(pathutil.WorkingDirLoc))

	conf := genConfig(pathutil.LocalLoc)
	require.NoError(t, conf.Validate())
	assert.Equal(t, transferlog.TypeBoltDB, conf.TransferLog.Type)
	assert.Equal(t, "/usr/local/skycoin/stopwait/transfers.db", conf.TransferLog.Location)
	assert.Equal(t, filepath.Join("/usr/local/skycoin/stopwait", "received"), conf.OutputDir)
}
