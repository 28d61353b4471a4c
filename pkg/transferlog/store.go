package transferlog

import (
	"github.com/pkg/errors"
	"github.com/skycoin/skycoin/src/util/logging"
)

var log = logging.MustGetLogger("transferlog")

// Store types accepted by New.
const (
	TypeMemory = "memory"
	TypeFile   = "file"
	TypeBoltDB = "boltdb"
	TypeRedis  = "redis"
)

// Config selects and locates a Store.
type Config struct {
	Type     string `json:"type" mapstructure:"type"`
	Location string `json:"location" mapstructure:"location"`
}

// New opens the store described by conf. Location is a directory for
// TypeFile, a database file for TypeBoltDB and a URL for TypeRedis.
func New(conf Config) (Store, error) {
	switch conf.Type {
	case TypeMemory, "":
		return InMemoryStore(), nil
	case TypeFile:
		return FileStore(conf.Location)
	case TypeBoltDB:
		return BoltDBStore(conf.Location)
	case TypeRedis:
		return RedisStore(conf.Location)
	default:
		return nil, errors.Errorf("unknown transfer log type %q", conf.Type)
	}
}
