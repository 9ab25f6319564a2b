package options

import (
	"fmt"

	"github.com/spf13/pflag"
)

type StoreOptions struct {
	// Type is "inmemory" or "boltdb".
	Type       string `json:"type"        mapstructure:"type"`
	BoltDBPath string `json:"boltdb-path" mapstructure:"boltdb-path"`
}

func NewStoreOptions() *StoreOptions {
	return &StoreOptions{Type: "inmemory", BoltDBPath: "data/hivemind.db"}
}

func (o *StoreOptions) Validate() []error {
	switch o.Type {
	case "inmemory":
	case "boltdb":
		if o.BoltDBPath == "" {
			return []error{fmt.Errorf("--store.boltdb-path is required for the boltdb store")}
		}
	default:
		return []error{fmt.Errorf("--store.type %q must be inmemory or boltdb", o.Type)}
	}
	return nil
}

func (o *StoreOptions) AddFlags(fs *pflag.FlagSet) {
	fs.StringVar(&o.Type, "store.type", o.Type, "Session metadata store: inmemory or boltdb.")
	fs.StringVar(&o.BoltDBPath, "store.boltdb-path", o.BoltDBPath, "BoltDB file used when --store.type=boltdb.")
}
