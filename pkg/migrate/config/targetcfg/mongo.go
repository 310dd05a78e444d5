package targetcfg

import (
	"fmt"
	"time"

	"github.com/baderkha/sql2mongo/pkg/conditional"
	"github.com/hashicorp/go-multierror"
)

// IDMode : how the document _id is chosen
type IDMode string

const (
	// IDFromPrimaryKey : _id carries the source primary key
	IDFromPrimaryKey IDMode = "pk"
	// IDGenerated : mongodb generates the _id , the key columns are still copied as fields
	IDGenerated IDMode = "auto"
)

type Mongo struct {
	URI               string            `json:"uri" yaml:"uri"`
	DB                string            `json:"db" yaml:"db"`
	CollectionPrefix  string            `json:"collection_prefix" yaml:"collection_prefix"`
	StripTablePrefix  bool              `json:"strip_table_prefix" yaml:"strip_table_prefix"`
	Collections       map[string]string `json:"collections" yaml:"collections"`
	IDMode            IDMode            `json:"id_mode" yaml:"id_mode"`
	ConnectTimeoutSec int               `json:"connect_timeout_sec" yaml:"connect_timeout_sec"`
}

func (m *Mongo) SetDefaults() {
	if m.IDMode == "" {
		m.IDMode = IDFromPrimaryKey
	}
	if m.ConnectTimeoutSec <= 0 {
		m.ConnectTimeoutSec = 10
	}
}

// Validate : collects every problem with the target block
func (m *Mongo) Validate() error {
	var finalErr error
	if m.URI == "" {
		finalErr = multierror.Append(finalErr, fmt.Errorf("target: uri is required"))
	}
	if m.DB == "" {
		finalErr = multierror.Append(finalErr, fmt.Errorf("target: db is required"))
	}
	switch m.IDMode {
	case IDFromPrimaryKey, IDGenerated:
	default:
		finalErr = multierror.Append(finalErr, fmt.Errorf("target: unsupported id_mode %q (must be pk or auto)", m.IDMode))
	}
	for tableName, collection := range m.Collections {
		if collection == "" {
			finalErr = multierror.Append(finalErr, fmt.Errorf("target: collections.%s is empty", tableName))
		}
	}
	return finalErr
}

func (m *Mongo) ConnectTimeout() time.Duration {
	return time.Duration(m.ConnectTimeoutSec) * time.Second
}

func (m *Mongo) ApplyEnv(lookup func(string) (string, bool)) {
	m.URI = conditional.EnvOr(lookup, "SQL2MONGO_TARGET_URI", m.URI)
}
