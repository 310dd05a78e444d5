package sourcecfg

import (
	"fmt"
	"strings"

	"github.com/baderkha/sql2mongo/pkg/conditional"
	"github.com/hashicorp/go-multierror"
)

// Driver : relational engine rows are read from
type Driver string

const (
	Postgres Driver = "postgres"
	MySQL    Driver = "mysql"
	SQLite   Driver = "sqlite"
)

// SQL : source database settings
type SQL struct {
	Driver                Driver            `json:"driver" yaml:"driver"`
	DSN                   string            `json:"dsn" yaml:"dsn"`
	Host                  string            `json:"host" yaml:"host"`
	Port                  int               `json:"port" yaml:"port"`
	UserName              string            `json:"user_name" yaml:"user_name"`
	Password              string            `json:"password" yaml:"password"`
	DB                    string            `json:"db" yaml:"db"`
	Schema                string            `json:"schema" yaml:"schema"`
	SSLMode               string            `json:"ssl_mode" yaml:"ssl_mode"`
	Path                  string            `json:"path" yaml:"path"`
	SessionVariableValues map[string]string `json:"session_vars" yaml:"session_vars"`
	TableList             []string          `json:"table_list" yaml:"table_list"`
	TablePrefix           string            `json:"table_prefix" yaml:"table_prefix"`
	ExcludeTables         []string          `json:"exclude_tables" yaml:"exclude_tables"`
	QueryLogging          bool              `json:"query_log" yaml:"query_log"`
}

// SetDefaults : fills in engine defaults for fields left empty
func (s *SQL) SetDefaults() {
	if s.Driver == "" {
		s.Driver = Postgres
	}
	s.Driver = Driver(strings.ToLower(string(s.Driver)))
	switch s.Driver {
	case Postgres:
		if s.Port == 0 {
			s.Port = 5432
		}
		if s.Schema == "" {
			s.Schema = "public"
		}
		if s.SSLMode == "" {
			s.SSLMode = "disable"
		}
	case MySQL:
		if s.Port == 0 {
			s.Port = 3306
		}
		// mysql has no schema layer under the database
		if s.Schema == "" {
			s.Schema = s.DB
		}
	case SQLite:
		if s.Schema == "" {
			s.Schema = "main"
		}
	}
}

// Validate : collects every problem with the source block
func (s *SQL) Validate() error {
	var finalErr error
	switch s.Driver {
	case Postgres, MySQL:
		if s.DSN == "" && s.Host == "" {
			finalErr = multierror.Append(finalErr, fmt.Errorf("source: %s needs either dsn or host", s.Driver))
		}
		if s.DSN == "" && s.DB == "" {
			finalErr = multierror.Append(finalErr, fmt.Errorf("source: %s needs either dsn or db", s.Driver))
		}
	case SQLite:
		if s.DSN == "" && s.Path == "" {
			finalErr = multierror.Append(finalErr, fmt.Errorf("source: sqlite needs a path"))
		}
	default:
		finalErr = multierror.Append(finalErr, fmt.Errorf("source: unsupported driver %q (must be postgres, mysql or sqlite)", s.Driver))
	}
	if s.Port < 0 || s.Port > 65535 {
		finalErr = multierror.Append(finalErr, fmt.Errorf("source: port %d out of range", s.Port))
	}
	return finalErr
}

// GetDSN : connection string for the configured driver , an explicit dsn always wins
func (s *SQL) GetDSN() string {
	if s.DSN != "" {
		return s.DSN
	}
	switch s.Driver {
	case MySQL:
		return s.mysqlDSN()
	case SQLite:
		return s.sqliteDSN()
	default:
		return s.postgresDSN()
	}
}

// ApplyEnv : secrets may come from the environment instead of the job file
func (s *SQL) ApplyEnv(lookup func(string) (string, bool)) {
	s.Password = conditional.EnvOr(lookup, "SQL2MONGO_SOURCE_PASSWORD", s.Password)
	s.DSN = conditional.EnvOr(lookup, "SQL2MONGO_SOURCE_DSN", s.DSN)
}
