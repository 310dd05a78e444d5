package connection

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/baderkha/sql2mongo/pkg/migrate/config/sourcecfg"
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
	sqldblogger "github.com/simukti/sqldb-logger"
	"github.com/simukti/sqldb-logger/logadapter/zerologadapter"
)

// DriverName : database/sql driver registered for the source engine
func DriverName(d sourcecfg.Driver) (string, error) {
	switch d {
	case sourcecfg.Postgres:
		return "pgx", nil
	case sourcecfg.MySQL:
		return "mysql", nil
	case sourcecfg.SQLite:
		return "sqlite3", nil
	}
	return "", fmt.Errorf("unsupported driver %q", d)
}

// AddLogger : every statement run through the returned handle is logged with its duration
func AddLogger(db *sql.DB, dsn string, driverName string, logger zerolog.Logger) *sql.DB {
	loggerAdapter := zerologadapter.New(logger.With().Str("driver", driverName).Logger())
	return sqldblogger.OpenDriver(dsn, db.Driver(), loggerAdapter,
		sqldblogger.WithWrapResult(false),
		sqldblogger.WithDurationFieldname("dur_ms"),
		sqldblogger.WithDurationUnit(sqldblogger.DurationMillisecond),
		sqldblogger.WithSQLQueryAsMessage(true),
		sqldblogger.WithSQLQueryFieldname("sql_query"),
	)
}

// DialSource : opens and pings the source database
func DialSource(ctx context.Context, cfg *sourcecfg.SQL, maxConc int, logger zerolog.Logger) (*sql.DB, error) {
	driverName, err := DriverName(cfg.Driver)
	if err != nil {
		return nil, fmt.Errorf("SOURCE : %w", err)
	}
	dsn := cfg.GetDSN()
	sqlDB, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("SOURCE : Could not dial connection to %s due to : %w", cfg.Driver, err)
	}
	if cfg.QueryLogging {
		logged := AddLogger(sqlDB, dsn, driverName, logger)
		_ = sqlDB.Close()
		sqlDB = logged
	}
	sqlDB.SetMaxOpenConns(maxConc)
	sqlDB.SetMaxIdleConns(maxConc)
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("SOURCE : Could not reach %s due to : %w", cfg.Driver, err)
	}
	logger.Debug().Str("driver", driverName).Msg("source connection ready")
	return sqlDB, nil
}
