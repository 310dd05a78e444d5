package migrate

import (
	"context"
	"errors"

	"github.com/baderkha/sql2mongo/pkg/migrate/config"
	"github.com/baderkha/sql2mongo/pkg/migrate/report"
)

// ErrRowFailures : returned by Run when fail_on_row_errors is set and at least one row was not saved
var ErrRowFailures = errors.New("migrate: some rows could not be migrated")

// Runner : runs migration between a source and a target
type Runner[S any, T any] interface {
	Run(ctx context.Context, cfg *config.Config[S, T]) (*report.Summary, error) // fresh run
}
