package migrate

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/baderkha/sql2mongo/pkg/migrate/config"
	"github.com/baderkha/sql2mongo/pkg/migrate/config/sourcecfg"
	"github.com/baderkha/sql2mongo/pkg/migrate/config/targetcfg"
	"github.com/baderkha/sql2mongo/pkg/migrate/connection"
	"github.com/baderkha/sql2mongo/pkg/migrate/document"
	"github.com/baderkha/sql2mongo/pkg/migrate/report"
	"github.com/baderkha/sql2mongo/pkg/migrate/state"
	"github.com/baderkha/sql2mongo/pkg/migrate/table"
	"github.com/baderkha/sql2mongo/pkg/migrate/table/colmap"
	"github.com/baderkha/sql2mongo/pkg/migrate/target"
	"github.com/davecgh/go-spew/spew"
	"github.com/gofrs/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"go.mongodb.org/mongo-driver/mongo"
)

var _ Runner[sourcecfg.SQL, targetcfg.Mongo] = (*SQLToMongo)(nil)

// reports still get written after an interrupt , bounded by this
const publishTimeout = 30 * time.Second

// PrefixTableName : name with prefix prepended
func PrefixTableName(prefix string, tableName string) string {
	return prefix + tableName
}

// UnPrefixTableName : name with prefix removed , unchanged when it does not start with it
func UnPrefixTableName(prefix string, prefixedTName string) string {
	return strings.TrimPrefix(prefixedTName, prefix)
}

type Option func(m *SQLToMongo)

func WithLogger(logger zerolog.Logger) Option {
	return func(m *SQLToMongo) { m.logger = logger }
}

// WithStateManager : the caller keeps ownership and closes it
func WithStateManager(mger state.Manager) Option {
	return func(m *SQLToMongo) { m.state = mger }
}

// WithSource : use an already open source handle instead of dialing one
func WithSource(db *sql.DB) Option {
	return func(m *SQLToMongo) { m.source = db }
}

// WithInfoFetcher : use this fetcher instead of the one matching source.driver
func WithInfoFetcher(f table.InfoFetcher) Option {
	return func(m *SQLToMongo) { m.infoFetcher = f }
}

// WithWriter : use this writer instead of dialing mongodb
func WithWriter(w target.Writer) Option {
	return func(m *SQLToMongo) { m.writer = w }
}

// WithSinks : report destinations , defaults to report.dir and report.s3 from the job
func WithSinks(sinks ...report.Sink) Option {
	return func(m *SQLToMongo) { m.sinks = sinks }
}

// WithFs : filesystem the local report sink writes to
func WithFs(fs afero.Fs) Option {
	return func(m *SQLToMongo) { m.fs = fs }
}

// SQLToMongo : copies every model of a relational database into a mongodb collection , one model at a time
type SQLToMongo struct {
	source      *sql.DB
	infoFetcher table.InfoFetcher
	writer      target.Writer
	client      *mongo.Client
	state       state.Manager
	sinks       []report.Sink
	fs          afero.Fs
	logger      zerolog.Logger
	cfg         *config.Job
	runId       string
	failures    []report.Failure
	ownsSource  bool
	ownsState   bool
}

func NewSQLToMongo(opts ...Option) (*SQLToMongo, error) {
	uid, err := uuid.NewV4()
	if err != nil {
		return nil, err
	}
	m := &SQLToMongo{
		runId:  uid.String(),
		fs:     afero.NewOsFs(),
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

func (m *SQLToMongo) RunID() string {
	return m.runId
}

// GetStateManager : nil until Init when none was passed in
func (m *SQLToMongo) GetStateManager() state.Manager {
	return m.state
}

// Init : dials whatever was not handed in through options
func (m *SQLToMongo) Init(ctx context.Context, cfg *config.Job) error {
	var err error
	m.cfg = cfg
	m.failures = nil
	m.logger = m.logger.With().Str("run_id", m.runId).Logger()

	if m.state == nil {
		m.state, err = state.NewSqliteGormManager(cfg.State.Path)
		if err != nil {
			return err
		}
		m.ownsState = true
	}
	if m.source == nil {
		m.source, err = connection.DialSource(ctx, &cfg.SourceConfig, cfg.MaxSourceConns, m.logger)
		if err != nil {
			return err
		}
		m.ownsSource = true
	}
	if m.infoFetcher == nil {
		m.infoFetcher, err = table.NewInfoFetcher(cfg.SourceConfig.Driver, m.source, cfg.SourceConfig.Schema)
		if err != nil {
			return err
		}
	}
	if m.writer == nil && !cfg.DryRun {
		m.client, err = connection.DialMongo(ctx, &cfg.Target, m.logger)
		if err != nil {
			return err
		}
		m.writer = target.NewMongoWriter(m.client.Database(cfg.Target.DB))
	}
	if m.sinks == nil {
		m.sinks, err = m.defaultSinks()
		if err != nil {
			return err
		}
	}
	return nil
}

func (m *SQLToMongo) defaultSinks() ([]report.Sink, error) {
	sinks := []report.Sink{report.NewFSSink(m.fs, m.cfg.Report.Dir)}
	s3Opts := m.cfg.Report.S3
	if s3Opts.Bucket == "" {
		return sinks, nil
	}
	s3Sink, err := report.NewS3Sink(s3Opts.Region, s3Opts.Bucket, s3Opts.Prefix, s3Opts.MaxRetry)
	if err != nil {
		return nil, err
	}
	return append(sinks, s3Sink), nil
}

// CleanUp : closes only what Init opened
func (m *SQLToMongo) CleanUp() {
	if m.client != nil {
		_ = m.client.Disconnect(context.Background())
		m.client = nil
		m.writer = nil
	}
	if m.ownsSource && m.source != nil {
		_ = m.source.Close()
		m.source = nil
	}
	if m.ownsState && m.state != nil {
		_ = m.state.Close()
		m.state = nil
	}
}

func (m *SQLToMongo) Run(ctx context.Context, cfg *config.Job) (*report.Summary, error) {
	if err := m.Init(ctx, cfg); err != nil {
		m.CleanUp()
		return nil, err
	}
	defer m.CleanUp()

	summary := &report.Summary{RunID: m.runId, DryRun: cfg.DryRun, StartedAt: time.Now()}
	allTableInfo, err := m.infoFetcher.All(ctx, m.fetchOptions())
	if err != nil {
		return nil, fmt.Errorf("SOURCE : could not list models : %w", err)
	}
	if err := m.state.InitRunLog(m.runId, len(allTableInfo), cfg.DryRun); err != nil {
		return nil, err
	}
	allTableInfo, err = m.GenerateTargetCast(allTableInfo)
	if err != nil {
		return summary, m.finish(ctx, summary, err)
	}

	m.logger.Info().Int("models", len(allTableInfo)).Bool("dry_run", cfg.DryRun).Msg("Starting data migration...")
	for _, info := range allTableInfo {
		res, err := m.MigrateModel(ctx, info)
		summary.Add(res)
		if err != nil {
			return summary, m.finish(ctx, summary, err)
		}
	}
	m.logger.Info().Msg("Migration complete!")
	return summary, m.finish(ctx, summary, nil)
}

// finish : publishes the report and records the outcome of the run
func (m *SQLToMongo) finish(ctx context.Context, summary *report.Summary, runErr error) error {
	summary.FinishedAt = time.Now()
	if runErr == nil && m.cfg.FailOnRowErrors && summary.Totals.Failed > 0 {
		runErr = ErrRowFailures
	}

	pubCtx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	if err := report.Publish(pubCtx, m.sinks, summary, m.failures); err != nil {
		m.logger.Error().Err(err).Msg("could not publish report")
	}

	var stateErr error
	switch {
	case ctx.Err() != nil:
		m.logger.Warn().Msg("run interrupted")
		stateErr = m.state.AbortRun(m.runId)
		runErr = ctx.Err()
	case runErr != nil:
		stateErr = m.state.FailedRunLog(m.runId, summary.Totals, runErr)
	default:
		stateErr = m.state.PassedRunLog(m.runId, summary.Totals)
	}
	if stateErr != nil {
		m.logger.Error().Err(stateErr).Msg("could not update run log")
	}
	return runErr
}

func (m *SQLToMongo) fetchOptions() *table.FetchOptions {
	opts := &table.FetchOptions{
		SortByCol:       table.SortByFieldCount,
		SortByDirection: table.SortDirectionASC,
		TableList:       m.cfg.SourceConfig.TableList,
		TablePrefix:     m.cfg.SourceConfig.TablePrefix,
		Exclude:         m.cfg.SourceConfig.ExcludeTables,
	}
	switch m.cfg.OrderBy {
	case config.OrderByName:
		opts.SortByCol = table.SortByAlphaTableName
	case config.OrderBySize:
		opts.SortByCol = table.SortBySize
		opts.SortByDirection = table.SortDirectionDESC
	}
	return opts
}

// GenerateTargetCast : resolves the kind of every column , overrides first then the dialect mapping
func (m *SQLToMongo) GenerateTargetCast(inf []*table.Info) ([]*table.Info, error) {
	var (
		finalErr  error
		overrides = m.cfg.Overrides()
	)
	for _, v := range inf {
		for i := range v.Schema {
			col := v.Schema[i]
			if k, ok := overrides[colmap.Normalize(col.Type)]; ok {
				col.TargetType = k
				continue
			}
			convertedField, err := colmap.Convert(m.infoFetcher.MappingType(), col.Type)
			if err == nil {
				col.TargetType = convertedField
				continue
			}
			if m.cfg.StrictTypes {
				finalErr = multierror.Append(finalErr, fmt.Errorf("Cast Error : Bad Casting for %s.%s for column %s due to : %w", v.DatabaseName, v.TableName, col.ColumnName, err))
				continue
			}
			m.logger.Warn().
				Str("model", v.TableName).
				Str("column", col.ColumnName).
				Str("type", col.Type).
				Msg("no mapping for column type , storing it as string")
			col.TargetType = colmap.KindString
		}
	}
	if finalErr != nil {
		return nil, finalErr
	}
	return inf, nil
}

// CollectionName : explicit mapping wins , otherwise the table name with the configured prefixes applied
func (m *SQLToMongo) CollectionName(tableName string) string {
	if name, ok := m.cfg.Target.Collections[tableName]; ok {
		return name
	}
	name := tableName
	if m.cfg.Target.StripTablePrefix {
		name = UnPrefixTableName(m.cfg.SourceConfig.TablePrefix, name)
	}
	return PrefixTableName(m.cfg.Target.CollectionPrefix, name)
}

// MigrateModel : copies one model , a row that cannot be saved is logged and skipped
func (m *SQLToMongo) MigrateModel(ctx context.Context, a *table.Info) (report.ModelResult, error) {
	collection := m.CollectionName(a.TableName)
	res := report.ModelResult{Model: a.TableName, Collection: collection, Status: state.Started}
	logger := m.logger.With().Str("model", a.TableName).Str("collection", collection).Logger()

	logger.Info().Msgf("Migrating model: %s", a.TableName)
	if err := m.state.InitModelRunLog(m.runId, a.DatabaseName, a.TableName, collection); err != nil {
		return res, err
	}

	counts, err := m.copyRows(ctx, a, collection, logger)
	res.Counts = counts
	if err != nil {
		res.Error = err.Error()
		if ctx.Err() != nil {
			// the run abort takes care of the model log
			res.Status = state.Aborted
			return res, ctx.Err()
		}
		res.Status = state.Failed
		if stateErr := m.state.FailedModelRun(m.runId, a.DatabaseName, a.TableName, counts, err); stateErr != nil {
			logger.Error().Err(stateErr).Msg("could not update model log")
		}
		logger.Error().Err(err).Msgf("Migration of %s stopped", a.TableName)
		return res, fmt.Errorf("%s.%s : %w", a.DatabaseName, a.TableName, err)
	}

	res.Status = state.Success
	if err := m.state.PassedModelRun(m.runId, a.DatabaseName, a.TableName, counts); err != nil {
		return res, err
	}
	if counts.Read == 0 {
		logger.Info().Msgf("No data to migrate in %s.", a.TableName)
		return res, nil
	}
	logger.Info().
		Int("failed", counts.Failed).
		Msgf("Migrated %d/%d objects of %s", counts.Migrated, counts.Read, a.TableName)
	return res, nil
}

func (m *SQLToMongo) copyRows(ctx context.Context, a *table.Info, collection string, logger zerolog.Logger) (state.Counts, error) {
	var counts state.Counts
	builder, err := document.NewBuilder(a, m.cfg.Target.IDMode)
	if err != nil {
		return counts, err
	}
	rows, err := m.source.QueryContext(ctx, m.infoFetcher.SelectAll(a))
	if err != nil {
		return counts, err
	}
	defer rows.Close()

	var (
		values = make([]any, len(a.Schema))
		result = make([]any, len(a.Schema))
	)
	for i := range values {
		result[i] = &values[i]
	}
	for rows.Next() {
		if err := rows.Scan(result...); err != nil {
			return counts, err
		}
		counts.Read++

		err := m.saveRow(ctx, builder, collection, values)
		switch {
		case err == nil:
			counts.Migrated++
		case ctx.Err() != nil:
			return counts, ctx.Err()
		default:
			counts.Failed++
			m.recordFailure(logger, a, builder.Key(values), values, err)
		}

		if m.cfg.ProgressEvery > 0 && counts.Read%m.cfg.ProgressEvery == 0 {
			logger.Info().Int("rows", counts.Read).Int("failed", counts.Failed).Msg("progress")
		}
	}
	return counts, rows.Err()
}

// saveRow : a dry run stops once the document is built
func (m *SQLToMongo) saveRow(ctx context.Context, builder *document.Builder, collection string, values []any) error {
	doc, err := builder.Build(values)
	if err != nil {
		return err
	}
	if m.cfg.DryRun {
		return nil
	}
	return m.writer.InsertOne(ctx, collection, doc)
}

func (m *SQLToMongo) recordFailure(logger zerolog.Logger, a *table.Info, key string, values []any, err error) {
	ev := logger.Error().Err(err).Str("key", key)
	if target.IsDuplicateKey(err) {
		ev = ev.Bool("duplicate", true)
	}
	ev.Msgf("Error migrating %s object", a.TableName)
	if logger.GetLevel() <= zerolog.DebugLevel {
		logger.Debug().Msg(spew.Sdump(values))
	}
	m.failures = append(m.failures, report.Failure{Model: a.TableName, Key: key, Error: err.Error()})
}
