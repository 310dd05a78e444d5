package migrate

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/baderkha/sql2mongo/pkg/migrate/config"
	"github.com/baderkha/sql2mongo/pkg/migrate/config/sourcecfg"
	"github.com/baderkha/sql2mongo/pkg/migrate/config/targetcfg"
	"github.com/baderkha/sql2mongo/pkg/migrate/report"
	"github.com/baderkha/sql2mongo/pkg/migrate/state"
	"github.com/baderkha/sql2mongo/pkg/migrate/table"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

type memWriter struct {
	docs map[string][]bson.D
	fail func(collection string, doc bson.D) error
}

func (w *memWriter) InsertOne(_ context.Context, collection string, doc bson.D) error {
	if w.fail != nil {
		if err := w.fail(collection, doc); err != nil {
			return err
		}
	}
	if w.docs == nil {
		w.docs = map[string][]bson.D{}
	}
	w.docs[collection] = append(w.docs[collection], doc)
	return nil
}

func duplicateKeyErr() error {
	return mongo.WriteException{WriteErrors: mongo.WriteErrors{{Code: 11000, Message: "E11000 duplicate key error"}}}
}

func newSource(t *testing.T, stmts ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "source.db")
	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	defer db.Close()
	for _, s := range stmts {
		_, err := db.Exec(s)
		require.NoError(t, err)
	}
	return path
}

func djangoSource(t *testing.T) string {
	return newSource(t,
		`create table app_author (id integer primary key, name varchar(100) not null)`,
		`create table app_book (id integer primary key, title varchar(200), price decimal(10,2), published datetime, author_id integer)`,
		`create table app_empty (id integer primary key, note text)`,
		`create table django_migrations (id integer primary key, app varchar(255), name varchar(255), applied datetime)`,
		`insert into app_author (id, name) values (1, 'ada'), (2, 'grace'), (3, 'barbara')`,
		`insert into app_book values (1, 'notes', 12.5, '2023-01-02 10:00:00', 1), (2, 'cobol', null, null, 2)`,
		`insert into django_migrations values (1, 'app', '0001_initial', '2023-01-01 00:00:00')`,
	)
}

func newJob(t *testing.T, sourcePath string) *config.Job {
	t.Helper()
	cfg := &config.Job{
		SourceConfig: sourcecfg.SQL{Driver: sourcecfg.SQLite, Path: sourcePath, TablePrefix: "app_"},
		Target: targetcfg.Mongo{
			URI:              "mongodb://localhost:27017",
			DB:               "app",
			StripTablePrefix: true,
			Collections:      map[string]string{"app_book": "books"},
		},
		Report: config.Report{Dir: "/reports"},
	}
	cfg.SetDefaults()
	require.NoError(t, cfg.Validate())
	return cfg
}

func newStateManager(t *testing.T) *state.GormManager {
	t.Helper()
	m, err := state.NewSqliteGormManager(filepath.Join(t.TempDir(), "state.sqlite"))
	require.NoError(t, err)
	t.Cleanup(func() { m.Close() })
	return m
}

type harness struct {
	migrator *SQLToMongo
	writer   *memWriter
	state    *state.GormManager
	fs       afero.Fs
	logs     *bytes.Buffer
}

func newHarness(t *testing.T, opts ...Option) *harness {
	t.Helper()
	h := &harness{
		writer: &memWriter{},
		state:  newStateManager(t),
		fs:     afero.NewMemMapFs(),
		logs:   &bytes.Buffer{},
	}
	base := []Option{
		WithLogger(zerolog.New(h.logs)),
		WithStateManager(h.state),
		WithWriter(h.writer),
		WithFs(h.fs),
	}
	m, err := NewSQLToMongo(append(base, opts...)...)
	require.NoError(t, err)
	h.migrator = m
	return h
}

func modelNames(s *report.Summary) []string {
	var res []string
	for _, m := range s.Models {
		res = append(res, m.Model)
	}
	return res
}

func TestRunMigratesEveryModel(t *testing.T) {
	h := newHarness(t)
	cfg := newJob(t, djangoSource(t))

	summary, err := h.migrator.Run(context.Background(), cfg)
	require.NoError(t, err)

	// fewest fields first , ties by name
	assert.Equal(t, []string{"app_author", "app_empty", "app_book"}, modelNames(summary))
	assert.Equal(t, state.Counts{Read: 5, Migrated: 5}, summary.Totals)
	assert.Equal(t, h.migrator.RunID(), summary.RunID)

	authors := h.writer.docs["author"]
	require.Len(t, authors, 3)
	assert.Equal(t, bson.D{{Key: "_id", Value: int64(1)}, {Key: "id", Value: int64(1)}, {Key: "name", Value: "ada"}}, authors[0])

	books := h.writer.docs["books"]
	require.Len(t, books, 2)
	assert.Equal(t, bson.E{Key: "_id", Value: int64(1)}, books[0][0])
	assert.IsType(t, primitive.Decimal128{}, books[0].Map()["price"])
	assert.IsType(t, primitive.DateTime(0), books[0].Map()["published"])
	assert.Nil(t, books[1].Map()["price"])
	assert.NotContains(t, h.writer.docs, "empty")

	logs := h.logs.String()
	assert.Contains(t, logs, "Starting data migration...")
	assert.Contains(t, logs, "Migrating model: app_author")
	assert.Contains(t, logs, "Migrated 3/3 objects of app_author")
	assert.Contains(t, logs, "No data to migrate in app_empty.")
	assert.Contains(t, logs, "Migration complete!")

	run, err := h.state.GetRunLog(summary.RunID)
	require.NoError(t, err)
	assert.Equal(t, state.Success, run.Status)
	assert.Equal(t, 3, run.TotalModels)
	assert.Equal(t, 5, run.RowsMigrated)

	models, err := h.state.GetModelRunLogs(summary.RunID)
	require.NoError(t, err)
	require.Len(t, models, 3)
	assert.Equal(t, "books", models[2].Collection)
	assert.Equal(t, 2, models[2].RowsMigrated)

	b, err := afero.ReadFile(h.fs, fmt.Sprintf("/reports/%s/summary.json", summary.RunID))
	require.NoError(t, err)
	var published report.Summary
	require.NoError(t, json.Unmarshal(b, &published))
	assert.Equal(t, 5, published.Totals.Migrated)
}

func TestRunKeepsGoingPastFailedRows(t *testing.T) {
	h := newHarness(t)
	h.writer.fail = func(collection string, doc bson.D) error {
		if collection == "author" && doc[0].Value == int64(2) {
			return duplicateKeyErr()
		}
		return nil
	}
	cfg := newJob(t, djangoSource(t))

	summary, err := h.migrator.Run(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, state.Counts{Read: 5, Migrated: 4, Failed: 1}, summary.Totals)
	assert.Len(t, h.writer.docs["author"], 2)
	assert.Len(t, h.writer.docs["books"], 2)
	assert.Contains(t, h.logs.String(), "Migrated 2/3 objects of app_author")

	b, err := afero.ReadFile(h.fs, fmt.Sprintf("/reports/%s/failures.jsonl", summary.RunID))
	require.NoError(t, err)
	var failure report.Failure
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(b), &failure))
	assert.Equal(t, "app_author", failure.Model)
	assert.Equal(t, "id=2", failure.Key)

	run, err := h.state.GetRunLog(summary.RunID)
	require.NoError(t, err)
	assert.Equal(t, state.Success, run.Status)
	assert.Equal(t, 1, run.RowsFailed)
}

func TestRunFailOnRowErrors(t *testing.T) {
	h := newHarness(t)
	h.writer.fail = func(collection string, _ bson.D) error {
		if collection == "books" {
			return errors.New("write concern timeout")
		}
		return nil
	}
	cfg := newJob(t, djangoSource(t))
	cfg.FailOnRowErrors = true

	summary, err := h.migrator.Run(context.Background(), cfg)
	require.ErrorIs(t, err, ErrRowFailures)
	assert.Equal(t, 2, summary.Totals.Failed)

	run, err := h.state.GetRunLog(summary.RunID)
	require.NoError(t, err)
	assert.Equal(t, state.Failed, run.Status)
	assert.Equal(t, ErrRowFailures.Error(), run.ErrMsg)
}

func TestRunDryRunWritesNothing(t *testing.T) {
	h := newHarness(t)
	m, err := NewSQLToMongo(
		WithLogger(zerolog.New(h.logs)),
		WithStateManager(h.state),
		WithFs(h.fs),
	)
	require.NoError(t, err)
	cfg := newJob(t, djangoSource(t))
	cfg.DryRun = true

	summary, err := m.Run(context.Background(), cfg)
	require.NoError(t, err)
	assert.True(t, summary.DryRun)
	assert.Equal(t, state.Counts{Read: 5, Migrated: 5}, summary.Totals)

	run, err := h.state.GetRunLog(summary.RunID)
	require.NoError(t, err)
	assert.True(t, run.DryRun)
	assert.Equal(t, state.Success, run.Status)
}

func TestRunUnknownColumnTypes(t *testing.T) {
	source := func(t *testing.T) string {
		return newSource(t,
			`create table app_place (id integer primary key, shape geometry)`,
			`insert into app_place values (1, 'POINT(1 2)')`,
		)
	}

	t.Run("stored as string", func(t *testing.T) {
		h := newHarness(t)
		summary, err := h.migrator.Run(context.Background(), newJob(t, source(t)))
		require.NoError(t, err)
		assert.Equal(t, 1, summary.Totals.Migrated)
		assert.Equal(t, "POINT(1 2)", h.writer.docs["place"][0].Map()["shape"])
		assert.Contains(t, h.logs.String(), "no mapping for column type")
	})

	t.Run("override", func(t *testing.T) {
		h := newHarness(t)
		cfg := newJob(t, source(t))
		cfg.StrictTypes = true
		cfg.TypeOverrides = map[string]string{"geometry": "binary"}
		require.NoError(t, cfg.Validate())

		_, err := h.migrator.Run(context.Background(), cfg)
		require.NoError(t, err)
		assert.IsType(t, primitive.Binary{}, h.writer.docs["place"][0].Map()["shape"])
	})

	t.Run("strict", func(t *testing.T) {
		h := newHarness(t)
		cfg := newJob(t, source(t))
		cfg.StrictTypes = true

		summary, err := h.migrator.Run(context.Background(), cfg)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "shape")
		assert.Empty(t, h.writer.docs)

		run, err := h.state.GetRunLog(summary.RunID)
		require.NoError(t, err)
		assert.Equal(t, state.Failed, run.Status)
	})
}

func TestRunInterrupted(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h := newHarness(t)
	h.writer.fail = func(_ string, _ bson.D) error {
		cancel()
		return ctx.Err()
	}
	cfg := newJob(t, djangoSource(t))

	summary, err := h.migrator.Run(ctx, cfg)
	require.ErrorIs(t, err, context.Canceled)
	require.Len(t, summary.Models, 1)
	assert.Equal(t, state.Aborted, summary.Models[0].Status)

	run, err := h.state.GetRunLog(summary.RunID)
	require.NoError(t, err)
	assert.Equal(t, state.Aborted, run.Status)
	models, err := h.state.GetModelRunLogs(summary.RunID)
	require.NoError(t, err)
	require.Len(t, models, 1)
	assert.Equal(t, state.Aborted, models[0].Status)

	// the report is still written
	exists, err := afero.Exists(h.fs, fmt.Sprintf("/reports/%s/summary.json", summary.RunID))
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestCollectionName(t *testing.T) {
	m := &SQLToMongo{cfg: &config.Job{
		SourceConfig: sourcecfg.SQL{TablePrefix: "app_"},
		Target: targetcfg.Mongo{
			CollectionPrefix: "legacy_",
			Collections:      map[string]string{"auth_user": "users"},
		},
	}}
	assert.Equal(t, "legacy_app_book", m.CollectionName("app_book"))
	assert.Equal(t, "users", m.CollectionName("auth_user"))

	m.cfg.Target.StripTablePrefix = true
	assert.Equal(t, "legacy_book", m.CollectionName("app_book"))
	assert.Equal(t, "legacy_other_table", m.CollectionName("other_table"))
}

func TestPrefixTableName(t *testing.T) {
	assert.Equal(t, "app_book", UnPrefixTableName("", "app_book"))
	assert.Equal(t, "book", UnPrefixTableName("app_", PrefixTableName("app_", "book")))
}

func TestRunWithCallerOwnedSource(t *testing.T) {
	path := djangoSource(t)
	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	defer db.Close()
	fs := afero.NewMemMapFs()

	h := newHarness(t, WithSource(db), WithSinks(report.NewFSSink(fs, "/custom")))
	summary, err := h.migrator.Run(context.Background(), newJob(t, path))
	require.NoError(t, err)
	assert.Equal(t, 5, summary.Totals.Migrated)

	exists, err := afero.Exists(fs, fmt.Sprintf("/custom/%s/failures.jsonl", summary.RunID))
	require.NoError(t, err)
	assert.True(t, exists)
	// left open for the caller
	assert.NoError(t, db.Ping())
}

// missingTableFetcher : reads model from a table that is not there
type missingTableFetcher struct {
	table.InfoFetcher
	model string
}

func (f *missingTableFetcher) SelectAll(a *table.Info) string {
	if a.TableName == f.model {
		return `SELECT "id","note" FROM "app_dropped"`
	}
	return f.InfoFetcher.SelectAll(a)
}

func TestRunStopsOnSourceQueryError(t *testing.T) {
	path := djangoSource(t)
	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	defer db.Close()

	h := newHarness(t,
		WithSource(db),
		WithInfoFetcher(&missingTableFetcher{InfoFetcher: table.NewInfoFetcherSqlite(db), model: "app_empty"}),
	)
	summary, err := h.migrator.Run(context.Background(), newJob(t, path))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "app_empty")

	// app_book comes after the failed model and is never started
	assert.Equal(t, []string{"app_author", "app_empty"}, modelNames(summary))
	assert.Equal(t, state.Success, summary.Models[0].Status)
	assert.Equal(t, state.Failed, summary.Models[1].Status)
	assert.Contains(t, summary.Models[1].Error, "app_dropped")
	assert.Len(t, h.writer.docs["author"], 3)
	assert.NotContains(t, h.writer.docs, "books")

	run, err := h.state.GetRunLog(summary.RunID)
	require.NoError(t, err)
	assert.Equal(t, state.Failed, run.Status)
	assert.Equal(t, 3, run.RowsMigrated)

	models, err := h.state.GetModelRunLogs(summary.RunID)
	require.NoError(t, err)
	require.Len(t, models, 2)
	assert.Equal(t, state.Success, models[0].Status)
	assert.Equal(t, state.Failed, models[1].Status)
	assert.Equal(t, "app_empty", models[1].TableName)

	failed, err := h.state.DidModelFailForRun(summary.RunID)
	require.NoError(t, err)
	assert.True(t, failed)

	b, err := afero.ReadFile(h.fs, fmt.Sprintf("/reports/%s/summary.json", summary.RunID))
	require.NoError(t, err)
	var published report.Summary
	require.NoError(t, json.Unmarshal(b, &published))
	require.Len(t, published.Models, 2)
	assert.Equal(t, state.Failed, published.Models[1].Status)
}
