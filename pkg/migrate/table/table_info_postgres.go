package table

import (
	"context"
	"database/sql"
	"strings"

	"github.com/baderkha/sql2mongo/pkg/migrate/table/colmap"
	"golang.org/x/sync/errgroup"
)

func NewInfoFetcherPostgres(db *sql.DB, schema string) InfoFetcher {
	return &InfoFetcherPostgres{
		source: db,
		schema: schema,
	}
}

type InfoFetcherPostgres struct {
	source *sql.DB
	schema string
}

type tableSizes struct {
	Table  string  `db:"tb_name"`
	SizeMB float64 `db:"size_mb"`
}

func (m *InfoFetcherPostgres) MappingType() colmap.Type {
	return colmap.PostgresToMongo
}

func (m *InfoFetcherPostgres) SelectAll(a *Info) string {
	return selectAll(a, quotePostgres, quotePostgres(a.DatabaseName)+"."+quotePostgres(a.TableName))
}

func quotePostgres(ident string) string {
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}

func (m *InfoFetcherPostgres) All(ctx context.Context, f *FetchOptions) ([]*Info, error) {
	var (
		res      []*Info
		tSizesMp = make(map[string]float64)
		wg, gctx = errgroup.WithContext(ctx)
	)

	wg.Go(func() error {
		rows, err := m.source.QueryContext(gctx, `
	select table_schema as db_name,
		table_name
	from information_schema.tables
	where table_type = 'BASE TABLE'
		and table_schema = $1
	order by table_name
	`, m.schema)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var ifo Info
			if err := rows.Scan(&ifo.DatabaseName, &ifo.TableName); err != nil {
				return err
			}
			res = append(res, &ifo)
		}
		return rows.Err()
	})
	wg.Go(func() error {
		tSizes, err := m.GetAllTableSizes(gctx)
		if err != nil {
			return err
		}
		for _, v := range tSizes {
			tSizesMp[v.Table] = v.SizeMB
		}
		return nil
	})
	if err := wg.Wait(); err != nil {
		return nil, err
	}

	for _, ifo := range res {
		var (
			schma    []*ColumnTypes
			pk       []string
			wg, gctx = errgroup.WithContext(ctx)
		)
		ifo.SizeMB = tSizesMp[ifo.TableName]

		wg.Go(func() (err error) {
			pk, err = m.GetPrimaryKey(gctx, ifo.DatabaseName, ifo.TableName)
			return err
		})
		wg.Go(func() (err error) {
			schma, err = m.GetTableInfo(gctx, ifo.DatabaseName, ifo.TableName)
			return err
		})
		if err := wg.Wait(); err != nil {
			return nil, err
		}
		ifo.Schema = schma
		ifo.PrimaryKey = pk
	}
	return filterAndSort(res, f), nil
}

func (m *InfoFetcherPostgres) GetAllTableSizes(ctx context.Context) ([]*tableSizes, error) {
	var res []*tableSizes
	rows, err := m.source.QueryContext(ctx, `
	select table_name as tb_name,
		round(pg_total_relation_size(format('%I.%I', table_schema, table_name)) / 1024.0 / 1024.0, 4)::float8 as size_mb
	from information_schema.tables
	where table_type = 'BASE TABLE'
		and table_schema = $1`, m.schema)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var ifo tableSizes
		if err := rows.Scan(&ifo.Table, &ifo.SizeMB); err != nil {
			return nil, err
		}
		res = append(res, &ifo)
	}
	return res, rows.Err()
}

// GetTableInfo : udt_name is used as the type , it is what names arrays (_int4) and enums
func (m *InfoFetcherPostgres) GetTableInfo(ctx context.Context, dbName string, table string) ([]*ColumnTypes, error) {
	var res []*ColumnTypes
	rows, err := m.source.QueryContext(ctx, `
	select column_name as col_name, udt_name as col_type
	from information_schema.columns
	where table_schema = $1 and table_name = $2
	order by ordinal_position`, dbName, table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var ifo ColumnTypes
		if err := rows.Scan(&ifo.ColumnName, &ifo.Type); err != nil {
			return nil, err
		}
		res = append(res, &ifo)
	}
	return res, rows.Err()
}

func (m *InfoFetcherPostgres) GetPrimaryKey(ctx context.Context, dbName string, table string) ([]string, error) {
	var res []string
	rows, err := m.source.QueryContext(ctx, `
	select kcu.column_name
	from information_schema.table_constraints tc
	join information_schema.key_column_usage kcu
		on tc.constraint_name = kcu.constraint_name
		and tc.table_schema = kcu.table_schema
		and tc.table_name = kcu.table_name
	where tc.constraint_type = 'PRIMARY KEY'
		and tc.table_schema = $1
		and tc.table_name = $2
	order by kcu.ordinal_position`, dbName, table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var col string
		if err := rows.Scan(&col); err != nil {
			return nil, err
		}
		res = append(res, col)
	}
	return res, rows.Err()
}
