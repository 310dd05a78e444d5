package table

import (
	"context"
	"database/sql"
	"strings"

	"github.com/baderkha/sql2mongo/pkg/migrate/table/colmap"
	"golang.org/x/sync/errgroup"
)

func NewInfoFetcherMysql(db *sql.DB, dbName string) InfoFetcher {
	return &InfoFetcherMYSQL{
		source: db,
		dbName: dbName,
	}
}

type InfoFetcherMYSQL struct {
	source *sql.DB
	dbName string
}

func (m *InfoFetcherMYSQL) MappingType() colmap.Type {
	return colmap.MysqlToMongo
}

func (m *InfoFetcherMYSQL) SelectAll(a *Info) string {
	return selectAll(a, WrapQ, WrapQ(a.DatabaseName)+"."+WrapQ(a.TableName))
}

func WrapQ(sql string) string {
	return "`" + strings.ReplaceAll(sql, "`", "``") + "`"
}

func (m *InfoFetcherMYSQL) All(ctx context.Context, f *FetchOptions) ([]*Info, error) {
	var (
		res      []*Info
		tSizesMp = make(map[string]float64)
		wg, gctx = errgroup.WithContext(ctx)
	)

	wg.Go(func() error {
		rows, err := m.source.QueryContext(gctx, `
	select table_schema as db_name ,
    table_name
	from information_schema.tables
	where table_type = 'BASE TABLE'
		and table_schema = ?
		order by db_name, table_name
	`, m.dbName)
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

func (m *InfoFetcherMYSQL) GetAllTableSizes(ctx context.Context) ([]*tableSizes, error) {
	var res []*tableSizes
	rows, err := m.source.QueryContext(ctx, `SELECT
	TABLE_NAME AS tb_name,
	ROUND(((DATA_LENGTH + INDEX_LENGTH) / 1024 / 1024),4) AS size_mb
  FROM
	information_schema.TABLES
  WHERE
	TABLE_SCHEMA = ?
	AND TABLE_TYPE = 'BASE TABLE'
  ORDER BY
	(DATA_LENGTH + INDEX_LENGTH)
  DESC`, m.dbName)
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

// GetTableInfo : DATA_TYPE rather than COLUMN_TYPE , the mapping does not care about widths
func (m *InfoFetcherMYSQL) GetTableInfo(ctx context.Context, dbName string, table string) ([]*ColumnTypes, error) {
	var res []*ColumnTypes
	rows, err := m.source.QueryContext(ctx, `SELECT COLUMN_NAME AS col_name, DATA_TYPE AS col_type
	FROM information_schema.COLUMNS
	WHERE TABLE_SCHEMA = ? AND TABLE_NAME = ?
	ORDER BY ORDINAL_POSITION`, dbName, table)
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

func (m *InfoFetcherMYSQL) GetPrimaryKey(ctx context.Context, dbName string, table string) ([]string, error) {
	var res []string
	rows, err := m.source.QueryContext(ctx, `
	SELECT
		COLUMN_NAME as col_name
	FROM
		INFORMATION_SCHEMA.STATISTICS
	WHERE
		TABLE_SCHEMA = ?
		AND TABLE_NAME = ?
		AND lower(INDEX_NAME) = 'primary'
	ORDER BY SEQ_IN_INDEX
`, dbName, table)
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
