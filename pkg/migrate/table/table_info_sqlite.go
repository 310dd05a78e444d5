package table

import (
	"context"
	"database/sql"

	"github.com/baderkha/sql2mongo/pkg/migrate/table/colmap"
)

const sqliteSchema = "main"

func NewInfoFetcherSqlite(db *sql.DB) InfoFetcher {
	return &InfoFetcherSqlite{source: db}
}

// InfoFetcherSqlite : sqlite keeps no table sizes , SortBySize falls back to table name
type InfoFetcherSqlite struct {
	source *sql.DB
}

func (m *InfoFetcherSqlite) MappingType() colmap.Type {
	return colmap.SqliteToMongo
}

func (m *InfoFetcherSqlite) SelectAll(a *Info) string {
	return selectAll(a, quotePostgres, quotePostgres(a.TableName))
}

func (m *InfoFetcherSqlite) All(ctx context.Context, f *FetchOptions) ([]*Info, error) {
	var res []*Info
	rows, err := m.source.QueryContext(ctx, `
	select name
	from sqlite_master
	where type = 'table'
		and name not like 'sqlite_%'
	order by name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		ifo := Info{DatabaseName: sqliteSchema}
		if err := rows.Scan(&ifo.TableName); err != nil {
			return nil, err
		}
		res = append(res, &ifo)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, ifo := range res {
		if err := m.fillTableInfo(ctx, ifo); err != nil {
			return nil, err
		}
	}
	return filterAndSort(res, f), nil
}

// fillTableInfo : table_info reports both the columns and their position in the primary key
func (m *InfoFetcherSqlite) fillTableInfo(ctx context.Context, ifo *Info) error {
	rows, err := m.source.QueryContext(ctx, `select name, type, pk from pragma_table_info(?) order by cid`, ifo.TableName)
	if err != nil {
		return err
	}
	defer rows.Close()

	pkAt := map[int]string{}
	for rows.Next() {
		var (
			col ColumnTypes
			pk  int
		)
		if err := rows.Scan(&col.ColumnName, &col.Type, &pk); err != nil {
			return err
		}
		ifo.Schema = append(ifo.Schema, &col)
		if pk > 0 {
			pkAt[pk] = col.ColumnName
		}
	}
	for i := 1; i <= len(pkAt); i++ {
		ifo.PrimaryKey = append(ifo.PrimaryKey, pkAt[i])
	}
	return rows.Err()
}
