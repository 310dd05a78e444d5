package table

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"

	"github.com/baderkha/sql2mongo/pkg/migrate/config/sourcecfg"
	"github.com/baderkha/sql2mongo/pkg/migrate/table/colmap"
)

type ColumnTypes struct {
	ColumnName string      `db:"col_name"`
	Type       string      `db:"col_type"`
	TargetType colmap.Kind `db:"target_type"`
}

// Info : one model , a source table and what is needed to copy it
type Info struct {
	TableName    string `db:"table_name"`
	DatabaseName string `db:"db_name"`
	Schema       []*ColumnTypes
	PrimaryKey   []string
	SizeMB       float64
}

// FieldCount : number of columns , the ordering heuristic
func (i *Info) FieldCount() int {
	return len(i.Schema)
}

func (i *Info) ColumnNames() []string {
	res := make([]string, 0, len(i.Schema))
	for _, c := range i.Schema {
		res = append(res, c.ColumnName)
	}
	return res
}

type InfoSortBy string
type InfoSortByDirection string

const (
	SortByFieldCount     InfoSortBy = "FieldCount"
	SortBySize           InfoSortBy = "Size"
	SortByAlphaTableName InfoSortBy = "TableName"
)

const (
	SortDirectionASC  InfoSortByDirection = "ASC"
	SortDirectionDESC InfoSortByDirection = "DESC"
)

type FetchOptions struct {
	SortByCol       InfoSortBy
	SortByDirection InfoSortByDirection
	// TableList : only these tables when set
	TableList []string
	// TablePrefix : only tables starting with it , eg the django app label
	TablePrefix string
	Exclude     []string
}

func (f *FetchOptions) keep(tableName string) bool {
	if f == nil {
		return true
	}
	for _, e := range f.Exclude {
		if e == tableName {
			return false
		}
	}
	if len(f.TableList) > 0 {
		found := false
		for _, t := range f.TableList {
			if t == tableName {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return strings.HasPrefix(tableName, f.TablePrefix)
}

type InfoFetcher interface {
	// All : every model of the source schema , filtered and sorted per f
	All(ctx context.Context, f *FetchOptions) ([]*Info, error)
	// SelectAll : query reading every row of a model , columns in Schema order
	SelectAll(a *Info) string
	// MappingType : column mapping used for this engine
	MappingType() colmap.Type
}

// NewInfoFetcher : fetcher for the source engine
func NewInfoFetcher(driver sourcecfg.Driver, db *sql.DB, schema string) (InfoFetcher, error) {
	switch driver {
	case sourcecfg.Postgres:
		return NewInfoFetcherPostgres(db, schema), nil
	case sourcecfg.MySQL:
		return NewInfoFetcherMysql(db, schema), nil
	case sourcecfg.SQLite:
		return NewInfoFetcherSqlite(db), nil
	}
	return nil, fmt.Errorf("no table info fetcher for driver %q", driver)
}

// filterAndSort : shared tail of every All implementation , ties always fall back to table name
func filterAndSort(res []*Info, f *FetchOptions) []*Info {
	kept := res[:0]
	for _, v := range res {
		if f.keep(v.TableName) {
			kept = append(kept, v)
		}
	}
	if f == nil || f.SortByCol == "" {
		return kept
	}
	desc := f.SortByDirection == SortDirectionDESC
	less := func(a, b *Info) bool {
		switch f.SortByCol {
		case SortByFieldCount:
			if a.FieldCount() != b.FieldCount() {
				return a.FieldCount() < b.FieldCount() != desc
			}
		case SortBySize:
			if a.SizeMB != b.SizeMB {
				return a.SizeMB < b.SizeMB != desc
			}
		case SortByAlphaTableName:
			return a.TableName < b.TableName != desc
		}
		return a.TableName < b.TableName
	}
	sort.SliceStable(kept, func(i, j int) bool {
		return less(kept[i], kept[j])
	})
	return kept
}

func selectAll(a *Info, quote func(string) string, from string) string {
	cols := make([]string, 0, len(a.Schema))
	for _, col := range a.Schema {
		cols = append(cols, quote(col.ColumnName))
	}
	return fmt.Sprintf(`SELECT %s FROM %s`, strings.Join(cols, ","), from)
}
