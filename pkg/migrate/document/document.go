// package document
//
// turns one source row into the document saved for it
package document

import (
	"fmt"
	"strings"

	"github.com/baderkha/sql2mongo/pkg/migrate/config/targetcfg"
	"github.com/baderkha/sql2mongo/pkg/migrate/table"
	"github.com/baderkha/sql2mongo/pkg/migrate/table/colmap"
	"github.com/hashicorp/go-multierror"
	"go.mongodb.org/mongo-driver/bson"
)

const IDField = "_id"

// Builder : per model , values passed to it must follow info.Schema order
type Builder struct {
	info  *table.Info
	mode  targetcfg.IDMode
	pkIdx []int
}

func NewBuilder(info *table.Info, mode targetcfg.IDMode) (*Builder, error) {
	b := &Builder{info: info, mode: mode}
	for _, pk := range info.PrimaryKey {
		idx := -1
		for i, col := range info.Schema {
			if col.ColumnName == pk {
				idx = i
				break
			}
		}
		if idx < 0 {
			return nil, fmt.Errorf("%s : primary key column %s is not in the schema", info.TableName, pk)
		}
		b.pkIdx = append(b.pkIdx, idx)
	}
	return b, nil
}

// Build : every column under its own name , _id first when the key is carried over
func (b *Builder) Build(values []any) (bson.D, error) {
	if len(values) != len(b.info.Schema) {
		return nil, fmt.Errorf("expected %d values got %d", len(b.info.Schema), len(values))
	}
	var (
		finalErr  error
		converted = make([]any, len(values))
	)
	for i, col := range b.info.Schema {
		v, err := colmap.ConvertValue(col.TargetType, values[i])
		if err != nil {
			finalErr = multierror.Append(finalErr, fmt.Errorf("column %s : %w", col.ColumnName, err))
			continue
		}
		converted[i] = v
	}
	if finalErr != nil {
		return nil, finalErr
	}

	doc := make(bson.D, 0, len(values)+1)
	id, carried := b.id(converted)
	if carried {
		doc = append(doc, bson.E{Key: IDField, Value: id})
	}
	for i, col := range b.info.Schema {
		if col.ColumnName == IDField && carried {
			// a source column literally named _id that is the key itself
			if b.isSoleKey(i) {
				continue
			}
			return nil, fmt.Errorf("column %s collides with the carried key of %s", IDField, b.info.TableName)
		}
		doc = append(doc, bson.E{Key: col.ColumnName, Value: converted[i]})
	}
	return doc, nil
}

func (b *Builder) isSoleKey(idx int) bool {
	return len(b.pkIdx) == 1 && b.pkIdx[0] == idx
}

// id : single column keys are used as is , composite keys become a sub document
func (b *Builder) id(converted []any) (any, bool) {
	if b.mode != targetcfg.IDFromPrimaryKey || len(b.pkIdx) == 0 {
		return nil, false
	}
	if len(b.pkIdx) == 1 {
		v := converted[b.pkIdx[0]]
		return v, v != nil
	}
	key := make(bson.D, 0, len(b.pkIdx))
	for _, idx := range b.pkIdx {
		if converted[idx] == nil {
			return nil, false
		}
		key = append(key, bson.E{Key: b.info.Schema[idx].ColumnName, Value: converted[idx]})
	}
	return key, true
}

// Key : printable primary key of a raw row , used to name failed rows
func (b *Builder) Key(values []any) string {
	if len(b.pkIdx) == 0 || len(values) != len(b.info.Schema) {
		return ""
	}
	parts := make([]string, 0, len(b.pkIdx))
	for _, idx := range b.pkIdx {
		v := values[idx]
		if raw, ok := v.([]byte); ok {
			v = string(raw)
		}
		parts = append(parts, fmt.Sprintf("%s=%v", b.info.Schema[idx].ColumnName, v))
	}
	return strings.Join(parts, ",")
}
