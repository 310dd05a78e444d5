package target

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// Writer : saves one document , an existing key is an error and never overwritten
type Writer interface {
	InsertOne(ctx context.Context, collection string, doc bson.D) error
}

type MongoWriter struct {
	db *mongo.Database
}

func NewMongoWriter(db *mongo.Database) *MongoWriter {
	return &MongoWriter{db: db}
}

func (w *MongoWriter) InsertOne(ctx context.Context, collection string, doc bson.D) error {
	_, err := w.db.Collection(collection).InsertOne(ctx, doc)
	return err
}

// IsDuplicateKey : the row was already copied , by this run or an earlier one
func IsDuplicateKey(err error) bool {
	return mongo.IsDuplicateKeyError(err)
}
