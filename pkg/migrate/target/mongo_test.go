package target

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
)

func TestMongoWriter(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("insert", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse())
		w := NewMongoWriter(mt.DB)

		err := w.InsertOne(context.Background(), "app_book", bson.D{{Key: "_id", Value: int64(1)}})
		assert.NoError(mt, err)
	})

	mt.Run("duplicate key", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateWriteErrorsResponse(mtest.WriteError{
			Index:   0,
			Code:    11000,
			Message: "E11000 duplicate key error collection: default.app_book index: _id_ dup key: { _id: 1 }",
		}))
		w := NewMongoWriter(mt.DB)

		err := w.InsertOne(context.Background(), "app_book", bson.D{{Key: "_id", Value: int64(1)}})
		assert.Error(mt, err)
		assert.True(mt, IsDuplicateKey(err))
	})
}
