package mongo_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/dmitrymomot/notifykit/pkg/mongo"
)

func TestNew_InvalidURL(t *testing.T) {
	t.Parallel()

	_, err := mongo.New(context.Background(), mongo.Config{
		ConnectionURL:  "not-a-mongo-url",
		ConnectTimeout: time.Second,
		RetryAttempts:  2,
		RetryInterval:  time.Millisecond,
	})
	assert.ErrorIs(t, err, mongo.ErrFailedToConnectToMongo)
}

func TestNew_ContextCancelledBetweenAttempts(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := mongo.New(ctx, mongo.Config{
		ConnectionURL: "not-a-mongo-url",
		RetryAttempts: 5,
		RetryInterval: time.Hour,
	})
	assert.ErrorIs(t, err, mongo.ErrFailedToConnectToMongo)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewWithDatabase_EmptyName(t *testing.T) {
	t.Parallel()

	_, err := mongo.NewWithDatabase(context.Background(), mongo.Config{ConnectionURL: "mongodb://localhost:27017"})
	assert.ErrorIs(t, err, mongo.ErrEmptyDatabaseName)
}
