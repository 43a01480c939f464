package database

import (
	"context"
	"fmt"
	"testing"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisClient_Ping(t *testing.T) {
	db, mock := redismock.NewClientMock()
	c := NewRedisFromClient(db)

	mock.ExpectPing().SetVal("PONG")
	require.NoError(t, c.Ping(context.Background()))

	mock.ExpectPing().SetErr(fmt.Errorf("connection refused"))
	err := c.Ping(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis ping failed")

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisClient_Publish(t *testing.T) {
	db, mock := redismock.NewClientMock()
	c := NewRedisFromClient(db)

	mock.ExpectPublish("hubs:leads", `{"event":"lead:deleted"}`).SetVal(1)
	require.NoError(t, c.Publish(context.Background(), "hubs:leads", `{"event":"lead:deleted"}`))
	require.NoError(t, mock.ExpectationsWereMet())
}
