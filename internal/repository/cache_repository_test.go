package repository

import (
	"context"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/noah-isme/lingowow-api/pkg/errors"
)

func TestCacheRepositoryGetMiss(t *testing.T) {
	client, mock := redismock.NewClientMock()
	repo := NewCacheRepository(client)

	mock.ExpectGet("periods:list:all").RedisNil()

	var out []string
	err := repo.Get(context.Background(), "periods:list:all", &out)
	assert.ErrorIs(t, err, appErrors.ErrCacheMiss)
}

func TestCacheRepositorySetAndGet(t *testing.T) {
	client, mock := redismock.NewClientMock()
	repo := NewCacheRepository(client)

	mock.Regexp().ExpectSet("k", `.*`, time.Minute).SetVal("OK")
	mock.ExpectGet("k").SetVal(`["a"]`)

	require.NoError(t, repo.Set(context.Background(), "k", []string{"a"}, time.Minute))
	var out []string
	require.NoError(t, repo.Get(context.Background(), "k", &out))
	assert.Equal(t, []string{"a"}, out)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCacheRepositoryNilClient(t *testing.T) {
	repo := NewCacheRepository(nil)
	var out string
	assert.ErrorIs(t, repo.Get(context.Background(), "k", &out), appErrors.ErrCacheMiss)
	assert.NoError(t, repo.Set(context.Background(), "k", "v", time.Minute))
	assert.NoError(t, repo.DeleteByPattern(context.Background(), "k*"))
}
