package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/rueidis"
	"github.com/redis/rueidis/mock"
	"go.uber.org/mock/gomock"

	"github.com/kailas-cloud/searchkit/internal/db"
)

func TestPing(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)
	c.EXPECT().
		Do(gomock.Any(), mock.Match("PING")).
		Return(mock.Result(mock.RedisString("PONG")))

	if err := NewStoreForTest(c, 0).Ping(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestPing_Error(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)
	c.EXPECT().
		Do(gomock.Any(), mock.Match("PING")).
		Return(mock.ErrorResult(context.DeadlineExceeded))

	err := NewStoreForTest(c, 0).Ping(context.Background())
	if !isDBError(err) {
		t.Fatalf("expected db.Error, got %v", err)
	}
}

func TestWaitForReady_Timeout(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)
	c.EXPECT().
		Do(gomock.Any(), mock.Match("PING")).
		Return(mock.ErrorResult(errors.New("connection refused"))).
		AnyTimes()

	err := NewStoreForTest(c, 0).WaitForReady(context.Background(), 250*time.Millisecond)
	if err == nil {
		t.Fatal("expected timeout")
	}
	if !isDBError(err) {
		t.Errorf("expected the last ping error to be wrapped, got %v", err)
	}
}

func TestPutHashes(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)
	c.EXPECT().
		DoMulti(gomock.Any(),
			mock.Match("HSET", "obj:1", "title", "one"),
			mock.Match("HSET", "obj:2", "title", "two"),
		).
		Return([]rueidis.RedisResult{
			mock.Result(mock.RedisInt64(1)),
			mock.Result(mock.RedisInt64(1)),
		})

	err := NewStoreForTest(c, 0).PutHashes(context.Background(), []db.Hash{
		{Key: "obj:1", Fields: map[string]string{"title": "one"}},
		{Key: "obj:2", Fields: map[string]string{"title": "two"}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestPutHashes_TTL(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)
	c.EXPECT().
		DoMulti(gomock.Any(),
			mock.Match("HSET", "obj:1", "title", "one"),
			mock.Match("EXPIRE", "obj:1", "60"),
		).
		Return([]rueidis.RedisResult{
			mock.Result(mock.RedisInt64(1)),
			mock.Result(mock.RedisInt64(1)),
		})

	err := NewStoreForTest(c, time.Minute).PutHashes(context.Background(), []db.Hash{
		{Key: "obj:1", Fields: map[string]string{"title": "one"}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestPutHashes_ErrorNamesKey(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)
	c.EXPECT().
		DoMulti(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return([]rueidis.RedisResult{
			mock.Result(mock.RedisInt64(1)),
			mock.Result(mock.RedisInt64(1)),
			mock.ErrorResult(errors.New("READONLY")),
			mock.Result(mock.RedisInt64(1)),
		})

	err := NewStoreForTest(c, time.Minute).PutHashes(context.Background(), []db.Hash{
		{Key: "obj:1", Fields: map[string]string{"a": "1"}},
		{Key: "obj:2", Fields: map[string]string{"a": "2"}},
	})
	var dbErr *db.Error
	if !errors.As(err, &dbErr) {
		t.Fatalf("expected db.Error, got %v", err)
	}
	if dbErr.Op != db.OpHSet || dbErr.Err.Error() != "key obj:2: READONLY" {
		t.Errorf("err = %v", err)
	}
}

func TestPutHashes_Empty(t *testing.T) {
	if err := NewStoreForTest(nil, 0).PutHashes(context.Background(), nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestGetHashes(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)
	c.EXPECT().
		DoMulti(gomock.Any(), mock.Match("HGETALL", "obj:1"), mock.Match("HGETALL", "obj:2")).
		Return([]rueidis.RedisResult{
			mock.Result(mock.RedisMap(map[string]rueidis.RedisMessage{
				"id": mock.RedisString("1"),
			})),
			mock.Result(mock.RedisMap(map[string]rueidis.RedisMessage{})),
		})

	got, err := NewStoreForTest(c, 0).GetHashes(context.Background(), []string{"obj:1", "obj:2"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 results, got %d", len(got))
	}
	if got[0]["id"] != "1" {
		t.Errorf("got[0] = %v", got[0])
	}
	if len(got[1]) != 0 {
		t.Errorf("missing key should yield an empty map, got %v", got[1])
	}
}

func TestGetHashes_Error(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)
	c.EXPECT().
		DoMulti(gomock.Any(), gomock.Any()).
		Return([]rueidis.RedisResult{mock.ErrorResult(context.DeadlineExceeded)})

	_, err := NewStoreForTest(c, 0).GetHashes(context.Background(), []string{"obj:1"})
	if !isDBError(err) {
		t.Fatalf("expected db.Error, got %v", err)
	}
}

func TestGetHashes_Empty(t *testing.T) {
	got, err := NewStoreForTest(nil, 0).GetHashes(context.Background(), nil)
	if err != nil || got != nil {
		t.Fatalf("got %v, %v", got, err)
	}
}

func isDBError(err error) bool {
	var dbErr *db.Error
	return errors.As(err, &dbErr)
}
