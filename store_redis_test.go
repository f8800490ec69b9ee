package classifier

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRedisStore(t *testing.T) (Store, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	store, err := NewRedisStore(context.Background(), client, "test")
	if err != nil {
		t.Fatal(err)
	}
	return store, client
}

func TestRedisStore(t *testing.T) {
	store, _ := newTestRedisStore(t)
	testStore(t, store)
}

func TestRedisStoreKeys(t *testing.T) {
	store, client := newTestRedisStore(t)
	store.AddCategory("spam")
	store.AddDocument("spam", []string{"cheap", "cheap"})

	ctx := context.Background()
	if n, err := client.HGet(ctx, "test:words:spam", "cheap").Int64(); err != nil {
		t.Fatal(err)
	} else if n != 2 {
		t.Fatalf("Expected 2 instead of %d", n)
	}
	if n, _ := client.HGet(ctx, "test:totals", "spam").Int64(); n != 2 {
		t.Fatalf("Expected total 2 instead of %d", n)
	}
}

func TestRedisStoreUnreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	mr.Close()
	if _, err := NewRedisStore(context.Background(), client, ""); err == nil {
		t.Fatal("Expected an error for an unreachable server")
	}
}

func TestRedisClassifier(t *testing.T) {
	store, _ := newTestRedisStore(t)
	bc, err := NewBayesianClassifier(store, newTestPreprocessor(t, 1))
	if err != nil {
		t.Fatal(err)
	}
	bc.Train("cheap pills buy now", "spam")
	bc.Train("meeting notes attached", "ham")
	if cat, err := bc.Classify("buy cheap pills"); err != nil {
		t.Fatal(err)
	} else if cat != "spam" {
		t.Fatalf("Expected spam instead of %s", cat)
	}
}
