package classifier

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisPrefix is the key prefix used when NewRedisStore gets an empty one
const DefaultRedisPrefix = "nbc"

type redisStore struct {
	client *redis.Client
	ctx    context.Context
	prefix string
}

// NewRedisStore returns a Redis backed Store. All keys live under prefix.
func NewRedisStore(ctx context.Context, client *redis.Client, prefix string) (Store, error) {
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("classifier: redis connection failed: %w", err)
	}
	return &redisStore{client: client, ctx: ctx, prefix: prefix}, nil
}

func (rs *redisStore) categoriesKey() string  { return rs.prefix + ":categories" }
func (rs *redisStore) categorySetKey() string { return rs.prefix + ":category_set" }
func (rs *redisStore) totalsKey() string      { return rs.prefix + ":totals" }
func (rs *redisStore) docsKey() string        { return rs.prefix + ":docs" }
func (rs *redisStore) vocabKey() string       { return rs.prefix + ":vocab" }
func (rs *redisStore) wordsKey(category string) string {
	return rs.prefix + ":words:" + category
}

func (rs *redisStore) Categories() ([]string, error) {
	return rs.client.LRange(rs.ctx, rs.categoriesKey(), 0, -1).Result()
}

func (rs *redisStore) exists(category string) (bool, error) {
	return rs.client.SIsMember(rs.ctx, rs.categorySetKey(), category).Result()
}

func (rs *redisStore) AddCategory(name string) error {
	added, err := rs.client.SAdd(rs.ctx, rs.categorySetKey(), name).Result()
	if err != nil {
		return err
	}
	if added == 0 {
		return nil
	}
	pipe := rs.client.TxPipeline()
	pipe.RPush(rs.ctx, rs.categoriesKey(), name)
	pipe.HSet(rs.ctx, rs.totalsKey(), name, 0)
	pipe.HSet(rs.ctx, rs.docsKey(), name, 0)
	_, err = pipe.Exec(rs.ctx)
	return err
}

func (rs *redisStore) AddDocument(category string, tokens []string) error {
	ok, err := rs.exists(category)
	if err != nil {
		return err
	}
	if !ok {
		return ErrCategoryDoesNotExist(category)
	}

	counts := make(map[string]int64, len(tokens))
	for _, t := range tokens {
		counts[t]++
	}

	pipe := rs.client.TxPipeline()
	wordsKey := rs.wordsKey(category)
	members := make([]interface{}, 0, len(counts))
	for t, n := range counts {
		pipe.HIncrBy(rs.ctx, wordsKey, t, n)
		members = append(members, t)
	}
	if len(members) > 0 {
		pipe.SAdd(rs.ctx, rs.vocabKey(), members...)
	}
	pipe.HIncrBy(rs.ctx, rs.totalsKey(), category, int64(len(tokens)))
	pipe.HIncrBy(rs.ctx, rs.docsKey(), category, 1)
	if _, err := pipe.Exec(rs.ctx); err != nil {
		return fmt.Errorf("classifier: training failed: %w", err)
	}
	return nil
}

func parseCounts(raw map[string]string) (map[string]int64, error) {
	counts := make(map[string]int64, len(raw))
	for k, v := range raw {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("classifier: bad count for %q: %w", k, err)
		}
		counts[k] = n
	}
	return counts, nil
}

func (rs *redisStore) Totals() (map[string]int64, error) {
	raw, err := rs.client.HGetAll(rs.ctx, rs.totalsKey()).Result()
	if err != nil {
		return nil, err
	}
	return parseCounts(raw)
}

func (rs *redisStore) VocabularySize() (int, error) {
	n, err := rs.client.SCard(rs.ctx, rs.vocabKey()).Result()
	return int(n), err
}

func (rs *redisStore) TokenCounts(categories, tokens []string) (map[string]map[string]int64, error) {
	if categories == nil {
		var err error
		if categories, err = rs.Categories(); err != nil {
			return nil, err
		}
	} else {
		for _, c := range categories {
			if ok, err := rs.exists(c); err != nil {
				return nil, err
			} else if !ok {
				return nil, ErrCategoryDoesNotExist(c)
			}
		}
	}

	res := make(map[string]map[string]int64, len(categories))
	if len(tokens) == 0 {
		for _, c := range categories {
			res[c] = make(map[string]int64)
		}
		return res, nil
	}

	pipe := rs.client.Pipeline()
	cmds := make(map[string]*redis.SliceCmd, len(categories))
	for _, c := range categories {
		cmds[c] = pipe.HMGet(rs.ctx, rs.wordsKey(c), tokens...)
	}
	if _, err := pipe.Exec(rs.ctx); err != nil && err != redis.Nil {
		return nil, fmt.Errorf("classifier: failed to get token counts: %w", err)
	}
	for c, cmd := range cmds {
		counts := make(map[string]int64, len(tokens))
		for i, v := range cmd.Val() {
			var n int64
			if s, ok := v.(string); ok {
				var err error
				if n, err = strconv.ParseInt(s, 10, 64); err != nil {
					return nil, fmt.Errorf("classifier: bad count for %q: %w", tokens[i], err)
				}
			}
			counts[tokens[i]] = n
		}
		res[c] = counts
	}
	return res, nil
}

func (rs *redisStore) Snapshot() (*Snapshot, error) {
	cats, err := rs.Categories()
	if err != nil {
		return nil, err
	}
	totals, err := rs.Totals()
	if err != nil {
		return nil, err
	}
	rawDocs, err := rs.client.HGetAll(rs.ctx, rs.docsKey()).Result()
	if err != nil {
		return nil, err
	}
	docs, err := parseCounts(rawDocs)
	if err != nil {
		return nil, err
	}

	snap := &Snapshot{Categories: make([]CategoryStats, 0, len(cats))}
	for _, c := range cats {
		raw, err := rs.client.HGetAll(rs.ctx, rs.wordsKey(c)).Result()
		if err != nil {
			return nil, err
		}
		wc, err := parseCounts(raw)
		if err != nil {
			return nil, err
		}
		snap.Categories = append(snap.Categories, CategoryStats{
			Name:      c,
			Total:     totals[c],
			Documents: docs[c],
			WordCount: wc,
		})
	}
	snap.Vocab, err = rs.client.SMembers(rs.ctx, rs.vocabKey()).Result()
	if err != nil {
		return nil, err
	}
	sort.Strings(snap.Vocab)
	return snap, nil
}

func (rs *redisStore) Restore(snap *Snapshot) error {
	old, err := rs.Categories()
	if err != nil {
		return err
	}
	pipe := rs.client.TxPipeline()
	keys := []string{rs.categoriesKey(), rs.categorySetKey(), rs.totalsKey(), rs.docsKey(), rs.vocabKey()}
	for _, c := range old {
		keys = append(keys, rs.wordsKey(c))
	}
	pipe.Del(rs.ctx, keys...)
	for _, cs := range snap.Categories {
		pipe.RPush(rs.ctx, rs.categoriesKey(), cs.Name)
		pipe.SAdd(rs.ctx, rs.categorySetKey(), cs.Name)
		pipe.HSet(rs.ctx, rs.totalsKey(), cs.Name, cs.Total)
		pipe.HSet(rs.ctx, rs.docsKey(), cs.Name, cs.Documents)
		if len(cs.WordCount) > 0 {
			fields := make(map[string]interface{}, len(cs.WordCount))
			for t, n := range cs.WordCount {
				fields[t] = n
			}
			pipe.HSet(rs.ctx, rs.wordsKey(cs.Name), fields)
		}
	}
	if len(snap.Vocab) > 0 {
		members := make([]interface{}, len(snap.Vocab))
		for i, t := range snap.Vocab {
			members[i] = t
		}
		pipe.SAdd(rs.ctx, rs.vocabKey(), members...)
	}
	_, err = pipe.Exec(rs.ctx)
	return err
}
