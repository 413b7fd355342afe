// Package redis implements a TopicStorage plugin backed by Redis: each
// topic's records live in one Redis sorted set keyed by the topic name,
// scored by ts_ms so range queries are a ZRANGEBYSCORE away.
//
// Connection pooling and retry/backoff settings mirror the teacher's
// internal/cache/cache.go client construction.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/solomatovs/gauss/internal/perr"
	"github.com/solomatovs/gauss/internal/pluginhost"
	"github.com/solomatovs/gauss/internal/record"
	"github.com/solomatovs/gauss/internal/topic"
)

func init() {
	params := []pluginhost.ConfigParam{
		{Name: "addr", Type: pluginhost.ParamStr, Context: pluginhost.ContextPostmaster, Required: true,
			Description: "host:port of the Redis server"},
		{Name: "password", Type: pluginhost.ParamStr, Context: pluginhost.ContextPostmaster,
			Default: paramPtr(pluginhost.StrValue("")), Description: "Redis AUTH password, empty for none"},
		{Name: "db", Type: pluginhost.ParamI64, Context: pluginhost.ContextPostmaster,
			Default: paramPtr(pluginhost.I64Value(0)), Description: "Redis logical database index"},
		{Name: "topic", Type: pluginhost.ParamStr, Context: pluginhost.ContextPostmaster, Required: true,
			Description: "sorted-set key this storage instance persists into"},
	}
	pluginhost.RegisterBuiltin(pluginhost.KindTopicStorage, "redis", params, func(cfg pluginhost.ConfigValues) (any, error) {
		return New(Config{
			Addr:     cfg.String("addr", ""),
			Password: cfg.String("password", ""),
			DB:       int(cfg.Int64("db", 0)),
			Key:      cfg.String("topic", ""),
		})
	})
}

func paramPtr(v pluginhost.ParamValue) *pluginhost.ParamValue { return &v }

// Config is the connection configuration for one Storage instance.
type Config struct {
	Addr     string
	Password string
	DB       int
	Key      string
}

// Storage persists records as members of a Redis sorted set, scored by
// TsMs. The member payload is the JSON-encoded record.
type Storage struct {
	client *goredis.Client
	key    string
}

// New dials Redis (and pings it) and returns a ready Storage.
func New(cfg Config) (*Storage, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,

		PoolSize:        25,
		MinIdleConns:    5,
		MaxIdleConns:    10,
		ConnMaxLifetime: 5 * time.Minute,
		ConnMaxIdleTime: 1 * time.Minute,

		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,

		MaxRetries:      3,
		MinRetryBackoff: 8 * time.Millisecond,
		MaxRetryBackoff: 512 * time.Millisecond,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, perr.Wrap(perr.KindIO, "redis", "failed to ping redis", err)
	}

	return &Storage{client: client, key: cfg.Key}, nil
}

func (s *Storage) Init(schema *record.Schema) error { return nil }

type envelope struct {
	TsMs  int64          `json:"ts_ms"`
	Key   string         `json:"key"`
	Value any            `json:"value"`
	Raw   *record.Raw    `json:"raw,omitempty"`
}

func (s *Storage) Save(records []record.Record) error {
	ctx := context.Background()
	pipe := s.client.TxPipeline()
	for _, r := range records {
		payload, err := json.Marshal(envelope{TsMs: r.TsMs, Key: r.Key, Value: r.Value, Raw: r.Raw})
		if err != nil {
			return perr.Wrap(perr.KindFormat, "redis", "failed to marshal record", err)
		}
		pipe.ZAdd(ctx, s.key, goredis.Z{Score: float64(r.TsMs), Member: payload})
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return perr.Wrap(perr.KindIO, "redis", "zadd failed", err)
	}
	return nil
}

func (s *Storage) Query(q topic.Query) (topic.QueryResult, error) {
	ctx := context.Background()
	min, max := "-inf", "+inf"
	if q.FromMs != nil {
		min = fmt.Sprintf("%d", *q.FromMs)
	}
	if q.ToMs != nil {
		max = fmt.Sprintf("(%d", *q.ToMs) // exclusive upper bound
	}

	// Always fetch ascending (oldest first): key filtering already happens
	// in Go below, so offset/limit must select a window on the timeline
	// independent of the requested presentation order, which is applied
	// last.
	members, err := s.client.ZRangeByScore(ctx, s.key, &goredis.ZRangeBy{Min: min, Max: max}).Result()
	if err != nil {
		return topic.QueryResult{}, perr.Wrap(perr.KindIO, "redis", "zrangebyscore failed", err)
	}

	records := make([]record.Record, 0, len(members))
	for _, m := range members {
		var env envelope
		if err := json.Unmarshal([]byte(m), &env); err != nil {
			continue
		}
		if q.Key != nil && env.Key != *q.Key {
			continue
		}
		records = append(records, record.Record{TsMs: env.TsMs, Key: env.Key, Value: env.Value, Raw: env.Raw})
	}

	if q.Limit != nil {
		limit := *q.Limit
		offset := 0
		if q.Offset != nil {
			offset = *q.Offset
			if offset < 0 {
				offset = 0
			}
		} else if limit < len(records) {
			// Limit without offset: the limit most recent matches — take
			// the tail of the ascending timeline regardless of the
			// requested presentation order.
			offset = len(records) - limit
		}
		end := offset + limit
		if offset > len(records) {
			offset = len(records)
		}
		if end > len(records) {
			end = len(records)
		}
		records = records[offset:end]
	} else if q.Offset != nil {
		offset := *q.Offset
		if offset < 0 {
			offset = 0
		}
		if offset > len(records) {
			offset = len(records)
		}
		records = records[offset:]
	}

	if q.Order == topic.OrderDesc {
		for i, j := 0, len(records)-1; i < j; i, j = i+1, j-1 {
			records[i], records[j] = records[j], records[i]
		}
	}

	return topic.QueryResult{Records: records}, nil
}

func (s *Storage) Flush() error { return nil }

func (s *Storage) Close() error { return s.client.Close() }
