// Package statestore はOAuth stateトークン用のTTL付きキーバリューストアを提供する。
// Redisが利用可能な場合はRedisを使用し、初期化時または呼び出し時の接続障害で
// プロセス存続期間中インメモリ動作に片方向ダウングレードする。
package statestore

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config はストアの接続設定。Hostが空の場合は最初からインメモリで動作する。
type Config struct {
	Host string
	Port int
}

// Store はTTL付きキーバリューストア。
// Redis接続障害時はインメモリマップにフォールバックする。
// フォールバック側ではTTLは強制されず、エントリは削除されるまで残る。
type Store struct {
	logger *slog.Logger

	mu        sync.Mutex
	client    *redis.Client
	available bool
	fallback  map[string]string
}

// New はStoreを生成する。Redisへの接続を1回試行し、失敗した場合は
// インメモリフォールバックで動作する。エラーは返さない。
func New(cfg Config, logger *slog.Logger) *Store {
	s := &Store{
		logger:   logger,
		fallback: make(map[string]string),
	}

	if cfg.Host == "" {
		logger.Info("redis not configured, using in-memory storage for oauth states")
		return s
	}

	client := redis.NewClient(&redis.Options{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		DialTimeout:  5 * time.Second,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("failed to connect to redis, using in-memory fallback",
			slog.String("addr", client.Options().Addr),
			slog.String("error", err.Error()),
		)
		_ = client.Close()
		return s
	}

	s.client = client
	s.available = true
	logger.Info("redis connection established",
		slog.String("addr", client.Options().Addr),
	)
	return s
}

// Available はRedis接続が有効かを返す。ヘルス・診断レポート用。
func (s *Store) Available() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.available
}

// Put はキーと値をTTL付きで保存する。
// Redis障害時はインメモリに保存する（TTLなし）。失敗しない。
func (s *Store) Put(ctx context.Context, key, value string, ttl time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.available {
		if err := s.client.Set(ctx, key, value, ttl).Err(); err != nil {
			s.degrade("set", err)
		} else {
			return
		}
	}

	s.fallback[key] = value
}

// Get はキーに対応する値を返す。存在しない場合は空文字列とfalseを返す。
func (s *Store) Get(ctx context.Context, key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.available {
		value, err := s.client.Get(ctx, key).Result()
		switch {
		case err == nil:
			return value, true
		case err == redis.Nil:
			return "", false
		default:
			s.degrade("get", err)
		}
	}

	value, ok := s.fallback[key]
	return value, ok
}

// Exists はキーの存在を返す。
func (s *Store) Exists(ctx context.Context, key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.available {
		n, err := s.client.Exists(ctx, key).Result()
		if err == nil {
			return n > 0
		}
		s.degrade("exists", err)
	}

	_, ok := s.fallback[key]
	return ok
}

// Delete はキーを削除する。存在しないキーの削除は何もしない。
func (s *Store) Delete(ctx context.Context, key string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.available {
		if err := s.client.Del(ctx, key).Err(); err != nil {
			s.degrade("del", err)
		} else {
			return
		}
	}

	delete(s.fallback, key)
}

// Consume はキーの値を取得すると同時に削除する（単回消費）。
// キーが存在しない場合は空文字列とfalseを返す。
// Redis側ではGETDELによりアトミックに行われる。フォールバック側は
// ミューテックス保護下のcheck-then-deleteで、同等の単回性を持つ。
func (s *Store) Consume(ctx context.Context, key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.available {
		value, err := s.client.GetDel(ctx, key).Result()
		switch {
		case err == nil:
			return value, true
		case err == redis.Nil:
			return "", false
		default:
			s.degrade("getdel", err)
		}
	}

	value, ok := s.fallback[key]
	if ok {
		delete(s.fallback, key)
	}
	return value, ok
}

// Close はRedis接続を閉じる。インメモリ動作中は何もしない。
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.client != nil {
		if err := s.client.Close(); err != nil {
			s.logger.Warn("error closing redis connection", slog.String("error", err.Error()))
		}
		s.client = nil
		s.available = false
	}
}

// degrade はRedis障害を記録し、以降のすべての操作をインメモリに切り替える。
// ダウングレードは片方向で、再接続は試行しない。呼び出し元はmuを保持していること。
func (s *Store) degrade(op string, err error) {
	s.logger.Error("redis operation failed, switching to in-memory fallback",
		slog.String("op", op),
		slog.String("error", err.Error()),
	)
	s.available = false
	if s.client != nil {
		_ = s.client.Close()
		s.client = nil
	}
}
