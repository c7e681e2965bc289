package redis

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"SafeArrival/config"
	redisotel "SafeArrival/pkg/redis"
)

const defaultKeyPrefix = "sa"

var (
	client  *goredis.Client
	initMu  sync.Mutex
	pingTTL = 10 * time.Second
)

// NewClient 按配置创建客户端并探活，失败时关闭连接
func NewClient(ctx context.Context, cfg *config.Config) (*goredis.Client, error) {
	c := goredis.NewClient(&goredis.Options{
		Addr:         cfg.RedisAddr,
		Password:     cfg.RedisPassword,
		DB:           cfg.RedisDB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		MinIdleConns: 2,
		MaxRetries:   3,
	})

	if cfg.OTelEnabled {
		c.AddHook(redisotel.NewTracingHook(cfg.ServiceName, cfg.RedisDB))
	}

	pingCtx, cancel := context.WithTimeout(ctx, pingTTL)
	defer cancel()
	if err := c.Ping(pingCtx).Err(); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("ping redis %s: %w", cfg.RedisAddr, err)
	}
	return c, nil
}

// Init 初始化全局客户端，已初始化时直接返回
func Init() error {
	initMu.Lock()
	defer initMu.Unlock()
	if client != nil {
		return nil
	}

	c, err := NewClient(context.Background(), &config.Cfg)
	if err != nil {
		return err
	}
	client = c
	return nil
}

func Client() *goredis.Client {
	if client == nil {
		panic("redis client not initialized")
	}
	return client
}

func Close(ctx context.Context) error {
	initMu.Lock()
	defer initMu.Unlock()
	if client == nil {
		return nil
	}
	err := client.Close()
	client = nil
	return err
}

// Key 拼接带前缀的 key，空片段会被跳过
func Key(parts ...string) string {
	prefix := config.Cfg.RedisPrefix
	if prefix == "" {
		prefix = defaultKeyPrefix
	}

	segs := make([]string, 0, len(parts)+1)
	segs = append(segs, prefix)
	for _, p := range parts {
		if p != "" {
			segs = append(segs, p)
		}
	}
	return strings.Join(segs, ":")
}
