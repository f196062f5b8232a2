package redis

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

type Config struct {
	Host     string
	Port     string
	Password string
	DB       int
}

func Connect(config Config, logger *zap.Logger) (*redis.Client, error) {
	addr := fmt.Sprintf("%s:%s", config.Host, config.Port)

	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     config.Password,
		DB:           config.DB,
		PoolSize:     100,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolTimeout:  4 * time.Second,
		IdleTimeout:  5 * time.Minute,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	fields := []zap.Field{zap.String("addr", addr)}
	if info, err := client.Info(ctx, "server").Result(); err == nil {
		if version, ok := parseInfo(info)["redis_version"]; ok {
			fields = append(fields, zap.String("version", version))
		}
	}
	logger.Info("redis connected", fields...)

	return client, nil
}

// statsKeys is the INFO subset exposed by the stats endpoint.
var statsKeys = []string{
	"redis_version",
	"connected_clients",
	"used_memory_human",
	"used_memory_peak_human",
	"total_connections_received",
	"total_commands_processed",
	"keyspace_hits",
	"keyspace_misses",
	"uptime_in_seconds",
}

// GetStats returns a subset of INFO. Keys the server does not report are
// left out.
func GetStats(ctx context.Context, client *redis.Client) (map[string]string, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	info, err := client.Info(ctx).Result()
	if err != nil {
		return nil, err
	}

	all := parseInfo(info)
	stats := make(map[string]string, len(statsKeys))
	for _, key := range statsKeys {
		if value, ok := all[key]; ok {
			stats[key] = value
		}
	}
	return stats, nil
}

func Ping(ctx context.Context, client *redis.Client) error {
	return client.Ping(ctx).Err()
}

func parseInfo(info string) map[string]string {
	out := make(map[string]string)
	for _, line := range strings.Split(info, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || line[0] == '#' {
			continue
		}
		if key, value, found := strings.Cut(line, ":"); found {
			out[key] = value
		}
	}
	return out
}
