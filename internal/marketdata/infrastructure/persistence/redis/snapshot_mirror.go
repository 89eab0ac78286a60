// Package redis 行情聚合服务的 Redis 读模型，进程重启后用于温启动快照缓存
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/fynnwu/marketdata/internal/marketdata/domain"
)

// SnapshotMirror 快照二级镜像。写入尽力而为，读取一致性以进程内缓存为准。
type SnapshotMirror struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewSnapshotMirror 创建快照镜像，ttl 不合法时退回 24 小时
func NewSnapshotMirror(client redis.UniversalClient, ttl time.Duration) *SnapshotMirror {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &SnapshotMirror{
		client: client,
		prefix: "marketdata:snapshot:",
		ttl:    ttl,
	}
}

func (m *SnapshotMirror) key(id domain.AssetIdentifier) string {
	return m.prefix + id.String()
}

// Load 读取镜像快照，键不存在时返回 (nil, nil)
func (m *SnapshotMirror) Load(ctx context.Context, id domain.AssetIdentifier) (*domain.AssetSnapshot, error) {
	data, err := m.client.Get(ctx, m.key(id)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load snapshot mirror: %w", err)
	}

	var snap domain.AssetSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("failed to unmarshal snapshot mirror: %w", err)
	}
	return &snap, nil
}

// Store 写入镜像快照
func (m *SnapshotMirror) Store(ctx context.Context, snapshot *domain.AssetSnapshot) error {
	if snapshot == nil {
		return nil
	}
	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	return m.client.Set(ctx, m.key(snapshot.ID), data, m.ttl).Err()
}

// Delete 移除镜像快照
func (m *SnapshotMirror) Delete(ctx context.Context, id domain.AssetIdentifier) error {
	return m.client.Del(ctx, m.key(id)).Err()
}
