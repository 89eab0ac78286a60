// Package memcache 进程内快照缓存。按资产标识维护版本计数器与单飞刷新声明，
// 版本号跨删除与重建单调递增。
package memcache

import (
	"sync"

	"github.com/fynnwu/marketdata/internal/marketdata/domain"
)

// entry 单个资产的缓存条目。version 是该标识的终身计数器，
// Remove 只清空 snapshot，不回退 version。
type entry struct {
	mu         sync.Mutex
	snapshot   *domain.AssetSnapshot
	version    uint64
	refreshing bool
	done       chan struct{}
}

// SnapshotCache domain.SnapshotCache 的内存实现
type SnapshotCache struct {
	mu      sync.RWMutex
	entries map[domain.AssetIdentifier]*entry
}

// New 创建空缓存
func New() *SnapshotCache {
	return &SnapshotCache{
		entries: make(map[domain.AssetIdentifier]*entry),
	}
}

func (c *SnapshotCache) lookup(id domain.AssetIdentifier) *entry {
	c.mu.RLock()
	e := c.entries[id]
	c.mu.RUnlock()
	return e
}

func (c *SnapshotCache) getOrCreate(id domain.AssetIdentifier) *entry {
	if e := c.lookup(id); e != nil {
		return e
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[id]; ok {
		return e
	}
	e := &entry{}
	c.entries[id] = e
	return e
}

// Get 读取当前快照，不阻塞于任何在途刷新
func (c *SnapshotCache) Get(id domain.AssetIdentifier) (*domain.AssetSnapshot, bool) {
	e := c.lookup(id)
	if e == nil {
		return nil, false
	}
	e.mu.Lock()
	snap := e.snapshot
	e.mu.Unlock()
	return snap, snap != nil
}

// Put 整体替换快照并分配下一个版本号，返回实际存储的拷贝。
// 存储值的 Stale 恒为 false，过期标记只出现在对外的拷贝上。
func (c *SnapshotCache) Put(id domain.AssetIdentifier, snapshot *domain.AssetSnapshot) *domain.AssetSnapshot {
	e := c.getOrCreate(id)
	e.mu.Lock()
	defer e.mu.Unlock()

	e.version++
	cp := snapshot.Clone()
	cp.ID = id
	cp.Version = e.version
	cp.Stale = false
	e.snapshot = cp
	return cp
}

// Seed 仅当条目为空时装入快照，用于温启动。保留快照自带的版本号，
// 计数器只向上对齐，版本序列不回退。条目已有快照时返回现值。
func (c *SnapshotCache) Seed(id domain.AssetIdentifier, snapshot *domain.AssetSnapshot) *domain.AssetSnapshot {
	e := c.getOrCreate(id)
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.snapshot != nil {
		return e.snapshot
	}

	cp := snapshot.Clone()
	cp.ID = id
	cp.Stale = false
	if cp.Version < e.version {
		cp.Version = e.version
	}
	e.version = cp.Version
	e.snapshot = cp
	return cp
}

// TryBeginRefresh 原子认领刷新权。同一标识在 EndRefresh 之前只有一个认领者，
// 落选者得到在途刷新的完成通道。
func (c *SnapshotCache) TryBeginRefresh(id domain.AssetIdentifier) (bool, <-chan struct{}) {
	e := c.getOrCreate(id)
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.refreshing {
		return false, e.done
	}
	e.refreshing = true
	e.done = make(chan struct{})
	return true, e.done
}

// EndRefresh 释放刷新权并唤醒所有等待者，未认领时为空操作
func (c *SnapshotCache) EndRefresh(id domain.AssetIdentifier) {
	e := c.lookup(id)
	if e == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.refreshing {
		return
	}
	e.refreshing = false
	close(e.done)
	e.done = nil
}

// Remove 清空快照但保留版本计数器，重建后的版本号接续原序列
func (c *SnapshotCache) Remove(id domain.AssetIdentifier) {
	e := c.lookup(id)
	if e == nil {
		return
	}
	e.mu.Lock()
	e.snapshot = nil
	e.mu.Unlock()
}

// Keys 返回当前持有快照的标识
func (c *SnapshotCache) Keys() []domain.AssetIdentifier {
	c.mu.RLock()
	defer c.mu.RUnlock()

	keys := make([]domain.AssetIdentifier, 0, len(c.entries))
	for id, e := range c.entries {
		e.mu.Lock()
		held := e.snapshot != nil
		e.mu.Unlock()
		if held {
			keys = append(keys, id)
		}
	}
	return keys
}

// Len 返回当前持有的快照数量
func (c *SnapshotCache) Len() int {
	return len(c.Keys())
}
