package data

import (
	"context"
	"sync"
	"time"

	"entitlement-service/internal/biz"
	"entitlement-service/internal/constants"
	"entitlement-service/internal/metrics"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-redsync/redsync/v4"
)

// redsyncLocker 基于 redsync 的分布式锁
type redsyncLocker struct {
	sync    *redsync.Redsync
	log     *log.Helper
	metrics *metrics.EntitlementMetrics
}

// NewLocker 创建分布式锁（返回 biz.Locker 接口）
func NewLocker(rs *redsync.Redsync, logger log.Logger) biz.Locker {
	return &redsyncLocker{
		sync:    rs,
		log:     log.NewHelper(logger),
		metrics: metrics.GetMetrics(),
	}
}

// Lock 获取锁，返回的 unlock 只会释放一次
func (l *redsyncLocker) Lock(ctx context.Context, key string, expiry time.Duration) (func(), error) {
	lockStartTime := time.Now()
	mutex := l.sync.NewMutex(key, redsync.WithExpiry(expiry))
	if err := mutex.LockContext(ctx); err != nil {
		l.observe(constants.LockResultFailed, lockStartTime)
		return nil, err
	}
	l.observe(constants.LockResultSuccess, lockStartTime)

	var once sync.Once
	return func() {
		once.Do(func() {
			if ok, err := mutex.Unlock(); !ok || err != nil {
				l.log.Warnf("failed to release lock: key=%s, error=%v", key, err)
			}
		})
	}, nil
}

func (l *redsyncLocker) observe(result string, start time.Time) {
	if l.metrics != nil {
		l.metrics.LockAcquireTotal.WithLabelValues(result).Inc()
		l.metrics.LockAcquireDuration.Observe(time.Since(start).Seconds())
	}
}
