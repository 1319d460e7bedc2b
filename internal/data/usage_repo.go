package data

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"entitlement-service/internal/biz"
	"entitlement-service/internal/constants"
	"entitlement-service/internal/data/model"

	pkgErrors "github.com/gaoyong06/go-pkg/errors"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-redis/redis/v8"
)

// usageCacheTTL 使用次数缓存过期时间
const usageCacheTTL = 5 * time.Minute

// setMaxScript 只在新值更大时覆盖，保证缓存计数单调递增
var setMaxScript = redis.NewScript(`
local current = tonumber(redis.call('GET', KEYS[1]) or '-1')
local value = tonumber(ARGV[1])
if value > current then
  redis.call('SET', KEYS[1], ARGV[1], 'PX', ARGV[2])
  return value
end
return current
`)

func usageCacheKey(userID, usageDay string) string {
	return fmt.Sprintf("%s%s:%s", constants.RedisKeyUsage, userID, usageDay)
}

// cacheUsage 写入使用次数缓存，失败只记录日志
func cacheUsage(ctx context.Context, rdb *redis.Client, logger *log.Helper, userID, usageDay string, count int) {
	if rdb == nil {
		return
	}
	cacheCtx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()
	key := usageCacheKey(userID, usageDay)
	if err := setMaxScript.Run(cacheCtx, rdb, []string{key}, count, usageCacheTTL.Milliseconds()).Err(); err != nil {
		logger.WithContext(ctx).Warnf("failed to update usage cache: key=%s, error=%v", key, err)
	}
}

// usageRepo 每日使用次数数据访问
type usageRepo struct {
	data *Data
	log  *log.Helper
}

// NewUsageRepo 创建使用次数 repo（返回 biz.UsageRepo 接口）
func NewUsageRepo(data *Data, logger log.Logger) biz.UsageRepo {
	return &usageRepo{
		data: data,
		log:  log.NewHelper(logger),
	}
}

// GetUsageCount 获取使用日计数，不存在时返回 0
func (r *usageRepo) GetUsageCount(ctx context.Context, userID, usageDay string) (int, error) {
	// 先尝试从 Redis 获取
	if r.data.rdb != nil {
		val, err := r.data.rdb.Get(ctx, usageCacheKey(userID, usageDay)).Result()
		if err == nil {
			if count, err := strconv.Atoi(val); err == nil {
				return count, nil
			}
		} else if err != redis.Nil {
			r.log.WithContext(ctx).Warnf("usage cache unavailable: userID=%s, error=%v", userID, err)
		}
	}

	// 缓存未命中，从数据库查询
	var counters []model.UsageCounter
	if err := r.data.db.WithContext(ctx).
		Where("user_id = ? AND usage_day = ?", userID, usageDay).
		Limit(1).
		Find(&counters).Error; err != nil {
		return 0, pkgErrors.WrapErrorWithLang(ctx, err, pkgErrors.ErrCodeDatabaseError)
	}
	count := 0
	if len(counters) > 0 {
		count = counters[0].UsedCount
	}

	// 更新缓存（异步，不阻塞）
	go cacheUsage(ctx, r.data.rdb, r.log, userID, usageDay, count)

	return count, nil
}

// DeleteUsageBefore 删除早于 usageDay 的计数
func (r *usageRepo) DeleteUsageBefore(ctx context.Context, usageDay string) (int64, error) {
	res := r.data.db.WithContext(ctx).
		Where("usage_day < ?", usageDay).
		Delete(&model.UsageCounter{})
	if res.Error != nil {
		return 0, pkgErrors.WrapErrorWithLang(ctx, res.Error, pkgErrors.ErrCodeDatabaseError)
	}
	return res.RowsAffected, nil
}
