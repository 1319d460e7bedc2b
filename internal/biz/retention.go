package biz

import (
	"context"
	"fmt"
	"time"

	"entitlement-service/internal/metrics"

	"github.com/go-kratos/kratos/v2/log"
)

// UsageRetentionUseCase 使用记录保留策略（由 cron 进程执行）
type UsageRetentionUseCase struct {
	repo     UsageRepo
	calendar *UsageCalendar
	conf     *EntitlementConfig
	clock    Clock
	log      *log.Helper
	metrics  *metrics.EntitlementMetrics
}

// NewUsageRetentionUseCase 创建保留策略 UseCase
func NewUsageRetentionUseCase(repo UsageRepo, calendar *UsageCalendar, conf *EntitlementConfig, clock Clock, logger log.Logger) *UsageRetentionUseCase {
	return &UsageRetentionUseCase{
		repo:     repo,
		calendar: calendar,
		conf:     conf,
		clock:    clock,
		log:      log.NewHelper(logger),
		metrics:  metrics.GetMetrics(),
	}
}

// PurgeUsage 删除超过保留天数的使用计数，返回截止使用日和删除行数
func (uc *UsageRetentionUseCase) PurgeUsage(ctx context.Context) (string, int64, error) {
	cutoff := uc.calendar.Day(uc.clock().Add(-time.Duration(uc.conf.UsageRetentionDays) * 24 * time.Hour))
	deleted, err := uc.repo.DeleteUsageBefore(ctx, cutoff)
	if err != nil {
		return cutoff, 0, fmt.Errorf("delete usage before %s: %w", cutoff, err)
	}
	if uc.metrics != nil {
		uc.metrics.UsagePurgedTotal.Add(float64(deleted))
	}
	uc.log.Infof("Usage retention completed: cutoff=%s, deleted=%d", cutoff, deleted)
	return cutoff, deleted, nil
}
