package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// EntitlementMetrics 权益服务指标
type EntitlementMetrics struct {
	// 配额相关指标
	UsageEvaluateTotal  *prometheus.CounterVec // 配额检查总数（按结果）
	UsageRecordTotal    *prometheus.CounterVec // 使用记录总数（按是否消耗积分）
	UsageRecordDuration prometheus.Histogram   // 使用记录事务耗时
	CreditConsumedTotal prometheus.Counter     // 积分消耗总数

	// 购买相关指标
	PurchaseTotal    *prometheus.CounterVec   // 购买处理总数（按结果）
	PurchaseDuration prometheus.Histogram     // 购买处理耗时
	CreditsGranted   prometheus.Counter       // 发放积分总数
	PremiumDays      *prometheus.CounterVec   // 发放会员天数（按来源）
	VerifyAttempts   *prometheus.CounterVec   // 收据校验请求数（按端点、结果）
	VerifyDuration   *prometheus.HistogramVec // 收据校验耗时（按端点）

	// 分布式锁相关指标
	LockAcquireTotal    *prometheus.CounterVec // 锁获取总数（按结果）
	LockAcquireDuration prometheus.Histogram   // 锁获取耗时

	// 定时任务
	UsagePurgedTotal prometheus.Counter // 清理的使用记录行数
}

// NewEntitlementMetrics 创建权益服务指标
func NewEntitlementMetrics(reg prometheus.Registerer) *EntitlementMetrics {
	factory := promauto.With(reg)
	return &EntitlementMetrics{
		UsageEvaluateTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "entitlement_usage_evaluate_total",
				Help: "Total number of usage evaluations",
			},
			[]string{"result"}, // result: allowed/credit/denied/error
		),
		UsageRecordTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "entitlement_usage_record_total",
				Help: "Total number of recorded actions",
			},
			[]string{"consumed_credit"},
		),
		UsageRecordDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "entitlement_usage_record_duration_seconds",
				Help:    "Duration of usage record transactions",
				Buckets: prometheus.DefBuckets,
			},
		),
		CreditConsumedTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "entitlement_credit_consumed_total",
				Help: "Total number of credits consumed in place of daily quota",
			},
		),

		PurchaseTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "entitlement_purchase_total",
				Help: "Total number of processed purchases",
			},
			[]string{"result"}, // result: granted/replayed/conflict/rejected/error
		),
		PurchaseDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "entitlement_purchase_duration_seconds",
				Help:    "Duration of purchase processing including verification",
				Buckets: prometheus.DefBuckets,
			},
		),
		CreditsGranted: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "entitlement_credits_granted_total",
				Help: "Total number of credits granted by purchases",
			},
		),
		PremiumDays: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "entitlement_premium_days_granted_total",
				Help: "Total number of premium days granted",
			},
			[]string{"source"},
		),
		VerifyAttempts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "entitlement_verify_attempts_total",
				Help: "Total number of receipt verification attempts",
			},
			[]string{"backend", "outcome"}, // outcome: ok/retryable/terminal
		),
		VerifyDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "entitlement_verify_duration_seconds",
				Help:    "Duration of a single receipt verification attempt",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"backend"},
		),

		LockAcquireTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "entitlement_lock_acquire_total",
				Help: "Total number of lock acquisition attempts",
			},
			[]string{"result"}, // result: success/failed
		),
		LockAcquireDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "entitlement_lock_acquire_duration_seconds",
				Help:    "Duration of lock acquisition",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0}, // 毫秒级
			},
		),

		UsagePurgedTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "entitlement_usage_purged_total",
				Help: "Total number of usage counter rows removed by retention",
			},
		),
	}
}

// 全局指标实例
var (
	defaultMetrics *EntitlementMetrics
	once           sync.Once
)

// GetMetrics 获取全局指标实例（注册到默认 Registerer）
func GetMetrics() *EntitlementMetrics {
	once.Do(func() {
		defaultMetrics = NewEntitlementMetrics(prometheus.DefaultRegisterer)
	})
	return defaultMetrics
}
