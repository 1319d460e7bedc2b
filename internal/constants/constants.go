package constants

// 时间格式常量
const (
	// TimeFormatDay 使用日格式 (YYYY-MM-DD)
	TimeFormatDay = "2006-01-02"
)

// 运行环境常量
const (
	// EnvProduction 生产环境
	EnvProduction = "production"
)

// Redis Key 前缀常量
const (
	// RedisKeyUsage 当日使用次数缓存 key 前缀 usage:{uid}:{day}
	RedisKeyUsage = "usage:"
	// RedisKeyPurchaseLock 购买处理锁 key 前缀
	RedisKeyPurchaseLock = "purchase:lock:"
)

// 收据状态常量，校验失败的收据不落库
const (
	// ReceiptStatusVerified 校验通过
	ReceiptStatusVerified = "VERIFIED"
)

// 收据校验模式常量
const (
	// VerifierModeDeterministic 离线/测试模式，base64 解码收据
	VerifierModeDeterministic = "deterministic"
	// VerifierModeExternal 调用平台校验接口
	VerifierModeExternal = "external"
)

// 收据环境常量
const (
	// ReceiptEnvSandbox 沙盒
	ReceiptEnvSandbox = "sandbox"
	// ReceiptEnvProduction 生产
	ReceiptEnvProduction = "production"
)

// 配额检查结果常量（用于指标）
const (
	// UsageResultAllowed 允许（套餐额度）
	UsageResultAllowed = "allowed"
	// UsageResultCredit 允许（消耗积分）
	UsageResultCredit = "credit"
	// UsageResultDenied 拒绝
	UsageResultDenied = "denied"
	// UsageResultError 错误
	UsageResultError = "error"
)

// 购买处理结果常量（用于指标）
const (
	// PurchaseResultGranted 已发放
	PurchaseResultGranted = "granted"
	// PurchaseResultReplayed 幂等重放
	PurchaseResultReplayed = "replayed"
	// PurchaseResultConflict 交易号冲突
	PurchaseResultConflict = "conflict"
	// PurchaseResultRejected 校验或商品错误
	PurchaseResultRejected = "rejected"
	// PurchaseResultError 内部错误
	PurchaseResultError = "error"
)

// 收据校验结果常量（用于指标）
const (
	// VerifyOutcomeOK 成功
	VerifyOutcomeOK = "ok"
	// VerifyOutcomeRetryable 可重试（环境错误、网络错误）
	VerifyOutcomeRetryable = "retryable"
	// VerifyOutcomeTerminal 终止
	VerifyOutcomeTerminal = "terminal"
)

// 锁获取结果常量（用于指标）
const (
	LockResultSuccess = "success"
	LockResultFailed  = "failed"
)

// 消息主题默认值
const (
	// TopicPurchaseApplied 购买生效事件
	TopicPurchaseApplied = "entitlement_purchase_applied"
)
