package conf

import (
	"encoding/json"
	"fmt"
	"time"
)

// Bootstrap 服务启动配置（对应 configs/config.yaml）
type Bootstrap struct {
	Env         string       `json:"env"`
	Server      *Server      `json:"server"`
	Data        *Data        `json:"data"`
	Entitlement *Entitlement `json:"entitlement"`
	Verifier    *Verifier    `json:"verifier"`
	Cron        *Cron        `json:"cron"`
}

// Server 服务端配置
type Server struct {
	Http *Server_HTTP `json:"http"`
}

// Server_HTTP HTTP 服务配置
type Server_HTTP struct {
	Network string    `json:"network"`
	Addr    string    `json:"addr"`
	Timeout *Duration `json:"timeout"`
}

// Data 数据层配置
type Data struct {
	Database *Data_Database `json:"database"`
	Redis    *Data_Redis    `json:"redis"`
	Rocketmq *Data_Rocketmq `json:"rocketmq"`
}

// Data_Database 数据库配置，driver 支持 mysql / postgres
type Data_Database struct {
	Driver      string `json:"driver"`
	Source      string `json:"source"`
	AutoMigrate bool   `json:"auto_migrate"`
}

// Data_Redis Redis 配置
type Data_Redis struct {
	Addr         string    `json:"addr"`
	Password     string    `json:"password"`
	Db           int32     `json:"db"`
	ReadTimeout  *Duration `json:"read_timeout"`
	WriteTimeout *Duration `json:"write_timeout"`
}

// Data_Rocketmq RocketMQ 生产者配置
type Data_Rocketmq struct {
	Enabled     bool     `json:"enabled"`
	NameServers []string `json:"name_servers"`
	GroupName   string   `json:"group_name"`
	Topic       string   `json:"topic"`
	RetryTimes  int32    `json:"retry_times"`
}

// Entitlement 配额与商品配置
type Entitlement struct {
	Timezone           string              `json:"timezone"`
	DailyLimits        map[string]int32    `json:"daily_limits"`
	PlanOverride       string              `json:"plan_override"`
	UsageRetentionDays int32               `json:"usage_retention_days"`
	Products           map[string]*Product `json:"products"`
	PurchaseLockExpiry *Duration           `json:"purchase_lock_expiry"`
}

// Product 商品目录条目
type Product struct {
	CreditsPerUnit     int32 `json:"credits_per_unit"`
	PremiumDaysPerUnit int32 `json:"premium_days_per_unit"`
}

// Verifier 收据校验配置，mode: deterministic / external
type Verifier struct {
	Mode        string              `json:"mode"`
	MaxAttempts int32               `json:"max_attempts"`
	AppStore    *Verifier_AppStore  `json:"app_store"`
	RateLimit   *Verifier_RateLimit `json:"rate_limit"`
}

// Verifier_AppStore App Store verifyReceipt 端点配置
type Verifier_AppStore struct {
	ProductionEndpoint string    `json:"production_endpoint"`
	SandboxEndpoint    string    `json:"sandbox_endpoint"`
	SharedSecret       string    `json:"shared_secret"`
	Timeout            *Duration `json:"timeout"`
}

// Verifier_RateLimit 出站请求限流（每个端点）
type Verifier_RateLimit struct {
	Rps   float64 `json:"rps"`
	Burst int32   `json:"burst"`
}

// Cron 定时任务配置
type Cron struct {
	UsageRetentionSpec string `json:"usage_retention_spec"`
}

// Duration 支持 "1.5s" 形式的时长配置
type Duration struct {
	time.Duration
}

// NewDuration 创建 Duration
func NewDuration(d time.Duration) *Duration {
	return &Duration{Duration: d}
}

// AsDuration 返回 time.Duration，nil 时为 0
func (d *Duration) AsDuration() time.Duration {
	if d == nil {
		return 0
	}
	return d.Duration
}

// UnmarshalJSON 解析字符串时长或纳秒数
func (d *Duration) UnmarshalJSON(b []byte) error {
	var v interface{}
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch value := v.(type) {
	case float64:
		d.Duration = time.Duration(value)
		return nil
	case string:
		parsed, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", value, err)
		}
		d.Duration = parsed
		return nil
	default:
		return fmt.Errorf("invalid duration %v", v)
	}
}

// MarshalJSON 输出字符串时长
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}
