package data

import (
	"context"
	"fmt"
	"time"

	"entitlement-service/internal/conf"
	"entitlement-service/internal/constants"
	"entitlement-service/internal/data/model"

	"github.com/apache/rocketmq-client-go/v2"
	"github.com/apache/rocketmq-client-go/v2/primitive"
	"github.com/apache/rocketmq-client-go/v2/producer"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-redis/redis/v8"
	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v8"
	"github.com/google/wire"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// ProviderSet is data providers.
var ProviderSet = wire.NewSet(
	NewDB,
	NewRedis,
	NewRedsync,
	NewData,
	NewUserRepo,
	NewUsageRepo,
	NewReceiptRepo,
	NewPremiumGrantRepo,
	NewTransactor,
	NewLocker,
	NewEventPublisher,
	NewReceiptVerifier,
)

// 数据库驱动
const (
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"
)

// Data 数据层结构体
type Data struct {
	db      *gorm.DB
	rdb     *redis.Client // 可为 nil，缓存不可用时直接读数据库
	mq      rocketmq.Producer
	mqTopic string
}

// NewDB 创建数据库连接
func NewDB(c *conf.Bootstrap) (*gorm.DB, error) {
	if c.Data == nil || c.Data.Database == nil {
		return nil, fmt.Errorf("database config is nil")
	}

	var dialector gorm.Dialector
	switch c.Data.Database.Driver {
	case "", DriverMySQL:
		dialector = mysql.Open(c.Data.Database.Source)
	case DriverPostgres:
		dialector = postgres.Open(c.Data.Database.Source)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", c.Data.Database.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		// 唯一约束冲突转换为 gorm.ErrDuplicatedKey
		TranslateError: true,
	})
	if err != nil {
		return nil, err
	}

	if c.Data.Database.AutoMigrate {
		if err := Migrate(db); err != nil {
			return nil, fmt.Errorf("auto migrate: %w", err)
		}
	}
	return db, nil
}

// Migrate 创建或更新表结构
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&model.User{},
		&model.UsageCounter{},
		&model.Receipt{},
		&model.PremiumGrant{},
	)
}

// NewRedis 创建 Redis 连接
func NewRedis(c *conf.Bootstrap) (*redis.Client, error) {
	if c.Data == nil || c.Data.Redis == nil {
		return nil, fmt.Errorf("redis config is nil")
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:         c.Data.Redis.Addr,
		Password:     c.Data.Redis.Password,
		DB:           int(c.Data.Redis.Db),
		ReadTimeout:  c.Data.Redis.ReadTimeout.AsDuration(),
		WriteTimeout: c.Data.Redis.WriteTimeout.AsDuration(),
	})

	// 测试连接
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return rdb, nil
}

// NewRedsync 创建基于 Redis 的分布式锁
func NewRedsync(rdb *redis.Client) *redsync.Redsync {
	return redsync.New(goredis.NewPool(rdb))
}

// newProducer 创建 RocketMQ 生产者，未启用时返回 nil
func newProducer(c *conf.Data_Rocketmq) (rocketmq.Producer, error) {
	if c == nil || !c.Enabled {
		return nil, nil
	}
	if len(c.NameServers) == 0 {
		return nil, fmt.Errorf("rocketmq name_servers is empty")
	}

	groupName := c.GroupName
	if groupName == "" {
		groupName = "entitlement-service"
	}
	retry := int(c.RetryTimes)
	if retry <= 0 {
		retry = 2
	}

	p, err := rocketmq.NewProducer(
		producer.WithNsResolver(primitive.NewPassthroughResolver(c.NameServers)),
		producer.WithGroupName(groupName),
		producer.WithRetry(retry),
	)
	if err != nil {
		return nil, fmt.Errorf("create rocketmq producer: %w", err)
	}
	if err := p.Start(); err != nil {
		return nil, fmt.Errorf("start rocketmq producer: %w", err)
	}
	return p, nil
}

// NewData 创建数据层实例
func NewData(c *conf.Bootstrap, logger log.Logger, db *gorm.DB, rdb *redis.Client) (*Data, func(), error) {
	var mqConf *conf.Data_Rocketmq
	if c.Data != nil {
		mqConf = c.Data.Rocketmq
	}
	mq, err := newProducer(mqConf)
	if err != nil {
		return nil, nil, err
	}

	topic := constants.TopicPurchaseApplied
	if mqConf != nil && mqConf.Topic != "" {
		topic = mqConf.Topic
	}

	cleanup := func() {
		log.NewHelper(logger).Info("closing the data resources")
		if mq != nil {
			if err := mq.Shutdown(); err != nil {
				log.NewHelper(logger).Errorf("failed to shutdown rocketmq producer: %v", err)
			}
		}
		sqlDB, err := db.DB()
		if err == nil {
			sqlDB.Close()
		}
		if rdb != nil {
			if err := rdb.Close(); err != nil {
				log.NewHelper(logger).Errorf("failed to close redis: %v", err)
			}
		}
	}

	return &Data{
		db:      db,
		rdb:     rdb,
		mq:      mq,
		mqTopic: topic,
	}, cleanup, nil
}
