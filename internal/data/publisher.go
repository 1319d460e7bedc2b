package data

import (
	"context"
	"encoding/json"
	"fmt"

	"entitlement-service/internal/biz"

	"github.com/apache/rocketmq-client-go/v2/primitive"
	"github.com/go-kratos/kratos/v2/log"
)

// mqPublisher 通过 RocketMQ 发布购买事件
type mqPublisher struct {
	data *Data
	log  *log.Helper
}

// noopPublisher 未启用 MQ 时使用
type noopPublisher struct{}

func (noopPublisher) PublishPurchaseApplied(context.Context, *biz.PurchaseAppliedEvent) error {
	return nil
}

// NewEventPublisher 创建事件发布器（返回 biz.EventPublisher 接口）
func NewEventPublisher(data *Data, logger log.Logger) biz.EventPublisher {
	if data.mq == nil {
		return noopPublisher{}
	}
	return &mqPublisher{
		data: data,
		log:  log.NewHelper(logger),
	}
}

// PublishPurchaseApplied 同步发送购买生效事件，以交易号为 key
func (p *mqPublisher) PublishPurchaseApplied(ctx context.Context, event *biz.PurchaseAppliedEvent) error {
	msgBytes, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal purchase event: %w", err)
	}
	msg := primitive.NewMessage(p.data.mqTopic, msgBytes)
	msg.WithKeys([]string{event.TransactionID})

	res, err := p.data.mq.SendSync(ctx, msg)
	if err != nil {
		return fmt.Errorf("send purchase event: %w", err)
	}
	p.log.WithContext(ctx).Debugf("Purchase event sent: transaction_id=%s, msg_id=%s", event.TransactionID, res.MsgID)
	return nil
}
