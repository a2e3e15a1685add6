package service

import (
	"chatrelay/backend/internal/domain"
	"chatrelay/backend/internal/storage"

	"go.uber.org/zap"
)

// NotificationSink 实时推送通道。TryPush 尽力把消息推给在线的收件人,
// 返回是否推送成功;失败不重试,由投递层转入信箱暂存。
type NotificationSink interface {
	TryPush(message domain.Message) bool
}

// DeliveryOutcome 单条消息的投递结果
type DeliveryOutcome int

const (
	// OutcomePushed 已实时推送给收件人
	OutcomePushed DeliveryOutcome = iota
	// OutcomeBuffered 收件人不在线,已写入信箱等待拉取
	OutcomeBuffered
)

// DeliveryService 负责已通过准入校验的消息的投递:
// 先尝试实时推送,推不出去就写入信箱。推送调用发生在任何存储锁之外。
type DeliveryService struct {
	mailboxes storage.MailboxStore
	sink      NotificationSink
	logger    *zap.Logger
}

// NewDeliveryService 创建投递服务。sink 可以为 nil,此时全部消息走信箱。
func NewDeliveryService(mailboxes storage.MailboxStore, sink NotificationSink, logger *zap.Logger) *DeliveryService {
	return &DeliveryService{
		mailboxes: mailboxes,
		sink:      sink,
		logger:    logger,
	}
}

// Deliver 投递一条消息,返回实际走了哪条路径。
// 每条消息至多投递一次:推送成功就不再写信箱。
func (s *DeliveryService) Deliver(message domain.Message) DeliveryOutcome {
	if s.sink != nil && s.sink.TryPush(message) {
		s.logger.Debug("消息已实时推送",
			zap.String("sender", message.Sender),
			zap.String("recipient", message.Recipient),
		)
		return OutcomePushed
	}

	s.mailboxes.Append(message.Recipient, message)
	s.logger.Debug("消息已写入信箱",
		zap.String("sender", message.Sender),
		zap.String("recipient", message.Recipient),
	)
	return OutcomeBuffered
}

// Poll 取走并清空收件人信箱中的全部消息,按写入顺序返回。
// 同一条消息只会被一次 Poll 取到;信箱为空时返回空切片。
// 收件人先归一化,和 Deliver 写入时使用同一个信箱键。
func (s *DeliveryService) Poll(recipient string) []domain.Message {
	return s.mailboxes.Drain(domain.NormalizeIdentity(recipient))
}
