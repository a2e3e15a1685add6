package service

import (
	"time"

	"chatrelay/backend/internal/domain"
)

// MessageService 把准入校验和投递串成完整的收发流程,
// 是 HTTP 层使用的入口。
type MessageService struct {
	admission *AdmissionService
	delivery  *DeliveryService
}

// NewMessageService 创建消息服务
func NewMessageService(admission *AdmissionService, delivery *DeliveryService) *MessageService {
	return &MessageService{
		admission: admission,
		delivery:  delivery,
	}
}

// Submit 校验并投递一条消息。校验失败时不产生任何副作用:
// 不推送、不写信箱。
func (s *MessageService) Submit(sender, recipient, body, timestamp string, now time.Time) (DeliveryOutcome, error) {
	message, err := s.admission.Admit(sender, recipient, body, timestamp, now)
	if err != nil {
		return 0, err
	}
	return s.delivery.Deliver(message), nil
}

// Poll 取走收件人信箱中的全部待取消息
func (s *MessageService) Poll(recipient string) []domain.Message {
	return s.delivery.Poll(recipient)
}
