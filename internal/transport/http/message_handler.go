package httptransport

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"chatrelay/backend/internal/middleware"
	"chatrelay/backend/internal/monitoring"
	"chatrelay/backend/internal/service"
)

// MessageHandler 处理消息的提交与拉取
type MessageHandler struct {
	messages *service.MessageService
	metrics  *monitoring.Metrics
	log      *zap.Logger
}

// NewMessageHandler 创建消息处理器
func NewMessageHandler(messages *service.MessageService, metrics *monitoring.Metrics, log *zap.Logger) *MessageHandler {
	return &MessageHandler{
		messages: messages,
		metrics:  metrics,
		log:      log,
	}
}

type submitRequest struct {
	Receiver  string `json:"receiver" form:"receiver"`
	Message   string `json:"message" form:"message"`
	Timestamp string `json:"timestamp" form:"timestamp"`
}

type messageResponse struct {
	Sender    string `json:"sender"`
	Body      string `json:"body"`
	Timestamp int64  `json:"timestamp"`
}

// 拒绝原因 -> 指标标签
var rejectReasons = map[error]string{
	service.ErrUnknownSender:    "unknown_sender",
	service.ErrMissingRecipient: "missing_recipient",
	service.ErrUnknownRecipient: "unknown_recipient",
	service.ErrMissingTimestamp: "missing_timestamp",
	service.ErrMissingBody:      "missing_body",
	service.ErrStaleTimestamp:   "stale_timestamp",
}

// Submit 提交一条消息。发件人取自认证身份,校验失败的请求不产生任何副作用。
// @Summary 发送消息
// @Tags 消息
// @Accept json
// @Produce json
// @Security BasicAuth
// @Param request body submitRequest true "消息内容"
// @Success 200 {object} Response "已投递"
// @Failure 400 {object} Response "校验失败"
// @Router /v1/messages [post]
func (h *MessageHandler) Submit(c *gin.Context) {
	identity := middleware.Identity(c)

	var req submitRequest
	// 字段缺失由准入校验统一裁决,绑定失败只拦截格式错误
	if err := c.ShouldBind(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	outcome, err := h.messages.Submit(identity, req.Receiver, req.Message, req.Timestamp, time.Now())
	if err != nil {
		if reason, ok := rejectReasons[err]; ok {
			h.metrics.RecordMessageRejected(reason)
			BadRequest(c, GetErrorMessage(err))
			return
		}
		h.log.Error("消息投递失败", zap.Error(err))
		InternalError(c, MsgInternalError)
		return
	}

	h.metrics.RecordMessageSubmitted()
	switch outcome {
	case service.OutcomePushed:
		h.metrics.RecordMessagePushed()
	case service.OutcomeBuffered:
		h.metrics.RecordMessageBuffered()
	}

	h.log.Debug("消息已接受",
		zap.String("sender", identity),
		zap.String("receiver", req.Receiver),
	)
	SuccessWithMsg(c, "已投递", nil)
}

// Poll 取走当前身份信箱中的全部待取消息。
// 消息按到达顺序返回,取走即删除;信箱为空时返回空列表。
// @Summary 拉取消息
// @Tags 消息
// @Produce json
// @Security BasicAuth
// @Success 200 {object} Response "待取消息列表"
// @Router /v1/messages/poll [post]
func (h *MessageHandler) Poll(c *gin.Context) {
	identity := middleware.Identity(c)

	drained := h.messages.Poll(identity)
	h.metrics.RecordMessagesPolled(len(drained))

	responses := make([]messageResponse, len(drained))
	for i, message := range drained {
		responses[i] = messageResponse{
			Sender:    message.Sender,
			Body:      message.Body,
			Timestamp: message.Timestamp,
		}
	}

	Success(c, responses)
}
