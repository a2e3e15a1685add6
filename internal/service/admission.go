package service

import (
	"errors"
	"strconv"
	"time"

	"chatrelay/backend/internal/domain"
)

// 消息准入错误。按校验顺序返回第一个命中的错误。
var (
	// ErrUnknownSender 发件人不在账户目录中
	ErrUnknownSender = errors.New("unknown sender")
	// ErrMissingRecipient 请求缺少收件人字段
	ErrMissingRecipient = errors.New("missing recipient")
	// ErrUnknownRecipient 收件人不在账户目录中
	ErrUnknownRecipient = errors.New("unknown recipient")
	// ErrMissingTimestamp 请求缺少时间戳或时间戳不是整数
	ErrMissingTimestamp = errors.New("missing or malformed timestamp")
	// ErrMissingBody 消息正文为空
	ErrMissingBody = errors.New("missing message body")
	// ErrStaleTimestamp 时间戳超出接受窗口(过旧或过于超前)
	ErrStaleTimestamp = errors.New("timestamp outside acceptance window")
)

// 时间戳接受窗口:now-maxAge < ts < now+maxSkew,两端均为严格不等。
// 刚好 300 秒前或刚好 60 秒后的消息会被拒绝。
const (
	maxMessageAge  = 300 * time.Second
	maxMessageSkew = 60 * time.Second
)

// IdentityDirectory 准入校验所依赖的账户目录视图。
type IdentityDirectory interface {
	// Exists 判断该邮箱是否对应已注册账户
	Exists(email string) bool
}

// AdmissionService 对入站消息做准入校验。
// 校验本身是纯函数:不落库、不推送,只决定接受或拒绝。
type AdmissionService struct {
	directory IdentityDirectory
}

// NewAdmissionService 创建准入服务
func NewAdmissionService(directory IdentityDirectory) *AdmissionService {
	return &AdmissionService{directory: directory}
}

// Admit 按固定顺序校验一条待发送消息,全部通过时返回构造好的 Message。
// 校验顺序:发件人已注册 → 收件人非空 → 收件人已注册 → 时间戳存在且为整数
// → 正文非空 → 时间戳落在接受窗口内。任何一步失败立即返回对应错误,
// 后续校验不再执行。
func (s *AdmissionService) Admit(sender, recipient, body, timestamp string, now time.Time) (domain.Message, error) {
	if !s.directory.Exists(sender) {
		return domain.Message{}, ErrUnknownSender
	}
	if recipient == "" {
		return domain.Message{}, ErrMissingRecipient
	}
	if !s.directory.Exists(recipient) {
		return domain.Message{}, ErrUnknownRecipient
	}
	if timestamp == "" {
		return domain.Message{}, ErrMissingTimestamp
	}
	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return domain.Message{}, ErrMissingTimestamp
	}
	if body == "" {
		return domain.Message{}, ErrMissingBody
	}

	nowUnix := now.Unix()
	if ts <= nowUnix-int64(maxMessageAge/time.Second) || ts >= nowUnix+int64(maxMessageSkew/time.Second) {
		return domain.Message{}, ErrStaleTimestamp
	}

	// 身份写入消息前先归一化,保证信箱键与账户目录使用同一形式,
	// 大小写变体不会把消息搁浅在无人认领的队列里
	return domain.Message{
		Sender:    domain.NormalizeIdentity(sender),
		Recipient: domain.NormalizeIdentity(recipient),
		Body:      body,
		Timestamp: ts,
	}, nil
}
