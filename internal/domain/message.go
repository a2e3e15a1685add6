package domain

// Message 表示一条已通过准入校验的待投递消息。
//
// 进入邮箱存储后 Message 不可变：只会整体追加、整体取走，
// 不存在部分更新。Recipient 在轮询响应中是隐含的（由轮询者
// 的身份决定），因此序列化时省略。
type Message struct {
	Sender    string `json:"sender"`    // 发送者身份（邮箱地址）
	Recipient string `json:"-"`         // 接收者身份，仅服务端内部使用
	Body      string `json:"body"`      // 消息正文
	Timestamp int64  `json:"timestamp"` // 发送方声明的 Unix 秒级时间戳
}
