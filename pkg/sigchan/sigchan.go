package sigchan

// Chan 是一个非阻塞的信号 channel
// 用于通知"状态变了、去重新读取"这类事件，不传递数据
type Chan struct {
	c chan struct{}
}

// New 创建新的信号 channel
func New(bufferSize int) *Chan {
	return &Chan{
		c: make(chan struct{}, bufferSize),
	}
}

// Emit 发送信号（非阻塞）
// channel 已满时直接丢弃：消费者醒来后总会读到最新状态，信号合并是安全的
func (c *Chan) Emit() {
	select {
	case c.c <- struct{}{}:
	default:
	}
}

// C 返回内部的 channel（用于 select）
func (c *Chan) C() <-chan struct{} {
	return c.c
}
