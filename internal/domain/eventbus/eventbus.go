package eventbus

import (
	evbus "github.com/asaskevich/EventBus"
)

// Bus is a topic-based publish/subscribe hub. Handlers subscribed with
// SubscribeAsync run on their own goroutine; WaitAsync blocks until they
// finish.
type Bus struct {
	bus evbus.Bus
}

// New 创建新的事件总线
func New() *Bus {
	return &Bus{bus: evbus.New()}
}

// Publish 发布事件。A nil bus drops the event.
func (b *Bus) Publish(topic string, args ...interface{}) {
	if b == nil {
		return
	}
	b.bus.Publish(topic, args...)
}

// Subscribe 订阅同步事件
func (b *Bus) Subscribe(topic string, fn interface{}) error {
	return b.bus.Subscribe(topic, fn)
}

// SubscribeAsync 订阅异步事件，同一处理器的事件按顺序执行
func (b *Bus) SubscribeAsync(topic string, fn interface{}) error {
	return b.bus.SubscribeAsync(topic, fn, true)
}

// WaitAsync 等待异步处理器执行完毕
func (b *Bus) WaitAsync() {
	if b == nil {
		return
	}
	b.bus.WaitAsync()
}
