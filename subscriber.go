// Subscriber base implementations for flowgo
// 消费者侧的基础订阅者实现
package flowgo

import (
	"sync"
)

// ============================================================================
// BaseSubscriber 基础订阅者实现
// ============================================================================

// BaseSubscriber 基础订阅者，提供订阅句柄管理等常用功能
// 同一订阅者不可同时参与两个订阅：重复的OnSubscribe会取消新的订阅
type BaseSubscriber struct {
	subscription Subscription
	mu           sync.RWMutex
}

// OnSubscribe 订阅开始时调用
func (b *BaseSubscriber) OnSubscribe(subscription Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.subscription != nil {
		subscription.Cancel()
		return
	}

	b.subscription = subscription
}

// Subscription 获取已捕获的订阅句柄
func (b *BaseSubscriber) Subscription() Subscription {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.subscription
}

// Request 请求指定数量的数据项
func (b *BaseSubscriber) Request(n int64) {
	if subscription := b.Subscription(); subscription != nil {
		subscription.Request(n)
	}
}

// Cancel 取消订阅
func (b *BaseSubscriber) Cancel() {
	if subscription := b.Subscription(); subscription != nil {
		subscription.Cancel()
	}
}

// IsCancelled 检查是否已取消
func (b *BaseSubscriber) IsCancelled() bool {
	if subscription := b.Subscription(); subscription != nil {
		return subscription.IsCancelled()
	}
	return false
}

// OnNext 默认实现（使用方需要重写）
func (b *BaseSubscriber) OnNext(item Item) {
}

// OnError 默认实现（使用方需要重写）
func (b *BaseSubscriber) OnError(err error) {
}

// OnComplete 默认实现（使用方需要重写）
func (b *BaseSubscriber) OnComplete() {
}

// ============================================================================
// 回调订阅者
// ============================================================================

// callbackSubscriber 回调订阅者
type callbackSubscriber struct {
	BaseSubscriber
	onNext     OnNext
	onError    OnError
	onComplete OnComplete
}

func (cs *callbackSubscriber) OnNext(item Item) {
	if cs.onNext != nil {
		cs.onNext(item.GetValue())
	}
}

func (cs *callbackSubscriber) OnError(err error) {
	if cs.onError != nil {
		cs.onError(err)
	}
}

func (cs *callbackSubscriber) OnComplete() {
	if cs.onComplete != nil {
		cs.onComplete()
	}
}
