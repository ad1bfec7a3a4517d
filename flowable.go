// Flowable interfaces for flowgo
// 支持背压的数据流抽象，遵循Reactive Streams的订阅协议
package flowgo

import (
	"sync/atomic"
)

// ============================================================================
// 订阅协议接口定义
// ============================================================================

// Subscription 订阅接口，生产者交给消费者的控制句柄
// 消费者通过Request声明还愿意接收多少数据（累积计数），
// 通过Cancel声明不再需要数据；Cancel幂等，终结事件之后调用为空操作
type Subscription interface {
	// Request 请求指定数量的数据项，必须为正数
	Request(n int64)
	// Cancel 取消订阅
	Cancel()
	// IsCancelled 检查是否已取消
	IsCancelled() bool
}

// Subscriber 数据流的订阅者接口
// OnSubscribe恰好调用一次且先于一切OnNext；
// OnComplete与OnError互斥，每个订阅至多一个终结事件
type Subscriber interface {
	// OnSubscribe 订阅开始时调用
	OnSubscribe(subscription Subscription)
	// OnNext 接收到新数据时调用
	OnNext(item Item)
	// OnError 发生错误时调用（终结事件）
	OnError(err error)
	// OnComplete 数据流完成时调用（终结事件）
	OnComplete()
}

// Publisher 发布者接口，符合Reactive Streams规范
type Publisher interface {
	// Subscribe 订阅Subscriber，每次调用建立一次独立的发射
	Subscribe(subscriber Subscriber)
}

// ============================================================================
// Flowable 接口定义
// ============================================================================

// Flowable 支持背压的数据流接口
// Flowable本身是不可变、可重复订阅的序列描述；
// 所有可变状态（游标、剩余额度）都在订阅时创建的订阅对象里
type Flowable interface {
	Publisher
	Disposable

	// SubscribeWithCallbacks 使用回调函数订阅，返回捕获到的订阅句柄
	SubscribeWithCallbacks(onNext OnNext, onError OnError, onComplete OnComplete) Subscription

	// ============================================================================
	// 转换操作符
	// ============================================================================

	// Map 转换每个数据项
	Map(transformer Transformer) Flowable

	// Filter 过滤数据项
	Filter(predicate Predicate) Flowable

	// Take 取前N个数据项，随后向下游完成、向上游取消
	Take(count int64) Flowable

	// Skip 跳过前N个数据项
	Skip(count int64) Flowable

	// ============================================================================
	// 终结收集操作
	// ============================================================================

	// ToSlice 同步收集全部数据项；无限数据流需先用Take限界
	ToSlice() ([]interface{}, error)

	// First 同步获取第一个数据项，随后取消订阅
	First() (interface{}, error)
}

// ============================================================================
// 回调式订阅实现
// ============================================================================

// callbackSubscription 以回调驱动的Subscription实现
// 请求额度的核算由回调的接收方负责，取消操作用CAS保证幂等
type callbackSubscription struct {
	cancelled int32
	onRequest func(int64)
	onCancel  func()
}

// NewCallbackSubscription 创建回调式订阅
func NewCallbackSubscription(onRequest func(int64), onCancel func()) Subscription {
	return &callbackSubscription{
		onRequest: onRequest,
		onCancel:  onCancel,
	}
}

// Request 请求指定数量的数据项
func (s *callbackSubscription) Request(n int64) {
	if n <= 0 || s.IsCancelled() {
		return
	}

	if s.onRequest != nil {
		s.onRequest(n)
	}
}

// Cancel 取消订阅
func (s *callbackSubscription) Cancel() {
	if atomic.CompareAndSwapInt32(&s.cancelled, 0, 1) {
		if s.onCancel != nil {
			s.onCancel()
		}
	}
}

// IsCancelled 检查是否已取消
func (s *callbackSubscription) IsCancelled() bool {
	return atomic.LoadInt32(&s.cancelled) == 1
}

// addRequested 累积请求计数，溢出时钳制在RequestMax
func addRequested(addr *int64, n int64) {
	for {
		current := atomic.LoadInt64(addr)
		if current == RequestMax {
			return
		}
		next := current + n
		if next < 0 {
			next = RequestMax
		}
		if atomic.CompareAndSwapInt64(addr, current, next) {
			return
		}
	}
}
