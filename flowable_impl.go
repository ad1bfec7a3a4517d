// Flowable core implementation for flowgo
// Flowable核心实现：订阅图在Subscribe时构建，发射在Request的调用栈内同步进行
package flowgo

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
)

// ============================================================================
// Flowable 核心实现
// ============================================================================

// flowableImpl Flowable的核心实现
// source在每次Subscribe时构建一套全新的订阅期对象，Flowable自身无可变状态
type flowableImpl struct {
	source     func(subscriber Subscriber, config *Config)
	config     *Config
	disposed   int32
	ctx        context.Context
	cancelFunc context.CancelFunc
}

// NewFlowable 创建新的Flowable
func NewFlowable(source func(subscriber Subscriber, config *Config), options ...Option) Flowable {
	config := DefaultConfig()
	for _, opt := range options {
		opt.Apply(config)
	}

	return newFlowableWithConfig(source, config)
}

// newFlowableWithConfig 派生Flowable继承上游的配置
func newFlowableWithConfig(source func(subscriber Subscriber, config *Config), config *Config) Flowable {
	ctx, cancel := context.WithCancel(config.Context)

	return &flowableImpl{
		source:     source,
		config:     config,
		ctx:        ctx,
		cancelFunc: cancel,
	}
}

// Subscribe 订阅Subscriber
// 构建失败不会跨越订阅边界抛出，一律通过OnError交付
func (f *flowableImpl) Subscribe(subscriber Subscriber) {
	if f.IsDisposed() {
		subscriber.OnSubscribe(NewCallbackSubscription(nil, nil))
		subscriber.OnError(errors.New("flowable已释放"))
		return
	}

	// 创建带上下文的Subscriber包装器
	wrappedSubscriber := &contextSubscriber{
		delegate: subscriber,
		ctx:      f.ctx,
	}

	if recovered := SafeExecute(func() {
		f.source(wrappedSubscriber, f.config)
	}); recovered != nil {
		subscriber.OnError(fmt.Errorf("订阅构建失败: %v", recovered))
	}
}

// SubscribeWithCallbacks 使用回调函数订阅
func (f *flowableImpl) SubscribeWithCallbacks(onNext OnNext, onError OnError, onComplete OnComplete) Subscription {
	subscriber := &callbackSubscriber{
		onNext:     onNext,
		onError:    onError,
		onComplete: onComplete,
	}

	// 发射同步进行，Subscribe返回时订阅句柄已被捕获
	f.Subscribe(subscriber)
	return subscriber.Subscription()
}

// IsDisposed 检查是否已释放
func (f *flowableImpl) IsDisposed() bool {
	return atomic.LoadInt32(&f.disposed) == 1
}

// Dispose 释放资源，之后的订阅立即以OnError失败
func (f *flowableImpl) Dispose() {
	if atomic.CompareAndSwapInt32(&f.disposed, 0, 1) {
		if f.cancelFunc != nil {
			f.cancelFunc()
		}
	}
}

// ============================================================================
// 转换操作符实现
// ============================================================================

// Map 转换每个数据项
func (f *flowableImpl) Map(transformer Transformer) Flowable {
	return newFlowableWithConfig(func(subscriber Subscriber, config *Config) {
		f.Subscribe(newMapStage(subscriber, transformer, config.Tracker))
	}, f.config)
}

// Filter 过滤数据项
func (f *flowableImpl) Filter(predicate Predicate) Flowable {
	return newFlowableWithConfig(func(subscriber Subscriber, config *Config) {
		f.Subscribe(newFilterStage(subscriber, predicate, config.Tracker))
	}, f.config)
}

// Take 取前N个数据项
func (f *flowableImpl) Take(count int64) Flowable {
	return newFlowableWithConfig(func(subscriber Subscriber, config *Config) {
		f.Subscribe(newTakeStage(subscriber, count, config.Tracker))
	}, f.config)
}

// Skip 跳过前N个数据项
func (f *flowableImpl) Skip(count int64) Flowable {
	return newFlowableWithConfig(func(subscriber Subscriber, config *Config) {
		f.Subscribe(newSkipStage(subscriber, count, config.Tracker))
	}, f.config)
}

// ============================================================================
// 终结收集操作
// ============================================================================

// ToSlice 同步收集全部数据项
// 请求排空后无论是否终结都取消订阅，不让订阅期对象滞留；
// 没有终结事件的数据流（例如Never）返回错误而不是成功值
func (f *flowableImpl) ToSlice() ([]interface{}, error) {
	var items []interface{}
	var terminalErr error
	completed := false

	subscription := f.SubscribeWithCallbacks(
		func(value interface{}) {
			items = append(items, value)
		},
		func(err error) {
			terminalErr = err
		},
		func() {
			completed = true
		},
	)

	if subscription != nil {
		subscription.Request(RequestMax)
		// 终结后的取消为空操作，未终结时释放链上的订阅期对象
		subscription.Cancel()
	}

	if terminalErr != nil {
		return items, terminalErr
	}
	if !completed {
		return items, errors.New("flowable未终结，收集被取消")
	}
	return items, nil
}

// First 同步获取第一个数据项
func (f *flowableImpl) First() (interface{}, error) {
	var first interface{}
	received := false
	var terminalErr error

	subscription := f.SubscribeWithCallbacks(
		func(value interface{}) {
			if !received {
				received = true
				first = value
			}
		},
		func(err error) {
			terminalErr = err
		},
		nil,
	)

	if subscription != nil {
		subscription.Request(1)
		subscription.Cancel()
	}

	if terminalErr != nil {
		return nil, terminalErr
	}
	if !received {
		return nil, errors.New("flowable为空，没有数据项")
	}
	return first, nil
}

// ============================================================================
// 上下文包装器
// ============================================================================

// contextSubscriber 带上下文的订阅者包装器
// 上下文取消后不再转发任何事件，取消传播交由contextSubscription协作完成
type contextSubscriber struct {
	delegate Subscriber
	ctx      context.Context
}

func (cs *contextSubscriber) OnSubscribe(subscription Subscription) {
	wrappedSubscription := &contextSubscription{
		delegate: subscription,
		ctx:      cs.ctx,
	}
	cs.delegate.OnSubscribe(wrappedSubscription)
}

func (cs *contextSubscriber) OnNext(item Item) {
	select {
	case <-cs.ctx.Done():
		return
	default:
		cs.delegate.OnNext(item)
	}
}

func (cs *contextSubscriber) OnError(err error) {
	select {
	case <-cs.ctx.Done():
		return
	default:
		cs.delegate.OnError(err)
	}
}

func (cs *contextSubscriber) OnComplete() {
	select {
	case <-cs.ctx.Done():
		return
	default:
		cs.delegate.OnComplete()
	}
}

// contextSubscription 带上下文的订阅包装器
// 上下文已取消时把后续Request转换为一次Cancel，让上游释放订阅期对象
type contextSubscription struct {
	delegate Subscription
	ctx      context.Context
}

func (cs *contextSubscription) Request(n int64) {
	select {
	case <-cs.ctx.Done():
		cs.delegate.Cancel()
	default:
		cs.delegate.Request(n)
	}
}

func (cs *contextSubscription) Cancel() {
	cs.delegate.Cancel()
}

func (cs *contextSubscription) IsCancelled() bool {
	return cs.delegate.IsCancelled()
}
