// Flowable factory functions for flowgo
// Flowable工厂函数：数据源在订阅时创建发射状态，发射在请求的调用栈内同步进行
package flowgo

import (
	"errors"
	"fmt"
	"sync/atomic"
)

// ============================================================================
// 数据源发射引擎
// ============================================================================

// generator 数据源发射函数
// 在当前请求额度内发射数据，返回实际发射数量与是否终结；
// 终结事件（OnComplete/OnError）由generator自身交付；
// 每个元素之间必须检查IsCancelled，让取消尽快生效
type generator func(downstream Subscriber, s *sourceSubscription, requested int64) (emitted int64, done bool)

// sourceSubscription 数据源的订阅期发射状态
// 请求计数累积，发射循环在请求方的调用栈内同步排空；
// emitting标志吸收重入的Request，新增额度由外层循环继续消化
type sourceSubscription struct {
	lifetime
	downstream Subscriber
	gen        generator
	requested  int64
	emitting   int32
	cancelled  int32
	done       int32
}

// subscribeSource 建立数据源订阅并交付OnSubscribe
func subscribeSource(subscriber Subscriber, gen generator, tracker *LiveTracker) {
	s := &sourceSubscription{
		downstream: subscriber,
		gen:        gen,
	}
	s.retainFrom(tracker)
	subscriber.OnSubscribe(s)
}

// subscribeTerminal 建立订阅后立即交付终结事件，用于error/empty数据源
func subscribeTerminal(subscriber Subscriber, err error, tracker *LiveTracker) {
	s := &sourceSubscription{
		downstream: subscriber,
		gen:        neverGenerator,
	}
	s.retainFrom(tracker)
	subscriber.OnSubscribe(s)

	// 消费者可能在OnSubscribe内就取消了订阅
	if s.IsCancelled() || s.isDone() {
		return
	}

	atomic.StoreInt32(&s.done, 1)
	if err != nil {
		subscriber.OnError(err)
	} else {
		subscriber.OnComplete()
	}
	s.release()
}

// neverGenerator 不发射任何数据也不终结
func neverGenerator(downstream Subscriber, s *sourceSubscription, requested int64) (int64, bool) {
	return 0, false
}

// Request 请求指定数量的数据项
func (s *sourceSubscription) Request(n int64) {
	if s.IsCancelled() || s.isDone() {
		return
	}

	if n <= 0 {
		s.fail(NewProtocolViolationError(fmt.Sprintf("请求数量必须为正数，实际为 %d", n)))
		return
	}

	addRequested(&s.requested, n)
	s.drain()
}

// Cancel 取消订阅
func (s *sourceSubscription) Cancel() {
	if atomic.CompareAndSwapInt32(&s.cancelled, 0, 1) {
		s.release()
	}
}

// IsCancelled 检查是否已取消
func (s *sourceSubscription) IsCancelled() bool {
	return atomic.LoadInt32(&s.cancelled) == 1
}

func (s *sourceSubscription) isDone() bool {
	return atomic.LoadInt32(&s.done) == 1
}

// fail 以协议错误终结数据流
// 同时置取消标志，让仍在运行的发射循环在下一个元素前停下
func (s *sourceSubscription) fail(err error) {
	if s.IsCancelled() || !atomic.CompareAndSwapInt32(&s.done, 0, 1) {
		return
	}
	atomic.StoreInt32(&s.cancelled, 1)
	s.downstream.OnError(err)
	s.release()
}

// drain 在当前调用栈内排空请求额度
func (s *sourceSubscription) drain() {
	if !atomic.CompareAndSwapInt32(&s.emitting, 0, 1) {
		// 发射循环已在更外层调用栈中运行，新增额度由它继续消化
		return
	}
	defer atomic.StoreInt32(&s.emitting, 0)
	defer func() {
		if recovered := recover(); recovered != nil {
			s.fail(fmt.Errorf("发射数据时发生异常: %v", recovered))
		}
	}()

	for {
		if s.IsCancelled() || s.isDone() {
			return
		}

		requested := atomic.LoadInt64(&s.requested)
		if requested <= 0 {
			return
		}

		emitted, done := s.gen(s.downstream, s, requested)
		if emitted > 0 && requested != RequestMax {
			atomic.AddInt64(&s.requested, -emitted)
		}

		if done {
			atomic.StoreInt32(&s.done, 1)
			s.release()
			return
		}
		if emitted == 0 {
			return
		}
	}
}

// ============================================================================
// 基础工厂函数
// ============================================================================

// FlowableJust 从给定的值创建Flowable，依次发射后完成
// 需要注入配置选项时使用FlowableFromSlice
func FlowableJust(values ...interface{}) Flowable {
	return FlowableFromSlice(values)
}

// FlowableFromSlice 从切片创建Flowable
func FlowableFromSlice(slice []interface{}, options ...Option) Flowable {
	return NewFlowable(func(subscriber Subscriber, config *Config) {
		index := 0
		gen := func(downstream Subscriber, s *sourceSubscription, requested int64) (int64, bool) {
			var emitted int64
			for index < len(slice) && emitted < requested {
				if s.IsCancelled() {
					return emitted, true
				}
				downstream.OnNext(CreateItem(slice[index]))
				index++
				emitted++
			}

			if index >= len(slice) {
				downstream.OnComplete()
				return emitted, true
			}
			return emitted, false
		}
		subscribeSource(subscriber, gen, config.Tracker)
	}, options...)
}

// FlowableRange 创建发射半开区间[start, end)整数序列的Flowable
// end <= start时序列为空，请求后立即完成
func FlowableRange(start, end int64, options ...Option) Flowable {
	return NewFlowable(func(subscriber Subscriber, config *Config) {
		next := start
		gen := func(downstream Subscriber, s *sourceSubscription, requested int64) (int64, bool) {
			var emitted int64
			for next < end && emitted < requested {
				if s.IsCancelled() {
					return emitted, true
				}
				downstream.OnNext(CreateItem(next))
				next++
				emitted++
			}

			if next >= end {
				downstream.OnComplete()
				return emitted, true
			}
			return emitted, false
		}
		subscribeSource(subscriber, gen, config.Tracker)
	}, options...)
}

// FlowableCycle 循环发射给定的值，永不自行完成
// 每次发射都是值的独立拷贝，下游的转换不会污染后续发射；
// 必须配合Take或取消来终止；不带任何值时退化为立即完成
func FlowableCycle(values ...interface{}) Flowable {
	return FlowableCycleSlice(values)
}

// FlowableCycleSlice 循环发射切片中的值，语义与FlowableCycle一致
// 需要注入配置选项时使用此形式
func FlowableCycleSlice(values []interface{}, options ...Option) Flowable {
	return NewFlowable(func(subscriber Subscriber, config *Config) {
		if len(values) == 0 {
			subscribeTerminal(subscriber, nil, config.Tracker)
			return
		}

		index := 0
		gen := func(downstream Subscriber, s *sourceSubscription, requested int64) (int64, bool) {
			var emitted int64
			for emitted < requested {
				if s.IsCancelled() {
					return emitted, true
				}
				downstream.OnNext(CreateItem(values[index]))
				index++
				if index == len(values) {
					index = 0
				}
				emitted++
			}
			return emitted, false
		}
		subscribeSource(subscriber, gen, config.Tracker)
	}, options...)
}

// FlowableError 创建一个订阅后立即发射错误的Flowable
func FlowableError(err error, options ...Option) Flowable {
	if err == nil {
		err = errors.New("未知错误")
	}
	return NewFlowable(func(subscriber Subscriber, config *Config) {
		subscribeTerminal(subscriber, err, config.Tracker)
	}, options...)
}

// FlowableErrorValue 从任意故障值创建错误Flowable
// 原始故障值与已捕获的error句柄归一化为同一种交付形式
func FlowableErrorValue(value interface{}) Flowable {
	switch v := value.(type) {
	case error:
		return FlowableError(v)
	case string:
		return FlowableError(errors.New(v))
	default:
		return FlowableError(fmt.Errorf("%v", v))
	}
}

// FlowableEmpty 创建一个空的Flowable，订阅后立即完成
func FlowableEmpty(options ...Option) Flowable {
	return NewFlowable(func(subscriber Subscriber, config *Config) {
		subscribeTerminal(subscriber, nil, config.Tracker)
	}, options...)
}

// FlowableNever 创建一个永不发射任何值也永不终结的Flowable
// 其订阅期对象只能通过取消释放
func FlowableNever(options ...Option) Flowable {
	return NewFlowable(func(subscriber Subscriber, config *Config) {
		subscribeSource(subscriber, neverGenerator, config.Tracker)
	}, options...)
}
