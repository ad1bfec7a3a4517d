// Flowable operators implementation for flowgo
// 操作符阶段对象：每个阶段同时实现Subscriber（面向上游）与Subscription（面向下游），
// 订阅时创建、终结或取消时注销，构成一条所有权无环的适配器链
package flowgo

import (
	"sync/atomic"
)

// ============================================================================
// Map操作符阶段
// ============================================================================

// mapStage Map操作符的订阅期阶段对象
// 逐项转换并保持数量与终结语义不变；转换失败向上游取消、向下游交付OnError
type mapStage struct {
	lifetime
	downstream  Subscriber
	upstream    Subscription
	transformer Transformer
	terminated  int32
}

func newMapStage(downstream Subscriber, transformer Transformer, tracker *LiveTracker) *mapStage {
	stage := &mapStage{
		downstream:  downstream,
		transformer: transformer,
	}
	stage.retainFrom(tracker)
	return stage
}

func (ms *mapStage) OnSubscribe(subscription Subscription) {
	ms.upstream = subscription
	ms.downstream.OnSubscribe(ms)
}

func (ms *mapStage) OnNext(item Item) {
	if atomic.LoadInt32(&ms.terminated) == 1 {
		return
	}

	result, err := ms.transformer(item.GetValue())
	if err != nil {
		if atomic.CompareAndSwapInt32(&ms.terminated, 0, 1) {
			ms.upstream.Cancel()
			ms.downstream.OnError(err)
			ms.release()
		}
		return
	}

	ms.downstream.OnNext(CreateItem(result))
}

func (ms *mapStage) OnError(err error) {
	if atomic.CompareAndSwapInt32(&ms.terminated, 0, 1) {
		ms.downstream.OnError(err)
		ms.release()
	}
}

func (ms *mapStage) OnComplete() {
	if atomic.CompareAndSwapInt32(&ms.terminated, 0, 1) {
		ms.downstream.OnComplete()
		ms.release()
	}
}

func (ms *mapStage) Request(n int64) {
	ms.upstream.Request(n)
}

func (ms *mapStage) Cancel() {
	ms.upstream.Cancel()
	ms.release()
}

func (ms *mapStage) IsCancelled() bool {
	return ms.upstream.IsCancelled()
}

// ============================================================================
// Filter操作符阶段
// ============================================================================

// filterStage Filter操作符的订阅期阶段对象
type filterStage struct {
	lifetime
	downstream Subscriber
	upstream   Subscription
	predicate  Predicate
	terminated int32
}

func newFilterStage(downstream Subscriber, predicate Predicate, tracker *LiveTracker) *filterStage {
	stage := &filterStage{
		downstream: downstream,
		predicate:  predicate,
	}
	stage.retainFrom(tracker)
	return stage
}

func (fs *filterStage) OnSubscribe(subscription Subscription) {
	fs.upstream = subscription
	fs.downstream.OnSubscribe(fs)
}

func (fs *filterStage) OnNext(item Item) {
	if atomic.LoadInt32(&fs.terminated) == 1 {
		return
	}

	if fs.predicate(item.GetValue()) {
		fs.downstream.OnNext(item)
		return
	}

	// 被过滤的项目消耗了一份请求额度，向上游补请求一份
	fs.upstream.Request(1)
}

func (fs *filterStage) OnError(err error) {
	if atomic.CompareAndSwapInt32(&fs.terminated, 0, 1) {
		fs.downstream.OnError(err)
		fs.release()
	}
}

func (fs *filterStage) OnComplete() {
	if atomic.CompareAndSwapInt32(&fs.terminated, 0, 1) {
		fs.downstream.OnComplete()
		fs.release()
	}
}

func (fs *filterStage) Request(n int64) {
	fs.upstream.Request(n)
}

func (fs *filterStage) Cancel() {
	fs.upstream.Cancel()
	fs.release()
}

func (fs *filterStage) IsCancelled() bool {
	return fs.upstream.IsCancelled()
}

// ============================================================================
// Take操作符阶段
// ============================================================================

// takeStage Take操作符的订阅期阶段对象
// 转发至多count个数据项，随后向下游完成、向上游取消；
// Take(0)在订阅时即完成且不向上游请求任何数据
type takeStage struct {
	lifetime
	downstream Subscriber
	upstream   Subscription
	remaining  int64
	terminated int32
}

func newTakeStage(downstream Subscriber, count int64, tracker *LiveTracker) *takeStage {
	if count < 0 {
		count = 0
	}
	stage := &takeStage{
		downstream: downstream,
		remaining:  count,
	}
	stage.retainFrom(tracker)
	return stage
}

func (ts *takeStage) OnSubscribe(subscription Subscription) {
	ts.upstream = subscription

	if ts.remaining == 0 {
		// 先置终结标志，OnSubscribe期间的请求会被拦下，不会触达上游
		atomic.StoreInt32(&ts.terminated, 1)
		ts.downstream.OnSubscribe(ts)
		ts.downstream.OnComplete()
		ts.upstream.Cancel()
		ts.release()
		return
	}

	ts.downstream.OnSubscribe(ts)
}

func (ts *takeStage) OnNext(item Item) {
	// 取消尚未在上游生效时到达的多余数据直接丢弃
	if atomic.LoadInt32(&ts.terminated) == 1 {
		return
	}

	ts.remaining--
	ts.downstream.OnNext(item)

	if ts.remaining == 0 && atomic.CompareAndSwapInt32(&ts.terminated, 0, 1) {
		ts.downstream.OnComplete()
		ts.upstream.Cancel()
		ts.release()
	}
}

func (ts *takeStage) OnError(err error) {
	if atomic.CompareAndSwapInt32(&ts.terminated, 0, 1) {
		ts.downstream.OnError(err)
		ts.release()
	}
}

func (ts *takeStage) OnComplete() {
	if atomic.CompareAndSwapInt32(&ts.terminated, 0, 1) {
		ts.downstream.OnComplete()
		ts.release()
	}
}

func (ts *takeStage) Request(n int64) {
	if atomic.LoadInt32(&ts.terminated) == 1 {
		return
	}
	ts.upstream.Request(n)
}

func (ts *takeStage) Cancel() {
	ts.upstream.Cancel()
	ts.release()
}

func (ts *takeStage) IsCancelled() bool {
	return ts.upstream.IsCancelled()
}

// ============================================================================
// Skip操作符阶段
// ============================================================================

// skipStage Skip操作符的订阅期阶段对象
type skipStage struct {
	lifetime
	downstream Subscriber
	upstream   Subscription
	toSkip     int64
	terminated int32
}

func newSkipStage(downstream Subscriber, count int64, tracker *LiveTracker) *skipStage {
	if count < 0 {
		count = 0
	}
	stage := &skipStage{
		downstream: downstream,
		toSkip:     count,
	}
	stage.retainFrom(tracker)
	return stage
}

func (ss *skipStage) OnSubscribe(subscription Subscription) {
	ss.upstream = subscription
	ss.downstream.OnSubscribe(ss)
}

func (ss *skipStage) OnNext(item Item) {
	if atomic.LoadInt32(&ss.terminated) == 1 {
		return
	}

	if ss.toSkip > 0 {
		ss.toSkip--
		// 被跳过的项目消耗了一份请求额度，向上游补请求一份
		ss.upstream.Request(1)
		return
	}

	ss.downstream.OnNext(item)
}

func (ss *skipStage) OnError(err error) {
	if atomic.CompareAndSwapInt32(&ss.terminated, 0, 1) {
		ss.downstream.OnError(err)
		ss.release()
	}
}

func (ss *skipStage) OnComplete() {
	if atomic.CompareAndSwapInt32(&ss.terminated, 0, 1) {
		ss.downstream.OnComplete()
		ss.release()
	}
}

func (ss *skipStage) Request(n int64) {
	ss.upstream.Request(n)
}

func (ss *skipStage) Cancel() {
	ss.upstream.Cancel()
	ss.release()
}

func (ss *skipStage) IsCancelled() bool {
	return ss.upstream.IsCancelled()
}
