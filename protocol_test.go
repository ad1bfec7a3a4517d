// Subscription protocol tests for flowgo
// 订阅协议的边界行为测试：握手顺序、增量请求、重入、取消与违规处理
package flowgo

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// manualSubscriber 不自动请求的订阅者，用于手动控制请求节奏
type manualSubscriber struct {
	BaseSubscriber
	events    []string
	values    []interface{}
	completed bool
	failed    bool
	lastErr   error
}

func (m *manualSubscriber) OnSubscribe(subscription Subscription) {
	m.BaseSubscriber.OnSubscribe(subscription)
	m.events = append(m.events, "subscribe")
}

func (m *manualSubscriber) OnNext(item Item) {
	m.events = append(m.events, "next")
	m.values = append(m.values, item.GetValue())
}

func (m *manualSubscriber) OnError(err error) {
	m.events = append(m.events, "error")
	m.failed = true
	m.lastErr = err
}

func (m *manualSubscriber) OnComplete() {
	m.events = append(m.events, "complete")
	m.completed = true
}

// ============================================================================
// 握手顺序
// ============================================================================

func TestOnSubscribeDeliveredFirst(t *testing.T) {
	subscriber := &manualSubscriber{}
	FlowableEmpty().Subscribe(subscriber)

	// OnSubscribe恰好一次且先于终结事件
	assert.Equal(t, []string{"subscribe", "complete"}, subscriber.events)
}

func TestErrorSourceHandshake(t *testing.T) {
	subscriber := &manualSubscriber{}
	FlowableError(errors.New("something broke!")).Subscribe(subscriber)

	assert.Equal(t, []string{"subscribe", "error"}, subscriber.events)
}

func TestNoEmissionBeforeRequest(t *testing.T) {
	baseline := LiveObjects()

	subscriber := &manualSubscriber{}
	FlowableRange(0, 10).Subscribe(subscriber)

	// 没有请求额度就没有任何发射
	assert.Equal(t, []string{"subscribe"}, subscriber.events)
	assert.Empty(t, subscriber.values)

	subscriber.Cancel()
	requireBaseline(t, baseline)
}

// ============================================================================
// 增量请求
// ============================================================================

func TestIncrementalRequest(t *testing.T) {
	baseline := LiveObjects()

	subscriber := &manualSubscriber{}
	FlowableRange(0, 10).Subscribe(subscriber)
	subscription := subscriber.Subscription()
	require.NotNil(t, subscription)

	// 生产者的发射数量不得超过累积的未消耗请求额度
	subscription.Request(3)
	assert.Len(t, subscriber.values, 3)
	assert.False(t, subscriber.completed)

	subscription.Request(2)
	assert.Len(t, subscriber.values, 5)
	assert.False(t, subscriber.completed)

	subscription.Request(100)
	assert.Equal(t,
		[]interface{}{
			int64(0), int64(1), int64(2), int64(3), int64(4),
			int64(5), int64(6), int64(7), int64(8), int64(9),
		},
		subscriber.values)
	assert.True(t, subscriber.completed)

	requireBaseline(t, baseline)
}

// reentrantSubscriber 在OnNext回调内继续请求，收满上限后取消
type reentrantSubscriber struct {
	BaseSubscriber
	limit  int
	values []interface{}
}

func (r *reentrantSubscriber) OnSubscribe(subscription Subscription) {
	r.BaseSubscriber.OnSubscribe(subscription)
	subscription.Request(1)
}

func (r *reentrantSubscriber) OnNext(item Item) {
	r.values = append(r.values, item.GetValue())
	if len(r.values) >= r.limit {
		r.Cancel()
		return
	}
	r.Request(1)
}

func TestReentrantRequestFromOnNext(t *testing.T) {
	baseline := LiveObjects()

	// 发射调用栈内重入的Request由外层发射循环继续消化
	subscriber := &reentrantSubscriber{limit: 5}
	FlowableCycle("Payload").Subscribe(subscriber)

	assert.Equal(t,
		[]interface{}{"Payload", "Payload", "Payload", "Payload", "Payload"},
		subscriber.values)

	requireBaseline(t, baseline)
}

// ============================================================================
// 取消
// ============================================================================

func TestCancelStopsEmission(t *testing.T) {
	baseline := LiveObjects()

	subscriber := &manualSubscriber{}
	FlowableRange(0, 100).Subscribe(subscriber)
	subscription := subscriber.Subscription()

	subscription.Request(2)
	assert.Len(t, subscriber.values, 2)

	subscription.Cancel()
	assert.True(t, subscription.IsCancelled())

	// 取消后的请求不再产生任何事件
	subscription.Request(10)
	assert.Len(t, subscriber.values, 2)
	assert.False(t, subscriber.completed)
	assert.False(t, subscriber.failed)

	requireBaseline(t, baseline)
}

func TestDoubleCancelIsIdempotent(t *testing.T) {
	baseline := LiveObjects()

	subscriber := &manualSubscriber{}
	FlowableRange(0, 100).Subscribe(subscriber)
	subscription := subscriber.Subscription()

	subscription.Cancel()
	subscription.Cancel()
	subscription.Cancel()

	// 重复取消不会把存活计数释放到基线以下
	requireBaseline(t, baseline)
}

func TestCancelAfterTerminalIsNoop(t *testing.T) {
	baseline := LiveObjects()

	collector := newCollectingSubscriber(100)
	FlowableJust(1).Subscribe(collector)
	require.True(t, collector.completed)

	collector.Cancel()
	collector.Cancel()

	requireBaseline(t, baseline)
}

// ============================================================================
// 协议违规
// ============================================================================

func TestNonPositiveRequestFailsPipeline(t *testing.T) {
	baseline := LiveObjects()

	for _, n := range []int64{0, -1} {
		subscriber := &manualSubscriber{}
		FlowableRange(0, 10).Subscribe(subscriber)

		subscriber.Request(n)

		require.True(t, subscriber.failed, "非正数请求应以OnError终结数据流")
		var violation *ProtocolViolationError
		assert.True(t, errors.As(subscriber.lastErr, &violation))
		assert.Empty(t, subscriber.values)
		assert.False(t, subscriber.completed)

		// 违规终结后进一步的请求与取消均为空操作
		subscriber.Request(5)
		assert.Empty(t, subscriber.values)
	}

	requireBaseline(t, baseline)
}

func TestRequestAfterCompleteIsNoop(t *testing.T) {
	subscriber := &manualSubscriber{}
	FlowableJust("a").Subscribe(subscriber)
	subscription := subscriber.Subscription()

	subscription.Request(10)
	require.Equal(t, []string{"subscribe", "next", "complete"}, subscriber.events)

	subscription.Request(10)
	assert.Equal(t, []string{"subscribe", "next", "complete"}, subscriber.events, "终结后不得再有任何事件")
}

func TestSubscriberReuseGuard(t *testing.T) {
	baseline := LiveObjects()

	// 同一订阅者参与第二个订阅时，新订阅被直接取消
	subscriber := &manualSubscriber{}
	FlowableRange(0, 10).Subscribe(subscriber)
	first := subscriber.Subscription()

	FlowableRange(100, 110).Subscribe(subscriber)
	assert.Same(t, first, subscriber.Subscription())

	subscriber.Request(1)
	assert.Equal(t, []interface{}{int64(0)}, subscriber.values)

	subscriber.Cancel()
	requireBaseline(t, baseline)
}

// ============================================================================
// 上下文取消
// ============================================================================

func TestContextCancellation(t *testing.T) {
	baseline := LiveObjects()

	ctx, cancel := context.WithCancel(context.Background())
	subscriber := &manualSubscriber{}
	FlowableRange(0, 100, WithContext(ctx)).Subscribe(subscriber)
	subscription := subscriber.Subscription()

	subscription.Request(2)
	assert.Len(t, subscriber.values, 2)

	cancel()

	// 上下文取消后，下一次请求被转换为一次取消
	subscription.Request(10)
	assert.Len(t, subscriber.values, 2)
	assert.True(t, subscription.IsCancelled())
	assert.False(t, subscriber.completed)
	assert.False(t, subscriber.failed)

	requireBaseline(t, baseline)
}

func TestDisposePreventsNewSubscriptions(t *testing.T) {
	baseline := LiveObjects()

	flowable := FlowableRange(0, 10)
	assert.Equal(t,
		[]interface{}{int64(0), int64(1)},
		runFlowable(t, flowable.Take(2)))

	flowable.Dispose()

	subscriber := &manualSubscriber{}
	flowable.Subscribe(subscriber)
	assert.True(t, subscriber.failed)

	requireBaseline(t, baseline)
}
