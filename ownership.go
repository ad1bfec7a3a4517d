// Live object tracking for flowgo
// 存活对象追踪器，管线对象的泄漏与环引用探针
package flowgo

import (
	"sync/atomic"
)

// ============================================================================
// 存活对象追踪器
// ============================================================================

// LiveTracker 统计当前存活的订阅期对象数量
// 每个订阅期对象（数据源发射状态、操作符阶段对象）在构造时登记，
// 在终结事件或取消时注销；管线完全拆除后计数必然回到基线。
// 该计数只用于验证，不参与数据流协议本身。
type LiveTracker struct {
	live int64
}

// NewLiveTracker 创建独立的存活对象追踪器
func NewLiveTracker() *LiveTracker {
	return &LiveTracker{}
}

// Live 获取当前存活对象数量
func (t *LiveTracker) Live() int64 {
	return atomic.LoadInt64(&t.live)
}

func (t *LiveTracker) retain() {
	atomic.AddInt64(&t.live, 1)
}

func (t *LiveTracker) release() {
	atomic.AddInt64(&t.live, -1)
}

// defaultTracker 进程默认追踪器，未显式注入时使用
var defaultTracker = NewLiveTracker()

// LiveObjects 获取默认追踪器的当前存活对象数量
func LiveObjects() int64 {
	return defaultTracker.Live()
}

// ============================================================================
// 订阅期对象的生命周期登记
// ============================================================================

// lifetime 被每个订阅期对象嵌入，保证“登记一次、注销一次”
// 注销在终结事件和取消两条路径上都可能发生，用CAS保证幂等
type lifetime struct {
	tracker  *LiveTracker
	released int32
}

func (l *lifetime) retainFrom(tracker *LiveTracker) {
	if tracker == nil {
		tracker = defaultTracker
	}
	l.tracker = tracker
	tracker.retain()
}

func (l *lifetime) release() {
	if atomic.CompareAndSwapInt32(&l.released, 0, 1) {
		l.tracker.release()
	}
}
