// Package flowgo provides a backpressured reactive stream core for Go
// 基于Reactive Streams规范的背压数据流核心库，发射过程同步、可取消、零泄漏
package flowgo

import (
	"context"
	"math"
)

// ============================================================================
// 核心类型定义
// ============================================================================

// Item 表示流中的一个数据项，包含值或错误
type Item struct {
	Value interface{} // 数据值
	Error error       // 错误信息
}

// IsError 检查项目是否包含错误
func (item Item) IsError() bool {
	return item.Error != nil
}

// GetValue 获取项目的值，如果是错误则返回nil
func (item Item) GetValue() interface{} {
	if item.IsError() {
		return nil
	}
	return item.Value
}

// CreateItem 创建包含值的项目
func CreateItem(value interface{}) Item {
	return Item{Value: value}
}

// ============================================================================
// 函数类型定义
// ============================================================================

// OnNext 处理下一个值的函数
type OnNext func(value interface{})

// OnError 处理错误的函数
type OnError func(err error)

// OnComplete 处理完成的函数
type OnComplete func()

// Predicate 谓词函数，用于过滤
type Predicate func(value interface{}) bool

// Transformer 转换函数，用于映射；返回错误将以OnError终止数据流
type Transformer func(value interface{}) (interface{}, error)

// ============================================================================
// 请求预算
// ============================================================================

// RequestMax 无界请求预算，等价于Long.MAX_VALUE
const RequestMax int64 = math.MaxInt64

// ============================================================================
// 生命周期管理
// ============================================================================

// Disposable 可释放资源的接口
type Disposable interface {
	// Dispose 释放资源
	Dispose()
	// IsDisposed 检查是否已释放
	IsDisposed() bool
}

// ============================================================================
// 协议违规错误
// ============================================================================

// ProtocolViolationError 协议违规错误
// 消费者违反订阅协议（例如非正数请求）时通过OnError交付，绝不静默损坏状态
type ProtocolViolationError struct {
	message string
}

// NewProtocolViolationError 创建协议违规错误
func NewProtocolViolationError(message string) *ProtocolViolationError {
	return &ProtocolViolationError{message: message}
}

func (e *ProtocolViolationError) Error() string {
	return "ProtocolViolationError: " + e.message
}

// ============================================================================
// 工具函数
// ============================================================================

// SafeExecute 安全执行函数，捕获panic
func SafeExecute(action func()) (recovered interface{}) {
	defer func() {
		if r := recover(); r != nil {
			recovered = r
		}
	}()

	action()
	return nil
}

// ============================================================================
// 配置选项
// ============================================================================

// Option 配置选项接口
type Option interface {
	Apply(config *Config)
}

// Config 配置结构
type Config struct {
	Tracker *LiveTracker    // 存活对象追踪器（测试用泄漏探针）
	Context context.Context // 协作式取消上下文
}

// DefaultConfig 默认配置
func DefaultConfig() *Config {
	return &Config{
		Tracker: defaultTracker,
		Context: context.Background(),
	}
}

type optionFunc func(config *Config)

func (f optionFunc) Apply(config *Config) {
	f(config)
}

// WithTracker 注入自定义的存活对象追踪器
func WithTracker(tracker *LiveTracker) Option {
	return optionFunc(func(config *Config) {
		if tracker != nil {
			config.Tracker = tracker
		}
	})
}

// WithContext 注入取消上下文，上下文取消后事件传递协作式停止
func WithContext(ctx context.Context) Option {
	return optionFunc(func(config *Config) {
		if ctx != nil {
			config.Context = ctx
		}
	})
}
