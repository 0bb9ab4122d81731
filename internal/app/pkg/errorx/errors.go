package errorx

import "errors"

// 定义业务错误
var (
	// ErrInvalidInput 请求参数缺失或不合法，任务未创建
	ErrInvalidInput = errors.New("invalid input")

	// ErrGatewayUnavailable 支付服务不可达或返回异常（可重试）
	ErrGatewayUnavailable = errors.New("payment gateway unavailable")

	// ErrPaymentDeclined 支付被拒绝（终态）
	ErrPaymentDeclined = errors.New("payment declined")

	// ErrPaymentExpired 支付请求已过期（终态）
	ErrPaymentExpired = errors.New("payment expired")

	// ErrPaymentTimeout 截止时间前未确认到账（终态）
	ErrPaymentTimeout = errors.New("payment not confirmed before pay-by deadline")

	// ErrInvalidTransition 非法的任务状态流转（程序缺陷或并发竞争）
	ErrInvalidTransition = errors.New("invalid job status transition")

	// ErrJobNotFound 任务不存在
	ErrJobNotFound = errors.New("job not found")

	// ErrJobExists 任务 ID 冲突
	ErrJobExists = errors.New("job already exists")

	// ErrPollerExists 同一任务重复启动轮询器（程序缺陷）
	ErrPollerExists = errors.New("payment poller already running for job")
)

// BusinessError 业务错误结构
type BusinessError struct {
	Code    int
	Message string
	Details []ErrorDetail
}

// ErrorDetail 错误详情
type ErrorDetail struct {
	Path string
	Info string
}

// Error 实现 error 接口
func (e *BusinessError) Error() string {
	return e.Message
}

// NewBusinessError 创建业务错误
func NewBusinessError(code int, message string) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: message,
	}
}
