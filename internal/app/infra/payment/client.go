package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"mca/agentd/internal/app/pkg/errorx"
	"mca/agentd/pkg/logger"
)

// State 支付状态（面向调用方的归一化视图）
type State string

const (
	StatePending     State = "pending"
	StateFundsLocked State = "funds_locked"
	StateExpired     State = "expired"
	StateDeclined    State = "declined"
)

// CreateRequestInput 创建支付请求的入参
type CreateRequestInput struct {
	IdentifierFromPurchaser string
	InputHash               string
	Metadata                string
	PayBy                   time.Time
	SubmitResultBy          time.Time
}

// Request 支付请求（由支付服务创建并持有，本服务只引用）
// 时间戳为毫秒值，与 blockchainIdentifier 的签名绑定，创建后不可变更
type Request struct {
	BlockchainIdentifier      string
	PayByTime                 int64
	SubmitResultTime          int64
	UnlockTime                int64
	ExternalDisputeUnlockTime int64
	InputHash                 string
}

// Gateway 支付网关接口
// 实现必须区分传输层故障（errorx.ErrGatewayUnavailable，可重试）
// 与业务层终态（declined/expired，不可重试）
type Gateway interface {
	CreateRequest(ctx context.Context, in CreateRequestInput) (*Request, error)
	GetStatus(ctx context.Context, blockchainIdentifier string) (State, error)
	CompleteRequest(ctx context.Context, blockchainIdentifier, resultHash string) error
}

// Client Masumi 支付服务客户端封装
type Client struct {
	baseURL         string
	apiKey          string
	network         string
	agentIdentifier string
	httpClient      *http.Client
	logger          logger.Logger
}

// NewClient 创建支付服务客户端
func NewClient(baseURL, apiKey, network, agentIdentifier string, log logger.Logger) *Client {
	return &Client{
		baseURL:         strings.TrimRight(baseURL, "/"),
		apiKey:          apiKey,
		network:         network,
		agentIdentifier: agentIdentifier,
		httpClient:      &http.Client{Timeout: 15 * time.Second},
		logger:          log,
	}
}

// createPaymentBody POST /payment/ 请求体
type createPaymentBody struct {
	AgentIdentifier         string `json:"agentIdentifier"`
	Network                 string `json:"network"`
	InputHash               string `json:"inputHash"`
	PayByTime               string `json:"payByTime"`
	Metadata                string `json:"metadata,omitempty"`
	PaymentType             string `json:"paymentType"`
	SubmitResultTime        string `json:"submitResultTime"`
	IdentifierFromPurchaser string `json:"identifierFromPurchaser"`
}

// paymentData 支付服务返回的支付数据
type paymentData struct {
	BlockchainIdentifier      string `json:"blockchainIdentifier"`
	PayByTime                 int64  `json:"payByTime,string"`
	SubmitResultTime          int64  `json:"submitResultTime,string"`
	UnlockTime                int64  `json:"unlockTime,string"`
	ExternalDisputeUnlockTime int64  `json:"externalDisputeUnlockTime,string"`
	InputHash                 string `json:"inputHash"`
	OnChainState              string `json:"onChainState"`
}

// CreateRequest 创建支付请求
// 失败时不产生任何副作用，调用方不应创建任务记录
func (c *Client) CreateRequest(ctx context.Context, in CreateRequestInput) (*Request, error) {
	body := createPaymentBody{
		AgentIdentifier:         c.agentIdentifier,
		Network:                 c.network,
		InputHash:               in.InputHash,
		PayByTime:               in.PayBy.UTC().Format(time.RFC3339),
		Metadata:                in.Metadata,
		PaymentType:             "Web3CardanoV1",
		SubmitResultTime:        in.SubmitResultBy.UTC().Format(time.RFC3339),
		IdentifierFromPurchaser: in.IdentifierFromPurchaser,
	}

	var resp struct {
		Data paymentData `json:"data"`
	}
	if err := c.post(ctx, "/payment/", body, &resp); err != nil {
		return nil, err
	}
	if resp.Data.BlockchainIdentifier == "" {
		return nil, fmt.Errorf("%w: create payment response missing blockchainIdentifier", errorx.ErrGatewayUnavailable)
	}

	c.logger.Infof(ctx, "[Payment] Created payment request: %s", resp.Data.BlockchainIdentifier)

	return &Request{
		BlockchainIdentifier:      resp.Data.BlockchainIdentifier,
		PayByTime:                 resp.Data.PayByTime,
		SubmitResultTime:          resp.Data.SubmitResultTime,
		UnlockTime:                resp.Data.UnlockTime,
		ExternalDisputeUnlockTime: resp.Data.ExternalDisputeUnlockTime,
		InputHash:                 resp.Data.InputHash,
	}, nil
}

// GetStatus 查询支付状态
// 在支付列表中按 blockchainIdentifier 定位本任务的支付，
// 未上链或未找到时视为 pending
func (c *Client) GetStatus(ctx context.Context, blockchainIdentifier string) (State, error) {
	query := url.Values{}
	query.Set("limit", "10")
	query.Set("network", c.network)
	query.Set("includeHistory", "false")

	var resp struct {
		Data struct {
			Payments []paymentData `json:"Payments"`
		} `json:"data"`
	}
	if err := c.get(ctx, "/payment/?"+query.Encode(), &resp); err != nil {
		return "", err
	}

	for _, p := range resp.Data.Payments {
		if p.BlockchainIdentifier != blockchainIdentifier {
			continue
		}
		return mapOnChainState(p.OnChainState), nil
	}
	return StatePending, nil
}

// completePaymentBody POST /payment/submit-result 请求体
type completePaymentBody struct {
	Network              string `json:"network"`
	BlockchainIdentifier string `json:"blockchainIdentifier"`
	SubmitResultHash     string `json:"submitResultHash"`
}

// CompleteRequest 提交结果哈希，标记支付请求完成
func (c *Client) CompleteRequest(ctx context.Context, blockchainIdentifier, resultHash string) error {
	body := completePaymentBody{
		Network:              c.network,
		BlockchainIdentifier: blockchainIdentifier,
		SubmitResultHash:     resultHash,
	}
	return c.post(ctx, "/payment/submit-result", body, nil)
}

// mapOnChainState 链上状态归一化
func mapOnChainState(onChainState string) State {
	switch onChainState {
	case "FundsLocked":
		return StateFundsLocked
	case "FundsLockingExpired", "PayByTimeExpired", "Expired":
		return StateExpired
	case "RefundRequested", "Declined", "DisputedWithdrawn":
		return StateDeclined
	default:
		// 未上链、pending 或未知状态均按 pending 处理，由轮询器继续观察
		return StatePending
	}
}

// post 发送 POST 请求
func (c *Client) post(ctx context.Context, path string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request failed: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request failed: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("accept", "application/json")
	req.Header.Set("token", c.apiKey)

	return c.do(req, out)
}

// get 发送 GET 请求
func (c *Client) get(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("build request failed: %w", err)
	}
	req.Header.Set("accept", "application/json")
	req.Header.Set("token", c.apiKey)

	return c.do(req, out)
}

// do 执行请求并解析响应
// 网络错误与非 2xx 响应统一归类为 ErrGatewayUnavailable
func (c *Client) do(req *http.Request, out interface{}) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", errorx.ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: read response: %v", errorx.ErrGatewayUnavailable, err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: %s %s returned %d: %s",
			errorx.ErrGatewayUnavailable, req.Method, req.URL.Path, resp.StatusCode, truncate(string(data), 256))
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: decode response: %v", errorx.ErrGatewayUnavailable, err)
	}
	return nil
}

// truncate 截断过长的错误响应
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
