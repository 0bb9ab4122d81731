package imagegen

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

	"mca/agentd/internal/pipeline"
	"mca/agentd/pkg/logger"
)

// Generator 图片生成接口
type Generator interface {
	Generate(ctx context.Context, prompt, identifierFromPurchaser string) (*pipeline.ImageAsset, error)
}

// Client 图片生成 Agent 客户端
// 完整流程：图片 Agent /start_job -> 支付服务 /purchase -> 轮询图片 Agent /status
type Client struct {
	agentBaseURL   string
	paymentBaseURL string
	paymentAPIKey  string
	network        string
	modelType      string
	ipfsGateway    string
	pollInterval   time.Duration
	maxPolls       int
	httpClient     *http.Client
	logger         logger.Logger
}

// NewClient 创建图片生成客户端
func NewClient(agentBaseURL, paymentBaseURL, paymentAPIKey, network, modelType, ipfsGateway string,
	pollInterval time.Duration, maxPolls int, log logger.Logger) *Client {
	return &Client{
		agentBaseURL:   strings.TrimRight(agentBaseURL, "/"),
		paymentBaseURL: strings.TrimRight(paymentBaseURL, "/"),
		paymentAPIKey:  paymentAPIKey,
		network:        network,
		modelType:      modelType,
		ipfsGateway:    strings.TrimRight(ipfsGateway, "/"),
		pollInterval:   pollInterval,
		maxPolls:       maxPolls,
		httpClient:     &http.Client{Timeout: 60 * time.Second},
		logger:         log,
	}
}

// startJobResponse 图片 Agent /start_job 响应
// 金额与时间字段原样转发给支付服务的 /purchase
type startJobResponse struct {
	JobID                     string          `json:"job_id"`
	BlockchainIdentifier      string          `json:"blockchainIdentifier"`
	IdentifierFromPurchaser   string          `json:"identifierFromPurchaser"`
	SellerVKey                string          `json:"sellerVKey"`
	AgentIdentifier           string          `json:"agentIdentifier"`
	PayByTime                 json.RawMessage `json:"payByTime"`
	SubmitResultTime          json.RawMessage `json:"submitResultTime"`
	UnlockTime                json.RawMessage `json:"unlockTime"`
	ExternalDisputeUnlockTime json.RawMessage `json:"externalDisputeUnlockTime"`
	InputHash                 string          `json:"inputHash"`
}

// statusResponse 图片 Agent /status 响应
type statusResponse struct {
	JobID         string `json:"job_id"`
	Status        string `json:"status"`
	PaymentStatus string `json:"payment_status"`
	Result        string `json:"result"`
}

// Generate 生成图片并返回 IPFS 资源信息
func (c *Client) Generate(ctx context.Context, prompt, identifierFromPurchaser string) (*pipeline.ImageAsset, error) {
	start, err := c.startJob(ctx, prompt, identifierFromPurchaser)
	if err != nil {
		return nil, err
	}
	if err := c.triggerPurchase(ctx, start); err != nil {
		return nil, err
	}
	status, err := c.waitForResult(ctx, start.JobID)
	if err != nil {
		return nil, err
	}

	asset := &pipeline.ImageAsset{
		JobID:    start.JobID,
		IPFSHash: status.Result,
	}
	if status.Result != "" {
		asset.URL = c.ipfsGateway + "/" + status.Result
	}
	return asset, nil
}

// startJob 向图片 Agent 提交生成任务
func (c *Client) startJob(ctx context.Context, prompt, identifierFromPurchaser string) (*startJobResponse, error) {
	payload := map[string]interface{}{
		"identifier_from_purchaser": identifierFromPurchaser,
		"input_data": map[string]string{
			"model_type": c.modelType,
			"prompt":     prompt,
		},
	}

	c.logger.Infof(ctx, "[ImageGen] Starting image job at %s/start_job", c.agentBaseURL)

	var resp startJobResponse
	if err := c.postJSON(ctx, c.agentBaseURL+"/start_job", payload, nil, &resp); err != nil {
		return nil, fmt.Errorf("image start_job failed: %w", err)
	}
	if resp.JobID == "" {
		return nil, fmt.Errorf("image start_job response missing job_id")
	}
	return &resp, nil
}

// triggerPurchase 调用支付服务 /purchase，为图片任务锁定资金
func (c *Client) triggerPurchase(ctx context.Context, start *startJobResponse) error {
	missing := make([]string, 0, 4)
	if start.BlockchainIdentifier == "" {
		missing = append(missing, "blockchainIdentifier")
	}
	if start.SellerVKey == "" {
		missing = append(missing, "sellerVKey")
	}
	if start.AgentIdentifier == "" {
		missing = append(missing, "agentIdentifier")
	}
	if start.InputHash == "" {
		missing = append(missing, "inputHash")
	}
	if len(missing) > 0 {
		return fmt.Errorf("image start_job response missing fields required for purchase: %s", strings.Join(missing, ", "))
	}

	payload := map[string]interface{}{
		"identifierFromPurchaser":   start.IdentifierFromPurchaser,
		"network":                   c.network,
		"sellerVkey":                start.SellerVKey,
		"blockchainIdentifier":      start.BlockchainIdentifier,
		"payByTime":                 start.PayByTime,
		"submitResultTime":          start.SubmitResultTime,
		"unlockTime":                start.UnlockTime,
		"externalDisputeUnlockTime": start.ExternalDisputeUnlockTime,
		"agentIdentifier":           start.AgentIdentifier,
		"inputHash":                 start.InputHash,
	}
	headers := map[string]string{"token": c.paymentAPIKey}

	c.logger.Infof(ctx, "[ImageGen] Triggering purchase for image job %s", start.JobID)

	if err := c.postJSON(ctx, c.paymentBaseURL+"/purchase", payload, headers, nil); err != nil {
		return fmt.Errorf("image purchase failed: %w", err)
	}
	return nil
}

// waitForResult 轮询 /status 直到 completed 或超出轮询上限
func (c *Client) waitForResult(ctx context.Context, jobID string) (*statusResponse, error) {
	statusURL := c.agentBaseURL + "/status?job_id=" + url.QueryEscape(jobID)

	for attempt := 1; attempt <= c.maxPolls; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, statusURL, nil)
		if err != nil {
			return nil, fmt.Errorf("build status request failed: %w", err)
		}
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("image status request failed: %w", err)
		}
		data, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("read status response failed: %w", err)
		}
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("image status returned %d: %s", resp.StatusCode, string(data))
		}

		var status statusResponse
		if err := json.Unmarshal(data, &status); err != nil {
			return nil, fmt.Errorf("decode status response failed: %w", err)
		}

		c.logger.Infof(ctx, "[ImageGen] Image job %s status: %s (attempt %d/%d)",
			jobID, status.Status, attempt, c.maxPolls)

		switch status.Status {
		case "completed":
			return &status, nil
		case "failed":
			return nil, fmt.Errorf("image job %s failed", jobID)
		}

		select {
		case <-time.After(c.pollInterval):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return nil, fmt.Errorf("image job %s did not complete within %d polls", jobID, c.maxPolls)
}

// postJSON 发送 JSON POST 请求并可选解析响应
func (c *Client) postJSON(ctx context.Context, rawURL string, body interface{}, headers map[string]string, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request failed: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request failed: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response failed: %w", err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("request returned %d: %s", resp.StatusCode, string(data))
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(data, out)
}
