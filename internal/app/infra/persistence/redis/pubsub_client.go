package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// resultChannelPrefix 任务结果通知频道前缀
const resultChannelPrefix = "job:result:"

// JobNotification 任务终态通知消息
type JobNotification struct {
	JobID  string `json:"job_id"`
	Status string `json:"status"`
}

// PubSubClient Redis Pub/Sub 客户端封装
type PubSubClient struct {
	rdb *redis.Client
}

// NewPubSubClient 创建 Pub/Sub 客户端，支持密码认证
func NewPubSubClient(addr, password string, db int) (*PubSubClient, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := rdb.Ping(context.Background()).Err(); err != nil {
		return nil, err
	}

	return &PubSubClient{rdb: rdb}, nil
}

// ResultChannel 任务结果频道名
func ResultChannel(jobID string) string {
	return resultChannelPrefix + jobID
}

// PublishJobResult 任务进入终态后发布通知
func (c *PubSubClient) PublishJobResult(ctx context.Context, jobID, status string) error {
	payload, err := json.Marshal(JobNotification{JobID: jobID, Status: status})
	if err != nil {
		return fmt.Errorf("marshal notification failed: %w", err)
	}
	return c.rdb.Publish(ctx, ResultChannel(jobID), string(payload)).Err()
}

// WaitJobResult 订阅任务结果频道并等待终态通知，支持超时控制
// 用于 Smart Wait：提交任务后在超时窗口内等待流水线完成
func (c *PubSubClient) WaitJobResult(ctx context.Context, jobID string, timeout time.Duration) (*JobNotification, error) {
	sub := c.rdb.Subscribe(ctx, ResultChannel(jobID))
	defer sub.Close()

	timeoutCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	select {
	case msg := <-sub.Channel():
		var n JobNotification
		if err := json.Unmarshal([]byte(msg.Payload), &n); err != nil {
			return nil, fmt.Errorf("decode notification failed: %w", err)
		}
		return &n, nil
	case <-timeoutCtx.Done():
		return nil, timeoutCtx.Err()
	}
}

// Close 关闭连接
func (c *PubSubClient) Close() error {
	return c.rdb.Close()
}
