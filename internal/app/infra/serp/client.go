package serp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"mca/agentd/internal/pipeline"
	"mca/agentd/pkg/logger"
)

const defaultEndpoint = "https://serpapi.com/search.json"

// Client SERP 检索客户端，带指数退避重试
type Client struct {
	endpoint   string
	apiKey     string
	engine     string
	location   string
	language   string
	numResults int
	retries    int
	backoff    time.Duration
	httpClient *http.Client
	logger     logger.Logger
}

// NewClient 创建 SERP 客户端
func NewClient(apiKey, engine, location, language string, numResults, retries int, log logger.Logger) *Client {
	return &Client{
		endpoint:   defaultEndpoint,
		apiKey:     apiKey,
		engine:     engine,
		location:   location,
		language:   language,
		numResults: numResults,
		retries:    retries,
		backoff:    time.Second,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     log,
	}
}

// searchResponse SERP 接口原始响应（只取关心的字段）
type searchResponse struct {
	OrganicResults []struct {
		Title   string `json:"title"`
		Link    string `json:"link"`
		Snippet string `json:"snippet"`
		Source  string `json:"source"`
	} `json:"organic_results"`
	NewsResults []struct {
		Title   string `json:"title"`
		Link    string `json:"link"`
		Snippet string `json:"snippet"`
		Source  struct {
			Name string `json:"name"`
		} `json:"source"`
	} `json:"news_results"`
	RelatedQuestions []struct {
		Question string `json:"question"`
		Snippet  string `json:"snippet"`
		Link     string `json:"link"`
	} `json:"related_questions"`
	Error string `json:"error"`
}

// Search 执行检索并归一化为资料片段列表
// 瞬时失败按指数退避重试，重试耗尽后返回最后一次错误
func (c *Client) Search(ctx context.Context, query string) ([]pipeline.Snippet, error) {
	var lastErr error
	for attempt := 0; attempt <= c.retries; attempt++ {
		if attempt > 0 {
			backoff := c.backoff * time.Duration(1<<uint(attempt-1))
			c.logger.Warnf(ctx, "[Serp] Search attempt %d failed, retrying in %s: %v", attempt, backoff, lastErr)
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		snippets, err := c.search(ctx, query)
		if err == nil {
			return snippets, nil
		}
		lastErr = err
	}
	return nil, fmt.Errorf("search failed after %d attempts: %w", c.retries+1, lastErr)
}

func (c *Client) search(ctx context.Context, query string) ([]pipeline.Snippet, error) {
	params := url.Values{}
	params.Set("engine", c.engine)
	params.Set("q", query)
	params.Set("api_key", c.apiKey)
	params.Set("num", strconv.Itoa(c.numResults))
	if c.location != "" {
		params.Set("location", c.location)
	}
	if c.language != "" {
		params.Set("hl", c.language)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build search request failed: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read search response failed: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search returned status %d", resp.StatusCode)
	}

	var parsed searchResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("decode search response failed: %w", err)
	}
	if parsed.Error != "" {
		return nil, fmt.Errorf("search returned error: %s", parsed.Error)
	}

	return c.normalize(parsed), nil
}

// normalize 将 organic/news/related_questions 三类结果归一化为统一片段
func (c *Client) normalize(resp searchResponse) []pipeline.Snippet {
	snippets := make([]pipeline.Snippet, 0, c.numResults)

	for _, r := range resp.OrganicResults {
		if len(snippets) >= c.numResults {
			break
		}
		source := r.Source
		if source == "" {
			source = "organic"
		}
		snippets = append(snippets, pipeline.Snippet{
			Title:   r.Title,
			Link:    r.Link,
			Snippet: r.Snippet,
			Source:  source,
		})
	}
	for _, r := range resp.NewsResults {
		if len(snippets) >= c.numResults {
			break
		}
		source := r.Source.Name
		if source == "" {
			source = "news"
		}
		snippets = append(snippets, pipeline.Snippet{
			Title:   r.Title,
			Link:    r.Link,
			Snippet: r.Snippet,
			Source:  source,
		})
	}
	for _, r := range resp.RelatedQuestions {
		if len(snippets) >= c.numResults {
			break
		}
		snippets = append(snippets, pipeline.Snippet{
			Title:   r.Question,
			Link:    r.Link,
			Snippet: r.Snippet,
			Source:  "related_question",
		})
	}
	return snippets
}
