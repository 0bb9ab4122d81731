package pipeline

import "strings"

// Context 流水线上下文（固定 Schema 的值对象）
// 每个阶段接收上一阶段输出的副本，返回新的上下文；
// 阶段之间只通过返回值传递数据，不共享可变状态
type Context struct {
	// 输入字段
	Topic     string
	Tone      string
	Platform  string
	Keywords  []string
	Link      string
	Audience  string
	RequestID string
	UseEmojis bool

	// 阶段累积字段
	Snippets        []Snippet
	Insights        []string
	ResearchSummary string
	Post            *Post
	Hashtags        *HashtagPackage
	Image           *ImageAsset

	// 附加元数据
	Metadata map[string]string
}

// Snippet 检索到的单条资料片段
type Snippet struct {
	Title   string `json:"title"`
	Link    string `json:"link"`
	Snippet string `json:"snippet"`
	Source  string `json:"source"`
}

// Post 文案生成结果
type Post struct {
	Headline     string `json:"headline"`
	PostBody     string `json:"post_body"`
	Rationale    string `json:"rationale"`
	CallToAction string `json:"call_to_action"`
	ImagePrompt  string `json:"image_prompt"`
}

// HashtagPackage 标签生成结果
type HashtagPackage struct {
	Hashtags  []string `json:"hashtags"`
	Explainer string   `json:"explainer"`
}

// ImageAsset 图片生成结果
type ImageAsset struct {
	JobID    string `json:"job_id"`
	IPFSHash string `json:"ipfs_hash"`
	URL      string `json:"url"`
}

// NewContext 从任务输入构造初始上下文
// keywords 为逗号分隔字符串时拆分为列表；use_emojis 默认开启
func NewContext(input map[string]string, requestID string) Context {
	pc := Context{
		Topic:     input["topic"],
		Tone:      input["tone"],
		Platform:  input["platform"],
		Link:      input["link"],
		Audience:  input["audience"],
		RequestID: requestID,
		UseEmojis: input["use_emojis"] != "false",
		Metadata:  make(map[string]string),
	}
	if pc.Platform == "" {
		pc.Platform = "linkedin"
	}
	if raw := strings.TrimSpace(input["keywords"]); raw != "" {
		for _, kw := range strings.Split(raw, ",") {
			if kw = strings.TrimSpace(kw); kw != "" {
				pc.Keywords = append(pc.Keywords, kw)
			}
		}
	}
	return pc
}
