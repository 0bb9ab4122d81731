package response

// StartJobResponse 受理任务响应
// 支付相关字段供买方提交 /purchase 使用，字段名遵循支付服务的命名
type StartJobResponse struct {
	Status                  string `json:"status" example:"success"`
	JobID                   string `json:"job_id"`
	BlockchainIdentifier    string `json:"blockchainIdentifier"`
	PayByTime               int64  `json:"payByTime"`
	SubmitResultTime        int64  `json:"submitResultTime"`
	AgentIdentifier         string `json:"agentIdentifier"`
	SellerVKey              string `json:"sellerVKey"`
	IdentifierFromPurchaser string `json:"identifierFromPurchaser"`
	InputHash               string `json:"input_hash"`
}

// JobStatusResponse 任务状态响应
type JobStatusResponse struct {
	JobID       string       `json:"job_id"`
	Status      string       `json:"status"`
	Result      *JobResult   `json:"result,omitempty"`
	StageFaults []StageFault `json:"stage_faults,omitempty"`
	Error       string       `json:"error,omitempty"`
	CreatedAt   string       `json:"created_at"`
	UpdatedAt   string       `json:"updated_at"`
}

// JobResult 生成结果
type JobResult struct {
	Headline        string   `json:"headline"`
	PostBody        string   `json:"post_body"`
	Rationale       string   `json:"rationale"`
	CallToAction    string   `json:"call_to_action"`
	ResearchSummary string   `json:"research_summary"`
	Insights        []string `json:"insights"`
	Hashtags        []string `json:"hashtags"`
	HashtagNote     string   `json:"hashtag_note"`
	ImageURL        string   `json:"image_url,omitempty"`
}

// StageFault 可选阶段的失败记录
type StageFault struct {
	Stage string `json:"stage"`
	Error string `json:"error"`
}

// AvailabilityResponse 可用性探测响应
type AvailabilityResponse struct {
	Status        string `json:"status" example:"available"`
	Type          string `json:"type" example:"masumi-agent"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	Message       string `json:"message"`
}

// InputSchemaResponse 输入 Schema 响应
type InputSchemaResponse struct {
	InputData []InputField `json:"input_data"`
}

// InputField 输入字段定义
type InputField struct {
	ID       string   `json:"id"`
	Type     string   `json:"type"`
	Name     string   `json:"name"`
	Data     struct {
		Description string `json:"description"`
		Placeholder string `json:"placeholder,omitempty"`
	} `json:"data"`
	Optional bool     `json:"optional,omitempty"`
	Values   []string `json:"values,omitempty"`
}
