package request

// StartJobRequest 受理任务请求（MIP-003 /start_job）
type StartJobRequest struct {
	IdentifierFromPurchaser string            `json:"identifier_from_purchaser" binding:"omitempty,min=14,max=26" example:"12345671234567"`
	InputData               map[string]string `json:"input_data" binding:"required" example:"topic:AI automation"`
}
