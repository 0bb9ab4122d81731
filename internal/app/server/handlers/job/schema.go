package job

import (
	"time"

	"github.com/gin-gonic/gin"

	"mca/agentd/internal/app/domains/apimodel/response"
	"mca/agentd/internal/app/pkg/ginx"
)

// Availability 可用性探测接口
// GET /availability
func (h *JobHandler) Availability(c *gin.Context) {
	ginx.Success(c, response.AvailabilityResponse{
		Status:        "available",
		Type:          "masumi-agent",
		UptimeSeconds: int64(time.Since(h.startTime).Seconds()),
		Message:       "Content generation agent is ready to accept jobs",
	})
}

// InputSchema 输入 Schema 接口
// GET /input_schema
func (h *JobHandler) InputSchema(c *gin.Context) {
	fields := []response.InputField{
		newField("topic", "Topic", "What the post should be about", false),
		newField("tone", "Tone", "Desired tone of voice, e.g. professional, playful", true),
		newField("platform", "Platform", "Target platform: linkedin or twitter", true),
		newField("keywords", "Keywords", "Comma separated focus keywords", true),
		newField("link", "Link", "Optional URL to reference in the post", true),
	}
	ginx.Success(c, response.InputSchemaResponse{InputData: fields})
}

// newField 构造单个输入字段定义
func newField(id, name, description string, optional bool) response.InputField {
	field := response.InputField{
		ID:       id,
		Type:     "string",
		Name:     name,
		Optional: optional,
	}
	field.Data.Description = description
	return field
}
