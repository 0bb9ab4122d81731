package job

import (
	"errors"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"mca/agentd/internal/app/domains/apimodel/response"
	"mca/agentd/internal/app/pkg/errorx"
	"mca/agentd/internal/app/pkg/ginx"
)

// Status 查询任务状态接口
// GET /status?job_id=xxx&wait=10
// wait 大于 0 时启用 Smart Wait，在窗口内等待任务进入终态
func (h *JobHandler) Status(c *gin.Context) {
	jobID := c.Query("job_id")
	if jobID == "" {
		ginx.BadRequest(c, "job_id is required")
		return
	}

	waitSeconds := 0
	if waitStr := c.Query("wait"); waitStr != "" {
		if w, err := strconv.Atoi(waitStr); err == nil && w > 0 {
			waitSeconds = w
		}
	}

	job, err := h.jobService.WaitForResult(c.Request.Context(), jobID, time.Duration(waitSeconds)*time.Second)
	if err != nil {
		if errors.Is(err, errorx.ErrJobNotFound) {
			ginx.NotFound(c, "job not found: "+jobID)
			return
		}
		ginx.InternalError(c, err.Error())
		return
	}

	ginx.Success(c, response.FromJobEntity(job))
}
