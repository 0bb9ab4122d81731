package job

import (
	"errors"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"mca/agentd/internal/app/domains/apimodel/request"
	"mca/agentd/internal/app/domains/apimodel/response"
	"mca/agentd/internal/app/pkg/errorx"
	"mca/agentd/internal/app/pkg/ginx"
)

// Start 受理任务接口
// POST /start_job?wait=10
// 支付请求创建失败时返回 502，不创建任务记录
func (h *JobHandler) Start(c *gin.Context) {
	waitSeconds := 0
	if waitStr := c.Query("wait"); waitStr != "" {
		if w, err := strconv.Atoi(waitStr); err == nil && w > 0 {
			waitSeconds = w
		}
	}

	var req request.StartJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ginx.BadRequestWithValidation(c, err)
		return
	}

	job, err := h.jobService.StartJob(c.Request.Context(), req.IdentifierFromPurchaser, req.InputData)
	if err != nil {
		switch {
		case errors.Is(err, errorx.ErrInvalidInput):
			ginx.BadRequest(c, err.Error())
		case errors.Is(err, errorx.ErrGatewayUnavailable):
			ginx.BadGateway(c, "payment service unavailable, please retry later")
		default:
			ginx.InternalError(c, err.Error())
		}
		return
	}

	// Smart Wait：等待窗口内任务已进入终态时直接返回结果，
	// 否则照常返回支付信息，买方走 /status 轮询
	if waitSeconds > 0 {
		waited, err := h.jobService.WaitForResult(c.Request.Context(), job.ID, time.Duration(waitSeconds)*time.Second)
		if err == nil && waited.Status.Terminal() {
			ginx.Success(c, response.FromJobEntity(waited))
			return
		}
	}

	ginx.Success(c, response.NewStartJobResponse(job, h.payment.AgentIdentifier, h.payment.SellerVKey))
}
