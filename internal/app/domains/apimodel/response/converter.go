package response

import (
	"time"

	"mca/agentd/internal/app/domains/entity/etjob"
)

// FromJobEntity 领域对象转任务状态响应
func FromJobEntity(job *etjob.Job) *JobStatusResponse {
	resp := &JobStatusResponse{
		JobID:     job.ID,
		Status:    string(job.Status),
		Error:     job.ErrorDetail,
		CreatedAt: job.CreatedAt.Format(time.RFC3339),
		UpdatedAt: job.UpdatedAt.Format(time.RFC3339),
	}
	if job.Result != nil {
		resp.Result = &JobResult{
			Headline:        job.Result.Headline,
			PostBody:        job.Result.PostBody,
			Rationale:       job.Result.Rationale,
			CallToAction:    job.Result.CallToAction,
			ResearchSummary: job.Result.ResearchSummary,
			Insights:        job.Result.Insights,
			Hashtags:        job.Result.Hashtags,
			HashtagNote:     job.Result.HashtagNote,
			ImageURL:        job.Result.ImageURL,
		}
	}
	for _, fault := range job.StageFaults {
		resp.StageFaults = append(resp.StageFaults, StageFault{
			Stage: fault.Stage,
			Error: fault.Error,
		})
	}
	return resp
}

// NewStartJobResponse 任务受理结果转响应
func NewStartJobResponse(job *etjob.Job, agentIdentifier, sellerVKey string) *StartJobResponse {
	return &StartJobResponse{
		Status:                  "success",
		JobID:                   job.ID,
		BlockchainIdentifier:    job.PaymentRef,
		PayByTime:               job.PayBy.UnixMilli(),
		SubmitResultTime:        job.SubmitResultBy.UnixMilli(),
		AgentIdentifier:         agentIdentifier,
		SellerVKey:              sellerVKey,
		IdentifierFromPurchaser: job.PurchaserID,
		InputHash:               job.InputHash,
	}
}
