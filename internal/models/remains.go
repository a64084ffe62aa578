package models

// RemainsResponse is the payload of the coding_plan/remains endpoint.
type RemainsResponse struct {
	ModelRemains []ModelRemain `json:"model_remains"`
	BaseResp     BaseResp      `json:"base_resp"`
}

// ModelRemain is the per-model quota entry of a remains response.
// CurrentIntervalUsageCount is the number of calls still available in the
// current interval, not the number consumed.
type ModelRemain struct {
	StartTime                 int64  `json:"start_time"`
	EndTime                   int64  `json:"end_time"`
	RemainsTime               int64  `json:"remains_time"`
	CurrentIntervalTotalCount int64  `json:"current_interval_total_count"`
	CurrentIntervalUsageCount int64  `json:"current_interval_usage_count"`
	ModelName                 string `json:"model_name"`
}

// BaseResp carries the API-level status; a zero StatusCode means success.
type BaseResp struct {
	StatusMsg  string `json:"status_msg"`
	StatusCode int    `json:"status_code"`
}
