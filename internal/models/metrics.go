package models

// SystemMetrics is the lightweight runtime snapshot served to admins.
type SystemMetrics struct {
	RequestCount       uint64  `json:"request_count"`
	AvgRequestMs       float64 `json:"avg_request_ms"`
	DBQueryCount       uint64  `json:"db_query_count"`
	AvgDBQueryMs       float64 `json:"avg_db_query_ms"`
	TransitionsApplied uint64  `json:"transitions_applied"`
	TransitionsDenied  uint64  `json:"transitions_denied"`
	Goroutines         int     `json:"goroutines"`
}
