package models

// Requests for the report HTTP endpoints. Defined in domain for consistency and reuse.

// RegimesRequest refits the classifier. Zero components keeps the configured
// value; seed applies only when present in the query.
type RegimesRequest struct {
	Components int   `query:"components" json:"components" validate:"omitempty,gte=1,lte=10"`
	Seed       int64 `query:"seed" json:"seed"`
	Limit      int   `query:"limit" json:"limit" validate:"omitempty,gte=1"`
}

type BacktestRequest struct {
	Mode        string `query:"mode" json:"mode" default:"auto" validate:"oneof=auto regime basket"`
	IncludeDays bool   `query:"days" json:"days"`
	Refit       bool   `query:"refit" json:"refit"`
}

type SummaryRequest struct {
	Mode  string `query:"mode" json:"mode" default:"auto" validate:"oneof=auto regime basket"`
	Refit bool   `query:"refit" json:"refit"`
}
