package insightwatch

import "time"

// Insight is the AI analysis produced for an issue by the insight service.
//
// Field names follow the service's JSON representation.
type Insight struct {
	ID          string    `json:"id"`
	IssueID     string    `json:"issue_id"`
	ProjectID   string    `json:"project_id"`
	Summary     string    `json:"summary"`
	RootCause   string    `json:"root_cause"`
	Remediation string    `json:"remediation"`
	TokensUsed  int       `json:"tokens_used"`
	ModelUsed   string    `json:"model_used"`
	CreatedAt   time.Time `json:"created_at"`
}
