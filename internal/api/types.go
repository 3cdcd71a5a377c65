package api

import (
	"autotag/internal/tagging"
)

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// Envelope wraps every /api response.
type Envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// QueueItem describes a queue entry in a transport-friendly format.
type QueueItem struct {
	ID          int64  `json:"id"`
	MediaID     int64  `json:"mediaId"`
	Status      string `json:"status"`
	Priority    int    `json:"priority"`
	Tier1Done   bool   `json:"tier1Done"`
	Tier2Needed bool   `json:"tier2Needed"`
	Tier2Done   bool   `json:"tier2Done"`
	Error       string `json:"error,omitempty"`
	CreatedAt   string `json:"createdAt,omitempty"`
	StartedAt   string `json:"startedAt,omitempty"`
	CompletedAt string `json:"completedAt,omitempty"`
}

// Tier2Output is the remote vision section of a review entry.
type Tier2Output struct {
	Title       string             `json:"title,omitempty"`
	Description string             `json:"description,omitempty"`
	Tags        []string           `json:"tags,omitempty"`
	Attributes  tagging.Attributes `json:"attributes"`
}

// ReviewEntry is an analysis result joined with its media.
type ReviewEntry struct {
	MediaID        int64                `json:"mediaId"`
	MediaPath      string               `json:"mediaPath"`
	MediaType      string               `json:"mediaType"`
	MediaTitle     string               `json:"mediaTitle,omitempty"`
	NSFWCategory   string               `json:"nsfwCategory"`
	NSFWConfidence float64              `json:"nsfwConfidence"`
	ContentType    string               `json:"contentType,omitempty"`
	Tier1Tags      []tagging.Label      `json:"tier1Tags"`
	Tier2          *Tier2Output         `json:"tier2,omitempty"`
	MatchedTags    []tagging.MatchedTag `json:"matchedTags"`
	Suggestions    []tagging.Suggestion `json:"suggestions"`
	ReviewStatus   string               `json:"reviewStatus"`
	ApprovedTagIDs []int64              `json:"approvedTagIds,omitempty"`
	ApprovedTitle  string               `json:"approvedTitle,omitempty"`
	CreatedAt      string               `json:"createdAt,omitempty"`
	ReviewedAt     string               `json:"reviewedAt,omitempty"`
}

// ReviewPage is one page of review entries.
type ReviewPage struct {
	Entries  []ReviewEntry `json:"entries"`
	Total    int           `json:"total"`
	Page     int           `json:"page"`
	PageSize int           `json:"pageSize"`
}

// StageHealth mirrors readiness reporting for pipeline stages.
type StageHealth struct {
	Name   string `json:"name"`
	Ready  bool   `json:"ready"`
	Detail string `json:"detail,omitempty"`
}

// WorkflowStatus summarizes worker state and queue depth.
type WorkflowStatus struct {
	Running        bool           `json:"running"`
	Paused         bool           `json:"paused"`
	CurrentMediaID int64          `json:"currentMediaId,omitempty"`
	QueueStats     map[string]int `json:"queueStats"`
	LastError      string         `json:"lastError,omitempty"`
	LastItem       *QueueItem     `json:"lastItem,omitempty"`
	StageHealth    []StageHealth  `json:"stageHealth"`
}

// HealthResponse is the /health payload.
type HealthResponse struct {
	Ready  bool          `json:"ready"`
	Stages []StageHealth `json:"stages"`
}

// EnqueueRequest is the body of queue mutations.
type EnqueueRequest struct {
	MediaIDs []int64 `json:"mediaIds"`
	Priority int     `json:"priority"`
}

// CountResponse reports how many rows an operation touched.
type CountResponse struct {
	Count int64 `json:"count"`
}

// ApproveRequest optionally overrides what an approval applies.
type ApproveRequest struct {
	TagIDs  []int64  `json:"tagIds"`
	NewTags []string `json:"newTags"`
	Title   *string  `json:"title"`
}

// BulkRequest names the media ids of a bulk review decision.
type BulkRequest struct {
	MediaIDs []int64 `json:"mediaIds"`
}
