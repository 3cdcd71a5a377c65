package queue

import (
	"errors"
	"time"

	"autotag/internal/tagging"
)

// Status represents the lifecycle state of a queue item.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

var allStatuses = []Status{StatusPending, StatusProcessing, StatusCompleted, StatusFailed}

// AllStatuses returns every queue status in lifecycle order.
func AllStatuses() []Status {
	out := make([]Status, len(allStatuses))
	copy(out, allStatuses)
	return out
}

// ParseStatus converts a raw string into a Status.
func ParseStatus(value string) (Status, bool) {
	for _, status := range allStatuses {
		if string(status) == value {
			return status, true
		}
	}
	return "", false
}

// ReviewStatus is the human-approval state of an analysis result.
type ReviewStatus string

const (
	ReviewPending  ReviewStatus = "pending"
	ReviewApproved ReviewStatus = "approved"
	ReviewRejected ReviewStatus = "rejected"
)

// ParseReviewStatus converts a raw string into a ReviewStatus.
func ParseReviewStatus(value string) (ReviewStatus, bool) {
	switch ReviewStatus(value) {
	case ReviewPending, ReviewApproved, ReviewRejected:
		return ReviewStatus(value), true
	default:
		return "", false
	}
}

var (
	// ErrNotInitialized is returned when a nil or closed store is used.
	ErrNotInitialized = errors.New("queue store not initialized")
	// ErrNotFound is returned when the addressed row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrNotPending is returned when a review outcome targets a result that
	// was already approved or rejected.
	ErrNotPending = errors.New("analysis result is not pending review")
	// ErrStatusConflict is returned when a transition finds the item in an
	// unexpected state.
	ErrStatusConflict = errors.New("queue item status conflict")
)

// Item is one row of the tagging queue.
type Item struct {
	ID          int64
	MediaID     int64
	Status      Status
	Priority    int
	Tier1Done   bool
	Tier2Needed bool
	Tier2Done   bool
	Error       string
	CreatedAt   time.Time
	StartedAt   time.Time
	CompletedAt time.Time
}

// Tier2Data is the remote vision output kept on a result. A nil pointer on
// Result means Tier 2 did not run for the item.
type Tier2Data struct {
	Title       string
	Description string
	Tags        []string
	Attributes  tagging.Attributes
}

// Result is the analysis outcome for one media item.
type Result struct {
	ID             int64
	MediaID        int64
	NSFWCategory   tagging.NSFWCategory
	NSFWConfidence float64
	ContentType    tagging.ContentType
	Tier1Tags      []tagging.Label
	Tier2          *Tier2Data
	MatchedTags    []tagging.MatchedTag
	Suggestions    []tagging.Suggestion
	ReviewStatus   ReviewStatus
	ApprovedTagIDs []int64
	ApprovedTitle  string
	CreatedAt      time.Time
	UpdatedAt      time.Time
	ReviewedAt     time.Time
}

// ReviewEntry is a result joined with the library media it describes.
type ReviewEntry struct {
	Result
	MediaPath  string
	MediaType  string
	MediaTitle string
}

// ReviewFilter narrows ListReviews. An empty Status lists every status.
type ReviewFilter struct {
	Status   ReviewStatus
	Page     int
	PageSize int
}

// Stats holds queue row counts per status.
type Stats struct {
	Pending    int `json:"pending"`
	Processing int `json:"processing"`
	Completed  int `json:"completed"`
	Failed     int `json:"failed"`
}

// Total returns the number of queue rows.
func (s Stats) Total() int {
	return s.Pending + s.Processing + s.Completed + s.Failed
}

// ReviewStats holds result counts per review status and the NSFW category
// distribution across all results.
type ReviewStats struct {
	Pending  int            `json:"pending"`
	Approved int            `json:"approved"`
	Rejected int            `json:"rejected"`
	NSFW     map[string]int `json:"nsfw"`
}
