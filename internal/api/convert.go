package api

import (
	"time"

	"autotag/internal/queue"
	"autotag/internal/review"
	"autotag/internal/stage"
	"autotag/internal/workflow"
)

// FromQueueItem converts a queue record to its API representation.
func FromQueueItem(item *queue.Item) QueueItem {
	if item == nil {
		return QueueItem{}
	}
	return QueueItem{
		ID:          item.ID,
		MediaID:     item.MediaID,
		Status:      string(item.Status),
		Priority:    item.Priority,
		Tier1Done:   item.Tier1Done,
		Tier2Needed: item.Tier2Needed,
		Tier2Done:   item.Tier2Done,
		Error:       item.Error,
		CreatedAt:   formatTime(item.CreatedAt),
		StartedAt:   formatTime(item.StartedAt),
		CompletedAt: formatTime(item.CompletedAt),
	}
}

// FromQueueItems converts a slice of queue records into API DTOs.
func FromQueueItems(items []*queue.Item) []QueueItem {
	out := make([]QueueItem, 0, len(items))
	for _, item := range items {
		out = append(out, FromQueueItem(item))
	}
	return out
}

// FromReviewEntry converts a joined result row.
func FromReviewEntry(entry queue.ReviewEntry) ReviewEntry {
	dto := ReviewEntry{
		MediaID:        entry.MediaID,
		MediaPath:      entry.MediaPath,
		MediaType:      entry.MediaType,
		MediaTitle:     entry.MediaTitle,
		NSFWCategory:   string(entry.NSFWCategory),
		NSFWConfidence: entry.NSFWConfidence,
		ContentType:    string(entry.ContentType),
		Tier1Tags:      entry.Tier1Tags,
		MatchedTags:    entry.MatchedTags,
		Suggestions:    entry.Suggestions,
		ReviewStatus:   string(entry.ReviewStatus),
		ApprovedTagIDs: entry.ApprovedTagIDs,
		ApprovedTitle:  entry.ApprovedTitle,
		CreatedAt:      formatTime(entry.CreatedAt),
		ReviewedAt:     formatTime(entry.ReviewedAt),
	}
	if t2 := entry.Tier2; t2 != nil {
		dto.Tier2 = &Tier2Output{
			Title:       t2.Title,
			Description: t2.Description,
			Tags:        t2.Tags,
			Attributes:  t2.Attributes,
		}
	}
	return dto
}

// FromReviewPage converts a review service page.
func FromReviewPage(page review.Page) ReviewPage {
	out := ReviewPage{
		Entries:  make([]ReviewEntry, 0, len(page.Entries)),
		Total:    page.Total,
		Page:     page.Page,
		PageSize: page.PageSize,
	}
	for _, entry := range page.Entries {
		out.Entries = append(out.Entries, FromReviewEntry(entry))
	}
	return out
}

// FromStatusSummary converts workflow status into the API representation.
func FromStatusSummary(summary workflow.StatusSummary) WorkflowStatus {
	status := WorkflowStatus{
		Running:        summary.Running,
		Paused:         summary.Paused,
		CurrentMediaID: summary.CurrentMediaID,
		QueueStats:     QueueStatsMap(summary.Queue),
		LastError:      summary.LastError,
		StageHealth:    FromStageHealth(summary.StageHealth),
	}
	if summary.LastItem != nil {
		item := FromQueueItem(summary.LastItem)
		status.LastItem = &item
	}
	return status
}

// QueueStatsMap keys queue counts by status name.
func QueueStatsMap(stats queue.Stats) map[string]int {
	return map[string]int{
		string(queue.StatusPending):    stats.Pending,
		string(queue.StatusProcessing): stats.Processing,
		string(queue.StatusCompleted):  stats.Completed,
		string(queue.StatusFailed):     stats.Failed,
	}
}

// FromStageHealth converts stage readiness reports.
func FromStageHealth(health []stage.Health) []StageHealth {
	out := make([]StageHealth, 0, len(health))
	for _, h := range health {
		out = append(out, StageHealth{Name: h.Name, Ready: h.Ready, Detail: h.Detail})
	}
	return out
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}
