package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"autotag/internal/tagging"
)

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

const resultColumns = `r.id, r.media_id, r.nsfw_category, r.nsfw_confidence, r.content_type,
    r.tier1_tags, r.tier2_title, r.tier2_description, r.tier2_tags, r.tier2_attributes,
    r.matched_tags, r.new_tag_suggestions, r.review_status, r.approved_tag_ids,
    r.approved_title, r.created_at, r.updated_at, r.reviewed_at`

// UpsertResult writes the analysis result for a media id, replacing any
// previous result and resetting its review state to pending.
func (s *Store) UpsertResult(ctx context.Context, result Result) error {
	if s == nil || s.db == nil {
		return ErrNotInitialized
	}
	return retryOnBusy(ensureContext(ctx), func() error {
		return upsertResult(ensureContext(ctx), s.db, result)
	})
}

func upsertResult(ctx context.Context, db execer, result Result) error {
	if result.MediaID <= 0 {
		return fmt.Errorf("upsert result: invalid media id %d", result.MediaID)
	}
	tier1, err := encodeList(result.Tier1Tags)
	if err != nil {
		return fmt.Errorf("encode tier1 tags: %w", err)
	}
	matched, err := encodeList(result.MatchedTags)
	if err != nil {
		return fmt.Errorf("encode matched tags: %w", err)
	}
	suggestions, err := encodeList(result.Suggestions)
	if err != nil {
		return fmt.Errorf("encode suggestions: %w", err)
	}

	var (
		tier2Title, tier2Description, tier2Tags, tier2Attrs any
	)
	if result.Tier2 != nil {
		tier2Title = nullableString(result.Tier2.Title)
		tier2Description = nullableString(result.Tier2.Description)
		tags, err := encodeList(result.Tier2.Tags)
		if err != nil {
			return fmt.Errorf("encode tier2 tags: %w", err)
		}
		tier2Tags = tags
		attrs, err := encodeJSON(result.Tier2.Attributes)
		if err != nil {
			return fmt.Errorf("encode tier2 attributes: %w", err)
		}
		tier2Attrs = attrs
	}

	now := nowString()
	_, err = db.ExecContext(ctx, `INSERT INTO ai_analysis_results (
            media_id, nsfw_category, nsfw_confidence, content_type, tier1_tags,
            tier2_title, tier2_description, tier2_tags, tier2_attributes,
            matched_tags, new_tag_suggestions, review_status, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT(media_id) DO UPDATE SET
            nsfw_category = excluded.nsfw_category,
            nsfw_confidence = excluded.nsfw_confidence,
            content_type = excluded.content_type,
            tier1_tags = excluded.tier1_tags,
            tier2_title = excluded.tier2_title,
            tier2_description = excluded.tier2_description,
            tier2_tags = excluded.tier2_tags,
            tier2_attributes = excluded.tier2_attributes,
            matched_tags = excluded.matched_tags,
            new_tag_suggestions = excluded.new_tag_suggestions,
            review_status = excluded.review_status,
            approved_tag_ids = NULL,
            approved_title = NULL,
            reviewed_at = NULL,
            created_at = excluded.created_at,
            updated_at = excluded.updated_at`,
		result.MediaID,
		nullableString(string(result.NSFWCategory)),
		result.NSFWConfidence,
		nullableString(string(result.ContentType)),
		tier1,
		tier2Title,
		tier2Description,
		tier2Tags,
		tier2Attrs,
		matched,
		suggestions,
		ReviewPending,
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("upsert result for media %d: %w", result.MediaID, err)
	}
	return nil
}

func scanResult(scanner rowScanner, extra ...any) (*Result, error) {
	var (
		result       Result
		nsfwCategory sql.NullString
		nsfwConf     sql.NullFloat64
		contentType  sql.NullString
		tier1        sql.NullString
		tier2Title   sql.NullString
		tier2Desc    sql.NullString
		tier2Tags    sql.NullString
		tier2Attrs   sql.NullString
		matched      sql.NullString
		suggestions  sql.NullString
		reviewStatus string
		approvedIDs  sql.NullString
		approvedName sql.NullString
		createdAt    sql.NullString
		updatedAt    sql.NullString
		reviewedAt   sql.NullString
	)
	dest := []any{
		&result.ID, &result.MediaID, &nsfwCategory, &nsfwConf, &contentType,
		&tier1, &tier2Title, &tier2Desc, &tier2Tags, &tier2Attrs,
		&matched, &suggestions, &reviewStatus, &approvedIDs,
		&approvedName, &createdAt, &updatedAt, &reviewedAt,
	}
	if err := scanner.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}

	result.NSFWCategory = tagging.NSFWCategory(nsfwCategory.String)
	result.NSFWConfidence = nsfwConf.Float64
	result.ContentType = tagging.ContentType(contentType.String)
	result.ReviewStatus = ReviewStatus(reviewStatus)
	result.ApprovedTitle = approvedName.String
	result.CreatedAt = parseTimeString(createdAt)
	result.UpdatedAt = parseTimeString(updatedAt)
	result.ReviewedAt = parseTimeString(reviewedAt)

	var err error
	if result.Tier1Tags, err = decodeList[tagging.Label](tier1, "tier1_tags"); err != nil {
		return nil, err
	}
	if result.MatchedTags, err = decodeList[tagging.MatchedTag](matched, "matched_tags"); err != nil {
		return nil, err
	}
	if result.Suggestions, err = decodeList[tagging.Suggestion](suggestions, "new_tag_suggestions"); err != nil {
		return nil, err
	}
	if result.ApprovedTagIDs, err = decodeList[int64](approvedIDs, "approved_tag_ids"); err != nil {
		return nil, err
	}
	if tier2Title.Valid || tier2Desc.Valid || tier2Tags.Valid || tier2Attrs.Valid {
		data := &Tier2Data{Title: tier2Title.String, Description: tier2Desc.String}
		if data.Tags, err = decodeList[string](tier2Tags, "tier2_tags"); err != nil {
			return nil, err
		}
		if tier2Attrs.Valid && tier2Attrs.String != "" {
			if err := decodeInto(tier2Attrs.String, &data.Attributes); err != nil {
				return nil, fmt.Errorf("decode tier2_attributes: %w", err)
			}
		}
		result.Tier2 = data
	}
	return &result, nil
}

// GetResult fetches the analysis result for a media id. It returns nil when absent.
func (s *Store) GetResult(ctx context.Context, mediaID int64) (*Result, error) {
	if s == nil || s.db == nil {
		return nil, ErrNotInitialized
	}
	row := s.db.QueryRowContext(ensureContext(ctx),
		`SELECT `+resultColumns+` FROM ai_analysis_results r WHERE r.media_id = ?`, mediaID)
	result, err := scanResult(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get result for media %d: %w", mediaID, err)
	}
	return result, nil
}

// PurgeOrphanResults deletes results whose media no longer exists in the library.
func (s *Store) PurgeOrphanResults(ctx context.Context) (int64, error) {
	if s == nil || s.db == nil {
		return 0, ErrNotInitialized
	}
	res, err := s.execWithRetry(ctx,
		`DELETE FROM ai_analysis_results WHERE media_id NOT IN (SELECT id FROM media)`)
	if err != nil {
		return 0, fmt.Errorf("purge orphan results: %w", err)
	}
	return res.RowsAffected()
}

// ListReviews returns a page of results joined with their library media,
// newest first, plus the total number of matching rows.
func (s *Store) ListReviews(ctx context.Context, filter ReviewFilter) ([]ReviewEntry, int, error) {
	if s == nil || s.db == nil {
		return nil, 0, ErrNotInitialized
	}
	ctx = ensureContext(ctx)
	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}

	where := ""
	args := []any{}
	if filter.Status != "" {
		where = ` WHERE r.review_status = ?`
		args = append(args, string(filter.Status))
	}

	var total int
	countQuery := `SELECT COUNT(*) FROM ai_analysis_results r JOIN media m ON m.id = r.media_id` + where
	if err := s.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count reviews: %w", err)
	}

	query := `SELECT ` + resultColumns + `, m.path, m.media_type, m.title
        FROM ai_analysis_results r
        JOIN media m ON m.id = r.media_id` + where + `
        ORDER BY r.created_at DESC, r.id DESC
        LIMIT ? OFFSET ?`
	rows, err := s.db.QueryContext(ctx, query, append(args, pageSize, (page-1)*pageSize)...)
	if err != nil {
		return nil, 0, fmt.Errorf("list reviews: %w", err)
	}
	defer rows.Close()

	var entries []ReviewEntry
	for rows.Next() {
		var (
			path      string
			mediaType string
			title     sql.NullString
		)
		result, err := scanResult(rows, &path, &mediaType, &title)
		if err != nil {
			return nil, 0, fmt.Errorf("scan review: %w", err)
		}
		entries = append(entries, ReviewEntry{
			Result:     *result,
			MediaPath:  path,
			MediaType:  mediaType,
			MediaTitle: title.String,
		})
	}
	return entries, total, rows.Err()
}

// SetReviewOutcome records an approval or rejection for a pending result.
// It returns ErrNotFound when no result exists and ErrNotPending when the
// result was already reviewed.
func (s *Store) SetReviewOutcome(ctx context.Context, mediaID int64, status ReviewStatus, tagIDs []int64, title string) error {
	if s == nil || s.db == nil {
		return ErrNotInitialized
	}
	if status != ReviewApproved && status != ReviewRejected {
		return fmt.Errorf("set review outcome: invalid status %q", status)
	}
	var idsValue any
	if status == ReviewApproved {
		encoded, err := encodeList(tagIDs)
		if err != nil {
			return fmt.Errorf("encode approved tag ids: %w", err)
		}
		idsValue = encoded
	}
	now := nowString()
	res, err := s.execWithRetry(ctx, `UPDATE ai_analysis_results
        SET review_status = ?, approved_tag_ids = ?, approved_title = ?, reviewed_at = ?, updated_at = ?
        WHERE media_id = ? AND review_status = ?`,
		status, idsValue, nullableString(title), now, now, mediaID, ReviewPending)
	if err != nil {
		return fmt.Errorf("set review outcome for media %d: %w", mediaID, err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}
	existing, err := s.GetResult(ctx, mediaID)
	if err != nil {
		return err
	}
	if existing == nil {
		return fmt.Errorf("result for media %d: %w", mediaID, ErrNotFound)
	}
	return fmt.Errorf("result for media %d is %s: %w", mediaID, existing.ReviewStatus, ErrNotPending)
}

// ReviewStats returns result counts per review status and the NSFW
// category distribution.
func (s *Store) ReviewStats(ctx context.Context) (ReviewStats, error) {
	stats := ReviewStats{NSFW: map[string]int{}}
	if s == nil || s.db == nil {
		return stats, ErrNotInitialized
	}
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx,
		`SELECT review_status, COUNT(*) FROM ai_analysis_results GROUP BY review_status`)
	if err != nil {
		return stats, fmt.Errorf("review stats: %w", err)
	}
	for rows.Next() {
		var (
			status string
			count  int
		)
		if err := rows.Scan(&status, &count); err != nil {
			rows.Close()
			return stats, fmt.Errorf("scan review stats: %w", err)
		}
		switch ReviewStatus(status) {
		case ReviewPending:
			stats.Pending = count
		case ReviewApproved:
			stats.Approved = count
		case ReviewRejected:
			stats.Rejected = count
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return stats, err
	}

	nsfwRows, err := s.db.QueryContext(ctx,
		`SELECT COALESCE(nsfw_category, ''), COUNT(*) FROM ai_analysis_results GROUP BY nsfw_category`)
	if err != nil {
		return stats, fmt.Errorf("nsfw distribution: %w", err)
	}
	defer nsfwRows.Close()
	for nsfwRows.Next() {
		var (
			category string
			count    int
		)
		if err := nsfwRows.Scan(&category, &count); err != nil {
			return stats, fmt.Errorf("scan nsfw distribution: %w", err)
		}
		if category == "" {
			category = "unknown"
		}
		stats.NSFW[category] += count
	}
	return stats, nsfwRows.Err()
}
