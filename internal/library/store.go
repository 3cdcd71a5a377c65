package library

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"autotag/internal/tagging"
)

// ErrNotFound is returned when a media row does not exist.
var ErrNotFound = errors.New("media not found")

// Tag is a vocabulary entry.
type Tag struct {
	ID   int64  `db:"id" json:"id"`
	Name string `db:"name" json:"name"`
}

// Media is one library file.
type Media struct {
	ID              int64           `db:"id"`
	Path            string          `db:"path"`
	MediaType       string          `db:"media_type"`
	DurationSeconds sql.NullFloat64 `db:"duration_seconds"`
	Title           sql.NullString  `db:"title"`
	CreatedAt       string          `db:"created_at"`
}

// Type returns the parsed media type.
func (m Media) Type() tagging.MediaType {
	mt, _ := tagging.ParseMediaType(m.MediaType)
	return mt
}

// Duration returns the stored duration in seconds, zero when unknown.
func (m Media) Duration() float64 {
	if !m.DurationSeconds.Valid {
		return 0
	}
	return m.DurationSeconds.Float64
}

// Store reads and writes the library tables.
type Store struct {
	db *sqlx.DB
}

// New wraps an open database handle. The queue store owns the handle and
// its migrations.
func New(db *sql.DB) *Store {
	// modernc registers as "sqlite"; sqlx keys bind style off the driver
	// name, and "sqlite3" selects '?' placeholders.
	return &Store{db: sqlx.NewDb(db, "sqlite3")}
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

// AllTags returns every vocabulary entry ordered by id.
func (s *Store) AllTags(ctx context.Context) ([]Tag, error) {
	var tags []Tag
	if err := s.db.SelectContext(ctx, &tags, `SELECT id, name FROM tags ORDER BY id`); err != nil {
		return nil, fmt.Errorf("all tags: %w", err)
	}
	return tags, nil
}

// FindTagByName looks up a tag case-insensitively. It returns nil when absent.
func (s *Store) FindTagByName(ctx context.Context, name string) (*Tag, error) {
	var tag Tag
	err := s.db.GetContext(ctx, &tag, `SELECT id, name FROM tags WHERE name = ? COLLATE NOCASE`, strings.TrimSpace(name))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find tag %q: %w", name, err)
	}
	return &tag, nil
}

// InsertTag adds a vocabulary entry and returns its id. An entry that
// already exists under any casing is returned instead of duplicated.
func (s *Store) InsertTag(ctx context.Context, name string) (int64, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return 0, errors.New("tag name cannot be empty")
	}
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO tags (name, created_at) VALUES (?, ?) ON CONFLICT(name) DO NOTHING`, name, now()); err != nil {
		return 0, fmt.Errorf("insert tag %q: %w", name, err)
	}
	tag, err := s.FindTagByName(ctx, name)
	if err != nil {
		return 0, err
	}
	if tag == nil {
		return 0, fmt.Errorf("insert tag %q: row missing after insert", name)
	}
	return tag.ID, nil
}

// TagsForMedia returns the tags linked to a media item.
func (s *Store) TagsForMedia(ctx context.Context, mediaID int64) ([]Tag, error) {
	var tags []Tag
	err := s.db.SelectContext(ctx, &tags, `SELECT t.id, t.name FROM tags t
        JOIN media_tags mt ON mt.tag_id = t.id
        WHERE mt.media_id = ?
        ORDER BY t.name`, mediaID)
	if err != nil {
		return nil, fmt.Errorf("tags for media %d: %w", mediaID, err)
	}
	return tags, nil
}

// AddMedia registers a library file and returns its id.
func (s *Store) AddMedia(ctx context.Context, path string, mediaType tagging.MediaType, durationSeconds float64) (int64, error) {
	var duration any
	if durationSeconds > 0 {
		duration = durationSeconds
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO media (path, media_type, duration_seconds, created_at) VALUES (?, ?, ?, ?)`,
		path, string(mediaType), duration, now())
	if err != nil {
		return 0, fmt.Errorf("add media %q: %w", path, err)
	}
	return res.LastInsertId()
}

// MediaByID returns a media row or ErrNotFound.
func (s *Store) MediaByID(ctx context.Context, id int64) (*Media, error) {
	var m Media
	err := s.db.GetContext(ctx, &m,
		`SELECT id, path, media_type, duration_seconds, title, created_at FROM media WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("media %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("media get by id: %w", err)
	}
	return &m, nil
}

// UpdateDuration stores a probed duration for a media item.
func (s *Store) UpdateDuration(ctx context.Context, id int64, seconds float64) error {
	if _, err := s.db.ExecContext(ctx, `UPDATE media SET duration_seconds = ? WHERE id = ?`, seconds, id); err != nil {
		return fmt.Errorf("update duration for media %d: %w", id, err)
	}
	return nil
}

// SetTitle overwrites the title of a media item.
func (s *Store) SetTitle(ctx context.Context, id int64, title string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE media SET title = ? WHERE id = ?`, strings.TrimSpace(title), id)
	if err != nil {
		return fmt.Errorf("set title for media %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("media %d: %w", id, ErrNotFound)
	}
	return nil
}

// DeleteMedia removes a media item and, through cascades, its tag links.
func (s *Store) DeleteMedia(ctx context.Context, id int64) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM media WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete media %d: %w", id, err)
	}
	return nil
}

// AllMediaIDs returns every media id in insertion order.
func (s *Store) AllMediaIDs(ctx context.Context) ([]int64, error) {
	var ids []int64
	if err := s.db.SelectContext(ctx, &ids, `SELECT id FROM media ORDER BY id`); err != nil {
		return nil, fmt.Errorf("all media ids: %w", err)
	}
	return ids, nil
}

// UntaggedMediaIDs returns media with no tag links.
func (s *Store) UntaggedMediaIDs(ctx context.Context) ([]int64, error) {
	var ids []int64
	err := s.db.SelectContext(ctx, &ids, `SELECT m.id FROM media m
        WHERE NOT EXISTS (SELECT 1 FROM media_tags mt WHERE mt.media_id = m.id)
        ORDER BY m.id`)
	if err != nil {
		return nil, fmt.Errorf("untagged media ids: %w", err)
	}
	return ids, nil
}

// ExistingMediaIDs filters ids down to those present in the library,
// preserving the caller's order.
func (s *Store) ExistingMediaIDs(ctx context.Context, ids []int64) ([]int64, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query, args, err := sqlx.In(`SELECT id FROM media WHERE id IN (?)`, ids)
	if err != nil {
		return nil, fmt.Errorf("build media id filter: %w", err)
	}
	var found []int64
	if err := s.db.SelectContext(ctx, &found, s.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("existing media ids: %w", err)
	}
	present := make(map[int64]struct{}, len(found))
	for _, id := range found {
		present[id] = struct{}{}
	}
	out := make([]int64, 0, len(found))
	for _, id := range ids {
		if _, ok := present[id]; ok {
			out = append(out, id)
			delete(present, id)
		}
	}
	return out, nil
}

// LinkTags attaches tags to a media item, ignoring links that already
// exist. It returns how many new links were created.
func (s *Store) LinkTags(ctx context.Context, mediaID int64, tagIDs []int64, source string) (int, error) {
	if len(tagIDs) == 0 {
		return 0, nil
	}
	if strings.TrimSpace(source) == "" {
		source = "manual"
	}
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin link tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	created := 0
	stamp := now()
	for _, tagID := range tagIDs {
		res, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO media_tags (media_id, tag_id, source, created_at) VALUES (?, ?, ?, ?)`,
			mediaID, tagID, source, stamp)
		if err != nil {
			return 0, fmt.Errorf("link tag %d to media %d: %w", tagID, mediaID, err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			created++
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit tag links: %w", err)
	}
	return created, nil
}

// CountLinks returns the number of tag links created by the given source.
func (s *Store) CountLinks(ctx context.Context, source string) (int, error) {
	var count int
	if err := s.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM media_tags WHERE source = ?`, source); err != nil {
		return 0, fmt.Errorf("count links: %w", err)
	}
	return count, nil
}
