package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "modernc.org/sqlite" // SQLite driver

	"ReviewScanner/internal/domain"
	"ReviewScanner/internal/ports"
)

const (
	settingsKey = "userSettings"
	profileKey  = "userProfile"
	sessionKey  = "sessionToken"

	historyTable = "review_history"
)

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

// Store persists settings, profile, session token and review history in SQLite.
type Store struct {
	db      *sql.DB
	builder sq.StatementBuilderType
	now     func() time.Time
}

var _ ports.HistoryRepository = (*Store)(nil)
var _ ports.SettingsStore = (*Store)(nil)
var _ ports.SessionStore = (*Store)(nil)

// Open opens or creates the database at path and migrates it.
func Open(path string) (*Store, error) {
	dsn := path
	if path != MemoryPath {
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
		dsn = path + "?mode=rwc"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// SQLite has one writer; a single connection also keeps :memory: shared.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if path != MemoryPath {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("enable WAL mode: %w", err)
		}
	}

	if _, err := runMigrations(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{
		db:      db,
		builder: sq.StatementBuilder.PlaceholderFormat(sq.Question),
		now:     time.Now,
	}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// AlreadyProcessed returns a map with review ids that already exist in history.
func (s *Store) AlreadyProcessed(ctx context.Context, ids []string) (map[string]bool, error) {
	result := make(map[string]bool)
	if len(ids) == 0 {
		return result, nil
	}

	query, args, err := s.builder.
		Select("review_id").
		From(historyTable).
		Where(sq.Eq{"review_id": ids}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build processed query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query processed: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan id: %w", err)
		}
		result[id] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return result, nil
}

// SaveEntry upserts a verdict snapshot; the original created_at is kept.
func (s *Store) SaveEntry(ctx context.Context, entry domain.HistoryEntry) error {
	if entry.ReviewID == "" {
		return errors.New("history entry has no review id")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = s.now()
	}

	reasons := entry.Verdict.Reasons
	if reasons == nil {
		reasons = []string{}
	}
	rawReasons, err := json.Marshal(reasons)
	if err != nil {
		return fmt.Errorf("marshal reasons: %w", err)
	}

	var sentiment any
	if entry.Verdict.SentimentScore != nil {
		sentiment = *entry.Verdict.SentimentScore
	}

	query, args, err := s.builder.
		Insert(historyTable).
		Columns("review_id", "site", "page_url", "text", "label", "message", "reasons", "sentiment", "created_at").
		Values(
			entry.ReviewID,
			string(entry.Site),
			entry.PageURL,
			entry.Text,
			string(entry.Verdict.Label),
			entry.Verdict.Message,
			string(rawReasons),
			sentiment,
			entry.CreatedAt.UnixMilli(),
		).
		Suffix(`ON CONFLICT (review_id) DO UPDATE SET
			page_url = excluded.page_url,
			label = excluded.label,
			message = excluded.message,
			reasons = excluded.reasons,
			sentiment = excluded.sentiment`).
		ToSql()
	if err != nil {
		return fmt.Errorf("build upsert: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert history: %w", err)
	}
	return nil
}

// likeEscaper makes LIKE wildcards in a keyword match literally.
var likeEscaper = strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`)

// ListHistory returns past verdicts filtered by q, newest first unless q.Oldest.
func (s *Store) ListHistory(ctx context.Context, q domain.HistoryQuery) ([]domain.HistoryEntry, error) {
	sel := s.builder.
		Select("review_id", "site", "page_url", "text", "label", "message", "reasons", "sentiment", "created_at").
		From(historyTable)

	if q.Site != "" {
		sel = sel.Where(sq.Eq{"site": string(q.Site)})
	}
	if q.Label != "" {
		sel = sel.Where(sq.Eq{"label": string(q.Label)})
	}
	if q.Keyword != "" {
		sel = sel.Where(`text LIKE ? ESCAPE '\'`, "%"+likeEscaper.Replace(q.Keyword)+"%")
	}
	if !q.Since.IsZero() {
		sel = sel.Where(sq.GtOrEq{"created_at": q.Since.UnixMilli()})
	}
	if q.Oldest {
		sel = sel.OrderBy("created_at ASC", "review_id ASC")
	} else {
		sel = sel.OrderBy("created_at DESC", "review_id ASC")
	}
	if q.Limit > 0 {
		sel = sel.Limit(uint64(q.Limit))
	}

	query, args, err := sel.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build history query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var entries []domain.HistoryEntry
	for rows.Next() {
		var (
			e          domain.HistoryEntry
			site       string
			label      string
			rawReasons string
			sentiment  sql.NullFloat64
			createdAt  int64
		)
		if err := rows.Scan(&e.ReviewID, &site, &e.PageURL, &e.Text, &label, &e.Verdict.Message, &rawReasons, &sentiment, &createdAt); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		e.Site = domain.SiteID(site)
		e.Verdict.Label = domain.Label(label)
		if err := json.Unmarshal([]byte(rawReasons), &e.Verdict.Reasons); err != nil {
			return nil, fmt.Errorf("decode reasons for %s: %w", e.ReviewID, err)
		}
		if sentiment.Valid {
			score := sentiment.Float64
			e.Verdict.SentimentScore = &score
		}
		e.CreatedAt = time.UnixMilli(createdAt).UTC()
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return entries, nil
}

// LoadSettings returns the saved settings or the defaults.
func (s *Store) LoadSettings(ctx context.Context) (domain.Settings, error) {
	settings := domain.DefaultSettings()
	if _, err := s.getJSON(ctx, settingsKey, &settings); err != nil {
		return domain.DefaultSettings(), err
	}
	return settings, nil
}

// SaveSettings validates and stores settings.
func (s *Store) SaveSettings(ctx context.Context, settings domain.Settings) error {
	normalized, err := settings.Normalize()
	if err != nil {
		return err
	}
	return s.putJSON(ctx, settingsKey, normalized)
}

// LoadProfile returns the saved profile or an empty one.
func (s *Store) LoadProfile(ctx context.Context) (domain.Profile, error) {
	var profile domain.Profile
	if _, err := s.getJSON(ctx, profileKey, &profile); err != nil {
		return domain.Profile{}, err
	}
	return profile, nil
}

// SaveProfile stores the profile.
func (s *Store) SaveProfile(ctx context.Context, profile domain.Profile) error {
	return s.putJSON(ctx, profileKey, profile)
}

// LoadSessionToken returns the stored access token or "".
func (s *Store) LoadSessionToken(ctx context.Context) (string, error) {
	var token string
	if _, err := s.getJSON(ctx, sessionKey, &token); err != nil {
		return "", err
	}
	return token, nil
}

// SaveSessionToken stores the access token.
func (s *Store) SaveSessionToken(ctx context.Context, token string) error {
	return s.putJSON(ctx, sessionKey, token)
}

// ClearSessionToken forgets the access token.
func (s *Store) ClearSessionToken(ctx context.Context) error {
	query, args, err := s.builder.Delete("kv").Where(sq.Eq{"key": sessionKey}).ToSql()
	if err != nil {
		return fmt.Errorf("build delete: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}

func (s *Store) getJSON(ctx context.Context, key string, v any) (bool, error) {
	query, args, err := s.builder.Select("value").From("kv").Where(sq.Eq{"key": key}).ToSql()
	if err != nil {
		return false, fmt.Errorf("build kv query: %w", err)
	}

	var raw string
	err = s.db.QueryRowContext(ctx, query, args...).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("load %s: %w", key, err)
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

func (s *Store) putJSON(ctx context.Context, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}

	query, args, err := s.builder.
		Insert("kv").
		Columns("key", "value", "updated_at").
		Values(key, string(raw), s.now().UnixMilli()).
		Suffix("ON CONFLICT (key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("build kv upsert: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	return nil
}
