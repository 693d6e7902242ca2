package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"agentbench/internal/common/cache"
	"agentbench/internal/common/db"
	"agentbench/internal/submission/model"
)

const (
	defaultSubmissionCacheTTL      = 10 * time.Minute
	defaultSubmissionCacheEmptyTTL = 1 * time.Minute
	submissionCacheKeyPrefix       = "submission:"

	leaderboardCacheTTL       = 30 * time.Second
	leaderboardCacheKeyPrefix = "leaderboard:"
)

var (
	ErrSubmissionNotFound = errors.New("submission not found")
)

// LeaderboardEntry is one row of the public leaderboard.
type LeaderboardEntry struct {
	SubmissionID int64    `json:"submission_id"`
	AgentName    string   `json:"agent_name"`
	Version      int      `json:"version"`
	UserName     string   `json:"user_name"`
	Benchmark    string   `json:"benchmark"`
	Industry     string   `json:"industry"`
	Subdomain    string   `json:"subdomain"`
	Score        float64  `json:"score"`
	Cost         *float64 `json:"cost"`
}

// JobRow is one recent evaluation job with its user/benchmark context.
type JobRow struct {
	SubmissionID int64        `json:"submission_id"`
	AgentName    string       `json:"agent_name"`
	UserName     string       `json:"user_name"`
	Benchmark    string       `json:"benchmark"`
	Status       model.Status `json:"status"`
	CreatedAt    time.Time    `json:"created_at"`
}

// SubmissionRepository defines submission persistence interfaces.
type SubmissionRepository interface {
	Create(ctx context.Context, tx db.Transaction, submission *model.Submission) error
	GetByID(ctx context.Context, tx db.Transaction, id int64) (*model.Submission, error)
	ListByUser(ctx context.Context, userID int64, limit, offset int) ([]*model.Submission, error)
	CountByUser(ctx context.Context, userID int64) (int, error)
	LatestByAgentName(ctx context.Context, tx db.Transaction, userID int64, agentName string) (*model.Submission, error)
	ListVersions(ctx context.Context, userID int64, agentName string) ([]*model.Submission, error)

	GetStatus(ctx context.Context, id int64) (model.Status, error)
	SetStatus(ctx context.Context, id int64, status model.Status, logs string) error
	SetJudged(ctx context.Context, id int64, status model.Status, score, cost *float64, logs string, feedback *model.Feedback) error

	Leaderboard(ctx context.Context, industry, subdomain string, limit int) ([]LeaderboardEntry, error)
	RecentJobs(ctx context.Context, limit int) ([]JobRow, error)
	CountAll(ctx context.Context) (int64, error)
	CountActive(ctx context.Context) (int64, error)
	SumCost(ctx context.Context) (float64, error)
}

// MySQLSubmissionRepository implements SubmissionRepository with MySQL.
type MySQLSubmissionRepository struct {
	db       db.Database
	cache    cache.Cache
	ttl      time.Duration
	emptyTTL time.Duration
}

// NewSubmissionRepository creates a submission repository with defaults.
func NewSubmissionRepository(database db.Database, cacheClient cache.Cache) SubmissionRepository {
	return &MySQLSubmissionRepository{
		db:       database,
		cache:    cacheClient,
		ttl:      defaultSubmissionCacheTTL,
		emptyTTL: defaultSubmissionCacheEmptyTTL,
	}
}

const submissionColumns = "id, user_id, benchmark_id, parent_id, version, agent_name, submission_type, source_url, status, score, cost, logs, feedback_json, created_at"

// Create inserts a submission record and assigns its id.
func (r *MySQLSubmissionRepository) Create(ctx context.Context, tx db.Transaction, submission *model.Submission) error {
	if submission == nil {
		return errors.New("submission is nil")
	}
	if submission.UserID <= 0 {
		return errors.New("userID is required")
	}
	if submission.BenchmarkID <= 0 {
		return errors.New("benchmarkID is required")
	}
	if submission.AgentName == "" {
		return errors.New("agentName is required")
	}
	if submission.Version <= 0 {
		return errors.New("version must be positive")
	}

	query := `
		INSERT INTO submissions
		(user_id, benchmark_id, parent_id, version, agent_name, submission_type, source_url, status, logs)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	result, err := db.GetQuerier(r.db, tx).Exec(
		ctx,
		query,
		submission.UserID,
		submission.BenchmarkID,
		submission.ParentID,
		submission.Version,
		submission.AgentName,
		submission.SubmissionType,
		submission.SourceURL,
		string(submission.Status),
		submission.Logs,
	)
	if err != nil {
		return err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	submission.ID = id
	return nil
}

// GetByID retrieves a submission by id, through the cache when possible.
func (r *MySQLSubmissionRepository) GetByID(ctx context.Context, tx db.Transaction, id int64) (*model.Submission, error) {
	if id <= 0 {
		return nil, errors.New("id is required")
	}
	if r.cache != nil && tx == nil {
		submission, err := cache.GetWithCached[*model.Submission](
			ctx,
			r.cache,
			submissionCacheKey(id),
			cache.JitterTTL(r.ttl),
			cache.JitterTTL(r.emptyTTL),
			func(submission *model.Submission) bool { return submission == nil },
			marshalSubmission,
			unmarshalSubmission,
			func(ctx context.Context) (*model.Submission, error) {
				submission, err := r.getByIDFromDB(ctx, nil, id)
				if err != nil {
					if errors.Is(err, ErrSubmissionNotFound) {
						return nil, nil
					}
					return nil, err
				}
				return submission, nil
			},
		)
		if err != nil {
			return nil, err
		}
		if submission == nil {
			return nil, ErrSubmissionNotFound
		}
		return submission, nil
	}
	return r.getByIDFromDB(ctx, tx, id)
}

func (r *MySQLSubmissionRepository) getByIDFromDB(ctx context.Context, tx db.Transaction, id int64) (*model.Submission, error) {
	query := "SELECT " + submissionColumns + " FROM submissions WHERE id = ? LIMIT 1"
	row := db.GetQuerier(r.db, tx).QueryRow(ctx, query, id)
	submission, err := scanSubmissionRow(row.Scan)
	if err != nil {
		if db.IsNoRows(err) {
			return nil, ErrSubmissionNotFound
		}
		return nil, err
	}
	return submission, nil
}

// ListByUser returns the user's submissions, newest first.
func (r *MySQLSubmissionRepository) ListByUser(ctx context.Context, userID int64, limit, offset int) ([]*model.Submission, error) {
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	query := "SELECT " + submissionColumns + " FROM submissions WHERE user_id = ? ORDER BY id DESC LIMIT ? OFFSET ?"
	rows, err := r.db.Query(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSubmissions(rows)
}

// CountByUser returns the user's total submission count.
func (r *MySQLSubmissionRepository) CountByUser(ctx context.Context, userID int64) (int, error) {
	var count int
	row := r.db.QueryRow(ctx, "SELECT COUNT(*) FROM submissions WHERE user_id = ?", userID)
	if err := row.Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// LatestByAgentName returns the newest submission for a user/agent pair, used
// to extend the revision chain. Returns ErrSubmissionNotFound for a
// first-time agent name.
func (r *MySQLSubmissionRepository) LatestByAgentName(ctx context.Context, tx db.Transaction, userID int64, agentName string) (*model.Submission, error) {
	query := "SELECT " + submissionColumns + " FROM submissions WHERE user_id = ? AND agent_name = ? ORDER BY version DESC LIMIT 1"
	row := db.GetQuerier(r.db, tx).QueryRow(ctx, query, userID, agentName)
	submission, err := scanSubmissionRow(row.Scan)
	if err != nil {
		if db.IsNoRows(err) {
			return nil, ErrSubmissionNotFound
		}
		return nil, err
	}
	return submission, nil
}

// ListVersions returns the full revision chain for a user/agent pair,
// oldest version first.
func (r *MySQLSubmissionRepository) ListVersions(ctx context.Context, userID int64, agentName string) ([]*model.Submission, error) {
	query := "SELECT " + submissionColumns + " FROM submissions WHERE user_id = ? AND agent_name = ? ORDER BY version ASC"
	rows, err := r.db.Query(ctx, query, userID, agentName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSubmissions(rows)
}

// GetStatus reads the current status only.
func (r *MySQLSubmissionRepository) GetStatus(ctx context.Context, id int64) (model.Status, error) {
	var status string
	row := r.db.QueryRow(ctx, "SELECT status FROM submissions WHERE id = ? LIMIT 1", id)
	if err := row.Scan(&status); err != nil {
		if db.IsNoRows(err) {
			return "", ErrSubmissionNotFound
		}
		return "", err
	}
	return model.Status(status), nil
}

// SetStatus writes a status transition and its log text.
func (r *MySQLSubmissionRepository) SetStatus(ctx context.Context, id int64, status model.Status, logs string) error {
	if !status.Valid() {
		return errors.New("invalid status")
	}
	_, err := r.db.Exec(ctx, "UPDATE submissions SET status = ?, logs = ? WHERE id = ?", string(status), logs, id)
	if err != nil {
		return err
	}
	r.invalidate(ctx, id)
	return nil
}

// SetJudged atomically persists the judged result tuple.
func (r *MySQLSubmissionRepository) SetJudged(ctx context.Context, id int64, status model.Status, score, cost *float64, logs string, feedback *model.Feedback) error {
	if !status.Valid() {
		return errors.New("invalid status")
	}
	var feedbackJSON *string
	if feedback != nil {
		data, err := json.Marshal(feedback)
		if err != nil {
			return err
		}
		s := string(data)
		feedbackJSON = &s
	}
	_, err := r.db.Exec(ctx,
		"UPDATE submissions SET status = ?, score = ?, cost = ?, logs = ?, feedback_json = ? WHERE id = ?",
		string(status), score, cost, logs, feedbackJSON, id,
	)
	if err != nil {
		return err
	}
	r.invalidate(ctx, id)
	return nil
}

// Leaderboard returns the top completed submissions by score, optionally
// filtered by benchmark industry and subdomain. Results are cached briefly;
// rankings tolerate a short staleness window.
func (r *MySQLSubmissionRepository) Leaderboard(ctx context.Context, industry, subdomain string, limit int) ([]LeaderboardEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	if r.cache == nil {
		return r.leaderboardFromDB(ctx, industry, subdomain, limit)
	}

	key := leaderboardCacheKeyPrefix + industry + ":" + subdomain + ":" + strconv.Itoa(limit)
	return cache.GetWithCached[[]LeaderboardEntry](
		ctx,
		r.cache,
		key,
		cache.JitterTTL(leaderboardCacheTTL),
		cache.JitterTTL(leaderboardCacheTTL),
		func(entries []LeaderboardEntry) bool { return len(entries) == 0 },
		marshalLeaderboard,
		unmarshalLeaderboard,
		func(ctx context.Context) ([]LeaderboardEntry, error) {
			return r.leaderboardFromDB(ctx, industry, subdomain, limit)
		},
	)
}

func marshalLeaderboard(entries []LeaderboardEntry) string {
	data, err := json.Marshal(entries)
	if err != nil {
		return ""
	}
	return string(data)
}

func unmarshalLeaderboard(data string) ([]LeaderboardEntry, error) {
	var entries []LeaderboardEntry
	if err := json.Unmarshal([]byte(data), &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *MySQLSubmissionRepository) leaderboardFromDB(ctx context.Context, industry, subdomain string, limit int) ([]LeaderboardEntry, error) {
	var sb strings.Builder
	sb.WriteString(`
		SELECT s.id, s.agent_name, s.version, u.name, b.name, b.industry, b.subdomain, s.score, s.cost
		FROM submissions s
		JOIN users u ON u.id = s.user_id
		JOIN benchmarks b ON b.id = s.benchmark_id
		WHERE s.status = 'Completed' AND s.score IS NOT NULL
	`)
	args := make([]interface{}, 0, 3)
	if industry != "" {
		sb.WriteString(" AND b.industry = ?")
		args = append(args, industry)
	}
	if subdomain != "" {
		sb.WriteString(" AND b.subdomain = ?")
		args = append(args, subdomain)
	}
	sb.WriteString(" ORDER BY s.score DESC LIMIT ?")
	args = append(args, limit)

	rows, err := r.db.Query(ctx, sb.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]LeaderboardEntry, 0, limit)
	for rows.Next() {
		var entry LeaderboardEntry
		if err := rows.Scan(
			&entry.SubmissionID,
			&entry.AgentName,
			&entry.Version,
			&entry.UserName,
			&entry.Benchmark,
			&entry.Industry,
			&entry.Subdomain,
			&entry.Score,
			&entry.Cost,
		); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// RecentJobs returns the newest submissions with user/benchmark context.
func (r *MySQLSubmissionRepository) RecentJobs(ctx context.Context, limit int) ([]JobRow, error) {
	if limit <= 0 {
		limit = 20
	}
	query := `
		SELECT s.id, s.agent_name, u.name, b.name, s.status, s.created_at
		FROM submissions s
		JOIN users u ON u.id = s.user_id
		JOIN benchmarks b ON b.id = s.benchmark_id
		ORDER BY s.id DESC LIMIT ?
	`
	rows, err := r.db.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	jobs := make([]JobRow, 0, limit)
	for rows.Next() {
		var job JobRow
		var status string
		if err := rows.Scan(&job.SubmissionID, &job.AgentName, &job.UserName, &job.Benchmark, &status, &job.CreatedAt); err != nil {
			return nil, err
		}
		job.Status = model.Status(status)
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// CountAll returns the total submission count.
func (r *MySQLSubmissionRepository) CountAll(ctx context.Context) (int64, error) {
	var count int64
	row := r.db.QueryRow(ctx, "SELECT COUNT(*) FROM submissions")
	if err := row.Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// CountActive returns the number of submissions still in the pipeline.
func (r *MySQLSubmissionRepository) CountActive(ctx context.Context) (int64, error) {
	var count int64
	row := r.db.QueryRow(ctx, "SELECT COUNT(*) FROM submissions WHERE status IN ('Pending', 'Running')")
	if err := row.Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// SumCost returns the total evaluated cost across all submissions.
func (r *MySQLSubmissionRepository) SumCost(ctx context.Context) (float64, error) {
	var total float64
	row := r.db.QueryRow(ctx, "SELECT COALESCE(SUM(cost), 0) FROM submissions")
	if err := row.Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

func (r *MySQLSubmissionRepository) invalidate(ctx context.Context, id int64) {
	if r.cache == nil {
		return
	}
	_ = r.cache.Del(ctx, submissionCacheKey(id))
}

func scanSubmissions(rows db.Rows) ([]*model.Submission, error) {
	var submissions []*model.Submission
	for rows.Next() {
		submission, err := scanSubmissionRow(rows.Scan)
		if err != nil {
			return nil, err
		}
		submissions = append(submissions, submission)
	}
	return submissions, rows.Err()
}

func scanSubmissionRow(scan func(dest ...interface{}) error) (*model.Submission, error) {
	submission := &model.Submission{}
	var (
		status       string
		logs         *string
		feedbackJSON *string
	)
	if err := scan(
		&submission.ID,
		&submission.UserID,
		&submission.BenchmarkID,
		&submission.ParentID,
		&submission.Version,
		&submission.AgentName,
		&submission.SubmissionType,
		&submission.SourceURL,
		&status,
		&submission.Score,
		&submission.Cost,
		&logs,
		&feedbackJSON,
		&submission.CreatedAt,
	); err != nil {
		return nil, err
	}
	submission.Status = model.Status(status)
	if logs != nil {
		submission.Logs = *logs
	}
	if feedbackJSON != nil && *feedbackJSON != "" {
		var feedback model.Feedback
		if err := json.Unmarshal([]byte(*feedbackJSON), &feedback); err != nil {
			return nil, fmt.Errorf("decode feedback for submission %d: %w", submission.ID, err)
		}
		submission.Feedback = &feedback
	}
	return submission, nil
}

func submissionCacheKey(id int64) string {
	return submissionCacheKeyPrefix + strconv.FormatInt(id, 10)
}

func marshalSubmission(submission *model.Submission) string {
	if submission == nil {
		return ""
	}
	data, err := json.Marshal(submission)
	if err != nil {
		return ""
	}
	return string(data)
}

func unmarshalSubmission(data string) (*model.Submission, error) {
	if data == "" || data == cache.NullCacheValue {
		return nil, nil
	}
	var submission model.Submission
	if err := json.Unmarshal([]byte(data), &submission); err != nil {
		return nil, err
	}
	return &submission, nil
}
