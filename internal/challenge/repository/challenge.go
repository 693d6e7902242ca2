package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"agentbench/internal/challenge/model"
	"agentbench/internal/common/cache"
	"agentbench/internal/common/db"
)

var ErrChallengeNotFound = errors.New("challenge not found")

const (
	activeChallengeKey = "challenge:active"
	activeChallengeTTL = 30 * time.Second
)

// ChallengeRepository defines seasonal challenge persistence interfaces.
type ChallengeRepository interface {
	// GetActive returns the currently active challenge, or
	// ErrChallengeNotFound when none is active.
	GetActive(ctx context.Context) (*model.Challenge, error)
	GetByID(ctx context.Context, id int64) (*model.Challenge, error)
	List(ctx context.Context) ([]*model.Challenge, error)

	// Reset deactivates every challenge and inserts the given one as the
	// new active season, in a single transaction.
	Reset(ctx context.Context, challenge *model.Challenge) error
}

// MySQLChallengeRepository implements ChallengeRepository with MySQL and a
// short-TTL cache on the active challenge, which is read on every completed
// evaluation.
type MySQLChallengeRepository struct {
	db    db.Database
	cache cache.Cache
}

// NewChallengeRepository creates a challenge repository.
func NewChallengeRepository(database db.Database, cacheClient cache.Cache) ChallengeRepository {
	return &MySQLChallengeRepository{db: database, cache: cacheClient}
}

const challengeColumns = "id, season_name, description, badge_name, target_score, target_cost, is_active, created_at"

// GetActive returns the active challenge, caching it briefly.
func (r *MySQLChallengeRepository) GetActive(ctx context.Context) (*model.Challenge, error) {
	if r.cache == nil {
		return r.getActiveFromDB(ctx)
	}
	challenge, err := cache.GetWithCached[*model.Challenge](
		ctx,
		r.cache,
		activeChallengeKey,
		cache.JitterTTL(activeChallengeTTL),
		cache.JitterTTL(activeChallengeTTL),
		func(c *model.Challenge) bool { return c == nil },
		marshalChallenge,
		unmarshalChallenge,
		func(ctx context.Context) (*model.Challenge, error) {
			c, err := r.getActiveFromDB(ctx)
			if err != nil {
				if errors.Is(err, ErrChallengeNotFound) {
					return nil, nil
				}
				return nil, err
			}
			return c, nil
		},
	)
	if err != nil {
		return nil, err
	}
	if challenge == nil {
		return nil, ErrChallengeNotFound
	}
	return challenge, nil
}

func (r *MySQLChallengeRepository) getActiveFromDB(ctx context.Context) (*model.Challenge, error) {
	row := r.db.QueryRow(ctx,
		"SELECT "+challengeColumns+" FROM challenges WHERE is_active = 1 ORDER BY id DESC LIMIT 1")
	return scanChallenge(row.Scan)
}

// GetByID retrieves a challenge by id.
func (r *MySQLChallengeRepository) GetByID(ctx context.Context, id int64) (*model.Challenge, error) {
	row := r.db.QueryRow(ctx, "SELECT "+challengeColumns+" FROM challenges WHERE id = ? LIMIT 1", id)
	return scanChallenge(row.Scan)
}

// List returns all challenges, newest first.
func (r *MySQLChallengeRepository) List(ctx context.Context) ([]*model.Challenge, error) {
	rows, err := r.db.Query(ctx, "SELECT "+challengeColumns+" FROM challenges ORDER BY id DESC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var challenges []*model.Challenge
	for rows.Next() {
		c, err := scanChallenge(rows.Scan)
		if err != nil {
			return nil, err
		}
		challenges = append(challenges, c)
	}
	return challenges, rows.Err()
}

// Reset swaps in a new active season.
func (r *MySQLChallengeRepository) Reset(ctx context.Context, challenge *model.Challenge) error {
	if challenge == nil {
		return errors.New("challenge is nil")
	}
	if challenge.SeasonName == "" {
		return errors.New("seasonName is required")
	}
	if challenge.BadgeName == "" {
		return errors.New("badgeName is required")
	}

	err := r.db.Transaction(ctx, func(tx db.Transaction) error {
		if _, err := tx.Exec(ctx, "UPDATE challenges SET is_active = 0 WHERE is_active = 1"); err != nil {
			return fmt.Errorf("deactivate challenges: %w", err)
		}
		result, err := tx.Exec(ctx,
			"INSERT INTO challenges (season_name, description, badge_name, target_score, target_cost, is_active) VALUES (?, ?, ?, ?, ?, 1)",
			challenge.SeasonName, challenge.Description, challenge.BadgeName,
			challenge.TargetScore, challenge.TargetCost,
		)
		if err != nil {
			return fmt.Errorf("insert challenge: %w", err)
		}
		id, err := result.LastInsertId()
		if err != nil {
			return err
		}
		challenge.ID = id
		challenge.IsActive = true
		return nil
	})
	if err != nil {
		return err
	}

	if r.cache != nil {
		_ = r.cache.Del(ctx, activeChallengeKey)
	}
	return nil
}

func marshalChallenge(c *model.Challenge) string {
	data, err := json.Marshal(c)
	if err != nil {
		return ""
	}
	return string(data)
}

func unmarshalChallenge(raw string) (*model.Challenge, error) {
	c := &model.Challenge{}
	if err := json.Unmarshal([]byte(raw), c); err != nil {
		return nil, err
	}
	return c, nil
}

func scanChallenge(scan func(dest ...interface{}) error) (*model.Challenge, error) {
	c := &model.Challenge{}
	if err := scan(
		&c.ID,
		&c.SeasonName,
		&c.Description,
		&c.BadgeName,
		&c.TargetScore,
		&c.TargetCost,
		&c.IsActive,
		&c.CreatedAt,
	); err != nil {
		if db.IsNoRows(err) {
			return nil, ErrChallengeNotFound
		}
		return nil, err
	}
	return c, nil
}
