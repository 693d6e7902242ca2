package repository

import (
	"context"
	"database/sql"
	"errors"

	"agentbench/internal/benchmark/model"
	"agentbench/internal/common/db"
)

var ErrBenchmarkNotFound = errors.New("benchmark not found")

// BenchmarkRepository defines benchmark persistence interfaces.
type BenchmarkRepository interface {
	Create(ctx context.Context, benchmark *model.Benchmark) error
	GetByID(ctx context.Context, id int64) (*model.Benchmark, error)

	// ListApproved returns approved benchmarks, optionally filtered by
	// industry and subdomain.
	ListApproved(ctx context.Context, industry, subdomain string) ([]*model.Benchmark, error)
	ListPending(ctx context.Context) ([]*model.Benchmark, error)

	// SetStatus moves a benchmark through its review lifecycle, failing
	// with ErrBenchmarkNotFound when no row matches.
	SetStatus(ctx context.Context, id int64, status string) error
}

// MySQLBenchmarkRepository implements BenchmarkRepository with MySQL.
type MySQLBenchmarkRepository struct {
	db db.Database
}

// NewBenchmarkRepository creates a benchmark repository.
func NewBenchmarkRepository(database db.Database) BenchmarkRepository {
	return &MySQLBenchmarkRepository{db: database}
}

const benchmarkColumns = "id, industry, subdomain, name, description, status, author_id, created_at"

// Create inserts a benchmark record and assigns its id.
func (r *MySQLBenchmarkRepository) Create(ctx context.Context, benchmark *model.Benchmark) error {
	if benchmark == nil {
		return errors.New("benchmark is nil")
	}
	if benchmark.Name == "" {
		return errors.New("name is required")
	}
	if benchmark.Status == "" {
		benchmark.Status = model.StatusPending
	}

	result, err := r.db.Exec(ctx,
		"INSERT INTO benchmarks (industry, subdomain, name, description, status, author_id) VALUES (?, ?, ?, ?, ?, ?)",
		benchmark.Industry, benchmark.Subdomain, benchmark.Name,
		benchmark.Description, benchmark.Status, benchmark.AuthorID,
	)
	if err != nil {
		return err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	benchmark.ID = id
	return nil
}

// GetByID retrieves a benchmark by id.
func (r *MySQLBenchmarkRepository) GetByID(ctx context.Context, id int64) (*model.Benchmark, error) {
	row := r.db.QueryRow(ctx, "SELECT "+benchmarkColumns+" FROM benchmarks WHERE id = ? LIMIT 1", id)
	return scanBenchmark(row.Scan)
}

// ListApproved returns approved benchmarks with optional industry and
// subdomain filters.
func (r *MySQLBenchmarkRepository) ListApproved(ctx context.Context, industry, subdomain string) ([]*model.Benchmark, error) {
	query := "SELECT " + benchmarkColumns + " FROM benchmarks WHERE status = ?"
	args := []interface{}{model.StatusApproved}
	if industry != "" {
		query += " AND industry = ?"
		args = append(args, industry)
	}
	if subdomain != "" {
		query += " AND subdomain = ?"
		args = append(args, subdomain)
	}
	query += " ORDER BY industry, subdomain, name"

	return r.list(ctx, query, args...)
}

// ListPending returns benchmarks awaiting review, oldest first.
func (r *MySQLBenchmarkRepository) ListPending(ctx context.Context) ([]*model.Benchmark, error) {
	return r.list(ctx,
		"SELECT "+benchmarkColumns+" FROM benchmarks WHERE status = ? ORDER BY id",
		model.StatusPending,
	)
}

// SetStatus updates the benchmark's review status.
func (r *MySQLBenchmarkRepository) SetStatus(ctx context.Context, id int64, status string) error {
	result, err := r.db.Exec(ctx, "UPDATE benchmarks SET status = ? WHERE id = ?", status, id)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrBenchmarkNotFound
	}
	return nil
}

func (r *MySQLBenchmarkRepository) list(ctx context.Context, query string, args ...interface{}) ([]*model.Benchmark, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var benchmarks []*model.Benchmark
	for rows.Next() {
		b, err := scanBenchmark(rows.Scan)
		if err != nil {
			return nil, err
		}
		benchmarks = append(benchmarks, b)
	}
	return benchmarks, rows.Err()
}

func scanBenchmark(scan func(dest ...interface{}) error) (*model.Benchmark, error) {
	b := &model.Benchmark{}
	var authorID sql.NullInt64
	if err := scan(
		&b.ID,
		&b.Industry,
		&b.Subdomain,
		&b.Name,
		&b.Description,
		&b.Status,
		&authorID,
		&b.CreatedAt,
	); err != nil {
		if db.IsNoRows(err) {
			return nil, ErrBenchmarkNotFound
		}
		return nil, err
	}
	if authorID.Valid {
		b.AuthorID = &authorID.Int64
	}
	return b, nil
}
