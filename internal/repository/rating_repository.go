package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ticketflow/ticketflow/internal/domain"
)

// RatingRepository persists ticket ratings. The ticket_id unique
// constraint backs the at-most-one-rating invariant under races.
type RatingRepository interface {
	Create(ctx context.Context, rating *domain.Rating) error
	GetByTicket(ctx context.Context, ticketID string) (*domain.Rating, error)
}

type ratingRepository struct {
	pool *pgxpool.Pool
}

// NewRatingRepository constructs repository.
func NewRatingRepository(pool *pgxpool.Pool) RatingRepository {
	return &ratingRepository{pool: pool}
}

func (r *ratingRepository) Create(ctx context.Context, rating *domain.Rating) error {
	const query = `
        INSERT INTO ratings (ticket_id, rater_id, stars, feedback)
        VALUES ($1,$2,$3,$4)
        RETURNING id, created_at`
	return r.pool.QueryRow(ctx, query,
		rating.TicketID,
		rating.RaterID,
		rating.Stars,
		rating.Feedback,
	).Scan(&rating.ID, &rating.CreatedAt)
}

func (r *ratingRepository) GetByTicket(ctx context.Context, ticketID string) (*domain.Rating, error) {
	const query = `
        SELECT id, ticket_id, rater_id, stars, feedback, created_at
        FROM ratings WHERE ticket_id=$1`
	var rating domain.Rating
	if err := r.pool.QueryRow(ctx, query, ticketID).Scan(
		&rating.ID,
		&rating.TicketID,
		&rating.RaterID,
		&rating.Stars,
		&rating.Feedback,
		&rating.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &rating, nil
}
