package core

import (
	"context"
	"fmt"

	"github.com/edvin/marketbill/internal/model"
	"github.com/edvin/marketbill/internal/platform"
)

type PlanService struct {
	db DB
}

func NewPlanService(db DB) *PlanService {
	return &PlanService{db: db}
}

func (s *PlanService) Create(ctx context.Context, plan *model.Plan) error {
	if plan.ID == "" {
		plan.ID = platform.NewID()
	}
	_, err := s.db.Exec(ctx,
		`INSERT INTO subscription_plans (id, name, price, currency, trial_days, active, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, now(), now())`,
		plan.ID, plan.Name, plan.Price, plan.Currency, plan.TrialDays, plan.Active,
	)
	if err != nil {
		return fmt.Errorf("insert plan: %w", err)
	}
	return nil
}

func (s *PlanService) GetByID(ctx context.Context, id string) (*model.Plan, error) {
	var p model.Plan
	err := s.db.QueryRow(ctx,
		`SELECT id, name, price, currency, trial_days, active, created_at, updated_at
		 FROM subscription_plans WHERE id = $1`, id,
	).Scan(&p.ID, &p.Name, &p.Price, &p.Currency, &p.TrialDays, &p.Active, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("get plan %s: %w", id, mapNotFound(err))
	}
	return &p, nil
}

func (s *PlanService) List(ctx context.Context, limit int, cursor string) ([]model.Plan, bool, error) {
	query := `SELECT id, name, price, currency, trial_days, active, created_at, updated_at FROM subscription_plans WHERE active = true`
	args := []any{}
	argIdx := 1

	if cursor != "" {
		query += fmt.Sprintf(` AND id > $%d`, argIdx)
		args = append(args, cursor)
		argIdx++
	}

	query += ` ORDER BY id`
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit+1)

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, false, fmt.Errorf("list plans: %w", err)
	}
	defer rows.Close()

	var plans []model.Plan
	for rows.Next() {
		var p model.Plan
		if err := rows.Scan(&p.ID, &p.Name, &p.Price, &p.Currency, &p.TrialDays, &p.Active, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, false, fmt.Errorf("scan plan: %w", err)
		}
		plans = append(plans, p)
	}
	if err := rows.Err(); err != nil {
		return nil, false, fmt.Errorf("iterate plans: %w", err)
	}

	hasMore := len(plans) > limit
	if hasMore {
		plans = plans[:limit]
	}
	return plans, hasMore, nil
}
