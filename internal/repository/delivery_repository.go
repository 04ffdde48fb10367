package repository

import (
	"context"
	"database/sql"
	"time"

	appErrors "github.com/unclebandit/bulk-messenger/internal/errors"
	"github.com/unclebandit/bulk-messenger/internal/model"
)

type DeliveryRepositoryInterface interface {
	Create(ctx context.Context, e *model.DeliveryEvent) error
	ListByCampaign(ctx context.Context, campaignID string, limit int) ([]*model.DeliveryEvent, error)
	GetCampaignStats(ctx context.Context, campaignID string) (map[string]int, error)
}

// DeliveryRepository persists per-recipient send outcomes to the delivery_log table.
type DeliveryRepository struct {
	DB *sql.DB
}

// Create inserts a delivery event and sets its generated ID
func (r *DeliveryRepository) Create(ctx context.Context, e *model.DeliveryEvent) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}

	query := `
        INSERT INTO delivery_log
        (campaign_id, channel, recipient, contact_name, status, provider_message_id, last_error, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
        RETURNING id
    `
	err := r.DB.QueryRowContext(ctx, query,
		e.CampaignID,
		e.Channel,
		e.Recipient,
		e.ContactName,
		e.Status,
		e.ProviderMessageID,
		e.LastError,
		e.CreatedAt,
	).Scan(&e.ID)
	if err != nil {
		return appErrors.NewPersistence("insert delivery", err)
	}
	return nil
}

// ListByCampaign returns the most recent events of one campaign run
func (r *DeliveryRepository) ListByCampaign(ctx context.Context, campaignID string, limit int) ([]*model.DeliveryEvent, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `
        SELECT id, campaign_id, channel, recipient, contact_name, status, provider_message_id, last_error, created_at
        FROM delivery_log
        WHERE campaign_id = $1
        ORDER BY id DESC
        LIMIT $2
    `
	rows, err := r.DB.QueryContext(ctx, query, campaignID, limit)
	if err != nil {
		return nil, appErrors.NewPersistence("list deliveries", err)
	}
	defer rows.Close()

	events := []*model.DeliveryEvent{}
	for rows.Next() {
		var e model.DeliveryEvent
		if err := rows.Scan(
			&e.ID,
			&e.CampaignID,
			&e.Channel,
			&e.Recipient,
			&e.ContactName,
			&e.Status,
			&e.ProviderMessageID,
			&e.LastError,
			&e.CreatedAt,
		); err != nil {
			return nil, appErrors.NewPersistence("scan delivery", err)
		}
		events = append(events, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, appErrors.NewPersistence("list deliveries", err)
	}
	return events, nil
}

// GetCampaignStats counts events per status for one campaign run
func (r *DeliveryRepository) GetCampaignStats(ctx context.Context, campaignID string) (map[string]int, error) {
	query := `SELECT status, COUNT(*) FROM delivery_log WHERE campaign_id=$1 GROUP BY status`
	rows, err := r.DB.QueryContext(ctx, query, campaignID)
	if err != nil {
		return nil, appErrors.NewPersistence("campaign stats", err)
	}
	defer rows.Close()

	stats := map[string]int{model.DeliverySent: 0, model.DeliveryFailed: 0}
	total := 0
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, appErrors.NewPersistence("campaign stats", err)
		}
		stats[status] = count
		total += count
	}
	if err := rows.Err(); err != nil {
		return nil, appErrors.NewPersistence("campaign stats", err)
	}
	if total == 0 {
		return nil, appErrors.NewNotFound("campaign", campaignID)
	}
	stats["total"] = total
	return stats, nil
}
