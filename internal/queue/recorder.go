package queue

import (
	"context"
	"encoding/json"
	"time"

	"github.com/unclebandit/bulk-messenger/internal/logger"
	"github.com/unclebandit/bulk-messenger/internal/model"
	"github.com/unclebandit/bulk-messenger/internal/repository"
)

// StartDeliveryRecorder persists every delivery event published on DeliveryTopic.
func StartDeliveryRecorder(q Queue, repo repository.DeliveryRepositoryInterface, log *logger.Logger) error {
	if log == nil {
		log = logger.Nop()
	}
	log = log.WithComponent("delivery_recorder")

	return q.Subscribe(DeliveryTopic, func(payload []byte) error {
		var event model.DeliveryEvent
		if err := json.Unmarshal(payload, &event); err != nil {
			log.Warn().Err(err).Msg("invalid delivery event, dropping")
			return nil // no retry
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := repo.Create(ctx, &event); err != nil {
			log.Error().Err(err).Str("campaign_id", event.CampaignID).Msg("failed to record delivery")
			return err // retry
		}

		log.Debug().
			Str("campaign_id", event.CampaignID).
			Str("recipient", event.Recipient).
			Str("status", event.Status).
			Msg("recorded delivery")
		return nil
	})
}
