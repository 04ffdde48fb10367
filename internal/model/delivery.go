// internal/model/delivery.go
package model

import "time"

const (
	DeliverySent   = "sent"
	DeliveryFailed = "failed"
)

// DeliveryEvent records the outcome of one send attempt.
type DeliveryEvent struct {
	ID                int64     `db:"id" json:"id,omitempty"`
	CampaignID        string    `db:"campaign_id" json:"campaign_id"`
	Channel           Channel   `db:"channel" json:"channel"`
	Recipient         string    `db:"recipient" json:"recipient"`
	ContactName       string    `db:"contact_name" json:"contact_name"`
	Status            string    `db:"status" json:"status"`
	ProviderMessageID string    `db:"provider_message_id" json:"provider_message_id,omitempty"`
	LastError         string    `db:"last_error" json:"last_error,omitempty"`
	CreatedAt         time.Time `db:"created_at" json:"created_at"`
}

// Receipt is what a delivery channel returns for an accepted message.
type Receipt struct {
	MessageID string `json:"messageId"`
	Status    string `json:"status"`
	To        string `json:"to"`
	From      string `json:"from,omitempty"`
}
