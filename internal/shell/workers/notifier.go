// Package workers contains the background loops: the notification outbox
// drainer and session cleanup.
package workers

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/lamdp/shiptrack/internal/core/domain"
	"github.com/lamdp/shiptrack/internal/shell/store"
	"github.com/lamdp/shiptrack/internal/shell/telegram"
)

// =============================================================================
// Background Notifier
// =============================================================================

// Notifier drains the notification outbox and delivers messages to Telegram
// in the background. A Telegram outage never fails the request that queued
// the message; the row stays pending and is retried on the next tick.
type Notifier struct {
	store     store.Store
	client    telegram.Client
	interval  time.Duration
	batchSize int
	logger    *slog.Logger
	stopCh    chan struct{}
	doneCh    chan struct{}
}

// NotifierConfig holds configuration for the background notifier.
type NotifierConfig struct {
	Store     store.Store
	Client    telegram.Client
	Interval  time.Duration
	BatchSize int
	Logger    *slog.Logger
}

// NewNotifier creates a new background notifier.
func NewNotifier(cfg NotifierConfig) *Notifier {
	if cfg.Interval == 0 {
		cfg.Interval = 15 * time.Second
	}
	if cfg.BatchSize == 0 {
		cfg.BatchSize = 50
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Notifier{
		store:     cfg.Store,
		client:    cfg.Client,
		interval:  cfg.Interval,
		batchSize: cfg.BatchSize,
		logger:    cfg.Logger,
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
	}
}

// Start begins the delivery loop. It runs until Stop() is called or the
// context is cancelled.
func (n *Notifier) Start(ctx context.Context) {
	n.logger.Info("starting telegram notifier",
		"interval", n.interval,
		"batch_size", n.batchSize,
	)

	ticker := time.NewTicker(n.interval)
	defer ticker.Stop()
	defer close(n.doneCh)

	// Deliver anything left over from a previous run
	n.deliverBatch(ctx)

	for {
		select {
		case <-ctx.Done():
			n.logger.Info("telegram notifier stopped due to context cancellation")
			return
		case <-n.stopCh:
			n.logger.Info("telegram notifier stopped")
			return
		case <-ticker.C:
			n.deliverBatch(ctx)
		}
	}
}

// Stop signals the notifier to stop and waits for it to finish.
func (n *Notifier) Stop() {
	close(n.stopCh)
	<-n.doneCh
}

// DeliverNow triggers an immediate delivery cycle (useful for testing).
func (n *Notifier) DeliverNow(ctx context.Context) {
	n.deliverBatch(ctx)
}

// deliverBatch sends pending notifications oldest-first.
func (n *Notifier) deliverBatch(ctx context.Context) {
	pending, err := n.store.ListPendingNotifications(ctx, n.batchSize)
	if err != nil {
		n.logger.Error("failed to list pending notifications", "error", err)
		return
	}

	if len(pending) == 0 {
		return
	}

	delivered := 0
	for _, notification := range pending {
		if err := n.deliver(ctx, &notification); err != nil {
			n.logger.Error("failed to deliver notification",
				"id", notification.ID,
				"kind", notification.Kind,
				"error", err,
			)
			if markErr := n.store.MarkNotificationFailed(ctx, notification.ID, err.Error()); markErr != nil {
				n.logger.Error("failed to record delivery failure", "id", notification.ID, "error", markErr)
			}
			continue
		}

		if err := n.store.MarkNotificationSent(ctx, notification.ID, time.Now()); err != nil {
			n.logger.Error("failed to mark notification sent", "id", notification.ID, "error", err)
			continue
		}
		delivered++
	}

	if delivered > 0 {
		n.logger.Info("delivered notifications", "count", delivered, "pending", len(pending)-delivered)
	}
}

// deliver formats and sends one notification based on its kind.
func (n *Notifier) deliver(ctx context.Context, notification *domain.Notification) error {
	switch notification.Kind {
	case domain.NotifyShipmentReceived:
		return n.deliverShipmentReceived(ctx, notification.SubjectID)
	case domain.NotifyShipmentImages:
		return n.deliverShipmentImages(ctx, notification.SubjectID)
	case domain.NotifyTransferCompleted:
		return n.deliverTransferCompleted(ctx, notification.SubjectID)
	default:
		return errors.New("unknown notification kind: " + string(notification.Kind))
	}
}

func (n *Notifier) deliverShipmentReceived(ctx context.Context, shipmentID int64) error {
	shipment, err := n.store.GetShipment(ctx, shipmentID)
	if err != nil {
		return err
	}

	messageID, err := n.client.SendMessage(ctx, telegram.FormatShipmentReceived(shipment))
	if err != nil {
		return err
	}

	if messageID != 0 {
		shipment.TelegramMessageID = &messageID
		if err := n.store.UpdateShipment(ctx, shipment); err != nil {
			n.logger.Error("failed to record telegram message id", "shipment_id", shipmentID, "error", err)
		}
	}

	return nil
}

// deliverShipmentImages sends the first photo with a caption and the rest as
// bare photos. When photo upload fails the whole set falls back to one text
// message carrying the links.
func (n *Notifier) deliverShipmentImages(ctx context.Context, shipmentID int64) error {
	shipment, err := n.store.GetShipment(ctx, shipmentID)
	if err != nil {
		return err
	}

	urls := shipment.ImageURLs()
	if len(urls) == 0 {
		return nil
	}

	caption := telegram.FormatShipmentImages(shipment, len(urls))

	for i, url := range urls {
		photoCaption := ""
		if i == 0 {
			photoCaption = caption
		}
		if _, err := n.client.SendPhotoURL(ctx, url, photoCaption); err != nil {
			n.logger.Warn("photo upload failed, falling back to links",
				"shipment_id", shipmentID,
				"error", err,
			)
			_, sendErr := n.client.SendMessage(ctx, telegram.FormatImageLinks(caption, urls))
			return sendErr
		}
	}

	return nil
}

func (n *Notifier) deliverTransferCompleted(ctx context.Context, slipID int64) error {
	slip, err := n.store.GetTransferSlip(ctx, slipID)
	if err != nil {
		return err
	}

	shipments, err := n.store.ListTransferShipments(ctx, slipID)
	if err != nil {
		return err
	}

	text := telegram.FormatTransferCompleted(slip, shipments)

	if slip.ImageURL != "" {
		if _, err := n.client.SendPhotoURL(ctx, slip.ImageURL, text); err == nil {
			return nil
		}
		text = telegram.FormatImageLinks(text, []string{slip.ImageURL})
	}

	_, err = n.client.SendMessage(ctx, text)
	return err
}
