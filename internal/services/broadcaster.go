package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/Lina3386/moliya-bot/internal/chat"
	"github.com/Lina3386/moliya-bot/internal/models"
)

const (
	pushSent   = "sent"
	pushFailed = "failed"
)

// Summary of one broadcast batch.
type Summary struct {
	BatchID   string
	Successes int
	Failures  int
}

// BuildFunc assembles the personalised message for one recipient.
type BuildFunc func(ctx context.Context, userID int64) (chat.Message, error)

type Broadcaster struct {
	sender  chat.Sender
	finance *FinanceService
	log     *logrus.Logger
}

func NewBroadcaster(sender chat.Sender, finance *FinanceService, log *logrus.Logger) *Broadcaster {
	return &Broadcaster{sender: sender, finance: finance, log: log}
}

// Broadcast sends to every recipient in order. A failed recipient is
// counted and logged; the batch always runs to the end.
func (b *Broadcaster) Broadcast(ctx context.Context, topic string, recipients []int64, build BuildFunc) Summary {
	sum := Summary{BatchID: uuid.NewString()}
	log := b.log.WithFields(logrus.Fields{"batch_id": sum.BatchID, "topic": topic})
	log.WithField("recipients", len(recipients)).Info("📣 broadcast started")

	for _, userID := range recipients {
		err := b.deliver(ctx, userID, build)

		rec := models.PushRecord{BatchID: sum.BatchID, UserID: userID, Topic: topic, Status: pushSent}
		if err != nil {
			sum.Failures++
			rec.Status = pushFailed
			rec.Error = err.Error()
			log.WithError(err).WithField("user_id", userID).Warn("push delivery failed")
		} else {
			sum.Successes++
		}

		// the batch keeps going even when the journal write fails
		if jerr := b.finance.SavePush(ctx, rec); jerr != nil {
			log.WithError(jerr).WithField("user_id", userID).Error("failed to record push")
		}
	}

	log.WithFields(logrus.Fields{"successes": sum.Successes, "failures": sum.Failures}).Info("📣 broadcast finished")
	return sum
}

func (b *Broadcaster) deliver(ctx context.Context, userID int64, build BuildFunc) error {
	msg, err := build(ctx, userID)
	if err != nil {
		return fmt.Errorf("build message: %w", err)
	}
	if msg.ChatID == 0 {
		msg.ChatID = userID
	}
	if err := b.sender.Send(ctx, msg); err != nil {
		return fmt.Errorf("send: %w", err)
	}
	return nil
}
