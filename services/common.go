package services

import (
	"errors"
	"time"

	"learnhub_go/services/notifications"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Notifier is the part of notifications.Service the domain services use.
type Notifier interface {
	EnqueueOrCreate(userIDs []uint, n notifications.Payload) error
}

func notify(n Notifier, userIDs []uint, p notifications.Payload) {
	if n == nil || len(userIDs) == 0 {
		return
	}
	if err := n.EnqueueOrCreate(userIDs, p); err != nil {
		logrus.WithError(err).WithField("title", p.Title).Warn("failed to create notification")
	}
}

func isNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

func utcNow() time.Time {
	return time.Now().UTC()
}
