package orgs

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/platware/orgauth/pkg/observability"
)

// InvitationJanitor periodically expires stale invitations.
type InvitationJanitor struct {
	service *Service
	logger  *observability.Logger
	cron    *cron.Cron
}

// NewInvitationJanitor creates a janitor with the given cron schedule, for
// example "@every 15m".
func NewInvitationJanitor(service *Service, logger *observability.Logger, schedule string) (*InvitationJanitor, error) {
	if schedule == "" {
		schedule = "@every 15m"
	}

	j := &InvitationJanitor{
		service: service,
		logger:  logger,
		cron:    cron.New(),
	}
	if _, err := j.cron.AddFunc(schedule, j.sweep); err != nil {
		return nil, err
	}
	return j, nil
}

func (j *InvitationJanitor) sweep() {
	defer observability.RecoverPanic(j.logger, "invitation sweep")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	expired, err := j.service.CleanupExpiredInvitations(ctx)
	if err != nil {
		j.logger.WithError(err).Error("failed to expire invitations")
		return
	}
	if expired > 0 {
		j.logger.WithField("expired", expired).Info("expired stale invitations")
	}
}

// Start begins the schedule.
func (j *InvitationJanitor) Start() {
	j.cron.Start()
}

// Stop halts the schedule and waits for a running sweep to finish.
func (j *InvitationJanitor) Stop() {
	ctx := j.cron.Stop()
	<-ctx.Done()
}
