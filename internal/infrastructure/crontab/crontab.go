package crontab

import (
	"context"
	"fmt"
	"time"

	"github.com/mileusna/crontab"

	"staybook-server/services/chat-api/internal/config"
	"staybook-server/services/chat-api/internal/domain/chat"
	"staybook-server/services/chat-api/internal/infrastructure/logger"
	"staybook-server/services/chat-api/internal/infrastructure/metrics"
	"staybook-server/services/chat-api/internal/utils/platformerrors"
)

const (
	DefaultSweepInterval = 60              // in minutes
	CronJobTimeout       = 5 * time.Minute // Timeout for each cron job execution
)

// Crontab runs the retention sweeper: archived conversations whose
// archived_at is older than the configured window are deleted permanently,
// messages included.
type Crontab struct {
	ctab        *crontab.Crontab
	chatService *chat.ChatService
}

func NewCrontab(chatService *chat.ChatService) *Crontab {
	return &Crontab{
		ctab:        crontab.New(),
		chatService: chatService,
	}
}

func (c *Crontab) Run(ctx context.Context) error {
	log := logger.GetLogger()

	cfg := config.GetGlobal()
	if cfg == nil || !cfg.SweepEnabled {
		log.Info().Msg("retention sweep disabled")
		<-ctx.Done()
		return nil
	}

	// execute once on server start
	c.sweep(ctx, cfg.ArchiveRetention)

	sweepInterval := cfg.SweepIntervalMin
	if sweepInterval <= 0 {
		sweepInterval = DefaultSweepInterval
	}

	cronExpr := fmt.Sprintf("*/%d * * * *", sweepInterval)
	if err := c.ctab.AddJob(cronExpr, func() {
		jobCtx, cancel := context.WithTimeout(context.Background(), CronJobTimeout)
		defer cancel()
		c.sweep(jobCtx, cfg.ArchiveRetention)
	}); err != nil {
		return platformerrors.AsError(ctx, platformerrors.LayerInfrastructure, err, "failed to add retention sweep job")
	}
	log.Warn().Msgf("Retention sweep scheduled: every %d minute(s), window %s", sweepInterval, cfg.ArchiveRetention)

	<-ctx.Done()
	c.ctab.Shutdown()
	return nil
}

func (c *Crontab) sweep(ctx context.Context, retention time.Duration) {
	log := logger.GetLogger()

	purged, err := c.chatService.SweepArchived(ctx, retention)
	metrics.RecordSweep(int(purged), err)
	if err != nil {
		log.Error().Err(err).Msg("Retention sweep failed")
		return
	}

	if purged > 0 {
		log.Info().Int64("purged", purged).Msg("Retention sweep purged conversations")
	}
}
