// Package housekeeping runs the periodic cleanup jobs: expired sessions and
// audit log retention.
package housekeeping

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"helix-qms/config"
	"helix-qms/core/store"
	"helix-qms/core/utils"
)

type Janitor struct {
	cfg      *config.AppConfig
	sessions store.SessionsStore
	audits   store.AuditStore
	logger   *utils.Logger
	cron     *cron.Cron
}

func NewJanitor(cfg *config.AppConfig, sessions store.SessionsStore, audits store.AuditStore, logger *utils.Logger) *Janitor {
	return &Janitor{cfg: cfg, sessions: sessions, audits: audits, logger: logger}
}

// Start registers the cron entries and begins running them. It is a no-op
// when housekeeping is disabled in config.
func (j *Janitor) Start() error {
	if j == nil || !j.cfg.Housekeeping.Enabled {
		return nil
	}
	c := cron.New()
	if _, err := c.AddFunc(j.cfg.Housekeeping.SessionPurgeSpec, j.purgeSessions); err != nil {
		return err
	}
	if j.cfg.Housekeeping.AuditRetentionDays > 0 {
		if _, err := c.AddFunc(j.cfg.Housekeeping.AuditPurgeSpec, j.purgeAudit); err != nil {
			return err
		}
	}
	j.cron = c
	c.Start()
	if j.logger != nil {
		j.logger.Printf("housekeeping started session_spec=%s audit_spec=%s", j.cfg.Housekeeping.SessionPurgeSpec, j.cfg.Housekeeping.AuditPurgeSpec)
	}
	return nil
}

func (j *Janitor) Stop() {
	if j == nil || j.cron == nil {
		return
	}
	<-j.cron.Stop().Done()
}

func (j *Janitor) purgeSessions() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	n, err := j.sessions.PurgeExpired(ctx, time.Now().UTC())
	if err != nil {
		if j.logger != nil {
			j.logger.Errorf("session purge failed: %v", err)
		}
		return
	}
	if n > 0 && j.logger != nil {
		j.logger.Printf("purged %d expired sessions", n)
	}
}

func (j *Janitor) purgeAudit() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	cutoff := time.Now().UTC().AddDate(0, 0, -j.cfg.Housekeeping.AuditRetentionDays)
	n, err := j.audits.PurgeOlderThan(ctx, cutoff)
	if err != nil {
		if j.logger != nil {
			j.logger.Errorf("audit purge failed: %v", err)
		}
		return
	}
	if n > 0 && j.logger != nil {
		j.logger.Printf("purged %d audit events older than %s", n, cutoff.Format(time.RFC3339))
	}
}
