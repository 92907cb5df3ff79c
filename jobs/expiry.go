package jobs

import (
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"
	"gorm.io/gorm"

	"cardmart/models"
)

// ExpirySweeper moves listed items past their expiry to expired.
type ExpirySweeper struct {
	db     *gorm.DB
	notify func(event string, itemID uint)
	cron   *cron.Cron
}

// NewExpirySweeper builds a sweeper. notify may be nil when no event
// feed is wired.
func NewExpirySweeper(db *gorm.DB, notify func(event string, itemID uint)) *ExpirySweeper {
	return &ExpirySweeper{
		db:     db,
		notify: notify,
		cron:   cron.New(cron.WithSeconds()),
	}
}

// Start schedules the sweep at the given interval.
func (s *ExpirySweeper) Start(interval time.Duration) error {
	if interval < time.Second {
		interval = time.Second
	}
	spec := fmt.Sprintf("@every %s", interval)
	if _, err := s.cron.AddFunc(spec, func() {
		if err := s.Sweep(); err != nil {
			log.Printf("expiry sweep: %v", err)
		}
	}); err != nil {
		return fmt.Errorf("schedule expiry sweep: %w", err)
	}
	s.cron.Start()
	return nil
}

// Stop halts the schedule and waits for a running sweep to finish.
func (s *ExpirySweeper) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

// Sweep runs one pass. Exported so it can be triggered directly.
func (s *ExpirySweeper) Sweep() error {
	now := time.Now()

	var expired []models.CatalogItem
	if err := s.db.
		Where("status = ? AND expires_at IS NOT NULL AND expires_at <= ?", models.ItemStatusListed, now).
		Find(&expired).Error; err != nil {
		return fmt.Errorf("find expired items: %w", err)
	}
	if len(expired) == 0 {
		return nil
	}

	ids := make([]uint, len(expired))
	for i, item := range expired {
		ids[i] = item.ID
	}

	if err := s.db.Model(&models.CatalogItem{}).
		Where("id IN ? AND status = ?", ids, models.ItemStatusListed).
		Update("status", models.ItemStatusExpired).Error; err != nil {
		return fmt.Errorf("expire items: %w", err)
	}

	for _, id := range ids {
		if s.notify != nil {
			s.notify("item.expired", id)
		}
	}
	log.Printf("Expired %d listed item(s)", len(ids))
	return nil
}
