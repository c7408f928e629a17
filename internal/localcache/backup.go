package localcache

import (
	"context"
	"time"
)

const (
	MinBackupInterval     = 2 * time.Minute
	MaxBackupInterval     = 5 * time.Minute
	DefaultBackupInterval = 3 * time.Minute
)

// CreateBackup copies the primary order list into the backup tier.
func (c *Cache) CreateBackup() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, ok, err := c.tiers.Primary.Get(KeyOrders)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	if list, err := decodeList(data); err != nil || len(list) == 0 {
		// never overwrite a good backup with an empty or broken primary
		return nil
	}
	if err := c.tiers.Backup.Put(KeyBackup, data); err != nil {
		c.log.Errorf("LocalCache: Backup failed: %v", err)
		return err
	}
	c.log.Debug("LocalCache: Backup created")
	return nil
}

// ClampBackupInterval keeps every within the supported backup cadence.
func ClampBackupInterval(every time.Duration) time.Duration {
	switch {
	case every <= 0:
		return DefaultBackupInterval
	case every < MinBackupInterval:
		return MinBackupInterval
	case every > MaxBackupInterval:
		return MaxBackupInterval
	default:
		return every
	}
}

// StartBackups runs CreateBackup on a ticker and one last time when ctx is cancelled.
// It blocks until then.
func (c *Cache) StartBackups(ctx context.Context, every time.Duration) {
	c.runBackups(ctx, ClampBackupInterval(every))
}

func (c *Cache) runBackups(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			_ = c.CreateBackup()
		case <-ctx.Done():
			if err := c.CreateBackup(); err != nil {
				c.log.Errorf("LocalCache: Final backup failed: %v", err)
			}
			return
		}
	}
}

// EmergencyRecovery restores the backup into every other tier when it holds strictly
// more orders than the primary, and reports whether it did.
func (c *Cache) EmergencyRecovery() (bool, error) {
	c.mu.Lock()
	primary := c.readList(c.tiers.Primary, "primary", KeyOrders)
	backup := c.readList(c.tiers.Backup, "backup", KeyBackup)
	if len(backup) <= len(primary) {
		c.mu.Unlock()
		return false, nil
	}

	list := c.enrich(normalize(backup))
	c.log.Warnf("LocalCache: Emergency recovery, backup has %d orders, primary %d", len(backup), len(primary))
	err := c.writeAll(list)
	c.mu.Unlock()
	if err != nil {
		return false, err
	}
	c.publish(list)
	return true, nil
}
