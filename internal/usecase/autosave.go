package usecase

import (
	"context"
	"time"

	"deenice_finds/internal/domain"

	"github.com/sirupsen/logrus"
)

// RunAutoSave flushes the order store every interval and once more when ctx ends.
func RunAutoSave(ctx context.Context, uc domain.OrderUseCase, every time.Duration, logger *logrus.Logger) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := uc.Save(ctx); err != nil {
				logger.Warnf("Autosave failed, will retry in %s: %v", every, err)
			}
		case <-ctx.Done():
			// ctx is already cancelled, so the final flush gets its own deadline
			flushCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			if err := uc.Save(flushCtx); err != nil {
				logger.Errorf("Final save failed: %v", err)
			} else {
				logger.Info("Final save completed")
			}
			cancel()
			return
		}
	}
}
