package ordering

import (
	"context"
	"errors"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// withRetry повторяет fn, пока она возвращает domain.ErrConcurrentUpdate.
// Остальные ошибки возвращаются сразу.
func (s *Service) withRetry(ctx context.Context, fn func(ctx context.Context) error) error {
	delay := s.retry.InitialDelay

	for attempt := 1; ; attempt++ {
		err := fn(ctx)
		if err == nil {
			if attempt > 1 {
				s.logger.WithField("attempt", attempt).Info("order transaction succeeded after retry")
			}
			return nil
		}
		if !shouldRetry(err) {
			return err
		}
		if attempt >= s.retry.MaxAttempts {
			s.logger.WithError(err).WithField("attempts", attempt).Warn("order transaction retries exhausted")
			return err
		}

		s.metrics.RecordTxRetry()
		s.logger.WithError(err).WithFields(log.Fields{
			"attempt": attempt,
			"delay":   delay,
		}).Warn("order transaction conflicted, retrying")

		if delay > 0 {
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}

		delay = time.Duration(float64(delay) * s.retry.BackoffFactor)
		if delay > s.retry.MaxDelay {
			delay = s.retry.MaxDelay
		}
	}
}

func shouldRetry(err error) bool {
	return errors.Is(err, domain.ErrConcurrentUpdate)
}
