package poll

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

const defaultInterval = time.Second

// ErrTimeout сигнализирует, что ожидание исчерпало лимит попыток или времени.
var ErrTimeout = errors.New("poll: wait limit exceeded")

type Sleeper func(ctx context.Context, d time.Duration) error

// Check возвращает true, когда ожидание можно завершать.
type Check func(ctx context.Context) (done bool, err error)

// Policy задаёт интервал опроса и границы ожидания.
// Нулевые MaxAttempts и Timeout означают отсутствие соответствующего ограничения.
type Policy struct {
	Interval    time.Duration
	MaxAttempts int
	Timeout     time.Duration
	Sleep       Sleeper
}

type TimeoutError struct {
	Attempts int
	Elapsed  time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("poll: not done after %d checks in %s", e.Attempts, e.Elapsed.Round(time.Millisecond))
}

func (e *TimeoutError) Is(target error) bool {
	return target == ErrTimeout
}

// Until проверяет состояние сразу, затем после каждого интервала, пока check не вернёт done.
// Возвращает количество выполненных проверок.
func Until(ctx context.Context, policy Policy, logger *slog.Logger, check Check) (int, error) {
	policy = withDefaults(policy)
	start := time.Now()

	waitCtx := ctx
	if policy.Timeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, policy.Timeout)
		defer cancel()
	}

	for attempt := 1; ; attempt++ {
		done, err := check(waitCtx)
		if err != nil {
			if ctx.Err() == nil && waitCtx.Err() != nil {
				return attempt, &TimeoutError{Attempts: attempt, Elapsed: time.Since(start)}
			}
			return attempt, err
		}
		if done {
			return attempt, nil
		}
		if policy.MaxAttempts > 0 && attempt >= policy.MaxAttempts {
			return attempt, &TimeoutError{Attempts: attempt, Elapsed: time.Since(start)}
		}

		if logger != nil {
			logger.Debug("still waiting",
				slog.Int("attempt", attempt),
				slog.Duration("retry_in", policy.Interval))
		}
		if err := policy.Sleep(waitCtx, policy.Interval); err != nil {
			if ctx.Err() != nil {
				return attempt, ctx.Err()
			}
			return attempt, &TimeoutError{Attempts: attempt, Elapsed: time.Since(start)}
		}
	}
}

func withDefaults(p Policy) Policy {
	if p.Interval <= 0 {
		p.Interval = defaultInterval
	}
	if p.Sleep == nil {
		p.Sleep = defaultSleep
	}
	return p
}

func defaultSleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
