package service

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

type bookingCompleter interface {
	CompletePast(ctx context.Context) (int64, error)
}

// BookingAdvancer periodically moves past CONFIRMED bookings to COMPLETED.
type BookingAdvancer struct {
	cron      *cron.Cron
	completer bookingCompleter
	timeout   time.Duration
	logger    *zap.Logger
}

// NewBookingAdvancer registers the advancer on a cron schedule such as "@hourly".
func NewBookingAdvancer(completer bookingCompleter, spec string, timeout time.Duration, logger *zap.Logger) (*BookingAdvancer, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	a := &BookingAdvancer{completer: completer, timeout: timeout, logger: logger}
	a.cron = cron.New(
		cron.WithLocation(time.UTC),
		cron.WithChain(cron.Recover(cronLogger{logger}), cron.SkipIfStillRunning(cronLogger{logger})),
	)
	if _, err := a.cron.AddFunc(spec, a.Run); err != nil {
		return nil, err
	}
	return a, nil
}

// Start begins the schedule in the background.
func (a *BookingAdvancer) Start() {
	a.cron.Start()
}

// Stop halts the schedule and waits for a running pass to finish or ctx to expire.
func (a *BookingAdvancer) Stop(ctx context.Context) {
	done := a.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
	}
}

// Run executes one advancement pass.
func (a *BookingAdvancer) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
	defer cancel()
	n, err := a.completer.CompletePast(ctx)
	if err != nil {
		a.logger.Error("booking advancer failed", zap.Error(err))
		return
	}
	if n > 0 {
		a.logger.Info("bookings completed", zap.Int64("count", n))
	}
}

// cronLogger adapts zap to cron.Logger.
type cronLogger struct {
	logger *zap.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Sugar().Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Sugar().Errorw(msg, append(keysAndValues, "error", err)...)
}
