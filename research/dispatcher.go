package research

import (
	"context"
	"errors"
	"sync"
	"time"

	"deskresearch/notify"
	"deskresearch/pkg/kafka"
	"deskresearch/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Dispatcher runs accepted requests in the background: pipeline, e-mail
// delivery, ledger update, completion event. Runs are neither queued nor
// limited, and outlive the request that started them.
type Dispatcher struct {
	engine    *Engine
	runs      repository.RunRepo
	mailer    notify.Mailer
	publisher kafka.Publisher
	logger    *zap.Logger
	wg        sync.WaitGroup
}

// NewDispatcher wires the background path. A nil mailer disables delivery and
// a nil publisher disables events.
func NewDispatcher(engine *Engine, runs repository.RunRepo, mailer notify.Mailer, publisher kafka.Publisher, logger *zap.Logger) *Dispatcher {
	if publisher == nil {
		publisher = kafka.NopPublisher{}
	}
	return &Dispatcher{
		engine:    engine,
		runs:      runs,
		mailer:    mailer,
		publisher: publisher,
		logger:    logger,
	}
}

// Submit records a processing run and starts it. The returned run id can be
// polled through the ledger.
func (d *Dispatcher) Submit(ctx context.Context, query, email string) (string, error) {
	run := &repository.Run{
		ID:     uuid.NewString(),
		Query:  query,
		Email:  email,
		Status: repository.RunProcessing,
	}
	if err := d.runs.Save(ctx, run); err != nil {
		return "", err
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.execute(context.WithoutCancel(ctx), run)
	}()
	return run.ID, nil
}

// Execute runs one request synchronously. Used by the CLI.
func (d *Dispatcher) Execute(ctx context.Context, query, email string) (*repository.Run, error) {
	run := &repository.Run{
		ID:     uuid.NewString(),
		Query:  query,
		Email:  email,
		Status: repository.RunProcessing,
	}
	if err := d.runs.Save(ctx, run); err != nil {
		return nil, err
	}
	d.execute(ctx, run)
	return run, nil
}

// Wait blocks until every submitted run has finished or ctx is done.
func (d *Dispatcher) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) execute(ctx context.Context, run *repository.Run) {
	logger := d.logger.With(zap.String("run_id", run.ID))
	defer func() {
		if r := recover(); r != nil {
			logger.Error("research run panicked", zap.Any("panic", r))
			run.Status = repository.RunFailed
			run.Message = "internal error"
			d.save(ctx, logger, run)
			d.publish(ctx, logger, run, KindInternal)
		}
	}()

	res, err := d.engine.RunWithID(ctx, run.ID, run.Query)
	applyResult(run, res)

	if err != nil {
		if !errors.Is(err, ErrNoEvidence) && !errors.Is(err, ErrEncoding) {
			logger.Error("research run failed", zap.Error(err))
		}
	} else if res.OK() && run.Email != "" && d.mailer != nil {
		sendCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		err := notify.DeliverReport(sendCtx, d.mailer, run.Email, run.Query, res.Report, res.Sources)
		cancel()
		if err != nil {
			logger.Warn("report delivery failed", zap.String("email", run.Email), zap.Error(err))
			run.Warnings = append(run.Warnings, "delivery failed: "+err.Error())
		} else {
			run.Delivered = true
			logger.Info("report delivered", zap.String("email", run.Email))
		}
	}

	d.save(ctx, logger, run)
	d.publish(ctx, logger, run, res.Kind)
}

func (d *Dispatcher) publish(ctx context.Context, logger *zap.Logger, run *repository.Run, kind ErrorKind) {
	event := kafka.RunCompleted{
		RunID:         run.ID,
		Status:        string(run.Status),
		ErrorKind:     string(kind),
		TotalFetched:  run.TotalFetched,
		RelevantCount: run.RelevantCount,
		Delivered:     run.Delivered,
	}
	if err := d.publisher.PublishRunCompleted(ctx, event); err != nil {
		logger.Warn("failed to publish completion event", zap.Error(err))
	}
}

func (d *Dispatcher) save(ctx context.Context, logger *zap.Logger, run *repository.Run) {
	if err := d.runs.Save(ctx, run); err != nil {
		logger.Error("failed to update run ledger", zap.Error(err))
	}
}

func applyResult(run *repository.Run, res *Result) {
	run.Status = repository.RunFailed
	if res.OK() {
		run.Status = repository.RunSucceeded
	}
	run.Message = res.Message
	run.Report = res.Report
	run.Sources = res.Sources
	run.TotalFetched = res.TotalFetched
	run.RelevantCount = res.RelevantCount
	run.Warnings = res.Warnings
}
