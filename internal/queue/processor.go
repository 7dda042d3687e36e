// Package queue contains the email queue processor and its recovery loop.
//
// The processor drains due pending entries in bounded batches, with a fixed
// delay between sends to stay under the mail provider's rate limit. A Redis
// lock keeps concurrent processors (cron trigger plus manual endpoint) from
// double-sending; without Redis the delay alone provides the pacing.
package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/wolfdaybr/validapass/internal/domain"
	"github.com/wolfdaybr/validapass/internal/mailer"
	"github.com/wolfdaybr/validapass/internal/pkg/distlock"
	"github.com/wolfdaybr/validapass/internal/pkg/logger"
	"github.com/wolfdaybr/validapass/internal/pkg/ratelimit"
)

type queueStore interface {
	FetchDue(ctx context.Context, batchSize int) ([]domain.EmailQueueEntry, error)
	MarkSending(ctx context.Context, id string) error
	MarkSent(ctx context.Context, id string, at time.Time) error
	MarkFailure(ctx context.Context, id string, retryCount int,
		status domain.EmailStatus, errMsg string, scheduledAt time.Time) error
	ResetFailed(ctx context.Context) (int64, error)
}

// Result summarizes one processing run, returned to the manual trigger
// endpoint as its response body.
type Result struct {
	Message    string `json:"message"`
	Processed  int    `json:"processed"`
	Successful int    `json:"successful"`
	Failed     int    `json:"failed"`
}

// Processor drains the email queue.
type Processor struct {
	store     queueStore
	sender    mailer.Sender
	from      string
	batchSize int
	sendDelay time.Duration
	backoff   time.Duration
	lock      *distlock.RedisLock
	limiter   *ratelimit.SendLimiter
}

// Options configures a Processor. Lock and Limiter are optional; without
// them the processor runs unguarded with fixed-delay pacing.
type Options struct {
	BatchSize int
	SendDelay time.Duration
	Backoff   time.Duration
	Lock      *distlock.RedisLock
	Limiter   *ratelimit.SendLimiter
}

func NewProcessor(store queueStore, sender mailer.Sender, from string, opts Options) *Processor {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 10
	}
	if opts.SendDelay <= 0 {
		opts.SendDelay = 600 * time.Millisecond
	}
	if opts.Backoff <= 0 {
		opts.Backoff = 5 * time.Minute
	}
	return &Processor{
		store:     store,
		sender:    sender,
		from:      from,
		batchSize: opts.BatchSize,
		sendDelay: opts.SendDelay,
		backoff:   opts.Backoff,
		lock:      opts.Lock,
		limiter:   opts.Limiter,
	}
}

// ProcessBatch runs one pass over the queue. When another processor holds
// the lock it returns a zero-count result rather than competing for the
// same rows.
func (p *Processor) ProcessBatch(ctx context.Context) (Result, error) {
	if p.lock != nil {
		acquired, err := p.lock.Acquire(ctx)
		if err != nil {
			return Result{}, fmt.Errorf("acquire queue lock: %w", err)
		}
		if !acquired {
			return Result{Message: "Queue is already being processed"}, nil
		}
		defer func() {
			if err := p.lock.Release(context.Background()); err != nil {
				logger.Warn("queue lock release failed", "error", err.Error())
			}
		}()
	}

	entries, err := p.store.FetchDue(ctx, p.batchSize)
	if err != nil {
		return Result{}, fmt.Errorf("fetch due entries: %w", err)
	}
	if len(entries) == 0 {
		return Result{Message: "No emails to process"}, nil
	}

	res := Result{Processed: len(entries)}
	for i, entry := range entries {
		if entry.Exhausted() {
			// FetchDue filters these out; a racing retry bump can still
			// surface one.
			res.Failed++
			continue
		}
		if err := p.processEntry(ctx, entry); err != nil {
			res.Failed++
		} else {
			res.Successful++
		}
		if i < len(entries)-1 {
			p.pace(ctx)
		}
	}
	res.Message = fmt.Sprintf("Processed %d emails: %d sent, %d failed",
		res.Processed, res.Successful, res.Failed)
	logger.Info("queue batch done",
		"processed", res.Processed, "successful", res.Successful, "failed", res.Failed)
	return res, nil
}

func (p *Processor) processEntry(ctx context.Context, entry domain.EmailQueueEntry) error {
	if err := p.store.MarkSending(ctx, entry.ID); err != nil {
		return fmt.Errorf("mark sending: %w", err)
	}

	sendErr := p.sender.Send(ctx, &mailer.Message{
		From:    p.from,
		To:      entry.Email,
		Subject: entry.Subject,
		HTML:    entry.HTMLContent,
	})
	if sendErr == nil {
		if err := p.store.MarkSent(ctx, entry.ID, time.Now()); err != nil {
			return fmt.Errorf("mark sent: %w", err)
		}
		logger.Info("queued email sent", "entry_id", entry.ID, "email", entry.Email)
		return nil
	}

	retryCount := entry.RetryCount + 1
	status := domain.EmailPending
	scheduledAt := time.Now().Add(time.Duration(retryCount) * p.backoff)
	if retryCount >= entry.MaxRetries {
		status = domain.EmailFailed
		scheduledAt = time.Now()
	}
	if err := p.store.MarkFailure(ctx, entry.ID, retryCount, status, sendErr.Error(), scheduledAt); err != nil {
		return fmt.Errorf("mark failure: %w", err)
	}
	logger.Warn("queued email send failed",
		"entry_id", entry.ID, "retry_count", retryCount, "status", string(status),
		"error", sendErr.Error())
	return sendErr
}

// pace waits between sends: the Redis limiter when available, a fixed sleep
// otherwise.
func (p *Processor) pace(ctx context.Context) {
	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err == nil {
			return
		}
	}
	select {
	case <-ctx.Done():
	case <-time.After(p.sendDelay):
	}
}

// ResetFailed returns every terminally failed entry to pending with a fresh
// retry budget.
func (p *Processor) ResetFailed(ctx context.Context) (int64, error) {
	n, err := p.store.ResetFailed(ctx)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		logger.Info("failed emails reset", "count", n)
	}
	return n, nil
}
