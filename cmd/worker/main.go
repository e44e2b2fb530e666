package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/suPer8Hu/chat-recall/internal/app"
	"github.com/suPer8Hu/chat-recall/internal/chat"
	"github.com/suPer8Hu/chat-recall/internal/config"
	"github.com/suPer8Hu/chat-recall/internal/logger"
	"github.com/suPer8Hu/chat-recall/internal/metrics"
	"github.com/suPer8Hu/chat-recall/internal/store/rabbitmq"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}
	l := logger.New("chat-recall-worker", cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = l.WithContext(ctx)

	a, err := app.New(ctx, cfg)
	if err != nil {
		l.Fatal().Err(err).Msg("init services")
	}
	defer a.Close()

	//  strict concurrency control
	concurrency := cfg.WorkerConcurrency
	consumer, err := rabbitmq.NewConsumer(cfg.RabbitURL, cfg.RabbitQueue, concurrency)
	if err != nil {
		l.Fatal().Err(err).Msg("rabbitmq consume")
	}
	defer consumer.Close()

	l.Info().Str("queue", cfg.RabbitQueue).Int("concurrency", concurrency).Msg("worker started")

	// worker pool
	jobs := make(chan amqp.Delivery, concurrency*2)

	var wg sync.WaitGroup
	wg.Add(concurrency)
	for i := 0; i < concurrency; i++ {
		go func(workerID int) {
			defer wg.Done()
			wl := l.With().Int("worker", workerID).Logger()
			for d := range jobs {
				handleDelivery(wl.WithContext(ctx), cfg, a.Chat, consumer, d)
			}
		}(i)
	}

	// dispatcher
	msgs := consumer.Deliveries()
	for {
		select {
		case <-ctx.Done():
			l.Info().Msg("worker shutting down")
			close(jobs)
			wg.Wait()
			return

		case d, ok := <-msgs:
			if !ok {
				l.Error().Msg("delivery channel closed")
				close(jobs)
				wg.Wait()
				return
			}
			jobs <- d
		}
	}
}

// permanent reports failures that another attempt cannot fix. The job row
// already records them, so the delivery is acked.
func permanent(err error) bool {
	var verr *chat.ValidationError
	return errors.Is(err, chat.ErrJobNotFound) ||
		errors.Is(err, chat.ErrConversationNotFound) ||
		errors.As(err, &verr)
}

type jobProcessor interface {
	ProcessJob(ctx context.Context, jobID string) error
}

type retrier interface {
	Retry(ctx context.Context, m rabbitmq.JobMessage, delay time.Duration) error
}

// handleDelivery runs one job and settles its delivery. ctx is the
// shutdown context: deliveries still buffered after it is done go back to
// the queue untouched, and a started job runs on a detached context bounded
// by JobTimeout.
func handleDelivery(ctx context.Context, cfg config.Config, svc jobProcessor, r retrier, d amqp.Delivery) {
	log := zerolog.Ctx(ctx)

	m, err := rabbitmq.Decode(d)
	if err != nil {
		log.Warn().Err(err).Msg("bad message")
		_ = d.Nack(false, false)
		return
	}
	jl := log.With().Str("job_id", m.JobID).Int("attempt", m.Attempt).Logger()
	log = &jl

	if ctx.Err() != nil {
		log.Info().Msg("shutting down, job requeued")
		_ = d.Nack(false, true)
		return
	}

	jobCtx, cancel := context.WithTimeout(context.WithoutCancel(jl.WithContext(ctx)), cfg.JobTimeout)
	defer cancel()

	start := time.Now()
	err = svc.ProcessJob(jobCtx, m.JobID)
	metrics.JobsProcessed.WithLabelValues(metrics.Status(err)).Inc()
	switch {
	case err == nil:
		if err := d.Ack(false); err != nil {
			log.Error().Err(err).Msg("ack failed")
		}
	case permanent(err):
		log.Warn().Err(err).Dur("cost", time.Since(start)).Msg("job dropped")
		_ = d.Ack(false)
	case ctx.Err() != nil:
		// interrupted by shutdown; the next worker picks it up
		log.Warn().Err(err).Msg("job interrupted, requeued")
		_ = d.Nack(false, true)
	case m.Attempt < cfg.JobMaxAttempts:
		if rerr := r.Retry(jobCtx, m, cfg.JobRetryDelay); rerr != nil {
			log.Error().Err(rerr).Msg("schedule retry failed")
			_ = d.Nack(false, true)
			return
		}
		log.Warn().Err(err).Dur("retry_in", cfg.JobRetryDelay).Msg("job failed, retrying")
		_ = d.Ack(false)
	default:
		// dead-lettered to <queue>.dlq
		log.Error().Err(err).Dur("cost", time.Since(start)).Msg("job failed")
		_ = d.Nack(false, false)
	}
}
