package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/suPer8Hu/chat-recall/internal/ai"
	"github.com/suPer8Hu/chat-recall/internal/common"
)

const maxIdempotencyKeyLen = 128

// JobPublisher hands a queued job to the workers.
type JobPublisher interface {
	PublishJob(ctx context.Context, jobID string) error
}

// SubmitTurn persists the user turn and queues the assistant reply. A
// repeated idempotency key returns the original job without storing the turn
// again; created reports whether a new job was queued.
func (s *Service) SubmitTurn(ctx context.Context, pub JobPublisher, userID uint64, conversationID *uint64, content string, metadata map[string]any, idempotencyKey string) (job *Job, created bool, err error) {
	idempotencyKey = strings.TrimSpace(idempotencyKey)
	if len(idempotencyKey) > maxIdempotencyKeyLen {
		return nil, false, invalid("Idempotency-Key", "too long")
	}
	if pub == nil {
		return nil, false, fmt.Errorf("%w: no publisher configured", ErrEnqueueFailed)
	}

	var keyPtr *string
	if idempotencyKey != "" {
		keyPtr = &idempotencyKey
		existing, err := s.repo.GetJobByUserAndIdempotencyKey(ctx, userID, idempotencyKey)
		if err == nil {
			return existing, false, nil
		}
		if !errors.Is(err, ErrJobNotFound) {
			return nil, false, err
		}
	}

	conv, _, err := s.BeginTurn(ctx, userID, conversationID, content, metadata)
	if err != nil {
		return nil, false, err
	}

	jobID, err := common.NewULID()
	if err != nil {
		return nil, false, err
	}
	j := &Job{
		ID:             jobID,
		UserID:         userID,
		ConversationID: conv.ID,
		Prompt:         content,
		IdempotencyKey: keyPtr,
		Status:         JobQueued,
	}
	job, created, err = s.repo.CreateJobOrGetExisting(ctx, j)
	if err != nil {
		return nil, false, err
	}

	// Enqueue only when a new job was created
	if created {
		if err := pub.PublishJob(ctx, job.ID); err != nil {
			_ = s.repo.MarkJobFailed(ctx, job.ID, "enqueue failed")
			return nil, false, fmt.Errorf("%w: %v", ErrEnqueueFailed, err)
		}
	}
	return job, created, nil
}

// GetJob hides jobs owned by other users.
func (s *Service) GetJob(ctx context.Context, userID uint64, jobID string) (*Job, error) {
	j, err := s.repo.GetJobByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if j.UserID != userID {
		return nil, ErrJobNotFound
	}
	return j, nil
}

// ProcessJob generates the assistant reply for a queued job and records
// the outcome on the job row.
func (s *Service) ProcessJob(ctx context.Context, jobID string) error {
	log := zerolog.Ctx(ctx).With().Str("job_id", jobID).Logger()
	jobStart := time.Now()

	j, err := s.repo.GetJobByID(ctx, jobID)
	if err != nil {
		return err
	}
	if j.Status == JobSucceeded {
		// redelivery of a finished job
		return nil
	}
	retry := j.Status != JobQueued
	if err := s.repo.UpdateJobStatusRunning(ctx, jobID); err != nil {
		return err
	}

	if retry {
		// an earlier attempt may have stored the reply and then failed to
		// record it on the job
		reply, err := s.answeredTurn(ctx, j.ConversationID)
		if err != nil {
			return err
		}
		if reply != nil {
			log.Info().Uint64("message_id", reply.ID).Msg("reply already stored")
			return s.repo.MarkJobSucceeded(ctx, jobID, reply.ID)
		}
	}

	t := time.Now()
	res, err := s.CompleteTurn(ctx, j.UserID, j.ConversationID)
	genCost := time.Since(t)
	if err != nil {
		_ = s.repo.MarkJobFailed(ctx, jobID, err.Error())
		log.Error().Err(err).Dur("gen", genCost).Dur("total", time.Since(jobStart)).Msg("job failed")
		return err
	}

	if err := s.repo.MarkJobSucceeded(ctx, jobID, res.MessageID); err != nil {
		log.Error().Err(err).Dur("gen", genCost).Msg("mark job succeeded failed")
		return err
	}

	if total := time.Since(jobStart); total > 2*time.Second {
		log.Info().Dur("gen", genCost).Dur("total", total).Msg("job_timing")
	}
	return nil
}

// answeredTurn returns the newest turn when it is an assistant reply, meaning
// the pending user turn needs no further generation.
func (s *Service) answeredTurn(ctx context.Context, conversationID uint64) (*Message, error) {
	recent, err := s.repo.ListRecentMessagesDesc(ctx, conversationID, 1)
	if err != nil {
		return nil, err
	}
	if len(recent) == 0 || recent[0].Role != ai.RoleAssistant {
		return nil, nil
	}
	return &recent[0], nil
}
