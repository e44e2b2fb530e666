package chat

import (
	"context"
	"errors"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Repo struct {
	db  *gorm.DB
	now func() time.Time
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db, now: time.Now}
}

func notFound(err, sentinel error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return sentinel
	}
	return err
}

// Conversations

func (r *Repo) CreateConversation(ctx context.Context, c *Conversation) error {
	now := r.now()
	c.CreatedAt = now
	c.UpdatedAt = now
	c.IsActive = true
	return r.db.WithContext(ctx).Create(c).Error
}

func (r *Repo) CountConversations(ctx context.Context, userID uint64) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&Conversation{}).
		Where("user_id = ?", userID).
		Count(&n).Error
	return n, err
}

// GetConversation loads a conversation owned by userID. With activeOnly,
// archived conversations are reported as not found.
func (r *Repo) GetConversation(ctx context.Context, userID, id uint64, activeOnly bool) (*Conversation, error) {
	q := r.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID)
	if activeOnly {
		q = q.Where("is_active = ?", true)
	}
	var c Conversation
	if err := q.First(&c).Error; err != nil {
		return nil, notFound(err, ErrConversationNotFound)
	}
	return &c, nil
}

// ListConversations returns the user's active conversations, most recently
// updated first.
func (r *Repo) ListConversations(ctx context.Context, userID uint64) ([]Conversation, error) {
	var convs []Conversation
	if err := r.db.WithContext(ctx).
		Where("user_id = ? AND is_active = ?", userID, true).
		Order("updated_at DESC, id DESC").
		Find(&convs).Error; err != nil {
		return nil, err
	}
	return convs, nil
}

func (r *Repo) UpdateTitle(ctx context.Context, userID, id uint64, title string) error {
	res := r.db.WithContext(ctx).Model(&Conversation{}).
		Where("id = ? AND user_id = ? AND is_active = ?", id, userID, true).
		UpdateColumns(map[string]any{"title": title, "auto_title": false})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrConversationNotFound
	}
	return nil
}

func (r *Repo) Archive(ctx context.Context, userID, id uint64) error {
	res := r.db.WithContext(ctx).Model(&Conversation{}).
		Where("id = ? AND user_id = ? AND is_active = ?", id, userID, true).
		UpdateColumn("is_active", false)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrConversationNotFound
	}
	return nil
}

// DeleteConversation removes the conversation and all of its turns.
func (r *Repo) DeleteConversation(ctx context.Context, userID, id uint64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var c Conversation
		if err := tx.Select("id").Where("id = ? AND user_id = ?", id, userID).First(&c).Error; err != nil {
			return notFound(err, ErrConversationNotFound)
		}
		if err := tx.Where("conversation_id = ?", id).Delete(&Message{}).Error; err != nil {
			return err
		}
		return tx.Delete(&Conversation{}, id).Error
	})
}

func (r *Repo) UpdateSummary(ctx context.Context, id uint64, summary string, vec []float32) error {
	cols := map[string]any{"summary": summary}
	if len(vec) > 0 {
		cols["search_vector"] = datatypes.JSONSlice[float32](vec)
	}
	return r.db.WithContext(ctx).Model(&Conversation{}).
		Where("id = ?", id).
		UpdateColumns(cols).Error
}

// Messages

// InsertMessage appends a turn to an active conversation. The turn's
// CreatedAt becomes the conversation's UpdatedAt, and a placeholder title
// is replaced by one derived from the turn. The write is atomic.
func (r *Repo) InsertMessage(ctx context.Context, m *Message) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var c Conversation
		if err := tx.Select("id", "is_active", "auto_title", "updated_at").
			Where("id = ?", m.ConversationID).
			First(&c).Error; err != nil {
			return notFound(err, ErrConversationNotFound)
		}
		if !c.IsActive {
			return ErrConversationNotFound
		}

		// keep updated_at monotonic even if the clock steps back
		created := r.now()
		if created.Before(c.UpdatedAt) {
			created = c.UpdatedAt
		}
		m.CreatedAt = created
		if m.Metadata == nil {
			m.Metadata = datatypes.JSONMap{}
		}
		if err := tx.Create(m).Error; err != nil {
			return err
		}

		cols := map[string]any{"updated_at": created}
		if c.AutoTitle {
			cols["title"] = TitleFromContent(m.Content)
			cols["auto_title"] = false
		}
		return tx.Model(&Conversation{}).Where("id = ?", c.ID).UpdateColumns(cols).Error
	})
}

// ListMessages returns every turn of a conversation in creation order.
func (r *Repo) ListMessages(ctx context.Context, conversationID uint64) ([]Message, error) {
	var msgs []Message
	if err := r.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("created_at ASC, id ASC").
		Find(&msgs).Error; err != nil {
		return nil, err
	}
	return msgs, nil
}

// ListRecentMessagesDesc returns the most recent messages in DESC order (newest -> oldest).
func (r *Repo) ListRecentMessagesDesc(ctx context.Context, conversationID uint64, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = 20
	}
	var msgs []Message
	if err := r.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&msgs).Error; err != nil {
		return nil, err
	}
	return msgs, nil
}

func (r *Repo) CountMessages(ctx context.Context, conversationID uint64) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&Message{}).
		Where("conversation_id = ?", conversationID).
		Count(&n).Error
	return n, err
}

type conversationStats struct {
	ConversationID uint64
	MessageCount   int64
	LastMessageID  uint64
}

// MessageStats returns the turn count and newest turn for each conversation.
func (r *Repo) MessageStats(ctx context.Context, ids []uint64) (map[uint64]int64, map[uint64]Message, error) {
	counts := make(map[uint64]int64, len(ids))
	last := make(map[uint64]Message, len(ids))
	if len(ids) == 0 {
		return counts, last, nil
	}

	var stats []conversationStats
	if err := r.db.WithContext(ctx).Model(&Message{}).
		Select("conversation_id, COUNT(*) AS message_count, MAX(id) AS last_message_id").
		Where("conversation_id IN ?", ids).
		Group("conversation_id").
		Scan(&stats).Error; err != nil {
		return nil, nil, err
	}

	lastIDs := make([]uint64, 0, len(stats))
	for _, s := range stats {
		counts[s.ConversationID] = s.MessageCount
		lastIDs = append(lastIDs, s.LastMessageID)
	}
	if len(lastIDs) == 0 {
		return counts, last, nil
	}

	var msgs []Message
	if err := r.db.WithContext(ctx).Where("id IN ?", lastIDs).Find(&msgs).Error; err != nil {
		return nil, nil, err
	}
	for _, m := range msgs {
		last[m.ConversationID] = m
	}
	return counts, last, nil
}

func (r *Repo) GetMessage(ctx context.Context, conversationID, id uint64) (*Message, error) {
	var m Message
	if err := r.db.WithContext(ctx).
		Where("id = ? AND conversation_id = ?", id, conversationID).
		First(&m).Error; err != nil {
		return nil, notFound(err, ErrMessageNotFound)
	}
	return &m, nil
}

// UpdateMessageEmbedding stores a turn's embedding. Content is immutable, so
// an embedding is written at most once.
func (r *Repo) UpdateMessageEmbedding(ctx context.Context, id uint64, vec []float32) error {
	return r.db.WithContext(ctx).Model(&Message{}).
		Where("id = ?", id).
		UpdateColumn("embedding", datatypes.JSONSlice[float32](vec)).Error
}

// ListUserMessages returns up to limit turns from the user's active
// conversations, newest first, along with those conversations' titles.
func (r *Repo) ListUserMessages(ctx context.Context, userID uint64, limit int) ([]Message, map[uint64]string, error) {
	var convs []Conversation
	if err := r.db.WithContext(ctx).
		Select("id", "title").
		Where("user_id = ? AND is_active = ?", userID, true).
		Find(&convs).Error; err != nil {
		return nil, nil, err
	}
	titles := make(map[uint64]string, len(convs))
	ids := make([]uint64, 0, len(convs))
	for _, c := range convs {
		titles[c.ID] = c.Title
		ids = append(ids, c.ID)
	}
	if len(ids) == 0 {
		return nil, titles, nil
	}

	q := r.db.WithContext(ctx).
		Where("conversation_id IN ?", ids).
		Order("created_at DESC, id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var msgs []Message
	if err := q.Find(&msgs).Error; err != nil {
		return nil, nil, err
	}
	return msgs, titles, nil
}

// Job CRUD
func (r *Repo) CreateJob(ctx context.Context, job *Job) error {
	return r.db.WithContext(ctx).Create(job).Error
}

func (r *Repo) GetJobByID(ctx context.Context, id string) (*Job, error) {
	var j Job
	if err := r.db.WithContext(ctx).First(&j, "id = ?", id).Error; err != nil {
		return nil, notFound(err, ErrJobNotFound)
	}
	return &j, nil
}

// UpdateJobStatusRunning also moves failed jobs, which are being retried.
func (r *Repo) UpdateJobStatusRunning(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Model(&Job{}).
		Where("id = ? AND status IN ?", id, []JobStatus{JobQueued, JobFailed}).
		Update("status", JobRunning).Error
}

func (r *Repo) MarkJobSucceeded(ctx context.Context, id string, assistantMsgID uint64) error {
	return r.db.WithContext(ctx).Model(&Job{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":            JobSucceeded,
			"result_message_id": assistantMsgID,
			"error":             nil,
		}).Error
}

func (r *Repo) MarkJobFailed(ctx context.Context, id string, errMsg string) error {
	return r.db.WithContext(ctx).Model(&Job{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":            JobFailed,
			"error":             errMsg,
			"result_message_id": nil,
		}).Error
}

func (r *Repo) GetJobByUserAndIdempotencyKey(ctx context.Context, userID uint64, key string) (*Job, error) {
	var job Job
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND idempotency_key = ?", userID, key).
		First(&job).Error
	if err != nil {
		return nil, notFound(err, ErrJobNotFound)
	}
	return &job, nil
}

// CreateJobOrGetExisting tries to create a job, but if (user_id, idempotency_key) already exists,
// it returns the existing job instead.
func (r *Repo) CreateJobOrGetExisting(ctx context.Context, job *Job) (*Job, bool, error) {
	if job.IdempotencyKey == nil || *job.IdempotencyKey == "" {
		job.IdempotencyKey = nil
		if err := r.db.WithContext(ctx).Create(job).Error; err != nil {
			return nil, false, err
		}
		return job, true, nil
	}

	err := r.db.WithContext(ctx).Create(job).Error
	if err == nil {
		return job, true, nil
	}

	existing, getErr := r.GetJobByUserAndIdempotencyKey(ctx, job.UserID, *job.IdempotencyKey)
	if getErr == nil {
		return existing, false, nil
	}
	if errors.Is(getErr, ErrJobNotFound) {
		return nil, false, err
	}
	return nil, false, getErr
}
