package services

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/esurat/apiserver/types"
)

const (
	defaultHistoryPerPage = 20
	maxHistoryPerPage     = 100
)

// ActivityRepository defines persistence operations for the activity log.
type ActivityRepository interface {
	Append(ctx context.Context, entry types.ActivityHistory) (types.ActivityHistory, error)
	List(ctx context.Context, f types.HistoryFilter, p types.Page) ([]types.ActivityHistory, int, error)
}

// Publisher sends JSON events to a broker channel.
type Publisher interface {
	PublishJSON(ctx context.Context, channel string, v any, attrs map[string]string) (string, error)
}

// ActivityEntry is one audit event to append.
type ActivityEntry struct {
	UserID      int64
	Action      string
	DocumentID  *int64
	Description string
	Metadata    any
	IP          string
	UserAgent   string
}

// ActivityEvent is the message published for every appended entry.
type ActivityEvent struct {
	ID          int64           `json:"id"`
	UserID      int64           `json:"user_id"`
	DocumentID  *int64          `json:"document_id,omitempty"`
	Action      string          `json:"action"`
	Description string          `json:"description,omitempty"`
	Metadata    json.RawMessage `json:"metadata,omitempty"`
	IPAddress   string          `json:"ip_address,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

// ActivityService appends to and reads the audit trail.
type ActivityService struct {
	repo      ActivityRepository
	publisher Publisher
	channel   string
	logger    *zap.Logger
}

func NewActivityService(repo ActivityRepository, logger *zap.Logger) *ActivityService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ActivityService{repo: repo, logger: logger}
}

// WithPublisher enables publishing appended entries to channel.
func (s *ActivityService) WithPublisher(p Publisher, channel string) *ActivityService {
	s.publisher = p
	s.channel = channel
	return s
}

// Log appends entry. Publishing happens after the append and its failure is
// only logged.
func (s *ActivityService) Log(ctx context.Context, entry ActivityEntry) (types.ActivityHistory, error) {
	row := types.ActivityHistory{
		UserID:      entry.UserID,
		DocumentID:  entry.DocumentID,
		Action:      entry.Action,
		Description: entry.Description,
		IPAddress:   entry.IP,
		UserAgent:   entry.UserAgent,
	}
	if entry.Metadata != nil {
		data, err := json.Marshal(entry.Metadata)
		if err != nil {
			return types.ActivityHistory{}, err
		}
		row.Metadata = data
	}

	saved, err := s.repo.Append(ctx, row)
	if err != nil {
		return types.ActivityHistory{}, err
	}

	if s.publisher != nil && s.channel != "" {
		event := ActivityEvent{
			ID:          saved.ID,
			UserID:      saved.UserID,
			DocumentID:  saved.DocumentID,
			Action:      saved.Action,
			Description: saved.Description,
			Metadata:    saved.Metadata,
			IPAddress:   saved.IPAddress,
			CreatedAt:   saved.CreatedAt,
		}
		attrs := map[string]string{"action": saved.Action, "user_id": strconv.FormatInt(saved.UserID, 10)}
		if _, err := s.publisher.PublishJSON(ctx, s.channel, event, attrs); err != nil {
			s.logger.Warn("publish activity event failed",
				zap.Int64("activity_id", saved.ID),
				zap.String("action", saved.Action),
				zap.Error(err),
			)
		}
	}
	return saved, nil
}

// record appends entry for actor and only logs a failure. It is used after
// a mutation has already been committed.
func (s *ActivityService) record(ctx context.Context, actor Actor, action string, documentID *int64, description string, metadata any) {
	if s == nil {
		return
	}
	_, err := s.Log(ctx, ActivityEntry{
		UserID:      actor.User.ID,
		Action:      action,
		DocumentID:  documentID,
		Description: description,
		Metadata:    metadata,
		IP:          actor.IP,
		UserAgent:   actor.UserAgent,
	})
	if err != nil {
		s.logger.Warn("append activity failed",
			zap.Int64("user_id", actor.User.ID),
			zap.String("action", action),
			zap.Error(err),
		)
	}
}

// List returns the actor's own history. Admins may pass targetUserID to read
// another user's history; for everyone else it is ignored.
func (s *ActivityService) List(ctx context.Context, actor types.User, targetUserID int64, f types.HistoryFilter, p types.Page) ([]types.ActivityHistory, types.PageMeta, error) {
	f.UserID = actor.ID
	switch actor.Role {
	case types.RoleAdmin:
		if targetUserID > 0 {
			f.UserID = targetUserID
		}
	case types.RolePimpinan, types.RoleUser:
	}

	p = normalizePage(p, defaultHistoryPerPage, maxHistoryPerPage)
	items, total, err := s.repo.List(ctx, f, p)
	if err != nil {
		return nil, types.PageMeta{}, err
	}
	return items, types.NewPageMeta(p, total), nil
}

func docRef(id int64) *int64 {
	return &id
}
