package services

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/esurat/apiserver/internal/metrics"
	"github.com/esurat/apiserver/types"
)

const (
	msgMeetingRole   = "Only leadership can record meeting decisions"
	msgMeetingAccess = "Unauthorized to access this meeting"
)

// DecisionInput is the payload of POST /meetings/{id}/decision.
type DecisionInput struct {
	Decision     string     `json:"disposisi_rapat" validate:"required,min=10"`
	DecisionDate types.Date `json:"tgl_hasil_rapat" validate:"notfuture"`
	Status       string     `json:"status" validate:"omitempty,oneof=Selesai"`
	Note         string     `json:"catatan"`
}

// MeetingService lists meetings and records their decisions.
type MeetingService struct {
	repo     DocumentRepository
	activity *ActivityService
	metrics  *metrics.Metrics
	logger   *zap.Logger
	now      func() time.Time
}

func NewMeetingService(repo DocumentRepository, activity *ActivityService, logger *zap.Logger) *MeetingService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MeetingService{repo: repo, activity: activity, logger: logger, now: time.Now}
}

func (s *MeetingService) WithMetrics(m *metrics.Metrics) *MeetingService {
	s.metrics = m
	return s
}

// List returns documents in the Rapat phase visible to actor.
func (s *MeetingService) List(ctx context.Context, actor types.User, f types.MeetingFilter, p types.Page) ([]types.Document, types.PageMeta, error) {
	p = normalizePage(p, defaultDocumentPerPage, maxDocumentPerPage)
	docs, total, err := s.repo.ListMeetings(ctx, viewer(actor), f, p)
	if err != nil {
		return nil, types.PageMeta{}, err
	}
	return docs, types.NewPageMeta(p, total), nil
}

// RecordDecision stores the outcome of a meeting. The status is kept unless
// the input closes the document.
func (s *MeetingService) RecordDecision(ctx context.Context, actor Actor, id int64, in DecisionInput) (types.Document, error) {
	switch actor.User.Role {
	case types.RolePimpinan:
	case types.RoleAdmin, types.RoleUser:
		return types.Document{}, forbidden(msgMeetingRole)
	default:
		return types.Document{}, forbidden(msgMeetingRole)
	}
	if err := validateStruct(in); err != nil {
		return types.Document{}, err
	}

	doc, err := s.repo.Get(ctx, id)
	if err != nil {
		return types.Document{}, err
	}
	if doc.Status != types.StatusRapat {
		return types.Document{}, ErrNotMeeting
	}
	if !sameInstitution(actor.User, doc) {
		return types.Document{}, forbidden(msgMeetingAccess)
	}

	decidedAt := s.now()
	if !in.DecisionDate.IsZero() {
		decidedAt = in.DecisionDate.Time
	}
	status := types.DocumentStatus(in.Status)
	if err := s.repo.RecordDecision(ctx, id, in.Decision, decidedAt, status, in.Note); err != nil {
		return types.Document{}, err
	}
	s.metrics.DocumentWritten("decision")
	s.activity.record(ctx, actor, types.ActionMeetingDecision, docRef(doc.ID),
		"Recorded meeting decision for: "+doc.NoSurat,
		map[string]string{"decision": in.Decision},
	)
	return s.repo.Get(ctx, id)
}
