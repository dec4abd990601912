package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/lib/pq"
	"github.com/smallbiznis/prooflink/internal/clock"
	deliverydomain "github.com/smallbiznis/prooflink/internal/delivery/domain"
	"github.com/smallbiznis/prooflink/internal/feedback/domain"
	"github.com/smallbiznis/prooflink/internal/observability/metrics"
	parentdomain "github.com/smallbiznis/prooflink/internal/parent/domain"
	"github.com/smallbiznis/prooflink/internal/reviewevents"
	reviewlinkdomain "github.com/smallbiznis/prooflink/internal/reviewlink/domain"
	"github.com/smallbiznis/prooflink/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB           *gorm.DB
	Log          *zap.Logger
	GenID        *snowflake.Node
	Clock        clock.Clock
	Repo         domain.Repository
	LinkRepo     reviewlinkdomain.Repository
	DeliveryRepo deliverydomain.Repository
	ParentRepo   parentdomain.Repository
	Metrics      *metrics.Metrics          `optional:"true"`
	Events       *reviewevents.Broadcaster `optional:"true"`
}

type Service struct {
	db           *gorm.DB
	log          *zap.Logger
	genID        *snowflake.Node
	clock        clock.Clock
	repo         domain.Repository
	linkRepo     reviewlinkdomain.Repository
	deliveryRepo deliverydomain.Repository
	parentRepo   parentdomain.Repository
	metrics      *metrics.Metrics
	events       *reviewevents.Broadcaster
}

func New(p Params) domain.Service {
	return &Service{
		db:           p.DB,
		log:          p.Log.Named("feedback.service"),
		genID:        p.GenID,
		clock:        p.Clock,
		repo:         p.Repo,
		linkRepo:     p.LinkRepo,
		deliveryRepo: p.DeliveryRepo,
		parentRepo:   p.ParentRepo,
		metrics:      p.Metrics,
		events:       p.Events,
	}
}

// Submit records the client's decision and advances the parent. The
// link CAS-deactivate, the feedback insert and the parent transition
// share one transaction: a concurrent submit on the same link loses the
// CAS and the whole attempt rolls back.
func (s *Service) Submit(ctx context.Context, req domain.SubmitRequest) (domain.SubmitResponse, error) {
	if err := validate(req); err != nil {
		return domain.SubmitResponse{}, err
	}

	link, err := s.linkRepo.FindByTokenHash(ctx, s.db, reviewlinkdomain.HashToken(req.Token))
	if err != nil {
		return domain.SubmitResponse{}, err
	}
	if link == nil {
		return domain.SubmitResponse{}, domain.ErrNotFound
	}
	if !link.IsActive {
		return domain.SubmitResponse{}, domain.ErrInactiveLink
	}
	now := s.clock.Now()
	if link.Expired(now) {
		return domain.SubmitResponse{}, domain.ErrExpiredLink
	}

	delivery, err := s.deliveryRepo.FindByID(ctx, s.db, link.DeliveryID)
	if err != nil {
		return domain.SubmitResponse{}, err
	}
	if delivery == nil {
		return domain.SubmitResponse{}, domain.ErrNotFound
	}

	parent, err := s.parentRepo.FindByID(ctx, s.db, delivery.ParentID)
	if err != nil {
		return domain.SubmitResponse{}, err
	}
	if parent == nil {
		return domain.SubmitResponse{}, domain.ErrNotFound
	}
	if parent.Status.Terminal() {
		return domain.SubmitResponse{}, domain.ErrStateTransition
	}

	feedback := domain.Feedback{
		ID:            s.genID.Generate(),
		ReviewLinkID:  link.ID,
		DeliveryID:    delivery.ID,
		ParentID:      parent.ID,
		Decision:      req.Decision,
		Rating:        req.Rating,
		FeedbackText:  strings.TrimSpace(req.FeedbackText),
		RevisionNotes: strings.TrimSpace(req.RevisionNotes),
		Attachments:   pq.StringArray(req.Attachments),
		ReviewedBy:    strings.TrimSpace(req.ReviewedBy),
		CreatedAt:     now,
	}

	status := parent.Status
	var progress *parentdomain.ItemProgress

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		affected, err := s.linkRepo.DeactivateByID(ctx, tx, link.ID, now)
		if err != nil {
			return err
		}
		if affected == 0 {
			return domain.ErrConcurrencyConflict
		}

		if err := s.repo.Insert(ctx, tx, &feedback); err != nil {
			if db.IsDuplicateKeyErr(err) {
				return domain.ErrStateTransition
			}
			return err
		}

		switch req.Decision {
		case domain.DecisionApproved:
			status, progress, err = s.applyApproval(ctx, tx, parent)
		case domain.DecisionRevisionRequested:
			status, err = s.transitionParent(ctx, tx, parent, parentdomain.StatusRevisionRequested, parent.RevisionCount+1)
		}
		return err
	})
	if err != nil {
		return domain.SubmitResponse{}, err
	}

	s.metrics.RecordFeedbackDecision(ctx, string(req.Decision))
	s.publish(ctx, parent, delivery, feedback, status)

	return domain.SubmitResponse{
		Feedback:     feedback,
		ParentStatus: status,
		Progress:     progress,
	}, nil
}

func (s *Service) ListByParent(ctx context.Context, req domain.ListByParentRequest) ([]domain.Feedback, error) {
	parentID, err := snowflake.ParseString(strings.TrimSpace(req.ParentID))
	if err != nil || parentID == 0 {
		return nil, domain.ErrNotFound
	}

	items, err := s.repo.ListByParent(ctx, s.db, parentID)
	if err != nil {
		return nil, err
	}

	feedbacks := make([]domain.Feedback, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		feedbacks = append(feedbacks, *item)
	}
	return feedbacks, nil
}

// applyApproval completes a single parent outright. A bundled parent
// completes only once every frozen label holds an approved decision,
// re-read from the rows inside the same transaction.
func (s *Service) applyApproval(ctx context.Context, tx *gorm.DB, parent *parentdomain.Parent) (parentdomain.Status, *parentdomain.ItemProgress, error) {
	if parent.Kind == parentdomain.KindSingle {
		status, err := s.transitionParent(ctx, tx, parent, parentdomain.StatusCompleted, parent.RevisionCount)
		return status, nil, err
	}

	items, err := s.parentRepo.ListLineItems(ctx, tx, parent.ID)
	if err != nil {
		return parent.Status, nil, err
	}
	expected := make([]string, 0, len(items))
	for _, item := range items {
		expected = append(expected, item.Label)
	}

	approved, err := s.repo.ApprovedLabels(ctx, tx, parent.ID)
	if err != nil {
		return parent.Status, nil, err
	}

	progress := parentdomain.ApprovedProgress(expected, approved)
	if !progress.Done() {
		return parent.Status, &progress, nil
	}

	status, err := s.transitionParent(ctx, tx, parent, parentdomain.StatusCompleted, parent.RevisionCount)
	return status, &progress, err
}

// transitionParent CAS-steps the parent to the target, passing through
// in_review_client when the direct edge is missing.
func (s *Service) transitionParent(ctx context.Context, tx *gorm.DB, parent *parentdomain.Parent, target parentdomain.Status, revisionCount int) (parentdomain.Status, error) {
	from := parent.Status
	if from == target {
		return from, nil
	}

	now := s.clock.Now()
	if !from.CanTransition(target) {
		via := parentdomain.StatusInReviewClient
		if !from.CanTransition(via) || !via.CanTransition(target) {
			return from, domain.ErrStateTransition
		}
		affected, err := s.parentRepo.UpdateStatus(ctx, tx, parent.ID, from, via, parent.RevisionCount, now)
		if err != nil {
			return from, err
		}
		if affected == 0 {
			return from, domain.ErrConcurrencyConflict
		}
		from = via
	}

	affected, err := s.parentRepo.UpdateStatus(ctx, tx, parent.ID, from, target, revisionCount, now)
	if err != nil {
		return from, err
	}
	if affected == 0 {
		return from, domain.ErrConcurrencyConflict
	}
	return target, nil
}

func (s *Service) publish(ctx context.Context, parent *parentdomain.Parent, delivery *deliverydomain.Delivery, feedback domain.Feedback, status parentdomain.Status) {
	occurredAt := feedback.CreatedAt.Format(time.RFC3339)
	s.events.Publish(ctx, reviewevents.Event{
		ParentID:   parent.ID.String(),
		DeliveryID: delivery.ID.String(),
		Type:       reviewevents.TypeFeedbackSubmitted,
		Decision:   string(feedback.Decision),
		Version:    delivery.Version,
		OccurredAt: occurredAt,
	})
	if status != parent.Status {
		s.events.Publish(ctx, reviewevents.Event{
			ParentID:   parent.ID.String(),
			Type:       reviewevents.TypeStatusChanged,
			Status:     string(status),
			OccurredAt: occurredAt,
		})
	}
}

func validate(req domain.SubmitRequest) error {
	if !req.Decision.Valid() {
		return domain.ErrInvalidDecision
	}
	if req.Rating != nil && (*req.Rating < 1 || *req.Rating > 5) {
		return domain.ErrInvalidRating
	}
	if req.Decision == domain.DecisionRevisionRequested {
		if strings.TrimSpace(req.RevisionNotes) == "" && len(req.Attachments) == 0 {
			return domain.ErrMissingRevision
		}
	}
	return nil
}
