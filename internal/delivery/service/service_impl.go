package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"github.com/smallbiznis/prooflink/internal/clock"
	"github.com/smallbiznis/prooflink/internal/config"
	"github.com/smallbiznis/prooflink/internal/delivery/domain"
	"github.com/smallbiznis/prooflink/internal/observability/metrics"
	parentdomain "github.com/smallbiznis/prooflink/internal/parent/domain"
	"github.com/smallbiznis/prooflink/internal/reviewevents"
	"github.com/smallbiznis/prooflink/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	Cfg        config.Config
	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	Repo       domain.Repository
	ParentRepo parentdomain.Repository
	Metrics    *metrics.Metrics          `optional:"true"`
	Events     *reviewevents.Broadcaster `optional:"true"`
}

type Service struct {
	cfg        config.Config
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	clock      clock.Clock
	repo       domain.Repository
	parentRepo parentdomain.Repository
	metrics    *metrics.Metrics
	events     *reviewevents.Broadcaster
}

func New(p Params) domain.Service {
	return &Service{
		cfg:        p.Cfg,
		db:         p.DB,
		log:        p.Log.Named("delivery.service"),
		genID:      p.GenID,
		clock:      p.Clock,
		repo:       p.Repo,
		parentRepo: p.ParentRepo,
		metrics:    p.Metrics,
		events:     p.Events,
	}
}

// Submit records one versioned delivery. The read-max-then-insert runs
// inside a transaction and the (parent_id, version) unique index turns
// a lost race into ErrConcurrencyConflict for the caller to retry.
func (s *Service) Submit(ctx context.Context, req domain.SubmitRequest) (domain.Delivery, error) {
	parentID, err := s.parseID(req.ParentID)
	if err != nil {
		return domain.Delivery{}, err
	}

	payloadRef := strings.TrimSpace(req.PayloadRef)
	if payloadRef == "" {
		return domain.Delivery{}, domain.ErrInvalidPayload
	}

	parent, err := s.parentRepo.FindByID(ctx, s.db, parentID)
	if err != nil {
		return domain.Delivery{}, err
	}
	if parent == nil {
		return domain.Delivery{}, domain.ErrParentNotFound
	}
	if parent.Status.Terminal() {
		return domain.Delivery{}, domain.ErrParentTerminal
	}

	label := strings.TrimSpace(req.ItemLabel)
	if err := s.validateLabel(ctx, parent, label); err != nil {
		return domain.Delivery{}, err
	}

	now := s.clock.Now()
	delivery := domain.Delivery{
		ID:          s.genID.Generate(),
		ParentID:    parentID,
		ItemLabel:   label,
		PayloadRef:  payloadRef,
		SubmittedAt: now,
		CreatedAt:   now,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		max, err := s.repo.MaxVersion(ctx, tx, parentID)
		if err != nil {
			return err
		}
		delivery.Version = max + 1

		delivery.BatchID = uuid.NewString()
		if label != "" {
			latest, err := s.repo.LatestForLabel(ctx, tx, parentID, label)
			if err != nil {
				return err
			}
			if latest != nil && now.Sub(latest.SubmittedAt) <= s.batchWindow() {
				delivery.BatchID = latest.BatchID
			}
		}

		return s.repo.Insert(ctx, tx, &delivery)
	})
	if err != nil {
		if db.IsDuplicateKeyErr(err) {
			return domain.Delivery{}, domain.ErrConcurrencyConflict
		}
		return domain.Delivery{}, err
	}

	if err := s.markSubmitted(ctx, parent); err != nil {
		s.log.Warn("parent transition after submit failed",
			zap.String("parent_id", parentID.String()),
			zap.Error(err),
		)
	}

	s.metrics.RecordDeliverySubmitted(ctx, string(parent.Kind))
	s.events.Publish(ctx, reviewevents.Event{
		ParentID:   parentID.String(),
		DeliveryID: delivery.ID.String(),
		Type:       reviewevents.TypeDeliverySubmitted,
		Version:    delivery.Version,
		OccurredAt: now.Format(time.RFC3339),
	})
	return delivery, nil
}

func (s *Service) GetByID(ctx context.Context, req domain.GetDeliveryRequest) (domain.Delivery, error) {
	id, err := s.parseID(req.ID)
	if err != nil {
		return domain.Delivery{}, err
	}

	item, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return domain.Delivery{}, err
	}
	if item == nil {
		return domain.Delivery{}, domain.ErrNotFound
	}
	return *item, nil
}

func (s *Service) ListBatch(ctx context.Context, req domain.GetDeliveryRequest) ([]domain.Delivery, error) {
	delivery, err := s.GetByID(ctx, req)
	if err != nil {
		return nil, err
	}

	items, err := s.repo.ListBatch(ctx, s.db, delivery.BatchID)
	if err != nil {
		return nil, err
	}

	batch := make([]domain.Delivery, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		batch = append(batch, *item)
	}
	return batch, nil
}

func (s *Service) validateLabel(ctx context.Context, parent *parentdomain.Parent, label string) error {
	if parent.Kind == parentdomain.KindSingle {
		if label != "" {
			return domain.ErrInvalidLabel
		}
		return nil
	}

	if label == "" {
		return domain.ErrInvalidLabel
	}

	items, err := s.parentRepo.ListLineItems(ctx, s.db, parent.ID)
	if err != nil {
		return err
	}
	for _, item := range items {
		if item.Label == label {
			return nil
		}
	}
	return domain.ErrInvalidLabel
}

// markSubmitted moves the parent into admin review. The revision loop
// re-enters through here after a revision_requested decision.
func (s *Service) markSubmitted(ctx context.Context, parent *parentdomain.Parent) error {
	from := parent.Status
	if from == parentdomain.StatusInReviewAdmin {
		return nil
	}

	now := s.clock.Now()
	if from == parentdomain.StatusNew || from == parentdomain.StatusRevisionRequested {
		affected, err := s.parentRepo.UpdateStatus(ctx, s.db, parent.ID, from, parentdomain.StatusActive, parent.RevisionCount, now)
		if err != nil {
			return err
		}
		if affected == 0 {
			return parentdomain.ErrConcurrencyConflict
		}
		from = parentdomain.StatusActive
	}

	if !from.CanTransition(parentdomain.StatusInReviewAdmin) {
		return nil
	}

	affected, err := s.parentRepo.UpdateStatus(ctx, s.db, parent.ID, from, parentdomain.StatusInReviewAdmin, parent.RevisionCount, now)
	if err != nil {
		return err
	}
	if affected == 0 {
		return parentdomain.ErrConcurrencyConflict
	}
	return nil
}

func (s *Service) batchWindow() time.Duration {
	if s.cfg.Review.BatchWindow > 0 {
		return s.cfg.Review.BatchWindow
	}
	return 2 * time.Minute
}

func (s *Service) parseID(value string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, domain.ErrInvalidID
	}
	return id, nil
}
