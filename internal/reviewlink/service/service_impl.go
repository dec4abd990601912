package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/prooflink/internal/clock"
	"github.com/smallbiznis/prooflink/internal/config"
	deliverydomain "github.com/smallbiznis/prooflink/internal/delivery/domain"
	"github.com/smallbiznis/prooflink/internal/observability/metrics"
	parentdomain "github.com/smallbiznis/prooflink/internal/parent/domain"
	"github.com/smallbiznis/prooflink/internal/reviewlink/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const maxLinkTTL = 90 * 24 * time.Hour

type Params struct {
	fx.In

	Cfg          config.Config
	DB           *gorm.DB
	Log          *zap.Logger
	GenID        *snowflake.Node
	Clock        clock.Clock
	Repo         domain.Repository
	DeliveryRepo deliverydomain.Repository
	ParentRepo   parentdomain.Repository
	Metrics      *metrics.Metrics `optional:"true"`
}

type Service struct {
	cfg          config.Config
	db           *gorm.DB
	log          *zap.Logger
	genID        *snowflake.Node
	clock        clock.Clock
	repo         domain.Repository
	deliveryRepo deliverydomain.Repository
	parentRepo   parentdomain.Repository
	metrics      *metrics.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		cfg:          p.Cfg,
		db:           p.DB,
		log:          p.Log.Named("reviewlink.service"),
		genID:        p.GenID,
		clock:        p.Clock,
		repo:         p.Repo,
		deliveryRepo: p.DeliveryRepo,
		parentRepo:   p.ParentRepo,
		metrics:      p.Metrics,
	}
}

func (s *Service) Issue(ctx context.Context, req domain.IssueRequest) (domain.IssueResponse, error) {
	deliveryID, err := snowflake.ParseString(strings.TrimSpace(req.DeliveryID))
	if err != nil || deliveryID == 0 {
		return domain.IssueResponse{}, domain.ErrInvalidID
	}

	ttl := req.TTL
	if ttl == 0 {
		ttl = s.cfg.Review.LinkTTL
	}
	if ttl <= 0 || ttl > maxLinkTTL {
		return domain.IssueResponse{}, domain.ErrInvalidTTL
	}

	delivery, err := s.deliveryRepo.FindByID(ctx, s.db, deliveryID)
	if err != nil {
		return domain.IssueResponse{}, err
	}
	if delivery == nil {
		return domain.IssueResponse{}, domain.ErrDeliveryNotFound
	}

	plain, hash, err := domain.NewToken()
	if err != nil {
		return domain.IssueResponse{}, err
	}

	now := s.clock.Now()
	link := domain.ReviewLink{
		ID:         s.genID.Generate(),
		DeliveryID: deliveryID,
		TokenHash:  hash,
		IsActive:   true,
		ExpiresAt:  now.Add(ttl),
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	// Issuing supersedes any link still open for this delivery, so a
	// delivery has at most one active link at any time.
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.DeactivateForDelivery(ctx, tx, deliveryID, now); err != nil {
			return err
		}
		return s.repo.Insert(ctx, tx, &link)
	})
	if err != nil {
		return domain.IssueResponse{}, err
	}

	if err := s.markShared(ctx, delivery.ParentID); err != nil {
		s.log.Warn("parent transition after issue failed",
			zap.String("parent_id", delivery.ParentID.String()),
			zap.Error(err),
		)
	}

	s.log.Info("review link issued",
		zap.String("link_id", link.ID.String()),
		zap.String("delivery_id", deliveryID.String()),
		zap.Time("expires_at", link.ExpiresAt),
	)

	return domain.IssueResponse{Link: link, Token: plain}, nil
}

// markShared moves the parent to client review when the admin hands the
// link out. Parents already with the client stay put.
func (s *Service) markShared(ctx context.Context, parentID snowflake.ID) error {
	parent, err := s.parentRepo.FindByID(ctx, s.db, parentID)
	if err != nil {
		return err
	}
	if parent == nil || parent.Status == parentdomain.StatusInReviewClient {
		return nil
	}
	if !parent.Status.CanTransition(parentdomain.StatusInReviewClient) {
		return nil
	}

	affected, err := s.parentRepo.UpdateStatus(ctx, s.db, parent.ID, parent.Status, parentdomain.StatusInReviewClient, parent.RevisionCount, s.clock.Now())
	if err != nil {
		return err
	}
	if affected == 0 {
		return parentdomain.ErrConcurrencyConflict
	}
	return nil
}

func (s *Service) Resolve(ctx context.Context, req domain.ResolveRequest) (domain.ResolveResponse, error) {
	hash := domain.HashToken(req.Token)

	link, err := s.repo.FindByTokenHash(ctx, s.db, hash)
	if err != nil {
		return domain.ResolveResponse{}, err
	}
	if link == nil {
		s.metrics.RecordLinkResolve(ctx, domain.ReasonNotFound)
		return domain.ResolveResponse{Reason: domain.ReasonNotFound}, nil
	}

	// Views are recorded even for dead links. A failed write must not
	// break resolution.
	now := s.clock.Now()
	if err := s.repo.RecordView(ctx, s.db, link.ID, now); err != nil {
		s.log.Warn("record view failed",
			zap.String("link_id", link.ID.String()),
			zap.Error(err),
		)
	} else {
		link.ViewsCount++
		link.LastViewedAt = &now
	}

	switch {
	case !link.IsActive:
		s.metrics.RecordLinkResolve(ctx, domain.ReasonInactive)
		return domain.ResolveResponse{Reason: domain.ReasonInactive, Link: *link}, nil
	case link.Expired(now):
		s.metrics.RecordLinkResolve(ctx, domain.ReasonExpired)
		return domain.ResolveResponse{Reason: domain.ReasonExpired, Link: *link}, nil
	}

	s.metrics.RecordLinkResolve(ctx, "valid")
	return domain.ResolveResponse{Valid: true, Link: *link}, nil
}

func (s *Service) Deactivate(ctx context.Context, req domain.DeactivateRequest) error {
	id, err := snowflake.ParseString(strings.TrimSpace(req.LinkID))
	if err != nil || id == 0 {
		return domain.ErrInvalidID
	}

	affected, err := s.repo.DeactivateByID(ctx, s.db, id, s.clock.Now())
	if err != nil {
		return err
	}
	if affected == 0 {
		link, err := s.repo.FindByID(ctx, s.db, id)
		if err != nil {
			return err
		}
		if link == nil {
			return domain.ErrNotFound
		}
		return domain.ErrConcurrencyConflict
	}
	return nil
}
