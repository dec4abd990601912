package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/prooflink/internal/clock"
	"github.com/smallbiznis/prooflink/internal/deadline"
	"github.com/smallbiznis/prooflink/internal/descriptor"
	"github.com/smallbiznis/prooflink/internal/ownerctx"
	"github.com/smallbiznis/prooflink/internal/parent/domain"
	"github.com/smallbiznis/prooflink/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Repo  domain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	repo  domain.Repository
}

func New(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("parent.service"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateParentRequest) (domain.CreateParentResponse, error) {
	ownerID, ok := ownerctx.OwnerIDFromContext(ctx)
	if !ok || ownerID == 0 {
		return domain.CreateParentResponse{}, domain.ErrInvalidOwner
	}

	if !req.Kind.Valid() {
		return domain.CreateParentResponse{}, domain.ErrInvalidKind
	}

	text := strings.TrimSpace(req.Descriptor)
	parsed := descriptor.Parse(text)
	if req.Kind == domain.KindBundled && len(parsed) == 0 {
		return domain.CreateParentResponse{}, domain.ErrInvalidDescriptor
	}

	now := s.clock.Now()
	parent := domain.Parent{
		ID:          s.genID.Generate(),
		OwnerID:     ownerID,
		Kind:        req.Kind,
		Descriptor:  text,
		Status:      domain.StatusNew,
		StartedAt:   now,
		AllowedSecs: req.AllowedSecs,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	items := make([]*domain.LineItem, 0, len(parsed))
	for _, item := range parsed {
		items = append(items, &domain.LineItem{
			ID:        s.genID.Generate(),
			ParentID:  parent.ID,
			Label:     item.Label,
			Type:      string(item.Type),
			Pages:     item.Pages,
			Position:  item.Position,
			CreatedAt: now,
		})
	}

	if err := s.repo.Insert(ctx, s.db, &parent, items); err != nil {
		return domain.CreateParentResponse{}, err
	}

	resp := domain.CreateParentResponse{Parent: parent, LineItems: make([]domain.LineItem, 0, len(items))}
	for _, item := range items {
		resp.LineItems = append(resp.LineItems, *item)
	}
	return resp, nil
}

func (s *Service) GetByID(ctx context.Context, req domain.GetParentRequest) (domain.Parent, error) {
	id, err := s.parseID(req.ID)
	if err != nil {
		return domain.Parent{}, err
	}

	item, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return domain.Parent{}, err
	}
	if item == nil {
		return domain.Parent{}, domain.ErrNotFound
	}
	return *item, nil
}

func (s *Service) GetStatus(ctx context.Context, req domain.GetParentRequest) (domain.StatusResponse, error) {
	parent, err := s.GetByID(ctx, req)
	if err != nil {
		return domain.StatusResponse{}, err
	}

	resp := domain.StatusResponse{
		Status:        parent.Status,
		RevisionCount: parent.RevisionCount,
	}

	if parent.AllowedSecs > 0 && !parent.Status.Terminal() {
		now := s.clock.Now()
		allowed := time.Duration(parent.AllowedSecs) * time.Second
		remaining := deadline.SecondsRemaining(parent.StartedAt, allowed, now)
		resp.SecondsRemaining = &remaining
		resp.Late = deadline.IsLate(parent.StartedAt, allowed, now)
	}

	if parent.Kind == domain.KindBundled {
		progress, err := s.itemProgress(ctx, parent.ID)
		if err != nil {
			return domain.StatusResponse{}, err
		}
		resp.ItemProgress = &progress
	}

	return resp, nil
}

func (s *Service) Cancel(ctx context.Context, req domain.GetParentRequest) (domain.Parent, error) {
	parent, err := s.GetByID(ctx, req)
	if err != nil {
		return domain.Parent{}, err
	}

	if _, err := parent.Status.Transition(domain.StatusCancelled); err != nil {
		return domain.Parent{}, err
	}

	affected, err := s.repo.UpdateStatus(ctx, s.db, parent.ID, parent.Status, domain.StatusCancelled, parent.RevisionCount, s.clock.Now())
	if err != nil {
		return domain.Parent{}, err
	}
	if affected == 0 {
		return domain.Parent{}, domain.ErrConcurrencyConflict
	}

	parent.Status = domain.StatusCancelled
	return parent, nil
}

func (s *Service) List(ctx context.Context, req domain.ListParentRequest) (domain.ListParentResponse, error) {
	ownerID, ok := ownerctx.OwnerIDFromContext(ctx)
	if !ok || ownerID == 0 {
		return domain.ListParentResponse{}, domain.ErrInvalidOwner
	}

	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}

	items, err := s.repo.List(ctx, s.db, ownerID, domain.ListParentFilter{
		Status:      req.Status,
		CreatedFrom: req.CreatedFrom,
		CreatedTo:   req.CreatedTo,
	}, pagination.Pagination{
		PageToken: req.PageToken,
		PageSize:  int(pageSize),
	})
	if err != nil {
		return domain.ListParentResponse{}, err
	}

	pageInfo := pagination.BuildCursorPageInfo(items, pageSize, func(parent *domain.Parent) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{
			ID:        parent.ID.String(),
			CreatedAt: parent.CreatedAt.Format(time.RFC3339),
		})
		if err != nil {
			return ""
		}
		return token
	})
	if pageInfo != nil && pageInfo.HasMore && len(items) > int(pageSize) {
		items = items[:pageSize]
	}

	parents := make([]domain.Parent, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		parents = append(parents, *item)
	}

	resp := domain.ListParentResponse{Parents: parents}
	if pageInfo != nil {
		resp.PageInfo = *pageInfo
	}
	return resp, nil
}

// itemProgress re-derives bundled completion from the approved
// feedback rows on every read; no counter is cached.
func (s *Service) itemProgress(ctx context.Context, parentID snowflake.ID) (domain.ItemProgress, error) {
	items, err := s.repo.ListLineItems(ctx, s.db, parentID)
	if err != nil {
		return domain.ItemProgress{}, err
	}

	expected := make([]string, 0, len(items))
	for _, item := range items {
		expected = append(expected, item.Label)
	}

	var approved []string
	err = s.db.WithContext(ctx).Raw(
		`SELECT DISTINCT d.item_label
		 FROM feedbacks f
		 JOIN deliveries d ON d.id = f.delivery_id
		 WHERE f.parent_id = ? AND f.decision = 'approved'`,
		parentID,
	).Scan(&approved).Error
	if err != nil {
		return domain.ItemProgress{}, err
	}

	return domain.ApprovedProgress(expected, approved), nil
}

func (s *Service) parseID(value string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, domain.ErrInvalidID
	}
	return id, nil
}
