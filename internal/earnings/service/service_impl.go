package service

import (
	"context"
	"sort"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/prooflink/internal/descriptor"
	"github.com/smallbiznis/prooflink/internal/earnings/domain"
	"github.com/smallbiznis/prooflink/internal/ownerctx"
	parentdomain "github.com/smallbiznis/prooflink/internal/parent/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	Repo       domain.Repository
	ParentRepo parentdomain.Repository
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	repo       domain.Repository
	parentRepo parentdomain.Repository
}

func New(p Params) domain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("earnings.service"),
		repo:       p.Repo,
		parentRepo: p.ParentRepo,
	}
}

func (s *Service) Summary(ctx context.Context, req domain.SummaryRequest) (domain.SummaryResponse, error) {
	ownerID, ok := ownerctx.OwnerIDFromContext(ctx)
	if !ok || ownerID == 0 {
		return domain.SummaryResponse{}, domain.ErrInvalidOwner
	}

	period := req.Period
	if period == "" {
		period = domain.PeriodMonth
	}
	if !period.Valid() {
		return domain.SummaryResponse{}, domain.ErrInvalidPeriod
	}

	items, err := s.repo.ApprovedItems(ctx, s.db, ownerID, req.From, req.To)
	if err != nil {
		return domain.SummaryResponse{}, err
	}

	records := make([]domain.Record, 0, len(items))
	for _, item := range items {
		amount, err := s.amountFor(ctx, item)
		if err != nil {
			return domain.SummaryResponse{}, err
		}
		records = append(records, domain.Record{
			ParentID:   item.ParentID,
			ItemLabel:  item.ItemLabel,
			Amount:     amount,
			ApprovedAt: item.ApprovedAt,
		})
	}

	layout := "2006-01"
	if period == domain.PeriodDay {
		layout = "2006-01-02"
	}

	total := 0
	buckets := make(map[string]*domain.Group)
	for _, record := range records {
		total += record.Amount
		key := record.ApprovedAt.UTC().Format(layout)
		group := buckets[key]
		if group == nil {
			group = &domain.Group{Period: key}
			buckets[key] = group
		}
		group.Amount += record.Amount
		group.Count++
	}

	groups := make([]domain.Group, 0, len(buckets))
	for _, group := range buckets {
		groups = append(groups, *group)
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].Period < groups[j].Period })

	return domain.SummaryResponse{Total: total, Groups: groups, Records: records}, nil
}

// amountFor prices one approval. A single parent's approval covers the
// whole parent, so its line items are summed; a bundled approval pays
// for its label only, from the structured row when present and from the
// label text otherwise.
func (s *Service) amountFor(ctx context.Context, item domain.ApprovedItem) (int, error) {
	if item.Kind == string(parentdomain.KindSingle) {
		return s.parentAmount(ctx, item.ParentID)
	}
	if item.ItemType != "" {
		return domain.PriceFor(descriptor.ItemType(item.ItemType), item.Pages), nil
	}
	return domain.PriceForLabel(item.ItemLabel), nil
}

func (s *Service) parentAmount(ctx context.Context, parentID snowflake.ID) (int, error) {
	items, err := s.parentRepo.ListLineItems(ctx, s.db, parentID)
	if err != nil {
		return 0, err
	}
	amount := 0
	for _, item := range items {
		amount += domain.PriceFor(descriptor.ItemType(item.Type), item.Pages)
	}
	return amount, nil
}
