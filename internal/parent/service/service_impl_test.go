package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/prooflink/internal/clock"
	feedbackdomain "github.com/smallbiznis/prooflink/internal/feedback/domain"
	"github.com/smallbiznis/prooflink/internal/ownerctx"
	"github.com/smallbiznis/prooflink/internal/parent/domain"
	parentrepo "github.com/smallbiznis/prooflink/internal/parent/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type fixture struct {
	db    *gorm.DB
	genID *snowflake.Node
	clock *clock.FakeClock
	svc   domain.Service
	repo  domain.Repository
	owner snowflake.ID
}

type deliveryRow struct {
	ID        snowflake.ID `gorm:"primaryKey"`
	ParentID  snowflake.ID
	ItemLabel string
	CreatedAt time.Time
}

func (deliveryRow) TableName() string { return "deliveries" }

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&domain.Parent{},
		&domain.LineItem{},
		&deliveryRow{},
		&feedbackdomain.Feedback{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	fake := clock.NewFakeClock(time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC))
	repo := parentrepo.Provide()

	svc := New(Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Clock: fake,
		Repo:  repo,
	})

	return &fixture{db: db, genID: node, clock: fake, svc: svc, repo: repo, owner: node.Generate()}
}

func (f *fixture) ctx() context.Context {
	return ownerctx.WithOwnerID(context.Background(), int64(f.owner))
}

func TestCreate_FreezesLineItems(t *testing.T) {
	f := newFixture(t)

	resp, err := f.svc.Create(f.ctx(), domain.CreateParentRequest{
		Descriptor: "2x Post + 1x Miniature + 1x Carousel 6p",
		Kind:       domain.KindBundled,
	})
	require.NoError(t, err)

	assert.Equal(t, domain.StatusNew, resp.Parent.Status)
	assert.Equal(t, f.owner, resp.Parent.OwnerID)
	require.Len(t, resp.LineItems, 4)
	assert.Equal(t, "Post 1", resp.LineItems[0].Label)
	assert.Equal(t, "Post 2", resp.LineItems[1].Label)
	assert.Equal(t, "Miniature", resp.LineItems[2].Label)
	assert.Equal(t, "Carousel 6p", resp.LineItems[3].Label)
	assert.Equal(t, 6, resp.LineItems[3].Pages)

	stored, err := f.repo.ListLineItems(context.Background(), f.db, resp.Parent.ID)
	require.NoError(t, err)
	assert.Len(t, stored, 4)
}

func TestCreate_Validation(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Create(context.Background(), domain.CreateParentRequest{
		Descriptor: "Post",
		Kind:       domain.KindSingle,
	})
	assert.ErrorIs(t, err, domain.ErrInvalidOwner)

	_, err = f.svc.Create(f.ctx(), domain.CreateParentRequest{
		Descriptor: "Post",
		Kind:       domain.Kind("weekly"),
	})
	assert.ErrorIs(t, err, domain.ErrInvalidKind)

	_, err = f.svc.Create(f.ctx(), domain.CreateParentRequest{
		Descriptor: "Banner + Sticker",
		Kind:       domain.KindBundled,
	})
	assert.ErrorIs(t, err, domain.ErrInvalidDescriptor)
}

func TestGetStatus_DeadlineFields(t *testing.T) {
	f := newFixture(t)

	resp, err := f.svc.Create(f.ctx(), domain.CreateParentRequest{
		Descriptor:  "Post",
		Kind:        domain.KindSingle,
		AllowedSecs: 3600,
	})
	require.NoError(t, err)

	status, err := f.svc.GetStatus(context.Background(), domain.GetParentRequest{ID: resp.Parent.ID.String()})
	require.NoError(t, err)
	require.NotNil(t, status.SecondsRemaining)
	assert.Equal(t, int64(3600), *status.SecondsRemaining)
	assert.False(t, status.Late)

	f.clock.Advance(2 * time.Hour)
	status, err = f.svc.GetStatus(context.Background(), domain.GetParentRequest{ID: resp.Parent.ID.String()})
	require.NoError(t, err)
	require.NotNil(t, status.SecondsRemaining)
	assert.Equal(t, int64(-3600), *status.SecondsRemaining)
	assert.True(t, status.Late)
}

func TestGetStatus_BundledProgress(t *testing.T) {
	f := newFixture(t)

	created, err := f.svc.Create(f.ctx(), domain.CreateParentRequest{
		Descriptor: "2x Post",
		Kind:       domain.KindBundled,
	})
	require.NoError(t, err)
	parent := created.Parent

	now := f.clock.Now()
	delivery := deliveryRow{ID: f.genID.Generate(), ParentID: parent.ID, ItemLabel: "Post 1", CreatedAt: now}
	require.NoError(t, f.db.Create(&delivery).Error)
	require.NoError(t, f.db.Create(&feedbackdomain.Feedback{
		ID:           f.genID.Generate(),
		ReviewLinkID: f.genID.Generate(),
		DeliveryID:   delivery.ID,
		ParentID:     parent.ID,
		Decision:     feedbackdomain.DecisionApproved,
		CreatedAt:    now,
	}).Error)

	status, err := f.svc.GetStatus(context.Background(), domain.GetParentRequest{ID: parent.ID.String()})
	require.NoError(t, err)
	require.NotNil(t, status.ItemProgress)
	assert.Equal(t, 1, status.ItemProgress.Completed)
	assert.Equal(t, 2, status.ItemProgress.Total)
}

func TestCancel(t *testing.T) {
	f := newFixture(t)

	created, err := f.svc.Create(f.ctx(), domain.CreateParentRequest{
		Descriptor: "Post",
		Kind:       domain.KindSingle,
	})
	require.NoError(t, err)

	cancelled, err := f.svc.Cancel(context.Background(), domain.GetParentRequest{ID: created.Parent.ID.String()})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCancelled, cancelled.Status)

	_, err = f.svc.Cancel(context.Background(), domain.GetParentRequest{ID: created.Parent.ID.String()})
	assert.ErrorIs(t, err, domain.ErrStateTransition)
}

func TestList_FiltersAndPaginates(t *testing.T) {
	f := newFixture(t)

	for i := 0; i < 3; i++ {
		_, err := f.svc.Create(f.ctx(), domain.CreateParentRequest{
			Descriptor: "Post",
			Kind:       domain.KindSingle,
		})
		require.NoError(t, err)
		f.clock.Advance(time.Minute)
	}

	resp, err := f.svc.List(f.ctx(), domain.ListParentRequest{PageSize: 2})
	require.NoError(t, err)
	assert.Len(t, resp.Parents, 2)
	assert.True(t, resp.HasMore)
	assert.NotEmpty(t, resp.NextPageToken)

	rest, err := f.svc.List(f.ctx(), domain.ListParentRequest{PageSize: 2, PageToken: resp.NextPageToken})
	require.NoError(t, err)
	assert.Len(t, rest.Parents, 1)
	assert.False(t, rest.HasMore)

	byStatus, err := f.svc.List(f.ctx(), domain.ListParentRequest{Status: domain.StatusCompleted})
	require.NoError(t, err)
	assert.Empty(t, byStatus.Parents)
}
