package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/prooflink/internal/clock"
	"github.com/smallbiznis/prooflink/internal/config"
	deliverydomain "github.com/smallbiznis/prooflink/internal/delivery/domain"
	deliveryrepo "github.com/smallbiznis/prooflink/internal/delivery/repository"
	parentdomain "github.com/smallbiznis/prooflink/internal/parent/domain"
	parentrepo "github.com/smallbiznis/prooflink/internal/parent/repository"
	"github.com/smallbiznis/prooflink/internal/reviewlink/domain"
	reviewlinkrepo "github.com/smallbiznis/prooflink/internal/reviewlink/repository"
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
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&parentdomain.Parent{},
		&deliverydomain.Delivery{},
		&domain.ReviewLink{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	fake := clock.NewFakeClock(time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC))

	svc := New(Params{
		Cfg: config.Config{
			Review: config.ReviewConfig{LinkTTL: 7 * 24 * time.Hour},
		},
		DB:           db,
		Log:          zap.NewNop(),
		GenID:        node,
		Clock:        fake,
		Repo:         reviewlinkrepo.Provide(),
		DeliveryRepo: deliveryrepo.Provide(),
		ParentRepo:   parentrepo.Provide(),
	})

	return &fixture{db: db, genID: node, clock: fake, svc: svc}
}

func (f *fixture) seedDelivery(t *testing.T) deliverydomain.Delivery {
	t.Helper()

	now := f.clock.Now()
	delivery := deliverydomain.Delivery{
		ID:          f.genID.Generate(),
		ParentID:    f.genID.Generate(),
		Version:     1,
		PayloadRef:  "ref",
		BatchID:     "batch",
		SubmittedAt: now,
		CreatedAt:   now,
	}
	require.NoError(t, f.db.Create(&delivery).Error)
	return delivery
}

func TestIssue_TokenShape(t *testing.T) {
	f := newFixture(t)
	delivery := f.seedDelivery(t)

	resp, err := f.svc.Issue(context.Background(), domain.IssueRequest{DeliveryID: delivery.ID.String()})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(resp.Token, "rl_"))
	assert.Len(t, resp.Token, len("rl_")+64)
	assert.Equal(t, domain.HashToken(resp.Token), resp.Link.TokenHash)
	assert.True(t, resp.Link.IsActive)
	assert.Equal(t, f.clock.Now().Add(7*24*time.Hour), resp.Link.ExpiresAt)
}

func TestIssue_SingleActivePerDelivery(t *testing.T) {
	f := newFixture(t)
	delivery := f.seedDelivery(t)

	first, err := f.svc.Issue(context.Background(), domain.IssueRequest{DeliveryID: delivery.ID.String()})
	require.NoError(t, err)

	second, err := f.svc.Issue(context.Background(), domain.IssueRequest{DeliveryID: delivery.ID.String()})
	require.NoError(t, err)

	stale, err := f.svc.Resolve(context.Background(), domain.ResolveRequest{Token: first.Token})
	require.NoError(t, err)
	assert.False(t, stale.Valid)
	assert.Equal(t, domain.ReasonInactive, stale.Reason)

	fresh, err := f.svc.Resolve(context.Background(), domain.ResolveRequest{Token: second.Token})
	require.NoError(t, err)
	assert.True(t, fresh.Valid)
}

func TestIssue_MovesParentToClientReview(t *testing.T) {
	f := newFixture(t)

	now := f.clock.Now()
	parent := parentdomain.Parent{
		ID:        f.genID.Generate(),
		OwnerID:   f.genID.Generate(),
		Kind:      parentdomain.KindSingle,
		Status:    parentdomain.StatusInReviewAdmin,
		StartedAt: now,
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, f.db.Create(&parent).Error)

	delivery := deliverydomain.Delivery{
		ID:          f.genID.Generate(),
		ParentID:    parent.ID,
		Version:     1,
		PayloadRef:  "ref",
		BatchID:     "batch",
		SubmittedAt: now,
		CreatedAt:   now,
	}
	require.NoError(t, f.db.Create(&delivery).Error)

	_, err := f.svc.Issue(context.Background(), domain.IssueRequest{DeliveryID: delivery.ID.String()})
	require.NoError(t, err)

	var status string
	require.NoError(t, f.db.Raw(`SELECT status FROM parents WHERE id = ?`, parent.ID).Scan(&status).Error)
	assert.Equal(t, string(parentdomain.StatusInReviewClient), status)
}

func TestIssue_Validation(t *testing.T) {
	f := newFixture(t)
	delivery := f.seedDelivery(t)

	_, err := f.svc.Issue(context.Background(), domain.IssueRequest{DeliveryID: "nope"})
	assert.ErrorIs(t, err, domain.ErrInvalidID)

	_, err = f.svc.Issue(context.Background(), domain.IssueRequest{DeliveryID: f.genID.Generate().String()})
	assert.ErrorIs(t, err, domain.ErrDeliveryNotFound)

	_, err = f.svc.Issue(context.Background(), domain.IssueRequest{
		DeliveryID: delivery.ID.String(),
		TTL:        -time.Hour,
	})
	assert.ErrorIs(t, err, domain.ErrInvalidTTL)
}

func TestResolve_Lifecycle(t *testing.T) {
	f := newFixture(t)
	delivery := f.seedDelivery(t)

	issued, err := f.svc.Issue(context.Background(), domain.IssueRequest{
		DeliveryID: delivery.ID.String(),
		TTL:        time.Hour,
	})
	require.NoError(t, err)

	valid, err := f.svc.Resolve(context.Background(), domain.ResolveRequest{Token: issued.Token})
	require.NoError(t, err)
	assert.True(t, valid.Valid)
	assert.Equal(t, 1, valid.Link.ViewsCount)
	require.NotNil(t, valid.Link.LastViewedAt)
	assert.Equal(t, f.clock.Now(), valid.Link.LastViewedAt.UTC())

	// Expiry wins once the TTL has elapsed, but views keep counting.
	f.clock.Advance(2 * time.Hour)
	expired, err := f.svc.Resolve(context.Background(), domain.ResolveRequest{Token: issued.Token})
	require.NoError(t, err)
	assert.False(t, expired.Valid)
	assert.Equal(t, domain.ReasonExpired, expired.Reason)
	assert.Equal(t, 2, expired.Link.ViewsCount)

	missing, err := f.svc.Resolve(context.Background(), domain.ResolveRequest{Token: "rl_deadbeef"})
	require.NoError(t, err)
	assert.False(t, missing.Valid)
	assert.Equal(t, domain.ReasonNotFound, missing.Reason)
}

func TestDeactivate_CAS(t *testing.T) {
	f := newFixture(t)
	delivery := f.seedDelivery(t)

	issued, err := f.svc.Issue(context.Background(), domain.IssueRequest{DeliveryID: delivery.ID.String()})
	require.NoError(t, err)

	require.NoError(t, f.svc.Deactivate(context.Background(), domain.DeactivateRequest{LinkID: issued.Link.ID.String()}))

	err = f.svc.Deactivate(context.Background(), domain.DeactivateRequest{LinkID: issued.Link.ID.String()})
	assert.ErrorIs(t, err, domain.ErrConcurrencyConflict)

	err = f.svc.Deactivate(context.Background(), domain.DeactivateRequest{LinkID: f.genID.Generate().String()})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
