package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/prooflink/internal/clock"
	"github.com/smallbiznis/prooflink/internal/config"
	deliverydomain "github.com/smallbiznis/prooflink/internal/delivery/domain"
	deliveryrepo "github.com/smallbiznis/prooflink/internal/delivery/repository"
	deliveryservice "github.com/smallbiznis/prooflink/internal/delivery/service"
	"github.com/smallbiznis/prooflink/internal/feedback/domain"
	feedbackrepo "github.com/smallbiznis/prooflink/internal/feedback/repository"
	parentdomain "github.com/smallbiznis/prooflink/internal/parent/domain"
	parentrepo "github.com/smallbiznis/prooflink/internal/parent/repository"
	reviewlinkdomain "github.com/smallbiznis/prooflink/internal/reviewlink/domain"
	reviewlinkrepo "github.com/smallbiznis/prooflink/internal/reviewlink/repository"
	reviewlinkservice "github.com/smallbiznis/prooflink/internal/reviewlink/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type fixture struct {
	db         *gorm.DB
	genID      *snowflake.Node
	clock      *clock.FakeClock
	parents    parentdomain.Repository
	deliveries deliverydomain.Service
	links      reviewlinkdomain.Service
	svc        domain.Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&parentdomain.Parent{},
		&parentdomain.LineItem{},
		&deliverydomain.Delivery{},
		&reviewlinkdomain.ReviewLink{},
		&domain.Feedback{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	fake := clock.NewFakeClock(time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC))
	cfg := config.Config{
		Review: config.ReviewConfig{
			LinkTTL:     7 * 24 * time.Hour,
			BatchWindow: 2 * time.Minute,
		},
	}
	log := zap.NewNop()
	parents := parentrepo.Provide()
	deliveryStore := deliveryrepo.Provide()
	linkStore := reviewlinkrepo.Provide()

	deliveries := deliveryservice.New(deliveryservice.Params{
		Cfg:        cfg,
		DB:         db,
		Log:        log,
		GenID:      node,
		Clock:      fake,
		Repo:       deliveryStore,
		ParentRepo: parents,
	})
	links := reviewlinkservice.New(reviewlinkservice.Params{
		Cfg:          cfg,
		DB:           db,
		Log:          log,
		GenID:        node,
		Clock:        fake,
		Repo:         linkStore,
		DeliveryRepo: deliveryStore,
		ParentRepo:   parents,
	})
	svc := New(Params{
		DB:           db,
		Log:          log,
		GenID:        node,
		Clock:        fake,
		Repo:         feedbackrepo.Provide(),
		LinkRepo:     linkStore,
		DeliveryRepo: deliveryStore,
		ParentRepo:   parents,
	})

	return &fixture{
		db:         db,
		genID:      node,
		clock:      fake,
		parents:    parents,
		deliveries: deliveries,
		links:      links,
		svc:        svc,
	}
}

func (f *fixture) seedParent(t *testing.T, kind parentdomain.Kind, labels ...string) *parentdomain.Parent {
	t.Helper()

	now := f.clock.Now()
	parent := &parentdomain.Parent{
		ID:        f.genID.Generate(),
		OwnerID:   f.genID.Generate(),
		Kind:      kind,
		Status:    parentdomain.StatusNew,
		StartedAt: now,
		CreatedAt: now,
		UpdatedAt: now,
	}
	items := make([]*parentdomain.LineItem, 0, len(labels))
	for i, label := range labels {
		items = append(items, &parentdomain.LineItem{
			ID:        f.genID.Generate(),
			ParentID:  parent.ID,
			Label:     label,
			Type:      "post",
			Position:  i,
			CreatedAt: now,
		})
	}
	require.NoError(t, f.parents.Insert(context.Background(), f.db, parent, items))
	return parent
}

// deliverAndLink runs one submit-and-share round and returns the token.
func (f *fixture) deliverAndLink(t *testing.T, parent *parentdomain.Parent, label string) string {
	t.Helper()

	delivery, err := f.deliveries.Submit(context.Background(), deliverydomain.SubmitRequest{
		ParentID:   parent.ID.String(),
		PayloadRef: "https://cdn.example/" + label,
		ItemLabel:  label,
	})
	require.NoError(t, err)

	issued, err := f.links.Issue(context.Background(), reviewlinkdomain.IssueRequest{
		DeliveryID: delivery.ID.String(),
	})
	require.NoError(t, err)
	return issued.Token
}

func (f *fixture) status(t *testing.T, id snowflake.ID) parentdomain.Status {
	t.Helper()

	parent, err := f.parents.FindByID(context.Background(), f.db, id)
	require.NoError(t, err)
	require.NotNil(t, parent)
	return parent.Status
}

func TestSubmit_SingleApprovalCompletes(t *testing.T) {
	f := newFixture(t)
	parent := f.seedParent(t, parentdomain.KindSingle)
	token := f.deliverAndLink(t, parent, "")

	rating := 5
	resp, err := f.svc.Submit(context.Background(), domain.SubmitRequest{
		Token:        token,
		Decision:     domain.DecisionApproved,
		Rating:       &rating,
		FeedbackText: "great work",
		ReviewedBy:   "client@example.com",
	})
	require.NoError(t, err)

	assert.Equal(t, parentdomain.StatusCompleted, resp.ParentStatus)
	assert.Nil(t, resp.Progress)
	assert.Equal(t, parentdomain.StatusCompleted, f.status(t, parent.ID))
}

func TestSubmit_BundledLifecycle(t *testing.T) {
	f := newFixture(t)
	parent := f.seedParent(t, parentdomain.KindBundled, "Post", "Miniature")

	// First label approved: parent stays open at 1/2.
	token := f.deliverAndLink(t, parent, "Post")
	resp, err := f.svc.Submit(context.Background(), domain.SubmitRequest{
		Token:    token,
		Decision: domain.DecisionApproved,
	})
	require.NoError(t, err)
	require.NotNil(t, resp.Progress)
	assert.Equal(t, 1, resp.Progress.Completed)
	assert.Equal(t, 2, resp.Progress.Total)
	assert.NotEqual(t, parentdomain.StatusCompleted, resp.ParentStatus)

	// Second label asks for changes: revision loop.
	token = f.deliverAndLink(t, parent, "Miniature")
	resp, err = f.svc.Submit(context.Background(), domain.SubmitRequest{
		Token:         token,
		Decision:      domain.DecisionRevisionRequested,
		RevisionNotes: "logo is cropped",
	})
	require.NoError(t, err)
	assert.Equal(t, parentdomain.StatusRevisionRequested, resp.ParentStatus)

	refreshed, err := f.parents.FindByID(context.Background(), f.db, parent.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, refreshed.RevisionCount)

	// Revised version approved: every label done, parent completes.
	token = f.deliverAndLink(t, parent, "Miniature")
	resp, err = f.svc.Submit(context.Background(), domain.SubmitRequest{
		Token:    token,
		Decision: domain.DecisionApproved,
	})
	require.NoError(t, err)
	require.NotNil(t, resp.Progress)
	assert.Equal(t, 2, resp.Progress.Completed)
	assert.Equal(t, parentdomain.StatusCompleted, resp.ParentStatus)
	assert.Equal(t, parentdomain.StatusCompleted, f.status(t, parent.ID))
}

func TestSubmit_LinkIsSingleUse(t *testing.T) {
	f := newFixture(t)
	parent := f.seedParent(t, parentdomain.KindBundled, "Post", "Miniature")
	token := f.deliverAndLink(t, parent, "Post")

	_, err := f.svc.Submit(context.Background(), domain.SubmitRequest{
		Token:    token,
		Decision: domain.DecisionApproved,
	})
	require.NoError(t, err)

	_, err = f.svc.Submit(context.Background(), domain.SubmitRequest{
		Token:    token,
		Decision: domain.DecisionApproved,
	})
	assert.ErrorIs(t, err, domain.ErrInactiveLink)
}

func TestSubmit_ExpiredLink(t *testing.T) {
	f := newFixture(t)
	parent := f.seedParent(t, parentdomain.KindSingle)
	token := f.deliverAndLink(t, parent, "")

	f.clock.Advance(8 * 24 * time.Hour)
	_, err := f.svc.Submit(context.Background(), domain.SubmitRequest{
		Token:    token,
		Decision: domain.DecisionApproved,
	})
	assert.ErrorIs(t, err, domain.ErrExpiredLink)
}

func TestSubmit_Validation(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Submit(context.Background(), domain.SubmitRequest{
		Token:    "rl_whatever",
		Decision: "maybe",
	})
	assert.ErrorIs(t, err, domain.ErrInvalidDecision)

	rating := 9
	_, err = f.svc.Submit(context.Background(), domain.SubmitRequest{
		Token:    "rl_whatever",
		Decision: domain.DecisionApproved,
		Rating:   &rating,
	})
	assert.ErrorIs(t, err, domain.ErrInvalidRating)

	_, err = f.svc.Submit(context.Background(), domain.SubmitRequest{
		Token:    "rl_whatever",
		Decision: domain.DecisionRevisionRequested,
	})
	assert.ErrorIs(t, err, domain.ErrMissingRevision)

	_, err = f.svc.Submit(context.Background(), domain.SubmitRequest{
		Token:    "rl_unknown",
		Decision: domain.DecisionApproved,
	})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSubmit_RevisionKeepsAttachmentsOnly(t *testing.T) {
	f := newFixture(t)
	parent := f.seedParent(t, parentdomain.KindSingle)
	token := f.deliverAndLink(t, parent, "")

	resp, err := f.svc.Submit(context.Background(), domain.SubmitRequest{
		Token:       token,
		Decision:    domain.DecisionRevisionRequested,
		Attachments: []string{"s3://bucket/markup-1.png"},
	})
	require.NoError(t, err)
	assert.Equal(t, parentdomain.StatusRevisionRequested, resp.ParentStatus)
	require.Len(t, resp.Feedback.Attachments, 1)
}

// staleLinkStore hands back the link as still active while a rival
// submit deactivates it underneath, so the CAS inside the transaction
// finds nothing left to claim.
type staleLinkStore struct {
	reviewlinkdomain.Repository
	db    *gorm.DB
	clock *clock.FakeClock
	fired bool
}

func (s *staleLinkStore) FindByTokenHash(ctx context.Context, db *gorm.DB, hash string) (*reviewlinkdomain.ReviewLink, error) {
	link, err := s.Repository.FindByTokenHash(ctx, db, hash)
	if err != nil || link == nil || s.fired {
		return link, err
	}
	s.fired = true
	if _, err := s.Repository.DeactivateByID(ctx, s.db, link.ID, s.clock.Now()); err != nil {
		return nil, err
	}
	return link, nil
}

func TestSubmit_LinkRaceLoserConflicts(t *testing.T) {
	f := newFixture(t)
	parent := f.seedParent(t, parentdomain.KindSingle)
	token := f.deliverAndLink(t, parent, "")

	svc := New(Params{
		DB:    f.db,
		Log:   zap.NewNop(),
		GenID: f.genID,
		Clock: f.clock,
		Repo:  feedbackrepo.Provide(),
		LinkRepo: &staleLinkStore{
			Repository: reviewlinkrepo.Provide(),
			db:         f.db,
			clock:      f.clock,
		},
		DeliveryRepo: deliveryrepo.Provide(),
		ParentRepo:   f.parents,
	})

	_, err := svc.Submit(context.Background(), domain.SubmitRequest{
		Token:    token,
		Decision: domain.DecisionApproved,
	})
	assert.ErrorIs(t, err, domain.ErrConcurrencyConflict)

	// The loser leaves nothing behind: no feedback row, parent untouched.
	var count int64
	require.NoError(t, f.db.Model(&domain.Feedback{}).Count(&count).Error)
	assert.Zero(t, count)
	assert.Equal(t, parentdomain.StatusInReviewClient, f.status(t, parent.ID))
}
