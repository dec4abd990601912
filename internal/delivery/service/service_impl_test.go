package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/prooflink/internal/clock"
	"github.com/smallbiznis/prooflink/internal/config"
	"github.com/smallbiznis/prooflink/internal/delivery/domain"
	deliveryrepo "github.com/smallbiznis/prooflink/internal/delivery/repository"
	parentdomain "github.com/smallbiznis/prooflink/internal/parent/domain"
	parentrepo "github.com/smallbiznis/prooflink/internal/parent/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type fixture struct {
	db      *gorm.DB
	genID   *snowflake.Node
	clock   *clock.FakeClock
	svc     domain.Service
	parents parentdomain.Repository
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&parentdomain.Parent{},
		&parentdomain.LineItem{},
		&domain.Delivery{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	fake := clock.NewFakeClock(time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC))
	parents := parentrepo.Provide()

	svc := New(Params{
		Cfg: config.Config{
			Review: config.ReviewConfig{BatchWindow: 2 * time.Minute},
		},
		DB:         db,
		Log:        zap.NewNop(),
		GenID:      node,
		Clock:      fake,
		Repo:       deliveryrepo.Provide(),
		ParentRepo: parents,
	})

	return &fixture{db: db, genID: node, clock: fake, svc: svc, parents: parents}
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

func TestSubmit_SequentialVersions(t *testing.T) {
	f := newFixture(t)
	parent := f.seedParent(t, parentdomain.KindSingle)

	for want := 1; want <= 3; want++ {
		f.clock.Advance(5 * time.Minute)
		got, err := f.svc.Submit(context.Background(), domain.SubmitRequest{
			ParentID:   parent.ID.String(),
			PayloadRef: "https://cdn.example/v.mp4",
		})
		require.NoError(t, err)
		assert.Equal(t, want, got.Version)
	}

	refreshed, err := f.parents.FindByID(context.Background(), f.db, parent.ID)
	require.NoError(t, err)
	assert.Equal(t, parentdomain.StatusInReviewAdmin, refreshed.Status)
}

func TestSubmit_BatchWindowGrouping(t *testing.T) {
	f := newFixture(t)
	parent := f.seedParent(t, parentdomain.KindBundled, "Post 1", "Post 2")

	first, err := f.svc.Submit(context.Background(), domain.SubmitRequest{
		ParentID:   parent.ID.String(),
		PayloadRef: "ref-1",
		ItemLabel:  "Post 1",
	})
	require.NoError(t, err)

	// Within the window, same label joins the batch.
	f.clock.Advance(90 * time.Second)
	second, err := f.svc.Submit(context.Background(), domain.SubmitRequest{
		ParentID:   parent.ID.String(),
		PayloadRef: "ref-2",
		ItemLabel:  "Post 1",
	})
	require.NoError(t, err)
	assert.Equal(t, first.BatchID, second.BatchID)

	// A different label never shares the batch.
	other, err := f.svc.Submit(context.Background(), domain.SubmitRequest{
		ParentID:   parent.ID.String(),
		PayloadRef: "ref-3",
		ItemLabel:  "Post 2",
	})
	require.NoError(t, err)
	assert.NotEqual(t, first.BatchID, other.BatchID)

	// Past the window, same label starts a fresh batch.
	f.clock.Advance(3 * time.Minute)
	late, err := f.svc.Submit(context.Background(), domain.SubmitRequest{
		ParentID:   parent.ID.String(),
		PayloadRef: "ref-4",
		ItemLabel:  "Post 1",
	})
	require.NoError(t, err)
	assert.NotEqual(t, second.BatchID, late.BatchID)

	batch, err := f.svc.ListBatch(context.Background(), domain.GetDeliveryRequest{ID: first.ID.String()})
	require.NoError(t, err)
	require.Len(t, batch, 2)
	assert.Equal(t, 1, batch[0].Version)
	assert.Equal(t, 2, batch[1].Version)
}

func TestSubmit_LabelValidation(t *testing.T) {
	f := newFixture(t)
	single := f.seedParent(t, parentdomain.KindSingle)
	bundled := f.seedParent(t, parentdomain.KindBundled, "Post 1")

	_, err := f.svc.Submit(context.Background(), domain.SubmitRequest{
		ParentID:   single.ID.String(),
		PayloadRef: "ref",
		ItemLabel:  "Post 1",
	})
	assert.ErrorIs(t, err, domain.ErrInvalidLabel)

	_, err = f.svc.Submit(context.Background(), domain.SubmitRequest{
		ParentID:   bundled.ID.String(),
		PayloadRef: "ref",
	})
	assert.ErrorIs(t, err, domain.ErrInvalidLabel)

	_, err = f.svc.Submit(context.Background(), domain.SubmitRequest{
		ParentID:   bundled.ID.String(),
		PayloadRef: "ref",
		ItemLabel:  "Carousel",
	})
	assert.ErrorIs(t, err, domain.ErrInvalidLabel)
}

func TestSubmit_TerminalParentRejected(t *testing.T) {
	f := newFixture(t)
	parent := f.seedParent(t, parentdomain.KindSingle)

	_, err := f.parents.UpdateStatus(context.Background(), f.db, parent.ID, parentdomain.StatusNew, parentdomain.StatusCancelled, 0, f.clock.Now())
	require.NoError(t, err)

	_, err = f.svc.Submit(context.Background(), domain.SubmitRequest{
		ParentID:   parent.ID.String(),
		PayloadRef: "ref",
	})
	assert.ErrorIs(t, err, domain.ErrParentTerminal)
}

func TestSubmit_Validation(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Submit(context.Background(), domain.SubmitRequest{ParentID: "abc", PayloadRef: "ref"})
	assert.ErrorIs(t, err, domain.ErrInvalidID)

	parent := f.seedParent(t, parentdomain.KindSingle)
	_, err = f.svc.Submit(context.Background(), domain.SubmitRequest{ParentID: parent.ID.String(), PayloadRef: "  "})
	assert.ErrorIs(t, err, domain.ErrInvalidPayload)

	_, err = f.svc.Submit(context.Background(), domain.SubmitRequest{
		ParentID:   f.genID.Generate().String(),
		PayloadRef: "ref",
	})
	assert.ErrorIs(t, err, domain.ErrParentNotFound)
}

// contendedDeliveryStore slips a rival row in between the version read
// and the insert, the interleaving two admins hit when they submit at
// the same moment.
type contendedDeliveryStore struct {
	domain.Repository
	genID *snowflake.Node
	now   time.Time
	fired bool
}

func (s *contendedDeliveryStore) MaxVersion(ctx context.Context, db *gorm.DB, parentID snowflake.ID) (int, error) {
	max, err := s.Repository.MaxVersion(ctx, db, parentID)
	if err != nil || s.fired {
		return max, err
	}
	s.fired = true

	rival := &domain.Delivery{
		ID:          s.genID.Generate(),
		ParentID:    parentID,
		Version:     max + 1,
		PayloadRef:  "ref-rival",
		BatchID:     "batch-rival",
		SubmittedAt: s.now,
		CreatedAt:   s.now,
	}
	if err := s.Repository.Insert(ctx, db, rival); err != nil {
		return 0, err
	}
	return max, nil
}

func TestSubmit_VersionCollisionConflicts(t *testing.T) {
	f := newFixture(t)
	parent := f.seedParent(t, parentdomain.KindSingle)

	store := &contendedDeliveryStore{
		Repository: deliveryrepo.Provide(),
		genID:      f.genID,
		now:        f.clock.Now(),
	}
	svc := New(Params{
		Cfg: config.Config{
			Review: config.ReviewConfig{BatchWindow: 2 * time.Minute},
		},
		DB:         f.db,
		Log:        zap.NewNop(),
		GenID:      f.genID,
		Clock:      f.clock,
		Repo:       store,
		ParentRepo: f.parents,
	})

	_, err := svc.Submit(context.Background(), domain.SubmitRequest{
		ParentID:   parent.ID.String(),
		PayloadRef: "ref-loser",
	})
	assert.ErrorIs(t, err, domain.ErrConcurrencyConflict)

	// The losing attempt rolled back whole, rival row included, so the
	// retry starts clean at version 1.
	got, err := svc.Submit(context.Background(), domain.SubmitRequest{
		ParentID:   parent.ID.String(),
		PayloadRef: "ref-retry",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, got.Version)

	var count int64
	require.NoError(t, f.db.Model(&domain.Delivery{}).Where("parent_id = ?", parent.ID).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestSubmit_ParentUpdatedAtFollowsClock(t *testing.T) {
	f := newFixture(t)
	parent := f.seedParent(t, parentdomain.KindSingle)

	f.clock.Advance(42 * time.Minute)
	_, err := f.svc.Submit(context.Background(), domain.SubmitRequest{
		ParentID:   parent.ID.String(),
		PayloadRef: "ref",
	})
	require.NoError(t, err)

	refreshed, err := f.parents.FindByID(context.Background(), f.db, parent.ID)
	require.NoError(t, err)
	assert.True(t, refreshed.UpdatedAt.Equal(f.clock.Now()))
}
