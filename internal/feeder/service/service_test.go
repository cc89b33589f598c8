package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/golang/mock/gomock"
	"github.com/smallbiznis/creditledger/internal/clock"
	creditpooldomain "github.com/smallbiznis/creditledger/internal/creditpool/domain"
	"github.com/smallbiznis/creditledger/internal/creditpool/mocks"
	creditpoolrepository "github.com/smallbiznis/creditledger/internal/creditpool/repository"
	creditpoolservice "github.com/smallbiznis/creditledger/internal/creditpool/service"
	"github.com/smallbiznis/creditledger/internal/feeder/domain"
	ledgerdomain "github.com/smallbiznis/creditledger/internal/ledger/domain"
	ledgerrepository "github.com/smallbiznis/creditledger/internal/ledger/repository"
	ledgerservice "github.com/smallbiznis/creditledger/internal/ledger/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type stubLocker struct {
	acquired bool
	err      error
	released int
}

func (l *stubLocker) Acquire(ctx context.Context, subscriberType, subscriberID string) (func(), bool, error) {
	if l.err != nil || !l.acquired {
		return func() {}, false, l.err
	}
	return func() { l.released++ }, true, nil
}

func TestAllocateCreatesMissingPool(t *testing.T) {
	ctrl := gomock.NewController(t)
	pools := mocks.NewMockService(ctrl)
	locker := &stubLocker{acquired: true}
	svc := New(Params{Log: zap.NewNop(), Pools: pools, Locker: locker})
	ctx := context.Background()

	owner := creditpooldomain.Owner{Type: creditpooldomain.OwnerTypeUser, ID: "u-1"}
	pool := creditpooldomain.CreditPool{ID: 10, OwnerType: owner.Type, OwnerID: owner.ID, Source: creditpooldomain.SourceSubscription}

	gomock.InOrder(
		pools.EXPECT().GetPool(ctx, owner).Return(creditpooldomain.CreditPool{}, creditpooldomain.ErrPoolNotFound),
		pools.EXPECT().CreatePool(ctx, gomock.Any()).DoAndReturn(func(_ context.Context, req creditpooldomain.CreatePoolRequest) (creditpooldomain.CreditPool, error) {
			assert.Equal(t, owner, req.Owner)
			assert.Equal(t, creditpooldomain.SourceSubscription, req.Source)
			return pool, nil
		}),
		pools.EXPECT().AddCredits(ctx, gomock.Any()).DoAndReturn(func(_ context.Context, req creditpooldomain.AddCreditsRequest) (creditpooldomain.MutationResult, error) {
			assert.Equal(t, pool.ID, req.PoolID)
			assert.Equal(t, int64(1000), req.Amount)
			assert.Equal(t, creditpooldomain.SourceSubscription, req.Source)
			assert.Equal(t, "subscription:2026-04", req.IdempotencyKey)
			updated := pool
			updated.TotalCredits = 1000
			return creditpooldomain.MutationResult{Pool: updated, Transaction: ledgerdomain.CreditTransaction{BalanceAfter: 1000}}, nil
		}),
	)

	res, err := svc.AllocateSubscriptionCredits(ctx, domain.AllocateSubscriptionCreditsRequest{
		SubscriberType:  "user",
		SubscriberID:    "u-1",
		Credits:         1000,
		BillingPeriodID: "2026-04",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1000), res.Pool.TotalCredits)
	assert.Equal(t, 1, locker.released)
}

func TestAllocateUsesExistingPool(t *testing.T) {
	ctrl := gomock.NewController(t)
	pools := mocks.NewMockService(ctrl)
	svc := New(Params{Log: zap.NewNop(), Pools: pools})
	ctx := context.Background()

	pool := creditpooldomain.CreditPool{ID: 11, OwnerType: creditpooldomain.OwnerTypeOrganization, OwnerID: "org-1"}
	pools.EXPECT().GetPool(ctx, gomock.Any()).Return(pool, nil)
	pools.EXPECT().CreatePool(gomock.Any(), gomock.Any()).Times(0)
	pools.EXPECT().AddCredits(ctx, gomock.Any()).DoAndReturn(func(_ context.Context, req creditpooldomain.AddCreditsRequest) (creditpooldomain.MutationResult, error) {
		assert.Empty(t, req.IdempotencyKey)
		return creditpooldomain.MutationResult{Pool: pool}, nil
	})

	_, err := svc.AllocateSubscriptionCredits(ctx, domain.AllocateSubscriptionCreditsRequest{
		SubscriberType: "organization",
		SubscriberID:   "org-1",
		Credits:        5,
	})
	require.NoError(t, err)
}

func TestAllocateRejectsInvalidInput(t *testing.T) {
	ctrl := gomock.NewController(t)
	pools := mocks.NewMockService(ctrl)
	svc := New(Params{Log: zap.NewNop(), Pools: pools})
	ctx := context.Background()

	_, err := svc.AllocateSubscriptionCredits(ctx, domain.AllocateSubscriptionCreditsRequest{SubscriberType: "user", SubscriberID: "u", Credits: 0})
	assert.ErrorIs(t, err, domain.ErrInvalidCredits)
	_, err = svc.AllocateSubscriptionCredits(ctx, domain.AllocateSubscriptionCreditsRequest{SubscriberType: "robot", SubscriberID: "u", Credits: 1})
	assert.ErrorIs(t, err, creditpooldomain.ErrInvalidOwnerType)
}

func TestAllocateBusySubscriber(t *testing.T) {
	ctrl := gomock.NewController(t)
	pools := mocks.NewMockService(ctrl)
	svc := New(Params{Log: zap.NewNop(), Pools: pools, Locker: &stubLocker{acquired: false}})

	_, err := svc.AllocateSubscriptionCredits(context.Background(), domain.AllocateSubscriptionCreditsRequest{SubscriberType: "user", SubscriberID: "u", Credits: 1})
	assert.ErrorIs(t, err, domain.ErrSubscriberBusy)
}

func TestAllocateContinuesWhenLockErrors(t *testing.T) {
	ctrl := gomock.NewController(t)
	pools := mocks.NewMockService(ctrl)
	svc := New(Params{Log: zap.NewNop(), Pools: pools, Locker: &stubLocker{err: errors.New("redis down")}})
	ctx := context.Background()

	pools.EXPECT().GetPool(ctx, gomock.Any()).Return(creditpooldomain.CreditPool{ID: 3}, nil)
	pools.EXPECT().AddCredits(ctx, gomock.Any()).Return(creditpooldomain.MutationResult{}, creditpooldomain.ErrConcurrencyConflict)

	_, err := svc.AllocateSubscriptionCredits(ctx, domain.AllocateSubscriptionCreditsRequest{SubscriberType: "user", SubscriberID: "u", Credits: 1})
	assert.ErrorIs(t, err, creditpooldomain.ErrConcurrencyConflict)
}

func TestRedeliveredRenewalIsNotDoubleGranted(t *testing.T) {
	name := strings.ReplaceAll(t.Name(), "/", "_")
	conn, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, conn.AutoMigrate(&creditpooldomain.CreditPool{}, &creditpooldomain.CreditReservation{}, &ledgerdomain.CreditTransaction{}))

	node, err := snowflake.NewNode(3)
	require.NoError(t, err)
	clk := clock.NewFakeClock(time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC))
	ledgerSvc := ledgerservice.New(ledgerservice.Params{DB: conn, Log: zap.NewNop(), GenID: node, Repo: ledgerrepository.Provide(), Clock: clk})
	pools := creditpoolservice.New(creditpoolservice.Params{DB: conn, Log: zap.NewNop(), GenID: node, Repo: creditpoolrepository.Provide(), Ledger: ledgerSvc, Clock: clk})
	svc := New(Params{Log: zap.NewNop(), Pools: pools})
	ctx := context.Background()

	req := domain.AllocateSubscriptionCreditsRequest{SubscriberType: "organization", SubscriberID: "org-9", Credits: 300, BillingPeriodID: "2026-04"}
	first, err := svc.AllocateSubscriptionCredits(ctx, req)
	require.NoError(t, err)
	assert.False(t, first.Replayed)

	second, err := svc.AllocateSubscriptionCredits(ctx, req)
	require.NoError(t, err)
	assert.True(t, second.Replayed)

	req.BillingPeriodID = "2026-05"
	third, err := svc.AllocateSubscriptionCredits(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, int64(600), third.Pool.TotalCredits)

	summary, err := ledgerSvc.SumByPool(ctx, third.Pool.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), summary.TransactionCount)
	assert.Equal(t, int64(600), summary.NetAmount)
}
