package sqlite

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/oasis-community/opsbot/internal/domain"
	"github.com/oasis-community/opsbot/internal/persistence"
	"github.com/oasis-community/opsbot/internal/repository"
)

func newRepos(t *testing.T) repository.Repositories {
	t.Helper()
	db, err := persistence.OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "opsbot.db"), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(db.Close)
	return New(db.DB)
}

func createDelivery(t *testing.T, repos repository.Repositories, userID string, qty int64) *domain.Delivery {
	t.Helper()
	d := &domain.Delivery{UserID: userID, Item: "Ore", Quantity: qty, EvidenceURL: "https://cdn.example/e.png"}
	require.NoError(t, repos.Deliveries.CreatePending(context.Background(), d))
	return d
}

func TestTicketInsertIfAbsent(t *testing.T) {
	ctx := context.Background()
	repos := newRepos(t)

	_, err := repos.Tickets.Get(ctx, "u1")
	require.ErrorIs(t, err, repository.ErrNotFound)

	inserted, err := repos.Tickets.InsertIfAbsent(ctx, &domain.Ticket{UserID: "u1", ChannelID: "c1"})
	require.NoError(t, err)
	assert.True(t, inserted)

	inserted, err = repos.Tickets.InsertIfAbsent(ctx, &domain.Ticket{UserID: "u1", ChannelID: "c2"})
	require.NoError(t, err)
	assert.False(t, inserted)

	ticket, err := repos.Tickets.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "c1", ticket.ChannelID)

	require.NoError(t, repos.Tickets.Delete(ctx, "u1"))
	require.NoError(t, repos.Tickets.Delete(ctx, "u1"))
	_, err = repos.Tickets.Get(ctx, "u1")
	require.ErrorIs(t, err, repository.ErrNotFound)
}

func TestTicketInsertIfAbsentConcurrent(t *testing.T) {
	ctx := context.Background()
	repos := newRepos(t)

	const workers = 8
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ok, err := repos.Tickets.InsertIfAbsent(ctx, &domain.Ticket{UserID: "u1", ChannelID: string(rune('a' + i))})
			assert.NoError(t, err)
			if ok {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 1, wins)
}

func TestDeliveryLifecycle(t *testing.T) {
	ctx := context.Background()
	repos := newRepos(t)

	d := createDelivery(t, repos, "u1", 12)
	assert.NotZero(t, d.ID)
	assert.Equal(t, domain.DeliveryStatusPending, d.Status)

	require.NoError(t, repos.Deliveries.AttachPrivateNotification(ctx, d.ID, "m1"))
	require.NoError(t, repos.Deliveries.AttachPublicNotification(ctx, d.ID, "approvals", "m2"))
	require.ErrorIs(t, repos.Deliveries.AttachPrivateNotification(ctx, 999, "m1"), repository.ErrNotFound)

	got, err := repos.Deliveries.GetByID(ctx, d.ID)
	require.NoError(t, err)
	require.NotNil(t, got.PrivateMessageID)
	assert.Equal(t, "m1", *got.PrivateMessageID)
	require.NotNil(t, got.PublicMessageID)
	assert.Equal(t, "approvals", *got.PublicChannelID)
	assert.Nil(t, got.DecidedBy)
	assert.Nil(t, got.DecidedAt)

	decided, err := repos.Deliveries.SetStatus(ctx, d.ID, domain.DeliveryStatusApproved, "staff1")
	require.NoError(t, err)
	assert.Equal(t, domain.DeliveryStatusApproved, decided.Status)
	require.NotNil(t, decided.DecidedBy)
	assert.Equal(t, "staff1", *decided.DecidedBy)
	assert.NotNil(t, decided.DecidedAt)
}

func TestDeliverySetStatusIsTerminal(t *testing.T) {
	ctx := context.Background()
	repos := newRepos(t)
	d := createDelivery(t, repos, "u1", 3)

	_, err := repos.Deliveries.SetStatus(ctx, d.ID, domain.DeliveryStatusDenied, "staff1")
	require.NoError(t, err)

	_, err = repos.Deliveries.SetStatus(ctx, d.ID, domain.DeliveryStatusApproved, "staff2")
	require.ErrorIs(t, err, repository.ErrAlreadyDecided)

	got, err := repos.Deliveries.GetByID(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.DeliveryStatusDenied, got.Status)
	assert.Equal(t, "staff1", *got.DecidedBy)

	_, err = repos.Deliveries.SetStatus(ctx, 4242, domain.DeliveryStatusApproved, "staff1")
	require.ErrorIs(t, err, repository.ErrNotFound)

	_, err = repos.Deliveries.SetStatus(ctx, d.ID, domain.DeliveryStatusPending, "staff1")
	require.ErrorIs(t, err, repository.ErrInvalidTransition)
}

func TestDeliverySetStatusConcurrentSingleWinner(t *testing.T) {
	ctx := context.Background()
	repos := newRepos(t)
	d := createDelivery(t, repos, "u1", 3)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		wins    int
		decided int
	)
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repos.Deliveries.SetStatus(ctx, d.ID, domain.DeliveryStatusApproved, "staff")
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				wins++
			case assert.ErrorIs(t, err, repository.ErrAlreadyDecided):
				decided++
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, wins)
	assert.Equal(t, 5, decided)
}

func TestDeliveryListByUser(t *testing.T) {
	ctx := context.Background()
	repos := newRepos(t)
	for i := int64(1); i <= 5; i++ {
		createDelivery(t, repos, "u1", i)
	}
	createDelivery(t, repos, "u2", 100)

	list, err := repos.Deliveries.ListByUser(ctx, "u1", 3)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, int64(5), list[0].Quantity)
	assert.Equal(t, int64(3), list[2].Quantity)
	assert.Greater(t, list[0].ID, list[1].ID)

	empty, err := repos.Deliveries.ListByUser(ctx, "nobody", 10)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestDeliverySumApprovedByUser(t *testing.T) {
	ctx := context.Background()
	repos := newRepos(t)

	approve := func(userID string, qty int64) {
		d := createDelivery(t, repos, userID, qty)
		_, err := repos.Deliveries.SetStatus(ctx, d.ID, domain.DeliveryStatusApproved, "staff")
		require.NoError(t, err)
	}
	approve("U1", 10)
	approve("U2", 30)
	approve("U1", 5)
	denied := createDelivery(t, repos, "U1", 1000)
	_, err := repos.Deliveries.SetStatus(ctx, denied.ID, domain.DeliveryStatusDenied, "staff")
	require.NoError(t, err)
	createDelivery(t, repos, "U3", 500)

	standings, err := repos.Deliveries.SumApprovedByUser(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, []domain.Standing{{UserID: "U2", Total: 30}, {UserID: "U1", Total: 15}}, standings)

	top, err := repos.Deliveries.SumApprovedByUser(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []domain.Standing{{UserID: "U2", Total: 30}}, top)
}

func TestRankingPointer(t *testing.T) {
	ctx := context.Background()
	repos := newRepos(t)

	p, err := repos.Ranking.Get(ctx)
	require.NoError(t, err)
	assert.False(t, p.Active())

	ok, err := repos.Ranking.Activate(ctx, "c1", "m1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repos.Ranking.Activate(ctx, "c2", "m2")
	require.NoError(t, err)
	assert.False(t, ok)

	p, err = repos.Ranking.Get(ctx)
	require.NoError(t, err)
	require.True(t, p.Active())
	assert.Equal(t, "c1", *p.ChannelID)
	assert.Equal(t, "m1", *p.MessageID)

	ok, err = repos.Ranking.ClearIfMatches(ctx, "c1", "other")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = repos.Ranking.ClearIfMatches(ctx, "c1", "m1")
	require.NoError(t, err)
	assert.True(t, ok)

	p, err = repos.Ranking.Get(ctx)
	require.NoError(t, err)
	assert.False(t, p.Active())

	require.NoError(t, repos.Ranking.Clear(ctx))
	require.NoError(t, repos.Ranking.Clear(ctx))
}
