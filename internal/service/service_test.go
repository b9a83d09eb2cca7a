package service

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/oasis-community/opsbot/internal/capture"
	"github.com/oasis-community/opsbot/internal/config"
	"github.com/oasis-community/opsbot/internal/domain"
	"github.com/oasis-community/opsbot/internal/events"
	"github.com/oasis-community/opsbot/internal/persistence"
	"github.com/oasis-community/opsbot/internal/platform"
	"github.com/oasis-community/opsbot/internal/platform/platformtest"
	"github.com/oasis-community/opsbot/internal/repository"
	sqlitestore "github.com/oasis-community/opsbot/internal/repository/sqlite"
)

const (
	approvalChannel = "approvals"
	rescueChannel   = "rescue-alerts"
	rankingChannel  = "ranking"
)

var (
	member = domain.Actor{ID: "u1", DisplayName: "Alice"}
	staff  = domain.Actor{ID: "s1", DisplayName: "Sam", Staff: true}
)

type testEnv struct {
	repos repository.Repositories
	fake  *platformtest.Fake
	hub   *capture.Hub
	svc   *Services
}

func newTestEnv(t *testing.T, mutate ...func(*Dependencies)) *testEnv {
	t.Helper()
	ctx := context.Background()
	db, err := persistence.OpenSQLite(ctx, filepath.Join(t.TempDir(), "opsbot.db"), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(db.Close)

	env := &testEnv{
		repos: sqlitestore.New(db.DB),
		fake:  platformtest.New(approvalChannel, rescueChannel, rankingChannel),
		hub:   capture.NewHub(nil, zap.NewNop()),
	}
	deps := Dependencies{
		Repos:      env.repos,
		Platform:   env.fake,
		Hub:        env.hub,
		Dispatcher: events.NewInMemoryDispatcher(zap.NewNop()),
		Logger:     zap.NewNop(),
		Discord: config.DiscordConfig{
			ApprovalChannelID:    approvalChannel,
			RescueAlertChannelID: rescueChannel,
			StaffRoleID:          "staff-role",
		},
		Workflow: config.WorkflowConfig{
			EvidenceTimeout:       time.Second,
			RescueEvidenceTimeout: time.Second,
			RankingSize:           10,
			HistorySize:           10,
		},
		Now: func() time.Time { return time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC) },
	}
	for _, m := range mutate {
		m(&deps)
	}
	env.svc = New(deps)
	return env
}

func (e *testEnv) openTicket(t *testing.T, actor domain.Actor) *domain.Ticket {
	t.Helper()
	ticket, err := e.svc.Tickets.Open(context.Background(), actor)
	require.NoError(t, err)
	return ticket
}

// upload simulates the member dropping a file into channelID once a wait is registered.
func (e *testEnv) upload(t *testing.T, actor domain.Actor, channelID, url string) platform.Ref {
	t.Helper()
	require.Eventually(t, func() bool { return e.hub.Len() == 1 }, 2*time.Second, time.Millisecond)
	ref := e.fake.PutMessage(channelID, actor.ID, platform.Notification{Content: "evidence"})
	require.True(t, e.hub.Deliver(platform.InboundMessage{
		ID:          ref.MessageID,
		ChannelID:   channelID,
		AuthorID:    actor.ID,
		Attachments: []platform.Attachment{{URL: url, Filename: "proof.png"}},
	}))
	return ref
}

type submitOutcome struct {
	result *SubmitResult
	err    error
}

func (e *testEnv) submit(t *testing.T, actor domain.Actor, channelID, item string, qty int64) (*SubmitResult, platform.Ref) {
	t.Helper()
	done := make(chan submitOutcome, 1)
	go func() {
		res, err := e.svc.Deliveries.Submit(context.Background(), actor, channelID, Submission{Item: item, Quantity: qty})
		done <- submitOutcome{res, err}
	}()
	evidence := e.upload(t, actor, channelID, "https://cdn.example/"+item+".png")
	out := <-done
	require.NoError(t, out.err)
	return out.result, evidence
}

func (e *testEnv) publicRef(t *testing.T, d *domain.Delivery) platform.Ref {
	t.Helper()
	stored, err := e.repos.Deliveries.GetByID(context.Background(), d.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.PublicChannelID)
	require.NotNil(t, stored.PublicMessageID)
	return platform.Ref{ChannelID: *stored.PublicChannelID, MessageID: *stored.PublicMessageID}
}
