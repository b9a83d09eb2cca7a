package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oasis-community/opsbot/internal/platform"
	"github.com/oasis-community/opsbot/pkg/util/errorutil"
)

type rescueOutcome struct {
	ref platform.Ref
	err error
}

func (e *testEnv) rescue(t *testing.T, details string) (rescueOutcome, platform.Ref) {
	t.Helper()
	done := make(chan rescueOutcome, 1)
	go func() {
		ref, err := e.svc.Rescue.Request(context.Background(), member, "help-desk", details)
		done <- rescueOutcome{ref, err}
	}()
	shot := e.upload(t, member, "help-desk", "https://cdn.example/map.png")
	return <-done, shot
}

func TestRescueRequestPostsAlert(t *testing.T) {
	env := newTestEnv(t)
	out, shot := env.rescue(t, "North bridge, car flipped")
	require.NoError(t, out.err)

	alert, ok := env.fake.Message(out.ref)
	require.True(t, ok)
	assert.Equal(t, "@everyone", alert.Notification.Content)
	assert.Equal(t, "North bridge, car flipped", alert.Notification.Fields[0].Value)
	assert.Equal(t, "https://cdn.example/map.png", alert.Notification.ImageURL)

	_, stillThere := env.fake.Message(shot)
	assert.False(t, stillThere)
}

func TestRescueMissingAlertChannel(t *testing.T) {
	env := newTestEnv(t)
	env.fake.RemoveChannel(rescueChannel)
	out, _ := env.rescue(t, "Downtown")
	require.ErrorIs(t, out.err, ErrRescueUnavailable)
}

func TestRescueValidationAndTimeout(t *testing.T) {
	env := newTestEnv(t, func(d *Dependencies) { d.Workflow.RescueEvidenceTimeout = 20 * time.Millisecond })
	ctx := context.Background()

	_, err := env.svc.Rescue.Request(ctx, member, "help-desk", "   ")
	require.True(t, errorutil.IsCode(err, errorutil.CodeValidation))

	_, err = env.svc.Rescue.Request(ctx, member, "help-desk", "Somewhere")
	require.ErrorIs(t, err, ErrSubmissionTimeout)
	assert.Empty(t, env.fake.Messages(rescueChannel))
}
