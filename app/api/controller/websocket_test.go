package controller

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vecindia/asambleax/pkg/events"
)

func TestClientSubscriptionsDefaultStreamsEverything(t *testing.T) {
	subs := NewClientSubscriptions()

	require.True(t, subs.Wants(events.TypeQuestionOpened))
	require.True(t, subs.Wants(events.TypeVoteRegistered))
	require.True(t, subs.Wants(events.TypeQuorumUpdated))
}

func TestClientSubscriptionsNarrowToEventType(t *testing.T) {
	subs := NewClientSubscriptions()
	subs.Subscribe(events.TypeVoteRegistered)

	require.True(t, subs.Wants(events.TypeVoteRegistered))
	require.False(t, subs.Wants(events.TypeQuestionOpened))
	require.False(t, subs.Wants(events.TypeQuorumUpdated))
}

func TestClientSubscriptionsWildcardRestoresFullStream(t *testing.T) {
	subs := NewClientSubscriptions()
	subs.Subscribe(events.TypeVoteRegistered)
	subs.Subscribe("*")

	require.True(t, subs.Wants(events.TypeQuestionOpened))
	require.True(t, subs.Wants(events.TypeQuorumUpdated))
}

func TestClientSubscriptionsUnsubscribe(t *testing.T) {
	subs := NewClientSubscriptions()
	subs.Subscribe(events.TypeVoteRegistered)
	subs.Subscribe(events.TypeQuorumUpdated)
	subs.Unsubscribe(events.TypeVoteRegistered)

	require.False(t, subs.Wants(events.TypeVoteRegistered))
	require.True(t, subs.Wants(events.TypeQuorumUpdated))
}
