package notify

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSender struct {
	name     string
	err      error
	titles   []string
	messages []string
}

func (f *fakeSender) Send(_ context.Context, title, message string) error {
	if f.err != nil {
		return f.err
	}
	f.titles = append(f.titles, title)
	f.messages = append(f.messages, message)
	return nil
}

func (f *fakeSender) Name() string { return f.name }

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNotifyDispatchesToAllSenders(t *testing.T) {
	a := &fakeSender{name: "a"}
	b := &fakeSender{name: "b"}
	n := New([]Sender{a, b}, nil, quietLogger())

	err := n.Notify(context.Background(), EventOpportunity, "title", "body")

	require.NoError(t, err)
	assert.Equal(t, []string{"title"}, a.titles)
	assert.Equal(t, []string{"title"}, b.titles)
}

func TestNotifyFiltersEvents(t *testing.T) {
	a := &fakeSender{name: "a"}
	n := New([]Sender{a}, []string{EventError, EventTradeResult}, quietLogger())

	require.NoError(t, n.Notify(context.Background(), EventOpportunity, "skip", ""))
	require.NoError(t, n.Notify(context.Background(), EventError, "keep", ""))

	assert.Equal(t, []string{"keep"}, a.titles)
}

func TestNotifyEmptyAllowListPassesEverything(t *testing.T) {
	a := &fakeSender{name: "a"}
	n := New([]Sender{a}, []string{" ", ""}, quietLogger())

	require.NoError(t, n.Notify(context.Background(), EventTradeStep, "t", ""))
	assert.Len(t, a.titles, 1)
}

func TestNotifyCollectsSenderFailures(t *testing.T) {
	dead := &fakeSender{name: "dead", err: errors.New("timeout")}
	live := &fakeSender{name: "live"}
	n := New([]Sender{dead, live}, nil, quietLogger())

	err := n.Notify(context.Background(), EventError, "title", "body")

	// The healthy channel still got the message.
	assert.Len(t, live.titles, 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 sender(s) failed")
	assert.Contains(t, err.Error(), "dead: timeout")
}

func TestNotifyNoSenders(t *testing.T) {
	n := New(nil, nil, quietLogger())
	assert.NoError(t, n.Notify(context.Background(), EventError, "t", "m"))
}
