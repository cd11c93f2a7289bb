package router

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"clockledger/internal/domain"
)

func testRouter(deduper Deduper) *Router {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return New(log, deduper)
}

func okHandler(calls *int) Handler {
	return func(ctx context.Context, req *Request) (*Response, error) {
		*calls++
		return &Response{Text: "ok"}, nil
	}
}

func TestDispatchUnknownCommand(t *testing.T) {
	r := testRouter(nil)
	_, err := r.Dispatch(context.Background(), &Request{Command: "nope", UserID: 1, Role: domain.RoleDriver})
	require.ErrorIs(t, err, domain.ErrUnknownCommand)
}

func TestDispatchRoleCheck(t *testing.T) {
	r := testRouter(nil)
	calls := 0
	r.Handle(CmdTopup, okHandler(&calls), AdminOnly())

	_, err := r.Dispatch(context.Background(), &Request{Command: CmdTopup, UserID: 1, Role: domain.RoleDriver})
	require.ErrorIs(t, err, domain.ErrUnauthorized)
	require.Zero(t, calls, "handler must not run for denied requests")

	resp, err := r.Dispatch(context.Background(), &Request{Command: CmdTopup, UserID: 9, Role: domain.RoleAdmin})
	require.NoError(t, err)
	require.Equal(t, "ok", resp.Text)
	require.Equal(t, 1, calls)
}

func TestDispatchDropsRedelivery(t *testing.T) {
	r := testRouter(NewMemoryDeduper(time.Minute))
	calls := 0
	r.Handle(CmdClockIn, okHandler(&calls), Deduped())

	req := &Request{Command: CmdClockIn, UserID: 1, Role: domain.RoleDriver, MessageID: 42}

	resp, err := r.Dispatch(context.Background(), req)
	require.NoError(t, err)
	require.NotNil(t, resp)

	resp, err = r.Dispatch(context.Background(), req)
	require.NoError(t, err)
	require.Nil(t, resp, "redelivered message must be dropped silently")
	require.Equal(t, 1, calls)

	// a different message from the same user still goes through
	req2 := &Request{Command: CmdClockIn, UserID: 1, Role: domain.RoleDriver, MessageID: 43}
	_, err = r.Dispatch(context.Background(), req2)
	require.NoError(t, err)
	require.Equal(t, 2, calls)
}

func TestMemoryDeduperExpires(t *testing.T) {
	d := NewMemoryDeduper(20 * time.Millisecond)

	seen, err := d.Seen(context.Background(), "1:42")
	require.NoError(t, err)
	require.False(t, seen)

	seen, err = d.Seen(context.Background(), "1:42")
	require.NoError(t, err)
	require.True(t, seen)

	time.Sleep(40 * time.Millisecond)
	seen, err = d.Seen(context.Background(), "1:42")
	require.NoError(t, err)
	require.False(t, seen, "expired keys are forgotten")
}

func TestCommandsByRole(t *testing.T) {
	r := testRouter(nil)
	calls := 0
	r.Handle(CmdBalance, okHandler(&calls))
	r.Handle(CmdExport, okHandler(&calls), AdminOnly())

	require.ElementsMatch(t, []Command{CmdBalance}, r.Commands(domain.RoleDriver))
	require.ElementsMatch(t, []Command{CmdBalance, CmdExport}, r.Commands(domain.RoleAdmin))
}
