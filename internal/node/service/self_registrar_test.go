package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/anthanhphan/go-shard-ring/internal/node/port"
	"github.com/anthanhphan/go-shard-ring/internal/node/service/mocks"
	"github.com/anthanhphan/go-shard-ring/pkg/resilience"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type fakeMembership struct {
	ready   chan struct{}
	changes chan struct{}
}

func newFakeMembership(ready bool) *fakeMembership {
	m := &fakeMembership{ready: make(chan struct{}), changes: make(chan struct{}, 1)}
	if ready {
		close(m.ready)
	}
	return m
}

func (m *fakeMembership) Ready() <-chan struct{}     { return m.ready }
func (m *fakeMembership) Subscribe() <-chan struct{} { return m.changes }

func testRegistrarConfig() RegistrarConfig {
	return RegistrarConfig{
		Directory:        "/data",
		OperationTimeout: time.Second,
		Retry: resilience.RetryPolicy{
			MaxAttempts:    3,
			InitialBackoff: time.Millisecond,
			MaxBackoff:     2 * time.Millisecond,
		},
	}
}

func TestSelfRegistrar_Register(t *testing.T) {
	self := testNode(700)
	payload := encodeNode(t, self)
	const entry = "/data/node-700"

	tests := []struct {
		name           string
		setup          func(gw *mocks.MockCoordinationGateway)
		wantErr        error
		wantRegistered bool
	}{
		{
			name: "FreshEntry",
			setup: func(gw *mocks.MockCoordinationGateway) {
				gomock.InOrder(
					gw.EXPECT().Exists(gomock.Any(), entry).Return(false, nil),
					gw.EXPECT().CreateEphemeral(gomock.Any(), entry, payload).Return(nil),
				)
			},
			wantRegistered: true,
		},
		{
			name: "StaleEntryDeletedThenRecreated",
			setup: func(gw *mocks.MockCoordinationGateway) {
				gomock.InOrder(
					gw.EXPECT().Exists(gomock.Any(), entry).Return(true, nil),
					gw.EXPECT().Delete(gomock.Any(), entry).Return(nil),
					gw.EXPECT().CreateEphemeral(gomock.Any(), entry, payload).Return(nil),
				)
			},
			wantRegistered: true,
		},
		{
			name: "StaleEntryVanishedBeforeDelete",
			setup: func(gw *mocks.MockCoordinationGateway) {
				gomock.InOrder(
					gw.EXPECT().Exists(gomock.Any(), entry).Return(true, nil),
					gw.EXPECT().Delete(gomock.Any(), entry).Return(port.ErrNodeNotFound),
					gw.EXPECT().CreateEphemeral(gomock.Any(), entry, payload).Return(nil),
				)
			},
			wantRegistered: true,
		},
		{
			name: "TransientFailureRetried",
			setup: func(gw *mocks.MockCoordinationGateway) {
				gomock.InOrder(
					gw.EXPECT().Exists(gomock.Any(), entry).Return(false, port.ErrNotConnected),
					gw.EXPECT().Exists(gomock.Any(), entry).Return(false, nil),
					gw.EXPECT().CreateEphemeral(gomock.Any(), entry, payload).Return(nil),
				)
			},
			wantRegistered: true,
		},
		{
			name: "RetriesExhausted",
			setup: func(gw *mocks.MockCoordinationGateway) {
				gw.EXPECT().Exists(gomock.Any(), entry).Return(false, nil).Times(3)
				gw.EXPECT().CreateEphemeral(gomock.Any(), entry, payload).Return(port.ErrNodeExists).Times(3)
			},
			wantErr: resilience.ErrRetriesExhausted,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			gw := mocks.NewMockCoordinationGateway(ctrl)
			tt.setup(gw)

			metrics := &recordingMetrics{}
			reg := NewSelfRegistrar(gw, newFakeMembership(true), newTestRing(t), self, testRegistrarConfig(), metrics)

			err := reg.Register(context.Background())
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
				assert.True(t, errors.Is(err, port.ErrNodeExists), "last attempt error should be kept: %v", err)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.wantRegistered, reg.Registered())
			if tt.wantRegistered {
				assert.Equal(t, []bool{true}, metrics.registered)
			}
		})
	}
}

func TestSelfRegistrar_WaitsForFirstView(t *testing.T) {
	ctrl := gomock.NewController(t)
	// No expectations: any coordination call before the view is ready fails the test.
	gw := mocks.NewMockCoordinationGateway(ctrl)

	reg := NewSelfRegistrar(gw, newFakeMembership(false), newTestRing(t), testNode(700), testRegistrarConfig(), nil)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	err := reg.Register(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, reg.Registered())
}

func TestSelfRegistrar_RunRecoversLostEntry(t *testing.T) {
	ctrl := gomock.NewController(t)
	gw := mocks.NewMockCoordinationGateway(ctrl)
	self := testNode(700)
	payload := encodeNode(t, self)
	const entry = "/data/node-700"

	created := make(chan struct{}, 2)
	checked := make(chan struct{}, 1)
	gomock.InOrder(
		// Initial registration.
		gw.EXPECT().Exists(gomock.Any(), entry).Return(false, nil),
		gw.EXPECT().CreateEphemeral(gomock.Any(), entry, payload).DoAndReturn(
			func(context.Context, string, []byte) error { created <- struct{}{}; return nil }),
		// A view that predates our own entry: nothing to do.
		gw.EXPECT().Exists(gomock.Any(), entry).DoAndReturn(
			func(context.Context, string) (bool, error) { checked <- struct{}{}; return true, nil }),
		// The entry is really gone.
		gw.EXPECT().Exists(gomock.Any(), entry).Return(false, nil),
		gw.EXPECT().Exists(gomock.Any(), entry).Return(false, nil),
		gw.EXPECT().CreateEphemeral(gomock.Any(), entry, payload).DoAndReturn(
			func(context.Context, string, []byte) error { created <- struct{}{}; return nil }),
	)

	membership := newFakeMembership(true)
	// The ring never lists this node, so every change looks like a loss.
	reg := NewSelfRegistrar(gw, membership, newTestRing(t, 100), self, testRegistrarConfig(), nil)

	var transitions []bool
	transitionsCh := make(chan bool, 4)
	reg.OnChange(func(v bool) { transitionsCh <- v })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- reg.Run(ctx) }()

	waitSignal(t, created)
	membership.changes <- struct{}{}
	waitSignal(t, checked)
	membership.changes <- struct{}{}
	waitSignal(t, created)

	cancel()
	require.ErrorIs(t, <-done, context.Canceled)

	close(transitionsCh)
	for v := range transitionsCh {
		transitions = append(transitions, v)
	}
	assert.Equal(t, []bool{true, false, true}, transitions)
	assert.True(t, reg.Registered())
}

func TestSelfRegistrar_RunSkipsWhenSelfListed(t *testing.T) {
	ctrl := gomock.NewController(t)
	gw := mocks.NewMockCoordinationGateway(ctrl)
	self := testNode(700)

	created := make(chan struct{}, 1)
	gw.EXPECT().Exists(gomock.Any(), "/data/node-700").Return(false, nil)
	gw.EXPECT().CreateEphemeral(gomock.Any(), "/data/node-700", gomock.Any()).DoAndReturn(
		func(context.Context, string, []byte) error { created <- struct{}{}; return nil })

	membership := newFakeMembership(true)
	reg := NewSelfRegistrar(gw, membership, newTestRing(t, 100, 700), self, testRegistrarConfig(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- reg.Run(ctx) }()

	waitSignal(t, created)
	membership.changes <- struct{}{}
	// Give the loop a chance to (wrongly) act on the change.
	time.Sleep(20 * time.Millisecond)

	cancel()
	<-done
	assert.True(t, reg.Registered())
}

func TestSelfRegistrar_Deregister(t *testing.T) {
	ctrl := gomock.NewController(t)
	gw := mocks.NewMockCoordinationGateway(ctrl)
	gw.EXPECT().Delete(gomock.Any(), "/data/node-700").Return(port.ErrNodeNotFound)

	reg := NewSelfRegistrar(gw, newFakeMembership(true), newTestRing(t), testNode(700), testRegistrarConfig(), nil)
	require.NoError(t, reg.Deregister(context.Background()))
	assert.Equal(t, "/data/node-700", reg.Path())
}

func waitSignal(t *testing.T, ch <-chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for signal")
	}
}
