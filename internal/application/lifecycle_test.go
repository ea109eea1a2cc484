package application

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPageLifecycle_MountUnmount(t *testing.T) {
	f := newFixture(SessionOptions{})
	var bound []*CameraSession
	lc := NewPageLifecycle(
		func() *CameraSession { return f.session },
		func(s *CameraSession) { bound = append(bound, s) },
		make(chanTrigger),
		nil,
	)
	ctx := context.Background()

	require.NoError(t, lc.Mount(ctx))
	require.NoError(t, lc.Mount(ctx))
	assert.Same(t, f.session, lc.Current())
	assert.Len(t, f.media.streams, 1)

	require.NoError(t, lc.Unmount())
	require.NoError(t, lc.Unmount())

	assert.Nil(t, lc.Current())
	assert.True(t, f.media.streams[0].allStopped())
	assert.True(t, f.wakeLocks.locks[0].released)
	require.Len(t, bound, 2)
	assert.Same(t, f.session, bound[0])
	assert.Nil(t, bound[1])
}

func TestPageLifecycle_RemountCreatesFreshSession(t *testing.T) {
	var fixtures []*sessionFixture
	lc := NewPageLifecycle(func() *CameraSession {
		f := newFixture(SessionOptions{})
		fixtures = append(fixtures, f)
		return f.session
	}, nil, nil, nil)
	ctx := context.Background()

	require.NoError(t, lc.Mount(ctx))
	require.NoError(t, lc.Unmount())
	require.NoError(t, lc.Mount(ctx))

	require.Len(t, fixtures, 2)
	assert.Same(t, fixtures[1].session, lc.Current())
	require.NoError(t, lc.Unmount())
}

func TestPageLifecycle_NativeTriggerExitsQuietly(t *testing.T) {
	f := newFixture(SessionOptions{Native: true})
	lc := NewPageLifecycle(func() *CameraSession { return f.session }, nil, make(chanTrigger), nil)

	require.NoError(t, lc.Mount(context.Background()))
	require.NoError(t, lc.Unmount())
}
