package relay

import (
	"context"
	"strd/internal/models"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShieldPublisher_BlockAndUnblock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.shields.ApplyBlock(ctx, gameHandle, models.ReasonDowntime))
	cmd, err := f.shields.Command(ctx, gameToken)
	require.NoError(t, err)
	assert.True(t, cmd.Blocked)
	assert.Equal(t, models.ReasonDowntime, cmd.Reason)
	assert.Equal(t, gameHandle, cmd.Handle)
	assert.True(t, cmd.UpdatedAt.Equal(f.clock.Now()))

	require.NoError(t, f.shields.RemoveBlock(ctx, gameHandle))
	cmd, err = f.shields.Command(ctx, gameToken)
	require.NoError(t, err)
	assert.False(t, cmd.Blocked)
	assert.Equal(t, models.ReasonNone, cmd.Reason)
}

func TestShieldPublisher_Commands(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.shields.ApplyBlock(ctx, gameHandle, models.ReasonLearningGoal))
	require.NoError(t, f.shields.RemoveBlock(ctx, readerHandle))

	cmds, err := f.shields.Commands(ctx)
	require.NoError(t, err)
	require.Len(t, cmds, 2)
	assert.Less(t, cmds[0].TokenHash, cmds[1].TokenHash)
}

func TestShieldPublisher_MissingCommand(t *testing.T) {
	f := newFixture(t)
	_, err := f.shields.Command(context.Background(), gameToken)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestShieldPublisher_StoreDown(t *testing.T) {
	f := newFixture(t)
	f.store.Fail(true)
	err := f.shields.ApplyBlock(context.Background(), gameHandle, models.ReasonDowntime)
	assert.ErrorIs(t, err, models.ErrStoreUnavailable)
}
