package activation

import (
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testGate(privileged ...int64) *Gate {
	return NewGate("hunter2", 3, privileged, NewMemAttemptStore(), NewMemActivatedStore(), slog.Default())
}

func TestActivationHappyPath(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()

	g := testGate()

	res, err := g.Start(ctx, 10)
	require.NoError(err)
	assert.Equal(OutcomePromptCode, res.Outcome)
	assert.True(g.Awaiting(10))

	res, err = g.Submit(ctx, 10, "hunter2")
	require.NoError(err)
	assert.Equal(OutcomeActivated, res.Outcome)
	assert.False(g.Awaiting(10))

	active, err := g.IsActivated(ctx, 10)
	require.NoError(err)
	assert.True(active)

	// second start short-circuits
	res, err = g.Start(ctx, 10)
	require.NoError(err)
	assert.Equal(OutcomeAlreadyActive, res.Outcome)
}

func TestActivationExhaustion(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()

	g := testGate()
	_, err := g.Start(ctx, 20)
	require.NoError(err)

	res, err := g.Submit(ctx, 20, "wrong1")
	require.NoError(err)
	assert.Equal(OutcomeWrongCode, res.Outcome)
	assert.Equal(2, res.Remaining)

	res, err = g.Submit(ctx, 20, "wrong2")
	require.NoError(err)
	assert.Equal(OutcomeWrongCode, res.Outcome)
	assert.Equal(1, res.Remaining)

	res, err = g.Submit(ctx, 20, "wrong3")
	require.NoError(err)
	assert.Equal(OutcomeExhausted, res.Outcome)

	// a fourth submission, even correct, is rejected: session is gone and a
	// fresh start refuses too
	res, err = g.Submit(ctx, 20, "hunter2")
	require.NoError(err)
	assert.Equal(OutcomeNotAwaiting, res.Outcome)

	res, err = g.Start(ctx, 20)
	require.NoError(err)
	assert.Equal(OutcomeExhausted, res.Outcome)

	// admin reset restores access to the flow
	require.NoError(g.ResetAttempts(ctx, 20))
	res, err = g.Start(ctx, 20)
	require.NoError(err)
	assert.Equal(OutcomePromptCode, res.Outcome)
}

func TestActivationInvalidInput(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()

	g := testGate()
	_, err := g.Start(ctx, 30)
	require.NoError(err)

	// empty and over-length codes do not consume attempts
	res, err := g.Submit(ctx, 30, "   ")
	require.NoError(err)
	assert.Equal(OutcomeInvalidCode, res.Outcome)

	res, err = g.Submit(ctx, 30, strings.Repeat("x", 51))
	require.NoError(err)
	assert.Equal(OutcomeInvalidCode, res.Outcome)

	assert.True(g.Awaiting(30))

	// still all three attempts available
	for i := 0; i < 2; i++ {
		res, err = g.Submit(ctx, 30, "nope")
		require.NoError(err)
		assert.Equal(OutcomeWrongCode, res.Outcome)
	}
	res, err = g.Submit(ctx, 30, "hunter2")
	require.NoError(err)
	assert.Equal(OutcomeActivated, res.Outcome)
}

func TestActivationCancel(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()

	g := testGate()

	res, err := g.Cancel(ctx, 40)
	require.NoError(err)
	assert.Equal(OutcomeNotAwaiting, res.Outcome)

	_, err = g.Start(ctx, 40)
	require.NoError(err)
	res, err = g.Cancel(ctx, 40)
	require.NoError(err)
	assert.Equal(OutcomeCancelled, res.Outcome)
	assert.False(g.Awaiting(40))
}

func TestActivationPrivileged(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()

	g := testGate(99)

	res, err := g.Start(ctx, 99)
	require.NoError(err)
	assert.Equal(OutcomeAlreadyActive, res.Outcome)

	active, err := g.IsActivated(ctx, 99)
	require.NoError(err)
	assert.True(active)
}
