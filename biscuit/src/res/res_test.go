package res_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"limits"
	"res"
)

func TestChargeFailsOnceSharedLimitExhausted(t *testing.T) {
	var lim limits.Sysatomic_t
	lim.Given(2)

	r := res.Init(&lim)
	assert.True(t, r.Charge())
	assert.True(t, r.Charge())
	assert.False(t, r.Charge())
	assert.Equal(t, 2, r.Held())
}

func TestUnchargeReturnsUnitsToSharedLimit(t *testing.T) {
	var lim limits.Sysatomic_t
	lim.Given(1)

	r := res.Init(&lim)
	require := assert.New(t)
	require.True(r.Charge())
	require.False(r.Charge()) // limit of 1 exhausted

	r.Uncharge(1)
	require.Equal(0, r.Held())
	require.True(r.Charge()) // unit is back in the shared pool
}

func TestReleaseAllGivesBackEverythingHeld(t *testing.T) {
	var lim limits.Sysatomic_t
	lim.Given(3)

	r := res.Init(&lim)
	r.Charge()
	r.Charge()
	r.Charge()

	r.ReleaseAll()
	assert.Equal(t, 0, r.Held())

	other := res.Init(&lim)
	assert.True(t, other.Charge())
	assert.True(t, other.Charge())
	assert.True(t, other.Charge())
	assert.False(t, other.Charge())
}

func TestUnchargeMoreThanHeldPanics(t *testing.T) {
	var lim limits.Sysatomic_t
	lim.Given(1)
	r := res.Init(&lim)
	r.Charge()

	assert.Panics(t, func() { r.Uncharge(2) })
}
