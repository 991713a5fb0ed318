package entity

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/trackguard/extension/internal/world"
	"github.com/trackguard/extension/pkg/core"
)

const steamID = uint64(76561198000000001)

type stubController struct {
	managed bool
	err     error
}

func (c stubController) ManagesVehicle(context.Context, uint64) (bool, error) {
	return c.managed, c.err
}

func TestIsGone(t *testing.T) {
	w := world.New(nil)

	assert.True(t, IsGone(nil))
	assert.False(t, IsGone(w.Upsert(world.VehicleState{ID: 1})))
	assert.True(t, IsGone(w.Upsert(world.VehicleState{ID: 2, Destroyed: true})))
}

func TestOperator(t *testing.T) {
	w := world.New(nil)
	name := "Alice"

	player := w.Upsert(world.VehicleState{ID: 1, Driver: &core.Occupant{ID: steamID, DisplayName: &name}})
	npc := w.Upsert(world.VehicleState{ID: 2, Driver: &core.Occupant{ID: steamID, IsNPC: true}})
	transient := w.Upsert(world.VehicleState{ID: 3, Driver: &core.Occupant{ID: 12}})
	empty := w.Upsert(world.VehicleState{ID: 4})

	if assert.NotNil(t, Operator(player)) {
		assert.Equal(t, "Alice", Operator(player).Name())
	}
	assert.Nil(t, Operator(npc))
	assert.Nil(t, Operator(transient))
	assert.Nil(t, Operator(empty))
	assert.Nil(t, Operator(nil))
}

func TestPassengers(t *testing.T) {
	w := world.New(nil)
	v := w.Upsert(world.VehicleState{ID: 1})

	assert.Nil(t, Passengers(v))

	assert.NoError(t, w.SetPassengers(1, []core.Occupant{
		{ID: steamID},
		{ID: steamID + 1, IsNPC: true},
		{ID: 5},
	}))

	got := Passengers(v)
	if assert.Len(t, got, 1) {
		assert.Equal(t, steamID, got[0].ID)
		assert.Equal(t, "Unknown Name", got[0].Name())
	}
}

func TestAccessor_IsManagedExternally(t *testing.T) {
	w := world.New(nil)
	v := w.Upsert(world.VehicleState{ID: 1})
	ctx := context.Background()

	assert.False(t, NewAccessor(nil, nil).IsManagedExternally(ctx, v))
	assert.True(t, NewAccessor(stubController{managed: true}, nil).IsManagedExternally(ctx, v))
	assert.False(t, NewAccessor(stubController{managed: false}, nil).IsManagedExternally(ctx, v))
	assert.False(t, NewAccessor(stubController{managed: true, err: errors.New("boom")}, nil).IsManagedExternally(ctx, v))
	assert.False(t, NewAccessor(stubController{managed: true}, nil).IsManagedExternally(ctx, nil))
}
