package audit

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func correction(vehicle uint64) SpeedCorrection {
	return SpeedCorrection{VehicleID: vehicle, PreviousSpeed: 20, Speed: 10}
}

func vehicleIDs(rows []SpeedCorrection) []uint64 {
	ids := make([]uint64, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.VehicleID)
	}
	return ids
}

func TestPending_TakeEmpties(t *testing.T) {
	p := newPending[SpeedCorrection](0)
	assert.Nil(t, p.take())

	p.add(correction(1))
	p.add(correction(2))
	assert.Equal(t, 2, p.len())

	assert.Equal(t, []uint64{1, 2}, vehicleIDs(p.take()))
	assert.Zero(t, p.len())
	assert.Nil(t, p.take())
}

func TestPending_RestoreKeepsRecordOrder(t *testing.T) {
	p := newPending[SpeedCorrection](0)
	p.add(correction(1))
	p.add(correction(2))

	batch := p.take()
	// recorded while the write was in flight
	p.add(correction(3))

	assert.Zero(t, p.restore(batch))
	assert.Equal(t, []uint64{1, 2, 3}, vehicleIDs(p.take()))
}

func TestPending_LimitDropsOldest(t *testing.T) {
	p := newPending[Incident](3)
	for i := uint64(1); i <= 4; i++ {
		p.add(Incident{VehicleID: i})
	}
	assert.Equal(t, 3, p.len())
	assert.Equal(t, 1, p.droppedRows())

	batch := p.take()
	p.add(Incident{VehicleID: 5})
	p.add(Incident{VehicleID: 6})

	assert.Equal(t, 2, p.restore(batch))
	rows := p.take()
	require.Len(t, rows, 3)
	assert.Equal(t, uint64(4), rows[0].VehicleID)
	assert.Equal(t, uint64(6), rows[2].VehicleID)
	assert.Equal(t, 3, p.droppedRows())
}

func TestPending_ConcurrentAdds(t *testing.T) {
	p := newPending[ProximityWarning](0)

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				p.add(ProximityWarning{VehicleID: uint64(i)})
			}
		}()
	}
	wg.Wait()

	assert.Len(t, p.take(), 800)
}
