package transport

import (
	"testing"

	"github.com/stretchr/testify/require"

	"kvstore/internal/wire"
)

func TestSimulator_DeliveryIsDelayedOneTick(t *testing.T) {
	sim := NewSimulator()
	a := wire.Address{ID: 1, Port: 7000}
	b := wire.Address{ID: 2, Port: 7001}

	sim.Send(Frame{From: a, To: b, Layer: DHT, Payload: []byte("hi")})

	require.Empty(t, sim.Drain(b), "frame should not be visible before AdvanceTick")

	sim.AdvanceTick()
	got := sim.Drain(b)
	require.Len(t, got, 1)
	require.Equal(t, []byte("hi"), got[0].Payload)

	require.Empty(t, sim.Drain(b), "Drain should clear the queue")
}

func TestSimulator_DrainIsPerAddress(t *testing.T) {
	sim := NewSimulator()
	a := wire.Address{ID: 1, Port: 7000}
	b := wire.Address{ID: 2, Port: 7001}
	c := wire.Address{ID: 3, Port: 7002}

	sim.Send(Frame{From: a, To: b, Payload: []byte("for b")})
	sim.Send(Frame{From: a, To: c, Payload: []byte("for c")})
	sim.AdvanceTick()

	require.Len(t, sim.Drain(b), 1)
	require.Len(t, sim.Drain(c), 1)
}

func TestSimulator_LossRateOneDropsEverything(t *testing.T) {
	sim := NewSimulator().WithSeed(42)
	sim.LossRate = 1
	a := wire.Address{ID: 1, Port: 7000}
	b := wire.Address{ID: 2, Port: 7001}

	for i := 0; i < 50; i++ {
		sim.Send(Frame{From: a, To: b, Payload: []byte("x")})
	}
	sim.AdvanceTick()
	require.Empty(t, sim.Drain(b))
}

func TestSimulator_LossRateZeroKeepsEverything(t *testing.T) {
	sim := NewSimulator().WithSeed(7)
	sim.LossRate = 0
	a := wire.Address{ID: 1, Port: 7000}
	b := wire.Address{ID: 2, Port: 7001}

	for i := 0; i < 20; i++ {
		sim.Send(Frame{From: a, To: b, Payload: []byte("x")})
	}
	sim.AdvanceTick()
	require.Len(t, sim.Drain(b), 20)
}
