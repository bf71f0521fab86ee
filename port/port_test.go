package port_test

import (
	"testing"
	"time"

	"github.com/vepnet/tgen/core/testenv"
	"github.com/vepnet/tgen/port"
	"github.com/vepnet/tgen/port/portmock"
)

var makeAR = testenv.MakeAR

func TestTransmitterOrdering(t *testing.T) {
	assert, require := makeAR(t)
	defer port.CloseAll()

	p, hdl := portmock.MakePort("mock0", "02:00:00:00:00:01")
	tx := p.Transmitter()

	now := time.Now()
	// Enqueued out of due-time order; ties broken by enqueue order.
	require.NoError(tx.Send([]byte{3}, now.Add(30*time.Millisecond)))
	require.NoError(tx.Send([]byte{1}, now.Add(10*time.Millisecond)))
	require.NoError(tx.Send([]byte{2}, now.Add(10*time.Millisecond)))
	require.NoError(tx.Send([]byte{4}, now.Add(40*time.Millisecond)))

	time.Sleep(100 * time.Millisecond)
	frames := hdl.Frames()
	require.Len(frames, 4)
	assert.Equal([]byte{1}, frames[0])
	assert.Equal([]byte{2}, frames[1])
	assert.Equal([]byte{3}, frames[2])
	assert.Equal([]byte{4}, frames[3])

	cnt := p.Counters()
	assert.EqualValues(4, cnt.TxFrames)
	assert.EqualValues(4, cnt.TxBytes)
	assert.EqualValues(0, cnt.TxDropped)
	assert.False(cnt.LastTx.IsZero())
}

func TestTransmitterOversize(t *testing.T) {
	assert, _ := makeAR(t)
	defer port.CloseAll()

	p, hdl := portmock.MakePort("mock0", "02:00:00:00:00:01")
	huge := make([]byte, 14+9000+port.VLANAllowance+1)
	assert.ErrorIs(p.Transmitter().Send(huge, time.Now()), port.ErrOversize)
	assert.Zero(hdl.Count())
}

func TestTransmitterLinkDown(t *testing.T) {
	assert, require := makeAR(t)
	defer port.CloseAll()

	p, hdl := portmock.MakePort("mock0", "02:00:00:00:00:01")
	tx := p.Transmitter()

	// Queued frames are flushed when the link goes down.
	require.NoError(tx.Send([]byte{1}, time.Now().Add(200*time.Millisecond)))
	p.SetUp(false)
	time.Sleep(50 * time.Millisecond)
	assert.Zero(hdl.Count())
	assert.EqualValues(1, p.Counters().TxDropped)

	// New sends are accepted and immediately dropped while down.
	assert.ErrorIs(tx.Send([]byte{2}, time.Now()), port.ErrPortUnavailable)
	assert.EqualValues(2, p.Counters().TxDropped)

	p.SetUp(true)
	require.NoError(tx.Send([]byte{3}, time.Now()))
	time.Sleep(50 * time.Millisecond)
	assert.Equal(1, hdl.Count())
}

func TestTransmitterRetry(t *testing.T) {
	assert, require := makeAR(t)
	defer port.CloseAll()

	p, hdl := portmock.MakePort("mock0", "02:00:00:00:00:01")
	hdl.FailWrites = 2
	require.NoError(p.Transmitter().Send([]byte{1}, time.Now()))
	time.Sleep(50 * time.Millisecond)

	assert.Equal(1, hdl.Count())
	cnt := p.Counters()
	assert.EqualValues(1, cnt.TxFrames)
	assert.EqualValues(0, cnt.TxDropped)
}

func TestTransmitterOverflow(t *testing.T) {
	assert, require := makeAR(t)
	defer port.CloseAll()

	p, hdl := portmock.MakePort("mock0", "02:00:00:00:00:01")
	release := make(chan struct{})
	hdl.BlockWrites = release
	defer close(release)
	tx := p.Transmitter()

	// The first frame is due immediately; the writer stalls inside the
	// handle and stops draining the queue.
	require.NoError(tx.Send([]byte{0}, time.Now()))
	time.Sleep(20 * time.Millisecond)

	due := time.Now().Add(time.Hour)
	overflows := 0
	for i := 0; i < port.DefaultQueueCapacity+100; i++ {
		if e := tx.Send([]byte{1}, due); e != nil {
			require.ErrorIs(e, port.ErrOverflow)
			overflows++
		}
	}
	assert.Equal(100, overflows)
	assert.EqualValues(overflows, p.Counters().TxDropped)
}

func TestCloseDrains(t *testing.T) {
	assert, require := makeAR(t)
	defer port.CloseAll()

	p, hdl := portmock.MakePort("mock0", "02:00:00:00:00:01")
	tx := p.Transmitter()
	now := time.Now()
	for i := range 8 {
		require.NoError(tx.Send([]byte{byte(i)}, now.Add(time.Duration(i)*10*time.Millisecond)))
	}

	begin := time.Now()
	require.NoError(tx.Close())
	assert.Less(time.Since(begin), port.ShutdownGrace+100*time.Millisecond)
	assert.Equal(8, hdl.Count())

	assert.ErrorIs(tx.Send([]byte{9}, time.Now()), port.ErrClosed)
}

func TestPortTable(t *testing.T) {
	assert, _ := makeAR(t)
	defer port.CloseAll()

	portmock.MakePort("mock1", "02:00:00:00:00:01")
	portmock.MakePort("mock0", "02:00:00:00:00:02")

	assert.NotNil(port.Get("mock0"))
	assert.Nil(port.Get("mock9"))
	list := port.List()
	assert.Len(list, 2)
	assert.Equal("mock0", list[0].Name())
	assert.Equal("mock1", list[1].Name())
}
