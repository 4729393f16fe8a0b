package kernel

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestQueueSendReceiveRoundTrip(t *testing.T) {
	k, _, _ := newTestKernel(t)
	qid, err := k.CreateQueue("q", 4, 2)
	require.NoError(t, err)

	require.Equal(t, ErrInvalidID, k.QueueSend(qid, []byte("xx"), 0), "element size mismatch must be rejected")

	require.Equal(t, OK, k.QueueSend(qid, []byte("aaaa"), 0))
	require.Equal(t, OK, k.QueueSend(qid, []byte("bbbb"), 0))
	require.Equal(t, ErrFull, k.QueueSend(qid, []byte("cccc"), 0), "queue is at capacity, zero timeout must not block")

	buf := make([]byte, 4)
	require.Equal(t, OK, k.QueueReceive(qid, buf, 0))
	require.Equal(t, "aaaa", string(buf), "FIFO order: first element sent is first received")
	require.Equal(t, OK, k.QueueReceive(qid, buf, 0))
	require.Equal(t, "bbbb", string(buf))
	require.Equal(t, ErrEmpty, k.QueueReceive(qid, buf, 0), "queue is empty, zero timeout must not block")
}

// TestQueueSendBlocksAndHandsOffOnReceive exercises the blocked-sender path:
// a full queue parks a sender, and a subsequent receive both drains the head
// element and copies the blocked sender's data straight into the freed slot
// in the same call, waking the sender.
func TestQueueSendBlocksAndHandsOffOnReceive(t *testing.T) {
	k, p, cfg := newTestKernel(t)
	qid, err := k.CreateQueue("q", 4, 1)
	require.NoError(t, err)

	require.Equal(t, OK, k.QueueSend(qid, []byte("xxxx"), 0))

	report := make(chan string, 2)
	_, err = k.TaskCreate(func() {
		res := k.QueueSend(qid, []byte("yyyy"), noTimeoutSoon)
		report <- fmt.Sprintf("sender:send:%d", res)
		select {}
	}, stackBuf(cfg), Priority(5), "sender")
	require.NoError(t, err)

	k.Start()

	select {
	case msg := <-report:
		t.Fatalf("sender reported before the queue had room: %q", msg)
	default:
	}

	buf := make([]byte, 4)
	driverCall(p, func() {
		require.Equal(t, OK, k.QueueReceive(qid, buf, 0))
	})
	require.Equal(t, "xxxx", string(buf), "receive must drain the element that was already queued")

	awaitReport(t, report, "sender:send:0")

	driverCall(p, func() {
		require.Equal(t, OK, k.QueueReceive(qid, buf, 0))
	})
	require.Equal(t, "yyyy", string(buf), "the woken sender's data must have landed in the queue")
}
