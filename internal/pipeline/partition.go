package pipeline

import (
	"net"
	"strconv"

	"github.com/serialx/hashring"

	"firestige.xyz/ozwpan/internal/conversation"
	"firestige.xyz/ozwpan/internal/core"
	"firestige.xyz/ozwpan/internal/metrics"
)

// partitioner spreads raw frames over the decode workers. Frames are keyed by
// their MAC address pair, so both directions of a host/device conversation
// land on the same worker and keep their capture order.
type partitioner struct {
	ring   *hashring.HashRing // consistent hash ring over the partition nodes
	nodes  map[string]int     // node name -> partition index
	queues []chan core.RawPacket
	names  []string
}

func newPartitioner(count, queueSize int) *partitioner {
	if count <= 0 {
		count = 1
	}
	pt := &partitioner{
		nodes:  make(map[string]int, count),
		queues: make([]chan core.RawPacket, count),
		names:  make([]string, count),
	}
	for i := 0; i < count; i++ {
		pt.names[i] = "partition-" + strconv.Itoa(i)
		pt.nodes[pt.names[i]] = i
		pt.queues[i] = make(chan core.RawPacket, queueSize)
	}
	pt.ring = hashring.New(pt.names)
	return pt
}

// index returns the partition for a link-layer frame.
func (pt *partitioner) index(data []byte) int {
	if len(pt.queues) == 1 || len(data) < 12 {
		return 0
	}
	key := conversation.Key(net.HardwareAddr(data[0:6]), net.HardwareAddr(data[6:12]))
	node, ok := pt.ring.GetNode(key)
	if !ok {
		return 0
	}
	return pt.nodes[node]
}

func (pt *partitioner) queue(data []byte) chan core.RawPacket {
	return pt.queues[pt.index(data)]
}

// close closes every queue; workers drain what is left and exit.
func (pt *partitioner) close() {
	for _, q := range pt.queues {
		close(q)
	}
}

// observe publishes the queue lengths.
func (pt *partitioner) observe() {
	for i, q := range pt.queues {
		metrics.PartitionQueueLength.WithLabelValues(pt.names[i]).Set(float64(len(q)))
	}
}
