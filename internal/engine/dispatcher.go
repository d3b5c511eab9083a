package engine

import (
	"net"
	"sync"

	"github.com/grm84/snmpsim/internal/agent"
)

// PacketDispatcher routes incoming UDP packets to virtual agents and
// recycles their buffers back into the listener's pool.
type PacketDispatcher struct {
	bufferPool *sync.Pool
}

// NewPacketDispatcher creates a new packet dispatcher
func NewPacketDispatcher(bufferPool *sync.Pool) *PacketDispatcher {
	return &PacketDispatcher{
		bufferPool: bufferPool,
	}
}

// Dispatch hands packet to a without peer address information.
func (pd *PacketDispatcher) Dispatch(port int, packet []byte, a *agent.VirtualAgent) []byte {
	return a.HandlePacket(packet)
}

// DispatchFrom hands packet to a along with the peer address it arrived
// from, so context resolution can consider the requester's transport
// address.
func (pd *PacketDispatcher) DispatchFrom(port int, packet []byte, remoteAddr *net.UDPAddr, a *agent.VirtualAgent) []byte {
	return a.HandlePacketFrom(packet, remoteAddr, port)
}

// RecycleBuffer returns a buffer to the pool
func (pd *PacketDispatcher) RecycleBuffer(buf []byte) {
	if bufCap := cap(buf); bufCap == 4096 { // Only recycle standard-sized buffers
		pd.bufferPool.Put(buf)
	}
}
