package engine

import (
	"context"
	"fmt"
	"log"
	"net"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/grm84/snmpsim/internal/agent"
	"github.com/grm84/snmpsim/internal/core"
	"github.com/grm84/snmpsim/internal/handlecache"
	"github.com/grm84/snmpsim/internal/traps"
	"github.com/grm84/snmpsim/internal/v3"
	"github.com/grm84/snmpsim/internal/variation"
	"golang.org/x/sys/unix"
)

// Simulator manages multiple UDP listeners for virtual SNMP agents
type Simulator struct {
	listenAddr  string
	listenAddr6 string
	portStart   int
	portEnd     int
	numDevices  int
	dataRoot    string
	v3Config    v3.Config
	v3State     *v3.EngineStateStore
	dataSource  *core.DataSource
	dispatcher  *variation.Registry
	trapManager *traps.Manager

	// Listeners and dispatcher
	listeners map[string]*net.UDPConn     // key -> listener
	agents    map[int]*agent.VirtualAgent // port -> agent

	// Synchronization
	mu      sync.RWMutex
	wg      sync.WaitGroup
	running atomic.Bool

	// Performance
	packetPool       *sync.Pool
	packetDispatcher *PacketDispatcher
}

// NewSimulator creates a new SNMP simulator instance. dataRoot is walked for
// simulation data files (the snmprec grammar); routeFile is accepted for
// command-line compatibility but no longer consulted — context-aware
// dataset selection is now driven entirely by the directory layout under
// dataRoot (see package contextresolve). variationFile, if non-empty, loads
// a prefix-matched global overlay (variation.Binder) applied on top of
// every data file's resolved values.
func NewSimulator(listenAddr string, portStart, portEnd, numDevices int, dataRoot string, routeFile string, variationFile string, v3Config v3.Config) (*Simulator, error) {
	if portStart >= portEnd {
		return nil, fmt.Errorf("portStart must be less than portEnd")
	}

	if numDevices <= 0 {
		return nil, fmt.Errorf("numDevices must be positive")
	}

	if v3Config.Enabled {
		if err := v3Config.Validate(); err != nil {
			return nil, fmt.Errorf("invalid snmpv3 configuration: %w", err)
		}
	}

	v3State, err := v3.NewEngineStateStore("")
	if err != nil {
		return nil, fmt.Errorf("failed to initialize v3 state: %w", err)
	}

	dispatcher := variation.NewRegistry()
	dispatcher.Register("notification", variation.NewNotificationModule())
	dispatcher.Register("dynamic", variation.NewDynamicModule())

	var dataSource *core.DataSource
	if dataRoot != "" {
		dataSource, err = core.NewDataSource(dataRoot, handlecache.DefaultCapacity, dispatcher)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize data source: %w", err)
		}
	}

	if variationFile != "" && dataSource != nil {
		binder, err := variation.LoadBinder(variationFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load variation overlay: %w", err)
		}
		dataSource.SetBinder(binder)
	}

	sim := &Simulator{
		listenAddr: listenAddr,
		portStart:  portStart,
		portEnd:    portEnd,
		numDevices: numDevices,
		dataRoot:   dataRoot,
		v3Config:   v3Config,
		v3State:    v3State,
		dataSource: dataSource,
		dispatcher: dispatcher,
		listeners:  make(map[string]*net.UDPConn),
		agents:     make(map[int]*agent.VirtualAgent),
		packetPool: &sync.Pool{
			New: func() interface{} {
				return make([]byte, 4096)
			},
		},
	}
	sim.packetDispatcher = NewPacketDispatcher(sim.packetPool)

	if err := sim.createVirtualAgents(); err != nil {
		return nil, fmt.Errorf("failed to create virtual agents: %w", err)
	}

	return sim, nil
}

// SetListenAddr6 configures optional IPv6 UDP listener address (e.g. :: or ::1).
func (s *Simulator) SetListenAddr6(addr string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listenAddr6 = addr
}

// createVirtualAgents creates virtual agents mapped to ports. Every agent
// shares the same DataSource; per-agent identity lives entirely in SNMPv3
// configuration and port number.
func (s *Simulator) createVirtualAgents() error {
	numPorts := s.portEnd - s.portStart

	devicesPerPort := s.numDevices / numPorts
	if devicesPerPort == 0 {
		devicesPerPort = 1
	}

	deviceID := 0
	for port := s.portStart; port < s.portEnd && deviceID < s.numDevices; port++ {
		cfg := s.v3Config
		boots := uint32(1)
		if cfg.Enabled {
			if cfg.EngineID == "" {
				cfg.EngineID = v3.GenerateEngineID(fmt.Sprintf("device-%d-port-%d", deviceID, port))
			}
			persistedBoots, err := s.v3State.EnsureBoots(cfg.EngineID)
			if err != nil {
				return fmt.Errorf("failed to persist v3 engine boots: %w", err)
			}
			boots = persistedBoots
		}

		virtualAgent := agent.NewVirtualAgent(
			deviceID,
			port,
			fmt.Sprintf("Device-%d", deviceID),
			s.dataSource,
			cfg,
			boots,
		)

		s.agents[port] = virtualAgent
		deviceID++

		if deviceID >= s.numDevices {
			break
		}
	}

	log.Printf("Created %d virtual agents across ports %d-%d",
		len(s.agents), s.portStart, s.portStart+len(s.agents)-1)

	return nil
}

// SetTrapConfig enables scheduled (cron-driven) trap emission independent of
// the per-record notification variation module, which fires its own traps
// inline with a matching GET/SET regardless of this configuration.
func (s *Simulator) SetTrapConfig(cfg traps.Config) error {
	manager, err := traps.NewManager(cfg)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.trapManager = manager
	return nil
}

// Start initializes all UDP listeners and starts packet handling
func (s *Simulator) Start(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return fmt.Errorf("simulator already running")
	}

	s.mu.Lock()
	if s.trapManager != nil {
		s.trapManager.Start()
	}

	// Create UDP listeners (SO_REUSEPORT and buffer sizes set per socket)
	for port := range s.agents {
		if err := s.startListener(ctx, "udp", s.listenAddr, port, "ipv4"); err != nil {
			s.mu.Unlock()
			s.cleanup()
			return err
		}
		if s.listenAddr6 != "" {
			if err := s.startListener(ctx, "udp6", s.listenAddr6, port, "ipv6"); err != nil {
				s.mu.Unlock()
				s.cleanup()
				return err
			}
		}
	}

	s.mu.Unlock()

	log.Printf("Started %d UDP listeners", len(s.listeners))
	return nil
}

func (s *Simulator) startListener(ctx context.Context, network, listenAddr string, port int, family string) error {
	addr := net.UDPAddr{Port: port, IP: net.ParseIP(listenAddr)}
	conn, err := net.ListenUDP(network, &addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s port %d: %w", family, port, err)
	}
	if err := setSocketOptions(conn); err != nil {
		_ = conn.Close()
		return fmt.Errorf("failed to set socket options on %s port %d: %w", family, port, err)
	}
	key := fmt.Sprintf("%s:%d", family, port)
	s.listeners[key] = conn
	s.wg.Add(1)
	go s.handleListener(ctx, conn, port)
	return nil
}

// handleListener handles incoming packets on a specific port
func (s *Simulator) handleListener(ctx context.Context, conn *net.UDPConn, port int) {
	defer s.wg.Done()

	agent := s.agents[port]

	for {
		select {
		case <-ctx.Done():
			log.Printf("Closing listener on port %d", port)
			return
		default:
		}

		// Get buffer from pool for this packet
		buffer := s.packetPool.Get().([]byte)

		// Set read deadline to allow graceful shutdown
		conn.SetReadDeadline(time.Now().Add(1 * time.Second))

		n, remoteAddr, err := conn.ReadFromUDP(buffer)
		if err != nil {
			s.packetPool.Put(buffer) // Return buffer on error
			if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
				continue
			}
			if s.running.Load() {
				log.Printf("Error reading from port %d: %v", port, err)
			}
			continue
		}

		// Dispatch packet to agent
		response := s.packetDispatcher.DispatchFrom(port, buffer[:n], remoteAddr, agent)
		s.packetDispatcher.RecycleBuffer(buffer)

		if response != nil {
			_, err := conn.WriteToUDP(response, remoteAddr)
			if err != nil {
				log.Printf("Error writing to port %d: %v", port, err)
			}
		}
	}
}

// Stop gracefully shuts down all listeners
func (s *Simulator) Stop() {
	if !s.running.CompareAndSwap(true, false) {
		return
	}

	s.cleanup()
	s.wg.Wait()
	if s.trapManager != nil {
		s.trapManager.Stop()
	}
	if s.dispatcher != nil {
		s.dispatcher.Shutdown()
	}

	log.Printf("All listeners stopped")
}

func (s *Simulator) cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, conn := range s.listeners {
		// Set a past deadline to unblock any pending ReadFromUDP calls
		// before closing the connection.
		conn.SetDeadline(time.Now())
		if err := conn.Close(); err != nil {
			log.Printf("Error closing listener %s: %v", key, err)
		}
	}
	s.listeners = make(map[string]*net.UDPConn)
}

// Statistics returns current simulator statistics
func (s *Simulator) Statistics() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var identifiers []string
	if s.dataSource != nil {
		identifiers = s.dataSource.Identifiers()
	}

	var totalPolls int64
	for _, a := range s.agents {
		if n, ok := a.GetStatistics()["poll_count"].(int64); ok {
			totalPolls += n
		}
	}

	return map[string]interface{}{
		"total_polls":      totalPolls,
		"running":          s.running.Load(),
		"active_listeners": len(s.listeners),
		"virtual_agents":   len(s.agents),
		"port_start":       s.portStart,
		"port_end":         s.portEnd,
		"data_files":       len(identifiers),
	}
}

// setSocketOptions configures UDP socket for optimal performance
func setSocketOptions(conn *net.UDPConn) error {
	// Use SyscallConn to access the raw socket FD without affecting the
	// non-blocking state of the connection (conn.File() would set blocking mode
	// which breaks deadline-based shutdown).
	rawConn, err := conn.SyscallConn()
	if err != nil {
		return fmt.Errorf("failed to get raw conn: %w", err)
	}

	var setsockoptErr error
	err = rawConn.Control(func(fd uintptr) {
		ifd := int(fd)

		// Set SO_RCVBUF to prevent packet loss during burst traffic
		// 256KB buffer should be sufficient for most scenarios
		if err := syscall.SetsockoptInt(ifd, syscall.SOL_SOCKET, syscall.SO_RCVBUF, 256*1024); err != nil {
			setsockoptErr = fmt.Errorf("failed to set SO_RCVBUF: %w", err)
			return
		}

		// Set SO_SNDBUF for transmission
		if err := syscall.SetsockoptInt(ifd, syscall.SOL_SOCKET, syscall.SO_SNDBUF, 256*1024); err != nil {
			setsockoptErr = fmt.Errorf("failed to set SO_SNDBUF: %w", err)
			return
		}

		// Try to enable SO_REUSEPORT if available (Linux 3.9+)
		if err := syscall.SetsockoptInt(ifd, syscall.SOL_SOCKET, int(unix.SO_REUSEPORT), 1); err != nil {
			log.Printf("Warning: SO_REUSEPORT not available (may reduce performance): %v", err)
		}
	})
	if err != nil {
		return fmt.Errorf("rawConn.Control failed: %w", err)
	}
	return setsockoptErr
}
