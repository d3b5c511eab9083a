package agent

import (
	"bytes"
	"errors"
	"fmt"
	"log"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/grm84/snmpsim/internal/contextresolve"
	"github.com/grm84/snmpsim/internal/core"
	"github.com/grm84/snmpsim/internal/datafile"
	"github.com/grm84/snmpsim/internal/oid"
	"github.com/grm84/snmpsim/internal/record"
	"github.com/grm84/snmpsim/internal/v3"
	"github.com/gosnmp/gosnmp"
)

// VirtualAgent represents a single simulated SNMP agent. One agent owns one
// UDP port and one SNMPv3 identity; the simulation data itself lives in a
// DataSource shared across every agent in the process.
type VirtualAgent struct {
	deviceID      int
	port          int
	sysName       string
	v3Config      v3.Config
	v3EngineBoots uint32
	dataSource    *core.DataSource
	deviceOverlay map[string]interface{} // per-agent value overrides, checked before the data source
	startTime     time.Time
	lastPoll      time.Time
	pollCount     atomic.Int64

	mu sync.RWMutex
}

// NewVirtualAgent creates a new virtual SNMP agent. dataSource may be nil at
// construction time and attached later via SetDataSource, to support
// sharing one DataSource across agents created before it finishes loading.
func NewVirtualAgent(deviceID int, port int, sysName string, dataSource *core.DataSource, v3Config v3.Config, v3EngineBoots uint32) *VirtualAgent {
	if v3Config.Enabled && v3Config.Username == "" {
		v3Config.Username = "simuser"
	}
	if v3Config.Enabled && v3Config.EngineID == "" {
		v3Config.EngineID = v3.GenerateEngineID(fmt.Sprintf("device-%d", deviceID))
	}

	return &VirtualAgent{
		deviceID:      deviceID,
		port:          port,
		sysName:       sysName,
		v3Config:      v3Config,
		v3EngineBoots: v3EngineBoots,
		dataSource:    dataSource,
		deviceOverlay: make(map[string]interface{}),
		startTime:     time.Now(),
		lastPoll:      time.Now(),
	}
}

// SetDataSource assigns (or replaces) the shared simulation data source.
func (va *VirtualAgent) SetDataSource(ds *core.DataSource) {
	va.mu.Lock()
	defer va.mu.Unlock()
	va.dataSource = ds
}

// HandlePacket processes an incoming SNMP packet with no known peer address
// (e.g. a unit test or loopback call) and returns a response.
func (va *VirtualAgent) HandlePacket(packet []byte) []byte {
	return va.HandlePacketFrom(packet, nil, va.port)
}

// HandlePacketFrom processes an incoming SNMP packet received from
// remoteAddr on the given listener port and returns a response. remoteAddr
// may be nil, in which case context resolution falls back to the
// transport-agnostic candidates only.
func (va *VirtualAgent) HandlePacketFrom(packet []byte, remoteAddr *net.UDPAddr, port int) []byte {
	count := va.pollCount.Add(1)
	va.lastPoll = time.Now()

	// Log packet reception (sample every 1000th for high-volume scenarios)
	if count%1000 == 0 {
		log.Printf("Device %d (Port %d): Received packet #%d",
			va.deviceID, va.port, count)
	}

	req, reportOID, err := va.decodePacket(packet)
	if err != nil {
		log.Printf("Device %d: Failed to parse SNMP packet: %v", va.deviceID, err)
		return nil
	}

	if reportOID != "" {
		return va.handleV3USMReport(req, reportOID)
	}

	if va.shouldSendV3DiscoveryReport(req) {
		return va.handleV3DiscoveryReport(req)
	}

	reqCtx := va.buildContextRequest(req, remoteAddr)

	switch req.PDUType {
	case gosnmp.GetNextRequest, gosnmp.GetBulkRequest:
		return va.handleWalk(req, reqCtx)
	case gosnmp.SetRequest:
		return va.handleSetRequest(req, reqCtx)
	default:
		return va.handleGetRequest(req, reqCtx)
	}
}

// buildContextRequest derives the (transport, engine, context) tuple the
// resolver needs from the decoded packet and the UDP peer address.
func (va *VirtualAgent) buildContextRequest(req *gosnmp.SnmpPacket, remoteAddr *net.UDPAddr) contextresolve.Request {
	var domain, address string
	if remoteAddr != nil {
		if ip4 := remoteAddr.IP.To4(); ip4 != nil {
			domain = contextresolve.UDPv4Prefix
			address = ip4.String()
		} else {
			domain = contextresolve.UDPv6Prefix
			address = remoteAddr.IP.String()
		}
	}

	contextName := req.Community
	contextEngineID := ""
	if req.Version == gosnmp.Version3 {
		contextEngineID = req.ContextEngineID
		if req.ContextName != "" {
			contextName = req.ContextName
		}
	}

	return contextresolve.Request{
		TransportDomain:  domain,
		TransportAddress: address,
		ContextEngineID:  contextEngineID,
		ContextName:      contextName,
	}
}

func (va *VirtualAgent) decodePacket(packet []byte) (*gosnmp.SnmpPacket, string, error) {
	if va.v3Config.Enabled {
		// Use the full auth+priv decoder for ALL v3 traffic.
		// gosnmp reads msgFlags FROM the packet bytes — if the packet is noAuthNoPriv
		// (e.g. discovery), no HMAC verification is attempted even when auth params are
		// present in the decoder. This lets us handle both discovery and authenticated
		// packets in a single pass.
		usmParams := va.v3Config.BuildUSM(va.v3EngineBoots, uint32(time.Since(va.startTime).Seconds()))
		// Pre-initialize keys; without this, gosnmp calcPacketDigest gets a nil SecretKey.
		if initErr := usmParams.InitSecurityKeys(); initErr != nil {
			log.Printf("Device %d: Failed to initialize USM security keys: %v", va.deviceID, initErr)
		}
		secureDecoder := gosnmp.GoSNMP{
			Version:            gosnmp.Version3,
			SecurityModel:      gosnmp.UserSecurityModel,
			MsgFlags:           va.v3Config.SecurityLevel(),
			SecurityParameters: usmParams,
		}

		// Save a copy of raw bytes before SnmpDecodePacket modifies them.
		// SnmpDecodePacket zeroes the auth params and decrypts the privacy section
		// in-place. For HMAC verification, we need the original encrypted bytes
		// with only the auth params zeroed (not decrypted).
		rawCopy := make([]byte, len(packet))
		copy(rawCopy, packet)

		req, err := secureDecoder.SnmpDecodePacket(packet)
		if err == nil && req.Version == gosnmp.Version3 {
			// SnmpDecodePacket does NOT verify the incoming HMAC (it only decrypts).
			// We must manually verify authentication when the packet requests auth.
			if req.MsgFlags&gosnmp.AuthNoPriv != 0 {
				if authErr := va.verifyIncomingHMAC(rawCopy, req, usmParams); authErr != nil {
					// Auth verification failed: return WrongDigest report
					return req, v3.USMStatsWrongDigestOID, nil
				}
			}
			if reportOID := va.validateUSMWindow(req); reportOID != "" {
				return req, reportOID, nil
			}
			return req, "", nil
		}

		// Auth/digest failure: decode with noAuthNoPriv to extract packet structure
		// for the Report PDU, then signal WrongDigest.
		if err != nil && isAuthError(err) {
			noAuthDecoder := gosnmp.GoSNMP{
				Version:            gosnmp.Version3,
				SecurityModel:      gosnmp.UserSecurityModel,
				MsgFlags:           gosnmp.NoAuthNoPriv,
				SecurityParameters: &gosnmp.UsmSecurityParameters{UserName: va.v3Config.Username},
			}
			baseReq, baseErr := noAuthDecoder.SnmpDecodePacket(packet)
			if baseErr == nil {
				return baseReq, v3.USMStatsWrongDigestOID, nil
			}
			return nil, "", err
		}

		// If secure decode failed for non-auth reasons, the packet is not v3.
		if err != nil {
			// fall through to v2c / v1
		}
	}

	decoderV2 := gosnmp.GoSNMP{Version: gosnmp.Version2c, Community: "public"}
	req, err := decoderV2.SnmpDecodePacket(packet)
	if err == nil {
		return req, "", nil
	}

	decoderV1 := gosnmp.GoSNMP{Version: gosnmp.Version1, Community: "public"}
	req, err = decoderV1.SnmpDecodePacket(packet)
	if err == nil {
		return req, "", nil
	}

	return nil, "", err
}

// marshalPacket ensures USM SecretKey is initialized from the passphrase and
// the per-packet AES/DES salt is allocated before calling MarshalMsg.
// gosnmp's MarshalMsg uses SecretKey directly for HMAC signing and relies on
// InitPacket (which sets PrivacyParameters/salt) for the encryption IV.
// Callers that build fresh UsmSecurityParameters must call both before sending.
func marshalPacket(packet *gosnmp.SnmpPacket) ([]byte, error) {
	if packet.Version == gosnmp.Version3 && packet.SecurityParameters != nil {
		if usm, ok := packet.SecurityParameters.(*gosnmp.UsmSecurityParameters); ok && usm != nil {
			if err := usm.InitSecurityKeys(); err != nil {
				return nil, fmt.Errorf("init v3 security keys: %w", err)
			}
			if err := usm.InitPacket(packet); err != nil {
				return nil, fmt.Errorf("init v3 packet salt: %w", err)
			}
		}
	}
	return packet.MarshalMsg()
}

// isAuthError returns true when the error indicates an HMAC authentication failure.
func isAuthError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gosnmp.ErrWrongDigest) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "digest") || strings.Contains(msg, "authentication")
}

// verifyIncomingHMAC manually verifies the HMAC of an incoming authenticated SNMPv3 packet.
// rawCopy is a copy of the original packet bytes (before SnmpDecodePacket modifies them).
// The function zeros the auth digest bytes in rawCopy and computes HMAC, then compares
// with the received digest from the decoded packet's SecurityParameters.
func (va *VirtualAgent) verifyIncomingHMAC(rawCopy []byte, req *gosnmp.SnmpPacket, localUSM *gosnmp.UsmSecurityParameters) error {
	usmParams, ok := req.SecurityParameters.(*gosnmp.UsmSecurityParameters)
	if !ok || len(usmParams.AuthenticationParameters) == 0 {
		return nil // no auth params to verify
	}

	// Translate gosnmp auth protocol to our v3 package's AuthProtocol
	var authProto v3.AuthProtocol
	switch localUSM.AuthenticationProtocol {
	case gosnmp.MD5:
		authProto = v3.AuthMD5
	case gosnmp.SHA:
		authProto = v3.AuthSHA1
	case gosnmp.SHA224:
		authProto = v3.AuthSHA224
	case gosnmp.SHA256:
		authProto = v3.AuthSHA256
	case gosnmp.SHA384:
		authProto = v3.AuthSHA384
	case gosnmp.SHA512:
		authProto = v3.AuthSHA512
	default:
		return nil // no auth protocol configured, nothing to verify
	}

	if len(localUSM.SecretKey) == 0 {
		return nil // no localized key available, skip verification
	}

	received := []byte(usmParams.AuthenticationParameters)
	if len(received) == 0 {
		return nil
	}

	// Per RFC 3414: to verify HMAC, zero the auth params in the raw packet bytes
	// (over the encrypted packet, not decrypted), then compute HMAC and compare.
	// rawCopy contains the original bytes before SnmpDecodePacket decrypted them.
	// We find the auth digest bytes in rawCopy using the BER OCTET STRING prefix.
	// Auth params are encoded as: 04 NN [NN bytes] in the USM security parameters.
	// They appear in the first 200 bytes of the packet.
	searchLimit := len(rawCopy)
	if searchLimit > 200 {
		searchLimit = 200
	}
	authLen := byte(len(received))
	idx := -1
	for i := 0; i < searchLimit-int(authLen)-1; i++ {
		if rawCopy[i] == 0x04 && rawCopy[i+1] == authLen {
			// Check if the bytes at [i+2:i+2+authLen] match the received digest
			if bytes.Equal(rawCopy[i+2:i+2+int(authLen)], received) {
				idx = i + 2
				break
			}
		}
	}
	if idx < 0 {
		// Auth params not found in raw packet — skip verification
		return nil
	}
	// Zero the auth params in the copy
	for i := idx; i < idx+int(authLen); i++ {
		rawCopy[i] = 0
	}

	// Compute HMAC over the modified copy (encrypted payload + zeroed auth params)
	computed, err := v3.HMACDigest(authProto, localUSM.SecretKey, rawCopy)
	if err != nil {
		return fmt.Errorf("HMAC computation failed: %w", err)
	}

	// Truncate computed digest to the length of the received digest (e.g., 12 bytes for SHA1/MD5)
	truncated := computed
	if len(truncated) > len(received) {
		truncated = computed[:len(received)]
	}

	if !bytes.Equal(truncated, received) {
		return fmt.Errorf("HMAC mismatch: wrong authentication key")
	}
	return nil
}

func buildResponseFromRequest(req *gosnmp.SnmpPacket, vars []gosnmp.SnmpPDU, errCode gosnmp.SNMPError, errIndex uint8) *gosnmp.SnmpPacket {
	response := *req
	response.PDUType = gosnmp.GetResponse
	response.Variables = vars
	response.Error = errCode
	response.ErrorIndex = errIndex
	return &response
}

func (va *VirtualAgent) buildResponseFromRequest(req *gosnmp.SnmpPacket, vars []gosnmp.SnmpPDU, errCode gosnmp.SNMPError, errIndex uint8) *gosnmp.SnmpPacket {
	response := buildResponseFromRequest(req, vars, errCode, errIndex)

	if response.Version == gosnmp.Version3 {
		response.MsgFlags = req.MsgFlags & gosnmp.AuthPriv
		response.SecurityModel = gosnmp.UserSecurityModel
		response.ContextEngineID = va.v3Config.EngineID

		username := va.v3Config.Username
		if req.SecurityParameters != nil {
			if usm, ok := req.SecurityParameters.(*gosnmp.UsmSecurityParameters); ok && usm.UserName != "" {
				username = usm.UserName
			}
		}

		cfg := va.v3ConfigForFlags(response.MsgFlags)
		cfg.Username = username
		response.SecurityParameters = cfg.BuildUSM(
			va.v3EngineBoots,
			uint32(time.Since(va.startTime).Seconds()),
		)
	}

	return response
}

func (va *VirtualAgent) shouldSendV3DiscoveryReport(req *gosnmp.SnmpPacket) bool {
	if req == nil || req.Version != gosnmp.Version3 {
		return false
	}
	if !va.v3Config.Enabled {
		return false
	}

	usm, ok := req.SecurityParameters.(*gosnmp.UsmSecurityParameters)
	if !ok || usm == nil {
		return true
	}

	return usm.AuthoritativeEngineID == ""
}

func (va *VirtualAgent) validateUSMWindow(req *gosnmp.SnmpPacket) string {
	if req == nil || req.Version != gosnmp.Version3 {
		return ""
	}

	usm, ok := req.SecurityParameters.(*gosnmp.UsmSecurityParameters)
	if !ok || usm == nil {
		return v3.USMStatsUnknownEngineIDOID
	}

	if usm.AuthoritativeEngineID != "" && usm.AuthoritativeEngineID != va.v3Config.EngineID {
		return v3.USMStatsUnknownEngineIDOID
	}

	if usm.AuthoritativeEngineID != "" {
		now := uint32(time.Since(va.startTime).Seconds())
		if usm.AuthoritativeEngineBoots != va.v3EngineBoots {
			return v3.USMStatsNotInTimeWindowOID
		}

		var diff uint32
		if now > usm.AuthoritativeEngineTime {
			diff = now - usm.AuthoritativeEngineTime
		} else {
			diff = usm.AuthoritativeEngineTime - now
		}
		if diff > 150 {
			return v3.USMStatsNotInTimeWindowOID
		}
	}

	return ""
}

func (va *VirtualAgent) handleV3USMReport(req *gosnmp.SnmpPacket, oid string) []byte {
	response := va.buildResponseFromRequest(req, []gosnmp.SnmpPDU{v3.BuildUSMReportVar(oid)}, gosnmp.NoError, 0)
	response.PDUType = gosnmp.Report

	data, err := marshalPacket(response)
	if err != nil {
		log.Printf("Device %d: Failed to marshal v3 USM report: %v", va.deviceID, err)
		return nil
	}
	return data
}

func (va *VirtualAgent) v3ConfigForFlags(flags gosnmp.SnmpV3MsgFlags) v3.Config {
	cfg := va.v3Config
	level := flags & gosnmp.AuthPriv
	if level == gosnmp.NoAuthNoPriv {
		cfg.Auth = v3.AuthNone
		cfg.AuthKey = ""
		cfg.Priv = v3.PrivNone
		cfg.PrivKey = ""
		return cfg
	}
	if level == gosnmp.AuthNoPriv {
		cfg.Priv = v3.PrivNone
		cfg.PrivKey = ""
	}
	return cfg
}

func (va *VirtualAgent) handleV3DiscoveryReport(req *gosnmp.SnmpPacket) []byte {
	requestUsername := ""
	if req != nil && req.SecurityParameters != nil {
		if usm, ok := req.SecurityParameters.(*gosnmp.UsmSecurityParameters); ok && usm != nil {
			requestUsername = usm.UserName
		}
	}

	vars := []gosnmp.SnmpPDU{
		{
			Name:  ".1.3.6.1.6.3.15.1.1.4.0",
			Type:  gosnmp.Counter32,
			Value: uint(1),
		},
	}

	response := va.buildResponseFromRequest(req, vars, gosnmp.NoError, 0)
	response.PDUType = gosnmp.Report
	if usm, ok := response.SecurityParameters.(*gosnmp.UsmSecurityParameters); ok && usm != nil {
		usm.UserName = requestUsername
	}

	data, err := marshalPacket(response)
	if err != nil {
		log.Printf("Device %d: Failed to marshal v3 discovery report: %v", va.deviceID, err)
		return nil
	}

	return data
}

// handleGetRequest processes GET requests
func (va *VirtualAgent) handleGetRequest(req *gosnmp.SnmpPacket, reqCtx contextresolve.Request) []byte {
	targets := make([]datafile.VarBind, len(req.Variables))
	for i, v := range req.Variables {
		targets[i] = datafile.VarBind{OID: oid.MustParse(normalizeOID(v.Name))}
	}

	results := va.resolve(targets, datafile.Flags{}, reqCtx)

	vars := make([]gosnmp.SnmpPDU, len(results))
	for i, r := range results {
		vars[i] = recordValueToPDU(req.Variables[i].Name, va.applyOverlay(req.Variables[i].Name, r.Value))
	}

	outPacket := va.buildResponseFromRequest(req, vars, gosnmp.NoError, 0)
	data, err := marshalPacket(outPacket)
	if err != nil {
		log.Printf("Device %d: Failed to marshal response: %v", va.deviceID, err)
		return nil
	}
	return data
}

// handleWalk processes GETNEXT and GETBULK requests (both walk the next
// record in ascending OID order; GETBULK additionally repeats the walk
// MaxRepetitions times per repeating varbind).
func (va *VirtualAgent) handleWalk(req *gosnmp.SnmpPacket, reqCtx contextresolve.Request) []byte {
	if req.PDUType != gosnmp.GetBulkRequest {
		targets := make([]datafile.VarBind, len(req.Variables))
		for i, v := range req.Variables {
			targets[i] = datafile.VarBind{OID: oid.MustParse(normalizeOID(v.Name))}
		}
		results := va.resolve(targets, datafile.Flags{NextFlag: true}, reqCtx)

		vars := make([]gosnmp.SnmpPDU, len(results))
		for i, r := range results {
			vars[i] = recordValueToPDU(r.OID.String(), r.Value)
		}
		outPacket := va.buildResponseFromRequest(req, vars, gosnmp.NoError, 0)
		data, err := marshalPacket(outPacket)
		if err != nil {
			log.Printf("Device %d: Failed to marshal response: %v", va.deviceID, err)
			return nil
		}
		return data
	}

	nonRepeaters := int(req.NonRepeaters)
	if nonRepeaters < 0 {
		nonRepeaters = 0
	}
	maxRepeaters := int(req.MaxRepetitions)
	if maxRepeaters <= 0 {
		maxRepeaters = 10
	}

	vars := make([]gosnmp.SnmpPDU, 0, len(req.Variables)*maxRepeaters)

	for i, v := range req.Variables {
		if i < nonRepeaters {
			results := va.resolve([]datafile.VarBind{{OID: oid.MustParse(normalizeOID(v.Name))}}, datafile.Flags{NextFlag: true}, reqCtx)
			if len(results) > 0 {
				vars = append(vars, recordValueToPDU(results[0].OID.String(), results[0].Value))
			}
			continue
		}

		current := oid.MustParse(normalizeOID(v.Name))
		for r := 0; r < maxRepeaters; r++ {
			results := va.resolve([]datafile.VarBind{{OID: current}}, datafile.Flags{NextFlag: true}, reqCtx)
			if len(results) == 0 || results[0].Value.Kind == record.KindEndOfMib {
				if len(results) > 0 {
					vars = append(vars, recordValueToPDU(results[0].OID.String(), results[0].Value))
				}
				break
			}
			vars = append(vars, recordValueToPDU(results[0].OID.String(), results[0].Value))
			current = results[0].OID
		}
	}

	outPacket := va.buildResponseFromRequest(req, vars, gosnmp.NoError, 0)
	data, err := marshalPacket(outPacket)
	if err != nil {
		log.Printf("Device %d: Failed to marshal GETBULK response: %v", va.deviceID, err)
		return nil
	}
	return data
}

// handleSetRequest resolves SET requests through the data source so that a
// notification variation module bound to the target OID observes the
// attempted write (op=set in its configuration). Plain, unvaried records
// have no mechanism to persist a write, so they echo back their existing
// stored value — data files are never rewritten.
func (va *VirtualAgent) handleSetRequest(req *gosnmp.SnmpPacket, reqCtx contextresolve.Request) []byte {
	targets := make([]datafile.VarBind, len(req.Variables))
	for i, v := range req.Variables {
		targets[i] = datafile.VarBind{OID: oid.MustParse(normalizeOID(v.Name)), Value: pduToRecordValue(v)}
	}

	results := va.resolve(targets, datafile.Flags{SetFlag: true}, reqCtx)

	vars := make([]gosnmp.SnmpPDU, len(results))
	for i, r := range results {
		vars[i] = recordValueToPDU(req.Variables[i].Name, r.Value)
	}

	outPacket := va.buildResponseFromRequest(req, vars, gosnmp.NoError, 0)
	data, err := marshalPacket(outPacket)
	if err != nil {
		log.Printf("Device %d: Failed to marshal SET response: %v", va.deviceID, err)
		return nil
	}
	return data
}

// resolve looks up targets against the system OIDs first, falling through
// to the shared data source for anything system OIDs do not cover.
func (va *VirtualAgent) resolve(targets []datafile.VarBind, flags datafile.Flags, reqCtx contextresolve.Request) []datafile.VarBind {
	va.mu.RLock()
	ds := va.dataSource
	va.mu.RUnlock()

	var remaining []datafile.VarBind
	var remainingIdx []int
	out := make([]datafile.VarBind, len(targets))

	if !flags.NextFlag && !flags.SetFlag {
		for i, t := range targets {
			if v := va.getSystemOID(t.OID.String()); v != nil {
				out[i] = datafile.VarBind{OID: t.OID, Value: *v}
				continue
			}
			remaining = append(remaining, t)
			remainingIdx = append(remainingIdx, i)
		}
	} else {
		remaining = targets
		for i := range targets {
			remainingIdx = append(remainingIdx, i)
		}
	}

	if len(remaining) == 0 {
		return out
	}

	if ds == nil {
		status := record.Value{Kind: record.KindNoSuchInstance}
		if flags.NextFlag {
			status = record.EndOfMib
		}
		for j, idx := range remainingIdx {
			out[idx] = datafile.VarBind{OID: remaining[j].OID, Value: status}
		}
		return out
	}

	resolved, err := ds.Resolve(reqCtx, remaining, flags)
	if err != nil {
		log.Printf("Device %d: data source resolve error: %v", va.deviceID, err)
		status := record.Value{Kind: record.KindNoSuchInstance}
		if flags.NextFlag {
			status = record.EndOfMib
		}
		for j, idx := range remainingIdx {
			out[idx] = datafile.VarBind{OID: remaining[j].OID, Value: status}
		}
		return out
	}

	for j, idx := range remainingIdx {
		if j < len(resolved) {
			out[idx] = resolved[j]
		}
	}
	return out
}

func normalizeOID(oidStr string) string {
	if len(oidStr) > 0 && oidStr[0] == '.' {
		return oidStr[1:]
	}
	return oidStr
}

// getSystemOID returns system-specific OID values that exist outside any
// data file (sysUpTime, sysName, sysLocation).
func (va *VirtualAgent) getSystemOID(oidStr string) *record.Value {
	switch normalizeOID(oidStr) {
	case "1.3.6.1.2.1.1.3.0": // sysUpTime
		uptime := uint32(time.Since(va.startTime).Seconds() * 100)
		return &record.Value{Kind: record.KindValue, Text: fmt.Sprintf("%d", uptime), Raw: int64(uptime)}

	case "1.3.6.1.2.1.1.5.0": // sysName
		return &record.Value{Kind: record.KindValue, Text: va.sysName}

	case "1.3.6.1.2.1.1.6.0": // sysLocation
		return &record.Value{Kind: record.KindValue, Text: fmt.Sprintf("Simulated-Device-%d", va.deviceID)}
	}

	return nil
}

// applyOverlay lets a device-specific SetOIDValue override win over
// whatever the data source returned, for the exact OID requested.
func (va *VirtualAgent) applyOverlay(oidStr string, v record.Value) record.Value {
	va.mu.RLock()
	override, ok := va.deviceOverlay[normalizeOID(oidStr)]
	va.mu.RUnlock()
	if !ok {
		return v
	}
	return record.Value{Kind: record.KindValue, Text: fmt.Sprintf("%v", override), Raw: override}
}

// SetOIDValue sets a device-specific OID value (overlay), checked ahead of
// the shared data source on every GET.
func (va *VirtualAgent) SetOIDValue(oidStr string, value interface{}) {
	va.mu.Lock()
	defer va.mu.Unlock()
	va.deviceOverlay[normalizeOID(oidStr)] = value
}

// GetStatistics returns agent statistics
func (va *VirtualAgent) GetStatistics() map[string]interface{} {
	va.mu.RLock()
	defer va.mu.RUnlock()

	uptime := uint32(time.Since(va.startTime).Seconds())
	return map[string]interface{}{
		"device_id":  va.deviceID,
		"port":       va.port,
		"sysName":    va.sysName,
		"uptime":     uptime,
		"poll_count": va.pollCount.Load(),
		"last_poll":  va.lastPoll.Format(time.RFC3339),
	}
}
