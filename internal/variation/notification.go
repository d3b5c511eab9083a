package variation

import (
	"fmt"
	"log"
	"net"
	"strconv"
	"strings"
	"sync"

	"github.com/gosnmp/gosnmp"

	"github.com/grm84/snmpsim/internal/oid"
	"github.com/grm84/snmpsim/internal/record"
	"github.com/grm84/snmpsim/internal/traps"
)

// DefaultTrapOID is used when a notification record's configuration omits
// trapoid.
const DefaultTrapOID = "1.3.6.1.6.3.1.1.5.1"

// VariationConfigError reports a record whose configuration is malformed
// beyond recovery (unknown op, unknown protocol, missing host, missing
// version). Per the error taxonomy, the record is treated as inert: it
// answers with the original OID and the ambient error status rather than
// failing the whole request.
type VariationConfigError struct {
	Reason string
}

func (e *VariationConfigError) Error() string {
	return "variation: config error: " + e.Reason
}

type varbindSpec struct {
	OID   string
	Type  string
	Value string
}

type notificationConfig struct {
	Op           string
	Version      string
	Community    string
	User         string
	AuthKey      string
	AuthProto    string
	PrivKey      string
	PrivProto    string
	Proto        string
	Host         string
	Port         int
	BindAddr     string
	NtfType      string
	TrapOID      string
	Uptime       bool
	AgentAddress string
	Enterprise   string
	Varbinds     []varbindSpec
	Value        string
	HexValue     string
	VList        map[string][]string
}

// parseNotificationConfig decodes the "k=v,k=v" grammar carried in a
// notification record's value column. Keys that may legitimately repeat
// (varbinds, vlist) accumulate across occurrences rather than overwriting,
// which is the intended behavior the grammar's reference implementation
// fails to honor for vlist.
func parseNotificationConfig(raw string) (*notificationConfig, error) {
	fields := map[string][]string{}
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		i := strings.IndexByte(part, '=')
		if i < 0 {
			return nil, &VariationConfigError{Reason: fmt.Sprintf("malformed option %q", part)}
		}
		key := strings.ToLower(strings.TrimSpace(part[:i]))
		val := strings.TrimSpace(part[i+1:])
		fields[key] = append(fields[key], val)
	}

	first := func(key, def string) string {
		if vs, ok := fields[key]; ok && len(vs) > 0 {
			return vs[len(vs)-1]
		}
		return def
	}

	cfg := &notificationConfig{
		Op:        strings.ToLower(first("op", "any")),
		Community: first("community", "public"),
		User:      first("user", ""),
		AuthKey:   first("authkey", ""),
		AuthProto: first("authproto", "none"),
		PrivKey:   first("privkey", ""),
		PrivProto: first("privproto", "none"),
		Proto:     strings.ToLower(first("proto", "udp")),
		Host:      first("host", ""),
		BindAddr:  first("bindaddr", ""),
		NtfType:   strings.ToLower(first("ntftype", "trap")),
		TrapOID:   first("trapoid", DefaultTrapOID),
		AgentAddress: first("agentaddress", ""),
		Enterprise:   first("enterprise", ""),
		Value:        first("value", ""),
		HexValue:     first("hexvalue", ""),
	}

	switch cfg.Op {
	case "get", "set", "any", "*":
	default:
		return nil, &VariationConfigError{Reason: fmt.Sprintf("unknown op %q", cfg.Op)}
	}

	// Resolved open question: version is mandatory; its absence is a
	// configuration error rather than a deferred lookup failure.
	version, ok := fields["version"]
	if !ok || len(version) == 0 || strings.TrimSpace(version[len(version)-1]) == "" {
		return nil, &VariationConfigError{Reason: "version is required"}
	}
	cfg.Version = normalizeVersion(version[len(version)-1])
	if cfg.Version == "" {
		return nil, &VariationConfigError{Reason: fmt.Sprintf("unknown version %q", version[len(version)-1])}
	}

	if cfg.Host == "" {
		return nil, &VariationConfigError{Reason: "host is required"}
	}

	portStr := first("port", "162")
	port, err := strconv.Atoi(portStr)
	if err != nil || port <= 0 || port > 65535 {
		return nil, &VariationConfigError{Reason: fmt.Sprintf("invalid port %q", portStr)}
	}
	cfg.Port = port

	if cfg.Proto != "udp" && cfg.Proto != "udp6" {
		return nil, &VariationConfigError{Reason: fmt.Sprintf("unknown proto %q", cfg.Proto)}
	}
	if cfg.NtfType != "trap" && cfg.NtfType != "inform" {
		return nil, &VariationConfigError{Reason: fmt.Sprintf("unknown ntftype %q", cfg.NtfType)}
	}

	if cfg.Version == "v3" {
		if cfg.User == "" {
			return nil, &VariationConfigError{Reason: "v3 requires user"}
		}
		if !validAuthProto(cfg.AuthProto) {
			return nil, &VariationConfigError{Reason: fmt.Sprintf("unknown authproto %q", cfg.AuthProto)}
		}
		if !validPrivProto(cfg.PrivProto) {
			return nil, &VariationConfigError{Reason: fmt.Sprintf("unknown privproto %q", cfg.PrivProto)}
		}
	}

	if _, ok := fields["uptime"]; ok {
		cfg.Uptime = true
	}

	if vb, ok := fields["varbinds"]; ok {
		for _, spec := range vb {
			tokens := strings.Split(spec, ":")
			for i := 0; i+2 < len(tokens); i += 3 {
				cfg.Varbinds = append(cfg.Varbinds, varbindSpec{OID: tokens[i], Type: tokens[i+1], Value: tokens[i+2]})
			}
		}
	}

	if vl, ok := fields["vlist"]; ok {
		cfg.VList = map[string][]string{}
		for _, spec := range vl {
			tokens := strings.Split(spec, ":")
			for i := 0; i+1 < len(tokens); i += 2 {
				pred := strings.ToLower(tokens[i])
				cfg.VList[pred] = append(cfg.VList[pred], tokens[i+1])
			}
		}
	}

	return cfg, nil
}

func normalizeVersion(v string) string {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "v1":
		return "v1"
	case "2c", "v2c", "2":
		return "v2c"
	case "3", "v3":
		return "v3"
	default:
		return ""
	}
}

func validAuthProto(p string) bool {
	switch strings.ToLower(p) {
	case "md5", "sha", "none", "":
		return true
	default:
		return false
	}
}

func validPrivProto(p string) bool {
	switch strings.ToLower(p) {
	case "des", "aes", "none", "":
		return true
	default:
		return false
	}
}

// vlistPasses implements the vlist option's gate on a SET-triggered
// notification: the predicate set accumulated from the record's vlist
// option must contain at least one predicate the incoming set value
// satisfies.
func vlistPasses(vlist map[string][]string, setValue string) bool {
	if len(vlist) == 0 {
		return true
	}
	for pred, vals := range vlist {
		for _, v := range vals {
			switch pred {
			case "eq":
				if setValue == v {
					return true
				}
			case "lt":
				if numericLess(setValue, v) {
					return true
				}
			case "gt":
				if numericLess(v, setValue) {
					return true
				}
			}
		}
	}
	return false
}

func numericLess(a, b string) bool {
	an, aerr := strconv.ParseFloat(a, 64)
	bn, berr := strconv.ParseFloat(b, 64)
	if aerr == nil && berr == nil {
		return an < bn
	}
	return a < b
}

// NotificationModule implements the representative variation module: on a
// matched lookup whose request polarity satisfies the record's configured
// op (and, for SET, whose incoming value satisfies an optional vlist
// gate), it sends a trap or inform to a configured target and returns
// either the configured response value (GET) or the original value (SET).
// Sending is fire-and-forget: it never blocks the resolving call.
type NotificationModule struct {
	mu      sync.Mutex
	senders map[string]*traps.Sender
}

// NewNotificationModule returns a ready-to-use module instance.
func NewNotificationModule() *NotificationModule {
	return &NotificationModule{senders: make(map[string]*traps.Sender)}
}

func (m *NotificationModule) Init(ctx record.VariationContext) error { return nil }

func (m *NotificationModule) Shutdown(ctx record.VariationContext) error { return nil }

func (m *NotificationModule) Variate(o oid.OID, tag record.Tag, value record.Value, ctx record.VariationContext) (oid.OID, record.Value, error) {
	cfg, err := parseNotificationConfig(value.Text)
	if err != nil {
		log.Printf("variation/notification: %s: %v", ctx.DataFile, err)
		return ctx.OrigOID, ctx.ErrorStatus, nil
	}

	polarity := "get"
	if ctx.SetFlag {
		polarity = "set"
	}
	opMatches := cfg.Op == "any" || cfg.Op == "*" || cfg.Op == polarity

	vlistOK := true
	if ctx.SetFlag {
		vlistOK = vlistPasses(cfg.VList, ctx.OrigValue.Text)
	}

	if !opMatches || !vlistOK {
		return o, value, nil
	}

	m.send(cfg, o, ctx)

	if ctx.SetFlag {
		return o, ctx.OrigValue, nil
	}
	if cfg.HexValue != "" {
		return o, record.Value{Kind: record.KindValue, Text: cfg.HexValue}, nil
	}
	if cfg.Value != "" {
		return o, record.Value{Kind: record.KindValue, Text: cfg.Value}, nil
	}
	return o, value, nil
}

func (m *NotificationModule) send(cfg *notificationConfig, matchedOID oid.OID, ctx record.VariationContext) {
	target := net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
	key := strings.Join([]string{cfg.Version, cfg.User, cfg.Community, target, cfg.Proto, cfg.NtfType}, "|")

	m.mu.Lock()
	sender, ok := m.senders[key]
	if !ok {
		trapCfg := traps.Config{
			Targets:   []string{target},
			Version:   cfg.Version,
			Community: cfg.Community,
			V3User:    cfg.User,
			V3Auth:    cfg.AuthProto,
			V3AuthKey: cfg.AuthKey,
			V3Priv:    cfg.PrivProto,
			V3PrivKey: cfg.PrivKey,
			Inform:    cfg.NtfType == "inform",
		}
		if nerr := trapCfg.Normalize(); nerr != nil {
			m.mu.Unlock()
			log.Printf("variation/notification: %v", nerr)
			return
		}
		builder, berr := traps.NewBuilder(trapCfg)
		if berr != nil {
			m.mu.Unlock()
			log.Printf("variation/notification: %v", berr)
			return
		}
		sender = traps.NewSender(builder, trapCfg.Targets, trapCfg.Inform)
		m.senders[key] = sender
	}
	m.mu.Unlock()

	vars := buildNotificationVarbinds(cfg, matchedOID, ctx)
	v1 := traps.V1Fields{Enterprise: cfg.Enterprise, AgentAddress: cfg.AgentAddress}

	go func() {
		if serr := sender.SendV1(cfg.TrapOID, vars, v1); serr != nil {
			log.Printf("variation/notification: send to %s failed: %v", target, serr)
		}
	}()
}

func buildNotificationVarbinds(cfg *notificationConfig, matchedOID oid.OID, ctx record.VariationContext) []gosnmp.SnmpPDU {
	var vars []gosnmp.SnmpPDU

	if cfg.Uptime {
		vars = append(vars, gosnmp.SnmpPDU{Name: ".1.3.6.1.2.1.1.3.0", Type: gosnmp.TimeTicks, Value: uint32(0)})
	}

	for _, vb := range cfg.Varbinds {
		vars = append(vars, gosnmp.SnmpPDU{
			Name:  normalizeOID(vb.OID),
			Type:  berTypeFromTag(vb.Type),
			Value: berValue(vb.Type, vb.Value),
		})
	}

	return vars
}

func normalizeOID(o string) string {
	if !strings.HasPrefix(o, ".") {
		return "." + o
	}
	return o
}

func berTypeFromTag(t string) gosnmp.Asn1BER {
	switch strings.ToLower(strings.TrimSpace(t)) {
	case "int", "integer", "2":
		return gosnmp.Integer
	case "str", "string", "octetstring", "4":
		return gosnmp.OctetString
	case "oid", "objectidentifier", "6":
		return gosnmp.ObjectIdentifier
	case "counter", "counter32", "65":
		return gosnmp.Counter32
	case "gauge", "gauge32", "66":
		return gosnmp.Gauge32
	case "timeticks", "67":
		return gosnmp.TimeTicks
	case "counter64", "70":
		return gosnmp.Counter64
	default:
		return gosnmp.OctetString
	}
}

func berValue(t, v string) interface{} {
	switch berTypeFromTag(t) {
	case gosnmp.Integer:
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
		return 0
	case gosnmp.Counter32, gosnmp.Gauge32, gosnmp.TimeTicks:
		n, err := strconv.ParseUint(v, 10, 32)
		if err == nil {
			return uint32(n)
		}
		return uint32(0)
	case gosnmp.Counter64:
		n, err := strconv.ParseUint(v, 10, 64)
		if err == nil {
			return n
		}
		return uint64(0)
	default:
		return v
	}
}
