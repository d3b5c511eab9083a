// Package record implements the grammar for a single line of a simulation
// data file: a text line is a pure function to (OID, tag, value). The
// data-file controller only ever calls Parser.Evaluate; it never inspects the
// line text itself. This keeps the record grammar swappable the way the
// specification's "record parser (external)" collaborator is swappable in
// the source system.
package record

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/grm84/snmpsim/internal/oid"
)

// Kind distinguishes an ordinary value from the sentinels a variation module
// (or the parser itself) may hand back to the controller.
type Kind int

const (
	// KindValue is a normal SNMP value.
	KindValue Kind = iota
	// KindEndOfMib tells the controller's successor loop to advance past
	// this record and keep looking, exactly like walking off a subtree.
	KindEndOfMib
	// KindNoSuchInstance/KindNoSuchObject mirror the two SNMPv2 exception
	// values a variation module may deliberately produce.
	KindNoSuchInstance
	KindNoSuchObject
)

// Value is the controller/module-facing representation of an SNMP value.
// Text carries the literal snmprec-style rendering so modules that only
// care about comparing against configured thresholds (see the notification
// module's vlist option) can parse it back into whatever type they need.
type Value struct {
	Kind Kind
	Text string
	Raw  interface{}
}

func (v Value) String() string {
	switch v.Kind {
	case KindEndOfMib:
		return "<endOfMib>"
	case KindNoSuchInstance:
		return "<noSuchInstance>"
	case KindNoSuchObject:
		return "<noSuchObject>"
	default:
		return v.Text
	}
}

// EndOfMib is the sentinel value a parser or variation module returns to
// signal "there is nothing here, the controller should keep walking".
var EndOfMib = Value{Kind: KindEndOfMib}

// Tag is the decoded form of a record's type column: an ASN.1 BER type tag,
// plus the optional name of the variation module that owns this record.
// On the wire a tag is written "<asn1tag>" or "<asn1tag>:<moduleName>".
type Tag struct {
	Type   string
	Module string
}

// HasModule reports whether this record is bound to a variation module.
func (t Tag) HasModule() bool {
	return t.Module != ""
}

// ParseTag decodes a record's tag column.
func ParseTag(raw string) (Tag, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Tag{}, fmt.Errorf("record: empty tag")
	}
	if i := strings.IndexByte(raw, ':'); i >= 0 {
		return Tag{Type: raw[:i], Module: raw[i+1:]}, nil
	}
	return Tag{Type: raw}, nil
}

func (t Tag) String() string {
	if t.Module == "" {
		return t.Type
	}
	return t.Type + ":" + t.Module
}

// VariationContext is the read-only record of "where we are" that the
// controller hands to the parser (and the parser forwards to a variation
// module) on every lookup. Field names follow the specification's
// "Variation context" data model exactly.
type VariationContext struct {
	OrigOID         oid.OID
	OrigValue       Value
	DataFile        string
	SubtreeFlag     bool
	ExactMatch      bool
	ErrorStatus     Value
	VarsTotal       int
	VarsRemaining   int
	NextFlag        bool
	SetFlag         bool
	TransportDomain string
	TransportAddress string
	SnmpEngine      string
	ContextEngineID string
	ContextName     string

	// RecordKey uniquely identifies the matched line within its data file
	// (path + byte offset), so a module can key its per-record state.
	RecordKey string
}

// Dispatcher is the narrow surface the default parser needs from a
// variation-module registry. It lives here, not in package variation, so
// record has no dependency on variation — variation depends on record, and
// the parser only ever sees this interface.
type Dispatcher interface {
	Variate(moduleName string, o oid.OID, tag Tag, value Value, ctx VariationContext) (oid.OID, Value, error)
}

// NoDataNotification signals that the variation module has decided the
// request should receive no answer at all; the transport layer is expected
// to drop the response outright. It is never translated into an
// error-status varbind.
type NoDataNotification struct {
	Reason string
}

func (e *NoDataNotification) Error() string {
	if e.Reason == "" {
		return "record: no data notification"
	}
	return "record: no data notification: " + e.Reason
}

// MibOperationError is propagated unchanged to the SNMP stack, which is
// expected to encode it as a genuine SNMP error-status rather than a
// per-varbind endOfMib/noSuchInstance substitution.
type MibOperationError struct {
	Reason string
}

func (e *MibOperationError) Error() string {
	return "record: mib operation error: " + e.Reason
}

// Parser is the external collaborator the controller depends on: a pure
// function from a line of text to (OID, value), optionally invoking a
// variation module along the way.
type Parser interface {
	// Evaluate parses line. When oidOnly is true, only the OID column is
	// decoded (no module is invoked) — this is the fast path the
	// controller uses to read an OID without triggering side effects.
	Evaluate(line string, oidOnly bool, dispatcher Dispatcher, ctx VariationContext) (oid.OID, Value, error)

	// ParseTag decodes just the tag column of line, used by index
	// construction to decide whether a record covers a subtree.
	ParseTag(line string) (oid.OID, Tag, error)
}

// SnmprecParser is the default grammar: "<oid>|<tag>|<value>", one record
// per line, blank lines and lines starting with '#' ignored. A record is
// treated as covering its subtree exactly when its tag declares a
// variation module — only a module can synthesize values for OIDs other
// than the one literally on the line, so only a module-bound record can
// meaningfully stand in for an entire subtree.
type SnmprecParser struct {
	Separator byte
}

// NewSnmprecParser returns the default '|'-delimited parser.
func NewSnmprecParser() *SnmprecParser {
	return &SnmprecParser{Separator: '|'}
}

func (p *SnmprecParser) sep() byte {
	if p.Separator == 0 {
		return '|'
	}
	return p.Separator
}

func (p *SnmprecParser) splitLine(line string) (oidCol, tagCol, valCol string, err error) {
	sep := string(p.sep())
	parts := strings.SplitN(line, sep, 3)
	if len(parts) != 3 {
		return "", "", "", fmt.Errorf("record: malformed line (want 3 %q-separated columns): %q", sep, line)
	}
	return parts[0], parts[1], parts[2], nil
}

// ParseTag decodes the OID and tag of line without touching the value.
func (p *SnmprecParser) ParseTag(line string) (oid.OID, Tag, error) {
	oidCol, tagCol, _, err := p.splitLine(line)
	if err != nil {
		return nil, Tag{}, err
	}
	o, err := oid.Parse(oidCol)
	if err != nil {
		return nil, Tag{}, err
	}
	tag, err := ParseTag(tagCol)
	if err != nil {
		return nil, Tag{}, err
	}
	return o, tag, nil
}

// Evaluate implements the Parser contract.
func (p *SnmprecParser) Evaluate(line string, oidOnly bool, dispatcher Dispatcher, ctx VariationContext) (oid.OID, Value, error) {
	oidCol, tagCol, valCol, err := p.splitLine(line)
	if err != nil {
		return nil, Value{}, err
	}

	o, err := oid.Parse(oidCol)
	if err != nil {
		return nil, Value{}, err
	}

	if oidOnly {
		return o, Value{}, nil
	}

	tag, err := ParseTag(tagCol)
	if err != nil {
		return nil, Value{}, err
	}

	value, err := decodeValue(tag, valCol)
	if err != nil {
		return nil, Value{}, err
	}

	if !tag.HasModule() {
		return o, value, nil
	}

	if dispatcher == nil {
		return nil, Value{}, fmt.Errorf("record: line declares module %q but no dispatcher is configured", tag.Module)
	}

	return dispatcher.Variate(tag.Module, o, tag, value, ctx)
}

// decodeValue renders the value column into a Value. The literal text is
// always preserved (variation modules frequently need to re-parse it, e.g.
// the notification module's numeric vlist comparisons); Raw carries a best
// effort typed decoding for the common numeric BER tags.
func decodeValue(tag Tag, text string) (Value, error) {
	v := Value{Kind: KindValue, Text: text}
	switch tag.Type {
	case "2", "65", "66", "67", "70": // Integer32, Counter32, Gauge32, TimeTicks, Counter64
		n, err := strconv.ParseInt(text, 10, 64)
		if err == nil {
			v.Raw = n
		}
	default:
		v.Raw = text
	}
	return v, nil
}
