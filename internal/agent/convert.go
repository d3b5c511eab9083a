package agent

import (
	"fmt"

	"github.com/grm84/snmpsim/internal/record"
	"github.com/gosnmp/gosnmp"
)

// pduToRecordValue converts an incoming wire varbind (typically a SET
// payload) into the record.Value the resolution core works with.
func pduToRecordValue(pdu gosnmp.SnmpPDU) record.Value {
	return record.Value{Kind: record.KindValue, Text: fmt.Sprintf("%v", pdu.Value), Raw: pdu.Value}
}

// recordValueToPDU converts a resolved record.Value back into a wire
// varbind. Wire encoding is not this package's concern — the BER tag
// distinctions a record's own tag carries (Counter32 vs Gauge32 vs
// TimeTicks, say) are already collapsed by the parser into value.Raw's Go
// type, so this is a best-effort mapping rather than a lossless one.
func recordValueToPDU(name string, v record.Value) gosnmp.SnmpPDU {
	switch v.Kind {
	case record.KindEndOfMib:
		return gosnmp.SnmpPDU{Name: name, Type: gosnmp.EndOfMibView}
	case record.KindNoSuchInstance:
		return gosnmp.SnmpPDU{Name: name, Type: gosnmp.NoSuchInstance}
	case record.KindNoSuchObject:
		return gosnmp.SnmpPDU{Name: name, Type: gosnmp.NoSuchObject}
	}

	switch raw := v.Raw.(type) {
	case int64:
		return gosnmp.SnmpPDU{Name: name, Type: gosnmp.Integer, Value: int(raw)}
	case nil:
		return gosnmp.SnmpPDU{Name: name, Type: gosnmp.OctetString, Value: v.Text}
	default:
		return gosnmp.SnmpPDU{Name: name, Type: gosnmp.OctetString, Value: raw}
	}
}
