package variation

import (
	"testing"

	"github.com/grm84/snmpsim/internal/oid"
	"github.com/grm84/snmpsim/internal/record"
)

func TestDynamicModuleCounterMonotonicAdvancesAcrossCalls(t *testing.T) {
	m := NewDynamicModule()
	o := oid.MustParse("1.3.6.1.4.1.1.1")
	tag := record.Tag{Type: "65"} // Counter32
	cfg := record.Value{Kind: record.KindValue, Text: "type=countermonotonic,delta=5", Raw: int64(100)}
	ctx := record.VariationContext{RecordKey: "file@0"}

	_, v1, err := m.Variate(o, tag, cfg, ctx)
	if err != nil {
		t.Fatalf("Variate: %v", err)
	}
	if v1.Text != "105" {
		t.Fatalf("first Variate = %+v, want value 105 (100+5)", v1)
	}

	_, v2, err := m.Variate(o, tag, cfg, ctx)
	if err != nil {
		t.Fatalf("Variate: %v", err)
	}
	if v2.Text != "110" {
		t.Fatalf("second Variate = %+v, want value 110 (105+5, the generator must persist across calls)", v2)
	}
}

func TestDynamicModuleInstancesAreScopedPerRecordKey(t *testing.T) {
	m := NewDynamicModule()
	o := oid.MustParse("1.3.6.1.4.1.1.1")
	tag := record.Tag{Type: "65"}
	cfg := record.Value{Kind: record.KindValue, Text: "type=countermonotonic,delta=1", Raw: int64(0)}

	if _, _, err := m.Variate(o, tag, cfg, record.VariationContext{RecordKey: "file@0"}); err != nil {
		t.Fatalf("Variate: %v", err)
	}
	_, v, err := m.Variate(o, tag, cfg, record.VariationContext{RecordKey: "file@100"})
	if err != nil {
		t.Fatalf("Variate: %v", err)
	}
	if v.Text != "1" {
		t.Fatalf("a distinct record key must get its own counter instance starting from base, got %+v", v)
	}
}

func TestDynamicModuleDropOIDMapsToNoSuchObject(t *testing.T) {
	m := NewDynamicModule()
	o := oid.MustParse("1.3.6.1.4.1.1.1")
	cfg := record.Value{Kind: record.KindValue, Text: "type=dropoid", Raw: int64(1)}
	_, v, err := m.Variate(o, record.Tag{Type: "2"}, cfg, record.VariationContext{RecordKey: "file@0"})
	if err != nil {
		t.Fatalf("Variate: %v", err)
	}
	if v.Kind != record.KindNoSuchObject {
		t.Fatalf("Variate(dropoid) = %+v, want KindNoSuchObject", v)
	}
}

func TestDynamicModuleTimeoutDegradesToErrorStatus(t *testing.T) {
	m := NewDynamicModule()
	o := oid.MustParse("1.3.6.1.4.1.1.1")
	cfg := record.Value{Kind: record.KindValue, Text: "type=timeout,delay=0", Raw: int64(1)}
	ctx := record.VariationContext{
		RecordKey:   "file@0",
		OrigOID:     o,
		ErrorStatus: record.Value{Kind: record.KindNoSuchInstance},
	}
	outOID, v, err := m.Variate(o, record.Tag{Type: "2"}, cfg, ctx)
	if err != nil {
		t.Fatalf("Variate should degrade rather than error: %v", err)
	}
	if !outOID.Equal(ctx.OrigOID) {
		t.Fatalf("Variate(timeout) OID = %v, want ctx.OrigOID", outOID)
	}
	if v.Kind != record.KindNoSuchInstance {
		t.Fatalf("Variate(timeout) value = %+v, want ctx.ErrorStatus", v)
	}
}

func TestDynamicModuleUnparseableSpecDegrades(t *testing.T) {
	m := NewDynamicModule()
	o := oid.MustParse("1.3.6.1.4.1.1.1")
	cfg := record.Value{Kind: record.KindValue, Text: "type=bogus-generator", Raw: int64(1)}
	ctx := record.VariationContext{
		RecordKey:   "file@0",
		OrigOID:     o,
		ErrorStatus: record.Value{Kind: record.KindNoSuchInstance},
	}
	outOID, v, err := m.Variate(o, record.Tag{Type: "2"}, cfg, ctx)
	if err != nil {
		t.Fatalf("Variate should degrade rather than error on an unsupported generator type: %v", err)
	}
	if !outOID.Equal(ctx.OrigOID) || v.Kind != record.KindNoSuchInstance {
		t.Fatalf("Variate(bogus type) = (%v, %+v), want degraded ctx.OrigOID/ctx.ErrorStatus", outOID, v)
	}
}

func TestParseDynamicSpecMalformedOption(t *testing.T) {
	if _, err := parseDynamicSpec("type countermonotonic"); err == nil {
		t.Fatalf("expected an error for an option with no '='")
	}
}

func TestParseDynamicSpecFields(t *testing.T) {
	spec, err := parseDynamicSpec("type=step,delta=3,max=10,seed=7,period=1s,delay=500ms")
	if err != nil {
		t.Fatalf("parseDynamicSpec: %v", err)
	}
	if spec.Type != "step" || spec.Delta != 3 || spec.Max != 10 || spec.Seed != 7 || spec.Period != "1s" || spec.Delay != "500ms" {
		t.Fatalf("spec = %+v, unexpected", spec)
	}
}
