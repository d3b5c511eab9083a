package variation

import (
	"errors"
	"testing"

	"github.com/grm84/snmpsim/internal/oid"
	"github.com/grm84/snmpsim/internal/record"
)

type countingModule struct {
	inits     int
	variates  int
	shutdowns int
	initErr   error
}

func (m *countingModule) Init(ctx record.VariationContext) error {
	m.inits++
	return m.initErr
}

func (m *countingModule) Variate(o oid.OID, tag record.Tag, value record.Value, ctx record.VariationContext) (oid.OID, record.Value, error) {
	m.variates++
	return o, record.Value{Kind: record.KindValue, Text: "ok"}, nil
}

func (m *countingModule) Shutdown(ctx record.VariationContext) error {
	m.shutdowns++
	return nil
}

func TestVariateUnknownModule(t *testing.T) {
	r := NewRegistry()
	_, _, err := r.Variate("missing", oid.MustParse("1.3.6.1"), record.Tag{}, record.Value{}, record.VariationContext{})
	if err == nil {
		t.Fatalf("expected error for an unregistered module")
	}
}

func TestVariateInitializesOncePerRecord(t *testing.T) {
	r := NewRegistry()
	m := &countingModule{}
	r.Register("counter", m)

	ctx := record.VariationContext{RecordKey: "file@0"}
	for i := 0; i < 3; i++ {
		if _, _, err := r.Variate("counter", oid.MustParse("1.3.6.1"), record.Tag{}, record.Value{}, ctx); err != nil {
			t.Fatalf("Variate: %v", err)
		}
	}
	if m.inits != 1 {
		t.Fatalf("inits = %d, want 1 (Init must run once per record)", m.inits)
	}
	if m.variates != 3 {
		t.Fatalf("variates = %d, want 3", m.variates)
	}
}

func TestVariateInitializesSeparatelyPerRecordKey(t *testing.T) {
	r := NewRegistry()
	m := &countingModule{}
	r.Register("counter", m)

	if _, _, err := r.Variate("counter", nil, record.Tag{}, record.Value{}, record.VariationContext{RecordKey: "file@0"}); err != nil {
		t.Fatalf("Variate: %v", err)
	}
	if _, _, err := r.Variate("counter", nil, record.Tag{}, record.Value{}, record.VariationContext{RecordKey: "file@100"}); err != nil {
		t.Fatalf("Variate: %v", err)
	}
	if m.inits != 2 {
		t.Fatalf("inits = %d, want 2 (distinct record keys must each get their own Init)", m.inits)
	}
}

func TestVariateInitErrorDegradesWithoutFailingTheCall(t *testing.T) {
	r := NewRegistry()
	m := &countingModule{initErr: errors.New("boom")}
	r.Register("counter", m)

	ctx := record.VariationContext{RecordKey: "file@0", OrigOID: oid.MustParse("1.3.6.1.2.1.1.1.0"), ErrorStatus: record.Value{Kind: record.KindNoSuchInstance}}
	o, v, err := r.Variate("counter", nil, record.Tag{}, record.Value{}, ctx)
	if err != nil {
		t.Fatalf("Variate should degrade rather than return an error: %v", err)
	}
	if !o.Equal(ctx.OrigOID) {
		t.Fatalf("degraded OID = %v, want ctx.OrigOID %v", o, ctx.OrigOID)
	}
	if v.Kind != record.KindNoSuchInstance {
		t.Fatalf("degraded value = %+v, want ctx.ErrorStatus", v)
	}
	// The record key is marked initialized on the first call regardless of
	// Init's outcome, so a second call on the same key does not retry
	// Init — it proceeds straight to Variate.
	o2, v2, err := r.Variate("counter", oid.MustParse("1.3.6.1.2.1.1.1.0"), record.Tag{}, record.Value{}, ctx)
	if err != nil {
		t.Fatalf("Variate: %v", err)
	}
	if m.inits != 1 {
		t.Fatalf("inits = %d, want 1 (Init is attempted at most once per record key)", m.inits)
	}
	if m.variates != 1 {
		t.Fatalf("variates = %d, want 1", m.variates)
	}
	if v2.Text != "ok" {
		t.Fatalf("second call value = %+v, want the module's normal Variate result", v2)
	}
	_ = o2
}

func TestShutdownCallsEveryModule(t *testing.T) {
	r := NewRegistry()
	a := &countingModule{}
	b := &countingModule{}
	r.Register("a", a)
	r.Register("b", b)
	r.Shutdown()
	if a.shutdowns != 1 || b.shutdowns != 1 {
		t.Fatalf("shutdowns a=%d b=%d, want 1,1", a.shutdowns, b.shutdowns)
	}
}
