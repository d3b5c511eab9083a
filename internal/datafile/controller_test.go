package datafile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/grm84/snmpsim/internal/handlecache"
	"github.com/grm84/snmpsim/internal/oid"
	"github.com/grm84/snmpsim/internal/record"
)

func writeDataFile(t *testing.T, lines ...string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "agent.snmprec")
	content := ""
	for _, l := range lines {
		content += l + "\n"
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func newTestController(t *testing.T, dispatcher record.Dispatcher, lines ...string) *Controller {
	t.Helper()
	path := writeDataFile(t, lines...)
	c := NewController(path, record.NewSnmprecParser(), nil, dispatcher)
	if err := c.BuildIndex(true, true); err != nil {
		t.Fatalf("BuildIndex: %v", err)
	}
	return c
}

func TestResolveExactMatch(t *testing.T) {
	c := newTestController(t, nil,
		"1.3.6.1.2.1.1.1.0|2|10",
		"1.3.6.1.2.1.1.2.0|2|20",
	)
	out, err := c.Resolve([]VarBind{{OID: oid.MustParse("1.3.6.1.2.1.1.1.0")}}, Flags{}, RequestContext{})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(out) != 1 || out[0].Value.Text != "10" {
		t.Fatalf("Resolve(exact) = %+v, want value 10", out)
	}
}

func TestResolveGetNextAdvancesToNextRecord(t *testing.T) {
	c := newTestController(t, nil,
		"1.3.6.1.2.1.1.1.0|2|10",
		"1.3.6.1.2.1.1.2.0|2|20",
	)
	out, err := c.Resolve([]VarBind{{OID: oid.MustParse("1.3.6.1.2.1.1.1.0")}}, Flags{NextFlag: true}, RequestContext{})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("Resolve returned %d varbinds, want 1", len(out))
	}
	if !out[0].OID.Equal(oid.MustParse("1.3.6.1.2.1.1.2.0")) || out[0].Value.Text != "20" {
		t.Fatalf("Resolve(GETNEXT) = %+v, want OID 1.3.6.1.2.1.1.2.0 value 20", out[0])
	}
}

func TestResolveGetNextPastLastRecordReturnsEndOfMib(t *testing.T) {
	c := newTestController(t, nil,
		"1.3.6.1.2.1.1.1.0|2|10",
		"1.3.6.1.2.1.1.2.0|2|20",
	)
	out, err := c.Resolve([]VarBind{{OID: oid.MustParse("1.3.6.1.2.1.1.2.0")}}, Flags{NextFlag: true}, RequestContext{})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(out) != 1 || out[0].Value.Kind != record.KindEndOfMib {
		t.Fatalf("Resolve(GETNEXT past end) = %+v, want KindEndOfMib", out)
	}
}

func TestResolveGetOnUnindexedOIDDegradesToNoSuchInstance(t *testing.T) {
	c := newTestController(t, nil,
		"1.3.6.1.2.1.1.1.0|2|10",
	)
	out, err := c.Resolve([]VarBind{{OID: oid.MustParse("1.3.6.1.2.1.9.9.0")}}, Flags{}, RequestContext{})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(out) != 1 || out[0].Value.Kind != record.KindNoSuchInstance {
		t.Fatalf("Resolve(GET miss, no ceiling) = %+v, want KindNoSuchInstance", out)
	}
}

// subtreeDispatcher simulates a variation module bound to a subtree-covering
// record: it answers for any OID handed to it via ctx.OrigOID, proving the
// record stands in for the whole subtree rather than just its own line's OID.
type subtreeDispatcher struct {
	lastModule string
	lastCtx    record.VariationContext
}

func (d *subtreeDispatcher) Variate(moduleName string, o oid.OID, tag record.Tag, value record.Value, ctx record.VariationContext) (oid.OID, record.Value, error) {
	d.lastModule = moduleName
	d.lastCtx = ctx
	return ctx.OrigOID, record.Value{Kind: record.KindValue, Text: "synthesized"}, nil
}

func TestResolveSubtreeRecoveryViaPrevOffsetChain(t *testing.T) {
	disp := &subtreeDispatcher{}
	c := newTestController(t, disp,
		"1.3.6.1.4.1.1|79:constant|42",
		"1.3.6.1.4.1.2.0|2|100",
	)

	requested := oid.MustParse("1.3.6.1.4.1.1.5")
	out, err := c.Resolve([]VarBind{{OID: requested}}, Flags{}, RequestContext{})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("Resolve returned %d varbinds, want 1", len(out))
	}
	if !out[0].OID.Equal(requested) {
		t.Fatalf("Resolve(subtree) OID = %v, want %v echoed back by the module", out[0].OID, requested)
	}
	if out[0].Value.Text != "synthesized" {
		t.Fatalf("Resolve(subtree) value = %+v, want the module's synthesized value", out[0].Value)
	}
	if disp.lastModule != "constant" {
		t.Fatalf("dispatcher invoked with module %q, want %q", disp.lastModule, "constant")
	}
	if !disp.lastCtx.SubtreeFlag {
		t.Fatalf("ctx.SubtreeFlag = false, want true for a subtree-covering record")
	}
	if !disp.lastCtx.OrigOID.Equal(requested) {
		t.Fatalf("ctx.OrigOID = %v, want the originally requested OID %v", disp.lastCtx.OrigOID, requested)
	}
}

func TestResolveOutsideSubtreeDegrades(t *testing.T) {
	disp := &subtreeDispatcher{}
	c := newTestController(t, disp,
		"1.3.6.1.4.1.1|79:constant|42",
		"1.3.6.1.4.1.2.0|2|100",
	)
	// 1.3.6.1.4.1.3.0 sorts after both records and is not covered by the
	// subtree record's prefix ("1.3.6.1.4.1.1"), so it must degrade rather
	// than be handed to the module.
	out, err := c.Resolve([]VarBind{{OID: oid.MustParse("1.3.6.1.4.1.3.0")}}, Flags{}, RequestContext{})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(out) != 1 || out[0].Value.Kind != record.KindNoSuchInstance {
		t.Fatalf("Resolve(outside subtree) = %+v, want KindNoSuchInstance", out)
	}
	if disp.lastModule != "" {
		t.Fatalf("module must not be invoked for an OID outside its subtree")
	}
}

func TestResolveSetForwardsSetFlag(t *testing.T) {
	disp := &subtreeDispatcher{}
	c := newTestController(t, disp, "1.3.6.1.4.1.1|2:constant|1")

	_, err := c.Resolve([]VarBind{{OID: oid.MustParse("1.3.6.1.4.1.1"), Value: record.Value{Kind: record.KindValue, Text: "7"}}}, Flags{SetFlag: true}, RequestContext{})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !disp.lastCtx.SetFlag {
		t.Fatalf("ctx.SetFlag = false, want true for a SET request")
	}
	if disp.lastCtx.OrigValue.Text != "7" {
		t.Fatalf("ctx.OrigValue = %+v, want the SET request's submitted value", disp.lastCtx.OrigValue)
	}
}

func TestResolveMissingDataFileDegradesAll(t *testing.T) {
	path := writeDataFile(t, "1.3.6.1.2.1.1.1.0|2|10")
	c := NewController(path, record.NewSnmprecParser(), nil, nil)
	if err := c.BuildIndex(true, true); err != nil {
		t.Fatalf("BuildIndex: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := os.Remove(path); err != nil {
		t.Fatalf("Remove: %v", err)
	}

	out, err := c.Resolve([]VarBind{{OID: oid.MustParse("1.3.6.1.2.1.1.1.0")}}, Flags{}, RequestContext{})
	if err != nil {
		t.Fatalf("Resolve should degrade rather than error: %v", err)
	}
	if len(out) != 1 || out[0].Value.Kind != record.KindNoSuchInstance {
		t.Fatalf("Resolve(missing file) = %+v, want KindNoSuchInstance", out)
	}
}

func TestResolveViaHandleCachePool(t *testing.T) {
	pool := handlecache.New(1)
	pathA := writeDataFile(t, "1.3.6.1.2.1.1.1.0|2|10")
	pathB := writeDataFile(t, "1.3.6.1.2.1.1.2.0|2|20")

	a := NewController(pathA, record.NewSnmprecParser(), pool, nil)
	b := NewController(pathB, record.NewSnmprecParser(), pool, nil)
	if err := a.BuildIndex(true, true); err != nil {
		t.Fatalf("BuildIndex(a): %v", err)
	}
	if err := b.BuildIndex(true, true); err != nil {
		t.Fatalf("BuildIndex(b): %v", err)
	}

	if _, err := a.Resolve([]VarBind{{OID: oid.MustParse("1.3.6.1.2.1.1.1.0")}}, Flags{}, RequestContext{}); err != nil {
		t.Fatalf("Resolve(a): %v", err)
	}
	if pool.Len() != 1 {
		t.Fatalf("pool.Len() = %d, want 1", pool.Len())
	}

	// With capacity 1, opening b's handle must evict a's.
	if _, err := b.Resolve([]VarBind{{OID: oid.MustParse("1.3.6.1.2.1.1.2.0")}}, Flags{}, RequestContext{}); err != nil {
		t.Fatalf("Resolve(b): %v", err)
	}
	if pool.Len() != 1 {
		t.Fatalf("pool.Len() after eviction = %d, want 1", pool.Len())
	}

	// a must still be resolvable: its handle is reopened transparently.
	out, err := a.Resolve([]VarBind{{OID: oid.MustParse("1.3.6.1.2.1.1.1.0")}}, Flags{}, RequestContext{})
	if err != nil {
		t.Fatalf("Resolve(a) after eviction: %v", err)
	}
	if len(out) != 1 || out[0].Value.Text != "10" {
		t.Fatalf("Resolve(a) after eviction = %+v, want value 10", out)
	}
}
