package record

import (
	"testing"

	"github.com/grm84/snmpsim/internal/oid"
)

func TestParseTag(t *testing.T) {
	tag, err := ParseTag("2")
	if err != nil {
		t.Fatalf("ParseTag: %v", err)
	}
	if tag.Type != "2" || tag.HasModule() {
		t.Fatalf("ParseTag(%q) = %+v, want bare type with no module", "2", tag)
	}

	tag, err = ParseTag("79:constant")
	if err != nil {
		t.Fatalf("ParseTag: %v", err)
	}
	if tag.Type != "79" || tag.Module != "constant" || !tag.HasModule() {
		t.Fatalf("ParseTag(%q) = %+v, want type=79 module=constant", "79:constant", tag)
	}
	if got := tag.String(); got != "79:constant" {
		t.Fatalf("Tag.String() = %q, want %q", got, "79:constant")
	}

	if _, err := ParseTag(""); err == nil {
		t.Fatalf("ParseTag(empty) expected error")
	}
}

func TestEvaluateExactMatchNoModule(t *testing.T) {
	p := NewSnmprecParser()
	o, v, err := p.Evaluate("1.3.6.1.2.1.1.1.0|2|42", false, nil, VariationContext{})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if !o.Equal(oid.MustParse("1.3.6.1.2.1.1.1.0")) {
		t.Fatalf("Evaluate OID = %v, want 1.3.6.1.2.1.1.1.0", o)
	}
	if v.Kind != KindValue || v.Text != "42" || v.Raw != int64(42) {
		t.Fatalf("Evaluate value = %+v, want KindValue text=42 raw=42", v)
	}
}

func TestEvaluateOIDOnlySkipsModule(t *testing.T) {
	p := NewSnmprecParser()
	// A module-tagged line with no dispatcher would error if the module
	// were invoked; oidOnly must short-circuit before that happens.
	o, v, err := p.Evaluate("1.3.6.1.4.1.1.1|79:constant|constant-42", true, nil, VariationContext{})
	if err != nil {
		t.Fatalf("Evaluate(oidOnly): %v", err)
	}
	if !o.Equal(oid.MustParse("1.3.6.1.4.1.1.1")) {
		t.Fatalf("Evaluate(oidOnly) OID = %v", o)
	}
	if v != (Value{}) {
		t.Fatalf("Evaluate(oidOnly) value = %+v, want zero value", v)
	}
}

func TestEvaluateModuleWithoutDispatcherErrors(t *testing.T) {
	p := NewSnmprecParser()
	if _, _, err := p.Evaluate("1.3.6.1.4.1.1.1|79:constant|constant-42", false, nil, VariationContext{}); err == nil {
		t.Fatalf("expected error when a module-tagged record has no dispatcher")
	}
}

type fakeDispatcher struct {
	calledModule string
	calledOID    oid.OID
	ret          Value
	err          error
}

func (f *fakeDispatcher) Variate(moduleName string, o oid.OID, tag Tag, value Value, ctx VariationContext) (oid.OID, Value, error) {
	f.calledModule = moduleName
	f.calledOID = o
	if f.err != nil {
		return nil, Value{}, f.err
	}
	return o, f.ret, nil
}

func TestEvaluateDispatchesModule(t *testing.T) {
	p := NewSnmprecParser()
	disp := &fakeDispatcher{ret: Value{Kind: KindValue, Text: "99"}}
	o, v, err := p.Evaluate("1.3.6.1.4.1.1.1|79:constant|constant-42", false, disp, VariationContext{})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if disp.calledModule != "constant" {
		t.Fatalf("dispatcher called with module %q, want %q", disp.calledModule, "constant")
	}
	if !disp.calledOID.Equal(oid.MustParse("1.3.6.1.4.1.1.1")) {
		t.Fatalf("dispatcher called with OID %v", disp.calledOID)
	}
	if v.Text != "99" {
		t.Fatalf("Evaluate returned %+v, want dispatcher's value", v)
	}
	_ = o
}

func TestEvaluateMalformedLine(t *testing.T) {
	p := NewSnmprecParser()
	if _, _, err := p.Evaluate("1.3.6.1.2.1.1.1.0|2", false, nil, VariationContext{}); err == nil {
		t.Fatalf("expected error for a line missing the value column")
	}
}

func TestParseTagDistinguishesSubtreeCoverage(t *testing.T) {
	// A bare type (no :module) never covers a subtree: only a
	// module-bound record can synthesize values for OIDs other than the
	// one literally on the line.
	bare, err := ParseTag("2")
	if err != nil {
		t.Fatalf("ParseTag: %v", err)
	}
	if bare.HasModule() {
		t.Fatalf("bare tag must not report HasModule")
	}

	moduled, err := ParseTag("2:dynamic")
	if err != nil {
		t.Fatalf("ParseTag: %v", err)
	}
	if !moduled.HasModule() {
		t.Fatalf("module-suffixed tag must report HasModule")
	}
}
