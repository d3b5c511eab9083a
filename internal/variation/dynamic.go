package variation

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/grm84/snmpsim/internal/oid"
	"github.com/grm84/snmpsim/internal/record"
)

// DynamicModule adapts the time-based value generators (CounterMonotonic,
// RandomJitter, Step, PeriodicReset, DropOID, Timeout) into the
// {init, variate, shutdown} contract: the record's value column carries a
// "type=...,opt=...,..." configuration, and the resulting generator
// instance is created once per record and reused for every subsequent
// lookup against it, so a counter keeps counting from wherever it left
// off rather than resetting on every GET.
type DynamicModule struct {
	mu        sync.Mutex
	instances map[string]Variation
}

// NewDynamicModule returns a ready-to-use module instance.
func NewDynamicModule() *DynamicModule {
	return &DynamicModule{instances: make(map[string]Variation)}
}

func (m *DynamicModule) Init(ctx record.VariationContext) error { return nil }

func (m *DynamicModule) Shutdown(ctx record.VariationContext) error { return nil }

func (m *DynamicModule) Variate(o oid.OID, tag record.Tag, value record.Value, ctx record.VariationContext) (oid.OID, record.Value, error) {
	m.mu.Lock()
	v, ok := m.instances[ctx.RecordKey]
	if !ok {
		built, err := buildDynamicVariation(value.Text)
		if err != nil {
			m.mu.Unlock()
			return ctx.OrigOID, ctx.ErrorStatus, nil
		}
		v = built
		m.instances[ctx.RecordKey] = v
	}
	m.mu.Unlock()

	pdu := PDU{Name: o.String(), Type: berTypeFromTag(tag.Type), Value: value.Raw}
	out, err := v.Apply(time.Now(), pdu)
	if err != nil {
		if errors.Is(err, ErrDropOID) {
			return o, record.Value{Kind: record.KindNoSuchObject}, nil
		}
		return ctx.OrigOID, ctx.ErrorStatus, nil
	}

	return o, record.Value{Kind: record.KindValue, Text: fmt.Sprintf("%v", out.Value), Raw: out.Value}, nil
}

func parseDynamicSpec(raw string) (variationSpec, error) {
	var spec variationSpec
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		i := strings.IndexByte(part, '=')
		if i < 0 {
			return spec, fmt.Errorf("malformed option %q", part)
		}
		key := strings.ToLower(strings.TrimSpace(part[:i]))
		val := strings.TrimSpace(part[i+1:])
		switch key {
		case "type":
			spec.Type = val
		case "delta":
			n, _ := strconv.ParseInt(val, 10, 64)
			spec.Delta = n
		case "max":
			n, _ := strconv.ParseInt(val, 10, 64)
			spec.Max = n
		case "seed":
			n, _ := strconv.ParseInt(val, 10, 64)
			spec.Seed = n
		case "period":
			spec.Period = val
		case "delay":
			spec.Delay = val
		}
	}
	return spec, nil
}

func buildDynamicVariation(raw string) (Variation, error) {
	spec, err := parseDynamicSpec(raw)
	if err != nil {
		return nil, err
	}
	return buildVariation(spec)
}
