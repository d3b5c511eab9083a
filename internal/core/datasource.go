// Package core wires the data-resolution primitives (discovery, handlecache,
// datafile, variation) into a single lookup surface an SNMP agent can call
// per inbound request: find the data file whose identifier best matches the
// request's transport/context tuple, then resolve the requested varbinds
// against it.
package core

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/grm84/snmpsim/internal/contextresolve"
	"github.com/grm84/snmpsim/internal/datafile"
	"github.com/grm84/snmpsim/internal/discovery"
	"github.com/grm84/snmpsim/internal/handlecache"
	"github.com/grm84/snmpsim/internal/oid"
	"github.com/grm84/snmpsim/internal/record"
	"github.com/grm84/snmpsim/internal/variation"
	"github.com/gosnmp/gosnmp"
)

// Extensions registers the data-file kinds Walk recognizes. Only the
// snmprec text grammar is supported; the value is an opaque record-type
// tag, unused beyond distinguishing extensions during discovery.
var Extensions = map[string]string{
	"snmprec": "snmprec",
}

// DataSource owns every discovered data file under one root directory and
// answers lookups by resolving an inbound request to the best-matching
// file via contextresolve, then delegating to that file's controller.
type DataSource struct {
	mu          sync.RWMutex
	root        string
	pool        *handlecache.Pool
	dispatcher  *variation.Registry
	parser      record.Parser
	controllers map[string]*datafile.Controller // identifier -> controller
	binder      *variation.Binder               // optional global OID-prefix overlay, applied after file resolution
}

// SetBinder installs (or clears, with nil) a prefix-matched overlay applied
// to every successfully resolved value, regardless of which data file or
// module produced it. This is how a deployment layers a config-driven
// counter/jitter/timeout chain over OIDs it does not want to hand-author a
// "dynamic" module tag for in the data file itself.
func (ds *DataSource) SetBinder(b *variation.Binder) {
	ds.mu.Lock()
	defer ds.mu.Unlock()
	ds.binder = b
}

// NewDataSource walks root for data files, builds an index for each, and
// returns a ready-to-query DataSource. cacheCapacity <= 0 uses
// handlecache.DefaultCapacity.
func NewDataSource(root string, cacheCapacity int, dispatcher *variation.Registry) (*DataSource, error) {
	ds := &DataSource{
		root:        root,
		pool:        handlecache.New(cacheCapacity),
		dispatcher:  dispatcher,
		parser:      record.NewSnmprecParser(),
		controllers: make(map[string]*datafile.Controller),
	}

	// A root that names a single file (rather than a directory of data
	// files) is treated as the default ("") agent's sole dataset, the
	// common single-file invocation predating per-agent discovery.
	if info, statErr := os.Stat(root); statErr == nil && info.Mode().IsRegular() {
		c := datafile.NewController(root, ds.parser, ds.pool, ds.dispatcher)
		if err := c.BuildIndex(false, true); err != nil {
			return nil, fmt.Errorf("core: build index for %s: %w", root, err)
		}
		ds.controllers[""] = c
		return ds, nil
	}

	entries, err := discovery.Walk(root, Extensions)
	if err != nil {
		return nil, fmt.Errorf("core: discover data files under %s: %w", root, err)
	}

	for _, e := range entries {
		c := datafile.NewController(e.Path, ds.parser, ds.pool, ds.dispatcher)
		if err := c.BuildIndex(false, true); err != nil {
			return nil, fmt.Errorf("core: build index for %s: %w", e.Path, err)
		}
		ds.controllers[e.Identifier] = c
	}

	return ds, nil
}

// Identifiers returns every discovered agent identifier, for diagnostics.
func (ds *DataSource) Identifiers() []string {
	ds.mu.RLock()
	defer ds.mu.RUnlock()
	out := make([]string, 0, len(ds.controllers))
	for id := range ds.controllers {
		out = append(out, id)
	}
	return out
}

// Rebuild re-walks root and replaces the controller set, picking up data
// files added or removed since the last build. Existing controllers for
// identifiers that survive are left untouched so their cached index and any
// handle-cache membership is not disturbed.
func (ds *DataSource) Rebuild() error {
	entries, err := discovery.Walk(ds.root, Extensions)
	if err != nil {
		return fmt.Errorf("core: rediscover data files under %s: %w", ds.root, err)
	}

	ds.mu.Lock()
	defer ds.mu.Unlock()

	next := make(map[string]*datafile.Controller, len(entries))
	for _, e := range entries {
		if existing, ok := ds.controllers[e.Identifier]; ok && existing.Path() == e.Path {
			next[e.Identifier] = existing
			continue
		}
		c := datafile.NewController(e.Path, ds.parser, ds.pool, ds.dispatcher)
		if err := c.BuildIndex(false, true); err != nil {
			return fmt.Errorf("core: build index for %s: %w", e.Path, err)
		}
		next[e.Identifier] = c
	}
	ds.controllers = next
	return nil
}

// Resolve maps req to the best-matching data file and resolves varbinds
// against it. If no data file matches any candidate identifier, the default
// (empty-identifier) data file is used; if there is none, every varbind
// degrades to the flags-appropriate error status.
func (ds *DataSource) Resolve(req contextresolve.Request, varbinds []datafile.VarBind, flags datafile.Flags) ([]datafile.VarBind, error) {
	ds.mu.RLock()
	candidates := contextresolve.Candidates(req)
	var chosen *datafile.Controller
	for _, candidate := range candidates {
		if c, ok := ds.controllers[candidate]; ok {
			chosen = c
			break
		}
	}
	if chosen == nil {
		chosen = ds.controllers[""]
	}
	binder := ds.binder
	ds.mu.RUnlock()

	if chosen == nil {
		return degrade(varbinds, flags), nil
	}

	reqCtx := datafile.RequestContext{
		TransportDomain:  req.TransportDomain,
		TransportAddress: req.TransportAddress,
		ContextEngineID:  req.ContextEngineID,
		ContextName:      req.ContextName,
	}
	out, err := chosen.Resolve(varbinds, flags, reqCtx)
	if err != nil || binder == nil {
		return out, err
	}

	now := time.Now()
	for i, vb := range out {
		if vb.Value.Kind != record.KindValue {
			continue
		}
		pdu, applyErr := binder.Apply(now, gosnmp.SnmpPDU{Name: vb.OID.String(), Type: gosnmp.Counter32, Value: vb.Value.Raw})
		if applyErr != nil {
			continue
		}
		out[i].Value = record.Value{Kind: record.KindValue, Text: fmt.Sprintf("%v", pdu.Value), Raw: pdu.Value}
	}
	return out, nil
}

func degrade(varbinds []datafile.VarBind, flags datafile.Flags) []datafile.VarBind {
	status := record.Value{Kind: record.KindNoSuchInstance}
	if flags.NextFlag {
		status = record.EndOfMib
	}
	out := make([]datafile.VarBind, len(varbinds))
	for i, vb := range varbinds {
		out[i] = datafile.VarBind{OID: vb.OID, Value: status}
	}
	return out
}

// SingleGet is a convenience wrapper for resolving exactly one OID under
// GET semantics.
func (ds *DataSource) SingleGet(req contextresolve.Request, target oid.OID) (datafile.VarBind, error) {
	out, err := ds.Resolve(req, []datafile.VarBind{{OID: target}}, datafile.Flags{})
	if err != nil || len(out) == 0 {
		return datafile.VarBind{OID: target, Value: record.Value{Kind: record.KindNoSuchInstance}}, err
	}
	return out[0], nil
}
