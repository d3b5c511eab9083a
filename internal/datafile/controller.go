// Package datafile implements the persistent, ordered record store keyed by
// OID: one controller owns one (text file, index) pair and answers GET/
// GETNEXT/SET lookups against it, following the lexicographic successor
// chain across subtree-covering records exactly as the index describes it.
package datafile

import (
	"bufio"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/grm84/snmpsim/internal/handlecache"
	"github.com/grm84/snmpsim/internal/oid"
	"github.com/grm84/snmpsim/internal/record"
	"github.com/grm84/snmpsim/internal/snmpindex"
)

// DataFileError reports that the data file itself could not be opened or
// read; per-varbind resolution degrades to error_status rather than
// failing the whole request.
type DataFileError struct {
	Path string
	Err  error
}

func (e *DataFileError) Error() string {
	return fmt.Sprintf("datafile: %s: %v", e.Path, e.Err)
}

func (e *DataFileError) Unwrap() error { return e.Err }

// Flags carries the request polarity the lookup algorithm branches on.
type Flags struct {
	NextFlag bool // GETNEXT / GETBULK
	SetFlag  bool
}

// RequestContext carries the transport-level fields a variation module may
// need but that do not vary per-varbind within one request.
type RequestContext struct {
	TransportDomain  string
	TransportAddress string
	SnmpEngine       string
	ContextEngineID  string
	ContextName      string
}

// VarBind is one requested or resolved object binding.
type VarBind struct {
	OID   oid.OID
	Value record.Value
}

// Controller owns one data file and its index. It implements
// handlecache.Opener so a Pool can hold a bounded number of open
// controllers process-wide.
type Controller struct {
	path      string
	indexPath string
	parser    record.Parser
	pool      *handlecache.Pool
	dispatcher record.Dispatcher

	mu    sync.Mutex
	index *snmpindex.RadixStore
	f     *os.File

	errCount uint64
}

// NewController returns a controller for the data file at path. pool may be
// nil, in which case the controller manages its own single file handle
// without participating in a shared cache (useful for tests).
func NewController(path string, parser record.Parser, pool *handlecache.Pool, dispatcher record.Dispatcher) *Controller {
	return &Controller{
		path:       path,
		indexPath:  path + ".idx",
		parser:     parser,
		pool:       pool,
		dispatcher: dispatcher,
	}
}

// Path implements handlecache.Opener.
func (c *Controller) Path() string { return c.path }

// Open implements handlecache.Opener.
func (c *Controller) Open() error {
	f, err := os.Open(c.path)
	if err != nil {
		return err
	}
	c.f = f
	return nil
}

// Close implements handlecache.Opener.
func (c *Controller) Close() error {
	if c.f == nil {
		return nil
	}
	err := c.f.Close()
	c.f = nil
	return err
}

func (c *Controller) ensureOpen() error {
	if c.pool == nil {
		if c.f != nil {
			return nil
		}
		return c.Open()
	}
	_, err := c.pool.Acquire(c)
	return err
}

// ErrorCount reports the number of per-varbind parser failures observed
// across the lifetime of this controller.
func (c *Controller) ErrorCount() uint64 {
	return atomic.LoadUint64(&c.errCount)
}

// BuildIndex ensures the sorted index is present and fresh, rebuilding it
// when the data file is newer than the index or force is set. When
// validate is true, it additionally rejects a data file whose records are
// not strictly OID-ascending, or that the parser rejects.
func (c *Controller) BuildIndex(force, validate bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	dataInfo, err := os.Stat(c.path)
	if err != nil {
		return &DataFileError{Path: c.path, Err: err}
	}

	if !force {
		if idxInfo, err := os.Stat(c.indexPath); err == nil && !idxInfo.ModTime().Before(dataInfo.ModTime()) {
			store, err := snmpindex.Load(c.indexPath)
			if err == nil {
				c.index = store
				if !validate {
					return nil
				}
				if verr := c.validateIndex(store, dataInfo.Size()); verr == nil {
					return nil
				}
			}
		}
	}

	store, err := c.buildIndexFromScratch(validate)
	if err != nil {
		return err
	}
	if err := snmpindex.Save(c.indexPath, store); err != nil {
		log.Printf("datafile: failed to persist index for %s: %v", c.path, err)
	}
	c.index = store
	return nil
}

func (c *Controller) buildIndexFromScratch(validate bool) (*snmpindex.RadixStore, error) {
	f, err := os.Open(c.path)
	if err != nil {
		return nil, &DataFileError{Path: c.path, Err: err}
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, &DataFileError{Path: c.path, Err: err}
	}

	store := snmpindex.NewRadixStore()
	reader := bufio.NewReader(f)

	var offset int64
	var lastOID oid.OID
	haveLast := false
	lastSubtreeOffset := int64(-1)

	for {
		raw, rerr := reader.ReadString('\n')
		start := offset
		offset += int64(len(raw))
		trimmed := strings.TrimRight(raw, "\r\n")

		if strings.TrimSpace(trimmed) == "" || strings.HasPrefix(strings.TrimSpace(trimmed), "#") {
			if rerr != nil {
				break
			}
			continue
		}

		o, tag, perr := c.parser.ParseTag(trimmed)
		if perr != nil {
			if validate {
				return nil, &snmpindex.IndexError{Path: c.path, Err: fmt.Errorf("parse error at offset %d: %w", start, perr)}
			}
			if rerr != nil {
				break
			}
			continue
		}

		if validate && haveLast && !lastOID.Less(o) {
			return nil, &snmpindex.IndexError{Path: c.path, Err: fmt.Errorf("records not strictly OID-ascending at offset %d", start)}
		}

		if existing, ok := store.Get(o.String()); ok {
			_ = existing
			// duplicate OID: keep the first-seen offset, per the
			// documented tie-break.
		} else {
			subtree := tag.HasModule()
			store.Insert(o.String(), snmpindex.Entry{Offset: start, SubtreeFlag: subtree, PrevOffset: lastSubtreeOffset})
			if subtree {
				lastSubtreeOffset = start
			}
		}

		lastOID = o
		haveLast = true

		if rerr != nil {
			break
		}
	}

	store.Insert(oid.Last, snmpindex.Entry{Offset: info.Size(), SubtreeFlag: false, PrevOffset: lastSubtreeOffset})
	store.Finalize()
	return store, nil
}

// validateIndex performs the cheap check available without rescanning the
// whole data file: the "last" sentinel's offset must equal the file's
// current size, otherwise the index was built against a different-length
// file and must be rebuilt.
func (c *Controller) validateIndex(store *snmpindex.RadixStore, size int64) error {
	last, ok := store.Last()
	if !ok || last.Offset != size {
		return &snmpindex.IndexError{Path: c.path, Err: fmt.Errorf("stale index: last offset %d != file size %d", last.Offset, size)}
	}
	return nil
}

func (c *Controller) errorStatus(flags Flags) record.Value {
	if flags.NextFlag {
		return record.EndOfMib
	}
	return record.Value{Kind: record.KindNoSuchInstance}
}

func failAll(varbinds []VarBind, status record.Value) []VarBind {
	out := make([]VarBind, len(varbinds))
	for i, vb := range varbinds {
		out[i] = VarBind{OID: vb.OID, Value: status}
	}
	return out
}

// Resolve answers one request's worth of varbinds against this controller's
// data file, following the lookup algorithm described for each one
// independently: index probe, seek, then a bounded successor loop that
// handles both exact-match GETNEXT advancement and subtree recovery for a
// miss that landed inside a preceding wildcard record.
//
// A NoDataNotification or MibOperationError returned by a variation module
// aborts the whole batch and is returned unchanged, mirroring how these two
// conditions are meant to propagate to the transport layer untranslated.
// Any other per-varbind failure degrades that varbind to error_status and
// increments the controller's error counter; the rest of the batch
// continues.
func (c *Controller) Resolve(varbinds []VarBind, flags Flags, reqCtx RequestContext) ([]VarBind, error) {
	status := c.errorStatus(flags)

	if err := c.ensureOpen(); err != nil {
		log.Printf("datafile: %s: %v", c.path, err)
		return failAll(varbinds, status), nil
	}

	c.mu.Lock()
	index := c.index
	f := c.f
	c.mu.Unlock()

	if index == nil {
		log.Printf("datafile: %s: index not built", c.path)
		return failAll(varbinds, status), nil
	}

	info, err := f.Stat()
	if err != nil {
		log.Printf("datafile: %s: %v", c.path, err)
		return failAll(varbinds, status), nil
	}
	size := info.Size()

	varsTotal := len(varbinds)
	responses := make([]VarBind, 0, varsTotal)

varbindLoop:
	for i, vb := range varbinds {
		requested := vb.OID
		varsRemaining := varsTotal - i - 1

		var (
			offset      int64
			subtreeFlag bool
			exactMatch  bool
		)

		if entry, ok := index.Get(requested.String()); ok {
			offset = entry.Offset
			subtreeFlag = entry.SubtreeFlag
			exactMatch = true
		} else {
			_, entry, ok := ceiling(index, requested, flags.NextFlag)
			if !ok {
				// Nothing indexed sorts after the request: start from the
				// end-of-file sentinel so a trailing wildcard record can
				// still be recovered through its prev_offset link.
				entry, ok = index.Last()
				if !ok {
					responses = append(responses, VarBind{OID: requested, Value: status})
					continue varbindLoop
				}
			}
			offset = entry.Offset
			subtreeFlag = false
			exactMatch = false
		}

		line, nextLineOffset, rerr := readLineAt(f, offset, size)
		if rerr != nil {
			log.Printf("datafile: %s: read at %d: %v", c.path, offset, rerr)
			responses = append(responses, VarBind{OID: requested, Value: status})
			atomic.AddUint64(&c.errCount, 1)
			continue varbindLoop
		}

		fatal := false
		prevChainOffset := int64(-1)
		havePrevChain := false

		for {
			if exactMatch {
				if flags.NextFlag && !subtreeFlag {
					nline, nnext, err2 := readLineAt(f, nextLineOffset, size)
					if err2 != nil {
						fatal = true
						line = ""
					} else if nline != "" {
						nOID, _, err3 := c.parser.Evaluate(nline, true, nil, record.VariationContext{})
						if err3 != nil {
							log.Printf("datafile: %s: index broken at successor of %s", c.path, requested)
							fatal = true
							line = ""
						} else if nEntry, ok := index.Get(nOID.String()); !ok {
							log.Printf("datafile: %s: index broken for %s, index stale?", c.path, nOID)
							fatal = true
							line = ""
						} else {
							subtreeFlag = nEntry.SubtreeFlag
							line = nline
							nextLineOffset = nnext
						}
					} else {
						line = nline
						nextLineOffset = nnext
					}
				}
			} else {
				var lookupKey string
				if line != "" {
					lineOID, _, lerr := c.parser.Evaluate(line, true, nil, record.VariationContext{})
					if lerr != nil {
						fatal = true
						line = ""
					} else {
						lookupKey = lineOID.String()
					}
				} else {
					lookupKey = oid.Last
				}

				if !fatal {
					entry2, ok := index.Get(lookupKey)
					if !ok {
						log.Printf("datafile: %s: index broken for %s, index stale?", c.path, lookupKey)
						fatal = true
						line = ""
					} else if entry2.PrevOffset >= 0 {
						if havePrevChain && entry2.PrevOffset >= prevChainOffset {
							log.Printf("datafile: %s: non-decreasing prev_offset chain, index corrupt", c.path)
							fatal = true
							line = ""
						} else {
							havePrevChain = true
							prevChainOffset = entry2.PrevOffset

							pline, _, perr := readLineAt(f, entry2.PrevOffset, size)
							if perr == nil && pline != "" {
								pOID, _, oerr := c.parser.Evaluate(pline, true, nil, record.VariationContext{})
								if oerr == nil && pOID.IsPrefixOf(requested) {
									line = pline
									subtreeFlag = true
								}
							}
						}
					}
				}
			}

			if fatal || line == "" {
				responses = append(responses, VarBind{OID: requested, Value: status})
				continue varbindLoop
			}

			ctx := record.VariationContext{
				OrigOID:          requested,
				OrigValue:        vb.Value,
				DataFile:         c.path,
				SubtreeFlag:      subtreeFlag,
				ExactMatch:       exactMatch,
				ErrorStatus:      status,
				VarsTotal:        varsTotal,
				VarsRemaining:    varsRemaining,
				NextFlag:         flags.NextFlag,
				SetFlag:          flags.SetFlag,
				TransportDomain:  reqCtx.TransportDomain,
				TransportAddress: reqCtx.TransportAddress,
				SnmpEngine:       reqCtx.SnmpEngine,
				ContextEngineID:  reqCtx.ContextEngineID,
				ContextName:      reqCtx.ContextName,
				RecordKey:        fmt.Sprintf("%s@%d", c.path, offset),
			}

			resOID, resVal, err := c.parser.Evaluate(line, false, c.dispatcher, ctx)
			if err != nil {
				var noData *record.NoDataNotification
				var mibErr *record.MibOperationError
				if errors.As(err, &noData) || errors.As(err, &mibErr) {
					return nil, err
				}
				log.Printf("datafile: %s: data error for %s: %v", c.path, requested, err)
				responses = append(responses, VarBind{OID: requested, Value: status})
				atomic.AddUint64(&c.errCount, 1)
				continue varbindLoop
			}

			if resVal.Kind == record.KindEndOfMib {
				exactMatch = true
				subtreeFlag = false
				continue
			}

			responses = append(responses, VarBind{OID: resOID, Value: resVal})
			continue varbindLoop
		}
	}

	return responses, nil
}

// ceiling returns the entry for the least indexed key greater than target
// (strict, used for GETNEXT) or greater than or equal to target (used for
// GET/SET), matching the "search always rounds up" fallback used when the
// index has no exact entry for the requested OID.
func ceiling(index *snmpindex.RadixStore, target oid.OID, strict bool) (string, snmpindex.Entry, bool) {
	return index.Ceiling(target, strict)
}

// readLineAt reads the line starting at offset via ReadAt, so concurrent
// resolutions of the same handle never share a cursor. It returns the line
// without its trailing newline, and the offset at which the next line
// begins. An offset at or past size yields an empty line signalling EOF.
func readLineAt(f *os.File, offset, size int64) (string, int64, error) {
	if offset >= size {
		return "", size, nil
	}

	const chunkSize = 4096
	var buf []byte
	pos := offset

	for pos < size {
		want := int64(chunkSize)
		if remaining := size - pos; remaining < want {
			want = remaining
		}
		tmp := make([]byte, want)
		n, err := f.ReadAt(tmp, pos)
		if n > 0 {
			tmp = tmp[:n]
			if idx := indexByte(tmp, '\n'); idx >= 0 {
				buf = append(buf, tmp[:idx]...)
				return strings.TrimRight(string(buf), "\r"), pos + int64(idx) + 1, nil
			}
			buf = append(buf, tmp...)
			pos += int64(n)
		}
		if err != nil {
			break
		}
	}

	return strings.TrimRight(string(buf), "\r"), size, nil
}

func indexByte(b []byte, c byte) int {
	for i, x := range b {
		if x == c {
			return i
		}
	}
	return -1
}
