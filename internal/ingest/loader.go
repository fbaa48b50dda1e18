// Package ingest loads a tenant's exported sign-in, legacy-auth, audit and
// mailbox rows from canonical JSON or NDJSON files into a core.Dataset.
package ingest

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/1sec-project/breachline/internal/core"
	"github.com/rs/zerolog"
)

// ErrNoInput is returned when a directory holds no recognised export files.
var ErrNoInput = errors.New("no export files found")

// IPLookup resolves a source IP to a location. geo.IPLocator implements it.
type IPLookup interface {
	Lookup(ip string) (*core.Location, error)
}

// Options configures a Loader.
type Options struct {
	// Locator fills in missing geography from the source IP. Optional.
	Locator IPLookup
	Logger  zerolog.Logger
}

// Stats counts what a load saw.
type Stats struct {
	Files      int            `json:"files"`
	Rows       map[string]int `json:"rows"`
	Invalid    map[string]int `json:"invalid"`
	Duplicates int            `json:"duplicates"`
	Enriched   int            `json:"enriched"`
}

func newStats() Stats {
	return Stats{Rows: map[string]int{}, Invalid: map[string]int{}}
}

// TotalInvalid sums rejected rows across streams.
func (s Stats) TotalInvalid() int {
	n := 0
	for _, v := range s.Invalid {
		n += v
	}
	return n
}

// Loader turns export files into datasets. It is safe for concurrent use.
type Loader struct {
	validator *Validator
	locator   IPLookup
	logger    zerolog.Logger
}

// NewLoader compiles the row schemas and returns a Loader.
func NewLoader(opts Options) (*Loader, error) {
	v, err := NewValidator()
	if err != nil {
		return nil, err
	}
	return &Loader{
		validator: v,
		locator:   opts.Locator,
		logger:    opts.Logger.With().Str("component", "ingest").Logger(),
	}, nil
}

// StreamForFile classifies an export file by base name prefix and extension.
func StreamForFile(name string) (Stream, bool) {
	base := strings.ToLower(filepath.Base(name))
	switch filepath.Ext(base) {
	case ".json", ".ndjson", ".jsonl":
	default:
		return "", false
	}
	switch {
	case strings.HasPrefix(base, "signin"), strings.HasPrefix(base, "sign_in"), strings.HasPrefix(base, "sign-in"):
		return StreamSignIn, true
	case strings.HasPrefix(base, "legacy"):
		return StreamLegacy, true
	case strings.HasPrefix(base, "audit"):
		return StreamAudit, true
	case strings.HasPrefix(base, "mailbox"):
		return StreamMailbox, true
	}
	return "", false
}

// LoadDir reads every recognised export file directly inside dir.
func (l *Loader) LoadDir(ctx context.Context, dir string) (*core.Dataset, Stats, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, Stats{}, fmt.Errorf("reading export dir: %w", err)
	}

	ds := &core.Dataset{}
	stats := newStats()
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		stream, ok := StreamForFile(entry.Name())
		if !ok {
			l.logger.Debug().Str("file", entry.Name()).Msg("skipping unrecognised file")
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, stats, err
		}
		path := filepath.Join(dir, entry.Name())
		if err := l.loadFile(path, stream, ds, &stats); err != nil {
			return nil, stats, err
		}
		stats.Files++
	}
	if stats.Files == 0 {
		return nil, stats, fmt.Errorf("%w in %s", ErrNoInput, dir)
	}

	l.finish(ds, &stats)
	l.logger.Info().
		Str("dir", dir).
		Int("files", stats.Files).
		Int("events", ds.Size()).
		Int("invalid", stats.TotalInvalid()).
		Int("duplicates", stats.Duplicates).
		Msg("export loaded")
	return ds, stats, nil
}

// LoadTenants loads each immediate subdirectory of root as one tenant.
// Subdirectories without export files are skipped.
func (l *Loader) LoadTenants(ctx context.Context, root string) (map[string]*core.Dataset, map[string]Stats, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, nil, fmt.Errorf("reading tenants root: %w", err)
	}
	datasets := map[string]*core.Dataset{}
	stats := map[string]Stats{}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		ds, st, err := l.LoadDir(ctx, filepath.Join(root, entry.Name()))
		if errors.Is(err, ErrNoInput) {
			continue
		}
		if err != nil {
			return nil, nil, fmt.Errorf("tenant %s: %w", entry.Name(), err)
		}
		datasets[entry.Name()] = ds
		stats[entry.Name()] = st
	}
	if len(datasets) == 0 {
		return nil, nil, fmt.Errorf("%w under %s", ErrNoInput, root)
	}
	return datasets, stats, nil
}

// bundle is the request body form of a dataset: one row array per stream.
type bundle struct {
	SignIns []json.RawMessage `json:"sign_ins"`
	Legacy  []json.RawMessage `json:"legacy"`
	Audits  []json.RawMessage `json:"audits"`
	Mailbox []json.RawMessage `json:"mailbox"`
}

// DecodeBundle reads a JSON object holding sign_ins, legacy, audits and
// mailbox row arrays, with the same validation as file loading.
func (l *Loader) DecodeBundle(r io.Reader) (*core.Dataset, Stats, error) {
	var b bundle
	if err := json.NewDecoder(r).Decode(&b); err != nil {
		return nil, Stats{}, fmt.Errorf("decoding dataset: %w", err)
	}
	ds := &core.Dataset{}
	stats := newStats()
	for stream, rows := range map[Stream][]json.RawMessage{
		StreamSignIn:  b.SignIns,
		StreamLegacy:  b.Legacy,
		StreamAudit:   b.Audits,
		StreamMailbox: b.Mailbox,
	} {
		for _, raw := range rows {
			l.addRow(stream, raw, ds, &stats)
		}
	}
	l.finish(ds, &stats)
	return ds, stats, nil
}

func (l *Loader) loadFile(path string, stream Stream, ds *core.Dataset, stats *Stats) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil
	}

	if trimmed[0] == '[' {
		var rows []json.RawMessage
		if err := json.Unmarshal(trimmed, &rows); err != nil {
			return fmt.Errorf("parsing %s: %w", path, err)
		}
		for _, raw := range rows {
			l.addRow(stream, raw, ds, stats)
		}
		return nil
	}

	scanner := bufio.NewScanner(bytes.NewReader(trimmed))
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		l.addRow(stream, append([]byte(nil), line...), ds, stats)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scanning %s: %w", path, err)
	}
	return nil
}

// addRow validates and converts one row. Rejected rows are counted, never
// passed on.
func (l *Loader) addRow(stream Stream, raw []byte, ds *core.Dataset, stats *Stats) {
	stats.Rows[string(stream)]++
	if err := l.convert(stream, raw, ds); err != nil {
		stats.Invalid[string(stream)]++
		l.logger.Debug().Err(err).Str("stream", string(stream)).Msg("row rejected")
	}
}

func (l *Loader) convert(stream Stream, raw []byte, ds *core.Dataset) error {
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return err
	}
	if err := l.validator.Validate(stream, doc); err != nil {
		return err
	}

	switch stream {
	case StreamSignIn:
		var row signInRow
		if err := json.Unmarshal(raw, &row); err != nil {
			return err
		}
		e, err := row.event()
		if err != nil {
			return err
		}
		ds.SignIns = append(ds.SignIns, e)
	case StreamLegacy:
		var row legacyRow
		if err := json.Unmarshal(raw, &row); err != nil {
			return err
		}
		e, err := row.event()
		if err != nil {
			return err
		}
		ds.Legacy = append(ds.Legacy, e)
	case StreamAudit:
		var row auditRow
		if err := json.Unmarshal(raw, &row); err != nil {
			return err
		}
		e, err := row.event()
		if err != nil {
			return err
		}
		ds.Audits = append(ds.Audits, e)
	case StreamMailbox:
		var row mailboxRow
		if err := json.Unmarshal(raw, &row); err != nil {
			return err
		}
		e, err := row.event()
		if err != nil {
			return err
		}
		ds.Mailbox = append(ds.Mailbox, e)
	default:
		return fmt.Errorf("unknown stream %q", stream)
	}
	return nil
}

// finish enriches missing geography, removes duplicates and orders the
// streams.
func (l *Loader) finish(ds *core.Dataset, stats *Stats) {
	if l.locator != nil {
		for i := range ds.SignIns {
			stats.Enriched += l.enrich(&ds.SignIns[i].Location, ds.SignIns[i].SourceIP)
		}
		for i := range ds.Legacy {
			stats.Enriched += l.enrich(&ds.Legacy[i].Location, ds.Legacy[i].SourceIP)
		}
		for i := range ds.Mailbox {
			stats.Enriched += l.enrich(&ds.Mailbox[i].Location, ds.Mailbox[i].ClientIP)
		}
	}

	before := ds.Size()
	ds.Normalize()
	sort.SliceStable(ds.Audits, func(i, j int) bool { return ds.Audits[i].Timestamp.Before(ds.Audits[j].Timestamp) })
	sort.SliceStable(ds.Mailbox, func(i, j int) bool { return ds.Mailbox[i].Timestamp.Before(ds.Mailbox[j].Timestamp) })
	stats.Duplicates += before - ds.Size()
}

func (l *Loader) enrich(loc **core.Location, ip string) int {
	if *loc != nil || ip == "" {
		return 0
	}
	found, err := l.locator.Lookup(ip)
	if err != nil || found == nil {
		return 0
	}
	*loc = found
	return 1
}
