// Package unify merges per-source record streams into one canonical corpus.
//
// Each source is read record-at-a-time and unified into its own batch, so a
// source that fails its unmapped-label ceiling is discarded without
// affecting the others. Batches are concatenated in input order, which makes
// the corpus a pure function of its inputs.
package unify

import (
	"context"
	"fmt"
	"iter"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/idlab-discover/FairDerm-cli/internal/apperr"
	"github.com/idlab-discover/FairDerm-cli/internal/dataset"
	"github.com/idlab-discover/FairDerm-cli/internal/labelmap"
)

// DefaultUnmappedCeiling is the largest tolerated share of unmapped labels
// per source.
const DefaultUnmappedCeiling = 0.01

// corpusNamespace scopes corpus version ids.
var corpusNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/idlab-discover/FairDerm-cli/corpus"))

// Stream is one source's records.
type Stream struct {
	SourceID string
	// Table selects the mapping table; SourceID when empty.
	Table   string
	Records iter.Seq[dataset.Record]
	// Err, when set, reports a read error once Records is exhausted. A read
	// error fails the source like an overflow does.
	Err func() error
}

// SliceStream wraps an in-memory slice as a Stream.
func SliceStream(sourceID string, records []dataset.Record) Stream {
	return Stream{
		SourceID: sourceID,
		Records: func(yield func(dataset.Record) bool) {
			for _, r := range records {
				if !yield(r) {
					return
				}
			}
		},
	}
}

// Options tune a unification run.
type Options struct {
	// UnmappedCeiling is the maximum unmapped ratio per source, in [0,1].
	UnmappedCeiling float64
	// Parallel bounds how many sources are unified at once. Zero or less
	// means one worker per source.
	Parallel int
	// OnProgress receives per-source events. It may be called from several
	// goroutines at once.
	OnProgress ProgressCallback
}

// ProgressCallback is called during unification to report progress
type ProgressCallback func(event ProgressEvent)

// ProgressEvent represents a progress update
type ProgressEvent struct {
	Type     ProgressEventType
	SourceID string
	Index    int
	Total    int
	Report   SourceReport
	Error    error
}

// ProgressEventType identifies the type of progress event
type ProgressEventType int

const (
	EventSourceStart ProgressEventType = iota
	EventSourceComplete
	EventSourceFailed
)

// DefaultOptions returns the standard options.
func DefaultOptions() Options {
	return Options{UnmappedCeiling: DefaultUnmappedCeiling}
}

// Unifier applies a Mapper to record streams.
type Unifier struct {
	mapper *labelmap.Mapper
	opts   Options
}

// New returns a Unifier. Out-of-range ceilings fall back to the default.
func New(mapper *labelmap.Mapper, opts Options) *Unifier {
	if opts.UnmappedCeiling < 0 || opts.UnmappedCeiling > 1 {
		opts.UnmappedCeiling = DefaultUnmappedCeiling
	}
	return &Unifier{mapper: mapper, opts: opts}
}

type batch struct {
	samples []dataset.Sample
	report  SourceReport
	err     error
}

// Unify reads every stream and returns the merged corpus. Per-source
// failures are recorded in Corpus.Report; the returned error is reserved for
// cancellation, invalid input and an empty result.
func (u *Unifier) Unify(ctx context.Context, streams []Stream) (*Corpus, error) {
	if u == nil || u.mapper == nil {
		return nil, fmt.Errorf("unify: no label mapper configured")
	}
	seen := make(map[string]bool, len(streams))
	for _, s := range streams {
		id := strings.TrimSpace(s.SourceID)
		if id == "" {
			return nil, apperr.User("unify: stream without a source id")
		}
		if seen[id] {
			return nil, apperr.Userf("unify: source %q given more than once", id)
		}
		seen[id] = true
	}

	batches := make([]batch, len(streams))
	g, gctx := errgroup.WithContext(ctx)
	if u.opts.Parallel > 0 {
		g.SetLimit(u.opts.Parallel)
	}
	progress := u.opts.OnProgress
	if progress == nil {
		progress = func(ProgressEvent) {}
	}
	for i, s := range streams {
		g.Go(func() error {
			id := strings.TrimSpace(s.SourceID)
			progress(ProgressEvent{Type: EventSourceStart, SourceID: id, Index: i, Total: len(streams)})
			b, err := u.unifySource(gctx, s)
			if err != nil {
				progress(ProgressEvent{Type: EventSourceFailed, SourceID: id, Index: i, Total: len(streams), Error: err})
				return err
			}
			batches[i] = b
			if b.err != nil {
				progress(ProgressEvent{Type: EventSourceFailed, SourceID: id, Index: i, Total: len(streams), Report: b.report, Error: b.err})
				return nil
			}
			progress(ProgressEvent{Type: EventSourceComplete, SourceID: id, Index: i, Total: len(streams), Report: b.report})
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	c := &Corpus{Report: Report{Sources: make(map[string]SourceReport, len(streams))}}
	for i, b := range batches {
		id := strings.TrimSpace(streams[i].SourceID)
		c.Report.Sources[id] = b.report
		c.Report.TotalRead += b.report.Read
		if b.err != nil {
			c.Report.Failed = append(c.Report.Failed, SourceFailure{SourceID: id, Reason: b.err.Error(), Err: b.err})
			continue
		}
		c.samples = append(c.samples, b.samples...)
	}
	c.Report.TotalSamples = len(c.samples)
	if len(c.samples) == 0 {
		return c, apperr.ErrEmptyInput
	}
	c.Version = versionOf(c.samples)
	logf("", "unified %d samples from %d sources (%d failed), version %s",
		len(c.samples), len(streams)-len(c.Report.Failed), len(c.Report.Failed), c.Version)
	return c, nil
}

func (u *Unifier) unifySource(ctx context.Context, s Stream) (batch, error) {
	sourceID := strings.TrimSpace(s.SourceID)
	table := strings.TrimSpace(s.Table)
	if table == "" {
		table = sourceID
	}
	b := batch{report: SourceReport{SourceID: sourceID, UnmappedLabels: map[string]int{}}}
	if s.Records == nil {
		return b, nil
	}
	ids := make(map[string]bool)
	before := u.mapper.Tally(sourceID)

	for rec := range s.Records {
		if err := ctx.Err(); err != nil {
			return batch{}, err
		}
		b.report.Read++

		sample, err := u.toSample(sourceID, table, rec)
		if err != nil {
			b.report.Malformed++
			logf(sourceID, "skipping record %d: %v", b.report.Read, err)
			continue
		}
		if ids[sample.ID] {
			b.report.Duplicates++
			logf(sourceID, "skipping duplicate sample %s", sample.ID)
			continue
		}
		ids[sample.ID] = true

		sample.Label = u.mapper.MapIn(rec.RawLabel, sourceID, table)
		b.samples = append(b.samples, sample)
	}
	b.report.Samples = len(b.samples)

	after := u.mapper.Tally(sourceID)
	b.report.Unmapped = after.Unmapped - before.Unmapped
	b.report.Mapped = (after.Observed - before.Observed) - b.report.Unmapped
	for label, n := range after.Labels {
		if d := n - before.Labels[label]; d > 0 {
			b.report.UnmappedLabels[label] = d
		}
	}

	if s.Err != nil {
		if err := s.Err(); err != nil {
			b.err = fmt.Errorf("read %s: %w", sourceID, err)
			b.samples = nil
			logf(sourceID, "batch discarded: %v", b.err)
			return b, nil
		}
	}
	if ratio := b.report.UnmappedRatio(); ratio > u.opts.UnmappedCeiling {
		b.err = &apperr.UnmappedLabelOverflowError{
			Source:   sourceID,
			Unmapped: b.report.Unmapped,
			Total:    b.report.Mapped + b.report.Unmapped,
			Ceiling:  u.opts.UnmappedCeiling,
		}
		b.samples = nil
		logf(sourceID, "batch discarded: %v", b.err)
	}
	return b, nil
}

func (u *Unifier) toSample(sourceID, table string, rec dataset.Record) (dataset.Sample, error) {
	if src := strings.TrimSpace(rec.SourceID); src != "" && src != sourceID {
		return dataset.Sample{}, fmt.Errorf("%w: source %q in stream %q", apperr.ErrMalformedRecord, src, sourceID)
	}
	if strings.TrimSpace(rec.RawLabel) == "" {
		return dataset.Sample{}, fmt.Errorf("%w: empty raw label", apperr.ErrMalformedRecord)
	}
	primary := rec.PrimaryID()
	if primary == "" {
		return dataset.Sample{}, fmt.Errorf("%w: no identifier or image reference", apperr.ErrMalformedRecord)
	}
	return dataset.Sample{
		ID:           dataset.SampleID(sourceID, primary),
		ImageRef:     rec.ImageRef,
		Demographics: u.mapper.Attributes(table, rec.Demographics),
		SourceID:     sourceID,
	}, nil
}

func versionOf(samples []dataset.Sample) string {
	var sb strings.Builder
	for _, s := range samples {
		sb.WriteString(s.ID)
		sb.WriteByte('=')
		sb.WriteString(string(s.Label))
		sb.WriteByte('\n')
	}
	return uuid.NewSHA1(corpusNamespace, []byte(sb.String())).String()
}

