package pipeline

import (
	"sort"
	"strings"

	"github.com/edugen/video2pdf-service/internal/domain/entity"
)

// FrameResult is one frame's completed inference output, fed to the
// deduplicator in strictly increasing frame-index order.
type FrameResult struct {
	Frame  entity.Frame
	Blocks []entity.TextBlock
	// DetectFailed marks a frame whose detection call failed; it carries
	// zero regions but still occupies its slot in the ordered stream.
	DetectFailed bool
}

// Deduplicator collapses runs of near-identical frames into slides. It
// keeps one open candidate at a time plus the set of already-emitted
// dedup keys, so memory is bounded by the number of distinct slides,
// never by video length.
type Deduplicator struct {
	threshold float64
	cand      *candidate
	emitted   map[string]struct{}
	slides    []entity.Slide
}

type candidate struct {
	frame  entity.Frame
	blocks []entity.TextBlock
	text   string
	norm   string
	fp     fingerprint
	conf   float64
}

// growFactor is how much longer a later capture's normalized text must
// be to displace the current representative ("better capture").
const growFactor = 1.05

func NewDeduplicator(similarityThreshold float64) *Deduplicator {
	return &Deduplicator{
		threshold: similarityThreshold,
		emitted:   make(map[string]struct{}),
	}
}

// Observe consumes the next frame result in index order.
func (d *Deduplicator) Observe(res FrameResult) {
	text := AggregateText(res.Blocks)
	norm := normalizeForFingerprint(text)
	if norm == "" {
		// A frame with no usable text neither opens a candidate nor
		// closes the current one: a blank interstitial between two
		// captures of the same slide must not split it.
		return
	}

	fp := newFingerprint(norm)
	conf := meanConfidence(res.Blocks)

	if d.cand == nil {
		d.cand = &candidate{frame: res.Frame, blocks: res.Blocks, text: text, norm: norm, fp: fp, conf: conf}
		return
	}

	if d.cand.fp.similarity(fp) >= d.threshold {
		d.maybePromote(res, text, norm, fp, conf)
		return
	}

	d.close()
	d.cand = &candidate{frame: res.Frame, blocks: res.Blocks, text: text, norm: norm, fp: fp, conf: conf}
}

// maybePromote applies the better-capture heuristic: a materially longer
// text wins outright; equal text with strictly higher mean confidence
// wins the tie (later frames of a static slide are often sharper).
func (d *Deduplicator) maybePromote(res FrameResult, text, norm string, fp fingerprint, conf float64) {
	switch {
	case float64(len(norm)) > float64(len(d.cand.norm))*growFactor:
	case norm == d.cand.norm && conf > d.cand.conf:
	default:
		return
	}
	d.cand = &candidate{frame: res.Frame, blocks: res.Blocks, text: text, norm: norm, fp: fp, conf: conf}
}

// close emits the open candidate as a slide unless its key was already
// emitted earlier in the run: content shown a second time is a
// re-display of an existing slide, not a new one.
func (d *Deduplicator) close() {
	if d.cand == nil {
		return
	}
	key := dedupKey(d.cand.norm)
	if _, seen := d.emitted[key]; !seen {
		d.emitted[key] = struct{}{}
		d.slides = append(d.slides, entity.Slide{
			FrameIndex: d.cand.frame.Index,
			Timestamp:  d.cand.frame.Timestamp,
			ImagePath:  d.cand.frame.Path,
			Blocks:     d.cand.blocks,
			Text:       d.cand.text,
			DedupKey:   key,
		})
	}
	d.cand = nil
}

// Flush closes the final candidate and returns the ordered slides.
func (d *Deduplicator) Flush() []entity.Slide {
	d.close()
	return d.slides
}

// Deduplicate runs the whole algorithm over an already-ordered stream.
// It is a pure function of its input: running it twice yields the same
// slide sequence.
func Deduplicate(results []FrameResult, similarityThreshold float64) []entity.Slide {
	d := NewDeduplicator(similarityThreshold)
	for _, res := range results {
		d.Observe(res)
	}
	return d.Flush()
}

// AggregateText joins a frame's recognized text in reading order:
// regions sorted top-to-bottom, then left-to-right. Failed extractions
// contribute nothing.
func AggregateText(blocks []entity.TextBlock) string {
	ordered := make([]entity.TextBlock, 0, len(blocks))
	for _, b := range blocks {
		if b.Failed || b.Text == "" {
			continue
		}
		ordered = append(ordered, b)
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Region.Y != ordered[j].Region.Y {
			return ordered[i].Region.Y < ordered[j].Region.Y
		}
		return ordered[i].Region.X < ordered[j].Region.X
	})
	parts := make([]string, len(ordered))
	for i, b := range ordered {
		parts[i] = b.Text
	}
	return strings.Join(parts, "\n")
}

func meanConfidence(blocks []entity.TextBlock) float64 {
	sum, n := 0.0, 0
	for _, b := range blocks {
		if b.Failed {
			continue
		}
		sum += b.Confidence
		n++
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}
