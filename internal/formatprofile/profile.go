// Package formatprofile tracks how each originator actually shapes its EDI
// files. X12 has no single canonical dialect: originators omit optional
// segments, vary qualifiers, and use different date conventions. The profile
// accumulates what a given originator habitually sends so the extractors can
// stop warning about segments that are legitimately absent for that source.
package formatprofile

import (
	"strconv"
	"strings"
	"time"

	"github.com/nmartin15/claimflow/internal/edi"
)

// Profile is the per-originator record of segment frequencies, element-count
// distributions, and observed qualifier sets. It is merged, never replaced,
// on every file for the originator, and is a read-only input to extractors.
type Profile struct {
	OriginatorID string `json:"originator_id"`
	FilesSeen    int64  `json:"files_seen"`
	Version      string `json:"version"` // inferred from GS08 / ISA12

	// SegmentFiles counts files containing at least one segment of each type.
	SegmentFiles map[string]int64 `json:"segment_files"`
	// SegmentCounts counts total segment occurrences across all files.
	SegmentCounts map[string]int64 `json:"segment_counts"`
	// ElementCounts buckets per-segment element counts ("CLM" -> "5" -> n).
	ElementCounts map[string]map[string]int64 `json:"element_counts"`
	// Qualifiers records observed qualifier usage per context
	// ("HI", "DTP", "CAS", "CLP02", "REF").
	Qualifiers map[string]map[string]int64 `json:"qualifiers"`

	UpdatedAt time.Time `json:"updated_at"`
}

// New returns an empty profile for an originator.
func New(originatorID string) *Profile {
	return &Profile{
		OriginatorID:  originatorID,
		SegmentFiles:  map[string]int64{},
		SegmentCounts: map[string]int64{},
		ElementCounts: map[string]map[string]int64{},
		Qualifiers:    map[string]map[string]int64{},
	}
}

// Observe profiles one file's segments into a fresh single-file profile.
func Observe(originatorID string, segs []edi.Segment, d edi.Delimiters) *Profile {
	p := New(originatorID)
	p.FilesSeen = 1
	ObserveInto(p, segs, d)
	return p
}

// ObserveInto folds segments into a single-file profile. Streaming callers
// invoke it once per block; SegmentFiles stays a 0/1 presence marker within
// one file regardless of how many blocks carry the segment.
func ObserveInto(p *Profile, segs []edi.Segment, d edi.Delimiters) {
	p.UpdatedAt = time.Now().UTC()
	for _, s := range segs {
		p.SegmentCounts[s.ID]++
		p.SegmentFiles[s.ID] = 1

		bucket := strconv.Itoa(len(s.Elements))
		if p.ElementCounts[s.ID] == nil {
			p.ElementCounts[s.ID] = map[string]int64{}
		}
		p.ElementCounts[s.ID][bucket]++

		observeQualifiers(p, s, d)
	}
}

func observeQualifiers(p *Profile, s edi.Segment, d edi.Delimiters) {
	add := func(context, q string) {
		q = strings.TrimSpace(q)
		if q == "" {
			return
		}
		if p.Qualifiers[context] == nil {
			p.Qualifiers[context] = map[string]int64{}
		}
		p.Qualifiers[context][q]++
	}

	switch s.ID {
	case "HI":
		for i := 1; i <= len(s.Elements); i++ {
			add("HI", s.Composite(i, 1, d))
		}
	case "DTP":
		add("DTP", s.Element(1))
		add("DTP03", s.Element(2))
	case "CAS":
		add("CAS", s.Element(1))
	case "CLP":
		add("CLP02", s.Element(2))
	case "REF":
		add("REF", s.Element(1))
	case "NM1":
		add("NM1", s.Element(1))
	case "GS":
		if v := s.Element(8); v != "" {
			p.Version = v
		}
	case "ISA":
		if p.Version == "" {
			p.Version = strings.TrimSpace(s.Element(12))
		}
	}
}

// Merge accumulates cur into old and returns the merged profile. Counts add,
// qualifier sets union; nothing is overwritten except the version string,
// where the newest observation wins. The caller owns persistence.
func Merge(old, cur *Profile) *Profile {
	if old == nil {
		return cur
	}
	if cur == nil {
		return old
	}

	m := New(old.OriginatorID)
	m.FilesSeen = old.FilesSeen + cur.FilesSeen
	m.Version = old.Version
	if cur.Version != "" {
		m.Version = cur.Version
	}
	m.UpdatedAt = cur.UpdatedAt
	if m.UpdatedAt.IsZero() {
		m.UpdatedAt = old.UpdatedAt
	}

	mergeCounts(m.SegmentFiles, old.SegmentFiles, cur.SegmentFiles)
	mergeCounts(m.SegmentCounts, old.SegmentCounts, cur.SegmentCounts)
	mergeNested(m.ElementCounts, old.ElementCounts, cur.ElementCounts)
	mergeNested(m.Qualifiers, old.Qualifiers, cur.Qualifiers)
	return m
}

func mergeCounts(dst map[string]int64, srcs ...map[string]int64) {
	for _, src := range srcs {
		for k, v := range src {
			dst[k] += v
		}
	}
}

func mergeNested(dst map[string]map[string]int64, srcs ...map[string]map[string]int64) {
	for _, src := range srcs {
		for k, inner := range src {
			if dst[k] == nil {
				dst[k] = map[string]int64{}
			}
			mergeCounts(dst[k], inner)
		}
	}
}

// AbsenceShare returns the share of files from this originator that carry no
// segment of the given type.
func (p *Profile) AbsenceShare(segID string) float64 {
	if p == nil || p.FilesSeen == 0 {
		return 0
	}
	present := p.SegmentFiles[segID]
	return float64(p.FilesSeen-present) / float64(p.FilesSeen)
}

// SuppressMissing reports whether a "missing segment" warning for segID
// should be muted for this originator: the profile shows the segment absent
// in at least threshold share of files, so its absence is the originator's
// normal dialect rather than a data problem. This is the profile's only
// downstream effect.
func (p *Profile) SuppressMissing(segID string, threshold float64) bool {
	if p == nil || threshold <= 0 {
		return false
	}
	// Needs more than one file of history before absence means anything.
	if p.FilesSeen < 2 {
		return false
	}
	return p.AbsenceShare(segID) >= threshold
}
