package formatprofile

import (
	"testing"

	"github.com/nmartin15/claimflow/internal/edi"
)

var testDelims = edi.Delimiters{Element: '*', Component: ':', Segment: '~'}

func tokenize(t *testing.T, raw string) []edi.Segment {
	t.Helper()
	segs, _, err := edi.NewTokenizer([]byte(raw), testDelims).ReadAll()
	if err != nil {
		t.Fatalf("tokenize: %v", err)
	}
	return segs
}

func TestObserve(t *testing.T) {
	segs := tokenize(t,
		"GS*HC*S*R*20240115*1200*1*X*005010X222A1~"+
			"CLM*C1*10.00~"+
			"HI*ABK:E11.9*ABF:I10.9~"+
			"DTP*434*RD8*20240110-20240112~"+
			"CLM*C2*20.00~")
	p := Observe("SUBMITTERID", segs, testDelims)

	if p.FilesSeen != 1 {
		t.Errorf("FilesSeen = %d", p.FilesSeen)
	}
	if p.Version != "005010X222A1" {
		t.Errorf("Version = %q", p.Version)
	}
	if p.SegmentCounts["CLM"] != 2 || p.SegmentFiles["CLM"] != 1 {
		t.Errorf("CLM counts = %d / %d", p.SegmentCounts["CLM"], p.SegmentFiles["CLM"])
	}
	if p.Qualifiers["HI"]["ABK"] != 1 || p.Qualifiers["HI"]["ABF"] != 1 {
		t.Errorf("HI qualifiers = %v", p.Qualifiers["HI"])
	}
	if p.Qualifiers["DTP"]["434"] != 1 || p.Qualifiers["DTP03"]["RD8"] != 1 {
		t.Errorf("DTP qualifiers = %v / %v", p.Qualifiers["DTP"], p.Qualifiers["DTP03"])
	}
	if p.ElementCounts["CLM"]["2"] != 2 {
		t.Errorf("CLM element buckets = %v", p.ElementCounts["CLM"])
	}
}

func TestObserveIntoKeepsPresenceMarkerPerFile(t *testing.T) {
	p := New("SUBMITTERID")
	p.FilesSeen = 1
	// Two blocks of the same file both carry CLM.
	ObserveInto(p, tokenize(t, "CLM*C1*10.00~"), testDelims)
	ObserveInto(p, tokenize(t, "CLM*C2*20.00~"), testDelims)

	if p.SegmentFiles["CLM"] != 1 {
		t.Errorf("SegmentFiles[CLM] = %d, want 1", p.SegmentFiles["CLM"])
	}
	if p.SegmentCounts["CLM"] != 2 {
		t.Errorf("SegmentCounts[CLM] = %d, want 2", p.SegmentCounts["CLM"])
	}
}

func TestMerge(t *testing.T) {
	a := Observe("S", tokenize(t, "CLM*C1*10.00~HI*ABK:E11.9~"), testDelims)
	b := Observe("S", tokenize(t, "CLM*C2*20.00~"), testDelims)

	m := Merge(a, b)
	if m.FilesSeen != 2 {
		t.Errorf("FilesSeen = %d", m.FilesSeen)
	}
	if m.SegmentFiles["CLM"] != 2 || m.SegmentFiles["HI"] != 1 {
		t.Errorf("SegmentFiles = %v", m.SegmentFiles)
	}
	if m.SegmentCounts["CLM"] != 2 {
		t.Errorf("SegmentCounts[CLM] = %d", m.SegmentCounts["CLM"])
	}
	if m.Qualifiers["HI"]["ABK"] != 1 {
		t.Errorf("Qualifiers = %v", m.Qualifiers)
	}

	t.Run("nil operands", func(t *testing.T) {
		if Merge(nil, b) != b {
			t.Error("Merge(nil, b) should return b")
		}
		if Merge(a, nil) != a {
			t.Error("Merge(a, nil) should return a")
		}
	})
}

func TestSuppressMissing(t *testing.T) {
	p := New("S")

	t.Run("single file never suppresses", func(t *testing.T) {
		p.FilesSeen = 1
		if p.SuppressMissing("HI", 0.5) {
			t.Error("suppressed with one file of history")
		}
	})

	t.Run("habitual absence suppresses", func(t *testing.T) {
		p.FilesSeen = 10
		p.SegmentFiles["HI"] = 1 // absent from 9 of 10 files
		if !p.SuppressMissing("HI", 0.8) {
			t.Error("not suppressed at 90% absence, threshold 80%")
		}
		if p.SuppressMissing("HI", 0.95) {
			t.Error("suppressed below threshold")
		}
	})

	t.Run("zero threshold disables leniency", func(t *testing.T) {
		if p.SuppressMissing("HI", 0) {
			t.Error("suppressed with zero threshold")
		}
	})

	t.Run("nil profile", func(t *testing.T) {
		var nilProf *Profile
		if nilProf.SuppressMissing("HI", 0.5) {
			t.Error("nil profile suppressed")
		}
	})
}
