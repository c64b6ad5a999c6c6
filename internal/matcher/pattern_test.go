package matcher

import (
	"errors"
	"slices"
	"testing"
)

func TestPatternSet_Match_Default(t *testing.T) {
	set := DefaultPatternSet()

	tests := []struct {
		name     string
		wantKind string
		wantOK   bool
	}{
		{"FE12345.xml", KindInvoice, true},
		{"FE-12345.xml", KindInvoice, true},
		{"FE_12345.xml", KindInvoice, true},
		{"fe_123.XML", KindInvoice, true},
		{"  FE123.xml  ", KindInvoice, true},
		{"NC123.xml", KindCreditNote, true},
		{"ND-0001.xml", KindDebitNote, true},
		{"DS_998877.xml", KindSupportDocument, true},
		{"FE12.xml", "", false},
		{"FE12345.pdf", "", false},
		{"OtroArchivo.xml", "", false},
		{"FE-_12345.xml", "", false},
		{"FE--12345.xml", "", false},
		{"XFE12345.xml", "", false},
		{"FE12345.xml.bak", "", false},
		{"FE123a.xml", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kind, ok := set.Match(tt.name)
			if ok != tt.wantOK || kind != tt.wantKind {
				t.Errorf("Match(%q) = (%q, %v), want (%q, %v)", tt.name, kind, ok, tt.wantKind, tt.wantOK)
			}
		})
	}
}

func TestPatternSet_Match_InsertionOrder(t *testing.T) {
	// Both auxiliary prefixes are identical; the first one registered wins.
	set, err := NewPatternSet("FE", "nc", "NC")
	if err != nil {
		t.Fatalf("NewPatternSet failed: %v", err)
	}
	kind, ok := set.Match("NC555.xml")
	if !ok || kind != "NC" {
		t.Errorf("Match = (%q, %v), want (NC, true)", kind, ok)
	}
	if got := set.Kinds(); !slices.Equal(got, []string{"FE", "NC", "NC"}) {
		t.Errorf("Kinds() = %v", got)
	}
}

func TestPatternSet_PrimaryFirst(t *testing.T) {
	set, err := NewPatternSet("FE", "FE")
	if err != nil {
		t.Fatalf("NewPatternSet failed: %v", err)
	}
	set.auxiliary[0].Kind = "AUX"
	kind, _ := set.Match("FE100.xml")
	if kind != "FE" {
		t.Errorf("Expected primary kind, got %q", kind)
	}
}

func TestNewNamePattern_InvalidPrefix(t *testing.T) {
	for _, prefix := range []string{"", "F.E", "F?", "12", "FE-"} {
		t.Run(prefix, func(t *testing.T) {
			if _, err := NewNamePattern(prefix); !errors.Is(err, ErrInvalidPrefix) {
				t.Errorf("NewNamePattern(%q) error = %v, want ErrInvalidPrefix", prefix, err)
			}
		})
	}
}

func TestNewPatternSet_InvalidAuxiliary(t *testing.T) {
	if _, err := NewPatternSet("FE", "NC", "N C"); err == nil {
		t.Error("Expected error for invalid auxiliary prefix")
	}
}
