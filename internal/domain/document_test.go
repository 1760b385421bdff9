package domain

import (
	"reflect"
	"testing"
)

func TestNewSectionRequest_DedupAndOrder(t *testing.T) {
	r := NewSectionRequest("Name", " Date ", "", "Name", "Total")
	want := []string{"Name", "Date", "Total"}
	if !reflect.DeepEqual(r.Titles(), want) {
		t.Errorf("Titles() = %v, want %v", r.Titles(), want)
	}
}

func TestSectionRequest_Merge(t *testing.T) {
	r := NewSectionRequest("A", "B").Merge("B", "C")
	if !reflect.DeepEqual(r.Titles(), []string{"A", "B", "C"}) {
		t.Errorf("Merge() = %v", r.Titles())
	}
	if NewSectionRequest(" ").Empty() != true {
		t.Error("blank-only request should be empty")
	}
}

func TestSplitTitles(t *testing.T) {
	got := SplitTitles("Name, Date\nTotal,,")
	if !reflect.DeepEqual(got, []string{"Name", "Date", "Total"}) {
		t.Errorf("SplitTitles() = %v", got)
	}
}

func TestFormatDetection(t *testing.T) {
	if !IsPDF("scan.PDF") {
		t.Error("IsPDF should be case-insensitive")
	}
	if m, ok := ImageMIME("page.JPG"); !ok || m != "image/jpeg" {
		t.Errorf("ImageMIME() = %q, %v", m, ok)
	}
	if _, ok := ImageMIME("notes.txt"); ok {
		t.Error("txt should not be a supported image")
	}
	if !IsURL("https://x/y.pdf") || IsURL("/tmp/y.pdf") {
		t.Error("IsURL mismatch")
	}
}

func TestSectionLabel(t *testing.T) {
	s := Section{Title: "Invoice", Level: 2, Type: SectionTypeHeader, Page: 3}
	if s.Label() != "Invoice (Level: 2, Type: header, Page: 3)" {
		t.Errorf("Label() = %q", s.Label())
	}
	if (Section{Title: "X"}).Label() != "X (Level: 1, Type: section, Page: 1)" {
		t.Error("defaults not applied")
	}
}

func TestClampPoolSize(t *testing.T) {
	if ClampPoolSize(25) != 20 || ClampPoolSize(0) != 1 || ClampPoolSize(7) != 7 {
		t.Error("ClampPoolSize bounds wrong")
	}
}

func TestTitleFromLabel(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Invoice (Level: 2, Type: header, Page: 3)", "Invoice"},
		{`"Total"`, "Total"},
		{`"title": "Date"`, "Date"},
		{"  Plain  ", "Plain"},
		{`"`, `"`},
	}
	for _, tt := range tests {
		if got := TitleFromLabel(tt.in); got != tt.want {
			t.Errorf("TitleFromLabel(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestIsLocalEndpoint(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"http://localhost:8080/v1/chat/completions", true},
		{"http://127.0.0.1/v1", true},
		{"http://0.0.0.0:11434", true},
		{"https://api.mistral.ai/v1/chat/completions", false},
		{"", false},
		{"::", false},
	}
	for _, tt := range tests {
		if got := IsLocalEndpoint(tt.in); got != tt.want {
			t.Errorf("IsLocalEndpoint(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
