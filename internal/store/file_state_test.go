package store

import (
	"testing"

	"github.com/nextlevelbuilder/botsim/pkg/botapi"
)

func TestFileState_RegisterAndEvict(t *testing.T) {
	fs, err := NewFileState(2)
	if err != nil {
		t.Fatal(err)
	}
	a := fs.Register("document", "report.pdf", "application/pdf", 10)
	if a.FilePath != "documents/file_1.pdf" {
		t.Errorf("path = %q", a.FilePath)
	}
	if got, ok := fs.Get(a.FileID); !ok || got.FileName != "report.pdf" {
		t.Fatalf("get = %+v, %v", got, ok)
	}
	fs.Register("photo", "", "", 0)
	fs.Register("photo", "", "", 0)
	if _, ok := fs.Get(a.FileID); ok {
		t.Error("oldest file not evicted")
	}
	if fs.Len() != 2 {
		t.Errorf("len = %d", fs.Len())
	}
	fs.Reset()
	if fs.Len() != 0 {
		t.Errorf("len after reset = %d", fs.Len())
	}
}

func TestPassportState_ReplaceAndClear(t *testing.T) {
	ps := NewPassportState()
	ps.SetErrors(5, []botapi.PassportElementError{{Source: "data", Type: "passport", Message: "bad"}})
	if got := ps.Errors(5); len(got) != 1 {
		t.Fatalf("errors = %v", got)
	}
	ps.SetErrors(5, nil)
	if got := ps.Errors(5); len(got) != 0 {
		t.Errorf("errors after clear = %v", got)
	}
	if !ValidPassportSource("selfie") || ValidPassportSource("nope") {
		t.Error("source validation mismatch")
	}
}
