package services

import (
	"archive/zip"
	"bytes"
	"errors"
	"strings"
	"testing"
)

func buildDOCX(t *testing.T, documentXML string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("word/document.xml")
	if err != nil {
		t.Fatalf("create entry: %v", err)
	}
	if _, err := w.Write([]byte(documentXML)); err != nil {
		t.Fatalf("write entry: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
	return buf.Bytes()
}

func TestExtractText_TXT(t *testing.T) {
	svc := NewFileExtractService()

	got, err := svc.ExtractText("notes.TXT", []byte("  first line \r\n\r\n\r\n\r\nsecond line\r\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "first line\n\nsecond line" {
		t.Fatalf("unexpected text %q", got)
	}

	if _, err := svc.ExtractText("empty.txt", []byte(" \n \n")); err == nil {
		t.Fatalf("expected error for empty text file")
	}
}

func TestExtractText_DOCX(t *testing.T) {
	doc := `<w:document><w:body>` +
		`<w:p><w:r><w:t>Install &amp; run</w:t></w:r></w:p>` +
		`<w:p><w:r><w:t>Step</w:t><w:tab/><w:t>one</w:t><w:br/><w:t>next</w:t></w:r></w:p>` +
		`</w:body></w:document>`

	got, err := NewFileExtractService().ExtractText("guide.docx", buildDOCX(t, doc))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, want := range []string{"Install & run", "Step\tone", "next"} {
		if !strings.Contains(got, want) {
			t.Fatalf("expected %q in %q", want, got)
		}
	}
}

func TestExtractText_Rejections(t *testing.T) {
	svc := NewFileExtractService()

	if _, err := svc.ExtractText("image.png", []byte("x")); err == nil {
		t.Fatalf("expected unsupported extension error")
	}
	if _, err := svc.ExtractText("broken.docx", []byte("not a zip")); err == nil {
		t.Fatalf("expected error for invalid docx")
	}
	if _, err := svc.ExtractText("broken.pdf", []byte("not a pdf")); err == nil {
		t.Fatalf("expected error for invalid pdf")
	}

	big := bytes.Repeat([]byte("a"), maxAttachmentBytes+1)
	if _, err := svc.ExtractText("big.txt", big); !errors.Is(err, ErrPayloadTooLarge) {
		t.Fatalf("expected ErrPayloadTooLarge, got %v", err)
	}
}
