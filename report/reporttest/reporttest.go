// Package reporttest builds small, valid PDF documents for tests that need
// to exercise the full read-and-extract path without shipping binary
// fixtures.
package reporttest

import (
	"fmt"
	"strconv"
	"strings"
)

// BuildPDF creates a PDF with correct xref offsets; each inner slice is one
// page, each string one text line.
func BuildPDF(pageLines [][]string) []byte {
	n := len(pageLines)
	fontObj := 3 + 2*n
	size := fontObj + 1

	streams := make([]string, n)
	for i, lines := range pageLines {
		var s strings.Builder
		s.WriteString("BT\n/F1 12 Tf\n72 720 Td\n")
		for j, ln := range lines {
			if j > 0 {
				s.WriteString("0 -14 Td\n")
			}
			s.WriteString("(" + escapeText(ln) + ") Tj\n")
		}
		s.WriteString("ET")
		streams[i] = s.String()
	}

	var kids strings.Builder
	for i := 0; i < n; i++ {
		if i > 0 {
			kids.WriteString(" ")
		}
		kids.WriteString(strconv.Itoa(3+i) + " 0 R")
	}

	var b strings.Builder
	offsets := make([]int, size)
	b.WriteString("%PDF-1.4\n")

	offsets[1] = b.Len()
	b.WriteString("1 0 obj\n<< /Type /Catalog /Pages 2 0 R >>\nendobj\n")

	offsets[2] = b.Len()
	b.WriteString("2 0 obj\n<< /Type /Pages /Kids [" + kids.String() + "] /Count " + strconv.Itoa(n) + " >>\nendobj\n")

	for i := 0; i < n; i++ {
		offsets[3+i] = b.Len()
		b.WriteString(strconv.Itoa(3+i) + " 0 obj\n<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Contents " +
			strconv.Itoa(3+n+i) + " 0 R /Resources << /Font << /F1 " + strconv.Itoa(fontObj) + " 0 R >> >> >>\nendobj\n")
	}

	for i, stream := range streams {
		offsets[3+n+i] = b.Len()
		b.WriteString(strconv.Itoa(3+n+i) + " 0 obj\n<< /Length " + strconv.Itoa(len(stream)) + " >>\nstream\n")
		b.WriteString(stream)
		b.WriteString("\nendstream\nendobj\n")
	}

	offsets[fontObj] = b.Len()
	b.WriteString(strconv.Itoa(fontObj) + " 0 obj\n<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica >>\nendobj\n")

	xrefOffset := b.Len()
	b.WriteString("xref\n0 " + strconv.Itoa(size) + "\n")
	b.WriteString("0000000000 65535 f \n")
	for i := 1; i < size; i++ {
		fmt.Fprintf(&b, "%010d", offsets[i])
		b.WriteString(" 00000 n \n")
	}
	b.WriteString("trailer\n<< /Size " + strconv.Itoa(size) + " /Root 1 0 R >>\nstartxref\n")
	b.WriteString(strconv.Itoa(xrefOffset))
	b.WriteString("\n%%EOF\n")

	return []byte(b.String())
}

// BuildImageOnlyPDF creates a one-page PDF whose only content draws an
// image, i.e. a page with no text layer.
func BuildImageOnlyPDF() []byte {
	imgData := "\xff\xd8\xff\xe0"

	var b strings.Builder
	b.WriteString("%PDF-1.4\n")

	offsets := make([]int, 6)

	offsets[1] = b.Len()
	b.WriteString("1 0 obj\n<< /Type /Catalog /Pages 2 0 R >>\nendobj\n")

	offsets[2] = b.Len()
	b.WriteString("2 0 obj\n<< /Type /Pages /Kids [3 0 R] /Count 1 >>\nendobj\n")

	offsets[3] = b.Len()
	b.WriteString("3 0 obj\n<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << /XObject << /Im1 4 0 R >> >> /Contents 5 0 R >>\nendobj\n")

	offsets[4] = b.Len()
	b.WriteString("4 0 obj\n<< /Type /XObject /Subtype /Image /Width 1 /Height 1 /ColorSpace /DeviceRGB /BitsPerComponent 8 /Length ")
	b.WriteString(strconv.Itoa(len(imgData)))
	b.WriteString(" >>\nstream\n")
	b.WriteString(imgData)
	b.WriteString("\nendstream\nendobj\n")

	drawStream := "q 100 0 0 100 72 692 cm /Im1 Do Q"
	offsets[5] = b.Len()
	b.WriteString("5 0 obj\n<< /Length ")
	b.WriteString(strconv.Itoa(len(drawStream)))
	b.WriteString(" >>\nstream\n")
	b.WriteString(drawStream)
	b.WriteString("\nendstream\nendobj\n")

	xrefOffset := b.Len()
	b.WriteString("xref\n0 6\n")
	b.WriteString("0000000000 65535 f \n")
	for i := 1; i <= 5; i++ {
		fmt.Fprintf(&b, "%010d", offsets[i])
		b.WriteString(" 00000 n \n")
	}
	b.WriteString("trailer\n<< /Size 6 /Root 1 0 R >>\nstartxref\n")
	b.WriteString(strconv.Itoa(xrefOffset))
	b.WriteString("\n%%EOF\n")
	return []byte(b.String())
}

func escapeText(text string) string {
	text = strings.ReplaceAll(text, `\`, `\\`)
	text = strings.ReplaceAll(text, "(", `\(`)
	text = strings.ReplaceAll(text, ")", `\)`)
	return text
}
