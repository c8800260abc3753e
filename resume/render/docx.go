// Package render produces DOCX output for optimized resumes. The document
// part is generated directly from the structured model; no template asset is
// involved.
package render

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"resume-optimizer/resume/model"
)

const wmlNamespace = "http://schemas.openxmlformats.org/wordprocessingml/2006/main"

const xmlProlog = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` + "\n"

const contentTypesXML = xmlProlog +
	`<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">` +
	`<Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>` +
	`<Default Extension="xml" ContentType="application/xml"/>` +
	`<Override PartName="/word/document.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/>` +
	`<Override PartName="/word/styles.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.styles+xml"/>` +
	`</Types>`

const packageRelsXML = xmlProlog +
	`<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">` +
	`<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument" Target="word/document.xml"/>` +
	`</Relationships>`

const documentRelsXML = xmlProlog +
	`<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">` +
	`<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/styles" Target="styles.xml"/>` +
	`</Relationships>`

const stylesXML = xmlProlog +
	`<w:styles xmlns:w="` + wmlNamespace + `">` +
	`<w:docDefaults><w:rPrDefault><w:rPr><w:rFonts w:ascii="Calibri" w:hAnsi="Calibri"/><w:sz w:val="22"/></w:rPr></w:rPrDefault></w:docDefaults>` +
	`<w:style w:type="paragraph" w:default="1" w:styleId="Normal"><w:name w:val="Normal"/></w:style>` +
	`</w:styles>`

// Build renders a document into DOCX bytes.
func Build(doc model.Document) ([]byte, error) {
	if strings.TrimSpace(doc.Header.Name) == "" {
		return nil, errors.New("full name is required")
	}
	if strings.TrimSpace(doc.Header.Email) == "" && strings.TrimSpace(doc.Header.Phone) == "" {
		return nil, errors.New("email or phone is required")
	}

	documentXML := buildDocumentXML(doc)
	if err := validateDocumentXML(documentXML); err != nil {
		return nil, err
	}

	var out bytes.Buffer
	writer := zip.NewWriter(&out)
	parts := []struct {
		name    string
		content string
	}{
		{"[Content_Types].xml", contentTypesXML},
		{"_rels/.rels", packageRelsXML},
		{"word/_rels/document.xml.rels", documentRelsXML},
		{"word/styles.xml", stylesXML},
		{"word/document.xml", documentXML},
	}
	for _, part := range parts {
		dst, err := writer.Create(part.name)
		if err != nil {
			return nil, err
		}
		if _, err := dst.Write([]byte(part.content)); err != nil {
			return nil, err
		}
	}
	if err := writer.Close(); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

type docWriter struct {
	buf strings.Builder
}

// para writes one paragraph. props go inside w:pPr; an empty text still emits
// the paragraph so spacing is preserved.
func (w *docWriter) para(text string, style RunStyle, props string) {
	w.buf.WriteString("<w:p>")
	if props != "" {
		w.buf.WriteString("<w:pPr>" + props + "</w:pPr>")
	}
	if text != "" {
		w.buf.WriteString("<w:r>")
		if rp := runProps(style); rp != "" {
			w.buf.WriteString("<w:rPr>" + rp + "</w:rPr>")
		}
		w.buf.WriteString(`<w:t xml:space="preserve">` + escapeXML(text) + `</w:t></w:r>`)
	}
	w.buf.WriteString("</w:p>")
}

func (w *docWriter) heading(text string) {
	w.para(text, StyleMap["sectionHeading"], `<w:spacing w:before="240" w:after="60"/>`)
}

func (w *docWriter) bullet(text string) {
	w.para("• "+text, RunStyle{}, `<w:ind w:left="360"/>`)
}

// runProps emits rPr children in schema order: b, i, color, sz.
func runProps(style RunStyle) string {
	var b strings.Builder
	if style.Bold {
		b.WriteString("<w:b/>")
	}
	if style.Italic {
		b.WriteString("<w:i/>")
	}
	if style.Color != "" {
		fmt.Fprintf(&b, `<w:color w:val="%s"/>`, style.Color)
	}
	if style.Size > 0 {
		fmt.Fprintf(&b, `<w:sz w:val="%d"/>`, style.Size)
	}
	return b.String()
}

func buildDocumentXML(doc model.Document) string {
	var w docWriter

	center := `<w:jc w:val="center"/>`
	w.para(doc.Header.Name, StyleMap["name"], center)
	if title := strings.TrimSpace(doc.Header.Title); title != "" {
		w.para(title, StyleMap["meta"], center)
	}
	if contact := contactLine(doc.Header); contact != "" {
		w.para(contact, RunStyle{}, center)
	}

	if len(doc.Summary) > 0 {
		w.heading("Summary")
		for _, line := range doc.Summary {
			w.para(line, RunStyle{}, "")
		}
	}

	if len(doc.Skills) > 0 {
		w.heading("Skills")
		w.para(strings.Join(doc.Skills, ", "), RunStyle{}, "")
	}

	if len(doc.Experience) > 0 {
		w.heading("Experience")
		for _, exp := range doc.Experience {
			w.para(joinNonEmpty(", ", exp.Role, exp.Company), StyleMap["roleLine"], "")
			if meta := joinNonEmpty(" | ", exp.Location, dateRange(exp.Start, exp.End)); meta != "" {
				w.para(meta, StyleMap["meta"], "")
			}
			for _, bullet := range exp.Bullets {
				w.bullet(bullet)
			}
		}
	}

	if len(doc.Projects) > 0 {
		w.heading("Projects")
		for _, p := range doc.Projects {
			w.para(p.Name, StyleMap["roleLine"], "")
			if len(p.Technologies) > 0 {
				w.para(strings.Join(p.Technologies, ", "), StyleMap["meta"], "")
			}
			if strings.TrimSpace(p.Description) != "" {
				w.para(p.Description, RunStyle{}, "")
			}
			for _, bullet := range p.Bullets {
				w.bullet(bullet)
			}
		}
	}

	if len(doc.Education) > 0 {
		w.heading("Education")
		for _, edu := range doc.Education {
			w.para(edu.Institution, StyleMap["roleLine"], "")
			if meta := joinNonEmpty(" | ", joinNonEmpty(", ", edu.Degree, edu.Field), dateRange(edu.Start, edu.End)); meta != "" {
				w.para(meta, StyleMap["meta"], "")
			}
		}
	}

	if len(doc.Achievements) > 0 {
		w.heading("Achievements")
		for _, a := range doc.Achievements {
			w.bullet(a)
		}
	}

	if len(doc.Certifications) > 0 {
		w.heading("Certifications")
		for _, c := range doc.Certifications {
			w.bullet(c)
		}
	}

	sectPr := `<w:sectPr><w:pgSz w:w="12240" w:h="15840"/><w:pgMar w:top="1080" w:right="1080" w:bottom="1080" w:left="1080"/></w:sectPr>`
	return xmlProlog +
		`<w:document xmlns:w="` + wmlNamespace + `"><w:body>` +
		w.buf.String() + sectPr +
		`</w:body></w:document>`
}

func contactLine(h model.Header) string {
	fields := append([]string{h.Email, h.Phone, h.Location}, h.Links...)
	return joinNonEmpty(" | ", fields...)
}

func joinNonEmpty(sep string, fields ...string) string {
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if trimmed := strings.TrimSpace(f); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return strings.Join(out, sep)
}

func dateRange(start, end string) string {
	switch {
	case start == "" && end == "":
		return ""
	case end == "":
		return start
	case start == "":
		return end
	}
	return start + " - " + end
}

func escapeXML(text string) string {
	var b bytes.Buffer
	if err := xml.EscapeText(&b, []byte(text)); err != nil {
		return ""
	}
	return b.String()
}

// validateDocumentXML rejects malformed output before it is zipped: the
// document part must parse, must not nest paragraphs, and run properties
// must precede run text.
func validateDocumentXML(xmlText string) error {
	decoder := xml.NewDecoder(strings.NewReader(xmlText))
	paragraphDepth := 0
	type runState struct {
		seenText bool
	}
	var runs []runState
	for {
		token, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("document.xml parse failed: %w", err)
		}
		switch t := token.(type) {
		case xml.StartElement:
			switch {
			case isWmlElement(t.Name, "p"):
				paragraphDepth++
				if paragraphDepth > 1 {
					return errors.New("document.xml has nested <w:p>")
				}
			case isWmlElement(t.Name, "r"):
				runs = append(runs, runState{})
			case isWmlElement(t.Name, "t") && len(runs) > 0:
				runs[len(runs)-1].seenText = true
			case isWmlElement(t.Name, "rPr") && len(runs) > 0 && runs[len(runs)-1].seenText:
				return errors.New("document.xml has <w:rPr> after <w:t> in a run")
			}
		case xml.EndElement:
			switch {
			case isWmlElement(t.Name, "p"):
				paragraphDepth--
			case isWmlElement(t.Name, "r"):
				if len(runs) > 0 {
					runs = runs[:len(runs)-1]
				}
			}
		}
	}
	return nil
}

func isWmlElement(name xml.Name, local string) bool {
	return name.Local == local && name.Space == wmlNamespace
}
