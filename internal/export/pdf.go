/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package export

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/jung-kurt/gofpdf"

	"gorenpy/internal/script"
)

// Script is one parsed file handed to the PDF writer.
type Script struct {
	File string
	Tree *script.SourceFile
}

// PDFOptions controls PDF export behavior.
// Units are points (pt). Built-in Helvetica keeps the text vector without embedding fonts.
//
// Layout:
// - Every script starts on a new page with its file name as a heading.
// - Labels are section headings; nested blocks are indented.
// - Dialogue is printed as "SPEAKER: line", narration in italics.
// - Menu choices are listed under the menu with their conditions.
type PDFOptions struct {
	PageSize     string // A4 (default), Letter, A5
	Title        string
	Author       string
	IncludeStage bool // print show/hide/scene/with lines as stage directions
	LineNumbers  bool // prefix every entry with its source line
}

const (
	pdfMargin  = 50.0
	pdfIndent  = 18.0
	pdfBodyPt  = 11.0
	pdfLineGap = 1.35
)

type grey struct{ R, G, B int }

var (
	inkColor   = grey{0, 0, 0}
	stageColor = grey{90, 90, 90}
	flowColor  = grey{30, 60, 140}
)

type pdfWriter struct {
	pdf *gofpdf.Fpdf
	tr  func(string) string
	opt PDFOptions
}

// NewPDF lays out scripts and returns the unfinished document.
func NewPDF(scripts []Script, opt PDFOptions) *gofpdf.Fpdf {
	size := opt.PageSize
	if size == "" {
		size = "A4"
	}
	pdf := gofpdf.New("P", "pt", size, "")
	pdf.SetMargins(pdfMargin, pdfMargin, pdfMargin)
	pdf.SetAutoPageBreak(true, pdfMargin)
	title := opt.Title
	if title == "" {
		title = "Script"
	}
	pdf.SetTitle(title, true)
	if opt.Author != "" {
		pdf.SetAuthor(opt.Author, true)
	}
	pdf.SetCreator("gorenpy", false)

	w := &pdfWriter{pdf: pdf, tr: pdf.UnicodeTranslatorFromDescriptor(""), opt: opt}
	pdf.SetFooterFunc(func() {
		pdf.SetY(-pdfMargin + 10)
		pdf.SetFont("Helvetica", "I", 8)
		setTextColor(pdf, stageColor)
		pdf.CellFormat(0, 10, fmt.Sprintf("%s  -  %d", w.tr(title), pdf.PageNo()), "", 0, "C", false, 0, "")
	})
	for _, s := range scripts {
		w.script(s)
	}
	if len(scripts) == 0 {
		pdf.AddPage()
	}
	return pdf
}

// WritePDF writes the rendered scripts to out.
func WritePDF(out io.Writer, scripts []Script, opt PDFOptions) error {
	pdf := NewPDF(scripts, opt)
	if err := pdf.Output(out); err != nil {
		return fmt.Errorf("write pdf: %w", err)
	}
	return nil
}

// ExportPDF renders scripts to the file at outPath, creating its directory.
func ExportPDF(outPath string, scripts []Script, opt PDFOptions) error {
	dir := filepath.Dir(outPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("ensure out dir: %w", err)
	}
	pdf := NewPDF(scripts, opt)
	if err := pdf.OutputFileAndClose(outPath); err != nil {
		return fmt.Errorf("write pdf: %w", err)
	}
	return nil
}

func (w *pdfWriter) script(s Script) {
	w.pdf.AddPage()
	w.pdf.SetFont("Helvetica", "B", 16)
	setTextColor(w.pdf, inkColor)
	w.pdf.MultiCell(0, 20, w.tr(s.File), "B", "L", false)
	w.pdf.Ln(8)
	if s.Tree != nil {
		w.list(s.Tree.Statements, 0)
	}
}

func (w *pdfWriter) list(stmts []script.Statement, depth int) {
	for _, s := range stmts {
		w.stmt(s, depth)
	}
}

func (w *pdfWriter) stmt(s script.Statement, depth int) {
	switch st := s.(type) {
	case *script.Label:
		w.pdf.Ln(6)
		w.entry(depth, st.Span, "B", 13, inkColor, "label "+st.Name.String())
		w.list(st.Body.Statements, depth+1)
	case *script.Say:
		w.say(st, depth)
	case *script.Menu:
		head := "menu"
		if st.Name != nil {
			head += " " + st.Name.String()
		}
		w.entry(depth, st.Span, "B", pdfBodyPt, flowColor, head)
		if st.Prompt != nil {
			w.say(st.Prompt, depth+1)
		}
		for _, c := range st.Choices {
			text := "- " + c.Text.Value
			if c.Cond != nil {
				text += "  (if " + c.Cond.Text + ")"
			}
			w.entry(depth+1, c.Span, "B", pdfBodyPt, inkColor, text)
			w.list(c.Body.Statements, depth+2)
		}
	case *script.If:
		w.entry(depth, st.Span, "", pdfBodyPt, flowColor, "if "+st.Cond.Text)
		w.list(st.Body.Statements, depth+1)
		for _, e := range st.Elifs {
			w.entry(depth, e.Span, "", pdfBodyPt, flowColor, "elif "+e.Cond.Text)
			w.list(e.Body.Statements, depth+1)
		}
		if st.Else != nil {
			w.entry(depth, st.Else.Span, "", pdfBodyPt, flowColor, "else")
			w.list(st.Else.Statements, depth+1)
		}
	case *script.While:
		w.entry(depth, st.Span, "", pdfBodyPt, flowColor, "while "+st.Cond.Text)
		w.list(st.Body.Statements, depth+1)
	case *script.Jump:
		w.entry(depth, st.Span, "", pdfBodyPt, flowColor, "-> jump "+st.Target.String())
	case *script.Call:
		w.entry(depth, st.Span, "", pdfBodyPt, flowColor, "-> call "+st.Target.String())
	case *script.Return:
		w.entry(depth, st.Span, "", pdfBodyPt, flowColor, "<- return")
	case *script.Show, *script.Hide, *script.Scene, *script.With:
		if w.opt.IncludeStage {
			w.entry(depth, s.Pos(), "I", pdfBodyPt-1, stageColor, "["+stageText(s)+"]")
		}
	}
}

func (w *pdfWriter) say(s *script.Say, depth int) {
	if s.Narration() {
		w.entry(depth, s.Span, "I", pdfBodyPt, inkColor, s.What.Value)
		return
	}
	w.entry(depth, s.Span, "", pdfBodyPt, inkColor, strings.ToUpper(s.Who)+": "+s.What.Value)
}

func (w *pdfWriter) entry(depth int, sp script.Span, style string, size float64, c grey, text string) {
	if w.opt.LineNumbers {
		text = fmt.Sprintf("%4d  %s", sp.Start.Line, text)
	}
	w.pdf.SetFont("Helvetica", style, size)
	setTextColor(w.pdf, c)
	w.pdf.SetX(pdfMargin + float64(depth)*pdfIndent)
	w.pdf.MultiCell(0, size*pdfLineGap, w.tr(text), "", "L", false)
}

// stageText renders a staging statement as "kind image names with transition".
func stageText(s script.Statement) string {
	n := statement(s)
	parts := []string{n.Kind}
	if img := n.Attrs["image"]; img != "" {
		parts = append(parts, img)
	}
	if t := n.Attrs["transition"]; t != "" {
		parts = append(parts, t)
	}
	if with := n.Attrs["with"]; with != "" {
		parts = append(parts, "with", with)
	}
	return strings.Join(parts, " ")
}

func setTextColor(pdf *gofpdf.Fpdf, c grey) {
	pdf.SetTextColor(c.R, c.G, c.B)
}
