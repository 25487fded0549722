/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package script

// The syntax tree is built once per parse and never mutated afterwards.
// Nodes own their children; nothing points back to a parent.

// StmtKind tags a Statement.
type StmtKind int

const (
	KindLabel StmtKind = iota + 1
	KindSay
	KindShow
	KindHide
	KindScene
	KindWith
	KindIf
	KindWhile
	KindMenu
	KindJump
	KindCall
	KindReturn
	KindPass
	KindDefine
	KindDefault
	KindImage
)

var stmtKindNames = map[StmtKind]string{
	KindLabel:   "label",
	KindSay:     "say",
	KindShow:    "show",
	KindHide:    "hide",
	KindScene:   "scene",
	KindWith:    "with",
	KindIf:      "if",
	KindWhile:   "while",
	KindMenu:    "menu",
	KindJump:    "jump",
	KindCall:    "call",
	KindReturn:  "return",
	KindPass:    "pass",
	KindDefine:  "define",
	KindDefault: "default",
	KindImage:   "image",
}

func (k StmtKind) String() string {
	if s, ok := stmtKindNames[k]; ok {
		return s
	}
	return "unknown"
}

// Statement is implemented by every statement node.
type Statement interface {
	Kind() StmtKind
	Pos() Span
}

// SourceFile is the root node. It holds at least one statement.
type SourceFile struct {
	Statements []Statement
	Span       Span
}

// Block is the non-empty statement list between one INDENT/DEDENT pair.
type Block struct {
	Statements []Statement
	Span       Span
}

// LabelName is a bare (`name`), local (`.name`) or qualified (`scope.name`) label reference.
type LabelName struct {
	Scope string
	Local bool
	Name  string
	Span  Span
}

// String renders the name as written.
func (n LabelName) String() string {
	switch {
	case n.Scope != "":
		return n.Scope + "." + n.Name
	case n.Local:
		return "." + n.Name
	}
	return n.Name
}

// StringLit is a quoted literal. Raw keeps the source text including quotes;
// Value has escapes resolved.
type StringLit struct {
	Value string
	Raw   string
	Span  Span
}

// ExprKind tells how an expression fragment was delimited.
type ExprKind int

const (
	ExprName   ExprKind = iota + 1 // bare identifier
	ExprString                     // quoted literal
	ExprNumber                     // numeric literal
	ExprParen                      // balanced (), [] or {} group
	ExprPython                     // rest of line up to the structural colon
)

// Expr is an opaque fragment of the embedded language. Text is verbatim source.
type Expr struct {
	Kind ExprKind
	Text string
	Span Span
}

// Attr is one image attribute of a dialogue line; Negated is set for `-name`.
type Attr struct {
	Name    string
	Negated bool
	Span    Span
}

// Modifier is one trailing clause of an ImageSpec.
type Modifier interface {
	Keyword() string
	Pos() Span
}

type AtClause struct {
	Transform Expr
	Span      Span
}

type OnlayerClause struct {
	Layer string
	Span  Span
}

type AsClause struct {
	Tag  string
	Span Span
}

type ZorderClause struct {
	Order Expr
	Span  Span
}

type BehindClause struct {
	Tags []string
	Span Span
}

func (m *AtClause) Keyword() string      { return "at" }
func (m *OnlayerClause) Keyword() string { return "onlayer" }
func (m *AsClause) Keyword() string      { return "as" }
func (m *ZorderClause) Keyword() string  { return "zorder" }
func (m *BehindClause) Keyword() string  { return "behind" }

func (m *AtClause) Pos() Span      { return m.Span }
func (m *OnlayerClause) Pos() Span { return m.Span }
func (m *AsClause) Pos() Span      { return m.Span }
func (m *ZorderClause) Pos() Span  { return m.Span }
func (m *BehindClause) Pos() Span  { return m.Span }

// ImageSpec names an image and how it is placed. Modifiers keep source order;
// repeated modifiers are all retained.
type ImageSpec struct {
	Names     []string
	Modifiers []Modifier
	Span      Span
}

// Label is `label name:` followed by its block.
type Label struct {
	Name LabelName
	Body Block
	Span Span
}

// Say is a dialogue line (Who set) or narration (Who empty).
type Say struct {
	Who       string
	Attrs     []Attr
	TempAttrs []Attr
	What      StringLit
	Span      Span
}

// Narration reports whether the line has no speaker.
func (s *Say) Narration() bool { return s.Who == "" }

type Show struct {
	Image ImageSpec
	With  *Expr
	Span  Span
}

type Hide struct {
	Image ImageSpec
	With  *Expr
	Span  Span
}

// Scene optionally names an image; `scene` alone clears the layer.
type Scene struct {
	Image *ImageSpec
	With  *Expr
	Span  Span
}

type With struct {
	Transition Expr
	Span       Span
}

// Elif is one `elif cond:` arm of an If.
type Elif struct {
	Cond Expr
	Body Block
	Span Span
}

type If struct {
	Cond  Expr
	Body  Block
	Elifs []Elif
	Else  *Block
	Span  Span
}

type While struct {
	Cond Expr
	Body Block
	Span Span
}

// Choice is one menu entry. Cond is set for `"text" if cond:`.
type Choice struct {
	Text StringLit
	Cond *Expr
	Body Block
	Span Span
}

// Menu has an optional name, an optional prompt line and at least one choice.
type Menu struct {
	Name    *LabelName
	Prompt  *Say
	Choices []Choice
	Span    Span
}

type Jump struct {
	Target LabelName
	Span   Span
}

// Call jumps to Target and records From as the return site name when present.
type Call struct {
	Target LabelName
	From   *LabelName
	Span   Span
}

type Return struct {
	Value *Expr
	Span  Span
}

type Pass struct {
	Span Span
}

// Define binds a (possibly dotted) name once at init time.
type Define struct {
	Name  string
	Value Expr
	Span  Span
}

// Default binds a (possibly dotted) name as saved game state.
type Default struct {
	Name  string
	Value Expr
	Span  Span
}

// Image declares an image by its name components.
type Image struct {
	Names []string
	Value Expr
	Span  Span
}

func (*Label) Kind() StmtKind   { return KindLabel }
func (*Say) Kind() StmtKind     { return KindSay }
func (*Show) Kind() StmtKind    { return KindShow }
func (*Hide) Kind() StmtKind    { return KindHide }
func (*Scene) Kind() StmtKind   { return KindScene }
func (*With) Kind() StmtKind    { return KindWith }
func (*If) Kind() StmtKind      { return KindIf }
func (*While) Kind() StmtKind   { return KindWhile }
func (*Menu) Kind() StmtKind    { return KindMenu }
func (*Jump) Kind() StmtKind    { return KindJump }
func (*Call) Kind() StmtKind    { return KindCall }
func (*Return) Kind() StmtKind  { return KindReturn }
func (*Pass) Kind() StmtKind    { return KindPass }
func (*Define) Kind() StmtKind  { return KindDefine }
func (*Default) Kind() StmtKind { return KindDefault }
func (*Image) Kind() StmtKind   { return KindImage }

func (s *Label) Pos() Span   { return s.Span }
func (s *Say) Pos() Span     { return s.Span }
func (s *Show) Pos() Span    { return s.Span }
func (s *Hide) Pos() Span    { return s.Span }
func (s *Scene) Pos() Span   { return s.Span }
func (s *With) Pos() Span    { return s.Span }
func (s *If) Pos() Span      { return s.Span }
func (s *While) Pos() Span   { return s.Span }
func (s *Menu) Pos() Span    { return s.Span }
func (s *Jump) Pos() Span    { return s.Span }
func (s *Call) Pos() Span    { return s.Span }
func (s *Return) Pos() Span  { return s.Span }
func (s *Pass) Pos() Span    { return s.Span }
func (s *Define) Pos() Span  { return s.Span }
func (s *Default) Pos() Span { return s.Span }
func (s *Image) Pos() Span   { return s.Span }

// compound statements end with their own block and take no NEWLINE separator.
func compound(s Statement) bool {
	switch s.Kind() {
	case KindLabel, KindIf, KindWhile, KindMenu:
		return true
	}
	return false
}
