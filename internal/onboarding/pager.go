// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Oryen Contributors

// Package onboarding pages through the introduction shown on first launch.
package onboarding

// Page is one screen of the introduction.
type Page struct {
	Title       string `yaml:"title"`
	Description string `yaml:"description"`
	Animation   string `yaml:"animation"`
}

// DefaultPages is the introduction shipped with the app.
var DefaultPages = []Page{
	{
		Title:       "Welcome to Oryen",
		Description: "Turn complaints into solutions. Manage your customers' feedback simply and efficiently.",
		Animation:   "gradient-infinite-sign",
	},
	{
		Title:       "Your voice matters",
		Description: "Your suggestions and complaints reach the people who can fix them, and drive real change.",
		Animation:   "chat",
	},
	{
		Title:       "Data that inspires decisions",
		Description: "Follow results, spot trends and turn feedback into opportunities with visual insights.",
		Animation:   "line-graph",
	},
}

// Button labels.
const (
	LabelNext  = "Next"
	LabelStart = "Get started"
)

// Indicator is one dot of the progress bar.
type Indicator struct {
	Index  int
	Active bool
}

// Pager tracks the visible page. It is not safe for concurrent use.
type Pager struct {
	pages []Page
	index int
}

// NewPager returns a pager over pages, or over DefaultPages when pages is empty.
func NewPager(pages []Page) *Pager {
	if len(pages) == 0 {
		pages = DefaultPages
	}
	return &Pager{pages: pages}
}

// Current returns the visible page.
func (p *Pager) Current() Page {
	return p.pages[p.index]
}

// Index returns the position of the visible page.
func (p *Pager) Index() int {
	return p.index
}

// Len returns the number of pages.
func (p *Pager) Len() int {
	return len(p.pages)
}

// IsLast reports whether the visible page is the final one.
func (p *Pager) IsLast() bool {
	return p.index == len(p.pages)-1
}

// Next shows the following page. It does nothing on the last page.
func (p *Pager) Next() {
	if !p.IsLast() {
		p.index++
	}
}

// SkipToEnd jumps to the last page.
func (p *Pager) SkipToEnd() {
	p.index = len(p.pages) - 1
}

// Advance handles the main button: it moves to the next page, or reports
// done on the last page.
func (p *Pager) Advance() (done bool) {
	if p.IsLast() {
		return true
	}
	p.Next()
	return false
}

// ButtonLabel returns the text of the main button.
func (p *Pager) ButtonLabel() string {
	if p.IsLast() {
		return LabelStart
	}
	return LabelNext
}

// ShowSkip reports whether the skip action is offered.
func (p *Pager) ShowSkip() bool {
	return !p.IsLast()
}

// Indicators returns the progress dots.
func (p *Pager) Indicators() []Indicator {
	out := make([]Indicator, len(p.pages))
	for i := range p.pages {
		out[i] = Indicator{Index: i, Active: i == p.index}
	}
	return out
}
