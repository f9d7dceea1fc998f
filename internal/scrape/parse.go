package scrape

import (
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"koosseis/internal"
)

const unknownComposer = "Unknown Composer"

// ParseComposerPage reads one composer works page. Categories (h4), titles
// and description blocks are taken in document order; a title with no
// description block before the next title or category gets an empty
// description, and a description with no pending title is dropped.
func ParseComposerPage(r io.Reader) (internal.Composer, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return internal.Composer{}, err
	}

	composer := internal.Composer{Composer: strings.TrimSpace(doc.Find("h1.entry-title").First().Text())}
	if composer.Composer == "" {
		composer.Composer = unknownComposer
	}

	var (
		group   *internal.CompositionGroup
		pending *string
	)
	flushPending := func() {
		if pending != nil {
			if group == nil {
				group = &internal.CompositionGroup{}
			}
			group.Works = append(group.Works, internal.Work{Title: *pending})
			pending = nil
		}
	}
	flushGroup := func() {
		flushPending()
		if group != nil && (group.Category != "" || len(group.Works) > 0) {
			composer.Compositions = append(composer.Compositions, *group)
		}
		group = nil
	}

	doc.Find("h4, div.teose-title, div.teos-title, div.teose-info").Each(func(_ int, sel *goquery.Selection) {
		switch {
		case goquery.NodeName(sel) == "h4":
			flushGroup()
			group = &internal.CompositionGroup{Category: strings.TrimSpace(sel.Text())}
		case sel.HasClass("teose-title") || sel.HasClass("teos-title"):
			flushPending()
			title := strings.TrimSpace(sel.Text())
			pending = &title
		case sel.HasClass("teose-info"):
			if pending == nil {
				return
			}
			if group == nil {
				group = &internal.CompositionGroup{}
			}
			group.Works = append(group.Works, internal.Work{Title: *pending, Description: infoText(sel)})
			pending = nil
		}
	})
	flushGroup()

	return composer, nil
}

// infoText joins the direct children of a description block, turning <br>
// into newlines.
func infoText(sel *goquery.Selection) string {
	var b strings.Builder
	sel.Contents().Each(func(_ int, child *goquery.Selection) {
		node := child.Get(0)
		switch {
		case node.Type == html.ElementNode && node.Data == "br":
			b.WriteString("\n")
		case node.Type == html.TextNode || node.Type == html.ElementNode:
			b.WriteString(strings.TrimSpace(child.Text()))
		}
	})
	return b.String()
}
