package parser

import (
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// PlaybookSection is one embeddable part of a Markdown playbook.
type PlaybookSection struct {
	Slug  string
	Title string
	Text  string
}

var (
	parentheticalRegex = regexp.MustCompile(`\s*\([^)]*\)`)
	slugSeparatorRegex = regexp.MustCompile(`[^a-z0-9]+`)
)

type heading struct {
	level int
	title string
	start int // byte offset of the heading line
}

// SplitPlaybook sections a Markdown playbook at its level-2 headings. A
// section longer than maxSize characters is split again at its level-3
// headings. Text before the first level-2 heading and under level-1
// headings is not part of any section.
func SplitPlaybook(src []byte, maxSize int) []PlaybookSection {
	if maxSize <= 0 {
		maxSize = defaultChunkSize
	}

	headings := collectHeadings(src)

	var sections []PlaybookSection
	for i, h := range headings {
		if h.level != 2 {
			continue
		}
		end := len(src)
		var subs []heading
		for _, next := range headings[i+1:] {
			if next.level <= 2 {
				end = next.start
				break
			}
			if next.level == 3 {
				subs = append(subs, next)
			}
		}

		body := strings.TrimSpace(string(src[h.start:end]))
		if body == "" {
			continue
		}
		slug := Slugify(h.title)
		if runeLen(body) <= maxSize || len(subs) == 0 {
			sections = append(sections, PlaybookSection{Slug: slug, Title: h.title, Text: body})
			continue
		}

		if lead := strings.TrimSpace(string(src[h.start:subs[0].start])); lead != "" && !isHeadingOnly(lead) {
			sections = append(sections, PlaybookSection{Slug: slug, Title: h.title, Text: lead})
		}
		for j, sub := range subs {
			subEnd := end
			if j+1 < len(subs) {
				subEnd = subs[j+1].start
			}
			sections = append(sections, PlaybookSection{
				Slug:  slug,
				Title: h.title + " - " + sub.title,
				Text:  strings.TrimSpace(string(src[sub.start:subEnd])),
			})
		}
	}
	return sections
}

func collectHeadings(src []byte) []heading {
	doc := goldmark.New().Parser().Parse(text.NewReader(src))

	var out []heading
	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		h, ok := n.(*ast.Heading)
		if !ok || h.Lines().Len() == 0 {
			continue
		}
		seg := h.Lines().At(0)
		out = append(out, heading{
			level: h.Level,
			title: strings.TrimSpace(string(h.Lines().Value(src))),
			start: lineStart(src, seg.Start),
		})
	}
	return out
}

func lineStart(src []byte, pos int) int {
	for pos > 0 && src[pos-1] != '\n' {
		pos--
	}
	return pos
}

func isHeadingOnly(s string) bool {
	return !strings.Contains(s, "\n") && strings.HasPrefix(s, "#")
}

// Slugify turns a heading into a section key: "Content Pillars (stick to
// these ratios)" becomes "content_pillars".
func Slugify(title string) string {
	s := parentheticalRegex.ReplaceAllString(title, "")
	s = slugSeparatorRegex.ReplaceAllString(strings.ToLower(s), "_")
	return strings.Trim(s, "_")
}
