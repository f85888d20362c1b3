package parser

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"brand-rag/internal/config"
	"brand-rag/internal/models"
)

const (
	defaultChunkSize      = 1500 // characters
	defaultChunkOverlap   = 200  // characters
	defaultMinChunkLength = 100  // characters

	headerScanLength   = 100
	sectionTitleLength = 100
)

// ChunkOptions bounds the chunks produced by ChunkPages. Lengths are in characters.
type ChunkOptions struct {
	MaxSize   int
	Overlap   int
	MinLength int
}

// NewChunkOptions reads the chunk settings from cfg. A non-positive size or
// minimum length falls back to its default; an overlap of 0 disables carry.
func NewChunkOptions(cfg *config.Config) ChunkOptions {
	opts := ChunkOptions{
		MaxSize:   defaultChunkSize,
		Overlap:   defaultChunkOverlap,
		MinLength: defaultMinChunkLength,
	}
	if cfg == nil {
		return opts
	}
	if cfg.RAG.ChunkSize > 0 {
		opts.MaxSize = cfg.RAG.ChunkSize
	}
	opts.Overlap = cfg.RAG.ChunkOverlap
	if cfg.RAG.MinChunkLength > 0 {
		opts.MinLength = cfg.RAG.MinChunkLength
	}
	return opts.normalize()
}

func (o ChunkOptions) normalize() ChunkOptions {
	if o.MaxSize <= 0 {
		o.MaxSize = defaultChunkSize
	}
	if o.Overlap < 0 {
		o.Overlap = 0
	}
	if o.Overlap >= o.MaxSize {
		o.Overlap = o.MaxSize / 2
	}
	if o.MinLength < 0 {
		o.MinLength = 0
	}
	return o
}

type headerMatcher struct {
	name string
	re   *regexp.Regexp
}

// first match wins
var headerMatchers = []headerMatcher{
	{name: "markdown", re: regexp.MustCompile(models.MarkdownHeaderRegex)},
	{name: "all_caps", re: regexp.MustCompile(models.AllCapsHeaderRegex)},
	{name: "numbered", re: regexp.MustCompile(models.NumberedHeaderRegex)},
	{name: "title_colon", re: regexp.MustCompile(models.TitleColonRegex)},
	{name: "chapter", re: regexp.MustCompile(models.ChapterRegex)},
}

var paragraphBreak = regexp.MustCompile(models.ParagraphBreakRegex)

// matchHeader reports which header pattern, if any, the start of para matches.
func matchHeader(para string) (string, bool) {
	head := models.Truncate(para, headerScanLength)
	for _, m := range headerMatchers {
		if m.re.MatchString(head) {
			return m.name, true
		}
	}
	return "", false
}

// splitParagraphs breaks text on blank lines and on a newline followed by an
// uppercase letter. The letter stays with the following paragraph.
func splitParagraphs(text string) []string {
	var paras []string
	start := 0
	for _, m := range paragraphBreak.FindAllStringIndex(text, -1) {
		next := m[1]
		if c := text[next-1]; c >= 'A' && c <= 'Z' {
			next--
		}
		paras = appendParagraph(paras, text[start:m[0]])
		start = next
	}
	return appendParagraph(paras, text[start:])
}

func appendParagraph(paras []string, p string) []string {
	p = strings.TrimSpace(p)
	if p == "" {
		return paras
	}
	return append(paras, p)
}

// chunkState is the accumulator folded over the paragraphs of one document.
type chunkState struct {
	opts    ChunkOptions
	current string
	section string
	next    int
	chunks  []models.Chunk
}

// ChunkPages splits the pages of one document into ordered, overlapping,
// section-tagged chunks.
func ChunkPages(pages []models.Page, opts ChunkOptions) []models.Chunk {
	if len(pages) == 0 {
		return nil
	}
	s := chunkState{opts: opts.normalize(), section: models.DefaultSection}
	for _, page := range pages {
		for _, para := range splitParagraphs(page.Text) {
			s = s.consume(para, page.Number)
		}
	}
	s, _ = s.emit(pages[len(pages)-1].Number)
	return s.chunks
}

func (s chunkState) consume(para string, page int) chunkState {
	if _, ok := matchHeader(para); ok {
		var emitted bool
		if s, emitted = s.emit(page); emitted {
			s.current = s.carry()
		}
		s.section = strings.TrimSpace(models.Truncate(para, sectionTitleLength))
	}

	if s.current != "" && runeLen(s.current)+runeLen(models.ContextSeparator)+runeLen(para) > s.opts.MaxSize {
		s, _ = s.emit(page)
		s.current = s.carry()
	}
	s.current = joinParagraph(s.current, para)

	for runeLen(s.current) > s.opts.MaxSize {
		s = s.split(page)
	}
	return s
}

// emit appends the accumulator as a chunk when its trimmed text is longer
// than MinLength. The accumulator itself is left untouched.
func (s chunkState) emit(page int) (chunkState, bool) {
	text := strings.TrimSpace(s.current)
	if runeLen(text) <= s.opts.MinLength {
		return s, false
	}
	s.chunks = append(s.chunks, models.Chunk{
		Index:   s.next,
		Section: s.section,
		Text:    text,
		Page:    page,
	})
	s.next++
	return s, true
}

// split cuts an oversize accumulator at MaxSize. The head is emitted and the
// rest continues after the head's overlap.
func (s chunkState) split(page int) chunkState {
	r := []rune(s.current)
	head, rest := string(r[:s.opts.MaxSize]), string(r[s.opts.MaxSize:])
	s.current = head
	s, _ = s.emit(page)
	s.current = s.carry() + rest
	return s
}

// carry is the overlap seed for the next accumulator: at most Overlap
// trailing characters of the trimmed accumulator.
func (s chunkState) carry() string {
	return overlapTail(strings.TrimSpace(s.current), s.opts.Overlap)
}

func overlapTail(text string, n int) string {
	if n <= 0 {
		return ""
	}
	r := []rune(text)
	if len(r) > n {
		r = r[len(r)-n:]
	}
	return strings.TrimLeftFunc(string(r), unicode.IsSpace)
}

func joinParagraph(current, para string) string {
	if current == "" {
		return para
	}
	return current + models.ContextSeparator + para
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}
