package parser

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

var (
	frontmatterPattern = regexp.MustCompile(`(?s)^---\n(.*?)\n---\n`)
	headerPattern      = regexp.MustCompile(`(?m)^(#{1,6})\s+(.+)$`)
	imagePattern       = regexp.MustCompile(`!\[([^\]]*)\]\(([^)]+)\)`)
	linkPattern        = regexp.MustCompile(`\[([^\]]+)\]\(([^)]+)\)`)
	codeBlockPattern   = regexp.MustCompile("(?s)```(\\w*)\\n(.*?)\\n```")
	inlineCodePattern  = regexp.MustCompile("`([^`\n]+)`")
	listItemPattern    = regexp.MustCompile(`(?m)^\s*(?:[-*+]|\d+\.)\s+(.+)$`)
	blockquotePattern  = regexp.MustCompile(`(?m)^>\s?(.*)$`)
	tableRowPattern    = regexp.MustCompile(`(?m)^\|.+\|\s*$`)
	emphasisPattern    = regexp.MustCompile(`(\*\*|__|\*|_)([^*_]+)(\*\*|__|\*|_)`)
	anchorCleanPattern = regexp.MustCompile(`[^a-z0-9\s-]`)
	whitespaceRuns     = regexp.MustCompile(`\s+`)
	blankLineRuns      = regexp.MustCompile(`\n{3,}`)
)

// markdownStopWords extend the general stop list with markdown noise terms.
var markdownStopWords = map[string]struct{}{
	"http": {}, "https": {}, "www": {}, "com": {}, "org": {},
	"readme": {}, "toc": {}, "href": {}, "src": {}, "alt": {},
}

// MarkdownParser extracts structure and metadata from CommonMark-style
// documents: YAML frontmatter, header hierarchy, links, images, fenced code
// blocks, and inline code. Markers are stripped from the indexing content.
type MarkdownParser struct{}

func NewMarkdownParser() *MarkdownParser {
	return &MarkdownParser{}
}

func (p *MarkdownParser) Name() string {
	return "markdown"
}

func (p *MarkdownParser) SupportedExtensions() []string {
	return []string{".md", ".markdown", ".mdown", ".mkd"}
}

// Header is one entry of the document outline.
type Header struct {
	Level  int    `json:"level"`
	Text   string `json:"text"`
	Anchor string `json:"anchor"`
}

// Link is one markdown link or image reference.
type Link struct {
	Text string `json:"text"`
	URL  string `json:"url"`
}

// CodeBlock is one fenced block with its language tag.
type CodeBlock struct {
	Language  string `json:"language"`
	LineCount int    `json:"line_count"`
}

func (p *MarkdownParser) ParseContent(content, path string) (*Result, error) {
	metadata := make(map[string]any)

	body := p.extractFrontmatter(content, metadata)
	p.extractStructure(body, metadata)
	links, _ := p.extractLinks(body, metadata)
	blocks := p.extractCodeBlocks(body, metadata)
	p.extractInlineElements(body, metadata)

	cleaned := p.cleanForIndexing(body)
	metadata["word_count"] = len(strings.Fields(cleaned))
	metadata["line_count"] = strings.Count(content, "\n") + 1
	metadata["char_count"] = len(content)

	keywords := p.buildKeywords(cleaned, metadata, links, blocks)

	return &Result{
		Success:  true,
		Content:  cleaned,
		Metadata: metadata,
		Keywords: keywords,
	}, nil
}

// extractFrontmatter parses a leading YAML block into metadata and returns
// the remaining body.
func (p *MarkdownParser) extractFrontmatter(content string, metadata map[string]any) string {
	m := frontmatterPattern.FindStringSubmatch(content)
	if m == nil {
		metadata["has_frontmatter"] = false
		return content
	}

	var fields map[string]any
	if err := yaml.Unmarshal([]byte(m[1]), &fields); err != nil {
		// malformed frontmatter indexes as body text
		metadata["has_frontmatter"] = false
		return content
	}

	metadata["has_frontmatter"] = true
	for key, value := range fields {
		switch v := value.(type) {
		case time.Time:
			metadata["frontmatter_"+key] = v.Format(time.RFC3339)
		default:
			metadata["frontmatter_"+key] = v
		}
	}
	return content[len(m[0]):]
}

func (p *MarkdownParser) extractStructure(body string, metadata map[string]any) {
	matches := headerPattern.FindAllStringSubmatch(body, -1)
	if len(matches) == 0 {
		metadata["header_count"] = 0
		return
	}

	headers := make([]Header, 0, len(matches))
	for _, m := range matches {
		text := strings.TrimSpace(m[2])
		headers = append(headers, Header{
			Level:  len(m[1]),
			Text:   text,
			Anchor: headerAnchor(text),
		})
	}
	metadata["title"] = headers[0].Text
	metadata["headers"] = headers
	metadata["header_count"] = len(headers)
}

func headerAnchor(text string) string {
	anchor := anchorCleanPattern.ReplaceAllString(strings.ToLower(text), "")
	anchor = whitespaceRuns.ReplaceAllString(strings.TrimSpace(anchor), "-")
	return anchor
}

func (p *MarkdownParser) extractLinks(body string, metadata map[string]any) ([]Link, []Link) {
	// strip images first so the link pattern does not double-count them
	var images []Link
	for _, m := range imagePattern.FindAllStringSubmatch(body, -1) {
		images = append(images, Link{Text: m[1], URL: m[2]})
	}
	withoutImages := imagePattern.ReplaceAllString(body, "")

	var links []Link
	internal, external := 0, 0
	for _, m := range linkPattern.FindAllStringSubmatch(withoutImages, -1) {
		link := Link{Text: m[1], URL: m[2]}
		links = append(links, link)
		if isExternalURL(link.URL) {
			external++
		} else {
			internal++
		}
	}

	metadata["link_count"] = len(links)
	metadata["internal_links"] = internal
	metadata["external_links"] = external
	metadata["image_count"] = len(images)
	if len(links) > 0 {
		metadata["links"] = links
	}
	if len(images) > 0 {
		metadata["images"] = images
	}
	return links, images
}

func isExternalURL(url string) bool {
	return strings.HasPrefix(url, "http://") || strings.HasPrefix(url, "https://") ||
		strings.HasPrefix(url, "//")
}

func (p *MarkdownParser) extractCodeBlocks(body string, metadata map[string]any) []CodeBlock {
	matches := codeBlockPattern.FindAllStringSubmatch(body, -1)
	if len(matches) == 0 {
		metadata["code_block_count"] = 0
		return nil
	}

	blocks := make([]CodeBlock, 0, len(matches))
	languages := make([]string, 0)
	seen := make(map[string]struct{})
	for _, m := range matches {
		lang := m[1]
		blocks = append(blocks, CodeBlock{
			Language:  lang,
			LineCount: strings.Count(m[2], "\n") + 1,
		})
		if lang != "" {
			if _, dup := seen[lang]; !dup {
				seen[lang] = struct{}{}
				languages = append(languages, lang)
			}
		}
	}
	metadata["code_blocks"] = blocks
	metadata["code_block_count"] = len(blocks)
	if len(languages) > 0 {
		metadata["code_languages"] = languages
	}
	return blocks
}

func (p *MarkdownParser) extractInlineElements(body string, metadata map[string]any) {
	metadata["inline_code_count"] = len(inlineCodePattern.FindAllString(body, -1))
	metadata["list_item_count"] = len(listItemPattern.FindAllString(body, -1))
	metadata["blockquote_count"] = len(blockquotePattern.FindAllString(body, -1))
	metadata["table_row_count"] = len(tableRowPattern.FindAllString(body, -1))
}

// cleanForIndexing strips markdown markers while keeping the readable text,
// including the contents of code blocks.
func (p *MarkdownParser) cleanForIndexing(body string) string {
	out := codeBlockPattern.ReplaceAllString(body, "$2")
	out = inlineCodePattern.ReplaceAllString(out, "$1")
	out = imagePattern.ReplaceAllString(out, "$1")
	out = linkPattern.ReplaceAllString(out, "$1")
	out = headerPattern.ReplaceAllString(out, "$2")
	out = listItemPattern.ReplaceAllString(out, "$1")
	out = blockquotePattern.ReplaceAllString(out, "$1")
	out = emphasisPattern.ReplaceAllString(out, "$2")
	out = blankLineRuns.ReplaceAllString(out, "\n\n")
	return strings.TrimSpace(out)
}

// buildKeywords merges structural keywords (header words, link texts, code
// languages) with the general frequency extraction.
func (p *MarkdownParser) buildKeywords(cleaned string, metadata map[string]any, links []Link, blocks []CodeBlock) []string {
	var structural []string
	if headers, ok := metadata["headers"].([]Header); ok {
		for _, h := range headers {
			structural = append(structural, wordPattern.FindAllString(strings.ToLower(h.Text), -1)...)
		}
	}
	for _, l := range links {
		structural = append(structural, wordPattern.FindAllString(strings.ToLower(l.Text), -1)...)
	}
	for _, b := range blocks {
		if b.Language != "" {
			structural = append(structural, strings.ToLower(b.Language))
		}
	}

	general := ExtractKeywords(cleaned, markdownStopWords)

	seen := make(map[string]struct{}, len(general))
	merged := make([]string, 0, len(general))
	for _, kw := range structural {
		if len(kw) < minKeywordLength {
			continue
		}
		if _, stop := stopWords[kw]; stop {
			continue
		}
		if _, dup := seen[kw]; dup {
			continue
		}
		seen[kw] = struct{}{}
		merged = append(merged, kw)
	}
	for _, kw := range general {
		if _, dup := seen[kw]; dup {
			continue
		}
		seen[kw] = struct{}{}
		merged = append(merged, kw)
	}
	if len(merged) > maxKeywords {
		merged = merged[:maxKeywords]
	}
	return merged
}

// String implements fmt.Stringer for diagnostics.
func (p *MarkdownParser) String() string {
	return fmt.Sprintf("markdown(%s)", strings.Join(p.SupportedExtensions(), ", "))
}
