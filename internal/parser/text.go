package parser

import (
	"regexp"
	"strings"
)

var (
	emailPattern        = regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)
	urlPattern          = regexp.MustCompile(`\bhttps?://[^\s<>"]+\b`)
	phonePattern        = regexp.MustCompile(`\b(?:\+?1[-.\s]?)?\(?\d{3}\)?[-.\s]?\d{3}[-.\s]?\d{4}\b`)
	datePattern         = regexp.MustCompile(`\b\d{4}-\d{2}-\d{2}\b|\b\d{1,2}/\d{1,2}/\d{2,4}\b`)
	timePattern         = regexp.MustCompile(`\b\d{1,2}:\d{2}(?::\d{2})?(?:\s?[AaPp][Mm])?\b`)
	logLevelPattern     = regexp.MustCompile(`\b(DEBUG|INFO|WARNING|WARN|ERROR|CRITICAL|FATAL|TRACE)\b`)
	logTimestampPattern = regexp.MustCompile(`\d{4}-\d{2}-\d{2}[T\s]\d{2}:\d{2}:\d{2}`)
	keyValuePattern     = regexp.MustCompile(`(?m)^([^=:\s#;]+)\s*[=:]\s*(.+)$`)
	iniSectionPattern   = regexp.MustCompile(`(?m)^\[([^\]]+)\]\s*$`)
	functionPattern     = regexp.MustCompile(`(?m)\b(?:def|func|function|fn)\s+\w+`)
	variablePattern     = regexp.MustCompile(`(?m)^\s*(?:var|let|const)\s+\w+`)
	commentLinePattern  = regexp.MustCompile(`(?m)^\s*(?://|#|;|--)\s*\S`)
)

// textStopWords extend the general stop list for plain-text noise.
var textStopWords = map[string]struct{}{
	"etc": {}, "eg": {}, "ie": {}, "vs": {}, "via": {},
}

// TextParser handles plain text, detecting the document sub-type
// heuristically (log, config, INI, code-like) and surfacing extracted
// entities (emails, URLs, phones, dates, times) as metadata.
type TextParser struct{}

func NewTextParser() *TextParser {
	return &TextParser{}
}

func (p *TextParser) Name() string {
	return "text"
}

func (p *TextParser) SupportedExtensions() []string {
	return []string{".txt", ".text", ".log"}
}

func (p *TextParser) ParseContent(content, path string) (*Result, error) {
	metadata := make(map[string]any)

	docType, confidence := p.detectDocumentType(content, path)
	metadata["document_type"] = docType
	metadata["type_confidence"] = confidence

	p.extractEntities(content, metadata)
	p.extractStats(content, metadata)

	switch docType {
	case "log":
		p.extractLogMetadata(content, metadata)
	case "config", "ini":
		p.extractConfigMetadata(content, metadata, docType)
	case "code":
		p.extractCodeMetadata(content, metadata)
	}

	return &Result{
		Success:  true,
		Content:  content,
		Metadata: metadata,
		Keywords: ExtractKeywords(content, textStopWords),
	}, nil
}

// detectDocumentType classifies the content and returns a confidence score.
// Extension and filename hints win over content heuristics.
func (p *TextParser) detectDocumentType(content, path string) (string, float64) {
	lower := strings.ToLower(path)
	if strings.HasSuffix(lower, ".log") {
		return "log", 0.95
	}
	base := lower
	if i := strings.LastIndexByte(lower, '/'); i >= 0 {
		base = lower[i+1:]
	}
	if strings.Contains(base, ".conf") || strings.Contains(base, ".cfg") ||
		strings.Contains(base, ".ini") || base == ".env" {
		return "config", 0.9
	}

	lines := strings.Split(content, "\n")
	total := len(lines)
	if total == 0 {
		return "plain", 0.5
	}

	sample := lines
	if len(sample) > 200 {
		sample = sample[:200]
	}
	var logLines, kvLines, iniSections int
	for _, line := range sample {
		if logLevelPattern.MatchString(line) && logTimestampPattern.MatchString(line) {
			logLines++
		}
		if keyValuePattern.MatchString(line) {
			kvLines++
		}
		if iniSectionPattern.MatchString(line) {
			iniSections++
		}
	}

	n := float64(len(sample))
	if ratio := float64(logLines) / n; ratio > 0.3 {
		return "log", min(0.95, 0.5+ratio)
	}
	if iniSections >= 2 && float64(kvLines)/n > 0.3 {
		return "ini", 0.85
	}
	if ratio := float64(kvLines) / n; ratio > 0.5 {
		return "config", min(0.9, 0.4+ratio)
	}
	if funcs := len(functionPattern.FindAllString(content, -1)); funcs >= 3 {
		return "code", 0.7
	}
	return "plain", 0.5
}

func (p *TextParser) extractEntities(content string, metadata map[string]any) {
	if emails := unique(emailPattern.FindAllString(content, -1)); len(emails) > 0 {
		metadata["emails"] = emails
		metadata["email_count"] = len(emails)
	}
	if urls := unique(urlPattern.FindAllString(content, -1)); len(urls) > 0 {
		metadata["urls"] = urls
		metadata["url_count"] = len(urls)
	}
	if phones := unique(phonePattern.FindAllString(content, -1)); len(phones) > 0 {
		metadata["phone_numbers"] = phones
		metadata["phone_count"] = len(phones)
	}
	if dates := unique(datePattern.FindAllString(content, -1)); len(dates) > 0 {
		metadata["dates"] = dates
		metadata["date_count"] = len(dates)
	}
	if times := unique(timePattern.FindAllString(content, -1)); len(times) > 0 {
		metadata["times"] = times
		metadata["time_count"] = len(times)
	}
}

func (p *TextParser) extractStats(content string, metadata map[string]any) {
	metadata["line_count"] = strings.Count(content, "\n") + 1
	metadata["word_count"] = len(strings.Fields(content))
	metadata["char_count"] = len(content)
}

func (p *TextParser) extractLogMetadata(content string, metadata map[string]any) {
	levels := make(map[string]int)
	for _, level := range logLevelPattern.FindAllString(content, -1) {
		levels[strings.ToUpper(level)]++
	}
	if len(levels) > 0 {
		metadata["log_levels"] = levels
	}
	metadata["log_timestamp_count"] = len(logTimestampPattern.FindAllString(content, -1))
}

func (p *TextParser) extractConfigMetadata(content string, metadata map[string]any, docType string) {
	var keys []string
	for _, m := range keyValuePattern.FindAllStringSubmatch(content, -1) {
		keys = append(keys, strings.TrimSpace(m[1]))
	}
	keys = unique(keys)
	if len(keys) > 50 {
		keys = keys[:50]
	}
	if len(keys) > 0 {
		metadata["config_keys"] = keys
		metadata["config_key_count"] = len(keys)
	}
	if docType == "ini" {
		var sections []string
		for _, m := range iniSectionPattern.FindAllStringSubmatch(content, -1) {
			sections = append(sections, m[1])
		}
		if len(sections) > 0 {
			metadata["ini_sections"] = unique(sections)
		}
	}
	metadata["config_format"] = docType
}

func (p *TextParser) extractCodeMetadata(content string, metadata map[string]any) {
	metadata["function_count"] = len(functionPattern.FindAllString(content, -1))
	metadata["variable_count"] = len(variablePattern.FindAllString(content, -1))
	metadata["comment_count"] = len(commentLinePattern.FindAllString(content, -1))
}

func unique(items []string) []string {
	seen := make(map[string]struct{}, len(items))
	out := make([]string, 0, len(items))
	for _, item := range items {
		if _, dup := seen[item]; dup {
			continue
		}
		seen[item] = struct{}{}
		out = append(out, item)
	}
	return out
}
