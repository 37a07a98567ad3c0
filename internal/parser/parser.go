// Package parser turns raw file bytes into normalized text, structured
// metadata, and a keyword list. Parsers register the extensions they handle;
// the registry selects by extension with a plain-text fallback.
package parser

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/standardbeagle/mydocs/internal/errors"
	"github.com/standardbeagle/mydocs/internal/logging"
)

// FileInfo captures filesystem facts about a parsed file.
type FileInfo struct {
	Path       string
	Name       string
	Size       int64
	Ext        string
	CreatedAt  time.Time
	ModifiedAt time.Time
	Hash       string
}

// Stats records how a parse went.
type Stats struct {
	ParserName    string
	ParseTimeMs   float64
	ContentLength int
	KeywordCount  int
	MetadataCount int
}

// Result is the output of one parse. Metadata values may be rich (lists,
// maps, timestamps); the store adapter coerces them to strings before
// persistence.
type Result struct {
	Success      bool
	Content      string
	Metadata     map[string]any
	Keywords     []string
	FileInfo     FileInfo
	Stats        Stats
	ErrorMessage string
}

// Parser is the contract every document parser implements.
type Parser interface {
	Name() string
	SupportedExtensions() []string
	ParseContent(content, path string) (*Result, error)
}

// Registry selects a parser by file extension.
type Registry struct {
	parsers  map[string]Parser
	byExt    map[string]Parser
	fallback Parser
	log      *logging.Logger
}

// NewRegistry builds a registry with the markdown and text parsers
// registered and text as the fallback.
func NewRegistry(log *logging.Logger) *Registry {
	r := &Registry{
		parsers: make(map[string]Parser),
		byExt:   make(map[string]Parser),
		log:     log,
	}
	text := NewTextParser()
	r.Register(NewMarkdownParser())
	r.Register(text)
	r.fallback = text
	return r
}

// Register adds a parser and maps its extensions. A later registration for
// the same extension wins.
func (r *Registry) Register(p Parser) {
	r.parsers[p.Name()] = p
	for _, ext := range p.SupportedExtensions() {
		r.byExt[strings.ToLower(ext)] = p
	}
	r.log.Debug("registered parser %s for %v", p.Name(), p.SupportedExtensions())
}

// ParserFor returns the parser handling ext, or the fallback.
func (r *Registry) ParserFor(ext string) Parser {
	if p, ok := r.byExt[strings.ToLower(ext)]; ok {
		return p
	}
	return r.fallback
}

// Supports reports whether an extension maps to a registered parser.
func (r *Registry) Supports(ext string) bool {
	_, ok := r.byExt[strings.ToLower(ext)]
	return ok
}

// ParseFile reads a file from disk and parses it with the parser selected by
// extension.
func (r *Registry) ParseFile(path string) (*Result, error) {
	start := time.Now()

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewDocumentError(errors.ErrorTypeNotFound, "parse",
				fmt.Errorf("file does not exist")).WithFile(path)
		}
		return nil, errors.NewParseError("registry", path, err)
	}
	if info.IsDir() {
		return nil, errors.NewParseError("registry", path, fmt.Errorf("path is a directory"))
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.NewParseError("registry", path, err)
	}
	content := decodeText(raw)

	ext := strings.ToLower(filepath.Ext(path))
	p := r.ParserFor(ext)

	result, err := p.ParseContent(content, path)
	if err != nil {
		return nil, errors.NewParseError(p.Name(), path, err)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	result.FileInfo = FileInfo{
		Path:       abs,
		Name:       filepath.Base(path),
		Size:       info.Size(),
		Ext:        ext,
		ModifiedAt: info.ModTime(),
		Hash:       ContentHash(result.Content),
	}
	result.Stats.ParserName = p.Name()
	result.Stats.ParseTimeMs = float64(time.Since(start).Microseconds()) / 1000.0
	result.Stats.ContentLength = len(result.Content)
	result.Stats.KeywordCount = len(result.Keywords)
	result.Stats.MetadataCount = len(result.Metadata)

	r.log.Debug("parsed %s with %s in %.2fms", filepath.Base(path), p.Name(), result.Stats.ParseTimeMs)
	return result, nil
}

// ContentHash is the canonical 64-hex content digest stored on documents.
func ContentHash(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

// decodeText returns valid UTF-8, replacing undecodable bytes rather than
// failing the parse.
func decodeText(raw []byte) string {
	if utf8.Valid(raw) {
		return string(raw)
	}
	return strings.ToValidUTF8(string(raw), "�")
}

// stopWords are common English function words excluded from keywords.
var stopWords = map[string]struct{}{}

func init() {
	for _, w := range []string{
		"the", "and", "or", "but", "in", "on", "at", "to", "for", "of", "with",
		"by", "from", "this", "that", "these", "those", "a", "an", "is", "are",
		"was", "were", "be", "been", "being", "have", "has", "had", "do", "does",
		"did", "will", "would", "could", "should", "may", "might", "can", "shall",
		"his", "her", "its", "their", "our", "my", "your", "he", "she", "it",
		"they", "we", "i", "you", "me", "us", "him", "them", "who", "what",
		"when", "where", "why", "how", "which", "whom", "whose", "all", "any",
		"each", "few", "more", "most", "other", "some", "such", "no", "nor",
		"not", "only", "own", "same", "so", "than", "too", "very", "just", "now",
	} {
		stopWords[w] = struct{}{}
	}
}

var (
	wordPattern = regexp.MustCompile(`\b[a-zA-Z0-9_]+\b`)
	digitsOnly  = regexp.MustCompile(`^[0-9]+$`)
)

const (
	minKeywordLength = 3
	maxKeywords      = 100
)

// ExtractKeywords returns up to maxKeywords frequency-ranked words from the
// content, skipping stop words, short words, and bare numbers. Ties break
// alphabetically so the output is deterministic.
func ExtractKeywords(content string, extraStopWords map[string]struct{}) []string {
	if content == "" {
		return nil
	}

	freq := make(map[string]int)
	for _, word := range wordPattern.FindAllString(strings.ToLower(content), -1) {
		if len(word) < minKeywordLength {
			continue
		}
		if _, stop := stopWords[word]; stop {
			continue
		}
		if extraStopWords != nil {
			if _, stop := extraStopWords[word]; stop {
				continue
			}
		}
		if digitsOnly.MatchString(word) {
			continue
		}
		freq[word]++
	}

	keywords := make([]string, 0, len(freq))
	for word := range freq {
		keywords = append(keywords, word)
	}
	sort.Slice(keywords, func(i, j int) bool {
		if freq[keywords[i]] != freq[keywords[j]] {
			return freq[keywords[i]] > freq[keywords[j]]
		}
		return keywords[i] < keywords[j]
	})
	if len(keywords) > maxKeywords {
		keywords = keywords[:maxKeywords]
	}
	return keywords
}
