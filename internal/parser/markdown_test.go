package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleMarkdown = `---
title: Deployment Guide
author: ops
tags: [docker, kubernetes]
---
# Deployment Guide

Notes on shipping the service.

## Containers

Run ` + "`docker compose up`" + ` to start everything locally.

` + "```bash\necho building\necho done\n```" + `

- step one
- step two

[runbook](https://example.com/runbook) and [local notes](./notes.md)

![diagram](./diagram.png)

> remember to rotate credentials
`

func TestMarkdownFrontmatter(t *testing.T) {
	p := NewMarkdownParser()
	result, err := p.ParseContent(sampleMarkdown, "guide.md")
	require.NoError(t, err)
	require.True(t, result.Success)

	assert.Equal(t, true, result.Metadata["has_frontmatter"])
	assert.Equal(t, "Deployment Guide", result.Metadata["frontmatter_title"])
	assert.Equal(t, "ops", result.Metadata["frontmatter_author"])
	assert.NotContains(t, result.Content, "---", "frontmatter must not leak into content")
}

func TestMarkdownMalformedFrontmatterIndexesAsBody(t *testing.T) {
	p := NewMarkdownParser()
	content := "---\n[unclosed\n---\nBody text here.\n"
	result, err := p.ParseContent(content, "bad.md")
	require.NoError(t, err)

	assert.Equal(t, false, result.Metadata["has_frontmatter"])
	assert.Contains(t, result.Content, "Body text here.")
}

func TestMarkdownStructure(t *testing.T) {
	p := NewMarkdownParser()
	result, err := p.ParseContent(sampleMarkdown, "guide.md")
	require.NoError(t, err)

	assert.Equal(t, "Deployment Guide", result.Metadata["title"])
	assert.Equal(t, 2, result.Metadata["header_count"])

	headers, ok := result.Metadata["headers"].([]Header)
	require.True(t, ok)
	assert.Equal(t, 1, headers[0].Level)
	assert.Equal(t, "deployment-guide", headers[0].Anchor)
	assert.Equal(t, 2, headers[1].Level)
}

func TestMarkdownLinksAndImages(t *testing.T) {
	p := NewMarkdownParser()
	result, err := p.ParseContent(sampleMarkdown, "guide.md")
	require.NoError(t, err)

	assert.Equal(t, 2, result.Metadata["link_count"])
	assert.Equal(t, 1, result.Metadata["external_links"])
	assert.Equal(t, 1, result.Metadata["internal_links"])
	assert.Equal(t, 1, result.Metadata["image_count"])
}

func TestMarkdownCodeBlocks(t *testing.T) {
	p := NewMarkdownParser()
	result, err := p.ParseContent(sampleMarkdown, "guide.md")
	require.NoError(t, err)

	assert.Equal(t, 1, result.Metadata["code_block_count"])
	languages, ok := result.Metadata["code_languages"].([]string)
	require.True(t, ok)
	assert.Equal(t, []string{"bash"}, languages)

	blocks, ok := result.Metadata["code_blocks"].([]CodeBlock)
	require.True(t, ok)
	assert.Equal(t, 2, blocks[0].LineCount)
}

func TestMarkdownCleanForIndexing(t *testing.T) {
	p := NewMarkdownParser()
	result, err := p.ParseContent(sampleMarkdown, "guide.md")
	require.NoError(t, err)

	assert.NotContains(t, result.Content, "```", "code fences must be stripped")
	assert.Contains(t, result.Content, "echo building", "code content must survive")
	assert.NotContains(t, result.Content, "](", "link syntax must be stripped")
	assert.Contains(t, result.Content, "runbook", "link text must survive")
	assert.NotContains(t, result.Content, "# Deployment", "header markers must be stripped")
	assert.Contains(t, result.Content, "Deployment Guide")
}

func TestMarkdownKeywordsIncludeStructure(t *testing.T) {
	p := NewMarkdownParser()
	result, err := p.ParseContent(sampleMarkdown, "guide.md")
	require.NoError(t, err)

	assert.Contains(t, result.Keywords, "deployment", "header words rank as keywords")
	assert.Contains(t, result.Keywords, "bash", "code languages rank as keywords")
	assert.Contains(t, result.Keywords, "runbook", "link text ranks as keywords")
}

func TestHeaderAnchor(t *testing.T) {
	assert.Equal(t, "getting-started", headerAnchor("Getting Started"))
	assert.Equal(t, "faq-answers", headerAnchor("FAQ & Answers!"))
}
