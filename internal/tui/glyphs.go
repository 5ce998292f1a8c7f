package tui

import (
	"strings"
	"sync"
)

// Terminal apps can't change the user's font, so markers come in a Unicode and an
// ASCII set for terminals/fonts that don't render some glyphs cleanly.

type glyphSet int

const (
	glyphSetUnicode glyphSet = iota
	glyphSetASCII
)

var (
	glyphsMu      sync.RWMutex
	currentGlyphs = glyphSetUnicode
)

func applyGlyphPreference(v string) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "", "unicode", "utf8":
		setGlyphs(glyphSetUnicode)
	case "ascii":
		setGlyphs(glyphSetASCII)
	}
}

func setGlyphs(gs glyphSet) {
	glyphsMu.Lock()
	currentGlyphs = gs
	glyphsMu.Unlock()
}

func glyphs() glyphSet {
	glyphsMu.RLock()
	gs := currentGlyphs
	glyphsMu.RUnlock()
	return gs
}

func glyphCursor() string {
	if glyphs() == glyphSetASCII {
		return ">"
	}
	return "▸"
}

func glyphFeatured(on bool) string {
	switch {
	case glyphs() == glyphSetASCII && on:
		return "*"
	case glyphs() == glyphSetASCII:
		return "."
	case on:
		return "★"
	default:
		return "☆"
	}
}

func glyphVisible(on bool) string {
	switch {
	case glyphs() == glyphSetASCII && on:
		return "o"
	case glyphs() == glyphSetASCII:
		return "-"
	case on:
		return "●"
	default:
		return "○"
	}
}

func glyphPending() string {
	if glyphs() == glyphSetASCII {
		return "~"
	}
	return "…"
}

func glyphSep() string {
	if glyphs() == glyphSetASCII {
		return "|"
	}
	return "│"
}

func glyphHRule() string {
	if glyphs() == glyphSetASCII {
		return "-"
	}
	return "─"
}
