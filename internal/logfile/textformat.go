package logfile

import "bytes"

// TextFormat is a heuristic content classification, run on the first
// available prefix of a file (and again whenever the index is empty at
// the start of a scanned line), to give downstream renderers a
// hint when the filename extension isn't informative (e.g. a file
// opened by descriptor only).
type TextFormat int

const (
	TextFormatUnknown TextFormat = iota
	TextFormatPlain
	TextFormatMarkdown
	TextFormatXML
	TextFormatJSON
)

// detectTextFormat sniffs a byte prefix and classifies it. It never
// reads beyond what is handed to it.
func detectTextFormat(data []byte) TextFormat {
	trimmed := bytes.TrimLeft(data, " \t\r\n")
	if len(trimmed) == 0 {
		return TextFormatUnknown
	}

	switch trimmed[0] {
	case '<':
		return TextFormatXML
	case '{', '[':
		if looksLikeJSON(trimmed) {
			return TextFormatJSON
		}
	}

	if bytes.HasPrefix(trimmed, []byte("#")) || bytes.Contains(trimmed[:min(len(trimmed), 512)], []byte("\n## ")) {
		return TextFormatMarkdown
	}

	return TextFormatPlain
}

func looksLikeJSON(b []byte) bool {
	depth := 0
	for _, c := range b {
		switch c {
		case '{', '[':
			depth++
		case '}', ']':
			depth--
		}
	}
	return depth == 0
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
