package services

import (
	"strings"

	"github.com/fredcamaral/texdeck/internal/domain/entities"
)

// Tokenizer splits one series of text into text and formula runs
type Tokenizer struct{}

// NewTokenizer creates a new run tokenizer
func NewTokenizer() *Tokenizer {
	return &Tokenizer{}
}

// Tokenize scans left to right for $...$ spans. The first $ after an
// opening $ closes the span. Text between formulas is trimmed and dropped
// when blank. An unterminated $ leaves the remainder as literal text.
func (t *Tokenizer) Tokenize(series int, text string) []entities.Run {
	var runs []entities.Run
	rest := text

	for {
		open := strings.IndexByte(rest, '$')
		if open < 0 {
			break
		}
		end := strings.IndexByte(rest[open+1:], '$')
		if end < 0 {
			break
		}
		end += open + 1

		runs = appendTextRun(runs, series, rest[:open])
		runs = append(runs, entities.FormulaRun(series, rest[open+1:end]))
		rest = rest[end+1:]
	}

	return appendTextRun(runs, series, rest)
}

func appendTextRun(runs []entities.Run, series int, text string) []entities.Run {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return runs
	}
	return append(runs, entities.TextRun(series, trimmed))
}
