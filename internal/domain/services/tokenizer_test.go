package services

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fredcamaral/texdeck/internal/domain/entities"
)

func TestTokenizer_Tokenize(t *testing.T) {
	tokenizer := NewTokenizer()

	tests := []struct {
		name string
		text string
		want []entities.Run
	}{
		{
			name: "text only",
			text: "  plain words  ",
			want: []entities.Run{entities.TextRun(2, "plain words")},
		},
		{
			name: "formula between text",
			text: "Einstein said $E = mc^2$ changed physics.",
			want: []entities.Run{
				entities.TextRun(2, "Einstein said"),
				entities.FormulaRun(2, "E = mc^2"),
				entities.TextRun(2, "changed physics."),
			},
		},
		{
			name: "adjacent formulas",
			text: "$a$$b$",
			want: []entities.Run{entities.FormulaRun(2, "a"), entities.FormulaRun(2, "b")},
		},
		{
			name: "blank text between formulas is dropped",
			text: "$a$   $b$",
			want: []entities.Run{entities.FormulaRun(2, "a"), entities.FormulaRun(2, "b")},
		},
		{
			name: "formula source is not trimmed",
			text: "see $ x $",
			want: []entities.Run{entities.TextRun(2, "see"), entities.FormulaRun(2, " x ")},
		},
		{
			name: "empty formula",
			text: "$$",
			want: []entities.Run{entities.FormulaRun(2, "")},
		},
		{
			name: "unterminated dollar stays literal",
			text: "costs $5 today",
			want: []entities.Run{entities.TextRun(2, "costs $5 today")},
		},
		{
			name: "unterminated after a formula",
			text: "a $x$ b $y",
			want: []entities.Run{
				entities.TextRun(2, "a"),
				entities.FormulaRun(2, "x"),
				entities.TextRun(2, "b $y"),
			},
		},
		{
			name: "blank",
			text: "   ",
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tokenizer.Tokenize(2, tt.text))
		})
	}
}

func TestTokenizer_PreservesOrder(t *testing.T) {
	runs := NewTokenizer().Tokenize(0, "one $1$ two $2$ three $3$")

	var kinds []entities.RunKind
	for _, r := range runs {
		kinds = append(kinds, r.Kind)
	}
	assert.Equal(t, []entities.RunKind{
		entities.RunText, entities.RunFormula,
		entities.RunText, entities.RunFormula,
		entities.RunText, entities.RunFormula,
	}, kinds)
	assert.Equal(t, "3", runs[5].Latex)
}
