package render

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeMarkup(t *testing.T) {
	tests := []struct {
		name  string
		raw   string
		index int
		want  string
	}{
		{
			name:  "already tagged",
			raw:   `<div class="slide" data-slide-index="3" style="color:red"><h1>Hi</h1></div>`,
			index: 3,
			want:  `<div class="slide" data-slide-index="3" style="color:red"><h1>Hi</h1></div>`,
		},
		{
			name:  "missing index is patched into the slide div",
			raw:   `<div class="slide dark" style="x"><p>hi</p></div>`,
			index: 2,
			want:  `<div class="slide dark" data-slide-index="2" style="x"><p>hi</p></div>`,
		},
		{
			name:  "class after other attributes",
			raw:   `<DIV style="a" class="slide title">t</DIV>`,
			index: 0,
			want:  `<DIV style="a" class="slide title" data-slide-index="0">t</DIV>`,
		},
		{
			name:  "no slide block is wrapped",
			raw:   `<h1>Hello</h1>`,
			index: 1,
			want:  `<div class="slide" data-slide-index="1" style="` + wrapperStyle + `"><h1>Hello</h1></div>`,
		},
		{
			name:  "fenced output",
			raw:   "Here you go:\n```html\n<div class=\"slide\" data-slide-index=\"0\">A</div>\n```\nEnjoy!",
			index: 0,
			want:  `<div class="slide" data-slide-index="0">A</div>`,
		},
		{
			name:  "unterminated fence",
			raw:   "```html\n<div class=\"slide\" data-slide-index=\"4\">A",
			index: 4,
			want:  `<div class="slide" data-slide-index="4">A`,
		},
		{
			name:  "wrong index on the slide div is rewritten",
			raw:   `<div class="slide" data-slide-index="0" style="x">B</div>`,
			index: 3,
			want:  `<div class="slide" data-slide-index="3" style="x">B</div>`,
		},
		{
			name:  "unquoted index is rewritten",
			raw:   `<div class="slide" data-slide-index=9>B</div>`,
			index: 1,
			want:  `<div class="slide" data-slide-index="1">B</div>`,
		},
		{
			name:  "index on a nested element does not count",
			raw:   `<div class="slide"><span data-slide-index="8">n</span></div>`,
			index: 2,
			want:  `<div class="slide" data-slide-index="2"><span data-slide-index="8">n</span></div>`,
		},
		{
			name:  "slide class on a non-div root",
			raw:   `<section class="slide">S</section>`,
			index: 5,
			want:  `<div class="slide" data-slide-index="5" style="` + wrapperStyle + `"><section class="slide">S</section></div>`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeMarkup(tt.raw, tt.index))
		})
	}
}

func TestNormalizeMarkup_Idempotent(t *testing.T) {
	for _, raw := range []string{`<p>x</p>`, `<div class="slide">y</div>`, `<div class="slide" data-slide-index="1">w</div>`, "```\n<b>z</b>\n```", ""} {
		once := NormalizeMarkup(raw, 7)
		assert.Equal(t, once, NormalizeMarkup(once, 7), raw)
	}
}
