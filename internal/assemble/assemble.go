// Package assemble combines rendered slide fragments into one document.
package assemble

import "strings"

// ContainerClass marks the element holding every slide.
const ContainerClass = "presentation-slides-inner"

const baseStyles = `
  .presentation-slides-inner { display: flex; flex-direction: column; width: 100%; }
  .presentation-slides-inner .slide {
    flex: 0 0 auto;
    width: 100%;
    height: var(--slide-h, 70vh);
    min-height: var(--slide-h, 70vh);
    box-sizing: border-box;
  }
  @media print {
    .presentation-slides-inner .slide { page-break-after: always; height: 100vh !important; min-height: 100vh !important; }
  }
`

// Assemble joins markups in the order given under one shared stylesheet.
// An empty list yields a valid document with no slides.
func Assemble(markups []string) string {
	var b strings.Builder
	b.WriteString("<style>")
	b.WriteString(baseStyles)
	b.WriteString(`</style><div class="`)
	b.WriteString(ContainerClass)
	b.WriteString(`">`)
	for _, m := range markups {
		b.WriteString(m)
	}
	b.WriteString("</div>")
	return b.String()
}
