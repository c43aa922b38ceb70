// Package markup converts catalog description HTML into compact markdown
// for indexing and display. The output keeps headings, paragraphs, lists,
// emphasis, links and code; scripts, styles and unknown wrappers are reduced
// to their text.
package markup

import (
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Converter renders HTML fragments as markdown. The zero value is ready
// to use and safe for concurrent callers.
type Converter struct{}

// New returns a Converter.
func New() *Converter { return &Converter{} }

var (
	spaceRun   = regexp.MustCompile(`[ \t\r\n\f]+`)
	blankLines = regexp.MustCompile(`\n{3,}`)
)

// Convert renders src as markdown. Plain text input passes through with
// whitespace collapsed.
func (Converter) Convert(src string) (string, error) {
	if strings.TrimSpace(src) == "" {
		return "", nil
	}
	nodes, err := html.ParseFragment(strings.NewReader(src), &html.Node{
		Type:     html.ElementNode,
		Data:     "body",
		DataAtom: atom.Body,
	})
	if err != nil {
		return "", err
	}
	r := &renderer{}
	for _, n := range nodes {
		r.node(n)
	}
	return r.String(), nil
}

type listState struct {
	ordered bool
	n       int
}

type renderer struct {
	b         strings.Builder
	pending   int
	lineStart bool
	lists     []listState
}

func (r *renderer) String() string {
	lines := strings.Split(r.b.String(), "\n")
	for i, l := range lines {
		lines[i] = strings.TrimRight(l, " ")
	}
	out := strings.Join(lines, "\n")
	out = blankLines.ReplaceAllString(out, "\n\n")
	return strings.TrimSpace(out)
}

// breakLines requests at least n newlines before the next content.
func (r *renderer) breakLines(n int) {
	if r.b.Len() == 0 {
		return
	}
	if n > r.pending {
		r.pending = n
	}
}

func (r *renderer) write(s string) {
	if s == "" {
		return
	}
	if r.pending > 0 {
		r.b.WriteString(strings.Repeat("\n", r.pending))
		r.pending = 0
		r.lineStart = true
	}
	if r.lineStart {
		s = strings.TrimLeft(s, " ")
		if s == "" {
			return
		}
		r.lineStart = false
	} else if strings.HasPrefix(s, " ") && strings.HasSuffix(r.b.String(), " ") {
		s = strings.TrimLeft(s, " ")
	}
	r.b.WriteString(s)
}

// raw writes s without whitespace handling (list markers, fences).
func (r *renderer) raw(s string) {
	if r.pending > 0 {
		r.b.WriteString(strings.Repeat("\n", r.pending))
		r.pending = 0
	}
	r.b.WriteString(s)
	r.lineStart = strings.HasSuffix(s, "\n")
}

func (r *renderer) children(n *html.Node) {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		r.node(c)
	}
}

func (r *renderer) node(n *html.Node) {
	switch n.Type {
	case html.TextNode:
		r.write(spaceRun.ReplaceAllString(n.Data, " "))
		return
	case html.ElementNode:
	case html.DocumentNode:
		r.children(n)
		return
	default:
		return
	}

	switch n.DataAtom {
	case atom.Script, atom.Style, atom.Head, atom.Noscript, atom.Template:
		return

	case atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6:
		level := int(n.Data[1] - '0')
		text := inline(n)
		if text == "" {
			return
		}
		r.breakLines(2)
		r.raw(strings.Repeat("#", level) + " ")
		r.write(text)
		r.breakLines(2)

	case atom.P, atom.Div, atom.Section, atom.Article, atom.Header, atom.Footer, atom.Blockquote, atom.Table:
		r.breakLines(2)
		r.children(n)
		r.breakLines(2)

	case atom.Tr:
		r.breakLines(1)
		r.children(n)
		r.breakLines(1)

	case atom.Td, atom.Th:
		r.write(" ")
		r.children(n)
		r.write(" ")

	case atom.Br:
		r.breakLines(1)

	case atom.Hr:
		r.breakLines(2)
		r.raw("---")
		r.breakLines(2)

	case atom.Strong, atom.B:
		r.wrap(n, "**")

	case atom.Em, atom.I:
		r.wrap(n, "_")

	case atom.Code:
		r.wrap(n, "`")

	case atom.Pre:
		r.breakLines(2)
		r.raw("```\n" + strings.Trim(textContent(n), "\n") + "\n```")
		r.breakLines(2)

	case atom.A:
		text := inline(n)
		href := strings.TrimSpace(attr(n, "href"))
		switch {
		case text == "" && href == "":
		case href == "" || strings.HasPrefix(strings.ToLower(href), "javascript:"):
			r.write(text)
		case text == "":
			r.write("<" + href + ">")
		default:
			r.write("[" + text + "](" + href + ")")
		}

	case atom.Img:
		if src := attr(n, "src"); src != "" {
			r.write("![" + attr(n, "alt") + "](" + src + ")")
		}

	case atom.Ul, atom.Ol:
		r.lists = append(r.lists, listState{ordered: n.DataAtom == atom.Ol})
		if len(r.lists) == 1 {
			r.breakLines(2)
		} else {
			r.breakLines(1)
		}
		r.children(n)
		r.lists = r.lists[:len(r.lists)-1]
		if len(r.lists) == 0 {
			r.breakLines(2)
		} else {
			r.breakLines(1)
		}

	case atom.Li:
		marker := "- "
		depth := len(r.lists)
		if depth > 0 {
			top := &r.lists[depth-1]
			if top.ordered {
				top.n++
				marker = strconv.Itoa(top.n) + ". "
			}
		} else {
			depth = 1
		}
		r.breakLines(1)
		r.raw(strings.Repeat("  ", depth-1) + marker)
		r.lineStart = true
		r.children(n)
		r.breakLines(1)

	default:
		r.children(n)
	}
}

func (r *renderer) wrap(n *html.Node, marker string) {
	text := inline(n)
	if text == "" {
		return
	}
	r.write(marker + text + marker)
}

// inline renders n's children on a single line.
func inline(n *html.Node) string {
	sub := &renderer{}
	sub.children(n)
	return strings.TrimSpace(spaceRun.ReplaceAllString(sub.String(), " "))
}

func textContent(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		if n.Type == html.ElementNode && n.DataAtom == atom.Br {
			b.WriteString("\n")
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}
