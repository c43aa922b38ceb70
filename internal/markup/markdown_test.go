package markup

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConvert(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "   ", ""},
		{"plain text", "  just   some\n text ", "just some text"},
		{"paragraphs and bold", "<p>Hello <b>world</b></p><p>Second</p>", "Hello **world**\n\nSecond"},
		{"heading", "<h2>What's new</h2><p>Details</p>", "## What's new\n\nDetails"},
		{"line break", "line one<br>line two", "line one\nline two"},
		{"emphasis and code", "Use <em>this</em> with <code>--flag</code>", "Use _this_ with `--flag`"},
		{"link", `See <a href="https://example.com/x">the docs</a>.`, "See [the docs](https://example.com/x)."},
		{"script dropped", "<p>Keep</p><script>alert(1)</script><style>p{}</style>", "Keep"},
		{"entities", "Fish &amp; chips &lt;3", "Fish & chips <3"},
		{"unordered list", "<ul><li>One</li><li>Two</li></ul>", "- One\n- Two"},
		{"nested ordered list", "<ol><li>A<ul><li>B</li></ul></li><li>C</li></ol>", "1. A\n  - B\n2. C"},
		{"pre", "<pre>a  b\n  c</pre>", "```\na  b\n  c\n```"},
		{"javascript link", `<a href="javascript:void(0)">click</a>`, "click"},
	}
	c := New()
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := c.Convert(tc.in)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestConvert_ListAfterParagraph(t *testing.T) {
	got, err := New().Convert("<p>Changes:</p><ul><li>First</li><li>Second</li></ul><p>Done</p>")
	require.NoError(t, err)
	assert.Equal(t, "Changes:\n\n- First\n- Second\n\nDone", got)
}
