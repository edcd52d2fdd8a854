package host

import (
	"errors"
	"io"
	"strings"

	"github.com/andybalholm/cascadia"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/John-Robertt/mediaembed/internal/markup"
)

const (
	// PlaceholderAttr 是占位元素的保留标记属性，值为媒体类型（video/audio/iframe…）。
	PlaceholderAttr = "data-mce-object"
	// PlaceholderHTMLAttr 保存被占位元素替换掉的原始 markup。
	PlaceholderHTMLAttr = "data-mce-html"
)

var (
	placeholderSel = cascadia.MustCompile("img[" + PlaceholderAttr + "]")
	// 外部托管的 embed 容器不替换为占位，但同样作为媒体句柄参与关联。
	mediaSel = cascadia.MustCompile("img[" + PlaceholderAttr + "], [" + markup.EmbedIRIAttr + "]")
	// 宿主只把这些元素替换为占位；<script> 视频由 markup 层识别，宿主原样保留。
	convertSel = cascadia.MustCompile("video, audio, iframe, object, embed")
)

var _ Host = (*Document)(nil)

// Document 是基于 x/net/html 的内存宿主文档：
// 加载时把媒体元素替换为占位 <img>，序列化时还原。
type Document struct {
	root     *html.Node
	body     *html.Node
	selected *html.Node
	notices  []string

	Log *logrus.Entry
}

// Load 解析完整 HTML 文档。
func Load(r io.Reader) (*Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, err
	}
	body := findBody(root)
	if body == nil {
		return nil, errors.New("文档缺少 <body>")
	}
	toPlaceholders(body)
	return &Document{root: root, body: body, Log: logrus.NewEntry(logrus.StandardLogger())}, nil
}

// LoadString 是 Load 的便捷形式。
func LoadString(s string) (*Document, error) {
	return Load(strings.NewReader(s))
}

func (d *Document) Placeholders() []*html.Node {
	return mediaSel.MatchAll(d.body)
}

// SelectPlaceholder 选中第 i 个（从 0 开始）占位元素。
func (d *Document) SelectPlaceholder(i int) bool {
	ps := d.Placeholders()
	if i < 0 || i >= len(ps) {
		return false
	}
	d.selected = ps[i]
	return true
}

func (d *Document) Select(n *html.Node) { d.selected = n }

func (d *Document) Selected() *html.Node { return d.selected }

func (d *Document) SelectionSnippet() string {
	n := d.selected
	if n == nil || !attached(n, d.body) || n.Type != html.ElementNode {
		return ""
	}
	if hasAttr(n, PlaceholderAttr) {
		return getAttr(n, PlaceholderHTMLAttr)
	}
	if hasAttr(n, markup.EmbedIRIAttr) {
		return markup.RenderNode(n)
	}
	return ""
}

// InsertMarkup 把片段插入到选区位置：
// - 选中的是媒体元素：替换它（编辑已有媒体）
// - 选中的是其它元素：插入到其后
// - 无选区：追加到 body 末尾
func (d *Document) InsertMarkup(s string) error {
	frag, err := markup.ParseFragment(s)
	if err != nil {
		return err
	}
	toPlaceholders(frag)

	var nodes []*html.Node
	for c := frag.FirstChild; c != nil; c = c.NextSibling {
		nodes = append(nodes, c)
	}
	for _, n := range nodes {
		frag.RemoveChild(n)
	}

	sel := d.selected
	if sel == nil || sel.Parent == nil || !attached(sel, d.body) {
		for _, n := range nodes {
			d.body.AppendChild(n)
		}
		return nil
	}

	parent := sel.Parent
	next := sel.NextSibling
	for _, n := range nodes {
		parent.InsertBefore(n, next)
	}
	if isMedia(sel) {
		parent.RemoveChild(sel)
		d.selected = nil
	}
	return nil
}

func (d *Document) NotifyError(msg string) {
	d.notices = append(d.notices, msg)
	if d.Log != nil {
		d.Log.WithField("notice", msg).Warn("editor notification")
	}
}

func (d *Document) Notices() []string {
	return append([]string(nil), d.notices...)
}

// HTML 序列化整个文档，占位元素还原为原始 markup。
func (d *Document) HTML() (string, error) {
	var b strings.Builder
	if err := d.Render(&b); err != nil {
		return "", err
	}
	return b.String(), nil
}

func (d *Document) Render(w io.Writer) error {
	out := clone(d.root)
	for _, p := range placeholderSel.MatchAll(out) {
		frag, err := markup.ParseFragment(getAttr(p, PlaceholderHTMLAttr))
		if err != nil {
			return err
		}
		for c := frag.FirstChild; c != nil; {
			next := c.NextSibling
			frag.RemoveChild(c)
			p.Parent.InsertBefore(c, p)
			c = next
		}
		p.Parent.RemoveChild(p)
	}
	return html.Render(w, out)
}

// toPlaceholders 把 root 下的媒体元素替换为占位 <img>。
// 嵌套媒体（object 内的 embed）随外层一起被替换；外部托管的 embed 容器保持原样。
func toPlaceholders(root *html.Node) {
	for _, n := range convertSel.MatchAll(root) {
		if !attached(n, root) || insideEmbedIRI(n, root) {
			continue
		}
		p := &html.Node{
			Type:     html.ElementNode,
			Data:     "img",
			DataAtom: atom.Img,
			Attr: []html.Attribute{
				{Key: PlaceholderAttr, Val: n.Data},
				{Key: PlaceholderHTMLAttr, Val: markup.RenderNode(n)},
				{Key: "class", Val: "mce-object mce-object-" + n.Data},
			},
		}
		for _, k := range []string{"width", "height"} {
			if v := getAttr(n, k); v != "" {
				p.Attr = append(p.Attr, html.Attribute{Key: k, Val: v})
			}
		}
		n.Parent.InsertBefore(p, n)
		n.Parent.RemoveChild(n)
	}
}

func isMedia(n *html.Node) bool {
	return hasAttr(n, PlaceholderAttr) || hasAttr(n, markup.EmbedIRIAttr)
}

func insideEmbedIRI(n, root *html.Node) bool {
	for p := n.Parent; p != nil && p != root; p = p.Parent {
		if hasAttr(p, markup.EmbedIRIAttr) {
			return true
		}
	}
	return false
}

func attached(n, root *html.Node) bool {
	for p := n; p != nil; p = p.Parent {
		if p == root {
			return true
		}
	}
	return false
}

func findBody(n *html.Node) *html.Node {
	if n.Type == html.ElementNode && n.DataAtom == atom.Body {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if b := findBody(c); b != nil {
			return b
		}
	}
	return nil
}

func clone(n *html.Node) *html.Node {
	out := &html.Node{
		Type:      n.Type,
		DataAtom:  n.DataAtom,
		Data:      n.Data,
		Namespace: n.Namespace,
		Attr:      append([]html.Attribute(nil), n.Attr...),
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		out.AppendChild(clone(c))
	}
	return out
}

func hasAttr(n *html.Node, key string) bool {
	for _, a := range n.Attr {
		if a.Key == key {
			return true
		}
	}
	return false
}

func getAttr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}
