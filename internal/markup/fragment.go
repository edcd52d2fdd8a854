package markup

import (
	"bytes"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// ParseFragment 以 <body> 为上下文解析片段，并挂到一个游离的 body 容器下。
//
// 直接用 goquery.NewDocumentFromReader 会补全 html/head/body，
// <script> 开头的片段会被放进 head；按片段解析可以保持原始结构。
func ParseFragment(s string) (*html.Node, error) {
	root := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	nodes, err := html.ParseFragment(strings.NewReader(s), root)
	if err != nil {
		return nil, err
	}
	for _, n := range nodes {
		root.AppendChild(n)
	}
	return root, nil
}

// RenderChildren 把容器下的所有子节点序列化为 HTML（不包含容器本身）。
func RenderChildren(root *html.Node) string {
	var buf bytes.Buffer
	for c := root.FirstChild; c != nil; c = c.NextSibling {
		_ = html.Render(&buf, c)
	}
	return buf.String()
}

// RenderNode 序列化单个节点（outer HTML）。
func RenderNode(n *html.Node) string {
	var buf bytes.Buffer
	_ = html.Render(&buf, n)
	return buf.String()
}
