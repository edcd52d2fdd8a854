// Package host 定义会话依赖的宿主编辑器效果，并提供占位元素关联逻辑。
package host

import "golang.org/x/net/html"

// Host 是宿主编辑器对会话暴露的全部效果。
//
// 占位元素以 *html.Node 作为句柄：比较的是节点身份而不是内容，
// 两段完全相同的 markup 产生的占位元素也能被区分。
type Host interface {
	// SelectionSnippet 返回当前选中媒体元素的原始 markup；未选中媒体时返回 ""。
	SelectionSnippet() string
	// Placeholders 按文档顺序返回当前所有占位元素。
	Placeholders() []*html.Node
	InsertMarkup(markup string) error
	Select(n *html.Node)
	NotifyError(msg string)
}

// Correlate 返回 after 中第一个不在 before 里的元素（按身份比较）。
// 没有新元素时 ok=false：这是约定的结果，不是错误。
func Correlate[H comparable](before, after []H) (h H, ok bool) {
	seen := make(map[H]struct{}, len(before))
	for _, b := range before {
		seen[b] = struct{}{}
	}
	for _, a := range after {
		if _, dup := seen[a]; dup {
			continue
		}
		return a, true
	}
	return h, false
}

// Insert 插入 markup 并选中由这次插入新产生的占位元素。
//
// 插入前先对占位元素做快照；插入后与快照求差集，取第一个。
// 没有新占位元素时选区保持不变，返回 selected=false。
func Insert(h Host, markup string) (n *html.Node, selected bool, err error) {
	before := h.Placeholders()
	if err := h.InsertMarkup(markup); err != nil {
		return nil, false, err
	}
	n, ok := Correlate(before, h.Placeholders())
	if !ok {
		return nil, false, nil
	}
	h.Select(n)
	return n, true, nil
}
