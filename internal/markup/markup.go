// Package markup 实现 embed 片段与 Descriptor 之间的纯函数转换。
//
// 约束：
// - Parse 尽力而为：未知/畸形片段只返回能识别的字段，从不报错
// - Generate 在已有片段上打补丁而不是重建；Generate(d, Generate(d, s)) == Generate(d, s)
package markup

import (
	"fmt"
	"html"
	"strings"

	"github.com/PuerkitoBio/goquery"
	nethtml "golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/John-Robertt/mediaembed/internal/domain"
)

const (
	defaultVideoWidth  = 300
	defaultVideoHeight = 150
)

// MediaSelector 匹配可被识别为媒体对象的元素。
const MediaSelector = "video, audio, iframe, object, embed, script"

// EmbedIRIAttr 标记由外部嵌入服务管理的容器；其内容不做补丁。
const EmbedIRIAttr = "data-ephox-embed-iri"

// Oracle 是 Parse/Generate 的默认实现。Scripts 为空时不识别 <script> 视频。
type Oracle struct {
	Scripts []VideoScript
}

// Parse 从片段中提取 Descriptor（不包含 Embed 字段本身）。
func (o Oracle) Parse(snippet string) domain.Descriptor {
	if strings.TrimSpace(snippet) == "" {
		return domain.Descriptor{}
	}
	root, err := ParseFragment(snippet)
	if err != nil {
		return domain.Descriptor{}
	}
	doc := goquery.NewDocumentFromNode(root)

	if iri := doc.Find("[" + EmbedIRIAttr + "]").First(); iri.Length() > 0 {
		return domain.Descriptor{Source: strings.TrimSpace(iri.AttrOr(EmbedIRIAttr, ""))}
	}

	el, ok := o.findMedia(doc.Selection)
	if !ok {
		return domain.Descriptor{}
	}

	var d domain.Descriptor
	switch goquery.NodeName(el) {
	case "video", "audio":
		slots := sourceSlots(el)
		if len(slots) > 0 {
			d.Source = slots[0]
		}
		if len(slots) > 1 {
			d.AltSource = slots[1]
		}
		if goquery.NodeName(el) == "video" {
			d.Poster = attr(el, "poster")
		}
	case "iframe", "embed":
		d.Source = attr(el, "src")
	case "object":
		d.Source = attr(el, "data")
		if d.Source == "" {
			d.Source = attr(el.Find("param[name=src], param[name=movie]").First(), "value")
		}
	case "script":
		d.Source = attr(el, "src")
		if s, ok := o.matchScript(d.Source); ok {
			d.Width, d.Height = itoa(s.Width), itoa(s.Height)
		}
		return d
	}
	d.Width = attr(el, "width")
	d.Height = attr(el, "height")
	return d
}

// Generate 用 d 更新 prev；prev 为空时先按 d.Source 生成模板再走同一条补丁路径。
//
// 补丁只写入 d 中非空的字段，不删除已有属性：清空对话框里的某一项不会抹掉片段中的对应属性。
func (o Oracle) Generate(d domain.Descriptor, prev string) string {
	snippet := strings.TrimSpace(prev)
	if snippet == "" {
		snippet = o.template(d)
	}
	if snippet == "" {
		return ""
	}
	root, err := ParseFragment(snippet)
	if err != nil {
		return prev
	}
	o.patch(goquery.NewDocumentFromNode(root).Selection, d)
	return RenderChildren(root)
}

func (o Oracle) patch(doc *goquery.Selection, d domain.Descriptor) {
	if doc.Find("["+EmbedIRIAttr+"]").Length() > 0 {
		return
	}
	el, ok := o.findMedia(doc)
	if !ok {
		return
	}

	switch goquery.NodeName(el) {
	case "video", "audio":
		patchSources(el, d)
		if goquery.NodeName(el) == "video" {
			setAttr(el, "poster", d.Poster)
		}
	case "iframe":
		src := d.Source
		if u, _, ok := embedURL(src); ok {
			src = u
		}
		setAttr(el, "src", src)
	case "embed":
		setAttr(el, "src", d.Source)
	case "object":
		setAttr(el, "data", d.Source)
	case "script":
		setAttr(el, "src", d.Source)
		return
	}
	setAttr(el, "width", d.Width)
	setAttr(el, "height", d.Height)
}

// template 对应“从零生成”：按 URL 类型选择 script/iframe/audio/video。
func (o Oracle) template(d domain.Descriptor) string {
	src := strings.TrimSpace(d.Source)
	if src == "" {
		return ""
	}
	esc := html.EscapeString

	if _, ok := o.matchScript(src); ok {
		return fmt.Sprintf(`<script src="%s" type="text/javascript"></script>`, esc(src))
	}
	if u, p, ok := embedURL(src); ok {
		return fmt.Sprintf(`<iframe src="%s" width="%s" height="%s" allowfullscreen="allowfullscreen"></iframe>`,
			esc(u), esc(or(d.Width, p.width)), esc(or(d.Height, p.height)))
	}
	if mediaKind(src) == "audio" {
		return fmt.Sprintf(`<audio controls="controls"><source src="%s"/></audio>`, esc(src))
	}
	return fmt.Sprintf(`<video width="%s" height="%s" controls="controls"><source src="%s"/></video>`,
		esc(or(d.Width, itoa(defaultVideoWidth))), esc(or(d.Height, itoa(defaultVideoHeight))), esc(src))
}

// findMedia 返回文档顺序上第一个媒体元素；<script> 只有命中 media script 时才算。
func (o Oracle) findMedia(doc *goquery.Selection) (*goquery.Selection, bool) {
	var found *goquery.Selection
	doc.Find(MediaSelector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if goquery.NodeName(s) == "script" {
			if _, ok := o.matchScript(attr(s, "src")); !ok {
				return true
			}
		}
		found = s
		return false
	})
	return found, found != nil
}

// sourceSlots 按位置列出 video/audio 的来源：
// 有 src 属性（或没有 <source> 子元素）时 src 占第一位，其后依次是 <source>。
func sourceSlots(el *goquery.Selection) []string {
	var slots []string
	sources := el.ChildrenFiltered("source")
	if src, ok := el.Attr("src"); ok || sources.Length() == 0 {
		slots = append(slots, strings.TrimSpace(src))
	}
	sources.Each(func(_ int, s *goquery.Selection) {
		slots = append(slots, attr(s, "src"))
	})
	return slots
}

func patchSources(el *goquery.Selection, d domain.Descriptor) {
	sources := el.ChildrenFiltered("source")
	var alt *goquery.Selection
	if _, ok := el.Attr("src"); ok || sources.Length() == 0 {
		setAttr(el, "src", d.Source)
		alt = sources.Eq(0)
	} else {
		setAttr(sources.Eq(0), "src", d.Source)
		alt = sources.Eq(1)
	}

	if d.AltSource == "" {
		return
	}
	if alt.Length() > 0 {
		alt.SetAttr("src", d.AltSource)
		return
	}
	el.AppendNodes(&nethtml.Node{
		Type:     nethtml.ElementNode,
		Data:     "source",
		DataAtom: atom.Source,
		Attr:     []nethtml.Attribute{{Key: "src", Val: d.AltSource}},
	})
}

func setAttr(s *goquery.Selection, name, val string) {
	if val == "" || s.Length() == 0 {
		return
	}
	s.SetAttr(name, val)
}

func attr(s *goquery.Selection, name string) string {
	return strings.TrimSpace(s.AttrOr(name, ""))
}

func or(v, def string) string {
	if v != "" {
		return v
	}
	return def
}
