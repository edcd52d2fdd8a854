// Package form 负责 Descriptor 与对话框字段形态之间的双向映射。
package form

import "github.com/John-Robertt/mediaembed/internal/domain"

// Wrap 把扁平 Descriptor 包装为对话框形态。
//
// - URL 字段总是输出，缺失时 Value 为 ""（对话框总有可显示的值）
// - width/height 只有在 Descriptor 提供时才写入 dimensions
func Wrap(d domain.Descriptor) domain.Fields {
	embed := d.Embed
	f := domain.Fields{
		Source:    &domain.URLField{Value: d.Source},
		AltSource: &domain.URLField{Value: d.AltSource},
		Poster:    &domain.URLField{Value: d.Poster},
		Embed:     &embed,
	}
	if d.Width != "" || d.Height != "" {
		f.Dimensions = &domain.Dimensions{Width: d.Width, Height: d.Height}
	}
	return f
}

// Unwrap 是 Wrap 的近似逆映射。
//
// focus 可选：指定本次触发的 URL 字段，其 Meta 作为元数据旁路。
// 每个字段的取值优先级：元数据非空 > 字段值非空 > 缺失。
// 对话框中不存在的字段不会出现在结果里。
func Unwrap(f domain.Fields, focus ...domain.FieldName) domain.Descriptor {
	meta := focusMeta(f, focus)

	var d domain.Descriptor
	d.Source = pickURL(f.Source, meta, domain.FieldSource)
	d.AltSource = pickURL(f.AltSource, meta, domain.FieldAltSource)
	d.Poster = pickURL(f.Poster, meta, domain.FieldPoster)
	if f.Embed != nil {
		d.Embed = first(meta[string(domain.FieldEmbed)], *f.Embed)
	}
	if f.Dimensions != nil {
		d.Width = first(meta[string(domain.FieldWidth)], f.Dimensions.Width)
		d.Height = first(meta[string(domain.FieldHeight)], f.Dimensions.Height)
	}
	return d
}

func focusMeta(f domain.Fields, focus []domain.FieldName) map[string]string {
	if len(focus) == 0 {
		return nil
	}
	u := f.URL(focus[0])
	if u == nil {
		return nil
	}
	return u.Meta
}

func pickURL(u *domain.URLField, meta map[string]string, name domain.FieldName) string {
	if u == nil {
		return ""
	}
	return first(meta[string(name)], u.Value)
}

func first(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
