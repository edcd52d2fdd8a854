package form

import "github.com/John-Robertt/mediaembed/internal/domain"

// Layout 描述对话框实际渲染了哪些可选输入。
// source 与 embed 总是存在；其余由配置开关控制（默认全部开启）。
type Layout struct {
	AltSource  bool
	Poster     bool
	Dimensions bool
}

// FullLayout 是默认布局：所有可选输入都渲染。
func FullLayout() Layout {
	return Layout{AltSource: true, Poster: true, Dimensions: true}
}

// Filter 去掉对话框没有渲染的字段。
// 被去掉的字段在 unwrap 时视为不存在，元数据也不会回填它们。
func (l Layout) Filter(f domain.Fields) domain.Fields {
	out := f.Clone()
	if !l.AltSource {
		out.AltSource = nil
	}
	if !l.Poster {
		out.Poster = nil
	}
	if !l.Dimensions {
		out.Dimensions = nil
	} else if out.Dimensions == nil {
		// sizeinput 总会渲染，只是可能为空。
		out.Dimensions = &domain.Dimensions{}
	}
	return out
}
