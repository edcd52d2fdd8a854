package domain

// URLField 是 URL 类字段在对话框中的形态：值 + 元数据旁路。
// Meta 由文件选择器/查询服务附加（例如发现的 width/height）。
type URLField struct {
	Value string            `json:"value" yaml:"value"`
	Meta  map[string]string `json:"meta,omitempty" yaml:"meta,omitempty"`
}

type Dimensions struct {
	Width  string `json:"width,omitempty" yaml:"width,omitempty"`
	Height string `json:"height,omitempty" yaml:"height,omitempty"`
}

// Fields 是对话框侧的数据形态。
//
// nil 表示“对话框中不存在该字段”；unwrap 只输出存在的字段。
type Fields struct {
	Source     *URLField   `json:"source,omitempty" yaml:"source,omitempty"`
	AltSource  *URLField   `json:"altsource,omitempty" yaml:"altsource,omitempty"`
	Poster     *URLField   `json:"poster,omitempty" yaml:"poster,omitempty"`
	Embed      *string     `json:"embed,omitempty" yaml:"embed,omitempty"`
	Dimensions *Dimensions `json:"dimensions,omitempty" yaml:"dimensions,omitempty"`
}

// URL 返回 URL 类字段；name 不是 URL 字段时返回 nil。
func (f Fields) URL(name FieldName) *URLField {
	switch name {
	case FieldSource:
		return f.Source
	case FieldAltSource:
		return f.AltSource
	case FieldPoster:
		return f.Poster
	default:
		return nil
	}
}

// Clone 深拷贝，避免对话框与会话共享同一份 map/指针。
func (f Fields) Clone() Fields {
	out := Fields{
		Source:    f.Source.clone(),
		AltSource: f.AltSource.clone(),
		Poster:    f.Poster.clone(),
	}
	if f.Embed != nil {
		s := *f.Embed
		out.Embed = &s
	}
	if f.Dimensions != nil {
		d := *f.Dimensions
		out.Dimensions = &d
	}
	return out
}

func (u *URLField) clone() *URLField {
	if u == nil {
		return nil
	}
	out := &URLField{Value: u.Value}
	if u.Meta != nil {
		out.Meta = make(map[string]string, len(u.Meta))
		for k, v := range u.Meta {
			out.Meta[k] = v
		}
	}
	return out
}
