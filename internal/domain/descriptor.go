package domain

import "github.com/sirupsen/logrus"

// FieldName 是对话框字段名（与表单 name 一一对应）。
type FieldName string

const (
	FieldSource     FieldName = "source"
	FieldAltSource  FieldName = "altsource"
	FieldPoster     FieldName = "poster"
	FieldEmbed      FieldName = "embed"
	FieldDimensions FieldName = "dimensions"
	FieldWidth      FieldName = "width"
	FieldHeight     FieldName = "height"
)

// Descriptor 是媒体对象的规范化扁平描述。
//
// 约束：空串即“缺失”。规范存储中不存在“有这个字段但值为空”的状态，
// 因此 wrap/unwrap 对空串字段不保证往返一致。
type Descriptor struct {
	Source    string `json:"source,omitempty" yaml:"source,omitempty"`
	AltSource string `json:"altsource,omitempty" yaml:"altsource,omitempty"`
	Poster    string `json:"poster,omitempty" yaml:"poster,omitempty"`
	Embed     string `json:"embed,omitempty" yaml:"embed,omitempty"`
	Width     string `json:"width,omitempty" yaml:"width,omitempty"`
	Height    string `json:"height,omitempty" yaml:"height,omitempty"`
}

func (d Descriptor) IsZero() bool { return d == Descriptor{} }

// Get 按字段名取值；未知字段返回空串。
func (d Descriptor) Get(name FieldName) string {
	switch name {
	case FieldSource:
		return d.Source
	case FieldAltSource:
		return d.AltSource
	case FieldPoster:
		return d.Poster
	case FieldEmbed:
		return d.Embed
	case FieldWidth:
		return d.Width
	case FieldHeight:
		return d.Height
	default:
		return ""
	}
}

// Fields 返回用于结构化日志的字段集合（embed 只记录长度，避免刷屏）。
func (d Descriptor) Fields() logrus.Fields {
	f := logrus.Fields{}
	if d.Source != "" {
		f["source"] = d.Source
	}
	if d.AltSource != "" {
		f["altsource"] = d.AltSource
	}
	if d.Poster != "" {
		f["poster"] = d.Poster
	}
	if d.Width != "" || d.Height != "" {
		f["size"] = d.Width + "x" + d.Height
	}
	f["embed_len"] = len(d.Embed)
	return f
}
