package main

import (
	"fmt"

	"github.com/John-Robertt/mediaembed/internal/domain"
)

// scriptDialog 是内存中的对话框：脚本直接修改字段，会话通过 Data/SetData 读写。
type scriptDialog struct {
	data   domain.Fields
	closed bool
}

func (d *scriptDialog) Data() domain.Fields      { return d.data.Clone() }
func (d *scriptDialog) SetData(f domain.Fields) { d.data = f.Clone() }
func (d *scriptDialog) Close()                  { d.closed = true }

// set 写入一个字段。对话框没有渲染的字段不能写入。
func (d *scriptDialog) set(name domain.FieldName, v string) error {
	switch name {
	case domain.FieldSource, domain.FieldAltSource, domain.FieldPoster:
		u := d.data.URL(name)
		if u == nil {
			return fmt.Errorf("对话框没有 %s 字段", name)
		}
		u.Value = v
	case domain.FieldEmbed:
		d.data.Embed = &v
	case domain.FieldWidth, domain.FieldHeight:
		if d.data.Dimensions == nil {
			return fmt.Errorf("对话框没有 dimensions 字段")
		}
		if name == domain.FieldWidth {
			d.data.Dimensions.Width = v
		} else {
			d.data.Dimensions.Height = v
		}
	default:
		return fmt.Errorf("未知字段 %q", name)
	}
	return nil
}

func (d *scriptDialog) setMeta(name domain.FieldName, meta map[string]string) error {
	u := d.data.URL(name)
	if u == nil {
		return fmt.Errorf("对话框没有 %s 字段", name)
	}
	u.Meta = make(map[string]string, len(meta))
	for k, v := range meta {
		u.Meta[k] = v
	}
	return nil
}
