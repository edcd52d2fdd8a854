package dialog

import "github.com/John-Robertt/mediaembed/internal/domain"

// Change 是对话框字段变更事件。集合是封闭的：只有本包内的类型能实现 accept。
type Change interface {
	Field() domain.FieldName
	accept(v changeVisitor)
}

// changeVisitor 每个变体一个方法；新增变体而不处理会编译失败。
type changeVisitor interface {
	sourceChanged(SourceChanged)
	embedChanged(EmbedChanged)
	dimensionsChanged(DimensionsChanged)
	altSourceChanged(AltSourceChanged)
	posterChanged(PosterChanged)
}

type (
	SourceChanged     struct{}
	EmbedChanged      struct{}
	DimensionsChanged struct{}
	AltSourceChanged  struct{}
	PosterChanged     struct{}
)

func (SourceChanged) Field() domain.FieldName     { return domain.FieldSource }
func (EmbedChanged) Field() domain.FieldName      { return domain.FieldEmbed }
func (DimensionsChanged) Field() domain.FieldName { return domain.FieldDimensions }
func (AltSourceChanged) Field() domain.FieldName  { return domain.FieldAltSource }
func (PosterChanged) Field() domain.FieldName     { return domain.FieldPoster }

func (c SourceChanged) accept(v changeVisitor)     { v.sourceChanged(c) }
func (c EmbedChanged) accept(v changeVisitor)      { v.embedChanged(c) }
func (c DimensionsChanged) accept(v changeVisitor) { v.dimensionsChanged(c) }
func (c AltSourceChanged) accept(v changeVisitor)  { v.altSourceChanged(c) }
func (c PosterChanged) accept(v changeVisitor)     { v.posterChanged(c) }

// ChangeFor 把对话框字段名映射为变更事件；未知字段不触发迁移。
func ChangeFor(name domain.FieldName) (Change, bool) {
	switch name {
	case domain.FieldSource:
		return SourceChanged{}, true
	case domain.FieldEmbed:
		return EmbedChanged{}, true
	case domain.FieldDimensions, domain.FieldWidth, domain.FieldHeight:
		return DimensionsChanged{}, true
	case domain.FieldAltSource:
		return AltSourceChanged{}, true
	case domain.FieldPoster:
		return PosterChanged{}, true
	default:
		return nil, false
	}
}
