package lookup

import (
	"context"

	"github.com/John-Robertt/mediaembed/internal/domain"
	"github.com/John-Robertt/mediaembed/internal/markup"
)

// Local 在本地由 markup 模板生成 embed，不访问网络。
// 生成时忽略 d.Embed：查询结果只取决于 source 与尺寸等字段。
type Local struct {
	Oracle markup.Oracle
}

func (Local) Name() string { return "local" }

func (l Local) Resolve(ctx context.Context, d domain.Descriptor) (domain.Response, error) {
	if err := ctx.Err(); err != nil {
		return domain.Response{}, err
	}
	return domain.Response{URL: d.Source, HTML: l.Oracle.Generate(d, "")}, nil
}
