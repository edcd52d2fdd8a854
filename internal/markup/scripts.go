package markup

import (
	"regexp"
	"strconv"

	"github.com/pkg/errors"
)

// VideoScript 描述一种以 <script src> 形式嵌入的视频（对应 media_scripts 配置）。
type VideoScript struct {
	Filter *regexp.Regexp
	Width  int
	Height int
}

// NewVideoScript 编译 filter；width/height 为 0 时使用默认 300x150。
func NewVideoScript(filter string, width, height int) (VideoScript, error) {
	re, err := regexp.Compile(filter)
	if err != nil {
		return VideoScript{}, errors.Wrapf(err, "media script filter 无效：%q", filter)
	}
	if width <= 0 {
		width = defaultVideoWidth
	}
	if height <= 0 {
		height = defaultVideoHeight
	}
	return VideoScript{Filter: re, Width: width, Height: height}, nil
}

func (o Oracle) matchScript(src string) (VideoScript, bool) {
	if src == "" {
		return VideoScript{}, false
	}
	for _, s := range o.Scripts {
		if s.Filter != nil && s.Filter.MatchString(src) {
			return s, true
		}
	}
	return VideoScript{}, false
}

func itoa(n int) string { return strconv.Itoa(n) }
