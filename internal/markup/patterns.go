package markup

import (
	"path"
	"regexp"
	"strings"
)

// urlPattern 把站点的“观看页 URL”转换为可嵌入的 iframe URL。
//
// 约束：转换结果不能再被任何 pattern 命中，否则 Generate 不再幂等。
type urlPattern struct {
	re     *regexp.Regexp
	tmpl   string
	width  string
	height string
}

var urlPatterns = []urlPattern{
	{
		re:     regexp.MustCompile(`youtu\.be/([\w\-_?&=.]+)`),
		tmpl:   "https://www.youtube.com/embed/$1",
		width:  "560",
		height: "314",
	},
	{
		re:     regexp.MustCompile(`youtube\.com(.+)[?&]v=([^&]+)(&([a-z0-9&=\-_]+))?`),
		tmpl:   "https://www.youtube.com/embed/$2?$4",
		width:  "560",
		height: "314",
	},
	{
		re:     regexp.MustCompile(`vimeo\.com/([0-9]+)$`),
		tmpl:   "https://player.vimeo.com/video/$1?title=0&byline=0&portrait=0&color=8dc7dc",
		width:  "425",
		height: "350",
	},
	{
		re:     regexp.MustCompile(`(?:www\.)?dailymotion\.com/video/([^_/?]+)`),
		tmpl:   "https://www.dailymotion.com/embed/video/$1",
		width:  "480",
		height: "270",
	},
}

// embedURL 返回 src 对应的 iframe URL；不命中任何 pattern 时 ok=false。
func embedURL(src string) (u string, p urlPattern, ok bool) {
	for _, p := range urlPatterns {
		m := p.re.FindStringSubmatchIndex(src)
		if m == nil {
			continue
		}
		out := p.re.ExpandString(nil, p.tmpl, src, m)
		return strings.TrimSuffix(string(out), "?"), p, true
	}
	return "", urlPattern{}, false
}

// mediaKind 按扩展名判断媒体类型；无法判断时按 video 处理。
func mediaKind(src string) string {
	s := src
	if i := strings.IndexAny(s, "?#"); i >= 0 {
		s = s[:i]
	}
	switch strings.ToLower(path.Ext(s)) {
	case ".mp3", ".wav", ".m4a", ".aac", ".flac", ".oga":
		return "audio"
	default:
		return "video"
	}
}
