package domain

// Response 是查询服务对某个 source URL 给出的权威 embed 结果。
type Response struct {
	URL  string `json:"url"`
	HTML string `json:"html"`
}
