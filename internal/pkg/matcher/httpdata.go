package matcher

import (
	"strings"

	"github.com/tidwall/gjson"
)

// Signals 一个服务可供指纹匹配的三段文本, 空串表示没有该信号
type Signals struct {
	Banner  string
	HTML    string
	Headers string
}

// NewSignals 由服务的 banner 和 http_data 构造匹配信号
func NewSignals(banner, httpData *string) Signals {
	var s Signals
	if banner != nil {
		s.Banner = *banner
	}
	if httpData != nil {
		s.HTML, s.Headers = ParseHTTPData(*httpData)
	}
	return s
}

// Text 返回指定匹配类型对应的文本
func (s Signals) Text(kind MatchKind) (string, bool) {
	var text string
	switch kind {
	case KindBanner:
		text = s.Banner
	case KindHTML:
		text = s.HTML
	case KindHTTPHeader:
		text = s.Headers
	}
	return text, text != ""
}

// ParseHTTPData 从 http_data 中取出 html 和拼接后的响应头
//   - JSON 对象: html 取字符串字段; headers 为对象时按文档顺序拼成 "Key: Value\r\n", 为字符串时原样使用
//   - 不是合法 JSON 对象(损坏数据, 纯文本, 数组等): 视为缺失, 无信号
//
// 字段类型不符只丢弃该字段, 不报错
func ParseHTTPData(blob string) (html, headers string) {
	trimmed := strings.TrimSpace(blob)
	if trimmed == "" || !gjson.Valid(trimmed) {
		return "", ""
	}

	doc := gjson.Parse(trimmed)
	if !doc.IsObject() {
		return "", ""
	}

	if h := doc.Get("html"); h.Type == gjson.String {
		html = h.Str
	}

	hdr := doc.Get("headers")
	switch {
	case hdr.IsObject():
		var b strings.Builder
		hdr.ForEach(func(key, value gjson.Result) bool {
			b.WriteString(key.String())
			b.WriteString(": ")
			b.WriteString(value.String())
			b.WriteString("\r\n")
			return true
		})
		headers = b.String()
	case hdr.Type == gjson.String:
		headers = hdr.Str
	}

	return html, headers
}
