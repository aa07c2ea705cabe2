package wire

import (
	"bytes"
	"strconv"
	"strings"

	"github.com/ceyewan/eureka/xerrors"
)

// StatusCodeKey Header 中保存状态码的合成字段
const StatusCodeKey = "status-code"

var (
	crlf     = []byte("\r\n")
	crlfcrlf = []byte("\r\n\r\n")
)

// ErrMalformed 原始响应无法解析，匹配 xerrors.ErrMalformed
var ErrMalformed = xerrors.Wrap(xerrors.ErrMalformed, "malformed http response")

func malformed(format string, args ...any) error {
	return xerrors.Wrapf(ErrMalformed, format, args...)
}

// Header 头部映射，名称统一为小写
type Header map[string]string

// Get 按名称（不区分大小写）读取头部
func (h Header) Get(name string) string {
	return h[strings.ToLower(name)]
}

// Response 解码后的响应
type Response struct {
	StatusCode int
	Header     Header
	Body       []byte
}

// Decode 解析原始响应
//
// 头部与正文以第一个 CRLFCRLF 分隔；存在 "Transfer-Encoding: chunked" 时
// 重组分块，否则剩余字节原样作为正文。
func Decode(raw []byte) (*Response, error) {
	idx := bytes.Index(raw, crlfcrlf)
	if idx < 0 {
		return nil, malformed("header terminator not found")
	}
	head, rest := raw[:idx], raw[idx+len(crlfcrlf):]

	lines := strings.Split(string(head), "\r\n")
	fields := strings.Fields(lines[0])
	if len(fields) < 2 {
		return nil, malformed("invalid status line %q", lines[0])
	}
	code, err := strconv.Atoi(fields[1])
	if err != nil {
		return nil, malformed("invalid status code %q", fields[1])
	}

	header := make(Header, len(lines))
	header[StatusCodeKey] = fields[1]
	for _, line := range lines[1:] {
		name, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		header[strings.ToLower(name)] = strings.TrimPrefix(value, " ")
	}

	body := rest
	if isChunked(header.Get("Transfer-Encoding")) {
		if body, err = Dechunk(rest); err != nil {
			return nil, err
		}
	}

	return &Response{StatusCode: code, Header: header, Body: body}, nil
}

// isChunked chunked 必须是最后一个传输编码
func isChunked(te string) bool {
	if te == "" {
		return false
	}
	codings := strings.Split(te, ",")
	return strings.EqualFold(strings.TrimSpace(codings[len(codings)-1]), "chunked")
}

// Dechunk 重组 chunked 编码的正文
//
// 每个分块为 "<hex-size>[;ext]\r\n<data>\r\n"，大小为 0 的分块结束正文，
// 之后的 trailer 被忽略。
func Dechunk(data []byte) ([]byte, error) {
	out := make([]byte, 0, len(data))
	for {
		i := bytes.Index(data, crlf)
		if i < 0 {
			return nil, malformed("chunk size line not terminated")
		}
		sizeText := data[:i]
		if j := bytes.IndexByte(sizeText, ';'); j >= 0 {
			sizeText = sizeText[:j]
		}
		size, err := strconv.ParseUint(strings.TrimSpace(string(sizeText)), 16, 62)
		if err != nil {
			return nil, malformed("invalid chunk size %q", data[:i])
		}
		data = data[i+len(crlf):]
		if size == 0 {
			return out, nil
		}

		if uint64(len(data)) < size+uint64(len(crlf)) {
			return nil, malformed("truncated chunk: want %d bytes, have %d", size, len(data))
		}
		out = append(out, data[:size]...)
		if !bytes.Equal(data[size:size+uint64(len(crlf))], crlf) {
			return nil, malformed("chunk data not terminated by CRLF")
		}
		data = data[size+uint64(len(crlf)):]
	}
}
