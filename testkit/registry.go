package testkit

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"
)

// FakeInstance 注册中心中的一个实例
type FakeInstance struct {
	InstanceID  string `json:"instanceId"`
	HostName    string `json:"hostName"`
	HomePageURL string `json:"homePageUrl"`
	VIPAddress  string `json:"vipAddress"`
	Status      string `json:"status"`
}

// AppJSON 生成 Eureka 风格的应用响应正文
//
//	{"application":{"name":"ORDERS","instance":[{...},{...}]}}
func AppJSON(name string, instances ...FakeInstance) string {
	type application struct {
		Name     string         `json:"name"`
		Instance []FakeInstance `json:"instance"`
	}
	body, err := json.Marshal(map[string]application{
		"application": {Name: strings.ToUpper(name), Instance: instances},
	})
	if err != nil {
		panic(fmt.Sprintf("testkit: marshal app: %v", err))
	}
	return string(body)
}

// OKResponse 生成以连接关闭为界的 200 响应
func OKResponse(body string) string {
	return "HTTP/1.1 200 OK\r\nContent-Type: application/json\r\n\r\n" + body
}

// ChunkedResponse 生成 chunked 编码的 200 响应，正文按 size 字节切块
func ChunkedResponse(body string, size int) string {
	if size <= 0 {
		size = len(body)
	}
	var b strings.Builder
	b.WriteString("HTTP/1.1 200 OK\r\nContent-Type: application/json\r\nTransfer-Encoding: chunked\r\n\r\n")
	for len(body) > 0 {
		n := min(size, len(body))
		b.WriteString(strconv.FormatInt(int64(n), 16))
		b.WriteString("\r\n")
		b.WriteString(body[:n])
		b.WriteString("\r\n")
		body = body[n:]
	}
	b.WriteString("0\r\n\r\n")
	return b.String()
}

// StatusResponse 生成没有正文的响应
func StatusResponse(code int, reason string) string {
	return fmt.Sprintf("HTTP/1.1 %d %s\r\n\r\n", code, reason)
}

// FakeRegistry 基于原始 TCP 的注册中心替身
//
// 每个连接读取一个请求，按路径回放预置的原始响应后关闭连接。
// 未配置的路径返回 404。
type FakeRegistry struct {
	ln net.Listener

	mu        sync.Mutex
	responses map[string]string
	hits      map[string]int
	requests  []string
	delay     time.Duration

	wg sync.WaitGroup
}

// NewFakeRegistry 启动一个监听本地随机端口的注册中心替身，测试结束时自动关闭
func NewFakeRegistry(t *testing.T) *FakeRegistry {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("testkit: listen: %v", err)
	}

	f := &FakeRegistry{
		ln:        ln,
		responses: make(map[string]string),
		hits:      make(map[string]int),
	}
	f.wg.Add(1)
	go f.serve()
	t.Cleanup(f.Close)
	return f
}

// Addr 返回 host:port
func (f *FakeRegistry) Addr() string {
	return f.ln.Addr().String()
}

// Handle 为路径设置原始响应
func (f *FakeRegistry) Handle(path, raw string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses[path] = raw
}

// HandleApp 为 /eureka/apps/{vip} 设置包含给定实例的 200 响应
func (f *FakeRegistry) HandleApp(vip string, instances ...FakeInstance) {
	f.Handle("/eureka/apps/"+vip, OKResponse(AppJSON(vip, instances...)))
}

// SetDelay 设置每个响应写出前的等待时间
func (f *FakeRegistry) SetDelay(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.delay = d
}

// Hits 返回路径被请求的次数
func (f *FakeRegistry) Hits(path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.hits[path]
}

// TotalHits 返回收到的请求总数
func (f *FakeRegistry) TotalHits() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

// LastRequest 返回最近一次收到的原始请求头
func (f *FakeRegistry) LastRequest() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.requests) == 0 {
		return ""
	}
	return f.requests[len(f.requests)-1]
}

// Close 停止监听并等待正在处理的连接结束
func (f *FakeRegistry) Close() {
	_ = f.ln.Close()
	f.wg.Wait()
}

func (f *FakeRegistry) serve() {
	defer f.wg.Done()
	for {
		conn, err := f.ln.Accept()
		if err != nil {
			return
		}
		f.wg.Add(1)
		go func() {
			defer f.wg.Done()
			f.handle(conn)
		}()
	}
}

func (f *FakeRegistry) handle(conn net.Conn) {
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(10 * time.Second))

	var req strings.Builder
	r := bufio.NewReader(conn)
	for {
		line, err := r.ReadString('\n')
		req.WriteString(line)
		if err != nil {
			return
		}
		if line == "\r\n" {
			break
		}
	}

	raw := req.String()
	var path string
	if fields := strings.Fields(raw); len(fields) >= 2 {
		path = fields[1]
	}

	f.mu.Lock()
	f.hits[path]++
	f.requests = append(f.requests, raw)
	resp, ok := f.responses[path]
	delay := f.delay
	f.mu.Unlock()

	if !ok {
		resp = StatusResponse(404, "Not Found")
	}
	if delay > 0 {
		time.Sleep(delay)
	}
	_, _ = conn.Write([]byte(resp))
}
