package discovery

import (
	"math/rand/v2"
	"sync"
)

// Status 实例健康状态，取值与注册中心返回的字符串一致（区分大小写）
type Status string

const (
	StatusUp           Status = "UP"
	StatusDown         Status = "DOWN"
	StatusStarting     Status = "STARTING"
	StatusOutOfService Status = "OUT_OF_SERVICE"
	StatusUnknown      Status = "UNKNOWN"
)

// ParseStatus 解析注册中心返回的状态字符串
func ParseStatus(s string) (Status, bool) {
	switch st := Status(s); st {
	case StatusUp, StatusDown, StatusStarting, StatusOutOfService, StatusUnknown:
		return st, true
	}
	return "", false
}

func (s Status) String() string {
	return string(s)
}

// Instance 一个具体的服务端点
type Instance struct {
	Status Status `json:"status"`
	URL    string `json:"url"`
}

// App 某个 vip 在一次成功查询时的实例列表
//
// App 创建后不再修改，新的查询结果会产生新的 App。
// 零个实例表示"已知为空"，与查询失败（nil）不同。
type App struct {
	instances []Instance
}

// NewApp 按给定顺序创建 App
func NewApp(instances ...Instance) *App {
	return &App{instances: append([]Instance(nil), instances...)}
}

// Instances 返回实例列表的副本
func (a *App) Instances() []Instance {
	if a == nil {
		return nil
	}
	return append([]Instance(nil), a.instances...)
}

// Len 返回实例数量
func (a *App) Len() int {
	if a == nil {
		return 0
	}
	return len(a.instances)
}

// GetNextAppInstance 随机选择一个 UP 状态的实例，没有时返回 nil
//
// 每次调用都对实例副本做一次 Fisher–Yates 洗牌，然后返回第一个 UP 实例。
func (a *App) GetNextAppInstance() *Instance {
	if a == nil || len(a.instances) == 0 {
		return nil
	}
	shuffled := append([]Instance(nil), a.instances...)
	shuffle(shuffled)
	for i := range shuffled {
		if shuffled[i].Status == StatusUp {
			inst := shuffled[i]
			return &inst
		}
	}
	return nil
}

func shuffle(instances []Instance) {
	for n := len(instances); n >= 2; n-- {
		j := random.IntN(n)
		instances[n-1], instances[j] = instances[j], instances[n-1]
	}
}

// lockedRand 并发安全的随机数生成器
type lockedRand struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

func (r *lockedRand) IntN(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rnd.IntN(n)
}

var random = &lockedRand{rnd: rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))}

// setRandSource 替换随机源，返回恢复函数
func setRandSource(src rand.Source) func() {
	random.mu.Lock()
	prev := random.rnd
	random.rnd = rand.New(src)
	random.mu.Unlock()
	return func() {
		random.mu.Lock()
		random.rnd = prev
		random.mu.Unlock()
	}
}
