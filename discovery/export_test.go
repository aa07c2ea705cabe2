package discovery

import "time"

// SetClock 替换缓存使用的时钟
func SetClock(c Client, now func() time.Time) {
	c.(*appCache).now = now
}
