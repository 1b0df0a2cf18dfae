package metrics

import (
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 指标端点在后台启动；调用方必须能立即继续执行后续启动步骤。
func TestExposeHTTPReturnsImmediately(t *testing.T) {
	const port = 19184
	m := New("exposetest")

	done := make(chan struct{})
	go func() {
		m.ExposeHTTP(port)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("ExposeHTTP blocked the caller")
	}

	// 端点确实在后台服务
	var resp *http.Response
	var err error
	url := fmt.Sprintf("http://127.0.0.1:%d/metrics", port)
	for i := 0; i < 20; i++ {
		resp, err = http.Get(url)
		if err == nil {
			break
		}
		time.Sleep(50 * time.Millisecond)
	}
	require.NoError(t, err, "metrics endpoint not serving")
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
