package render

import (
	"fmt"
	"net/http"
	"sync"

	"github.com/chromedp/cdproto/network"
)

// responseMeta captures the main document's HTTP response metadata the
// first time it's observed on a tab, mirroring
// internal/crawler/renderer_chromedp.go's responseMeta.
type responseMeta struct {
	once       sync.Once
	statusCode int
	headers    http.Header
	url        string
}

func newResponseMeta() *responseMeta {
	return &responseMeta{headers: make(http.Header)}
}

func (m *responseMeta) record(status int, url string, headers network.Headers) {
	m.once.Do(func() {
		m.statusCode = status
		m.url = url
		for k, v := range headers {
			m.headers.Add(k, fmt.Sprint(v))
		}
	})
}

func (m *responseMeta) finalURL(raw string) string {
	if m.url == "" {
		return raw
	}
	return m.url
}
