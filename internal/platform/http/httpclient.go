package http

import (
	"net"
	"net/http"
	"time"
)

// NewHTTPClient は外部サービス（認識エッジ関数、参照写真のCDN）呼び出し用のHTTPクライアントを作成します。
//
// http.DefaultClient にはタイムアウトがないため使用しないこと。
// timeout はリクエスト全体の上限で、画像アップロードを含むため呼び出し元が決めます。
func NewHTTPClient(timeout time.Duration) *http.Client {
	t := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   5 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ExpectContinueTimeout: time.Second,
	}
	return &http.Client{Timeout: timeout, Transport: t}
}
