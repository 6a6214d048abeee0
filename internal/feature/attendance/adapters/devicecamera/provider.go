// Package devicecamera はローカルのビデオデバイスを gocv で開く CameraProvider を提供します。
// キオスク端末（cmd/kiosk）で使用します。
package devicecamera

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"os"
	"strings"
	"sync"

	"gocv.io/x/gocv"

	"academy_backend/internal/feature/attendance/usecase"
)

// defaultDevices は背面カメラ（1）を優先し、なければ内蔵カメラ（0）を使います。
var defaultDevices = []string{"1", "0"}

// ParseDevices はカンマ区切りのデバイス指定を分解します。空の場合は既定の順序を返します。
func ParseDevices(s string) []string {
	var out []string
	for _, d := range strings.Split(s, ",") {
		if d = strings.TrimSpace(d); d != "" {
			out = append(out, d)
		}
	}
	if len(out) == 0 {
		return append([]string(nil), defaultDevices...)
	}
	return out
}

// LoadDevices は環境変数 CAMERA_DEVICES からデバイスの優先順を読み込みます。
func LoadDevices() []string {
	return ParseDevices(os.Getenv("CAMERA_DEVICES"))
}

// Provider は優先順にデバイスを試して最初に開けたものを使います。
type Provider struct {
	devices []string
}

// ProviderがCameraProviderを実装していることをコンパイル時に検証します。
var _ usecase.CameraProvider = (*Provider)(nil)

// NewProvider はProviderの新しいインスタンスを生成します。
func NewProvider(devices []string) *Provider {
	if len(devices) == 0 {
		devices = defaultDevices
	}
	return &Provider{devices: devices}
}

// Open はデバイスを開きます。どれも開けない場合は usecase.ErrCameraUnavailable を返します。
func (p *Provider) Open(ctx context.Context, sessionID string) (usecase.Camera, error) {
	for _, d := range p.devices {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		vc, err := gocv.OpenVideoCapture(d)
		if err != nil {
			slog.Debug("video device unavailable", "device", d, "error", err)
			continue
		}
		if !vc.IsOpened() {
			_ = vc.Close()
			continue
		}
		slog.Info("video device opened", "device", d, "session_id", sessionID)
		return &camera{vc: vc, mat: gocv.NewMat()}, nil
	}
	return nil, fmt.Errorf("%w: no video device available (tried %s)", usecase.ErrCameraUnavailable, strings.Join(p.devices, ","))
}

// camera は gocv.VideoCapture の usecase.Camera 実装です。
type camera struct {
	mu     sync.Mutex
	vc     *gocv.VideoCapture
	mat    gocv.Mat
	closed bool
}

// ReadFrame はデバイスから1フレーム読み取ります。
func (c *camera) ReadFrame(ctx context.Context) (image.Image, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, fmt.Errorf("%w: device closed", usecase.ErrCameraUnavailable)
	}
	if ok := c.vc.Read(&c.mat); !ok || c.mat.Empty() {
		return nil, usecase.ErrFrameNotReady
	}
	img, err := c.mat.ToImage()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", usecase.ErrFrameNotReady, err)
	}
	return img, nil
}

// Close はデバイスを解放します。何度呼んでも安全です。
func (c *camera) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	if err := c.mat.Close(); err != nil {
		slog.Warn("failed to release frame buffer", "error", err)
	}
	return c.vc.Close()
}
