package streamcamera

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"time"

	"github.com/disintegration/imaging"

	"academy_backend/internal/feature/attendance/usecase"
)

// DefaultOpenTimeout はブラウザの接続と最初のフレームを待つ時間です。
const DefaultOpenTimeout = 10 * time.Second

// Provider は Hub のストリームを usecase.CameraProvider として公開します。
type Provider struct {
	hub         *Hub
	openTimeout time.Duration
}

// ProviderがCameraProviderを実装していることをコンパイル時に検証します。
var _ usecase.CameraProvider = (*Provider)(nil)

// NewProvider はProviderの新しいインスタンスを生成します。
func NewProvider(hub *Hub, openTimeout time.Duration) *Provider {
	if openTimeout <= 0 {
		openTimeout = DefaultOpenTimeout
	}
	return &Provider{hub: hub, openTimeout: openTimeout}
}

// Open はセッションのブラウザストリームが最初のフレームを送るまで待ちます。
// 権限拒否・タイムアウトはいずれも usecase.ErrCameraUnavailable です。
func (p *Provider) Open(ctx context.Context, sessionID string) (usecase.Camera, error) {
	ctx, cancel := context.WithTimeout(ctx, p.openTimeout)
	defer cancel()

	for {
		s, changed := p.hub.lookup(sessionID)
		if s == nil {
			select {
			case <-changed:
				continue
			case <-ctx.Done():
				return nil, fmt.Errorf("%w: no camera stream connected", usecase.ErrCameraUnavailable)
			}
		}

		select {
		case <-s.ready:
			if _, err := s.latest(); err != nil && !errors.Is(err, usecase.ErrFrameNotReady) {
				return nil, err
			}
			return &camera{stream: s}, nil
		case <-s.done:
			select {
			case <-changed:
				continue
			case <-ctx.Done():
				return nil, fmt.Errorf("%w: %v", usecase.ErrCameraUnavailable, errStreamClosed)
			}
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: camera stream sent no frames", usecase.ErrCameraUnavailable)
		}
	}
}

// camera は1つのブラウザストリームに対する usecase.Camera 実装です。
type camera struct {
	stream *stream
}

// ReadFrame は最新の JPEG フレームをデコードして返します。
func (c *camera) ReadFrame(ctx context.Context) (image.Image, error) {
	data, err := c.stream.latest()
	if err != nil {
		return nil, err
	}
	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: decode frame: %v", usecase.ErrFrameNotReady, err)
	}
	return img, nil
}

// Close はブラウザに停止を通知して接続を閉じます。
func (c *camera) Close() error {
	c.stream.stop()
	return nil
}
