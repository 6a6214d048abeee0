package usecase_test

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"academy_backend/internal/feature/attendance/usecase"
)

func TestCaptureSource_LoadFile(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		data    func(t *testing.T) []byte
		wantErr error
	}{
		{
			name:    "success: jpeg",
			data:    func(t *testing.T) []byte { return testImage(t, 320, 240) },
			wantErr: nil,
		},
		{
			name:    "error: empty file",
			data:    func(t *testing.T) []byte { return nil },
			wantErr: usecase.ErrInvalidImage,
		},
		{
			name:    "error: not an image",
			data:    func(t *testing.T) []byte { return []byte("definitely not an image") },
			wantErr: usecase.ErrInvalidImage,
		},
		{
			name:    "error: too large",
			data:    func(t *testing.T) []byte { return make([]byte, usecase.MaxImageSize+1) },
			wantErr: usecase.ErrImageTooLarge,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			src := usecase.NewCaptureSource("s1", nil)
			err := src.LoadFile(tt.data(t))

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)

			img, err := src.Capture(context.Background())
			require.NoError(t, err)
			assert.Equal(t, "image/jpeg", img.MIMEType)
			assert.Equal(t, 320, img.Width)
			assert.Equal(t, 240, img.Height)

			decoded, err := imaging.Decode(bytes.NewReader(img.Data))
			require.NoError(t, err)
			assert.Equal(t, 320, decoded.Bounds().Dx())
		})
	}
}

func TestCaptureSource_CaptureWithoutSource(t *testing.T) {
	t.Parallel()

	src := usecase.NewCaptureSource("s1", nil)
	img, err := src.Capture(context.Background())

	assert.ErrorIs(t, err, usecase.ErrFrameNotReady)
	assert.Nil(t, img)
}

// startCamera はストリームを開いてアクティブにするヘルパーです。
func startCamera(src *usecase.CaptureSource) error {
	cam, err := src.OpenCamera(context.Background())
	if err != nil {
		return err
	}
	src.Attach(cam)
	return nil
}

func TestCaptureSource_OpenCamera(t *testing.T) {
	t.Parallel()

	t.Run("error: permission denied", func(t *testing.T) {
		t.Parallel()

		provider := &mockCameraProvider{
			OpenFunc: func(ctx context.Context, sessionID string) (usecase.Camera, error) {
				return nil, errors.New("NotAllowedError: permission denied")
			},
		}
		src := usecase.NewCaptureSource("s1", provider)

		err := startCamera(src)
		assert.ErrorIs(t, err, usecase.ErrCameraUnavailable)
		assert.False(t, src.Active())
	})

	t.Run("error: no provider", func(t *testing.T) {
		t.Parallel()

		src := usecase.NewCaptureSource("s1", nil)
		assert.ErrorIs(t, startCamera(src), usecase.ErrCameraUnavailable)
	})

	t.Run("success: starting again stops the previous stream", func(t *testing.T) {
		t.Parallel()

		provider := &mockCameraProvider{}
		src := usecase.NewCaptureSource("s1", provider)

		require.NoError(t, startCamera(src))
		require.NoError(t, startCamera(src))

		require.Len(t, provider.opened, 2)
		assert.Equal(t, 1, provider.opened[0].closeCalls)
		assert.Equal(t, 0, provider.opened[1].closeCalls)
		assert.True(t, src.Active())
	})

	t.Run("success: loading a file stops the stream", func(t *testing.T) {
		t.Parallel()

		provider := &mockCameraProvider{}
		src := usecase.NewCaptureSource("s1", provider)

		require.NoError(t, startCamera(src))
		require.NoError(t, src.LoadFile(testImage(t, 40, 40)))

		assert.False(t, src.Active())
		assert.Equal(t, 1, provider.opened[0].closeCalls)
	})
}

func TestCaptureSource_CaptureFromCamera(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		camera    *mockCamera
		wantErr   error
		wantWidth int
	}{
		{
			name:      "success: frame captured",
			camera:    &mockCamera{frame: imaging.New(640, 480, color.Black)},
			wantWidth: 640,
		},
		{
			name:      "success: large frame is downscaled",
			camera:    &mockCamera{frame: imaging.New(3840, 1920, color.Black)},
			wantWidth: usecase.MaxImageDimension,
		},
		{
			name:    "error: zero dimensions",
			camera:  &mockCamera{frame: image.NewRGBA(image.Rect(0, 0, 0, 0))},
			wantErr: usecase.ErrFrameNotReady,
		},
		{
			name:    "error: no frame yet",
			camera:  &mockCamera{err: usecase.ErrFrameNotReady},
			wantErr: usecase.ErrFrameNotReady,
		},
		{
			name:    "error: read failure",
			camera:  &mockCamera{err: errors.New("device busy")},
			wantErr: usecase.ErrFrameNotReady,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			provider := &mockCameraProvider{
				OpenFunc: func(ctx context.Context, sessionID string) (usecase.Camera, error) {
					return tt.camera, nil
				},
			}
			src := usecase.NewCaptureSource("s1", provider)
			require.NoError(t, startCamera(src))

			img, err := src.Capture(context.Background())
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, img)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantWidth, img.Width)
			assert.NotEmpty(t, img.Data)
		})
	}
}

func TestCaptureSource_StopIsIdempotent(t *testing.T) {
	t.Parallel()

	provider := &mockCameraProvider{}
	src := usecase.NewCaptureSource("s1", provider)

	src.Stop()
	require.NoError(t, startCamera(src))
	src.Stop()
	src.Stop()

	assert.False(t, src.Active())
	assert.Equal(t, 1, provider.opened[0].closeCalls)
}
