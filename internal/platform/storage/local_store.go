// Package storage は監査用の撮影画像をローカルファイルシステムに保存します。
package storage

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/blake2b"

	"academy_backend/internal/feature/attendance/domain/entity"
	"academy_backend/internal/feature/attendance/usecase"
)

var errInvalidRef = errors.New("invalid evidence reference")

// LocalStore は <root>/<tenant>/<yyyy>/<mm>/<uuid>.<ext> に画像を保存します。
// ダイジェストは画像バイト列の BLAKE2b-256 (hex) です。
type LocalStore struct {
	root string
	now  func() time.Time
}

// LocalStoreがEvidenceStoreを実装していることをコンパイル時に検証します。
var _ usecase.EvidenceStore = (*LocalStore)(nil)

// NewLocalStore はルートディレクトリを作成してLocalStoreを返します。
func NewLocalStore(root string) (*LocalStore, error) {
	if root == "" {
		return nil, errors.New("evidence storage path is empty")
	}
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, fmt.Errorf("create evidence root: %w", err)
	}
	return &LocalStore{root: root, now: time.Now}, nil
}

// Save は画像を保存し、ルートからの相対参照とダイジェストを返します。
func (s *LocalStore) Save(ctx context.Context, tenantID string, photo *entity.EvidencePhoto) (string, string, error) {
	if photo == nil || len(photo.Data) == 0 {
		return "", "", errors.New("empty evidence photo")
	}
	if err := ctx.Err(); err != nil {
		return "", "", err
	}

	now := s.now().UTC()
	ref := path.Join(
		safeSegment(tenantID),
		now.Format("2006"),
		now.Format("01"),
		uuid.NewString()+extension(photo.MIMEType),
	)

	full, err := s.resolve(ref)
	if err != nil {
		return "", "", err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o750); err != nil {
		return "", "", fmt.Errorf("create evidence dir: %w", err)
	}
	if err := os.WriteFile(full, photo.Data, 0o640); err != nil {
		return "", "", fmt.Errorf("write evidence: %w", err)
	}

	return ref, Digest(photo.Data), nil
}

// Delete は保存済みの画像を削除します。存在しない場合は何もしません。
func (s *LocalStore) Delete(ctx context.Context, ref string) error {
	full, err := s.resolve(ref)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("delete evidence: %w", err)
	}
	return nil
}

// resolve は参照をルート配下の絶対パスに変換します。ルート外を指す参照は拒否します。
func (s *LocalStore) resolve(ref string) (string, error) {
	clean := path.Clean("/" + ref)
	if ref == "" || clean == "/" || strings.Contains(ref, "..") {
		return "", fmt.Errorf("%w: %q", errInvalidRef, ref)
	}
	return filepath.Join(s.root, filepath.FromSlash(strings.TrimPrefix(clean, "/"))), nil
}

// Digest は data の BLAKE2b-256 ダイジェストを hex で返します。
func Digest(data []byte) string {
	sum := blake2b.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func extension(mimeType string) string {
	switch mimeType {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/webp":
		return ".webp"
	default:
		return ".bin"
	}
}

// safeSegment はパス区切りなどを含むテナントIDをディレクトリ名として安全な形にします。
func safeSegment(s string) string {
	s = strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '.':
			return '_'
		}
		return r
	}, s)
	if s == "" {
		return "_"
	}
	return s
}
