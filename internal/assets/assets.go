// Package assets 负责商品图片的校验与存储。
// 只接受 JPEG/PNG/WebP 三种格式，单文件上限 5MB，
// 文件名使用 UUID 重命名，避免用户可控路径。
package assets

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// 校验相关错误
var (
	ErrFileTooLarge    = errors.New("assets: file exceeds size limit")
	ErrUnsupportedType = errors.New("assets: unsupported image type")
)

// MaxImageSize 单张图片的字节数上限
const MaxImageSize = 5 << 20

// 允许的图片MIME类型及对应扩展名
var allowedTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
}

// Store 定义图片存储接口
type Store interface {
	// Save 校验并保存图片，返回可对外访问的相对路径
	Save(filename string, r io.Reader) (string, error)
	// Remove 删除图片，文件不存在视为成功
	Remove(path string) error
}

// fsStore 是基于本地文件系统的存储实现
type fsStore struct {
	dir       string
	urlPrefix string
}

// NewFSStore 创建文件系统存储，dir 不存在时自动创建
func NewFSStore(dir, urlPrefix string) (Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create assets dir: %w", err)
	}
	return &fsStore{dir: dir, urlPrefix: urlPrefix}, nil
}

// Save 校验并保存图片。
// MIME 类型从文件内容嗅探，不信任请求头和扩展名。
func (s *fsStore) Save(filename string, r io.Reader) (string, error) {
	// 多读一个字节以区分"正好到上限"和"超限"
	data, err := io.ReadAll(io.LimitReader(r, MaxImageSize+1))
	if err != nil {
		return "", fmt.Errorf("read upload: %w", err)
	}
	if len(data) > MaxImageSize {
		return "", ErrFileTooLarge
	}

	ext, err := sniffImageType(data)
	if err != nil {
		return "", err
	}

	name := uuid.New().String() + ext
	fullPath := filepath.Join(s.dir, name)
	if err := os.WriteFile(fullPath, data, 0o644); err != nil {
		return "", fmt.Errorf("write image: %w", err)
	}

	return s.urlPrefix + "/" + name, nil
}

// Remove 删除图片
func (s *fsStore) Remove(path string) error {
	name := filepath.Base(path)
	err := os.Remove(filepath.Join(s.dir, name))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove image: %w", err)
	}
	return nil
}

// sniffImageType 从内容嗅探图片类型并返回扩展名
func sniffImageType(data []byte) (string, error) {
	contentType := http.DetectContentType(data)
	ext, ok := allowedTypes[contentType]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedType, contentType)
	}
	return ext, nil
}

// ValidateImage 只做校验不落盘，供表单预检使用
func ValidateImage(data []byte) error {
	if len(data) > MaxImageSize {
		return ErrFileTooLarge
	}
	_, err := sniffImageType(data)
	return err
}

// IsValidationError 判断错误是否为图片校验错误
func IsValidationError(err error) bool {
	return errors.Is(err, ErrFileTooLarge) || errors.Is(err, ErrUnsupportedType)
}
