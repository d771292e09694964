package internal

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Kind is the media class of a file, decided by its extension.
type Kind int

const (
	KindUnsupported Kind = iota
	KindImage
	KindVideo
)

func (k Kind) String() string {
	switch k {
	case KindImage:
		return "image"
	case KindVideo:
		return "video"
	default:
		return "unsupported"
	}
}

// MediaFile is a classified source file. It is not modified after Classify.
type MediaFile struct {
	Path    string
	Ext     string
	Kind    Kind
	Size    int64
	Mode    fs.FileMode
	ModTime time.Time
}

// Classifier maps lowercase extensions to a Kind.
type Classifier struct {
	image map[string]struct{}
	video map[string]struct{}
}

func NewClassifier(imageExt, videoExt []string) *Classifier {
	c := &Classifier{
		image: make(map[string]struct{}, len(imageExt)),
		video: make(map[string]struct{}, len(videoExt)),
	}
	for _, e := range imageExt {
		c.image[normalizeExt(e)] = struct{}{}
	}
	for _, e := range videoExt {
		c.video[normalizeExt(e)] = struct{}{}
	}
	return c
}

// Kind classifies an extension such as ".JPG" case-insensitively.
func (c *Classifier) Kind(ext string) Kind {
	ext = normalizeExt(ext)
	if _, ok := c.image[ext]; ok {
		return KindImage
	}
	if _, ok := c.video[ext]; ok {
		return KindVideo
	}
	return KindUnsupported
}

// Classify builds a MediaFile from a path and its stat info.
func (c *Classifier) Classify(path string, info fs.FileInfo) MediaFile {
	ext := strings.ToLower(filepath.Ext(info.Name()))
	return MediaFile{
		Path:    path,
		Ext:     ext,
		Kind:    c.Kind(ext),
		Size:    info.Size(),
		Mode:    info.Mode(),
		ModTime: info.ModTime(),
	}
}

// Stat classifies the file at path. Only regular files are accepted.
func (c *Classifier) Stat(path string) (MediaFile, error) {
	info, err := os.Stat(path)
	if err != nil {
		return MediaFile{}, err
	}
	if !info.Mode().IsRegular() {
		return MediaFile{}, fmt.Errorf("%s: %w", path, ErrNotRegular)
	}
	return c.Classify(path, info), nil
}

// Enumerate walks root recursively and returns every regular file. Directories
// listed in exclude (typically the destination, when it lives inside the
// source) are not descended into.
func Enumerate(root string, exclude ...string) ([]string, error) {
	skip := make(map[string]struct{}, len(exclude))
	for _, e := range exclude {
		if abs, err := filepath.Abs(e); err == nil {
			skip[abs] = struct{}{}
		}
	}

	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if abs, err := filepath.Abs(path); err == nil && path != root {
				if _, ok := skip[abs]; ok {
					return filepath.SkipDir
				}
			}
			return nil
		}
		if d.Type().IsRegular() {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("error scanning files: %w", err)
	}
	return files, nil
}

func normalizeExt(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}
