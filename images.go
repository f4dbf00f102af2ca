package clower

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"golang.org/x/image/draw"

	"github.com/eringen/clower/content"
	"github.com/eringen/clower/storage"
)

const (
	maxImageWidth = 800
	jpegQuality   = 80
	maxUploadSize = 10 << 20 // 10MB
	uploadsSubdir = "uploads"
	uploadLimit   = "11M"
)

// Image describes an uploaded file under <output>/uploads.
type Image struct {
	Filename   string `json:"filename"`
	URL        string `json:"url"`
	Width      int    `json:"width"`
	Height     int    `json:"height"`
	Size       int64  `json:"size"`
	UploadedAt string `json:"uploadedAt"`
}

// processImage decodes an image from src, resizes it to maxImageWidth if
// wider, and encodes it as JPEG.
func processImage(src io.Reader) ([]byte, int, int, error) {
	img, _, err := image.Decode(src)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("decode image: %w", err)
	}

	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w > maxImageWidth {
		newH := h * maxImageWidth / w
		if newH < 1 {
			newH = 1
		}
		dst := image.NewRGBA(image.Rect(0, 0, maxImageWidth, newH))
		draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
		img = dst
		w, h = maxImageWidth, newH
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, 0, 0, fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), w, h, nil
}

// imageBaseName turns an uploaded file name into a slug without extension.
func imageBaseName(name string) string {
	base := strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
	if s := content.Slugify(base); s != "" {
		return s
	}
	return "image"
}

func (a *App) uploadsDir() string {
	return filepath.Join(a.Config.OutputDir, uploadsSubdir)
}

// uniqueFilename appends a counter until the name is free on disk.
func (a *App) uniqueFilename(base string) string {
	candidate := base + ".jpg"
	for counter := 2; ; counter++ {
		if _, err := os.Stat(filepath.Join(a.uploadsDir(), candidate)); errors.Is(err, os.ErrNotExist) {
			return candidate
		}
		candidate = fmt.Sprintf("%s-%d.jpg", base, counter)
	}
}

func (a *App) describeImage(name string, info os.FileInfo) Image {
	img := Image{
		Filename:   name,
		URL:        path.Join(uploadsSubdir, name),
		Size:       info.Size(),
		UploadedAt: info.ModTime().UTC().Format(time.RFC3339),
	}
	if f, err := os.Open(filepath.Join(a.uploadsDir(), name)); err == nil {
		if cfg, _, err := image.DecodeConfig(f); err == nil {
			img.Width, img.Height = cfg.Width, cfg.Height
		}
		f.Close()
	}
	return img
}

func (a *App) handleImageUpload(c echo.Context) error {
	file, err := c.FormFile("image")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "No image file provided")
	}
	if file.Size > maxUploadSize {
		return echo.NewHTTPError(http.StatusBadRequest, "File too large (max 10MB)")
	}

	src, err := file.Open()
	if err != nil {
		return err
	}
	defer src.Close()

	data, _, _, err := processImage(src)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid image: "+err.Error())
	}

	dir := a.uploadsDir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create uploads dir: %w", err)
	}
	name := a.uniqueFilename(imageBaseName(file.Filename))
	if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
		return fmt.Errorf("write image: %w", err)
	}
	info, err := os.Stat(filepath.Join(dir, name))
	if err != nil {
		return err
	}
	a.Logger.Info("image uploaded", zap.String("file", name), zap.Int64("size", info.Size()))
	return c.JSON(http.StatusCreated, a.describeImage(name, info))
}

func (a *App) handleImageDelete(c echo.Context) error {
	name := c.Param("filename")
	if err := storage.ValidKey(name); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid filename")
	}
	err := os.Remove(filepath.Join(a.uploadsDir(), name))
	if errors.Is(err, os.ErrNotExist) {
		return echo.NewHTTPError(http.StatusNotFound, "Image not found")
	}
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, message{Message: "Deleted"})
}

func (a *App) handleImageList(c echo.Context) error {
	images, err := a.listImages()
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, images)
}

// listImages returns the uploads sorted by file name.
func (a *App) listImages() ([]Image, error) {
	entries, err := os.ReadDir(a.uploadsDir())
	if errors.Is(err, os.ErrNotExist) {
		return []Image{}, nil
	}
	if err != nil {
		return nil, err
	}
	images := make([]Image, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		images = append(images, a.describeImage(e.Name(), info))
	}
	sort.Slice(images, func(i, j int) bool { return images[i].Filename < images[j].Filename })
	return images, nil
}
