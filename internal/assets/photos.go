package assets

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/disintegration/imaging"

	"registrar/internal/config"
	"registrar/internal/logging"
	"registrar/internal/records"
)

const maxPhotoBytes = 10 << 20

// localExtensions are tried in order when looking for <regn>.<ext> in the photo directory.
var localExtensions = []string{".png", ".jpg", ".jpeg"}

// Lookup resolves a student's photo. A missing photo is not an error.
type Lookup interface {
	Photo(ctx context.Context, identity records.StudentIdentity) ([]byte, bool)
}

// LookupFunc adapts a function to Lookup.
type LookupFunc func(ctx context.Context, identity records.StudentIdentity) ([]byte, bool)

// Photo implements Lookup.
func (f LookupFunc) Photo(ctx context.Context, identity records.StudentIdentity) ([]byte, bool) {
	return f(ctx, identity)
}

// Store finds photos by URL, then on disk, and normalises them to a fixed
// box encoded as JPEG.
type Store struct {
	client   *http.Client
	photoDir string
	width    int
	height   int
	timeout  time.Duration
	logger   *slog.Logger
}

// Option customises a Store.
type Option func(*Store)

// WithHTTPClient overrides the HTTP client used for photo URLs.
func WithHTTPClient(client *http.Client) Option {
	return func(s *Store) {
		if client != nil {
			s.client = client
		}
	}
}

// NewStore builds a photo store from document settings.
func NewStore(cfg *config.Config, logger *slog.Logger, opts ...Option) *Store {
	s := &Store{
		client:   &http.Client{},
		photoDir: cfg.Paths.PhotoDir,
		width:    cfg.Documents.PhotoWidth,
		height:   cfg.Documents.PhotoHeight,
		timeout:  cfg.PhotoTimeout(),
		logger:   logging.NewComponentLogger(logger, "assets"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Photo implements Lookup.
func (s *Store) Photo(ctx context.Context, identity records.StudentIdentity) ([]byte, bool) {
	logger := s.logger.With(logging.String(logging.FieldRegNo, identity.RegNo))

	if ref := strings.TrimSpace(identity.PhotoRef); isURL(ref) {
		out, err := s.fromURL(ctx, ref)
		if err == nil {
			return out, true
		}
		logger.Warn("photo url unusable, trying photo directory", logging.String("url", ref), logging.Error(err))
	}

	raw, path, err := s.readLocal(identity.RegNo)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			logger.Warn("photo read failed", logging.Error(err))
		}
		logger.Debug("no photo found, placeholder will be used")
		return nil, false
	}
	out, err := Normalize(raw, s.width, s.height)
	if err != nil {
		logger.Warn("local photo not decodable", logging.String("path", path), logging.Error(err))
		return nil, false
	}
	return out, true
}

func (s *Store) fromURL(ctx context.Context, url string) ([]byte, error) {
	raw, err := s.download(ctx, url)
	if err != nil {
		return nil, err
	}
	return Normalize(raw, s.width, s.height)
}

func (s *Store) download(ctx context.Context, url string) ([]byte, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxPhotoBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if len(data) > maxPhotoBytes {
		return nil, fmt.Errorf("photo exceeds %d bytes", maxPhotoBytes)
	}
	return data, nil
}

func (s *Store) readLocal(regNo string) ([]byte, string, error) {
	regNo = strings.TrimSpace(regNo)
	if s.photoDir == "" || regNo == "" || strings.ContainsAny(regNo, `/\`) {
		return nil, "", fs.ErrNotExist
	}
	for _, ext := range localExtensions {
		path := filepath.Join(s.photoDir, regNo+ext)
		data, err := os.ReadFile(path)
		if err == nil {
			return data, path, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, path, err
		}
	}
	return nil, "", fs.ErrNotExist
}

// Normalize decodes raw, fits it into a width x height box on a white
// background, sharpens it slightly and re-encodes it as JPEG. The output is a
// pure function of the input bytes.
func Normalize(raw []byte, width, height int) ([]byte, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid photo box %dx%d", width, height)
	}
	src, err := imaging.Decode(bytes.NewReader(raw), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decode photo: %w", err)
	}
	fitted := imaging.Fit(src, width, height, imaging.Lanczos)
	canvas := imaging.New(width, height, color.White)
	canvas = imaging.PasteCenter(canvas, fitted)
	canvas = imaging.Sharpen(canvas, 0.6)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, canvas, imaging.JPEG, imaging.JPEGQuality(92)); err != nil {
		return nil, fmt.Errorf("encode photo: %w", err)
	}
	return buf.Bytes(), nil
}

// Placeholder returns a flat grey JPEG of the given box, used when a student
// has no usable photo.
func Placeholder(width, height int) []byte {
	if width <= 0 || height <= 0 {
		width, height = 1, 1
	}
	img := imaging.New(width, height, color.NRGBA{R: 0xcc, G: 0xcc, B: 0xcc, A: 0xff})
	var buf bytes.Buffer
	_ = imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(92))
	return buf.Bytes()
}

// Dimensions reports the pixel size of an encoded image without decoding it fully.
func Dimensions(data []byte) (int, int, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0, err
	}
	return cfg.Width, cfg.Height, nil
}

func isURL(ref string) bool {
	return strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://")
}
