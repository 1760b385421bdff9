package chi

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
)

// upload is a set of multipart files staged on disk for one request.
type upload struct {
	dir   string
	paths []string
}

func (u *upload) cleanup() {
	if u.dir != "" {
		_ = os.RemoveAll(u.dir)
	}
}

// receiveUpload stages the files of the first non-empty form field among
// fields. Original base names are kept so reports show them.
func (s *Server) receiveUpload(w http.ResponseWriter, r *http.Request, fields ...string) (*upload, error) {
	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		return nil, fmt.Errorf("invalid multipart form: %w", err)
	}

	var headers []*multipart.FileHeader
	for _, f := range fields {
		if hs := r.MultipartForm.File[f]; len(hs) > 0 {
			headers = hs
			break
		}
	}
	if len(headers) == 0 {
		return nil, errors.New("no file uploaded")
	}

	dir, err := os.MkdirTemp(s.opts.UploadDir, "upload-*")
	if err != nil {
		return nil, fmt.Errorf("stage upload: %w", err)
	}
	up := &upload{dir: dir}

	for i, h := range headers {
		// файлы с одинаковым именем кладём в отдельные подкаталоги
		sub := filepath.Join(dir, strconv.Itoa(i))
		if err := os.Mkdir(sub, 0o700); err != nil {
			up.cleanup()
			return nil, fmt.Errorf("stage upload: %w", err)
		}
		path, err := saveFile(h, sub)
		if err != nil {
			up.cleanup()
			return nil, err
		}
		up.paths = append(up.paths, path)
	}
	return up, nil
}

func saveFile(h *multipart.FileHeader, dir string) (string, error) {
	name := filepath.Base(filepath.Clean("/" + h.Filename))
	if name == "/" || name == "." {
		name = "upload"
	}

	src, err := h.Open()
	if err != nil {
		return "", fmt.Errorf("open upload %s: %w", name, err)
	}
	defer func() { _ = src.Close() }()

	path := filepath.Join(dir, name)
	dst, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o600)
	if err != nil {
		return "", fmt.Errorf("create upload %s: %w", name, err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		_ = dst.Close()
		return "", fmt.Errorf("write upload %s: %w", name, err)
	}
	if err := dst.Close(); err != nil {
		return "", fmt.Errorf("write upload %s: %w", name, err)
	}
	return path, nil
}
