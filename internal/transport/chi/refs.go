package chi

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/kailas-cloud/docscan/internal/domain"
)

// maxJSONBodyBytes caps JSON request bodies; documents travel as references there.
const maxJSONBodyBytes = 1 << 20

// documentRefs vets document references sent in a JSON body. URLs pass
// through; a local path must stay inside root after symlinks are resolved
// and is returned absolute. With no root, local paths are refused.
func documentRefs(root string, refs []string) ([]string, error) {
	out := make([]string, 0, len(refs))
	for _, ref := range refs {
		ref = strings.TrimSpace(ref)
		if domain.IsURL(ref) {
			out = append(out, ref)
			continue
		}
		p, err := underRoot(root, ref)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

func underRoot(root, ref string) (string, error) {
	if root == "" {
		return "", fmt.Errorf("%w: %q: only http(s) URLs are accepted, upload local files as multipart", domain.ErrInvalidInput, ref)
	}
	base, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("input dir: %w", err)
	}
	if resolved, err := filepath.EvalSymlinks(base); err == nil {
		base = resolved
	}

	p := ref
	if !filepath.IsAbs(p) {
		p = filepath.Join(base, p)
	}
	p = filepath.Clean(p)
	// существующий файл проверяем по реальному пути, иначе симлинк выводит наружу
	resolved, err := filepath.EvalSymlinks(p)
	switch {
	case err == nil:
		p = resolved
	case !errors.Is(err, fs.ErrNotExist):
		return "", fmt.Errorf("%w: %q: %w", domain.ErrInvalidInput, ref, err)
	}

	rel, err := filepath.Rel(base, p)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(os.PathSeparator)) {
		return "", fmt.Errorf("%w: %q is outside the input directory", domain.ErrInvalidInput, ref)
	}
	return p, nil
}
