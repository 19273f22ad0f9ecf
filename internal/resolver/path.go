package resolver

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"beershop/pkg/customerrors"

	"github.com/google/uuid"
)

// ImageExtensions is the upload and download allow-list.
var ImageExtensions = []string{".jpg", ".jpeg", ".png"}

var safeBasename = regexp.MustCompile(`^[a-zA-Z0-9_-]+\.(jpg|jpeg|png)$`)

var (
	errTraversal   = customerrors.New(customerrors.KindPathTraversal, "Access denied")
	errInvalidType = customerrors.Validation("Invalid file type")
)

// AssetStore confines every file operation to one root directory. Names
// handed in by clients are checked before any filesystem call is made.
type AssetStore struct {
	root       string
	extensions map[string]struct{}
}

func NewAssetStore(root string, extensions ...string) (*AssetStore, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve upload root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o750); err != nil {
		return nil, fmt.Errorf("create upload root: %w", err)
	}
	if len(extensions) == 0 {
		extensions = ImageExtensions
	}
	exts := make(map[string]struct{}, len(extensions))
	for _, e := range extensions {
		exts[strings.ToLower(e)] = struct{}{}
	}
	return &AssetStore{root: filepath.Clean(abs), extensions: exts}, nil
}

func (s *AssetStore) Root() string { return s.root }

// Extension returns the lower-cased extension of name if it is allow-listed.
// Any directory part of name is ignored.
func (s *AssetStore) Extension(name string) (string, error) {
	ext := strings.ToLower(filepath.Ext(baseName(name)))
	if _, ok := s.extensions[ext]; !ok {
		return "", errInvalidType
	}
	return ext, nil
}

// Resolve maps a client-supplied filename to an absolute path inside the
// root. Names carrying directory components, parent references or absolute
// paths are rejected outright.
func (s *AssetStore) Resolve(name string) (string, error) {
	if name == "" || strings.ContainsRune(name, 0) {
		return "", errInvalidType
	}
	if strings.ContainsAny(name, `/\`) || strings.Contains(name, "..") ||
		filepath.IsAbs(name) || filepath.VolumeName(name) != "" {
		return "", errTraversal
	}
	if _, err := s.Extension(name); err != nil {
		return "", err
	}
	if !safeBasename.MatchString(name) {
		return "", errInvalidType
	}

	full := filepath.Join(s.root, name)
	if !s.contains(full) {
		return "", errTraversal
	}
	return full, nil
}

func (s *AssetStore) contains(path string) bool {
	rel, err := filepath.Rel(s.root, path)
	if err != nil {
		return false
	}
	return rel != "." && !strings.HasPrefix(rel, "..") && !filepath.IsAbs(rel) &&
		strings.HasPrefix(path, s.root+string(filepath.Separator))
}

// StoredName generates a fresh server-side name keeping only the validated
// extension of the original.
func (s *AssetStore) StoredName(originalName string) (string, error) {
	ext, err := s.Extension(originalName)
	if err != nil {
		return "", err
	}
	return strings.ReplaceAll(uuid.NewString(), "-", "") + ext, nil
}

// Save writes content under storedName. Existing files are never replaced.
func (s *AssetStore) Save(storedName string, content io.Reader) (int64, error) {
	path, err := s.Resolve(storedName)
	if err != nil {
		return 0, err
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o640)
	if err != nil {
		return 0, fmt.Errorf("create asset: %w", err)
	}
	n, err := io.Copy(f, content)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(path)
		return 0, fmt.Errorf("write asset: %w", err)
	}
	return n, nil
}

// Read returns the content of a stored asset.
func (s *AssetStore) Read(name string) ([]byte, error) {
	path, err := s.Resolve(name)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, customerrors.NotFound("File not found")
	}
	if err != nil {
		return nil, fmt.Errorf("read asset: %w", err)
	}
	return data, nil
}

func baseName(name string) string {
	if i := strings.LastIndexAny(name, `/\`); i >= 0 {
		return name[i+1:]
	}
	return name
}
