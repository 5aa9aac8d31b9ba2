// Package upload persists incoming image files under unguessable names and
// hands back the path they will be served from.
package upload

import (
	"io"
	"mime/multipart"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/ajali-app/backend/internal/apperror"
)

var allowedExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".gif":  true,
}

type Store struct {
	Dir string
}

func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &Store{Dir: dir}, nil
}

// Allowed reports whether the filename carries an accepted image extension.
// The match is case-insensitive.
func Allowed(filename string) bool {
	return allowedExtensions[strings.ToLower(filepath.Ext(filename))]
}

// sanitize strips directories and any character that could escape the upload
// folder, keeping only letters, digits, dot, dash and underscore.
func sanitize(filename string) string {
	base := path.Base(filepath.ToSlash(filename))
	var b strings.Builder
	for _, r := range base {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.' || r == '-' || r == '_':
			b.WriteRune(r)
		}
	}
	return strings.Trim(b.String(), ".")
}

// Save writes the uploaded file under a fresh unique name and returns the
// public path it can be fetched from.
func (s *Store) Save(fh *multipart.FileHeader) (string, error) {
	if !Allowed(fh.Filename) {
		return "", apperror.NewValidation("Invalid file type.")
	}

	unique := uuid.NewString() + "_" + sanitize(fh.Filename)

	src, err := fh.Open()
	if err != nil {
		return "", apperror.NewInternal("could not read uploaded file", err)
	}
	defer src.Close()

	dst, err := os.Create(filepath.Join(s.Dir, unique))
	if err != nil {
		return "", apperror.NewInternal("could not store uploaded file", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return "", apperror.NewInternal("could not store uploaded file", err)
	}

	return "/uploads/" + unique, nil
}
