package docstore

import (
	"fmt"
	"strings"
)

// Join builds a path from segments.
func Join(segments ...string) string {
	return strings.Join(segments, "/")
}

// Split validates a path and returns its segments.
func Split(path string) ([]string, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: empty path", ErrInvalidPath)
	}
	segs := strings.Split(path, "/")
	for _, s := range segs {
		if s == "" {
			return nil, fmt.Errorf("%w: empty segment in %q", ErrInvalidPath, path)
		}
	}
	return segs, nil
}

// ValidateDocument checks that path names a document (even segment count).
func ValidateDocument(path string) error {
	segs, err := Split(path)
	if err != nil {
		return err
	}
	if len(segs)%2 != 0 {
		return fmt.Errorf("%w: %q is a collection, not a document", ErrInvalidPath, path)
	}
	return nil
}

// ValidateCollection checks that path names a collection (odd segment count).
func ValidateCollection(path string) error {
	segs, err := Split(path)
	if err != nil {
		return err
	}
	if len(segs)%2 != 1 {
		return fmt.Errorf("%w: %q is a document, not a collection", ErrInvalidPath, path)
	}
	return nil
}

// Parent returns the collection containing a document path.
func Parent(path string) string {
	i := strings.LastIndex(path, "/")
	if i < 0 {
		return ""
	}
	return path[:i]
}

// Base returns the last segment of a path: the ID of a document.
func Base(path string) string {
	return path[strings.LastIndex(path, "/")+1:]
}

// ValidateID checks that id can be used as a single path segment.
func ValidateID(id string) error {
	if id == "" {
		return fmt.Errorf("%w: empty id", ErrInvalidPath)
	}
	if strings.Contains(id, "/") {
		return fmt.Errorf("%w: id %q contains '/'", ErrInvalidPath, id)
	}
	return nil
}
