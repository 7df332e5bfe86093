// Package pictureclient keeps reflection pictures as plain files named by their
// content hash.
package pictureclient

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Client stores pictures under one directory
type Client struct {
	dir    string
	logger *zap.Logger
}

// NewClient creates dir when it does not exist yet
func NewClient(dir string, logger *zap.Logger) (*Client, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create picture directory: %w", err)
	}
	return &Client{dir: dir, logger: logger}, nil
}

func (c *Client) path(filename string) (string, error) {
	if filename == "" || filename != filepath.Base(filename) || strings.HasPrefix(filename, ".") {
		return "", fmt.Errorf("invalid picture filename %q", filename)
	}
	return filepath.Join(c.dir, filename), nil
}

// Exists reports whether a picture with this filename is stored
func (c *Client) Exists(filename string) (bool, error) {
	p, err := c.path(filename)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(p)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to stat picture: %w", err)
	}
	return true, nil
}

// Save writes data under filename. The bytes go to a temporary file first so a
// reader never sees a partial picture.
func (c *Client) Save(filename string, data []byte) error {
	p, err := c.path(filename)
	if err != nil {
		return err
	}

	tmp := filepath.Join(c.dir, ".tmp-"+uuid.NewString())
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write picture: %w", err)
	}
	if err := os.Rename(tmp, p); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to move picture into place: %w", err)
	}

	c.logger.Debug("Saved picture", zap.String("filename", filename), zap.Int("bytes", len(data)))
	return nil
}

// Open returns the stored bytes of a picture
func (c *Client) Open(filename string) ([]byte, error) {
	p, err := c.path(filename)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if err != nil {
		return nil, fmt.Errorf("failed to read picture: %w", err)
	}
	return data, nil
}
