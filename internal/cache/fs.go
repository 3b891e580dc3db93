/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package cache

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
)

// DirFS is a Filesystem rooted at a single media directory on disk.
type DirFS struct {
	root string
}

// NewDirFS returns a Filesystem rooted at dir.
func NewDirFS(dir string) *DirFS {
	return &DirFS{root: dir}
}

func (d *DirFS) EnsureDir() error {
	return os.MkdirAll(d.root, 0o755)
}

func (d *DirFS) List() ([]string, error) {
	entries, err := os.ReadDir(d.root)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		names = append(names, e.Name())
	}
	return names, nil
}

func (d *DirFS) Remove(name string) error {
	err := os.Remove(filepath.Join(d.root, name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

func (d *DirFS) Exists(name string) (bool, error) {
	_, err := os.Stat(filepath.Join(d.root, name))
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// URI returns a file:// URI suitable for handing to a media player.
func (d *DirFS) URI(name string) string {
	abs, err := filepath.Abs(filepath.Join(d.root, name))
	if err != nil {
		abs = filepath.Join(d.root, name)
	}
	return "file://" + abs
}
