// Copyright 2025 dacapoday
// SPDX-License-Identifier: Apache-2.0

// Package image provides a flash device backed by an image file.
//
// The image holds the raw content of the flash, so it can be produced by a
// device dump and written back by a programmer.
package image

import (
	"bytes"
	"io"
	"os"
	"sync"

	"github.com/pkg/errors"

	"github.com/dacapoday/slotlog"
)

var _ slotlog.Flash = &Image{}

// Image uses a file as NOR flash.
type Image struct {
	mutex      sync.Mutex
	file       *os.File
	size       int64
	pageSize   int64
	sectorSize int64
	page       []byte
	erased     []byte
}

// Create creates or truncates the image at path and fills it with erased flash.
func Create(path string, size, pageSize, sectorSize int64) (*Image, error) {
	if err := checkGeometry(size, pageSize, sectorSize); err != nil {
		return nil, err
	}
	file, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	img := newImage(file, size, pageSize, sectorSize)
	for off := int64(0); off < size; off += sectorSize {
		if _, err := file.WriteAt(img.erased, off); err != nil {
			file.Close()
			return nil, errors.WithStack(err)
		}
	}
	return img, nil
}

// Open opens an existing image. Its size must be a whole number of sectors.
func Open(path string, pageSize, sectorSize int64, readOnly bool) (*Image, error) {
	flag := os.O_RDWR
	if readOnly {
		flag = os.O_RDONLY
	}
	file, err := os.OpenFile(path, flag, 0)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	size, err := file.Seek(0, io.SeekEnd)
	if err != nil {
		file.Close()
		return nil, errors.WithStack(err)
	}
	if err := checkGeometry(size, pageSize, sectorSize); err != nil {
		file.Close()
		return nil, err
	}
	return newImage(file, size, pageSize, sectorSize), nil
}

func checkGeometry(size, pageSize, sectorSize int64) error {
	if pageSize <= 0 || sectorSize <= 0 || sectorSize%pageSize != 0 || size <= 0 || size%sectorSize != 0 {
		return slotlog.Errorf(slotlog.ErrInvalidGeometry, "image size=%d page=%d sector=%d", size, pageSize, sectorSize)
	}
	return nil
}

func newImage(file *os.File, size, pageSize, sectorSize int64) *Image {
	return &Image{
		file:       file,
		size:       size,
		pageSize:   pageSize,
		sectorSize: sectorSize,
		page:       make([]byte, pageSize),
		erased:     bytes.Repeat([]byte{0xFF}, int(sectorSize)),
	}
}

// Size returns the byte size of the image.
func (img *Image) Size() int64 {
	return img.size
}

// ReadAt reads from the image.
func (img *Image) ReadAt(p []byte, off int64) (int, error) {
	n, err := img.file.ReadAt(p, off)
	if err != nil && err != io.EOF {
		return n, errors.WithStack(err)
	}
	return n, err
}

// EraseSector fills the sector starting at off with 0xFF.
func (img *Image) EraseSector(off int64) error {
	if off < 0 || off%img.sectorSize != 0 || off >= img.size {
		return slotlog.Errorf(slotlog.ErrOutOfRange, "erase at %#x", off)
	}
	img.mutex.Lock()
	defer img.mutex.Unlock()

	if _, err := img.file.WriteAt(img.erased, off); err != nil {
		return errors.WithStack(err)
	}
	return nil
}

// ProgramPage ANDs p into the page starting at off.
func (img *Image) ProgramPage(p []byte, off int64) error {
	if int64(len(p)) != img.pageSize || off < 0 || off%img.pageSize != 0 || off+img.pageSize > img.size {
		return slotlog.Errorf(slotlog.ErrOutOfRange, "program of %d bytes at %#x", len(p), off)
	}
	img.mutex.Lock()
	defer img.mutex.Unlock()

	if _, err := img.file.ReadAt(img.page, off); err != nil {
		return errors.WithStack(err)
	}
	for i := range img.page {
		img.page[i] &= p[i]
	}
	if _, err := img.file.WriteAt(img.page, off); err != nil {
		return errors.WithStack(err)
	}
	return nil
}

// Sync commits the image to stable storage.
func (img *Image) Sync() error {
	if err := img.file.Sync(); err != nil {
		return errors.WithStack(err)
	}
	return nil
}

// Close syncs and closes the image.
func (img *Image) Close() error {
	err := img.Sync()
	if cerr := img.file.Close(); err == nil && cerr != nil {
		err = errors.WithStack(cerr)
	}
	return err
}
