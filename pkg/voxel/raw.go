package voxel

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
)

// Raw image files hold one little-endian float32 per voxel in the
// repo-wide index order, with no header; the geometry travels
// separately in the configuration. This matches the layout written by
// the upstream reconstruction tools this package interoperates with.

// FromRawBytes decodes a raw image, checking that the payload matches
// the expected grid exactly.
func FromRawBytes(data []byte, fov FOV) (*Image, error) {
	want := 4 * fov.Len()
	if len(data) != want {
		return nil, fmt.Errorf("raw image has %d bytes, %s wants %d (%d voxels)",
			len(data), fov, want, fov.Len())
	}
	im := Zeros(fov)
	for i := range im.data {
		bits := binary.LittleEndian.Uint32(data[4*i:])
		im.data[i] = float64(math.Float32frombits(bits))
	}
	return im, nil
}

// FromRawFile loads a raw image from disk.
func FromRawFile(path string, fov FOV) (*Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read raw image: %w", err)
	}
	im, err := FromRawBytes(data, fov)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return im, nil
}

// WriteRaw streams the image as little-endian float32 values.
func (im *Image) WriteRaw(w io.Writer) error {
	bw := bufio.NewWriter(w)
	var buf [4]byte
	for _, v := range im.data {
		binary.LittleEndian.PutUint32(buf[:], math.Float32bits(float32(v)))
		if _, err := bw.Write(buf[:]); err != nil {
			return fmt.Errorf("write raw image: %w", err)
		}
	}
	return bw.Flush()
}

// WriteRawFile saves the image to disk, creating the file or truncating
// an existing one.
func (im *Image) WriteRawFile(path string) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create raw image file: %w", err)
	}
	defer file.Close()

	return im.WriteRaw(file)
}
