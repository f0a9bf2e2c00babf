//go:build unix

package checkpoint

import (
	"io"
	"os"

	"golang.org/x/sys/unix"
)

// openData prefers mmap for zero-copy tensor slices and falls back to a
// full read when the mapping fails.
func openData(path string) ([]byte, bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, false, err
	}
	defer func() { _ = f.Close() }()

	stat, err := f.Stat()
	if err != nil {
		return nil, false, err
	}
	size64 := stat.Size()
	if size64 < 0 || size64 > int64(int(^uint(0)>>1)) {
		return nil, false, errFileTooLarge
	}
	size := int(size64)
	if size == 0 {
		return []byte{}, false, nil
	}

	data, err := unix.Mmap(int(f.Fd()), 0, size, unix.PROT_READ, unix.MAP_SHARED)
	if err == nil {
		return data, true, nil
	}

	buf := make([]byte, size)
	if _, err := io.ReadFull(io.NewSectionReader(f, 0, size64), buf); err != nil {
		return nil, false, err
	}
	return buf, false, nil
}

func closeData(data []byte, mmapped bool) error {
	if mmapped && len(data) > 0 {
		return unix.Munmap(data)
	}
	return nil
}
