package fileops

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
)

// movieHashChunkSize is read from both the head and the tail of the video.
const movieHashChunkSize = 64 * 1024

func sumChunk(buf []byte) (sum uint64) {
	for i := 0; i+8 <= len(buf); i += 8 {
		sum += binary.LittleEndian.Uint64(buf[i : i+8])
	}
	return
}

// MovieHash computes the OpenSubtitles moviehash of a video file: the file
// size plus the little-endian uint64 sums of its first and last 64 KiB.
func MovieHash(filePath string) (string, int64, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return "", 0, fmt.Errorf("failed to open video '%s': %w", filePath, err)
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		return "", 0, fmt.Errorf("failed to stat video '%s': %w", filePath, err)
	}
	size := stat.Size()
	if size < movieHashChunkSize*2 {
		return "", size, fmt.Errorf("video '%s' is too small to hash (size: %d)", filePath, size)
	}

	head := make([]byte, movieHashChunkSize)
	if _, err := io.ReadFull(file, head); err != nil {
		return "", size, fmt.Errorf("failed to read head of '%s': %w", filePath, err)
	}
	tail := make([]byte, movieHashChunkSize)
	if _, err := file.ReadAt(tail, size-movieHashChunkSize); err != nil {
		return "", size, fmt.Errorf("failed to read tail of '%s': %w", filePath, err)
	}

	return fmt.Sprintf("%016x", uint64(size)+sumChunk(head)+sumChunk(tail)), size, nil
}
