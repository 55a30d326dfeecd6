package logstore

import (
	"bufio"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/anthanhphan/go-shard-ring/internal/node/domain"
	"github.com/anthanhphan/go-shard-ring/internal/node/port"
	"github.com/anthanhphan/gosdk/logger"
	"github.com/spaolacci/murmur3"
)

const (
	// DefaultMaxSegmentSize is 16MB
	DefaultMaxSegmentSize = 16 * 1024 * 1024
	SegmentPrefix         = "segment_"
	SegmentSuffix         = ".log"

	maxEntrySize = 1024 * 1024
	headerSize   = 4
	trailerSize  = 4
)

var ErrClosed = errors.New("record log closed")

// Config holds the on-disk log settings.
type Config struct {
	DataDir        string
	FSync          bool
	MaxSegmentSize int64
}

// Store keeps records in segmented append-only log files and serves reads
// from memory. Every segment is replayed on open.
//
// Entry format: Len (4) | JSON record (Len) | Checksum (4, murmur3 of the record)
type Store struct {
	mu             sync.RWMutex
	dirPath        string
	activeFile     *os.File
	activeFileID   uint64
	activeSize     int64
	maxSegmentSize int64
	fsync          bool
	records        []domain.Record
}

// Ensure Store implements port.RecordRepository.
var _ port.RecordRepository = (*Store)(nil)

// Open creates the data directory if needed and replays existing segments.
func Open(cfg Config) (*Store, error) {
	if err := os.MkdirAll(cfg.DataDir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	if cfg.MaxSegmentSize <= 0 {
		cfg.MaxSegmentSize = DefaultMaxSegmentSize
	}

	s := &Store{
		dirPath:        filepath.Clean(cfg.DataDir),
		maxSegmentSize: cfg.MaxSegmentSize,
		fsync:          cfg.FSync,
	}
	if err := s.replayLogs(); err != nil {
		return nil, fmt.Errorf("failed to replay logs: %w", err)
	}
	return s, nil
}

func (s *Store) segmentPath(id uint64) string {
	return filepath.Join(s.dirPath, fmt.Sprintf("%s%05d%s", SegmentPrefix, id, SegmentSuffix))
}

func (s *Store) replayLogs() error {
	matches, err := filepath.Glob(filepath.Join(s.dirPath, SegmentPrefix+"*"+SegmentSuffix))
	if err != nil {
		return err
	}

	var segmentIDs []uint64
	for _, m := range matches {
		var id uint64
		if _, err := fmt.Sscanf(filepath.Base(m), SegmentPrefix+"%d"+SegmentSuffix, &id); err == nil {
			segmentIDs = append(segmentIDs, id)
		}
	}
	sort.Slice(segmentIDs, func(i, j int) bool { return segmentIDs[i] < segmentIDs[j] })

	s.activeFileID = 1
	for _, id := range segmentIDs {
		if err := s.replaySegment(id); err != nil {
			return err
		}
		s.activeFileID = id
	}
	return s.openActiveFile()
}

// replaySegment loads every intact entry of a segment and truncates a torn
// or corrupt tail.
func (s *Store) replaySegment(id uint64) error {
	path := s.segmentPath(id)
	file, err := os.OpenFile(path, os.O_RDWR, 0600) // #nosec G304
	if err != nil {
		return err
	}
	defer func() { _ = file.Close() }()

	reader := bufio.NewReader(file)
	offset := int64(0)
	truncated := false

	for {
		record, size, err := readEntry(reader)
		if err == io.EOF {
			break
		}
		if err != nil {
			logger.Warnw("Unreadable entry in record log", "segment_id", id, "offset", offset, "error", err.Error())
			truncated = true
			break
		}
		s.records = append(s.records, record)
		offset += size
	}

	if truncated {
		if err := file.Truncate(offset); err != nil {
			return fmt.Errorf("failed to truncate partial segment %d: %w", id, err)
		}
		logger.Warnw("Truncated partial segment tail during replay", "segment_id", id, "valid_bytes", offset)
	}
	return nil
}

func readEntry(reader io.Reader) (domain.Record, int64, error) {
	var record domain.Record

	headerBuf := make([]byte, headerSize)
	if _, err := io.ReadFull(reader, headerBuf); err != nil {
		if err == io.EOF {
			return record, 0, io.EOF
		}
		return record, 0, fmt.Errorf("read length: %w", err)
	}
	dataLen := binary.BigEndian.Uint32(headerBuf)
	if dataLen == 0 || dataLen > maxEntrySize {
		return record, 0, fmt.Errorf("entry length %d out of range", dataLen)
	}

	data := make([]byte, dataLen)
	if _, err := io.ReadFull(reader, data); err != nil {
		return record, 0, fmt.Errorf("read record: %w", err)
	}
	checksumBuf := make([]byte, trailerSize)
	if _, err := io.ReadFull(reader, checksumBuf); err != nil {
		return record, 0, fmt.Errorf("read checksum: %w", err)
	}
	if got, want := murmur3.Sum32(data), binary.BigEndian.Uint32(checksumBuf); got != want {
		return record, 0, fmt.Errorf("checksum mismatch: got %08x want %08x", got, want)
	}
	if err := json.Unmarshal(data, &record); err != nil {
		return record, 0, fmt.Errorf("decode record: %w", err)
	}
	return record, int64(headerSize) + int64(dataLen) + int64(trailerSize), nil
}

func encodeEntry(record domain.Record) ([]byte, error) {
	data, err := json.Marshal(record)
	if err != nil {
		return nil, err
	}
	if len(data) > maxEntrySize {
		return nil, fmt.Errorf("record of %d bytes exceeds entry limit", len(data))
	}

	buf := make([]byte, headerSize+len(data)+trailerSize)
	binary.BigEndian.PutUint32(buf[:headerSize], uint32(len(data))) // #nosec G115
	copy(buf[headerSize:], data)
	binary.BigEndian.PutUint32(buf[headerSize+len(data):], murmur3.Sum32(data))
	return buf, nil
}

func (s *Store) openActiveFile() error {
	// G304: path is built from the data dir and segment ID
	file, err := os.OpenFile(s.segmentPath(s.activeFileID), os.O_RDWR|os.O_CREATE, 0600) // #nosec G304
	if err != nil {
		return err
	}
	size, err := file.Seek(0, io.SeekEnd)
	if err != nil {
		_ = file.Close()
		return err
	}
	s.activeFile = file
	s.activeSize = size
	return nil
}

func (s *Store) Insert(_ context.Context, record domain.Record) error {
	entry, err := encodeEntry(record)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.activeFile == nil {
		return ErrClosed
	}
	if s.activeSize > 0 && s.activeSize+int64(len(entry)) > s.maxSegmentSize {
		if err := s.rotateLocked(); err != nil {
			return fmt.Errorf("rotate segment: %w", err)
		}
	}

	n, err := s.activeFile.Write(entry)
	if err != nil {
		// Drop the partial write so the next replay does not stop here.
		if terr := s.activeFile.Truncate(s.activeSize); terr == nil {
			_, _ = s.activeFile.Seek(s.activeSize, io.SeekStart)
		}
		return fmt.Errorf("append to segment %d: %w", s.activeFileID, err)
	}
	s.activeSize += int64(n)

	if s.fsync {
		if err := s.activeFile.Sync(); err != nil {
			return fmt.Errorf("sync segment %d: %w", s.activeFileID, err)
		}
	}

	s.records = append(s.records, record)
	return nil
}

func (s *Store) rotateLocked() error {
	if err := s.activeFile.Sync(); err != nil {
		return err
	}
	if err := s.activeFile.Close(); err != nil {
		return err
	}
	s.activeFileID++
	logger.Debugw("Rotating record log segment", "segment_id", s.activeFileID)
	return s.openActiveFile()
}

func (s *Store) List(_ context.Context) ([]domain.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.activeFile == nil {
		return nil, ErrClosed
	}
	out := make([]domain.Record, len(s.records))
	copy(out, s.records)
	return out, nil
}

func (s *Store) Ping(context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.activeFile == nil {
		return ErrClosed
	}
	return nil
}

// Close syncs and closes the active segment.
func (s *Store) Close(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.activeFile == nil {
		return nil
	}
	file := s.activeFile
	s.activeFile = nil
	if err := file.Sync(); err != nil {
		_ = file.Close()
		return err
	}
	return file.Close()
}
