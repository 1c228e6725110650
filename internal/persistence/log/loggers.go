package log

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"

	"seedsift.ai/internal/oracle"
	"seedsift.ai/internal/protocol"
)

// JSONLZstdWriter appends JSON lines to zstd files under dir named
// <prefix>-<yyyy-mm-dd-hh>-<part>.jsonl.zst. A new part starts every UTC
// hour and, when MaxBytes is positive, once the current part has taken
// MaxBytes of uncompressed lines. Existing parts are never reopened.
type JSONLZstdWriter struct {
	dir    string
	prefix string
	now    func() time.Time

	// MaxBytes bounds the uncompressed size of one part. Zero disables
	// size-based rollover. Set before the first Write.
	MaxBytes int64

	mu      sync.Mutex
	period  string
	part    int
	written int64
	lines   uint64
	file    *os.File
	zw      *zstd.Encoder
	buf     *bufio.Writer
}

func NewJSONLZstdWriter(dir, prefix string) *JSONLZstdWriter {
	return &JSONLZstdWriter{dir: dir, prefix: prefix, now: time.Now}
}

// Lines is the number of lines written since the writer was created.
func (w *JSONLZstdWriter) Lines() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lines
}

func (w *JSONLZstdWriter) Write(v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	b = append(b, '\n')

	w.mu.Lock()
	defer w.mu.Unlock()

	period := w.now().UTC().Format("2006-01-02-15")
	switch {
	case period != w.period:
		if err := w.openLocked(period, w.firstFreePart(period)); err != nil {
			return err
		}
	case w.MaxBytes > 0 && w.written > 0 && w.written+int64(len(b)) > w.MaxBytes:
		if err := w.openLocked(period, w.part+1); err != nil {
			return err
		}
	}

	if _, err := w.buf.Write(b); err != nil {
		return err
	}
	w.written += int64(len(b))
	w.lines++
	// Every line is flushed so that a crash loses at most the line being
	// written.
	return w.buf.Flush()
}

func (w *JSONLZstdWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	err := w.closeLocked()
	w.period = ""
	return err
}

func (w *JSONLZstdWriter) path(period string, part int) string {
	return filepath.Join(w.dir, fmt.Sprintf("%s-%s-%03d.jsonl.zst", w.prefix, period, part))
}

// firstFreePart skips parts left by an earlier process.
func (w *JSONLZstdWriter) firstFreePart(period string) int {
	part := 0
	for {
		if _, err := os.Stat(w.path(period, part)); os.IsNotExist(err) {
			return part
		}
		part++
	}
}

func (w *JSONLZstdWriter) openLocked(period string, part int) error {
	if err := w.closeLocked(); err != nil {
		return err
	}
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(w.path(period, part), os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	zw, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return err
	}
	w.file, w.zw, w.buf = f, zw, bufio.NewWriterSize(zw, 128*1024)
	w.period, w.part, w.written = period, part, 0
	return nil
}

func (w *JSONLZstdWriter) closeLocked() error {
	if w.file == nil {
		return nil
	}
	flushErr := w.buf.Flush()
	zErr := w.zw.Close()
	fErr := w.file.Close()
	w.file, w.zw, w.buf = nil, nil, nil
	return errors.Join(flushErr, zErr, fErr)
}

// HitLogger writes one JSONL entry per matching world (compressed).
type HitLogger struct{ w *JSONLZstdWriter }

func NewHitLogger(searchDir string) *HitLogger {
	return &HitLogger{w: NewJSONLZstdWriter(filepath.Join(searchDir, "hits"), "hits")}
}

func (l *HitLogger) WriteHit(v protocol.HitMsg) error { return l.w.Write(v) }
func (l *HitLogger) Hits() uint64                     { return l.w.Lines() }
func (l *HitLogger) Close() error                     { return l.w.Close() }

// RequestLogger writes one JSONL entry per oracle request (compressed),
// in parts of at most 64 MiB.
type RequestLogger struct{ w *JSONLZstdWriter }

func NewRequestLogger(searchDir string) *RequestLogger {
	w := NewJSONLZstdWriter(filepath.Join(searchDir, "requests"), "requests")
	w.MaxBytes = 64 << 20
	return &RequestLogger{w: w}
}

func (l *RequestLogger) WriteRequest(v oracle.RequestRecord) error { return l.w.Write(v) }
func (l *RequestLogger) Close() error                              { return l.w.Close() }

// ReadJSONL calls fn with every line of a .jsonl.zst file written by
// JSONLZstdWriter.
func ReadJSONL(path string, fn func(line []byte) error) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return err
	}
	defer dec.Close()

	sc := bufio.NewScanner(dec)
	sc.Buffer(make([]byte, 64*1024), 16*1024*1024)
	for sc.Scan() {
		if len(sc.Bytes()) == 0 {
			continue
		}
		if err := fn(sc.Bytes()); err != nil {
			return err
		}
	}
	return sc.Err()
}

// Files lists the parts under dir for prefix, oldest first.
func Files(dir, prefix string) ([]string, error) {
	return filepath.Glob(filepath.Join(dir, prefix+"-*.jsonl.zst"))
}
