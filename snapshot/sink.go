package snapshot

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
)

// sink receives decoded chunk bytes in order. Streaming sinks push each
// write to disk immediately; buffering sinks hold everything for a
// post-processing finalizer.
type sink interface {
	write(p []byte) error
	// finalize ends the stream. Buffering sinks return the assembled bytes;
	// streaming sinks return nil because the data is already on disk.
	finalize() ([]byte, error)
	// close releases resources without discarding data already written.
	close() error
}

// fileSink streams chunks straight into the payload's workspace file so a
// multi-gigabyte DOM never has to fit in memory.
type fileSink struct {
	f *os.File
	w *bufio.Writer
}

func newFileSink(path string) (*fileSink, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return nil, fmt.Errorf("open payload file: %w", err)
	}
	return &fileSink{f: f, w: bufio.NewWriterSize(f, 64<<10)}, nil
}

func (s *fileSink) write(p []byte) error {
	_, err := s.w.Write(p)
	return err
}

func (s *fileSink) finalize() ([]byte, error) {
	if err := s.w.Flush(); err != nil {
		s.f.Close()
		return nil, fmt.Errorf("flush payload file: %w", err)
	}
	if err := s.f.Close(); err != nil {
		return nil, fmt.Errorf("close payload file: %w", err)
	}
	return nil, nil
}

func (s *fileSink) close() error {
	// Partial writes stay on disk for inspection.
	s.w.Flush()
	return s.f.Close()
}

// bufferSink accumulates chunk bytes in memory for payload types whose
// finalizers need the complete document.
type bufferSink struct {
	buf bytes.Buffer
}

func (s *bufferSink) write(p []byte) error {
	_, err := s.buf.Write(p)
	return err
}

func (s *bufferSink) finalize() ([]byte, error) {
	return s.buf.Bytes(), nil
}

func (s *bufferSink) close() error { return nil }
