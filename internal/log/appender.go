package log

import (
	"io"

	"gopkg.in/natefinch/lumberjack.v2"
)

// MultiWriter fans each write out to all writers; a failing writer does not stop the others.
type MultiWriter struct {
	writers []io.Writer
}

func (m *MultiWriter) Write(p []byte) (n int, err error) {
	for _, w := range m.writers {
		_, e := w.Write(p)
		if e != nil {
			err = e
		}
	}
	return len(p), err
}

func (m *MultiWriter) Add(writer io.Writer) *MultiWriter {
	m.writers = append(m.writers, writer)
	return m
}

func NewMultiWriter() *MultiWriter {
	return &MultiWriter{writers: make([]io.Writer, 0)}
}

type FileAppenderOpt struct {
	Filename   string
	MaxSize    int // megabytes
	MaxBackups int
	MaxAge     int // days
	Compress   bool
}

// AddFileAppender adds a rotating file writer and returns it so the caller can close it.
func (m *MultiWriter) AddFileAppender(options FileAppenderOpt) io.Closer {
	writer := &lumberjack.Logger{
		Filename:   options.Filename,
		MaxSize:    options.MaxSize,
		MaxBackups: options.MaxBackups,
		MaxAge:     options.MaxAge,
		Compress:   options.Compress,
	}
	m.writers = append(m.writers, writer)
	return writer
}
