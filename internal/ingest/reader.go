// Package ingest reads newline-delimited records on a background goroutine
// and hands the lines to the engine's goroutine over a channel.
package ingest

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const (
	// maxLineBytes bounds a single record line by default.
	maxLineBytes = 4 << 20
	readBuffer   = 64 * 1024

	defaultBuffer       = 1024
	defaultPollInterval = time.Second
)

// Stdin is the path that selects standard input.
const Stdin = "-"

type Options struct {
	// Path of the record file, or Stdin.
	Path string
	// Follow keeps reading as the file grows.
	Follow bool
	// PollInterval re-checks the file when no change event arrives.
	PollInterval time.Duration
	// Buffer is the channel capacity.
	Buffer int
	// MaxLineBytes drops longer lines; zero means 4 MiB.
	MaxLineBytes int
	Logger       *zap.Logger
}

// Reader is the single producer of lines; the engine's goroutine is the
// single consumer.
type Reader struct {
	lines chan string
	done  chan struct{}
	err   error
}

// Open starts reading. stdin is used when opts.Path is Stdin.
func Open(ctx context.Context, opts Options, stdin io.Reader) (*Reader, error) {
	if opts.Buffer <= 0 {
		opts.Buffer = defaultBuffer
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = defaultPollInterval
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.MaxLineBytes <= 0 {
		opts.MaxLineBytes = maxLineBytes
	}

	r := &Reader{lines: make(chan string, opts.Buffer), done: make(chan struct{})}

	if opts.Path == "" || opts.Path == Stdin {
		go r.run(func() error { return scan(ctx, stdin, opts, r.lines) })
		return r, nil
	}

	f, err := os.Open(opts.Path)
	if err != nil {
		return nil, fmt.Errorf("open records: %w", err)
	}
	if !opts.Follow {
		go r.run(func() error {
			defer f.Close()
			return scan(ctx, f, opts, r.lines)
		})
		return r, nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("watch records: %w", err)
	}
	if err := watcher.Add(opts.Path); err != nil {
		watcher.Close()
		f.Close()
		return nil, fmt.Errorf("watch %s: %w", opts.Path, err)
	}
	go r.run(func() error {
		defer f.Close()
		defer watcher.Close()
		return follow(ctx, f, watcher, opts, r.lines)
	})
	return r, nil
}

func (r *Reader) run(fn func() error) {
	defer close(r.done)
	defer close(r.lines)
	if err := fn(); err != nil && !errors.Is(err, context.Canceled) {
		r.err = err
	}
}

// Lines is closed when the input ends, fails or the context is cancelled.
func (r *Reader) Lines() <-chan string { return r.lines }

// Err is the reason reading stopped, once Lines is closed.
func (r *Reader) Err() error {
	<-r.done
	return r.err
}

func send(ctx context.Context, out chan<- string, line string) error {
	if strings.TrimSpace(line) == "" {
		return nil
	}
	select {
	case out <- line:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func scan(ctx context.Context, in io.Reader, opts Options, out chan<- string) error {
	br := bufio.NewReaderSize(in, readBuffer)
	ls := lineSplitter{limit: opts.MaxLineBytes}
	for {
		chunk, err := br.ReadSlice('\n')
		switch {
		case err == nil:
			if err := ls.deliver(ctx, chunk, true, opts.Logger, out); err != nil {
				return err
			}
		case errors.Is(err, bufio.ErrBufferFull):
			ls.push(chunk, false)
		case errors.Is(err, io.EOF):
			return ls.deliver(ctx, chunk, true, opts.Logger, out)
		default:
			return fmt.Errorf("read records: %w", err)
		}
	}
}

// follow reads complete lines as they are appended. A trailing partial line
// is held back until its newline arrives.
func follow(ctx context.Context, f *os.File, watcher *fsnotify.Watcher, opts Options, out chan<- string) error {
	br := bufio.NewReaderSize(f, readBuffer)
	ls := lineSplitter{limit: opts.MaxLineBytes}
	ticker := time.NewTicker(opts.PollInterval)
	defer ticker.Stop()

	for {
	read:
		for {
			chunk, err := br.ReadSlice('\n')
			switch {
			case err == nil:
				if err := ls.deliver(ctx, chunk, true, opts.Logger, out); err != nil {
					return err
				}
			case errors.Is(err, bufio.ErrBufferFull):
				ls.push(chunk, false)
			case errors.Is(err, io.EOF):
				ls.push(chunk, false)
				break read
			default:
				return fmt.Errorf("read records: %w", err)
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename) {
				opts.Logger.Warn("record file moved away, still reading the open file", zap.String("path", ev.Name))
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			opts.Logger.Warn("file watch error", zap.Error(err))
		case <-ticker.C:
		}
	}
}

// lineSplitter joins the chunks of one line. Lines longer than limit are
// counted but not kept.
type lineSplitter struct {
	limit    int
	buf      []byte
	size     int
	oversize bool
}

// push adds chunk to the current line. When done, the line is finished and
// returned with its line ending removed; ok is false and dropped holds the
// line's size when it exceeded the limit.
func (l *lineSplitter) push(chunk []byte, done bool) (line string, ok bool, dropped int) {
	l.size += len(chunk)
	if !l.oversize {
		l.buf = append(l.buf, chunk...)
		// "\r\n" does not count against the limit
		if len(l.buf) > l.limit+2 {
			l.oversize = true
			l.buf = l.buf[:0]
		}
	}
	if !done {
		return "", false, 0
	}
	size, oversize := l.size, l.oversize
	text := strings.TrimRight(string(l.buf), "\r\n")
	l.buf, l.size, l.oversize = l.buf[:0], 0, false
	if oversize || len(text) > l.limit {
		return "", false, size
	}
	return text, true, 0
}

func (l *lineSplitter) deliver(ctx context.Context, chunk []byte, done bool, log *zap.Logger, out chan<- string) error {
	line, ok, dropped := l.push(chunk, done)
	if dropped > 0 {
		log.Warn("dropped oversized record line", zap.Int("bytes", dropped), zap.Int("limit", l.limit))
		return nil
	}
	if !ok {
		return nil
	}
	return send(ctx, out, line)
}

// Drain collects first and whatever else is already queued, up to limit lines,
// without blocking.
func Drain(first string, ch <-chan string, limit int) []string {
	batch := []string{first}
	for len(batch) < limit {
		select {
		case line, ok := <-ch:
			if !ok {
				return batch
			}
			batch = append(batch, line)
		default:
			return batch
		}
	}
	return batch
}
