package transport

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"sync"

	"github.com/sourcegraph/jsonrpc2"
)

// StreamPort frames messages over a byte stream with Content-Length
// headers, the framing language servers use on stdio.
type StreamPort struct {
	stream jsonrpc2.ObjectStream

	mu     sync.Mutex
	closed bool
	once   sync.Once
}

func NewStreamPort(rwc io.ReadWriteCloser) *StreamPort {
	return &StreamPort{
		stream: jsonrpc2.NewBufferedStream(rwc, jsonrpc2.VSCodeObjectCodec{}),
	}
}

func (p *StreamPort) Post(msg []byte) error {
	if p.isClosed() {
		return ErrClosed
	}
	return p.stream.WriteObject(json.RawMessage(msg))
}

func (p *StreamPort) Listen(handler func([]byte)) {
	p.once.Do(func() {
		go p.read(handler)
	})
}

func (p *StreamPort) read(handler func([]byte)) {
	for {
		var msg json.RawMessage
		if err := p.stream.ReadObject(&msg); err != nil {
			if !p.isClosed() && !errors.Is(err, io.EOF) {
				log.Errorf("read message: %s", err)
			}
			return
		}
		handler(msg)
	}
}

func (p *StreamPort) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()
	return p.stream.Close()
}

func (p *StreamPort) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// ProcessPort runs a language server as a child process and talks to it
// over its stdin and stdout.
type ProcessPort struct {
	*StreamPort
	cmd    *exec.Cmd
	cancel context.CancelFunc
}

// StartProcess starts command in dir. Its stderr is copied to the log.
func StartProcess(ctx context.Context, command []string, dir string) (*ProcessPort, error) {
	if len(command) == 0 {
		return nil, errors.New("start language server: empty command")
	}
	path, err := exec.LookPath(command[0])
	if err != nil {
		return nil, fmt.Errorf("start language server: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	cmd := exec.CommandContext(ctx, path, command[1:]...)
	cmd.Dir = dir

	stdin, err := cmd.StdinPipe()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		cancel()
		return nil, fmt.Errorf("start process: %w", err)
	}
	log.Infof("started language server %s (pid %d)", path, cmd.Process.Pid)

	go func() {
		scanner := bufio.NewScanner(stderr)
		for scanner.Scan() {
			log.Debugf("[%s] %s", command[0], scanner.Text())
		}
	}()

	return &ProcessPort{
		StreamPort: NewStreamPort(stdio{ReadCloser: stdout, WriteCloser: stdin}),
		cmd:        cmd,
		cancel:     cancel,
	}, nil
}

// Close closes the pipes, stops the process and waits for it to exit.
func (p *ProcessPort) Close() error {
	err := p.StreamPort.Close()
	p.cancel()
	if waitErr := p.cmd.Wait(); waitErr != nil && err == nil {
		var exitErr *exec.ExitError
		if !errors.As(waitErr, &exitErr) {
			err = waitErr
		}
	}
	return err
}

type stdio struct {
	io.ReadCloser
	io.WriteCloser
}

func (s stdio) Close() error {
	werr := s.WriteCloser.Close()
	rerr := s.ReadCloser.Close()
	if werr != nil {
		return werr
	}
	return rerr
}
