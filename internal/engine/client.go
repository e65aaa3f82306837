package engine

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"dsadojo/internal/telemetry"
)

// Client drives one engine subprocess over line-delimited JSON. Calls are
// correlated by request id, so several operations may be in flight at once
// even though the engine itself answers sequentially.
type Client struct {
	command []string
	cmd     *exec.Cmd
	stdin   io.WriteCloser
	log     *telemetry.JSONLogger

	writeMu sync.Mutex

	mu      sync.Mutex
	pending map[string]chan response
	closed  bool

	done chan struct{}
}

func StartClient(command []string, log *telemetry.JSONLogger) (*Client, error) {
	if len(command) == 0 {
		return nil, errors.New("engine command is empty")
	}

	cmd := exec.Command(command[0], command[1:]...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, err
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start engine %q: %w", command[0], err)
	}

	c := &Client{
		command: command,
		cmd:     cmd,
		stdin:   stdin,
		log:     log,
		pending: make(map[string]chan response),
		done:    make(chan struct{}),
	}

	go c.readLoop(stdout)
	go c.drainStderr(stderr)
	return c, nil
}

func (c *Client) readLoop(stdout io.Reader) {
	defer func() {
		c.mu.Lock()
		for id, ch := range c.pending {
			close(ch)
			delete(c.pending, id)
		}
		c.mu.Unlock()
		_ = c.cmd.Wait()
		close(c.done)
	}()

	r := bufio.NewReaderSize(stdout, 64*1024)
	for {
		line, err := r.ReadString('\n')
		if line = strings.TrimSpace(line); line != "" {
			var resp response
			if jerr := json.Unmarshal([]byte(line), &resp); jerr != nil {
				c.log.Error("engine sent unparsable line", map[string]any{"err": jerr.Error()})
			} else {
				c.dispatch(resp)
			}
		}
		if err != nil {
			return
		}
	}
}

func (c *Client) dispatch(resp response) {
	c.mu.Lock()
	ch, ok := c.pending[resp.ID]
	if ok {
		delete(c.pending, resp.ID)
	}
	c.mu.Unlock()
	if !ok {
		c.log.Debug("engine response without a waiter", map[string]any{"id": resp.ID})
		return
	}
	ch <- resp
}

func (c *Client) drainStderr(stderr io.Reader) {
	sc := bufio.NewScanner(stderr)
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			c.log.Debug("engine stderr", map[string]any{"line": line})
		}
	}
}

func (c *Client) call(ctx context.Context, req request) (response, error) {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	ch := make(chan response, 1)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return response{}, errors.New("engine client is closed")
	}
	c.pending[req.ID] = ch
	c.mu.Unlock()

	payload, err := json.Marshal(req)
	if err != nil {
		c.forget(req.ID)
		return response{}, err
	}

	c.writeMu.Lock()
	_, err = c.stdin.Write(append(payload, '\n'))
	c.writeMu.Unlock()
	if err != nil {
		c.forget(req.ID)
		return response{}, fmt.Errorf("write to engine: %w", err)
	}

	select {
	case <-ctx.Done():
		c.forget(req.ID)
		return response{}, ctx.Err()
	case resp, ok := <-ch:
		if !ok {
			return response{}, errors.New("engine exited before responding")
		}
		return resp, nil
	}
}

func (c *Client) forget(id string) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

func (c *Client) Ping(ctx context.Context) error {
	resp, err := c.call(ctx, request{Action: actionPing})
	if err != nil {
		return err
	}
	if !resp.Success {
		return fmt.Errorf("engine ping failed: %s", resp.Error)
	}
	return nil
}

func (c *Client) Version(ctx context.Context) (string, error) {
	resp, err := c.call(ctx, request{Action: actionVersion})
	if err != nil {
		return "", err
	}
	if !resp.Success {
		return "", fmt.Errorf("engine version failed: %s", resp.Error)
	}
	var v string
	if err := json.Unmarshal(resp.Data, &v); err != nil {
		return "", fmt.Errorf("decode engine version: %w", err)
	}
	return v, nil
}

func (c *Client) EnvCheck(ctx context.Context) error {
	resp, err := c.call(ctx, request{Action: actionEnvCheck})
	if err != nil {
		return err
	}
	if !resp.Success {
		return errors.New(resp.Error)
	}
	return nil
}

func (c *Client) Judge(ctx context.Context, jr JudgeRequest) (JudgeResponse, error) {
	resp, err := c.call(ctx, request{Action: actionJudge, Request: &jr})
	if err != nil {
		return JudgeResponse{}, err
	}
	if !resp.Success {
		return JudgeResponse{}, fmt.Errorf("judge failed: %s", resp.Error)
	}
	var out JudgeResponse
	if err := json.Unmarshal(resp.Data, &out); err != nil {
		return JudgeResponse{}, fmt.Errorf("decode judge response: %w", err)
	}
	return out, nil
}

func (c *Client) Compile(ctx context.Context, files []CodeFile, language string) (CompileResult, error) {
	resp, err := c.call(ctx, request{Action: actionExecute, Language: language, Files: files})
	if err != nil {
		return CompileResult{}, err
	}
	if !resp.Success {
		return CompileResult{}, errors.New(resp.Error)
	}
	var out CompileResult
	if err := json.Unmarshal(resp.Data, &out); err != nil {
		return CompileResult{}, fmt.Errorf("decode compile result: %w", err)
	}
	return out, nil
}

// Close asks the engine to exit by closing its stdin, then kills it if it
// lingers. Safe to call more than once.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		<-c.done
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	_ = c.stdin.Close()
	select {
	case <-c.done:
	case <-time.After(2 * time.Second):
		if c.cmd.Process != nil {
			_ = c.cmd.Process.Kill()
		}
		<-c.done
	}
	return nil
}
