// Package bridge maintains one persistent connection to the tool
// subprocess and lets synchronous callers invoke its operations.
//
// One subprocess is reused for the whole process lifetime. All pipe I/O
// happens on a single dispatcher goroutine; callers from any goroutine
// hand their request to the dispatcher and block until the result is
// ready or their deadline passes. Requests are answered strictly one at
// a time, so concurrent callers can never interleave bytes on the pipes.
package bridge

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log"
	"os/exec"
	"sync"
	"time"

	"medichat-backend/internal/jsonrpc"
)

// State is the lifecycle of the client handle. There is no transition
// out of Failed or Closed; the handle is unusable until process restart.
type State int

const (
	StateUninitialized State = iota
	StateConnecting
	StateReady
	StateFailed
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateConnecting:
		return "connecting"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

const (
	handshakeTimeout = 30 * time.Second
	shutdownWait     = 5 * time.Second
)

type callOutcome struct {
	resp *jsonrpc.Response
	err  error
}

type pendingCall struct {
	method       string
	params       interface{}
	notification bool
	reply        chan callOutcome
}

// Client is the persistent bridge to the tool subprocess. Construct it
// once in main and inject it into every caller.
type Client struct {
	command string
	args    []string

	// Env overrides the subprocess environment when non-nil. The
	// subprocess inherits the parent environment otherwise.
	Env []string

	// CallTimeout bounds how long the high-level operations wait for
	// the subprocess before giving up.
	CallTimeout time.Duration

	mu       sync.Mutex
	state    State
	startErr error
	cmd      *exec.Cmd
	stdin    io.WriteCloser
	stdout   io.ReadCloser

	calls chan *pendingCall
	done  chan struct{}
	wg    sync.WaitGroup
}

// NewClient prepares a client for the given subprocess command. Nothing
// is spawned until Start.
func NewClient(command string, args []string, callTimeout time.Duration) *Client {
	return &Client{
		command:     command,
		args:        args,
		CallTimeout: callTimeout,
	}
}

// State returns the current lifecycle state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Ready reports whether calls can be issued.
func (c *Client) Ready() bool {
	return c.State() == StateReady
}

// Start spawns the tool subprocess, starts the dispatcher goroutine and
// performs the initialize handshake. Idempotent: concurrent and repeat
// calls while the connection is alive are no-ops. A spawn or handshake
// failure is returned as a ConnectionError and leaves the handle in the
// Failed state for good.
func (c *Client) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case StateReady:
		return nil
	case StateClosed:
		return &ConnectionError{Reason: "bridge client is closed"}
	case StateFailed:
		return &ConnectionError{Reason: "bridge client failed to start", Err: c.startErr}
	}

	c.state = StateConnecting
	log.Printf("bridge: spawning tool subprocess: %s", c.command)

	cmd := exec.Command(c.command, c.args...)
	if c.Env != nil {
		cmd.Env = c.Env
	}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return c.failLocked("failed to open stdin pipe", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return c.failLocked("failed to open stdout pipe", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return c.failLocked("failed to open stderr pipe", err)
	}
	if err := cmd.Start(); err != nil {
		return c.failLocked("failed to spawn tool subprocess", err)
	}

	c.cmd = cmd
	c.stdin = stdin
	c.stdout = stdout
	c.calls = make(chan *pendingCall)
	c.done = make(chan struct{})

	c.wg.Add(2)
	go c.dispatch()
	go c.readStderr(stderr)

	if err := c.handshake(ctx); err != nil {
		c.startErr = err
		c.state = StateFailed
		close(c.done)
		stdin.Close()
		cmd.Process.Kill()
		go cmd.Wait()
		return &ConnectionError{Reason: "tool subprocess handshake failed", Err: err}
	}

	c.state = StateReady
	log.Printf("bridge: tool subprocess connected (pid %d)", cmd.Process.Pid)
	return nil
}

func (c *Client) failLocked(reason string, err error) error {
	c.state = StateFailed
	c.startErr = err
	return &ConnectionError{Reason: reason, Err: err}
}

func (c *Client) handshake(ctx context.Context) error {
	hctx, cancel := context.WithTimeout(ctx, handshakeTimeout)
	defer cancel()

	params := jsonrpc.InitializeParams{
		ProtocolVersion: jsonrpc.ProtocolVersion,
		Capabilities:    map[string]interface{}{},
		ClientInfo:      jsonrpc.ClientInfo{Name: "medichat-backend", Version: "1.0.0"},
	}
	resp, err := c.roundTrip(hctx, "initialize", params, handshakeTimeout, false)
	if err != nil {
		return err
	}
	if resp.Error != nil {
		return &ToolError{Code: resp.Error.Code, Message: resp.Error.Message, Data: resp.Error.Data}
	}

	_, err = c.roundTrip(hctx, "notifications/initialized", nil, handshakeTimeout, true)
	return err
}

// Call invokes a JSON-RPC method on the subprocess and blocks the
// calling goroutine until the result arrives or timeout elapses. On
// timeout the in-flight operation keeps running on the dispatcher; its
// result is discarded when it eventually lands.
func (c *Client) Call(ctx context.Context, method string, params interface{}, timeout time.Duration) (json.RawMessage, error) {
	c.mu.Lock()
	state, startErr := c.state, c.startErr
	c.mu.Unlock()

	switch state {
	case StateReady:
	case StateClosed:
		return nil, &ConnectionError{Reason: "bridge client is closed"}
	case StateFailed:
		return nil, &ConnectionError{Reason: "bridge client failed to start", Err: startErr}
	default:
		return nil, &ConnectionError{Reason: "bridge client not started"}
	}

	resp, err := c.roundTrip(ctx, method, params, timeout, false)
	if err != nil {
		return nil, err
	}
	if resp.Error != nil {
		return nil, &ToolError{Code: resp.Error.Code, Message: resp.Error.Message, Data: resp.Error.Data}
	}
	return resp.Result, nil
}

// roundTrip hands one call to the dispatcher and waits for its outcome.
func (c *Client) roundTrip(ctx context.Context, method string, params interface{}, timeout time.Duration, notification bool) (*jsonrpc.Response, error) {
	pc := &pendingCall{
		method:       method,
		params:       params,
		notification: notification,
		reply:        make(chan callOutcome, 1),
	}

	var timer *time.Timer
	var deadline <-chan time.Time
	if timeout > 0 {
		timer = time.NewTimer(timeout)
		defer timer.Stop()
		deadline = timer.C
	}

	select {
	case c.calls <- pc:
	case <-c.done:
		return nil, &ConnectionError{Reason: "bridge client is closed"}
	case <-deadline:
		return nil, &TimeoutError{Method: method, After: timeout}
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	select {
	case out := <-pc.reply:
		return out.resp, out.err
	case <-deadline:
		return nil, &TimeoutError{Method: method, After: timeout}
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// dispatch is the background loop. It is the only goroutine that ever
// touches the subprocess pipes: it writes one request, reads until that
// request's response arrives, answers the caller, then takes the next.
func (c *Client) dispatch() {
	defer c.wg.Done()

	scanner := bufio.NewScanner(c.stdout)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)

	var nextID int64
	for {
		select {
		case <-c.done:
			return
		case pc := <-c.calls:
			if pc.notification {
				note, err := jsonrpc.NewNotification(pc.method, pc.params)
				if err == nil {
					err = jsonrpc.WriteMessage(c.stdin, note)
				}
				if err != nil {
					pc.reply <- callOutcome{err: &ConnectionError{Reason: "write to tool subprocess failed", Err: err}}
					continue
				}
				pc.reply <- callOutcome{}
				continue
			}

			nextID++
			req, err := jsonrpc.NewRequest(nextID, pc.method, pc.params)
			if err == nil {
				err = jsonrpc.WriteMessage(c.stdin, req)
			}
			if err != nil {
				pc.reply <- callOutcome{err: &ConnectionError{Reason: "write to tool subprocess failed", Err: err}}
				continue
			}

			resp, err := c.readResponse(scanner, nextID)
			pc.reply <- callOutcome{resp: resp, err: err}
		}
	}
}

// readResponse scans stdout until the response for id arrives. Server
// notifications and responses for abandoned requests are discarded.
func (c *Client) readResponse(scanner *bufio.Scanner, id int64) (*jsonrpc.Response, error) {
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		var resp jsonrpc.Response
		if err := json.Unmarshal(line, &resp); err != nil {
			log.Printf("bridge: skipping unparseable line from tool subprocess: %v", err)
			continue
		}
		if resp.ID == nil {
			// Server-initiated notification; nothing consumes these.
			continue
		}
		if *resp.ID != id {
			log.Printf("bridge: discarding stale response for request %d", *resp.ID)
			continue
		}
		return &resp, nil
	}

	if err := scanner.Err(); err != nil {
		return nil, &ConnectionError{Reason: "read from tool subprocess failed", Err: err}
	}
	return nil, &ConnectionError{Reason: "tool subprocess closed its output"}
}

func (c *Client) readStderr(stderr io.Reader) {
	defer c.wg.Done()
	scanner := bufio.NewScanner(stderr)
	for scanner.Scan() {
		log.Printf("bridge: [toolserver] %s", scanner.Text())
	}
}

// Shutdown closes the subprocess connection and stops the dispatcher.
// Idempotent and safe to call when never started. After Shutdown every
// Call fails with a ConnectionError; nothing hangs.
func (c *Client) Shutdown() error {
	c.mu.Lock()
	if c.state != StateReady {
		c.state = StateClosed
		c.mu.Unlock()
		return nil
	}
	c.state = StateClosed
	cmd := c.cmd
	close(c.done)
	c.stdin.Close()
	c.mu.Unlock()

	log.Println("bridge: closing tool subprocess connection...")

	waitCh := make(chan error, 1)
	go func() { waitCh <- cmd.Wait() }()
	select {
	case <-waitCh:
	case <-time.After(shutdownWait):
		log.Println("bridge: tool subprocess unresponsive, killing it")
		cmd.Process.Kill()
		<-waitCh
	}

	drained := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(drained)
	}()
	select {
	case <-drained:
	case <-time.After(time.Second):
		log.Println("bridge: timeout waiting for dispatcher to exit")
	}

	log.Println("bridge: tool subprocess connection closed")
	return nil
}
