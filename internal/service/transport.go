// Transport implements the local request/response protocol over a Unix
// domain socket: length-delimited JSON, one Envelope per message, a
// 4-byte big-endian length prefix. No framing library is used for this
// shape; the protocol is simple enough that one isn't warranted.
package service

import (
	"bufio"
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"os"
	"sync"

	"go.uber.org/zap"

	"github.com/cortexmap/cortex/internal/cortexerr"
)

const maxEnvelopeBytes = 16 << 20

// connQueueDepth bounds the number of in-flight requests a single
// connection may have queued before new ones are rejected with QueueFull.
const connQueueDepth = 16

type connServer struct {
	app        *App
	socketPath string
	logger     *zap.Logger

	mu       sync.Mutex
	listener net.Listener
	wg       sync.WaitGroup
}

func newConnServer(app *App, socketPath string, logger *zap.Logger) *connServer {
	return &connServer{app: app, socketPath: socketPath, logger: logger}
}

// Serve listens on socketPath until ctx is cancelled.
func (s *connServer) Serve(ctx context.Context) error {
	_ = os.Remove(s.socketPath)

	ln, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.socketPath, err)
	}
	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("accept: %w", err)
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConn(ctx, conn)
		}()
	}
}

// Close stops accepting connections and waits for in-flight ones to drain.
func (s *connServer) Close() {
	s.mu.Lock()
	if s.listener != nil {
		s.listener.Close()
	}
	s.mu.Unlock()
	s.wg.Wait()
	_ = os.Remove(s.socketPath)
}

func (s *connServer) handleConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	reader := bufio.NewReader(conn)
	writeMu := &sync.Mutex{}
	queue := make(chan Envelope, connQueueDepth)
	done := make(chan struct{})

	go func() {
		defer close(done)
		for env := range queue {
			resp := s.dispatch(ctx, env)
			if err := writeEnvelope(conn, writeMu, resp); err != nil {
				s.logger.Debug("write response failed", zapErr(err))
				return
			}
		}
	}()

	for {
		env, err := readEnvelope(reader)
		if err != nil {
			if err != io.EOF {
				s.logger.Debug("read envelope failed", zapErr(err))
			}
			break
		}

		if !tryEnqueue(queue, env) {
			full := queueFullResponse(env)
			if err := writeEnvelope(conn, writeMu, full); err != nil {
				break
			}
		}
	}

	close(queue)
	<-done
}

// tryEnqueue attempts a non-blocking send to queue, reporting whether it
// succeeded; a full queue means the connection has connQueueDepth requests
// already in flight and the caller should reject with QueueFull rather
// than block the read loop.
func tryEnqueue(queue chan Envelope, env Envelope) bool {
	select {
	case queue <- env:
		return true
	default:
		return false
	}
}

func queueFullResponse(env Envelope) Envelope {
	return Envelope{
		ID:     env.ID,
		Method: env.Method,
		Error:  errorPayload(cortexerr.New(cortexerr.CodeQueueFull, "connection request queue is full")),
	}
}

func readEnvelope(r *bufio.Reader) (Envelope, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return Envelope{}, err
	}
	n := binary.BigEndian.Uint32(lenBuf[:])
	if n == 0 || n > maxEnvelopeBytes {
		return Envelope{}, fmt.Errorf("envelope length %d out of bounds", n)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return Envelope{}, err
	}
	var env Envelope
	if err := json.Unmarshal(buf, &env); err != nil {
		return Envelope{}, fmt.Errorf("decode envelope: %w", err)
	}
	return env, nil
}

func writeEnvelope(w io.Writer, mu *sync.Mutex, env Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("encode envelope: %w", err)
	}
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(data)))

	mu.Lock()
	defer mu.Unlock()
	if _, err := w.Write(lenBuf[:]); err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

// dispatch resolves one request Envelope into a response Envelope,
// never returning an error itself: every failure is encoded into the
// response so the connection stays open.
func (s *connServer) dispatch(ctx context.Context, req Envelope) Envelope {
	resp := Envelope{ID: req.ID, Method: req.Method}

	result, err := s.app.handle(ctx, req.Method, req.Params)
	if err != nil {
		resp.Error = errorPayload(err)
		return resp
	}
	raw, err := json.Marshal(result)
	if err != nil {
		resp.Error = errorPayload(cortexerr.Wrap(cortexerr.CodeInternal, "encode result", err))
		return resp
	}
	resp.Result = raw
	return resp
}

// handle decodes params for method and invokes the matching App method.
func (a *App) handle(ctx context.Context, method string, params json.RawMessage) (any, error) {
	switch method {
	case "map":
		var req MapRequest
		if err := decodeParams(params, &req); err != nil {
			return nil, err
		}
		return a.Map(ctx, req)
	case "query":
		var req QueryRequest
		if err := decodeParams(params, &req); err != nil {
			return nil, err
		}
		return a.Query(ctx, req)
	case "pathfind":
		var req PathfindRequest
		if err := decodeParams(params, &req); err != nil {
			return nil, err
		}
		return a.Pathfind(ctx, req)
	case "similar":
		var req SimilarRequest
		if err := decodeParams(params, &req); err != nil {
			return nil, err
		}
		return a.Similar(ctx, req)
	case "status":
		return a.Status(ctx), nil
	default:
		return nil, cortexerr.Newf(cortexerr.CodeUnknownMethod, "unknown method %q", method)
	}
}

func decodeParams(raw json.RawMessage, dst any) error {
	if len(raw) == 0 {
		return nil
	}
	dec := json.NewDecoder(bytesReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return cortexerr.Wrap(cortexerr.CodeInvalidArg, "decode request params", err)
	}
	return nil
}
