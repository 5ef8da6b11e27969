package dispatch

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sys/unix"
	"golang.org/x/time/rate"

	"github.com/armorclaw/assetstore/internal/assettype"
	"github.com/armorclaw/assetstore/internal/logging"
	"github.com/armorclaw/assetstore/internal/record"
)

// Wire frame, request direction:
//
//	u32 tokenLen | token bytes | u32 op | u32 mapCount | mapCount x (u32 len | map bytes)
//
// Wire frame, reply direction:
//
//	u32 status | (status==0: u32 mapCount | mapCount x (u32 len | map bytes) | u32 challengeLen |
//	                         challenge bytes | u32 syncPresent | syncPresent==1: u32 totalCount |
//	                         u32 failedCount | u32 lastSyncTimeLen | lastSyncTime bytes)
//	            | (status!=0: u32 msgLen | msg bytes)
//
// This is the Go rendering of §4.8's "interface-token string, then serialized
// request map(s)... u32 status... payload follows" parcel, built on the
// vector-of-maps codec (internal/assettype) instead of a generic RPC envelope.
const (
	defaultMaxConnections    = 100
	defaultConnectionTimeout = 5 * time.Minute
	defaultRateLimit         = 50.0
	defaultRateBurst         = 50
)

var (
	// ErrServerClosed is returned by Serve after Close.
	ErrServerClosed = errors.New("dispatch: server closed")
)

// UnloadSignal is how the transport tells its host process it has been idle for
// DelayedUnloadSeconds with no in-flight request (§4.8's AutoCounter==0 unload).
// Production wiring maps this to whatever the host's service-manager SDK exposes;
// tests only need to observe that it fires.
type UnloadSignal interface {
	RequestUnload()
}

// Server is a Unix-domain-socket transport for Router, grounded on the teacher's
// pkg/socket accept loop (per-connection deadline, connection cap, token-bucket
// rate limit via golang.org/x/time/rate) reduced to this service's fixed binary
// frame instead of JSON-RPC.
type Server struct {
	socketPath string
	router     *Router
	unload     UnloadSignal

	listener net.Listener
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup

	mu                sync.Mutex
	activeConnections int
	inFlight          int
	idleTimer         *time.Timer

	rateLimiter *rate.Limiter
	log         *slog.Logger
}

// NewServer builds a Server listening on socketPath once Serve is called.
func NewServer(socketPath string, router *Router, unload UnloadSignal) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		socketPath:  socketPath,
		router:      router,
		unload:      unload,
		ctx:         ctx,
		cancel:      cancel,
		rateLimiter: rate.NewLimiter(rate.Limit(defaultRateLimit), defaultRateBurst),
		log:         logging.For("dispatch"),
	}
}

// Serve creates the socket directory and listener and accepts connections until
// Close is called.
func (s *Server) Serve() error {
	if err := os.MkdirAll(filepath.Dir(s.socketPath), 0o750); err != nil {
		return fmt.Errorf("create socket directory: %w", err)
	}
	os.Remove(s.socketPath)

	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("listen on socket: %w", err)
	}
	if err := os.Chmod(s.socketPath, 0o660); err != nil {
		listener.Close()
		return fmt.Errorf("chmod socket: %w", err)
	}
	s.listener = listener
	s.armIdleTimer()

	for {
		conn, err := listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return ErrServerClosed
			}
			s.log.Warn("accept failed", "error", err)
			continue
		}

		s.mu.Lock()
		if s.activeConnections >= defaultMaxConnections || !s.rateLimiter.Allow() {
			s.mu.Unlock()
			conn.Close()
			continue
		}
		s.activeConnections++
		s.mu.Unlock()

		s.wg.Add(1)
		go s.handleConnection(conn)
	}
}

// Close stops accepting connections and waits for in-flight handlers to drain.
func (s *Server) Close() error {
	s.cancel()
	var err error
	if s.listener != nil {
		err = s.listener.Close()
	}
	s.wg.Wait()
	os.Remove(s.socketPath)
	return err
}

func (s *Server) handleConnection(conn net.Conn) {
	defer s.wg.Done()
	defer func() {
		conn.Close()
		s.mu.Lock()
		s.activeConnections--
		s.mu.Unlock()
	}()

	callingUID, err := peerUID(conn)
	if err != nil {
		s.log.Warn("peer credential lookup failed", "error", err)
		return
	}

	r := bufio.NewReader(conn)
	for {
		if err := conn.SetDeadline(time.Now().Add(defaultConnectionTimeout)); err != nil {
			return
		}
		req, err := readRequest(r)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return
			}
			s.log.Warn("frame decode failed", "error", err)
			return
		}
		req.CallingUID = callingUID

		traceID := uuid.NewString()
		reqLog := logging.WithTrace(s.log, traceID)
		reqCtx := logging.IntoContext(s.ctx, reqLog)

		s.beginRequest()
		reply := s.router.Handle(reqCtx, req)
		s.endRequest()

		if reply.Code != 0 {
			reqLog.Warn("request failed", "op", req.Op, "code", reply.Code, "msg", reply.Msg)
		}

		if err := writeReply(conn, reply); err != nil {
			return
		}
	}
}

func (s *Server) beginRequest() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inFlight++
	if s.idleTimer != nil {
		s.idleTimer.Stop()
	}
}

func (s *Server) endRequest() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inFlight--
	if s.inFlight == 0 {
		s.armIdleTimerLocked()
	}
}

func (s *Server) armIdleTimer() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.armIdleTimerLocked()
}

func (s *Server) armIdleTimerLocked() {
	if s.unload == nil {
		return
	}
	s.idleTimer = time.AfterFunc(DelayedUnloadSeconds*time.Second, func() {
		s.mu.Lock()
		idle := s.inFlight == 0
		s.mu.Unlock()
		if idle {
			s.unload.RequestUnload()
		}
	})
}

// peerUID returns the kernel-verified uid of the process on the other end of conn,
// via SO_PEERCRED on a Unix domain socket. This is the trust boundary §6.1's
// GetCallingUid() sits on: the wire frame itself never carries a caller-supplied
// uid, since a client could simply lie about it. Non-Unix conns (tests dialing a
// net.Pipe, for instance) report uid 0.
func peerUID(conn net.Conn) (uint64, error) {
	uc, ok := conn.(*net.UnixConn)
	if !ok {
		return 0, nil
	}
	raw, err := uc.SyscallConn()
	if err != nil {
		return 0, fmt.Errorf("syscall conn: %w", err)
	}
	var cred *unix.Ucred
	var credErr error
	if err := raw.Control(func(fd uintptr) {
		cred, credErr = unix.GetsockoptUcred(int(fd), unix.SOL_SOCKET, unix.SO_PEERCRED)
	}); err != nil {
		return 0, fmt.Errorf("control: %w", err)
	}
	if credErr != nil {
		return 0, fmt.Errorf("getsockopt SO_PEERCRED: %w", credErr)
	}
	return uint64(cred.Uid), nil
}

func readU32(r io.Reader) (uint32, error) {
	var buf [4]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(buf[:]), nil
}

func writeU32(w io.Writer, v uint32) error {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	_, err := w.Write(buf[:])
	return err
}

func readLenPrefixed(r io.Reader) ([]byte, error) {
	n, err := readU32(r)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

func writeLenPrefixed(w io.Writer, b []byte) error {
	if err := writeU32(w, uint32(len(b))); err != nil {
		return err
	}
	_, err := w.Write(b)
	return err
}

func readRequest(r io.Reader) (Request, error) {
	tokenBytes, err := readLenPrefixed(r)
	if err != nil {
		return Request{}, err
	}
	if string(tokenBytes) != InterfaceToken {
		return Request{}, fmt.Errorf("unexpected interface token %q", tokenBytes)
	}
	op, err := readU32(r)
	if err != nil {
		return Request{}, err
	}
	count, err := readU32(r)
	if err != nil {
		return Request{}, err
	}
	params := make([]assettype.AttributeMap, 0, count)
	for i := uint32(0); i < count; i++ {
		mapBytes, err := readLenPrefixed(r)
		if err != nil {
			return Request{}, err
		}
		m, _, err := assettype.Decode(mapBytes)
		if err != nil {
			return Request{}, err
		}
		params = append(params, m)
	}
	return Request{Op: Op(op), Params: params}, nil
}

func writeReply(w io.Writer, reply Reply) error {
	if err := writeU32(w, uint32(reply.Code)); err != nil {
		return err
	}
	if reply.Code != 0 {
		return writeLenPrefixed(w, []byte(reply.Msg))
	}
	if err := writeU32(w, uint32(len(reply.Maps))); err != nil {
		return err
	}
	for _, m := range reply.Maps {
		enc, err := assettype.Encode(m)
		if err != nil {
			return err
		}
		if err := writeLenPrefixed(w, enc); err != nil {
			return err
		}
	}
	if err := writeLenPrefixed(w, reply.Challenge); err != nil {
		return err
	}
	return writeSyncResult(w, reply.Sync)
}

func writeSyncResult(w io.Writer, sync *record.SyncResult) error {
	if sync == nil {
		return writeU32(w, 0)
	}
	if err := writeU32(w, 1); err != nil {
		return err
	}
	if err := writeU32(w, sync.TotalCount); err != nil {
		return err
	}
	if err := writeU32(w, sync.FailedCount); err != nil {
		return err
	}
	return writeLenPrefixed(w, sync.LastSyncTime)
}
