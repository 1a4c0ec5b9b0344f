package utils

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
)

const (
	defaultReadTimeout  = 60 * time.Second
	defaultWriteTimeout = defaultReadTimeout
	drainTimeout        = 30 * time.Second

	gracefulEnvKey   = "IS_GRACEFUL"
	gracefulEnvValue = gracefulEnvKey + "=1"
	// inherited listener fd after stdin, stdout and stderr
	gracefulListenerFD = 3
)

// Server is an http.Server that drains on SIGTERM/SIGINT and hands its
// listener to a freshly exec'd copy of the binary on SIGUSR2.
type Server struct {
	*http.Server

	log      *zap.Logger
	listener net.Listener
	signals  chan os.Signal
	done     chan struct{}
}

// NewServer creates a Server for handler on addr.
func NewServer(addr string, handler http.Handler, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{
		Server: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadTimeout:       defaultReadTimeout,
			ReadHeaderTimeout: 10 * time.Second,
			WriteTimeout:      defaultWriteTimeout,
		},
		log:     log,
		signals: make(chan os.Signal, 1),
		done:    make(chan struct{}),
	}
}

// ListenAndServe serves until the server is drained by a signal.
func (srv *Server) ListenAndServe() error {
	ln, err := srv.listen()
	if err != nil {
		return err
	}
	srv.listener = ln

	signal.Notify(srv.signals, syscall.SIGTERM, syscall.SIGINT, syscall.SIGUSR2)
	go srv.handleSignals()

	err = srv.Server.Serve(ln)
	if errors.Is(err, http.ErrServerClosed) {
		<-srv.done
		return nil
	}
	return err
}

func (srv *Server) listen() (net.Listener, error) {
	if os.Getenv(gracefulEnvKey) != "" {
		ln, err := net.FileListener(os.NewFile(gracefulListenerFD, "listener"))
		if err != nil {
			return nil, fmt.Errorf("inherit listener: %w", err)
		}
		srv.log.Info("serving on inherited listener", zap.String("addr", ln.Addr().String()))
		return ln, nil
	}
	addr := srv.Addr
	if addr == "" {
		addr = ":http"
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", addr, err)
	}
	return ln, nil
}

func (srv *Server) handleSignals() {
	for sig := range srv.signals {
		switch sig {
		case syscall.SIGTERM, syscall.SIGINT:
			srv.log.Info("draining http server", zap.String("signal", sig.String()))
			srv.drain()
			return
		case syscall.SIGUSR2:
			pid, err := srv.forkChild()
			if err != nil {
				srv.log.Error("restart failed, keep serving", zap.Error(err))
				continue
			}
			srv.log.Info("child started, draining parent", zap.Int("child_pid", pid))
			srv.drain()
			return
		}
	}
}

func (srv *Server) drain() {
	defer close(srv.done)
	signal.Stop(srv.signals)
	ctx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		srv.log.Error("http server shutdown", zap.Error(err))
		return
	}
	srv.log.Info("http server stopped")
}

func (srv *Server) forkChild() (int, error) {
	tcpLn, ok := srv.listener.(*net.TCPListener)
	if !ok {
		return 0, fmt.Errorf("listener is %T, not *net.TCPListener", srv.listener)
	}
	file, err := tcpLn.File()
	if err != nil {
		return 0, fmt.Errorf("listener file: %w", err)
	}
	defer file.Close()

	env := make([]string, 0, len(os.Environ())+1)
	for _, e := range os.Environ() {
		if e != gracefulEnvValue {
			env = append(env, e)
		}
	}
	env = append(env, gracefulEnvValue)

	pid, err := syscall.ForkExec(os.Args[0], os.Args, &syscall.ProcAttr{
		Env:   env,
		Files: []uintptr{os.Stdin.Fd(), os.Stdout.Fd(), os.Stderr.Fd(), file.Fd()},
	})
	if err != nil {
		return 0, fmt.Errorf("forkexec: %w", err)
	}
	return pid, nil
}

// GraceServer serves handler on addr until drained.
func GraceServer(addr string, handler http.Handler, log *zap.Logger) error {
	return NewServer(addr, handler, log).ListenAndServe()
}
