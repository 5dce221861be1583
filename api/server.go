package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"

	"github.com/davidbalbert/miniospf/ospf"
	"github.com/davidbalbert/miniospf/rpc"
	"github.com/davidbalbert/miniospf/sync"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
)

// Engine is the part of an ospf.Instance the API needs.
type Engine interface {
	Status(ctx context.Context) (*ospf.Status, error)
	Changes() *sync.Notifier
}

type Server struct {
	engine   Engine
	shutdown context.CancelFunc
	socket   string
	version  string
	log      *logrus.Entry

	stopping chan struct{}
}

func NewServer(engine Engine, socket string, shutdown context.CancelFunc, version string, log *logrus.Entry) *Server {
	return &Server{
		engine:   engine,
		shutdown: shutdown,
		socket:   socket,
		version:  version,
		log:      log.WithField("component", "api"),
		stopping: make(chan struct{}),
	}
}

// Run serves the control API on the unix socket until ctx is done. A
// socket left behind by an earlier run is replaced.
func (s *Server) Run(ctx context.Context) error {
	if err := os.Remove(s.socket); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("api: %w", err)
	}

	listener, err := net.Listen("unix", s.socket)
	if err != nil {
		return fmt.Errorf("api: %w", err)
	}
	defer os.Remove(s.socket)

	s.log.WithField("socket", s.socket).Info("listening")

	return s.Serve(ctx, listener)
}

func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	grpcServer := grpc.NewServer()
	rpc.RegisterAPIServer(grpcServer, rpc.NewAPIServer(s))

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return grpcServer.Serve(listener)
	})

	g.Go(func() error {
		<-ctx.Done()
		// Watch streams only end on their own when the client goes away.
		close(s.stopping)
		grpcServer.GracefulStop()
		return nil
	})

	return g.Wait()
}

func (s *Server) GetVersion(ctx context.Context) (string, error) {
	return s.version, nil
}

func (s *Server) GetStatus(ctx context.Context) (*ospf.Status, error) {
	return s.engine.Status(ctx)
}

func (s *Server) WatchStatus(ctx context.Context, send func(*ospf.Status) error) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		select {
		case <-s.stopping:
			cancel()
		case <-ctx.Done():
		}
	}()

	changes := s.engine.Changes()
	seq := changes.Seq()

	for {
		st, err := s.engine.Status(ctx)
		if ctx.Err() != nil {
			return nil
		} else if err != nil {
			return err
		}

		if err := send(st); err != nil {
			return err
		}

		seq = changes.AwaitChange(ctx, seq)
		if ctx.Err() != nil {
			return nil
		}
	}
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("shutdown requested")
	s.shutdown()
	return nil
}
