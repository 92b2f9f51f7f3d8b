package server

import (
	"context"
	"errors"
	"fmt"
	"github.com/ValentinKolb/dRPC/lib/catalog"
	"github.com/ValentinKolb/dRPC/rpc/codec"
	"github.com/ValentinKolb/dRPC/rpc/common"
	"github.com/ValentinKolb/dRPC/rpc/transport"
	"github.com/VictoriaMetrics/metrics"
	"github.com/lni/dragonboat/v4/logger"
	"net"
	"net/http"
	"net/http/pprof"
	"os/signal"
	"runtime"
	"sync"
	"syscall"
	"time"
)

var Logger = logger.GetLogger("rpc")

// NewRPCServer creates a new RPC server
// It takes a config, transport and the catalog store as parameters
//
// Usage:
//
//	s := server.NewRPCServer(
//		*config,
//		tcp.NewTCPServerTransport(),
//		catalog.NewMemoryStore(),
//	)
//
//	if err := s.Serve(); err != nil {
//		panic(err)
//	 }
func NewRPCServer(
	config common.ServerConfig,
	transport transport.IServerTransport,
	store catalog.IStore,
) *RPCServer {
	// https://github.com/golang/go/issues/17393
	if runtime.GOOS == "darwin" {
		signal.Ignore(syscall.Signal(0xd))
	}

	Logger.Infof("Created RPC Server")
	Logger.Infof(config.String())

	return &RPCServer{
		config:    config,
		transport: transport,
		store:     store,
		adapter:   NewCatalogServerAdapter(),
	}
}

// RPCServer binds a catalog store to a server transport
type RPCServer struct {
	config    common.ServerConfig
	transport transport.IServerTransport
	store     catalog.IStore
	adapter   IRPCServerAdapter

	metricsSrv  *http.Server
	metricsLn   net.Listener
	metricsStop sync.Once
}

// Serve starts the RPC server and blocks until the transport is closed
func (s *RPCServer) Serve() error {
	if err := s.init(); err != nil {
		return err
	}
	defer s.stopMetrics()
	return s.transport.Listen(s.config)
}

// Start starts the RPC server without blocking
func (s *RPCServer) Start() error {
	if err := s.init(); err != nil {
		return err
	}
	if err := s.transport.Start(s.config); err != nil {
		s.stopMetrics()
		return err
	}
	return nil
}

// Close stops the transport and the metrics endpoint
func (s *RPCServer) Close() error {
	err := s.transport.Close()
	s.stopMetrics()
	return err
}

// Addr returns the address of the transport listener
func (s *RPCServer) Addr() net.Addr {
	return s.transport.Addr()
}

// MetricsAddr returns the address of the metrics endpoint, nil if disabled
func (s *RPCServer) MetricsAddr() net.Addr {
	if s.metricsLn == nil {
		return nil
	}
	return s.metricsLn.Addr()
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

func (s *RPCServer) init() error {
	if err := s.config.Validate(); err != nil {
		return err
	}

	// Init logger
	if s.config.LogLevel != "" {
		if err := common.InitLoggers(s.config.LogLevel); err != nil {
			return err
		}
	}

	// Configure the transport layer
	s.transport.RegisterHandler(s.handle)

	if s.config.MetricsEndpoint != "" {
		if err := s.startMetrics(); err != nil {
			return err
		}
	}

	Logger.Infof("dRPC setup completed successfully")
	return nil
}

// handle is the transport.HandleFunc of the server
func (s *RPCServer) handle(req []byte) ([]byte, error) {
	msg, err := codec.DecodeMessage(req)
	if err != nil {
		return nil, err
	}

	resp, err := s.adapter.Handle(msg, s.store)
	if err != nil {
		var cErr *catalog.Error
		if errors.As(err, &cErr) {
			Logger.Debugf("%s failed: %v", msg.Type, cErr)
		}
		return nil, err
	}
	return codec.EncodeMessage(resp), nil
}

// startMetrics serves the transport metrics, process metrics and pprof
func (s *RPCServer) startMetrics() error {
	mux := http.NewServeMux()
	mux.HandleFunc("/metrics", func(w http.ResponseWriter, r *http.Request) {
		s.transport.Metrics().WritePrometheus(w)
		metrics.WritePrometheus(w, true)
	})
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)

	ln, err := net.Listen("tcp", s.config.MetricsEndpoint)
	if err != nil {
		return fmt.Errorf("failed to start metrics endpoint: %w", err)
	}
	s.metricsLn = ln
	s.metricsSrv = &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := s.metricsSrv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			Logger.Errorf("Metrics endpoint failed: %v", err)
		}
	}()

	Logger.Infof("Serving metrics on http://%s/metrics", ln.Addr())
	return nil
}

func (s *RPCServer) stopMetrics() {
	if s.metricsSrv == nil {
		return
	}
	s.metricsStop.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		s.metricsSrv.Shutdown(ctx)
	})
}
