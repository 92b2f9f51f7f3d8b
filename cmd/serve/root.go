package serve

import (
	cmdUtil "github.com/ValentinKolb/dRPC/cmd/util"
	"github.com/ValentinKolb/dRPC/lib/catalog"
	"github.com/ValentinKolb/dRPC/rpc/common"
	"github.com/ValentinKolb/dRPC/rpc/server"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"os"
	"os/signal"
	"syscall"
)

var (
	serveCmdConfig = &common.ServerConfig{}
	ServeCmd       = &cobra.Command{
		Use:     "serve",
		Short:   "Start the dRPC catalog server",
		Long:    `Start the dRPC catalog server with the specified configuration. The configuration can be set via command line flags or environment variables. The format of the environment variables is DRPC_<flag> (e.g. DRPC_PEER_IDLE=30)`,
		PreRunE: processConfig,
		RunE:    run,
	}
)

func init() {
	// add flags
	key := "bind-address"
	ServeCmd.PersistentFlags().String(key, "0.0.0.0", cmdUtil.WrapString("The ip to bind (tcp, udp) or the socket path (unix)"))

	key = "port"
	ServeCmd.PersistentFlags().Int(key, 8080, cmdUtil.WrapString("The port to listen on (ignored for unix)"))

	key = "max-conns"
	ServeCmd.PersistentFlags().Int(key, 0, cmdUtil.WrapString("(Stream) Maximum number of open connections, further clients wait in the accept queue. 0 for unbounded"))

	key = "timeout"
	ServeCmd.PersistentFlags().Int64(key, 5, cmdUtil.WrapString("Write timeout for responses in seconds, 0 for none"))

	key = "poll"
	ServeCmd.PersistentFlags().Int64(key, common.DefaultPollMillisecond, cmdUtil.WrapString("Read poll interval in milliseconds. Bounds how long a shutdown takes to be noticed"))

	key = "workers"
	ServeCmd.PersistentFlags().Int(key, common.DefaultMaxWorkersPerConn, cmdUtil.WrapString("(Stream) Maximum number of concurrent handler invocations per connection"))

	key = "max-message-size"
	ServeCmd.PersistentFlags().Uint32(key, common.DefaultMaxMessageSize, cmdUtil.WrapString("(Stream) Largest message length accepted from a client in bytes"))

	key = "max-chunk-size"
	ServeCmd.PersistentFlags().Int(key, 0, cmdUtil.WrapString("(Datagram) Maximum fragment payload in bytes, 0 for the largest that fits into a datagram"))

	key = "window-timeout"
	ServeCmd.PersistentFlags().Int64(key, common.DefaultWindowTimeoutMillisecond, cmdUtil.WrapString("(Datagram) Time in milliseconds after which an incomplete packet is dropped"))

	key = "peer-idle"
	ServeCmd.PersistentFlags().Int64(key, common.DefaultPeerIdleSecond, cmdUtil.WrapString("(Datagram) Time in seconds after which the state of a silent peer is dropped"))

	key = "reuse-addr"
	ServeCmd.PersistentFlags().Bool(key, false, cmdUtil.WrapString("Set SO_REUSEADDR on the listening socket"))

	key = "metrics-endpoint"
	ServeCmd.PersistentFlags().String(key, "", cmdUtil.WrapString("Address of the prometheus metrics and pprof endpoint (e.g. localhost:9090), empty to disable"))

	key = "log-level"
	ServeCmd.PersistentFlags().String(key, "info", cmdUtil.WrapString("LogLevel is the level at which logs will be output (debug, info, warn, error)"))
}

// processConfig reads the configuration from the command line flags and environment variables and converts them to the server configuration
func processConfig(cmd *cobra.Command, _ []string) error {
	// bind the flags to viper
	if err := cmdUtil.BindCommandFlags(cmd); err != nil {
		return err
	}

	serveCmdConfig.Transport = viper.GetString("transport")
	serveCmdConfig.BindAddress = viper.GetString("bind-address")
	serveCmdConfig.Port = viper.GetInt("port")
	serveCmdConfig.MaxConns = viper.GetInt("max-conns")
	serveCmdConfig.TimeoutSecond = viper.GetInt64("timeout")
	serveCmdConfig.PollMillisecond = viper.GetInt64("poll")
	serveCmdConfig.MaxWorkersPerConn = viper.GetInt("workers")
	serveCmdConfig.MaxMessageSize = viper.GetUint32("max-message-size")
	serveCmdConfig.MaxChunkSize = viper.GetInt("max-chunk-size")
	serveCmdConfig.WindowTimeoutMillisecond = viper.GetInt64("window-timeout")
	serveCmdConfig.PeerIdleSecond = viper.GetInt64("peer-idle")
	serveCmdConfig.ReuseAddr = viper.GetBool("reuse-addr")
	serveCmdConfig.MetricsEndpoint = viper.GetString("metrics-endpoint")
	serveCmdConfig.Cipher = viper.GetString("cipher")
	serveCmdConfig.Key = viper.GetString("key")
	serveCmdConfig.LogLevel = viper.GetString("log-level")

	return serveCmdConfig.Validate()
}

// run starts the dRPC server and closes it on SIGINT or SIGTERM
func run(_ *cobra.Command, _ []string) error {
	t, err := cmdUtil.GetServerTransport()
	if err != nil {
		return err
	}

	serv := server.NewRPCServer(
		*serveCmdConfig,
		t,
		catalog.NewMemoryStore(),
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		server.Logger.Infof("Shutting down")
		serv.Close()
	}()

	return serv.Serve()
}
