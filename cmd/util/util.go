package util

import (
	"fmt"
	"github.com/ValentinKolb/dRPC/rpc/client"
	"github.com/ValentinKolb/dRPC/rpc/common"
	"github.com/ValentinKolb/dRPC/rpc/transport"
	"github.com/ValentinKolb/dRPC/rpc/transport/tcp"
	"github.com/ValentinKolb/dRPC/rpc/transport/udp"
	"github.com/ValentinKolb/dRPC/rpc/transport/unix"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"strings"
)

const (
	// Wrap is the number of characters to Wrap the help text at
	Wrap int = 50
)

// WrapString wraps a string at Wrap characters
func WrapString(text string) string {
	var wrappedLines []string
	var currentLine strings.Builder
	lineWidth := 0

	for _, word := range strings.Fields(text) {
		wordWidth := len(word)

		// Check if we need to wrap
		if lineWidth > 0 && lineWidth+1+wordWidth > Wrap {
			wrappedLines = append(wrappedLines, currentLine.String())
			currentLine.Reset()
			lineWidth = 0
		}

		// Add space before word (if not first word on line)
		if lineWidth > 0 {
			currentLine.WriteString(" ")
			lineWidth++
		}

		currentLine.WriteString(word)
		lineWidth += wordWidth
	}

	// Add any remaining text
	if currentLine.Len() > 0 {
		wrappedLines = append(wrappedLines, currentLine.String())
	}

	return strings.Join(wrappedLines, "\n")
}

// SetupRPCClientFlags adds common RPC connection flags to a command
func SetupRPCClientFlags(cmd *cobra.Command) {
	key := "endpoint"
	cmd.PersistentFlags().String(key, "localhost:8080", WrapString("The address of the dRPC server (host:port for tcp and udp, a socket path for unix)"))

	key = "timeout"
	cmd.PersistentFlags().Int(key, 5, WrapString("The dial and write timeout of the client in seconds"))

	key = "client-id"
	cmd.PersistentFlags().Uint8(key, 1, WrapString("The client id written into every packet header"))

	key = "user-id"
	cmd.PersistentFlags().Uint32(key, 0, WrapString("The user id written into every message header"))

	key = "retry-interval"
	cmd.PersistentFlags().Int64(key, common.DefaultRetryIntervalMillisecond, WrapString("Time between two transmissions of a request in milliseconds"))

	key = "retries"
	cmd.PersistentFlags().Int(key, common.DefaultRetryBudget, WrapString("How many times a request is transmitted before it times out"))

	key = "resend-on-reorder"
	cmd.PersistentFlags().Bool(key, false, WrapString("Resend a request under a fresh packet id if the server reports it as behind (udp only)"))

	key = "max-chunk-size"
	cmd.PersistentFlags().Int(key, 0, WrapString("Maximum fragment payload in bytes (udp only, 0 = largest that fits into a datagram)"))
}

// InitConfig loads env files and initializes viper with the DRPC_ env prefix
func InitConfig() {
	// load env files
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	// initialize viper
	viper.SetEnvPrefix("drpc")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv() // read in environment variables that match
}

// GetClientConfig reads client configuration from viper
func GetClientConfig() *common.ClientConfig {
	return &common.ClientConfig{
		Transport:                viper.GetString("transport"),
		Endpoint:                 viper.GetString("endpoint"),
		ClientID:                 uint8(viper.GetUint("client-id")),
		UserID:                   viper.GetUint32("user-id"),
		TimeoutSecond:            viper.GetInt("timeout"),
		RetryIntervalMillisecond: viper.GetInt64("retry-interval"),
		RetryBudget:              viper.GetInt("retries"),
		ResendOnReorder:          viper.GetBool("resend-on-reorder"),
		MaxChunkSize:             viper.GetInt("max-chunk-size"),
		Cipher:                   viper.GetString("cipher"),
		Key:                      viper.GetString("key"),
	}
}

// GetClientTransport creates the client transport based on configuration
func GetClientTransport() (transport.IClientTransport, error) {
	return client.NewTransport(viper.GetString("transport"))
}

// GetServerTransport creates the server transport based on configuration
func GetServerTransport() (transport.IServerTransport, error) {
	switch viper.GetString("transport") {
	case common.TransportTCP:
		return tcp.NewTCPServerTransport(), nil
	case common.TransportUnix:
		return unix.NewUnixServerTransport(), nil
	case common.TransportUDP:
		return udp.NewUDPServerTransport(), nil
	default:
		return nil, fmt.Errorf("invalid transport %s", viper.GetString("transport"))
	}
}

// BindCommandFlags binds a command's flags to viper
func BindCommandFlags(cmd *cobra.Command) error {
	return viper.BindPFlags(cmd.Flags())
}
