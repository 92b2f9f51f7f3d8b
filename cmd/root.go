package cmd

import (
	"fmt"
	"github.com/ValentinKolb/dRPC/cmd/catalog"
	"github.com/ValentinKolb/dRPC/cmd/serve"
	"github.com/ValentinKolb/dRPC/cmd/util"
	"github.com/ValentinKolb/dRPC/rpc/codec"
	"github.com/spf13/cobra"
	"os"
	"strings"
)

const (
	Version = "0.3.0"
)

var (

	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "drpc",
		Short: "checksummed packet transport for the product catalog",
		Long: fmt.Sprintf(`dRPC (v%s)

A request/response transport written in Go: CRC-checked packets over
tcp, unix sockets or fragmented udp datagrams, with retries and
packet-id correlation on the client.`, Version),
	}
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of dRPC",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("dRPC v%s\n", Version)
		},
	}
)

func init() {
	// initialize viper
	cobra.OnInitialize(util.InitConfig)

	// Add Commands
	RootCmd.AddCommand(serve.ServeCmd)
	RootCmd.AddCommand(catalog.CatalogCommands)
	RootCmd.AddCommand(versionCmd)

	// Add Flags
	key := "transport"
	RootCmd.PersistentFlags().String(key, "tcp", util.WrapString("transport to use (tcp, unix, udp)"))
	key = "cipher"
	RootCmd.PersistentFlags().String(key, "", util.WrapString(fmt.Sprintf("encrypt all payloads with this cipher (%s), empty for plain packets", strings.Join(codec.Ciphers(), ", "))))
	key = "key"
	RootCmd.PersistentFlags().String(key, "", util.WrapString("hex encoded key of the cipher (prefer the DRPC_KEY environment variable)"))
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
