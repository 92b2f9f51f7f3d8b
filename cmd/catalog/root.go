package catalog

import (
	"github.com/ValentinKolb/dRPC/cmd/util"
	"github.com/ValentinKolb/dRPC/rpc/client"
	"github.com/spf13/cobra"
)

var (
	rpcCatalog *client.CatalogClient

	// CatalogCommands represents the catalog command group
	CatalogCommands = &cobra.Command{
		Use:                "catalog",
		Short:              "Perform catalog operations",
		PersistentPreRunE:  setupCatalogClient,
		PersistentPostRunE: closeCatalogClient,
	}
)

func init() {
	// Add common RPC flags to the catalog command
	util.SetupRPCClientFlags(CatalogCommands)

	// Add subcommands
	CatalogCommands.AddCommand(getProductCmd)
	CatalogCommands.AddCommand(addProductCmd)
	CatalogCommands.AddCommand(addGroupCmd)
	CatalogCommands.AddCommand(assignGroupCmd)
	CatalogCommands.AddCommand(setPriceCmd)
	CatalogCommands.AddCommand(includeQuantityCmd)
	CatalogCommands.AddCommand(excludeQuantityCmd)
	CatalogCommands.AddCommand(perfTestCmd)
}

// setupCatalogClient initializes the RPC catalog client
func setupCatalogClient(cmd *cobra.Command, _ []string) error {
	// Bind command flags to viper
	if err := util.BindCommandFlags(cmd); err != nil {
		return err
	}

	config := util.GetClientConfig()

	t, err := util.GetClientTransport()
	if err != nil {
		return err
	}

	rpcCatalog, err = client.NewCatalogClient(*config, t)
	return err
}

func closeCatalogClient(_ *cobra.Command, _ []string) error {
	if rpcCatalog == nil {
		return nil
	}
	return rpcCatalog.Close()
}
