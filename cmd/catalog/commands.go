package catalog

import (
	"fmt"
	"github.com/ValentinKolb/dRPC/rpc/common"
	"github.com/ValentinKolb/dRPC/rpc/serializer"
	"github.com/spf13/cobra"
	"strconv"
)

var (
	getProductCmd = &cobra.Command{
		Use:   "get-product [productID]",
		Short: "Prints a product as json",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "productID")
			if err != nil {
				return err
			}
			p, err := rpcCatalog.GetProduct(id)
			if err != nil {
				return err
			}
			return printProduct(p)
		},
	}
	addProductCmd = &cobra.Command{
		Use:   "add-product [name]",
		Short: "Creates a product and prints it as json",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := rpcCatalog.AddProduct(args[0])
			if err != nil {
				return err
			}
			return printProduct(p)
		},
	}
	addGroupCmd = &cobra.Command{
		Use:   "add-group [name]",
		Short: "Creates a product group and prints its id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := rpcCatalog.AddGroup(args[0])
			if err != nil {
				return err
			}
			fmt.Printf("group=%d\n", id)
			return nil
		},
	}
	assignGroupCmd = &cobra.Command{
		Use:   "assign-group [productID] [groupID]",
		Short: "Moves a product into a group",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			productID, err := parseID(args[0], "productID")
			if err != nil {
				return err
			}
			groupID, err := parseID(args[1], "groupID")
			if err != nil {
				return err
			}
			if err := rpcCatalog.AssignGroup(productID, groupID); err != nil {
				return err
			}
			fmt.Println("assign-group successfully")
			return nil
		},
	}
	setPriceCmd = &cobra.Command{
		Use:   "set-price [productID] [price]",
		Short: "Sets the price of a product",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			productID, amount, err := parseIDAndAmount(args, "price")
			if err != nil {
				return err
			}
			if err := rpcCatalog.SetPrice(productID, amount); err != nil {
				return err
			}
			fmt.Println("set-price successfully")
			return nil
		},
	}
	includeQuantityCmd = &cobra.Command{
		Use:   "include-quantity [productID] [quantity]",
		Short: "Adds items to the stock of a product",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			productID, amount, err := parseIDAndAmount(args, "quantity")
			if err != nil {
				return err
			}
			if err := rpcCatalog.IncludeQuantity(productID, amount); err != nil {
				return err
			}
			fmt.Println("include-quantity successfully")
			return nil
		},
	}
	excludeQuantityCmd = &cobra.Command{
		Use:   "exclude-quantity [productID] [quantity]",
		Short: "Removes items from the stock of a product",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			productID, amount, err := parseIDAndAmount(args, "quantity")
			if err != nil {
				return err
			}
			if err := rpcCatalog.ExcludeQuantity(productID, amount); err != nil {
				return err
			}
			fmt.Println("exclude-quantity successfully")
			return nil
		},
	}
)

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

var productJSON = serializer.NewJSONSerializer[common.Product]()

func printProduct(p common.Product) error {
	out, err := productJSON.Serialize(p)
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func parseID(arg, name string) (uint32, error) {
	id, err := strconv.ParseUint(arg, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("%s must be a number: %w", name, err)
	}
	return uint32(id), nil
}

func parseIDAndAmount(args []string, name string) (uint32, uint64, error) {
	id, err := parseID(args[0], "productID")
	if err != nil {
		return 0, 0, err
	}
	amount, err := strconv.ParseUint(args[1], 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("%s must be a number: %w", name, err)
	}
	return id, amount, nil
}
