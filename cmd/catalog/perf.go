package catalog

import (
	"encoding/csv"
	"fmt"
	"github.com/ValentinKolb/dRPC/cmd/util"
	"github.com/ValentinKolb/dRPC/rpc/common"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"log"
	"math"
	"os"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

var (
	perfTestCmd = &cobra.Command{
		Use:     "perf",
		Short:   "Performance testing tool for dRPC servers",
		Long:    "Runs parallel benchmarks of the catalog operations against a running server and prints the client metrics (latency, retries, timeouts) afterwards",
		RunE:    run,
		PreRunE: processPerfConfig,
	}
	perfLargeNameSizeKB = 16
	perfNumThreads      = 10
	perfProducts        = 100
	perfSkip            = make([]string, 0)
)

func init() {
	// add flags
	key := "skip"
	perfTestCmd.Flags().String(key, "", util.WrapString("Benchmarks to skip (comma separated - e.g. get-product,mixed)"))
	key = "threads"
	perfTestCmd.Flags().Int(key, 10, util.WrapString("Number of threads to use for the benchmark"))
	key = "large-name-size"
	perfTestCmd.Flags().Int(key, 16, util.WrapString("How large the product name for the add-product-large test should be (in KB)"))
	key = "products"
	perfTestCmd.Flags().Int(key, 100, util.WrapString("How many different products to use for the tests"))
	key = "csv"
	perfTestCmd.Flags().String(key, "", util.WrapString("Optional path to save benchmark results as CSV"))
}

func processPerfConfig(cmd *cobra.Command, _ []string) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	// Read the configuration from the command line flags and environment variables
	perfLargeNameSizeKB = viper.GetInt("large-name-size")
	perfProducts = max(viper.GetInt("products"), 1)
	perfNumThreads = viper.GetInt("threads")
	perfSkip = strings.Split(viper.GetString("skip"), ",")

	return nil
}

func run(_ *cobra.Command, _ []string) error {

	fmt.Println("Performance testing tool for dRPC servers")

	// Print configuration
	fmt.Println()
	fmt.Println("Configuration:")
	fmt.Println(util.GetClientConfig().String())
	fmt.Printf("Threads: %d\n", perfNumThreads)
	fmt.Println()

	// prepare products
	ids := make([]uint32, perfProducts)
	for i := range ids {
		p, err := rpcCatalog.AddProduct(fmt.Sprintf("__perf-%d", i))
		if err != nil {
			return fmt.Errorf("failed to prepare products: %w", err)
		}
		ids[i] = p.ID
	}
	productID := func(i int) uint32 { return ids[i%len(ids)] }

	fmt.Println("starting tests...")

	results := make(map[string]testing.BenchmarkResult)
	bench := func(name string, op func(i int) error) {
		result := testing.Benchmark(func(b *testing.B) {
			if shouldSkip(name) {
				return
			}
			var counter atomic.Int64

			b.SetParallelism(perfNumThreads)
			b.ResetTimer()

			b.RunParallel(func(pb *testing.PB) {
				for pb.Next() {
					if err := op(int(counter.Add(1))); err != nil {
						log.Printf("(%s) - error: %v\n", name, err)
					}
				}
			})
		})
		results[name] = result
		printResult(name, result)
	}

	bench("get-product", func(i int) error {
		_, err := rpcCatalog.GetProduct(productID(i))
		return err
	})

	bench("set-price", func(i int) error {
		return rpcCatalog.SetPrice(productID(i), uint64(i))
	})

	bench("include-quantity", func(i int) error {
		return rpcCatalog.IncludeQuantity(productID(i), 1)
	})

	largeName := strings.Repeat("x", perfLargeNameSizeKB*1024)
	bench("add-product-large", func(i int) error {
		_, err := rpcCatalog.AddProduct(largeName)
		return err
	})

	bench("mixed", func(i int) error {
		id := productID(i)
		switch i % 4 {
		case 0:
			return rpcCatalog.IncludeQuantity(id, 2)
		case 1:
			return rpcCatalog.ExcludeQuantity(id, 1)
		case 2:
			return rpcCatalog.SetPrice(id, uint64(i))
		default:
			_, err := rpcCatalog.GetProduct(id)
			return err
		}
	})

	// Print client metrics
	fmt.Println()
	fmt.Println("Client metrics:")
	if m := rpcCatalog.Metrics(); m != nil {
		m.WriteOnce(os.Stdout)
	}

	// Write results to csv is specified
	if csvPath := viper.GetString("csv"); csvPath != "" {
		fmt.Printf("\nExporting results to CSV: %s\n", csvPath)
		if err := writeResultsToCSV(csvPath, results, util.GetClientConfig()); err != nil {
			return err
		}
	}

	return nil
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

func shouldSkip(test string) bool {
	// Check if the test is in the skip list
	for _, skip := range perfSkip {
		if test == skip {
			return true
		}
	}
	return false
}

// printResult prints the result of a benchmark test in a formatted way
func printResult(test string, result testing.BenchmarkResult) {
	if result.NsPerOp() == 0 {
		fmt.Printf("%-20sskipped\n", test)
		return
	}

	nsPerOp := math.Max(float64(result.NsPerOp()), 1) // prevent division by zero
	opsPerSec := 1.0 / (nsPerOp / 1e9)

	// Print the formatted result
	fmt.Printf("%-20s%.0fns/op (%s/op)\t%.0f ops/sec\n", test, nsPerOp, time.Duration(nsPerOp), opsPerSec)
}

// writeResultsToCSV writes benchmark results to a CSV file
func writeResultsToCSV(csvPath string, results map[string]testing.BenchmarkResult, config *common.ClientConfig) error {
	file, err := os.Create(csvPath)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %v", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	// Write header
	header := []string{
		"Test", "NsPerOp", "DurationPerOp", "OpsPerSec", "Skipped",
		"Endpoint", "Transport", "Cipher", "RetryIntervalMs", "RetryBudget",
		"MaxChunkSize", "Threads", "LargeNameSizeKB", "Products",
	}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %v", err)
	}

	// Write test results
	for test, result := range results {
		var nsPerOp float64
		var opsPerSec float64
		skipped := "true"

		if result.NsPerOp() != 0 {
			skipped = "false"
			nsPerOp = math.Max(float64(result.NsPerOp()), 1)
			opsPerSec = 1.0 / (nsPerOp / 1e9)
		}

		row := []string{
			test,
			fmt.Sprintf("%.0f", nsPerOp),
			time.Duration(nsPerOp).String(),
			fmt.Sprintf("%.0f", opsPerSec),
			skipped,
			config.Endpoint,
			config.Transport,
			config.Cipher,
			strconv.FormatInt(config.RetryIntervalMillisecond, 10),
			strconv.Itoa(config.RetryBudget),
			strconv.Itoa(config.MaxChunkSize),
			strconv.Itoa(perfNumThreads),
			strconv.Itoa(perfLargeNameSizeKB),
			strconv.Itoa(perfProducts),
		}

		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write row for test %s: %v", test, err)
		}
	}

	return nil
}
