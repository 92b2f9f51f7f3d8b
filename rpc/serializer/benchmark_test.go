package serializer

import (
	"github.com/ValentinKolb/dRPC/rpc/common"
	"strings"
	"testing"
)

// benchmarkProducts returns a set of products for targeted benchmarking
func benchmarkProducts() map[string]common.Product {
	return map[string]common.Product{
		"Empty":      {},
		"ShortName":  {ID: 1, Name: "a", Price: 1, Quantity: 1},
		"MediumName": {ID: 1, Name: "medium length product name for testing", Price: 100, Quantity: 10, GroupID: 2},
		"LongName":   {ID: 1, Name: strings.Repeat("x", 1024), Price: 100, Quantity: 10, GroupID: 2},
	}
}

// BenchmarkSerialize benchmarks serialization for all implementations
func BenchmarkSerialize(b *testing.B) {
	products := benchmarkProducts()

	for name, factory := range Factories[common.Product]() {
		for pName, p := range products {
			b.Run(name+"_"+pName, func(b *testing.B) {
				serializer := factory()
				b.ResetTimer()

				for i := 0; i < b.N; i++ {
					_, err := serializer.Serialize(p)
					if err != nil {
						b.Fatalf("Failed to serialize: %v", err)
					}
				}
			})
		}
	}
}

// BenchmarkDeserialize benchmarks deserialization for all implementations
func BenchmarkDeserialize(b *testing.B) {
	products := benchmarkProducts()

	for name, factory := range Factories[common.Product]() {
		for pName, p := range products {
			b.Run(name+"_"+pName, func(b *testing.B) {
				serializer := factory()
				data, err := serializer.Serialize(p)
				if err != nil {
					b.Fatalf("Failed to serialize: %v", err)
				}
				b.ResetTimer()

				for i := 0; i < b.N; i++ {
					var result common.Product
					if err := serializer.Deserialize(data, &result); err != nil {
						b.Fatalf("Failed to deserialize: %v", err)
					}
				}
			})
		}
	}
}

// BenchmarkSize reports the serialized size for each product
func BenchmarkSize(b *testing.B) {
	products := benchmarkProducts()

	for name, factory := range Factories[common.Product]() {
		serializer := factory()

		for pName, p := range products {
			b.Run(name+"_"+pName, func(b *testing.B) {
				data, err := serializer.Serialize(p)
				if err != nil {
					b.Fatalf("Failed to serialize: %v", err)
				}

				// Report the size as a custom metric
				b.ReportMetric(float64(len(data)), "bytes")

				for i := 0; i < b.N; i++ {
					_ = data
				}
			})
		}
	}
}
