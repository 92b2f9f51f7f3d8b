package catalog

import (
	"errors"
	"sync"
	"testing"
)

func requireCode(t *testing.T, err error, code RetCode) {
	t.Helper()
	var cErr *Error
	if !errors.As(err, &cErr) {
		t.Fatalf("expected *catalog.Error, got %v", err)
	}
	if cErr.Code != code {
		t.Fatalf("expected code %s, got %s", code, cErr.Code)
	}
}

func TestProductLifecycle(t *testing.T) {
	s := NewMemoryStore()

	p, err := s.AddProduct("apple")
	if err != nil {
		t.Fatalf("AddProduct failed: %v", err)
	}
	if p.ID != 1 || p.Name != "apple" {
		t.Fatalf("unexpected product %+v", p)
	}

	g, err := s.AddGroup("fruit")
	if err != nil {
		t.Fatalf("AddGroup failed: %v", err)
	}

	steps := []struct {
		name string
		fn   func() error
	}{
		{"assign", func() error { return s.AssignGroup(p.ID, g) }},
		{"price", func() error { return s.SetPrice(p.ID, 250) }},
		{"include", func() error { return s.IncludeQuantity(p.ID, 10) }},
		{"exclude", func() error { return s.ExcludeQuantity(p.ID, 4) }},
	}
	for _, step := range steps {
		t.Run(step.name, func(t *testing.T) {
			if err := step.fn(); err != nil {
				t.Fatalf("%s failed: %v", step.name, err)
			}
		})
	}

	got, err := s.GetProduct(p.ID)
	if err != nil {
		t.Fatalf("GetProduct failed: %v", err)
	}
	want := Product{ID: p.ID, Name: "apple", Price: 250, Quantity: 6, GroupID: g}
	if got != want {
		t.Errorf("expected %+v, got %+v", want, got)
	}
}

func TestErrors(t *testing.T) {
	s := NewMemoryStore()
	p, _ := s.AddProduct("pear")

	_, err := s.GetProduct(99)
	requireCode(t, err, RetCNotFound)

	requireCode(t, s.SetPrice(99, 1), RetCNotFound)
	requireCode(t, s.AssignGroup(p.ID, 42), RetCNotFound)
	requireCode(t, s.ExcludeQuantity(p.ID, 1), RetCInvalidOperation)

	_, err = s.AddProduct("")
	requireCode(t, err, RetCInvalidOperation)
	_, err = s.AddGroup("")
	requireCode(t, err, RetCInvalidOperation)

	// failed updates must not change the product
	got, _ := s.GetProduct(p.ID)
	if got.Quantity != 0 {
		t.Errorf("failed exclude changed quantity to %d", got.Quantity)
	}
}

func TestConcurrentQuantityUpdates(t *testing.T) {
	s := NewMemoryStore()
	p, _ := s.AddProduct("plum")

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_ = s.IncludeQuantity(p.ID, 1)
			}
		}()
	}
	wg.Wait()

	got, _ := s.GetProduct(p.ID)
	if got.Quantity != 5000 {
		t.Errorf("expected quantity 5000, got %d", got.Quantity)
	}
}
