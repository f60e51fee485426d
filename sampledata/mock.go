// Package sampledata seeds a bucket with customer documents and the views
// that serve them, for trying the document API by hand.
package sampledata

import (
	"context"
	"fmt"
	"time"

	"docbucket/bucket"
	"docbucket/core"
	"docbucket/repository"
	"docbucket/view"
)

// Customer is the sample entity
type Customer struct {
	ID      string    `json:"id"`
	Type    string    `json:"type"`
	Name    string    `json:"name"`
	Email   string    `json:"email"`
	Country string    `json:"country"`
	Orders  int       `json:"orders"`
	Created time.Time `json:"created"`
}

const (
	customerType = "customer"
	// ByCountryView emits [country, name] for every customer, reduced with _sum of orders
	ByCountryView = "byCountry"
)

// MockDataService provides methods to populate the bucket with sample data
type MockDataService struct {
	ops       core.Operations
	customers *repository.Repository[Customer]
}

// NewMockDataService creates a new mock data service
func NewMockDataService(ops core.Operations) *MockDataService {
	return &MockDataService{
		ops:       ops,
		customers: repository.New[Customer](ops),
	}
}

// Customers returns the repository the service writes through
func (m *MockDataService) Customers() *repository.Repository[Customer] {
	return m.customers
}

// RegisterDesigns installs the customer design: the all view used by the
// repository and a byCountry view.
func (m *MockDataService) RegisterDesigns(ctx context.Context) error {
	if err := m.customers.EnsureAllView(ctx, "type", customerType); err != nil {
		return fmt.Errorf("failed to register all view: %w", err)
	}
	_, err := m.ops.Execute(ctx, func(ctx context.Context, b *bucket.Bucket) (any, error) {
		design, err := b.Design(m.customers.Design())
		if err != nil {
			return nil, err
		}
		design.Views[ByCountryView] = view.View{
			Map: func(doc view.Document, emit view.Emitter) {
				if doc.Get("type").String() != customerType {
					return
				}
				emit([]any{doc.Get("country").String(), doc.Get("name").String()}, doc.Get("orders").Int())
			},
			Reduce: view.Sum,
		}
		return nil, b.UpsertDesign(design)
	})
	if err != nil {
		return fmt.Errorf("failed to register %s view: %w", ByCountryView, err)
	}
	return nil
}

// PopulateMockData saves a fixed set of customers
func (m *MockDataService) PopulateMockData(ctx context.Context) error {
	if err := m.RegisterDesigns(ctx); err != nil {
		return err
	}
	created := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	customers := []Customer{
		{ID: "customer:1001", Name: "Ada Byron", Email: "ada@example.com", Country: "GB", Orders: 12},
		{ID: "customer:1002", Name: "Grace Hopper", Email: "grace@example.com", Country: "US", Orders: 7},
		{ID: "customer:1003", Name: "Edsger Dijkstra", Email: "edsger@example.com", Country: "NL", Orders: 3},
		{ID: "customer:1004", Name: "Katherine Johnson", Email: "katherine@example.com", Country: "US", Orders: 9},
		{ID: "customer:1005", Name: "Alan Turing", Email: "alan@example.com", Country: "GB", Orders: 5},
	}
	for i := range customers {
		customers[i].Type = customerType
		customers[i].Created = created.Add(time.Duration(i) * 24 * time.Hour)
	}
	return m.customers.SaveAll(ctx, customers)
}

// ClearAllData removes every customer document
func (m *MockDataService) ClearAllData(ctx context.Context) error {
	if err := m.RegisterDesigns(ctx); err != nil {
		return err
	}
	return m.customers.DeleteAll(ctx)
}
