package repository

import (
	"context"

	"github.com/vhvplatform/go-notification-engine/internal/domain"
	"github.com/vhvplatform/go-notification-engine/internal/shared/mongodb"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const customersCollection = "customers"

// CustomerRepository reads CRM customers. The engine never writes them.
type CustomerRepository struct {
	client *mongodb.MongoClient
}

// NewCustomerRepository creates a new customer repository
func NewCustomerRepository(client *mongodb.MongoClient) *CustomerRepository {
	return &CustomerRepository{client: client}
}

// FindWithEmail returns every customer that has a non-empty email, ordered by id
func (r *CustomerRepository) FindWithEmail(ctx context.Context) ([]domain.Customer, error) {
	filter := bson.M{
		"email": bson.M{"$exists": true, "$nin": bson.A{nil, ""}},
	}
	opts := options.Find().SetSort(bson.D{{Key: "_id", Value: 1}})

	cursor, err := r.client.Collection(customersCollection).Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var customers []domain.Customer
	if err = cursor.All(ctx, &customers); err != nil {
		return nil, err
	}
	return customers, nil
}
