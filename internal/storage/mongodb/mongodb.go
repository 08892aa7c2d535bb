// Package mongodb implements the domain stores on MongoDB collections. Every
// query filters on site_id so reads cannot cross tenants.
package mongodb

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/helpdeck/helpdeck/internal/domain"
)

const (
	sitesCollection         = "sites"
	documentsCollection     = "documents"
	conversationsCollection = "conversations"
	turnsCollection         = "chat_turns"
	activitiesCollection    = "url_ingestion_activities"
	gapsCollection          = "knowledge_gaps"
)

const indexTimeout = 30 * time.Second

// Connect opens a client, verifies the deployment is reachable and returns
// the database handle plus a close function for shutdown.
func Connect(ctx context.Context, uri, database string) (*mongo.Database, func(context.Context) error, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, nil, domain.StorageError("failed to connect to mongodb", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, nil, domain.StorageError("failed to ping mongodb", err)
	}

	return client.Database(database), client.Disconnect, nil
}
