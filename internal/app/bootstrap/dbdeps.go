package bootstrap

import "go.mongodb.org/mongo-driver/mongo"

// DBDeps is created by ConnectDB and handed to every later lifecycle hook.
type DBDeps struct {
	MongoClient   *mongo.Client
	MongoDatabase *mongo.Database
}
