package database

import (
	"context"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func EnsureUserIndexes(db *mongo.Database) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	indexes := db.Collection("users").Indexes()

	emailIndex := mongo.IndexModel{
		Keys: bson.D{{Key: "email", Value: 1}},
		Options: options.Index().
			SetName("email_unique").
			SetUnique(true),
	}

	log.Println("EnsureUserIndexes: creating email_unique index")
	_, err := indexes.CreateOne(ctx, emailIndex)
	if err != nil {
		log.Println("EnsureUserIndexes: email index error:", err)
		return err
	}
	log.Println("EnsureUserIndexes: email_unique index created")
	return nil
}

func EnsureMenuIndexes(db *mongo.Database) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	indexes := db.Collection("menu_items").Indexes()

	nameIndex := mongo.IndexModel{
		Keys: bson.D{{Key: "name", Value: 1}},
		Options: options.Index().
			SetName("name_unique").
			SetUnique(true),
	}

	log.Println("EnsureMenuIndexes: creating name_unique index")
	_, err := indexes.CreateOne(ctx, nameIndex)
	if err != nil {
		log.Println("EnsureMenuIndexes: name index error:", err)
		return err
	}
	log.Println("EnsureMenuIndexes: name_unique index created")
	return nil
}

func EnsureRefreshTokenIndexes(db *mongo.Database) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	indexes := db.Collection("refresh_tokens").Indexes()

	hashIndex := mongo.IndexModel{
		Keys: bson.D{{Key: "tokenHash", Value: 1}},
		Options: options.Index().
			SetName("tokenHash_index"),
	}

	log.Println("EnsureRefreshTokenIndexes: creating tokenHash_index index")
	_, err := indexes.CreateOne(ctx, hashIndex)
	if err != nil {
		log.Println("EnsureRefreshTokenIndexes: tokenHash index error:", err)
		return err
	}
	log.Println("EnsureRefreshTokenIndexes: tokenHash_index index created")
	return nil
}
