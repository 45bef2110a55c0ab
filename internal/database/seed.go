package database

import (
	"context"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"backend/internal/models"
)

// defaultMenu is inserted on first boot so the menu is never empty.
var defaultMenu = []models.MenuItem{
	{Name: "Margherita Pizza", Price: 1299, Category: "Mains", Image: "🍕"},
	{Name: "Caesar Salad", Price: 899, Category: "Starters", Image: "🥗"},
	{Name: "Chicken Burger", Price: 1499, Category: "Mains", Image: "🍔"},
	{Name: "Pasta Carbonara", Price: 1699, Category: "Mains", Image: "🍝"},
	{Name: "Fish & Chips", Price: 1399, Category: "Mains", Image: "🐟"},
	{Name: "Chocolate Cake", Price: 699, Category: "Desserts", Image: "🍰"},
}

// SeedMenu inserts the default dishes when the menu collection is empty.
func SeedMenu(db *mongo.Database) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	count, err := db.Collection("menu_items").CountDocuments(ctx, bson.M{})
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	now := time.Now()
	docs := make([]interface{}, 0, len(defaultMenu))
	for _, item := range defaultMenu {
		item.IsActive = true
		item.CreatedAt = now
		docs = append(docs, item)
	}

	if _, err := db.Collection("menu_items").InsertMany(ctx, docs); err != nil {
		return err
	}
	log.Println("SeedMenu: inserted", len(docs), "menu items")
	return nil
}
