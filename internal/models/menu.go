package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MenuItem is a dish offered on the menu. Price is in minor currency units.
type MenuItem struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name      string             `bson:"name" json:"name"`
	Price     int64              `bson:"price" json:"price"`
	Category  string             `bson:"category,omitempty" json:"category,omitempty"`
	Image     string             `bson:"image,omitempty" json:"image,omitempty"`
	IsActive  bool               `bson:"isActive" json:"isActive"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
}
