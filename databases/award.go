package databases

// go generate: mockery --name AwardDatabase

import (
	"context"

	"github.com/linesmerrill/lapor-sampah-api/models"
)

const awardName = "point_awards"

// AwardDatabase contains the methods to use with the point award ledger. Awards are keyed
// by report id, so a second insert for the same report fails with a duplicate key error.
type AwardDatabase interface {
	InsertOne(ctx context.Context, award models.PointAward) error
	FindOne(ctx context.Context, filter interface{}) (*models.PointAward, error)
}

type awardDatabase struct {
	db DatabaseHelper
}

// NewAwardDatabase initializes a new instance of award database with the provided db connection
func NewAwardDatabase(db DatabaseHelper) AwardDatabase {
	return &awardDatabase{
		db: db,
	}
}

func (c *awardDatabase) InsertOne(ctx context.Context, award models.PointAward) error {
	_, err := c.db.Collection(awardName).InsertOne(ctx, award)
	return err
}

func (c *awardDatabase) FindOne(ctx context.Context, filter interface{}) (*models.PointAward, error) {
	award := &models.PointAward{}
	err := c.db.Collection(awardName).FindOne(ctx, filter).Decode(&award)
	if err != nil {
		return nil, err
	}
	return award, nil
}
