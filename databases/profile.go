package databases

// go generate: mockery --name ProfileDatabase

import (
	"context"

	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/linesmerrill/lapor-sampah-api/models"
)

const profileName = "profiles"

// ProfileDatabase contains the methods to use with the profile database
type ProfileDatabase interface {
	FindOne(ctx context.Context, filter interface{}) (*models.Profile, error)
	UpdateOne(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) error
}

type profileDatabase struct {
	db DatabaseHelper
}

// NewProfileDatabase initializes a new instance of profile database with the provided db connection
func NewProfileDatabase(db DatabaseHelper) ProfileDatabase {
	return &profileDatabase{
		db: db,
	}
}

func (c *profileDatabase) FindOne(ctx context.Context, filter interface{}) (*models.Profile, error) {
	profile := &models.Profile{}
	err := c.db.Collection(profileName).FindOne(ctx, filter).Decode(&profile)
	if err != nil {
		return nil, err
	}
	return profile, nil
}

func (c *profileDatabase) UpdateOne(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) error {
	_, err := c.db.Collection(profileName).UpdateOne(ctx, filter, update, opts...)
	return err
}
