package databases

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/linesmerrill/lapor-sampah-api/models"
	"github.com/linesmerrill/lapor-sampah-api/moderation"
	"github.com/linesmerrill/lapor-sampah-api/session"
)

// MongoStore is the report store on MongoDB. Status transitions and point awards run in
// one multi-document transaction, which needs a replica set.
type MongoStore struct {
	client   ClientHelper
	reports  ReportDatabase
	profiles ProfileDatabase
	awards   AwardDatabase
	locks    SchedulerLockDatabase
}

// NewMongoStore builds the store on top of db
func NewMongoStore(db DatabaseHelper) *MongoStore {
	return &MongoStore{
		client:   db.Client(),
		reports:  NewReportDatabase(db),
		profiles: NewProfileDatabase(db),
		awards:   NewAwardDatabase(db),
		locks:    NewSchedulerLockDatabase(db),
	}
}

// CreateReport inserts r and returns its id
func (s *MongoStore) CreateReport(ctx context.Context, r *models.Report) (string, error) {
	if r.ID == "" {
		r.ID = primitive.NewObjectID().Hex()
	}
	if _, err := s.reports.InsertOne(ctx, *r); err != nil {
		return "", err
	}
	return r.ID, nil
}

// GetReport returns the report with the given id
func (s *MongoStore) GetReport(ctx context.Context, id string) (*models.Report, error) {
	r, err := s.reports.FindOne(ctx, bson.M{"_id": id})
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, moderation.ErrReportNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get report %s: %w", id, err)
	}
	return r, nil
}

// Transition flips the status only if it still equals req.From. With an award, the
// ledger row and the $inc on the submitter's points commit together with the flip.
func (s *MongoStore) Transition(ctx context.Context, req moderation.TransitionRequest) (*models.Report, error) {
	var updated *models.Report
	err := s.client.WithTransaction(ctx, func(tx context.Context) error {
		r, err := s.reports.FindOneAndUpdate(tx,
			bson.M{"_id": req.ReportID, "status": req.From},
			bson.M{"$set": transitionFields(req)},
		)
		if errors.Is(err, mongo.ErrNoDocuments) {
			n, cerr := s.reports.CountDocuments(tx, bson.M{"_id": req.ReportID})
			if cerr != nil {
				return cerr
			}
			if n == 0 {
				return moderation.ErrReportNotFound
			}
			return moderation.ErrStatusConflict
		}
		if err != nil {
			return err
		}

		if req.Award != nil {
			err = s.awards.InsertOne(tx, *req.Award)
			if mongo.IsDuplicateKeyError(err) {
				return moderation.ErrStatusConflict
			}
			if err != nil {
				return fmt.Errorf("failed to record award: %w", err)
			}
			err = s.profiles.UpdateOne(tx,
				bson.M{"_id": req.Award.UserID},
				bson.M{
					"$inc":         bson.M{"points": req.Award.Points},
					"$setOnInsert": bson.M{"role": models.RoleUser, "fullName": ""},
				},
				options.Update().SetUpsert(true),
			)
			if err != nil {
				return fmt.Errorf("failed to credit points: %w", err)
			}
		}
		updated = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func transitionFields(req moderation.TransitionRequest) bson.M {
	set := bson.M{"status": req.To, "updatedAt": req.At}
	switch req.To {
	case models.StatusVerified:
		set["verifiedAt"] = req.At
		set["verifiedBy"] = req.ActorID
	case models.StatusResolved:
		set["resolvedAt"] = req.At
		set["resolvedBy"] = req.ActorID
	}
	return set
}

// DeleteReport removes the report and returns it. The photo stays in object storage.
func (s *MongoStore) DeleteReport(ctx context.Context, id string) (*models.Report, error) {
	r, err := s.reports.FindOneAndDelete(ctx, bson.M{"_id": id})
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, moderation.ErrReportNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to delete report %s: %w", id, err)
	}
	return r, nil
}

// ListReports joins reports with the submitter's profile, newest first
func (s *MongoStore) ListReports(ctx context.Context, filter models.ReportFilter) ([]models.ReportWithSubmitter, error) {
	pipeline := bson.A{
		bson.M{"$match": reportFilter(filter)},
		bson.M{"$sort": bson.D{{Key: "createdAt", Value: -1}}},
	}
	pipeline = append(pipeline, newMongoPaginate(filter.Limit, filter.Page).stages()...)
	pipeline = append(pipeline,
		bson.M{"$lookup": bson.M{
			"from":         profileName,
			"localField":   "submitterId",
			"foreignField": "_id",
			"as":           "submitterProfiles",
		}},
		bson.M{"$addFields": bson.M{
			"submitter": bson.M{"$arrayElemAt": bson.A{"$submitterProfiles", 0}},
		}},
		bson.M{"$project": bson.M{
			"submitterProfiles": 0,
			"submitter._id":     0,
			"submitter.points":  0,
			"submitter.role":    0,
			"submitter.email":   0,
		}},
	)
	reports, err := s.reports.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("failed to list reports with submitters: %w", err)
	}
	return reports, nil
}

// ListReportsPlain reads reports without the profile join, newest first
func (s *MongoStore) ListReportsPlain(ctx context.Context, filter models.ReportFilter) ([]models.Report, error) {
	opts := newMongoPaginate(filter.Limit, filter.Page).getPaginatedOpts()
	opts.SetSort(bson.D{{Key: "createdAt", Value: -1}})
	reports, err := s.reports.Find(ctx, reportFilter(filter), opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list reports: %w", err)
	}
	return reports, nil
}

// CountReports counts the reports matching filter, ignoring pagination
func (s *MongoStore) CountReports(ctx context.Context, filter models.ReportFilter) (int64, error) {
	return s.reports.CountDocuments(ctx, reportFilter(filter))
}

// ImageKeyReferenced reports whether any report still points at the stored object key
func (s *MongoStore) ImageKeyReferenced(ctx context.Context, key string) (bool, error) {
	n, err := s.reports.CountDocuments(ctx, bson.M{"imageKey": key})
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// GetProfile returns the profile of a user
func (s *MongoStore) GetProfile(ctx context.Context, id string) (*models.Profile, error) {
	p, err := s.profiles.FindOne(ctx, bson.M{"_id": id})
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, session.ErrProfileNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get profile %s: %w", id, err)
	}
	return p, nil
}

// TryAcquireLock takes the named scheduler lease for ttl
func (s *MongoStore) TryAcquireLock(ctx context.Context, name, owner string, ttl time.Duration) (bool, error) {
	return s.locks.TryAcquireLock(ctx, name, owner, ttl)
}

// ReleaseLock gives the named lease back
func (s *MongoStore) ReleaseLock(ctx context.Context, name, owner string) error {
	return s.locks.ReleaseLock(ctx, name, owner)
}
