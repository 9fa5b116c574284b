package repository

import (
	"context"
	"errors"
	"time"

	"github.com/maheshrc27/publisher/internal/models"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const postsCollection = "posts"

type mongoPostRepository struct {
	coll *mongo.Collection
}

func NewMongoPostRepository(db *mongo.Database) PostRepository {
	return &mongoPostRepository{coll: db.Collection(postsCollection)}
}

// EnsureMongoIndexes creates the indexes the due-job and owner queries rely on.
func EnsureMongoIndexes(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection(postsCollection).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "scheduled_date", Value: 1}}},
		{Keys: bson.D{{Key: "owner_id", Value: 1}, {Key: "created_at", Value: -1}}},
	})
	if err != nil {
		logrus.Info(err.Error())
	}
	return err
}

func (r *mongoPostRepository) Insert(ctx context.Context, post *models.Post) (*models.Post, error) {
	stored := post.Clone()
	now := time.Now()
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = now
	}
	stored.UpdatedAt = now

	if _, err := r.coll.InsertOne(ctx, stored); err != nil {
		logrus.Info(err.Error())
		return nil, err
	}
	return stored, nil
}

func (r *mongoPostRepository) GetByID(ctx context.Context, id string) (*models.Post, error) {
	var post models.Post
	err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&post)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		logrus.Info(err.Error())
		return nil, err
	}
	return &post, nil
}

func (r *mongoPostRepository) find(ctx context.Context, filter bson.M, opts ...*options.FindOptions) ([]*models.Post, error) {
	cursor, err := r.coll.Find(ctx, filter, opts...)
	if err != nil {
		logrus.Info(err.Error())
		return nil, err
	}
	defer cursor.Close(ctx)

	var posts []*models.Post
	for cursor.Next(ctx) {
		var post models.Post
		if err := cursor.Decode(&post); err != nil {
			logrus.Info(err.Error())
			return nil, err
		}
		posts = append(posts, &post)
	}
	if err := cursor.Err(); err != nil {
		logrus.Info(err.Error())
		return nil, err
	}
	return posts, nil
}

func (r *mongoPostRepository) FindDueScheduled(ctx context.Context, now time.Time, limit int) ([]*models.Post, error) {
	opts := options.Find().SetSort(bson.D{{Key: "scheduled_date", Value: 1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	return r.find(ctx, bson.M{
		"status":         models.PostStatusScheduled,
		"scheduled_date": bson.M{"$lte": now},
	}, opts)
}

func (r *mongoPostRepository) FindScheduled(ctx context.Context) ([]*models.Post, error) {
	opts := options.Find().SetSort(bson.D{{Key: "scheduled_date", Value: 1}})
	return r.find(ctx, bson.M{"status": models.PostStatusScheduled}, opts)
}

func (r *mongoPostRepository) FindByOwner(ctx context.Context, ownerID string, filter PostFilter) ([]*models.Post, error) {
	query := bson.M{"owner_id": ownerID}
	if filter.Status != "" {
		query["status"] = filter.Status
	}
	if filter.Platform != "" {
		query["platforms"] = filter.Platform
	}
	if filter.From != nil || filter.To != nil {
		rng := bson.M{}
		if filter.From != nil {
			rng["$gte"] = *filter.From
		}
		if filter.To != nil {
			rng["$lte"] = *filter.To
		}
		query["scheduled_date"] = rng
	}

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	if filter.Limit > 0 {
		opts.SetLimit(int64(filter.Limit))
	}
	if filter.Offset > 0 {
		opts.SetSkip(int64(filter.Offset))
	}
	return r.find(ctx, query, opts)
}

func (r *mongoPostRepository) FindStuckPublishing(ctx context.Context, startedBefore time.Time) ([]*models.Post, error) {
	return r.find(ctx, bson.M{
		"status": models.PostStatusPublishing,
		"$or": bson.A{
			bson.M{"publishing_started_at": bson.M{"$exists": false}},
			bson.M{"publishing_started_at": bson.M{"$lt": startedBefore}},
		},
	})
}

func (r *mongoPostRepository) FindPublishedSince(ctx context.Context, since time.Time) ([]*models.Post, error) {
	return r.find(ctx, bson.M{
		"status":         models.PostStatusPublished,
		"published_date": bson.M{"$gte": since},
	})
}

func (r *mongoPostRepository) UpdateStatus(ctx context.Context, id string, expected, next models.PostStatus, upd *StatusUpdate) (bool, error) {
	filter, update := statusUpdateDocs(id, expected, next, upd, time.Now())
	res, err := r.coll.UpdateOne(ctx, filter, update)
	if err != nil {
		logrus.Info(err.Error())
		return false, err
	}
	return res.MatchedCount == 1, nil
}

func statusUpdateDocs(id string, expected, next models.PostStatus, upd *StatusUpdate, now time.Time) (bson.M, bson.M) {
	set := bson.M{"status": next, "updated_at": now}
	for _, f := range upd.fields() {
		set[f.column] = f.value
	}
	return bson.M{"_id": id, "status": expected}, bson.M{"$set": set}
}

func (r *mongoPostRepository) UpdateContent(ctx context.Context, post *models.Post) (bool, error) {
	filter := bson.M{"_id": post.ID, "owner_id": post.OwnerID, "status": models.PostStatusScheduled}
	update := bson.M{"$set": bson.M{
		"content":        post.Content,
		"media":          post.Media,
		"hashtags":       post.Hashtags,
		"mentions":       post.Mentions,
		"link":           post.Link,
		"product_id":     post.ProductID,
		"platforms":      post.Platforms,
		"scheduled_date": post.ScheduledDate,
		"updated_at":     time.Now(),
	}}

	res, err := r.coll.UpdateOne(ctx, filter, update)
	if err != nil {
		logrus.Info(err.Error())
		return false, err
	}
	return res.MatchedCount == 1, nil
}

func (r *mongoPostRepository) CountByStatus(ctx context.Context, ownerID string) (map[models.PostStatus]int, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"owner_id": ownerID}}},
		{{Key: "$group", Value: bson.M{"_id": "$status", "count": bson.M{"$sum": 1}}}},
	}
	cursor, err := r.coll.Aggregate(ctx, pipeline)
	if err != nil {
		logrus.Info(err.Error())
		return nil, err
	}
	defer cursor.Close(ctx)

	counts := make(map[models.PostStatus]int)
	for cursor.Next(ctx) {
		var row struct {
			Status models.PostStatus `bson:"_id"`
			Count  int               `bson:"count"`
		}
		if err := cursor.Decode(&row); err != nil {
			logrus.Info(err.Error())
			return nil, err
		}
		counts[row.Status] = row.Count
	}
	return counts, cursor.Err()
}

func (r *mongoPostRepository) CountUpcoming(ctx context.Context, ownerID string, from, to time.Time) (int, error) {
	n, err := r.coll.CountDocuments(ctx, bson.M{
		"owner_id":       ownerID,
		"status":         models.PostStatusScheduled,
		"scheduled_date": bson.M{"$gt": from, "$lte": to},
	})
	if err != nil {
		logrus.Info(err.Error())
		return 0, err
	}
	return int(n), nil
}

func (r *mongoPostRepository) DeleteScheduledIfOwned(ctx context.Context, id, ownerID string) (bool, error) {
	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": id, "owner_id": ownerID, "status": models.PostStatusScheduled})
	if err != nil {
		logrus.Info(err.Error())
		return false, err
	}
	return res.DeletedCount == 1, nil
}
