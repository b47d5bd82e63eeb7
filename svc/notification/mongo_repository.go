package notification

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// NotificationsCollection is the collection MongoRepository writes to.
const NotificationsCollection = "notifications"

// MongoRepository stores notifications in MongoDB.
type MongoRepository struct {
	coll *mongo.Collection
}

// NewMongoRepository binds the repository to the notifications collection of db.
func NewMongoRepository(db *mongo.Database) *MongoRepository {
	return &MongoRepository{coll: db.Collection(NotificationsCollection)}
}

// EnsureIndexes creates the indexes used by List and Stats.
func (r *MongoRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "status", Value: 1}}},
		{Keys: bson.D{{Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "channels", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("failed to create notification indexes: %w", err)
	}
	return nil
}

func (r *MongoRepository) Create(ctx context.Context, n *Notification) error {
	if _, err := r.coll.InsertOne(ctx, n); err != nil {
		return errors.Join(ErrFailedToPersist, err)
	}
	return nil
}

func (r *MongoRepository) Get(ctx context.Context, id string) (*Notification, error) {
	var n Notification
	err := r.coll.FindOne(ctx, bson.D{{Key: "_id", Value: id}}).Decode(&n)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("%w: %s", ErrNotificationNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load notification %s: %w", id, err)
	}
	return &n, nil
}

func (r *MongoRepository) Update(ctx context.Context, n *Notification) error {
	res, err := r.coll.ReplaceOne(ctx, bson.D{{Key: "_id", Value: n.ID}}, n)
	if err != nil {
		return errors.Join(ErrFailedToPersist, err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("%w: %s", ErrNotificationNotFound, n.ID)
	}
	return nil
}

func (r *MongoRepository) List(ctx context.Context, filter ListFilter) (*Page, error) {
	filter = filter.normalized()

	query := bson.D{}
	if filter.Status != "" {
		query = append(query, bson.E{Key: "status", Value: filter.Status})
	}
	if filter.Email != "" {
		query = append(query, bson.E{Key: "email", Value: bson.Regex{Pattern: regexp.QuoteMeta(filter.Email), Options: "i"}})
	}
	if !filter.CreatedBefore.IsZero() {
		query = append(query, bson.E{Key: "created_at", Value: bson.D{{Key: "$lt", Value: filter.CreatedBefore}}})
	}

	total, err := r.coll.CountDocuments(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to count notifications: %w", err)
	}

	cur, err := r.coll.Find(ctx, query, options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}).
		SetSkip(int64(filter.Offset)).
		SetLimit(int64(filter.Limit)))
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}

	data := []*Notification{}
	if err := cur.All(ctx, &data); err != nil {
		return nil, fmt.Errorf("failed to decode notifications: %w", err)
	}

	return &Page{Data: data, Total: total, Limit: filter.Limit, Offset: filter.Offset}, nil
}

type statusGroup struct {
	Status Status `bson:"_id"`
	Count  int64  `bson:"count"`
}

type channelGroup struct {
	ID struct {
		Channel Channel `bson:"channel"`
		Status  Status  `bson:"status"`
	} `bson:"_id"`
	Count int64 `bson:"count"`
}

func (r *MongoRepository) Stats(ctx context.Context) (*Stats, error) {
	st := &Stats{ByChannel: emptyChannelStats()}

	var byStatus []statusGroup
	if err := r.aggregate(ctx, &byStatus, mongo.Pipeline{
		{{Key: "$group", Value: bson.D{{Key: "_id", Value: "$status"}, {Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}}}}},
	}); err != nil {
		return nil, err
	}
	for _, g := range byStatus {
		st.Total += g.Count
		st.ByStatus.add(g.Status, g.Count)
	}

	var byChannel []channelGroup
	if err := r.aggregate(ctx, &byChannel, mongo.Pipeline{
		{{Key: "$unwind", Value: "$channels"}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: bson.D{{Key: "channel", Value: "$channels"}, {Key: "status", Value: "$status"}}},
			{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
	}); err != nil {
		return nil, err
	}
	counts := make(map[Channel]map[Status]int64)
	for _, g := range byChannel {
		if counts[g.ID.Channel] == nil {
			counts[g.ID.Channel] = make(map[Status]int64)
		}
		counts[g.ID.Channel][g.ID.Status] += g.Count
	}
	for c, m := range counts {
		for _, s := range Statuses {
			if m[s] > 0 {
				st.ByChannel[c] = append(st.ByChannel[c], StatusCount{Status: s, Count: m[s]})
			}
		}
	}

	since := time.Now().UTC().Add(-recentWindow)
	recent, err := r.coll.CountDocuments(ctx, bson.D{{Key: "created_at", Value: bson.D{{Key: "$gte", Value: since}}}})
	if err != nil {
		return nil, fmt.Errorf("failed to count recent notifications: %w", err)
	}
	st.RecentLast24h = recent
	st.SuccessRatePercent = successRate(st.ByStatus.Sent, st.Total)
	return st, nil
}

func (r *MongoRepository) aggregate(ctx context.Context, out any, pipeline mongo.Pipeline) error {
	cur, err := r.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return fmt.Errorf("failed to aggregate notification stats: %w", err)
	}
	if err := cur.All(ctx, out); err != nil {
		return fmt.Errorf("failed to decode notification stats: %w", err)
	}
	return nil
}
