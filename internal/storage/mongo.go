package storage

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"knowrag-backend/pkg/logger"
)

// UserLog 一次流式查询的请求留痕，按 msg_id 幂等落库
type UserLog struct {
	ID                string  `bson:"id"`
	UserID            string  `bson:"user_id"`
	KBName            string  `bson:"kb_name"`
	KnowledgeBaseInfo any     `bson:"knowledge_base_info"`
	Question          string  `bson:"question"`
	Rate              float64 `bson:"rate"`
	TopK              int     `bson:"top_k"`
	TopP              float64 `bson:"top_p"`
	RepetitionPenalty float64 `bson:"repetition_penalty"`
	Temperature       float64 `bson:"temperature"`
	MaxHistory        int     `bson:"max_history"`
	DoSample          bool    `bson:"do_sample"`
	ReturnMeta        string  `bson:"return_meta"`
	AutoCitation      string  `bson:"auto_citation"`
	DataFlywheel      string  `bson:"data_flywheel"`
	ReturnScore       string  `bson:"return_score"`
	UseCache          string  `bson:"use_cache"`
	PromptTemplate    string  `bson:"prompt_template"`
	DefaultAnswer     string  `bson:"default_answer"`
	ModelName         string  `bson:"model_name"`
	SearchField       string  `bson:"search_field"`
	SearchList        any     `bson:"search_list"`
	Scores            any     `bson:"scores"`
	Status            int     `bson:"status"`
	UpdateTime        int64   `bson:"update_time"`
	CreateTime        int64   `bson:"create_time"`
	CreateDT          int     `bson:"create_dt"`
}

type MongoLogStore struct {
	client     *mongo.Client
	collection *mongo.Collection
}

func NewMongoLogStore(ctx context.Context, uri, database, collection string) (*MongoLogStore, error) {
	opts := options.Client().
		ApplyURI(uri).
		SetConnectTimeout(5 * time.Second).
		SetServerSelectionTimeout(3 * time.Second)
	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, err
	}
	return &MongoLogStore{
		client:     client,
		collection: client.Database(database).Collection(collection),
	}, nil
}

// UpsertUserLog 按 id 幂等写入用户日志
func (s *MongoLogStore) UpsertUserLog(ctx context.Context, entry *UserLog) error {
	now := time.Now()
	millis := now.UnixMilli()
	entry.UpdateTime = millis
	if entry.CreateTime == 0 {
		entry.CreateTime = millis
	}
	if entry.CreateDT == 0 {
		y, m, d := now.Date()
		entry.CreateDT = y*10000 + int(m)*100 + d
	}

	_, err := s.collection.UpdateOne(
		ctx,
		bson.M{"id": entry.ID},
		bson.M{"$set": entry},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return err
	}
	logger.Infof("=======>user log已存储至mongoDB,id=%s", entry.ID)
	return nil
}

func (s *MongoLogStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}
