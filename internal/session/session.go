// Package session 在 Redis 中保存对话帧（员工名单、目标月份、休息偏好）
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/kinmu/kinmu/internal/config"
	"github.com/kinmu/kinmu/pkg/calendar"
	"github.com/kinmu/kinmu/pkg/errors"
	"github.com/kinmu/kinmu/pkg/logger"
	"github.com/kinmu/kinmu/pkg/model"
	"github.com/kinmu/kinmu/pkg/scheduler"
)

const (
	defaultTTL    = 24 * time.Hour
	defaultPrefix = "kinmu:session:"
	maxRetries    = 3
)

// Frame 对话帧
type Frame struct {
	ID        string                  `json:"id"`
	UserID    string                  `json:"user_id"`
	Workers   model.Roster            `json:"workers"`
	Month     *calendar.MonthSelector `json:"month,omitempty"`
	Hopes     []model.PreferenceEntry `json:"hopes"`
	CreatedAt time.Time               `json:"created_at"`
	UpdatedAt time.Time               `json:"updated_at"`
}

// Empty 帧中还没有任何信息
func (f *Frame) Empty() bool {
	return len(f.Workers) == 0 && f.Month == nil && len(f.Hopes) == 0
}

// Request 把帧转换为排班请求；未指定月份时排下月
func (f *Frame) Request() (scheduler.Request, error) {
	if len(f.Workers) == 0 {
		return scheduler.Request{}, errors.InvalidInput("workers", "对话中还没有员工")
	}
	month := calendar.NextMonth()
	if f.Month != nil {
		month = *f.Month
	}
	return scheduler.Request{
		Employees:   append(model.Roster(nil), f.Workers...),
		Month:       month,
		Preferences: append([]model.PreferenceEntry(nil), f.Hopes...),
	}, nil
}

func (f *Frame) clear() {
	f.Workers = model.Roster{}
	f.Month = nil
	f.Hopes = []model.PreferenceEntry{}
}

// NewRedisClient 创建 Redis 客户端并检查连通性
func NewRedisClient(cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrap(err, errors.CodeSessionError, "连接Redis失败")
	}
	return client, nil
}

// Store 对话帧存储
type Store struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	now    func() time.Time
}

// Option 存储选项
type Option func(*Store)

// WithTTL 设置帧的过期时间
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithPrefix 设置键前缀
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		if prefix != "" {
			s.prefix = prefix
		}
	}
}

// WithClock 替换时钟
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// NewStore 创建对话帧存储
func NewStore(client *redis.Client, opts ...Option) *Store {
	s := &Store{
		client: client,
		prefix: defaultPrefix,
		ttl:    defaultTTL,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) key(id string) string {
	return s.prefix + id
}

// Start 为用户创建新的空白帧
func (s *Store) Start(ctx context.Context, userID string) (*Frame, error) {
	now := s.now()
	f := &Frame{
		ID:        uuid.NewString(),
		UserID:    userID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	f.clear()

	data, err := json.Marshal(f)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "序列化对话帧失败")
	}
	if err := s.client.Set(ctx, s.key(f.ID), data, s.ttl).Err(); err != nil {
		return nil, errors.Wrap(err, errors.CodeSessionError, "保存对话帧失败")
	}
	logger.WithContext(ctx).Debug().
		Str("session_id", f.ID).
		Str("user_id", userID).
		Msg("创建对话帧")
	return f, nil
}

// Get 读取帧
func (s *Store) Get(ctx context.Context, id string) (*Frame, error) {
	data, err := s.client.Get(ctx, s.key(id)).Bytes()
	if err == redis.Nil {
		return nil, errors.NotFound("session", id)
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeSessionError, "读取对话帧失败")
	}
	return decode(id, data)
}

// SetMonth 设置目标月份
func (s *Store) SetMonth(ctx context.Context, id string, month calendar.MonthSelector) (*Frame, error) {
	return s.update(ctx, id, func(f *Frame) error {
		f.Month = &month
		return nil
	})
}

// AddPreference 记录一条休息偏好；员工名为空时命名为 Noname_N，新员工追加到名单末尾
func (s *Store) AddPreference(ctx context.Context, id string, entry model.PreferenceEntry) (*Frame, error) {
	return s.update(ctx, id, func(f *Frame) error {
		if entry.Employee == "" {
			entry.Employee = model.Employee(fmt.Sprintf("Noname_%d", len(f.Workers)))
		}
		if !f.Workers.Contains(entry.Employee) {
			f.Workers = append(f.Workers, entry.Employee)
		}
		if len(entry.Dates) > 0 || len(entry.Weekdays) > 0 || entry.DatesInverted || entry.WeekdaysInverted {
			f.Hopes = append(f.Hopes, entry)
		}
		return nil
	})
}

// Correct 删除员工及其全部偏好
func (s *Store) Correct(ctx context.Context, id string, worker model.Employee) (*Frame, error) {
	return s.update(ctx, id, func(f *Frame) error {
		if !f.Workers.Contains(worker) {
			return errors.NotFound("worker", string(worker))
		}
		workers := make(model.Roster, 0, len(f.Workers)-1)
		for _, w := range f.Workers {
			if w != worker {
				workers = append(workers, w)
			}
		}
		hopes := make([]model.PreferenceEntry, 0, len(f.Hopes))
		for _, h := range f.Hopes {
			if h.Employee != worker {
				hopes = append(hopes, h)
			}
		}
		f.Workers, f.Hopes = workers, hopes
		return nil
	})
}

// Reset 清空帧内容，保留会话
func (s *Store) Reset(ctx context.Context, id string) (*Frame, error) {
	return s.update(ctx, id, func(f *Frame) error {
		f.clear()
		return nil
	})
}

// Delete 删除帧
func (s *Store) Delete(ctx context.Context, id string) error {
	n, err := s.client.Del(ctx, s.key(id)).Result()
	if err != nil {
		return errors.Wrap(err, errors.CodeSessionError, "删除对话帧失败")
	}
	if n == 0 {
		return errors.NotFound("session", id)
	}
	return nil
}

// update 在 WATCH 事务中读改写，键被并发修改时重试
func (s *Store) update(ctx context.Context, id string, mutate func(*Frame) error) (*Frame, error) {
	key := s.key(id)
	var result *Frame

	txf := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if err == redis.Nil {
			return errors.NotFound("session", id)
		}
		if err != nil {
			return errors.Wrap(err, errors.CodeSessionError, "读取对话帧失败")
		}
		f, err := decode(id, data)
		if err != nil {
			return err
		}
		if err := mutate(f); err != nil {
			return err
		}
		f.UpdatedAt = s.now()

		out, err := json.Marshal(f)
		if err != nil {
			return errors.Wrap(err, errors.CodeInternal, "序列化对话帧失败")
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, out, s.ttl)
			return nil
		})
		if err == nil {
			result = f
		}
		return err
	}

	for i := 0; i < maxRetries; i++ {
		err := s.client.Watch(ctx, txf, key)
		if err == nil {
			return result, nil
		}
		if err == redis.TxFailedErr {
			continue
		}
		if _, ok := err.(*errors.AppError); ok {
			return nil, err
		}
		return nil, errors.Wrap(err, errors.CodeSessionError, "更新对话帧失败")
	}
	return nil, errors.New(errors.CodeSessionError, "对话帧被并发修改，请重试")
}

func decode(id string, data []byte) (*Frame, error) {
	var f Frame
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, errors.Wrap(err, errors.CodeSessionError, "对话帧数据损坏").WithField("session_id", id)
	}
	return &f, nil
}
