package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// claimScript returns expired locks of one queue to its pending set and then
// moves the earliest ready task to the processing set.
//
// KEYS[1] pending zset, KEYS[2] processing zset
// ARGV[1] now (unix ms), ARGV[2] lock deadline (unix ms)
var claimScript = redis.NewScript(`
local expired = redis.call('ZRANGEBYSCORE', KEYS[2], '-inf', ARGV[1])
for _, id in ipairs(expired) do
	redis.call('ZREM', KEYS[2], id)
	redis.call('ZADD', KEYS[1], ARGV[1], id)
end
local ids = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', ARGV[1], 'LIMIT', 0, 1)
if #ids == 0 then
	return false
end
redis.call('ZREM', KEYS[1], ids[1])
redis.call('ZADD', KEYS[2], ARGV[2], ids[1])
return ids[1]
`)

// releaseKeyScript deletes a task key only while it still points at the task.
var releaseKeyScript = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
	return redis.call('DEL', KEYS[1])
end
return 0
`)

// RedisStorage implements the queue repository interfaces on Redis.
// Ready tasks are claimed in schedule order; priority is stored but not
// used for ordering.
type RedisStorage struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisStorage creates a storage on top of an existing client.
func NewRedisStorage(client redis.UniversalClient, prefix string) (*RedisStorage, error) {
	if client == nil {
		return nil, ErrRepositoryNil
	}
	if prefix == "" {
		prefix = "queue"
	}
	return &RedisStorage{client: client, prefix: prefix}, nil
}

func (rs *RedisStorage) taskKey(id uuid.UUID) string { return rs.prefix + ":task:" + id.String() }
func (rs *RedisStorage) deadKey(id uuid.UUID) string { return rs.prefix + ":dead:" + id.String() }
func (rs *RedisStorage) uniqueKey(k string) string   { return rs.prefix + ":key:" + k }
func (rs *RedisStorage) pendingKey(q string) string  { return rs.prefix + ":pending:" + q }
func (rs *RedisStorage) processingKey(q string) string {
	return rs.prefix + ":processing:" + q
}
func (rs *RedisStorage) completedKey() string { return rs.prefix + ":completed" }
func (rs *RedisStorage) deadSetKey() string   { return rs.prefix + ":dead" }

// CreateTask implements EnqueuerRepository
func (rs *RedisStorage) CreateTask(ctx context.Context, task *Task) error {
	if task == nil {
		return errors.New("task cannot be nil")
	}

	data, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("failed to encode task %s: %w", task.ID, err)
	}

	if task.Key != "" {
		ok, err := rs.client.SetNX(ctx, rs.uniqueKey(task.Key), task.ID.String(), 0).Result()
		if err != nil {
			return fmt.Errorf("failed to reserve task key: %w", err)
		}
		if !ok {
			return ErrDuplicateTask
		}
	}

	_, err = rs.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, rs.taskKey(task.ID), data, 0)
		pipe.ZAdd(ctx, rs.pendingKey(task.Queue), redis.Z{
			Score:  float64(task.ScheduledAt.UnixMilli()),
			Member: task.ID.String(),
		})
		return nil
	})
	if err != nil {
		if task.Key != "" {
			_ = releaseKeyScript.Run(ctx, rs.client, []string{rs.uniqueKey(task.Key)}, task.ID.String()).Err()
		}
		return fmt.Errorf("failed to store task %s: %w", task.ID, err)
	}

	return nil
}

// ClaimTask implements WorkerRepository. Queues are tried in the given order.
func (rs *RedisStorage) ClaimTask(ctx context.Context, workerID uuid.UUID, queues []string, lockDuration time.Duration) (*Task, error) {
	now := time.Now()
	lockUntil := now.Add(lockDuration)

	for _, q := range queues {
		res, err := claimScript.Run(ctx, rs.client,
			[]string{rs.pendingKey(q), rs.processingKey(q)},
			now.UnixMilli(), lockUntil.UnixMilli(),
		).Text()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to claim task from queue %q: %w", q, err)
		}

		id, err := uuid.Parse(res)
		if err != nil {
			return nil, fmt.Errorf("invalid task id %q in queue %q: %w", res, q, err)
		}

		task, err := rs.loadTask(ctx, id)
		if err != nil {
			return nil, err
		}

		task.Status = TaskStatusProcessing
		task.LockedUntil = &lockUntil
		task.LockedBy = &workerID
		if err := rs.saveTask(ctx, task); err != nil {
			return nil, err
		}

		return task, nil
	}

	return nil, ErrNoTaskToClaim
}

// CompleteTask implements WorkerRepository
func (rs *RedisStorage) CompleteTask(ctx context.Context, workerID, taskID uuid.UUID) error {
	task, err := rs.processingTask(ctx, workerID, taskID)
	if err != nil {
		return err
	}

	now := time.Now()
	task.Status = TaskStatusCompleted
	task.ProcessedAt = &now
	task.LockedUntil = nil
	task.LockedBy = nil

	data, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("failed to encode task %s: %w", task.ID, err)
	}

	_, err = rs.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZRem(ctx, rs.processingKey(task.Queue), task.ID.String())
		pipe.Set(ctx, rs.taskKey(task.ID), data, 0)
		pipe.ZAdd(ctx, rs.completedKey(), redis.Z{Score: float64(now.UnixMilli()), Member: task.ID.String()})
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to complete task %s: %w", task.ID, err)
	}

	return rs.releaseKey(ctx, task)
}

// RetryTask implements WorkerRepository
func (rs *RedisStorage) RetryTask(ctx context.Context, workerID, taskID uuid.UUID, errorMsg string, retryAt time.Time) error {
	task, err := rs.processingTask(ctx, workerID, taskID)
	if err != nil {
		return err
	}

	task.Attempts++
	task.Error = &errorMsg
	task.Status = TaskStatusPending
	task.ScheduledAt = retryAt
	task.LockedUntil = nil
	task.LockedBy = nil

	data, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("failed to encode task %s: %w", task.ID, err)
	}

	_, err = rs.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZRem(ctx, rs.processingKey(task.Queue), task.ID.String())
		pipe.Set(ctx, rs.taskKey(task.ID), data, 0)
		pipe.ZAdd(ctx, rs.pendingKey(task.Queue), redis.Z{
			Score:  float64(retryAt.UnixMilli()),
			Member: task.ID.String(),
		})
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to reschedule task %s: %w", task.ID, err)
	}

	return nil
}

// FailTask implements WorkerRepository
func (rs *RedisStorage) FailTask(ctx context.Context, workerID, taskID uuid.UUID, errorMsg string) error {
	task, err := rs.processingTask(ctx, workerID, taskID)
	if err != nil {
		return err
	}

	now := time.Now()
	dead := DeadTask{
		TaskID:   task.ID,
		Queue:    task.Queue,
		TaskName: task.TaskName,
		Key:      task.Key,
		Payload:  task.Payload,
		Error:    errorMsg,
		Attempts: task.Attempts + 1,
		FailedAt: now,
	}

	data, err := json.Marshal(dead)
	if err != nil {
		return fmt.Errorf("failed to encode dead task %s: %w", task.ID, err)
	}

	_, err = rs.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZRem(ctx, rs.processingKey(task.Queue), task.ID.String())
		pipe.Del(ctx, rs.taskKey(task.ID))
		pipe.Set(ctx, rs.deadKey(task.ID), data, 0)
		pipe.ZAdd(ctx, rs.deadSetKey(), redis.Z{Score: float64(now.UnixMilli()), Member: task.ID.String()})
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to dead-letter task %s: %w", task.ID, err)
	}

	return rs.releaseKey(ctx, task)
}

// ExtendLock implements WorkerRepository
func (rs *RedisStorage) ExtendLock(ctx context.Context, workerID, taskID uuid.UUID, duration time.Duration) error {
	task, err := rs.processingTask(ctx, workerID, taskID)
	if err != nil {
		return err
	}

	lockUntil := time.Now().Add(duration)
	task.LockedUntil = &lockUntil

	if err := rs.client.ZAddXX(ctx, rs.processingKey(task.Queue), redis.Z{
		Score:  float64(lockUntil.UnixMilli()),
		Member: task.ID.String(),
	}).Err(); err != nil {
		return fmt.Errorf("failed to extend lock for task %s: %w", task.ID, err)
	}

	return rs.saveTask(ctx, task)
}

// PruneTasks implements PrunerRepository
func (rs *RedisStorage) PruneTasks(ctx context.Context, before time.Time) (int, error) {
	maxScore := strconv.FormatInt(before.UnixMilli()-1, 10)
	removed := 0

	for _, set := range []struct {
		key    string
		keyFor func(uuid.UUID) string
	}{
		{rs.completedKey(), rs.taskKey},
		{rs.deadSetKey(), rs.deadKey},
	} {
		ids, err := rs.client.ZRangeByScore(ctx, set.key, &redis.ZRangeBy{Min: "-inf", Max: maxScore}).Result()
		if err != nil {
			return removed, fmt.Errorf("failed to list prunable tasks: %w", err)
		}
		if len(ids) == 0 {
			continue
		}

		keys := make([]string, 0, len(ids))
		members := make([]any, 0, len(ids))
		for _, raw := range ids {
			id, err := uuid.Parse(raw)
			if err != nil {
				continue
			}
			keys = append(keys, set.keyFor(id))
			members = append(members, raw)
		}

		_, err = rs.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			if len(keys) > 0 {
				pipe.Del(ctx, keys...)
			}
			pipe.ZRem(ctx, set.key, members...)
			return nil
		})
		if err != nil {
			return removed, fmt.Errorf("failed to prune tasks: %w", err)
		}
		removed += len(ids)
	}

	return removed, nil
}

// GetTask returns a task that has not been dead-lettered or pruned.
func (rs *RedisStorage) GetTask(ctx context.Context, taskID uuid.UUID) (*Task, error) {
	return rs.loadTask(ctx, taskID)
}

// DeadTasks returns dead-lettered tasks, oldest failure first.
func (rs *RedisStorage) DeadTasks(ctx context.Context) ([]DeadTask, error) {
	ids, err := rs.client.ZRange(ctx, rs.deadSetKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list dead tasks: %w", err)
	}

	out := make([]DeadTask, 0, len(ids))
	for _, raw := range ids {
		id, err := uuid.Parse(raw)
		if err != nil {
			continue
		}
		data, err := rs.client.Get(ctx, rs.deadKey(id)).Bytes()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to load dead task %s: %w", id, err)
		}
		var dt DeadTask
		if err := json.Unmarshal(data, &dt); err != nil {
			return nil, fmt.Errorf("failed to decode dead task %s: %w", id, err)
		}
		out = append(out, dt)
	}

	return out, nil
}

func (rs *RedisStorage) loadTask(ctx context.Context, taskID uuid.UUID) (*Task, error) {
	data, err := rs.client.Get(ctx, rs.taskKey(taskID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("task %s: %w", taskID, ErrTaskNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load task %s: %w", taskID, err)
	}

	var task Task
	if err := json.Unmarshal(data, &task); err != nil {
		return nil, fmt.Errorf("failed to decode task %s: %w", taskID, err)
	}
	return &task, nil
}

func (rs *RedisStorage) saveTask(ctx context.Context, task *Task) error {
	data, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("failed to encode task %s: %w", task.ID, err)
	}
	if err := rs.client.Set(ctx, rs.taskKey(task.ID), data, 0).Err(); err != nil {
		return fmt.Errorf("failed to save task %s: %w", task.ID, err)
	}
	return nil
}

// processingTask loads a task and checks that it is still held in its
// processing set by workerID.
func (rs *RedisStorage) processingTask(ctx context.Context, workerID, taskID uuid.UUID) (*Task, error) {
	task, err := rs.loadTask(ctx, taskID)
	if err != nil {
		return nil, err
	}

	_, err = rs.client.ZScore(ctx, rs.processingKey(task.Queue), task.ID.String()).Result()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("task %s: %w", taskID, ErrTaskNotProcessing)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to check task %s: %w", taskID, err)
	}
	if task.LockedBy == nil || *task.LockedBy != workerID {
		return nil, fmt.Errorf("task %s: %w", taskID, ErrTaskLockLost)
	}

	return task, nil
}

func (rs *RedisStorage) releaseKey(ctx context.Context, task *Task) error {
	if task.Key == "" {
		return nil
	}
	if err := releaseKeyScript.Run(ctx, rs.client, []string{rs.uniqueKey(task.Key)}, task.ID.String()).Err(); err != nil {
		return fmt.Errorf("failed to release key of task %s: %w", task.ID, err)
	}
	return nil
}
