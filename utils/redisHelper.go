package utils

import (
	"context"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/bsm/redislock"
	"github.com/mapletrade/store_backend/config"
)

var mutex sync.Mutex

func GetTypeName[T any]() string {
	var v T
	t := reflect.TypeOf(v)
	for t != nil && t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t == nil {
		return ""
	}
	return t.Name()
}

// check that no other row of T has field = value (id = excludeId is ignored)
func ValidateUnique[T any](ctx context.Context, field string, value interface{}, excludeId int) error {
	count, err := ResourceCountWhere[T](ctx, field+" = ? AND id != ?", value, excludeId)
	if err != nil {
		return err
	}
	if count > 0 {
		return fmt.Errorf("%s must be unique", field)
	}
	return nil
}

// GetSequence allocates the next sequence number for T's table.
//
// The counter lives in Redis and is seeded from MAX(sequence_no) on first
// use. A redis lock serializes allocation across instances; when Redis is
// unavailable a process-local mutex is the best we can do.
func GetSequence[T any](ctx context.Context) (int64, error) {
	cacheKey := strings.ToLower(GetTypeName[T]()) + "_seq"

	if locker := config.GetRedisLock(); locker != nil {
		lock, err := locker.Obtain(ctx, cacheKey+":lock", 10*time.Second, &redislock.Options{
			RetryStrategy: redislock.LimitRetry(redislock.LinearBackoff(100*time.Millisecond), 50),
		})
		if err != nil {
			return 0, err
		}
		defer lock.Release(ctx)
	} else {
		mutex.Lock()
		defer mutex.Unlock()
	}

	db := config.GetDB()
	var model T
	var seqNo int64
	var err error

	for {
		seqNo, err = config.GetRedisCounter(ctx, cacheKey)
		if err != nil {
			return 0, err
		}
		// if not found in redis, seed from db
		if seqNo <= 1 {
			var dbSeq *int64
			if err := db.WithContext(ctx).Model(&model).Select("max(sequence_no)").
				Scan(&dbSeq).Error; err != nil {
				return 0, err
			}
			if dbSeq == nil {
				seqNo = 0
			} else {
				seqNo = *dbSeq
			}
			seqNo++
			if err := config.SetRedisObject(cacheKey, &seqNo, 0); err != nil {
				return 0, err
			}
		}
		// guard against counters resurrected from a stale snapshot
		err = ValidateUnique[T](ctx, "sequence_no", seqNo, 0)
		if err == nil {
			break
		}
	}

	return seqNo, nil
}
