package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/your-org/vod/internal/config"
	"github.com/your-org/vod/internal/models"
)

// Key layout:
//
//	detection:results:{videoId}   hash  resultId -> result JSON
//	detection:timeline:{videoId}  zset  resultId scored by timestamp millis
//	detection:stats:{videoId}     hash  aggregate counters
//	video:{videoId}               hash  video metadata
//	videos                        zset  videoId scored by upload millis
//	model:{modelId}               hash  model metadata
//	models                        set   known model ids
//	model:active                  string
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(cfg config.RedisConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return &RedisStore{client: client}, nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func resultsKey(videoID string) string  { return "detection:results:" + videoID }
func timelineKey(videoID string) string { return "detection:timeline:" + videoID }
func statsKey(videoID string) string    { return "detection:stats:" + videoID }
func videoKey(videoID string) string    { return "video:" + videoID }
func modelKey(modelID string) string    { return "model:" + modelID }

const (
	videosKey      = "videos"
	modelsKey      = "models"
	activeModelKey = "model:active"
)

// PutResult stores one frame result. Writing the same result ID twice
// overwrites the previous entry, so retries are safe.
func (s *RedisStore) PutResult(ctx context.Context, videoID string, result models.DetectionResult) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, resultsKey(videoID), result.ID.String(), payload)
	pipe.ZAdd(ctx, timelineKey(videoID), redis.Z{
		Score:  float64(result.Timestamp.UnixMilli()),
		Member: result.ID.String(),
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return &StoreError{Op: "put result", Key: resultsKey(videoID), Err: err}
	}
	return nil
}

// ListResults returns every stored result for a video ordered by frame
// number. The timeline zset orders by timestamp; results produced within the
// same millisecond are tie-broken by frame number after the fetch.
func (s *RedisStore) ListResults(ctx context.Context, videoID string) ([]models.DetectionResult, error) {
	ids, err := s.client.ZRange(ctx, timelineKey(videoID), 0, -1).Result()
	if err != nil {
		return nil, &StoreError{Op: "list results", Key: timelineKey(videoID), Err: err}
	}
	if len(ids) == 0 {
		return nil, nil
	}

	raw, err := s.client.HMGet(ctx, resultsKey(videoID), ids...).Result()
	if err != nil {
		return nil, &StoreError{Op: "list results", Key: resultsKey(videoID), Err: err}
	}

	results := make([]models.DetectionResult, 0, len(raw))
	for _, v := range raw {
		str, ok := v.(string)
		if !ok {
			continue
		}
		var r models.DetectionResult
		if err := json.Unmarshal([]byte(str), &r); err != nil {
			return nil, fmt.Errorf("unmarshal result: %w", err)
		}
		results = append(results, r)
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].FrameNumber < results[j].FrameNumber
	})
	return results, nil
}

func (s *RedisStore) PutStats(ctx context.Context, videoID string, stats models.DetectionStats) error {
	fields := map[string]interface{}{
		"totalFrames":  stats.TotalFrames,
		"totalObjects": stats.TotalObjects,
		"vehicleCount": stats.VehicleCount,
		"personCount":  stats.PersonCount,
		"otherCount":   stats.OtherCount,
		"processedAt":  stats.ProcessedAt.UTC().Format(time.RFC3339Nano),
	}
	if err := s.client.HSet(ctx, statsKey(videoID), fields).Err(); err != nil {
		return &StoreError{Op: "put stats", Key: statsKey(videoID), Err: err}
	}
	return nil
}

func (s *RedisStore) GetStats(ctx context.Context, videoID string) (*models.DetectionStats, error) {
	fields, err := s.client.HGetAll(ctx, statsKey(videoID)).Result()
	if err != nil {
		return nil, &StoreError{Op: "get stats", Key: statsKey(videoID), Err: err}
	}
	if len(fields) == 0 {
		return nil, ErrNotFound
	}

	stats := &models.DetectionStats{
		TotalFrames:  atoi(fields["totalFrames"]),
		TotalObjects: atoi(fields["totalObjects"]),
		VehicleCount: atoi(fields["vehicleCount"]),
		PersonCount:  atoi(fields["personCount"]),
		OtherCount:   atoi(fields["otherCount"]),
	}
	if ts, err := time.Parse(time.RFC3339Nano, fields["processedAt"]); err == nil {
		stats.ProcessedAt = ts
	}
	return stats, nil
}

func (s *RedisStore) PutVideoMeta(ctx context.Context, meta models.VideoMeta) error {
	fields := map[string]interface{}{
		"originalName": meta.OriginalName,
		"objectKey":    meta.ObjectKey,
		"size":         meta.Size,
		"frameCount":   meta.FrameCount,
		"modelUsed":    meta.ModelUsed,
		"uploadedAt":   meta.UploadedAt.UTC().Format(time.RFC3339Nano),
	}

	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, videoKey(meta.VideoID), fields)
	pipe.ZAdd(ctx, videosKey, redis.Z{
		Score:  float64(meta.UploadedAt.UnixMilli()),
		Member: meta.VideoID,
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return &StoreError{Op: "put video meta", Key: videoKey(meta.VideoID), Err: err}
	}
	return nil
}

func (s *RedisStore) GetVideoMeta(ctx context.Context, videoID string) (*models.VideoMeta, error) {
	fields, err := s.client.HGetAll(ctx, videoKey(videoID)).Result()
	if err != nil {
		return nil, &StoreError{Op: "get video meta", Key: videoKey(videoID), Err: err}
	}
	if len(fields) == 0 {
		return nil, ErrNotFound
	}

	meta := &models.VideoMeta{
		VideoID:      videoID,
		OriginalName: fields["originalName"],
		ObjectKey:    fields["objectKey"],
		Size:         atoi64(fields["size"]),
		FrameCount:   atoi(fields["frameCount"]),
		ModelUsed:    fields["modelUsed"],
	}
	if ts, err := time.Parse(time.RFC3339Nano, fields["uploadedAt"]); err == nil {
		meta.UploadedAt = ts
	}
	return meta, nil
}

// ListVideos returns video metadata newest first.
func (s *RedisStore) ListVideos(ctx context.Context) ([]models.VideoMeta, error) {
	ids, err := s.client.ZRevRange(ctx, videosKey, 0, -1).Result()
	if err != nil {
		return nil, &StoreError{Op: "list videos", Key: videosKey, Err: err}
	}

	videos := make([]models.VideoMeta, 0, len(ids))
	for _, id := range ids {
		meta, err := s.GetVideoMeta(ctx, id)
		if err != nil {
			if err == ErrNotFound {
				continue
			}
			return nil, err
		}
		videos = append(videos, *meta)
	}
	return videos, nil
}

// DeleteVideo removes every record for a video. Deleting a video that does
// not exist is a no-op.
func (s *RedisStore) DeleteVideo(ctx context.Context, videoID string) error {
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, resultsKey(videoID), timelineKey(videoID), statsKey(videoID), videoKey(videoID))
	pipe.ZRem(ctx, videosKey, videoID)
	if _, err := pipe.Exec(ctx); err != nil {
		return &StoreError{Op: "delete video", Key: videoKey(videoID), Err: err}
	}
	return nil
}

// --- Model registry ---

func (s *RedisStore) PutModel(ctx context.Context, m models.ModelInfo) error {
	fields := map[string]interface{}{
		"filename":     m.Filename,
		"originalName": m.OriginalName,
		"objectKey":    m.ObjectKey,
		"size":         m.Size,
		"uploadedAt":   m.UploadedAt.UTC().Format(time.RFC3339Nano),
	}

	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, modelKey(m.ID), fields)
	pipe.SAdd(ctx, modelsKey, m.ID)
	if _, err := pipe.Exec(ctx); err != nil {
		return &StoreError{Op: "put model", Key: modelKey(m.ID), Err: err}
	}
	return nil
}

func (s *RedisStore) GetModel(ctx context.Context, modelID string) (*models.ModelInfo, error) {
	fields, err := s.client.HGetAll(ctx, modelKey(modelID)).Result()
	if err != nil {
		return nil, &StoreError{Op: "get model", Key: modelKey(modelID), Err: err}
	}
	if len(fields) == 0 {
		return nil, ErrNotFound
	}

	m := &models.ModelInfo{
		ID:           modelID,
		Filename:     fields["filename"],
		OriginalName: fields["originalName"],
		ObjectKey:    fields["objectKey"],
		Size:         atoi64(fields["size"]),
	}
	if ts, err := time.Parse(time.RFC3339Nano, fields["uploadedAt"]); err == nil {
		m.UploadedAt = ts
	}
	return m, nil
}

func (s *RedisStore) ListModels(ctx context.Context) ([]models.ModelInfo, error) {
	ids, err := s.client.SMembers(ctx, modelsKey).Result()
	if err != nil {
		return nil, &StoreError{Op: "list models", Key: modelsKey, Err: err}
	}
	sort.Strings(ids)

	infos := make([]models.ModelInfo, 0, len(ids))
	for _, id := range ids {
		m, err := s.GetModel(ctx, id)
		if err != nil {
			if err == ErrNotFound {
				continue
			}
			return nil, err
		}
		infos = append(infos, *m)
	}
	return infos, nil
}

func (s *RedisStore) DeleteModel(ctx context.Context, modelID string) error {
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, modelKey(modelID))
	pipe.SRem(ctx, modelsKey, modelID)
	if _, err := pipe.Exec(ctx); err != nil {
		return &StoreError{Op: "delete model", Key: modelKey(modelID), Err: err}
	}
	return nil
}

func (s *RedisStore) SetActiveModel(ctx context.Context, modelID string) error {
	if err := s.client.Set(ctx, activeModelKey, modelID, 0).Err(); err != nil {
		return &StoreError{Op: "set active model", Key: activeModelKey, Err: err}
	}
	return nil
}

// GetActiveModel returns the active model ID, or ErrNotFound when no model
// has been activated.
func (s *RedisStore) GetActiveModel(ctx context.Context) (string, error) {
	id, err := s.client.Get(ctx, activeModelKey).Result()
	if err == redis.Nil {
		return "", ErrNotFound
	}
	if err != nil {
		return "", &StoreError{Op: "get active model", Key: activeModelKey, Err: err}
	}
	return id, nil
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

func atoi64(s string) int64 {
	n, _ := strconv.ParseInt(s, 10, 64)
	return n
}
