package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// ExamKey returns the cache key for a full exam definition, answer key included.
func (r *CacheKeyStruct) ExamKey(examID string) string {
	return fmt.Sprintf("exam:%s:definition", examID)
}

// LevelExamsKey returns the cache key for the published exam list of a level.
func (r *CacheKeyStruct) LevelExamsKey(levelID string) string {
	return fmt.Sprintf("level:%s:exams", levelID)
}

// AttemptDraftKey returns the hash holding a student's unsubmitted answers.
func (r *CacheKeyStruct) AttemptDraftKey(examID, studentKey string) string {
	return fmt.Sprintf("exam:%s:draft:%s", examID, studentKey)
}

// ExamResultsChannel returns the Redis PubSub channel for an exam's new results.
func (r *CacheKeyStruct) ExamResultsChannel(examID string) string {
	return fmt.Sprintf("exam:%s:results", examID)
}

var CacheKey = NewCacheKeyStruct()
