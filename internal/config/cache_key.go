package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// StudentLoginKey returns the cache key for a student's login session (JTI).
func (r *CacheKeyStruct) StudentLoginKey(studentID int) string {
	return fmt.Sprintf("login:%d", studentID)
}

// DeviceLockKey returns the key holding the device fingerprint that currently
// occupies a (student, test) pair.
func (r *CacheKeyStruct) DeviceLockKey(testID string, studentID int) string {
	return fmt.Sprintf("test:%s:student:%d:lock", testID, studentID)
}

// SessionAnswersKey returns the key for a session's versioned answer hash.
func (r *CacheKeyStruct) SessionAnswersKey(sessionID string) string {
	return fmt.Sprintf("session:%s:answers", sessionID)
}

// SessionDeadlineKey returns the key caching a session's absolute deadline
// as a Unix timestamp.
func (r *CacheKeyStruct) SessionDeadlineKey(sessionID string) string {
	return fmt.Sprintf("session:%s:deadline", sessionID)
}

// TestPayloadKey returns the key for a test's student-facing payload.
func (r *CacheKeyStruct) TestPayloadKey(testID string) string {
	return fmt.Sprintf("test:%s:payload", testID)
}

// TestAnswerKey returns the key for a test's correct-answer hash.
func (r *CacheKeyStruct) TestAnswerKey(testID string) string {
	return fmt.Sprintf("test:%s:key", testID)
}

var CacheKey = NewCacheKeyStruct()
