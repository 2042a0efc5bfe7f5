package translation

import (
	"math/rand/v2"
	"strings"
	"time"
)

// Fingerprinter shapes keyless DeepL requests. The iOS variant mimics what the
// official app sends; it is a compatibility shim and may stop working whenever the
// endpoint changes its checks.
type Fingerprinter interface {
	RequestID() int64
	Timestamp(text string, now time.Time) int64
	// MethodSeparator returns the literal that introduces the method value in the
	// serialized body.
	MethodSeparator(id int64) string
	Headers() map[string]string
}

const (
	methodSeparatorCompact = `"method":"`
	methodSeparatorSpaced  = `"method": "`
	methodSeparatorWide    = `"method" : "`
)

// IOSFingerprint reproduces the DeepL iOS client. Int64N defaults to math/rand/v2.
type IOSFingerprint struct {
	Int64N func(n int64) int64
}

func (f IOSFingerprint) RequestID() int64 {
	int64n := f.Int64N
	if int64n == nil {
		int64n = rand.Int64N
	}
	return (8300000 + int64n(100000)) * 1000
}

// Timestamp rounds the clock to a multiple of (number of 'i' + 1), then adds that
// same step. Text without any 'i' keeps the raw millisecond clock.
func (f IOSFingerprint) Timestamp(text string, now time.Time) int64 {
	ts := now.UnixMilli()
	count := int64(strings.Count(text, "i"))
	if count == 0 {
		return ts
	}
	n := count + 1
	return ts - ts%n + n
}

func (f IOSFingerprint) MethodSeparator(id int64) string {
	if (id+5)%29 == 0 || (id+3)%13 == 0 {
		return methodSeparatorWide
	}
	return methodSeparatorSpaced
}

func (f IOSFingerprint) Headers() map[string]string {
	return map[string]string{
		"Content-Type":     "application/json",
		"Accept":           "*/*",
		"Accept-Language":  "en-US,en;q=0.9",
		"User-Agent":       "DeepL-iOS/2.9.1 iOS 16.3.0 (iPhone13,2)",
		"x-app-os-name":    "iOS",
		"x-app-os-version": "16.3.0",
		"x-app-device":     "iPhone13,2",
		"x-app-build":      "510265",
		"x-app-version":    "2.9.1",
		"Referer":          "https://www.deepl.com/",
	}
}

// PlainFingerprint sends an ordinary JSON-RPC request with no client mimicry.
type PlainFingerprint struct{}

func (PlainFingerprint) RequestID() int64 {
	return (8300000 + rand.Int64N(100000)) * 1000
}

func (PlainFingerprint) Timestamp(_ string, now time.Time) int64 {
	return now.UnixMilli()
}

func (PlainFingerprint) MethodSeparator(int64) string {
	return methodSeparatorCompact
}

func (PlainFingerprint) Headers() map[string]string {
	return map[string]string{
		"Content-Type": "application/json",
		"User-Agent":   "glossian",
	}
}
