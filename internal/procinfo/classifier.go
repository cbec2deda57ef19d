// Package procinfo classifies application-layer processes through the legacy
// process-descriptor lookup: a pid resolves to a process serial, and the serial
// yields a descriptor whose type code tells real applications apart from
// XPC-style helpers that the application layer misreports as applications.
package procinfo

import (
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/zjrosen/appwatch/internal/invariant"
	"github.com/zjrosen/appwatch/internal/log"
)

// Status is an OSStatus-style result code. Zero means success.
type Status int32

const (
	StatusOK           Status = 0
	StatusProcNotFound Status = -600 // procNotFound
	StatusUnsupported  Status = -4   // unimpErr
)

// Serial is an opaque process serial number.
type Serial struct {
	High uint32
	Low  uint32
}

func (s Serial) String() string {
	return fmt.Sprintf("%d:%d", s.High, s.Low)
}

// Descriptor is the subset of the process information record we read.
type Descriptor struct {
	Type      TypeCode
	Signature TypeCode
}

// Lookup is the legacy descriptor-lookup facility.
type Lookup interface {
	ResolveSerial(pid int32) (Serial, Status)
	FetchDescriptor(serial Serial) (Descriptor, Status)
}

// Option configures a Classifier.
type Option func(*Classifier)

// WithCache caches descriptor type codes per serial for ttl.
// A serial identifies a single launch, so a cached verdict cannot outlive
// the process it describes. A non-positive ttl disables caching.
func WithCache(ttl time.Duration) Option {
	return func(c *Classifier) {
		if ttl > 0 {
			c.cache = gocache.New(ttl, 2*ttl)
		}
	}
}

// Classifier answers whether a pid is a pseudo-application.
type Classifier struct {
	lookup Lookup
	cache  *gocache.Cache
}

// NewClassifier creates a classifier over lookup.
func NewClassifier(lookup Lookup, opts ...Option) *Classifier {
	c := &Classifier{lookup: lookup}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// IsPseudoApplication reports whether pid is an XPC-style helper.
// Any lookup failure, including "not found", answers false.
func (c *Classifier) IsPseudoApplication(pid int32) bool {
	code, ok := c.TypeOf(pid)
	if !ok {
		return false
	}
	return code == TypeXPC
}

// TypeOf returns the process type code for pid, or false if either lookup
// step failed.
func (c *Classifier) TypeOf(pid int32) (TypeCode, bool) {
	serial, status := c.lookup.ResolveSerial(pid)
	if status != StatusOK {
		log.Debug(log.CatClassify, "serial lookup failed", "pid", pid, "status", status)
		return 0, false
	}

	key := serial.String()
	if c.cache != nil {
		if v, found := c.cache.Get(key); found {
			if code, ok := v.(TypeCode); ok {
				log.Debug(log.CatClassify, "cache hit", "pid", pid, "serial", key)
				return code, true
			}
			log.Error(log.CatClassify, "wrong type assertion when getting value", "key", key)
		}
	}

	desc, status := c.lookup.FetchDescriptor(serial)
	if status != StatusOK {
		log.Debug(log.CatClassify, "descriptor lookup failed", "pid", pid, "serial", key, "status", status)
		return 0, false
	}

	invariant.Check(!desc.Type.mentionsXPC() || desc.Type == TypeXPC, log.CatClassify,
		"unexpected XPC-like process type", "pid", pid, "type", desc.Type.Quoted())

	log.Debug(log.CatClassify, "process type", "pid", pid, "type", desc.Type.Quoted())

	if c.cache != nil {
		c.cache.SetDefault(key, desc.Type)
	}
	return desc.Type, true
}
