// Package oplog keeps a journal of mutating operations, one YAML document
// per operation.
package oplog

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"appkeeper/internal/config"
	"appkeeper/pkg/logging"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

const kind = "operations"

// Entry is one journaled operation.
type Entry struct {
	ID        string            `yaml:"id"`
	Operation string            `yaml:"operation"`
	RelatedTo []string          `yaml:"related_to,omitempty"`
	StartedAt time.Time         `yaml:"started_at"`
	EndedAt   *time.Time        `yaml:"ended_at,omitempty"`
	Env       map[string]string `yaml:"env,omitempty"`
	Success   bool              `yaml:"success"`
	Error     string            `yaml:"error,omitempty"`
}

// Name is the storage name of the entry; it sorts chronologically.
func (e *Entry) Name() string {
	return e.StartedAt.UTC().Format("20060102-150405") + "-" + e.Operation + "-" + e.ID[:8]
}

// Journal persists entries through a config.Storage.
type Journal struct {
	storage *config.Storage
	now     func() time.Time
}

// New returns a journal writing to storage.
func New(storage *config.Storage) *Journal {
	return &Journal{storage: storage, now: time.Now}
}

// Operation is an entry being recorded.
type Operation struct {
	journal *Journal

	mu    sync.Mutex
	entry Entry
	ended bool
}

// Start records the beginning of operation on the related instances.
func (j *Journal) Start(operation string, related ...string) *Operation {
	op := &Operation{
		journal: j,
		entry: Entry{
			ID:        uuid.NewString(),
			Operation: operation,
			RelatedTo: related,
			StartedAt: j.now(),
		},
	}
	op.save()
	return op
}

// ID returns the entry id.
func (o *Operation) ID() string {
	return o.entry.ID
}

// Relate adds an instance the operation touches.
func (o *Operation) Relate(id string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for _, r := range o.entry.RelatedTo {
		if r == id {
			return
		}
	}
	o.entry.RelatedTo = append(o.entry.RelatedTo, id)
}

// SetEnv records the script environment minus the redacted keys.
func (o *Operation) SetEnv(env map[string]string, redact ...string) {
	hidden := make(map[string]bool, len(redact))
	for _, k := range redact {
		hidden[k] = true
	}
	clean := make(map[string]string, len(env))
	for k, v := range env {
		if !hidden[k] {
			clean[k] = v
		}
	}
	o.mu.Lock()
	o.entry.Env = clean
	o.mu.Unlock()
	o.save()
}

// Succeed closes the entry as successful.
func (o *Operation) Succeed() {
	o.end(nil)
}

// Fail closes the entry with err.
func (o *Operation) Fail(err error) {
	if err == nil {
		err = fmt.Errorf("unknown error")
	}
	o.end(err)
}

// Close fails the entry if it was not closed yet. Meant for defer.
func (o *Operation) Close(err *error) {
	o.mu.Lock()
	ended := o.ended
	o.mu.Unlock()
	if ended {
		return
	}
	if err != nil && *err != nil {
		o.end(*err)
		return
	}
	o.end(nil)
}

func (o *Operation) end(err error) {
	o.mu.Lock()
	if o.ended {
		o.mu.Unlock()
		return
	}
	o.ended = true
	now := o.journal.now()
	o.entry.EndedAt = &now
	o.entry.Success = err == nil
	if err != nil {
		o.entry.Error = err.Error()
	}
	o.mu.Unlock()
	o.save()
}

func (o *Operation) save() {
	if o.journal == nil || o.journal.storage == nil {
		return
	}
	o.mu.Lock()
	data, err := yaml.Marshal(&o.entry)
	name := o.entry.Name()
	o.mu.Unlock()
	if err != nil {
		logging.Warn("OpLog", "Could not encode operation %s: %v", name, err)
		return
	}
	if err := o.journal.storage.Save(kind, name, data); err != nil {
		logging.Warn("OpLog", "Could not write operation %s: %v", name, err)
	}
}

// List returns journaled entries, oldest first, optionally only those
// related to instance.
func (j *Journal) List(instance string) ([]Entry, error) {
	names, err := j.storage.List(kind)
	if err != nil {
		return nil, err
	}
	sort.Strings(names)
	entries := make([]Entry, 0, len(names))
	for _, name := range names {
		data, err := j.storage.Load(kind, name)
		if err != nil {
			return nil, err
		}
		var e Entry
		if err := yaml.Unmarshal(data, &e); err != nil {
			logging.Warn("OpLog", "Skipping unreadable operation %s: %v", name, err)
			continue
		}
		if instance != "" && !contains(e.RelatedTo, instance) {
			continue
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}
