package ingest

import (
	"context"
	"sync"
	"time"

	"github.com/cptecnology-netizen/pcfh-wealth-nexus/internal/dto"
	"github.com/cptecnology-netizen/pcfh-wealth-nexus/internal/notify"
	"github.com/cptecnology-netizen/pcfh-wealth-nexus/internal/store"
)

type memStore struct {
	mu       sync.Mutex
	recs     map[string]store.Record
	data     map[string][]byte
	puts     int
	putErr   error
	statuses []store.Status

	// failNames fails Put for the listed file names only.
	failNames map[string]error
	// putStarted and putGate, when set, hold every Put until the test lets it go.
	putStarted chan string
	putGate    chan struct{}
}

func newMemStore() *memStore {
	return &memStore{recs: map[string]store.Record{}, data: map[string][]byte{}}
}

func (m *memStore) Put(_ context.Context, f store.File) (store.Record, error) {
	if m.putStarted != nil {
		m.putStarted <- f.Name
	}
	if m.putGate != nil {
		<-m.putGate
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.putErr != nil {
		return store.Record{}, m.putErr
	}
	if err := m.failNames[f.Name]; err != nil {
		return store.Record{}, err
	}
	m.puts++
	now := time.Now()
	rec := store.Record{
		ID:          store.NewID(now),
		Name:        f.Name,
		Kind:        store.KindPDF,
		ContentType: f.ContentType,
		Size:        int64(len(f.Data)),
		Pages:       f.Pages,
		CreatedAt:   now,
		Status:      store.StatusCompleted,
	}
	m.recs[rec.ID] = rec
	m.data[rec.ID] = f.Data
	return rec, nil
}

func (m *memStore) ListAll(context.Context) ([]store.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]store.Record, 0, len(m.recs))
	for _, r := range m.recs {
		out = append(out, r)
	}
	return out, nil
}

func (m *memStore) GetPayload(_ context.Context, id string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.data[id]
	return d, ok, nil
}

func (m *memStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.recs, id)
	delete(m.data, id)
	return nil
}

func (m *memStore) UpdateStatus(_ context.Context, id string, status store.Status, remoteURL string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statuses = append(m.statuses, status)
	rec, ok := m.recs[id]
	if !ok {
		return nil
	}
	rec.Status = status
	rec.RemoteURL = remoteURL
	m.recs[id] = rec
	return nil
}

func (m *memStore) Close() error { return nil }

func (m *memStore) putCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.puts
}

func (m *memStore) record(id string) (store.Record, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.recs[id]
	return r, ok
}

type fakeUploader struct {
	mu       sync.Mutex
	calls    []string
	progress []int
	res      dto.UploadResponse
	err      error
	started  chan string
	release  chan struct{}
}

func (f *fakeUploader) Upload(_ context.Context, name, _ string, _ []byte, onProgress func(int)) (dto.UploadResponse, error) {
	f.mu.Lock()
	f.calls = append(f.calls, name)
	f.mu.Unlock()

	if f.started != nil {
		f.started <- name
	}
	if f.release != nil {
		<-f.release
	}
	for _, p := range f.progress {
		onProgress(p)
	}
	return f.res, f.err
}

func (f *fakeUploader) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type eventLog struct {
	mu     sync.Mutex
	events []notify.Event
}

func (l *eventLog) Notify(_ context.Context, e notify.Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
	return nil
}

func (l *eventLog) types() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, 0, len(l.events))
	for _, e := range l.events {
		out = append(out, e.Type)
	}
	return out
}
