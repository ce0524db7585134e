package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cptecnology-netizen/pcfh-wealth-nexus/internal/dto"
	"github.com/cptecnology-netizen/pcfh-wealth-nexus/internal/notify"
	"github.com/cptecnology-netizen/pcfh-wealth-nexus/internal/store"
)

const mib = 1024 * 1024

func pdf(name string, size int) Incoming {
	return Incoming{Name: name, ContentType: "application/pdf", Data: make([]byte, size)}
}

func newTestController(t *testing.T, st store.Store, up Uploader, opts Options) *Controller {
	t.Helper()
	if opts.AlertTTL == 0 {
		opts.AlertTTL = time.Minute
	}
	if opts.ProgressLinger == 0 {
		opts.ProgressLinger = time.Minute
	}
	if opts.Notifier == nil {
		opts.Notifier = &eventLog{}
	}
	c := New(st, up, opts)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func snapshot(t *testing.T, c *Controller) Snapshot {
	t.Helper()
	s, err := c.Snapshot(context.Background())
	require.NoError(t, err)
	return s
}

func submit(t *testing.T, c *Controller, files ...Incoming) []Outcome {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	b, err := c.Submit(ctx, files)
	require.NoError(t, err)
	out, err := b.Wait(ctx)
	require.NoError(t, err)
	return out
}

func TestOversizedFileIsRejectedWithoutStoreWrite(t *testing.T) {
	st := newMemStore()
	up := &fakeUploader{}
	c := newTestController(t, st, up, Options{})

	out := submit(t, c, pdf("C.pdf", 25*mib))

	require.Len(t, out, 1)
	assert.Equal(t, RejectedSize, out[0].State)
	assert.Zero(t, st.putCount())
	assert.Zero(t, up.callCount())

	s := snapshot(t, c)
	assert.Empty(t, s.Rows)
	require.Len(t, s.Alerts, 1)
	assert.Equal(t, SeverityError, s.Alerts[0].Severity)
	assert.Equal(t, "C.pdf exceeds the 20MB limit", s.Alerts[0].Message)
}

func TestWrongTypeIsSkippedWithInfoAlert(t *testing.T) {
	st := newMemStore()
	c := newTestController(t, st, &fakeUploader{}, Options{})

	out := submit(t, c, Incoming{Name: "B.exe", ContentType: "application/x-msdownload", Data: make([]byte, mib)})

	assert.Equal(t, RejectedType, out[0].State)
	assert.Zero(t, st.putCount())

	s := snapshot(t, c)
	assert.Empty(t, s.Rows)
	require.Len(t, s.Alerts, 1)
	assert.Equal(t, SeverityInfo, s.Alerts[0].Severity)
	assert.Equal(t, "B.exe is not a PDF and was skipped", s.Alerts[0].Message)
}

func TestSizeCheckedBeforeType(t *testing.T) {
	c := newTestController(t, newMemStore(), &fakeUploader{}, Options{})

	out := submit(t, c, Incoming{Name: "big.exe", ContentType: "application/octet-stream", Data: make([]byte, 21*mib)})
	assert.Equal(t, RejectedSize, out[0].State)
}

func TestRecordIsCompletedBeforeUploadResolves(t *testing.T) {
	st := newMemStore()
	up := &fakeUploader{started: make(chan string, 1), release: make(chan struct{})}
	c := newTestController(t, st, up, Options{})

	b, err := c.Submit(context.Background(), []Incoming{pdf("A.pdf", 1024)})
	require.NoError(t, err)
	require.Equal(t, Persisting, b.Receipts[0].State)

	select {
	case <-up.started:
	case <-time.After(5 * time.Second):
		t.Fatal("upload never started")
	}

	s := snapshot(t, c)
	require.Len(t, s.Rows, 1)
	row := s.Rows[0]
	assert.Equal(t, store.StatusCompleted, row.Status)
	assert.False(t, row.Pending)
	assert.NotEmpty(t, row.Preview)
	assert.Equal(t, 0, s.Progress[row.ID])
	assert.Equal(t, 1, st.putCount())

	close(up.release)
	out, err := b.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, UploadOK, out[0].State)
}

func TestUploadFailureMarksRecordError(t *testing.T) {
	st := newMemStore()
	events := &eventLog{}
	up := &fakeUploader{err: errors.New("upload failed: 500 Internal Server Error")}
	c := newTestController(t, st, up, Options{Notifier: events})

	out := submit(t, c, pdf("A.pdf", 2048))
	require.Equal(t, UploadFailed, out[0].State)
	id := out[0].DocumentID

	s := snapshot(t, c)
	require.Len(t, s.Rows, 1)
	assert.Equal(t, store.StatusError, s.Rows[0].Status)

	require.Len(t, s.Alerts, 1)
	assert.Equal(t, SeverityError, s.Alerts[0].Severity)
	assert.Equal(t, "Upload failed for A.pdf", s.Alerts[0].Message)

	p, ok, err := c.Preview(context.Background(), s.Rows[0].Preview)
	require.NoError(t, err)
	require.True(t, ok, "payload stays fetchable")
	assert.Len(t, p.Data, 2048)

	require.Eventually(t, func() bool {
		rec, ok := st.record(id)
		return ok && rec.Status == store.StatusError
	}, 2*time.Second, 10*time.Millisecond)

	assert.Equal(t, []string{notify.TypeStored, notify.TypeUploadFailed}, events.types())
}

func TestUploadSuccessReachesHundredThenLingersOut(t *testing.T) {
	st := newMemStore()
	up := &fakeUploader{
		progress: []int{30, 20, 70},
		res:      dto.UploadResponse{URL: "/uploads/1-abc-A.pdf", Filename: "1-abc-A.pdf"},
	}
	c := newTestController(t, st, up, Options{ProgressLinger: 100 * time.Millisecond})

	out := submit(t, c, pdf("A.pdf", 2048))
	require.Equal(t, UploadOK, out[0].State)
	id := out[0].DocumentID
	assert.Equal(t, "/uploads/1-abc-A.pdf", out[0].RemoteURL)

	s := snapshot(t, c)
	if pct, ok := s.Progress[id]; ok {
		assert.Equal(t, 100, pct)
	}
	require.Len(t, s.Rows, 1)
	assert.Equal(t, store.StatusCompleted, s.Rows[0].Status)
	assert.Equal(t, "/uploads/1-abc-A.pdf", s.Rows[0].RemoteURL)

	require.Len(t, s.Alerts, 1)
	assert.Equal(t, SeveritySuccess, s.Alerts[0].Severity)
	assert.Equal(t, "A.pdf uploaded", s.Alerts[0].Message)

	require.Eventually(t, func() bool {
		_, ok := snapshot(t, c).Progress[id]
		return !ok
	}, 2*time.Second, 10*time.Millisecond)
}

func TestProgressNeverDecreases(t *testing.T) {
	up := &fakeUploader{started: make(chan string, 1), release: make(chan struct{}), progress: []int{40, 10}}
	c := newTestController(t, newMemStore(), up, Options{})

	b, err := c.Submit(context.Background(), []Incoming{pdf("A.pdf", 10)})
	require.NoError(t, err)
	<-up.started

	var seen []int
	ch, cancel, err := c.Subscribe(context.Background())
	require.NoError(t, err)
	defer cancel()

	close(up.release)
	_, err = b.Wait(context.Background())
	require.NoError(t, err)

	timeout := time.After(time.Second)
	for done := false; !done; {
		select {
		case s := <-ch:
			for _, pct := range s.Progress {
				seen = append(seen, pct)
			}
		case <-timeout:
			done = true
		}
		if len(seen) > 0 && seen[len(seen)-1] == 100 {
			done = true
		}
	}
	for i := 1; i < len(seen); i++ {
		assert.GreaterOrEqual(t, seen[i], seen[i-1])
	}
}

func TestPersistFailureRemovesOptimisticRow(t *testing.T) {
	st := newMemStore()
	st.putErr = errors.New("disk full")
	up := &fakeUploader{}
	c := newTestController(t, st, up, Options{})

	out := submit(t, c, pdf("A.pdf", 100))
	assert.Equal(t, PersistFailed, out[0].State)
	assert.Zero(t, up.callCount())

	s := snapshot(t, c)
	assert.Empty(t, s.Rows, "optimistic row is removed, not marked error")
	require.Len(t, s.Alerts, 1)
	assert.Equal(t, "Failed to store A.pdf", s.Alerts[0].Message)
}

func TestOptimisticRowVisibleWhilePersisting(t *testing.T) {
	st := newMemStore()
	st.putStarted = make(chan string, 1)
	st.putGate = make(chan struct{})
	up := &fakeUploader{}
	c := newTestController(t, st, up, Options{})
	ctx := context.Background()

	b, err := c.Submit(ctx, []Incoming{pdf("A.pdf", 2048)})
	require.NoError(t, err)
	select {
	case <-st.putStarted:
	case <-time.After(5 * time.Second):
		t.Fatal("store write never started")
	}

	s := snapshot(t, c)
	require.Len(t, s.Rows, 1)
	row := s.Rows[0]
	assert.True(t, row.Pending)
	assert.Equal(t, store.StatusProcessing, row.Status)
	assert.Equal(t, "A.pdf", row.Name)
	assert.Equal(t, int64(2048), row.Size)
	assert.Equal(t, b.Receipts[0].RowID, row.ID)
	assert.Zero(t, up.callCount())

	require.NoError(t, c.Delete(ctx, row.ID))
	assert.Len(t, snapshot(t, c).Rows, 1, "optimistic rows cannot be deleted")

	close(st.putGate)
	out, err := b.Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, UploadOK, out[0].State)

	s = snapshot(t, c)
	require.Len(t, s.Rows, 1)
	assert.False(t, s.Rows[0].Pending)
	assert.Equal(t, store.StatusCompleted, s.Rows[0].Status)
	assert.Equal(t, out[0].DocumentID, s.Rows[0].ID)
}

func TestPersistFailureDoesNotAffectSiblings(t *testing.T) {
	st := newMemStore()
	st.failNames = map[string]error{"B.pdf": errors.New("disk full")}
	up := &fakeUploader{}
	c := newTestController(t, st, up, Options{})

	out := submit(t, c, pdf("A.pdf", 100), pdf("B.pdf", 100))
	require.Len(t, out, 2)
	assert.Equal(t, UploadOK, out[0].State)
	assert.Equal(t, PersistFailed, out[1].State)
	assert.Equal(t, 1, up.callCount())

	s := snapshot(t, c)
	require.Len(t, s.Rows, 1)
	assert.Equal(t, "A.pdf", s.Rows[0].Name)
	assert.Equal(t, store.StatusCompleted, s.Rows[0].Status)

	var failures []string
	for _, a := range s.Alerts {
		if a.Severity == SeverityError {
			failures = append(failures, a.Message)
		}
	}
	assert.Equal(t, []string{"Failed to store B.pdf"}, failures)
}

func TestMixedBatch(t *testing.T) {
	st := newMemStore()
	c := newTestController(t, st, &fakeUploader{}, Options{})

	out := submit(t, c,
		pdf("A.pdf", 4*mib),
		Incoming{Name: "B.exe", ContentType: "application/x-msdownload", Data: make([]byte, mib)},
	)
	require.Len(t, out, 2)
	assert.Equal(t, UploadOK, out[0].State)
	assert.Equal(t, RejectedType, out[1].State)

	recs, err := st.ListAll(context.Background())
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "A.pdf", recs[0].Name)
	assert.Equal(t, store.StatusCompleted, recs[0].Status)

	var infos []Alert
	for _, a := range snapshot(t, c).Alerts {
		if a.Severity == SeverityInfo {
			infos = append(infos, a)
		}
	}
	require.Len(t, infos, 1)
	assert.True(t, strings.Contains(infos[0].Message, "B.exe"))
}

func TestDeleteRemovesFromListAndStore(t *testing.T) {
	st := newMemStore()
	c := newTestController(t, st, &fakeUploader{}, Options{})
	ctx := context.Background()

	out := submit(t, c, pdf("A.pdf", 100))
	id := out[0].DocumentID
	handle := snapshot(t, c).Rows[0].Preview

	require.NoError(t, c.Delete(ctx, id))
	assert.Empty(t, snapshot(t, c).Rows)
	_, ok := st.record(id)
	assert.False(t, ok)

	_, ok, err := c.Preview(ctx, handle)
	require.NoError(t, err)
	assert.False(t, ok, "handle is revoked")

	before := snapshot(t, c)
	require.NoError(t, c.Delete(ctx, id))
	require.NoError(t, c.Delete(ctx, "never-stored"))
	assert.Equal(t, before.Rows, snapshot(t, c).Rows)
}

func TestListingIsStableAndNewestFirst(t *testing.T) {
	st := newMemStore()
	c := newTestController(t, st, &fakeUploader{}, Options{})

	submit(t, c, pdf("first.pdf", 10))
	time.Sleep(5 * time.Millisecond)
	submit(t, c, pdf("second.pdf", 10))

	a := snapshot(t, c)
	b := snapshot(t, c)
	require.Len(t, a.Rows, 2)
	assert.Equal(t, "second.pdf", a.Rows[0].Name)
	assert.Equal(t, ids(a.Rows), ids(b.Rows))
}

func TestAlertsExpireAndCanBeDismissed(t *testing.T) {
	c := newTestController(t, newMemStore(), &fakeUploader{}, Options{AlertTTL: 100 * time.Millisecond})

	submit(t, c, Incoming{Name: "x.txt", ContentType: "text/plain", Data: []byte("x")})
	require.Len(t, snapshot(t, c).Alerts, 1)
	require.Eventually(t, func() bool {
		return len(snapshot(t, c).Alerts) == 0
	}, 2*time.Second, 10*time.Millisecond)

	c2 := newTestController(t, newMemStore(), &fakeUploader{}, Options{})
	submit(t, c2, Incoming{Name: "y.txt", ContentType: "text/plain", Data: []byte("y")})
	alerts := snapshot(t, c2).Alerts
	require.Len(t, alerts, 1)

	found, err := c2.Dismiss(context.Background(), alerts[0].ID)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Empty(t, snapshot(t, c2).Alerts)

	found, err = c2.Dismiss(context.Background(), alerts[0].ID)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestLoadMaterialisesStoredRecords(t *testing.T) {
	st := newMemStore()
	ctx := context.Background()
	rec, err := st.Put(ctx, store.File{Name: "old.pdf", ContentType: "application/pdf", Data: []byte("%PDF")})
	require.NoError(t, err)

	c := New(st, &fakeUploader{}, Options{Notifier: &eventLog{}})
	require.NoError(t, c.Load(ctx))

	s := snapshot(t, c)
	require.Len(t, s.Rows, 1)
	assert.Equal(t, rec.ID, s.Rows[0].ID)
	require.NotEmpty(t, s.Rows[0].Preview)

	p, ok, err := c.Preview(ctx, s.Rows[0].Preview)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "old.pdf", p.Name)
	assert.Equal(t, []byte("%PDF"), p.Data)

	require.NoError(t, c.Close())
	_, _, err = c.Preview(ctx, s.Rows[0].Preview)
	assert.ErrorIs(t, err, ErrClosed)
	_, err = c.Submit(ctx, []Incoming{pdf("late.pdf", 1)})
	assert.ErrorIs(t, err, ErrClosed)
}

func TestCloseFinishesPendingBatches(t *testing.T) {
	up := &fakeUploader{started: make(chan string, 1), release: make(chan struct{})}
	c := New(newMemStore(), up, Options{Notifier: &eventLog{}})

	b, err := c.Submit(context.Background(), []Incoming{pdf("A.pdf", 10)})
	require.NoError(t, err)
	<-up.started

	require.NoError(t, c.Close())
	out, err := b.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Uploading, out[0].State)
	assert.Equal(t, ErrClosed.Error(), out[0].Error)
	close(up.release)
}

func TestSubscribeReceivesChanges(t *testing.T) {
	c := newTestController(t, newMemStore(), &fakeUploader{}, Options{})

	ch, cancel, err := c.Subscribe(context.Background())
	require.NoError(t, err)
	first := <-ch
	assert.Empty(t, first.Rows)

	submit(t, c, pdf("A.pdf", 10))
	require.Eventually(t, func() bool {
		select {
		case s := <-ch:
			return len(s.Rows) == 1 && len(s.Alerts) == 1
		default:
			return false
		}
	}, 2*time.Second, 5*time.Millisecond)

	cancel()
	require.Eventually(t, func() bool {
		for {
			select {
			case _, ok := <-ch:
				if !ok {
					return true
				}
			default:
				return false
			}
		}
	}, 2*time.Second, 5*time.Millisecond)
}

func TestCancelledSubmitStartsNothing(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	for i := 0; i < 20; i++ {
		st := newMemStore()
		c := newTestController(t, st, &fakeUploader{}, Options{})

		b, err := c.Submit(ctx, []Incoming{pdf("A.pdf", 10)})
		if err != nil {
			assert.ErrorIs(t, err, context.Canceled)
			assert.Nil(t, b)
			assert.Empty(t, snapshot(t, c).Rows)
			assert.Zero(t, st.putCount())
			continue
		}
		out, err := b.Wait(context.Background())
		require.NoError(t, err)
		assert.Equal(t, UploadOK, out[0].State, "an accepted batch runs to the end")
	}
}

func TestSnapshotUsesCamelCaseKeys(t *testing.T) {
	up := &fakeUploader{res: dto.UploadResponse{URL: "/uploads/1-abc-A.pdf"}}
	c := newTestController(t, newMemStore(), up, Options{})
	submit(t, c, pdf("A.pdf", 10))

	raw, err := json.Marshal(snapshot(t, c))
	require.NoError(t, err)

	var body struct {
		Rows   []map[string]any `json:"rows"`
		Alerts []map[string]any `json:"alerts"`
	}
	require.NoError(t, json.Unmarshal(raw, &body))
	require.Len(t, body.Rows, 1)
	require.NotEmpty(t, body.Alerts)

	for _, key := range []string{"createdAt", "contentType", "remoteUrl", "date", "preview"} {
		assert.Contains(t, body.Rows[0], key)
	}
	for key := range body.Rows[0] {
		assert.NotContains(t, key, "_")
	}
	assert.Contains(t, body.Alerts[0], "createdAt")
}

func TestEmptyBatchIsDone(t *testing.T) {
	c := newTestController(t, newMemStore(), &fakeUploader{}, Options{})
	out := submit(t, c)
	assert.Empty(t, out)
}

func ids(rows []Row) []string {
	out := make([]string, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.ID)
	}
	return out
}
