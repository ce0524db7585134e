package ingest

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/google/uuid"

	"github.com/cptecnology-netizen/pcfh-wealth-nexus/internal/dto"
	"github.com/cptecnology-netizen/pcfh-wealth-nexus/internal/notify"
	"github.com/cptecnology-netizen/pcfh-wealth-nexus/internal/store"
)

const (
	DefaultProgressLinger = 2 * time.Second
	DefaultAlertTTL       = 6 * time.Second

	storeTimeout = 30 * time.Second
)

var ErrClosed = errors.New("ingest controller closed")

type Options struct {
	Policy         Policy
	ProgressLinger time.Duration
	AlertTTL       time.Duration
	UploadTimeout  time.Duration
	Notifier       notify.Notifier
	Logger         log.Logger
	Now            func() time.Time
}

// Controller runs the ingestion pipeline. Rows, progress entries, alerts,
// preview handles and unit states are owned by a single loop goroutine;
// store writes and uploads run on their own goroutines and post their
// results back to the loop.
type Controller struct {
	store    store.Store
	uploader Uploader
	opts     Options
	logger   log.Logger

	events chan func()
	quit   chan struct{}
	done   chan struct{}

	// loop-owned
	rows     map[string]*Row
	progress map[string]int
	alerts   []Alert
	handles  map[string]string
	units    map[*unit]struct{}
	timers   map[*time.Timer]struct{}
	subs     map[int]chan Snapshot
	nextSub  int
}

func New(st store.Store, uploader Uploader, opts Options) *Controller {
	if opts.Policy.MaxFileSize == 0 && len(opts.Policy.AcceptedTypes) == 0 {
		opts.Policy = DefaultPolicy()
	}
	if opts.ProgressLinger <= 0 {
		opts.ProgressLinger = DefaultProgressLinger
	}
	if opts.AlertTTL <= 0 {
		opts.AlertTTL = DefaultAlertTTL
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = log.NewNopLogger()
	}
	if opts.Notifier == nil {
		opts.Notifier = notify.NewLogNotifier(opts.Logger)
	}

	c := &Controller{
		store:    st,
		uploader: uploader,
		opts:     opts,
		logger:   log.With(opts.Logger, "component", "ingest"),
		events:   make(chan func()),
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
		rows:     make(map[string]*Row),
		progress: make(map[string]int),
		handles:  make(map[string]string),
		units:    make(map[*unit]struct{}),
		timers:   make(map[*time.Timer]struct{}),
		subs:     make(map[int]chan Snapshot),
	}
	go c.loop()
	return c
}

func (c *Controller) loop() {
	defer close(c.done)
	for {
		select {
		case fn := <-c.events:
			fn()
			c.publish()
		case <-c.quit:
			c.teardown()
			return
		}
	}
}

// post hands fn to the loop. It reports false when the controller is closed.
func (c *Controller) post(fn func()) bool {
	select {
	case c.events <- fn:
		return true
	case <-c.quit:
		return false
	}
}

// call runs fn on the loop and waits for it. ctx only bounds the wait for the
// loop to accept fn; once accepted, fn runs to completion and call returns
// nil, so callers never report failure for work that happened.
func (c *Controller) call(ctx context.Context, fn func()) error {
	ran := make(chan struct{})
	task := func() {
		fn()
		close(ran)
	}
	select {
	case c.events <- task:
	case <-c.quit:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	<-ran
	return nil
}

func (c *Controller) after(d time.Duration, fn func()) {
	var t *time.Timer
	t = time.AfterFunc(d, func() {
		c.post(func() {
			delete(c.timers, t)
			fn()
		})
	})
	c.timers[t] = struct{}{}
}

// Load materialises the rows of every stored record.
func (c *Controller) Load(ctx context.Context) error {
	recs, err := c.store.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("list documents: %w", err)
	}
	return c.call(ctx, func() {
		for _, rec := range recs {
			if _, ok := c.rows[rec.ID]; ok {
				continue
			}
			c.rows[rec.ID] = newRow(rec, c.acquireHandle(rec.ID))
		}
	})
}

// Submit starts one unit of work per file. Rejections are decided before
// Submit returns; persistence and upload continue in the background.
func (c *Controller) Submit(ctx context.Context, files []Incoming) (*Batch, error) {
	b := newBatch(len(files))
	err := c.call(ctx, func() {
		for i, in := range files {
			u := &unit{batch: b, index: i, in: in, state: Submitted}
			c.start(u)
			b.Receipts[i] = Receipt{Name: in.Name, State: u.state, RowID: u.rowID}
		}
	})
	if err != nil {
		return nil, err
	}
	return b, nil
}

func (c *Controller) start(u *unit) {
	next, severity, message := c.opts.Policy.Check(u.in.Name, u.in.ContentType, int64(len(u.in.Data)))
	c.must(u.advance(next))

	if next != Persisting {
		a := c.pushAlert(severity, message, "")
		c.emit(notify.Event{Type: notify.TypeRejected, Name: u.in.Name}, a)
		u.finish(Outcome{Error: message})
		return
	}

	now := c.opts.Now()
	u.rowID = store.NewID(now)
	c.rows[u.rowID] = optimisticRow(u.rowID, u.in, now)
	c.units[u] = struct{}{}

	in := u.in
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		defer cancel()
		rec, err := c.store.Put(ctx, store.File{
			Name:        in.Name,
			ContentType: in.ContentType,
			Pages:       countPages(in.Data),
			Data:        in.Data,
		})
		c.post(func() { c.persisted(u, rec, err) })
	}()
}

func (c *Controller) persisted(u *unit, rec store.Record, err error) {
	delete(c.rows, u.rowID)

	if err != nil {
		c.must(u.advance(PersistFailed))
		level.Error(c.logger).Log("msg", "store document", "name", u.in.Name, "err", err)
		a := c.pushAlert(SeverityError, fmt.Sprintf("Failed to store %s", u.in.Name), "")
		c.emit(notify.Event{Type: notify.TypeStoreFailed, Name: u.in.Name}, a)
		c.retire(u, Outcome{Error: err.Error()})
		return
	}

	c.must(u.advance(Persisted))
	u.rowID = rec.ID
	c.rows[rec.ID] = newRow(rec, c.acquireHandle(rec.ID))
	c.emit(notify.Event{
		Type:       notify.TypeStored,
		DocumentID: rec.ID,
		Name:       rec.Name,
		Status:     string(rec.Status),
	}, nil)

	c.must(u.advance(Uploading))
	c.progress[rec.ID] = 0

	in := u.in
	id := rec.ID
	go func() {
		ctx := context.Background()
		if c.opts.UploadTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, c.opts.UploadTimeout)
			defer cancel()
		}
		res, err := c.uploader.Upload(ctx, in.Name, in.ContentType, in.Data, func(pct int) {
			c.post(func() { c.progressed(u, id, pct) })
		})
		c.post(func() { c.uploaded(u, res, err) })
	}()
}

func (c *Controller) progressed(u *unit, id string, pct int) {
	if u.state != Uploading {
		return
	}
	cur, ok := c.progress[id]
	if !ok || pct <= cur {
		return
	}
	if pct > 100 {
		pct = 100
	}
	c.progress[id] = pct
}

func (c *Controller) uploaded(u *unit, res dto.UploadResponse, err error) {
	id := u.rowID
	row, live := c.rows[id]

	if err != nil {
		c.must(u.advance(UploadFailed))
		level.Warn(c.logger).Log("msg", "upload document", "id", id, "name", u.in.Name, "err", err)
		if live {
			row.Status = store.StatusError
			c.persistStatus(id, store.StatusError, "")
		}
		a := c.pushAlert(SeverityError, fmt.Sprintf("Upload failed for %s", u.in.Name), id)
		c.emit(notify.Event{Type: notify.TypeUploadFailed, DocumentID: id, Name: u.in.Name, Status: string(store.StatusError)}, a)
		c.retire(u, Outcome{DocumentID: id, Error: err.Error()})
	} else {
		c.must(u.advance(UploadOK))
		if _, ok := c.progress[id]; ok {
			c.progress[id] = 100
		}
		if live {
			row.Status = store.StatusCompleted
			row.RemoteURL = res.URL
			c.persistStatus(id, store.StatusCompleted, res.URL)
		}
		a := c.pushAlert(SeveritySuccess, fmt.Sprintf("%s uploaded", u.in.Name), id)
		c.emit(notify.Event{Type: notify.TypeUploaded, DocumentID: id, Name: u.in.Name, Status: string(store.StatusCompleted), RemoteURL: res.URL}, a)
		c.retire(u, Outcome{DocumentID: id, RemoteURL: res.URL})
	}

	c.after(c.opts.ProgressLinger, func() { delete(c.progress, id) })
}

func (c *Controller) retire(u *unit, o Outcome) {
	delete(c.units, u)
	u.finish(o)
}

func (c *Controller) persistStatus(id string, status store.Status, remoteURL string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		defer cancel()
		if err := c.store.UpdateStatus(ctx, id, status, remoteURL); err != nil {
			level.Error(c.logger).Log("msg", "update document status", "id", id, "status", status, "err", err)
		}
	}()
}

// Delete removes a stored document from the store and the list and revokes
// its preview handle. Unknown ids and optimistic rows are left untouched.
func (c *Controller) Delete(ctx context.Context, id string) error {
	var pending bool
	if err := c.call(ctx, func() {
		row, ok := c.rows[id]
		pending = ok && row.Pending
	}); err != nil {
		return err
	}
	if pending {
		return nil
	}

	if err := c.store.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete document %s: %w", id, err)
	}

	// The record is gone; the row must follow even if the caller gave up.
	return c.call(context.WithoutCancel(ctx), func() {
		row, ok := c.rows[id]
		if !ok {
			return
		}
		c.releaseHandle(row.Preview)
		delete(c.rows, id)
		delete(c.progress, id)
		c.emit(notify.Event{Type: notify.TypeDeleted, DocumentID: id, Name: row.Name}, nil)
	})
}

// Dismiss removes an alert before it expires. It reports whether the alert
// was still present.
func (c *Controller) Dismiss(ctx context.Context, id string) (bool, error) {
	var found bool
	err := c.call(ctx, func() {
		found = c.dropAlert(id)
		if found {
			c.emit(notify.Event{Type: notify.TypeAlertDismissed, AlertID: id}, nil)
		}
	})
	return found, err
}

// Snapshot returns rows sorted by creation time, newest first, together with
// progress entries and alerts.
func (c *Controller) Snapshot(ctx context.Context) (Snapshot, error) {
	var s Snapshot
	err := c.call(ctx, func() { s = c.snapshot() })
	return s, err
}

// Preview returns the payload behind a live preview handle.
func (c *Controller) Preview(ctx context.Context, handle string) (Preview, bool, error) {
	var row Row
	var ok bool
	if err := c.call(ctx, func() {
		id, live := c.handles[handle]
		if !live {
			return
		}
		var r *Row
		r, ok = c.rows[id]
		if ok {
			row = *r
		}
	}); err != nil {
		return Preview{}, false, err
	}
	if !ok {
		return Preview{}, false, nil
	}

	data, found, err := c.store.GetPayload(ctx, row.ID)
	if err != nil || !found {
		return Preview{}, false, err
	}
	return Preview{Name: row.Name, ContentType: row.ContentType, Data: data}, true, nil
}

// Subscribe returns a channel receiving a snapshot after every state change,
// starting with the current one. Slow readers only see the latest snapshot.
func (c *Controller) Subscribe(ctx context.Context) (<-chan Snapshot, func(), error) {
	ch := make(chan Snapshot, 1)
	var id int
	err := c.call(ctx, func() {
		id = c.nextSub
		c.nextSub++
		c.subs[id] = ch
		ch <- c.snapshot()
	})
	if err != nil {
		return nil, func() {}, err
	}
	cancel := func() {
		c.post(func() {
			if sub, ok := c.subs[id]; ok {
				delete(c.subs, id)
				close(sub)
			}
		})
	}
	return ch, cancel, nil
}

// Close stops the loop and revokes every preview handle. In-flight uploads
// are not aborted; their results are discarded.
func (c *Controller) Close() error {
	select {
	case <-c.quit:
	default:
		close(c.quit)
	}
	<-c.done
	return nil
}

func (c *Controller) teardown() {
	for t := range c.timers {
		t.Stop()
	}
	c.timers = map[*time.Timer]struct{}{}

	for h := range c.handles {
		c.releaseHandle(h)
	}
	for u := range c.units {
		u.finish(Outcome{DocumentID: u.rowID, Error: ErrClosed.Error()})
	}
	c.units = map[*unit]struct{}{}

	for id, sub := range c.subs {
		delete(c.subs, id)
		close(sub)
	}
}

func (c *Controller) snapshot() Snapshot {
	s := Snapshot{
		Rows:     make([]Row, 0, len(c.rows)),
		Progress: make(map[string]int, len(c.progress)),
		Alerts:   make([]Alert, len(c.alerts)),
	}
	for _, r := range c.rows {
		s.Rows = append(s.Rows, *r)
	}
	sort.SliceStable(s.Rows, func(i, j int) bool {
		a, b := s.Rows[i], s.Rows[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID > b.ID
	})
	for id, pct := range c.progress {
		s.Progress[id] = pct
	}
	copy(s.Alerts, c.alerts)
	return s
}

func (c *Controller) publish() {
	if len(c.subs) == 0 {
		return
	}
	s := c.snapshot()
	for _, ch := range c.subs {
		select {
		case <-ch:
		default:
		}
		ch <- s
	}
}

func (c *Controller) pushAlert(severity Severity, message, documentID string) *Alert {
	now := c.opts.Now()
	a := Alert{
		ID:         newAlertID(now),
		Severity:   severity,
		Message:    message,
		DocumentID: documentID,
		CreatedAt:  now,
	}
	c.alerts = append(c.alerts, a)
	c.after(c.opts.AlertTTL, func() { c.dropAlert(a.ID) })
	return &a
}

func (c *Controller) dropAlert(id string) bool {
	for i, a := range c.alerts {
		if a.ID == id {
			c.alerts = append(c.alerts[:i], c.alerts[i+1:]...)
			return true
		}
	}
	return false
}

func (c *Controller) acquireHandle(id string) string {
	h := strings.ReplaceAll(uuid.NewString(), "-", "")
	c.handles[h] = id
	return h
}

func (c *Controller) releaseHandle(h string) {
	delete(c.handles, h)
}

// emit forwards an event to the notifier. The notifier is expected not to
// block the loop; wrap slow notifiers in a notify.Queue.
func (c *Controller) emit(e notify.Event, a *Alert) {
	e.Timestamp = c.opts.Now()
	if a != nil {
		e.AlertID = a.ID
		e.Severity = string(a.Severity)
		e.Message = a.Message
	}
	if err := c.opts.Notifier.Notify(context.Background(), e); err != nil {
		level.Warn(c.logger).Log("msg", "notify", "event", e.Type, "err", err)
	}
}

func (c *Controller) must(err error) {
	if err != nil {
		level.Error(c.logger).Log("msg", "pipeline state", "err", err)
	}
}
